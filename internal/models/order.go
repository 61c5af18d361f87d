package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentMethodCOD      PaymentMethod = "COD"
	PaymentMethodRazorpay PaymentMethod = "RAZORPAY"
)

func (m PaymentMethod) Valid() bool {
	return m == PaymentMethodCOD || m == PaymentMethodRazorpay
}

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
)

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusCompleted, PaymentStatusFailed:
		return true
	}
	return false
}

type OrderStatus string

const (
	OrderStatusPlaced    OrderStatus = "PLACED"
	OrderStatusConfirmed OrderStatus = "CONFIRMED"
	OrderStatusShipped   OrderStatus = "SHIPPED"
	OrderStatusDelivered OrderStatus = "DELIVERED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPlaced, OrderStatusConfirmed, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// Order is a snapshot taken at checkout. Only the payment fields and
// OrderStatus change after creation.
type Order struct {
	BaseModel
	OrderID           string          `gorm:"uniqueIndex;not null" json:"orderId"`
	CustomerID        uuid.UUID       `gorm:"type:uuid;index;not null" json:"customerId"`
	Customer          *Customer       `json:"customer,omitempty"`
	Products          []OrderLine     `gorm:"foreignKey:OrderID;references:ID" json:"products"`
	TotalAmount       decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"totalAmount"`
	DeliveryAddressID uuid.UUID       `gorm:"type:uuid;not null" json:"deliveryAddressId"`
	DeliveryAddress   *Address        `json:"deliveryAddress,omitempty"`
	PaymentMethod     PaymentMethod   `gorm:"not null" json:"paymentMethod"`
	PaymentStatus     PaymentStatus   `gorm:"not null;default:PENDING" json:"paymentStatus"`
	RazorpayOrderID   string          `json:"razorpayOrderId"`
	RazorpayPaymentID string          `json:"razorpayPaymentId"`
	OrderStatus       OrderStatus     `gorm:"index;not null;default:PLACED" json:"orderStatus"`
}

// OrderLine is one purchased product with the unit price charged.
type OrderLine struct {
	BaseModel
	OrderID   uuid.UUID       `gorm:"type:uuid;index;not null" json:"-"`
	Position  int             `gorm:"not null" json:"-"`
	ProductID uuid.UUID       `gorm:"type:uuid;not null" json:"productId"`
	Product   *Product        `json:"product,omitempty"`
	Quantity  int             `gorm:"not null" json:"quantity"`
	Price     decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
}

// LineTotal is Price * Quantity.
func (l OrderLine) LineTotal() decimal.Decimal {
	return l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// SumLines adds up the line totals.
func SumLines(lines []OrderLine) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(l.LineTotal())
	}
	return total
}
