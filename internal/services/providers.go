package services

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
)

// SMSSender delivers a text message to a phone number.
type SMSSender interface {
	SendSMS(ctx context.Context, to, body string) error
}

// Mailer delivers an HTML email.
type Mailer interface {
	SendMail(ctx context.Context, to, subject, html string) error
}

// AdminNotifier alerts shop staff about new orders.
type AdminNotifier interface {
	NotifyNewOrder(ctx context.Context, order OrderNotification) error
}

// EventPublisher emits order lifecycle events to downstream consumers.
type EventPublisher interface {
	Publish(ctx context.Context, event OrderEvent) error
}

// PaymentGateway creates pending charges at the payment provider.
type PaymentGateway interface {
	CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string) (*GatewayOrder, error)
	KeyID() string
}

// MediaUploader stores a binary and returns its public URL.
type MediaUploader interface {
	Upload(ctx context.Context, folder, filename string, file io.Reader) (string, error)
}

// GatewayOrder is the opaque handle returned by the payment provider.
type GatewayOrder struct {
	ID       string `json:"orderId"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	KeyID    string `json:"keyId"`
}

const (
	EventOrderPlaced        = "order.placed"
	EventOrderStatusChanged = "order.status_changed"
	EventOrderPaymentUpdate = "order.payment_updated"
)

// OrderEvent is the payload published for order lifecycle changes.
type OrderEvent struct {
	Type          string    `json:"type"`
	ID            uuid.UUID `json:"id"`
	OrderID       string    `json:"orderId"`
	CustomerID    uuid.UUID `json:"customerId"`
	TotalAmount   string    `json:"totalAmount"`
	OrderStatus   string    `json:"orderStatus"`
	PaymentStatus string    `json:"paymentStatus"`
	OccurredAt    time.Time `json:"occurredAt"`
}
