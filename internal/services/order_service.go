package services

import (
	"context"
	"errors"
	"math/rand"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/utils"
)

// OrderService runs checkout and the order lifecycle.
type OrderService struct {
	db            *gorm.DB
	notifier      *Notifier
	signingSecret string
	logger        *zap.Logger

	now    func() time.Time
	suffix func() int
}

// NewOrderService builds an OrderService. signingSecret is the payment
// gateway secret used to check completed-payment reports.
func NewOrderService(db *gorm.DB, notifier *Notifier, signingSecret string, logger *zap.Logger) *OrderService {
	return &OrderService{
		db:            db,
		notifier:      notifier,
		signingSecret: signingSecret,
		logger:        logger,
		now:           time.Now,
		suffix:        func() int { return rand.Intn(1000) },
	}
}

// OrderLineInput is one requested product and quantity.
type OrderLineInput struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// PlaceOrderInput is the checkout request.
type PlaceOrderInput struct {
	Products        []OrderLineInput     `json:"products"`
	DeliveryAddress string               `json:"deliveryAddress"`
	PaymentMethod   models.PaymentMethod `json:"paymentMethod"`
	RazorpayOrderID string               `json:"razorpayOrderId"`
}

// PlaceOrderResult is the committed order and what happened to its
// notifications.
type PlaceOrderResult struct {
	Order         *models.Order
	Notifications NotificationReport
}

type parsedLine struct {
	raw       string
	productID uuid.UUID
	quantity  int
}

// PlaceOrder validates stock, snapshots prices, decrements stock and stores
// the order in one transaction, then dispatches best-effort notifications.
// A failure on any line leaves every product's stock unchanged.
func (s *OrderService) PlaceOrder(ctx context.Context, p Principal, in PlaceOrderInput) (*PlaceOrderResult, error) {
	ctx, span := utils.StartSpan(ctx, "OrderService.PlaceOrder")
	defer span.End()

	start := time.Now()
	defer func() { utils.OrderPlacementLatency.Observe(time.Since(start).Seconds()) }()

	lines, addressID, err := s.validatePlaceOrder(in)
	if err != nil {
		utils.OrdersFailedTotal.WithLabelValues("invalid_request").Inc()
		return nil, err
	}

	names := make(map[string]string, len(lines))
	var order models.Order

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var address models.Address
		if err := tx.First(&address, "id = ? AND customer_id = ?", addressID, p.CustomerID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return NotFound("Address not found")
			}
			return err
		}

		snapshot := make([]models.OrderLine, 0, len(lines))

		for i, line := range lines {
			var product models.Product
			if err := tx.First(&product, "id = ? AND is_active = ?", line.productID, true).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return NotFound("Product %s not found", line.raw)
				}
				return err
			}

			if line.quantity > product.Stock {
				return Validation("Insufficient stock for %s", product.Name)
			}

			price := product.EffectivePrice()
			snapshot = append(snapshot, models.OrderLine{
				Position:  i,
				ProductID: product.ID,
				Quantity:  line.quantity,
				Price:     price,
			})
			names[product.ID.String()] = product.Name

			res := tx.Model(&models.Product{}).
				Where("id = ? AND stock >= ?", product.ID, line.quantity).
				Update("stock", gorm.Expr("stock - ?", line.quantity))
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return Validation("Insufficient stock for %s", product.Name)
			}
		}

		order = models.Order{
			OrderID:           s.newOrderID(),
			CustomerID:        p.CustomerID,
			Products:          snapshot,
			TotalAmount:       models.SumLines(snapshot),
			DeliveryAddressID: address.ID,
			PaymentMethod:     in.PaymentMethod,
			PaymentStatus:     models.PaymentStatusPending,
			RazorpayOrderID:   in.RazorpayOrderID,
			OrderStatus:       models.OrderStatusPlaced,
		}
		return tx.Create(&order).Error
	})
	if err != nil {
		var se *Error
		if !errors.As(err, &se) {
			err = Upstream("Failed to create order", err)
		}
		utils.OrdersFailedTotal.WithLabelValues(KindOf(err).String()).Inc()
		return nil, err
	}

	utils.OrdersPlacedTotal.Inc()
	s.logger.Info("order placed",
		zap.String("order_id", order.OrderID),
		zap.String("customer_id", p.CustomerID.String()),
		zap.String("total", order.TotalAmount.String()))

	result := &PlaceOrderResult{Order: &order}
	if s.notifier != nil {
		result.Notifications = s.notifier.OrderPlaced(ctx, s.recipient(ctx, p), &order, names)
	}
	return result, nil
}

func (s *OrderService) validatePlaceOrder(in PlaceOrderInput) ([]parsedLine, uuid.UUID, error) {
	if len(in.Products) == 0 {
		return nil, uuid.Nil, Validation("Order must contain at least one product")
	}
	if !in.PaymentMethod.Valid() {
		return nil, uuid.Nil, Validation("Invalid payment method")
	}

	addressID, err := uuid.Parse(in.DeliveryAddress)
	if err != nil {
		return nil, uuid.Nil, Validation("Invalid delivery address")
	}

	lines := make([]parsedLine, 0, len(in.Products))
	for _, item := range in.Products {
		id, err := uuid.Parse(item.ProductID)
		if err != nil {
			return nil, uuid.Nil, NotFound("Product %s not found", item.ProductID)
		}
		if item.Quantity <= 0 {
			return nil, uuid.Nil, Validation("Invalid quantity for product %s", item.ProductID)
		}
		lines = append(lines, parsedLine{raw: item.ProductID, productID: id, quantity: item.Quantity})
	}
	return lines, addressID, nil
}

// recipient loads the customer's current name and email for the receipt.
func (s *OrderService) recipient(ctx context.Context, p Principal) OrderRecipient {
	to := OrderRecipient{PhoneNumber: p.PhoneNumber, Email: p.Email}

	var customer models.Customer
	if err := s.db.WithContext(ctx).First(&customer, "id = ?", p.CustomerID).Error; err != nil {
		s.logger.Warn("failed to load customer for notifications", zap.Error(err))
		return to
	}
	to.Name = customer.Name
	to.PhoneNumber = customer.PhoneNumber
	to.Email = customer.Email
	return to
}

// newOrderID returns "ORD" + unix millis + a random suffix below 1000.
func (s *OrderService) newOrderID() string {
	return "ORD" + strconv.FormatInt(s.now().UnixMilli(), 10) + strconv.Itoa(s.suffix())
}

func (s *OrderService) withDetails(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Products", func(db *gorm.DB) *gorm.DB { return db.Order("position asc") }).
		Preload("Products.Product").
		Preload("DeliveryAddress", func(db *gorm.DB) *gorm.DB { return db.Unscoped() })
}

// ListMine returns the caller's orders, newest first.
func (s *OrderService) ListMine(ctx context.Context, p Principal) ([]models.Order, error) {
	orders := []models.Order{}
	err := s.withDetails(s.db.WithContext(ctx)).
		Where("customer_id = ?", p.CustomerID).
		Order("created_at desc").
		Find(&orders).Error
	if err != nil {
		return nil, Upstream("Failed to get orders", err)
	}
	return orders, nil
}

// Get returns one order visible to the caller: their own, or any for admins.
func (s *OrderService) Get(ctx context.Context, p Principal, id string) (*models.Order, error) {
	orderID, err := uuid.Parse(id)
	if err != nil {
		return nil, NotFound("Order not found")
	}

	var order models.Order
	if err := s.withDetails(s.db.WithContext(ctx)).Preload("Customer").First(&order, "id = ?", orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, NotFound("Order not found")
		}
		return nil, Upstream("Failed to get order", err)
	}

	if order.CustomerID != p.CustomerID && !p.IsAdmin {
		return nil, NotFound("Order not found")
	}
	return &order, nil
}

// OrderPage is one page of the admin order listing.
type OrderPage struct {
	Orders      []models.Order `json:"orders"`
	TotalPages  int64          `json:"totalPages"`
	CurrentPage int            `json:"currentPage"`
	Total       int64          `json:"total"`
}

// ListAll returns every order, optionally filtered by status. Admin only.
func (s *OrderService) ListAll(ctx context.Context, p Principal, status string, pg utils.Pagination) (*OrderPage, error) {
	if err := p.RequireAdmin(); err != nil {
		return nil, err
	}

	query := s.db.WithContext(ctx).Model(&models.Order{})
	if status != "" {
		if !models.OrderStatus(status).Valid() {
			return nil, Validation("Invalid order status")
		}
		query = query.Where("order_status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, Upstream("Failed to get orders", err)
	}

	orders := []models.Order{}
	if err := s.withDetails(query).Preload("Customer").
		Order("created_at desc").
		Limit(pg.Limit).Offset(pg.Offset).
		Find(&orders).Error; err != nil {
		return nil, Upstream("Failed to get orders", err)
	}

	return &OrderPage{
		Orders:      orders,
		TotalPages:  pg.TotalPages(total),
		CurrentPage: pg.Page,
		Total:       total,
	}, nil
}

// UpdateStatus moves an order to a new fulfilment status and texts the
// customer. Admin only.
func (s *OrderService) UpdateStatus(ctx context.Context, p Principal, id string, status models.OrderStatus) (*models.Order, error) {
	if err := p.RequireAdmin(); err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, Validation("Invalid order status")
	}
	orderID, err := uuid.Parse(id)
	if err != nil {
		return nil, NotFound("Order not found")
	}

	res := s.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", orderID).Update("order_status", status)
	if res.Error != nil {
		return nil, Upstream("Failed to update order status", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, NotFound("Order not found")
	}

	order, err := s.Get(ctx, p, id)
	if err != nil {
		return nil, err
	}

	if s.notifier != nil {
		phone := ""
		if order.Customer != nil {
			phone = order.Customer.PhoneNumber
		}
		s.notifier.OrderStatusChanged(ctx, phone, order)
	}
	return order, nil
}

// PaymentUpdateInput is the client's report of a payment outcome.
type PaymentUpdateInput struct {
	PaymentStatus     models.PaymentStatus `json:"paymentStatus"`
	RazorpayPaymentID string               `json:"razorpayPaymentId"`
	RazorpaySignature string               `json:"razorpaySignature"`
}

// UpdatePayment records the payment outcome on the caller's order. Marking
// a gateway order COMPLETED requires a signature that verifies against the
// stored gateway order id. A COMPLETED payment is final.
func (s *OrderService) UpdatePayment(ctx context.Context, p Principal, id string, in PaymentUpdateInput) (*models.Order, error) {
	if !in.PaymentStatus.Valid() {
		return nil, Validation("Invalid payment status")
	}

	order, err := s.Get(ctx, p, id)
	if err != nil {
		return nil, err
	}
	if order.CustomerID != p.CustomerID {
		return nil, NotFound("Order not found")
	}
	if order.PaymentStatus == models.PaymentStatusCompleted {
		return nil, Validation("Payment already completed")
	}

	if in.PaymentStatus == models.PaymentStatusCompleted && order.PaymentMethod == models.PaymentMethodRazorpay {
		if order.RazorpayOrderID == "" || in.RazorpayPaymentID == "" {
			return nil, Validation("Payment verification failed")
		}
		if !VerifySignature(s.signingSecret, order.RazorpayOrderID, in.RazorpayPaymentID, in.RazorpaySignature) {
			utils.PaymentVerificationsTotal.WithLabelValues("rejected").Inc()
			return nil, Validation("Payment verification failed")
		}
	}

	updates := map[string]interface{}{"payment_status": in.PaymentStatus}
	if in.RazorpayPaymentID != "" {
		updates["razorpay_payment_id"] = in.RazorpayPaymentID
	}
	res := s.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND payment_status <> ?", order.ID, models.PaymentStatusCompleted).
		Updates(updates)
	if res.Error != nil {
		return nil, Upstream("Failed to update payment status", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, Validation("Payment already completed")
	}
	order.PaymentStatus = in.PaymentStatus
	if in.RazorpayPaymentID != "" {
		order.RazorpayPaymentID = in.RazorpayPaymentID
	}

	if s.notifier != nil {
		s.notifier.PaymentUpdated(ctx, order)
	}
	return order, nil
}
