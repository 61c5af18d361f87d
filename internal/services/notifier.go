package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/utils"
)

const (
	ChannelSMS    = "sms"
	ChannelEmail  = "email"
	ChannelAdmin  = "admin"
	ChannelEvents = "events"
)

// ChannelResult is the outcome of one best-effort delivery.
type ChannelResult struct {
	Channel string
	Skipped bool
	Err     error
}

// NotificationReport records what happened to the side effects of a
// committed operation. It is logged, never returned as an error.
type NotificationReport struct {
	Results []ChannelResult
}

// Failed lists the channels whose delivery returned an error.
func (r NotificationReport) Failed() []string {
	var out []string
	for _, res := range r.Results {
		if res.Err != nil {
			out = append(out, res.Channel)
		}
	}
	return out
}

// Delivered lists the channels that were attempted and succeeded.
func (r NotificationReport) Delivered() []string {
	var out []string
	for _, res := range r.Results {
		if !res.Skipped && res.Err == nil {
			out = append(out, res.Channel)
		}
	}
	return out
}

// Notifier fans a committed order change out to the configured channels.
// Nil channels are skipped.
type Notifier struct {
	SMS     SMSSender
	Mail    Mailer
	Admin   AdminNotifier
	Events  EventPublisher
	Timeout time.Duration
	Logger  *zap.Logger
}

// OrderRecipient is who the customer-facing messages go to.
type OrderRecipient struct {
	Name        string
	PhoneNumber string
	Email       string
}

// OrderPlaced sends the receipt SMS and email, the admin alert and the
// order.placed event.
func (n *Notifier) OrderPlaced(ctx context.Context, to OrderRecipient, order *models.Order, names map[string]string) NotificationReport {
	var report NotificationReport

	report.add(n.run(ctx, ChannelSMS, n.SMS == nil, func(ctx context.Context) error {
		body := fmt.Sprintf("Order placed successfully! Order ID: %s. Total: ₹%s", order.OrderID, order.TotalAmount.String())
		return n.SMS.SendSMS(ctx, to.PhoneNumber, body)
	}))

	report.add(n.run(ctx, ChannelEmail, n.Mail == nil || to.Email == "", func(ctx context.Context) error {
		return n.Mail.SendMail(ctx, to.Email, "Order Confirmation", orderConfirmationHTML(order))
	}))

	report.add(n.run(ctx, ChannelAdmin, n.Admin == nil, func(ctx context.Context) error {
		items := make([]OrderItemNotification, 0, len(order.Products))
		for _, line := range order.Products {
			items = append(items, OrderItemNotification{
				Name:     names[line.ProductID.String()],
				Quantity: line.Quantity,
				Price:    line.Price,
			})
		}
		return n.Admin.NotifyNewOrder(ctx, OrderNotification{
			OrderID:       order.OrderID,
			Items:         items,
			TotalAmount:   order.TotalAmount,
			CustomerName:  to.Name,
			CustomerPhone: to.PhoneNumber,
			PaymentMethod: string(order.PaymentMethod),
			Status:        string(order.OrderStatus),
		})
	}))

	report.add(n.publish(ctx, EventOrderPlaced, order))

	n.log(order, EventOrderPlaced, report)
	return report
}

// OrderStatusChanged sends the status SMS and the order.status_changed event.
func (n *Notifier) OrderStatusChanged(ctx context.Context, phoneNumber string, order *models.Order) NotificationReport {
	var report NotificationReport

	report.add(n.run(ctx, ChannelSMS, n.SMS == nil || phoneNumber == "", func(ctx context.Context) error {
		body := fmt.Sprintf("Order %s status updated to: %s", order.OrderID, order.OrderStatus)
		return n.SMS.SendSMS(ctx, phoneNumber, body)
	}))
	report.add(n.publish(ctx, EventOrderStatusChanged, order))

	n.log(order, EventOrderStatusChanged, report)
	return report
}

// PaymentUpdated publishes the order.payment_updated event.
func (n *Notifier) PaymentUpdated(ctx context.Context, order *models.Order) NotificationReport {
	var report NotificationReport
	report.add(n.publish(ctx, EventOrderPaymentUpdate, order))
	n.log(order, EventOrderPaymentUpdate, report)
	return report
}

func (n *Notifier) publish(ctx context.Context, eventType string, order *models.Order) ChannelResult {
	return n.run(ctx, ChannelEvents, n.Events == nil, func(ctx context.Context) error {
		return n.Events.Publish(ctx, OrderEvent{
			Type:          eventType,
			ID:            order.ID,
			OrderID:       order.OrderID,
			CustomerID:    order.CustomerID,
			TotalAmount:   order.TotalAmount.String(),
			OrderStatus:   string(order.OrderStatus),
			PaymentStatus: string(order.PaymentStatus),
			OccurredAt:    time.Now().UTC(),
		})
	})
}

// run executes one delivery detached from the caller's cancellation, since
// the parent operation has already committed.
func (n *Notifier) run(ctx context.Context, channel string, skip bool, fn func(context.Context) error) ChannelResult {
	if skip {
		return ChannelResult{Channel: channel, Skipped: true}
	}

	timeout := n.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()

	err := fn(ctx)
	if err != nil {
		utils.NotificationsFailedTotal.WithLabelValues(channel).Inc()
	}
	return ChannelResult{Channel: channel, Err: err}
}

func (n *Notifier) log(order *models.Order, event string, report NotificationReport) {
	logger := n.Logger
	if logger == nil {
		logger = utils.GetLogger()
	}
	for _, res := range report.Results {
		if res.Err != nil {
			logger.Warn("notification failed",
				zap.String("event", event),
				zap.String("order_id", order.OrderID),
				zap.String("channel", res.Channel),
				zap.Error(res.Err))
		}
	}
	logger.Debug("notifications dispatched",
		zap.String("event", event),
		zap.String("order_id", order.OrderID),
		zap.Strings("delivered", report.Delivered()))
}

func (r *NotificationReport) add(res ChannelResult) {
	r.Results = append(r.Results, res)
}

func orderConfirmationHTML(order *models.Order) string {
	return fmt.Sprintf(`<h2>Order Confirmation</h2>
<p>Your order has been placed successfully!</p>
<p><strong>Order ID:</strong> %s</p>
<p><strong>Total Amount:</strong> ₹%s</p>
<p><strong>Payment Method:</strong> %s</p>
<p>Thank you for shopping with us!</p>`,
		order.OrderID, order.TotalAmount.String(), order.PaymentMethod)
}
