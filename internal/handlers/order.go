package handlers

import (
	"context"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/example/storefront/internal/middleware"
	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/redisx"
	"github.com/example/storefront/internal/services"
	"github.com/example/storefront/internal/utils"
)

const (
	idempotencyHeader  = "Idempotency-Key"
	idempotentReplayed = "Idempotent-Replayed"
)

// OrderIdempotency remembers the order produced for a client retry key.
type OrderIdempotency interface {
	Claim(ctx context.Context, customerID, key string) (string, bool, error)
	Complete(ctx context.Context, customerID, key, orderID string) error
	Release(ctx context.Context, customerID, key string) error
}

// OrderHandler manages order endpoints.
type OrderHandler struct {
	orders *services.OrderService
	idem   OrderIdempotency
	logger *zap.Logger
}

// NewOrderHandler constructs OrderHandler. idem may be nil.
func NewOrderHandler(orders *services.OrderService, idem OrderIdempotency, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{orders: orders, idem: idem, logger: logger}
}

// CreateOrder allows authenticated users to place an order.
func (h *OrderHandler) CreateOrder(c *fiber.Ctx) error {
	principal, ok := middleware.CurrentPrincipal(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req services.PlaceOrderInput
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	ctx := c.UserContext()
	customerID := principal.CustomerID.String()
	key := strings.TrimSpace(c.Get(idempotencyHeader))
	claimed := false

	if h.idem != nil && key != "" {
		existing, ok, err := h.idem.Claim(ctx, customerID, key)
		switch {
		case errors.Is(err, redisx.ErrInFlight):
			return services.Conflict("A request with this Idempotency-Key is still being processed")
		case err != nil:
			h.logger.Warn("idempotency store unavailable", zap.Error(err))
		case !ok:
			order, err := h.orders.Get(ctx, principal, existing)
			if err != nil {
				return err
			}
			c.Set(idempotentReplayed, "true")
			return c.JSON(order)
		default:
			claimed = true
		}
	}

	result, err := h.orders.PlaceOrder(ctx, principal, req)
	if err != nil {
		if claimed {
			if rerr := h.idem.Release(ctx, customerID, key); rerr != nil {
				h.logger.Warn("failed to release idempotency key", zap.Error(rerr))
			}
		}
		return err
	}

	if claimed {
		if err := h.idem.Complete(ctx, customerID, key, result.Order.ID.String()); err != nil {
			h.logger.Warn("failed to store idempotency key", zap.Error(err))
		}
	}

	if failed := result.Notifications.Failed(); len(failed) > 0 {
		h.logger.Info("order placed with failed notifications",
			zap.String("order_id", result.Order.OrderID),
			zap.Strings("channels", failed))
	}

	return c.Status(fiber.StatusCreated).JSON(result.Order)
}

// ListOrders returns the caller's orders.
func (h *OrderHandler) ListOrders(c *fiber.Ctx) error {
	principal, ok := middleware.CurrentPrincipal(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	orders, err := h.orders.ListMine(c.UserContext(), principal)
	if err != nil {
		return err
	}

	return c.JSON(orders)
}

// GetOrder returns a single order of the caller, or any order for admins.
func (h *OrderHandler) GetOrder(c *fiber.Ctx) error {
	principal, ok := middleware.CurrentPrincipal(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	order, err := h.orders.Get(c.UserContext(), principal, c.Params("id"))
	if err != nil {
		return err
	}

	return c.JSON(order)
}

// ListAllOrders returns every order for the admin panel.
func (h *OrderHandler) ListAllOrders(c *fiber.Ctx) error {
	principal, ok := middleware.CurrentPrincipal(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	page, err := h.orders.ListAll(c.UserContext(), principal, c.Query("status"), utils.ParsePagination(c, 20))
	if err != nil {
		return err
	}

	return c.JSON(page)
}

type updateStatusRequest struct {
	OrderStatus models.OrderStatus `json:"orderStatus"`
}

// UpdateStatus changes the fulfilment status of an order.
func (h *OrderHandler) UpdateStatus(c *fiber.Ctx) error {
	principal, ok := middleware.CurrentPrincipal(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req updateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	order, err := h.orders.UpdateStatus(c.UserContext(), principal, c.Params("id"), req.OrderStatus)
	if err != nil {
		return err
	}

	return c.JSON(order)
}

// UpdatePayment records the payment outcome reported by the client.
func (h *OrderHandler) UpdatePayment(c *fiber.Ctx) error {
	principal, ok := middleware.CurrentPrincipal(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req services.PaymentUpdateInput
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	order, err := h.orders.UpdatePayment(c.UserContext(), principal, c.Params("id"), req)
	if err != nil {
		return err
	}

	return c.JSON(order)
}
