package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/example/storefront/internal/services"
)

// PaymentHandler exposes the gateway order and signature check endpoints.
type PaymentHandler struct {
	payments *services.PaymentService
}

func NewPaymentHandler(payments *services.PaymentService) *PaymentHandler {
	return &PaymentHandler{payments: payments}
}

type createPaymentOrderRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// CreateOrder opens a pending charge at the gateway.
func (h *PaymentHandler) CreateOrder(c *fiber.Ctx) error {
	var req createPaymentOrderRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	order, err := h.payments.CreateGatewayOrder(c.UserContext(), req.Amount)
	if err != nil {
		return err
	}

	return c.JSON(order)
}

// Verify checks the signature the gateway returned to the client.
func (h *PaymentHandler) Verify(c *fiber.Ctx) error {
	var req services.VerifyPaymentInput
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.payments.Verify(c.UserContext(), req)
	if err != nil {
		if services.KindOf(err) == services.KindValidation {
			return c.Status(fiber.StatusBadRequest).JSON(services.VerifyPaymentResult{
				Success: false,
				Message: "Payment verification failed",
			})
		}
		return err
	}

	return c.JSON(result)
}
