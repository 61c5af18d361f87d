package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/example/storefront/internal/middleware"
	"github.com/example/storefront/internal/models"
	"github.com/example/storefront/internal/services"
)

// AuthHandler bundles dependencies for authentication endpoints.
type AuthHandler struct {
	auth *services.AuthService
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(auth *services.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

type sendOTPRequest struct {
	PhoneNumber string `json:"phoneNumber"`
}

// SendOTP issues a login code to the phone number.
func (h *AuthHandler) SendOTP(c *fiber.Ctx) error {
	var req sendOTPRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if err := h.auth.SendOTP(c.UserContext(), req.PhoneNumber); err != nil {
		return err
	}

	return c.JSON(fiber.Map{"message": "OTP sent successfully"})
}

type verifyOTPRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	OTP         string `json:"otp"`
}

// VerifyOTP logs the customer in, creating the account on first login.
func (h *AuthHandler) VerifyOTP(c *fiber.Ctx) error {
	var req verifyOTPRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	result, err := h.auth.VerifyOTP(c.UserContext(), req.PhoneNumber, req.OTP)
	if err != nil {
		return err
	}

	return c.JSON(result)
}

type meResponse struct {
	services.CustomerView
	Addresses []models.Address `json:"addresses"`
	Orders    []models.Order   `json:"orders"`
}

// Me returns the caller's profile with addresses and orders.
func (h *AuthHandler) Me(c *fiber.Ctx) error {
	principal, ok := middleware.CurrentPrincipal(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	customer, err := h.auth.Me(c.UserContext(), principal)
	if err != nil {
		return err
	}

	resp := meResponse{
		CustomerView: services.NewCustomerView(customer),
		Addresses:    customer.Addresses,
		Orders:       customer.Orders,
	}
	if resp.Addresses == nil {
		resp.Addresses = []models.Address{}
	}
	if resp.Orders == nil {
		resp.Orders = []models.Order{}
	}
	return c.JSON(resp)
}

type updateProfileRequest struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
}

// UpdateProfile changes the caller's name and email.
func (h *AuthHandler) UpdateProfile(c *fiber.Ctx) error {
	principal, ok := middleware.CurrentPrincipal(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req updateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	customer, err := h.auth.UpdateProfile(c.UserContext(), principal, services.ProfileUpdate{
		Name:  req.Name,
		Email: req.Email,
	})
	if err != nil {
		return err
	}

	return c.JSON(services.NewCustomerView(customer))
}
