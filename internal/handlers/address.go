package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/example/storefront/internal/middleware"
	"github.com/example/storefront/internal/services"
)

// AddressHandler manages the caller's delivery addresses.
type AddressHandler struct {
	addresses *services.AddressService
}

// NewAddressHandler constructs AddressHandler.
func NewAddressHandler(addresses *services.AddressService) *AddressHandler {
	return &AddressHandler{addresses: addresses}
}

// ListAddresses returns user addresses.
func (h *AddressHandler) ListAddresses(c *fiber.Ctx) error {
	principal, ok := middleware.CurrentPrincipal(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	addresses, err := h.addresses.List(c.UserContext(), principal)
	if err != nil {
		return err
	}

	return c.JSON(addresses)
}

// CreateAddress creates an address for the user.
func (h *AddressHandler) CreateAddress(c *fiber.Ctx) error {
	principal, ok := middleware.CurrentPrincipal(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req services.AddressInput
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	address, err := h.addresses.Create(c.UserContext(), principal, req)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(address)
}

// UpdateAddress patches an existing address.
func (h *AddressHandler) UpdateAddress(c *fiber.Ctx) error {
	principal, ok := middleware.CurrentPrincipal(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req services.AddressPatch
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	address, err := h.addresses.Update(c.UserContext(), principal, c.Params("id"), req)
	if err != nil {
		return err
	}

	return c.JSON(address)
}

// DeleteAddress removes an address.
func (h *AddressHandler) DeleteAddress(c *fiber.Ctx) error {
	principal, ok := middleware.CurrentPrincipal(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	if err := h.addresses.Delete(c.UserContext(), principal, c.Params("id")); err != nil {
		return err
	}

	return c.JSON(fiber.Map{"message": "Address deleted successfully"})
}
