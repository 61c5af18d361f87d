package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/example/storefront/internal/middleware"
	"github.com/example/storefront/internal/services"
)

// AdminHandler manages admin-only endpoints.
type AdminHandler struct {
	admin *services.AdminService
}

// NewAdminHandler constructs AdminHandler.
func NewAdminHandler(admin *services.AdminService) *AdminHandler {
	return &AdminHandler{admin: admin}
}

// DashboardStats returns aggregate statistics for the admin dashboard.
func (h *AdminHandler) DashboardStats(c *fiber.Ctx) error {
	principal, ok := middleware.CurrentPrincipal(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	stats, err := h.admin.Stats(c.UserContext(), principal)
	if err != nil {
		return err
	}

	return c.JSON(stats)
}
