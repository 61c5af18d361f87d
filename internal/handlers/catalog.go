package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/example/storefront/internal/middleware"
	"github.com/example/storefront/internal/services"
)

// CatalogHandler manages categories.
type CatalogHandler struct {
	catalog *services.CatalogService
}

// NewCatalogHandler constructs CatalogHandler.
func NewCatalogHandler(catalog *services.CatalogService) *CatalogHandler {
	return &CatalogHandler{catalog: catalog}
}

// ListCategories returns active categories sorted by name.
func (h *CatalogHandler) ListCategories(c *fiber.Ctx) error {
	categories, err := h.catalog.ListCategories(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(categories)
}

// GetCategory returns a single category by ID.
func (h *CatalogHandler) GetCategory(c *fiber.Ctx) error {
	category, err := h.catalog.GetCategory(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(category)
}

type categoryRequest struct {
	Name        string `json:"name" form:"name"`
	Description string `json:"description" form:"description"`
}

func (h *CatalogHandler) parseCategory(c *fiber.Ctx) (services.CategoryInput, *services.Upload, func(), error) {
	var req categoryRequest
	if err := c.BodyParser(&req); err != nil {
		return services.CategoryInput{}, nil, func() {}, fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	uploads, closeUploads, err := formUploads(c, "image")
	if err != nil {
		return services.CategoryInput{}, nil, closeUploads, err
	}

	var image *services.Upload
	if len(uploads) > 0 {
		image = &uploads[0]
	}
	return services.CategoryInput{Name: req.Name, Description: req.Description}, image, closeUploads, nil
}

// CreateCategory creates a category.
func (h *CatalogHandler) CreateCategory(c *fiber.Ctx) error {
	principal, ok := middleware.CurrentPrincipal(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	in, image, done, err := h.parseCategory(c)
	defer done()
	if err != nil {
		return err
	}

	category, err := h.catalog.CreateCategory(c.UserContext(), principal, in, image)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(category)
}

// UpdateCategory updates a category.
func (h *CatalogHandler) UpdateCategory(c *fiber.Ctx) error {
	principal, ok := middleware.CurrentPrincipal(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	in, image, done, err := h.parseCategory(c)
	defer done()
	if err != nil {
		return err
	}

	category, err := h.catalog.UpdateCategory(c.UserContext(), principal, c.Params("id"), in, image)
	if err != nil {
		return err
	}
	return c.JSON(category)
}

// DeleteCategory hides a category.
func (h *CatalogHandler) DeleteCategory(c *fiber.Ctx) error {
	principal, ok := middleware.CurrentPrincipal(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	if err := h.catalog.DeleteCategory(c.UserContext(), principal, c.Params("id")); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"message": "Category deleted successfully"})
}
