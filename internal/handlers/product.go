package handlers

import (
	"encoding/json"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/example/storefront/internal/middleware"
	"github.com/example/storefront/internal/services"
	"github.com/example/storefront/internal/utils"
)

// ProductHandler handles product CRUD operations.
type ProductHandler struct {
	catalog *services.CatalogService
}

// NewProductHandler constructs ProductHandler.
func NewProductHandler(catalog *services.CatalogService) *ProductHandler {
	return &ProductHandler{catalog: catalog}
}

// ListProducts returns active products filtered by category and search.
func (h *ProductHandler) ListProducts(c *fiber.Ctx) error {
	page, err := h.catalog.ListProducts(c.UserContext(), services.ProductFilter{
		Category: c.Query("category"),
		Search:   c.Query("search"),
	}, utils.ParsePagination(c, 12))
	if err != nil {
		return err
	}

	return c.JSON(page)
}

// GetProduct returns a single product with its category.
func (h *ProductHandler) GetProduct(c *fiber.Ctx) error {
	product, err := h.catalog.GetProduct(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}

	return c.JSON(product)
}

// productRequest accepts both JSON bodies and multipart forms. Numbers arrive
// as strings in forms, so they are decoded through json.Number.
type productRequest struct {
	Name           string            `json:"name" form:"name"`
	Description    string            `json:"description" form:"description"`
	Price          json.Number       `json:"price" form:"price"`
	DiscountPrice  json.Number       `json:"discountPrice" form:"discountPrice"`
	Category       string            `json:"category" form:"category"`
	Stock          json.Number       `json:"stock" form:"stock"`
	Specifications map[string]string `json:"specifications" form:"-"`
}

func parseProductRequest(c *fiber.Ctx) (services.ProductInput, error) {
	var req productRequest
	if err := c.BodyParser(&req); err != nil {
		return services.ProductInput{}, fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if isMultipart(c) {
		if raw := c.FormValue("specifications"); raw != "" {
			if err := json.Unmarshal([]byte(raw), &req.Specifications); err != nil {
				return services.ProductInput{}, fiber.NewError(fiber.StatusBadRequest, "invalid specifications")
			}
		}
	}

	price, err := parseAmount(req.Price)
	if err != nil {
		return services.ProductInput{}, fiber.NewError(fiber.StatusBadRequest, "invalid price")
	}
	discount, err := parseAmount(req.DiscountPrice)
	if err != nil {
		return services.ProductInput{}, fiber.NewError(fiber.StatusBadRequest, "invalid discount price")
	}
	stock := 0
	if req.Stock != "" {
		stock, err = strconv.Atoi(req.Stock.String())
		if err != nil {
			return services.ProductInput{}, fiber.NewError(fiber.StatusBadRequest, "invalid stock")
		}
	}

	return services.ProductInput{
		Name:           req.Name,
		Description:    req.Description,
		Price:          price,
		DiscountPrice:  discount,
		Category:       req.Category,
		Stock:          stock,
		Specifications: req.Specifications,
	}, nil
}

func parseAmount(n json.Number) (decimal.Decimal, error) {
	if n == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(n.String())
}

// CreateProduct handles product creation.
func (h *ProductHandler) CreateProduct(c *fiber.Ctx) error {
	principal, ok := middleware.CurrentPrincipal(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	in, err := parseProductRequest(c)
	if err != nil {
		return err
	}

	images, closeImages, err := formUploads(c, "images")
	if err != nil {
		return err
	}
	defer closeImages()

	product, err := h.catalog.CreateProduct(c.UserContext(), principal, in, images)
	if err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(product)
}

// UpdateProduct replaces product fields, and images when new ones are sent.
func (h *ProductHandler) UpdateProduct(c *fiber.Ctx) error {
	principal, ok := middleware.CurrentPrincipal(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	in, err := parseProductRequest(c)
	if err != nil {
		return err
	}

	images, closeImages, err := formUploads(c, "images")
	if err != nil {
		return err
	}
	defer closeImages()

	product, err := h.catalog.UpdateProduct(c.UserContext(), principal, c.Params("id"), in, images)
	if err != nil {
		return err
	}

	return c.JSON(product)
}

// DeleteProduct hides a product.
func (h *ProductHandler) DeleteProduct(c *fiber.Ctx) error {
	principal, ok := middleware.CurrentPrincipal(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	if err := h.catalog.DeleteProduct(c.UserContext(), principal, c.Params("id")); err != nil {
		return err
	}

	return c.JSON(fiber.Map{"message": "Product deleted successfully"})
}

// RegisterProductRoutes attaches product routes; admin guards the writes.
func (h *ProductHandler) RegisterProductRoutes(router fiber.Router, admin ...fiber.Handler) {
	router.Get("/", h.ListProducts)
	router.Get("/:id", h.GetProduct)
	router.Post("/", append(admin, h.CreateProduct)...)
	router.Put("/:id", append(admin, h.UpdateProduct)...)
	router.Delete("/:id", append(admin, h.DeleteProduct)...)
}
