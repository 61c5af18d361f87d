package routes

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/example/storefront/internal/database"
	"github.com/example/storefront/internal/handlers"
	"github.com/example/storefront/internal/middleware"
	"github.com/example/storefront/internal/services"
)

// Deps are the configured services the HTTP layer is built from.
type Deps struct {
	DB          *gorm.DB
	Auth        *services.AuthService
	Orders      *services.OrderService
	Payments    *services.PaymentService
	Addresses   *services.AddressService
	Catalog     *services.CatalogService
	Admin       *services.AdminService
	Idempotency handlers.OrderIdempotency
	Logger      *zap.Logger
}

// Register wires up all HTTP routes.
func Register(app *fiber.App, d Deps) {
	authHandler := handlers.NewAuthHandler(d.Auth)
	catalogHandler := handlers.NewCatalogHandler(d.Catalog)
	productHandler := handlers.NewProductHandler(d.Catalog)
	orderHandler := handlers.NewOrderHandler(d.Orders, d.Idempotency, d.Logger)
	paymentHandler := handlers.NewPaymentHandler(d.Payments)
	addressHandler := handlers.NewAddressHandler(d.Addresses)
	adminHandler := handlers.NewAdminHandler(d.Admin)

	app.Get("/healthz", healthz(d.DB))
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	api := app.Group("/api")

	authRequired := middleware.Authenticate(d.Auth)
	adminOnly := middleware.RequireAdmin()

	// Auth routes
	auth := api.Group("/auth")
	auth.Post("/send-otp", authHandler.SendOTP)
	auth.Post("/verify-otp", authHandler.VerifyOTP)
	auth.Get("/me", authRequired, authHandler.Me)
	auth.Put("/profile", authRequired, authHandler.UpdateProfile)

	// Catalog routes
	categories := api.Group("/categories")
	categories.Get("/", catalogHandler.ListCategories)
	categories.Get("/:id", catalogHandler.GetCategory)
	categories.Post("/", authRequired, adminOnly, catalogHandler.CreateCategory)
	categories.Put("/:id", authRequired, adminOnly, catalogHandler.UpdateCategory)
	categories.Delete("/:id", authRequired, adminOnly, catalogHandler.DeleteCategory)

	products := api.Group("/products")
	productHandler.RegisterProductRoutes(products, authRequired, adminOnly)

	// Customer routes
	customers := api.Group("/customers", authRequired)
	customers.Get("/addresses", addressHandler.ListAddresses)
	customers.Post("/addresses", addressHandler.CreateAddress)
	customers.Put("/addresses/:id", addressHandler.UpdateAddress)
	customers.Delete("/addresses/:id", addressHandler.DeleteAddress)

	// Order routes; fixed paths before /:id
	orders := api.Group("/orders", authRequired)
	orders.Post("/", orderHandler.CreateOrder)
	orders.Get("/my-orders", orderHandler.ListOrders)
	orders.Get("/admin/all", adminOnly, orderHandler.ListAllOrders)
	orders.Get("/:id", orderHandler.GetOrder)
	orders.Put("/:id/status", adminOnly, orderHandler.UpdateStatus)
	orders.Put("/:id/payment", orderHandler.UpdatePayment)

	payment := api.Group("/payment", authRequired)
	payment.Post("/create-order", paymentHandler.CreateOrder)
	payment.Post("/verify", paymentHandler.Verify)

	admin := api.Group("/admin", authRequired, adminOnly)
	admin.Get("/stats", adminHandler.DashboardStats)
}

func healthz(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()

		if err := database.Ping(ctx, db); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unavailable"})
		}
		return c.JSON(fiber.Map{"status": "ok"})
	}
}

// ErrorHandler maps service and fiber errors to a {"message": ...} body.
func ErrorHandler(logger *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(fiber.Map{"message": fe.Message})
		}

		var se *services.Error
		if errors.As(err, &se) {
			status := statusFor(se.Kind)
			if status >= fiber.StatusInternalServerError {
				logger.Error("request failed",
					zap.String("method", c.Method()),
					zap.String("path", c.Path()),
					zap.Error(err))
			}
			return c.Status(status).JSON(fiber.Map{"message": se.Message})
		}

		logger.Error("unhandled error",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"message": "Internal server error"})
	}
}

func statusFor(kind services.Kind) int {
	switch kind {
	case services.KindNotFound:
		return fiber.StatusNotFound
	case services.KindUnauthorized:
		return fiber.StatusUnauthorized
	case services.KindForbidden:
		return fiber.StatusForbidden
	case services.KindValidation:
		return fiber.StatusBadRequest
	case services.KindConflict:
		return fiber.StatusConflict
	case services.KindRateLimited:
		return fiber.StatusTooManyRequests
	default:
		return fiber.StatusInternalServerError
	}
}
