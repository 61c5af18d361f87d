package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/example/storefront/internal/config"
	"github.com/example/storefront/internal/database"
	"github.com/example/storefront/internal/handlers"
	"github.com/example/storefront/internal/middleware"
	"github.com/example/storefront/internal/redisx"
	"github.com/example/storefront/internal/routes"
	"github.com/example/storefront/internal/services"
	"github.com/example/storefront/internal/utils"
)

const serviceName = "storefront"

func main() {
	cfg := config.Load()

	if err := utils.InitLogger(cfg.Env); err != nil {
		panic(err)
	}
	defer utils.SyncLogger()
	log := utils.GetLogger()

	decimal.MarshalJSONWithoutQuotes = true

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.OTLPEndpoint != "" {
		tp, err := utils.InitTracer(ctx, serviceName, cfg.OTLPEndpoint)
		if err != nil {
			log.Warn("tracing disabled", zap.Error(err))
		} else {
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = tp.Shutdown(shutdownCtx)
			}()
		}
	}

	db, err := database.Connect(ctx, cfg.DatabaseURL, !cfg.IsProduction())
	if err != nil {
		log.Fatal("database connection failed", zap.Error(err))
	}

	var sms services.SMSSender = services.LogSMSSender{Logger: log}
	if cfg.TwilioAccountSID != "" && cfg.TwilioAuthToken != "" {
		sms = services.NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber)
	} else {
		log.Warn("twilio not configured, SMS will only be logged")
	}

	notifier := &services.Notifier{SMS: sms, Timeout: 5 * time.Second, Logger: log}
	if cfg.SMTPUsername != "" {
		notifier.Mail = services.NewSMTPMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword, cfg.SMTPFrom)
	}
	if cfg.TelegramBotToken != "" && cfg.TelegramAdminChat != "" {
		notifier.Admin = services.NewTelegramService(cfg.TelegramBotToken, cfg.TelegramAdminChat)
	}
	if len(cfg.KafkaBrokers) > 0 {
		publisher := services.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer func() {
			if err := publisher.Close(); err != nil {
				log.Warn("kafka writer close failed", zap.Error(err))
			}
		}()
		notifier.Events = publisher
	}

	var (
		limiter services.OTPLimiter
		idem    handlers.OrderIdempotency
	)
	if cfg.RedisAddr != "" {
		rdb := redisx.New(cfg.RedisAddr, cfg.RedisPassword)
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn("redis unavailable, cooldown and idempotency disabled", zap.Error(err))
			_ = rdb.Close()
		} else {
			defer func(rdb *redis.Client) { _ = rdb.Close() }(rdb)
			limiter = redisx.NewCooldownLimiter(rdb, cfg.OTPCooldown)
			idem = redisx.NewOrderIdempotency(rdb)
		}
	}

	var gateway services.PaymentGateway
	if cfg.RazorpayKeyID != "" && cfg.RazorpayKeySecret != "" {
		gateway = services.NewRazorpayGateway(cfg.RazorpayKeyID, cfg.RazorpayKeySecret)
	} else {
		log.Warn("razorpay not configured, gateway orders disabled")
	}

	var media services.MediaUploader
	if cfg.CloudinaryCloudName != "" {
		uploader, err := services.NewCloudinaryUploader(cfg.CloudinaryCloudName, cfg.CloudinaryAPIKey, cfg.CloudinaryAPISecret)
		if err != nil {
			log.Warn("cloudinary unavailable, image uploads disabled", zap.Error(err))
		} else {
			media = uploader
		}
	}

	authService := services.NewAuthService(db, sms, limiter, services.AuthConfig{
		JWTSecret: cfg.JWTSecret,
		TokenTTL:  cfg.TokenExpires,
		OTPTTL:    cfg.OTPTTL,
	}, log)

	go authService.RunSweeper(ctx, time.Minute)

	app := fiber.New(fiber.Config{
		AppName:      "Storefront Backend",
		ErrorHandler: routes.ErrorHandler(log),
		BodyLimit:    20 * 1024 * 1024,
	})

	app.Use(recover.New())
	app.Use(requestid.New())
	app.Use(logger.New())
	app.Use(middleware.Metrics())

	routes.Register(app, routes.Deps{
		DB:          db,
		Auth:        authService,
		Orders:      services.NewOrderService(db, notifier, cfg.RazorpayKeySecret, log),
		Payments:    services.NewPaymentService(gateway, cfg.RazorpayKeySecret, log),
		Addresses:   services.NewAddressService(db),
		Catalog:     services.NewCatalogService(db, media, log),
		Admin:       services.NewAdminService(db),
		Idempotency: idem,
		Logger:      log,
	})

	go func() {
		<-ctx.Done()
		log.Info("shutting down")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Warn("fiber shutdown failed", zap.Error(err))
		}
	}()

	log.Info("starting server", zap.String("port", cfg.AppPort), zap.String("env", cfg.Env))
	if err := app.Listen(":" + cfg.AppPort); err != nil {
		log.Error("fiber.Listen error", zap.Error(err))
	}
}
