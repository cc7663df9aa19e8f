package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bluelagoon/travel-booking-backend/internal/cache"
	"github.com/bluelagoon/travel-booking-backend/internal/config"
	"github.com/bluelagoon/travel-booking-backend/internal/database"
	"github.com/bluelagoon/travel-booking-backend/internal/events"
	"github.com/bluelagoon/travel-booking-backend/internal/handlers"
	"github.com/bluelagoon/travel-booking-backend/internal/middleware"
	"github.com/bluelagoon/travel-booking-backend/internal/models"
	"github.com/bluelagoon/travel-booking-backend/internal/services"
	"github.com/bluelagoon/travel-booking-backend/pkg/jwt"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	logger.Info("Starting Blue Lagoon booking backend")
	logger.Infof("Version: %s, Build Time: %s", version, buildTime)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	logLevel, err := logrus.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		logger.Warn("Invalid log level, using INFO")
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// Database
	logger.WithField("driver", cfg.Database.Driver).Info("Connecting to database...")
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	logger.Info("Database connection established")

	// Redis is optional: without it webhook dedupe is disabled and events cannot use streams
	var redisClient *redis.Client
	if cfg.Redis.URL != "" {
		redisClient, err = cache.NewRedisClient(context.Background(), cfg.Redis.URL)
		if err != nil {
			logger.WithError(err).Warn("Redis unavailable, continuing without webhook dedupe")
			redisClient = nil
		} else {
			defer redisClient.Close()
			logger.Info("Redis connection established")
		}
	}

	publisher, err := events.NewPublisherFromConfig(cfg.Events, redisClient, logger)
	if err != nil {
		logger.Fatalf("Failed to create event publisher: %v", err)
	}
	defer publisher.Close()

	// Services
	logger.Info("Initializing services...")
	store := database.NewPostgresStore(db.DB)
	auditRepo := database.NewPaymentAuditRepository(db.DB, logger)
	jwtService := jwt.NewService(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.AccessTokenExpiry)

	pricingService := services.NewPricingService(store)
	availabilityService := services.NewAvailabilityService(store)
	bookingService := services.NewBookingService(store, publisher, cfg.Booking, logger)
	ledgerService := services.NewLedgerService(store, auditRepo, publisher, cfg.Booking, cfg.Paystack.Currency, logger)
	paystackService := services.NewPaystackService(&cfg.Paystack, logger)
	paymentService := services.NewPaymentService(store, ledgerService, paystackService, auditRepo, &cfg.Paystack, logger)
	webhookService := services.NewWebhookService(
		ledgerService,
		paystackService,
		cache.NewWebhookDeduplicator(redisClient, cfg.Redis.WebhookDedupeTTL, logger),
		auditRepo,
		logger,
	)
	logger.Info("Services initialized")

	// Handlers
	bookingHandler := handlers.NewBookingHandler(bookingService, logger)
	paymentHandler := handlers.NewPaymentHandler(paymentService, logger)
	webhookHandler := handlers.NewWebhookHandler(webhookService, logger)
	packageHandler := handlers.NewPackageHandler(pricingService, availabilityService, logger)
	auditHandler := handlers.NewAuditHandler(auditRepo, logger)

	optionalChecks := map[string]handlers.HealthCheck{}
	if redisClient != nil {
		optionalChecks["redis"] = func(ctx context.Context) error { return cache.HealthCheck(ctx, redisClient) }
	}
	healthHandler := handlers.NewHealthHandler(version, store.Ping, optionalChecks)

	// Initialize Gin router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	if cfg.Security.EnableRequestLog {
		router.Use(middleware.RequestLogger(logger))
	}

	corsConfig := cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		ExposeHeaders:    []string{"Content-Length", middleware.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	router.Use(cors.New(corsConfig))

	router.GET("/health", healthHandler.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	requireAuth := middleware.AuthMiddleware(jwtService, logger)
	optionalAuth := middleware.OptionalAuth(jwtService, logger)
	adminOnly := middleware.RequireRole(models.RoleAdmin)

	v1 := router.Group("/api/v1")
	{
		packages := v1.Group("/packages")
		{
			packages.GET("/:id/quote", packageHandler.Quote)
			packages.GET("/:id/availability", packageHandler.Availability)
		}

		bookings := v1.Group("/bookings")
		{
			// Guests may book and pay; their bookings are addressed by id or reference
			bookings.POST("", optionalAuth, bookingHandler.CreateBooking)
			bookings.GET("", requireAuth, bookingHandler.ListMyBookings)
			bookings.GET("/reference/:reference", optionalAuth, bookingHandler.GetBookingByReference)
			bookings.GET("/:id", optionalAuth, bookingHandler.GetBooking)
			bookings.POST("/:id/cancel", optionalAuth, bookingHandler.CancelBooking)
			bookings.POST("/:id/confirm", requireAuth, adminOnly, bookingHandler.ConfirmBooking)
			bookings.POST("/:id/complete", requireAuth, adminOnly, bookingHandler.CompleteBooking)
			bookings.POST("/:id/travelers", optionalAuth, bookingHandler.AddTraveler)
			bookings.PUT("/:id/travelers/:traveler_id", optionalAuth, bookingHandler.UpdateTraveler)
			bookings.DELETE("/:id/travelers/:traveler_id", optionalAuth, bookingHandler.RemoveTraveler)
			bookings.POST("/:id/payments", optionalAuth, paymentHandler.InitializePayment)
			bookings.GET("/:id/payments", optionalAuth, paymentHandler.ListPayments)
		}

		payments := v1.Group("/payments")
		{
			payments.GET("/verify/:reference", optionalAuth, paymentHandler.VerifyPayment)
			payments.GET("/fee", paymentHandler.ProcessingFee)
		}

		webhooks := v1.Group("/webhooks")
		{
			webhooks.POST("/paystack", webhookHandler.HandlePaystack)
		}

		admin := v1.Group("/admin", requireAuth, adminOnly)
		{
			admin.GET("/bookings", bookingHandler.ListAllBookings)
			admin.GET("/payments/mismatches", auditHandler.ListMismatches)
			admin.GET("/payments/:reference/audit", auditHandler.ListTrail)
		}
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.Paystack.Timeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Infof("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited successfully")
}
