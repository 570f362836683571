package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/escriba-app/escriba/internal"
	"github.com/escriba-app/escriba/internal/billing"
	"github.com/escriba-app/escriba/internal/handler/api"
	"github.com/escriba-app/escriba/internal/handler/webhook"
	"github.com/escriba-app/escriba/internal/middleware"
	"github.com/escriba-app/escriba/internal/router"
	"github.com/escriba-app/escriba/internal/service"
	"github.com/escriba-app/escriba/internal/store"
	"github.com/escriba-app/escriba/internal/telemetry"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func run() error {
	ctx := context.Background()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Initialize database/sql connection for migrations
	logger.Info("Connecting to database...")
	sqlDB, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer sqlDB.Close()

	// Verify database connection
	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	logger.Info("Database connection established")

	// Run migrations
	logger.Info("Running database migrations...")
	if err := internal.RunMigrations(sqlDB); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("Database migrations completed successfully")

	// Initialize pgx connection pool for application
	pool, err := pgxpool.New(ctx, cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}
	defer pool.Close()

	st := store.NewPostgresStore(pool)

	// Initialize the MercadoPago gateway. Missing credentials degrade the
	// service rather than killing it: checkout returns 503 while webhook
	// processing, listing, and the plan catalog keep working.
	var gateway billing.Gateway
	gwConfig := cfg.GatewayConfig()
	if cfg.MercadoPago.Configured() {
		mp, err := billing.NewMercadoPagoGateway(gwConfig)
		if err != nil {
			return fmt.Errorf("failed to initialize MercadoPago gateway: %w", err)
		}
		gateway = mp
		logger.Info("MercadoPago gateway initialized", "test_mode", gwConfig.IsTestMode())
	} else {
		logger.Warn("MP_ACCESS_TOKEN not set, checkout is disabled")
	}

	// Initialize business metrics
	telemetry.InitBusinessMetrics("escriba")

	// Initialize subscription service
	subscriptionService := service.NewSubscriptionService(st, gateway, logger, service.CheckoutConfig{
		BackURL:         cfg.MercadoPago.BackURL,
		NotificationURL: cfg.MercadoPago.NotificationURL,
	})
	logger.Info("Subscription service initialized")

	// Handlers
	subscriptionHandler := api.NewSubscriptionHandler(subscriptionService, logger)
	webhookHandler := webhook.NewMercadoPagoHandler(subscriptionService, logger)

	// Initialize Prometheus metrics
	metrics := middleware.NewMetrics("escriba")

	r := router.New(
		router.Recovery(logger),
		middleware.RequestID,
		metrics.Middleware,
		router.Logger(logger),
	)

	// Metrics endpoint (no auth required, but should be protected in production via firewall)
	r.Get("/metrics", func(w http.ResponseWriter, req *http.Request) {
		metrics.Handler().ServeHTTP(w, req)
	})

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Billing API
	apiRouter := r
	if len(cfg.CORSOrigins) > 0 {
		apiRouter = r.Group(router.CORS(cfg.CORSOrigins))
	}
	apiRouter.Post("/api/checkout", subscriptionHandler.CreateCheckout)
	apiRouter.Get("/api/orders", subscriptionHandler.ListOrders)
	apiRouter.Get("/api/orders/{id}", subscriptionHandler.GetOrderStatus)
	apiRouter.Get("/api/plans", subscriptionHandler.ListPlans)

	// Gateway notifications
	r.Post("/webhooks/mercadopago", webhookHandler.HandleNotification)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logger.Info("Starting server", "address", addr)

	if err := http.ListenAndServe(addr, r); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
