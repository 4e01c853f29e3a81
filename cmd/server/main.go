package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/calloway/stitch/internal"
	"github.com/calloway/stitch/internal/address"
	"github.com/calloway/stitch/internal/events"
	"github.com/calloway/stitch/internal/gateway"
	"github.com/calloway/stitch/internal/handler/api"
	"github.com/calloway/stitch/internal/handler/webhook"
	"github.com/calloway/stitch/internal/middleware"
	"github.com/calloway/stitch/internal/postgres"
	"github.com/calloway/stitch/internal/router"
	"github.com/calloway/stitch/internal/routes"
	"github.com/calloway/stitch/internal/service"
	"github.com/calloway/stitch/internal/shipping"
	"github.com/calloway/stitch/internal/tax"
	"github.com/calloway/stitch/internal/telemetry"
	"github.com/calloway/stitch/internal/token"
	"github.com/calloway/stitch/internal/worker"
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

	// Initialize pgx connection pool for the application
	pool, err := postgres.NewPool(ctx, cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}
	defer pool.Close()

	// Stores
	sessionStore := postgres.NewSessionStore(pool)
	userStore := postgres.NewUserStore(pool)
	cartStore := postgres.NewCartStore(pool)
	catalog := postgres.NewCatalog(pool)
	promoStore := postgres.NewPromoStore(pool)
	orderStore := postgres.NewOrderStore(pool)
	conversionStore := postgres.NewConversionStore(pool)

	// Event publisher: NATS when configured, otherwise a no-op
	var publisher events.Publisher = events.NewNopPublisher()
	if cfg.NATSUrl != "" {
		natsPub, err := events.NewNATSPublisher(cfg.NATSUrl, logger)
		if err != nil {
			return fmt.Errorf("failed to connect to NATS: %w", err)
		}
		defer natsPub.Close()
		publisher = natsPub
		logger.Info("NATS publisher connected", "url", cfg.NATSUrl)
	} else {
		logger.Info("No NATS_URL configured, events are discarded")
	}

	// Payment gateway
	provider := gateway.NewStripeProvider(
		cfg.Gateway.SecretKey,
		cfg.Gateway.PublishableKey,
		cfg.Gateway.WebhookSecret,
		logger,
	)

	// Pricing components
	quoter := shipping.NewFlatRateQuoter(
		cfg.Checkout.FreeShippingThresholdCents,
		cfg.Checkout.FlatShippingFeeCents,
	)
	taxer := tax.NewPercentageCalculator(cfg.Checkout.TaxRate)
	addrValidator := address.NewBasicValidator("IN")

	// Services
	tokens := token.NewService(cfg.TokenSecret, token.DefaultTTL)
	guestTTL := time.Duration(cfg.Session.GuestTTLDays) * 24 * time.Hour
	sessionService := service.NewSessionService(sessionStore, tokens, guestTTL, logger)
	cartService := service.NewCartService(cartStore, catalog, logger)
	promoService := service.NewPromoService(promoStore)
	conversionService := service.NewConversionService(conversionStore, sessionStore, orderStore, cartStore, publisher, logger)
	userService := service.NewUserService(userStore, tokens, conversionService, logger)
	checkoutService := service.NewCheckoutService(
		cartService,
		orderStore,
		promoService,
		catalog,
		provider,
		quoter,
		taxer,
		addrValidator,
		publisher,
		cfg.Checkout.Currency,
		logger,
	)

	// Metrics
	metrics := middleware.NewMetrics("stitch")
	business := telemetry.NewBusinessMetrics("stitch")

	// Route dependencies
	apiDeps := routes.APIDeps{
		SessionHandler: api.NewSessionHandler(sessionService, business, logger),
		CartHandler:    api.NewCartHandler(cartService, business, logger),
		PromoHandler:   api.NewPromoHandler(promoService, business, logger),
		OrderHandler:   api.NewOrderHandler(checkoutService, business, logger),
		AuthHandler:    api.NewAuthHandler(userService, business, logger),
		Identity:       middleware.WithIdentity(sessionService),
	}

	paymentWebhook := webhook.NewPaymentHandler(provider, checkoutService, business, logger)
	webhookDeps := routes.WebhookDeps{
		PaymentHandler: paymentWebhook.HandleCallback,
	}

	// Router with global middleware
	r := router.New(
		router.Recovery(logger),
		middleware.RequestID,
		metrics.Middleware,
		middleware.MaxBodySize(middleware.DefaultMaxBodySize),
		middleware.Timeout(middleware.DefaultTimeout),
		middleware.WithRequestLogger(logger),
		router.Logger(logger),
	)

	// Metrics endpoint (protect via firewall in production)
	r.Get("/metrics", func(w http.ResponseWriter, req *http.Request) {
		metrics.Handler().ServeHTTP(w, req)
	})

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	// Register route groups
	routes.RegisterAPIRoutes(r, apiDeps)
	routes.RegisterWebhookRoutes(r, webhookDeps)

	// Background maintenance: expired session sweep and stale conversion
	// resume
	cleanup := worker.NewCleanup(sessionStore, conversionStore, conversionService, business, worker.Config{
		Interval: time.Duration(cfg.Session.CleanupIntervalMinutes) * time.Minute,
	}, logger)
	go func() {
		if err := cleanup.Start(ctx); err != nil && ctx.Err() == nil {
			logger.Error("cleanup worker stopped", "error", err)
		}
	}()

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
