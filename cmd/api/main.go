// Package main is the entrypoint for the GateFlow API server.
package main

import (
	"context"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/gateflow/gateflow/internal/analytics"
	"github.com/gateflow/gateflow/internal/cache"
	"github.com/gateflow/gateflow/internal/config"
	"github.com/gateflow/gateflow/internal/handler"
	"github.com/gateflow/gateflow/internal/metrics"
	"github.com/gateflow/gateflow/internal/middleware"
	"github.com/gateflow/gateflow/internal/processor"
	"github.com/gateflow/gateflow/internal/repository"
	"github.com/gateflow/gateflow/internal/server"
	"github.com/gateflow/gateflow/internal/service"
	"github.com/gateflow/gateflow/internal/webhook"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx := context.Background()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := initLogger(cfg)

	// Initialize database
	repo, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		os.Exit(1)
	}
	defer repo.Close()
	logger.Info("connected to database")

	// Initialize cache
	cacheClient, err := cache.New(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error(
			"failed to connect to Redis",
			slog.String("error", sanitizeError(err, cfg.RedisURL)),
			slog.String("redis_url", redactURL(cfg.RedisURL)),
		)
		os.Exit(1)
	}
	defer cacheClient.Close()
	logger.Info("connected to Redis")

	// Metrics recorder backing the /metrics endpoint.
	recorder := metrics.NewInMemory()

	// Payment processor client
	charger := processor.NewClient(cfg.ProcessorBaseURL, cfg.ProcessorAPIKey, cfg.ProcessorTimeout, logger)

	// Webhook delivery pipeline
	webhookRepo := webhook.NewRepository(repo.Pool())
	publisher := webhook.NewPublisher(webhookRepo, logger)

	// Analytics pipeline
	eventPublisher := analytics.NewPublisher(cacheClient.Client(), logger, recorder)

	// Initialize services
	productService := service.NewProductService(repo, publisher, recorder)
	couponService := service.NewCouponService(repo, recorder)
	paymentService := service.NewPaymentService(repo, charger, publisher, eventPublisher, logger, recorder)
	refundService := service.NewRefundService(repo, paymentService, publisher, logger)
	userService := service.NewUserService(repo)

	// Initialize handlers
	statusHandler := handler.NewStatusHandler(repo, cacheClient, version)
	productHandler := handler.NewProductHandler(productService, logger)
	couponHandler := handler.NewCouponHandler(couponService, logger)
	paymentHandler := handler.NewPaymentHandler(paymentService, logger)
	refundHandler := handler.NewRefundHandler(refundService, logger)
	userHandler := handler.NewUserHandler(userService, logger)
	webhookHandler := handler.NewWebhookHandler(webhookRepo, publisher, logger, cfg.WebhookAllowInsecure)
	apiKeyHandler := handler.NewAPIKeyHandler(logger, repo, cacheClient, cfg.KeyRotationGrace)
	analyticsHandler := handler.NewAnalyticsHandler(repo, logger)
	metricsHandler := handler.NewMetricsHandler(recorder)

	// Setup router
	r := setupRouter(routerDeps{
		status:    statusHandler,
		products:  productHandler,
		coupons:   couponHandler,
		payments:  paymentHandler,
		refunds:   refundHandler,
		users:     userHandler,
		webhooks:  webhookHandler,
		apiKeys:   apiKeyHandler,
		analytics: analyticsHandler,
		metrics:   metricsHandler,
	}, repo, cacheClient, cfg, logger)

	// Create server
	srv := server.New(r, server.Options{
		Port:            cfg.AppPort,
		ReadTimeout:     cfg.ReadTimeout,
		WriteTimeout:    cfg.WriteTimeout,
		IdleTimeout:     2 * cfg.ReadTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
	}, logger)

	// Background workers run until shutdown. Registered before the
	// handlers' dependencies so they drain last.
	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()

	if cfg.WebhookWorkerEnabled {
		deliveryWorker := webhook.NewWorker(webhookRepo, logger, recorder)
		go func() {
			if err := deliveryWorker.Run(workerCtx); err != nil && workerCtx.Err() == nil {
				logger.Error("webhook worker stopped", "error", err)
			}
		}()
		srv.OnShutdown("webhook-worker", func(ctx context.Context) error {
			cancelWorkers()
			return nil
		})
	}

	if cfg.AnalyticsWorkerEnabled {
		analyticsWorker := analytics.NewWorker(cacheClient.Client(), repo, logger, analytics.NewConsumerID(), recorder)
		go func() {
			if err := analyticsWorker.Run(workerCtx); err != nil && workerCtx.Err() == nil {
				logger.Error("analytics worker stopped", "error", err)
			}
		}()
		srv.OnShutdown("analytics-worker", analyticsWorker.Shutdown)
	}

	logger.Info("starting server",
		"port", cfg.AppPort,
		"env", cfg.AppEnv,
		"version", version,
	)

	if err := srv.Run(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	level := parseLogLevel(cfg.LogLevel)

	opts := &slog.HandlerOptions{
		Level: level,
	}

	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// routerDeps bundles the handlers wired into the router.
type routerDeps struct {
	status    *handler.StatusHandler
	products  *handler.ProductHandler
	coupons   *handler.CouponHandler
	payments  *handler.PaymentHandler
	refunds   *handler.RefundHandler
	users     *handler.UserHandler
	webhooks  *handler.WebhookHandler
	apiKeys   *handler.APIKeyHandler
	analytics *handler.AnalyticsHandler
	metrics   *handler.MetricsHandler
}

// setupRouter configures the chi router with all routes and middleware.
func setupRouter(
	h routerDeps,
	repo *repository.Repository,
	cacheClient *cache.Cache,
	cfg *config.Config,
	logger *slog.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))
	r.Use(middleware.Security(middleware.SecurityConfig{
		IsDevelopment:      cfg.IsDevelopment(),
		MaxRequestBodySize: cfg.MaxRequestBodySize,
	}))
	r.Use(middleware.MaxBodySize(cfg.MaxRequestBodySize))
	r.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: cfg.GetCORSAllowedOrigins(),
	}))

	// Probes (no auth required)
	r.Get("/healthz", h.status.Healthz)
	r.Get("/readyz", h.status.Readyz)

	// Auth middleware configuration
	authCfg := middleware.AuthConfig{
		Logger:     logger,
		Repository: repo,
		Cache:      cacheClient,
	}

	// Metrics expose operational detail, so they sit behind admin auth.
	r.With(middleware.Auth(authCfg), middleware.RequireAdmin()).Get("/metrics", h.metrics.Metrics)

	// Rate limit middleware configuration
	rateLimitCfg := middleware.RateLimitConfig{
		Logger:  logger,
		Cache:   cacheClient,
		Enabled: cfg.RateLimitEnabled,
	}

	// API v1 routes (require authentication)
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(authCfg))
		r.Use(middleware.RateLimit(rateLimitCfg))
		r.Use(middleware.RequireJSON())

		// Product catalog
		r.Route("/products", func(r chi.Router) {
			r.With(middleware.RequireRead()).Get("/", h.products.List)
			r.With(middleware.RequireRead()).Get("/{id}", h.products.Get)
			r.With(middleware.RequireRead()).Get("/slug/{slug}", h.products.GetBySlug)
			r.With(middleware.RequireWrite()).Post("/", h.products.Create)
			r.With(middleware.RequireWrite()).Patch("/{id}", h.products.Update)
			r.With(middleware.RequireWrite()).Delete("/{id}", h.products.Delete)
		})

		// Coupons
		r.Route("/coupons", func(r chi.Router) {
			r.With(middleware.RequireRead()).Get("/", h.coupons.List)
			r.With(middleware.RequireRead()).Get("/{id}", h.coupons.Get)
			r.With(middleware.RequireRead()).Post("/validate", h.coupons.Validate)
			r.With(middleware.RequireWrite()).Post("/", h.coupons.Create)
			r.With(middleware.RequireWrite()).Patch("/{id}", h.coupons.Update)
			r.With(middleware.RequireWrite()).Delete("/{id}", h.coupons.Delete)
		})

		// Payments (checkout)
		r.Route("/payments", func(r chi.Router) {
			r.With(middleware.RequireRead()).Get("/", h.payments.List)
			r.With(middleware.RequireRead()).Get("/{id}", h.payments.Get)
			r.With(middleware.RequirePayments()).Post("/", h.payments.Create)
		})

		// Refund requests
		r.Route("/refund-requests", func(r chi.Router) {
			r.With(middleware.RequireRead()).Get("/", h.refunds.List)
			r.With(middleware.RequireRead()).Get("/{id}", h.refunds.Get)
			r.With(middleware.RequirePayments()).Post("/", h.refunds.Create)
			r.With(middleware.RequireAdmin()).Post("/{id}/approve", h.refunds.Approve)
			r.With(middleware.RequireAdmin()).Post("/{id}/reject", h.refunds.Reject)
		})

		// Customers
		r.Route("/users", func(r chi.Router) {
			r.With(middleware.RequireRead()).Get("/", h.users.List)
			r.With(middleware.RequireRead()).Get("/{id}", h.users.Get)
			r.With(middleware.RequireAdmin()).Post("/", h.users.Create)
			r.With(middleware.RequireAdmin()).Patch("/{id}", h.users.Update)
			r.With(middleware.RequireAdmin()).Delete("/{id}", h.users.Delete)
		})

		// Webhook endpoints and deliveries
		r.Route("/webhooks", func(r chi.Router) {
			r.Use(middleware.RequireWebhook())
			r.Get("/", h.webhooks.List)
			r.Get("/{id}", h.webhooks.Get)
			r.Post("/", h.webhooks.Create)
			r.Patch("/{id}", h.webhooks.Update)
			r.Delete("/{id}", h.webhooks.Delete)
			r.Post("/{id}/rotate-secret", h.webhooks.RotateSecret)
			r.Post("/{id}/test", h.webhooks.Test)
			r.Get("/{id}/deliveries", h.webhooks.ListDeliveries)
			r.Post("/{id}/deliveries/{deliveryId}/retry", h.webhooks.RetryDelivery)
		})

		// Analytics
		r.Route("/analytics", func(r chi.Router) {
			r.Use(middleware.RequireRead())
			r.Get("/summary", h.analytics.Summary)
			r.Get("/revenue", h.analytics.Revenue)
		})

		// API key management (requires admin scope for mutations)
		r.Route("/api-keys", func(r chi.Router) {
			r.With(middleware.RequireRead()).Get("/", h.apiKeys.List)
			r.With(middleware.RequireAdmin()).Post("/", h.apiKeys.Create)
			r.With(middleware.RequireAdmin()).Delete("/{keyId}", h.apiKeys.Revoke)
			r.With(middleware.RequireAdmin()).Post("/{keyId}/rotate", h.apiKeys.Rotate)
		})

		// System status
		r.With(middleware.RequireRead()).Get("/system/status", h.status.Status)
	})

	// 404 and 405 handlers
	r.NotFound(handler.NotFound)
	r.MethodNotAllowed(handler.MethodNotAllowed)

	return r
}

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}

	if parsed.User != nil {
		username := parsed.User.Username()
		if username == "" {
			parsed.User = url.User("redacted")
		} else {
			parsed.User = url.User(username)
		}
	}

	return parsed.String()
}

func sanitizeError(err error, secrets ...string) string {
	if err == nil {
		return ""
	}

	msg := err.Error()
	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		redacted := redactURL(secret)
		if redacted == "" {
			redacted = "[redacted]"
		}
		msg = strings.ReplaceAll(msg, secret, redacted)
	}

	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
