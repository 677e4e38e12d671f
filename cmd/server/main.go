package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/dukerupert/quill/internal"
	"github.com/dukerupert/quill/internal/billing"
	"github.com/dukerupert/quill/internal/bootstrap"
	"github.com/dukerupert/quill/internal/commission"
	"github.com/dukerupert/quill/internal/events"
	"github.com/dukerupert/quill/internal/handler"
	"github.com/dukerupert/quill/internal/handler/api"
	"github.com/dukerupert/quill/internal/handler/webhook"
	"github.com/dukerupert/quill/internal/middleware"
	"github.com/dukerupert/quill/internal/router"
	"github.com/dukerupert/quill/internal/routes"
	"github.com/dukerupert/quill/internal/service"
	"github.com/dukerupert/quill/internal/telemetry"
)

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)
	slog.SetDefault(logger)

	// Initialize Sentry
	flushSentry, err := telemetry.InitSentry(telemetry.SentryConfig{
		DSN:              cfg.Sentry.DSN,
		Enabled:          cfg.Sentry.Enabled,
		Environment:      cfg.Sentry.Environment,
		Release:          cfg.Sentry.Release,
		SampleRate:       cfg.Sentry.SampleRate,
		TracesSampleRate: cfg.Sentry.TracesSampleRate,
		Debug:            cfg.Sentry.Debug,
	}, logger)
	if err != nil {
		return fmt.Errorf("sentry initialization failed: %w", err)
	}
	defer flushSentry()

	// Open the ledger store
	st, closeStore, err := bootstrap.OpenStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	// Initialize Stripe billing provider
	logger.Info("Initializing Stripe billing provider...")
	stripeConfig := billing.StripeConfig{
		APIKey:             cfg.Stripe.SecretKey,
		WebhookSecret:      cfg.Stripe.WebhookSecret,
		SignatureTolerance: cfg.Stripe.WebhookTolerance,
		MaxRetries:         cfg.Stripe.MaxNetworkRetries,
	}
	if err := stripeConfig.Validate(); err != nil {
		return err
	}
	billingProvider, err := billing.NewStripeProvider(stripeConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize Stripe provider: %w", err)
	}
	logger.Info("Stripe billing provider initialized", "test_mode", stripeConfig.IsTestMode())

	// Initialize event publisher
	var publisher events.Publisher = events.Nop{}
	if cfg.NATS.URL != "" {
		natsPublisher, err := events.ConnectNATS(cfg.NATS.URL, cfg.NATS.SubjectPrefix, logger)
		if err != nil {
			return err
		}
		defer natsPublisher.Close()
		publisher = natsPublisher
		logger.Info("NATS publisher connected", "subject_prefix", cfg.NATS.SubjectPrefix)
	} else {
		logger.Info("NATS_URL not set, payment notifications disabled")
	}

	// Initialize Prometheus metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	paymentMetrics := telemetry.NewPaymentMetrics("quill", registry)
	httpMetrics := middleware.NewMetrics("quill", registry)

	// Initialize ingestion
	ingest, err := service.NewIngestService(service.IngestConfig{
		Verifier:      billing.NewVerifier(stripeConfig.WebhookSecret, stripeConfig.SignatureTolerance),
		Normalizer:    billing.NewNormalizer(),
		Store:         st,
		Reconciler:    service.NewReconciler(commission.NewAttributor(cfg.CommissionRate), logger),
		Guard:         service.NewGuard(),
		Subscriptions: billingProvider,
		Publisher:     publisher,
		Metrics:       paymentMetrics,
		Logger:        logger,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize ingest service: %w", err)
	}

	// ==========================================================================
	// Build routes
	// ==========================================================================

	checkoutLimiter := middleware.NewRateLimiter(middleware.CheckoutRateLimiterConfig())
	defer checkoutLimiter.Stop()

	r := router.New(
		router.Recovery(logger),
		telemetry.SentryMiddleware(),
		middleware.RequestID,
		middleware.WithRequestLogger(logger),
		httpMetrics.Middleware,
		middleware.SecurityHeaders(middleware.APISecurityHeadersConfig(cfg.Env == "prod")),
	)

	routes.RegisterWebhookRoutes(r, routes.WebhookDeps{
		StripeHandler: webhook.NewStripeHandler(ingest, middleware.WebhookMaxBodySize).HandleWebhook,
	})
	routes.RegisterAPIRoutes(r, routes.APIDeps{
		CheckoutHandler: api.NewCheckoutHandler(billingProvider, cfg.BaseURL, paymentMetrics, logger),
		RateLimiter:     checkoutLimiter,
		AllowedOrigins:  cfg.AllowedOrigins,
	})
	routes.RegisterOpsRoutes(r, routes.OpsDeps{
		HealthHandler:  handler.Health(st, 2*time.Second),
		MetricsHandler: httpMetrics.Handler(),
	})
	httpMetrics.TrackRoutes(r.Paths()...)

	// ==========================================================================
	// Start server
	// ==========================================================================

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting server", "address", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	logger.Info("Server stopped")
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
