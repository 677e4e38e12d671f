package telemetry

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/getsentry/sentry-go"
)

// SentryConfig holds configuration for Sentry error tracking
type SentryConfig struct {
	DSN     string
	Enabled bool

	// Environment and Release tag every reported event.
	Environment string
	Release     string

	// SampleRate is the fraction of errors reported. Zero means 1.0.
	SampleRate float64

	// TracesSampleRate is the fraction of requests traced. Zero disables tracing.
	TracesSampleRate float64

	Debug bool
}

const flushTimeout = 2 * time.Second

var sentryEnabled atomic.Bool

// InitSentry initializes the Sentry client and returns a flush function for
// shutdown. Without a DSN, or when disabled, every capture helper is a no-op.
func InitSentry(cfg SentryConfig, logger *slog.Logger) (func(), error) {
	if logger == nil {
		logger = slog.Default()
	}
	sentryEnabled.Store(false)

	if !cfg.Enabled {
		logger.Info("Sentry disabled (SENTRY_ENABLED=false)")
		return func() {}, nil
	}
	if cfg.DSN == "" {
		logger.Warn("Sentry DSN not configured, disabling error tracking")
		return func() {}, nil
	}

	sampleRate := cfg.SampleRate
	if sampleRate == 0 {
		sampleRate = 1.0
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.DSN,
		Environment:      cfg.Environment,
		Release:          cfg.Release,
		SampleRate:       sampleRate,
		TracesSampleRate: cfg.TracesSampleRate,
		EnableTracing:    cfg.TracesSampleRate > 0,
		Debug:            cfg.Debug,
		BeforeSend:       scrubEvent,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Sentry: %w", err)
	}
	sentryEnabled.Store(true)

	logger.Info("Sentry initialized",
		"environment", cfg.Environment,
		"release", cfg.Release,
		"sample_rate", sampleRate,
	)

	return func() { sentry.Flush(flushTimeout) }, nil
}

// scrubEvent strips request bodies and the signature header. Webhook bodies
// carry customer data.
func scrubEvent(event *sentry.Event, _ *sentry.EventHint) *sentry.Event {
	if event.Request != nil {
		event.Request.Data = ""
		delete(event.Request.Headers, "Stripe-Signature")
		delete(event.Request.Headers, "Authorization")
	}
	return event
}

// IsEnabled reports whether events are sent to Sentry.
func IsEnabled() bool {
	return sentryEnabled.Load()
}

// SentryMiddleware puts a request-scoped hub on the context so captures carry
// the request. Panics are left to the router's Recovery middleware.
func SentryMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !IsEnabled() {
				next.ServeHTTP(w, r)
				return
			}

			hub := sentry.GetHubFromContext(r.Context())
			if hub == nil {
				hub = sentry.CurrentHub().Clone()
			}
			hub.Scope().SetRequest(r)

			next.ServeHTTP(w, r.WithContext(sentry.SetHubOnContext(r.Context(), hub)))
		})
	}
}

// CaptureErrorFromContext reports err through the hub on ctx, falling back to
// the global hub. extras become event extras.
func CaptureErrorFromContext(ctx context.Context, err error, extras map[string]interface{}) {
	if !IsEnabled() || err == nil {
		return
	}

	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}

	hub.WithScope(func(scope *sentry.Scope) {
		for key, value := range extras {
			scope.SetExtra(key, value)
		}
		hub.CaptureException(err)
	})
}

// CaptureMessageFromContext reports a noteworthy non-error condition, such as
// a referral coupon that matches no employee.
func CaptureMessageFromContext(ctx context.Context, level sentry.Level, message string, tags map[string]string) {
	if !IsEnabled() {
		return
	}

	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}

	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(level)
		scope.SetTags(tags)
		hub.CaptureMessage(message)
	})
}
