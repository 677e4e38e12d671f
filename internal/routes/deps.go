package routes

import (
	"net/http"

	"github.com/dukerupert/quill/internal/handler/api"
	"github.com/dukerupert/quill/internal/middleware"
)

// WebhookDeps contains dependencies for webhook routes
type WebhookDeps struct {
	StripeHandler http.HandlerFunc
	MaxBodySize   int64
}

// APIDeps contains dependencies for API routes
type APIDeps struct {
	CheckoutHandler *api.CheckoutHandler
	RateLimiter     *middleware.RateLimiter
	AllowedOrigins  []string
}

// OpsDeps contains dependencies for health and metrics routes
type OpsDeps struct {
	HealthHandler  http.HandlerFunc
	MetricsHandler http.Handler
}

// Webhook, API and ops paths.
const (
	PathStripeWebhook    = "/webhooks/stripe"
	PathCheckoutSessions = "/api/checkout-sessions"
	PathHealth           = "/health"
	PathMetrics          = "/metrics"
)
