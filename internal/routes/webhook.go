package routes

import (
	"github.com/dukerupert/quill/internal/middleware"
	"github.com/dukerupert/quill/internal/router"
)

// RegisterWebhookRoutes registers all webhook routes.
//
// Webhook routes carry no authentication middleware: each handler verifies
// the request signature itself. No timeout middleware either, since the
// store bounds every call and a cut-off unit of work would only be retried.
func RegisterWebhookRoutes(r *router.Router, deps WebhookDeps) {
	limit := deps.MaxBodySize
	if limit <= 0 {
		limit = middleware.WebhookMaxBodySize
	}
	r.Post(PathStripeWebhook, deps.StripeHandler, middleware.MaxBodySize(limit))
}
