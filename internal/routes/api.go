package routes

import (
	"net/http"

	"github.com/dukerupert/quill/internal/middleware"
	"github.com/dukerupert/quill/internal/router"
)

// RegisterAPIRoutes registers JSON API routes called by the subscriber
// frontend.
func RegisterAPIRoutes(r *router.Router, deps APIDeps) {
	api := r.Group(
		router.CORS(deps.AllowedOrigins),
		middleware.MaxBodySize(16*middleware.KB),
		middleware.Timeout(middleware.DefaultTimeout),
	)

	var limit []router.Middleware
	if deps.RateLimiter != nil {
		limit = append(limit, deps.RateLimiter.Middleware)
	}

	api.Post(PathCheckoutSessions, deps.CheckoutHandler.Create, limit...)
	api.Handle(http.MethodOptions, PathCheckoutSessions, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
}

// RegisterOpsRoutes registers health and metrics endpoints.
func RegisterOpsRoutes(r *router.Router, deps OpsDeps) {
	r.Get(PathHealth, deps.HealthHandler)
	r.Handle(http.MethodGet, PathMetrics, deps.MetricsHandler)
}
