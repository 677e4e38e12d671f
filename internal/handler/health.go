package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/dukerupert/quill/internal/middleware"
)

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database"`
}

// Health returns a handler for GET /health. It answers 503 when the store
// does not respond within timeout.
func Health(store Pinger, timeout time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()

		if err := store.Ping(ctx); err != nil {
			middleware.GetLogger(r.Context()).Warn("health check failed", "error", err)
			JSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable", Database: "unreachable"})
			return
		}
		JSON(w, http.StatusOK, healthResponse{Status: "ok", Database: "ok"})
	}
}
