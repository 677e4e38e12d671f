package webhook

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/dukerupert/quill/internal/domain"
	"github.com/dukerupert/quill/internal/handler"
	"github.com/dukerupert/quill/internal/middleware"
	"github.com/dukerupert/quill/internal/service"
)

// SignatureHeader carries the timestamp and HMAC digests of a delivery.
const SignatureHeader = "Stripe-Signature"

// Processor turns one raw delivery into an outcome.
type Processor interface {
	Process(ctx context.Context, body []byte, signatureHeader string) domain.Outcome
}

// StripeHandler receives Stripe webhook deliveries.
type StripeHandler struct {
	processor Processor
	maxBytes  int64
}

// NewStripeHandler creates a webhook handler. Bodies larger than maxBytes are
// rejected; a non-positive maxBytes uses middleware.WebhookMaxBodySize.
func NewStripeHandler(processor Processor, maxBytes int64) *StripeHandler {
	if maxBytes <= 0 {
		maxBytes = middleware.WebhookMaxBodySize
	}
	return &StripeHandler{processor: processor, maxBytes: maxBytes}
}

type receivedResponse struct {
	Received bool `json:"received"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// HandleWebhook handles POST /webhooks/stripe.
//
// Response codes:
//   - 200 {"received": true}: applied or duplicate
//   - 400 {"error": ...}: unauthenticated or malformed, never retried
//   - 503 {"error": ...}: store or provider unavailable, retried with backoff
//   - 500 {"error": ...}: other transient failure, retried with backoff
//
// Local testing:
//
//	stripe listen --forward-to localhost:3000/webhooks/stripe
//	stripe trigger checkout.session.completed
func (h *StripeHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	logger := middleware.GetLogger(r.Context())

	// The signature covers the exact bytes, so the body is read unmodified.
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			logger.Warn("webhook body too large", "limit", tooLarge.Limit)
			handler.JSON(w, http.StatusRequestEntityTooLarge, errorResponse{Error: "request body too large"})
			return
		}
		handler.JSON(w, http.StatusBadRequest, errorResponse{Error: "error reading request body"})
		return
	}

	outcome := h.processor.Process(r.Context(), body, r.Header.Get(SignatureHeader))

	switch outcome.Kind {
	case domain.OutcomeApplied, domain.OutcomeDuplicateIgnored:
		handler.JSON(w, http.StatusOK, receivedResponse{Received: true})
	case domain.OutcomeRejected:
		handler.JSON(w, http.StatusBadRequest, errorResponse{Error: outcome.Message})
	default:
		handler.JSON(w, retryStatus(outcome), errorResponse{Error: outcome.Message})
	}
}

// retryStatus distinguishes dependency outages from other transient failures.
func retryStatus(outcome domain.Outcome) int {
	switch outcome.Reason {
	case service.ReasonStoreUnavailable, service.ReasonProviderUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
