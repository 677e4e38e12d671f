package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/dukerupert/quill/internal/billing"
	"github.com/dukerupert/quill/internal/domain"
	"github.com/dukerupert/quill/internal/handler"
	"github.com/dukerupert/quill/internal/middleware"
	"github.com/dukerupert/quill/internal/telemetry"
)

// CheckoutHandler creates hosted checkout sessions.
type CheckoutHandler struct {
	provider billing.Provider
	validate *validator.Validate
	baseURL  string
	metrics  *telemetry.PaymentMetrics
	logger   *slog.Logger
}

// NewCheckoutHandler creates a checkout handler. Success and cancel URLs are
// built under baseURL.
func NewCheckoutHandler(provider billing.Provider, baseURL string, metrics *telemetry.PaymentMetrics, logger *slog.Logger) *CheckoutHandler {
	if logger == nil {
		logger = slog.Default()
	}

	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	return &CheckoutHandler{
		provider: provider,
		validate: v,
		baseURL:  strings.TrimRight(baseURL, "/"),
		metrics:  metrics,
		logger:   logger,
	}
}

type checkoutResponse struct {
	SessionID string `json:"session_id"`
	URL       string `json:"url"`
}

// Create handles POST /api/checkout-sessions.
//
// The request names the subscriber, price and mode, plus an optional
// referral_employee_id or coupon_code. The referral is written into session
// metadata so the completion webhook can credit the employee.
func (h *CheckoutHandler) Create(w http.ResponseWriter, r *http.Request) {
	logger := middleware.GetLogger(r.Context(), h.logger)

	var params billing.CreateCheckoutSessionParams
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&params); err != nil {
		handler.ErrorResponse(w, r, domain.Errorf(domain.EINVALID, "checkout.create", "Invalid JSON body"))
		return
	}

	params.SubscriberID = strings.TrimSpace(params.SubscriberID)
	params.ReferralEmployeeID = strings.TrimSpace(params.ReferralEmployeeID)
	params.CouponCode = strings.TrimSpace(params.CouponCode)
	if err := h.validate.Struct(params); err != nil {
		handler.ValidationErrorResponse(w, r, err)
		return
	}

	params.SuccessURL = h.baseURL + "/checkout/success"
	params.CancelURL = h.baseURL + "/checkout/cancel"

	started := time.Now()
	session, err := h.provider.CreateCheckoutSession(r.Context(), params)
	h.metrics.ObserveStripeCall("create_checkout_session", started)
	if err != nil {
		logger.Error("failed to create checkout session",
			"error", err,
			"subscriber_id", params.SubscriberID,
			"mode", params.Mode,
		)
		telemetry.CaptureErrorFromContext(r.Context(), err, map[string]interface{}{
			"subscriber_id": params.SubscriberID,
		})
		handler.ErrorResponse(w, r, providerError(err))
		return
	}

	logger.Info("checkout session created",
		"session_id", session.ID,
		"subscriber_id", params.SubscriberID,
		"mode", params.Mode,
		"referral", params.ReferralEmployeeID != "" || params.CouponCode != "",
	)
	handler.JSON(w, http.StatusCreated, checkoutResponse{SessionID: session.ID, URL: session.URL})
}

// providerError maps provider failures onto domain errors for the response.
func providerError(err error) error {
	var serr *billing.StripeError
	if errors.As(err, &serr) && !serr.IsTemporary() {
		return domain.WrapError(err, domain.EINVALID, "checkout.create", "Checkout session rejected by payment provider")
	}
	return domain.WrapError(err, domain.EUNAVAILABLE, "checkout.create", "Payment provider unavailable")
}
