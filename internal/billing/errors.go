package billing

import (
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v82"
)

var (
	// ErrInvalidAPIKey is returned when the Stripe API key is invalid or missing.
	ErrInvalidAPIKey = errors.New("billing: invalid or missing API key")

	// ErrSubscriptionNotFound is returned when the provider has no such subscription.
	ErrSubscriptionNotFound = errors.New("billing: subscription not found")
)

// StripeError wraps a Stripe API error with additional context.
type StripeError struct {
	Message       string // Human-readable error message
	Code          string // Stripe error code (e.g., "resource_missing")
	Type          string // Stripe error type (e.g., "api_error")
	HTTPStatus    int    // HTTP status code from Stripe
	RequestID     string // Stripe request ID for debugging
	OriginalError error  // Original error from Stripe SDK
}

func (e *StripeError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("stripe: %s (code: %s)", e.Message, e.Code)
	}
	return fmt.Sprintf("stripe: %s", e.Message)
}

func (e *StripeError) Unwrap() error {
	return e.OriginalError
}

// IsResourceMissing reports whether the requested object does not exist.
func (e *StripeError) IsResourceMissing() bool {
	return e.Code == string(stripe.ErrorCodeResourceMissing)
}

// IsTemporary returns true if the error is likely transient and retryable.
func (e *StripeError) IsTemporary() bool {
	return e.Code == string(stripe.ErrorCodeRateLimit) ||
		e.Type == string(stripe.ErrorTypeAPI) ||
		e.HTTPStatus >= 500 ||
		e.HTTPStatus == 0
}

// wrapStripeError converts SDK errors into StripeError values.
func wrapStripeError(err error) error {
	var serr *stripe.Error
	if !errors.As(err, &serr) {
		return err
	}
	return &StripeError{
		Message:       serr.Msg,
		Code:          string(serr.Code),
		Type:          string(serr.Type),
		HTTPStatus:    serr.HTTPStatusCode,
		RequestID:     serr.RequestID,
		OriginalError: err,
	}
}
