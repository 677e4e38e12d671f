package billing

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82"
)

func TestWrapStripeError(t *testing.T) {
	sdkErr := &stripe.Error{
		Msg:            "No such subscription: 'sub_missing'",
		Code:           stripe.ErrorCodeResourceMissing,
		Type:           stripe.ErrorTypeInvalidRequest,
		HTTPStatusCode: 404,
		RequestID:      "req_123",
	}

	err := wrapStripeError(sdkErr)

	var serr *StripeError
	require.ErrorAs(t, err, &serr)
	assert.True(t, serr.IsResourceMissing())
	assert.False(t, serr.IsTemporary())
	assert.Equal(t, "req_123", serr.RequestID)
	assert.ErrorIs(t, err, sdkErr)
}

func TestWrapStripeError_NonStripe(t *testing.T) {
	plain := errors.New("dial tcp: i/o timeout")
	assert.Same(t, plain, wrapStripeError(plain))
}

func TestStripeError_IsTemporary(t *testing.T) {
	tests := []struct {
		name string
		err  StripeError
		want bool
	}{
		{"rate limited", StripeError{Code: string(stripe.ErrorCodeRateLimit), HTTPStatus: 429}, true},
		{"api error", StripeError{Type: string(stripe.ErrorTypeAPI), HTTPStatus: 500}, true},
		{"bad gateway", StripeError{HTTPStatus: 502}, true},
		{"no response", StripeError{}, true},
		{"invalid request", StripeError{Type: string(stripe.ErrorTypeInvalidRequest), HTTPStatus: 400}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.IsTemporary())
		})
	}
}
