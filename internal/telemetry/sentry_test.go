package telemetry

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/getsentry/sentry-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitSentry_Disabled(t *testing.T) {
	tests := []struct {
		name string
		cfg  SentryConfig
	}{
		{"disabled", SentryConfig{Enabled: false, DSN: "https://key@example.com/1"}},
		{"enabled without dsn", SentryConfig{Enabled: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flush, err := InitSentry(tt.cfg, nil)
			require.NoError(t, err)
			require.NotNil(t, flush)
			flush()
			assert.False(t, IsEnabled())

			// No-ops while disabled.
			CaptureErrorFromContext(context.Background(), errors.New("boom"), map[string]interface{}{"k": "v"})
			CaptureMessageFromContext(context.Background(), sentry.LevelWarning, "note", nil)
		})
	}
}

func TestSentryMiddleware_PassThroughWhenDisabled(t *testing.T) {
	_, err := InitSentry(SentryConfig{}, nil)
	require.NoError(t, err)

	called := false
	h := SentryMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		assert.Nil(t, sentry.GetHubFromContext(r.Context()))
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhooks/stripe", nil))

	assert.True(t, called)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestScrubEvent(t *testing.T) {
	event := &sentry.Event{Request: &sentry.Request{
		Data: `{"id":"evt_1"}`,
		Headers: map[string]string{
			"Stripe-Signature": "t=1,v1=abc",
			"Content-Type":     "application/json",
		},
	}}

	out := scrubEvent(event, nil)

	assert.Empty(t, out.Request.Data)
	assert.NotContains(t, out.Request.Headers, "Stripe-Signature")
	assert.Equal(t, "application/json", out.Request.Headers["Content-Type"])
}
