package webhook

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/dukerupert/quill/internal/billing"
	"github.com/dukerupert/quill/internal/domain"
	"github.com/dukerupert/quill/internal/service"
	"github.com/dukerupert/quill/internal/sqlite"
)

// stubProcessor returns a fixed outcome and records what it was given.
type stubProcessor struct {
	outcome domain.Outcome
	body    []byte
	header  string
}

func (s *stubProcessor) Process(_ context.Context, body []byte, header string) domain.Outcome {
	s.body, s.header = body, header
	return s.outcome
}

func TestHandleWebhook_StatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		outcome    domain.Outcome
		wantStatus int
		wantBody   string
	}{
		{"applied", service.Applied(), http.StatusOK, `{"received":true}`},
		{"duplicate", service.DuplicateIgnored(), http.StatusOK, `{"received":true}`},
		{"rejected", service.ReportError(domain.ErrSignatureInvalid), http.StatusBadRequest, `{"error":"invalid signature"}`},
		{"store unavailable", service.ReportError(domain.ErrStoreUnavailable), http.StatusServiceUnavailable, `{"error":"store unavailable"}`},
		{"subscription not found", service.ReportError(domain.ErrSubscriptionNotFound), http.StatusInternalServerError, `{"error":"subscription not yet known"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			proc := &stubProcessor{outcome: tt.outcome}
			h := NewStripeHandler(proc, 0)

			req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(`{"id":"evt_1"}`))
			req.Header.Set(SignatureHeader, "t=1,v1=abc")
			rec := httptest.NewRecorder()
			h.HandleWebhook(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.JSONEq(t, tt.wantBody, rec.Body.String())
			assert.Equal(t, `{"id":"evt_1"}`, string(proc.body))
			assert.Equal(t, "t=1,v1=abc", proc.header)
		})
	}
}

func TestHandleWebhook_BodyTooLarge(t *testing.T) {
	proc := &stubProcessor{outcome: service.Applied()}
	h := NewStripeHandler(proc, 8)

	rec := httptest.NewRecorder()
	h.HandleWebhook(rec, httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(`{"id":"evt_too_long"}`)))

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Nil(t, proc.body, "processor never sees an oversized body")
}

func TestHandleWebhook_EndToEnd(t *testing.T) {
	const secret = "whsec_handler_test"
	ctx := context.Background()

	store, err := sqlite.Open(ctx, ":memory:", time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	svc, err := service.NewIngestService(service.IngestConfig{
		Verifier:   billing.NewVerifier(secret, 0),
		Normalizer: billing.NewNormalizer(),
		Store:      store,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	h := NewStripeHandler(svc, 0)

	body, err := json.Marshal(map[string]any{
		"id":      "evt_1",
		"object":  "event",
		"type":    "checkout.session.completed",
		"created": time.Now().Unix(),
		"data": map[string]any{"object": map[string]any{
			"id":                  "sess_1",
			"object":              "checkout.session",
			"amount_total":        4999,
			"currency":            "usd",
			"mode":                "payment",
			"payment_status":      "paid",
			"client_reference_id": "subscriber_1",
		}},
	})
	require.NoError(t, err)

	deliver := func(header string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/stripe", strings.NewReader(string(body)))
		req.Header.Set(SignatureHeader, header)
		rec := httptest.NewRecorder()
		h.HandleWebhook(rec, req)
		return rec
	}
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{Payload: body, Secret: secret}).Header

	forged := deliver(webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{Payload: body, Secret: "whsec_other"}).Header)
	assert.Equal(t, http.StatusBadRequest, forged.Code)

	first := deliver(signed)
	second := deliver(signed)
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusOK, second.Code)
	assert.JSONEq(t, `{"received":true}`, second.Body.String())

	n, err := store.CountTransactions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
