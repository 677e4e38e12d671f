package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	ctx := context.Background()
	r := &Recorder{}

	require.NoError(t, r.Publish(ctx, SubjectCheckoutCompleted, CheckoutCompleted{EventID: "evt_1"}))
	require.NoError(t, r.Publish(ctx, SubjectCommissionAccrued, CommissionAccrued{EventID: "evt_1"}))

	assert.Equal(t, []string{SubjectCheckoutCompleted, SubjectCommissionAccrued}, r.Subjects())
	msgs := r.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "evt_1", msgs[0].Payload.(CheckoutCompleted).EventID)

	r.Err = errors.New("broker down")
	assert.Error(t, r.Publish(ctx, SubjectCheckoutCompleted, CheckoutCompleted{}))
	assert.Len(t, r.Messages(), 2)
}

func TestNop(t *testing.T) {
	assert.NoError(t, Nop{}.Publish(context.Background(), SubjectCheckoutCompleted, nil))
}

func TestNATSPublisher_Subject(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		prefix string
		want   string
	}{
		{"quill", "quill.payments.checkout_completed"},
		{"", "payments.checkout_completed"},
	}
	for _, tt := range tests {
		p := NewNATSPublisher(nil, tt.prefix, logger)
		assert.Equal(t, tt.want, p.Subject(SubjectCheckoutCompleted))
	}
}

func TestNATSPublisher_PublishCanceledContext(t *testing.T) {
	p := NewNATSPublisher(nil, "quill", slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, p.Publish(ctx, SubjectCheckoutCompleted, CheckoutCompleted{}), context.Canceled)
}

func TestMessageJSON(t *testing.T) {
	data, err := json.Marshal(SubscriptionChanged{
		EventID:                "evt_1",
		ProviderSubscriptionID: "sub_abc",
		Status:                 "canceled",
		OccurredAt:             time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "sub_abc", decoded["provider_subscription_id"])
	assert.NotContains(t, decoded, "current_period_end", "zero period end is omitted")
}
