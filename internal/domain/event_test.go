package domain

import (
	"testing"
	"time"
)

func TestNormalizedEvent_AuditRecord(t *testing.T) {
	occurred := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		payload  EventPayload
		wantType PaymentEventType
		wantOK   bool
	}{
		{"checkout", CheckoutCompleted{SessionID: "cs_1"}, PaymentEventCheckoutCompleted, true},
		{"status change", SubscriptionStatusChanged{SubscriptionRef: "sub_1"}, PaymentEventSubscriptionUpdated, true},
		{"deletion", SubscriptionStatusChanged{SubscriptionRef: "sub_1", Deleted: true}, PaymentEventSubscriptionCanceled, true},
		{"ignored", Ignored{Reason: "unhandled"}, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event := NormalizedEvent{ID: "evt_1", OccurredAt: occurred, Raw: []byte(`{}`), Payload: tt.payload}

			record, ok := event.AuditRecord()
			if ok != tt.wantOK {
				t.Fatalf("ok = %t, want %t", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if record.Type != tt.wantType {
				t.Errorf("Type = %q, want %q", record.Type, tt.wantType)
			}
			if record.ProviderEventID != "evt_1" || !record.OccurredAt.Equal(occurred) {
				t.Errorf("unexpected record %+v", record)
			}
		})
	}
}

func TestCheckoutCompleted_Kind(t *testing.T) {
	if got := (CheckoutCompleted{Mode: CheckoutModeSubscription}).Kind(); got != TransactionSubscription {
		t.Errorf("Kind() = %q, want %q", got, TransactionSubscription)
	}
	if got := (CheckoutCompleted{Mode: CheckoutModePayment}).Kind(); got != TransactionOneTime {
		t.Errorf("Kind() = %q, want %q", got, TransactionOneTime)
	}
}

func TestMinorToMajor(t *testing.T) {
	tests := []struct {
		amount   int64
		currency string
		want     string
	}{
		{1495, "usd", "14.95"},
		{1495, "USD", "14.95"},
		{500, "jpy", "500"},
		{0, "eur", "0"},
	}

	for _, tt := range tests {
		if got := MinorToMajor(tt.amount, tt.currency).String(); got != tt.want {
			t.Errorf("MinorToMajor(%d, %q) = %s, want %s", tt.amount, tt.currency, got, tt.want)
		}
	}
}
