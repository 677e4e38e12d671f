// Package events publishes ledger changes after they are committed.
package events

import (
	"context"
	"time"
)

// Subjects, relative to the configured prefix.
const (
	SubjectCheckoutCompleted   = "payments.checkout_completed"
	SubjectSubscriptionChanged = "payments.subscription_changed"
	SubjectCommissionAccrued   = "commissions.accrued"
)

// Publisher delivers a message to subscribers. Publishing is best effort:
// callers log failures and carry on.
type Publisher interface {
	Publish(ctx context.Context, subject string, msg any) error
}

// Message is a subject and the payload published to it.
type Message struct {
	Subject string
	Payload any
}

// CheckoutCompleted is published when a new transaction is recorded.
type CheckoutCompleted struct {
	EventID      string    `json:"event_id"`
	SubscriberID string    `json:"subscriber_id"`
	SessionID    string    `json:"session_id"`
	AmountMinor  int64     `json:"amount_minor"`
	Currency     string    `json:"currency"`
	Kind         string    `json:"kind"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// SubscriptionChanged is published when a subscription row changes status.
type SubscriptionChanged struct {
	EventID                string    `json:"event_id"`
	SubscriberID           string    `json:"subscriber_id,omitempty"`
	ProviderSubscriptionID string    `json:"provider_subscription_id"`
	Status                 string    `json:"status"`
	CurrentPeriodEnd       time.Time `json:"current_period_end,omitzero"`
	OccurredAt             time.Time `json:"occurred_at"`
}

// CommissionAccrued is published when a referral commission is credited.
type CommissionAccrued struct {
	EventID         string `json:"event_id"`
	EmployeeID      string `json:"employee_id"`
	SubscriberID    string `json:"subscriber_id"`
	CommissionMinor int64  `json:"commission_minor"`
	Currency        string `json:"currency"`
}

// Nop discards every message.
type Nop struct{}

func (Nop) Publish(context.Context, string, any) error { return nil }
