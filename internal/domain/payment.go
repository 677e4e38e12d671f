package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentEventType is the audited category of a recognized provider event.
type PaymentEventType string

const (
	PaymentEventCheckoutCompleted    PaymentEventType = "checkout_completed"
	PaymentEventSubscriptionUpdated  PaymentEventType = "subscription_updated"
	PaymentEventSubscriptionCanceled PaymentEventType = "subscription_canceled"
)

// PaymentEvent is the immutable audit record of a received provider event.
type PaymentEvent struct {
	ProviderEventID string
	Type            PaymentEventType
	OccurredAt      time.Time
	RawPayload      []byte
}

// TransactionKind distinguishes one-time purchases from subscription payments.
type TransactionKind string

const (
	TransactionOneTime      TransactionKind = "one-time"
	TransactionSubscription TransactionKind = "subscription"
)

// Transaction is a completed payment. One row per provider checkout session.
type Transaction struct {
	ID                uuid.UUID
	SubscriberID      string
	AmountMinor       int64
	Currency          string
	Kind              TransactionKind
	ProviderSessionID string
	CreatedAt         time.Time
}

// Amount returns the transaction amount in major currency units.
func (t Transaction) Amount() decimal.Decimal {
	return MinorToMajor(t.AmountMinor, t.Currency)
}

// SubscriptionStatus is the local lifecycle state of a subscription.
type SubscriptionStatus string

const (
	SubscriptionIncomplete SubscriptionStatus = "incomplete"
	SubscriptionActive     SubscriptionStatus = "active"
	SubscriptionPastDue    SubscriptionStatus = "past_due"
	SubscriptionCanceled   SubscriptionStatus = "canceled"
	SubscriptionUnpaid     SubscriptionStatus = "unpaid"
)

// Subscription is the single live subscription row for a subscriber.
type Subscription struct {
	SubscriberID           string
	ProviderCustomerID     string
	ProviderSubscriptionID string
	Status                 SubscriptionStatus
	// CurrentPeriodEnd is zero when the provider has not reported one.
	CurrentPeriodEnd time.Time
	// StatusEventAt is when the event that last set Status occurred.
	StatusEventAt time.Time
}

// SubscriptionStatusUpdate targets an existing row by provider subscription id.
type SubscriptionStatusUpdate struct {
	ProviderSubscriptionID string
	Status                 SubscriptionStatus
	CurrentPeriodEnd       time.Time
	OccurredAt             time.Time
}

// CommissionEntry credits a referring employee for one transaction.
type CommissionEntry struct {
	ID              uuid.UUID
	EmployeeID      string
	SubscriberID    string
	TransactionID   uuid.UUID
	CommissionMinor int64
	Currency        string
	CreatedAt       time.Time
}

// Amount returns the commission in major currency units.
func (c CommissionEntry) Amount() decimal.Decimal {
	return MinorToMajor(c.CommissionMinor, c.Currency)
}

// EmployeeMetricsDelta is added to an employee's aggregate counters.
type EmployeeMetricsDelta struct {
	EmployeeID   string
	Uses         int64
	RevenueMinor int64
	Points       int64
}

// EmployeeMetrics are the aggregate referral counters shown on the employee dashboard.
type EmployeeMetrics struct {
	EmployeeID   string
	CouponCode   string
	Uses         int64
	RevenueMinor int64
	Points       int64
}

// ProcessedOutcome is the recorded result of a processed event.
type ProcessedOutcome string

const (
	// ProcessedPending marks a reservation whose effects are still being applied
	// inside the same unit of work. Never visible after commit.
	ProcessedPending ProcessedOutcome = "pending"
	ProcessedApplied ProcessedOutcome = "applied"
	// ProcessedNoop means the event was valid but its effects already existed.
	ProcessedNoop ProcessedOutcome = "noop"
	// ProcessedStale means a newer status event had already been applied.
	ProcessedStale ProcessedOutcome = "stale"
)

// ProcessedEvent is the dedup record for a provider event id.
type ProcessedEvent struct {
	ProviderEventID string
	ProcessedAt     time.Time
	Outcome         ProcessedOutcome
}

// zeroDecimalCurrencies have no minor unit.
var zeroDecimalCurrencies = map[string]bool{
	"bif": true, "clp": true, "djf": true, "gnf": true, "jpy": true,
	"kmf": true, "krw": true, "mga": true, "pyg": true, "rwf": true,
	"ugx": true, "vnd": true, "vuv": true, "xaf": true, "xof": true, "xpf": true,
}

// CurrencyExponent returns the number of minor-unit digits for an ISO 4217 code.
func CurrencyExponent(currency string) int32 {
	if zeroDecimalCurrencies[strings.ToLower(currency)] {
		return 0
	}
	return 2
}

// MinorToMajor converts an amount in minor units to an exact decimal in major units.
func MinorToMajor(amountMinor int64, currency string) decimal.Decimal {
	return decimal.New(amountMinor, -CurrencyExponent(currency))
}
