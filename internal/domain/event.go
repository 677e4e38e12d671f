package domain

import "time"

// CheckoutMode is the provider checkout mode.
type CheckoutMode string

const (
	CheckoutModePayment      CheckoutMode = "payment"
	CheckoutModeSubscription CheckoutMode = "subscription"
)

// EventPayload is the closed set of normalized event variants:
// CheckoutCompleted, SubscriptionStatusChanged and Ignored.
type EventPayload interface {
	eventPayload()
}

// Referral identifies who referred a checkout. The checkout-session creator
// writes these into session metadata; EmployeeID wins over CouponCode.
type Referral struct {
	EmployeeID string
	CouponCode string
}

// CheckoutCompleted is a paid checkout session.
type CheckoutCompleted struct {
	SubscriberID    string       `validate:"required"`
	SessionID       string       `validate:"required"`
	AmountMinor     int64        `validate:"gte=0"`
	Currency        string       `validate:"required,len=3"`
	Mode            CheckoutMode `validate:"required,oneof=payment subscription"`
	SubscriptionRef string
	CustomerRef     string
	Referral        *Referral
}

// Recurring reports whether the checkout started a subscription.
func (c CheckoutCompleted) Recurring() bool {
	return c.Mode == CheckoutModeSubscription
}

// Kind returns the transaction kind this checkout produces.
func (c CheckoutCompleted) Kind() TransactionKind {
	if c.Recurring() {
		return TransactionSubscription
	}
	return TransactionOneTime
}

// SubscriptionStatusChanged is a lifecycle change of an existing subscription.
type SubscriptionStatusChanged struct {
	SubscriptionRef string             `validate:"required"`
	NewStatus       SubscriptionStatus `validate:"required,oneof=incomplete active past_due canceled unpaid"`
	PeriodEnd       time.Time
	// Deleted is set when the provider removed the subscription outright.
	Deleted bool
}

// Ignored is a verified event this system does not act on.
type Ignored struct {
	Reason string
}

func (CheckoutCompleted) eventPayload()         {}
func (SubscriptionStatusChanged) eventPayload() {}
func (Ignored) eventPayload()                   {}

// NormalizedEvent is a verified provider event with its typed payload.
type NormalizedEvent struct {
	ID           string
	ProviderType string
	OccurredAt   time.Time
	Raw          []byte
	Payload      EventPayload
}

// AuditRecord returns the PaymentEvent to retain for this event.
// Ignored events are not audited.
func (e NormalizedEvent) AuditRecord() (PaymentEvent, bool) {
	var typ PaymentEventType
	switch p := e.Payload.(type) {
	case CheckoutCompleted:
		typ = PaymentEventCheckoutCompleted
	case SubscriptionStatusChanged:
		typ = PaymentEventSubscriptionUpdated
		if p.Deleted {
			typ = PaymentEventSubscriptionCanceled
		}
	default:
		return PaymentEvent{}, false
	}

	return PaymentEvent{
		ProviderEventID: e.ID,
		Type:            typ,
		OccurredAt:      e.OccurredAt,
		RawPayload:      e.Raw,
	}, true
}
