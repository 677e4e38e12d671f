package billing

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/dukerupert/quill/internal/domain"
	"github.com/go-playground/validator/v10"
	"github.com/stripe/stripe-go/v82"
)

// Stripe event types the normalizer recognizes.
const (
	EventCheckoutSessionCompleted             = "checkout.session.completed"
	EventCheckoutSessionAsyncPaymentSucceeded = "checkout.session.async_payment_succeeded"
	EventSubscriptionUpdated                  = "customer.subscription.updated"
	EventSubscriptionDeleted                  = "customer.subscription.deleted"
)

// Checkout session metadata keys written by the checkout-session creator.
const (
	MetadataSubscriberID       = "subscriber_id"
	MetadataReferralEmployeeID = "referral_employee_id"
	MetadataCouponCode         = "coupon_code"
)

// payloadFields maps validated struct fields to their provider field names
// so malformed-event reports point at the payload, not at Go types.
var payloadFields = map[string]string{
	"SubscriberID":    "client_reference_id",
	"SessionID":       "id",
	"AmountMinor":     "amount_total",
	"Currency":        "currency",
	"Mode":            "mode",
	"SubscriptionRef": "id",
	"NewStatus":       "status",
}

// Normalizer maps verified Stripe payloads onto domain event variants.
// It has no side effects.
type Normalizer struct {
	validate *validator.Validate
	now      func() time.Time
}

// NewNormalizer creates a normalizer.
func NewNormalizer() *Normalizer {
	return &Normalizer{
		validate: validator.New(validator.WithRequiredStructEnabled()),
		now:      time.Now,
	}
}

// Normalize parses a verified payload. Unrecognized event types yield an
// Ignored payload; recognized events with missing or mistyped fields fail
// with a *domain.MalformedEventError.
func (n *Normalizer) Normalize(payload []byte) (domain.NormalizedEvent, error) {
	var event stripe.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return domain.NormalizedEvent{}, &domain.MalformedEventError{EventType: "unknown", Detail: "payload is not a JSON event"}
	}

	eventType := string(event.Type)
	if event.ID == "" {
		return domain.NormalizedEvent{}, malformed(eventType, "id", "required")
	}

	normalized := domain.NormalizedEvent{
		ID:           event.ID,
		ProviderType: eventType,
		OccurredAt:   n.now().UTC(),
		Raw:          payload,
	}
	if event.Created > 0 {
		normalized.OccurredAt = time.Unix(event.Created, 0).UTC()
	}

	var (
		body domain.EventPayload
		err  error
	)
	switch eventType {
	case EventCheckoutSessionCompleted, EventCheckoutSessionAsyncPaymentSucceeded:
		body, err = n.checkout(eventType, event.Data)
	case EventSubscriptionUpdated, EventSubscriptionDeleted:
		body, err = n.subscription(eventType, event.Data)
	default:
		body = domain.Ignored{Reason: "unhandled event type " + eventType}
	}
	if err != nil {
		return domain.NormalizedEvent{}, err
	}

	normalized.Payload = body
	return normalized, nil
}

func (n *Normalizer) checkout(eventType string, data *stripe.EventData) (domain.EventPayload, error) {
	raw, err := objectOf(eventType, data)
	if err != nil {
		return nil, err
	}

	var session stripe.CheckoutSession
	if err := json.Unmarshal(raw, &session); err != nil {
		return nil, malformed(eventType, fieldFromJSONError(err), "wrong type")
	}

	var presence struct {
		AmountTotal json.RawMessage `json:"amount_total"`
	}
	_ = json.Unmarshal(raw, &presence)
	if isAbsent(presence.AmountTotal) {
		return nil, malformed(eventType, "amount_total", "required")
	}

	// A completed session paid by a delayed method is finished later by
	// checkout.session.async_payment_succeeded.
	if eventType == EventCheckoutSessionCompleted && session.PaymentStatus == stripe.CheckoutSessionPaymentStatusUnpaid {
		return domain.Ignored{Reason: "checkout payment pending"}, nil
	}

	subscriberID := session.ClientReferenceID
	if subscriberID == "" {
		subscriberID = session.Metadata[MetadataSubscriberID]
	}

	checkout := domain.CheckoutCompleted{
		SubscriberID: subscriberID,
		SessionID:    session.ID,
		AmountMinor:  session.AmountTotal,
		Currency:     strings.ToLower(string(session.Currency)),
		Mode:         domain.CheckoutMode(session.Mode),
	}
	if session.Subscription != nil {
		checkout.SubscriptionRef = session.Subscription.ID
	}
	if session.Customer != nil {
		checkout.CustomerRef = session.Customer.ID
	}
	if ref := referralFrom(session.Metadata); ref != nil {
		checkout.Referral = ref
	}

	if err := n.check(eventType, checkout); err != nil {
		return nil, err
	}
	return checkout, nil
}

// subscriptionPeriods reads period ends from both the legacy top-level field
// and the per-item fields used by newer API versions.
type subscriptionPeriods struct {
	CurrentPeriodEnd int64 `json:"current_period_end"`
	Items            struct {
		Data []struct {
			CurrentPeriodEnd int64 `json:"current_period_end"`
		} `json:"data"`
	} `json:"items"`
}

func (p subscriptionPeriods) end() time.Time {
	latest := p.CurrentPeriodEnd
	for _, item := range p.Items.Data {
		if item.CurrentPeriodEnd > latest {
			latest = item.CurrentPeriodEnd
		}
	}
	if latest == 0 {
		return time.Time{}
	}
	return time.Unix(latest, 0).UTC()
}

func (n *Normalizer) subscription(eventType string, data *stripe.EventData) (domain.EventPayload, error) {
	raw, err := objectOf(eventType, data)
	if err != nil {
		return nil, err
	}

	var sub stripe.Subscription
	if err := json.Unmarshal(raw, &sub); err != nil {
		return nil, malformed(eventType, fieldFromJSONError(err), "wrong type")
	}
	var periods subscriptionPeriods
	if err := json.Unmarshal(raw, &periods); err != nil {
		return nil, malformed(eventType, "current_period_end", "wrong type")
	}

	deleted := eventType == EventSubscriptionDeleted
	status, ok := MapSubscriptionStatus(sub.Status)
	if deleted {
		status, ok = domain.SubscriptionCanceled, true
	}
	if !ok {
		return nil, malformed(eventType, "status", "unknown subscription status "+string(sub.Status))
	}

	changed := domain.SubscriptionStatusChanged{
		SubscriptionRef: sub.ID,
		NewStatus:       status,
		PeriodEnd:       periods.end(),
		Deleted:         deleted,
	}
	if err := n.check(eventType, changed); err != nil {
		return nil, err
	}
	return changed, nil
}

// check runs struct validation and reports the first failing field.
func (n *Normalizer) check(eventType string, v any) error {
	err := n.validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		first := verrs[0]
		field := payloadFields[first.StructField()]
		if field == "" {
			field = first.StructField()
		}
		detail := first.Tag()
		if first.Param() != "" {
			detail += "=" + first.Param()
		}
		return malformed(eventType, field, detail)
	}
	return malformed(eventType, "", err.Error())
}

// MapSubscriptionStatus maps provider statuses onto the local lifecycle.
func MapSubscriptionStatus(status stripe.SubscriptionStatus) (domain.SubscriptionStatus, bool) {
	switch status {
	case stripe.SubscriptionStatusActive, stripe.SubscriptionStatusTrialing:
		return domain.SubscriptionActive, true
	case stripe.SubscriptionStatusIncomplete:
		return domain.SubscriptionIncomplete, true
	case stripe.SubscriptionStatusPastDue:
		return domain.SubscriptionPastDue, true
	case stripe.SubscriptionStatusCanceled, stripe.SubscriptionStatusIncompleteExpired:
		return domain.SubscriptionCanceled, true
	case stripe.SubscriptionStatusUnpaid, stripe.SubscriptionStatusPaused:
		return domain.SubscriptionUnpaid, true
	default:
		return "", false
	}
}

func referralFrom(metadata map[string]string) *domain.Referral {
	employeeID := strings.TrimSpace(metadata[MetadataReferralEmployeeID])
	coupon := strings.TrimSpace(metadata[MetadataCouponCode])
	if employeeID == "" && coupon == "" {
		return nil
	}
	return &domain.Referral{EmployeeID: employeeID, CouponCode: coupon}
}

func objectOf(eventType string, data *stripe.EventData) (json.RawMessage, error) {
	if data == nil || isAbsent(data.Raw) {
		return nil, malformed(eventType, "data.object", "required")
	}
	return data.Raw, nil
}

func isAbsent(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func fieldFromJSONError(err error) string {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return typeErr.Field
	}
	return "data.object"
}

func malformed(eventType, field, detail string) error {
	return &domain.MalformedEventError{EventType: eventType, Field: field, Detail: detail}
}
