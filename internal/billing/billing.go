package billing

import (
	"context"
	"time"

	"github.com/dukerupert/quill/internal/domain"
)

// Provider defines the payment-processor calls made outside webhook ingestion.
// Implementations can use Stripe or a test double.
type Provider interface {
	// CreateCheckoutSession starts a hosted checkout for a subscriber.
	// The session carries the subscriber id and any referral reference in
	// metadata so the completion webhook can be attributed.
	CreateCheckoutSession(ctx context.Context, params CreateCheckoutSessionParams) (*CheckoutSession, error)

	// GetSubscription retrieves the current provider view of a subscription.
	// Used when a checkout completes to seed the local subscription row.
	GetSubscription(ctx context.Context, subscriptionID string) (*SubscriptionSnapshot, error)
}

// CreateCheckoutSessionParams contains parameters for creating a checkout session.
type CreateCheckoutSessionParams struct {
	SubscriberID  string              `json:"subscriber_id" validate:"required"`
	CustomerEmail string              `json:"customer_email" validate:"omitempty,email"`
	PriceID       string              `json:"price_id" validate:"required"`
	Mode          domain.CheckoutMode `json:"mode" validate:"required,oneof=payment subscription"`

	// Referral reference. EmployeeID is preferred; CouponCode is resolved
	// to an employee when the checkout completes.
	ReferralEmployeeID string `json:"referral_employee_id,omitempty"`
	CouponCode         string `json:"coupon_code,omitempty"`

	SuccessURL string `json:"-"`
	CancelURL  string `json:"-"`
}

// Metadata returns the structured session metadata read back by the normalizer.
func (p CreateCheckoutSessionParams) Metadata() map[string]string {
	metadata := map[string]string{
		MetadataSubscriberID: p.SubscriberID,
	}
	if p.ReferralEmployeeID != "" {
		metadata[MetadataReferralEmployeeID] = p.ReferralEmployeeID
	}
	if p.CouponCode != "" {
		metadata[MetadataCouponCode] = p.CouponCode
	}
	return metadata
}

// CheckoutSession is a created hosted checkout.
type CheckoutSession struct {
	ID  string
	URL string
}

// SubscriptionSnapshot is the provider's current view of a subscription.
type SubscriptionSnapshot struct {
	ID               string
	CustomerID       string
	Status           domain.SubscriptionStatus
	CurrentPeriodEnd time.Time
}
