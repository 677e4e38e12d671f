package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stripe/stripe-go/v82"
	checkoutsession "github.com/stripe/stripe-go/v82/checkout/session"
	stripesubscription "github.com/stripe/stripe-go/v82/subscription"
)

// StripeProvider implements Provider using the Stripe API.
// Each provider carries its own key so tests and multiple accounts never
// share the package-level stripe.Key.
type StripeProvider struct {
	sessions      checkoutsession.Client
	subscriptions stripesubscription.Client
}

// NewStripeProvider creates a Stripe billing provider.
func NewStripeProvider(cfg StripeConfig) (*StripeProvider, error) {
	if cfg.APIKey == "" {
		return nil, ErrInvalidAPIKey
	}

	backendConfig := &stripe.BackendConfig{}
	if cfg.MaxRetries > 0 {
		backendConfig.MaxNetworkRetries = stripe.Int64(cfg.MaxRetries)
	}
	backend := stripe.GetBackendWithConfig(stripe.APIBackend, backendConfig)

	return &StripeProvider{
		sessions:      checkoutsession.Client{B: backend, Key: cfg.APIKey},
		subscriptions: stripesubscription.Client{B: backend, Key: cfg.APIKey},
	}, nil
}

// CreateCheckoutSession creates a hosted Stripe Checkout session.
func (s *StripeProvider) CreateCheckoutSession(ctx context.Context, params CreateCheckoutSessionParams) (*CheckoutSession, error) {
	checkoutParams := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(params.Mode)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(params.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		ClientReferenceID: stripe.String(params.SubscriberID),
		SuccessURL:        stripe.String(params.SuccessURL + "?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:         stripe.String(params.CancelURL),
	}
	if params.CustomerEmail != "" {
		checkoutParams.CustomerEmail = stripe.String(params.CustomerEmail)
	}
	for key, value := range params.Metadata() {
		checkoutParams.AddMetadata(key, value)
	}
	checkoutParams.Context = ctx

	sess, err := s.sessions.New(checkoutParams)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", wrapStripeError(err))
	}

	return &CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

// GetSubscription retrieves a Stripe subscription and maps its status.
func (s *StripeProvider) GetSubscription(ctx context.Context, subscriptionID string) (*SubscriptionSnapshot, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx

	sub, err := s.subscriptions.Get(subscriptionID, params)
	if err != nil {
		err = wrapStripeError(err)
		var serr *StripeError
		if errors.As(err, &serr) && serr.IsResourceMissing() {
			return nil, fmt.Errorf("get subscription: %w: %w", ErrSubscriptionNotFound, err)
		}
		return nil, fmt.Errorf("get subscription: %w", err)
	}

	status, ok := MapSubscriptionStatus(sub.Status)
	if !ok {
		return nil, fmt.Errorf("get subscription: unknown status %q", sub.Status)
	}

	snapshot := &SubscriptionSnapshot{
		ID:               sub.ID,
		Status:           status,
		CurrentPeriodEnd: subscriptionPeriodEnd(sub),
	}
	if sub.Customer != nil {
		snapshot.CustomerID = sub.Customer.ID
	}
	return snapshot, nil
}

// subscriptionPeriodEnd returns the latest period end across items.
func subscriptionPeriodEnd(sub *stripe.Subscription) time.Time {
	var latest int64
	if sub.Items != nil {
		for _, item := range sub.Items.Data {
			if item != nil && item.CurrentPeriodEnd > latest {
				latest = item.CurrentPeriodEnd
			}
		}
	}
	if latest == 0 {
		return time.Time{}
	}
	return time.Unix(latest, 0).UTC()
}
