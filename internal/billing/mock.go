package billing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dukerupert/quill/internal/domain"
)

// MockProvider is a mock billing provider for testing.
// Simulates Stripe responses without calling the Stripe API.
type MockProvider struct {
	// CreateCheckoutSessionFunc allows customizing checkout session creation behavior
	CreateCheckoutSessionFunc func(ctx context.Context, params CreateCheckoutSessionParams) (*CheckoutSession, error)

	// GetSubscriptionFunc allows customizing subscription retrieval behavior
	GetSubscriptionFunc func(ctx context.Context, subscriptionID string) (*SubscriptionSnapshot, error)

	// Subscriptions stores snapshots returned by GetSubscription
	Subscriptions map[string]*SubscriptionSnapshot

	// CallLog tracks method calls for test assertions
	CallLog []string

	mu sync.Mutex
}

// NewMockProvider creates a new mock billing provider.
func NewMockProvider() *MockProvider {
	return &MockProvider{
		Subscriptions: make(map[string]*SubscriptionSnapshot),
		CallLog:       []string{},
	}
}

// CreateCheckoutSession creates a mock checkout session.
func (m *MockProvider) CreateCheckoutSession(ctx context.Context, params CreateCheckoutSessionParams) (*CheckoutSession, error) {
	m.log(fmt.Sprintf("CreateCheckoutSession(%s, %s)", params.SubscriberID, params.PriceID))

	if m.CreateCheckoutSessionFunc != nil {
		return m.CreateCheckoutSessionFunc(ctx, params)
	}

	id := "cs_test_" + uuid.New().String()
	return &CheckoutSession{
		ID:  id,
		URL: "https://checkout.stripe.com/c/pay/" + id,
	}, nil
}

// GetSubscription returns a stored snapshot, or an active subscription
// renewing in 30 days when none was stored.
func (m *MockProvider) GetSubscription(ctx context.Context, subscriptionID string) (*SubscriptionSnapshot, error) {
	m.log(fmt.Sprintf("GetSubscription(%s)", subscriptionID))

	if m.GetSubscriptionFunc != nil {
		return m.GetSubscriptionFunc(ctx, subscriptionID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if snapshot, ok := m.Subscriptions[subscriptionID]; ok {
		return snapshot, nil
	}
	return &SubscriptionSnapshot{
		ID:               subscriptionID,
		Status:           domain.SubscriptionActive,
		CurrentPeriodEnd: time.Now().Add(30 * 24 * time.Hour).UTC(),
	}, nil
}

// Calls returns a copy of the call log.
func (m *MockProvider) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.CallLog...)
}

func (m *MockProvider) log(call string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CallLog = append(m.CallLog, call)
}
