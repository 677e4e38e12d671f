package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"

	"github.com/dukerupert/quill/internal/billing"
	"github.com/dukerupert/quill/internal/commission"
	"github.com/dukerupert/quill/internal/domain"
	"github.com/dukerupert/quill/internal/telemetry"
)

// Effects describes what a reconciliation changed. Pointers are nil when the
// corresponding record was not written by this call.
type Effects struct {
	Outcome      domain.ProcessedOutcome
	Transaction  *domain.Transaction
	Subscription *domain.Subscription
	StatusUpdate *domain.SubscriptionStatusUpdate
	Commission   *domain.CommissionEntry
}

// Reconciler applies normalized events to the ledger through a unit of work.
// It is the sole writer of transactions, subscriptions and commission entries.
type Reconciler struct {
	attributor *commission.Attributor
	logger     *slog.Logger
	now        func() time.Time
}

// NewReconciler creates a reconciler.
func NewReconciler(attributor *commission.Attributor, logger *slog.Logger) *Reconciler {
	if attributor == nil {
		attributor = commission.NewAttributor(commission.DefaultRate)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		attributor: attributor,
		logger:     logger,
		now:        time.Now,
	}
}

// ApplyCheckout records a completed checkout.
//
// Flow:
//  1. Insert the transaction keyed by session id (existing row is a no-op)
//  2. For subscription checkouts, upsert the subscriber's subscription row
//  3. With a referral, attribute commission to the referring employee
//
// snapshot is the provider's view of the subscription, fetched before the
// unit of work opened; nil means the subscription is recorded as active.
// Any failure is returned as a *domain.ReconciliationError.
func (r *Reconciler) ApplyCheckout(ctx context.Context, uow domain.UnitOfWork, eventID string, occurredAt time.Time, ev domain.CheckoutCompleted, snapshot *billing.SubscriptionSnapshot) (Effects, error) {
	effects := Effects{Outcome: domain.ProcessedNoop}

	// Step 1: Transaction
	tx, created, err := uow.InsertTransaction(ctx, domain.Transaction{
		ID:                uuid.New(),
		SubscriberID:      ev.SubscriberID,
		AmountMinor:       ev.AmountMinor,
		Currency:          ev.Currency,
		Kind:              ev.Kind(),
		ProviderSessionID: ev.SessionID,
		CreatedAt:         r.now().UTC(),
	})
	if err != nil {
		return Effects{}, &domain.ReconciliationError{Stage: domain.StageTransaction, Err: err}
	}
	if created {
		effects.Outcome = domain.ProcessedApplied
		effects.Transaction = &tx
	}

	// Step 2: Subscription
	if ev.Recurring() && ev.SubscriptionRef != "" {
		sub := domain.Subscription{
			SubscriberID:           ev.SubscriberID,
			ProviderCustomerID:     ev.CustomerRef,
			ProviderSubscriptionID: ev.SubscriptionRef,
			Status:                 domain.SubscriptionActive,
			StatusEventAt:          occurredAt,
		}
		if snapshot != nil {
			sub.Status = snapshot.Status
			sub.CurrentPeriodEnd = snapshot.CurrentPeriodEnd
			if sub.ProviderCustomerID == "" {
				sub.ProviderCustomerID = snapshot.CustomerID
			}
		}
		applied, err := uow.UpsertSubscription(ctx, sub)
		if err != nil {
			return Effects{}, &domain.ReconciliationError{Stage: domain.StageSubscription, Err: err}
		}
		if applied {
			effects.Outcome = domain.ProcessedApplied
			effects.Subscription = &sub
		}
	}

	// Step 3: Commission
	if ev.Referral == nil {
		return effects, nil
	}

	employeeID, err := r.referringEmployee(ctx, uow, ev.Referral)
	if err != nil {
		if errors.Is(err, domain.ErrEmployeeNotFound) {
			r.logger.Warn("referral matches no employee, skipping commission",
				"event_id", eventID,
				"employee_id", ev.Referral.EmployeeID,
				"coupon_code", ev.Referral.CouponCode,
			)
			telemetry.CaptureMessageFromContext(ctx, sentry.LevelWarning, "unknown referral", map[string]string{
				"event_id":    eventID,
				"employee_id": ev.Referral.EmployeeID,
				"coupon_code": ev.Referral.CouponCode,
			})
			return effects, nil
		}
		return Effects{}, &domain.ReconciliationError{Stage: domain.StageCommission, Err: err}
	}

	result, err := r.attributor.Attribute(ctx, uow, tx, employeeID)
	if err != nil {
		return Effects{}, &domain.ReconciliationError{Stage: domain.StageCommission, Err: err}
	}
	if result.Created {
		effects.Outcome = domain.ProcessedApplied
		effects.Commission = &result.Entry
	}

	return effects, nil
}

// ApplyStatusChange updates the subscription matched by provider id. It never
// creates a row: a missing row fails with domain.ErrSubscriptionNotFound so
// the delivery is retried once the originating checkout has landed.
func (r *Reconciler) ApplyStatusChange(ctx context.Context, uow domain.UnitOfWork, occurredAt time.Time, ev domain.SubscriptionStatusChanged) (Effects, error) {
	update := domain.SubscriptionStatusUpdate{
		ProviderSubscriptionID: ev.SubscriptionRef,
		Status:                 ev.NewStatus,
		CurrentPeriodEnd:       ev.PeriodEnd,
		OccurredAt:             occurredAt,
	}

	applied, err := uow.UpdateSubscriptionStatus(ctx, update)
	if err != nil {
		return Effects{}, &domain.ReconciliationError{Stage: domain.StageSubscription, Err: err}
	}
	if !applied {
		return Effects{Outcome: domain.ProcessedStale}, nil
	}

	return Effects{Outcome: domain.ProcessedApplied, StatusUpdate: &update}, nil
}

// referringEmployee resolves a referral to a known employee id. An explicit
// employee id wins over a coupon code but must name a registered employee.
func (r *Reconciler) referringEmployee(ctx context.Context, uow domain.UnitOfWork, ref *domain.Referral) (string, error) {
	if ref.EmployeeID != "" {
		exists, err := uow.EmployeeExists(ctx, ref.EmployeeID)
		if err != nil {
			return "", err
		}
		if !exists {
			return "", domain.ErrEmployeeNotFound
		}
		return ref.EmployeeID, nil
	}
	if ref.CouponCode == "" {
		return "", domain.ErrEmployeeNotFound
	}
	return uow.EmployeeIDForCoupon(ctx, ref.CouponCode)
}
