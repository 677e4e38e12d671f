package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

//go:generate mockgen -destination=mock/store_mock.go -package=mock github.com/dukerupert/quill/internal/domain UnitOfWork

// Store is the durable store behind payment ingestion.
//
// Implementations must bound every call with a timeout and report expiry or
// connectivity failures as EUNAVAILABLE errors.
type Store interface {
	// RecordPaymentEvent appends the audit record if absent.
	RecordPaymentEvent(ctx context.Context, event PaymentEvent) error

	// EventProcessed reports whether a committed processed-event record exists
	// for eventID. It is a read outside any unit of work; ReserveEvent stays
	// the authoritative guard.
	EventProcessed(ctx context.Context, eventID string) (bool, error)

	// WithinUnitOfWork runs fn inside one database transaction. If fn returns
	// an error, every mutation made through uow is rolled back.
	WithinUnitOfWork(ctx context.Context, fn func(ctx context.Context, uow UnitOfWork) error) error
}

// UnitOfWork exposes the mutations that may be composed into one transaction.
type UnitOfWork interface {
	// ReserveEvent inserts the dedup record for eventID. It returns false when
	// a record already exists. Concurrent reservations of the same id are
	// resolved by the storage uniqueness constraint.
	ReserveEvent(ctx context.Context, eventID string, at time.Time) (bool, error)

	// CompleteEvent sets the outcome of a reservation made in this unit of work.
	CompleteEvent(ctx context.Context, eventID string, outcome ProcessedOutcome) error

	// InsertTransaction inserts tx unless one exists for its provider session.
	// It returns the stored row and whether it was created by this call.
	InsertTransaction(ctx context.Context, tx Transaction) (Transaction, bool, error)

	// UpsertSubscription inserts or updates the row keyed by subscriber id.
	// It returns false when the row holds a status from a newer event and was
	// left untouched.
	UpsertSubscription(ctx context.Context, sub Subscription) (bool, error)

	// UpdateSubscriptionStatus updates the row matched by provider subscription
	// id. It returns false when the row holds a status from a newer event, and
	// ErrSubscriptionNotFound when no row matches.
	UpdateSubscriptionStatus(ctx context.Context, update SubscriptionStatusUpdate) (bool, error)

	// InsertCommissionEntry inserts entry unless its transaction already has one.
	InsertCommissionEntry(ctx context.Context, entry CommissionEntry) (bool, error)

	// IncrementEmployeeMetrics adds delta to a registered employee's counters.
	// Returns ErrEmployeeNotFound when the employee has no metrics row.
	IncrementEmployeeMetrics(ctx context.Context, delta EmployeeMetricsDelta) error

	// EmployeeExists reports whether employeeID is a registered employee.
	EmployeeExists(ctx context.Context, employeeID string) (bool, error)

	// EmployeeIDForCoupon resolves a coupon code. Returns ErrEmployeeNotFound.
	EmployeeIDForCoupon(ctx context.Context, couponCode string) (string, error)
}

// LedgerReader reads reconciled state. Used by operators and tests.
type LedgerReader interface {
	TransactionBySession(ctx context.Context, sessionID string) (Transaction, error)
	SubscriptionBySubscriber(ctx context.Context, subscriberID string) (Subscription, error)
	CommissionEntryByTransaction(ctx context.Context, transactionID uuid.UUID) (CommissionEntry, error)
	EmployeeMetrics(ctx context.Context, employeeID string) (EmployeeMetrics, error)
	ProcessedEvent(ctx context.Context, eventID string) (ProcessedEvent, error)
	CountTransactions(ctx context.Context) (int, error)
}
