package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/dukerupert/quill/internal/domain"
)

// unitOfWork issues statements on one open transaction.
type unitOfWork struct {
	db  dbtx
	now func() time.Time
}

var _ domain.UnitOfWork = (*unitOfWork)(nil)

func (u *unitOfWork) ReserveEvent(ctx context.Context, eventID string, at time.Time) (bool, error) {
	// A concurrent insert of the same id blocks until the other transaction
	// ends, then either conflicts (committed) or succeeds (rolled back).
	tag, err := u.db.Exec(ctx, `
		INSERT INTO processed_events (provider_event_id, processed_at, outcome)
		VALUES ($1, $2, $3)
		ON CONFLICT (provider_event_id) DO NOTHING`,
		eventID, at, string(domain.ProcessedPending),
	)
	if err != nil {
		return false, classify(err, "postgres.ReserveEvent")
	}
	return tag.RowsAffected() == 1, nil
}

func (u *unitOfWork) CompleteEvent(ctx context.Context, eventID string, outcome domain.ProcessedOutcome) error {
	tag, err := u.db.Exec(ctx, `
		UPDATE processed_events SET outcome = $2
		WHERE provider_event_id = $1 AND outcome = $3`,
		eventID, string(outcome), string(domain.ProcessedPending),
	)
	if err != nil {
		return classify(err, "postgres.CompleteEvent")
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("postgres.CompleteEvent: no pending reservation for event")
	}
	return nil
}

func (u *unitOfWork) InsertTransaction(ctx context.Context, tx domain.Transaction) (domain.Transaction, bool, error) {
	row := u.db.QueryRow(ctx, `
		INSERT INTO transactions (id, subscriber_id, amount_minor, currency, kind, provider_session_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (provider_session_id) DO NOTHING
		RETURNING `+transactionColumns,
		tx.ID, tx.SubscriberID, tx.AmountMinor, tx.Currency, string(tx.Kind), tx.ProviderSessionID, tx.CreatedAt,
	)
	created, err := scanTransaction(row)
	if err == nil {
		return created, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.Transaction{}, false, classify(err, "postgres.InsertTransaction")
	}

	existing, err := scanTransaction(u.db.QueryRow(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE provider_session_id = $1`,
		tx.ProviderSessionID,
	))
	if err != nil {
		return domain.Transaction{}, false, classify(err, "postgres.InsertTransaction")
	}
	return existing, false, nil
}

func (u *unitOfWork) UpsertSubscription(ctx context.Context, sub domain.Subscription) (bool, error) {
	// A row last set by a newer event keeps its status.
	tag, err := u.db.Exec(ctx, `
		INSERT INTO subscriptions (
			subscriber_id, provider_customer_id, provider_subscription_id,
			status, current_period_end, status_event_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (subscriber_id) DO UPDATE SET
			provider_customer_id = EXCLUDED.provider_customer_id,
			provider_subscription_id = EXCLUDED.provider_subscription_id,
			status = EXCLUDED.status,
			current_period_end = EXCLUDED.current_period_end,
			status_event_at = EXCLUDED.status_event_at,
			updated_at = EXCLUDED.updated_at
		WHERE subscriptions.status_event_at IS NULL
			OR subscriptions.status_event_at <= EXCLUDED.status_event_at`,
		sub.SubscriberID, sub.ProviderCustomerID, sub.ProviderSubscriptionID,
		string(sub.Status), timestamptz(sub.CurrentPeriodEnd), timestamptz(sub.StatusEventAt), u.now().UTC(),
	)
	if isUniqueViolation(err) {
		return false, domain.WrapError(domain.ErrSubscriptionConflict, domain.ECONFLICT, "postgres.UpsertSubscription", "Provider subscription belongs to another subscriber")
	}
	if err != nil {
		return false, classify(err, "postgres.UpsertSubscription")
	}
	return tag.RowsAffected() > 0, nil
}

func (u *unitOfWork) UpdateSubscriptionStatus(ctx context.Context, update domain.SubscriptionStatusUpdate) (bool, error) {
	tag, err := u.db.Exec(ctx, `
		UPDATE subscriptions SET
			status = $2,
			current_period_end = COALESCE($3, current_period_end),
			status_event_at = $4,
			updated_at = $5
		WHERE provider_subscription_id = $1
			AND (status_event_at IS NULL OR status_event_at <= $4)`,
		update.ProviderSubscriptionID, string(update.Status), timestamptz(update.CurrentPeriodEnd),
		update.OccurredAt, u.now().UTC(),
	)
	if err != nil {
		return false, classify(err, "postgres.UpdateSubscriptionStatus")
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}

	var exists bool
	err = u.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM subscriptions WHERE provider_subscription_id = $1)`,
		update.ProviderSubscriptionID,
	).Scan(&exists)
	if err != nil {
		return false, classify(err, "postgres.UpdateSubscriptionStatus")
	}
	if !exists {
		return false, domain.ErrSubscriptionNotFound
	}
	return false, nil
}

func (u *unitOfWork) InsertCommissionEntry(ctx context.Context, entry domain.CommissionEntry) (bool, error) {
	tag, err := u.db.Exec(ctx, `
		INSERT INTO commission_ledger (id, employee_id, subscriber_id, transaction_id, commission_minor, currency, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (transaction_id) DO NOTHING`,
		entry.ID, entry.EmployeeID, entry.SubscriberID, entry.TransactionID,
		entry.CommissionMinor, entry.Currency, entry.CreatedAt,
	)
	if err != nil {
		return false, classify(err, "postgres.InsertCommissionEntry")
	}
	return tag.RowsAffected() == 1, nil
}

func (u *unitOfWork) IncrementEmployeeMetrics(ctx context.Context, delta domain.EmployeeMetricsDelta) error {
	tag, err := u.db.Exec(ctx, `
		UPDATE employee_metrics SET
			uses = uses + $2,
			revenue_minor = revenue_minor + $3,
			points = points + $4,
			updated_at = $5
		WHERE employee_id = $1`,
		delta.EmployeeID, delta.Uses, delta.RevenueMinor, delta.Points, u.now().UTC(),
	)
	if err != nil {
		return classify(err, "postgres.IncrementEmployeeMetrics")
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrEmployeeNotFound
	}
	return nil
}

func (u *unitOfWork) EmployeeExists(ctx context.Context, employeeID string) (bool, error) {
	var exists bool
	err := u.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM employee_metrics WHERE employee_id = $1)`,
		employeeID,
	).Scan(&exists)
	if err != nil {
		return false, classify(err, "postgres.EmployeeExists")
	}
	return exists, nil
}

func (u *unitOfWork) EmployeeIDForCoupon(ctx context.Context, couponCode string) (string, error) {
	var employeeID string
	err := u.db.QueryRow(ctx,
		`SELECT employee_id FROM employee_metrics WHERE coupon_code = $1`,
		couponCode,
	).Scan(&employeeID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", domain.ErrEmployeeNotFound
	}
	if err != nil {
		return "", classify(err, "postgres.EmployeeIDForCoupon")
	}
	return employeeID, nil
}

// timestamptz maps the zero time to NULL.
func timestamptz(t time.Time) pgtype.Timestamptz {
	if t.IsZero() {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: t.UTC(), Valid: true}
}

func timeOf(ts pgtype.Timestamptz) time.Time {
	if !ts.Valid {
		return time.Time{}
	}
	return ts.Time.UTC()
}
