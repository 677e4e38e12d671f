package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dukerupert/quill/internal/domain"
)

// unitOfWork issues statements on one open transaction.
type unitOfWork struct {
	tx  *sql.Tx
	now func() time.Time
}

var _ domain.UnitOfWork = (*unitOfWork)(nil)

func (u *unitOfWork) ReserveEvent(ctx context.Context, eventID string, at time.Time) (bool, error) {
	res, err := u.tx.ExecContext(ctx,
		`INSERT INTO processed_events (provider_event_id, processed_at, outcome)
		 VALUES (?, ?, ?)
		 ON CONFLICT (provider_event_id) DO NOTHING`,
		eventID, toMillis(at), string(domain.ProcessedPending),
	)
	if err != nil {
		return false, classify(err, "sqlite.ReserveEvent")
	}
	return rowsAffected(res) == 1, nil
}

func (u *unitOfWork) CompleteEvent(ctx context.Context, eventID string, outcome domain.ProcessedOutcome) error {
	res, err := u.tx.ExecContext(ctx,
		`UPDATE processed_events SET outcome = ?
		 WHERE provider_event_id = ? AND outcome = ?`,
		string(outcome), eventID, string(domain.ProcessedPending),
	)
	if err != nil {
		return classify(err, "sqlite.CompleteEvent")
	}
	if rowsAffected(res) != 1 {
		return fmt.Errorf("sqlite.CompleteEvent: no pending reservation for event")
	}
	return nil
}

func (u *unitOfWork) InsertTransaction(ctx context.Context, tx domain.Transaction) (domain.Transaction, bool, error) {
	created, err := scanTransaction(u.tx.QueryRowContext(ctx,
		`INSERT INTO transactions (id, subscriber_id, amount_minor, currency, kind, provider_session_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (provider_session_id) DO NOTHING
		 RETURNING `+transactionColumns,
		tx.ID.String(), tx.SubscriberID, tx.AmountMinor, tx.Currency, string(tx.Kind), tx.ProviderSessionID, toMillis(tx.CreatedAt),
	))
	if err == nil {
		return created, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return domain.Transaction{}, false, classify(err, "sqlite.InsertTransaction")
	}

	existing, err := scanTransaction(u.tx.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE provider_session_id = ?`,
		tx.ProviderSessionID,
	))
	if err != nil {
		return domain.Transaction{}, false, classify(err, "sqlite.InsertTransaction")
	}
	return existing, false, nil
}

func (u *unitOfWork) UpsertSubscription(ctx context.Context, sub domain.Subscription) (bool, error) {
	// A row last set by a newer event keeps its status.
	res, err := u.tx.ExecContext(ctx,
		`INSERT INTO subscriptions (
		   subscriber_id, provider_customer_id, provider_subscription_id,
		   status, current_period_end, status_event_at, updated_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (subscriber_id) DO UPDATE SET
		   provider_customer_id = excluded.provider_customer_id,
		   provider_subscription_id = excluded.provider_subscription_id,
		   status = excluded.status,
		   current_period_end = excluded.current_period_end,
		   status_event_at = excluded.status_event_at,
		   updated_at = excluded.updated_at
		 WHERE subscriptions.status_event_at IS NULL
		   OR subscriptions.status_event_at <= excluded.status_event_at`,
		sub.SubscriberID, sub.ProviderCustomerID, sub.ProviderSubscriptionID,
		string(sub.Status), nullMillis(sub.CurrentPeriodEnd), nullMillis(sub.StatusEventAt), toMillis(u.now()),
	)
	if isUniqueViolation(err) {
		return false, domain.WrapError(domain.ErrSubscriptionConflict, domain.ECONFLICT, "sqlite.UpsertSubscription", "Provider subscription belongs to another subscriber")
	}
	if err != nil {
		return false, classify(err, "sqlite.UpsertSubscription")
	}
	return rowsAffected(res) > 0, nil
}

func (u *unitOfWork) UpdateSubscriptionStatus(ctx context.Context, update domain.SubscriptionStatusUpdate) (bool, error) {
	occurredAt := toMillis(update.OccurredAt)
	res, err := u.tx.ExecContext(ctx,
		`UPDATE subscriptions SET
		   status = ?,
		   current_period_end = COALESCE(?, current_period_end),
		   status_event_at = ?,
		   updated_at = ?
		 WHERE provider_subscription_id = ?
		   AND (status_event_at IS NULL OR status_event_at <= ?)`,
		string(update.Status), nullMillis(update.CurrentPeriodEnd), occurredAt, toMillis(u.now()),
		update.ProviderSubscriptionID, occurredAt,
	)
	if err != nil {
		return false, classify(err, "sqlite.UpdateSubscriptionStatus")
	}
	if rowsAffected(res) > 0 {
		return true, nil
	}

	var exists bool
	err = u.tx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM subscriptions WHERE provider_subscription_id = ?)`,
		update.ProviderSubscriptionID,
	).Scan(&exists)
	if err != nil {
		return false, classify(err, "sqlite.UpdateSubscriptionStatus")
	}
	if !exists {
		return false, domain.ErrSubscriptionNotFound
	}
	return false, nil
}

func (u *unitOfWork) InsertCommissionEntry(ctx context.Context, entry domain.CommissionEntry) (bool, error) {
	res, err := u.tx.ExecContext(ctx,
		`INSERT INTO commission_ledger (id, employee_id, subscriber_id, transaction_id, commission_minor, currency, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (transaction_id) DO NOTHING`,
		entry.ID.String(), entry.EmployeeID, entry.SubscriberID, entry.TransactionID.String(),
		entry.CommissionMinor, entry.Currency, toMillis(entry.CreatedAt),
	)
	if err != nil {
		return false, classify(err, "sqlite.InsertCommissionEntry")
	}
	return rowsAffected(res) == 1, nil
}

func (u *unitOfWork) IncrementEmployeeMetrics(ctx context.Context, delta domain.EmployeeMetricsDelta) error {
	res, err := u.tx.ExecContext(ctx,
		`UPDATE employee_metrics SET
		   uses = uses + ?,
		   revenue_minor = revenue_minor + ?,
		   points = points + ?,
		   updated_at = ?
		 WHERE employee_id = ?`,
		delta.Uses, delta.RevenueMinor, delta.Points, toMillis(u.now()), delta.EmployeeID,
	)
	if err != nil {
		return classify(err, "sqlite.IncrementEmployeeMetrics")
	}
	if rowsAffected(res) == 0 {
		return domain.ErrEmployeeNotFound
	}
	return nil
}

func (u *unitOfWork) EmployeeExists(ctx context.Context, employeeID string) (bool, error) {
	var exists bool
	err := u.tx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM employee_metrics WHERE employee_id = ?)`,
		employeeID,
	).Scan(&exists)
	if err != nil {
		return false, classify(err, "sqlite.EmployeeExists")
	}
	return exists, nil
}

func (u *unitOfWork) EmployeeIDForCoupon(ctx context.Context, couponCode string) (string, error) {
	var employeeID string
	err := u.tx.QueryRowContext(ctx,
		`SELECT employee_id FROM employee_metrics WHERE coupon_code = ?`,
		couponCode,
	).Scan(&employeeID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", domain.ErrEmployeeNotFound
	}
	if err != nil {
		return "", classify(err, "sqlite.EmployeeIDForCoupon")
	}
	return employeeID, nil
}

func rowsAffected(res sql.Result) int64 {
	n, err := res.RowsAffected()
	if err != nil {
		return 0
	}
	return n
}
