package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/dukerupert/quill/internal/domain"
)

const transactionColumns = `id, subscriber_id, amount_minor, currency, kind, provider_session_id, created_at`

func scanTransaction(row *sql.Row) (domain.Transaction, error) {
	var (
		tx        domain.Transaction
		id, kind  string
		createdAt int64
	)
	if err := row.Scan(&id, &tx.SubscriberID, &tx.AmountMinor, &tx.Currency, &kind, &tx.ProviderSessionID, &createdAt); err != nil {
		return domain.Transaction{}, err
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return domain.Transaction{}, fmt.Errorf("parse transaction id: %w", err)
	}
	tx.ID = parsed
	tx.Kind = domain.TransactionKind(kind)
	tx.CreatedAt = fromMillis(createdAt)
	return tx, nil
}

// TransactionBySession returns the transaction recorded for a checkout session.
func (s *Store) TransactionBySession(ctx context.Context, sessionID string) (domain.Transaction, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	tx, err := scanTransaction(s.sqlDB.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE provider_session_id = ?`, sessionID))
	if err != nil {
		return domain.Transaction{}, notFound(err, "sqlite.TransactionBySession")
	}
	return tx, nil
}

// SubscriptionBySubscriber returns the subscriber's subscription row.
func (s *Store) SubscriptionBySubscriber(ctx context.Context, subscriberID string) (domain.Subscription, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var (
		sub                      domain.Subscription
		status                   string
		periodEnd, statusEventAt sql.NullInt64
	)
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT subscriber_id, provider_customer_id, provider_subscription_id, status, current_period_end, status_event_at
		 FROM subscriptions WHERE subscriber_id = ?`, subscriberID,
	).Scan(&sub.SubscriberID, &sub.ProviderCustomerID, &sub.ProviderSubscriptionID, &status, &periodEnd, &statusEventAt)
	if err != nil {
		return domain.Subscription{}, notFound(err, "sqlite.SubscriptionBySubscriber")
	}
	sub.Status = domain.SubscriptionStatus(status)
	sub.CurrentPeriodEnd = fromNullMillis(periodEnd)
	sub.StatusEventAt = fromNullMillis(statusEventAt)
	return sub, nil
}

// CommissionEntryByTransaction returns the ledger entry for a transaction.
func (s *Store) CommissionEntryByTransaction(ctx context.Context, transactionID uuid.UUID) (domain.CommissionEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var (
		entry     domain.CommissionEntry
		id, txID  string
		createdAt int64
	)
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT id, employee_id, subscriber_id, transaction_id, commission_minor, currency, created_at
		 FROM commission_ledger WHERE transaction_id = ?`, transactionID.String(),
	).Scan(&id, &entry.EmployeeID, &entry.SubscriberID, &txID, &entry.CommissionMinor, &entry.Currency, &createdAt)
	if err != nil {
		return domain.CommissionEntry{}, notFound(err, "sqlite.CommissionEntryByTransaction")
	}
	if entry.ID, err = uuid.Parse(id); err != nil {
		return domain.CommissionEntry{}, fmt.Errorf("parse commission id: %w", err)
	}
	if entry.TransactionID, err = uuid.Parse(txID); err != nil {
		return domain.CommissionEntry{}, fmt.Errorf("parse transaction id: %w", err)
	}
	entry.CreatedAt = fromMillis(createdAt)
	return entry, nil
}

// EmployeeMetrics returns an employee's referral counters.
func (s *Store) EmployeeMetrics(ctx context.Context, employeeID string) (domain.EmployeeMetrics, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var (
		m      domain.EmployeeMetrics
		coupon sql.NullString
	)
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT employee_id, coupon_code, uses, revenue_minor, points
		 FROM employee_metrics WHERE employee_id = ?`, employeeID,
	).Scan(&m.EmployeeID, &coupon, &m.Uses, &m.RevenueMinor, &m.Points)
	if err != nil {
		return domain.EmployeeMetrics{}, notFound(err, "sqlite.EmployeeMetrics")
	}
	m.CouponCode = coupon.String
	return m, nil
}

// ProcessedEvent returns the dedup record for an event id.
func (s *Store) ProcessedEvent(ctx context.Context, eventID string) (domain.ProcessedEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var (
		pe          domain.ProcessedEvent
		outcome     string
		processedAt int64
	)
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT provider_event_id, processed_at, outcome
		 FROM processed_events WHERE provider_event_id = ?`, eventID,
	).Scan(&pe.ProviderEventID, &processedAt, &outcome)
	if err != nil {
		return domain.ProcessedEvent{}, notFound(err, "sqlite.ProcessedEvent")
	}
	pe.ProcessedAt = fromMillis(processedAt)
	pe.Outcome = domain.ProcessedOutcome(outcome)
	return pe, nil
}

// CountTransactions returns the number of recorded transactions.
func (s *Store) CountTransactions(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var n int
	if err := s.sqlDB.QueryRowContext(ctx, `SELECT count(*) FROM transactions`).Scan(&n); err != nil {
		return 0, classify(err, "sqlite.CountTransactions")
	}
	return n, nil
}

// CountPaymentEvents returns the number of audited events.
func (s *Store) CountPaymentEvents(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var n int
	if err := s.sqlDB.QueryRowContext(ctx, `SELECT count(*) FROM payment_events`).Scan(&n); err != nil {
		return 0, classify(err, "sqlite.CountPaymentEvents")
	}
	return n, nil
}

func notFound(err error, op string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return domain.WrapError(domain.ErrRecordNotFound, domain.ENOTFOUND, op, "Record not found")
	}
	return classify(err, op)
}
