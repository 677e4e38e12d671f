package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/dukerupert/quill/internal/domain"
)

const transactionColumns = `id, subscriber_id, amount_minor, currency, kind, provider_session_id, created_at`

var _ domain.LedgerReader = (*Store)(nil)

func scanTransaction(row pgx.Row) (domain.Transaction, error) {
	var (
		tx   domain.Transaction
		kind string
	)
	err := row.Scan(&tx.ID, &tx.SubscriberID, &tx.AmountMinor, &tx.Currency, &kind, &tx.ProviderSessionID, &tx.CreatedAt)
	if err != nil {
		return domain.Transaction{}, err
	}
	tx.Kind = domain.TransactionKind(kind)
	tx.CreatedAt = tx.CreatedAt.UTC()
	return tx, nil
}

// TransactionBySession returns the transaction recorded for a checkout session.
func (s *Store) TransactionBySession(ctx context.Context, sessionID string) (domain.Transaction, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	tx, err := scanTransaction(s.pool.QueryRow(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE provider_session_id = $1`, sessionID))
	if err != nil {
		return domain.Transaction{}, notFound(err, "postgres.TransactionBySession")
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
		periodEnd, statusEventAt pgtype.Timestamptz
	)
	err := s.pool.QueryRow(ctx, `
		SELECT subscriber_id, provider_customer_id, provider_subscription_id, status, current_period_end, status_event_at
		FROM subscriptions WHERE subscriber_id = $1`, subscriberID,
	).Scan(&sub.SubscriberID, &sub.ProviderCustomerID, &sub.ProviderSubscriptionID, &status, &periodEnd, &statusEventAt)
	if err != nil {
		return domain.Subscription{}, notFound(err, "postgres.SubscriptionBySubscriber")
	}
	sub.Status = domain.SubscriptionStatus(status)
	sub.CurrentPeriodEnd = timeOf(periodEnd)
	sub.StatusEventAt = timeOf(statusEventAt)
	return sub, nil
}

// CommissionEntryByTransaction returns the ledger entry for a transaction.
func (s *Store) CommissionEntryByTransaction(ctx context.Context, transactionID uuid.UUID) (domain.CommissionEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var entry domain.CommissionEntry
	err := s.pool.QueryRow(ctx, `
		SELECT id, employee_id, subscriber_id, transaction_id, commission_minor, currency, created_at
		FROM commission_ledger WHERE transaction_id = $1`, transactionID,
	).Scan(&entry.ID, &entry.EmployeeID, &entry.SubscriberID, &entry.TransactionID, &entry.CommissionMinor, &entry.Currency, &entry.CreatedAt)
	if err != nil {
		return domain.CommissionEntry{}, notFound(err, "postgres.CommissionEntryByTransaction")
	}
	entry.CreatedAt = entry.CreatedAt.UTC()
	return entry, nil
}

// EmployeeMetrics returns an employee's referral counters.
func (s *Store) EmployeeMetrics(ctx context.Context, employeeID string) (domain.EmployeeMetrics, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var (
		m      domain.EmployeeMetrics
		coupon pgtype.Text
	)
	err := s.pool.QueryRow(ctx, `
		SELECT employee_id, coupon_code, uses, revenue_minor, points
		FROM employee_metrics WHERE employee_id = $1`, employeeID,
	).Scan(&m.EmployeeID, &coupon, &m.Uses, &m.RevenueMinor, &m.Points)
	if err != nil {
		return domain.EmployeeMetrics{}, notFound(err, "postgres.EmployeeMetrics")
	}
	m.CouponCode = coupon.String
	return m, nil
}

// ProcessedEvent returns the dedup record for an event id.
func (s *Store) ProcessedEvent(ctx context.Context, eventID string) (domain.ProcessedEvent, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var (
		pe      domain.ProcessedEvent
		outcome string
	)
	err := s.pool.QueryRow(ctx, `
		SELECT provider_event_id, processed_at, outcome
		FROM processed_events WHERE provider_event_id = $1`, eventID,
	).Scan(&pe.ProviderEventID, &pe.ProcessedAt, &outcome)
	if err != nil {
		return domain.ProcessedEvent{}, notFound(err, "postgres.ProcessedEvent")
	}
	pe.Outcome = domain.ProcessedOutcome(outcome)
	pe.ProcessedAt = pe.ProcessedAt.UTC()
	return pe, nil
}

// CountTransactions returns the number of recorded transactions.
func (s *Store) CountTransactions(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var n int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM transactions`).Scan(&n); err != nil {
		return 0, classify(err, "postgres.CountTransactions")
	}
	return n, nil
}

func notFound(err error, op string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.WrapError(domain.ErrRecordNotFound, domain.ENOTFOUND, op, "Record not found")
	}
	return classify(err, op)
}
