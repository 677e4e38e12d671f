// Package postgres implements the payment ledger store on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dukerupert/quill/internal/domain"
)

// DefaultTimeout bounds every store call when none is configured.
const DefaultTimeout = 5 * time.Second

// dbtx is satisfied by *pgxpool.Pool and pgx.Tx.
type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is the Postgres payment ledger.
type Store struct {
	pool    *pgxpool.Pool
	timeout time.Duration
	now     func() time.Time
}

var _ domain.Store = (*Store)(nil)

// NewStore creates a store over pool. Every call is bounded by timeout.
func NewStore(pool *pgxpool.Pool, timeout time.Duration) *Store {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Store{pool: pool, timeout: timeout, now: time.Now}
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return classify(s.pool.Ping(ctx), "postgres.ping")
}

// RecordPaymentEvent appends the audit record if absent.
func (s *Store) RecordPaymentEvent(ctx context.Context, event domain.PaymentEvent) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.pool.Exec(ctx, `
		INSERT INTO payment_events (provider_event_id, type, occurred_at, raw_payload)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (provider_event_id) DO NOTHING`,
		event.ProviderEventID, string(event.Type), event.OccurredAt, event.RawPayload,
	)
	return classify(err, "postgres.RecordPaymentEvent")
}

// EventProcessed reports whether eventID has a committed outcome.
func (s *Store) EventProcessed(ctx context.Context, eventID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var processed bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM processed_events WHERE provider_event_id = $1 AND outcome <> $2)`,
		eventID, string(domain.ProcessedPending),
	).Scan(&processed)
	if err != nil {
		return false, classify(err, "postgres.EventProcessed")
	}
	return processed, nil
}

// WithinUnitOfWork runs fn in a read-committed transaction. The transaction
// and everything fn does through uow share one timeout.
func (s *Store) WithinUnitOfWork(ctx context.Context, fn func(ctx context.Context, uow domain.UnitOfWork) error) (err error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return classify(err, "postgres.begin")
	}

	defer func() {
		rollbackCtx := context.WithoutCancel(ctx)
		if p := recover(); p != nil {
			_ = tx.Rollback(rollbackCtx)
			panic(p)
		} else if err != nil {
			_ = tx.Rollback(rollbackCtx)
		}
	}()

	if err = fn(ctx, &unitOfWork{db: tx, now: s.now}); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return classify(err, "postgres.commit")
	}
	return nil
}

// RegisterCoupon assigns a referral coupon code to an employee, creating
// the employee's metrics row when needed.
func (s *Store) RegisterCoupon(ctx context.Context, employeeID, couponCode string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.pool.Exec(ctx, `
		INSERT INTO employee_metrics (employee_id, coupon_code)
		VALUES ($1, $2)
		ON CONFLICT (employee_id) DO UPDATE SET coupon_code = EXCLUDED.coupon_code, updated_at = now()`,
		employeeID, couponCode,
	)
	if isUniqueViolation(err) {
		return domain.Errorf(domain.ECONFLICT, "postgres.RegisterCoupon", "Coupon code already assigned")
	}
	return classify(err, "postgres.RegisterCoupon")
}

// classify marks timeouts and connection failures as unavailable so callers
// retry; other errors are wrapped with op.
func classify(err error, op string) error {
	if err == nil {
		return nil
	}
	if isUnavailable(err) {
		return fmt.Errorf("%s: %w: %w", op, domain.ErrStoreUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func isUnavailable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return true
	}
	if pgconn.Timeout(err) || pgconn.SafeToRetry(err) {
		return true
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case len(pgErr.Code) == 5 && pgErr.Code[:2] == "08": // connection exception
			return true
		case pgErr.Code == "40001", pgErr.Code == "40P01": // serialization failure, deadlock
			return true
		case pgErr.Code == "57P01", pgErr.Code == "57014": // admin shutdown, query canceled
			return true
		}
	}
	return false
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
