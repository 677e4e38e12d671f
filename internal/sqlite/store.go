// Package sqlite provides a SQLite-backed payment ledger with the same
// unit-of-work contract as the Postgres store. Used for single-node
// deployments and tests.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pressly/goose/v3"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/dukerupert/quill/internal/domain"
	"github.com/dukerupert/quill/internal/sqlite/migrations"
)

// DefaultTimeout bounds every store call when none is configured.
const DefaultTimeout = 5 * time.Second

// Store persists the payment ledger in SQLite.
type Store struct {
	sqlDB   *sql.DB
	timeout time.Duration
	now     func() time.Time
}

var (
	_ domain.Store        = (*Store)(nil)
	_ domain.LedgerReader = (*Store)(nil)
)

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// nullMillis maps the zero time to NULL.
func nullMillis(value time.Time) sql.NullInt64 {
	if value.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toMillis(value), Valid: true}
}

func fromNullMillis(value sql.NullInt64) time.Time {
	if !value.Valid {
		return time.Time{}
	}
	return fromMillis(value.Int64)
}

// Open opens a SQLite store at path (":memory:" for a private in-memory
// database) and applies embedded migrations. The store holds one connection,
// so units of work run one at a time.
func Open(ctx context.Context, path string, timeout time.Duration) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	dsn := path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_txlock=immediate"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	provider, err := goose.NewProvider(goose.DialectSQLite3, sqlDB, migrations.FS)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create migration provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{sqlDB: sqlDB, timeout: timeout, now: time.Now}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Ping checks the database handle.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	return classify(s.sqlDB.PingContext(ctx), "sqlite.ping")
}

// RecordPaymentEvent appends the audit record if absent.
func (s *Store) RecordPaymentEvent(ctx context.Context, event domain.PaymentEvent) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO payment_events (provider_event_id, type, occurred_at, raw_payload, received_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (provider_event_id) DO NOTHING`,
		event.ProviderEventID, string(event.Type), toMillis(event.OccurredAt), event.RawPayload, toMillis(s.now()),
	)
	return classify(err, "sqlite.RecordPaymentEvent")
}

// EventProcessed reports whether eventID has a committed outcome.
func (s *Store) EventProcessed(ctx context.Context, eventID string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var processed bool
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM processed_events WHERE provider_event_id = ? AND outcome <> ?)`,
		eventID, string(domain.ProcessedPending),
	).Scan(&processed)
	if err != nil {
		return false, classify(err, "sqlite.EventProcessed")
	}
	return processed, nil
}

// WithinUnitOfWork runs fn in one immediate transaction.
func (s *Store) WithinUnitOfWork(ctx context.Context, fn func(ctx context.Context, uow domain.UnitOfWork) error) (err error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return classify(err, "sqlite.begin")
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		} else if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(ctx, &unitOfWork{tx: tx, now: s.now}); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return classify(err, "sqlite.commit")
	}
	return nil
}

// RegisterCoupon assigns a referral coupon code to an employee.
func (s *Store) RegisterCoupon(ctx context.Context, employeeID, couponCode string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO employee_metrics (employee_id, coupon_code, updated_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT (employee_id) DO UPDATE SET coupon_code = excluded.coupon_code, updated_at = excluded.updated_at`,
		employeeID, couponCode, toMillis(s.now()),
	)
	if isUniqueViolation(err) {
		return domain.Errorf(domain.ECONFLICT, "sqlite.RegisterCoupon", "Coupon code already assigned")
	}
	return classify(err, "sqlite.RegisterCoupon")
}

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
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() & 0xff {
		case sqlite3lib.SQLITE_BUSY, sqlite3lib.SQLITE_LOCKED:
			return true
		}
	}
	return false
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}
