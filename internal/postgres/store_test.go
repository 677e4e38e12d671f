package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/quill/internal"
	"github.com/dukerupert/quill/internal/domain"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		unavailable bool
	}{
		{"nil", nil, false},
		{"deadline", context.DeadlineExceeded, true},
		{"canceled", fmt.Errorf("query: %w", context.Canceled), true},
		{"connection exception", &pgconn.PgError{Code: "08006"}, true},
		{"serialization failure", &pgconn.PgError{Code: "40001"}, true},
		{"deadlock", &pgconn.PgError{Code: "40P01"}, true},
		{"admin shutdown", &pgconn.PgError{Code: "57P01"}, true},
		{"unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"syntax error", &pgconn.PgError{Code: "42601"}, false},
		{"plain", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := classify(tt.err, "postgres.test")
			if tt.err == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, tt.unavailable, errors.Is(err, domain.ErrStoreUnavailable))
			assert.Contains(t, err.Error(), "postgres.test")
		})
	}
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, isUniqueViolation(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, isUniqueViolation(errors.New("23505")))
}

// openTestStore connects to QUILL_TEST_DATABASE_URL, migrates it and empties
// the ledger tables. Tests are skipped without it.
func openTestStore(t *testing.T) *Store {
	t.Helper()

	url := os.Getenv("QUILL_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("QUILL_TEST_DATABASE_URL not set")
	}
	ctx := context.Background()

	sqlDB, err := sql.Open("pgx", url)
	require.NoError(t, err)
	defer sqlDB.Close()
	require.NoError(t, internal.RunMigrations(sqlDB, nil))

	pool, err := pgxpool.New(ctx, url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = pool.Exec(ctx, `TRUNCATE payment_events, processed_events, commission_ledger, employee_metrics, subscriptions, transactions`)
	require.NoError(t, err)

	return NewStore(pool, 5*time.Second)
}

func TestStore_UnitOfWork(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	tx := domain.Transaction{
		ID: uuid.New(), SubscriberID: "sub_1", AmountMinor: 1495, Currency: "usd",
		Kind: domain.TransactionOneTime, ProviderSessionID: "cs_1", CreatedAt: at,
	}

	err := store.WithinUnitOfWork(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
		fresh, err := uow.ReserveEvent(ctx, "evt_1", at)
		require.NoError(t, err)
		assert.True(t, fresh)

		_, created, err := uow.InsertTransaction(ctx, tx)
		require.NoError(t, err)
		assert.True(t, created)

		return uow.CompleteEvent(ctx, "evt_1", domain.ProcessedApplied)
	})
	require.NoError(t, err)

	err = store.WithinUnitOfWork(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
		fresh, err := uow.ReserveEvent(ctx, "evt_1", at)
		require.NoError(t, err)
		assert.False(t, fresh)

		stored, created, err := uow.InsertTransaction(ctx, domain.Transaction{
			ID: uuid.New(), SubscriberID: "sub_1", AmountMinor: 1495, Currency: "usd",
			Kind: domain.TransactionOneTime, ProviderSessionID: "cs_1", CreatedAt: at,
		})
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, tx.ID, stored.ID)
		return nil
	})
	require.NoError(t, err)

	n, err := store.CountTransactions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestStore_RollbackReleasesReservation(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.WithinUnitOfWork(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
		_, err := uow.ReserveEvent(ctx, "evt_2", time.Now())
		require.NoError(t, err)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = store.ProcessedEvent(ctx, "evt_2")
	assert.True(t, domain.IsCode(err, domain.ENOTFOUND))
}

func TestStore_UpdateSubscriptionStatusMissing(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	err := store.WithinUnitOfWork(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
		_, err := uow.UpdateSubscriptionStatus(ctx, domain.SubscriptionStatusUpdate{
			ProviderSubscriptionID: "sub_missing",
			Status:                 domain.SubscriptionCanceled,
			OccurredAt:             time.Now(),
		})
		return err
	})
	assert.ErrorIs(t, err, domain.ErrSubscriptionNotFound)
}

func TestStore_ConcurrentReserveSameEvent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	const workers = 8
	fresh := make([]bool, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := range workers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			errs[i] = store.WithinUnitOfWork(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
				ok, err := uow.ReserveEvent(ctx, "evt_race", time.Now())
				if err != nil || !ok {
					return err
				}
				fresh[i] = true
				if _, _, err := uow.InsertTransaction(ctx, domain.Transaction{
					ID: uuid.New(), SubscriberID: "sub_1", AmountMinor: 4999, Currency: "usd",
					Kind: domain.TransactionOneTime, ProviderSessionID: "cs_race", CreatedAt: time.Now(),
				}); err != nil {
					return err
				}
				return uow.CompleteEvent(ctx, "evt_race", domain.ProcessedApplied)
			})
		}(i)
	}
	close(start)
	wg.Wait()

	reserved := 0
	for i := range workers {
		require.NoError(t, errs[i])
		if fresh[i] {
			reserved++
		}
	}
	assert.Equal(t, 1, reserved)

	n, err := store.CountTransactions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	processed, err := store.EventProcessed(ctx, "evt_race")
	require.NoError(t, err)
	assert.True(t, processed)
}

func TestStore_ProcessedEventsCanBePruned(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	err := store.WithinUnitOfWork(ctx, func(ctx context.Context, uow domain.UnitOfWork) error {
		_, err := uow.ReserveEvent(ctx, "evt_old", time.Now().Add(-100*24*time.Hour))
		require.NoError(t, err)
		return uow.CompleteEvent(ctx, "evt_old", domain.ProcessedApplied)
	})
	require.NoError(t, err)

	_, err = store.pool.Exec(ctx, `DELETE FROM processed_events WHERE processed_at < now() - interval '90 days'`)
	require.NoError(t, err)

	processed, err := store.EventProcessed(ctx, "evt_old")
	require.NoError(t, err)
	assert.False(t, processed)
}
