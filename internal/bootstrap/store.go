// Package bootstrap opens the ledger store and runs one-off setup tasks
// shared by the server and the admin command.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/dukerupert/quill/internal"
	"github.com/dukerupert/quill/internal/domain"
	"github.com/dukerupert/quill/internal/postgres"
	"github.com/dukerupert/quill/internal/sqlite"
)

// Store is what the commands need from either backend.
type Store interface {
	domain.Store
	Ping(ctx context.Context) error
	RegisterCoupon(ctx context.Context, employeeID, couponCode string) error
}

var (
	_ Store = (*sqlite.Store)(nil)
	_ Store = (*postgres.Store)(nil)
)

// OpenStore connects to SQLite or Postgres depending on DATABASE_URL and
// brings the schema up to date. The returned func releases the store.
func OpenStore(ctx context.Context, cfg *internal.Config, logger *slog.Logger) (Store, func(), error) {
	if cfg.UsesSQLite() {
		logger.Info("Opening SQLite store", "path", cfg.SQLitePath())
		s, err := sqlite.Open(ctx, cfg.SQLitePath(), cfg.StoreTimeout)
		if err != nil {
			return nil, nil, fmt.Errorf("sqlite open failed: %w", err)
		}
		return s, func() { _ = s.Close() }, nil
	}

	// Initialize database/sql connection for migrations
	logger.Info("Connecting to database...")
	sqlDB, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return nil, nil, fmt.Errorf("database connection failed: %w", err)
	}
	defer sqlDB.Close()

	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, nil, fmt.Errorf("database ping failed: %w", err)
	}

	logger.Info("Running database migrations...")
	if err := internal.RunMigrations(sqlDB, logger); err != nil {
		return nil, nil, fmt.Errorf("migration failed: %w", err)
	}

	// Initialize pgx connection pool for application
	pool, err := pgxpool.New(ctx, cfg.DatabaseUrl)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	logger.Info("Database connection established")

	return postgres.NewStore(pool, cfg.StoreTimeout), pool.Close, nil
}
