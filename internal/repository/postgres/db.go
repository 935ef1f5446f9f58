package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Rrens/flight-support/internal/config"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const applicationName = "flight-support"

// DB is the conversation index's Postgres pool. Sessions run in UTC and are
// tagged with the application name so index locks show up in pg_stat_activity.
type DB struct {
	Pool *pgxpool.Pool
}

// NewDB connects using the database section of the config
func NewDB(ctx context.Context, cfg config.DatabaseConfig) (*DB, error) {
	poolConfig, err := newPoolConfig(cfg.DSN(), cfg.MaxConns, cfg.MinConns)
	if err != nil {
		return nil, err
	}
	return connect(ctx, poolConfig)
}

// Connect opens a pool for a raw DSN with the default pool sizing
func Connect(ctx context.Context, dsn string) (*DB, error) {
	poolConfig, err := newPoolConfig(dsn, 0, 0)
	if err != nil {
		return nil, err
	}
	return connect(ctx, poolConfig)
}

// newPoolConfig applies the index session settings. Zero sizes keep pgx's
// defaults; a minimum above the maximum is clamped.
func newPoolConfig(dsn string, maxConns, minConns int32) (*pgxpool.Config, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	if maxConns > 0 {
		poolConfig.MaxConns = maxConns
	}
	if minConns > 0 {
		poolConfig.MinConns = min(minConns, poolConfig.MaxConns)
	}
	poolConfig.HealthCheckPeriod = 30 * time.Second
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 10 * time.Minute

	params := poolConfig.ConnConfig.RuntimeParams
	params["timezone"] = "UTC"
	if params["application_name"] == "" {
		params["application_name"] = applicationName
	}

	return poolConfig, nil
}

func connect(ctx context.Context, poolConfig *pgxpool.Config) (*DB, error) {
	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// withTx runs fn in a transaction, committing only when fn returns nil
func (db *DB) withTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := db.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Close closes the database connection pool
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
	}
}

// Ping verifies database connectivity
func (db *DB) Ping(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}
