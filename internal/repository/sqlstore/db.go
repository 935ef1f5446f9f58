// Package sqlstore keeps the conversation index in MySQL or SQLite through
// database/sql. Timestamps are stored as UTC unix nanoseconds so both
// dialects order and compare them identically.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"
)

// Dialects understood by Open
const (
	DialectMySQL  = "mysql"
	DialectSQLite = "sqlite"
)

// DB wraps a database/sql handle for one dialect
type DB struct {
	SQL     *sql.DB
	Dialect string
}

// Open connects to dsn with the driver registered for dialect.
// MySQL DSNs use go-sql-driver syntax; SQLite DSNs are file paths.
func Open(ctx context.Context, dialect, dsn string) (*DB, error) {
	switch dialect {
	case DialectMySQL, DialectSQLite:
	default:
		return nil, fmt.Errorf("unsupported dialect: %s", dialect)
	}

	db, err := sql.Open(dialect, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", dialect, err)
	}

	if dialect == DialectSQLite {
		// one writer at a time; concurrent writers would hit SQLITE_BUSY
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(20)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s database: %w", dialect, err)
	}

	return &DB{SQL: db, Dialect: dialect}, nil
}

// Close closes the underlying handle
func (db *DB) Close() error {
	return db.SQL.Close()
}

// Ping verifies database connectivity
func (db *DB) Ping(ctx context.Context) error {
	return db.SQL.PingContext(ctx)
}

func toNanos(t time.Time) int64 {
	return t.UTC().UnixNano()
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}
