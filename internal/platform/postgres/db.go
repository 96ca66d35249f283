// Package postgres opens the audit database pool.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// DB wraps *sql.DB with a health probe matching the other platform clients.
type DB struct {
	*sql.DB
}

// Open connects with lib/pq and verifies the connection.
// Returns nil if dsn is empty (Postgres not configured).
func Open(ctx context.Context, dsn string) (*DB, error) {
	if dsn == "" {
		return nil, nil
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}
	return &DB{DB: db}, nil
}

func (d *DB) Health(ctx context.Context) error {
	return d.PingContext(ctx)
}
