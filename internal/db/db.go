// Package db provides PostgreSQL database access for job postings,
// applications, generated artifacts, and usage counters.
package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Sentinel errors surfaced by repository methods. Service layers translate
// these into their own error taxonomy.
var (
	// ErrStaleVersion is returned when an optimistic-locked write lost the race.
	ErrStaleVersion = errors.New("application version is stale")
	// ErrQuotaExhausted is returned when the transactional quota re-check fails.
	ErrQuotaExhausted = errors.New("usage quota exhausted")
)

// DB wraps a PostgreSQL connection pool
type DB struct {
	pool *pgxpool.Pool
}

// Connect establishes a connection pool to the database
func Connect(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Close closes the connection pool
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}
