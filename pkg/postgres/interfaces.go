package postgres

import (
	"context"
	"database/sql"
)

// Client owns the shared connection pool. Stores take DB() and run their own SQL.
type Client interface {
	// Connect opens the pool and verifies the database is reachable
	Connect(ctx context.Context) error

	// Disconnect closes the pool
	Disconnect() error

	// DB returns the pool, or nil before Connect
	DB() *sql.DB

	// Migrate applies a named, idempotent schema step once per database
	Migrate(ctx context.Context, name string, statements ...string) error

	// HealthCheck reports connectivity, pgvector availability and applied migrations
	HealthCheck(ctx context.Context) (*HealthStatus, error)
}
