package checker

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq"
)

// PostgresChecker validates database state
type PostgresChecker struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresChecker creates a new Postgres checker
func NewPostgresChecker(ctx context.Context, dsn string, logger *slog.Logger) (*PostgresChecker, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	logger.Info("Connected to Postgres")

	return &PostgresChecker{db: db, logger: logger}, nil
}

// CheckQuery runs a single-value query and matches the result against expected
func (p *PostgresChecker) CheckQuery(ctx context.Context, query string, expected interface{}) (bool, string, interface{}) {
	p.logger.Debug("Executing query", "query", query)

	var result interface{}
	if err := p.db.QueryRowContext(ctx, query).Scan(&result); err != nil {
		return false, fmt.Sprintf("query failed: %v", err), nil
	}

	// lib/pq returns text columns as []byte
	if b, ok := result.([]byte); ok {
		result = string(b)
	}

	matches, reason := MatchesExpectation(result, expected)
	return matches, reason, result
}

// Close closes the database connection
func (p *PostgresChecker) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}
