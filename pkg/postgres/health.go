package postgres

import (
	"context"
	"fmt"
	"time"
)

// HealthStatus represents the health of the Postgres connection
type HealthStatus struct {
	Connected     bool      `json:"connected"`
	ServerVersion string    `json:"server_version,omitempty"`
	Database      string    `json:"database"`
	VectorEnabled bool      `json:"vector_enabled"`
	Migrations    []string  `json:"migrations,omitempty"`
	Error         string    `json:"error,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// HealthCheck reports connectivity, whether pgvector is installed (the
// catalog cannot search without it) and which migrations have been applied.
// Problems are reported in the status, not as an error.
func (c *PostgresClient) HealthCheck(ctx context.Context) (*HealthStatus, error) {
	status := &HealthStatus{
		Database:  c.config.PostgresDB,
		Timestamp: time.Now(),
	}

	if c.db == nil {
		status.Error = "not connected"
		return status, nil
	}

	if err := c.db.PingContext(ctx); err != nil {
		status.Error = fmt.Sprintf("ping failed: %v", err)
		return status, nil
	}
	status.Connected = true

	if err := c.db.QueryRowContext(ctx, "SELECT version()").Scan(&status.ServerVersion); err != nil {
		status.Error = fmt.Sprintf("failed to get version: %v", err)
		return status, nil
	}

	err := c.db.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM pg_extension WHERE extname = 'vector')").Scan(&status.VectorEnabled)
	if err != nil {
		status.Error = fmt.Sprintf("failed to check vector extension: %v", err)
		return status, nil
	}

	// schema_migrations is absent until the first Migrate
	rows, err := c.db.QueryContext(ctx,
		"SELECT name FROM schema_migrations ORDER BY applied_at, name")
	if err != nil {
		return status, nil
	}
	defer rows.Close()
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			status.Error = fmt.Sprintf("failed to read migrations: %v", err)
			return status, nil
		}
		status.Migrations = append(status.Migrations, name)
	}

	return status, nil
}
