package postgres

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saaga0h/curator-platform/pkg/config"
)

var _ Client = (*PostgresClient)(nil)

func testClient(t *testing.T) *PostgresClient {
	t.Helper()
	cfg := config.NewConfig()
	return NewClient(cfg, slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))).(*PostgresClient)
}

func TestNotConnected(t *testing.T) {
	c := testClient(t)
	ctx := context.Background()

	assert.Nil(t, c.DB())
	assert.ErrorIs(t, c.Migrate(ctx, "0001_x", "SELECT 1"), ErrNotConnected)
	assert.NoError(t, c.Disconnect())

	status, err := c.HealthCheck(ctx)
	require.NoError(t, err)
	assert.False(t, status.Connected)
	assert.Equal(t, "not connected", status.Error)
	assert.Equal(t, "curator", status.Database)
}

// setupTestClient connects to CURATOR_TEST_POSTGRES_DSN; skipped when unset
func setupTestClient(t *testing.T) *PostgresClient {
	dsn := os.Getenv("CURATOR_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("CURATOR_TEST_POSTGRES_DSN not set, skipping database test")
	}

	c := testClient(t)
	c.config.PostgresDSN = dsn
	if err := c.Connect(context.Background()); err != nil {
		t.Skipf("Skipping test: database not available: %v", err)
	}
	t.Cleanup(func() { c.Disconnect() })
	return c
}

func TestMigrateIsRecordedOnce(t *testing.T) {
	c := setupTestClient(t)
	ctx := context.Background()

	name := "test_migrate_once"
	c.DB().ExecContext(ctx, "DELETE FROM schema_migrations WHERE name = $1", name)
	c.DB().ExecContext(ctx, "DROP TABLE IF EXISTS migrate_probe")
	t.Cleanup(func() {
		c.DB().ExecContext(ctx, "DELETE FROM schema_migrations WHERE name = $1", name)
		c.DB().ExecContext(ctx, "DROP TABLE IF EXISTS migrate_probe")
	})

	// Not idempotent on purpose: a second run would fail if it were applied again
	create := "CREATE TABLE migrate_probe (id INT)"
	require.NoError(t, c.Migrate(ctx, name, create))
	require.NoError(t, c.Migrate(ctx, name, create))

	status, err := c.HealthCheck(ctx)
	require.NoError(t, err)
	assert.True(t, status.Connected)
	assert.Contains(t, status.Migrations, name)
}

func TestMigrateRollsBackOnFailure(t *testing.T) {
	c := setupTestClient(t)
	ctx := context.Background()

	name := "test_migrate_rollback"
	err := c.Migrate(ctx, name, "SELECT 1", "THIS IS NOT SQL")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "statement 2")

	var applied bool
	require.NoError(t, c.DB().QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE name = $1)", name).Scan(&applied))
	assert.False(t, applied)
}
