package interactions

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saaga0h/curator-platform/internal/personalization"
)

func TestBuildListQuery(t *testing.T) {
	since := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)

	t.Run("user only", func(t *testing.T) {
		query, args := buildListQuery(Query{UserID: "u1"})
		assert.Contains(t, query, "WHERE user_id = $1")
		assert.NotContains(t, query, "LIMIT")
		assert.Equal(t, []interface{}{"u1"}, args)
	})

	t.Run("window kinds and limit", func(t *testing.T) {
		query, args := buildListQuery(Query{
			UserID: "u1",
			Since:  since,
			Limit:  50,
			Kinds:  []personalization.Kind{personalization.KindProductView, personalization.KindSearchQuery},
		})

		assert.Contains(t, query, "occurred_at >= $2")
		assert.Contains(t, query, "kind = ANY($3)")
		assert.Contains(t, query, "LIMIT $4")
		assert.True(t, strings.Index(query, "ORDER BY") < strings.Index(query, "LIMIT"))

		require.Len(t, args, 4)
		assert.Equal(t, since, args[1])
		assert.Equal(t, pq.Array([]string{"product_view", "search_query"}), args[2])
		assert.Equal(t, 50, args[3])
	})
}

func TestDecodeRecord(t *testing.T) {
	id := uuid.New()
	at := time.Date(2025, 5, 2, 9, 0, 0, 0, time.UTC)

	record, err := decodeRecord(id, "u1", "search_query", at,
		[]byte(`{"query":"blue abstract","query_intent":"buy","query_categories":["Abstract"]}`))
	require.NoError(t, err)

	assert.Equal(t, id, record.ID)
	require.NotNil(t, record.Search)
	assert.Equal(t, "buy", record.Search.QueryIntent)
	assert.Equal(t, []string{"Abstract"}, record.Search.QueryCategories)
}

func TestDecodeRecordEmptyAttributes(t *testing.T) {
	record, err := decodeRecord(uuid.New(), "u1", "user_interaction", time.Now(), []byte(`{}`))
	require.NoError(t, err)
	require.NotNil(t, record.Action)
	assert.Empty(t, record.Action.Action)
}

func TestDecodeRecordRejectsMalformed(t *testing.T) {
	_, err := decodeRecord(uuid.New(), "u1", "product_view", time.Now(), []byte(`{"dominant_colors":"red"}`))
	assert.True(t, errors.Is(err, personalization.ErrMalformedRecord))

	_, err = decodeRecord(uuid.New(), "u1", "unknown", time.Now(), nil)
	assert.True(t, errors.Is(err, personalization.ErrMalformedRecord))
}

func TestAppendRejectsInvalidRecord(t *testing.T) {
	store := NewStore(nil, nil)
	err := store.Append(context.Background(), &personalization.InteractionRecord{Kind: personalization.KindProductView})
	assert.True(t, errors.Is(err, personalization.ErrMalformedRecord))
}

// setupTestDB returns a database connection for integration tests.
// Requires CURATOR_TEST_POSTGRES_DSN; skipped otherwise.
func setupTestDB(t *testing.T) *sql.DB {
	dsn := os.Getenv("CURATOR_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("CURATOR_TEST_POSTGRES_DSN not set, skipping database test")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Skipf("Skipping test: cannot open database: %v", err)
	}
	if err := db.Ping(); err != nil {
		t.Skipf("Skipping test: database not available: %v", err)
	}
	for _, stmt := range Schema {
		if _, err := db.Exec(stmt); err != nil {
			t.Skipf("Skipping test: cannot create schema: %v", err)
		}
	}
	db.Exec(`DELETE FROM interaction_records WHERE user_id = 'integration-user'`)
	return db
}

func TestAppendAndList(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	store := NewStore(db, nil)
	ctx := context.Background()

	record := &personalization.InteractionRecord{
		UserID:    "integration-user",
		Kind:      personalization.KindProductView,
		Timestamp: time.Now(),
		View:      &personalization.ProductView{Category: "Abstract"},
	}
	require.NoError(t, store.Append(ctx, record))
	require.NotEqual(t, uuid.Nil, record.ID)

	records, err := store.ListForUser(ctx, Query{UserID: "integration-user", Since: time.Now().Add(-time.Hour), Limit: 10})
	require.NoError(t, err)
	require.NotEmpty(t, records)
	assert.Equal(t, "Abstract", records[0].View.Category)
}

func TestCountForUser(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	store := NewStore(db, nil)
	ctx := context.Background()
	now := time.Now()

	for _, age := range []time.Duration{time.Minute, 2 * time.Hour, 48 * time.Hour} {
		require.NoError(t, store.Append(ctx, &personalization.InteractionRecord{
			UserID:    "integration-user",
			Kind:      personalization.KindSearchQuery,
			Timestamp: now.Add(-age),
			Search:    &personalization.SearchQuery{Query: "blue vase"},
		}))
	}

	tests := []struct {
		name     string
		user     string
		since    time.Time
		expected int
	}{
		{"whole history", "integration-user", now.Add(-72 * time.Hour), 3},
		{"inside one day", "integration-user", now.Add(-24 * time.Hour), 2},
		{"inside one hour", "integration-user", now.Add(-time.Hour), 1},
		{"other user", "nobody", now.Add(-72 * time.Hour), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			count, err := store.CountForUser(ctx, tt.user, tt.since)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, count)
		})
	}
}
