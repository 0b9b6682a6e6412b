package catalog

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
)

// SchemaName identifies the catalog schema in schema_migrations
const SchemaName = "0002_catalog_items"

// Schema returns the statements creating the catalog table for embeddings
// of the given dimension
func Schema(dimensions int) []string {
	return []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS catalog_items (
			id          UUID PRIMARY KEY,
			title       TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			category    TEXT NOT NULL DEFAULT '',
			style       TEXT NOT NULL DEFAULT '',
			artist      TEXT NOT NULL DEFAULT '',
			colors      TEXT[] NOT NULL DEFAULT '{}',
			price       DOUBLE PRECISION,
			owner_id    TEXT NOT NULL DEFAULT '',
			listed_at   TIMESTAMPTZ NOT NULL,
			embedding   vector(%d),
			updated_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		)`, dimensions),
		`CREATE INDEX IF NOT EXISTS idx_catalog_items_embedding
			ON catalog_items USING hnsw (embedding vector_cosine_ops)`,
		`CREATE INDEX IF NOT EXISTS idx_catalog_items_category ON catalog_items (category)`,
	}
}

// Store persists catalog items and answers nearest-neighbor searches
type Store struct {
	db         *sql.DB
	dimensions int
	logger     *slog.Logger
}

// NewStore creates a catalog store for embeddings of the given dimension
func NewStore(db *sql.DB, dimensions int, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, dimensions: dimensions, logger: logger}
}

// Upsert inserts or replaces an item, assigning an id when it has none
func (s *Store) Upsert(ctx context.Context, item *Item) error {
	if item.Title == "" {
		return fmt.Errorf("item title is required")
	}
	if n := len(item.Embedding.Slice()); n != s.dimensions {
		return fmt.Errorf("item %q has %d-dimensional embedding, want %d", item.Title, n, s.dimensions)
	}
	if item.ID == uuid.Nil {
		item.ID = uuid.New()
	}
	if item.ListedAt.IsZero() {
		item.ListedAt = time.Now()
	}

	colors := item.Colors
	if colors == nil {
		colors = []string{}
	}

	var price sql.NullFloat64
	if item.Price != nil {
		price = sql.NullFloat64{Float64: *item.Price, Valid: true}
	}

	query := `
		INSERT INTO catalog_items (
			id, title, description, category, style, artist, colors, price,
			owner_id, listed_at, embedding, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, now())
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			description = EXCLUDED.description,
			category = EXCLUDED.category,
			style = EXCLUDED.style,
			artist = EXCLUDED.artist,
			colors = EXCLUDED.colors,
			price = EXCLUDED.price,
			owner_id = EXCLUDED.owner_id,
			listed_at = EXCLUDED.listed_at,
			embedding = EXCLUDED.embedding,
			updated_at = now()
	`

	_, err := s.db.ExecContext(ctx, query,
		item.ID,
		item.Title,
		item.Description,
		item.Category,
		item.Style,
		item.Artist,
		pq.Array(colors),
		price,
		item.OwnerID,
		item.ListedAt.UTC(),
		item.Embedding,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert catalog item: %w", err)
	}

	return nil
}

// Search returns the items closest to vector by cosine distance, nearest first
func (s *Store) Search(ctx context.Context, vector pgvector.Vector, opts SearchOptions) ([]SearchResult, error) {
	query, args := buildSearchQuery(vector, opts)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("catalog search failed: %w", err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var (
			r     SearchResult
			price sql.NullFloat64
		)
		err := rows.Scan(
			&r.Item.ID,
			&r.Item.Title,
			&r.Item.Description,
			&r.Item.Category,
			&r.Item.Style,
			&r.Item.Artist,
			pq.Array(&r.Item.Colors),
			&price,
			&r.Item.OwnerID,
			&r.Item.ListedAt,
			&r.Distance,
		)
		if err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		if price.Valid {
			p := price.Float64
			r.Item.Price = &p
		}
		results = append(results, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}

	return results, nil
}

// Count returns the number of items with an embedding
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM catalog_items WHERE embedding IS NOT NULL`,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count catalog items: %w", err)
	}
	return count, nil
}

func buildSearchQuery(vector pgvector.Vector, opts SearchOptions) (string, []interface{}) {
	args := []interface{}{vector}
	conditions := []string{"embedding IS NOT NULL"}

	if opts.ExcludeOwner != "" {
		args = append(args, opts.ExcludeOwner)
		conditions = append(conditions, fmt.Sprintf("owner_id <> $%d", len(args)))
	}
	if opts.Category != "" {
		args = append(args, opts.Category)
		conditions = append(conditions, fmt.Sprintf("category = $%d", len(args)))
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}
	args = append(args, limit)

	query := fmt.Sprintf(`
		SELECT id, title, description, category, style, artist, colors, price,
		       owner_id, listed_at, embedding <=> $1 AS distance
		FROM catalog_items
		WHERE %s
		ORDER BY embedding <=> $1
		LIMIT $%d
	`, strings.Join(conditions, " AND "), len(args))

	return query, args
}
