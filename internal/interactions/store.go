package interactions

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/saaga0h/curator-platform/internal/personalization"
)

// SchemaName identifies the interaction log schema in schema_migrations
const SchemaName = "0001_interaction_records"

// Schema creates the append-only interaction log
var Schema = []string{
	`CREATE TABLE IF NOT EXISTS interaction_records (
		id          UUID PRIMARY KEY,
		user_id     TEXT NOT NULL,
		kind        TEXT NOT NULL,
		occurred_at TIMESTAMPTZ NOT NULL,
		attributes  JSONB NOT NULL DEFAULT '{}'::jsonb,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_interaction_records_user_time
		ON interaction_records (user_id, occurred_at DESC)`,
}

// Query selects a user's records inside a time window
type Query struct {
	UserID string
	Since  time.Time
	Limit  int
	// Kinds restricts the result when non-empty
	Kinds []personalization.Kind
}

// Store persists interaction records in PostgreSQL. Records are only ever inserted.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewStore creates a new interaction store
func NewStore(db *sql.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger}
}

// Append inserts a record, assigning an id when it has none
func (s *Store) Append(ctx context.Context, record *personalization.InteractionRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}

	attrs, err := record.AttributesJSON()
	if err != nil {
		return fmt.Errorf("failed to marshal attributes: %w", err)
	}
	if attrs == nil {
		attrs = []byte("{}")
	}

	query := `
		INSERT INTO interaction_records (id, user_id, kind, occurred_at, attributes)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err = s.db.ExecContext(ctx, query,
		record.ID,
		record.UserID,
		string(record.Kind),
		record.Timestamp.UTC(),
		attrs,
	)
	if err != nil {
		return fmt.Errorf("failed to insert interaction record: %w", err)
	}

	return nil
}

// ListForUser returns the user's most recent records, newest first.
// Rows whose attributes cannot be decoded are skipped.
func (s *Store) ListForUser(ctx context.Context, q Query) ([]personalization.InteractionRecord, error) {
	query, args := buildListQuery(q)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	var records []personalization.InteractionRecord
	for rows.Next() {
		var (
			id         uuid.UUID
			userID     string
			kind       string
			occurredAt time.Time
			attrs      []byte
		)
		if err := rows.Scan(&id, &userID, &kind, &occurredAt, &attrs); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}

		record, err := decodeRecord(id, userID, kind, occurredAt, attrs)
		if err != nil {
			s.logger.Warn("Skipping malformed interaction record",
				"id", id,
				"user_id", userID,
				"error", err)
			continue
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration failed: %w", err)
	}

	return records, nil
}

// CountForUser returns how many records the user has since the given time
func (s *Store) CountForUser(ctx context.Context, userID string, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM interaction_records WHERE user_id = $1 AND occurred_at >= $2`,
		userID, since.UTC(),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count failed: %w", err)
	}
	return count, nil
}

func buildListQuery(q Query) (string, []interface{}) {
	var sb strings.Builder
	sb.WriteString(`
		SELECT id, user_id, kind, occurred_at, attributes
		FROM interaction_records
		WHERE user_id = $1`)
	args := []interface{}{q.UserID}

	if !q.Since.IsZero() {
		args = append(args, q.Since.UTC())
		fmt.Fprintf(&sb, " AND occurred_at >= $%d", len(args))
	}

	if len(q.Kinds) > 0 {
		kinds := make([]string, len(q.Kinds))
		for i, k := range q.Kinds {
			kinds[i] = string(k)
		}
		args = append(args, pq.Array(kinds))
		fmt.Fprintf(&sb, " AND kind = ANY($%d)", len(args))
	}

	sb.WriteString(" ORDER BY occurred_at DESC")

	if q.Limit > 0 {
		args = append(args, q.Limit)
		fmt.Fprintf(&sb, " LIMIT $%d", len(args))
	}

	return sb.String(), args
}

func decodeRecord(id uuid.UUID, userID, kind string, occurredAt time.Time, attrs []byte) (personalization.InteractionRecord, error) {
	record := personalization.InteractionRecord{
		ID:        id,
		UserID:    userID,
		Kind:      personalization.Kind(kind),
		Timestamp: occurredAt,
	}
	if err := record.SetAttributesJSON(attrs); err != nil {
		return personalization.InteractionRecord{}, err
	}
	if err := record.Validate(); err != nil {
		return personalization.InteractionRecord{}, err
	}
	return record, nil
}
