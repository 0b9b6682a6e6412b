package collector

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/saaga0h/curator-platform/internal/personalization"
	"github.com/saaga0h/curator-platform/pkg/redis"
)

// activityTTL keeps per-user counters a little longer than the profile window
const activityTTL = 35 * 24 * time.Hour

// RecordStore is the append side of the interaction log
type RecordStore interface {
	Append(ctx context.Context, record *personalization.InteractionRecord) error
}

// Storage appends records to the log and keeps Redis state in step with it
type Storage struct {
	records RecordStore
	redis   redis.Client
	logger  *slog.Logger
}

// NewStorage creates a new storage handler
func NewStorage(records RecordStore, redisClient redis.Client, logger *slog.Logger) *Storage {
	return &Storage{
		records: records,
		redis:   redisClient,
		logger:  logger,
	}
}

// StoreInteraction appends the record, drops the user's cached profile and
// bumps the activity counters. Only the append is fatal; Redis failures are
// logged because the next profile build reads the log regardless.
func (s *Storage) StoreInteraction(ctx context.Context, record *personalization.InteractionRecord) error {
	if err := s.records.Append(ctx, record); err != nil {
		return fmt.Errorf("failed to append interaction: %w", err)
	}

	if err := s.redis.RecordActivity(ctx, record.UserID, string(record.Kind), record.Timestamp, activityTTL); err != nil {
		s.logger.Warn("Failed to update activity state", "user_id", record.UserID, "kind", record.Kind, "error", err)
	}

	s.logger.Debug("Stored interaction",
		"user_id", record.UserID,
		"kind", record.Kind,
		"record_id", record.ID)

	return nil
}
