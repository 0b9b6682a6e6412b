package collector

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/saaga0h/curator-platform/internal/personalization"
	"github.com/saaga0h/curator-platform/pkg/clock"
	"github.com/saaga0h/curator-platform/pkg/mqtt"
)

// Processor parses interaction payloads into records
type Processor struct {
	clock  clock.Clock
	logger *slog.Logger
}

// NewProcessor creates a new message processor
func NewProcessor(c clock.Clock, logger *slog.Logger) *Processor {
	return &Processor{
		clock:  c,
		logger: logger,
	}
}

// ParseMessage parses an interaction message published on
// curator/interaction/{user_id}. The payload is either a bare record or one
// wrapped in {"data": {...}}. A missing user_id is taken from the topic;
// a conflicting one is rejected. Timestamps ahead of the clock are clamped
// to ingestion time so the log never holds future events.
func (p *Processor) ParseMessage(topic string, payload []byte) (*personalization.InteractionRecord, error) {
	topicUser := mqtt.UserFromTopic(topic)
	if topicUser == "" {
		return nil, fmt.Errorf("%w: invalid topic %s", personalization.ErrMalformedRecord, topic)
	}

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	body := payload
	if err := json.Unmarshal(payload, &envelope); err == nil && len(envelope.Data) > 0 {
		body = envelope.Data
	}

	var record personalization.InteractionRecord
	if err := json.Unmarshal(body, &record); err != nil {
		return nil, fmt.Errorf("%w: %v", personalization.ErrMalformedRecord, err)
	}

	if record.UserID == "" {
		record.UserID = topicUser
	} else if record.UserID != topicUser {
		return nil, fmt.Errorf("%w: user %s published on topic for %s",
			personalization.ErrMalformedRecord, record.UserID, topicUser)
	}

	if err := record.Validate(); err != nil {
		return nil, err
	}

	now := p.clock.Now()
	if record.Timestamp.After(now) {
		p.logger.Debug("Clamping future interaction timestamp",
			"user_id", record.UserID,
			"timestamp", record.Timestamp.Format(time.RFC3339Nano))
		record.Timestamp = now
	}

	p.logger.Debug("Parsed interaction",
		"user_id", record.UserID,
		"kind", record.Kind,
		"topic", topic)

	return &record, nil
}

// BuildStalePayload creates the payload published on curator/profile/stale/{user_id}
func (p *Processor) BuildStalePayload(record *personalization.InteractionRecord) ([]byte, error) {
	payload := map[string]interface{}{
		"user_id":   record.UserID,
		"record_id": record.ID.String(),
		"kind":      record.Kind,
		"stored_at": p.clock.Now().UTC().Format(time.RFC3339Nano),
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal stale payload: %w", err)
	}
	return data, nil
}
