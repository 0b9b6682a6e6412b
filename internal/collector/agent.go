package collector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/saaga0h/curator-platform/internal/personalization"
	"github.com/saaga0h/curator-platform/pkg/clock"
	"github.com/saaga0h/curator-platform/pkg/config"
	"github.com/saaga0h/curator-platform/pkg/mqtt"
	"github.com/saaga0h/curator-platform/pkg/redis"
)

// storeTimeout bounds the append and Redis update for one message
const storeTimeout = 5 * time.Second

// Agent receives interaction events over MQTT and appends them to the interaction log
type Agent struct {
	mqtt      mqtt.Client
	redis     redis.Client
	processor *Processor
	storage   *Storage
	cfg       *config.Config
	logger    *slog.Logger
}

// NewAgent creates a new collector agent with the given dependencies
func NewAgent(mqttClient mqtt.Client, redisClient redis.Client, records RecordStore, c clock.Clock, cfg *config.Config, logger *slog.Logger) *Agent {
	return &Agent{
		mqtt:      mqttClient,
		redis:     redisClient,
		processor: NewProcessor(c, logger),
		storage:   NewStorage(records, redisClient, logger),
		cfg:       cfg,
		logger:    logger,
	}
}

// Start connects, subscribes to the interaction topics and blocks until ctx is done
func (a *Agent) Start(ctx context.Context) error {
	a.logger.Info("Starting collector agent",
		"service_name", a.cfg.ServiceName,
		"mqtt_broker", a.cfg.MQTTAddress())

	if err := a.mqtt.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to MQTT: %w", err)
	}

	if err := a.redis.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}

	for _, topic := range a.cfg.InteractionTopics {
		if err := a.mqtt.Subscribe(topic, 1, a.handleMessage); err != nil {
			a.logger.Error("Failed to subscribe to topic", "topic", topic, "error", err)
			continue
		}
	}

	a.logger.Info("Collector agent started and ready to receive interactions",
		"subscribed_topics", strings.Join(a.cfg.InteractionTopics, ", "))

	<-ctx.Done()
	a.logger.Info("Collector agent stopping")

	return nil
}

// Stop gracefully stops the collector agent
func (a *Agent) Stop() error {
	a.logger.Info("Stopping collector agent")

	a.mqtt.Disconnect()

	if err := a.redis.Close(); err != nil {
		a.logger.Error("Error closing Redis connection", "error", err)
		return err
	}

	a.logger.Info("Collector agent stopped")
	return nil
}

// handleMessage processes one interaction event
func (a *Agent) handleMessage(msg mqtt.Message) {
	topic := msg.Topic()
	payload := msg.Payload()

	a.logger.Debug("Received MQTT message", "topic", topic, "size", len(payload))

	record, err := a.processor.ParseMessage(topic, payload)
	if err != nil {
		if errors.Is(err, personalization.ErrMalformedRecord) {
			a.logger.Warn("Dropping malformed interaction", "topic", topic, "error", err)
		} else {
			a.logger.Error("Failed to parse message", "topic", topic, "error", err)
		}
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	if err := a.storage.StoreInteraction(ctx, record); err != nil {
		a.logger.Error("Failed to store interaction",
			"user_id", record.UserID,
			"kind", record.Kind,
			"error", err)
		return
	}

	if err := a.publishStale(record); err != nil {
		a.logger.Error("Failed to publish profile stale trigger",
			"user_id", record.UserID,
			"error", err)
	}

	a.logger.Info("Interaction processed",
		"user_id", record.UserID,
		"kind", record.Kind)
}

// publishStale tells recommenders the user's profile changed
func (a *Agent) publishStale(record *personalization.InteractionRecord) error {
	payload, err := a.processor.BuildStalePayload(record)
	if err != nil {
		return err
	}

	topic := mqtt.ProfileStaleTopic(record.UserID)
	if err := a.mqtt.Publish(topic, 0, false, payload); err != nil {
		return fmt.Errorf("failed to publish trigger: %w", err)
	}

	a.logger.Debug("Published profile stale trigger", "topic", topic)
	return nil
}
