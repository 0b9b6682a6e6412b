package executor

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/saaga0h/curator-platform/e2e/internal/scenario"
	"github.com/saaga0h/curator-platform/internal/personalization"
	"github.com/saaga0h/curator-platform/pkg/clock"
	"github.com/saaga0h/curator-platform/pkg/mqtt"
)

// MQTTPlayer publishes scenario interactions to the broker
type MQTTPlayer struct {
	client paho.Client
	broker string
	logger *slog.Logger
}

// NewMQTTPlayer creates a player for broker
func NewMQTTPlayer(broker string, logger *slog.Logger) *MQTTPlayer {
	if logger == nil {
		logger = slog.Default()
	}
	return &MQTTPlayer{broker: broker, logger: logger}
}

// Connect connects to the broker
func (p *MQTTPlayer) Connect() error {
	opts := paho.NewClientOptions()
	opts.AddBroker(p.broker)
	opts.SetClientID(fmt.Sprintf("curator-player-%d", time.Now().UnixNano()))
	opts.SetCleanSession(true)

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	p.logger.Info("Player connected", "broker", p.broker)
	return nil
}

// PublishInteraction publishes event as an interaction record timestamped
// now minus the event's age. It returns the topic used.
func (p *MQTTPlayer) PublishInteraction(event scenario.InteractionEvent, now time.Time) (string, error) {
	payload, err := BuildInteractionPayload(event, now)
	if err != nil {
		return "", err
	}

	topic := mqtt.InteractionTopic(event.User)
	return topic, p.Publish(topic, 1, false, payload)
}

// PublishTimeConfig switches agents to the scenario's virtual time
func (p *MQTTPlayer) PublishTimeConfig(tm *scenario.TestModeConfig) error {
	payload, err := BuildTimeConfigPayload(tm)
	if err != nil {
		return err
	}
	return p.Publish(clock.TopicTimeConfig, 1, true, payload)
}

// Publish sends a raw payload
func (p *MQTTPlayer) Publish(topic string, qos byte, retained bool, payload []byte) error {
	token := p.client.Publish(topic, qos, retained, payload)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, token.Error())
	}
	return nil
}

// Disconnect disconnects from the broker
func (p *MQTTPlayer) Disconnect() {
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(250)
	}
}

// BuildInteractionPayload encodes event in the collector's wire format.
// Attributes are decoded through the record type so typos in a scenario
// fail here rather than in the collector.
func BuildInteractionPayload(event scenario.InteractionEvent, now time.Time) ([]byte, error) {
	record := personalization.InteractionRecord{
		UserID:    event.User,
		Kind:      personalization.Kind(event.Kind),
		Timestamp: now.Add(-event.Age()).UTC(),
	}

	if len(event.Attributes) > 0 {
		raw, err := json.Marshal(event.Attributes)
		if err != nil {
			return nil, fmt.Errorf("failed to encode attributes: %w", err)
		}
		if err := record.SetAttributesJSON(raw); err != nil {
			return nil, err
		}
	}

	if err := record.Validate(); err != nil {
		return nil, err
	}

	return json.Marshal(record)
}

// BuildTimeConfigPayload encodes the virtual time switch read by clock.Manager
func BuildTimeConfigPayload(tm *scenario.TestModeConfig) ([]byte, error) {
	if tm == nil {
		return json.Marshal(map[string]interface{}{"test_mode": false})
	}
	return json.Marshal(map[string]interface{}{
		"virtual_start": tm.VirtualStart,
		"time_scale":    tm.TimeScale,
		"test_mode":     true,
	})
}
