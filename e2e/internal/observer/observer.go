package observer

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
)

// DefaultFilter captures every curator topic
const DefaultFilter = "curator/#"

// CapturedMessage represents a single MQTT message captured during observation
type CapturedMessage struct {
	Timestamp time.Time       `json:"timestamp"`
	Topic     string          `json:"topic"`
	Payload   json.RawMessage `json:"payload"`
	QoS       byte            `json:"qos"`
}

// Observer captures MQTT traffic for later checks
type Observer struct {
	client    paho.Client
	broker    string
	filter    string
	startTime time.Time
	logger    *slog.Logger

	mu       sync.RWMutex
	messages []CapturedMessage
}

// NewObserver creates a new MQTT observer. An empty filter means DefaultFilter.
func NewObserver(broker, filter string, logger *slog.Logger) *Observer {
	if logger == nil {
		logger = slog.Default()
	}
	if filter == "" {
		filter = DefaultFilter
	}

	return &Observer{
		broker: broker,
		filter: filter,
		logger: logger,
	}
}

// Start begins capturing MQTT traffic
func (o *Observer) Start() error {
	o.startTime = time.Now()

	opts := paho.NewClientOptions()
	opts.AddBroker(o.broker)
	opts.SetClientID(fmt.Sprintf("curator-observer-%d", time.Now().UnixNano()))
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectionLostHandler(func(client paho.Client, err error) {
		o.logger.Warn("Observer connection lost", "error", err)
	})
	opts.SetOnConnectHandler(func(client paho.Client) {
		token := client.Subscribe(o.filter, 0, o.handleMessage)
		token.Wait()
		if token.Error() != nil {
			o.logger.Error("Observer failed to subscribe", "filter", o.filter, "error", token.Error())
			return
		}
		o.logger.Info("Observer subscribed", "broker", o.broker, "filter", o.filter)
	})

	o.client = paho.NewClient(opts)
	token := o.client.Connect()
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("failed to connect to MQTT broker: %w", token.Error())
	}

	return nil
}

func (o *Observer) handleMessage(_ paho.Client, msg paho.Message) {
	o.Record(msg.Topic(), msg.Qos(), msg.Payload())
}

// Record stores one message. Payloads that are not JSON are kept as JSON strings.
func (o *Observer) Record(topic string, qos byte, payload []byte) {
	var raw json.RawMessage
	if json.Valid(payload) {
		raw = append(raw, payload...)
	} else {
		raw, _ = json.Marshal(string(payload))
	}

	o.mu.Lock()
	o.messages = append(o.messages, CapturedMessage{
		Timestamp: time.Now(),
		Topic:     topic,
		Payload:   raw,
		QoS:       qos,
	})
	o.mu.Unlock()

	o.logger.Debug("Captured message",
		"elapsed", time.Since(o.startTime).Round(10*time.Millisecond),
		"topic", topic,
		"bytes", len(payload))
}

// Latest returns the most recent message on topic, or nil
func (o *Observer) Latest(topic string) *CapturedMessage {
	o.mu.RLock()
	defer o.mu.RUnlock()

	for i := len(o.messages) - 1; i >= 0; i-- {
		if o.messages[i].Topic == topic {
			msg := o.messages[i]
			return &msg
		}
	}
	return nil
}

// MessagesByTopic returns all messages for a specific topic
func (o *Observer) MessagesByTopic(topic string) []CapturedMessage {
	o.mu.RLock()
	defer o.mu.RUnlock()

	var matches []CapturedMessage
	for _, msg := range o.messages {
		if msg.Topic == topic {
			matches = append(matches, msg)
		}
	}
	return matches
}

// Count returns the number of captured messages
func (o *Observer) Count() int {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return len(o.messages)
}

// SaveCapture writes all captured messages to filename as JSON
func (o *Observer) SaveCapture(filename string) error {
	o.mu.RLock()
	data, err := json.MarshalIndent(o.messages, "", "  ")
	count := len(o.messages)
	o.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("failed to marshal messages: %w", err)
	}

	if dir := filepath.Dir(filename); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create capture directory: %w", err)
		}
	}
	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("failed to save capture: %w", err)
	}

	o.logger.Info("Saved capture", "messages", count, "file", filename)
	return nil
}

// Stop disconnects from the MQTT broker
func (o *Observer) Stop() {
	if o.client != nil && o.client.IsConnected() {
		o.client.Disconnect(250)
		o.logger.Info("Observer disconnected")
	}
}
