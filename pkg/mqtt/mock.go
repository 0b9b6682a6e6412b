package mqtt

import (
	"context"
	"sync"
)

// PublishedMessage records a call to MockClient.Publish
type PublishedMessage struct {
	Topic    string
	QoS      byte
	Retained bool
	Payload  []byte
}

// MockClient is an in-memory Client for tests
type MockClient struct {
	mu        sync.Mutex
	connected bool
	handlers  map[string]MessageHandler
	Published []PublishedMessage

	// PublishErr forces Publish to fail when non-nil
	PublishErr error
}

// NewMockClient creates a disconnected mock client
func NewMockClient() *MockClient {
	return &MockClient{handlers: make(map[string]MessageHandler)}
}

func (m *MockClient) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = true
	return nil
}

func (m *MockClient) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
}

func (m *MockClient) Subscribe(topic string, qos byte, handler MessageHandler) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[topic] = handler
	return nil
}

func (m *MockClient) Publish(topic string, qos byte, retained bool, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PublishErr != nil {
		return m.PublishErr
	}
	m.Published = append(m.Published, PublishedMessage{Topic: topic, QoS: qos, Retained: retained, Payload: payload})
	return nil
}

func (m *MockClient) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// Deliver invokes the handler subscribed under subscription with a message on topic.
// Returns false when nothing is subscribed there.
func (m *MockClient) Deliver(subscription, topic string, payload []byte) bool {
	m.mu.Lock()
	handler, ok := m.handlers[subscription]
	m.mu.Unlock()
	if !ok {
		return false
	}
	handler(&mockMessage{topic: topic, payload: payload})
	return true
}

type mockMessage struct {
	topic   string
	payload []byte
}

func (m *mockMessage) Topic() string   { return m.topic }
func (m *mockMessage) Payload() []byte { return m.payload }
