package clock

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/saaga0h/curator-platform/pkg/mqtt"
)

// TopicTimeConfig carries virtual time configuration for scenario testing
const TopicTimeConfig = "curator/test/time_config"

// Clock supplies the current time. Everything that decays by age takes one
// so results are reproducible in tests.
type Clock interface {
	Now() time.Time
}

// System is the wall clock
type System struct{}

// Now returns time.Now()
func (System) Now() time.Time { return time.Now() }

// Fixed always returns the same instant
type Fixed time.Time

// Now returns the fixed instant
func (f Fixed) Now() time.Time { return time.Time(f) }

// Manager is a Clock that follows the wall clock until a virtual start time is
// configured, after which it runs from that start at the configured speed.
type Manager struct {
	mu           sync.RWMutex
	virtualMode  bool
	virtualStart time.Time
	realStart    time.Time
	timeScale    int
	logger       *slog.Logger
}

// NewManager creates a manager in wall-clock mode
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		realStart: time.Now(),
		timeScale: 1,
		logger:    logger,
	}
}

// ConfigureFromMQTT subscribes to virtual time configuration messages
func (m *Manager) ConfigureFromMQTT(mqttClient mqtt.Client) error {
	handler := func(msg mqtt.Message) {
		m.HandleConfig(msg.Payload())
	}

	return mqttClient.Subscribe(TopicTimeConfig, 1, handler)
}

// HandleConfig applies a JSON payload of the form
// {"virtual_start": RFC3339, "time_scale": int, "test_mode": bool}
func (m *Manager) HandleConfig(payload []byte) {
	var config struct {
		VirtualStart string `json:"virtual_start"`
		TimeScale    int    `json:"time_scale"`
		TestMode     bool   `json:"test_mode"`
	}

	if err := json.Unmarshal(payload, &config); err != nil {
		m.logger.Error("Failed to parse time config", "error", err)
		return
	}

	if !config.TestMode {
		m.mu.Lock()
		m.virtualMode = false
		m.mu.Unlock()
		m.logger.Info("Virtual time disabled")
		return
	}

	virtualStart, err := time.Parse(time.RFC3339, config.VirtualStart)
	if err != nil {
		m.logger.Error("Invalid virtual_start time", "error", err)
		return
	}

	scale := config.TimeScale
	if scale < 1 {
		scale = 1
	}

	m.mu.Lock()
	m.virtualMode = true
	m.virtualStart = virtualStart
	m.realStart = time.Now()
	m.timeScale = scale
	m.mu.Unlock()

	m.logger.Info("Virtual time configured",
		"virtual_start", config.VirtualStart,
		"time_scale", scale)
}

// Now returns the current time (real or virtual)
func (m *Manager) Now() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.virtualMode {
		return time.Now()
	}

	realElapsed := time.Since(m.realStart)
	return m.virtualStart.Add(realElapsed * time.Duration(m.timeScale))
}

// IsVirtual reports whether virtual time is active
func (m *Manager) IsVirtual() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.virtualMode
}
