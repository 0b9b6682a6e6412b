package health

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/saaga0h/curator-platform/pkg/mqtt"
	"github.com/saaga0h/curator-platform/pkg/postgres"
	"github.com/saaga0h/curator-platform/pkg/redis"
)

// checkTimeout bounds each dependency probe in the detailed check
const checkTimeout = 2 * time.Second

// CheckFunc probes one dependency; nil means healthy
type CheckFunc func(ctx context.Context) error

// Checker provides health check functionality for agents
type Checker struct {
	mqtt   mqtt.Client
	redis  redis.Client
	logger *slog.Logger

	mu     sync.RWMutex
	checks map[string]CheckFunc
}

// NewChecker creates a new health checker with the given dependencies.
// Either client may be nil when the agent does not use it.
func NewChecker(mqttClient mqtt.Client, redisClient redis.Client, logger *slog.Logger) *Checker {
	return &Checker{
		mqtt:   mqttClient,
		redis:  redisClient,
		logger: logger,
		checks: make(map[string]CheckFunc),
	}
}

// AddCheck registers an extra dependency probe for the detailed check
func (h *Checker) AddCheck(name string, check CheckFunc) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = check
}

// PostgresCheck reports Postgres unhealthy when it is unreachable or lacks pgvector
func PostgresCheck(client postgres.Client) CheckFunc {
	return func(ctx context.Context) error {
		status, err := client.HealthCheck(ctx)
		if err != nil {
			return err
		}
		if !status.Connected {
			return fmt.Errorf("disconnected: %s", status.Error)
		}
		if status.Error != "" {
			return fmt.Errorf("%s", status.Error)
		}
		if !status.VectorEnabled {
			return fmt.Errorf("vector extension not installed")
		}
		return nil
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Services  map[string]string `json:"services,omitempty"`
}

// Handler serves /health, /health/detailed and /metrics
func (h *Checker) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.HandlerFunc())
	mux.HandleFunc("/health/detailed", h.DetailedHandlerFunc())
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// HandlerFunc returns 200 while the process is alive without checking dependencies
func (h *Checker) HandlerFunc() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response := HealthResponse{
			Status:    "ok",
			Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		}
		h.write(w, http.StatusOK, response)
	}
}

// DetailedHandlerFunc returns a handler that probes every dependency
func (h *Checker) DetailedHandlerFunc() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		services := h.Check(r.Context())

		status := "healthy"
		statusCode := http.StatusOK
		for _, state := range services {
			if state != "connected" {
				status = "degraded"
				statusCode = http.StatusServiceUnavailable
				break
			}
		}

		response := HealthResponse{
			Status:    status,
			Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
			Services:  services,
		}
		h.write(w, statusCode, response)
	}
}

// Check probes every dependency and returns "connected" or a failure
// description per service
func (h *Checker) Check(ctx context.Context) map[string]string {
	services := make(map[string]string)

	if h.mqtt != nil {
		if h.mqtt.IsConnected() {
			services["mqtt"] = "connected"
		} else {
			services["mqtt"] = "disconnected"
		}
	}

	if h.redis != nil {
		services["redis"] = h.probe(ctx, "redis", h.redis.Ping)
	}

	h.mu.RLock()
	checks := make(map[string]CheckFunc, len(h.checks))
	names := make([]string, 0, len(h.checks))
	for name, check := range h.checks {
		checks[name] = check
		names = append(names, name)
	}
	h.mu.RUnlock()
	sort.Strings(names)

	for _, name := range names {
		services[name] = h.probe(ctx, name, checks[name])
	}

	return services
}

func (h *Checker) probe(ctx context.Context, name string, check CheckFunc) string {
	probeCtx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	if err := check(probeCtx); err != nil {
		h.logger.Warn("Health probe failed", "service", name, "error", err)
		return fmt.Sprintf("unhealthy: %v", err)
	}
	return "connected"
}

func (h *Checker) write(w http.ResponseWriter, statusCode int, response HealthResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("Failed to encode health response", "error", err)
	}
}
