package recommender

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/saaga0h/curator-platform/pkg/clock"
	"github.com/saaga0h/curator-platform/pkg/config"
	"github.com/saaga0h/curator-platform/pkg/mqtt"
	"github.com/saaga0h/curator-platform/pkg/redis"
)

// limiterCleanupInterval is how often idle per-user limiters are swept
const limiterCleanupInterval = 10 * time.Minute

// Agent runs the recommendation API and keeps cached profiles in step with
// the collector's profile-stale triggers
type Agent struct {
	mqtt      mqtt.Client
	redis     redis.Client
	service   *Service
	limiter   *RateLimiter
	timeCfg   *clock.Manager
	cfg       *config.Config
	logger    *slog.Logger
	apiServer *http.Server
}

// NewAgent creates a new recommender agent. limiter and timeCfg may be nil.
func NewAgent(mqttClient mqtt.Client, redisClient redis.Client, service *Service, limiter *RateLimiter, timeCfg *clock.Manager, cfg *config.Config, logger *slog.Logger) *Agent {
	return &Agent{
		mqtt:    mqttClient,
		redis:   redisClient,
		service: service,
		limiter: limiter,
		timeCfg: timeCfg,
		cfg:     cfg,
		logger:  logger,
		apiServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.APIPort),
			Handler:           NewAPI(service, logger).Handler(),
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// Start connects, subscribes to profile-stale triggers, serves the API and
// blocks until ctx is done
func (a *Agent) Start(ctx context.Context) error {
	a.logger.Info("Starting recommender agent",
		"service_name", a.cfg.ServiceName,
		"mqtt_broker", a.cfg.MQTTAddress(),
		"api_port", a.cfg.APIPort)

	if err := a.mqtt.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to MQTT: %w", err)
	}

	if err := a.redis.Ping(ctx); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}

	if a.timeCfg != nil {
		if err := a.timeCfg.ConfigureFromMQTT(a.mqtt); err != nil {
			a.logger.Warn("Failed to subscribe to time config", "error", err)
		}
	}

	if err := a.mqtt.Subscribe(mqtt.TopicProfileStale, 1, a.handleProfileStale); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", mqtt.TopicProfileStale, err)
	}

	if a.limiter != nil {
		a.limiter.StartCleanup(limiterCleanupInterval)
	}

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("Starting recommendation API", "addr", a.apiServer.Addr)
		if err := a.apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	a.logger.Info("Recommender agent started", "stale_topic", mqtt.TopicProfileStale)

	select {
	case <-ctx.Done():
		a.logger.Info("Recommender agent stopping")
		return nil
	case err := <-serveErr:
		return fmt.Errorf("recommendation API failed: %w", err)
	}
}

// Stop gracefully stops the recommender agent
func (a *Agent) Stop() error {
	a.logger.Info("Stopping recommender agent")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.apiServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("Error shutting down recommendation API", "error", err)
	}

	if a.limiter != nil {
		a.limiter.Stop()
	}

	a.mqtt.Disconnect()

	if err := a.redis.Close(); err != nil {
		a.logger.Error("Error closing Redis connection", "error", err)
		return err
	}

	a.logger.Info("Recommender agent stopped")
	return nil
}

// handleProfileStale drops the cached profile named by the trigger topic
func (a *Agent) handleProfileStale(msg mqtt.Message) {
	userID := mqtt.UserFromTopic(msg.Topic())
	if userID == "" {
		a.logger.Warn("Ignoring profile stale trigger with invalid topic", "topic", msg.Topic())
		return
	}

	if err := a.service.Invalidate(context.Background(), userID); err != nil {
		a.logger.Warn("Failed to invalidate profile", "user_id", userID, "error", err)
		return
	}

	a.logger.Debug("Profile invalidated", "user_id", userID)
}
