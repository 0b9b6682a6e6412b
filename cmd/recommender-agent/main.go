package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/saaga0h/curator-platform/internal/catalog"
	"github.com/saaga0h/curator-platform/internal/interactions"
	"github.com/saaga0h/curator-platform/internal/recommender"
	"github.com/saaga0h/curator-platform/pkg/clock"
	"github.com/saaga0h/curator-platform/pkg/config"
	"github.com/saaga0h/curator-platform/pkg/embedding"
	"github.com/saaga0h/curator-platform/pkg/health"
	"github.com/saaga0h/curator-platform/pkg/mqtt"
	"github.com/saaga0h/curator-platform/pkg/postgres"
	"github.com/saaga0h/curator-platform/pkg/redis"
)

func main() {
	// Load configuration with hierarchy: defaults → env → flags
	cfg := config.NewConfig()
	cfg.ServiceName = "recommender-agent"
	cfg.LoadFromEnv()
	cfg.LoadFromFlags()

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: config.ParseLogLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	logger.Info("Starting Curator Recommender Agent",
		"service_name", cfg.ServiceName,
		"mqtt_broker", cfg.MQTTAddress(),
		"redis_host", cfg.RedisAddress(),
		"postgres", fmt.Sprintf("%s:%d/%s", cfg.PostgresHost, cfg.PostgresPort, cfg.PostgresDB),
		"embedding_endpoint", cfg.EmbeddingEndpoint,
		"log_level", cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	mqttClient := mqtt.NewClient(cfg, logger)
	redisClient := redis.NewClient(cfg, logger)

	pgClient := postgres.NewClient(cfg, logger)
	if err := pgClient.Connect(ctx); err != nil {
		logger.Error("Failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pgClient.Disconnect()

	if err := pgClient.Migrate(ctx, interactions.SchemaName, interactions.Schema...); err != nil {
		logger.Error("Failed to migrate interaction schema", "error", err)
		os.Exit(1)
	}
	if err := pgClient.Migrate(ctx, catalog.SchemaName, catalog.Schema(cfg.EmbeddingDimensions)...); err != nil {
		logger.Error("Failed to migrate catalog schema", "error", err)
		os.Exit(1)
	}

	embedder := embedding.NewOllamaClient(cfg.EmbeddingEndpoint, cfg.EmbeddingModel, cfg.EmbeddingDimensions, logger)
	retriever := catalog.NewRetriever(embedder, catalog.NewStore(pgClient.DB(), cfg.EmbeddingDimensions, logger), catalog.RetrieverConfig{
		Name:             cfg.ServiceName + "-retriever",
		FailureThreshold: cfg.RetrieverFailureThreshold,
		OpenTimeout:      cfg.RetrieverOpenTimeout,
		OnStateChange:    recommender.RecordBreakerState,
	}, logger)

	timeCfg := clock.NewManager(logger)
	limiter := recommender.NewRateLimiter(cfg.RateLimitPerMinute, cfg.RateLimitBurst, time.Hour)
	service := recommender.NewService(
		interactions.NewStore(pgClient.DB(), logger),
		retriever,
		recommender.NewProfileCache(redisClient, cfg.ProfileCacheTTL, logger),
		limiter,
		timeCfg,
		recommender.OptionsFromConfig(cfg),
		logger,
	)

	agent := recommender.NewAgent(mqttClient, redisClient, service, limiter, timeCfg, cfg, logger)

	healthChecker := health.NewChecker(mqttClient, redisClient, logger)
	healthChecker.AddCheck("postgres", health.PostgresCheck(pgClient))
	healthChecker.AddCheck("embedding", embedder.Health)
	httpServer := startHealthServer(cfg.HealthPort, healthChecker, logger)

	agentErr := make(chan error, 1)
	go func() {
		if err := agent.Start(ctx); err != nil {
			logger.Error("Agent error", "error", err)
			agentErr <- err
		}
	}()

	select {
	case <-sigChan:
		logger.Info("Shutdown signal received (SIGTERM/SIGINT)")
	case err := <-agentErr:
		logger.Error("Agent failed", "error", err)
	}

	logger.Info("Initiating graceful shutdown")
	cancel()

	if err := agent.Stop(); err != nil {
		logger.Error("Error stopping agent", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error shutting down health server", "error", err)
	}

	logger.Info("Recommender agent shutdown complete")
}

func startHealthServer(port int, checker *health.Checker, logger *slog.Logger) *http.Server {
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: checker.Handler(),
	}

	go func() {
		logger.Info("Starting health check server", "port", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Health server error", "error", err)
		}
	}()

	return server
}
