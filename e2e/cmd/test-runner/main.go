package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/saaga0h/curator-platform/e2e/internal/executor"
	"github.com/saaga0h/curator-platform/e2e/internal/reporter"
	"github.com/saaga0h/curator-platform/e2e/internal/scenario"
)

func main() {
	scenarioPath := pflag.String("scenario", "", "Path to YAML scenario file (required)")
	mqttBroker := pflag.String("mqtt-broker", "tcp://mosquitto:1883", "MQTT broker URL")
	redisAddr := pflag.String("redis-addr", "redis:6379", "Redis address")
	postgresDSN := pflag.String("postgres-dsn", "", "Postgres DSN for database checks")
	apiURL := pflag.String("api-url", "http://recommender-agent:8080", "Recommender API base URL")
	startupDelay := pflag.Duration("startup-delay", 5*time.Second, "Time to let agents pick up test mode")
	outputDir := pflag.String("output-dir", "./test-output", "Output directory for test artifacts")
	verbose := pflag.Bool("verbose", false, "Enable debug logging")
	pflag.Parse()

	if *scenarioPath == "" {
		fmt.Fprintf(os.Stderr, "Error: --scenario is required\n")
		pflag.Usage()
		os.Exit(1)
	}

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	logger.Info("Loading scenario", "path", *scenarioPath)
	scen, err := scenario.LoadScenario(*scenarioPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load scenario: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runner := executor.NewRunner(executor.Config{
		MQTTBroker:   *mqttBroker,
		RedisAddr:    *redisAddr,
		PostgresDSN:  *postgresDSN,
		APIURL:       *apiURL,
		StartupDelay: *startupDelay,
	}, logger)

	result, timelineEvents, err := runner.Run(ctx, scen)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Test execution failed: %v\n", err)
		os.Exit(1)
	}

	name := strings.TrimSuffix(filepath.Base(*scenarioPath), filepath.Ext(*scenarioPath))

	timeline := reporter.GenerateTimeline(result, timelineEvents)
	fmt.Println(timeline)

	timelinePath := filepath.Join(*outputDir, "timelines", name+".txt")
	if err := reporter.SaveTimeline(timeline, timelinePath); err != nil {
		logger.Warn("Failed to save timeline", "error", err)
	}

	capturePath := filepath.Join(*outputDir, "captures", name+".json")
	if err := runner.Observer().SaveCapture(capturePath); err != nil {
		logger.Warn("Failed to save capture", "error", err)
	}

	summaryPath := filepath.Join(*outputDir, "summaries", name+".json")
	if err := reporter.SaveSummary(result, summaryPath); err != nil {
		logger.Warn("Failed to save summary", "error", err)
	}

	if !result.Passed {
		os.Exit(1)
	}
}
