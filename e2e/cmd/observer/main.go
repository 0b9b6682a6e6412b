package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/saaga0h/curator-platform/e2e/internal/observer"
)

func main() {
	mqttBroker := pflag.String("mqtt-broker", "tcp://mosquitto:1883", "MQTT broker URL")
	filter := pflag.String("filter", observer.DefaultFilter, "Topic filter to capture")
	outputDir := pflag.String("output-dir", "./test-output/captures", "Output directory for captures")
	snapshotInterval := pflag.Duration("snapshot-interval", 30*time.Second, "Snapshot interval")
	pflag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	obs := observer.NewObserver(*mqttBroker, *filter, logger)
	if err := obs.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start observer: %v\n", err)
		os.Exit(1)
	}
	defer obs.Stop()

	logger.Info("Observer running. Press Ctrl+C to stop.")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	ticker := time.NewTicker(*snapshotInterval)
	defer ticker.Stop()

	snapshots := 0
	for {
		select {
		case <-ticker.C:
			snapshots++
			filename := filepath.Join(*outputDir,
				fmt.Sprintf("snapshot-%s-%03d.json", time.Now().Format("20060102-150405"), snapshots))
			if err := obs.SaveCapture(filename); err != nil {
				logger.Warn("Failed to save snapshot", "error", err)
			}

		case <-ctx.Done():
			logger.Info("Shutting down...")
			filename := filepath.Join(*outputDir,
				fmt.Sprintf("final-%s.json", time.Now().Format("20060102-150405")))
			if err := obs.SaveCapture(filename); err != nil {
				logger.Warn("Failed to save final capture", "error", err)
			}
			return
		}
	}
}
