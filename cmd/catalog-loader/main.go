package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/saaga0h/curator-platform/internal/catalog"
	"github.com/saaga0h/curator-platform/pkg/config"
	"github.com/saaga0h/curator-platform/pkg/embedding"
	"github.com/saaga0h/curator-platform/pkg/postgres"
)

func main() {
	cfg := config.NewConfig()
	cfg.ServiceName = "catalog-loader"
	cfg.LoadFromEnv()

	catalogPath := pflag.String("catalog", "", "Path to the catalog YAML file (required)")
	dryRun := pflag.Bool("dry-run", false, "Parse and validate the catalog without writing it")
	cfg.LoadFromFlags()

	if *catalogPath == "" {
		fmt.Fprintln(os.Stderr, "Usage: catalog-loader --catalog <file.yaml> [flags]")
		pflag.PrintDefaults()
		os.Exit(2)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: config.ParseLogLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	items, err := catalog.LoadCatalogFile(*catalogPath)
	if err != nil {
		logger.Error("Failed to load catalog", "path", *catalogPath, "error", err)
		os.Exit(1)
	}
	logger.Info("Catalog loaded", "path", *catalogPath, "items", len(items))

	if *dryRun {
		for _, item := range items {
			logger.Info("Item", "id", item.ID, "title", item.Title, "category", item.Category)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgClient := postgres.NewClient(cfg, logger)
	if err := pgClient.Connect(ctx); err != nil {
		logger.Error("Failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer pgClient.Disconnect()

	if err := pgClient.Migrate(ctx, catalog.SchemaName, catalog.Schema(cfg.EmbeddingDimensions)...); err != nil {
		logger.Error("Failed to migrate catalog schema", "error", err)
		os.Exit(1)
	}

	embedder := embedding.NewOllamaClient(cfg.EmbeddingEndpoint, cfg.EmbeddingModel, cfg.EmbeddingDimensions, logger)
	if err := embedder.Health(ctx); err != nil {
		logger.Error("Embedding service unavailable", "endpoint", cfg.EmbeddingEndpoint, "error", err)
		os.Exit(1)
	}

	store := catalog.NewStore(pgClient.DB(), cfg.EmbeddingDimensions, logger)
	stored, err := catalog.Seed(ctx, items, embedder, store, logger)
	if err != nil {
		logger.Error("Catalog seeding stopped", "stored", stored, "total", len(items), "error", err)
		os.Exit(1)
	}

	total, err := store.Count(ctx)
	if err != nil {
		logger.Warn("Failed to count catalog items", "error", err)
	}

	logger.Info("Catalog seeded", "stored", stored, "catalog_size", total)
}
