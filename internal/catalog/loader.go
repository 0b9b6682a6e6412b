package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/saaga0h/curator-platform/pkg/embedding"
)

// CatalogFile is the YAML seed format
type CatalogFile struct {
	Items []ItemSpec `yaml:"items"`
}

// ItemSpec is one listing in a seed file
type ItemSpec struct {
	ID          string   `yaml:"id"`
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	Category    string   `yaml:"category"`
	Style       string   `yaml:"style"`
	Artist      string   `yaml:"artist"`
	Colors      []string `yaml:"colors"`
	Price       *float64 `yaml:"price"`
	Owner       string   `yaml:"owner"`
	// ListedAt accepts RFC3339 or YYYY-MM-DD
	ListedAt string `yaml:"listed_at"`
}

// Upserter is the write side of the catalog
type Upserter interface {
	Upsert(ctx context.Context, item *Item) error
}

// LoadCatalogFile loads catalog items from a YAML file
func LoadCatalogFile(path string) ([]Item, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	return LoadCatalogFromBytes(data)
}

// LoadCatalogFromBytes parses catalog YAML
func LoadCatalogFromBytes(data []byte) ([]Item, error) {
	var file CatalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse catalog YAML: %w", err)
	}

	items := make([]Item, 0, len(file.Items))
	for i, entry := range file.Items {
		item, err := entry.toItem()
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		items = append(items, item)
	}

	return items, nil
}

func (s ItemSpec) toItem() (Item, error) {
	if strings.TrimSpace(s.Title) == "" {
		return Item{}, fmt.Errorf("title is required")
	}

	item := Item{
		Title:       s.Title,
		Description: s.Description,
		Category:    s.Category,
		Style:       s.Style,
		Artist:      s.Artist,
		Colors:      s.Colors,
		Price:       s.Price,
		OwnerID:     s.Owner,
	}

	if s.ID != "" {
		id, err := uuid.Parse(s.ID)
		if err != nil {
			return Item{}, fmt.Errorf("invalid id %q: %w", s.ID, err)
		}
		item.ID = id
	} else {
		// Stable ids keep re-seeding idempotent
		item.ID = uuid.NewSHA1(uuid.NameSpaceURL, []byte("curator:item:"+s.Title+":"+s.Artist))
	}

	if s.ListedAt != "" {
		listedAt, err := parseListedAt(s.ListedAt)
		if err != nil {
			return Item{}, err
		}
		item.ListedAt = listedAt
	}

	return item, nil
}

func parseListedAt(value string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid listed_at %q", value)
}

// EmbeddingText is the text an item is embedded from
func EmbeddingText(item Item) string {
	parts := []string{item.Title}
	for _, p := range []string{item.Style, item.Category, item.Artist} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	if len(item.Colors) > 0 {
		parts = append(parts, "in "+strings.Join(item.Colors, ", "))
	}
	if item.Description != "" {
		parts = append(parts, item.Description)
	}
	return strings.Join(parts, " ")
}

// Seed embeds each item and upserts it. It stops at the first failure and
// returns how many items were stored before it.
func Seed(ctx context.Context, items []Item, embedder embedding.Client, store Upserter, logger *slog.Logger) (int, error) {
	if logger == nil {
		logger = slog.Default()
	}

	stored := 0
	for i := range items {
		item := &items[i]

		vector, err := embedder.Embed(ctx, EmbeddingText(*item))
		if err != nil {
			return stored, fmt.Errorf("failed to embed item %q: %w", item.Title, err)
		}
		item.Embedding = vector

		if err := store.Upsert(ctx, item); err != nil {
			return stored, err
		}
		stored++

		logger.Debug("Seeded catalog item", "id", item.ID, "title", item.Title)
	}

	return stored, nil
}
