package catalog

import (
	"errors"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/saaga0h/curator-platform/internal/personalization"
)

// ErrUpstreamUnavailable means candidates could not be retrieved, either
// because the embedding service or catalog failed or the breaker is open
var ErrUpstreamUnavailable = errors.New("candidate retrieval unavailable")

// Item is a catalog listing with its embedding
type Item struct {
	ID          uuid.UUID       `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description,omitempty"`
	Category    string          `json:"category,omitempty"`
	Style       string          `json:"style,omitempty"`
	Artist      string          `json:"artist,omitempty"`
	Colors      []string        `json:"colors,omitempty"`
	Price       *float64        `json:"price,omitempty"`
	OwnerID     string          `json:"owner_id,omitempty"`
	ListedAt    time.Time       `json:"listed_at"`
	Embedding   pgvector.Vector `json:"-"`
}

// SearchOptions narrows a nearest-neighbor search
type SearchOptions struct {
	Limit int
	// ExcludeOwner drops items listed by this user when non-empty
	ExcludeOwner string
	// Category restricts results when non-empty
	Category string
}

// SearchResult is an item with its cosine distance from the query vector
type SearchResult struct {
	Item     Item
	Distance float64
}

// Candidate converts the result into a ranking candidate. The base score is
// 1 - distance clamped to [0,1]. An undefined distance, as pgvector reports
// against a zero vector, leaves the base score absent.
func (r SearchResult) Candidate() personalization.RecommendationCandidate {
	var base *float64
	if !math.IsNaN(r.Distance) {
		score := math.Max(0, math.Min(1, 1-r.Distance))
		base = &score
	}
	return personalization.RecommendationCandidate{
		ItemID:    r.Item.ID.String(),
		Title:     r.Item.Title,
		BaseScore: base,
		Category:  r.Item.Category,
		Style:     r.Item.Style,
		Artist:    r.Item.Artist,
		Price:     r.Item.Price,
		Timestamp: r.Item.ListedAt,
	}
}
