package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pgvector/pgvector-go"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/saaga0h/curator-platform/internal/personalization"
	"github.com/saaga0h/curator-platform/pkg/embedding"
)

// Searcher is the nearest-neighbor side of the catalog
type Searcher interface {
	Search(ctx context.Context, vector pgvector.Vector, opts SearchOptions) ([]SearchResult, error)
}

// RetrieverConfig configures the breaker around embedding + search
type RetrieverConfig struct {
	Name             string
	FailureThreshold uint32
	OpenTimeout      time.Duration
	// OnStateChange is called after the breaker changes state
	OnStateChange func(from, to gobreaker.State)
}

// Retriever fetches ranking candidates for a profile
type Retriever struct {
	embedder embedding.Client
	searcher Searcher
	breaker  *gobreaker.CircuitBreaker[[]personalization.RecommendationCandidate]
	logger   *slog.Logger
}

// NewRetriever creates a retriever. After FailureThreshold consecutive
// failures the breaker opens and calls fail fast for OpenTimeout.
func NewRetriever(embedder embedding.Client, searcher Searcher, cfg RetrieverConfig, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Name == "" {
		cfg.Name = "catalog-retriever"
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = 5
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Retriever circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String())
			if cfg.OnStateChange != nil {
				cfg.OnStateChange(from, to)
			}
		},
		// A caller giving up says nothing about upstream health
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	}

	return &Retriever{
		embedder: embedder,
		searcher: searcher,
		breaker:  gobreaker.NewCircuitBreaker[[]personalization.RecommendationCandidate](settings),
		logger:   logger,
	}
}

// Retrieve embeds the query built from profile and reqCtx and returns up to
// limit candidates, nearest first. Every failure, including an open breaker,
// wraps ErrUpstreamUnavailable.
func (r *Retriever) Retrieve(ctx context.Context, profile personalization.UserProfile, reqCtx RequestContext, limit int) ([]personalization.RecommendationCandidate, error) {
	query := BuildQuery(profile, reqCtx)

	candidates, err := r.breaker.Execute(func() ([]personalization.RecommendationCandidate, error) {
		vector, err := r.embedder.Embed(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("failed to embed query: %w", err)
		}

		results, err := r.searcher.Search(ctx, vector, SearchOptions{
			Limit:        limit,
			ExcludeOwner: reqCtx.ExcludeUser,
		})
		if err != nil {
			return nil, err
		}

		out := make([]personalization.RecommendationCandidate, 0, len(results))
		for _, res := range results {
			out = append(out, res.Candidate())
		}
		return out, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}

	r.logger.Debug("Retrieved candidates",
		"user_id", profile.UserID,
		"query", query,
		"count", len(candidates))

	return candidates, nil
}

// State reports the breaker state
func (r *Retriever) State() gobreaker.State {
	return r.breaker.State()
}
