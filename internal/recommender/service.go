// Package recommender serves personalized recommendations: it builds and
// caches user profiles from the interaction log, retrieves candidates from
// the catalog and ranks them with the personalization engine.
package recommender

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/saaga0h/curator-platform/internal/catalog"
	"github.com/saaga0h/curator-platform/internal/interactions"
	"github.com/saaga0h/curator-platform/internal/personalization"
	"github.com/saaga0h/curator-platform/pkg/clock"
	"github.com/saaga0h/curator-platform/pkg/config"
)

const (
	// LowConfidenceThreshold marks result sets the client should present cautiously
	LowConfidenceThreshold = 0.3

	// profileBuildTimeout bounds a shared build, which outlives any single caller
	profileBuildTimeout = 10 * time.Second
)

var (
	// ErrRateLimited means the user exceeded the per-user request rate
	ErrRateLimited = errors.New("rate limit exceeded")

	// ErrMissingUser means the request carried no user id
	ErrMissingUser = errors.New("user_id is required")
)

// RecordReader reads a user's interaction history
type RecordReader interface {
	ListForUser(ctx context.Context, q interactions.Query) ([]personalization.InteractionRecord, error)
	CountForUser(ctx context.Context, userID string, since time.Time) (int, error)
}

// CandidateRetriever fetches items to rank
type CandidateRetriever interface {
	Retrieve(ctx context.Context, profile personalization.UserProfile, reqCtx catalog.RequestContext, limit int) ([]personalization.RecommendationCandidate, error)
}

// Options tunes the service
type Options struct {
	HistoryWindow           time.Duration
	HistoryLimit            int
	MaxRecommendations      int
	CandidateLimit          int
	MaxConcurrentRetrievals int
}

// OptionsFromConfig extracts service options from the agent config
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		HistoryWindow:           cfg.HistoryWindow(),
		HistoryLimit:            cfg.HistoryLimit,
		MaxRecommendations:      cfg.MaxRecommendations,
		CandidateLimit:          cfg.CandidateLimit,
		MaxConcurrentRetrievals: cfg.MaxConcurrentRetrievals,
	}
}

// Request asks for recommendations for one user
type Request struct {
	UserID  string
	Context catalog.RequestContext
	// Limit caps the result; zero or anything above MaxRecommendations means the maximum
	Limit int
}

// ProfileSummary is the part of the profile returned with recommendations
type ProfileSummary struct {
	ActivityLevel           int                                     `json:"activity_level"`
	ExplorationScore        float64                                 `json:"exploration_score"`
	Confidence              float64                                 `json:"confidence"`
	LastActive              *time.Time                              `json:"last_active"`
	DominantCharacteristics personalization.DominantCharacteristics `json:"dominant_characteristics"`
}

// Result is a ranked recommendation set
type Result struct {
	UserID          string                                 `json:"user_id"`
	Recommendations []personalization.ScoredRecommendation `json:"recommendations"`
	Confidence      float64                                `json:"confidence"`
	LowConfidence   bool                                   `json:"low_confidence"`
	// Degraded is set when candidates could not be retrieved
	Degraded    bool           `json:"degraded"`
	Profile     ProfileSummary `json:"profile"`
	GeneratedAt time.Time      `json:"generated_at"`
}

// Service answers recommendation and profile requests
type Service struct {
	records    RecordReader
	retriever  CandidateRetriever
	cache      *ProfileCache
	limiter    *RateLimiter
	clock      clock.Clock
	engine     *personalization.Engine
	opts       Options
	builds     singleflight.Group
	retrievals *semaphore.Weighted
	logger     *slog.Logger
}

// NewService creates a recommendation service. limiter may be nil to disable
// rate limiting.
func NewService(records RecordReader, retriever CandidateRetriever, cache *ProfileCache, limiter *RateLimiter, c clock.Clock, opts Options, logger *slog.Logger) *Service {
	if c == nil {
		c = clock.System{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxRecommendations <= 0 || opts.MaxRecommendations > personalization.MaxRecommendations {
		opts.MaxRecommendations = personalization.MaxRecommendations
	}
	if opts.CandidateLimit < opts.MaxRecommendations {
		opts.CandidateLimit = opts.MaxRecommendations
	}
	if opts.MaxConcurrentRetrievals <= 0 {
		opts.MaxConcurrentRetrievals = 8
	}

	return &Service{
		records:    records,
		retriever:  retriever,
		cache:      cache,
		limiter:    limiter,
		clock:      c,
		engine:     personalization.NewEngine(c, opts.MaxRecommendations),
		opts:       opts,
		retrievals: semaphore.NewWeighted(int64(opts.MaxConcurrentRetrievals)),
		logger:     logger,
	}
}

// Recommend ranks catalog candidates for the user. A retrieval failure
// yields an empty, degraded result rather than an error.
func (s *Service) Recommend(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	outcome := outcomeError
	defer func() {
		RecommendationRequests.WithLabelValues(outcome).Inc()
		RecommendationDuration.Observe(time.Since(start).Seconds())
	}()

	if req.UserID == "" {
		outcome = outcomeInvalid
		return nil, ErrMissingUser
	}

	if s.limiter != nil && !s.limiter.Allow(req.UserID) {
		outcome = outcomeRateLimited
		return nil, ErrRateLimited
	}

	profile, err := s.Profile(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	candidates, degraded, err := s.retrieve(ctx, *profile, req.Context)
	if err != nil {
		return nil, err
	}

	ranked, confidence := s.engine.Recommend(*profile, candidates, req.Limit)
	if ranked == nil {
		ranked = []personalization.ScoredRecommendation{}
	}

	result := &Result{
		UserID:          req.UserID,
		Recommendations: ranked,
		Confidence:      confidence,
		LowConfidence:   confidence < LowConfidenceThreshold,
		Degraded:        degraded,
		Profile: ProfileSummary{
			ActivityLevel:           profile.ActivityLevel,
			ExplorationScore:        profile.ExplorationScore,
			Confidence:              profile.Confidence,
			LastActive:              profile.LastActive,
			DominantCharacteristics: profile.DominantCharacteristics,
		},
		GeneratedAt: s.clock.Now(),
	}

	outcome = outcomeOK
	if degraded {
		outcome = outcomeDegraded
	}
	RecommendationConfidence.Observe(confidence)

	s.logger.Info("Recommendations served",
		"user_id", req.UserID,
		"candidates", len(candidates),
		"returned", len(ranked),
		"confidence", confidence,
		"degraded", degraded)

	return result, nil
}

// Profile returns the user's profile from cache, building it from the
// interaction log on a miss. Concurrent builds for one user are shared.
func (s *Service) Profile(ctx context.Context, userID string) (*personalization.UserProfile, error) {
	if userID == "" {
		return nil, ErrMissingUser
	}

	cached, err := s.cache.Get(ctx, userID)
	switch {
	case err != nil:
		ProfileCacheLookups.WithLabelValues("error").Inc()
		s.logger.Warn("Profile cache unavailable, building from log", "user_id", userID, "error", err)
	case cached != nil:
		ProfileCacheLookups.WithLabelValues("hit").Inc()
		return cached, nil
	default:
		ProfileCacheLookups.WithLabelValues("miss").Inc()
	}

	// The build runs detached so one caller leaving does not fail the others
	// waiting on it. Each caller still stops waiting when its own ctx ends.
	builds := s.builds.DoChan(userID, func() (interface{}, error) {
		buildCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), profileBuildTimeout)
		defer cancel()
		return s.buildProfile(buildCtx, userID)
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-builds:
		ProfileBuilds.WithLabelValues(strconv.FormatBool(res.Shared)).Inc()
		if res.Err != nil {
			return nil, res.Err
		}
		profile := res.Val.(personalization.UserProfile)
		return &profile, nil
	}
}

// InteractionCount returns how many interactions the user logged inside the
// history window, including any beyond the profile's record limit
func (s *Service) InteractionCount(ctx context.Context, userID string) (int, error) {
	if userID == "" {
		return 0, ErrMissingUser
	}
	count, err := s.records.CountForUser(ctx, userID, s.clock.Now().Add(-s.opts.HistoryWindow))
	if err != nil {
		return 0, fmt.Errorf("failed to count interactions: %w", err)
	}
	return count, nil
}

// Invalidate drops the user's cached profile so the next request rebuilds it
func (s *Service) Invalidate(ctx context.Context, userID string) error {
	return s.cache.Invalidate(ctx, userID)
}

func (s *Service) buildProfile(ctx context.Context, userID string) (personalization.UserProfile, error) {
	records, err := s.records.ListForUser(ctx, interactions.Query{
		UserID: userID,
		Since:  s.clock.Now().Add(-s.opts.HistoryWindow),
		Limit:  s.opts.HistoryLimit,
	})
	if err != nil {
		return personalization.UserProfile{}, fmt.Errorf("failed to load interaction history: %w", err)
	}

	profile := s.engine.Profile(userID, records)

	// Last write wins. A build racing an invalidation may be served until the TTL expires.
	if err := s.cache.Put(ctx, profile); err != nil {
		s.logger.Warn("Failed to cache profile", "user_id", userID, "error", err)
	}

	s.logger.Debug("Built profile",
		"user_id", userID,
		"records", len(records),
		"activity_level", profile.ActivityLevel,
		"confidence", profile.Confidence)

	return profile, nil
}

// retrieve fetches candidates, reporting degraded instead of failing when the
// catalog side is unavailable. Only caller cancellation is an error.
func (s *Service) retrieve(ctx context.Context, profile personalization.UserProfile, reqCtx catalog.RequestContext) ([]personalization.RecommendationCandidate, bool, error) {
	if err := s.retrievals.Acquire(ctx, 1); err != nil {
		return nil, false, fmt.Errorf("failed to acquire retrieval slot: %w", err)
	}
	defer s.retrievals.Release(1)

	candidates, err := s.retriever.Retrieve(ctx, profile, reqCtx, s.opts.CandidateLimit)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, false, ctxErr
		}
		s.logger.Warn("Candidate retrieval failed, serving degraded result",
			"user_id", profile.UserID,
			"error", err)
		return nil, true, nil
	}

	return candidates, false, nil
}
