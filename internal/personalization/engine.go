// Package personalization turns a user's interaction log into a weighted
// preference profile and re-ranks retrieved candidates against it.
//
// The flow is Extract -> BuildInsights -> BuildProfile -> Rank ->
// EstimateConfidence. Every step is a pure function of its input and the
// injected clock; fetching records and candidates belongs to the caller.
package personalization

import (
	"github.com/saaga0h/curator-platform/pkg/clock"
)

// Engine bundles the pipeline steps around a single clock
type Engine struct {
	clock     clock.Clock
	extractor *Extractor
	ranker    *Ranker
}

// NewEngine creates an engine whose rankings are capped at limit
func NewEngine(c clock.Clock, limit int) *Engine {
	if c == nil {
		c = clock.System{}
	}
	return &Engine{
		clock:     c,
		extractor: NewExtractor(c),
		ranker:    NewRanker(c, limit),
	}
}

// Profile builds the profile for userID from one snapshot of their records
func (e *Engine) Profile(userID string, records []InteractionRecord) UserProfile {
	memories := e.extractor.Extract(records)
	insights := BuildInsights(memories)

	profile := BuildProfile(memories, insights)
	profile.UserID = userID
	profile.GeneratedAt = e.clock.Now()
	return profile
}

// Recommend ranks at most limit candidates for profile and estimates the
// set's confidence. A limit of zero or above the engine's cap uses the cap.
func (e *Engine) Recommend(profile UserProfile, candidates []RecommendationCandidate, limit int) ([]ScoredRecommendation, float64) {
	ranked := e.ranker.RankN(candidates, profile, limit)
	return ranked, EstimateConfidence(profile, ranked)
}

// Limit returns the ranking cap
func (e *Engine) Limit() int {
	return e.ranker.limit
}
