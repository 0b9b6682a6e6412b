package personalization

import (
	"math"
	"sort"
	"time"

	"github.com/saaga0h/curator-platform/pkg/clock"
)

const (
	// MaxRecommendations caps the ranked output
	MaxRecommendations = 20

	// DefaultBaseScore stands in for a candidate without a retriever score
	DefaultBaseScore = 0.5

	// diversityExplorationThreshold must be strictly exceeded to inject diversity
	diversityExplorationThreshold = 0.7

	// diversityBoost is the largest multiplier bonus for an unseen category
	diversityBoost = 0.3

	// recencyFloor is the smallest recency multiplier a candidate can get
	recencyFloor = 0.5
)

// Ranker re-scores retrieved candidates against a user profile
type Ranker struct {
	clock clock.Clock
	limit int
}

// NewRanker creates a ranker returning at most limit results. A limit
// outside (0, MaxRecommendations] falls back to MaxRecommendations.
func NewRanker(c clock.Clock, limit int) *Ranker {
	if c == nil {
		c = clock.System{}
	}
	if limit <= 0 || limit > MaxRecommendations {
		limit = MaxRecommendations
	}
	return &Ranker{clock: c, limit: limit}
}

// Rank scores every candidate, sorts by FinalScore descending (ties keep
// input order) and truncates to the ranker's limit. Missing candidate fields
// degrade to defaults.
func (r *Ranker) Rank(candidates []RecommendationCandidate, profile UserProfile) []ScoredRecommendation {
	return r.RankN(candidates, profile, r.limit)
}

// RankN is Rank with a per-call limit. A limit outside (0, r.limit] uses the
// ranker's own.
func (r *Ranker) RankN(candidates []RecommendationCandidate, profile UserProfile, limit int) []ScoredRecommendation {
	if limit <= 0 || limit > r.limit {
		limit = r.limit
	}
	now := r.clock.Now()

	scored := make([]ScoredRecommendation, 0, len(candidates))
	for _, c := range candidates {
		scored = append(scored, scoreCandidate(c, profile, now))
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].FinalScore > scored[j].FinalScore
	})

	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored
}

func scoreCandidate(c RecommendationCandidate, profile UserProfile, now time.Time) ScoredRecommendation {
	breakdown := ScoreBreakdown{
		BaseScore:           DefaultBaseScore,
		PreferenceBoost:     1,
		RecencyMultiplier:   1,
		DiversityMultiplier: 1,
	}
	breakdown.BaseScore = baseScore(c.BaseScore)

	// Preference boost: a fully preferred category doubles the score
	preferenceWeight, preferred := profile.Insights.PreferredCategories[c.Category]
	if c.Category != "" && preferred {
		breakdown.PreferenceBoost = 1 + preferenceWeight
	}

	// Listing recency; an unknown timestamp counts as the epoch
	listedAt := c.Timestamp
	if listedAt.IsZero() {
		listedAt = time.Unix(0, 0)
	}
	recencyFactor := RecencyWeight(now.Sub(listedAt), CandidateDecayConstant)
	breakdown.RecencyMultiplier = recencyFloor + (1-recencyFloor)*recencyFactor

	// Diversity injection for exploratory users, favoring rarely seen categories
	if profile.ExplorationScore > diversityExplorationThreshold && c.Category != "" {
		frequency := profile.Insights.PreferredCategories[c.Category]
		breakdown.DiversityMultiplier = 1 + diversityBoost*(1-frequency)
	}

	final := breakdown.BaseScore *
		breakdown.PreferenceBoost *
		breakdown.RecencyMultiplier *
		breakdown.DiversityMultiplier

	return ScoredRecommendation{
		RecommendationCandidate: c,
		FinalScore:              final,
		Breakdown:               breakdown,
	}
}

// baseScore reads a retriever score. Absent or non-finite scores fall back to
// DefaultBaseScore and the rest are clamped to [0,1].
func baseScore(v *float64) float64 {
	if v == nil || math.IsNaN(*v) || math.IsInf(*v, 0) {
		return DefaultBaseScore
	}
	return math.Max(0, math.Min(1, *v))
}
