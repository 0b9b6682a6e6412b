package recommender

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	gobreaker "github.com/sony/gobreaker/v2"
)

// Request outcomes
const (
	outcomeOK          = "ok"
	outcomeDegraded    = "degraded"
	outcomeRateLimited = "rate_limited"
	outcomeInvalid     = "invalid"
	outcomeError       = "error"
)

var (
	// RecommendationRequests counts Recommend calls.
	// Labels:
	//   - outcome: "ok", "degraded", "rate_limited", "invalid", "error"
	RecommendationRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "curator_recommendation_requests_total",
			Help: "Total number of recommendation requests",
		},
		[]string{"outcome"},
	)

	// RecommendationDuration measures end-to-end Recommend latency
	RecommendationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "curator_recommendation_duration_seconds",
			Help:    "Duration of recommendation requests in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
	)

	// RecommendationConfidence tracks the confidence of served result sets
	RecommendationConfidence = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "curator_recommendation_confidence",
			Help:    "Confidence of served recommendation sets",
			Buckets: prometheus.LinearBuckets(0.1, 0.1, 10),
		},
	)

	// ProfileCacheLookups counts profile cache lookups.
	// Labels:
	//   - result: "hit", "miss", "error"
	ProfileCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "curator_profile_cache_lookups_total",
			Help: "Total number of profile cache lookups",
		},
		[]string{"result"},
	)

	// ProfileBuilds counts profiles rebuilt from the interaction log.
	// Labels:
	//   - shared: "true" when the caller joined another caller's build
	ProfileBuilds = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "curator_profile_builds_total",
			Help: "Total number of profile builds",
		},
		[]string{"shared"},
	)

	// RetrieverBreakerState reports the retriever circuit (0 closed, 1 half-open, 2 open)
	RetrieverBreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "curator_retriever_breaker_state",
			Help: "Candidate retriever circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
	)
)

// RecordBreakerState is a catalog.RetrieverConfig.OnStateChange hook
func RecordBreakerState(from, to gobreaker.State) {
	switch to {
	case gobreaker.StateClosed:
		RetrieverBreakerState.Set(0)
	case gobreaker.StateHalfOpen:
		RetrieverBreakerState.Set(1)
	case gobreaker.StateOpen:
		RetrieverBreakerState.Set(2)
	}
}
