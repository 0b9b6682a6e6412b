package personalization

import (
	"math"
	"sort"
	"time"

	"github.com/saaga0h/curator-platform/pkg/clock"
)

const (
	// ProfileDecayConstant is the time constant of record recency decay:
	// weight = exp(-age / ProfileDecayConstant), so a 7-day-old record weighs 1/e.
	ProfileDecayConstant = 7 * 24 * time.Hour

	// CandidateDecayConstant is the time constant applied to candidate listing age
	CandidateDecayConstant = 30 * 24 * time.Hour
)

// RecencyWeight returns exp(-age/constant) in (0,1]. Non-positive ages,
// which only occur for clock skew, weigh exactly 1.
func RecencyWeight(age, constant time.Duration) float64 {
	if age <= 0 {
		return 1.0
	}
	return math.Exp(-float64(age.Milliseconds()) / float64(constant.Milliseconds()))
}

// Extractor partitions interaction records into recency-weighted buckets
type Extractor struct {
	clock clock.Clock
}

// NewExtractor creates an extractor reading the current time from c
func NewExtractor(c clock.Clock) *Extractor {
	if c == nil {
		c = clock.System{}
	}
	return &Extractor{clock: c}
}

// Extract buckets records by kind and weights each by recency.
// Malformed records are skipped. The result depends only on the input and
// the clock, so repeated calls at the same instant return equal sets.
func (e *Extractor) Extract(records []InteractionRecord) CategorizedMemorySet {
	return ExtractAt(records, e.clock.Now())
}

// ExtractAt is Extract with an explicit reference time
func ExtractAt(records []InteractionRecord, now time.Time) CategorizedMemorySet {
	set := CategorizedMemorySet{
		RecentViews:      []Memory{},
		SearchHistory:    []Memory{},
		Interactions:     []Memory{},
		Preferences:      []Memory{},
		PurchaseBehavior: []Memory{},
	}

	for _, record := range records {
		if err := record.Validate(); err != nil {
			continue
		}

		age := now.Sub(record.Timestamp)
		if age < 0 {
			age = 0
		}
		memory := Memory{
			Record:        record,
			Age:           age,
			RecencyWeight: RecencyWeight(age, ProfileDecayConstant),
		}

		switch record.Kind {
		case KindProductView:
			set.RecentViews = append(set.RecentViews, memory)
		case KindSearchQuery:
			set.SearchHistory = append(set.SearchHistory, memory)
		case KindUserInteraction:
			set.Interactions = append(set.Interactions, memory)
		case KindPreferenceLearning:
			set.Preferences = append(set.Preferences, memory)
		case KindPurchaseBehavior:
			set.PurchaseBehavior = append(set.PurchaseBehavior, memory)
		}
	}

	sortByRecency(set.RecentViews)
	sortByRecency(set.SearchHistory)
	sortByRecency(set.Interactions)
	sortByRecency(set.Preferences)
	sortByRecency(set.PurchaseBehavior)

	return set
}

// sortByRecency orders newest first; equal weights keep input order
func sortByRecency(memories []Memory) {
	sort.SliceStable(memories, func(i, j int) bool {
		return memories[i].RecencyWeight > memories[j].RecencyWeight
	})
}

// Total returns the number of memories across all buckets
func (s CategorizedMemorySet) Total() int {
	return len(s.RecentViews) + len(s.SearchHistory) + len(s.Interactions) +
		len(s.Preferences) + len(s.PurchaseBehavior)
}
