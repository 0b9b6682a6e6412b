package personalization

import (
	"math"
	"time"
)

const (
	// confidenceInteractionTarget is the interaction count at which volume stops limiting confidence
	confidenceInteractionTarget = 50.0

	// confidenceSpanWeeks is the observation span at which it stops limiting confidence
	confidenceSpanWeeks = 2.0

	// dominanceThreshold is the weight a category or style must exceed to be primary
	dominanceThreshold = 0.3

	// Mean seconds viewed per category for each engagement level
	highEngagementSeconds   = 30.0
	mediumEngagementSeconds = 10.0

	// defaultExplorationScore is reported when there are no views to judge diversity by
	defaultExplorationScore = 0.5

	week = 7 * 24 * time.Hour
)

// BuildProfile aggregates memories and insights into a user profile
func BuildProfile(memories CategorizedMemorySet, insights InsightSet) UserProfile {
	profile := UserProfile{
		Insights:         insights,
		ActivityLevel:    len(memories.RecentViews) + len(memories.SearchHistory),
		ExplorationScore: explorationScore(memories.RecentViews),
		Confidence:       profileConfidence(memories, insights),
	}

	if len(memories.RecentViews) > 0 {
		lastActive := memories.RecentViews[0].Record.Timestamp
		profile.LastActive = &lastActive
	}

	profile.DominantCharacteristics = dominantCharacteristics(insights)

	return profile
}

// explorationScore measures category and style diversity relative to view volume
func explorationScore(views []Memory) float64 {
	if len(views) == 0 {
		return defaultExplorationScore
	}

	categories := make(map[string]struct{})
	styles := make(map[string]struct{})
	for _, m := range views {
		if m.Record.View == nil {
			continue
		}
		if c := m.Record.View.Category; c != "" {
			categories[c] = struct{}{}
		}
		if s := m.Record.View.Style; s != "" {
			styles[s] = struct{}{}
		}
	}

	total := float64(len(views))
	return (float64(len(categories))/total + float64(len(styles))/total) / 2
}

// profileConfidence multiplies volume, preference strength and observation span.
// Any one of them at zero yields zero confidence.
func profileConfidence(memories CategorizedMemorySet, insights InsightSet) float64 {
	totalInteractions := len(memories.RecentViews) + len(memories.SearchHistory) + len(memories.Interactions)
	if totalInteractions == 0 {
		return 0
	}

	var maxPreference float64
	for _, w := range insights.PreferredCategories {
		if w > maxPreference {
			maxPreference = w
		}
	}

	var spanWeeks float64
	if n := len(memories.RecentViews); n > 0 {
		oldest := memories.RecentViews[n-1]
		spanWeeks = float64(oldest.Age) / float64(week)
	}

	volume := float64(totalInteractions) / confidenceInteractionTarget
	span := math.Min(spanWeeks/confidenceSpanWeeks, 1)

	return math.Min(1, volume*maxPreference*span)
}

func dominantCharacteristics(insights InsightSet) DominantCharacteristics {
	dc := DominantCharacteristics{
		EngagementLevel: engagementLevel(insights.EngagementByCategory),
	}

	if category, weight := topEntry(insights.PreferredCategories); weight > dominanceThreshold {
		dc.PrimaryCategory = category
	}
	if style, weight := topEntry(insights.PreferredStyles); weight > dominanceThreshold {
		dc.PrimaryStyle = style
	}

	return dc
}

// engagementLevel buckets the mean of per-category average view time
func engagementLevel(engagement map[string]Engagement) EngagementLevel {
	if len(engagement) == 0 {
		return EngagementLow
	}

	var sum float64
	for _, e := range engagement {
		if e.ViewCount > 0 {
			sum += e.TotalTime / float64(e.ViewCount)
		}
	}
	mean := sum / float64(len(engagement))

	switch {
	case mean > highEngagementSeconds:
		return EngagementHigh
	case mean > mediumEngagementSeconds:
		return EngagementMedium
	default:
		return EngagementLow
	}
}
