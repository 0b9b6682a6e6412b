package personalization

const (
	// searchWeightFactor discounts search categories relative to views
	searchWeightFactor = 0.8

	// minRelativeWeight drops normalized entries at or below 5%
	minRelativeWeight = 0.05
)

// BuildInsights turns bucketed memories into normalized preference maps.
// Absent attributes contribute nothing.
func BuildInsights(memories CategorizedMemorySet) InsightSet {
	insights := InsightSet{
		PreferredCategories:        make(map[string]float64),
		PreferredStyles:            make(map[string]float64),
		PreferredArtists:           make(map[string]float64),
		ColorPreferences:           make(map[string]float64),
		EngagementByCategory:       make(map[string]Engagement),
		ShoppingIntentDistribution: make(map[string]float64),
	}

	for _, m := range memories.RecentViews {
		view := m.Record.View
		if view == nil {
			continue
		}
		w := m.RecencyWeight

		if view.Category != "" {
			insights.PreferredCategories[view.Category] += w

			engagement := insights.EngagementByCategory[view.Category]
			if view.ViewDurationSeconds != nil && *view.ViewDurationSeconds > 0 {
				engagement.TotalTime += *view.ViewDurationSeconds
			}
			engagement.ViewCount++
			insights.EngagementByCategory[view.Category] = engagement
		}
		if view.Style != "" {
			insights.PreferredStyles[view.Style] += w
		}
		if view.Artist != "" {
			insights.PreferredArtists[view.Artist] += w
		}
		for _, color := range view.DominantColors {
			if color != "" {
				insights.ColorPreferences[color] += w
			}
		}
	}

	for _, m := range memories.SearchHistory {
		search := m.Record.Search
		if search == nil {
			continue
		}
		w := m.RecencyWeight

		for _, category := range search.QueryCategories {
			if category != "" {
				insights.PreferredCategories[category] += w * searchWeightFactor
			}
		}
		if search.QueryIntent != "" {
			insights.ShoppingIntentDistribution[search.QueryIntent] += w
		}
	}

	normalizeWeights(insights.PreferredCategories)
	normalizeWeights(insights.PreferredStyles)
	normalizeWeights(insights.PreferredArtists)
	normalizeWeights(insights.ColorPreferences)
	normalizeWeights(insights.ShoppingIntentDistribution)

	return insights
}

// normalizeWeights scales m in place so values sum to 1, then drops keys at
// or below minRelativeWeight. A map summing to zero is left untouched.
func normalizeWeights(m map[string]float64) {
	var total float64
	for _, v := range m {
		total += v
	}
	if total == 0 {
		return
	}

	for k, v := range m {
		normalized := v / total
		if normalized <= minRelativeWeight {
			delete(m, k)
			continue
		}
		m[k] = normalized
	}
}

// topEntry returns the key with the largest weight. Ties go to the
// lexicographically smaller key so the choice does not depend on map order.
func topEntry(m map[string]float64) (string, float64) {
	var bestKey string
	var bestWeight float64
	found := false
	for k, v := range m {
		if !found || v > bestWeight || (v == bestWeight && k < bestKey) {
			bestKey, bestWeight, found = k, v, true
		}
	}
	return bestKey, bestWeight
}
