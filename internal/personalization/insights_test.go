package personalization

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildInsightsCategoryScenario(t *testing.T) {
	records := []InteractionRecord{
		viewRecord("Abstract", "", 0),
		viewRecord("Abstract", "", 0),
		viewRecord("Portrait", "", 0),
	}

	insights := BuildInsights(ExtractAt(records, testNow))

	require.Len(t, insights.PreferredCategories, 2)
	assert.InDelta(t, 0.67, insights.PreferredCategories["Abstract"], 0.005)
	assert.InDelta(t, 0.33, insights.PreferredCategories["Portrait"], 0.005)
}

func TestBuildInsightsSearchDiscount(t *testing.T) {
	records := []InteractionRecord{
		viewRecord("Abstract", "", 0),
		searchRecord("buy", []string{"Portrait"}, 0),
	}

	insights := BuildInsights(ExtractAt(records, testNow))

	// raw weights 1.0 and 0.8
	assert.InDelta(t, 1.0/1.8, insights.PreferredCategories["Abstract"], 1e-9)
	assert.InDelta(t, 0.8/1.8, insights.PreferredCategories["Portrait"], 1e-9)
	assert.Equal(t, map[string]float64{"buy": 1.0}, insights.ShoppingIntentDistribution)
}

func TestBuildInsightsDropsLowWeights(t *testing.T) {
	var records []InteractionRecord
	for i := 0; i < 20; i++ {
		records = append(records, viewRecord("Abstract", "", 0))
	}
	records = append(records, viewRecord("Sculpture", "", 0))

	insights := BuildInsights(ExtractAt(records, testNow))

	assert.NotContains(t, insights.PreferredCategories, "Sculpture")
	assert.InDelta(t, 20.0/21.0, insights.PreferredCategories["Abstract"], 1e-9)

	var sum float64
	for _, w := range insights.PreferredCategories {
		assert.Greater(t, w, 0.05)
		sum += w
	}
	assert.LessOrEqual(t, sum, 1.0)
}

func TestBuildInsightsAllDimensions(t *testing.T) {
	records := []InteractionRecord{
		{
			UserID:    "user-1",
			Kind:      KindProductView,
			Timestamp: testNow,
			View: &ProductView{
				Category:            "Abstract",
				Style:               "Minimal",
				Artist:              "Kandinsky",
				DominantColors:      []string{"blue", "red"},
				ViewDurationSeconds: floatPtr(40),
			},
		},
		{
			UserID:    "user-1",
			Kind:      KindProductView,
			Timestamp: testNow,
			View: &ProductView{
				Category:            "Abstract",
				Style:               "Bold",
				DominantColors:      []string{"blue"},
				ViewDurationSeconds: floatPtr(20),
			},
		},
	}

	insights := BuildInsights(ExtractAt(records, testNow))

	assert.Equal(t, map[string]float64{"Abstract": 1.0}, insights.PreferredCategories)
	assert.InDelta(t, 0.5, insights.PreferredStyles["Minimal"], 1e-9)
	assert.InDelta(t, 0.5, insights.PreferredStyles["Bold"], 1e-9)
	assert.Equal(t, map[string]float64{"Kandinsky": 1.0}, insights.PreferredArtists)
	assert.InDelta(t, 2.0/3.0, insights.ColorPreferences["blue"], 1e-9)
	assert.InDelta(t, 1.0/3.0, insights.ColorPreferences["red"], 1e-9)
	assert.Equal(t, Engagement{TotalTime: 60, ViewCount: 2}, insights.EngagementByCategory["Abstract"])
}

func TestBuildInsightsSkipsMissingAttributes(t *testing.T) {
	records := []InteractionRecord{
		{UserID: "user-1", Kind: KindProductView, Timestamp: testNow},
		viewRecord("", "Minimal", 0),
		{UserID: "user-1", Kind: KindSearchQuery, Timestamp: testNow, Search: &SearchQuery{Query: "blue"}},
	}

	insights := BuildInsights(ExtractAt(records, testNow))

	assert.Empty(t, insights.PreferredCategories)
	assert.NotContains(t, insights.PreferredCategories, "")
	assert.Empty(t, insights.EngagementByCategory)
	assert.Empty(t, insights.ShoppingIntentDistribution)
	assert.Equal(t, map[string]float64{"Minimal": 1.0}, insights.PreferredStyles)
}

func TestBuildInsightsEmpty(t *testing.T) {
	insights := BuildInsights(ExtractAt(nil, testNow))

	assert.NotNil(t, insights.PreferredCategories)
	assert.Empty(t, insights.PreferredCategories)
	assert.Empty(t, insights.ColorPreferences)
}

func TestNormalizeWeightsLeavesZeroTotalUntouched(t *testing.T) {
	m := map[string]float64{"a": 0, "b": 0}
	normalizeWeights(m)
	assert.Equal(t, map[string]float64{"a": 0, "b": 0}, m)
}

func TestTopEntryBreaksTiesByKey(t *testing.T) {
	key, weight := topEntry(map[string]float64{"b": 0.5, "a": 0.5})
	assert.Equal(t, "a", key)
	assert.Equal(t, 0.5, weight)

	key, weight = topEntry(map[string]float64{})
	assert.Equal(t, "", key)
	assert.Equal(t, 0.0, weight)
}
