package personalization

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildProfileFrom(records []InteractionRecord) UserProfile {
	memories := ExtractAt(records, testNow)
	return BuildProfile(memories, BuildInsights(memories))
}

func TestBuildProfileEmpty(t *testing.T) {
	profile := buildProfileFrom(nil)

	assert.Equal(t, 0, profile.ActivityLevel)
	assert.Nil(t, profile.LastActive)
	assert.Equal(t, 0.5, profile.ExplorationScore)
	assert.Equal(t, 0.0, profile.Confidence)
	assert.Equal(t, EngagementLow, profile.DominantCharacteristics.EngagementLevel)
	assert.Empty(t, profile.DominantCharacteristics.PrimaryCategory)
}

func TestBuildProfileActivityAndLastActive(t *testing.T) {
	records := []InteractionRecord{
		viewRecord("Abstract", "", 2*day),
		viewRecord("Portrait", "", time.Hour),
		searchRecord("browse", nil, day),
		interactionRecord("like", 0),
	}

	profile := buildProfileFrom(records)

	assert.Equal(t, 3, profile.ActivityLevel)
	require.NotNil(t, profile.LastActive)
	assert.True(t, profile.LastActive.Equal(testNow.Add(-time.Hour)))
}

func TestExplorationScore(t *testing.T) {
	t.Run("no views regardless of searches", func(t *testing.T) {
		profile := buildProfileFrom([]InteractionRecord{
			searchRecord("buy", []string{"Abstract", "Portrait"}, 0),
			interactionRecord("like", 0),
		})
		assert.Equal(t, 0.5, profile.ExplorationScore)
	})

	t.Run("mixed diversity", func(t *testing.T) {
		profile := buildProfileFrom([]InteractionRecord{
			viewRecord("A", "X", 0),
			viewRecord("A", "X", 0),
			viewRecord("B", "X", 0),
			viewRecord("C", "Y", 0),
		})
		// (3/4 + 2/4) / 2
		assert.InDelta(t, 0.625, profile.ExplorationScore, 1e-9)
	})

	t.Run("every view distinct", func(t *testing.T) {
		profile := buildProfileFrom([]InteractionRecord{
			viewRecord("A", "X", 0),
			viewRecord("B", "Y", 0),
		})
		assert.InDelta(t, 1.0, profile.ExplorationScore, 1e-9)
	})
}

func TestProfileConfidence(t *testing.T) {
	t.Run("zero without interactions even with preferences", func(t *testing.T) {
		insights := InsightSet{PreferredCategories: map[string]float64{"Abstract": 1.0}}
		profile := BuildProfile(ExtractAt(nil, testNow), insights)
		assert.Equal(t, 0.0, profile.Confidence)
	})

	t.Run("volume times preference times span", func(t *testing.T) {
		var records []InteractionRecord
		for i := 0; i < 24; i++ {
			records = append(records, viewRecord("Abstract", "", day))
		}
		records = append(records, viewRecord("Abstract", "", 14*day))

		profile := buildProfileFrom(records)
		// 25/50 * 1.0 * min(2/2, 1)
		assert.InDelta(t, 0.5, profile.Confidence, 1e-9)
	})

	t.Run("span under two weeks scales down", func(t *testing.T) {
		var records []InteractionRecord
		for i := 0; i < 49; i++ {
			records = append(records, viewRecord("Abstract", "", 0))
		}
		records = append(records, viewRecord("Abstract", "", 7*day))

		profile := buildProfileFrom(records)
		// 50/50 * 1.0 * (1/2)
		assert.InDelta(t, 0.5, profile.Confidence, 1e-9)
	})

	t.Run("no observation window", func(t *testing.T) {
		var records []InteractionRecord
		for i := 0; i < 60; i++ {
			records = append(records, viewRecord("Abstract", "", 0))
		}
		profile := buildProfileFrom(records)
		assert.Equal(t, 0.0, profile.Confidence)
	})

	t.Run("capped at one", func(t *testing.T) {
		var records []InteractionRecord
		for i := 0; i < 120; i++ {
			records = append(records, viewRecord("Abstract", "", 21*day))
		}
		profile := buildProfileFrom(records)
		assert.Equal(t, 1.0, profile.Confidence)
	})
}

func TestDominantCharacteristics(t *testing.T) {
	records := []InteractionRecord{
		viewRecord("Abstract", "Minimal", 0),
		viewRecord("Abstract", "Bold", 0),
		viewRecord("Portrait", "Classic", 0),
		viewRecord("Abstract", "Pop", 0),
	}

	profile := buildProfileFrom(records)

	assert.Equal(t, "Abstract", profile.DominantCharacteristics.PrimaryCategory)
	// four styles at 0.25 each, none above 0.3
	assert.Empty(t, profile.DominantCharacteristics.PrimaryStyle)
}

func TestEngagementLevel(t *testing.T) {
	tests := []struct {
		name       string
		engagement map[string]Engagement
		expected   EngagementLevel
	}{
		{"empty", nil, EngagementLow},
		{"high", map[string]Engagement{
			"A": {TotalTime: 70, ViewCount: 2},
			"B": {TotalTime: 30, ViewCount: 1},
		}, EngagementHigh},
		{"exactly thirty is medium", map[string]Engagement{"A": {TotalTime: 30, ViewCount: 1}}, EngagementMedium},
		{"medium", map[string]Engagement{"A": {TotalTime: 45, ViewCount: 3}}, EngagementMedium},
		{"exactly ten is low", map[string]Engagement{"A": {TotalTime: 10, ViewCount: 1}}, EngagementLow},
		{"no durations", map[string]Engagement{"A": {TotalTime: 0, ViewCount: 4}}, EngagementLow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, engagementLevel(tt.engagement))
		})
	}
}
