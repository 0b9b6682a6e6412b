package personalization

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saaga0h/curator-platform/pkg/clock"
)

func TestEngineEndToEnd(t *testing.T) {
	engine := NewEngine(clock.Fixed(testNow), 10)

	records := []InteractionRecord{
		viewRecord("Abstract", "Minimal", 0),
		viewRecord("Abstract", "Minimal", 0),
		viewRecord("Portrait", "Classic", 0),
	}
	profile := engine.Profile("user-1", records)

	assert.Equal(t, "user-1", profile.UserID)
	assert.True(t, profile.GeneratedAt.Equal(testNow))
	assert.Equal(t, "Abstract", profile.DominantCharacteristics.PrimaryCategory)
	assert.Equal(t, "Minimal", profile.DominantCharacteristics.PrimaryStyle)

	candidates := []RecommendationCandidate{
		{ItemID: "portrait", BaseScore: floatPtr(0.8), Category: "Portrait", Timestamp: testNow},
		{ItemID: "abstract", BaseScore: floatPtr(0.8), Category: "Abstract", Timestamp: testNow},
		{ItemID: "old", BaseScore: floatPtr(0.9), Category: "Landscape", Timestamp: testNow.Add(-365 * day)},
	}
	ranked, confidence := engine.Recommend(profile, candidates, 0)

	require.Len(t, ranked, 3)
	assert.Equal(t, "abstract", ranked[0].ItemID)
	assert.Equal(t, "portrait", ranked[1].ItemID)
	assert.Equal(t, "old", ranked[2].ItemID)
	assert.GreaterOrEqual(t, confidence, 0.0)
	assert.LessOrEqual(t, confidence, 1.0)
	assert.Equal(t, 10, engine.Limit())

	top, _ := engine.Recommend(profile, candidates, 1)
	require.Len(t, top, 1)
	assert.Equal(t, "abstract", top[0].ItemID)
}

func TestInteractionRecordJSON(t *testing.T) {
	payload := `{
		"id": "6f1d7c2e-2b8f-4c1e-9a55-2f4c3f0e9b11",
		"user_id": "user-7",
		"kind": "product_view",
		"timestamp": "2025-06-01T10:00:00Z",
		"attributes": {"category": "Abstract", "dominant_colors": ["blue"], "view_duration_seconds": 12.5}
	}`

	var record InteractionRecord
	require.NoError(t, json.Unmarshal([]byte(payload), &record))
	require.NoError(t, record.Validate())

	require.NotNil(t, record.View)
	assert.Nil(t, record.Search)
	assert.Equal(t, "Abstract", record.View.Category)
	assert.Equal(t, []string{"blue"}, record.View.DominantColors)
	require.NotNil(t, record.View.ViewDurationSeconds)
	assert.Equal(t, 12.5, *record.View.ViewDurationSeconds)

	encoded, err := json.Marshal(record)
	require.NoError(t, err)
	assert.Contains(t, string(encoded), `"kind":"product_view"`)
	assert.Contains(t, string(encoded), `"category":"Abstract"`)
}

func TestInteractionRecordJSONBadAttributes(t *testing.T) {
	payload := `{"user_id":"u","kind":"search_query","timestamp":"2025-06-01T10:00:00Z","attributes":{"query_categories":"Abstract"}}`

	var record InteractionRecord
	err := json.Unmarshal([]byte(payload), &record)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMalformedRecord))
}

func TestInteractionRecordValidate(t *testing.T) {
	valid := viewRecord("Abstract", "", 0)
	assert.NoError(t, valid.Validate())

	missingUser := valid
	missingUser.UserID = ""
	assert.ErrorIs(t, missingUser.Validate(), ErrMalformedRecord)

	unknownKind := valid
	unknownKind.Kind = "hover"
	assert.ErrorIs(t, unknownKind.Validate(), ErrMalformedRecord)
}
