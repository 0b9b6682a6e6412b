package scenario

import (
	"errors"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validScenario = `
name: "basic"
description: "one view"
test_mode:
  virtual_start: "2026-10-01T12:00:00Z"
  time_scale: 60
events:
  - time: 0
    user: u-1
    kind: product_view
    age_hours: 2
    attributes:
      category: prints
      dominant_colors: [blue]
    description: "view"
wait:
  - time: 5
    description: "settle"
expectations:
  api:
    - time: 5
      api: "/api/profile?user_id=u-1"
      response:
        activity_level: 1
  storage:
    - time: 5
      redis_key: "profile:u-1"
      expected: "!exists"
`

func TestLoadScenarioFromBytes(t *testing.T) {
	s, err := LoadScenarioFromBytes([]byte(validScenario))
	require.NoError(t, err)

	assert.Equal(t, "basic", s.Name)
	require.NotNil(t, s.TestMode)
	assert.Equal(t, 60, s.TestMode.TimeScale)

	require.Len(t, s.Events, 1)
	assert.Equal(t, "2h0m0s", s.Events[0].Age().String())
	assert.Equal(t, "prints", s.Events[0].Attributes["category"])
	assert.Equal(t, []interface{}{"blue"}, s.Events[0].Attributes["dominant_colors"])

	require.Len(t, s.Expectations["api"], 1)
	assert.Equal(t, 1, s.Expectations["api"][0].Response["activity_level"])
	assert.Equal(t, "GET /api/profile?user_id=u-1", s.Expectations["api"][0].Target())
	assert.Equal(t, "redis profile:u-1", s.Expectations["storage"][0].Target())
}

func TestValidateScenarioErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(s string) string
		wantErr string
	}{
		{
			name:    "unknown kind",
			mutate:  func(s string) string { return strings.Replace(s, "kind: product_view", "kind: hover", 1) },
			wantErr: "unknown kind",
		},
		{
			name:    "missing user",
			mutate:  func(s string) string { return strings.Replace(s, "user: u-1", "user: \"\"", 1) },
			wantErr: "user is required",
		},
		{
			name:    "negative age",
			mutate:  func(s string) string { return strings.Replace(s, "age_hours: 2", "age_hours: -1", 1) },
			wantErr: "age_hours",
		},
		{
			name: "two selectors",
			mutate: func(s string) string {
				return strings.Replace(s, `api: "/api/profile?user_id=u-1"`, "api: \"/api/profile?user_id=u-1\"\n      topic: \"curator/x\"", 1)
			},
			wantErr: "exactly one of",
		},
		{
			name:    "redis without expected",
			mutate:  func(s string) string { return strings.Replace(s, `expected: "!exists"`, "", 1) },
			wantErr: "expected is required",
		},
		{
			name:    "bad time scale",
			mutate:  func(s string) string { return strings.Replace(s, "time_scale: 60", "time_scale: 0", 1) },
			wantErr: "time_scale",
		},
		{
			name:    "bad virtual start",
			mutate:  func(s string) string { return strings.Replace(s, "2026-10-01T12:00:00Z", "yesterday", 1) },
			wantErr: "virtual_start",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadScenarioFromBytes([]byte(tt.mutate(validScenario)))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateAPIExpectationNeedsStatusOrResponse(t *testing.T) {
	s := &Scenario{
		Name:        "n",
		Description: "d",
		Events:      []InteractionEvent{{User: "u", Kind: "search_query", Description: "q"}},
		Expectations: map[string][]Expectation{
			"api": {{API: "/api/profile?user_id=u"}},
		},
	}
	err := ValidateScenario(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status or response")

	s.Expectations["api"][0].Status = 200
	assert.NoError(t, ValidateScenario(s))
}

func TestValidateScenarioReportsEveryProblem(t *testing.T) {
	err := ValidateScenario(&Scenario{
		Events: []InteractionEvent{{User: "u", Kind: "hover", Description: "d"}},
	})
	require.Error(t, err)

	for _, want := range []string{"name is required", "description is required", "unknown kind", "at least one expectation"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestShippedScenariosAreValid(t *testing.T) {
	files, err := filepath.Glob(filepath.Join("..", "..", "scenarios", "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, f := range files {
		t.Run(filepath.Base(f), func(t *testing.T) {
			_, err := LoadScenario(f)
			assert.NoError(t, err)
		})
	}
}

func TestLoadScenarioMissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, fs.ErrNotExist))
}
