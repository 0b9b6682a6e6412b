package reporter

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/saaga0h/curator-platform/e2e/internal/scenario"
)

// Summary is the machine-readable form of a scenario run
type Summary struct {
	Scenario   string         `json:"scenario"`
	StartedAt  time.Time      `json:"started_at"`
	DurationMS int64          `json:"duration_ms"`
	Passed     bool           `json:"passed"`
	PassCount  int            `json:"pass_count"`
	FailCount  int            `json:"fail_count"`
	Checks     []CheckSummary `json:"checks"`
}

// CheckSummary is one expectation outcome
type CheckSummary struct {
	Layer       string      `json:"layer"`
	Time        int         `json:"time"`
	Target      string      `json:"target"`
	Description string      `json:"description,omitempty"`
	Passed      bool        `json:"passed"`
	Reason      string      `json:"reason,omitempty"`
	Actual      interface{} `json:"actual,omitempty"`
}

// Summarize converts a result into its JSON summary
func Summarize(result *scenario.TestResult) Summary {
	s := Summary{
		Scenario:   result.Scenario.Name,
		StartedAt:  result.StartTime,
		DurationMS: result.EndTime.Sub(result.StartTime).Milliseconds(),
		Passed:     result.Passed,
		PassCount:  result.PassedCount,
		FailCount:  result.FailedCount,
		Checks:     make([]CheckSummary, 0, len(result.Expectations)),
	}

	for _, r := range result.Expectations {
		check := CheckSummary{
			Layer:       r.Layer,
			Time:        r.Expectation.Time,
			Target:      r.Expectation.Target(),
			Description: r.Expectation.Description,
			Passed:      r.Passed,
			Reason:      r.Reason,
		}
		// Passing values are noise in the report
		if !r.Passed {
			check.Actual = r.Actual
		}
		s.Checks = append(s.Checks, check)
	}

	return s
}

// SaveSummary saves a JSON summary of test results
func SaveSummary(result *scenario.TestResult, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	data, err := json.MarshalIndent(Summarize(result), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal result: %w", err)
	}

	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}

	return nil
}
