package reporter

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/saaga0h/curator-platform/e2e/internal/scenario"
)

// TimelineEvent represents a single event in the timeline
type TimelineEvent struct {
	Elapsed     float64
	Layer       string
	Description string
	Success     bool // Ignored unless IsCheck
	IsCheck     bool
}

// GenerateTimeline creates a human-readable timeline of a scenario run
func GenerateTimeline(result *scenario.TestResult, events []TimelineEvent) string {
	var sb strings.Builder

	sb.WriteString("╔══════════════════════════════════════════════════════════╗\n")
	sb.WriteString(fmt.Sprintf("║  Scenario: %-46s║\n", truncate(result.Scenario.Name, 46)))
	sb.WriteString(fmt.Sprintf("║  Duration: %-46s║\n", formatDuration(result.EndTime.Sub(result.StartTime))))
	sb.WriteString("╚══════════════════════════════════════════════════════════╝\n\n")

	for _, event := range events {
		icon := "→"
		if event.IsCheck {
			icon = "✗"
			if event.Success {
				icon = "✓"
			}
		}
		sb.WriteString(fmt.Sprintf("[%7.2fs] %s %-13s: %s\n", event.Elapsed, icon, event.Layer, event.Description))
	}

	sb.WriteString("\n=== Expectations ===\n")

	byLayer := make(map[string][]scenario.ExpectationResult)
	for _, r := range result.Expectations {
		byLayer[r.Layer] = append(byLayer[r.Layer], r)
	}
	layers := make([]string, 0, len(byLayer))
	for layer := range byLayer {
		layers = append(layers, layer)
	}
	sort.Strings(layers)

	for _, layer := range layers {
		sb.WriteString(fmt.Sprintf("Layer: %s\n", layer))
		for _, r := range byLayer[layer] {
			icon := "✓"
			if !r.Passed {
				icon = "✗"
			}
			sb.WriteString(fmt.Sprintf("  %s %s", icon, r.Expectation.Target()))
			if r.Expectation.Description != "" {
				sb.WriteString(fmt.Sprintf(" (%s)", r.Expectation.Description))
			}
			if !r.Passed {
				sb.WriteString(": " + r.Reason)
			}
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	status := "✓ ALL TESTS PASSED"
	if result.FailedCount > 0 {
		status = fmt.Sprintf("✗ %d TEST(S) FAILED", result.FailedCount)
	}

	sb.WriteString("╔══════════════════════════════════════════════════════════╗\n")
	sb.WriteString("║  SUMMARY                                                 ║\n")
	sb.WriteString(fmt.Sprintf("║  Passed: %-48d║\n", result.PassedCount))
	sb.WriteString(fmt.Sprintf("║  Failed: %-48d║\n", result.FailedCount))
	sb.WriteString(fmt.Sprintf("║  Status: %-48s║\n", status))
	sb.WriteString("╚══════════════════════════════════════════════════════════╝\n")

	return sb.String()
}

func formatDuration(d time.Duration) string {
	seconds := d.Seconds()
	if seconds < 60 {
		return fmt.Sprintf("%.1fs", seconds)
	}

	minutes := int(seconds / 60)
	return fmt.Sprintf("%dm %.1fs", minutes, seconds-float64(minutes*60))
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

// SaveTimeline writes a generated timeline to filename
func SaveTimeline(timeline, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(filename, []byte(timeline), 0o644); err != nil {
		return fmt.Errorf("failed to write timeline: %w", err)
	}
	return nil
}
