package scenario

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/saaga0h/curator-platform/internal/personalization"
)

// LoadScenario loads and validates a scenario from a YAML file
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return LoadScenarioFromBytes(data)
}

// LoadScenarioFromBytes parses and validates scenario YAML
func LoadScenarioFromBytes(data []byte) (*Scenario, error) {
	var s Scenario
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse scenario YAML: %w", err)
	}
	if err := ValidateScenario(&s); err != nil {
		return nil, fmt.Errorf("invalid scenario %q: %w", s.Name, err)
	}
	return &s, nil
}

// ValidateScenario reports every problem in s, joined
func ValidateScenario(s *Scenario) error {
	var errs []error
	fail := func(format string, args ...interface{}) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if s.Name == "" {
		fail("name is required")
	}
	if s.Description == "" {
		fail("description is required")
	}

	if tm := s.TestMode; tm != nil {
		if tm.TimeScale < 1 {
			fail("test_mode: time_scale must be >= 1, got %d", tm.TimeScale)
		}
		if tm.VirtualStart == "" {
			fail("test_mode: virtual_start is required")
		} else if _, err := time.Parse(time.RFC3339, tm.VirtualStart); err != nil {
			fail("test_mode: virtual_start must be RFC 3339: %v", err)
		}
	}

	if len(s.Events) == 0 {
		fail("at least one event is required")
	}
	for i, e := range s.Events {
		switch {
		case e.User == "":
			fail("event %d: user is required", i)
		case !personalization.Kind(e.Kind).Valid():
			fail("event %d: unknown kind %q", i, e.Kind)
		case e.Time < 0:
			fail("event %d: time cannot be negative", i)
		case e.AgeHours < 0:
			fail("event %d: age_hours cannot be negative", i)
		case e.Description == "":
			fail("event %d: description is required", i)
		}
	}

	for i, w := range s.Wait {
		if w.Time < 0 || w.Description == "" {
			fail("wait %d: needs a non-negative time and a description", i)
		}
	}

	if len(s.Expectations) == 0 {
		fail("at least one expectation is required")
	}
	for layer, exps := range s.Expectations {
		if layer == "" {
			fail("expectation layer name cannot be empty")
		}
		for i, exp := range exps {
			if err := validateExpectation(exp); err != nil {
				fail("%s[%d]: %v", layer, i, err)
			}
		}
	}

	return errors.Join(errs...)
}

func validateExpectation(exp Expectation) error {
	if exp.Time < 0 {
		return fmt.Errorf("time cannot be negative")
	}

	selectors := 0
	for _, set := range []bool{exp.Topic != "", exp.API != "", exp.RedisKey != "", exp.PostgresQuery != ""} {
		if set {
			selectors++
		}
	}
	if selectors != 1 {
		return fmt.Errorf("exactly one of topic, api, redis_key or postgres_query is required")
	}

	switch {
	case exp.Topic != "" && len(exp.Payload) == 0:
		return fmt.Errorf("MQTT expectations require payload")
	case exp.API != "" && exp.Status == 0 && len(exp.Response) == 0:
		return fmt.Errorf("API expectations require status or response")
	case exp.RedisKey != "" && exp.Expected == "":
		return fmt.Errorf("expected is required when redis_key is specified")
	case exp.PostgresQuery != "" && exp.PostgresExpected == nil:
		return fmt.Errorf("postgres_expected is required when postgres_query is specified")
	}
	return nil
}
