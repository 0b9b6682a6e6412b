package scenario

import (
	"fmt"
	"time"
)

// Scenario is an end-to-end run: interactions are published over MQTT and
// the resulting state is checked through the API, Redis, Postgres and MQTT
type Scenario struct {
	Name         string                   `yaml:"name"`
	Description  string                   `yaml:"description"`
	TestMode     *TestModeConfig          `yaml:"test_mode,omitempty"`
	Events       []InteractionEvent       `yaml:"events"`
	Wait         []WaitPeriod             `yaml:"wait"`
	Expectations map[string][]Expectation `yaml:"expectations"`
}

// TestModeConfig switches agents to virtual time for the run
type TestModeConfig struct {
	VirtualStart string `yaml:"virtual_start"`
	TimeScale    int    `yaml:"time_scale"`
}

// InteractionEvent is one interaction to publish
type InteractionEvent struct {
	Time int    `yaml:"time"` // Seconds from start
	User string `yaml:"user"`
	Kind string `yaml:"kind"`
	// AgeHours backdates the interaction timestamp from the moment it is published
	AgeHours    float64                `yaml:"age_hours,omitempty"`
	Attributes  map[string]interface{} `yaml:"attributes,omitempty"`
	Description string                 `yaml:"description"`
}

// Age returns AgeHours as a duration
func (e InteractionEvent) Age() time.Duration {
	return time.Duration(e.AgeHours * float64(time.Hour))
}

// WaitPeriod represents a pause in the scenario
type WaitPeriod struct {
	Time        int    `yaml:"time"` // Seconds from start
	Description string `yaml:"description"`
}

// Expectation is one check. Exactly one of Topic, API, RedisKey or
// PostgresQuery selects the layer being checked.
type Expectation struct {
	Time        int    `yaml:"time"` // Seconds from start
	Description string `yaml:"description,omitempty"`

	// MQTT: the latest message on Topic must match Payload
	Topic   string                 `yaml:"topic,omitempty"`
	Payload map[string]interface{} `yaml:"payload,omitempty"`

	// HTTP: GET API (path and query) must answer Status with a body matching Response
	API      string                 `yaml:"api,omitempty"`
	Status   int                    `yaml:"status,omitempty"`
	Response map[string]interface{} `yaml:"response,omitempty"`

	// Redis: hash field when RedisField is set, plain string otherwise.
	// Expected "!exists" asserts the key is absent.
	RedisKey   string `yaml:"redis_key,omitempty"`
	RedisField string `yaml:"redis_field,omitempty"`
	Expected   string `yaml:"expected,omitempty"`

	// Postgres: single-value query
	PostgresQuery    string      `yaml:"postgres_query,omitempty"`
	PostgresExpected interface{} `yaml:"postgres_expected,omitempty"`
}

// Target describes what the expectation looks at
func (e Expectation) Target() string {
	switch {
	case e.API != "":
		return "GET " + e.API
	case e.RedisKey != "" && e.RedisField != "":
		return fmt.Sprintf("redis %s[%s]", e.RedisKey, e.RedisField)
	case e.RedisKey != "":
		return "redis " + e.RedisKey
	case e.PostgresQuery != "":
		return "postgres query"
	default:
		return e.Topic
	}
}

// TestResult represents the outcome of running a scenario
type TestResult struct {
	Scenario     *Scenario
	StartTime    time.Time
	EndTime      time.Time
	Passed       bool
	PassedCount  int
	FailedCount  int
	Expectations []ExpectationResult
}

// ExpectationResult represents the result of checking a single expectation
type ExpectationResult struct {
	Layer       string
	Expectation Expectation
	Passed      bool
	Reason      string
	Actual      interface{}
}
