package executor

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/saaga0h/curator-platform/e2e/internal/checker"
	"github.com/saaga0h/curator-platform/e2e/internal/observer"
	"github.com/saaga0h/curator-platform/e2e/internal/reporter"
	"github.com/saaga0h/curator-platform/e2e/internal/scenario"
	"github.com/saaga0h/curator-platform/pkg/clock"
)

// Config holds the endpoints a run talks to. An empty PostgresDSN or APIURL
// fails the expectations that need it.
type Config struct {
	MQTTBroker   string
	RedisAddr    string
	PostgresDSN  string
	APIURL       string
	StartupDelay time.Duration
}

// Runner orchestrates scenario execution
type Runner struct {
	cfg    Config
	logger *slog.Logger

	clock       *clock.Manager
	observer    *observer.Observer
	player      *MQTTPlayer
	redisClient *redis.Client
	postgres    *checker.PostgresChecker
	api         *checker.APIChecker
}

// NewRunner creates a new scenario runner
func NewRunner(cfg Config, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		cfg:    cfg,
		logger: logger,
		clock:  clock.NewManager(logger),
	}
}

// step is one scheduled action; events sort before waits and checks at the same time
type step struct {
	time  int
	order int
	event *scenario.InteractionEvent
	wait  *scenario.WaitPeriod
	layer string
	exp   *scenario.Expectation
}

// schedule orders a scenario's events, waits and expectations on one timeline
func schedule(s *scenario.Scenario) []step {
	var steps []step
	for i := range s.Events {
		steps = append(steps, step{time: s.Events[i].Time, order: 0, event: &s.Events[i]})
	}
	for i := range s.Wait {
		steps = append(steps, step{time: s.Wait[i].Time, order: 1, wait: &s.Wait[i]})
	}

	layers := make([]string, 0, len(s.Expectations))
	for layer := range s.Expectations {
		layers = append(layers, layer)
	}
	sort.Strings(layers)
	for _, layer := range layers {
		exps := s.Expectations[layer]
		for i := range exps {
			steps = append(steps, step{time: exps[i].Time, order: 2, layer: layer, exp: &exps[i]})
		}
	}

	sort.SliceStable(steps, func(i, j int) bool {
		if steps[i].time != steps[j].time {
			return steps[i].time < steps[j].time
		}
		return steps[i].order < steps[j].order
	})
	return steps
}

// Run executes a scenario
func (r *Runner) Run(ctx context.Context, s *scenario.Scenario) (*scenario.TestResult, []reporter.TimelineEvent, error) {
	r.logger.Info("Starting scenario", "name", s.Name, "description", s.Description)

	if err := r.initialize(ctx); err != nil {
		return nil, nil, fmt.Errorf("initialization failed: %w", err)
	}
	defer r.cleanup()

	// Agents must see the time config before any interaction arrives
	timeScale := 1
	if s.TestMode != nil {
		timeScale = s.TestMode.TimeScale
		r.logger.Info("Test mode enabled",
			"virtual_start", s.TestMode.VirtualStart,
			"time_scale", s.TestMode.TimeScale)
	}
	payload, err := BuildTimeConfigPayload(s.TestMode)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode test mode: %w", err)
	}
	if err := r.player.PublishTimeConfig(s.TestMode); err != nil {
		return nil, nil, fmt.Errorf("failed to publish test mode: %w", err)
	}
	r.clock.HandleConfig(payload)

	if r.cfg.StartupDelay > 0 {
		r.logger.Info("Waiting for agents to start", "delay", r.cfg.StartupDelay)
		select {
		case <-ctx.Done():
			return nil, nil, ctx.Err()
		case <-time.After(r.cfg.StartupDelay):
		}
	}

	result := &scenario.TestResult{Scenario: s, StartTime: time.Now()}
	var timeline []reporter.TimelineEvent

	for _, st := range schedule(s) {
		if err := WaitUntil(ctx, result.StartTime, st.time, timeScale); err != nil {
			return nil, nil, err
		}
		elapsed := Elapsed(result.StartTime)

		switch {
		case st.event != nil:
			topic, err := r.player.PublishInteraction(*st.event, r.clock.Now())
			if err != nil {
				return nil, nil, fmt.Errorf("failed to publish event %q: %w", st.event.Description, err)
			}
			r.logger.Info("Published interaction", "elapsed", elapsed, "topic", topic, "kind", st.event.Kind)
			timeline = append(timeline, reporter.TimelineEvent{
				Elapsed:     elapsed,
				Layer:       "interaction",
				Description: fmt.Sprintf("%s %s (%s)", st.event.User, st.event.Kind, st.event.Description),
			})

		case st.wait != nil:
			r.logger.Info("Wait", "elapsed", elapsed, "description", st.wait.Description)
			timeline = append(timeline, reporter.TimelineEvent{
				Elapsed:     elapsed,
				Layer:       "wait",
				Description: st.wait.Description,
			})

		case st.exp != nil:
			passed, reason, actual := r.check(ctx, *st.exp)
			result.Expectations = append(result.Expectations, scenario.ExpectationResult{
				Layer:       st.layer,
				Expectation: *st.exp,
				Passed:      passed,
				Reason:      reason,
				Actual:      actual,
			})
			if passed {
				result.PassedCount++
			} else {
				result.FailedCount++
				r.logger.Warn("Expectation failed", "layer", st.layer, "target", st.exp.Target(), "reason", reason)
			}

			desc := st.exp.Target()
			if !passed {
				desc += ": " + reason
			}
			timeline = append(timeline, reporter.TimelineEvent{
				Elapsed:     elapsed,
				Layer:       st.layer,
				Description: desc,
				Success:     passed,
				IsCheck:     true,
			})
		}
	}

	result.EndTime = time.Now()
	result.Passed = result.FailedCount == 0

	return result, timeline, nil
}

func (r *Runner) check(ctx context.Context, exp scenario.Expectation) (bool, string, interface{}) {
	switch {
	case exp.API != "":
		if r.api == nil {
			return false, "API checks disabled: no api url", nil
		}
		return r.api.Check(ctx, exp)
	case exp.RedisKey != "":
		return checker.CheckRedisExpectation(ctx, r.redisClient, exp)
	case exp.PostgresQuery != "":
		if r.postgres == nil {
			return false, "postgres checks disabled: no dsn", nil
		}
		return r.postgres.CheckQuery(ctx, exp.PostgresQuery, exp.PostgresExpected)
	default:
		return checker.CheckMQTTExpectation(r.observer, exp)
	}
}

// Observer exposes the capture for saving after a run
func (r *Runner) Observer() *observer.Observer {
	return r.observer
}

func (r *Runner) initialize(ctx context.Context) error {
	r.observer = observer.NewObserver(r.cfg.MQTTBroker, "", r.logger)
	if err := r.observer.Start(); err != nil {
		return fmt.Errorf("failed to start observer: %w", err)
	}

	r.player = NewMQTTPlayer(r.cfg.MQTTBroker, r.logger)
	if err := r.player.Connect(); err != nil {
		return err
	}

	r.redisClient = redis.NewClient(&redis.Options{Addr: r.cfg.RedisAddr})
	if err := r.redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}

	if r.cfg.PostgresDSN != "" {
		pg, err := checker.NewPostgresChecker(ctx, r.cfg.PostgresDSN, r.logger)
		if err != nil {
			return err
		}
		r.postgres = pg
	}

	if r.cfg.APIURL != "" {
		r.api = checker.NewAPIChecker(r.cfg.APIURL)
	}

	return nil
}

func (r *Runner) cleanup() {
	if r.player != nil {
		// Leave agents on the wall clock for the next run
		if err := r.player.PublishTimeConfig(nil); err != nil {
			r.logger.Warn("Failed to reset time config", "error", err)
		}
		r.player.Disconnect()
	}
	if r.observer != nil {
		r.observer.Stop()
	}
	if r.redisClient != nil {
		r.redisClient.Close()
	}
	if r.postgres != nil {
		r.postgres.Close()
	}
}
