package recommender

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saaga0h/curator-platform/pkg/clock"
	"github.com/saaga0h/curator-platform/pkg/config"
	"github.com/saaga0h/curator-platform/pkg/mqtt"
	"github.com/saaga0h/curator-platform/pkg/redis"
)

func TestAgentInvalidatesOnStaleTrigger(t *testing.T) {
	f := newFixture(t, nil)
	mqttClient := mqtt.NewMockClient()
	cfg := config.NewConfig()
	cfg.APIPort = 0

	timeCfg := clock.NewManager(testLogger())
	agent := NewAgent(mqttClient, f.redis, f.service, NewRateLimiter(60, 10, 0), timeCfg, cfg, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, agent.Start(ctx))
	defer agent.Stop()

	_, err := f.service.Profile(context.Background(), "u1")
	require.NoError(t, err)
	require.Contains(t, f.redis.Values, redis.ProfileKey("u1"))

	delivered := mqttClient.Deliver(mqtt.TopicProfileStale, mqtt.ProfileStaleTopic("u1"), []byte(`{"user_id":"u1"}`))
	require.True(t, delivered)
	assert.NotContains(t, f.redis.Values, redis.ProfileKey("u1"))

	// Malformed topics are ignored
	f.redis.Values[redis.ProfileKey("u2")] = "{}"
	mqttClient.Deliver(mqtt.TopicProfileStale, "curator/profile/stale/", nil)
	assert.Contains(t, f.redis.Values, redis.ProfileKey("u2"))

	assert.True(t, mqttClient.Deliver(clock.TopicTimeConfig, clock.TopicTimeConfig,
		[]byte(`{"virtual_start":"2025-06-01T12:00:00Z","time_scale":1,"test_mode":true}`)))
	assert.True(t, timeCfg.IsVirtual())
}
