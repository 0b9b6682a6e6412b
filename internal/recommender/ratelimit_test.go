package recommender

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateLimiterAllow(t *testing.T) {
	rl := NewRateLimiter(60, 2, time.Hour)
	defer rl.Stop()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("u1"))
	assert.True(t, rl.Allow("u1"))
	assert.False(t, rl.Allow("u1"), "burst exhausted")
	assert.True(t, rl.Allow("u2"))

	// One token per second at 60/min
	now = now.Add(time.Second)
	assert.True(t, rl.Allow("u1"))
	assert.False(t, rl.Allow("u1"))
}

func TestRateLimiterCleanup(t *testing.T) {
	rl := NewRateLimiter(60, 1, 10*time.Minute)
	defer rl.Stop()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	rl.Allow("idle")
	now = now.Add(5 * time.Minute)
	rl.Allow("active")
	assert.Equal(t, 2, rl.Len())

	now = now.Add(6 * time.Minute)
	rl.Cleanup()
	assert.Equal(t, 1, rl.Len())

	rl.Stop()
	rl.Stop()
}
