package recommender

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter limits requests per user, forgetting users idle past maxIdle
type RateLimiter struct {
	limiters map[string]*rateLimiterEntry
	mu       sync.Mutex
	rate     rate.Limit
	burst    int
	maxIdle  time.Duration
	now      func() time.Time

	stopOnce  sync.Once
	stopClean chan struct{}
}

// rateLimiterEntry wraps a limiter with its last access time
type rateLimiterEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// NewRateLimiter allows perMinute requests per user with the given burst.
// Entries idle longer than maxIdle are dropped by Cleanup.
func NewRateLimiter(perMinute, burst int, maxIdle time.Duration) *RateLimiter {
	if maxIdle <= 0 {
		maxIdle = time.Hour
	}
	return &RateLimiter{
		limiters:  make(map[string]*rateLimiterEntry),
		rate:      rate.Limit(float64(perMinute) / 60),
		burst:     burst,
		maxIdle:   maxIdle,
		now:       time.Now,
		stopClean: make(chan struct{}),
	}
}

// Allow reports whether userID may make a request now
func (rl *RateLimiter) Allow(userID string) bool {
	now := rl.now()

	rl.mu.Lock()
	entry, exists := rl.limiters[userID]
	if !exists {
		entry = &rateLimiterEntry{limiter: rate.NewLimiter(rl.rate, rl.burst)}
		rl.limiters[userID] = entry
	}
	entry.lastAccess = now
	limiter := entry.limiter
	rl.mu.Unlock()

	return limiter.AllowN(now, 1)
}

// StartCleanup removes idle entries every interval until Stop is called
func (rl *RateLimiter) StartCleanup(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				rl.Cleanup()
			case <-rl.stopClean:
				return
			}
		}
	}()
}

// Cleanup removes limiters not accessed within maxIdle
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	threshold := rl.now().Add(-rl.maxIdle)
	for user, entry := range rl.limiters {
		if entry.lastAccess.Before(threshold) {
			delete(rl.limiters, user)
		}
	}
}

// Len returns the number of tracked users
func (rl *RateLimiter) Len() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.limiters)
}

// Stop stops the cleanup goroutine. Safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() {
		close(rl.stopClean)
	})
}
