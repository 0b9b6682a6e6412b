package recommender

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/saaga0h/curator-platform/internal/personalization"
	"github.com/saaga0h/curator-platform/pkg/redis"
)

// ProfileCache stores built profiles in Redis under profile:{user_id}
type ProfileCache struct {
	redis  redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewProfileCache creates a cache whose entries expire after ttl
func NewProfileCache(redisClient redis.Client, ttl time.Duration, logger *slog.Logger) *ProfileCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProfileCache{
		redis:  redisClient,
		ttl:    ttl,
		logger: logger,
	}
}

// Get returns the cached profile. A miss is (nil, nil); an entry that no
// longer decodes is deleted and reported as a miss.
func (c *ProfileCache) Get(ctx context.Context, userID string) (*personalization.UserProfile, error) {
	key := redis.ProfileKey(userID)

	data, err := c.redis.Get(ctx, key)
	if err != nil {
		if errors.Is(err, redis.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read cached profile: %w", err)
	}

	var profile personalization.UserProfile
	if err := json.Unmarshal([]byte(data), &profile); err != nil {
		c.logger.Warn("Discarding undecodable cached profile", "user_id", userID, "error", err)
		if delErr := c.redis.Del(ctx, key); delErr != nil {
			c.logger.Warn("Failed to delete cached profile", "user_id", userID, "error", delErr)
		}
		return nil, nil
	}

	return &profile, nil
}

// Put stores the profile, replacing any previous entry
func (c *ProfileCache) Put(ctx context.Context, profile personalization.UserProfile) error {
	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("failed to marshal profile: %w", err)
	}

	if err := c.redis.Set(ctx, redis.ProfileKey(profile.UserID), data, c.ttl); err != nil {
		return fmt.Errorf("failed to cache profile: %w", err)
	}
	return nil
}

// Invalidate drops the user's cached profile
func (c *ProfileCache) Invalidate(ctx context.Context, userID string) error {
	if err := c.redis.Del(ctx, redis.ProfileKey(userID)); err != nil {
		return fmt.Errorf("failed to invalidate profile: %w", err)
	}
	return nil
}
