package checker

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/saaga0h/curator-platform/e2e/internal/scenario"
)

// ExpectAbsent in a Redis expectation asserts the key does not exist
const ExpectAbsent = "!exists"

// CheckRedisExpectation validates a Redis state expectation
func CheckRedisExpectation(ctx context.Context, client *redis.Client, exp scenario.Expectation) (bool, string, interface{}) {
	if exp.RedisKey == "" {
		return false, "redis_key is empty", nil
	}

	if exp.Expected == ExpectAbsent {
		n, err := client.Exists(ctx, exp.RedisKey).Result()
		if err != nil {
			return false, fmt.Sprintf("Redis error: %v", err), nil
		}
		if n > 0 {
			return false, fmt.Sprintf("key %q exists", exp.RedisKey), n
		}
		return true, "", nil
	}

	var value string
	var err error
	if exp.RedisField != "" {
		value, err = client.HGet(ctx, exp.RedisKey, exp.RedisField).Result()
	} else {
		value, err = client.Get(ctx, exp.RedisKey).Result()
	}
	if errors.Is(err, redis.Nil) {
		return false, fmt.Sprintf("key %q field %q not found in Redis", exp.RedisKey, exp.RedisField), nil
	}
	if err != nil {
		return false, fmt.Sprintf("Redis error: %v", err), nil
	}

	matches, reason := MatchesExpectation(value, exp.Expected)
	if !matches {
		return false, reason, value
	}

	return true, "", value
}
