package redis

import (
	"context"
	"errors"
	"time"
)

// ErrKeyNotFound is returned by Get when the key does not exist
var ErrKeyNotFound = errors.New("key does not exist")

// Client is the Redis surface the agents need: a JSON profile cache and the
// per-user activity hash kept by the collector.
type Client interface {
	// Set stores value under key; a zero ttl means no expiry
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	// Get returns the value of key, or ErrKeyNotFound
	Get(ctx context.Context, key string) (string, error)

	// Del removes keys, ignoring ones that do not exist
	Del(ctx context.Context, keys ...string) error

	// RecordActivity drops the user's cached profile and updates their
	// activity hash (last interaction time and the kind's counter) in one
	// transaction, refreshing the hash TTL
	RecordActivity(ctx context.Context, userID, kind string, at time.Time, ttl time.Duration) error

	Ping(ctx context.Context) error
	Close() error
}
