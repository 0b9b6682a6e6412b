package redis

import "fmt"

// Key construction helpers. All keys are scoped by user id.

// FieldLastInteraction holds the newest interaction time (unix ms) in the activity hash
const FieldLastInteraction = "last_interaction"

// ProfileKey returns the key for a cached user profile (string, JSON)
// Pattern: profile:{user_id}
func ProfileKey(userID string) string {
	return fmt.Sprintf("profile:%s", userID)
}

// UserActivityKey returns the key for per-user ingest counters (hash)
// Pattern: meta:activity:{user_id}
// Fields: FieldLastInteraction and one counter per interaction kind
func UserActivityKey(userID string) string {
	return fmt.Sprintf("meta:activity:%s", userID)
}
