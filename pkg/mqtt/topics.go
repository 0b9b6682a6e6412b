package mqtt

import (
	"fmt"
	"strings"
)

// Topic layout
//
//	curator/interaction/{user_id}      raw interaction events (input)
//	curator/profile/stale/{user_id}    profile invalidation triggers (output of the collector)
const (
	TopicInteractions  = "curator/interaction/+"
	TopicProfileStale  = "curator/profile/stale/+"
	interactionPrefix  = "curator/interaction/"
	profileStalePrefix = "curator/profile/stale/"
)

// InteractionTopic constructs the ingest topic for one user
func InteractionTopic(userID string) string {
	return fmt.Sprintf("%s%s", interactionPrefix, userID)
}

// ProfileStaleTopic constructs the invalidation topic for one user
func ProfileStaleTopic(userID string) string {
	return fmt.Sprintf("%s%s", profileStalePrefix, userID)
}

// UserFromTopic extracts the trailing user id segment from an interaction or
// profile-stale topic. Returns "" when the topic does not match either layout.
func UserFromTopic(topic string) string {
	for _, prefix := range []string{interactionPrefix, profileStalePrefix} {
		if strings.HasPrefix(topic, prefix) {
			user := strings.TrimPrefix(topic, prefix)
			if user == "" || strings.Contains(user, "/") {
				return ""
			}
			return user
		}
	}
	return ""
}
