package personalization

import "time"

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

const day = 24 * time.Hour

func floatPtr(v float64) *float64 { return &v }

func viewRecord(category, style string, age time.Duration) InteractionRecord {
	return InteractionRecord{
		UserID:    "user-1",
		Kind:      KindProductView,
		Timestamp: testNow.Add(-age),
		View: &ProductView{
			Category: category,
			Style:    style,
		},
	}
}

func searchRecord(intent string, categories []string, age time.Duration) InteractionRecord {
	return InteractionRecord{
		UserID:    "user-1",
		Kind:      KindSearchQuery,
		Timestamp: testNow.Add(-age),
		Search: &SearchQuery{
			QueryIntent:     intent,
			QueryCategories: categories,
		},
	}
}

func interactionRecord(action string, age time.Duration) InteractionRecord {
	return InteractionRecord{
		UserID:    "user-1",
		Kind:      KindUserInteraction,
		Timestamp: testNow.Add(-age),
		Action:    &UserInteraction{Action: action},
	}
}
