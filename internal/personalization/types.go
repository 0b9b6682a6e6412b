package personalization

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrMalformedRecord marks a record that cannot take part in profiling.
// Callers skip such records; it is never fatal.
var ErrMalformedRecord = errors.New("malformed interaction record")

// Kind identifies the type of an interaction record
type Kind string

const (
	KindProductView        Kind = "product_view"
	KindSearchQuery        Kind = "search_query"
	KindUserInteraction    Kind = "user_interaction"
	KindPurchaseBehavior   Kind = "purchase_behavior"
	KindPreferenceLearning Kind = "preference_learning"
)

// Kinds lists every known kind in bucket order
var Kinds = []Kind{
	KindProductView,
	KindSearchQuery,
	KindUserInteraction,
	KindPurchaseBehavior,
	KindPreferenceLearning,
}

// Valid reports whether k is a known kind
func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// ProductView is the payload of a product_view record.
// Empty strings and nil pointers mean the field was not observed.
type ProductView struct {
	ItemID              string   `json:"item_id,omitempty"`
	Category            string   `json:"category,omitempty"`
	Style               string   `json:"style,omitempty"`
	Artist              string   `json:"artist,omitempty"`
	DominantColors      []string `json:"dominant_colors,omitempty"`
	ViewDurationSeconds *float64 `json:"view_duration_seconds,omitempty"`
	Price               *float64 `json:"price,omitempty"`
}

// SearchQuery is the payload of a search_query record
type SearchQuery struct {
	Query           string   `json:"query,omitempty"`
	QueryIntent     string   `json:"query_intent,omitempty"`
	QueryCategories []string `json:"query_categories,omitempty"`
}

// UserInteraction is the payload of a user_interaction record (like, save, share, dismiss)
type UserInteraction struct {
	ItemID   string `json:"item_id,omitempty"`
	Action   string `json:"action,omitempty"`
	Category string `json:"category,omitempty"`
}

// PurchaseBehavior is the payload of a purchase_behavior record.
// Stored and bucketed, not yet consumed by insight building.
type PurchaseBehavior struct {
	ItemID   string   `json:"item_id,omitempty"`
	Category string   `json:"category,omitempty"`
	Amount   *float64 `json:"amount,omitempty"`
}

// PreferenceLearning is the payload of a preference_learning record.
// Stored and bucketed, not yet consumed by insight building.
type PreferenceLearning struct {
	Dimension string   `json:"dimension,omitempty"`
	Value     string   `json:"value,omitempty"`
	Weight    *float64 `json:"weight,omitempty"`
}

// InteractionRecord is one observed user event. Exactly one payload pointer,
// the one matching Kind, is set; the others are nil.
type InteractionRecord struct {
	ID        uuid.UUID
	UserID    string
	Kind      Kind
	Timestamp time.Time

	View       *ProductView
	Search     *SearchQuery
	Action     *UserInteraction
	Purchase   *PurchaseBehavior
	Preference *PreferenceLearning
}

// Validate checks the fields every record needs. Payloads are optional:
// a record without one still counts toward activity.
func (r *InteractionRecord) Validate() error {
	if r.UserID == "" {
		return fmt.Errorf("%w: missing user id", ErrMalformedRecord)
	}
	if !r.Kind.Valid() {
		return fmt.Errorf("%w: unknown kind %q", ErrMalformedRecord, r.Kind)
	}
	if r.Timestamp.IsZero() {
		return fmt.Errorf("%w: missing timestamp", ErrMalformedRecord)
	}
	return nil
}

// wireRecord is the JSON form used on MQTT and in the attributes column
type wireRecord struct {
	ID         string          `json:"id,omitempty"`
	UserID     string          `json:"user_id"`
	Kind       Kind            `json:"kind"`
	Timestamp  time.Time       `json:"timestamp"`
	Attributes json.RawMessage `json:"attributes,omitempty"`
}

// MarshalJSON encodes the record with its kind-specific payload under "attributes"
func (r InteractionRecord) MarshalJSON() ([]byte, error) {
	w := wireRecord{
		UserID:    r.UserID,
		Kind:      r.Kind,
		Timestamp: r.Timestamp,
	}
	if r.ID != uuid.Nil {
		w.ID = r.ID.String()
	}

	attrs, err := r.AttributesJSON()
	if err != nil {
		return nil, err
	}
	if len(attrs) > 0 {
		w.Attributes = attrs
	}

	return json.Marshal(w)
}

// UnmarshalJSON decodes the wire form, routing "attributes" by kind.
// Unknown kinds decode without a payload; Validate rejects them.
func (r *InteractionRecord) UnmarshalJSON(data []byte) error {
	var w wireRecord
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	*r = InteractionRecord{
		UserID:    w.UserID,
		Kind:      w.Kind,
		Timestamp: w.Timestamp,
	}
	if w.ID != "" {
		id, err := uuid.Parse(w.ID)
		if err != nil {
			return fmt.Errorf("invalid record id: %w", err)
		}
		r.ID = id
	}

	return r.SetAttributesJSON(w.Attributes)
}

// AttributesJSON returns the JSON encoding of the payload matching Kind,
// or nil when there is none.
func (r *InteractionRecord) AttributesJSON() ([]byte, error) {
	var payload interface{}
	switch r.Kind {
	case KindProductView:
		if r.View != nil {
			payload = r.View
		}
	case KindSearchQuery:
		if r.Search != nil {
			payload = r.Search
		}
	case KindUserInteraction:
		if r.Action != nil {
			payload = r.Action
		}
	case KindPurchaseBehavior:
		if r.Purchase != nil {
			payload = r.Purchase
		}
	case KindPreferenceLearning:
		if r.Preference != nil {
			payload = r.Preference
		}
	}
	if payload == nil {
		return nil, nil
	}
	return json.Marshal(payload)
}

// SetAttributesJSON decodes raw into the payload matching Kind
func (r *InteractionRecord) SetAttributesJSON(raw []byte) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}

	var target interface{}
	switch r.Kind {
	case KindProductView:
		r.View = &ProductView{}
		target = r.View
	case KindSearchQuery:
		r.Search = &SearchQuery{}
		target = r.Search
	case KindUserInteraction:
		r.Action = &UserInteraction{}
		target = r.Action
	case KindPurchaseBehavior:
		r.Purchase = &PurchaseBehavior{}
		target = r.Purchase
	case KindPreferenceLearning:
		r.Preference = &PreferenceLearning{}
		target = r.Preference
	default:
		return nil
	}

	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("%w: attributes for %s: %v", ErrMalformedRecord, r.Kind, err)
	}
	return nil
}

// Memory is a record annotated with its age and recency weight at extraction time
type Memory struct {
	Record        InteractionRecord `json:"record"`
	Age           time.Duration     `json:"age"`
	RecencyWeight float64           `json:"recency_weight"`
}

// CategorizedMemorySet partitions records by kind. Each bucket is sorted by
// RecencyWeight, newest first.
type CategorizedMemorySet struct {
	RecentViews      []Memory `json:"recent_views"`
	SearchHistory    []Memory `json:"search_history"`
	Interactions     []Memory `json:"interactions"`
	Preferences      []Memory `json:"preferences"`
	PurchaseBehavior []Memory `json:"purchase_behavior"`
}

// Engagement accumulates viewing time for one category
type Engagement struct {
	TotalTime float64 `json:"total_time"`
	ViewCount int     `json:"view_count"`
}

// InsightSet holds normalized per-dimension preference weights
type InsightSet struct {
	PreferredCategories        map[string]float64    `json:"preferred_categories"`
	PreferredStyles            map[string]float64    `json:"preferred_styles"`
	PreferredArtists           map[string]float64    `json:"preferred_artists"`
	ColorPreferences           map[string]float64    `json:"color_preferences"`
	EngagementByCategory       map[string]Engagement `json:"engagement_by_category"`
	ShoppingIntentDistribution map[string]float64    `json:"shopping_intent_distribution"`
}

// EngagementLevel buckets mean viewing time per category
type EngagementLevel string

const (
	EngagementLow    EngagementLevel = "low"
	EngagementMedium EngagementLevel = "medium"
	EngagementHigh   EngagementLevel = "high"
)

// DominantCharacteristics summarizes the strongest signals of a profile.
// PrimaryCategory and PrimaryStyle are empty when no value is dominant enough.
type DominantCharacteristics struct {
	PrimaryCategory string          `json:"primary_category,omitempty"`
	PrimaryStyle    string          `json:"primary_style,omitempty"`
	EngagementLevel EngagementLevel `json:"engagement_level"`
}

// UserProfile is rebuilt on demand from the interaction log
type UserProfile struct {
	UserID                  string                  `json:"user_id,omitempty"`
	Insights                InsightSet              `json:"insights"`
	ActivityLevel           int                     `json:"activity_level"`
	LastActive              *time.Time              `json:"last_active"`
	ExplorationScore        float64                 `json:"exploration_score"`
	Confidence              float64                 `json:"confidence"`
	DominantCharacteristics DominantCharacteristics `json:"dominant_characteristics"`
	GeneratedAt             time.Time               `json:"generated_at"`
}

// RecommendationCandidate is an item surfaced by the candidate retriever.
// A nil BaseScore means the retriever supplied none; a zero Timestamp means
// the listing time is unknown.
type RecommendationCandidate struct {
	ItemID    string    `json:"item_id"`
	Title     string    `json:"title,omitempty"`
	BaseScore *float64  `json:"base_score,omitempty"`
	Category  string    `json:"category,omitempty"`
	Style     string    `json:"style,omitempty"`
	Artist    string    `json:"artist,omitempty"`
	Price     *float64  `json:"price,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ScoreBreakdown records the multipliers applied to a candidate
type ScoreBreakdown struct {
	BaseScore           float64 `json:"base_score"`
	PreferenceBoost     float64 `json:"preference_boost"`
	RecencyMultiplier   float64 `json:"recency_multiplier"`
	DiversityMultiplier float64 `json:"diversity_multiplier"`
}

// ScoredRecommendation is a candidate after profile-aware adjustment.
// FinalScore is only meaningful for ordering.
type ScoredRecommendation struct {
	RecommendationCandidate
	FinalScore float64        `json:"final_score"`
	Breakdown  ScoreBreakdown `json:"breakdown"`
}
