package catalog

import (
	"sort"
	"strings"

	"github.com/saaga0h/curator-platform/internal/personalization"
)

// maxQueryColors bounds how many preferred colors go into the query text
const maxQueryColors = 3

// RequestContext is what the caller knows about the current request
type RequestContext struct {
	Mood   string `json:"mood,omitempty"`
	Budget string `json:"budget,omitempty"`
	Page   string `json:"page,omitempty"`
	Text   string `json:"text,omitempty"`
	// ExcludeUser hides the requesting user's own listings when set
	ExcludeUser string `json:"exclude_user,omitempty"`
}

// BuildQuery composes the retrieval text from the profile's dominant
// characteristics, its strongest colors and the request context. The same
// inputs always produce the same text. An empty profile with an empty
// context falls back to a generic query.
func BuildQuery(profile personalization.UserProfile, reqCtx RequestContext) string {
	var parts []string

	if text := strings.TrimSpace(reqCtx.Text); text != "" {
		parts = append(parts, text)
	}
	if c := profile.DominantCharacteristics.PrimaryStyle; c != "" {
		parts = append(parts, c)
	}
	if c := profile.DominantCharacteristics.PrimaryCategory; c != "" {
		parts = append(parts, c)
	}
	if colors := topColors(profile.Insights.ColorPreferences, maxQueryColors); len(colors) > 0 {
		parts = append(parts, "in "+strings.Join(colors, ", "))
	}
	if mood := strings.TrimSpace(reqCtx.Mood); mood != "" {
		parts = append(parts, "mood: "+mood)
	}
	if budget := strings.TrimSpace(reqCtx.Budget); budget != "" {
		parts = append(parts, "budget: "+budget)
	}
	if page := strings.TrimSpace(reqCtx.Page); page != "" {
		parts = append(parts, "browsing: "+page)
	}

	if len(parts) == 0 {
		return "popular handmade art and design"
	}
	return strings.Join(parts, " ")
}

// topColors returns up to n colors by weight, ties broken by name
func topColors(weights map[string]float64, n int) []string {
	colors := make([]string, 0, len(weights))
	for c := range weights {
		colors = append(colors, c)
	}
	sort.Slice(colors, func(i, j int) bool {
		if weights[colors[i]] != weights[colors[j]] {
			return weights[colors[i]] > weights[colors[j]]
		}
		return colors[i] < colors[j]
	})
	if len(colors) > n {
		colors = colors[:n]
	}
	return colors
}
