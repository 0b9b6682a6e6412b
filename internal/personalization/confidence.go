package personalization

import "math"

// EstimateConfidence averages profile confidence with the mean final score of
// the recommendations, clamped to [0,1]. An empty list has a mean of 0 and
// an undefined result is reported as 0.
func EstimateConfidence(profile UserProfile, recommendations []ScoredRecommendation) float64 {
	var mean float64
	if len(recommendations) > 0 {
		var sum float64
		for _, r := range recommendations {
			sum += r.FinalScore
		}
		mean = sum / float64(len(recommendations))
	}

	confidence := (profile.Confidence + mean) / 2
	if math.IsNaN(confidence) {
		return 0
	}
	return math.Max(0, math.Min(1, confidence))
}
