package export

import "github.com/aaileenssyed/LocalFlow/itinerary"

// Vibe is the three-axis summary of an itinerary on 0-100 scales.
type Vibe struct {
	Authenticity int `json:"authenticity"`
	Instagram    int `json:"instagram"`
	// Popularity is the inverse of authenticity.
	Popularity int `json:"popularity"`
}

// Analyze summarizes the itinerary's score totals, clamped to 0-100.
func Analyze(it *itinerary.Itinerary) Vibe {
	auth := clampScore(it.TotalAuthenticityScore)
	return Vibe{
		Authenticity: auth,
		Instagram:    clampScore(it.TotalInstagramScore),
		Popularity:   100 - auth,
	}
}

func clampScore(n int) int {
	return max(0, min(100, n))
}
