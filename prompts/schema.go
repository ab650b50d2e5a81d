package prompts

import (
	"github.com/aaileenssyed/LocalFlow/itinerary"
	"github.com/aaileenssyed/LocalFlow/llm"
)

// Required fields of the generated itinerary and of each stop.
var (
	ItineraryRequired = []string{"stops", "title", "totalAuthenticityScore", "totalInstagramScore"}
	StopRequired      = []string{"id", "name", "startTime", "endTime", "authenticityScore", "instagramScore", "tags", "estimatedCost"}
)

// ItinerarySchema returns the output schema sent with every planning and
// replanning call.
func ItinerarySchema() *llm.Schema {
	travel := llm.Object(map[string]*llm.Schema{
		"mode":     llm.Enum(enumValues(itinerary.TravelModes)...),
		"duration": llm.String("e.g. '15 min'"),
	})
	travel.Description = "Travel to the NEXT stop in the list."

	stop := llm.Object(map[string]*llm.Schema{
		"id":                llm.String(""),
		"name":              llm.String(""),
		"description":       llm.String(""),
		"startTime":         llm.String("HH:MM 24h format"),
		"endTime":           llm.String("HH:MM 24h format"),
		"durationMinutes":   llm.Integer(""),
		"type":              llm.Enum(enumValues(itinerary.ActivityTypes)...),
		"authenticityScore": llm.Integer("1-10"),
		"instagramScore":    llm.Integer("1-10"),
		"isFixed":           llm.Boolean("True if this matches a user commitment"),
		"estimatedCost":     llm.String("Cost estimate in local currency or USD, e.g. '$20' or 'Free'"),
		"bestPhotoSpot":     llm.String("Specific advice on where/what to photograph here"),
		"localTip":          llm.String("Something only locals know about this place"),
		"whyThisSpot":       llm.String("Why this stop fits the requested vibe"),
		"crowdLevel":        llm.Enum(enumValues(itinerary.CrowdLevels)...),
		"travelToNext":      travel,
		"location": llm.Object(map[string]*llm.Schema{
			"lat":     llm.Number(""),
			"lng":     llm.Number(""),
			"address": llm.String(""),
		}),
		"dietaryNotes": llm.String(""),
		"tags":         llm.ArrayOf(llm.String("")),
	}, StopRequired...)

	return llm.Object(map[string]*llm.Schema{
		"id":                     llm.String(""),
		"title":                  llm.String(""),
		"stops":                  llm.ArrayOf(stop),
		"totalAuthenticityScore": llm.Integer(""),
		"totalInstagramScore":    llm.Integer(""),
		"summary":                llm.String(""),
		"unreachableFixedStops":  llm.ArrayOf(llm.String("Names of fixed stops that can no longer be reached")),
	}, ItineraryRequired...)
}

func enumValues[T ~string](values []T) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out
}
