// Package prompts builds the instructions sent to the itinerary generator and
// the location resolver. Every builder is a pure function of its inputs.
package prompts

import (
	"fmt"
	"strings"

	"github.com/aaileenssyed/LocalFlow/itinerary"
	"github.com/aaileenssyed/LocalFlow/llm"
	"github.com/aaileenssyed/LocalFlow/model"
)

// Prompt is an instruction plus the schema its answer must follow.
type Prompt struct {
	Capability model.Capability
	Text       string
	Schema     *llm.Schema
}

// PlanContext is the traveler's situation at the moment of the request.
type PlanContext struct {
	// CurrentTime is the local time of day, HH:MM.
	CurrentTime string
	// Position is the traveler's last known position, if any.
	Position *itinerary.Coordinates
	// TripEnd bounds recalculated plans. Empty leaves it to the generator.
	TripEnd string
}

// BuildGeneration returns the prompt for a fresh plan.
func BuildGeneration(prefs itinerary.UserPreferences, pc PlanContext) Prompt {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("Create a single-day travel itinerary for: %s.\n", prefs.Location))
	writeContext(&sb, pc)
	sb.WriteString(fmt.Sprintf("Trip window: %s to %s. Every stop must start and end inside this window.\n\n",
		prefs.TripStartTime, prefs.TripEndTime))

	sb.WriteString("## User Preferences\n\n")
	sb.WriteString(fmt.Sprintf("- Vibe Score: %d (0 = pure aesthetic/tourist, 100 = deep local/authentic)\n", prefs.VibeScore))
	if prefs.VibeDescription != "" {
		sb.WriteString(fmt.Sprintf("- Vibe Description: %q. Use it to pick the mood and style of every place.\n", prefs.VibeDescription))
	}
	dietary := "None"
	if len(prefs.Dietary) > 0 {
		dietary = strings.Join(prefs.Dietary, ", ")
	}
	sb.WriteString(fmt.Sprintf("- Dietary Restrictions: %s\n", dietary))
	sb.WriteString(fmt.Sprintf("- Budget Level: %s\n\n", prefs.Budget))

	sb.WriteString("## Fixed Commitments\n\n")
	if len(prefs.FixedCommitments) == 0 {
		sb.WriteString("None. The whole window is free.\n\n")
	} else {
		sb.WriteString("The user has these fixed plans. Each one MUST appear as a stop with isFixed=true, ")
		sb.WriteString("type COMMITMENT, the same id, and EXACTLY the startTime and endTime given. ")
		sb.WriteString("Do not schedule anything else that overlaps them. Do not double book.\n\n")
		for _, c := range prefs.FixedCommitments {
			sb.WriteString(fmt.Sprintf("- id=%s %s-%s at %q (%s)\n", c.ID, c.StartTime, c.EndTime, c.Location, c.Description))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## Rules\n\n")
	sb.WriteString("1. TIMING\n")
	sb.WriteString("   - Schedule places famous for night views (night markets, skylines, neon streets) in the evening.\n")
	sb.WriteString("   - Schedule scenic spots that depend on light around golden hour.\n")
	sb.WriteString("   - Fill the gaps between commitments with vibe-appropriate activities.\n")
	sb.WriteString("   - Stops are chronological and never overlap.\n")
	sb.WriteString("2. VIBE MATCHING\n")
	if prefs.HighAuthenticity() {
		sb.WriteString(fmt.Sprintf("   - The vibe score is above %d: discard every place with authenticityScore below %d. Fixed commitments are exempt.\n",
			itinerary.HighAuthenticityVibe, itinerary.MinAuthenticityScore))
	} else {
		sb.WriteString(fmt.Sprintf("   - If the vibe score were above %d you would discard places with authenticityScore below %d; it is not, so balance polish and authenticity.\n",
			itinerary.HighAuthenticityVibe, itinerary.MinAuthenticityScore))
	}
	sb.WriteString("3. LOGISTICS\n")
	sb.WriteString("   - Every stop except the last carries a realistic travelToNext (mode and duration).\n")
	sb.WriteString("   - Leave enough travel time to reach each fixed commitment on time.\n")
	sb.WriteString("4. ANNOTATIONS\n")
	sb.WriteString("   - Give every stop a specific bestPhotoSpot (e.g. \"From the bridge facing west\").\n")
	sb.WriteString("   - Give every stop a localTip and a whyThisSpot that ties it to the vibe description.\n")
	writeOutputRules(&sb)

	return Prompt{
		Capability: model.CapabilityPlanning,
		Text:       sb.String(),
		Schema:     ItinerarySchema(),
	}
}

// BuildRecalculation returns the prompt for replanning current. Only stop
// names and fixed windows are sent, not full stop detail.
func BuildRecalculation(current *itinerary.Itinerary, reason itinerary.Reason, pc PlanContext) Prompt {
	var sb strings.Builder

	sb.WriteString("RECALCULATE ITINERARY.\n")
	sb.WriteString(fmt.Sprintf("Reason: %s\n", reason.Text))
	writeContext(&sb, pc)
	if pc.TripEnd != "" {
		sb.WriteString(fmt.Sprintf("The day ends at %s. Nothing may run past it.\n", pc.TripEnd))
	}
	sb.WriteString("\n## Current Plan\n\n")
	for _, name := range current.StopNames() {
		sb.WriteString(fmt.Sprintf("- %s\n", name))
	}

	fixed := current.FixedStops()
	sb.WriteString("\n## Fixed Stops\n\n")
	if len(fixed) == 0 {
		sb.WriteString("None.\n")
	} else {
		sb.WriteString("These keep their id, name, startTime and endTime EXACTLY and keep isFixed=true:\n")
		for _, s := range fixed {
			sb.WriteString(fmt.Sprintf("- id=%s %q %s-%s\n", s.ID, s.Name, s.StartTime, s.EndTime))
		}
	}

	sb.WriteString("\n## Logic\n\n")
	if reason.Kind == itinerary.ReasonSwap {
		slot := ""
		if i := current.FindStop(reason.Target); i >= 0 {
			s := current.Stops[i]
			slot = fmt.Sprintf(" (%s-%s)", s.StartTime, s.EndTime)
		}
		sb.WriteString(fmt.Sprintf("1. Replace ONLY the stop %q%s with a different, vibe-appropriate place in the same time slot.\n",
			reason.Target, slot))
		sb.WriteString("2. Keep every other stop as it is.\n")
		sb.WriteString("3. The replacement must not share a name with any stop in the current plan.\n")
	} else {
		sb.WriteString("1. Respect fixed stops. Do NOT remove them. If one truly cannot be reached any more, ")
		sb.WriteString("keep it out of stops and list its name in unreachableFixedStops.\n")
		sb.WriteString("2. Adjust start times and travel durations from the current time onward.\n")
		sb.WriteString("3. If the remaining time cannot hold everything, drop non-fixed stops.\n")
		if reason.Kind == itinerary.ReasonDiverged {
			sb.WriteString("4. The traveler has wandered off; favor places near where they are now.\n")
		}
	}
	writeOutputRules(&sb)
	sb.WriteString("Return the full updated itinerary.\n")

	return Prompt{
		Capability: model.CapabilityReplanning,
		Text:       sb.String(),
		Schema:     ItinerarySchema(),
	}
}

// BuildResolve returns the grounded prompt for locating query near hint.
func BuildResolve(query, hint string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Find the specific location: %q", query))
	if hint != "" {
		sb.WriteString(fmt.Sprintf(" near %q", hint))
	}
	sb.WriteString(".\nReturn the official name, the formatted address and the coordinates ")
	sb.WriteString("as a single JSON object and nothing else:\n")
	sb.WriteString(`{"name": "...", "address": "...", "lat": 0.0, "lng": 0.0}`)
	sb.WriteString("\n")
	return sb.String()
}

func writeContext(sb *strings.Builder, pc PlanContext) {
	if pc.CurrentTime != "" {
		sb.WriteString(fmt.Sprintf("Current Time: %s\n", pc.CurrentTime))
	}
	if pc.Position != nil && !pc.Position.IsSentinel() {
		sb.WriteString(fmt.Sprintf("Current Position: %.5f, %.5f\n", pc.Position.Lat, pc.Position.Lng))
	}
}

func writeOutputRules(sb *strings.Builder) {
	sb.WriteString("\n## Output\n\n")
	sb.WriteString("Respond with JSON only, matching the provided schema. No prose, no markdown fences.\n")
	sb.WriteString("Times are HH:MM in 24h format. Scores are integers from 1 to 10.\n")
}
