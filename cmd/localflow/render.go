package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/aaileenssyed/LocalFlow/itinerary"
	"github.com/aaileenssyed/LocalFlow/resolver"
	"github.com/aaileenssyed/LocalFlow/session"
)

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// renderItinerary writes a plain-text day plan.
func renderItinerary(w io.Writer, it *itinerary.Itinerary, st session.Status) {
	fmt.Fprintf(w, "%s  (authenticity %d, instagram %d)\n", it.Title, it.TotalAuthenticityScore, it.TotalInstagramScore)
	if it.Summary != "" {
		fmt.Fprintln(w, it.Summary)
	}
	if st.State == session.StateStableUnchanged {
		fmt.Fprintln(w, itinerary.UserMessage(&itinerary.GenerationError{Op: itinerary.OpRecalculate}))
	}
	fmt.Fprintln(w)

	for i, s := range it.Stops {
		name := s.Name
		if s.IsFixed {
			name += " (fixed)"
		}
		fmt.Fprintf(w, "%2d. %s-%s  %s\n", i+1, s.StartTime, s.EndTime, name)

		var meta []string
		if s.Type != "" {
			meta = append(meta, string(s.Type))
		}
		if s.EstimatedCost != "" {
			meta = append(meta, s.EstimatedCost)
		}
		if s.CrowdLevel != "" {
			meta = append(meta, "crowd "+strings.ToLower(string(s.CrowdLevel)))
		}
		if len(meta) > 0 {
			fmt.Fprintf(w, "    %s\n", strings.Join(meta, " | "))
		}
		if s.Location.Address != "" && s.Location.Address != s.Name {
			fmt.Fprintf(w, "    %s\n", s.Location.Address)
		}
		if s.LocalTip != "" {
			fmt.Fprintf(w, "    tip: %s\n", s.LocalTip)
		}
		if s.DietaryNotes != "" {
			fmt.Fprintf(w, "    diet: %s\n", s.DietaryNotes)
		}
		if s.TravelToNext != nil && i < len(it.Stops)-1 {
			fmt.Fprintf(w, "    -> %s %s\n", strings.ToLower(string(s.TravelToNext.Mode)), s.TravelToNext.Duration)
		}
	}

	for _, name := range it.Unreachable {
		fmt.Fprintf(w, "\nwarning: could not fit fixed stop %q\n", name)
	}
	for _, warn := range it.Warnings {
		fmt.Fprintf(w, "note: %s\n", warn)
	}
}

func renderLinks(w io.Writer, links []itinerary.Link) {
	for i, l := range links {
		fmt.Fprintf(w, "%2d. %s\n    %s\n", i+1, l.Name, l.URL)
	}
}

func renderCommitments(w io.Writer, list []itinerary.FixedCommitment) {
	if len(list) == 0 {
		fmt.Fprintln(w, "No commitments.")
		return
	}
	for _, c := range list {
		line := fmt.Sprintf("%s  %s-%s  %s", c.ID, c.StartTime, c.EndTime, c.Location)
		if c.Description != "" && c.Description != itinerary.DefaultCommitmentDescription {
			line += " (" + c.Description + ")"
		}
		if c.Coordinates != nil {
			line += fmt.Sprintf("  @%.5f,%.5f", c.Coordinates.Lat, c.Coordinates.Lng)
		}
		fmt.Fprintln(w, line)
	}
}

func renderPlace(w io.Writer, p resolver.Place) {
	fmt.Fprintln(w, p.Name)
	fmt.Fprintln(w, p.Address)
	if p.IsSentinel() {
		fmt.Fprintln(w, "(not resolved)")
		return
	}
	fmt.Fprintf(w, "%.6f, %.6f\n", p.Lat, p.Lng)
}
