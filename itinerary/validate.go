package itinerary

import (
	"fmt"
	"sort"
)

// Validate checks field values of every stop. It returns a *MalformedStopError
// for the first problem found.
func Validate(it *Itinerary) error {
	if it == nil {
		return &MalformedStopError{Index: -1, Field: "itinerary", Problem: "is missing"}
	}
	if it.Title == "" {
		return &MalformedStopError{Index: -1, Field: "title", Problem: "is empty"}
	}
	for i, s := range it.Stops {
		if err := validateStop(i, s); err != nil {
			return err
		}
	}
	return nil
}

func validateStop(i int, s Stop) error {
	bad := func(field, problem string) error {
		return &MalformedStopError{Index: i, StopID: s.ID, Field: field, Problem: problem}
	}
	if s.ID == "" {
		return bad("id", "is empty")
	}
	if s.Name == "" {
		return bad("name", "is empty")
	}
	if _, err := ParseClock(s.StartTime); err != nil {
		return bad("startTime", err.Error())
	}
	if _, err := ParseClock(s.EndTime); err != nil {
		return bad("endTime", err.Error())
	}
	if _, err := s.Window(); err != nil {
		return bad("endTime", err.Error())
	}
	if s.AuthenticityScore < 1 || s.AuthenticityScore > 10 {
		return bad("authenticityScore", fmt.Sprintf("is %d, want 1-10", s.AuthenticityScore))
	}
	if s.InstagramScore < 1 || s.InstagramScore > 10 {
		return bad("instagramScore", fmt.Sprintf("is %d, want 1-10", s.InstagramScore))
	}
	if s.Type != "" && !s.Type.IsValid() {
		return bad("type", fmt.Sprintf("has unknown value %q", s.Type))
	}
	if s.CrowdLevel != "" && !s.CrowdLevel.IsValid() {
		return bad("crowdLevel", fmt.Sprintf("has unknown value %q", s.CrowdLevel))
	}
	if s.TravelToNext != nil && s.TravelToNext.Mode != "" && !s.TravelToNext.Mode.IsValid() {
		return bad("travelToNext.mode", fmt.Sprintf("has unknown value %q", s.TravelToNext.Mode))
	}
	if s.DurationMinutes < 0 {
		return bad("durationMinutes", "is negative")
	}
	return nil
}

// CheckTimeline verifies the stops are chronological and pairwise non-overlapping.
func CheckTimeline(stops []Stop) error {
	windows := make([]Window, len(stops))
	for i, s := range stops {
		w, err := s.Window()
		if err != nil {
			return &MalformedStopError{Index: i, StopID: s.ID, Field: "startTime", Problem: err.Error()}
		}
		if i > 0 && w.Start < windows[i-1].Start {
			return fmt.Errorf("stop %q at %s is out of order", s.Name, w)
		}
		for j := 0; j < i; j++ {
			if w.Overlaps(windows[j]) {
				return fmt.Errorf("stop %q at %s overlaps %q at %s", s.Name, w, stops[j].Name, windows[j])
			}
		}
		windows[i] = w
	}
	return nil
}

// sortStops orders stops by start, then end, with fixed stops first on ties.
func sortStops(stops []Stop) {
	sort.SliceStable(stops, func(i, j int) bool {
		wi, _ := stops[i].Window()
		wj, _ := stops[j].Window()
		if wi.Start != wj.Start {
			return wi.Start < wj.Start
		}
		if wi.End != wj.End {
			return wi.End < wj.End
		}
		return stops[i].IsFixed && !stops[j].IsFixed
	})
}
