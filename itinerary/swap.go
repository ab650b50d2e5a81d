package itinerary

import (
	"fmt"
)

// ApplySwap builds the result of swapping target out of current using the
// generator's proposal. Every stop of current is kept except target, whose
// slot is filled by a new place taken from generated and retimed to target's
// exact window. Title, summary and totals come from generated.
//
// Candidates are non-fixed stops of generated not already in current. The one
// sharing the most time with target wins; with no overlap at all the one
// starting closest to target is used. ErrSwapNotHonored is returned when
// generated offers no new place.
func ApplySwap(current, generated *Itinerary, target string) (*Itinerary, error) {
	idx := current.FindStop(target)
	if idx < 0 {
		return nil, fmt.Errorf("%w: no stop named %q", ErrSwapTargetNotFound, target)
	}
	old := current.Stops[idx]
	if old.IsFixed {
		return nil, fmt.Errorf("%w: %q is a fixed commitment", ErrSwapTargetNotFound, old.Name)
	}
	tw, err := old.Window()
	if err != nil {
		return nil, &MalformedStopError{Index: idx, StopID: old.ID, Field: "startTime", Problem: err.Error()}
	}

	pick := -1
	bestOverlap, bestDistance := -1, 0
	for i, s := range generated.Stops {
		if s.IsFixed || current.FindStop(s.Name) >= 0 {
			continue
		}
		w, err := s.Window()
		if err != nil {
			continue
		}
		overlap := w.Overlap(tw)
		if overlap == 0 && w.Overlaps(tw) {
			overlap = 1
		}
		distance := int(w.Start - tw.Start)
		if distance < 0 {
			distance = -distance
		}
		if overlap > bestOverlap || (overlap == bestOverlap && distance < bestDistance) {
			pick, bestOverlap, bestDistance = i, overlap, distance
		}
	}
	if pick < 0 {
		return nil, fmt.Errorf("%w: generator kept %q and proposed no new place", ErrSwapNotHonored, old.Name)
	}

	replacement := generated.Stops[pick].clone()
	replacement.StartTime = old.StartTime
	replacement.EndTime = old.EndTime
	replacement.DurationMinutes = tw.Minutes()
	replacement.IsFixed = false
	if replacement.TravelToNext == nil && old.TravelToNext != nil {
		t := *old.TravelToNext
		replacement.TravelToNext = &t
	}
	if idx == len(current.Stops)-1 {
		replacement.TravelToNext = nil
	}

	out := current.Clone()
	out.Stops[idx] = replacement
	if generated.Title != "" {
		out.Title = generated.Title
	}
	if generated.Summary != "" {
		out.Summary = generated.Summary
	}
	out.TotalAuthenticityScore = generated.TotalAuthenticityScore
	out.TotalInstagramScore = generated.TotalInstagramScore
	out.Warnings = append([]string(nil), generated.Warnings...)
	out.Unreachable = nil
	return out, nil
}
