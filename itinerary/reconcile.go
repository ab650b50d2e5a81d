package itinerary

import (
	"fmt"
)

// Constraints are the hard rules a generated plan is reconciled against.
type Constraints struct {
	// Fixed are the authoritative fixed stops the plan must reproduce.
	Fixed []Stop

	// Bounds is the trip window. Flexible stops outside it are pruned.
	// Nil disables the check.
	Bounds *Window

	// KeepFixedDetail keeps the authoritative fixed stops verbatim, taking only
	// travelToNext from the generator. Used when replanning, where the fixed
	// stops already carry full, enriched detail.
	KeepFixedDetail bool

	// AllowUnreachable lets the generator drop a fixed stop it lists in
	// Itinerary.Unreachable. Every such drop is added to Itinerary.Warnings.
	AllowUnreachable bool

	// MinAuthenticity prunes flexible stops scoring below it. Zero disables.
	MinAuthenticity int
}

// Report lists what Reconcile changed in the generator's plan.
type Report struct {
	// Pruned names flexible stops removed, with the reason in parentheses.
	Pruned []string
	// Restored names fixed stops the generator retimed and that were put back.
	Restored []string
	// Dropped names fixed stops removed under the unreachable override.
	Dropped []string
	// Promoted names stops the generator left unflagged that reproduce a fixed
	// stop by id or exact window.
	Promoted []string
}

// Changed reports whether anything was repaired.
func (r Report) Changed() bool {
	return len(r.Pruned) > 0 || len(r.Restored) > 0 || len(r.Dropped) > 0 || len(r.Promoted) > 0
}

// Reconcile validates plan and repairs it against c. It returns a new
// itinerary; plan is not modified.
//
// Fixed stops are matched to the authoritative ones by time window, then by id,
// then by name. Matched stops always get the authoritative window back. An
// unflagged stop carrying a fixed stop's id or exact window is promoted to that
// fixed stop. A fixed stop missing from the plan, or a generated fixed stop
// matching nothing, is an ErrFixedStopViolation. Flexible stops outside the bounds or overlapping a
// fixed stop or an earlier flexible stop are pruned.
func Reconcile(plan *Itinerary, c Constraints) (*Itinerary, Report, error) {
	var report Report
	if err := Validate(plan); err != nil {
		return nil, report, err
	}

	out := plan.Clone()

	var generatedFixed, flexible []Stop
	for _, s := range out.Stops {
		if s.IsFixed {
			generatedFixed = append(generatedFixed, s)
		} else {
			flexible = append(flexible, s)
		}
	}

	kept := make([]Stop, 0, len(out.Stops))
	fixedWindows := make([]Window, 0, len(c.Fixed))
	used := make([]bool, len(generatedFixed))

	for _, auth := range c.Fixed {
		aw, err := auth.Window()
		if err != nil {
			return nil, report, fmt.Errorf("%w: %q: %v", ErrFixedStopViolation, auth.Name, err)
		}
		idx := matchFixed(auth, aw, generatedFixed, used)
		if idx < 0 {
			if j := matchUnflagged(auth, aw, flexible); j >= 0 {
				report.Promoted = append(report.Promoted, auth.Name)
				kept = append(kept, mergeFixed(auth, flexible[j], c.KeepFixedDetail))
				fixedWindows = append(fixedWindows, aw)
				flexible = append(flexible[:j:j], flexible[j+1:]...)
				continue
			}
			if c.AllowUnreachable && containsName(out.Unreachable, auth.Name) {
				report.Dropped = append(report.Dropped, auth.Name)
				out.Warnings = append(out.Warnings,
					fmt.Sprintf("Fixed stop %q (%s) was removed because it is impossible to reach.", auth.Name, aw))
				continue
			}
			return nil, report, fmt.Errorf("%w: %q (%s) is missing from the plan", ErrFixedStopViolation, auth.Name, aw)
		}
		used[idx] = true

		gw, _ := generatedFixed[idx].Window()
		if gw != aw {
			report.Restored = append(report.Restored, auth.Name)
		}
		kept = append(kept, mergeFixed(auth, generatedFixed[idx], c.KeepFixedDetail))
		fixedWindows = append(fixedWindows, aw)
	}

	for i, g := range generatedFixed {
		if !used[i] {
			return nil, report, fmt.Errorf("%w: %q (%s-%s) is marked fixed but matches no commitment",
				ErrFixedStopViolation, g.Name, g.StartTime, g.EndTime)
		}
	}

	sortStops(flexible)
	flexWindows := make([]Window, 0, len(flexible))
	for _, s := range flexible {
		w, _ := s.Window()
		reason := ""
		switch {
		case c.Bounds != nil && !w.Within(*c.Bounds):
			reason = "outside trip bounds"
		case s.AuthenticityScore < c.MinAuthenticity:
			reason = "below the authenticity floor"
		case overlapsAny(w, fixedWindows):
			reason = "overlaps a fixed stop"
		case overlapsAny(w, flexWindows):
			reason = "overlaps another stop"
		}
		if reason != "" {
			report.Pruned = append(report.Pruned, fmt.Sprintf("%s (%s)", s.Name, reason))
			continue
		}
		kept = append(kept, s)
		flexWindows = append(flexWindows, w)
	}

	sortStops(kept)
	if n := len(kept); n > 0 {
		kept[n-1].TravelToNext = nil
	}
	out.Stops = kept

	if err := CheckTimeline(out.Stops); err != nil {
		return nil, report, fmt.Errorf("%w: %v", ErrFixedStopViolation, err)
	}
	return out, report, nil
}

func matchFixed(auth Stop, aw Window, candidates []Stop, used []bool) int {
	for i, g := range candidates {
		if used[i] {
			continue
		}
		if gw, err := g.Window(); err == nil && gw == aw {
			return i
		}
	}
	for i, g := range candidates {
		if !used[i] && auth.ID != "" && g.ID == auth.ID {
			return i
		}
	}
	for i, g := range candidates {
		if !used[i] && sameName(g.Name, auth.Name) {
			return i
		}
	}
	return -1
}

// matchUnflagged finds a flexible stop that is really the fixed stop auth,
// by id or by exact window.
func matchUnflagged(auth Stop, aw Window, flexible []Stop) int {
	for i, g := range flexible {
		if auth.ID != "" && g.ID == auth.ID {
			return i
		}
	}
	for i, g := range flexible {
		if gw, err := g.Window(); err == nil && gw == aw {
			return i
		}
	}
	return -1
}

func mergeFixed(auth, generated Stop, keepDetail bool) Stop {
	if keepDetail {
		out := auth.clone()
		out.IsFixed = true
		out.TravelToNext = nil
		if generated.TravelToNext != nil {
			t := *generated.TravelToNext
			out.TravelToNext = &t
		}
		return out
	}

	out := generated.clone()
	out.ID = auth.ID
	out.StartTime = auth.StartTime
	out.EndTime = auth.EndTime
	out.DurationMinutes = auth.DurationMinutes
	out.IsFixed = true
	if out.Type == "" {
		out.Type = ActivityCommitment
	}
	if out.Description == "" {
		out.Description = auth.Description
	}
	switch {
	case auth.Location.IsResolved():
		out.Location = auth.Location
	case out.Location.Address == "":
		out.Location.Address = auth.Location.Address
	}
	return out
}

func overlapsAny(w Window, others []Window) bool {
	for _, o := range others {
		if w.Overlaps(o) {
			return true
		}
	}
	return false
}

func containsName(names []string, name string) bool {
	for _, n := range names {
		if sameName(n, name) {
			return true
		}
	}
	return false
}
