// Package plannertest provides a deterministic planner.Planner for tests.
package plannertest

import (
	"context"
	"fmt"
	"sync"

	"github.com/aaileenssyed/LocalFlow/itinerary"
	"github.com/aaileenssyed/LocalFlow/planner"
	"github.com/aaileenssyed/LocalFlow/prompts"
)

// Fake is a deterministic Planner. Without hooks, Generate lays the
// commitments out as fixed stops and fills each free hour with a numbered
// stop; Recalculate swaps the target for "<target> Alternative" or, for any
// other reason, drops the first flexible stop.
type Fake struct {
	GenerateFunc    func(ctx context.Context, prefs itinerary.UserPreferences, pc prompts.PlanContext) (*itinerary.Itinerary, error)
	RecalculateFunc func(ctx context.Context, current *itinerary.Itinerary, prefs itinerary.UserPreferences, reason itinerary.Reason, pc prompts.PlanContext) (*itinerary.Itinerary, error)

	mu           sync.Mutex
	generates    int
	recalculates int
	reasons      []itinerary.Reason
}

var _ planner.Planner = (*Fake)(nil)

// Generate implements planner.Planner.
func (f *Fake) Generate(ctx context.Context, prefs itinerary.UserPreferences, pc prompts.PlanContext) (*itinerary.Itinerary, error) {
	f.mu.Lock()
	f.generates++
	fn := f.GenerateFunc
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx, prefs, pc)
	}
	return Plan(prefs)
}

// Recalculate implements planner.Planner.
func (f *Fake) Recalculate(ctx context.Context, current *itinerary.Itinerary, prefs itinerary.UserPreferences, reason itinerary.Reason, pc prompts.PlanContext) (*itinerary.Itinerary, error) {
	f.mu.Lock()
	f.recalculates++
	f.reasons = append(f.reasons, reason)
	fn := f.RecalculateFunc
	f.mu.Unlock()
	if fn != nil {
		return fn(ctx, current, prefs, reason, pc)
	}

	out := current.Clone()
	out.ID = current.ID + "-r"
	if reason.Kind == itinerary.ReasonSwap {
		i := out.FindStop(reason.Target)
		if i < 0 || out.Stops[i].IsFixed {
			return nil, fmt.Errorf("%w: %q", itinerary.ErrSwapTargetNotFound, reason.Target)
		}
		out.Stops[i].ID += "-alt"
		out.Stops[i].Name = reason.Target + " Alternative"
		out.Stops[i].Location = itinerary.Location{}
		return out, nil
	}
	for i, s := range out.Stops {
		if !s.IsFixed {
			out.Stops = append(out.Stops[:i], out.Stops[i+1:]...)
			break
		}
	}
	return out, nil
}

// Generates returns how many Generate calls were made.
func (f *Fake) Generates() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.generates
}

// Recalculates returns how many Recalculate calls were made.
func (f *Fake) Recalculates() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.recalculates
}

// Reasons returns every reason passed to Recalculate, in order.
func (f *Fake) Reasons() []itinerary.Reason {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]itinerary.Reason(nil), f.reasons...)
}

// Plan builds the default fake itinerary for prefs. Commitments become fixed
// stops; every whole free hour inside the trip window gets a flexible stop
// named "Stop N" with an unresolved location.
func Plan(prefs itinerary.UserPreferences) (*itinerary.Itinerary, error) {
	if err := prefs.Validate(); err != nil {
		return nil, err
	}
	if err := itinerary.CheckCommitments(prefs.FixedCommitments); err != nil {
		return nil, err
	}
	bounds, _ := prefs.TripWindow()
	fixed := itinerary.FixedStopsFromCommitments(prefs.FixedCommitments)

	busy := make([]itinerary.Window, 0, len(fixed))
	for i, s := range fixed {
		w, _ := s.Window()
		busy = append(busy, w)
		fixed[i].AuthenticityScore = 5
		fixed[i].InstagramScore = 5
		fixed[i].EstimatedCost = "Included"
	}

	var stops []itinerary.Stop
	n := 0
	for start := bounds.Start; start+60 <= bounds.End; start += 60 {
		w := itinerary.Window{Start: start, End: start + 60}
		clash := false
		for _, b := range busy {
			if w.Overlaps(b) {
				clash = true
				break
			}
		}
		if clash {
			continue
		}
		n++
		stops = append(stops, itinerary.Stop{
			ID:                fmt.Sprintf("stop-%d", n),
			Name:              fmt.Sprintf("Stop %d", n),
			StartTime:         w.Start.String(),
			EndTime:           w.End.String(),
			DurationMinutes:   60,
			Type:              itinerary.ActivitySightseeing,
			AuthenticityScore: 8,
			InstagramScore:    7,
			EstimatedCost:     "Free",
			TravelToNext:      &itinerary.Travel{Mode: itinerary.TravelWalking, Duration: "10 min"},
			Tags:              []string{"fake"},
		})
	}

	plan := &itinerary.Itinerary{
		ID:                     "fake-plan",
		Title:                  "A day in " + prefs.Location,
		Stops:                  append(append([]itinerary.Stop(nil), fixed...), stops...),
		TotalAuthenticityScore: 80,
		TotalInstagramScore:    70,
		Summary:                "Deterministic test plan",
	}
	out, _, err := itinerary.Reconcile(plan, itinerary.Constraints{Fixed: fixed, Bounds: &bounds})
	return out, err
}
