package scenarios

import (
	"context"
	"errors"
	"fmt"

	"github.com/aaileenssyed/LocalFlow/itinerary"
	"github.com/aaileenssyed/LocalFlow/test/e2e/client"
	"github.com/aaileenssyed/LocalFlow/test/e2e/config"
)

// e2ePreferences are the preferences every scenario plans with. The
// commitment is added separately so its server-assigned ID can be tracked.
func e2ePreferences() itinerary.UserPreferences {
	prefs := itinerary.DefaultPreferences()
	prefs.Location = config.E2ELocation
	prefs.FixedCommitments = []itinerary.FixedCommitment{}
	return prefs
}

// prepareSession resets the server's itinerary, installs e2ePreferences and
// adds the fixture commitment.
func prepareSession(ctx context.Context, http *client.HTTPClient) (*itinerary.FixedCommitment, error) {
	if err := http.Reset(ctx); err != nil {
		return nil, fmt.Errorf("reset: %w", err)
	}
	if _, err := http.PutPreferences(ctx, e2ePreferences()); err != nil {
		return nil, fmt.Errorf("put preferences: %w", err)
	}
	fc, err := http.AddCommitment(ctx, client.CommitmentRequest{
		StartTime:   config.E2ECommitmentStart,
		EndTime:     config.E2ECommitmentEnd,
		Location:    config.E2ECommitmentPlace,
		Description: "Museum visit",
	})
	if err != nil {
		return nil, fmt.Errorf("add commitment: %w", err)
	}
	return fc, nil
}

// checkItinerary verifies the invariants every installed itinerary must
// hold: well-formed stops, a clean timeline, every commitment present as a
// fixed stop at its own time, and an address on every stop.
func checkItinerary(it *itinerary.Itinerary, commitments []itinerary.FixedCommitment) error {
	if it == nil {
		return errors.New("no itinerary in response")
	}
	if len(it.Stops) == 0 {
		return errors.New("itinerary has no stops")
	}
	if err := itinerary.Validate(it); err != nil {
		return fmt.Errorf("malformed itinerary: %w", err)
	}
	if err := itinerary.CheckTimeline(it.Stops); err != nil {
		return fmt.Errorf("bad timeline: %w", err)
	}

	for _, fc := range commitments {
		if err := checkFixedStop(it, fc); err != nil {
			return err
		}
	}

	for _, s := range it.Stops {
		if s.Location.Address == "" {
			return fmt.Errorf("stop %q has no address", s.Name)
		}
	}
	return nil
}

func checkFixedStop(it *itinerary.Itinerary, fc itinerary.FixedCommitment) error {
	for _, name := range it.Unreachable {
		if name == fc.Description || name == fc.Location {
			return nil
		}
	}
	for _, s := range it.FixedStops() {
		if s.ID != fc.ID {
			continue
		}
		if s.StartTime != fc.StartTime || s.EndTime != fc.EndTime {
			return fmt.Errorf("fixed stop %s moved to %s-%s, want %s-%s",
				fc.ID, s.StartTime, s.EndTime, fc.StartTime, fc.EndTime)
		}
		return nil
	}
	return fmt.Errorf("commitment %s (%s) missing from itinerary", fc.ID, fc.Location)
}

// firstFlexible returns the first stop that is not a fixed commitment.
func firstFlexible(it *itinerary.Itinerary) (itinerary.Stop, bool) {
	for _, s := range it.Stops {
		if !s.IsFixed {
			return s, true
		}
	}
	return itinerary.Stop{}, false
}
