package session

import (
	"context"
	"fmt"
	"strings"

	"github.com/aaileenssyed/LocalFlow/itinerary"
	"github.com/google/uuid"
)

// Preferences returns a copy of the session's preferences with the current
// commitments in start-time order.
func (e *Engine) Preferences() itinerary.UserPreferences {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.preferencesLocked()
}

// SetPreferences validates and replaces the preferences, commitments
// included. Commitments without an id get one. The installed itinerary is
// kept; generate again to apply the change.
func (e *Engine) SetPreferences(ctx context.Context, prefs itinerary.UserPreferences) error {
	if err := prefs.Validate(); err != nil {
		return err
	}
	for _, fc := range prefs.FixedCommitments {
		if _, err := fc.Window(); err != nil {
			return fmt.Errorf("%w: %q: %v", itinerary.ErrInvalidCommitment, fc.Location, err)
		}
	}

	e.mu.Lock()
	e.setPreferencesLocked(prefs)
	snap := e.snapshotLocked()
	e.mu.Unlock()

	e.logger.Info("Preferences updated",
		"location", prefs.Location,
		"vibe_score", prefs.VibeScore,
		"commitments", len(prefs.FixedCommitments))
	e.persist(ctx, snap)
	return nil
}

// CommitmentInput is a commitment as the user enters it.
type CommitmentInput struct {
	StartTime   string `json:"startTime"`
	EndTime     string `json:"endTime"`
	Location    string `json:"location"`
	Description string `json:"description"`
}

// Commitments returns the commitments in start-time order.
func (e *Engine) Commitments() []itinerary.FixedCommitment {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.commitments.List()
}

// AddCommitment stores a new commitment. With resolve set and a resolver
// configured, its location is looked up near the session's location and the
// coordinates are attached when found; the commitment is kept either way.
func (e *Engine) AddCommitment(ctx context.Context, in CommitmentInput, resolve bool) (itinerary.FixedCommitment, error) {
	e.mu.Lock()
	fc, err := e.commitments.Add(in.StartTime, in.EndTime, in.Location, in.Description)
	hint := e.prefs.Location
	e.mu.Unlock()
	if err != nil {
		return itinerary.FixedCommitment{}, err
	}

	if resolve && e.resolver != nil {
		place := e.resolver.Resolve(ctx, fc.Location, hint)
		if !place.IsSentinel() {
			coords := itinerary.Coordinates{Lat: place.Lat, Lng: place.Lng}
			e.mu.Lock()
			if e.commitments.SetCoordinates(fc.ID, coords) {
				fc.Coordinates = &coords
			}
			e.mu.Unlock()
		} else {
			e.logger.Info("Commitment location not resolved", "commitment_id", fc.ID, "location", fc.Location)
		}
	}

	e.mu.Lock()
	snap := e.snapshotLocked()
	e.mu.Unlock()

	e.logger.Info("Commitment added",
		"commitment_id", fc.ID,
		"start", fc.StartTime,
		"end", fc.EndTime,
		"resolved", fc.Coordinates != nil)
	e.persist(ctx, snap)
	return fc, nil
}

// RemoveCommitment deletes a commitment by id.
func (e *Engine) RemoveCommitment(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	e.mu.Lock()
	removed := e.commitments.Remove(id)
	snap := e.snapshotLocked()
	e.mu.Unlock()

	if !removed {
		return fmt.Errorf("%w: %s", ErrCommitmentNotFound, id)
	}
	e.logger.Info("Commitment removed", "commitment_id", id)
	e.persist(ctx, snap)
	return nil
}

func (e *Engine) preferencesLocked() itinerary.UserPreferences {
	prefs := e.prefs
	prefs.Dietary = append([]string{}, e.prefs.Dietary...)
	prefs.FixedCommitments = e.commitments.List()
	return prefs
}

func (e *Engine) setPreferencesLocked(prefs itinerary.UserPreferences) {
	commitments := make([]itinerary.FixedCommitment, 0, len(prefs.FixedCommitments))
	for _, fc := range prefs.FixedCommitments {
		if fc.ID == "" {
			fc.ID = uuid.New().String()
		}
		commitments = append(commitments, fc)
	}
	e.prefs = prefs
	e.prefs.Dietary = append([]string{}, prefs.Dietary...)
	e.prefs.FixedCommitments = nil
	e.commitments = itinerary.NewCommitments(commitments...)
}
