package itinerary

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// Commitments is the ordered collection of a user's fixed commitments.
// It is kept sorted by start time after every mutation. It does not check
// for overlaps; generation rejects overlapping commitments instead.
//
// Commitments is not safe for concurrent use.
type Commitments struct {
	items []FixedCommitment
	newID func() string
}

// NewCommitments creates a store seeded with initial, sorted by start time.
func NewCommitments(initial ...FixedCommitment) *Commitments {
	c := &Commitments{
		items: append([]FixedCommitment(nil), initial...),
		newID: func() string { return uuid.New().String() },
	}
	c.sort()
	return c
}

// Add appends a commitment with a fresh id. A blank end defaults to start and
// a blank description to DefaultCommitmentDescription.
func (c *Commitments) Add(start, end, location, description string) (FixedCommitment, error) {
	start = strings.TrimSpace(start)
	end = strings.TrimSpace(end)
	location = strings.TrimSpace(location)
	description = strings.TrimSpace(description)

	if start == "" || location == "" {
		return FixedCommitment{}, fmt.Errorf("%w: start time and location are required", ErrInvalidCommitment)
	}
	if end == "" {
		end = start
	}
	if description == "" {
		description = DefaultCommitmentDescription
	}
	if _, err := ParseWindow(start, end); err != nil {
		return FixedCommitment{}, fmt.Errorf("%w: %v", ErrInvalidCommitment, err)
	}

	fc := FixedCommitment{
		ID:          c.newID(),
		StartTime:   start,
		EndTime:     end,
		Location:    location,
		Description: description,
	}
	c.items = append(c.items, fc)
	c.sort()
	return fc, nil
}

// Remove deletes the commitment with the given id and reports whether it existed.
func (c *Commitments) Remove(id string) bool {
	kept := c.items[:0]
	removed := false
	for _, fc := range c.items {
		if fc.ID == id {
			removed = true
			continue
		}
		kept = append(kept, fc)
	}
	c.items = kept
	return removed
}

// SetCoordinates attaches resolved coordinates to a commitment.
func (c *Commitments) SetCoordinates(id string, coords Coordinates) bool {
	for i := range c.items {
		if c.items[i].ID == id {
			pt := coords
			c.items[i].Coordinates = &pt
			return true
		}
	}
	return false
}

// Get returns the commitment with the given id.
func (c *Commitments) Get(id string) (FixedCommitment, bool) {
	for _, fc := range c.items {
		if fc.ID == id {
			return fc, true
		}
	}
	return FixedCommitment{}, false
}

// List returns a copy of the commitments in start-time order.
func (c *Commitments) List() []FixedCommitment {
	out := make([]FixedCommitment, len(c.items))
	copy(out, c.items)
	return out
}

// Len returns the number of commitments.
func (c *Commitments) Len() int {
	return len(c.items)
}

// HH:MM is fixed width, so string order is chronological order.
func (c *Commitments) sort() {
	sort.SliceStable(c.items, func(i, j int) bool {
		return c.items[i].StartTime < c.items[j].StartTime
	})
}

// CheckCommitments returns ErrOverlappingCommitments (or ErrInvalidCommitment)
// when the commitments cannot all be honored in one day.
func CheckCommitments(commitments []FixedCommitment) error {
	windows := make([]Window, len(commitments))
	for i, fc := range commitments {
		w, err := fc.Window()
		if err != nil {
			return fmt.Errorf("%w: %q: %v", ErrInvalidCommitment, fc.Description, err)
		}
		windows[i] = w
	}
	for i := range commitments {
		for j := i + 1; j < len(commitments); j++ {
			if windows[i].Overlaps(windows[j]) {
				return fmt.Errorf("%w: %q (%s) and %q (%s)", ErrOverlappingCommitments,
					commitments[i].Description, windows[i], commitments[j].Description, windows[j])
			}
		}
	}
	return nil
}

// FixedStopsFromCommitments derives the authoritative fixed stops for a new plan.
func FixedStopsFromCommitments(commitments []FixedCommitment) []Stop {
	stops := make([]Stop, 0, len(commitments))
	for _, fc := range commitments {
		loc := Location{Address: fc.Location}
		if fc.Coordinates != nil {
			loc.Lat = fc.Coordinates.Lat
			loc.Lng = fc.Coordinates.Lng
		}
		w, _ := fc.Window()
		stops = append(stops, Stop{
			ID:              fc.ID,
			Name:            fc.Location,
			Description:     fc.Description,
			StartTime:       fc.StartTime,
			EndTime:         fc.EndTime,
			DurationMinutes: w.Minutes(),
			Type:            ActivityCommitment,
			IsFixed:         true,
			Location:        loc,
			Tags:            []string{},
		})
	}
	return stops
}
