package itinerary

import "fmt"

// Vibe filter thresholds. Above HighAuthenticityVibe the generator must drop
// candidates scoring below MinAuthenticityScore, fixed commitments excepted.
const (
	HighAuthenticityVibe = 70
	MinAuthenticityScore = 7
)

// DefaultCommitmentDescription labels commitments added without a description.
const DefaultCommitmentDescription = "User Commitment"

// DietaryOptions are the dietary restriction tags offered to the user.
var DietaryOptions = []string{
	"Gluten-Free",
	"Nut-Free",
	"Shellfish-Free",
	"Vegetarian",
	"Vegan",
	"Dairy-Free",
}

// DefaultPreferences returns the preferences a new session starts with.
func DefaultPreferences() UserPreferences {
	return UserPreferences{
		VibeScore:        60,
		Location:         "New York, NY",
		Budget:           BudgetModerate,
		TripStartTime:    "09:00",
		TripEndTime:      "22:00",
		Dietary:          []string{},
		FixedCommitments: []FixedCommitment{},
	}
}

// Validate checks that p can drive a generation request.
func (p UserPreferences) Validate() error {
	if p.VibeScore < 0 || p.VibeScore > 100 {
		return fmt.Errorf("%w: vibe score %d outside 0-100", ErrInvalidPreferences, p.VibeScore)
	}
	if p.Location == "" {
		return fmt.Errorf("%w: location is required", ErrInvalidPreferences)
	}
	if !p.Budget.IsValid() {
		return fmt.Errorf("%w: unknown budget %q", ErrInvalidPreferences, p.Budget)
	}
	if _, err := p.TripWindow(); err != nil {
		return err
	}
	return nil
}

// TripWindow returns the trip's start/end bounds.
func (p UserPreferences) TripWindow() (Window, error) {
	w, err := ParseWindow(p.TripStartTime, p.TripEndTime)
	if err != nil {
		return Window{}, fmt.Errorf("%w: trip bounds: %v", ErrInvalidPreferences, err)
	}
	if w.IsInstant() {
		return Window{}, fmt.Errorf("%w: trip start equals trip end", ErrInvalidPreferences)
	}
	return w, nil
}

// HighAuthenticity reports whether the vibe filter applies.
func (p UserPreferences) HighAuthenticity() bool {
	return p.VibeScore > HighAuthenticityVibe
}
