// Package itinerary holds the single-day plan model: user preferences, fixed
// commitments, stops and the itinerary itself, together with the constraint
// checks that keep a generated plan consistent with what the user committed to.
package itinerary

import "strings"

// Budget is the spending tier the generator should plan for.
type Budget string

// Budget tiers.
const (
	BudgetEconomy  Budget = "ECONOMY"
	BudgetModerate Budget = "MODERATE"
	BudgetLuxury   Budget = "LUXURY"
)

// IsValid reports whether b is a known budget tier.
func (b Budget) IsValid() bool {
	switch b {
	case BudgetEconomy, BudgetModerate, BudgetLuxury:
		return true
	}
	return false
}

// ActivityType categorizes a stop.
type ActivityType string

// Activity types.
const (
	ActivityFood        ActivityType = "FOOD"
	ActivitySightseeing ActivityType = "SIGHTSEEING"
	ActivityActivity    ActivityType = "ACTIVITY"
	ActivityTransit     ActivityType = "TRANSIT"
	ActivityCommitment  ActivityType = "COMMITMENT"
)

// ActivityTypes lists every activity type in schema order.
var ActivityTypes = []ActivityType{ActivityFood, ActivitySightseeing, ActivityActivity, ActivityTransit, ActivityCommitment}

// IsValid reports whether t is a known activity type.
func (t ActivityType) IsValid() bool {
	for _, known := range ActivityTypes {
		if t == known {
			return true
		}
	}
	return false
}

// CrowdLevel is the expected crowd density at a stop.
type CrowdLevel string

// Crowd levels.
const (
	CrowdLow      CrowdLevel = "Low"
	CrowdModerate CrowdLevel = "Moderate"
	CrowdBusy     CrowdLevel = "Busy"
	CrowdCrushed  CrowdLevel = "Crushed"
)

// CrowdLevels lists every crowd level in schema order.
var CrowdLevels = []CrowdLevel{CrowdLow, CrowdModerate, CrowdBusy, CrowdCrushed}

// IsValid reports whether c is a known crowd level.
func (c CrowdLevel) IsValid() bool {
	for _, known := range CrowdLevels {
		if c == known {
			return true
		}
	}
	return false
}

// TravelMode is how the traveler gets to the next stop.
type TravelMode string

// Travel modes.
const (
	TravelWalking TravelMode = "Walking"
	TravelTransit TravelMode = "Transit"
	TravelTaxi    TravelMode = "Taxi"
)

// TravelModes lists every travel mode in schema order.
var TravelModes = []TravelMode{TravelWalking, TravelTransit, TravelTaxi}

// IsValid reports whether m is a known travel mode.
func (m TravelMode) IsValid() bool {
	for _, known := range TravelModes {
		if m == known {
			return true
		}
	}
	return false
}

// Coordinates is a resolved geographic position.
type Coordinates struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lng float64 `json:"lng" yaml:"lng"`
}

// IsSentinel reports whether c is the (0,0) "unresolved" marker.
func (c Coordinates) IsSentinel() bool {
	return c.Lat == 0 && c.Lng == 0
}

// FixedCommitment is a user-authored time block that every plan must honor exactly.
type FixedCommitment struct {
	ID          string       `json:"id" yaml:"id"`
	StartTime   string       `json:"startTime" yaml:"start_time"`
	EndTime     string       `json:"endTime" yaml:"end_time"`
	Location    string       `json:"location" yaml:"location"`
	Description string       `json:"description" yaml:"description"`
	Coordinates *Coordinates `json:"coordinates,omitempty" yaml:"coordinates,omitempty"`
}

// Window returns the commitment's time window.
func (c FixedCommitment) Window() (Window, error) {
	return ParseWindow(c.StartTime, c.EndTime)
}

// UserPreferences is everything the user tells the planner before generation.
type UserPreferences struct {
	// VibeScore runs from 0 (touristic, polished) to 100 (authentic, local).
	VibeScore        int               `json:"vibeScore" yaml:"vibe_score"`
	VibeDescription  string            `json:"vibeDescription" yaml:"vibe_description"`
	Dietary          []string          `json:"dietary" yaml:"dietary"`
	Location         string            `json:"location" yaml:"location"`
	Budget           Budget            `json:"budget" yaml:"budget"`
	TripStartTime    string            `json:"tripStartTime" yaml:"trip_start_time"`
	TripEndTime      string            `json:"tripEndTime" yaml:"trip_end_time"`
	FixedCommitments []FixedCommitment `json:"fixedCommitments" yaml:"fixed_commitments"`
}

// Location is where a stop happens. Lat/Lng of 0,0 means unresolved.
type Location struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Address string  `json:"address"`
}

// IsResolved reports whether the location carries real coordinates.
func (l Location) IsResolved() bool {
	return !(Coordinates{Lat: l.Lat, Lng: l.Lng}).IsSentinel()
}

// Travel describes the hop from a stop to the one after it.
type Travel struct {
	Mode     TravelMode `json:"mode"`
	Duration string     `json:"duration"`
}

// Stop is one scheduled activity within an itinerary.
type Stop struct {
	ID                string       `json:"id"`
	Name              string       `json:"name"`
	Description       string       `json:"description"`
	StartTime         string       `json:"startTime"`
	EndTime           string       `json:"endTime"`
	DurationMinutes   int          `json:"durationMinutes"`
	Type              ActivityType `json:"type,omitempty"`
	AuthenticityScore int          `json:"authenticityScore"`
	InstagramScore    int          `json:"instagramScore"`
	IsFixed           bool         `json:"isFixed"`
	EstimatedCost     string       `json:"estimatedCost"`
	BestPhotoSpot     string       `json:"bestPhotoSpot,omitempty"`
	LocalTip          string       `json:"localTip,omitempty"`
	WhyThisSpot       string       `json:"whyThisSpot,omitempty"`
	CrowdLevel        CrowdLevel   `json:"crowdLevel,omitempty"`
	DietaryNotes      string       `json:"dietaryNotes,omitempty"`
	Location          Location     `json:"location"`
	TravelToNext      *Travel      `json:"travelToNext,omitempty"`
	Tags              []string     `json:"tags"`
}

// Window returns the stop's time window.
func (s Stop) Window() (Window, error) {
	return ParseWindow(s.StartTime, s.EndTime)
}

// clone returns a deep copy of s.
func (s Stop) clone() Stop {
	out := s
	out.Tags = cloneStrings(s.Tags)
	if s.TravelToNext != nil {
		t := *s.TravelToNext
		out.TravelToNext = &t
	}
	return out
}

// Itinerary is an ordered, non-overlapping single-day plan.
type Itinerary struct {
	ID                     string `json:"id"`
	Title                  string `json:"title"`
	Stops                  []Stop `json:"stops"`
	TotalAuthenticityScore int    `json:"totalAuthenticityScore"`
	TotalInstagramScore    int    `json:"totalInstagramScore"`
	Summary                string `json:"summary"`

	// Unreachable names fixed stops the generator declared impossible to reach.
	Unreachable []string `json:"unreachableFixedStops,omitempty"`
	// Warnings are user-facing notes about overrides applied to this plan.
	Warnings []string `json:"warnings,omitempty"`
}

// Clone returns a deep copy of the itinerary.
func (it *Itinerary) Clone() *Itinerary {
	if it == nil {
		return nil
	}
	out := *it
	if it.Stops != nil {
		out.Stops = make([]Stop, len(it.Stops))
		for i, s := range it.Stops {
			out.Stops[i] = s.clone()
		}
	}
	out.Unreachable = cloneStrings(it.Unreachable)
	out.Warnings = cloneStrings(it.Warnings)
	return &out
}

// cloneStrings copies ss, keeping nil and empty slices apart.
func cloneStrings(ss []string) []string {
	if ss == nil {
		return nil
	}
	return append(make([]string, 0, len(ss)), ss...)
}

// StopNames returns the names of all stops in order.
func (it *Itinerary) StopNames() []string {
	names := make([]string, len(it.Stops))
	for i, s := range it.Stops {
		names[i] = s.Name
	}
	return names
}

// FixedStops returns copies of the fixed stops in order.
func (it *Itinerary) FixedStops() []Stop {
	var fixed []Stop
	for _, s := range it.Stops {
		if s.IsFixed {
			fixed = append(fixed, s.clone())
		}
	}
	return fixed
}

// FindStop returns the index of the stop whose name matches name
// (case-insensitive, surrounding whitespace ignored), or -1.
func (it *Itinerary) FindStop(name string) int {
	for i, s := range it.Stops {
		if sameName(s.Name, name) {
			return i
		}
	}
	return -1
}

func sameName(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
