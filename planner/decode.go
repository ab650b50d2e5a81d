package planner

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/aaileenssyed/LocalFlow/itinerary"
	"github.com/aaileenssyed/LocalFlow/llm"
)

// rawItinerary mirrors the generator's JSON. Required values are pointers so
// that a missing field can be told apart from a zero value.
type rawItinerary struct {
	ID                     *string    `json:"id"`
	Title                  *string    `json:"title"`
	Stops                  *[]rawStop `json:"stops"`
	TotalAuthenticityScore *float64   `json:"totalAuthenticityScore"`
	TotalInstagramScore    *float64   `json:"totalInstagramScore"`
	Summary                *string    `json:"summary"`
	Unreachable            []string   `json:"unreachableFixedStops"`
	Warnings               []string   `json:"warnings"`
}

type rawStop struct {
	ID                *string           `json:"id"`
	Name              *string           `json:"name"`
	Description       string            `json:"description"`
	StartTime         *string           `json:"startTime"`
	EndTime           *string           `json:"endTime"`
	DurationMinutes   *float64          `json:"durationMinutes"`
	Type              string            `json:"type"`
	AuthenticityScore *float64          `json:"authenticityScore"`
	InstagramScore    *float64          `json:"instagramScore"`
	IsFixed           bool              `json:"isFixed"`
	EstimatedCost     *string           `json:"estimatedCost"`
	BestPhotoSpot     string            `json:"bestPhotoSpot"`
	LocalTip          string            `json:"localTip"`
	WhyThisSpot       string            `json:"whyThisSpot"`
	CrowdLevel        string            `json:"crowdLevel"`
	DietaryNotes      string            `json:"dietaryNotes"`
	Location          *rawLocation      `json:"location"`
	TravelToNext      *itinerary.Travel `json:"travelToNext"`
	Tags              *[]string         `json:"tags"`
}

type rawLocation struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Address string  `json:"address"`
}

// Decode parses generator text into an itinerary. Fenced or commented JSON is
// repaired once. Parse failures are returned as-is; a missing required field
// or a non-integer score is a *itinerary.MalformedStopError. Field values are
// then checked with itinerary.Validate.
func Decode(text string) (*itinerary.Itinerary, bool, error) {
	var raw rawItinerary
	repaired, err := llm.DecodeLenient(text, &raw)
	if err != nil {
		return nil, repaired, err
	}
	it, err := raw.toItinerary()
	if err != nil {
		return nil, repaired, err
	}
	if err := itinerary.Validate(it); err != nil {
		return nil, repaired, err
	}
	return it, repaired, nil
}

func (r *rawItinerary) toItinerary() (*itinerary.Itinerary, error) {
	missing := func(field string) error {
		return &itinerary.MalformedStopError{Index: -1, Field: field, Problem: "is missing"}
	}
	if r.Title == nil {
		return nil, missing("title")
	}
	if r.Stops == nil {
		return nil, missing("stops")
	}
	if r.TotalAuthenticityScore == nil {
		return nil, missing("totalAuthenticityScore")
	}
	if r.TotalInstagramScore == nil {
		return nil, missing("totalInstagramScore")
	}

	it := &itinerary.Itinerary{
		Title:       strings.TrimSpace(*r.Title),
		Stops:       make([]itinerary.Stop, 0, len(*r.Stops)),
		Unreachable: r.Unreachable,
		Warnings:    r.Warnings,
	}
	if r.ID != nil {
		it.ID = *r.ID
	}
	if r.Summary != nil {
		it.Summary = *r.Summary
	}
	var err error
	if it.TotalAuthenticityScore, err = wholeNumber(-1, "", "totalAuthenticityScore", *r.TotalAuthenticityScore); err != nil {
		return nil, err
	}
	if it.TotalInstagramScore, err = wholeNumber(-1, "", "totalInstagramScore", *r.TotalInstagramScore); err != nil {
		return nil, err
	}

	for i, rs := range *r.Stops {
		s, err := rs.toStop(i)
		if err != nil {
			return nil, err
		}
		it.Stops = append(it.Stops, s)
	}
	return it, nil
}

func (r rawStop) toStop(i int) (itinerary.Stop, error) {
	id := ""
	if r.ID != nil {
		id = *r.ID
	}
	missing := func(field string) error {
		return &itinerary.MalformedStopError{Index: i, StopID: id, Field: field, Problem: "is missing"}
	}
	switch {
	case r.ID == nil:
		return itinerary.Stop{}, missing("id")
	case r.Name == nil:
		return itinerary.Stop{}, missing("name")
	case r.StartTime == nil:
		return itinerary.Stop{}, missing("startTime")
	case r.EndTime == nil:
		return itinerary.Stop{}, missing("endTime")
	case r.AuthenticityScore == nil:
		return itinerary.Stop{}, missing("authenticityScore")
	case r.InstagramScore == nil:
		return itinerary.Stop{}, missing("instagramScore")
	case r.Tags == nil:
		return itinerary.Stop{}, missing("tags")
	case r.EstimatedCost == nil:
		return itinerary.Stop{}, missing("estimatedCost")
	}

	s := itinerary.Stop{
		ID:            strings.TrimSpace(id),
		Name:          strings.TrimSpace(*r.Name),
		Description:   r.Description,
		StartTime:     strings.TrimSpace(*r.StartTime),
		EndTime:       strings.TrimSpace(*r.EndTime),
		Type:          itinerary.ActivityType(strings.ToUpper(strings.TrimSpace(r.Type))),
		IsFixed:       r.IsFixed,
		EstimatedCost: *r.EstimatedCost,
		BestPhotoSpot: r.BestPhotoSpot,
		LocalTip:      r.LocalTip,
		WhyThisSpot:   r.WhyThisSpot,
		CrowdLevel:    canonical(r.CrowdLevel, itinerary.CrowdLevels),
		DietaryNotes:  r.DietaryNotes,
		TravelToNext:  r.TravelToNext,
		Tags:          append([]string{}, (*r.Tags)...),
	}
	if r.Location != nil {
		s.Location = itinerary.Location{Lat: r.Location.Lat, Lng: r.Location.Lng, Address: strings.TrimSpace(r.Location.Address)}
	}
	if s.TravelToNext != nil && s.TravelToNext.Mode == "" && s.TravelToNext.Duration == "" {
		s.TravelToNext = nil
	}
	if s.TravelToNext != nil {
		s.TravelToNext.Mode = canonical(string(s.TravelToNext.Mode), itinerary.TravelModes)
	}

	var err error
	if s.AuthenticityScore, err = wholeNumber(i, id, "authenticityScore", *r.AuthenticityScore); err != nil {
		return itinerary.Stop{}, err
	}
	if s.InstagramScore, err = wholeNumber(i, id, "instagramScore", *r.InstagramScore); err != nil {
		return itinerary.Stop{}, err
	}
	if r.DurationMinutes != nil {
		if s.DurationMinutes, err = wholeNumber(i, id, "durationMinutes", *r.DurationMinutes); err != nil {
			return itinerary.Stop{}, err
		}
	} else if w, werr := s.Window(); werr == nil {
		s.DurationMinutes = w.Minutes()
	}
	return s, nil
}

// wholeNumber accepts JSON numbers like 7 and 7.0 and rejects 7.5.
// canonical maps v onto the known value it names, ignoring case. Unknown
// values are returned trimmed so validation can report them.
func canonical[T ~string](v string, known []T) T {
	v = strings.TrimSpace(v)
	for _, k := range known {
		if strings.EqualFold(v, string(k)) {
			return k
		}
	}
	return T(v)
}

func wholeNumber(i int, id, field string, v float64) (int, error) {
	if v != math.Trunc(v) || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, &itinerary.MalformedStopError{Index: i, StopID: id, Field: field, Problem: fmt.Sprintf("is %v, want a whole number", v)}
	}
	return int(v), nil
}

// encodeForLog renders an itinerary compactly for debug logs.
func encodeForLog(it *itinerary.Itinerary) string {
	data, err := json.Marshal(it.StopNames())
	if err != nil {
		return ""
	}
	return string(data)
}
