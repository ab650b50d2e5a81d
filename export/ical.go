package export

import (
	"fmt"
	"strings"

	ics "github.com/arran4/golang-ical"

	"github.com/aaileenssyed/LocalFlow/itinerary"
)

const (
	icalProdID    = "-//LocalFlow//Itinerary Export//EN"
	icalLocalTime = "20060102T150405"
)

// renderICal writes one VEVENT per stop. Event times are floating local
// times on the trip day so calendars show them in the traveler's zone.
func renderICal(it *itinerary.Itinerary, opts Options) ([]byte, error) {
	cal := ics.NewCalendar()
	cal.SetProductId(icalProdID)
	cal.SetMethod(ics.MethodPublish)
	cal.SetXWRCalName(it.Title)

	links := itinerary.Links(it)
	stamp := opts.now().UTC()

	for i, s := range it.Stops {
		start, err := opts.at(s.StartTime)
		if err != nil {
			return nil, fmt.Errorf("stop %q: %w", s.Name, err)
		}
		end, err := opts.at(s.EndTime)
		if err != nil {
			return nil, fmt.Errorf("stop %q: %w", s.Name, err)
		}

		event := cal.AddEvent(icalUID(it, s, opts))
		event.SetDtStampTime(stamp)
		event.SetProperty(ics.ComponentPropertyDtStart, start.Format(icalLocalTime))
		event.SetProperty(ics.ComponentPropertyDtEnd, end.Format(icalLocalTime))
		event.SetSummary(s.Name)
		if s.Location.Address != "" {
			event.SetLocation(s.Location.Address)
		}
		if s.Location.IsResolved() {
			event.SetProperty(ics.ComponentPropertyGeo, fmt.Sprintf("%.6f;%.6f", s.Location.Lat, s.Location.Lng))
		}
		if desc := icalDescription(s); desc != "" {
			event.SetDescription(desc)
		}
		event.SetProperty(ics.ComponentPropertyUrl, links[i].URL)
		if len(s.Tags) > 0 {
			tags := make([]string, len(s.Tags))
			for j, t := range s.Tags {
				tags[j] = ics.ToText(t)
			}
			event.SetProperty(ics.ComponentPropertyCategories, strings.Join(tags, ","))
		}
		if s.IsFixed {
			event.SetProperty(ics.ComponentPropertyTransp, "OPAQUE")
		} else {
			event.SetProperty(ics.ComponentPropertyTransp, "TRANSPARENT")
		}
	}

	return []byte(cal.Serialize()), nil
}

func icalUID(it *itinerary.Itinerary, s itinerary.Stop, opts Options) string {
	return fmt.Sprintf("%s-%s-%s@localflow", opts.day().Format("20060102"), it.ID, s.ID)
}

func icalDescription(s itinerary.Stop) string {
	var parts []string
	if s.Description != "" {
		parts = append(parts, s.Description)
	}
	if s.LocalTip != "" {
		parts = append(parts, "Tip: "+s.LocalTip)
	}
	if s.EstimatedCost != "" {
		parts = append(parts, "Cost: "+s.EstimatedCost)
	}
	return strings.Join(parts, "\n")
}
