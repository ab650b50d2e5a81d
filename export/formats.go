// Package export renders an itinerary for use outside LocalFlow: calendar
// apps, map tools, notes and structured-data consumers.
package export

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aaileenssyed/LocalFlow/itinerary"
)

// Format identifies an export format.
type Format string

// Supported formats.
const (
	FormatMarkdown Format = "markdown"
	FormatICal     Format = "ics"
	FormatJSONLD   Format = "jsonld"
	FormatGeoJSON  Format = "geojson"
)

// FormatInfo provides metadata about an export format.
type FormatInfo struct {
	// Name is the format identifier.
	Name Format

	// MIMEType is the standard MIME type.
	MIMEType string

	// Extension is the file extension (with dot).
	Extension string

	// Description describes the format.
	Description string
}

// FormatRegistry contains metadata for all supported formats.
var FormatRegistry = map[Format]FormatInfo{
	FormatMarkdown: {
		Name:        FormatMarkdown,
		MIMEType:    "text/markdown; charset=utf-8",
		Extension:   ".md",
		Description: "Markdown day sheet with directions links",
	},
	FormatICal: {
		Name:        FormatICal,
		MIMEType:    "text/calendar; charset=utf-8",
		Extension:   ".ics",
		Description: "iCalendar events, one per stop",
	},
	FormatJSONLD: {
		Name:        FormatJSONLD,
		MIMEType:    "application/ld+json",
		Extension:   ".jsonld",
		Description: "schema.org TouristTrip as JSON-LD",
	},
	FormatGeoJSON: {
		Name:        FormatGeoJSON,
		MIMEType:    "application/geo+json",
		Extension:   ".geojson",
		Description: "GeoJSON points for resolved stops and the route between them",
	},
}

// GetFormatInfo returns metadata for a format.
func GetFormatInfo(format Format) (FormatInfo, bool) {
	info, ok := FormatRegistry[format]
	return info, ok
}

// ParseFormat accepts a format name or its file extension, case-insensitively.
func ParseFormat(s string) (Format, error) {
	name := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "."))
	for f, info := range FormatRegistry {
		if name == string(f) || "."+name == info.Extension {
			return f, nil
		}
	}
	switch name {
	case "md":
		return FormatMarkdown, nil
	case "ical", "icalendar":
		return FormatICal, nil
	case "json-ld":
		return FormatJSONLD, nil
	}
	return "", fmt.Errorf("unknown export format %q (supported: %s)", s, strings.Join(FormatNames(), ", "))
}

// FormatNames lists the supported format names in sorted order.
func FormatNames() []string {
	names := make([]string, 0, len(FormatRegistry))
	for f := range FormatRegistry {
		names = append(names, string(f))
	}
	sort.Strings(names)
	return names
}

// Options controls the rendering.
type Options struct {
	// Date is the day the itinerary takes place. Only its calendar date in
	// Date.Location() is used. Zero means today.
	Date time.Time

	// City is the trip's location, used as the trip's destination.
	City string

	// Now stamps generated documents. Zero means time.Now.
	Now time.Time
}

func (o Options) day() time.Time {
	d := o.Date
	if d.IsZero() {
		d = o.now()
	}
	return time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, d.Location())
}

func (o Options) now() time.Time {
	if o.Now.IsZero() {
		return time.Now()
	}
	return o.Now
}

// at returns the instant of clock on the trip day.
func (o Options) at(clock string) (time.Time, error) {
	c, err := itinerary.ParseClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	d := o.day()
	return time.Date(d.Year(), d.Month(), d.Day(), int(c)/60, int(c)%60, 0, 0, d.Location()), nil
}

// Render writes it in format.
func Render(it *itinerary.Itinerary, format Format, opts Options) ([]byte, error) {
	if it == nil {
		return nil, fmt.Errorf("export: no itinerary")
	}
	switch format {
	case FormatMarkdown:
		return renderMarkdown(it, opts), nil
	case FormatICal:
		return renderICal(it, opts)
	case FormatJSONLD:
		return renderJSONLD(it, opts)
	case FormatGeoJSON:
		return renderGeoJSON(it)
	default:
		return nil, fmt.Errorf("unknown export format %q", format)
	}
}
