package itinerary

import (
	"fmt"
)

// Clock is a time of day in minutes since midnight.
type Clock int

// ParseClock parses a fixed-width 24h "HH:MM" string.
func ParseClock(s string) (Clock, error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, fmt.Errorf("time %q is not HH:MM", s)
	}
	h, okH := twoDigits(s[0:2])
	m, okM := twoDigits(s[3:5])
	if !okH || !okM || h > 23 || m > 59 {
		return 0, fmt.Errorf("time %q is not a valid 24h time", s)
	}
	return Clock(h*60 + m), nil
}

func twoDigits(s string) (int, bool) {
	if s[0] < '0' || s[0] > '9' || s[1] < '0' || s[1] > '9' {
		return 0, false
	}
	return int(s[0]-'0')*10 + int(s[1]-'0'), true
}

// String formats the clock as "HH:MM".
func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// Window is a half-open [Start, End) interval within a day. A window with
// Start == End is an instant.
type Window struct {
	Start Clock
	End   Clock
}

// ParseWindow parses a start/end pair and checks end >= start.
func ParseWindow(start, end string) (Window, error) {
	s, err := ParseClock(start)
	if err != nil {
		return Window{}, err
	}
	e, err := ParseClock(end)
	if err != nil {
		return Window{}, err
	}
	if e < s {
		return Window{}, fmt.Errorf("end %s is before start %s", end, start)
	}
	return Window{Start: s, End: e}, nil
}

// IsInstant reports whether the window has zero length.
func (w Window) IsInstant() bool {
	return w.Start == w.End
}

// Minutes returns the window length.
func (w Window) Minutes() int {
	return int(w.End - w.Start)
}

// Overlaps reports whether w and o share any time. An instant overlaps a
// window when it falls in [Start, End); two instants overlap when equal.
func (w Window) Overlaps(o Window) bool {
	switch {
	case w.IsInstant() && o.IsInstant():
		return w.Start == o.Start
	case w.IsInstant():
		return o.Start <= w.Start && w.Start < o.End
	case o.IsInstant():
		return w.Start <= o.Start && o.Start < w.End
	}
	return w.Start < o.End && o.Start < w.End
}

// Within reports whether w lies entirely inside bounds.
func (w Window) Within(bounds Window) bool {
	return w.Start >= bounds.Start && w.End <= bounds.End
}

// Overlap returns the number of minutes w and o share.
func (w Window) Overlap(o Window) int {
	start := max(w.Start, o.Start)
	end := min(w.End, o.End)
	if end <= start {
		return 0
	}
	return int(end - start)
}

func (w Window) String() string {
	return w.Start.String() + "-" + w.End.String()
}
