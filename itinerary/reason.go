package itinerary

import (
	"fmt"
	"strings"
)

// ReasonKind classifies a recalculation request.
type ReasonKind string

// Reason kinds.
const (
	ReasonSwap     ReasonKind = "swap"
	ReasonDelay    ReasonKind = "delay"
	ReasonDiverged ReasonKind = "diverged"
	ReasonOther    ReasonKind = "other"
)

// Reason is a parsed recalculation request.
type Reason struct {
	Kind ReasonKind
	// Text is the trimmed request as the user wrote it.
	Text string
	// Target is the stop to replace for ReasonSwap.
	Target string
}

const swapPrefix = "swap "

// ParseReason classifies free text. "Swap <stop name>" requests a swap;
// mentions of running late or delays, and of diverging from the plan, get
// their own kinds. Everything else is ReasonOther.
func ParseReason(s string) (Reason, error) {
	text := strings.TrimSpace(s)
	if text == "" {
		return Reason{}, fmt.Errorf("%w: reason is empty", ErrInvalidReason)
	}
	lower := strings.ToLower(text)

	if strings.HasPrefix(lower, swapPrefix) || lower == "swap" {
		target := strings.TrimSpace(text[len("swap"):])
		target = strings.TrimSpace(unquote(target))
		if target == "" {
			return Reason{}, fmt.Errorf("%w: swap needs a stop name", ErrInvalidReason)
		}
		return Reason{Kind: ReasonSwap, Text: text, Target: target}, nil
	}

	switch {
	case strings.Contains(lower, "late") || strings.Contains(lower, "delay"):
		return Reason{Kind: ReasonDelay, Text: text}, nil
	case strings.Contains(lower, "diverg"):
		return Reason{Kind: ReasonDiverged, Text: text}, nil
	}
	return Reason{Kind: ReasonOther, Text: text}, nil
}

// unquote strips one matching pair of surrounding quotes, leaving
// apostrophes that belong to the name.
func unquote(s string) string {
	if len(s) >= 2 {
		if q := s[0]; (q == '"' || q == '\'') && s[len(s)-1] == q {
			return s[1 : len(s)-1]
		}
	}
	return s
}

// SwapReason returns the request text for swapping out the named stop.
func SwapReason(name string) string {
	return "Swap " + name
}

// RunningLateReason is the canned request for a delayed traveler.
const RunningLateReason = "I am running 30 mins late"

// DivergedReason is the canned request for a traveler who left the plan.
const DivergedReason = "I diverged from the plan and am exploring nearby"
