// Package model provides capability-based model selection for itinerary work.
// Callers ask for a capability (planning, replanning, grounding) and the
// registry resolves it to a configured endpoint with an ordered failover chain.
package model

// Capability represents a semantic capability for model selection.
type Capability string

const (
	// CapabilityPlanning drafts a full itinerary from preferences. Structured
	// output with a reasoning budget.
	CapabilityPlanning Capability = "planning"

	// CapabilityReplanning re-times or swaps stops in an existing plan.
	// Structured output, latency sensitive.
	CapabilityReplanning Capability = "replanning"

	// CapabilityGrounding resolves free-text places with a maps-grounded model.
	// No response schema is sent on this path.
	CapabilityGrounding Capability = "grounding"
)

// Capabilities lists every known capability.
var Capabilities = []Capability{CapabilityPlanning, CapabilityReplanning, CapabilityGrounding}

// IsValid checks if a capability string is a known capability.
func (c Capability) IsValid() bool {
	switch c {
	case CapabilityPlanning, CapabilityReplanning, CapabilityGrounding:
		return true
	}
	return false
}

// String returns the string representation of the capability.
func (c Capability) String() string {
	return string(c)
}

// ParseCapability converts a string to a Capability, returning empty for invalid values.
func ParseCapability(s string) Capability {
	c := Capability(s)
	if c.IsValid() {
		return c
	}
	return ""
}
