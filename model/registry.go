package model

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Registry manages model selection based on capabilities.
// It maps capabilities to preferred endpoints with failover chains.
type Registry struct {
	mu           sync.RWMutex
	capabilities map[Capability]*CapabilityConfig
	endpoints    map[string]*EndpointConfig
}

// CapabilityConfig defines model preferences for a capability.
type CapabilityConfig struct {
	// Description explains what this capability is for.
	Description string `yaml:"description" json:"description"`

	// Preferred lists endpoint names in order of preference.
	Preferred []string `yaml:"preferred" json:"preferred"`

	// Fallback lists endpoints used only while every preferred one is
	// unavailable (circuit open). Failed requests are never re-sent.
	Fallback []string `yaml:"fallback,omitempty" json:"fallback,omitempty"`
}

// EndpointConfig defines an available model endpoint.
type EndpointConfig struct {
	// Provider is the model provider (gemini, openai).
	Provider string `yaml:"provider" json:"provider"`

	// URL is the API base URL for HTTP providers.
	URL string `yaml:"url,omitempty" json:"url,omitempty"`

	// Model is the actual model identifier to send to the provider.
	Model string `yaml:"model" json:"model"`

	// Temperature is sent when non-nil.
	Temperature *float64 `yaml:"temperature,omitempty" json:"temperature,omitempty"`

	// ThinkingBudget caps reasoning tokens on providers that support it.
	// Zero disables thinking, nil leaves the provider default.
	ThinkingBudget *int32 `yaml:"thinking_budget,omitempty" json:"thinking_budget,omitempty"`

	// MaxTokens limits the response length. Zero uses the provider default.
	MaxTokens int `yaml:"max_tokens,omitempty" json:"max_tokens,omitempty"`

	// Timeout bounds a single call. Zero means no per-call timeout.
	Timeout time.Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
}

// NewRegistry creates a new model registry with the given configuration.
func NewRegistry(caps map[Capability]*CapabilityConfig, endpoints map[string]*EndpointConfig) *Registry {
	if caps == nil {
		caps = make(map[Capability]*CapabilityConfig)
	}
	if endpoints == nil {
		endpoints = make(map[string]*EndpointConfig)
	}
	return &Registry{capabilities: caps, endpoints: endpoints}
}

// NewDefaultRegistry creates a registry with one Gemini endpoint per
// capability. Planning thinks, replanning and grounding do not.
func NewDefaultRegistry() *Registry {
	planningBudget := int32(1024)
	noThinking := int32(0)
	return NewRegistry(
		map[Capability]*CapabilityConfig{
			CapabilityPlanning: {
				Description: "Full itinerary generation",
				Preferred:   []string{"gemini-planner"},
			},
			CapabilityReplanning: {
				Description: "Swap and re-time an existing itinerary",
				Preferred:   []string{"gemini-replanner"},
			},
			CapabilityGrounding: {
				Description: "Maps-grounded place resolution",
				Preferred:   []string{"gemini-grounding"},
			},
		},
		map[string]*EndpointConfig{
			"gemini-planner": {
				Provider:       "gemini",
				Model:          "gemini-2.5-flash",
				ThinkingBudget: &planningBudget,
				Timeout:        90 * time.Second,
			},
			"gemini-replanner": {
				Provider:       "gemini",
				Model:          "gemini-2.5-flash",
				ThinkingBudget: &noThinking,
				Timeout:        45 * time.Second,
			},
			"gemini-grounding": {
				Provider: "gemini",
				Model:    "gemini-2.5-flash",
				Timeout:  20 * time.Second,
			},
		},
	)
}

// Resolve returns the preferred endpoint name for a capability, or "".
func (r *Registry) Resolve(c Capability) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if cfg, ok := r.capabilities[c]; ok && len(cfg.Preferred) > 0 {
		return cfg.Preferred[0]
	}
	return ""
}

// GetFallbackChain returns all endpoint names for a capability in order of preference.
func (r *Registry) GetFallbackChain(c Capability) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cfg, ok := r.capabilities[c]
	if !ok {
		return nil
	}
	chain := make([]string, 0, len(cfg.Preferred)+len(cfg.Fallback))
	chain = append(chain, cfg.Preferred...)
	chain = append(chain, cfg.Fallback...)
	return chain
}

// GetEndpoint returns the endpoint configuration for an endpoint name.
// Returns nil if the endpoint is not configured.
func (r *Registry) GetEndpoint(name string) *EndpointConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.endpoints[name]
}

// SetCapability updates or adds a capability configuration.
func (r *Registry) SetCapability(c Capability, cfg *CapabilityConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.capabilities[c] = cfg
}

// SetEndpoint updates or adds an endpoint configuration.
func (r *Registry) SetEndpoint(name string, cfg *EndpointConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.endpoints[name] = cfg
}

// ListCapabilities returns all configured capabilities, sorted.
func (r *Registry) ListCapabilities() []Capability {
	r.mu.RLock()
	defer r.mu.RUnlock()

	caps := make([]Capability, 0, len(r.capabilities))
	for c := range r.capabilities {
		caps = append(caps, c)
	}
	sort.Slice(caps, func(i, j int) bool { return caps[i] < caps[j] })
	return caps
}

// ListEndpoints returns all configured endpoint names, sorted.
func (r *Registry) ListEndpoints() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.endpoints))
	for name := range r.endpoints {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks that every capability resolves to configured endpoints.
func (r *Registry) Validate() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, c := range Capabilities {
		cfg, ok := r.capabilities[c]
		if !ok || len(cfg.Preferred) == 0 {
			return fmt.Errorf("capability %s has no preferred endpoint", c)
		}
		for _, name := range append(append([]string(nil), cfg.Preferred...), cfg.Fallback...) {
			ep, ok := r.endpoints[name]
			if !ok {
				return fmt.Errorf("capability %s references unknown endpoint %q", c, name)
			}
			if ep.Provider == "" || ep.Model == "" {
				return fmt.Errorf("endpoint %q needs provider and model", name)
			}
		}
	}
	return nil
}
