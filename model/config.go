package model

// RegistryConfig is the serialized form of the registry, as found under
// "models" in localflow.yaml.
type RegistryConfig struct {
	Capabilities map[string]*CapabilityConfig `yaml:"capabilities" json:"capabilities"`
	Endpoints    map[string]*EndpointConfig   `yaml:"endpoints" json:"endpoints"`
}

// FromConfig builds a registry on top of the defaults. Entries in cfg
// replace default entries with the same name.
func FromConfig(cfg *RegistryConfig) *Registry {
	r := NewDefaultRegistry()
	if cfg != nil {
		r.MergeFromConfig(cfg)
	}
	return r
}

// ToConfig converts a Registry to a RegistryConfig for serialization.
func (r *Registry) ToConfig() *RegistryConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()

	caps := make(map[string]*CapabilityConfig, len(r.capabilities))
	for k, v := range r.capabilities {
		caps[string(k)] = v
	}
	endpoints := make(map[string]*EndpointConfig, len(r.endpoints))
	for k, v := range r.endpoints {
		endpoints[k] = v
	}
	return &RegistryConfig{Capabilities: caps, Endpoints: endpoints}
}

// MergeFromConfig merges configuration into an existing registry.
// Unknown capability names are ignored.
func (r *Registry) MergeFromConfig(cfg *RegistryConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for k, v := range cfg.Capabilities {
		c := ParseCapability(k)
		if c == "" || v == nil {
			continue
		}
		r.capabilities[c] = v
	}
	for k, v := range cfg.Endpoints {
		if v != nil {
			r.endpoints[k] = v
		}
	}
}
