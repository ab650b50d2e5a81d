// Package config provides configuration loading and management for LocalFlow.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/aaileenssyed/LocalFlow/model"
	"gopkg.in/yaml.v3"
)

// Session store backends.
const (
	StoreMemory = "memory"
	StoreFile   = "file"
	StoreRedis  = "redis"
	StoreNATS   = "nats"
)

// Config represents the complete LocalFlow configuration
type Config struct {
	Models    *model.RegistryConfig `yaml:"models,omitempty"`
	Providers ProvidersConfig       `yaml:"providers"`
	Resolver  ResolverConfig        `yaml:"resolver"`
	Session   SessionConfig         `yaml:"session"`
	Events    EventsConfig          `yaml:"events"`
	HTTP      HTTPConfig            `yaml:"http"`
	Breaker   BreakerConfig         `yaml:"breaker"`
}

// ProvidersConfig holds provider credentials
type ProvidersConfig struct {
	Gemini GeminiConfig `yaml:"gemini"`
	OpenAI OpenAIConfig `yaml:"openai"`
}

// GeminiConfig configures the Gemini provider
type GeminiConfig struct {
	APIKey string `yaml:"api_key"`
}

// OpenAIConfig configures the OpenAI-compatible provider
type OpenAIConfig struct {
	APIKey string `yaml:"api_key"`
	// BaseURL is used by endpoints that don't set their own url
	BaseURL string `yaml:"base_url"`
}

// ResolverConfig configures location resolution and enrichment
type ResolverConfig struct {
	// MaxConcurrency bounds concurrent lookups per enrichment
	MaxConcurrency int `yaml:"max_concurrency"`
	// RatePerSecond throttles lookups (0 = unthrottled)
	RatePerSecond float64 `yaml:"rate_per_second"`
	Burst         int     `yaml:"burst"`
	// CacheTTL keeps resolved places (0 = no cache)
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// SessionConfig configures the planning session
type SessionConfig struct {
	// ID names the session in the store
	ID string `yaml:"id"`
	// DefaultContext is the enrichment hint when a plan has no resolved first stop
	DefaultContext string `yaml:"default_context"`
	// Store is memory, file, redis or nats
	Store string `yaml:"store"`
	// Dir holds snapshots for the file store
	Dir   string      `yaml:"dir"`
	Redis RedisConfig `yaml:"redis"`
}

// RedisConfig configures the Redis session store
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

// EventsConfig configures change events and the NATS session store
type EventsConfig struct {
	// NATSURL enables publishing when set
	NATSURL       string `yaml:"nats_url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// HTTPConfig configures `localflow serve`
type HTTPConfig struct {
	Addr        string   `yaml:"addr"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// BreakerConfig configures the per-endpoint circuit breakers
type BreakerConfig struct {
	MaxFailures uint32        `yaml:"max_failures"`
	OpenTimeout time.Duration `yaml:"open_timeout"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Resolver: ResolverConfig{
			MaxConcurrency: 4,
			RatePerSecond:  5,
			Burst:          4,
			CacheTTL:       time.Hour,
		},
		Session: SessionConfig{
			ID:             "default",
			DefaultContext: "New York, NY",
			Store:          StoreFile,
			Dir:            defaultSessionDir(),
			Redis: RedisConfig{
				Addr: "localhost:6379",
				TTL:  48 * time.Hour,
			},
		},
		Events: EventsConfig{
			SubjectPrefix: "localflow.itinerary",
		},
		HTTP: HTTPConfig{
			Addr:        ":8080",
			CORSOrigins: []string{"*"},
		},
		Breaker: BreakerConfig{
			MaxFailures: 3,
			OpenTimeout: 30 * time.Second,
		},
	}
}

func defaultSessionDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "localflow", "sessions")
	}
	return filepath.Join(home, UserConfigDir, "sessions")
}

// Registry builds the model registry from the models section.
func (c *Config) Registry() *model.Registry {
	return model.FromConfig(c.Models)
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if err := c.Registry().Validate(); err != nil {
		return fmt.Errorf("models: %w", err)
	}
	if c.Resolver.MaxConcurrency < 1 {
		return fmt.Errorf("resolver.max_concurrency must be at least 1")
	}
	if c.Resolver.RatePerSecond < 0 {
		return fmt.Errorf("resolver.rate_per_second must not be negative")
	}
	if c.Resolver.Burst < 0 {
		return fmt.Errorf("resolver.burst must not be negative")
	}
	if c.Resolver.CacheTTL < 0 {
		return fmt.Errorf("resolver.cache_ttl must not be negative")
	}
	if c.Session.ID == "" {
		return fmt.Errorf("session.id is required")
	}
	switch c.Session.Store {
	case StoreMemory:
	case StoreFile:
		if c.Session.Dir == "" {
			return fmt.Errorf("session.dir is required for the file store")
		}
	case StoreRedis:
		if c.Session.Redis.Addr == "" {
			return fmt.Errorf("session.redis.addr is required for the redis store")
		}
	case StoreNATS:
		if c.Events.NATSURL == "" {
			return fmt.Errorf("events.nats_url is required for the nats store")
		}
	default:
		return fmt.Errorf("session.store must be one of memory, file, redis, nats; got %q", c.Session.Store)
	}
	if c.HTTP.Addr == "" {
		return fmt.Errorf("http.addr is required")
	}
	if c.Breaker.MaxFailures < 1 {
		return fmt.Errorf("breaker.max_failures must be at least 1")
	}
	if c.Breaker.OpenTimeout <= 0 {
		return fmt.Errorf("breaker.open_timeout must be positive")
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := &Config{}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	// May hold API keys
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Merge merges another config into this one (other takes precedence for non-zero values)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// Models
	if other.Models != nil {
		if c.Models == nil {
			c.Models = &model.RegistryConfig{}
		}
		c.Models.Capabilities = mergeMap(c.Models.Capabilities, other.Models.Capabilities)
		c.Models.Endpoints = mergeMap(c.Models.Endpoints, other.Models.Endpoints)
	}

	// Providers
	if other.Providers.Gemini.APIKey != "" {
		c.Providers.Gemini.APIKey = other.Providers.Gemini.APIKey
	}
	if other.Providers.OpenAI.APIKey != "" {
		c.Providers.OpenAI.APIKey = other.Providers.OpenAI.APIKey
	}
	if other.Providers.OpenAI.BaseURL != "" {
		c.Providers.OpenAI.BaseURL = other.Providers.OpenAI.BaseURL
	}

	// Resolver
	if other.Resolver.MaxConcurrency != 0 {
		c.Resolver.MaxConcurrency = other.Resolver.MaxConcurrency
	}
	if other.Resolver.RatePerSecond != 0 {
		c.Resolver.RatePerSecond = other.Resolver.RatePerSecond
	}
	if other.Resolver.Burst != 0 {
		c.Resolver.Burst = other.Resolver.Burst
	}
	if other.Resolver.CacheTTL != 0 {
		c.Resolver.CacheTTL = other.Resolver.CacheTTL
	}

	// Session
	if other.Session.ID != "" {
		c.Session.ID = other.Session.ID
	}
	if other.Session.DefaultContext != "" {
		c.Session.DefaultContext = other.Session.DefaultContext
	}
	if other.Session.Store != "" {
		c.Session.Store = other.Session.Store
	}
	if other.Session.Dir != "" {
		c.Session.Dir = other.Session.Dir
	}
	if other.Session.Redis.Addr != "" {
		c.Session.Redis.Addr = other.Session.Redis.Addr
	}
	if other.Session.Redis.Password != "" {
		c.Session.Redis.Password = other.Session.Redis.Password
	}
	if other.Session.Redis.DB != 0 {
		c.Session.Redis.DB = other.Session.Redis.DB
	}
	if other.Session.Redis.TTL != 0 {
		c.Session.Redis.TTL = other.Session.Redis.TTL
	}

	// Events
	if other.Events.NATSURL != "" {
		c.Events.NATSURL = other.Events.NATSURL
	}
	if other.Events.SubjectPrefix != "" {
		c.Events.SubjectPrefix = other.Events.SubjectPrefix
	}

	// HTTP
	if other.HTTP.Addr != "" {
		c.HTTP.Addr = other.HTTP.Addr
	}
	if len(other.HTTP.CORSOrigins) > 0 {
		c.HTTP.CORSOrigins = other.HTTP.CORSOrigins
	}

	// Breaker
	if other.Breaker.MaxFailures != 0 {
		c.Breaker.MaxFailures = other.Breaker.MaxFailures
	}
	if other.Breaker.OpenTimeout != 0 {
		c.Breaker.OpenTimeout = other.Breaker.OpenTimeout
	}
}

func mergeMap[V any](dst, src map[string]V) map[string]V {
	if len(src) == 0 {
		return dst
	}
	if dst == nil {
		dst = make(map[string]V, len(src))
	}
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
