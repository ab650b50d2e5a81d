// Package config provides configuration constants for e2e tests.
package config

import "time"

// Default endpoints of a locally running stack (localflow serve, mock-llm, NATS).
const (
	DefaultBaseURL    = "http://localhost:8080"
	DefaultMockLLMURL = "http://localhost:11434"
	DefaultNATSURL    = "nats://localhost:4222"
)

// Default timeouts.
const (
	DefaultCommandTimeout = 30 * time.Second
	DefaultSetupTimeout   = 60 * time.Second
	DefaultPollInterval   = 250 * time.Millisecond
	DefaultEventTimeout   = 10 * time.Second
)

// EventSubjectPrefix matches the server's default event subject prefix.
// Full subject: localflow.itinerary.{updated,failed,reset}
const EventSubjectPrefix = "localflow.itinerary"

// E2E fixture values.
const (
	E2ELocation        = "New York, NY"
	E2ECommitmentStart = "13:00"
	E2ECommitmentEnd   = "14:00"
	E2ECommitmentPlace = "The Metropolitan Museum of Art"
)

// Config holds the e2e test configuration.
type Config struct {
	BaseURL        string        `json:"base_url"`
	MockLLMURL     string        `json:"mock_llm_url,omitempty"`
	NATSURL        string        `json:"nats_url,omitempty"`
	CommandTimeout time.Duration `json:"command_timeout"`
	SetupTimeout   time.Duration `json:"setup_timeout"`
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:        DefaultBaseURL,
		MockLLMURL:     DefaultMockLLMURL,
		NATSURL:        DefaultNATSURL,
		CommandTimeout: DefaultCommandTimeout,
		SetupTimeout:   DefaultSetupTimeout,
	}
}
