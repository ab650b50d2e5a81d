package llm

import (
	"context"

	"github.com/aaileenssyed/LocalFlow/model"
)

// Mode selects how a provider should run a call.
type Mode string

const (
	// ModeStructured asks for JSON matching Call.Schema.
	ModeStructured Mode = "structured"
	// ModeGrounded enables the provider's maps grounding tool. Providers must
	// not send a response schema in this mode.
	ModeGrounded Mode = "grounded"
)

// Call is one request routed to a concrete endpoint.
type Call struct {
	Mode     Mode
	Endpoint model.EndpointConfig
	Prompt   string
	// Schema constrains ModeStructured output. Nil in ModeGrounded.
	Schema *Schema
}

// Provider defines the interface for model provider implementations.
type Provider interface {
	// Name returns the provider identifier used in endpoint configs
	// (e.g., "gemini", "openai").
	Name() string

	// Generate executes a single call. Implementations classify failures
	// with NewTransientError / NewFatalError and return ErrEmptyResponse
	// when the model produced no text.
	Generate(ctx context.Context, call Call) (*Response, error)
}

// StructuredGenerator produces JSON text constrained by a schema.
type StructuredGenerator interface {
	GenerateStructured(ctx context.Context, req StructuredRequest) (*Response, error)
}

// GroundedGenerator produces free text with maps grounding enabled.
type GroundedGenerator interface {
	GenerateGrounded(ctx context.Context, req GroundedRequest) (*Response, error)
}
