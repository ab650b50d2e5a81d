// Package llm provides a provider-agnostic model client for structured and
// grounded generation. It resolves capabilities through model.Registry and
// guards every endpoint with a circuit breaker. Requests are never retried.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aaileenssyed/LocalFlow/model"
	"github.com/google/uuid"
	"github.com/sony/gobreaker"
)

// ErrUnavailable is returned when every endpoint for a capability has an
// open circuit.
var ErrUnavailable = errors.New("no endpoint available")

// Client is a provider-agnostic model client.
type Client struct {
	registry  *model.Registry
	providers map[string]Provider
	breaker   BreakerConfig
	logger    *slog.Logger
	observer  func(CallRecord)

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker
}

// StructuredRequest asks for schema-constrained JSON.
type StructuredRequest struct {
	// Capability selects the endpoint chain (planning, replanning).
	Capability model.Capability
	Prompt     string
	Schema     *Schema
}

// GroundedRequest asks for a maps-grounded answer. No schema is sent.
type GroundedRequest struct {
	Capability model.Capability
	Prompt     string
}

// TokenUsage represents token consumption details for a call.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response contains the generation result.
type Response struct {
	// RequestID uniquely identifies this call for log correlation.
	RequestID string

	// Content is the generated text.
	Content string

	// Model is the actual model that was used.
	Model string

	// Endpoint is the registry endpoint name that served the call.
	Endpoint string

	// Usage contains token consumption metrics when the provider reports them.
	Usage TokenUsage

	// FinishReason indicates why generation stopped.
	FinishReason string

	duration time.Duration
}

// CallRecord describes a finished call, successful or not.
type CallRecord struct {
	RequestID  string
	Capability model.Capability
	Mode       Mode
	Endpoint   string
	Provider   string
	Model      string
	Duration   time.Duration
	Usage      TokenUsage
	Err        error
}

// BreakerConfig configures the per-endpoint circuit breakers.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive failures that opens the circuit.
	MaxFailures uint32
	// OpenTimeout is how long the circuit stays open before a probe is allowed.
	OpenTimeout time.Duration
}

// DefaultBreakerConfig returns the breaker defaults.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{MaxFailures: 3, OpenTimeout: 30 * time.Second}
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithProvider registers a provider under its Name.
func WithProvider(p Provider) ClientOption {
	return func(c *Client) {
		c.providers[p.Name()] = p
	}
}

// WithBreakerConfig sets the circuit breaker configuration.
func WithBreakerConfig(cfg BreakerConfig) ClientOption {
	return func(c *Client) {
		c.breaker = cfg
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithObserver sets a callback invoked after every call that reached a provider.
func WithObserver(fn func(CallRecord)) ClientOption {
	return func(c *Client) {
		c.observer = fn
	}
}

// NewClient creates a new client with the given model registry.
func NewClient(registry *model.Registry, opts ...ClientOption) *Client {
	c := &Client{
		registry:  registry,
		providers: make(map[string]Provider),
		breaker:   DefaultBreakerConfig(),
		logger:    slog.Default(),
		breakers:  make(map[string]*gobreaker.CircuitBreaker),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GenerateStructured implements StructuredGenerator.
func (c *Client) GenerateStructured(ctx context.Context, req StructuredRequest) (*Response, error) {
	if req.Schema == nil {
		return nil, NewFatalError(fmt.Errorf("structured request needs a schema"))
	}
	return c.generate(ctx, req.Capability, Call{Mode: ModeStructured, Prompt: req.Prompt, Schema: req.Schema})
}

// GenerateGrounded implements GroundedGenerator.
func (c *Client) GenerateGrounded(ctx context.Context, req GroundedRequest) (*Response, error) {
	return c.generate(ctx, req.Capability, Call{Mode: ModeGrounded, Prompt: req.Prompt})
}

// generate sends call to the first endpoint in the capability chain whose
// circuit is closed. A failed call is returned as-is; the next endpoint is
// only used when the earlier ones rejected the call without sending it.
func (c *Client) generate(ctx context.Context, capability model.Capability, call Call) (*Response, error) {
	if call.Prompt == "" {
		return nil, NewFatalError(fmt.Errorf("prompt is required"))
	}
	chain := c.registry.GetFallbackChain(capability)
	if len(chain) == 0 {
		return nil, NewFatalError(fmt.Errorf("no endpoints configured for capability %s", capability))
	}

	requestID := uuid.New().String()
	var skipped []string

	for _, name := range chain {
		ep := c.registry.GetEndpoint(name)
		if ep == nil {
			c.logger.Debug("No endpoint config, skipping", "endpoint", name)
			skipped = append(skipped, name)
			continue
		}
		provider, ok := c.providers[ep.Provider]
		if !ok {
			c.logger.Warn("Unknown provider, skipping", "endpoint", name, "provider", ep.Provider)
			skipped = append(skipped, name)
			continue
		}

		call.Endpoint = *ep
		resp, sent, err := c.execute(ctx, name, provider, call)
		if !sent {
			c.logger.Debug("Endpoint circuit open, skipping", "endpoint", name, "error", err)
			skipped = append(skipped, name)
			continue
		}

		if c.observer != nil {
			rec := CallRecord{
				RequestID:  requestID,
				Capability: capability,
				Mode:       call.Mode,
				Endpoint:   name,
				Provider:   ep.Provider,
				Model:      ep.Model,
				Err:        err,
			}
			if resp != nil {
				rec.Usage = resp.Usage
				rec.Duration = resp.duration
			}
			c.observer(rec)
		}

		if err != nil {
			c.logger.Warn("Model call failed",
				"request_id", requestID,
				"capability", capability,
				"endpoint", name,
				"class", Classify(err),
				"error", err)
			return nil, fmt.Errorf("%s call to %s: %w", call.Mode, name, err)
		}

		resp.RequestID = requestID
		resp.Endpoint = name
		if resp.Model == "" {
			resp.Model = ep.Model
		}
		c.logger.Debug("Model call succeeded",
			"request_id", requestID,
			"capability", capability,
			"endpoint", name,
			"tokens", resp.Usage.TotalTokens)
		return resp, nil
	}

	return nil, NewTransientError(fmt.Errorf("%w for capability %s (skipped %v)", ErrUnavailable, capability, skipped))
}

// execute runs one call through the endpoint's breaker. sent is false when
// the breaker rejected the call before it reached the provider.
func (c *Client) execute(ctx context.Context, name string, provider Provider, call Call) (resp *Response, sent bool, err error) {
	cb := c.breakerFor(name)

	callCtx := ctx
	if call.Endpoint.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, call.Endpoint.Timeout)
		defer cancel()
	}

	sent = false
	start := time.Now()
	out, err := cb.Execute(func() (interface{}, error) {
		sent = true
		r, err := provider.Generate(callCtx, call)
		if err == nil && r == nil {
			err = ErrEmptyResponse
		}
		return r, err
	})
	elapsed := time.Since(start)

	if !sent {
		return nil, false, err
	}
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) && !IsTransient(err) {
			err = NewTransientError(err)
		}
		return &Response{duration: elapsed}, true, err
	}
	r := out.(*Response)
	r.duration = elapsed
	return r, true, nil
}

// breakerFor returns the circuit breaker for an endpoint, creating it lazily.
func (c *Client) breakerFor(name string) *gobreaker.CircuitBreaker {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cb, ok := c.breakers[name]; ok {
		return cb
	}
	maxFailures := c.breaker.MaxFailures
	if maxFailures == 0 {
		maxFailures = DefaultBreakerConfig().MaxFailures
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 1,
		Timeout:     c.breaker.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Warn("Endpoint circuit changed state", "endpoint", name, "from", from.String(), "to", to.String())
		},
		IsSuccessful: func(err error) bool {
			return !countsAgainstEndpoint(err)
		},
	})
	c.breakers[name] = cb
	return cb
}

// EndpointStates reports the breaker state of every endpoint used so far.
func (c *Client) EndpointStates() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()

	states := make(map[string]string, len(c.breakers))
	for name, cb := range c.breakers {
		states[name] = cb.State().String()
	}
	return states
}
