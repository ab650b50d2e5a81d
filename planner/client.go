// Package planner turns preferences and recalculation requests into
// validated itineraries. The Client sends one prompt to the structured
// generator and decodes the answer; the Service applies the constraint model
// on top of it.
package planner

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aaileenssyed/LocalFlow/itinerary"
	"github.com/aaileenssyed/LocalFlow/llm"
	"github.com/aaileenssyed/LocalFlow/model"
	"github.com/aaileenssyed/LocalFlow/prompts"
)

// Client is the generation client. It never retries: one prompt yields one
// call, and the only second chance is the JSON repair pass.
type Client struct {
	gen    llm.StructuredGenerator
	logger *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithClientLogger sets the client's logger.
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates a generation client over gen.
func NewClient(gen llm.StructuredGenerator, opts ...ClientOption) *Client {
	c := &Client{gen: gen, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Generate sends p and decodes the reply. Every failure is an
// *itinerary.GenerationError; malformed output additionally matches
// itinerary.ErrMalformedStop.
func (c *Client) Generate(ctx context.Context, p prompts.Prompt) (*itinerary.Itinerary, error) {
	op := itinerary.OpGenerate
	if p.Capability == model.CapabilityReplanning {
		op = itinerary.OpRecalculate
	}

	start := time.Now()
	resp, err := c.gen.GenerateStructured(ctx, llm.StructuredRequest{
		Capability: p.Capability,
		Prompt:     p.Text,
		Schema:     p.Schema,
	})
	if err != nil {
		if errors.Is(err, llm.ErrEmptyResponse) {
			return nil, itinerary.NewGenerationError(op, "empty response", err)
		}
		return nil, itinerary.NewGenerationError(op, "provider error", err)
	}
	if resp == nil {
		return nil, itinerary.NewGenerationError(op, "empty response", llm.ErrEmptyResponse)
	}

	it, repaired, err := Decode(resp.Content)
	switch {
	case errors.Is(err, llm.ErrEmptyResponse):
		return nil, itinerary.NewGenerationError(op, "empty response", err)
	case errors.Is(err, itinerary.ErrMalformedStop):
		c.logger.Warn("Generator returned a malformed itinerary",
			"request_id", resp.RequestID, "op", op, "error", err)
		return nil, itinerary.NewGenerationError(op, "malformed output", err)
	case err != nil:
		c.logger.Warn("Generator output is not JSON",
			"request_id", resp.RequestID, "op", op, "repaired", repaired, "error", err)
		return nil, itinerary.NewGenerationError(op, "unparseable output", err)
	}

	c.logger.Debug("Itinerary decoded",
		"request_id", resp.RequestID,
		"op", op,
		"endpoint", resp.Endpoint,
		"repaired", repaired,
		"stops", encodeForLog(it),
		"duration", time.Since(start))
	return it, nil
}
