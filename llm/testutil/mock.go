// Package testutil provides test utilities for the llm package.
// It includes a mock generator for testing code that talks to a model.
package testutil

import (
	"context"
	"sync"

	"github.com/aaileenssyed/LocalFlow/llm"
)

// MockGenerator is a thread-safe mock of llm.StructuredGenerator and
// llm.GroundedGenerator. It records prompts and returns configured
// responses in sequence.
//
// Usage:
//
//	// Single response mock
//	mock := &MockGenerator{
//	    Responses: []*llm.Response{
//	        {Content: `{"title": "Village Day", "stops": []}`},
//	    },
//	}
//
//	// Invalid first, valid second
//	mock := &MockGenerator{
//	    Responses: []*llm.Response{
//	        {Content: "not json"},
//	        {Content: `{"title": "Village Day", "stops": []}`},
//	    },
//	}
//
//	// Error response
//	mock := &MockGenerator{
//	    Err: errors.New("connection failed"),
//	}
//
//	// Per-prompt answers (concurrent resolvers)
//	mock := &MockGenerator{
//	    Respond: func(prompt string) (*llm.Response, error) { ... },
//	}
type MockGenerator struct {
	mu            sync.Mutex
	Responses     []*llm.Response // Responses to return in sequence
	Err           error           // Error to return (takes precedence over Responses)
	Respond       func(prompt string) (*llm.Response, error)
	prompts       []string
	schemas       []*llm.Schema
	structured    int
	grounded      int
	responseIndex int
}

// GenerateStructured implements llm.StructuredGenerator.
func (m *MockGenerator) GenerateStructured(_ context.Context, req llm.StructuredRequest) (*llm.Response, error) {
	m.mu.Lock()
	m.structured++
	m.schemas = append(m.schemas, req.Schema)
	m.mu.Unlock()
	return m.next(req.Prompt)
}

// GenerateGrounded implements llm.GroundedGenerator.
func (m *MockGenerator) GenerateGrounded(_ context.Context, req llm.GroundedRequest) (*llm.Response, error) {
	m.mu.Lock()
	m.grounded++
	m.mu.Unlock()
	return m.next(req.Prompt)
}

func (m *MockGenerator) next(prompt string) (*llm.Response, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	respond := m.Respond
	m.mu.Unlock()
	if respond != nil {
		return respond(prompt)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	if m.responseIndex < len(m.Responses) {
		resp := m.Responses[m.responseIndex]
		m.responseIndex++
		return resp, nil
	}

	// Default response if no responses configured
	return &llm.Response{Content: "", Model: "test-model"}, nil
}

// Prompts returns every prompt received, in order.
func (m *MockGenerator) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

// LastPrompt returns the most recent prompt, or "".
func (m *MockGenerator) LastPrompt() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.prompts) == 0 {
		return ""
	}
	return m.prompts[len(m.prompts)-1]
}

// Schemas returns the schema of every structured call, in order.
func (m *MockGenerator) Schemas() []*llm.Schema {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*llm.Schema(nil), m.schemas...)
}

// StructuredCalls returns how many structured calls were made.
func (m *MockGenerator) StructuredCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.structured
}

// GroundedCalls returns how many grounded calls were made.
func (m *MockGenerator) GroundedCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.grounded
}

// Reset resets the mock's state (call counts and response index).
// Useful for reusing the same mock instance across multiple test cases.
func (m *MockGenerator) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prompts = nil
	m.schemas = nil
	m.structured = 0
	m.grounded = 0
	m.responseIndex = 0
}
