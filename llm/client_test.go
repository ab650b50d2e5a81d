package llm_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aaileenssyed/LocalFlow/llm"
	"github.com/aaileenssyed/LocalFlow/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubProvider answers every call with fn and counts calls.
type stubProvider struct {
	name  string
	calls atomic.Int32
	mu    sync.Mutex
	last  llm.Call
	fn    func(llm.Call) (*llm.Response, error)
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Generate(_ context.Context, call llm.Call) (*llm.Response, error) {
	s.calls.Add(1)
	s.mu.Lock()
	s.last = call
	s.mu.Unlock()
	return s.fn(call)
}

func twoEndpointRegistry() *model.Registry {
	return model.NewRegistry(
		map[model.Capability]*model.CapabilityConfig{
			model.CapabilityPlanning: {
				Preferred: []string{"primary"},
				Fallback:  []string{"secondary"},
			},
			model.CapabilityGrounding: {
				Preferred: []string{"primary"},
			},
		},
		map[string]*model.EndpointConfig{
			"primary":   {Provider: "stub", Model: "primary-model"},
			"secondary": {Provider: "backup", Model: "secondary-model"},
		},
	)
}

func testSchema() *llm.Schema {
	return llm.Object(map[string]*llm.Schema{"title": llm.String("")}, "title")
}

func TestClient_GenerateStructured_Success(t *testing.T) {
	stub := &stubProvider{name: "stub", fn: func(call llm.Call) (*llm.Response, error) {
		return &llm.Response{Content: `{"title":"x"}`, Usage: llm.TokenUsage{TotalTokens: 18}}, nil
	}}

	var records []llm.CallRecord
	client := llm.NewClient(twoEndpointRegistry(),
		llm.WithProvider(stub),
		llm.WithObserver(func(r llm.CallRecord) { records = append(records, r) }))

	resp, err := client.GenerateStructured(context.Background(), llm.StructuredRequest{
		Capability: model.CapabilityPlanning,
		Prompt:     "Plan my day",
		Schema:     testSchema(),
	})
	require.NoError(t, err)

	assert.Equal(t, `{"title":"x"}`, resp.Content)
	assert.Equal(t, "primary-model", resp.Model, "model defaults to endpoint model")
	assert.Equal(t, "primary", resp.Endpoint)
	assert.NotEmpty(t, resp.RequestID)

	assert.Equal(t, llm.ModeStructured, stub.last.Mode)
	assert.NotNil(t, stub.last.Schema)
	assert.Equal(t, "primary-model", stub.last.Endpoint.Model)

	require.Len(t, records, 1)
	assert.Equal(t, resp.RequestID, records[0].RequestID)
	assert.NoError(t, records[0].Err)
	assert.Equal(t, 18, records[0].Usage.TotalTokens)
}

func TestClient_GenerateGrounded_SendsNoSchema(t *testing.T) {
	stub := &stubProvider{name: "stub", fn: func(call llm.Call) (*llm.Response, error) {
		return &llm.Response{Content: "{}"}, nil
	}}
	client := llm.NewClient(twoEndpointRegistry(), llm.WithProvider(stub))

	_, err := client.GenerateGrounded(context.Background(), llm.GroundedRequest{
		Capability: model.CapabilityGrounding,
		Prompt:     "Eiffel Tower",
	})
	require.NoError(t, err)
	assert.Equal(t, llm.ModeGrounded, stub.last.Mode)
	assert.Nil(t, stub.last.Schema)
}

func TestClient_NoRetryOnFailure(t *testing.T) {
	primary := &stubProvider{name: "stub", fn: func(llm.Call) (*llm.Response, error) {
		return nil, llm.NewTransientError(errors.New("503 overloaded"))
	}}
	secondary := &stubProvider{name: "backup", fn: func(llm.Call) (*llm.Response, error) {
		return &llm.Response{Content: "{}"}, nil
	}}
	client := llm.NewClient(twoEndpointRegistry(), llm.WithProvider(primary), llm.WithProvider(secondary))

	_, err := client.GenerateStructured(context.Background(), llm.StructuredRequest{
		Capability: model.CapabilityPlanning,
		Prompt:     "Plan",
		Schema:     testSchema(),
	})
	require.Error(t, err)
	assert.True(t, llm.IsTransient(err))
	assert.Equal(t, int32(1), primary.calls.Load(), "a failed call is not re-sent")
	assert.Equal(t, int32(0), secondary.calls.Load(), "a failed call is not re-sent elsewhere")
}

func TestClient_OpenCircuitFailsOver(t *testing.T) {
	primary := &stubProvider{name: "stub", fn: func(llm.Call) (*llm.Response, error) {
		return nil, llm.NewTransientError(errors.New("timeout"))
	}}
	secondary := &stubProvider{name: "backup", fn: func(llm.Call) (*llm.Response, error) {
		return &llm.Response{Content: "{}"}, nil
	}}
	client := llm.NewClient(twoEndpointRegistry(),
		llm.WithProvider(primary),
		llm.WithProvider(secondary),
		llm.WithBreakerConfig(llm.BreakerConfig{MaxFailures: 2, OpenTimeout: time.Minute}))

	req := llm.StructuredRequest{Capability: model.CapabilityPlanning, Prompt: "Plan", Schema: testSchema()}
	for i := 0; i < 2; i++ {
		_, err := client.GenerateStructured(context.Background(), req)
		require.Error(t, err)
	}
	assert.Equal(t, "open", client.EndpointStates()["primary"])

	resp, err := client.GenerateStructured(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "secondary", resp.Endpoint)
	assert.Equal(t, int32(2), primary.calls.Load())
}

func TestClient_FatalErrorsDoNotTrip(t *testing.T) {
	stub := &stubProvider{name: "stub", fn: func(llm.Call) (*llm.Response, error) {
		return nil, llm.NewFatalError(errors.New("401 unauthorized"))
	}}
	client := llm.NewClient(twoEndpointRegistry(),
		llm.WithProvider(stub),
		llm.WithBreakerConfig(llm.BreakerConfig{MaxFailures: 1, OpenTimeout: time.Minute}))

	req := llm.GroundedRequest{Capability: model.CapabilityGrounding, Prompt: "x"}
	for i := 0; i < 3; i++ {
		_, err := client.GenerateGrounded(context.Background(), req)
		require.Error(t, err)
		assert.True(t, llm.IsFatal(err))
	}
	assert.Equal(t, "closed", client.EndpointStates()["primary"])
	assert.Equal(t, int32(3), stub.calls.Load())
}

func TestClient_AllCircuitsOpen(t *testing.T) {
	stub := &stubProvider{name: "stub", fn: func(llm.Call) (*llm.Response, error) {
		return nil, llm.NewTransientError(errors.New("down"))
	}}
	client := llm.NewClient(twoEndpointRegistry(),
		llm.WithProvider(stub),
		llm.WithBreakerConfig(llm.BreakerConfig{MaxFailures: 1, OpenTimeout: time.Minute}))

	req := llm.GroundedRequest{Capability: model.CapabilityGrounding, Prompt: "x"}
	_, _ = client.GenerateGrounded(context.Background(), req)

	_, err := client.GenerateGrounded(context.Background(), req)
	require.Error(t, err)
	assert.ErrorIs(t, err, llm.ErrUnavailable)
	assert.Equal(t, int32(1), stub.calls.Load())
}

func TestClient_EndpointTimeout(t *testing.T) {
	reg := twoEndpointRegistry()
	reg.SetEndpoint("primary", &model.EndpointConfig{Provider: "stub", Model: "m", Timeout: 10 * time.Millisecond})

	stub := &stubProvider{name: "stub"}
	stub.fn = func(llm.Call) (*llm.Response, error) {
		time.Sleep(50 * time.Millisecond)
		return nil, context.DeadlineExceeded
	}
	client := llm.NewClient(reg, llm.WithProvider(stub))

	_, err := client.GenerateGrounded(context.Background(), llm.GroundedRequest{Capability: model.CapabilityGrounding, Prompt: "x"})
	require.Error(t, err)
	assert.True(t, llm.IsTransient(err))
}

func TestClient_RequestValidation(t *testing.T) {
	client := llm.NewClient(twoEndpointRegistry())

	_, err := client.GenerateStructured(context.Background(), llm.StructuredRequest{Capability: model.CapabilityPlanning, Prompt: "x"})
	assert.True(t, llm.IsFatal(err), "schema is required")

	_, err = client.GenerateGrounded(context.Background(), llm.GroundedRequest{Capability: model.CapabilityGrounding})
	assert.True(t, llm.IsFatal(err), "prompt is required")

	_, err = client.GenerateGrounded(context.Background(), llm.GroundedRequest{Capability: model.CapabilityReplanning, Prompt: "x"})
	assert.True(t, llm.IsFatal(err), "capability must be configured")
}

func TestClassify(t *testing.T) {
	assert.Equal(t, "ok", llm.Classify(nil))
	assert.Equal(t, "fatal", llm.Classify(llm.NewFatalError(errors.New("x"))))
	assert.Equal(t, "transient", llm.Classify(llm.NewTransientError(errors.New("x"))))
	assert.Equal(t, "canceled", llm.Classify(context.Canceled))
}
