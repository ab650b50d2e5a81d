package providers

import (
	"context"
	"errors"
	"testing"

	"github.com/aaileenssyed/LocalFlow/llm"
	"github.com/aaileenssyed/LocalFlow/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

type fakeModels struct {
	model  string
	config *genai.GenerateContentConfig
	resp   *genai.GenerateContentResponse
	err    error
}

func (f *fakeModels) GenerateContent(_ context.Context, model string, _ []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	f.model = model
	f.config = config
	return f.resp, f.err
}

func textResponse(parts ...string) *genai.GenerateContentResponse {
	content := &genai.Content{Role: "model"}
	for _, p := range parts {
		content.Parts = append(content.Parts, &genai.Part{Text: p})
	}
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: content, FinishReason: genai.FinishReasonStop}},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{
			PromptTokenCount:     12,
			CandidatesTokenCount: 30,
			TotalTokenCount:      42,
		},
	}
}

func TestGeminiProvider_StructuredConfig(t *testing.T) {
	budget := int32(1024)
	temp := 0.4
	fake := &fakeModels{resp: textResponse(`{"title":`, `"Village Day"}`)}
	g := &GeminiProvider{models: fake}

	resp, err := g.Generate(context.Background(), llm.Call{
		Mode:     llm.ModeStructured,
		Endpoint: model.EndpointConfig{Model: "gemini-2.5-flash", ThinkingBudget: &budget, Temperature: &temp},
		Prompt:   "Plan my day",
		Schema: llm.Object(map[string]*llm.Schema{
			"title": llm.String("Plan title"),
			"stops": llm.ArrayOf(llm.Object(map[string]*llm.Schema{"type": llm.Enum("FOOD", "ACTIVITY")})),
		}, "title", "stops"),
	})
	require.NoError(t, err)

	assert.Equal(t, `{"title":"Village Day"}`, resp.Content)
	assert.Equal(t, 42, resp.Usage.TotalTokens)
	assert.Equal(t, "gemini-2.5-flash", fake.model)

	cfg := fake.config
	require.NotNil(t, cfg)
	assert.Equal(t, "application/json", cfg.ResponseMIMEType)
	require.NotNil(t, cfg.ResponseSchema)
	assert.Equal(t, genai.TypeObject, cfg.ResponseSchema.Type)
	assert.Equal(t, []string{"title", "stops"}, cfg.ResponseSchema.Required)
	stops := cfg.ResponseSchema.Properties["stops"]
	require.NotNil(t, stops)
	assert.Equal(t, genai.TypeArray, stops.Type)
	assert.Equal(t, []string{"FOOD", "ACTIVITY"}, stops.Items.Properties["type"].Enum)
	assert.Empty(t, cfg.Tools)
	require.NotNil(t, cfg.ThinkingConfig)
	assert.Equal(t, int32(1024), *cfg.ThinkingConfig.ThinkingBudget)
	require.NotNil(t, cfg.Temperature)
	assert.InDelta(t, 0.4, *cfg.Temperature, 1e-6)
}

func TestGeminiProvider_GroundedConfig(t *testing.T) {
	fake := &fakeModels{resp: textResponse(`{"lat": 48.8584, "lng": 2.2945}`)}
	g := &GeminiProvider{models: fake}

	_, err := g.Generate(context.Background(), llm.Call{
		Mode:     llm.ModeGrounded,
		Endpoint: model.EndpointConfig{Model: "gemini-2.5-flash"},
		Prompt:   "Eiffel Tower, Paris",
	})
	require.NoError(t, err)

	cfg := fake.config
	assert.Nil(t, cfg.ResponseSchema, "grounded calls never send a schema")
	assert.Empty(t, cfg.ResponseMIMEType)
	require.Len(t, cfg.Tools, 1)
	assert.NotNil(t, cfg.Tools[0].GoogleMaps)
	assert.Nil(t, cfg.ThinkingConfig)
}

func TestGeminiProvider_EmptyText(t *testing.T) {
	g := &GeminiProvider{models: &fakeModels{resp: &genai.GenerateContentResponse{}}}
	_, err := g.Generate(context.Background(), llm.Call{
		Mode:     llm.ModeGrounded,
		Endpoint: model.EndpointConfig{Model: "m"},
		Prompt:   "x",
	})
	assert.ErrorIs(t, err, llm.ErrEmptyResponse)
}

func TestGeminiProvider_ClassifiesErrors(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantTransient bool
	}{
		{"rate limited", genai.APIError{Code: 429, Message: "quota"}, true},
		{"server error", genai.APIError{Code: 503, Message: "overloaded"}, true},
		{"bad key", genai.APIError{Code: 403, Message: "forbidden"}, false},
		{"network", errors.New("connection reset"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := &GeminiProvider{models: &fakeModels{err: tt.err}}
			_, err := g.Generate(context.Background(), llm.Call{
				Mode:     llm.ModeGrounded,
				Endpoint: model.EndpointConfig{Model: "m"},
				Prompt:   "x",
			})
			require.Error(t, err)
			assert.Equal(t, tt.wantTransient, llm.IsTransient(err))
		})
	}
}

func TestNewGeminiProvider_RequiresKey(t *testing.T) {
	_, err := NewGeminiProvider(context.Background(), "")
	assert.Error(t, err)
}
