package providers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aaileenssyed/LocalFlow/llm"
	"github.com/aaileenssyed/LocalFlow/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func placeSchema() *llm.Schema {
	return llm.Object(map[string]*llm.Schema{
		"name": llm.String(""),
		"lat":  llm.Number(""),
	}, "name", "lat")
}

func TestOpenAIProvider_BuildURL(t *testing.T) {
	tests := []struct {
		name    string
		cfg     OpenAIConfig
		baseURL string
		want    string
	}{
		{
			name: "empty uses default",
			want: "https://api.openai.com/v1/chat/completions",
		},
		{
			name: "config base URL",
			cfg:  OpenAIConfig{BaseURL: "http://localhost:11434/v1"},
			want: "http://localhost:11434/v1/chat/completions",
		},
		{
			name:    "endpoint URL wins (OpenRouter)",
			cfg:     OpenAIConfig{BaseURL: "http://localhost:11434/v1"},
			baseURL: "https://openrouter.ai/api/v1",
			want:    "https://openrouter.ai/api/v1/chat/completions",
		},
		{
			name:    "trailing slash handled",
			baseURL: "https://api.openai.com/v1/",
			want:    "https://api.openai.com/v1/chat/completions",
		},
		{
			name:    "already has endpoint",
			baseURL: "http://localhost:8089/v1/chat/completions",
			want:    "http://localhost:8089/v1/chat/completions",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewOpenAIProvider(tt.cfg, nil)
			assert.Equal(t, tt.want, p.BuildURL(tt.baseURL))
		})
	}
}

func TestOpenAIProvider_SetHeaders(t *testing.T) {
	t.Run("sets authorization and attribution", func(t *testing.T) {
		p := NewOpenAIProvider(OpenAIConfig{APIKey: "test-api-key", SiteURL: "https://localflow.app", SiteName: "LocalFlow"}, nil)
		req, _ := http.NewRequest("POST", "https://openrouter.ai/api/v1/chat/completions", nil)
		p.SetHeaders(req)

		assert.Equal(t, "Bearer test-api-key", req.Header.Get("Authorization"))
		assert.Equal(t, "https://localflow.app", req.Header.Get("HTTP-Referer"))
		assert.Equal(t, "LocalFlow", req.Header.Get("X-Title"))
	})

	t.Run("no auth without key", func(t *testing.T) {
		p := NewOpenAIProvider(OpenAIConfig{}, nil)
		req, _ := http.NewRequest("POST", "http://localhost:11434/v1/chat/completions", nil)
		p.SetHeaders(req)

		assert.Empty(t, req.Header.Get("Authorization"))
		assert.Empty(t, req.Header.Get("X-Title"))
	})
}

func TestOpenAIProvider_BuildRequestBody(t *testing.T) {
	p := NewOpenAIProvider(OpenAIConfig{}, nil)
	temp := 0.0

	t.Run("structured sends json_schema", func(t *testing.T) {
		body, err := p.BuildRequestBody(llm.Call{
			Mode:     llm.ModeStructured,
			Endpoint: model.EndpointConfig{Model: "gpt-4o-mini", Temperature: &temp, MaxTokens: 2048},
			Prompt:   "Plan my day",
			Schema:   placeSchema(),
		})
		require.NoError(t, err)

		var got map[string]any
		require.NoError(t, json.Unmarshal(body, &got))
		assert.Equal(t, "gpt-4o-mini", got["model"])
		assert.Equal(t, 0.0, got["temperature"], "zero temperature is sent")
		assert.Equal(t, 2048.0, got["max_tokens"])

		format := got["response_format"].(map[string]any)
		assert.Equal(t, "json_schema", format["type"])
		schema := format["json_schema"].(map[string]any)["schema"].(map[string]any)
		assert.Equal(t, "object", schema["type"])
	})

	t.Run("grounded sends no schema", func(t *testing.T) {
		body, err := p.BuildRequestBody(llm.Call{
			Mode:     llm.ModeGrounded,
			Endpoint: model.EndpointConfig{Model: "llama3.2"},
			Prompt:   "Where is the Eiffel Tower?",
		})
		require.NoError(t, err)
		assert.NotContains(t, string(body), "response_format")
		assert.NotContains(t, string(body), `"temperature"`)
		assert.NotContains(t, string(body), `"max_tokens"`)
		assert.Contains(t, string(body), `"role":"system"`)
	})

	t.Run("structured without schema", func(t *testing.T) {
		_, err := p.BuildRequestBody(llm.Call{Mode: llm.ModeStructured, Prompt: "x"})
		assert.Error(t, err)
	})
}

func TestOpenAIProvider_ParseResponse(t *testing.T) {
	p := NewOpenAIProvider(OpenAIConfig{}, nil)

	resp, err := p.ParseResponse([]byte(`{
		"model": "gpt-4o-mini",
		"choices": [{"message": {"role": "assistant", "content": "{\"title\":\"x\"}"}, "finish_reason": "stop"}],
		"usage": {"prompt_tokens": 10, "completion_tokens": 6, "total_tokens": 16}
	}`))
	require.NoError(t, err)
	assert.Equal(t, `{"title":"x"}`, resp.Content)
	assert.Equal(t, "gpt-4o-mini", resp.Model)
	assert.Equal(t, "stop", resp.FinishReason)
	assert.Equal(t, 16, resp.Usage.TotalTokens)

	_, err = p.ParseResponse([]byte(`{"choices": []}`))
	assert.ErrorContains(t, err, "no choices")

	_, err = p.ParseResponse([]byte(`{"choices": [{"message": {"content": "  "}}]}`))
	assert.ErrorIs(t, err, llm.ErrEmptyResponse)
}

func TestOpenAIProvider_Generate(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer k", r.Header.Get("Authorization"))
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &gotBody)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"model":"mock","choices":[{"message":{"content":"{\"name\":\"Louvre\"}"},"finish_reason":"stop"}]}`))
	}))
	defer server.Close()

	p := NewOpenAIProvider(OpenAIConfig{APIKey: "k"}, server.Client())
	resp, err := p.Generate(context.Background(), llm.Call{
		Mode:     llm.ModeStructured,
		Endpoint: model.EndpointConfig{Model: "mock", URL: server.URL + "/v1"},
		Prompt:   "Find the Louvre",
		Schema:   placeSchema(),
	})
	require.NoError(t, err)
	assert.Equal(t, `{"name":"Louvre"}`, resp.Content)
	assert.Equal(t, "mock", gotBody["model"])
}

func TestOpenAIProvider_Generate_ClassifiesErrors(t *testing.T) {
	tests := []struct {
		status        int
		wantTransient bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusServiceUnavailable, true},
		{http.StatusInternalServerError, true},
		{http.StatusUnauthorized, false},
		{http.StatusBadRequest, false},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte("nope"))
			}))
			defer server.Close()

			p := NewOpenAIProvider(OpenAIConfig{}, server.Client())
			_, err := p.Generate(context.Background(), llm.Call{
				Mode:     llm.ModeGrounded,
				Endpoint: model.EndpointConfig{Model: "m", URL: server.URL},
				Prompt:   "x",
			})
			require.Error(t, err)
			assert.Equal(t, tt.wantTransient, llm.IsTransient(err))
			assert.Equal(t, !tt.wantTransient, llm.IsFatal(err))
		})
	}
}
