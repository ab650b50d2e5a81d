// Package providers implements llm.Provider for the model backends LocalFlow
// can talk to: Gemini through the genai SDK and any OpenAI-compatible chat
// completions server (OpenAI, OpenRouter, Ollama, vLLM, cmd/mock-llm).
package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/aaileenssyed/LocalFlow/llm"
)

// maxResponseSize limits the response body to prevent memory exhaustion.
const maxResponseSize = 10 * 1024 * 1024 // 10MB

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// groundingInstruction replaces the maps tool on servers that have none.
const groundingInstruction = "Answer from your knowledge of real-world places. " +
	"Reply with a single JSON object and nothing else."

// OpenAIConfig configures an OpenAI-compatible provider.
type OpenAIConfig struct {
	// Name overrides the provider name used in endpoint configs. Defaults to "openai".
	Name string
	// BaseURL is used when the endpoint has no URL of its own.
	BaseURL string
	// APIKey is sent as a bearer token when set.
	APIKey string
	// SiteURL and SiteName are forwarded as OpenRouter attribution headers.
	SiteURL  string
	SiteName string
}

// OpenAIProvider implements llm.Provider over the chat completions API.
// Structured calls use response_format json_schema. Grounded calls are plain
// chat with an instruction to answer with JSON.
type OpenAIProvider struct {
	cfg        OpenAIConfig
	httpClient *http.Client
}

// NewOpenAIProvider creates a provider. A nil httpClient gets a default one.
func NewOpenAIProvider(cfg OpenAIConfig, httpClient *http.Client) *OpenAIProvider {
	if cfg.Name == "" {
		cfg.Name = "openai"
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 180 * time.Second}
	}
	return &OpenAIProvider{cfg: cfg, httpClient: httpClient}
}

// Name returns the provider identifier.
func (o *OpenAIProvider) Name() string {
	return o.cfg.Name
}

// BuildURL constructs the chat completions endpoint.
func (o *OpenAIProvider) BuildURL(baseURL string) string {
	if baseURL == "" {
		baseURL = o.cfg.BaseURL
	}
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	if strings.HasSuffix(baseURL, "/chat/completions") {
		return baseURL
	}
	return baseURL + "/chat/completions"
}

// SetHeaders adds authentication and attribution headers.
func (o *OpenAIProvider) SetHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	if o.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+o.cfg.APIKey)
	}
	if o.cfg.SiteURL != "" {
		req.Header.Set("HTTP-Referer", o.cfg.SiteURL)
	}
	if o.cfg.SiteName != "" {
		req.Header.Set("X-Title", o.cfg.SiteName)
	}
}

// openAIRequest is the OpenAI-compatible request format.
type openAIRequest struct {
	Model          string          `json:"model"`
	Messages       []openAIMessage `json:"messages"`
	Temperature    *float64        `json:"temperature,omitempty"`
	MaxTokens      *int            `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type       string      `json:"type"`
	JSONSchema *jsonSchema `json:"json_schema,omitempty"`
}

type jsonSchema struct {
	Name   string      `json:"name"`
	Schema *llm.Schema `json:"schema"`
	Strict bool        `json:"strict"`
}

// BuildRequestBody creates the request body for a call.
func (o *OpenAIProvider) BuildRequestBody(call llm.Call) ([]byte, error) {
	req := openAIRequest{
		Model:       call.Endpoint.Model,
		Temperature: call.Endpoint.Temperature, // nil = use default, 0 = deterministic
	}
	if call.Endpoint.MaxTokens > 0 {
		maxTokens := call.Endpoint.MaxTokens
		req.MaxTokens = &maxTokens
	}

	switch call.Mode {
	case llm.ModeStructured:
		if call.Schema == nil {
			return nil, fmt.Errorf("structured call without schema")
		}
		req.Messages = []openAIMessage{{Role: "user", Content: call.Prompt}}
		req.ResponseFormat = &responseFormat{
			Type:       "json_schema",
			JSONSchema: &jsonSchema{Name: "response", Schema: call.Schema},
		}
	case llm.ModeGrounded:
		req.Messages = []openAIMessage{
			{Role: "system", Content: groundingInstruction},
			{Role: "user", Content: call.Prompt},
		}
	default:
		return nil, fmt.Errorf("unknown call mode %q", call.Mode)
	}

	return json.Marshal(req)
}

// openAIResponse is the OpenAI-compatible response format.
type openAIResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// ParseResponse extracts content from an OpenAI-compatible response.
func (o *OpenAIProvider) ParseResponse(body []byte) (*llm.Response, error) {
	var resp openAIResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse openai response: %w", err)
	}

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices in response")
	}

	out := &llm.Response{
		Content:      resp.Choices[0].Message.Content,
		Model:        resp.Model,
		FinishReason: resp.Choices[0].FinishReason,
		Usage: llm.TokenUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}
	if strings.TrimSpace(out.Content) == "" {
		return out, llm.ErrEmptyResponse
	}
	return out, nil
}

// Generate implements llm.Provider.
func (o *OpenAIProvider) Generate(ctx context.Context, call llm.Call) (*llm.Response, error) {
	body, err := o.BuildRequestBody(call)
	if err != nil {
		return nil, llm.NewFatalError(fmt.Errorf("build request body: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, o.BuildURL(call.Endpoint.URL), bytes.NewReader(body))
	if err != nil {
		return nil, llm.NewFatalError(fmt.Errorf("create HTTP request: %w", err))
	}
	o.SetHeaders(httpReq)

	httpResp, err := o.httpClient.Do(httpReq)
	if err != nil {
		// Network errors are transient
		return nil, llm.NewTransientError(fmt.Errorf("HTTP request failed: %w", err))
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseSize))
	if err != nil {
		return nil, llm.NewTransientError(fmt.Errorf("read response body: %w", err))
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, classifyHTTPError(httpResp.StatusCode, respBody)
	}

	resp, err := o.ParseResponse(respBody)
	if err != nil && resp == nil {
		return nil, llm.NewTransientError(err)
	}
	return resp, err
}

// classifyHTTPError determines if an HTTP error is transient or fatal.
func classifyHTTPError(statusCode int, body []byte) error {
	bodyStr := string(body)
	if len(bodyStr) > 200 {
		bodyStr = bodyStr[:200] + "..."
	}

	err := fmt.Errorf("model API error (status %d): %s", statusCode, bodyStr)

	switch {
	case statusCode == http.StatusTooManyRequests:
		return llm.NewTransientError(err)
	case statusCode >= 500:
		return llm.NewTransientError(err)
	default:
		// Auth errors, bad requests and anything unexpected.
		return llm.NewFatalError(err)
	}
}
