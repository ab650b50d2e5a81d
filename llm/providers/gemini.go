package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/aaileenssyed/LocalFlow/llm"
	"google.golang.org/genai"
)

// contentGenerator is the part of *genai.Models the provider uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiProvider implements llm.Provider with the Google Gen AI SDK.
// Structured calls set ResponseMIMEType and ResponseSchema; grounded calls
// enable the Google Maps tool and never send a schema.
type GeminiProvider struct {
	models contentGenerator
}

// NewGeminiProvider creates a provider for the Gemini API.
func NewGeminiProvider(ctx context.Context, apiKey string) (*GeminiProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GeminiProvider{models: client.Models}, nil
}

// Name returns the provider identifier.
func (g *GeminiProvider) Name() string {
	return "gemini"
}

// BuildConfig translates a call into the SDK's generation config.
func (g *GeminiProvider) BuildConfig(call llm.Call) (*genai.GenerateContentConfig, error) {
	cfg := &genai.GenerateContentConfig{}
	if t := call.Endpoint.Temperature; t != nil {
		cfg.Temperature = genai.Ptr(float32(*t))
	}
	if call.Endpoint.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(call.Endpoint.MaxTokens)
	}
	if b := call.Endpoint.ThinkingBudget; b != nil {
		cfg.ThinkingConfig = &genai.ThinkingConfig{ThinkingBudget: genai.Ptr(*b)}
	}

	switch call.Mode {
	case llm.ModeStructured:
		if call.Schema == nil {
			return nil, fmt.Errorf("structured call without schema")
		}
		cfg.ResponseMIMEType = "application/json"
		cfg.ResponseSchema = toGenaiSchema(call.Schema)
	case llm.ModeGrounded:
		cfg.Tools = []*genai.Tool{{GoogleMaps: &genai.GoogleMaps{}}}
	default:
		return nil, fmt.Errorf("unknown call mode %q", call.Mode)
	}
	return cfg, nil
}

// Generate implements llm.Provider.
func (g *GeminiProvider) Generate(ctx context.Context, call llm.Call) (*llm.Response, error) {
	cfg, err := g.BuildConfig(call)
	if err != nil {
		return nil, llm.NewFatalError(err)
	}

	resp, err := g.models.GenerateContent(ctx, call.Endpoint.Model, genai.Text(call.Prompt), cfg)
	if err != nil {
		return nil, classifyGenaiError(err)
	}

	out := &llm.Response{
		Content: extractText(resp),
		Model:   call.Endpoint.Model,
	}
	if resp.ModelVersion != "" {
		out.Model = resp.ModelVersion
	}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = llm.TokenUsage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	if len(resp.Candidates) > 0 && resp.Candidates[0] != nil {
		out.FinishReason = string(resp.Candidates[0].FinishReason)
	}
	if strings.TrimSpace(out.Content) == "" {
		return out, llm.ErrEmptyResponse
	}
	return out, nil
}

// extractText joins the text parts of the first candidate that has content.
func extractText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		var sb strings.Builder
		for _, part := range cand.Content.Parts {
			if part != nil && part.Text != "" && !part.Thought {
				sb.WriteString(part.Text)
			}
		}
		if sb.Len() > 0 {
			return sb.String()
		}
	}
	return ""
}

func toGenaiSchema(s *llm.Schema) *genai.Schema {
	if s == nil {
		return nil
	}
	out := &genai.Schema{
		Type:        genai.Type(strings.ToUpper(string(s.Type))),
		Description: s.Description,
		Enum:        s.Enum,
		Required:    s.Required,
		Items:       toGenaiSchema(s.Items),
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, prop := range s.Properties {
			out.Properties[name] = toGenaiSchema(prop)
		}
	}
	return out
}

func classifyGenaiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		wrapped := fmt.Errorf("gemini API error (status %d): %s", apiErr.Code, apiErr.Message)
		if apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= 500 {
			return llm.NewTransientError(wrapped)
		}
		return llm.NewFatalError(wrapped)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return llm.NewTransientError(fmt.Errorf("gemini request failed: %w", err))
}
