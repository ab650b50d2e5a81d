// Package client provides test clients for e2e scenarios.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aaileenssyed/LocalFlow/itinerary"
	"github.com/aaileenssyed/LocalFlow/session"
)

// HTTPClient drives the LocalFlow HTTP API.
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPClient creates a new HTTP client for e2e testing. Generation can
// take a while against a real model, hence the long timeout.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 240 * time.Second,
		},
	}
}

// APIError is a non-2xx answer from the server.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"error"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d %s: %s", e.StatusCode, e.Code, e.Message)
}

// IsStatus reports whether err is an APIError with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}

// ItineraryResponse is the body of the itinerary endpoints.
type ItineraryResponse struct {
	Itinerary *itinerary.Itinerary `json:"itinerary"`
	Status    session.Status       `json:"status"`
}

// CommitmentRequest is the body for adding a commitment.
type CommitmentRequest struct {
	StartTime   string `json:"startTime"`
	EndTime     string `json:"endTime,omitempty"`
	Location    string `json:"location"`
	Description string `json:"description,omitempty"`
	Resolve     bool   `json:"resolve,omitempty"`
}

// RecalculateRequest is the body for a recalculation.
type RecalculateRequest struct {
	Reason string   `json:"reason"`
	Lat    *float64 `json:"lat,omitempty"`
	Lng    *float64 `json:"lng,omitempty"`
}

// HealthCheck checks the server's liveness endpoint.
func (c *HTTPClient) HealthCheck(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

// WaitForHealthy polls HealthCheck until it succeeds or ctx ends.
func (c *HTTPClient) WaitForHealthy(ctx context.Context) error {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		if err := c.HealthCheck(ctx); err == nil {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("server not healthy: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

// Status returns the session status.
func (c *HTTPClient) Status(ctx context.Context) (*session.Status, error) {
	var st session.Status
	if err := c.do(ctx, http.MethodGet, "/api/status", nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// GetPreferences returns the stored preferences.
func (c *HTTPClient) GetPreferences(ctx context.Context) (*itinerary.UserPreferences, error) {
	var prefs itinerary.UserPreferences
	if err := c.do(ctx, http.MethodGet, "/api/preferences", nil, &prefs); err != nil {
		return nil, err
	}
	return &prefs, nil
}

// PutPreferences replaces the preferences, commitments included.
func (c *HTTPClient) PutPreferences(ctx context.Context, prefs itinerary.UserPreferences) (*itinerary.UserPreferences, error) {
	var out itinerary.UserPreferences
	if err := c.do(ctx, http.MethodPut, "/api/preferences", prefs, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AddCommitment adds one fixed commitment.
func (c *HTTPClient) AddCommitment(ctx context.Context, req CommitmentRequest) (*itinerary.FixedCommitment, error) {
	var fc itinerary.FixedCommitment
	if err := c.do(ctx, http.MethodPost, "/api/commitments", req, &fc); err != nil {
		return nil, err
	}
	return &fc, nil
}

// Commitments lists the fixed commitments.
func (c *HTTPClient) Commitments(ctx context.Context) ([]itinerary.FixedCommitment, error) {
	var out []itinerary.FixedCommitment
	if err := c.do(ctx, http.MethodGet, "/api/commitments", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// RemoveCommitment deletes a commitment by ID.
func (c *HTTPClient) RemoveCommitment(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/commitments/"+id, nil, nil)
}

// Generate builds a fresh itinerary.
func (c *HTTPClient) Generate(ctx context.Context) (*ItineraryResponse, error) {
	var out ItineraryResponse
	if err := c.do(ctx, http.MethodPost, "/api/itinerary", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Current returns the current itinerary.
func (c *HTTPClient) Current(ctx context.Context) (*ItineraryResponse, error) {
	var out ItineraryResponse
	if err := c.do(ctx, http.MethodGet, "/api/itinerary", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Recalculate adapts the current itinerary to a reason.
func (c *HTTPClient) Recalculate(ctx context.Context, req RecalculateRequest) (*ItineraryResponse, error) {
	var out ItineraryResponse
	if err := c.do(ctx, http.MethodPost, "/api/itinerary/recalculate", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Links returns the directions links of the current itinerary.
func (c *HTTPClient) Links(ctx context.Context) ([]itinerary.Link, error) {
	var out []itinerary.Link
	if err := c.do(ctx, http.MethodGet, "/api/itinerary/links", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Reset discards the current itinerary.
func (c *HTTPClient) Reset(ctx context.Context) error {
	return c.do(ctx, http.MethodDelete, "/api/itinerary", nil, nil)
}

// do sends body as JSON and decodes a 2xx answer into out when out is non-nil.
func (c *HTTPClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if jsonErr := json.Unmarshal(data, apiErr); jsonErr != nil {
			apiErr.Message = string(data)
		}
		return apiErr
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}
