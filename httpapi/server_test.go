package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aaileenssyed/LocalFlow/enrich"
	"github.com/aaileenssyed/LocalFlow/itinerary"
	"github.com/aaileenssyed/LocalFlow/llm"
	"github.com/aaileenssyed/LocalFlow/metrics"
	"github.com/aaileenssyed/LocalFlow/planner/plannertest"
	"github.com/aaileenssyed/LocalFlow/prompts"
	"github.com/aaileenssyed/LocalFlow/resolver"
	"github.com/aaileenssyed/LocalFlow/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentinelResolver struct{}

func (sentinelResolver) Resolve(_ context.Context, query, _ string) resolver.Place {
	return resolver.Sentinel(query)
}

func newTestServer(t *testing.T, fake *plannertest.Fake) *httptest.Server {
	t.Helper()
	m := metrics.NewCollector("")
	engine := session.New(fake, enrich.New(sentinelResolver{}), session.WithMetrics(m))
	srv := httptest.NewServer(New(engine, WithMetrics(m), WithCORSOrigins([]string{"*"})).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path, body string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func TestPlanLifecycle(t *testing.T) {
	fake := &plannertest.Fake{}
	srv := newTestServer(t, fake)

	resp, _ := do(t, srv, "GET", "/api/itinerary", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body := do(t, srv, "POST", "/api/commitments", `{"startTime":"10:00","endTime":"11:00","location":"MoMA","description":"Museum"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	var fc itinerary.FixedCommitment
	require.NoError(t, json.Unmarshal(body, &fc))
	assert.NotEmpty(t, fc.ID)

	resp, body = do(t, srv, "POST", "/api/itinerary", "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var got itineraryResponse
	require.NoError(t, json.Unmarshal(body, &got))
	require.NotNil(t, got.Itinerary)
	assert.Equal(t, session.StateStable, got.Status.State)

	var fixed *itinerary.Stop
	for i := range got.Itinerary.Stops {
		if got.Itinerary.Stops[i].IsFixed {
			fixed = &got.Itinerary.Stops[i]
		}
	}
	require.NotNil(t, fixed)
	assert.Equal(t, fc.ID, fixed.ID)
	assert.Equal(t, "10:00", fixed.StartTime)

	resp, body = do(t, srv, "POST", "/api/itinerary/recalculate", `{"reason":"Swap Stop 1","lat":40.73,"lng":-73.99}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, "Stop 1 Alternative", got.Itinerary.Stops[0].Name)

	resp, body = do(t, srv, "GET", "/api/itinerary/links", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var links []itinerary.Link
	require.NoError(t, json.Unmarshal(body, &links))
	require.Len(t, links, len(got.Itinerary.Stops))
	assert.Contains(t, links[0].URL, "https://www.google.com/maps/search/")
	assert.Contains(t, links[1].URL, "travelmode=transit")

	resp, _ = do(t, srv, "DELETE", "/api/itinerary", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = do(t, srv, "GET", "/api/itinerary", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestErrorMapping(t *testing.T) {
	failing := &plannertest.Fake{
		GenerateFunc: func(context.Context, itinerary.UserPreferences, prompts.PlanContext) (*itinerary.Itinerary, error) {
			return nil, itinerary.NewGenerationError(itinerary.OpGenerate, "empty response", llm.ErrEmptyResponse)
		},
	}

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
		wantCode   string
	}{
		{"generation failure", "POST", "/api/itinerary", "", http.StatusBadGateway, "generation_failed"},
		{"recalculate without plan", "POST", "/api/itinerary/recalculate", `{"reason":"I am running late"}`, http.StatusNotFound, "no_itinerary"},
		{"missing reason", "POST", "/api/itinerary/recalculate", `{}`, http.StatusBadRequest, "invalid_request"},
		{"lat without lng", "POST", "/api/itinerary/recalculate", `{"reason":"late","lat":40.7}`, http.StatusBadRequest, "invalid_request"},
		{"bad latitude", "POST", "/api/itinerary/recalculate", `{"reason":"late","lat":140.7,"lng":2}`, http.StatusBadRequest, "invalid_request"},
		{"bad clock", "POST", "/api/commitments", `{"startTime":"25:00","location":"MoMA"}`, http.StatusBadRequest, "invalid_request"},
		{"end before start", "POST", "/api/commitments", `{"startTime":"12:00","endTime":"11:00","location":"MoMA"}`, http.StatusBadRequest, "invalid_request"},
		{"unknown field", "POST", "/api/commitments", `{"startTime":"12:00","location":"MoMA","colour":"red"}`, http.StatusBadRequest, "invalid_request"},
		{"unknown commitment", "DELETE", "/api/commitments/nope", "", http.StatusNotFound, "commitment_not_found"},
		{"bad budget", "PUT", "/api/preferences", `{"vibeScore":50,"location":"Paris","budget":"CHEAP","tripStartTime":"09:00","tripEndTime":"22:00"}`, http.StatusBadRequest, "invalid_request"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, failing)
			resp, body := do(t, srv, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.wantStatus, resp.StatusCode, string(body))
			var er errorResponse
			require.NoError(t, json.Unmarshal(body, &er))
			assert.Equal(t, tt.wantCode, er.Error)
			assert.NotEmpty(t, er.Message)
		})
	}
}

func TestSwapOfFixedStop(t *testing.T) {
	srv := newTestServer(t, &plannertest.Fake{})

	resp, body := do(t, srv, "POST", "/api/commitments", `{"startTime":"10:00","endTime":"11:00","location":"MoMA"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	resp, body = do(t, srv, "POST", "/api/itinerary", "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	for _, reason := range []string{"Swap MoMA", "Swap Nowhere"} {
		resp, body = do(t, srv, "POST", "/api/itinerary/recalculate", `{"reason":"`+reason+`"}`)
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode, reason)
		var er errorResponse
		require.NoError(t, json.Unmarshal(body, &er))
		assert.Equal(t, "swap_target_not_found", er.Error)
	}

	resp, body = do(t, srv, "GET", "/api/itinerary", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var got itineraryResponse
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, "fake-plan", got.Itinerary.ID, "rejected swaps leave the plan installed")
}

func TestConcurrentGenerateIsBusy(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	srv := newTestServer(t, &plannertest.Fake{
		GenerateFunc: func(_ context.Context, prefs itinerary.UserPreferences, _ prompts.PlanContext) (*itinerary.Itinerary, error) {
			close(entered)
			<-release
			return plannertest.Plan(prefs)
		},
	})

	done := make(chan int, 1)
	go func() {
		resp, err := srv.Client().Post(srv.URL+"/api/itinerary", "application/json", nil)
		if err != nil {
			done <- 0
			return
		}
		resp.Body.Close()
		done <- resp.StatusCode
	}()

	<-entered
	resp, body := do(t, srv, "POST", "/api/itinerary", "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	var er errorResponse
	require.NoError(t, json.Unmarshal(body, &er))
	assert.Equal(t, "busy", er.Error)

	close(release)
	assert.Equal(t, http.StatusOK, <-done)
}

func TestGenerationFailureMessage(t *testing.T) {
	srv := newTestServer(t, &plannertest.Fake{
		GenerateFunc: func(context.Context, itinerary.UserPreferences, prompts.PlanContext) (*itinerary.Itinerary, error) {
			return nil, itinerary.NewGenerationError(itinerary.OpGenerate, "empty response", llm.ErrEmptyResponse)
		},
	})
	_, body := do(t, srv, "POST", "/api/itinerary", "")
	var er errorResponse
	require.NoError(t, json.Unmarshal(body, &er))
	assert.Equal(t, "Failed to generate itinerary. Please try again.", er.Message)
}

func TestPreferencesRoundTrip(t *testing.T) {
	srv := newTestServer(t, &plannertest.Fake{})

	body := `{"vibeScore":85,"vibeDescription":"dive bars","dietary":["Vegan"],"location":"Berlin","budget":"ECONOMY",
	  "tripStartTime":"10:00","tripEndTime":"23:00",
	  "fixedCommitments":[{"startTime":"20:00","endTime":"21:00","location":"Berghain"}]}`
	resp, raw := do(t, srv, "PUT", "/api/preferences", body)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))

	resp, raw = do(t, srv, "GET", "/api/preferences", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var prefs itinerary.UserPreferences
	require.NoError(t, json.Unmarshal(raw, &prefs))
	assert.Equal(t, "Berlin", prefs.Location)
	assert.Equal(t, itinerary.BudgetEconomy, prefs.Budget)
	require.Len(t, prefs.FixedCommitments, 1)
	assert.Equal(t, itinerary.DefaultCommitmentDescription, prefs.FixedCommitments[0].Description)

	// What GET returns is accepted by PUT.
	resp, raw = do(t, srv, "PUT", "/api/preferences", string(raw))
	assert.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
}

func TestStatusAndMetrics(t *testing.T) {
	srv := newTestServer(t, &plannertest.Fake{})

	resp, raw := do(t, srv, "GET", "/api/status", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var st session.Status
	require.NoError(t, json.Unmarshal(raw, &st))
	assert.Equal(t, session.StateStable, st.State)
	assert.False(t, st.Busy)

	resp, raw = do(t, srv, "GET", "/metrics", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	text := string(raw)
	assert.Contains(t, text, `localflow_http_requests_total{method="GET",route="/api/status",status="200"} 1`)
	assert.Contains(t, text, `localflow_session_state{state="stable"} 1`)
	assert.Contains(t, text, `localflow_session_state{state="recalculating"} 0`)
}

func TestCORSPreflight(t *testing.T) {
	srv := newTestServer(t, &plannertest.Fake{})
	req, err := http.NewRequest("OPTIONS", srv.URL+"/api/itinerary", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestOpenAPIDocument(t *testing.T) {
	srv := newTestServer(t, &plannertest.Fake{})
	resp, raw := do(t, srv, "GET", "/api/openapi.yaml", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/yaml", resp.Header.Get("Content-Type"))
	assert.Contains(t, string(raw), "openapi: 3.0.3")

	doc := OpenAPI("1.2.3")
	assert.Equal(t, "1.2.3", doc.Info.Version)
	require.Contains(t, doc.Paths, "/api/itinerary/recalculate")
	recalc := doc.Paths["/api/itinerary/recalculate"].Post
	require.NotNil(t, recalc)
	assert.Contains(t, recalc.Responses, "422")
	assert.Equal(t, "#/components/schemas/RecalculateRequest", recalc.RequestBody.Content["application/json"].Schema.Ref)

	schema := doc.Components.Schemas["RecalculateRequest"].(map[string]any)
	assert.Equal(t, []string{"reason"}, schema["required"])
	lat := schema["properties"].(map[string]any)["lat"].(map[string]any)
	assert.Equal(t, true, lat["nullable"])
	assert.Equal(t, -90, lat["minimum"])

	prefs := doc.Components.Schemas["PreferencesRequest"].(map[string]any)
	budget := prefs["properties"].(map[string]any)["budget"].(map[string]any)
	assert.Equal(t, []string{"ECONOMY", "MODERATE", "LUXURY"}, budget["enum"])

	links := doc.Paths["/api/itinerary/links"].Get
	assert.Equal(t, "array", links.Responses["200"].Content["application/json"].Schema.Type)
	assert.Len(t, doc.Tags, 4)
}

func TestMarshalOpenAPI_ArrayResponses(t *testing.T) {
	done := make(chan struct{})
	var (
		data []byte
		err  error
	)
	go func() {
		defer close(done)
		data, err = MarshalOpenAPI("x")
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("marshaling the OpenAPI document did not finish")
	}
	require.NoError(t, err)
	assert.Contains(t, string(data), "/api/commitments:")

	doc := OpenAPI("x")
	tests := []struct {
		path string
		op   func(PathItem) *Operation
		ref  string
	}{
		{"/api/commitments", func(p PathItem) *Operation { return p.Get }, "#/components/schemas/FixedCommitment"},
		{"/api/itinerary/links", func(p PathItem) *Operation { return p.Get }, "#/components/schemas/Link"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			op := tt.op(doc.Paths[tt.path])
			require.NotNil(t, op)
			schema := op.Responses["200"].Content["application/json"].Schema
			assert.Equal(t, "array", schema.Type)
			require.NotNil(t, schema.Items)
			assert.Equal(t, tt.ref, schema.Items.Ref)
			assert.Nil(t, schema.Items.Items, "items do not refer back to the array")
		})
	}
}

func TestExport(t *testing.T) {
	srv := newTestServer(t, &plannertest.Fake{})

	resp, _ := do(t, srv, "GET", "/api/itinerary/export", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, body := do(t, srv, "POST", "/api/itinerary", "")
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	tests := []struct {
		name        string
		query       string
		status      int
		contentType string
		prefix      string
	}{
		{"default markdown", "", http.StatusOK, "text/markdown; charset=utf-8", "# A day in New York, NY"},
		{"ics on a date", "?format=ics&date=2026-10-17", http.StatusOK, "text/calendar; charset=utf-8", "BEGIN:VCALENDAR"},
		{"geojson", "?format=geojson", http.StatusOK, "application/geo+json", "{"},
		{"unknown format", "?format=pdf", http.StatusBadRequest, "application/json", `{"error":"invalid_request"`},
		{"bad date", "?format=ics&date=17/10/2026", http.StatusBadRequest, "application/json", `{"error":"invalid_request"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := do(t, srv, "GET", "/api/itinerary/export"+tt.query, "")
			assert.Equal(t, tt.status, resp.StatusCode, string(body))
			assert.Equal(t, tt.contentType, resp.Header.Get("Content-Type"))
			assert.True(t, strings.HasPrefix(string(body), tt.prefix), string(body))
		})
	}

	resp, body = do(t, srv, "GET", "/api/itinerary/export?format=ics&date=2026-10-17", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `attachment; filename=itinerary-fake-plan.ics`, resp.Header.Get("Content-Disposition"))
	assert.Contains(t, string(body), "DTSTART:20261017T090000")

	export := OpenAPI("dev").Paths["/api/itinerary/export"].Get
	require.NotNil(t, export)
	assert.Contains(t, export.Responses["200"].Content, "text/calendar; charset=utf-8")
	assert.Len(t, export.Parameters, 2)
}
