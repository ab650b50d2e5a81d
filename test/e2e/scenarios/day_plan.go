package scenarios

import (
	"context"
	"fmt"

	"github.com/aaileenssyed/LocalFlow/itinerary"
	"github.com/aaileenssyed/LocalFlow/session"
	"github.com/aaileenssyed/LocalFlow/test/e2e/client"
	"github.com/aaileenssyed/LocalFlow/test/e2e/config"
)

// DayPlanScenario plans a day around one fixed commitment and checks the
// result, its links and its persistence on the server.
type DayPlanScenario struct {
	cfg     *config.Config
	http    *client.HTTPClient
	mock    *client.MockLLMClient
	fixture *itinerary.FixedCommitment
}

// NewDayPlanScenario creates the plan-basic scenario.
func NewDayPlanScenario(cfg *config.Config) *DayPlanScenario {
	return &DayPlanScenario{cfg: cfg}
}

// Name implements Scenario.
func (s *DayPlanScenario) Name() string { return "plan-basic" }

// Description implements Scenario.
func (s *DayPlanScenario) Description() string {
	return "Plans a day around a fixed commitment and checks stops, links and status"
}

// Setup implements Scenario.
func (s *DayPlanScenario) Setup(ctx context.Context) error {
	s.http = client.NewHTTPClient(s.cfg.BaseURL)
	if s.cfg.MockLLMURL != "" {
		s.mock = client.NewMockLLMClient(s.cfg.MockLLMURL)
	}

	setupCtx, cancel := context.WithTimeout(ctx, s.cfg.SetupTimeout)
	defer cancel()
	if err := s.http.WaitForHealthy(setupCtx); err != nil {
		return err
	}
	if s.mock != nil {
		if err := s.mock.Reset(setupCtx); err != nil {
			return fmt.Errorf("reset mock llm: %w", err)
		}
	}
	fc, err := prepareSession(setupCtx, s.http)
	if err != nil {
		return err
	}
	s.fixture = fc
	return nil
}

// Execute implements Scenario.
func (s *DayPlanScenario) Execute(ctx context.Context) (*Result, error) {
	result := NewResult(s.Name())
	var generated *client.ItineraryResponse

	return runStages(ctx, result, s.cfg.CommandTimeout, []stage{
		{"no-itinerary-before-generate", func(ctx context.Context, _ *Result) error {
			_, err := s.http.Current(ctx)
			if !client.IsStatus(err, 404) {
				return fmt.Errorf("GET itinerary before generate: got %v, want 404", err)
			}
			return nil
		}},
		{"generate", func(ctx context.Context, r *Result) error {
			resp, err := s.http.Generate(ctx)
			if err != nil {
				return err
			}
			if resp.Status.State != session.StateStable {
				return fmt.Errorf("state = %s, want %s", resp.Status.State, session.StateStable)
			}
			generated = resp
			r.SetMetric("stops", len(resp.Itinerary.Stops))
			r.SetDetail("itinerary_id", resp.Itinerary.ID)
			r.SetDetail("title", resp.Itinerary.Title)
			return nil
		}},
		{"check-itinerary", func(_ context.Context, r *Result) error {
			for _, w := range generated.Itinerary.Warnings {
				r.AddWarning(w)
			}
			return checkItinerary(generated.Itinerary, []itinerary.FixedCommitment{*s.fixture})
		}},
		{"links", func(ctx context.Context, _ *Result) error {
			links, err := s.http.Links(ctx)
			if err != nil {
				return err
			}
			if len(links) != len(generated.Itinerary.Stops) {
				return fmt.Errorf("%d links for %d stops", len(links), len(generated.Itinerary.Stops))
			}
			for _, l := range links {
				if l.URL == "" {
					return fmt.Errorf("stop %q has no directions link", l.Name)
				}
			}
			return nil
		}},
		{"persisted", func(ctx context.Context, _ *Result) error {
			cur, err := s.http.Current(ctx)
			if err != nil {
				return err
			}
			if cur.Itinerary.ID != generated.Itinerary.ID {
				return fmt.Errorf("current itinerary %s, want %s", cur.Itinerary.ID, generated.Itinerary.ID)
			}
			st, err := s.http.Status(ctx)
			if err != nil {
				return err
			}
			if st.Busy || st.ItineraryID != generated.Itinerary.ID {
				return fmt.Errorf("unexpected status %+v", *st)
			}
			return nil
		}},
		{"model-calls", func(ctx context.Context, r *Result) error {
			if s.mock == nil {
				r.AddWarning("mock llm not configured, skipping call count")
				return nil
			}
			stats, err := s.mock.GetStats(ctx)
			if err != nil {
				return err
			}
			r.SetMetric("llm_calls", stats.TotalCalls)
			if stats.TotalCalls == 0 {
				return fmt.Errorf("generation made no model calls")
			}
			return nil
		}},
	}), nil
}

// Teardown implements Scenario.
func (s *DayPlanScenario) Teardown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	if err := s.http.Reset(ctx); err != nil {
		return err
	}
	if s.fixture != nil {
		return s.http.RemoveCommitment(ctx, s.fixture.ID)
	}
	return nil
}
