package scenarios

import (
	"context"
	"fmt"

	"github.com/aaileenssyed/LocalFlow/itinerary"
	"github.com/aaileenssyed/LocalFlow/session"
	"github.com/aaileenssyed/LocalFlow/test/e2e/client"
	"github.com/aaileenssyed/LocalFlow/test/e2e/config"
)

// RecalculateScenario swaps a stop, tries to swap the fixed commitment and
// adapts the plan to a late start from a live position.
type RecalculateScenario struct {
	cfg     *config.Config
	http    *client.HTTPClient
	fixture *itinerary.FixedCommitment
}

// NewRecalculateScenario creates the recalculate scenario.
func NewRecalculateScenario(cfg *config.Config) *RecalculateScenario {
	return &RecalculateScenario{cfg: cfg}
}

// Name implements Scenario.
func (s *RecalculateScenario) Name() string { return "recalculate" }

// Description implements Scenario.
func (s *RecalculateScenario) Description() string {
	return "Swaps a stop, rejects swapping a commitment and replans from a live position"
}

// Setup implements Scenario.
func (s *RecalculateScenario) Setup(ctx context.Context) error {
	s.http = client.NewHTTPClient(s.cfg.BaseURL)

	setupCtx, cancel := context.WithTimeout(ctx, s.cfg.SetupTimeout)
	defer cancel()
	if err := s.http.WaitForHealthy(setupCtx); err != nil {
		return err
	}
	fc, err := prepareSession(setupCtx, s.http)
	if err != nil {
		return err
	}
	s.fixture = fc
	if _, err := s.http.Generate(setupCtx); err != nil {
		return fmt.Errorf("generate: %w", err)
	}
	return nil
}

// Execute implements Scenario.
func (s *RecalculateScenario) Execute(ctx context.Context) (*Result, error) {
	result := NewResult(s.Name())
	commitments := func() []itinerary.FixedCommitment {
		return []itinerary.FixedCommitment{*s.fixture}
	}
	var before *itinerary.Itinerary

	return runStages(ctx, result, s.cfg.CommandTimeout, []stage{
		{"swap-flexible-stop", func(ctx context.Context, r *Result) error {
			cur, err := s.http.Current(ctx)
			if err != nil {
				return err
			}
			target, ok := firstFlexible(cur.Itinerary)
			if !ok {
				return fmt.Errorf("itinerary %s has no flexible stop to swap", cur.Itinerary.ID)
			}
			r.SetDetail("swap_target", target.Name)

			resp, err := s.http.Recalculate(ctx, client.RecalculateRequest{Reason: itinerary.SwapReason(target.Name)})
			if err != nil {
				return err
			}
			switch resp.Status.State {
			case session.StateStable:
				if resp.Itinerary.FindStop(target.Name) >= 0 {
					return fmt.Errorf("%q is still in the plan after swapping it", target.Name)
				}
			case session.StateStableUnchanged:
				r.AddWarning("swap kept the plan unchanged")
			default:
				return fmt.Errorf("state = %s after swap", resp.Status.State)
			}
			before = resp.Itinerary
			return checkItinerary(resp.Itinerary, commitments())
		}},
		{"swap-fixed-stop-rejected", func(ctx context.Context, _ *Result) error {
			_, err := s.http.Recalculate(ctx, client.RecalculateRequest{Reason: itinerary.SwapReason(s.fixture.Location)})
			if !client.IsStatus(err, 422) {
				return fmt.Errorf("swapping a commitment: got %v, want 422", err)
			}
			cur, err := s.http.Current(ctx)
			if err != nil {
				return err
			}
			if cur.Itinerary.ID != before.ID {
				return fmt.Errorf("rejected swap replaced the plan: %s, want %s", cur.Itinerary.ID, before.ID)
			}
			return nil
		}},
		{"running-late-from-position", func(ctx context.Context, r *Result) error {
			lat, lng := 40.7484, -73.9857
			resp, err := s.http.Recalculate(ctx, client.RecalculateRequest{
				Reason: "Running late, skip the next stop",
				Lat:    &lat,
				Lng:    &lng,
			})
			if err != nil {
				return err
			}
			r.SetMetric("stops_after_replan", len(resp.Itinerary.Stops))
			return checkItinerary(resp.Itinerary, commitments())
		}},
		{"half-position-rejected", func(ctx context.Context, _ *Result) error {
			lat := 40.7484
			_, err := s.http.Recalculate(ctx, client.RecalculateRequest{Reason: "Too tired", Lat: &lat})
			if !client.IsStatus(err, 400) {
				return fmt.Errorf("lat without lng: got %v, want 400", err)
			}
			return nil
		}},
	}), nil
}

// Teardown implements Scenario.
func (s *RecalculateScenario) Teardown(ctx context.Context) error {
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
