package scenarios

import (
	"context"
	"errors"
	"fmt"

	"github.com/aaileenssyed/LocalFlow/events"
	"github.com/aaileenssyed/LocalFlow/itinerary"
	"github.com/aaileenssyed/LocalFlow/test/e2e/client"
	"github.com/aaileenssyed/LocalFlow/test/e2e/config"
)

// EventsScenario checks that itinerary changes are published on NATS.
// The server must run with a NATS URL configured.
type EventsScenario struct {
	cfg     *config.Config
	http    *client.HTTPClient
	nats    *client.NATSClient
	capture *client.EventCapture
	fixture *itinerary.FixedCommitment
}

// NewEventsScenario creates the events scenario.
func NewEventsScenario(cfg *config.Config) *EventsScenario {
	return &EventsScenario{cfg: cfg}
}

// Name implements Scenario.
func (s *EventsScenario) Name() string { return "events" }

// Description implements Scenario.
func (s *EventsScenario) Description() string {
	return "Verifies generated, recalculated and reset events on NATS"
}

// Setup implements Scenario.
func (s *EventsScenario) Setup(ctx context.Context) error {
	if s.cfg.NATSURL == "" {
		return errors.New("no NATS URL configured")
	}
	s.http = client.NewHTTPClient(s.cfg.BaseURL)

	setupCtx, cancel := context.WithTimeout(ctx, s.cfg.SetupTimeout)
	defer cancel()
	if err := s.http.WaitForHealthy(setupCtx); err != nil {
		return err
	}

	nc, err := client.NewNATSClient(setupCtx, s.cfg.NATSURL)
	if err != nil {
		return err
	}
	s.nats = nc

	fc, err := prepareSession(setupCtx, s.http)
	if err != nil {
		return err
	}
	s.fixture = fc

	// Subscribe after the setup reset so its event is not captured.
	capture, err := nc.CaptureEvents(config.EventSubjectPrefix + ".>")
	if err != nil {
		return err
	}
	s.capture = capture
	return nil
}

// Execute implements Scenario.
func (s *EventsScenario) Execute(ctx context.Context) (*Result, error) {
	result := NewResult(s.Name())
	var generated events.Event

	return runStages(ctx, result, s.cfg.CommandTimeout, []stage{
		{"generated-event", func(ctx context.Context, r *Result) error {
			resp, err := s.http.Generate(ctx)
			if err != nil {
				return err
			}
			ev, err := s.waitFor(ctx, events.KindGenerated)
			if err != nil {
				return err
			}
			if ev.Itinerary == nil || ev.Itinerary.ID != resp.Itinerary.ID {
				return fmt.Errorf("generated event does not carry itinerary %s", resp.Itinerary.ID)
			}
			if ev.SessionID == "" {
				return errors.New("generated event has no session id")
			}
			generated = ev
			r.SetDetail("session_id", ev.SessionID)
			return nil
		}},
		{"recalculated-event", func(ctx context.Context, _ *Result) error {
			if _, err := s.http.Recalculate(ctx, client.RecalculateRequest{Reason: itinerary.RunningLateReason}); err != nil {
				return err
			}
			ev, err := s.waitFor(ctx, events.KindRecalculated)
			if err != nil {
				return err
			}
			if ev.Reason != itinerary.RunningLateReason {
				return fmt.Errorf("recalculated event reason = %q", ev.Reason)
			}
			if ev.Generation < generated.Generation {
				return fmt.Errorf("generation went backwards: %d after %d", ev.Generation, generated.Generation)
			}
			return nil
		}},
		{"reset-event", func(ctx context.Context, _ *Result) error {
			if err := s.http.Reset(ctx); err != nil {
				return err
			}
			ev, err := s.waitFor(ctx, events.KindReset)
			if err != nil {
				return err
			}
			if ev.Generation <= generated.Generation {
				return fmt.Errorf("reset did not advance the generation: %d", ev.Generation)
			}
			return nil
		}},
		{"well-formed", func(_ context.Context, r *Result) error {
			r.SetMetric("events", len(s.capture.Events()))
			if n := s.capture.Undecodable(); n > 0 {
				return fmt.Errorf("%d messages on %s.> were not events", n, config.EventSubjectPrefix)
			}
			return nil
		}},
	}), nil
}

func (s *EventsScenario) waitFor(ctx context.Context, kind events.Kind) (events.Event, error) {
	waitCtx, cancel := context.WithTimeout(ctx, config.DefaultEventTimeout)
	defer cancel()
	return s.capture.WaitForKind(waitCtx, kind)
}

// Teardown implements Scenario.
func (s *EventsScenario) Teardown(ctx context.Context) error {
	var errs []error
	if s.capture != nil {
		errs = append(errs, s.capture.Stop())
	}
	if s.nats != nil {
		s.nats.Close()
	}
	if s.http != nil {
		errs = append(errs, s.http.Reset(ctx))
		if s.fixture != nil {
			errs = append(errs, s.http.RemoveCommitment(ctx, s.fixture.ID))
		}
	}
	return errors.Join(errs...)
}
