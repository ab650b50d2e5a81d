package planner

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aaileenssyed/LocalFlow/itinerary"
	"github.com/aaileenssyed/LocalFlow/prompts"
	"github.com/google/uuid"
)

// Planner produces validated itineraries. Implementations never return a
// plan that breaks a fixed commitment, overlaps, or leaves the trip window.
type Planner interface {
	// Generate builds a fresh plan from prefs.
	Generate(ctx context.Context, prefs itinerary.UserPreferences, pc prompts.PlanContext) (*itinerary.Itinerary, error)
	// Recalculate replans current for reason. current is not modified.
	Recalculate(ctx context.Context, current *itinerary.Itinerary, prefs itinerary.UserPreferences, reason itinerary.Reason, pc prompts.PlanContext) (*itinerary.Itinerary, error)
}

// Service is the model-backed Planner.
type Service struct {
	client *Client
	logger *slog.Logger
	newID  func() string
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithIDGenerator overrides how itineraries without an id are named.
func WithIDGenerator(fn func() string) Option {
	return func(s *Service) {
		s.newID = fn
	}
}

// New creates a Service over a generation client.
func New(client *Client, opts ...Option) *Service {
	s := &Service{
		client: client,
		logger: slog.Default(),
		newID:  func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ Planner = (*Service)(nil)

// Generate implements Planner. Overlapping commitments and invalid
// preferences are rejected before the generator is called.
func (s *Service) Generate(ctx context.Context, prefs itinerary.UserPreferences, pc prompts.PlanContext) (*itinerary.Itinerary, error) {
	if err := prefs.Validate(); err != nil {
		return nil, err
	}
	if err := itinerary.CheckCommitments(prefs.FixedCommitments); err != nil {
		return nil, err
	}
	bounds, _ := prefs.TripWindow()

	plan, err := s.client.Generate(ctx, prompts.BuildGeneration(prefs, pc))
	if err != nil {
		return nil, err
	}

	out, report, err := itinerary.Reconcile(plan, itinerary.Constraints{
		Fixed:           itinerary.FixedStopsFromCommitments(prefs.FixedCommitments),
		Bounds:          &bounds,
		MinAuthenticity: minAuthenticity(prefs),
	})
	if err != nil {
		return nil, itinerary.NewGenerationError(itinerary.OpGenerate, "constraint violation", err)
	}
	s.logReport(itinerary.OpGenerate, report)
	s.assignID(out)
	return out, nil
}

// Recalculate implements Planner. A swap keeps every stop of current except
// the target; any other reason takes the generator's re-timed plan and holds
// it to current's fixed stops.
func (s *Service) Recalculate(ctx context.Context, current *itinerary.Itinerary, prefs itinerary.UserPreferences, reason itinerary.Reason, pc prompts.PlanContext) (*itinerary.Itinerary, error) {
	if current == nil {
		return nil, fmt.Errorf("recalculate: no current itinerary")
	}
	if reason.Text == "" {
		return nil, fmt.Errorf("%w: reason is empty", itinerary.ErrInvalidReason)
	}
	if reason.Kind == itinerary.ReasonSwap {
		i := current.FindStop(reason.Target)
		if i < 0 {
			return nil, fmt.Errorf("%w: no stop named %q", itinerary.ErrSwapTargetNotFound, reason.Target)
		}
		if current.Stops[i].IsFixed {
			return nil, fmt.Errorf("%w: %q is a fixed commitment", itinerary.ErrSwapTargetNotFound, current.Stops[i].Name)
		}
	}

	var bounds *itinerary.Window
	if w, err := prefs.TripWindow(); err == nil {
		bounds = &w
		if pc.TripEnd == "" {
			pc.TripEnd = prefs.TripEndTime
		}
	}

	generated, err := s.client.Generate(ctx, prompts.BuildRecalculation(current, reason, pc))
	if err != nil {
		return nil, err
	}

	plan := generated
	floor := minAuthenticity(prefs)
	if reason.Kind == itinerary.ReasonSwap {
		// The replacement only has to fill the slot; the floor was in the prompt.
		floor = 0
		plan, err = itinerary.ApplySwap(current, generated, reason.Target)
		if err != nil {
			return nil, itinerary.NewGenerationError(itinerary.OpRecalculate, "swap not honored", err)
		}
	}

	out, report, err := itinerary.Reconcile(plan, itinerary.Constraints{
		Fixed:            current.FixedStops(),
		Bounds:           bounds,
		KeepFixedDetail:  true,
		AllowUnreachable: reason.Kind != itinerary.ReasonSwap,
		MinAuthenticity:  floor,
	})
	if err != nil {
		return nil, itinerary.NewGenerationError(itinerary.OpRecalculate, "constraint violation", err)
	}
	s.logReport(itinerary.OpRecalculate, report)
	s.assignID(out)
	return out, nil
}

func (s *Service) assignID(it *itinerary.Itinerary) {
	if it.ID == "" {
		it.ID = s.newID()
	}
}

func (s *Service) logReport(op string, report itinerary.Report) {
	if !report.Changed() {
		return
	}
	s.logger.Info("Repaired generated itinerary",
		"op", op,
		"pruned", report.Pruned,
		"restored", report.Restored,
		"dropped", report.Dropped,
		"promoted", report.Promoted)
}

// minAuthenticity is the vibe filter floor for prefs, or 0 when it is off.
func minAuthenticity(prefs itinerary.UserPreferences) int {
	if prefs.HighAuthenticity() {
		return itinerary.MinAuthenticityScore
	}
	return 0
}
