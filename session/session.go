// Package session holds a traveler's planning session: preferences,
// commitments and the authoritative itinerary, plus the recalculation state
// machine that replaces it.
//
// The installed itinerary is swapped atomically and only after a successful
// generate-and-enrich round trip. A failed request leaves the previous
// itinerary installed, pointer for pointer.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aaileenssyed/LocalFlow/enrich"
	"github.com/aaileenssyed/LocalFlow/events"
	"github.com/aaileenssyed/LocalFlow/itinerary"
	"github.com/aaileenssyed/LocalFlow/metrics"
	"github.com/aaileenssyed/LocalFlow/planner"
	"github.com/aaileenssyed/LocalFlow/prompts"
	"github.com/aaileenssyed/LocalFlow/storage"
)

// State is the recalculation state of a session.
type State string

// Session states.
const (
	// StateStable means the installed itinerary is current.
	StateStable State = "stable"
	// StateRecalculating means a recalculation is in flight.
	StateRecalculating State = "recalculating"
	// StateStableUnchanged means the last recalculation failed and the
	// previous itinerary is still installed.
	StateStableUnchanged State = "stable_unchanged"
)

var allStates = []string{string(StateStable), string(StateRecalculating), string(StateStableUnchanged)}

// DefaultID names a session when none is configured.
const DefaultID = "default"

var (
	// ErrBusy is returned when a generate or recalculate is already in flight.
	ErrBusy = errors.New("a planning request is already in flight")

	// ErrNoItinerary is returned when an operation needs an installed itinerary.
	ErrNoItinerary = errors.New("no itinerary")

	// ErrSuperseded is returned when the session was reset or replanned while
	// the request was in flight. Its result is discarded.
	ErrSuperseded = errors.New("request superseded")

	// ErrCommitmentNotFound is returned for an unknown commitment id.
	ErrCommitmentNotFound = errors.New("commitment not found")
)

// Enricher fills in coordinates for an itinerary's stops.
type Enricher interface {
	Enrich(ctx context.Context, it *itinerary.Itinerary, hint string) *itinerary.Itinerary
}

// Engine is a single traveler's session.
type Engine struct {
	id             string
	planner        planner.Planner
	enricher       Enricher
	resolver       enrich.Resolver
	store          storage.Store
	publisher      events.Publisher
	metrics        *metrics.Collector
	logger         *slog.Logger
	now            func() time.Time
	defaultContext string

	// current is the authoritative itinerary. It is only ever replaced, never
	// modified in place.
	current atomic.Pointer[itinerary.Itinerary]

	mu          sync.Mutex
	inFlight    bool
	generation  uint64
	state       State
	prefs       itinerary.UserPreferences
	commitments *itinerary.Commitments
}

// Option configures an Engine.
type Option func(*Engine)

// WithID sets the session id used for persistence and events.
func WithID(id string) Option {
	return func(e *Engine) {
		if id != "" {
			e.id = id
		}
	}
}

// WithResolver enables location resolution for commitments.
func WithResolver(r enrich.Resolver) Option {
	return func(e *Engine) {
		e.resolver = r
	}
}

// WithStore persists a snapshot after every change.
func WithStore(s storage.Store) Option {
	return func(e *Engine) {
		e.store = s
	}
}

// WithPublisher announces every install, failure and reset.
func WithPublisher(p events.Publisher) Option {
	return func(e *Engine) {
		e.publisher = p
	}
}

// WithMetrics records requests and state transitions.
func WithMetrics(c *metrics.Collector) Option {
	return func(e *Engine) {
		e.metrics = c
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithClock overrides the wall clock used for the traveler's current time.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		e.now = now
	}
}

// WithDefaultContext sets the geographic hint used when enriching a
// recalculated plan whose first stop has no resolved address.
func WithDefaultContext(hint string) Option {
	return func(e *Engine) {
		e.defaultContext = hint
	}
}

// WithPreferences seeds the session's preferences, commitments included.
func WithPreferences(prefs itinerary.UserPreferences) Option {
	return func(e *Engine) {
		e.setPreferencesLocked(prefs)
	}
}

// New creates a session in StateStable with default preferences and no
// itinerary.
func New(p planner.Planner, enricher Enricher, opts ...Option) *Engine {
	e := &Engine{
		id:        DefaultID,
		planner:   p,
		enricher:  enricher,
		publisher: events.Noop{},
		logger:    slog.Default(),
		now:       time.Now,
		state:     StateStable,
	}
	e.setPreferencesLocked(itinerary.DefaultPreferences())
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("session_id", e.id)
	e.recordState(e.state)
	return e
}

// ID returns the session id.
func (e *Engine) ID() string {
	return e.id
}

// Current returns the installed itinerary, or nil. The result is shared and
// must not be modified.
func (e *Engine) Current() *itinerary.Itinerary {
	return e.current.Load()
}

// Status describes the session at a point in time.
type Status struct {
	State       State  `json:"state"`
	Busy        bool   `json:"busy"`
	Generation  uint64 `json:"generation"`
	ItineraryID string `json:"itineraryId,omitempty"`
}

// Status returns the current status.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	st := Status{State: e.state, Busy: e.inFlight, Generation: e.generation}
	if it := e.current.Load(); it != nil {
		st.ItineraryID = it.ID
	}
	return st
}

// ticket is an admitted in-flight request.
type ticket struct {
	op         string
	generation uint64
	prefs      itinerary.UserPreferences
	current    *itinerary.Itinerary
	started    time.Time
}

// admit claims the single in-flight slot.
func (e *Engine) admit(op string, needItinerary bool) (*ticket, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.inFlight {
		return nil, ErrBusy
	}
	cur := e.current.Load()
	if needItinerary && cur == nil {
		return nil, ErrNoItinerary
	}
	e.inFlight = true
	if op == itinerary.OpRecalculate {
		e.setStateLocked(StateRecalculating)
	}
	return &ticket{
		op:         op,
		generation: e.generation,
		prefs:      e.preferencesLocked(),
		current:    cur,
		started:    e.now(),
	}, nil
}

// Generate builds a fresh itinerary from the session's preferences, enriches
// it and installs it.
func (e *Engine) Generate(ctx context.Context) (*itinerary.Itinerary, error) {
	t, err := e.admit(itinerary.OpGenerate, false)
	if err != nil {
		e.observe(itinerary.OpGenerate, err, 0)
		return nil, err
	}

	pc := prompts.PlanContext{CurrentTime: e.clock()}
	plan, err := e.planner.Generate(ctx, t.prefs, pc)
	if err != nil {
		return nil, e.fail(ctx, t, "", err)
	}

	plan = e.enricher.Enrich(ctx, plan, enrich.Hint(plan, e.hint(t.prefs)))
	return e.install(ctx, t, plan, "")
}

// RecalcOption adjusts a single recalculation.
type RecalcOption func(*prompts.PlanContext)

// At tells the generator where the traveler is now.
func At(pos itinerary.Coordinates) RecalcOption {
	return func(pc *prompts.PlanContext) {
		pc.Position = &pos
	}
}

// Recalculate replans the installed itinerary for a free-text reason.
// "Swap <stop name>" replaces that one stop; anything else re-times and
// prunes around the fixed stops. On failure the previous itinerary stays
// installed and the state becomes StateStableUnchanged.
func (e *Engine) Recalculate(ctx context.Context, reasonText string, opts ...RecalcOption) (*itinerary.Itinerary, error) {
	reason, err := itinerary.ParseReason(reasonText)
	if err != nil {
		return nil, err
	}

	t, err := e.admit(itinerary.OpRecalculate, true)
	if err != nil {
		e.observe(itinerary.OpRecalculate, err, 0)
		return nil, err
	}

	pc := prompts.PlanContext{CurrentTime: e.clock(), TripEnd: t.prefs.TripEndTime}
	for _, opt := range opts {
		opt(&pc)
	}

	e.logger.Info("Recalculating itinerary",
		"itinerary_id", t.current.ID,
		"reason", reason.Text,
		"kind", reason.Kind)

	plan, err := e.planner.Recalculate(ctx, t.current, t.prefs, reason, pc)
	if err != nil {
		return nil, e.fail(ctx, t, reason.Text, err)
	}

	plan = e.enricher.Enrich(ctx, plan, enrich.Hint(plan, e.hint(t.prefs)))
	return e.install(ctx, t, plan, reason.Text)
}

// install swaps plan in unless the session moved on while t was in flight.
func (e *Engine) install(ctx context.Context, t *ticket, plan *itinerary.Itinerary, reason string) (*itinerary.Itinerary, error) {
	e.mu.Lock()
	e.inFlight = false
	if e.generation != t.generation {
		e.mu.Unlock()
		e.logger.Warn("Discarding stale result", "op", t.op, "itinerary_id", plan.ID)
		e.observe(t.op, ErrSuperseded, 0)
		return nil, ErrSuperseded
	}
	e.generation++
	e.current.Store(plan)
	e.setStateLocked(StateStable)
	snap := e.snapshotLocked()
	e.mu.Unlock()

	kind := events.KindGenerated
	if t.op == itinerary.OpRecalculate {
		kind = events.KindRecalculated
	}
	e.logger.Info("Installed itinerary",
		"op", t.op,
		"itinerary_id", plan.ID,
		"stops", len(plan.Stops),
		"generation", snap.Generation,
		"warnings", len(plan.Warnings))

	e.persist(ctx, snap)
	e.publish(ctx, events.Event{
		Kind:       kind,
		Generation: snap.Generation,
		Reason:     reason,
		Itinerary:  plan,
	})
	e.observe(t.op, nil, e.now().Sub(t.started))
	return plan, nil
}

// fail releases the in-flight slot and leaves the installed itinerary alone.
func (e *Engine) fail(ctx context.Context, t *ticket, reason string, err error) error {
	e.mu.Lock()
	e.inFlight = false
	if t.op == itinerary.OpRecalculate && e.state == StateRecalculating {
		e.setStateLocked(StateStableUnchanged)
	}
	gen := e.generation
	e.mu.Unlock()

	e.logger.Warn("Planning request failed", "op", t.op, "reason", reason, "error", err)
	e.publish(ctx, events.Event{
		Kind:       events.KindFailed,
		Generation: gen,
		Reason:     reason,
		Error:      itinerary.UserMessage(err),
	})
	e.observe(t.op, err, 0)
	return err
}

// Reset discards the installed itinerary. A request in flight when Reset is
// called will have its result discarded.
func (e *Engine) Reset(ctx context.Context) {
	e.mu.Lock()
	e.generation++
	e.current.Store(nil)
	e.setStateLocked(StateStable)
	snap := e.snapshotLocked()
	e.mu.Unlock()

	e.logger.Info("Itinerary reset", "generation", snap.Generation)
	e.persist(ctx, snap)
	e.publish(ctx, events.Event{Kind: events.KindReset, Generation: snap.Generation})
}

func (e *Engine) clock() string {
	return e.now().Format("15:04")
}

func (e *Engine) hint(prefs itinerary.UserPreferences) string {
	if e.defaultContext != "" {
		return e.defaultContext
	}
	return prefs.Location
}

func (e *Engine) setStateLocked(s State) {
	e.state = s
	e.recordState(s)
}

func (e *Engine) recordState(s State) {
	if e.metrics != nil {
		e.metrics.SetState(string(s), allStates...)
	}
}

func (e *Engine) observe(op string, err error, d time.Duration) {
	if e.metrics == nil {
		return
	}
	e.metrics.ObservePlan(op, outcome(err), d)
}

func outcome(err error) string {
	var genErr *itinerary.GenerationError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrBusy):
		return "busy"
	case errors.Is(err, ErrSuperseded):
		return "superseded"
	case errors.As(err, &genErr):
		return "generation_failed"
	default:
		return "rejected"
	}
}
