// Package resolver turns free-text place names into coordinates and a
// canonical address using the maps-grounded model capability.
//
// Resolve never fails: when the model is unavailable or its answer cannot be
// used, the query comes back as both name and address at the (0,0) sentinel.
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aaileenssyed/LocalFlow/llm"
	"github.com/aaileenssyed/LocalFlow/model"
	"github.com/aaileenssyed/LocalFlow/prompts"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"
)

// Place is a resolved (or sentinel) location.
type Place struct {
	Name    string  `json:"name"`
	Address string  `json:"address"`
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
}

// IsSentinel reports whether p carries no real coordinates.
func (p Place) IsSentinel() bool {
	return p.Lat == 0 && p.Lng == 0
}

// Sentinel is the result for a query that could not be resolved.
func Sentinel(query string) Place {
	return Place{Name: query, Address: query}
}

// Outcome classifies a Resolve call for logs and metrics.
type Outcome string

// Resolve outcomes.
const (
	OutcomeResolved Outcome = "resolved"
	OutcomeCached   Outcome = "cached"
	// OutcomeRawText means the answer was not JSON; its text became the address.
	OutcomeRawText Outcome = "raw_text"
	OutcomeFailed  Outcome = "failed"
)

// Resolver resolves places through a grounded generator.
type Resolver struct {
	gen      llm.GroundedGenerator
	cache    *cache.Cache
	limiter  *rate.Limiter
	logger   *slog.Logger
	observer func(Outcome, time.Duration)
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithCacheTTL caches resolved places for ttl. Zero disables the cache.
func WithCacheTTL(ttl time.Duration) Option {
	return func(r *Resolver) {
		if ttl <= 0 {
			r.cache = nil
			return
		}
		r.cache = cache.New(ttl, 2*ttl)
	}
}

// WithRateLimit throttles outgoing lookups. A non-positive rps disables it.
func WithRateLimit(rps float64, burst int) Option {
	return func(r *Resolver) {
		if rps <= 0 {
			r.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		r.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// WithObserver is called once per Resolve with its outcome.
func WithObserver(fn func(Outcome, time.Duration)) Option {
	return func(r *Resolver) {
		r.observer = fn
	}
}

// New creates a Resolver. By default results are cached for an hour and
// lookups are not throttled.
func New(gen llm.GroundedGenerator, opts ...Option) *Resolver {
	r := &Resolver{
		gen:    gen,
		cache:  cache.New(time.Hour, 2*time.Hour),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// answer is the JSON the grounded prompt asks for.
type answer struct {
	Name    string   `json:"name"`
	Address string   `json:"address"`
	Lat     *float64 `json:"lat"`
	Lng     *float64 `json:"lng"`
}

// Resolve finds query near hint. It never returns an error; every failure
// degrades to a place at the sentinel coordinates.
func (r *Resolver) Resolve(ctx context.Context, query, hint string) Place {
	start := time.Now()
	query = strings.TrimSpace(query)
	hint = strings.TrimSpace(hint)

	place, outcome := r.resolve(ctx, query, hint)
	if r.observer != nil {
		r.observer(outcome, time.Since(start))
	}
	return place
}

func (r *Resolver) resolve(ctx context.Context, query, hint string) (Place, Outcome) {
	if query == "" {
		return Sentinel(query), OutcomeFailed
	}

	key := cacheKey(query, hint)
	if r.cache != nil {
		if cached, found := r.cache.Get(key); found {
			if p, ok := cached.(Place); ok {
				r.logger.Debug("Resolver cache hit", "query", query, "hint", hint)
				return p, OutcomeCached
			}
		}
	}

	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			r.logger.Warn("Location lookup throttled", "query", query, "error", err)
			return Sentinel(query), OutcomeFailed
		}
	}

	resp, err := r.gen.GenerateGrounded(ctx, llm.GroundedRequest{
		Capability: model.CapabilityGrounding,
		Prompt:     prompts.BuildResolve(query, hint),
	})
	if err != nil {
		r.logger.Warn("Location lookup failed", "query", query, "hint", hint, "class", llm.Classify(err), "error", err)
		return Sentinel(query), OutcomeFailed
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		r.logger.Warn("Location lookup returned no text", "query", query, "hint", hint)
		return Sentinel(query), OutcomeFailed
	}

	place, err := parseAnswer(query, resp.Content)
	if err != nil {
		r.logger.Warn("Location answer is not JSON, using it as the address",
			"query", query, "request_id", resp.RequestID, "error", err)
		return Place{Name: query, Address: rawAddress(query, resp.Content)}, OutcomeRawText
	}

	if !place.IsSentinel() && r.cache != nil {
		r.cache.Set(key, place, cache.DefaultExpiration)
	}
	r.logger.Debug("Location resolved", "query", query, "address", place.Address, "lat", place.Lat, "lng", place.Lng)
	return place, OutcomeResolved
}

// parseAnswer decodes the model's JSON. Missing names and addresses fall back
// to query; missing or out-of-range coordinates become the sentinel.
func parseAnswer(query, text string) (Place, error) {
	var a answer
	if _, err := llm.DecodeLenient(text, &a); err != nil {
		return Place{}, err
	}
	p := Place{
		Name:    strings.TrimSpace(a.Name),
		Address: strings.TrimSpace(a.Address),
	}
	if p.Name == "" {
		p.Name = query
	}
	if p.Address == "" {
		p.Address = query
	}
	if a.Lat != nil && a.Lng != nil && validCoordinates(*a.Lat, *a.Lng) {
		p.Lat, p.Lng = *a.Lat, *a.Lng
	}
	return p, nil
}

func validCoordinates(lat, lng float64) bool {
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

// rawAddress turns a prose answer into a one-line address.
func rawAddress(query, text string) string {
	addr := strings.Join(strings.Fields(text), " ")
	if addr == "" {
		return query
	}
	const maxLen = 200
	if runes := []rune(addr); len(runes) > maxLen {
		addr = string(runes[:maxLen])
	}
	return addr
}

func cacheKey(query, hint string) string {
	return fmt.Sprintf("%s|%s", strings.ToLower(query), strings.ToLower(hint))
}
