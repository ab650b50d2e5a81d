// Package enrich fills in coordinates for itinerary stops the generator left
// at the (0,0) sentinel.
package enrich

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/aaileenssyed/LocalFlow/itinerary"
	"github.com/aaileenssyed/LocalFlow/resolver"
	"golang.org/x/sync/errgroup"
)

// DefaultMaxConcurrency bounds in-flight resolutions per Enrich call.
const DefaultMaxConcurrency = 4

// Resolver is the lookup the pipeline fans out to. It must not fail;
// unresolvable places come back at the sentinel.
type Resolver interface {
	Resolve(ctx context.Context, query, hint string) resolver.Place
}

// Pipeline resolves unresolved stops concurrently.
type Pipeline struct {
	resolver       Resolver
	maxConcurrency int
	logger         *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithMaxConcurrency bounds concurrent resolutions. Values below 1 are ignored.
func WithMaxConcurrency(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.maxConcurrency = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// New creates a Pipeline over r.
func New(r Resolver, opts ...Option) *Pipeline {
	p := &Pipeline{
		resolver:       r,
		maxConcurrency: DefaultMaxConcurrency,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Enrich returns a copy of it in which every stop at the sentinel has been
// looked up by name near hint. Stops that already carry coordinates pass
// through unchanged. A failed lookup leaves only that stop at the sentinel.
// Every stop of the result has a non-empty address.
func (p *Pipeline) Enrich(ctx context.Context, it *itinerary.Itinerary, hint string) *itinerary.Itinerary {
	if it == nil {
		return nil
	}
	out := it.Clone()

	var g errgroup.Group
	g.SetLimit(p.maxConcurrency)

	var attempted, resolved atomic.Int32
	for i := range out.Stops {
		stop := &out.Stops[i]
		if stop.Location.IsResolved() {
			ensureAddress(stop)
			continue
		}
		attempted.Add(1)
		g.Go(func() error {
			place := p.resolver.Resolve(ctx, stop.Name, hint)
			if !place.IsSentinel() {
				stop.Location = itinerary.Location{Lat: place.Lat, Lng: place.Lng, Address: place.Address}
				resolved.Add(1)
			} else if stop.Location.Address == "" {
				stop.Location.Address = place.Address
			}
			ensureAddress(stop)
			return nil
		})
	}
	_ = g.Wait()

	if n := attempted.Load(); n > 0 {
		p.logger.Debug("Enriched itinerary",
			"itinerary_id", out.ID,
			"attempted", n,
			"resolved", resolved.Load(),
			"hint", hint)
	}
	return out
}

// ensureAddress keeps the map link constructible for every stop.
func ensureAddress(s *itinerary.Stop) {
	if s.Location.Address == "" {
		s.Location.Address = s.Name
	}
}

// Hint picks the geographic context for enriching it: the first stop's
// resolved address when there is one, else fallback.
func Hint(it *itinerary.Itinerary, fallback string) string {
	if it != nil && len(it.Stops) > 0 && it.Stops[0].Location.IsResolved() && it.Stops[0].Location.Address != "" {
		return it.Stops[0].Location.Address
	}
	return fallback
}
