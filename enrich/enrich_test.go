package enrich

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aaileenssyed/LocalFlow/itinerary"
	"github.com/aaileenssyed/LocalFlow/resolver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeResolver knows a fixed set of places and fails on everything else.
type fakeResolver struct {
	known map[string]resolver.Place
	delay time.Duration

	mu       sync.Mutex
	queries  []string
	hints    []string
	inFlight atomic.Int32
	peak     atomic.Int32
}

func (f *fakeResolver) Resolve(_ context.Context, query, hint string) resolver.Place {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}

	f.mu.Lock()
	f.queries = append(f.queries, query)
	f.hints = append(f.hints, hint)
	f.mu.Unlock()

	if p, ok := f.known[query]; ok {
		return p
	}
	return resolver.Sentinel(query)
}

func (f *fakeResolver) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

func plan() *itinerary.Itinerary {
	return &itinerary.Itinerary{
		ID:    "plan-1",
		Title: "Village Day",
		Stops: []itinerary.Stop{
			{ID: "fc-1", Name: "MoMA", IsFixed: true, StartTime: "10:00", EndTime: "11:00",
				Location: itinerary.Location{Lat: 40.7614, Lng: -73.9776, Address: "11 W 53rd St, New York"}},
			{ID: "s1", Name: "Joe's Pizza", StartTime: "12:00", EndTime: "12:45"},
			{ID: "s2", Name: "Atlantis", StartTime: "13:00", EndTime: "14:00",
				Location: itinerary.Location{Address: "Somewhere under the sea"}},
			{ID: "s3", Name: "Washington Square Park", StartTime: "15:00", EndTime: "16:00"},
		},
	}
}

func knownPlaces() map[string]resolver.Place {
	return map[string]resolver.Place{
		"Joe's Pizza":            {Name: "Joe's Pizza", Address: "7 Carmine St, New York", Lat: 40.7305, Lng: -74.0021},
		"Washington Square Park": {Name: "Washington Square Park", Address: "Washington Sq, New York", Lat: 40.7308, Lng: -73.9973},
		"MoMA":                   {Name: "MoMA", Address: "wrong", Lat: 1, Lng: 1},
	}
}

func TestEnrich_ResolvesOnlySentinelStops(t *testing.T) {
	r := &fakeResolver{known: knownPlaces()}
	in := plan()
	before := in.Clone()

	out := New(r).Enrich(context.Background(), in, "New York, NY")

	assert.Equal(t, before, in, "input is not modified")
	assert.ElementsMatch(t, []string{"Joe's Pizza", "Atlantis", "Washington Square Park"}, r.calls())
	for _, h := range r.hints {
		assert.Equal(t, "New York, NY", h)
	}

	assert.Equal(t, in.Stops[0].Location, out.Stops[0].Location, "pre-resolved fixed stop passes through")
	assert.Equal(t, "7 Carmine St, New York", out.Stops[1].Location.Address)
	assert.InDelta(t, 40.7305, out.Stops[1].Location.Lat, 1e-9)

	assert.False(t, out.Stops[2].Location.IsResolved(), "failed lookup degrades only that stop")
	assert.Equal(t, "Somewhere under the sea", out.Stops[2].Location.Address)
	assert.True(t, out.Stops[3].Location.IsResolved())
}

func TestEnrich_EveryStopHasAnAddress(t *testing.T) {
	r := &fakeResolver{known: map[string]resolver.Place{}}
	in := plan()
	in.Stops[0].Location.Address = ""

	out := New(r).Enrich(context.Background(), in, "")
	for _, s := range out.Stops {
		assert.NotEmpty(t, s.Location.Address, s.Name)
		assert.NotEmpty(t, itinerary.DirectionsURL(nil, s))
	}
	assert.Equal(t, "MoMA", out.Stops[0].Location.Address)
	assert.Equal(t, "Joe's Pizza", out.Stops[1].Location.Address)
}

func TestEnrich_Idempotent(t *testing.T) {
	r := &fakeResolver{known: knownPlaces()}
	p := New(r)

	once := p.Enrich(context.Background(), plan(), "New York, NY")
	callsAfterOnce := len(r.calls())
	twice := p.Enrich(context.Background(), once, "New York, NY")

	assert.Equal(t, once, twice)
	assert.Equal(t, callsAfterOnce+1, len(r.calls()), "only the still-unresolved stop is retried")
	assert.Equal(t, "Atlantis", r.calls()[callsAfterOnce])
}

func TestEnrich_BoundedConcurrency(t *testing.T) {
	r := &fakeResolver{known: map[string]resolver.Place{}, delay: 10 * time.Millisecond}
	it := &itinerary.Itinerary{Title: "Busy"}
	for i := 0; i < 12; i++ {
		it.Stops = append(it.Stops, itinerary.Stop{ID: strings.Repeat("s", i+1), Name: strings.Repeat("x", i+1)})
	}

	out := New(r, WithMaxConcurrency(3)).Enrich(context.Background(), it, "")
	require.Len(t, out.Stops, 12)
	assert.Len(t, r.calls(), 12)
	assert.LessOrEqual(t, r.peak.Load(), int32(3))
	assert.Greater(t, r.peak.Load(), int32(1), "lookups run concurrently")
}

func TestHint(t *testing.T) {
	it := plan()
	assert.Equal(t, "11 W 53rd St, New York", Hint(it, "New York, NY"))

	it.Stops[0].Location = itinerary.Location{Address: "MoMA"}
	assert.Equal(t, "New York, NY", Hint(it, "New York, NY"), "unresolved first stop falls back")
	assert.Equal(t, "New York, NY", Hint(nil, "New York, NY"))
	assert.Equal(t, "Paris", Hint(&itinerary.Itinerary{}, "Paris"))
}
