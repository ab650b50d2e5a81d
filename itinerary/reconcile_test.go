package itinerary

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flexStop(id, name, start, end string) Stop {
	return Stop{
		ID:                id,
		Name:              name,
		StartTime:         start,
		EndTime:           end,
		Type:              ActivityFood,
		AuthenticityScore: 8,
		InstagramScore:    6,
		EstimatedCost:     "$$",
		Location:          Location{Address: name},
		TravelToNext:      &Travel{Mode: TravelWalking, Duration: "10 mins"},
		Tags:              []string{"local"},
	}
}

func fixedStop(id, name, start, end string) Stop {
	s := flexStop(id, name, start, end)
	s.IsFixed = true
	s.Type = ActivityCommitment
	return s
}

func dayBounds(t *testing.T) *Window {
	t.Helper()
	w, err := ParseWindow("09:00", "22:00")
	require.NoError(t, err)
	return &w
}

func threeCommitments() []Stop {
	return FixedStopsFromCommitments([]FixedCommitment{
		{ID: "fc-1", StartTime: "10:00", EndTime: "11:00", Location: "MoMA", Description: "Tickets"},
		{ID: "fc-2", StartTime: "13:00", EndTime: "14:00", Location: "Katz's Delicatessen", Description: "Lunch with Sam"},
		{ID: "fc-3", StartTime: "19:00", EndTime: "19:00", Location: "Rainbow Room", Description: "Drinks", Coordinates: &Coordinates{Lat: 40.759, Lng: -73.979}},
	})
}

func TestReconcile_KeepsCommitmentsAndOrders(t *testing.T) {
	plan := &Itinerary{
		Title: "A Day in Midtown",
		Stops: []Stop{
			flexStop("s3", "Joe's Pizza", "14:15", "15:00"),
			fixedStop("g1", "MoMA", "10:00", "11:00"),
			flexStop("s1", "Russ & Daughters", "09:00", "09:45"),
			fixedStop("g2", "Katz's", "13:00", "14:00"),
			fixedStop("g3", "Rainbow Room", "19:00", "19:00"),
			flexStop("s4", "Top of the Rock", "19:30", "21:00"),
		},
	}

	got, report, err := Reconcile(plan, Constraints{Fixed: threeCommitments(), Bounds: dayBounds(t)})
	require.NoError(t, err)
	assert.False(t, report.Changed())

	assert.Equal(t,
		[]string{"Russ & Daughters", "MoMA", "Katz's", "Joe's Pizza", "Rainbow Room", "Top of the Rock"},
		got.StopNames())
	require.NoError(t, CheckTimeline(got.Stops))

	fixed := got.FixedStops()
	require.Len(t, fixed, 3)
	assert.Equal(t, "fc-1", fixed[0].ID, "fixed stops carry the commitment id")
	assert.Equal(t, "fc-2", fixed[1].ID)
	assert.Equal(t, "Lunch with Sam", fixed[1].Description, "commitment description fills the gap")
	assert.InDelta(t, 40.759, fixed[2].Location.Lat, 1e-9, "resolved commitment coordinates win")

	assert.Nil(t, got.Stops[len(got.Stops)-1].TravelToNext, "last stop has no onward travel")
	assert.Len(t, plan.Stops, 6, "input is not modified")
	assert.Equal(t, "Joe's Pizza", plan.Stops[0].Name)
}

func TestReconcile_RestoresRetimedFixedStop(t *testing.T) {
	plan := &Itinerary{
		Title: "Shifted",
		Stops: []Stop{
			fixedStop("fc-1", "MoMA", "10:30", "11:30"),
			fixedStop("g2", "Katz's Delicatessen", "13:00", "14:00"),
			fixedStop("g3", "Rainbow Room", "19:00", "19:00"),
		},
	}

	got, report, err := Reconcile(plan, Constraints{Fixed: threeCommitments(), Bounds: dayBounds(t)})
	require.NoError(t, err)
	assert.Equal(t, []string{"MoMA"}, report.Restored)
	assert.Equal(t, "10:00", got.Stops[0].StartTime)
	assert.Equal(t, "11:00", got.Stops[0].EndTime)
}

func TestReconcile_PrunesFlexibleStops(t *testing.T) {
	plan := &Itinerary{
		Title: "Too much",
		Stops: []Stop{
			flexStop("early", "Sunrise Bagels", "07:00", "08:00"),
			fixedStop("g1", "MoMA", "10:00", "11:00"),
			flexStop("clash", "Bryant Park", "10:30", "11:30"),
			fixedStop("g2", "Katz's Delicatessen", "13:00", "14:00"),
			flexStop("ok", "Joe's Pizza", "14:00", "15:00"),
			flexStop("double", "Washington Square", "14:30", "15:30"),
			flexStop("instant", "Flatiron Photo", "19:00", "19:00"),
			fixedStop("g3", "Rainbow Room", "19:00", "19:00"),
			flexStop("late", "Comedy Cellar", "21:30", "23:00"),
		},
	}

	got, report, err := Reconcile(plan, Constraints{Fixed: threeCommitments(), Bounds: dayBounds(t)})
	require.NoError(t, err)

	assert.Equal(t, []string{"MoMA", "Katz's Delicatessen", "Joe's Pizza", "Rainbow Room"}, got.StopNames())
	assert.ElementsMatch(t, []string{
		"Sunrise Bagels (outside trip bounds)",
		"Bryant Park (overlaps a fixed stop)",
		"Washington Square (overlaps another stop)",
		"Flatiron Photo (overlaps a fixed stop)",
		"Comedy Cellar (outside trip bounds)",
	}, report.Pruned)
	require.NoError(t, CheckTimeline(got.Stops))
}

func TestReconcile_FixedViolations(t *testing.T) {
	tests := []struct {
		name  string
		stops []Stop
	}{
		{
			name: "dropped commitment",
			stops: []Stop{
				fixedStop("g1", "MoMA", "10:00", "11:00"),
				fixedStop("g3", "Rainbow Room", "19:00", "19:00"),
			},
		},
		{
			name: "invented fixed stop",
			stops: []Stop{
				fixedStop("g1", "MoMA", "10:00", "11:00"),
				fixedStop("g2", "Katz's Delicatessen", "13:00", "14:00"),
				fixedStop("g3", "Rainbow Room", "19:00", "19:00"),
				fixedStop("g4", "Broadway Show", "20:00", "22:00"),
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := &Itinerary{Title: "Broken", Stops: tt.stops}
			_, _, err := Reconcile(plan, Constraints{Fixed: threeCommitments(), Bounds: dayBounds(t)})
			assert.ErrorIs(t, err, ErrFixedStopViolation)
		})
	}
}

func TestReconcile_PromotesUnflaggedCommitment(t *testing.T) {
	tests := []struct {
		name string
		stop Stop
	}{
		{"same id", flexStop("fc-1", "Museum of Modern Art", "10:15", "11:15")},
		{"same window", flexStop("g1", "MoMA", "10:00", "11:00")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plan := &Itinerary{
				Title: "Unflagged",
				Stops: []Stop{
					tt.stop,
					fixedStop("g2", "Katz's Delicatessen", "13:00", "14:00"),
					fixedStop("g3", "Rainbow Room", "19:00", "19:00"),
				},
			}

			got, report, err := Reconcile(plan, Constraints{Fixed: threeCommitments(), Bounds: dayBounds(t)})
			require.NoError(t, err)
			assert.Equal(t, []string{"MoMA"}, report.Promoted)
			assert.True(t, report.Changed())
			assert.Empty(t, report.Pruned, "the promoted stop is not also pruned as an overlap")

			require.Len(t, got.Stops, 3)
			moma := got.Stops[0]
			assert.True(t, moma.IsFixed)
			assert.Equal(t, "fc-1", moma.ID)
			assert.Equal(t, "10:00", moma.StartTime)
			assert.Equal(t, "11:00", moma.EndTime)
			assert.False(t, plan.Stops[0].IsFixed, "input is not modified")
		})
	}
}

func TestReconcile_UnreachableOverride(t *testing.T) {
	current := threeCommitments()
	plan := &Itinerary{
		Title:       "Running late",
		Unreachable: []string{"moma"},
		Stops: []Stop{
			fixedStop("g2", "Katz's Delicatessen", "13:00", "14:00"),
			fixedStop("g3", "Rainbow Room", "19:00", "19:00"),
		},
	}

	_, _, err := Reconcile(plan, Constraints{Fixed: current})
	require.ErrorIs(t, err, ErrFixedStopViolation, "override applies only when allowed")

	got, report, err := Reconcile(plan, Constraints{Fixed: current, AllowUnreachable: true, KeepFixedDetail: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"MoMA"}, report.Dropped)
	require.Len(t, got.Warnings, 1)
	assert.Contains(t, got.Warnings[0], "MoMA")
	assert.Len(t, got.FixedStops(), 2)
}

func TestReconcile_KeepFixedDetail(t *testing.T) {
	prior := fixedStop("fc-1", "MoMA", "10:00", "11:00")
	prior.Description = "Enriched description"
	prior.Location = Location{Lat: 40.76, Lng: -73.97, Address: "11 W 53rd St"}

	generated := fixedStop("fc-1", "MoMA", "10:00", "11:00")
	generated.Description = "Rewritten by the generator"
	generated.TravelToNext = &Travel{Mode: TravelTaxi, Duration: "5 mins"}

	plan := &Itinerary{Title: "Recalc", Stops: []Stop{generated, flexStop("s1", "Halal Guys", "11:30", "12:00")}}
	got, _, err := Reconcile(plan, Constraints{Fixed: []Stop{prior}, KeepFixedDetail: true})
	require.NoError(t, err)

	assert.Equal(t, "Enriched description", got.Stops[0].Description)
	assert.Equal(t, "11 W 53rd St", got.Stops[0].Location.Address)
	require.NotNil(t, got.Stops[0].TravelToNext)
	assert.Equal(t, TravelTaxi, got.Stops[0].TravelToNext.Mode)
}

func TestReconcile_RejectsMalformed(t *testing.T) {
	bad := flexStop("s1", "Joe's Pizza", "14:00", "15:00")
	bad.AuthenticityScore = 11
	_, _, err := Reconcile(&Itinerary{Title: "x", Stops: []Stop{bad}}, Constraints{})
	assert.ErrorIs(t, err, ErrMalformedStop)
}

func TestReconcile_AuthenticityFloor(t *testing.T) {
	touristy := flexStop("s2", "Times Square", "15:00", "16:00")
	touristy.AuthenticityScore = 3
	fixed := threeCommitments()
	fixed[1].AuthenticityScore = 2

	plan := &Itinerary{
		Title: "Locals only",
		Stops: []Stop{
			flexStop("s1", "Russ & Daughters", "09:00", "09:45"),
			fixedStop("g1", "MoMA", "10:00", "11:00"),
			fixedStop("g2", "Katz's Delicatessen", "13:00", "14:00"),
			touristy,
			fixedStop("g3", "Rainbow Room", "19:00", "19:00"),
		},
	}
	plan.Stops[2].AuthenticityScore = 2

	got, report, err := Reconcile(plan, Constraints{Fixed: fixed, Bounds: dayBounds(t), MinAuthenticity: MinAuthenticityScore})
	require.NoError(t, err)

	assert.Equal(t, []string{"Russ & Daughters", "MoMA", "Katz's Delicatessen", "Rainbow Room"}, got.StopNames())
	assert.Equal(t, []string{"Times Square (below the authenticity floor)"}, report.Pruned)
}
