package session

import (
	"context"
	"testing"

	"github.com/aaileenssyed/LocalFlow/enrich"
	"github.com/aaileenssyed/LocalFlow/itinerary"
	"github.com/aaileenssyed/LocalFlow/planner/plannertest"
	"github.com/aaileenssyed/LocalFlow/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddCommitment_SortedAndResolved(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	late, err := f.engine.AddCommitment(ctx, CommitmentInput{StartTime: "19:00", EndTime: "20:00", Location: "Rainbow Room"}, false)
	require.NoError(t, err)
	early, err := f.engine.AddCommitment(ctx, CommitmentInput{StartTime: "10:00", EndTime: "11:00", Location: "MoMA", Description: "Museum"}, true)
	require.NoError(t, err)

	require.NotNil(t, early.Coordinates)
	assert.InDelta(t, 40.7614, early.Coordinates.Lat, 1e-9)
	assert.Nil(t, late.Coordinates)
	assert.Equal(t, itinerary.DefaultCommitmentDescription, late.Description)

	list := f.engine.Commitments()
	require.Len(t, list, 2)
	assert.Equal(t, []string{"MoMA", "Rainbow Room"}, []string{list[0].Location, list[1].Location})
	assert.Equal(t, list, f.engine.Preferences().FixedCommitments)

	snap, err := f.store.Load(ctx, DefaultID)
	require.NoError(t, err)
	assert.Len(t, snap.Preferences.FixedCommitments, 2)
}

func TestAddCommitment_UnresolvedIsKept(t *testing.T) {
	f := newFixture(t)
	fc, err := f.engine.AddCommitment(context.Background(), CommitmentInput{StartTime: "14:00", Location: "Grandma's place"}, true)
	require.NoError(t, err)
	assert.Nil(t, fc.Coordinates)
	assert.Equal(t, "14:00", fc.EndTime, "blank end defaults to start")
	assert.Len(t, f.engine.Commitments(), 1)
}

func TestAddCommitment_Invalid(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.AddCommitment(context.Background(), CommitmentInput{StartTime: "15:00", EndTime: "14:00", Location: "MoMA"}, false)
	assert.ErrorIs(t, err, itinerary.ErrInvalidCommitment)
	assert.Empty(t, f.engine.Commitments())
}

func TestRemoveCommitment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	fc, err := f.engine.AddCommitment(ctx, CommitmentInput{StartTime: "10:00", EndTime: "11:00", Location: "MoMA"}, false)
	require.NoError(t, err)

	require.NoError(t, f.engine.RemoveCommitment(ctx, fc.ID))
	assert.Empty(t, f.engine.Commitments())
	assert.ErrorIs(t, f.engine.RemoveCommitment(ctx, fc.ID), ErrCommitmentNotFound)
}

func TestSetPreferences(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	prefs := itinerary.DefaultPreferences()
	prefs.VibeScore = 85
	prefs.Dietary = []string{"Vegan"}
	prefs.FixedCommitments = []itinerary.FixedCommitment{
		{StartTime: "19:00", EndTime: "20:00", Location: "Comedy Cellar"},
		{ID: "keep", StartTime: "10:00", EndTime: "11:00", Location: "MoMA"},
	}
	require.NoError(t, f.engine.SetPreferences(ctx, prefs))

	got := f.engine.Preferences()
	assert.Equal(t, 85, got.VibeScore)
	require.Len(t, got.FixedCommitments, 2)
	assert.Equal(t, "keep", got.FixedCommitments[0].ID)
	assert.NotEmpty(t, got.FixedCommitments[1].ID, "missing ids are assigned")

	got.Dietary[0] = "changed"
	assert.Equal(t, []string{"Vegan"}, f.engine.Preferences().Dietary, "returned copy is detached")

	bad := itinerary.DefaultPreferences()
	bad.VibeScore = 101
	assert.ErrorIs(t, f.engine.SetPreferences(ctx, bad), itinerary.ErrInvalidPreferences)
	assert.Equal(t, 85, f.engine.Preferences().VibeScore)
}

func TestRestore(t *testing.T) {
	store := storage.NewMemoryStore()
	ctx := context.Background()

	prefs := itinerary.DefaultPreferences()
	prefs.Location = "Tokyo"
	plan := &itinerary.Itinerary{ID: "saved", Title: "Saved day"}
	require.NoError(t, store.Save(ctx, &storage.Snapshot{
		SessionID:   "trip_42",
		Preferences: prefs,
		Itinerary:   plan,
		Generation:  7,
	}))

	e := New(&plannertest.Fake{}, enrich.New(nyc), WithID("trip_42"), WithStore(store))
	require.NoError(t, e.Restore(ctx))
	assert.Equal(t, "Tokyo", e.Preferences().Location)
	require.NotNil(t, e.Current())
	assert.Equal(t, "saved", e.Current().ID)
	assert.Equal(t, uint64(7), e.Status().Generation)

	fresh := New(&plannertest.Fake{}, enrich.New(nyc), WithID("nobody"), WithStore(store))
	require.NoError(t, fresh.Restore(ctx))
	assert.Nil(t, fresh.Current())
	assert.Equal(t, itinerary.DefaultPreferences().Location, fresh.Preferences().Location)
}
