package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aaileenssyed/LocalFlow/itinerary"
)

func sampleSnapshot(id string) *Snapshot {
	prefs := itinerary.DefaultPreferences()
	prefs.FixedCommitments = []itinerary.FixedCommitment{
		{ID: "fc-1", StartTime: "10:00", EndTime: "11:00", Location: "MoMA", Description: "Museum"},
	}
	return &Snapshot{
		SessionID:   id,
		Preferences: prefs,
		Itinerary: &itinerary.Itinerary{
			ID:    "plan-1",
			Title: "Midtown",
			Stops: []itinerary.Stop{
				{ID: "fc-1", Name: "MoMA", IsFixed: true, StartTime: "10:00", EndTime: "11:00", Tags: []string{}},
			},
		},
		Generation: 3,
		UpdatedAt:  time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

// exerciseStore runs the contract every backend must meet.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("missing session is ErrNotFound", func(t *testing.T) {
		_, err := s.Load(ctx, "nobody")
		if !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("save then load round trips", func(t *testing.T) {
		want := sampleSnapshot("alice")
		if err := s.Save(ctx, want); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		got, err := s.Load(ctx, "alice")
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if got.Generation != 3 || got.Itinerary == nil || got.Itinerary.Stops[0].Name != "MoMA" {
			t.Errorf("unexpected snapshot: %+v", got)
		}
		if len(got.Preferences.FixedCommitments) != 1 {
			t.Errorf("expected 1 commitment, got %d", len(got.Preferences.FixedCommitments))
		}
		if !got.UpdatedAt.Equal(want.UpdatedAt) {
			t.Errorf("UpdatedAt = %v, want %v", got.UpdatedAt, want.UpdatedAt)
		}
	})

	t.Run("loaded snapshot is a copy", func(t *testing.T) {
		got, err := s.Load(ctx, "alice")
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		got.Itinerary.Stops[0].Name = "changed"
		again, _ := s.Load(ctx, "alice")
		if again.Itinerary.Stops[0].Name != "MoMA" {
			t.Error("mutating a loaded snapshot changed the store")
		}
	})

	t.Run("save overwrites and keeps nil itinerary", func(t *testing.T) {
		snap := sampleSnapshot("alice")
		snap.Itinerary = nil
		snap.Generation = 4
		if err := s.Save(ctx, snap); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		got, err := s.Load(ctx, "alice")
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		if got.Itinerary != nil || got.Generation != 4 {
			t.Errorf("expected reset snapshot, got %+v", got)
		}
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		if err := s.Delete(ctx, "alice"); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		if err := s.Delete(ctx, "alice"); err != nil {
			t.Fatalf("second Delete() error = %v", err)
		}
		if _, err := s.Load(ctx, "alice"); !errors.Is(err, ErrNotFound) {
			t.Errorf("expected ErrNotFound after delete, got %v", err)
		}
	})

	t.Run("invalid session id", func(t *testing.T) {
		err := s.Save(ctx, sampleSnapshot("../etc/passwd"))
		if !errors.Is(err, ErrInvalidSessionID) {
			t.Errorf("expected ErrInvalidSessionID, got %v", err)
		}
	})
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestFileStore(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(filepath.Join(dir, "sessions"))
	if err != nil {
		t.Fatalf("NewFileStore() error = %v", err)
	}
	exerciseStore(t, s)

	t.Run("no temp files left behind", func(t *testing.T) {
		if err := s.Save(context.Background(), sampleSnapshot("bob")); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		entries, err := os.ReadDir(filepath.Join(dir, "sessions"))
		if err != nil {
			t.Fatal(err)
		}
		if len(entries) != 1 || entries[0].Name() != "bob.json" {
			var names []string
			for _, e := range entries {
				names = append(names, e.Name())
			}
			t.Errorf("unexpected files: %v", names)
		}
	})

	t.Run("corrupt file is an error, not ErrNotFound", func(t *testing.T) {
		if err := os.WriteFile(filepath.Join(dir, "sessions", "carol.json"), []byte("{"), 0o644); err != nil {
			t.Fatal(err)
		}
		_, err := s.Load(context.Background(), "carol")
		if err == nil || errors.Is(err, ErrNotFound) {
			t.Errorf("expected decode error, got %v", err)
		}
	})
}

func TestValidateSessionID(t *testing.T) {
	tests := []struct {
		id    string
		valid bool
	}{
		{"default", true},
		{"user_42-a", true},
		{"", false},
		{"a.b", false},
		{"a/b", false},
		{"has space", false},
	}
	for _, tc := range tests {
		err := ValidateSessionID(tc.id)
		if (err == nil) != tc.valid {
			t.Errorf("ValidateSessionID(%q) error = %v, valid = %v", tc.id, err, tc.valid)
		}
	}
}
