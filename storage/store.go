// Package storage persists session snapshots: the user's preferences and the
// itinerary currently installed for them.
package storage

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/aaileenssyed/LocalFlow/itinerary"
)

// Snapshot is everything needed to restore a session.
type Snapshot struct {
	SessionID   string                    `json:"session_id"`
	Preferences itinerary.UserPreferences `json:"preferences"`
	// Itinerary is nil when no plan has been generated or it was reset.
	Itinerary *itinerary.Itinerary `json:"itinerary,omitempty"`
	// Generation is the session's install counter when the snapshot was taken.
	Generation uint64    `json:"generation"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Store persists snapshots keyed by session id.
type Store interface {
	// Load returns the snapshot for id, or ErrNotFound.
	Load(ctx context.Context, id string) (*Snapshot, error)
	// Save replaces the snapshot for snap.SessionID.
	Save(ctx context.Context, snap *Snapshot) error
	// Delete removes the snapshot for id. Deleting a missing id is not an error.
	Delete(ctx context.Context, id string) error
}

var sessionIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// ValidateSessionID reports whether id is usable as a key in every backend.
func ValidateSessionID(id string) error {
	if !sessionIDPattern.MatchString(id) {
		return fmt.Errorf("%w: %q", ErrInvalidSessionID, id)
	}
	return nil
}

func prepare(snap *Snapshot) error {
	if snap == nil {
		return fmt.Errorf("nil snapshot")
	}
	if err := ValidateSessionID(snap.SessionID); err != nil {
		return err
	}
	if snap.UpdatedAt.IsZero() {
		snap.UpdatedAt = time.Now()
	}
	return nil
}
