package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/aaileenssyed/LocalFlow/events"
	"github.com/aaileenssyed/LocalFlow/storage"
)

// Restore loads the session's last snapshot from the store. A session with
// no snapshot keeps its current state.
func (e *Engine) Restore(ctx context.Context) error {
	if e.store == nil {
		return nil
	}
	snap, err := e.store.Load(ctx, e.id)
	if errors.Is(err, storage.ErrNotFound) {
		e.logger.Debug("No stored session")
		return nil
	}
	if err != nil {
		return fmt.Errorf("restore session %s: %w", e.id, err)
	}

	e.mu.Lock()
	e.setPreferencesLocked(snap.Preferences)
	e.current.Store(snap.Itinerary)
	e.generation = snap.Generation
	e.setStateLocked(StateStable)
	e.mu.Unlock()

	e.logger.Info("Session restored",
		"generation", snap.Generation,
		"has_itinerary", snap.Itinerary != nil,
		"updated_at", snap.UpdatedAt)
	return nil
}

func (e *Engine) snapshotLocked() *storage.Snapshot {
	return &storage.Snapshot{
		SessionID:   e.id,
		Preferences: e.preferencesLocked(),
		Itinerary:   e.current.Load(),
		Generation:  e.generation,
		UpdatedAt:   e.now(),
	}
}

// persist saves snap. Storage failures are logged; the in-memory session
// stays authoritative.
func (e *Engine) persist(ctx context.Context, snap *storage.Snapshot) {
	if e.store == nil {
		return
	}
	if err := e.store.Save(ctx, snap); err != nil {
		e.logger.Warn("Failed to save session", "generation", snap.Generation, "error", err)
	}
}

func (e *Engine) publish(ctx context.Context, ev events.Event) {
	ev.SessionID = e.id
	ev.Timestamp = e.now()
	if err := e.publisher.Publish(ctx, ev); err != nil {
		e.logger.Warn("Failed to publish event", "kind", ev.Kind, "error", err)
	}
}
