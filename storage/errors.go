package storage

import "errors"

// Common storage errors.
var (
	// ErrNotFound is returned when no snapshot exists for a session.
	ErrNotFound = errors.New("session not found")

	// ErrInvalidSessionID is returned for ids that cannot be used as keys.
	ErrInvalidSessionID = errors.New("invalid session id")
)
