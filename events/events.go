// Package events announces itinerary changes to other processes.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aaileenssyed/LocalFlow/itinerary"
	"github.com/nats-io/nats.go"
)

// Subjects for itinerary change events.
const (
	DefaultSubjectPrefix = "localflow.itinerary"
	SuffixUpdated        = "updated"
	SuffixFailed         = "failed"
	SuffixReset          = "reset"
)

// Kind says what happened to the session's itinerary.
type Kind string

// Event kinds.
const (
	KindGenerated    Kind = "generated"
	KindRecalculated Kind = "recalculated"
	KindFailed       Kind = "failed"
	KindReset        Kind = "reset"
)

// Event is the message published for each change.
type Event struct {
	SessionID  string               `json:"session_id"`
	Kind       Kind                 `json:"kind"`
	Generation uint64               `json:"generation"`
	Reason     string               `json:"reason,omitempty"`
	Error      string               `json:"error,omitempty"`
	Itinerary  *itinerary.Itinerary `json:"itinerary,omitempty"`
	Timestamp  time.Time            `json:"timestamp"`
}

// Publisher delivers events. Publishing is best effort; callers log failures
// and carry on.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Noop discards every event.
type Noop struct{}

// Publish implements Publisher.
func (Noop) Publish(context.Context, Event) error { return nil }

// NATSPublisher publishes events as JSON on core NATS subjects
// "<prefix>.updated", "<prefix>.failed" and "<prefix>.reset".
type NATSPublisher struct {
	conn   *nats.Conn
	prefix string
	logger *slog.Logger
}

// NATSOption configures a NATSPublisher.
type NATSOption func(*NATSPublisher)

// WithSubjectPrefix overrides DefaultSubjectPrefix.
func WithSubjectPrefix(prefix string) NATSOption {
	return func(p *NATSPublisher) {
		if prefix != "" {
			p.prefix = prefix
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) NATSOption {
	return func(p *NATSPublisher) {
		p.logger = logger
	}
}

// NewNATSPublisher wraps conn. A nil conn publishes nothing.
func NewNATSPublisher(conn *nats.Conn, opts ...NATSOption) *NATSPublisher {
	p := &NATSPublisher{
		conn:   conn,
		prefix: DefaultSubjectPrefix,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Subject returns the subject ev is published on.
func (p *NATSPublisher) Subject(ev Event) string {
	suffix := SuffixUpdated
	switch ev.Kind {
	case KindFailed:
		suffix = SuffixFailed
	case KindReset:
		suffix = SuffixReset
	}
	return p.prefix + "." + suffix
}

// Publish implements Publisher.
func (p *NATSPublisher) Publish(ctx context.Context, ev Event) error {
	if p.conn == nil {
		return nil // no connection configured
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	subject := p.Subject(ev)
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	p.logger.Debug("Published itinerary event",
		"subject", subject,
		"session_id", ev.SessionID,
		"kind", ev.Kind,
		"generation", ev.Generation)
	return nil
}
