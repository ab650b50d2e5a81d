package client

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/aaileenssyed/LocalFlow/events"
	"github.com/nats-io/nats.go"
)

// NATSClient observes the server's itinerary events.
type NATSClient struct {
	nc     *nats.Conn
	closed bool
	mu     sync.Mutex
}

// NewNATSClient connects to natsURL.
func NewNATSClient(ctx context.Context, natsURL string) (*NATSClient, error) {
	timeout := 10 * time.Second
	if deadline, ok := ctx.Deadline(); ok {
		timeout = min(timeout, time.Until(deadline))
	}

	nc, err := nats.Connect(natsURL,
		nats.Name("localflow-e2e"),
		nats.MaxReconnects(5),
		nats.ReconnectWait(time.Second),
		nats.Timeout(timeout),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return &NATSClient{nc: nc}, nil
}

// Close closes the connection. It is safe to call more than once.
func (c *NATSClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	c.nc.Close()
}

// IsConnected returns true if the client is connected to NATS.
func (c *NATSClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed && c.nc.IsConnected()
}

// EventCapture collects itinerary events from a subject.
type EventCapture struct {
	sub    *nats.Subscription
	events []events.Event
	bad    int
	mu     sync.Mutex
}

// CaptureEvents starts capturing events published on subject, which may be
// a wildcard. The caller MUST call Stop() when done.
func (c *NATSClient) CaptureEvents(subject string) (*EventCapture, error) {
	capture := &EventCapture{}

	sub, err := c.nc.Subscribe(subject, func(msg *nats.Msg) {
		var ev events.Event
		capture.mu.Lock()
		defer capture.mu.Unlock()
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			capture.bad++
			return
		}
		capture.events = append(capture.events, ev)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe to %s: %w", subject, err)
	}
	// Make sure the server knows about the subscription before the caller
	// triggers anything.
	if err := c.nc.Flush(); err != nil {
		_ = sub.Unsubscribe()
		return nil, fmt.Errorf("flush subscription: %w", err)
	}

	capture.sub = sub
	return capture, nil
}

// Events returns a copy of the captured events.
func (ec *EventCapture) Events() []events.Event {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	return append([]events.Event(nil), ec.events...)
}

// Undecodable returns the number of messages that were not events.
func (ec *EventCapture) Undecodable() int {
	ec.mu.Lock()
	defer ec.mu.Unlock()
	return ec.bad
}

// WaitForKind waits for the first event of kind and returns it.
func (ec *EventCapture) WaitForKind(ctx context.Context, kind events.Kind) (events.Event, error) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		for _, ev := range ec.Events() {
			if ev.Kind == kind {
				return ev, nil
			}
		}
		select {
		case <-ctx.Done():
			return events.Event{}, fmt.Errorf("waiting for %s event: %w", kind, ctx.Err())
		case <-ticker.C:
		}
	}
}

// Stop stops capturing.
func (ec *EventCapture) Stop() error {
	if ec.sub != nil {
		return ec.sub.Unsubscribe()
	}
	return nil
}
