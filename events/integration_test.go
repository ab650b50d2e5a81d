//go:build integration

package events

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/aaileenssyed/LocalFlow/itinerary"
	"github.com/nats-io/nats.go"
)

func TestNATSPublisher_Integration(t *testing.T) {
	url := os.Getenv("LOCALFLOW_NATS_URL")
	if url == "" {
		url = nats.DefaultURL
	}
	nc, err := nats.Connect(url, nats.Timeout(2*time.Second))
	if err != nil {
		t.Skipf("nats not available at %s: %v", url, err)
	}
	defer nc.Close()

	msgs := make(chan *nats.Msg, 4)
	sub, err := nc.ChanSubscribe("test.itinerary.>", msgs)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Unsubscribe()

	p := NewNATSPublisher(nc, WithSubjectPrefix("test.itinerary"))
	ev := Event{
		SessionID:  "default",
		Kind:       KindRecalculated,
		Generation: 2,
		Reason:     "Swap Joe's Pizza",
		Itinerary:  &itinerary.Itinerary{ID: "plan-2", Title: "Village Day"},
	}
	if err := p.Publish(context.Background(), ev); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if err := nc.Flush(); err != nil {
		t.Fatal(err)
	}

	select {
	case msg := <-msgs:
		if msg.Subject != "test.itinerary.updated" {
			t.Errorf("subject = %q", msg.Subject)
		}
		var got Event
		if err := json.Unmarshal(msg.Data, &got); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if got.Generation != 2 || got.Itinerary == nil || got.Itinerary.ID != "plan-2" {
			t.Errorf("unexpected event: %+v", got)
		}
		if got.Timestamp.IsZero() {
			t.Error("timestamp not set")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}
}
