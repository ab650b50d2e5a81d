package events

import (
	"context"
	"testing"
)

func TestNATSPublisher_Subject(t *testing.T) {
	tests := []struct {
		name   string
		prefix string
		kind   Kind
		want   string
	}{
		{"generated", "", KindGenerated, "localflow.itinerary.updated"},
		{"recalculated", "", KindRecalculated, "localflow.itinerary.updated"},
		{"failed", "", KindFailed, "localflow.itinerary.failed"},
		{"reset", "", KindReset, "localflow.itinerary.reset"},
		{"custom prefix", "trips.nyc", KindFailed, "trips.nyc.failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewNATSPublisher(nil, WithSubjectPrefix(tt.prefix))
			if got := p.Subject(Event{Kind: tt.kind}); got != tt.want {
				t.Errorf("Subject() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNATSPublisher_NilConnIsNoop(t *testing.T) {
	p := NewNATSPublisher(nil)
	if err := p.Publish(context.Background(), Event{SessionID: "default", Kind: KindGenerated}); err != nil {
		t.Errorf("Publish() with nil conn error = %v", err)
	}
}

func TestNoop(t *testing.T) {
	var p Publisher = Noop{}
	if err := p.Publish(context.Background(), Event{}); err != nil {
		t.Errorf("Noop.Publish() error = %v", err)
	}
}
