package memory

import (
	"context"
	"testing"
)

func TestPublisherStoresEvents(t *testing.T) {
	t.Parallel()

	pub := New()
	id1, err := pub.Publish(context.Background(), "enrichment-events", map[string]string{"webpageId": "wp-1"})
	if err != nil || id1 != "event-1" {
		t.Fatalf("unexpected publish result id=%s err=%v", id1, err)
	}
	id2, err := pub.Publish(context.Background(), "enrichment-events", map[string]string{"webpageId": "wp-2"})
	if err != nil || id2 != "event-2" {
		t.Fatalf("unexpected publish result id=%s err=%v", id2, err)
	}

	events := pub.Events()
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].Topic != "enrichment-events" {
		t.Fatalf("topic not recorded correctly: %+v", events)
	}
	if pub.Count() != 2 {
		t.Fatalf("expected count 2, got %d", pub.Count())
	}

	events[0].Topic = "modified"
	if pub.Events()[0].Topic == "modified" {
		t.Fatal("expected Events() to return a copy")
	}
}
