package ingest

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/snarg/clip-engine/internal/api"
)

func TestEventBusPublishSubscribe(t *testing.T) {
	t.Run("subscriber_receives_published_event", func(t *testing.T) {
		eb := NewEventBus(64)
		ch, cancel := eb.Subscribe(api.EventFilter{})
		defer cancel()

		eb.Publish(EventData{
			Type:     "transcription.completed",
			SourceID: "src-1",
			Payload:  map[string]string{"msg": "hello"},
		})

		select {
		case evt := <-ch:
			if evt.Type != "transcription.completed" {
				t.Errorf("Type = %q, want transcription.completed", evt.Type)
			}
			if evt.SourceID != "src-1" {
				t.Errorf("SourceID = %q, want src-1", evt.SourceID)
			}
			if evt.ID == "" {
				t.Error("expected non-empty event ID")
			}
			var payload map[string]string
			if err := json.Unmarshal(evt.Data, &payload); err != nil {
				t.Fatalf("Data is not valid JSON: %v", err)
			}
			if payload["msg"] != "hello" {
				t.Errorf("payload msg = %q, want hello", payload["msg"])
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for event")
		}
	})

	t.Run("filtered_subscriber_misses_non_matching", func(t *testing.T) {
		eb := NewEventBus(64)
		ch, cancel := eb.Subscribe(api.EventFilter{Types: []string{"render.completed"}})
		defer cancel()

		eb.Publish(EventData{Type: "transcription.started", Payload: "x"})

		select {
		case evt := <-ch:
			t.Fatalf("should not receive event, got %+v", evt)
		case <-time.After(50 * time.Millisecond):
			// expected
		}
	})

	t.Run("source_filter", func(t *testing.T) {
		eb := NewEventBus(64)
		ch, cancel := eb.Subscribe(api.EventFilter{Sources: []string{"src-2"}})
		defer cancel()

		eb.Publish(EventData{Type: "transcription.started", SourceID: "src-1", Payload: "x"})
		eb.Publish(EventData{Type: "transcription.started", SourceID: "src-2", Payload: "y"})

		select {
		case evt := <-ch:
			if evt.SourceID != "src-2" {
				t.Errorf("SourceID = %q, want src-2", evt.SourceID)
			}
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for filtered event")
		}
	})

	t.Run("cancel_stops_delivery", func(t *testing.T) {
		eb := NewEventBus(64)
		ch, cancel := eb.Subscribe(api.EventFilter{})
		cancel()

		eb.Publish(EventData{Type: "transcription.started", Payload: "x"})

		select {
		case _, ok := <-ch:
			if ok {
				t.Fatal("should not receive event after cancel")
			}
		case <-time.After(50 * time.Millisecond):
			// expected: channel not closed, just removed from the map
		}
	})
}

func TestEventBusReplaySince(t *testing.T) {
	eb := NewEventBus(8)

	var ids []string
	for i := 0; i < 4; i++ {
		eb.Publish(EventData{Type: "transcription.completed", SourceID: fmt.Sprintf("src-%d", i), Payload: i})
	}
	for _, e := range eb.ReplaySince("", api.EventFilter{}) {
		ids = append(ids, e.ID)
	}
	if len(ids) != 4 {
		t.Fatalf("buffered events = %d, want 4", len(ids))
	}

	// Replay after the second event yields the last two.
	replayed := eb.ReplaySince(ids[1], api.EventFilter{})
	if len(replayed) != 2 {
		t.Fatalf("replayed = %d, want 2", len(replayed))
	}
	if replayed[0].ID != ids[2] || replayed[1].ID != ids[3] {
		t.Errorf("replay order wrong: %v vs want [%s %s]", replayed, ids[2], ids[3])
	}
}

func TestEventBusRingOverwrite(t *testing.T) {
	eb := NewEventBus(4)
	for i := 0; i < 10; i++ {
		eb.Publish(EventData{Type: "transcription.completed", Payload: i})
	}

	events := eb.ReplaySince("", api.EventFilter{})
	if len(events) != 4 {
		t.Errorf("ring retained %d events, want 4", len(events))
	}
}
