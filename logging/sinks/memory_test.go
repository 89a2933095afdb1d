package sinks

import (
	"testing"

	"swingy/server/logging"
)

func TestMemorySinkEventsOfType(t *testing.T) {
	sink := NewMemorySink()
	sink.Write(logging.Event{Type: "a"})
	sink.Write(logging.Event{Type: "b"})
	sink.Write(logging.Event{Type: "a"})
	if got := len(sink.EventsOfType("a")); got != 2 {
		t.Fatalf("expected 2 events of type a, got %d", got)
	}
	sink.Reset()
	if len(sink.Events()) != 0 {
		t.Fatalf("expected reset to clear events")
	}
}

func TestMemorySinkRingKeepsNewest(t *testing.T) {
	sink := NewBoundedMemorySink(3)
	for tick := uint64(1); tick <= 5; tick++ {
		sink.Write(logging.Event{Type: "tick", Tick: tick})
	}
	events := sink.Events()
	if len(events) != 3 {
		t.Fatalf("expected 3 retained events, got %d", len(events))
	}
	for i, want := range []uint64{3, 4, 5} {
		if events[i].Tick != want {
			t.Fatalf("expected tick %d at %d, got %d", want, i, events[i].Tick)
		}
	}
	if sink.Evicted() != 2 {
		t.Fatalf("expected 2 evictions, got %d", sink.Evicted())
	}
}

func TestMemorySinkEventsFor(t *testing.T) {
	player := logging.EntityRef{ID: "7", Kind: logging.EntityKindPlayer}
	demon := logging.EntityRef{ID: "demon", Kind: logging.EntityKindDemon}
	sink := NewMemorySink()
	sink.Write(logging.Event{Type: "combat.damage", Actor: demon, Targets: []logging.EntityRef{player}})
	sink.Write(logging.Event{Type: "combat.damage", Actor: player, Targets: []logging.EntityRef{demon}})
	sink.Write(logging.Event{Type: "lifecycle.player_joined", Actor: logging.EntityRef{ID: "8", Kind: logging.EntityKindPlayer}})

	if got := len(sink.EventsFor(player)); got != 2 {
		t.Fatalf("expected 2 events involving player 7, got %d", got)
	}
	if got := len(sink.EventsFor(logging.EntityRef{ID: "9", Kind: logging.EntityKindPlayer})); got != 0 {
		t.Fatalf("expected no events for an unknown player, got %d", got)
	}
}

func TestMemorySinkCopiesExtra(t *testing.T) {
	sink := NewMemorySink()
	extra := map[string]any{"k": 1}
	sink.Write(logging.Event{Type: "x", Extra: extra})
	extra["k"] = 2
	if got := sink.Events()[0].Extra["k"]; got != 1 {
		t.Fatalf("expected stored extra to be isolated, got %v", got)
	}
}
