package sinks

import (
	"context"

	"github.com/sasha-s/go-deadlock"

	"swingy/server/logging"
)

// DefaultMemoryCapacity bounds a MemorySink enabled on a live server.
const DefaultMemoryCapacity = 4096

// MemorySink keeps the most recent events in a ring. Older events are
// overwritten once the ring is full.
type MemorySink struct {
	mu      deadlock.RWMutex
	events  []logging.Event
	start   int
	size    int
	evicted uint64
}

func NewMemorySink() *MemorySink {
	return NewBoundedMemorySink(DefaultMemoryCapacity)
}

// NewBoundedMemorySink keeps at most capacity events. Non-positive capacity
// falls back to DefaultMemoryCapacity.
func NewBoundedMemorySink(capacity int) *MemorySink {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	return &MemorySink{events: make([]logging.Event, capacity)}
}

func (s *MemorySink) Write(event logging.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	capacity := len(s.events)
	if s.size < capacity {
		s.events[(s.start+s.size)%capacity] = cloneForMemory(event)
		s.size++
		return nil
	}
	s.events[s.start] = cloneForMemory(event)
	s.start = (s.start + 1) % capacity
	s.evicted++
	return nil
}

// Events returns the retained events, oldest first.
func (s *MemorySink) Events() []logging.Event {
	return s.filter(func(logging.Event) bool { return true })
}

// EventsOfType returns the retained events matching eventType.
func (s *MemorySink) EventsOfType(eventType logging.EventType) []logging.Event {
	return s.filter(func(event logging.Event) bool { return event.Type == eventType })
}

// EventsFor returns the retained events whose actor or targets include ref.
func (s *MemorySink) EventsFor(ref logging.EntityRef) []logging.Event {
	return s.filter(func(event logging.Event) bool {
		if event.Actor == ref {
			return true
		}
		for _, target := range event.Targets {
			if target == ref {
				return true
			}
		}
		return false
	})
}

// Evicted reports how many events were overwritten by newer ones.
func (s *MemorySink) Evicted() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.evicted
}

func (s *MemorySink) filter(keep func(logging.Event) bool) []logging.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	matched := make([]logging.Event, 0, s.size)
	for i := 0; i < s.size; i++ {
		event := s.events[(s.start+i)%len(s.events)]
		if keep(event) {
			matched = append(matched, event)
		}
	}
	return matched
}

func (s *MemorySink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.events)
	s.start, s.size, s.evicted = 0, 0, 0
}

func (s *MemorySink) Close(context.Context) error {
	return nil
}

func cloneForMemory(event logging.Event) logging.Event {
	cloned := event
	if len(event.Targets) > 0 {
		cloned.Targets = append([]logging.EntityRef(nil), event.Targets...)
	}
	if event.Extra != nil {
		copied := make(map[string]any, len(event.Extra))
		for k, v := range event.Extra {
			copied[k] = v
		}
		cloned.Extra = copied
	}
	return cloned
}
