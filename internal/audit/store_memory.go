package audit

import (
	"context"
	"sync"
)

// MemoryStore keeps recent events in memory for the admin audit view. It is
// bounded; the durable trail lives in the file, Postgres, or Kafka sinks.
type MemoryStore struct {
	mu     sync.RWMutex
	events []Event
	limit  int
}

// NewMemoryStore constructs a store retaining at most limit events.
func NewMemoryStore(limit int) *MemoryStore {
	if limit <= 0 {
		limit = 1000
	}
	return &MemoryStore{limit: limit}
}

func (s *MemoryStore) Append(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	if len(s.events) > s.limit {
		s.events = s.events[len(s.events)-s.limit:]
	}
	return nil
}

// ListRecent returns up to n events, newest first.
func (s *MemoryStore) ListRecent(_ context.Context, n int) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n > len(s.events) {
		n = len(s.events)
	}
	recent := make([]Event, 0, n)
	for i := len(s.events) - 1; i >= len(s.events)-n; i-- {
		recent = append(recent, s.events[i])
	}
	return recent, nil
}
