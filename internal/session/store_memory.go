package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"portal-gateway/internal/domain"
	"portal-gateway/pkg/platform/sentinel"
)

type memoryEntry struct {
	state     domain.BrowserState
	expiresAt time.Time
}

// MemoryStore keeps browser state in memory. Suitable for a single instance;
// deployments with more than one gateway use the Redis store.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryStore constructs an empty in-memory state store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry), now: time.Now}
}

func (s *MemoryStore) Save(_ context.Context, id string, state domain.BrowserState, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[id] = memoryEntry{state: state, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *MemoryStore) Find(_ context.Context, id string) (domain.BrowserState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[id]
	if !ok {
		return domain.BrowserState{}, fmt.Errorf("browser state %q: %w", id, sentinel.ErrNotFound)
	}
	if !s.now().Before(entry.expiresAt) {
		// Left in place for the purge sweep, which settles the gauges.
		return domain.BrowserState{}, fmt.Errorf("browser state %q: %w", id, sentinel.ErrExpired)
	}
	return entry.state, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
	return nil
}

// PurgeExpired drops every expired entry and returns the removed records so
// the caller can account for them. The server runs this periodically so
// abandoned flows do not accumulate.
func (s *MemoryStore) PurgeExpired() []domain.BrowserState {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	var purged []domain.BrowserState
	for id, entry := range s.entries {
		if !now.Before(entry.expiresAt) {
			delete(s.entries, id)
			purged = append(purged, entry.state)
		}
	}
	return purged
}
