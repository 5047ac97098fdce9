package session

import (
	"context"
	"time"

	"portal-gateway/internal/domain"
)

// StateStore persists one browser's tagged state record under its opaque
// cookie ID. Implementations enforce the record TTL themselves: Find never
// returns an expired record, it reports sentinel.ErrExpired instead.
//
// Entries are keyed by an unguessable ID and are never enumerated, so one
// browser's state is invisible to every other browser.
type StateStore interface {
	Save(ctx context.Context, id string, state domain.BrowserState, ttl time.Duration) error
	Find(ctx context.Context, id string) (domain.BrowserState, error)
	Delete(ctx context.Context, id string) error
}

// Purger is implemented by stores that can enumerate and drop their expired
// records. The Redis store is not one; its keys expire server-side.
type Purger interface {
	PurgeExpired() []domain.BrowserState
}
