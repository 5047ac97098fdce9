package auth

import (
	"sync"
	"time"

	dErrors "portal-gateway/pkg/domain-errors"
)

// Lockout throttles second-factor retries per username. After threshold
// consecutive failures the username is locked for the cooldown window; a
// successful verification or an elapsed window clears the count.
type Lockout struct {
	mu        sync.Mutex
	threshold int
	window    time.Duration
	entries   map[string]*lockoutEntry
	now       func() time.Time
}

type lockoutEntry struct {
	failures    int
	lastFailure time.Time
	lockedUntil time.Time
}

// stale reports whether the entry carries neither an active lock nor a
// failure recent enough to still count against the threshold.
func (e *lockoutEntry) stale(now time.Time, window time.Duration) bool {
	if e.lockedUntil.After(now) {
		return false
	}
	return now.Sub(e.lastFailure) >= window
}

// NewLockout constructs a lockout with the given threshold and window.
func NewLockout(threshold int, window time.Duration) *Lockout {
	return &Lockout{
		threshold: threshold,
		window:    window,
		entries:   make(map[string]*lockoutEntry),
		now:       time.Now,
	}
}

// Check fails with CodeRateLimited while the username is locked.
func (l *Lockout) Check(username string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.entries[username]
	if !ok {
		return nil
	}
	now := l.now()
	if entry.lockedUntil.After(now) {
		return dErrors.New(dErrors.CodeRateLimited,
			"too many failed attempts, please try again later")
	}
	if entry.stale(now, l.window) {
		delete(l.entries, username)
	}
	return nil
}

// RecordFailure counts one failed verification and locks the username once
// the threshold is reached. Failures older than the window no longer count.
func (l *Lockout) RecordFailure(username string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.entries[username]
	if !ok {
		entry = &lockoutEntry{}
		l.entries[username] = entry
	}
	now := l.now()
	if entry.stale(now, l.window) {
		entry.failures = 0
	}
	entry.failures++
	entry.lastFailure = now
	if entry.failures >= l.threshold {
		entry.lockedUntil = now.Add(l.window)
		entry.failures = 0
	}
}

// Clear resets the username after a successful verification.
func (l *Lockout) Clear(username string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.entries, username)
}

// Sweep drops entries whose lock and failure window have both elapsed,
// keeping the table bounded by recently active usernames. It returns the
// number of entries removed.
func (l *Lockout) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	removed := 0
	for username, entry := range l.entries {
		if entry.stale(now, l.window) {
			delete(l.entries, username)
			removed++
		}
	}
	return removed
}
