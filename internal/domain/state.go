package domain

import "time"

// StateKind discriminates the record kept under one browser's opaque cookie
// ID. Anonymous browsers simply have no record.
type StateKind string

const (
	KindPending       StateKind = "pending"
	KindAuthenticated StateKind = "authenticated"
)

// BrowserState is the tagged record stored server-side per cookie ID. Exactly
// one of Pending or Session is populated, matching Kind; the constructors keep
// a session-without-second-factor unrepresentable.
type BrowserState struct {
	Kind    StateKind              `json:"kind"`
	Pending *PendingAuthentication `json:"pending,omitempty"`
	Session *Session               `json:"session,omitempty"`
}

// PendingState wraps a pending authentication for storage.
func PendingState(p PendingAuthentication) BrowserState {
	return BrowserState{Kind: KindPending, Pending: &p}
}

// AuthenticatedState wraps an issued session for storage.
func AuthenticatedState(s Session) BrowserState {
	return BrowserState{Kind: KindAuthenticated, Session: &s}
}

// TTL returns how long the record should live in a TTL-backed store.
func (s BrowserState) TTL(now time.Time) time.Duration {
	switch s.Kind {
	case KindPending:
		return s.Pending.ExpiresAt.Sub(now)
	case KindAuthenticated:
		return s.Session.ExpiresAt.Sub(now)
	default:
		return 0
	}
}
