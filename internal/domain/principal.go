package domain

import (
	"slices"
	"time"
)

// Principal captures the directory-backed identity established during login.
// It is immutable for the lifetime of one authentication flow and re-fetched
// on each new login; the group set is a snapshot taken at bind time.
type Principal struct {
	Username   string   `json:"username"`
	FullName   string   `json:"full_name"`
	Email      string   `json:"email"`
	Groups     []string `json:"groups"`
	Department string   `json:"department"`
}

// InGroup reports whether the principal's snapshot contains the group.
func (p Principal) InGroup(group string) bool {
	return slices.Contains(p.Groups, group)
}

// PendingAuthentication is the transient state between a successful directory
// bind and a successful second factor. It carries its own TTL rather than
// riding on the web session timeout, so abandonment is bounded explicitly.
type PendingAuthentication struct {
	Principal Principal `json:"principal"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the pending window has closed at the given instant.
func (p PendingAuthentication) Expired(now time.Time) bool {
	return !now.Before(p.ExpiresAt)
}

// Session is the durable authenticated state. It exists only as a promotion
// of a PendingAuthentication that passed the second factor; the constructors
// below are the sole way to produce one.
type Session struct {
	Principal Principal `json:"principal"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the session's absolute lifetime has passed.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// NewPendingAuthentication starts the second-factor window for a principal
// that passed the bind and the required-group check.
func NewPendingAuthentication(p Principal, now time.Time, ttl time.Duration) PendingAuthentication {
	return PendingAuthentication{
		Principal: p,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
}

// PromoteToSession converts a verified pending authentication into a session.
// Callers must have already confirmed the second factor; the state machine is
// the only caller.
func PromoteToSession(pending PendingAuthentication, now time.Time, ttl time.Duration) Session {
	return Session{
		Principal: pending.Principal,
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	}
}
