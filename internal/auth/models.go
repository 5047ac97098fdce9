package auth

import "portal-gateway/internal/domain"

// CredentialsRequest is the first authentication step: the principal's own
// directory credentials plus the department they intend to reach.
type CredentialsRequest struct {
	Username   string
	Password   string
	Department string
}

// CredentialsResult reports a successful first step. The state ID goes into
// the browser cookie; the flow is now awaiting the second factor.
type CredentialsResult struct {
	StateID string
	Pending domain.PendingAuthentication
}

// SecondFactorResult reports a completed authentication. The session ID
// replaces the pending state ID in the cookie.
type SecondFactorResult struct {
	SessionID string
	Session   domain.Session
}
