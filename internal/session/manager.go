// Package session owns the lifecycle of browser state: the transient pending
// record between the two authentication steps and the durable session issued
// after the second factor. Authorization checks read the session's frozen
// group snapshot; directory changes take effect only on the next full login.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"portal-gateway/internal/domain"
	"portal-gateway/internal/platform/metrics"
	dErrors "portal-gateway/pkg/domain-errors"
	"portal-gateway/pkg/platform/sentinel"
)

// Manager issues, resolves, and destroys browser state records.
type Manager struct {
	store       StateStore
	departments *domain.Departments
	pendingTTL  time.Duration
	sessionTTL  time.Duration
	metrics     *metrics.Metrics
	now         func() time.Time
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithMetrics wires the session gauges.
func WithMetrics(m *metrics.Metrics) ManagerOption {
	return func(mgr *Manager) { mgr.metrics = m }
}

// WithClock replaces the time source, used by tests.
func WithClock(now func() time.Time) ManagerOption {
	return func(mgr *Manager) { mgr.now = now }
}

// NewManager constructs a manager with the given TTLs.
func NewManager(store StateStore, departments *domain.Departments, pendingTTL, sessionTTL time.Duration, opts ...ManagerOption) *Manager {
	mgr := &Manager{
		store:       store,
		departments: departments,
		pendingTTL:  pendingTTL,
		sessionTTL:  sessionTTL,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(mgr)
	}
	return mgr
}

// BeginPending stores a fresh pending authentication under a new opaque ID
// and returns that ID for the cookie.
func (m *Manager) BeginPending(ctx context.Context, principal domain.Principal) (string, domain.PendingAuthentication, error) {
	now := m.now()
	pending := domain.NewPendingAuthentication(principal, now, m.pendingTTL)
	id := uuid.NewString()
	if err := m.store.Save(ctx, id, domain.PendingState(pending), m.pendingTTL); err != nil {
		return "", domain.PendingAuthentication{}, dErrors.Wrap(err, dErrors.CodeInternal, "could not start authentication")
	}
	if m.metrics != nil {
		m.metrics.PendingTOTP.Inc()
	}
	return id, pending, nil
}

// FindPending resolves the pending record for a cookie ID. Absent, expired,
// or already-promoted state all surface as CodeSessionExpired: the caller
// must restart the flow.
func (m *Manager) FindPending(ctx context.Context, id string) (domain.PendingAuthentication, error) {
	state, err := m.store.Find(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) || errors.Is(err, sentinel.ErrExpired) {
			return domain.PendingAuthentication{}, dErrors.Wrap(err, dErrors.CodeSessionExpired, "session expired, please log in again")
		}
		return domain.PendingAuthentication{}, dErrors.Wrap(err, dErrors.CodeInternal, "could not load authentication state")
	}
	if state.Kind != domain.KindPending {
		return domain.PendingAuthentication{}, dErrors.New(dErrors.CodeSessionExpired, "session expired, please log in again")
	}
	pending := *state.Pending
	if pending.Expired(m.now()) {
		_ = m.store.Delete(ctx, id)
		if m.metrics != nil {
			m.metrics.PendingTOTP.Dec()
		}
		return domain.PendingAuthentication{}, dErrors.New(dErrors.CodeSessionExpired, "session expired, please log in again")
	}
	return pending, nil
}

// Promote discards the pending record and issues a session under a fresh ID,
// so the pre- and post-second-factor states never share a cookie value.
func (m *Manager) Promote(ctx context.Context, pendingID string, pending domain.PendingAuthentication) (string, domain.Session, error) {
	now := m.now()
	sess := domain.PromoteToSession(pending, now, m.sessionTTL)
	id := uuid.NewString()
	if err := m.store.Save(ctx, id, domain.AuthenticatedState(sess), m.sessionTTL); err != nil {
		return "", domain.Session{}, dErrors.Wrap(err, dErrors.CodeInternal, "could not create session")
	}
	_ = m.store.Delete(ctx, pendingID)
	if m.metrics != nil {
		m.metrics.PendingTOTP.Dec()
		m.metrics.ActiveSessions.WithLabelValues(sess.Principal.Department).Inc()
	}
	return id, sess, nil
}

// FindSession resolves an authenticated session for a cookie ID.
func (m *Manager) FindSession(ctx context.Context, id string) (domain.Session, error) {
	state, err := m.store.Find(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) || errors.Is(err, sentinel.ErrExpired) {
			return domain.Session{}, dErrors.Wrap(err, dErrors.CodeNoSession, "please log in to access this page")
		}
		return domain.Session{}, dErrors.Wrap(err, dErrors.CodeInternal, "could not load session")
	}
	if state.Kind != domain.KindAuthenticated {
		return domain.Session{}, dErrors.New(dErrors.CodeNoSession, "please log in to access this page")
	}
	sess := *state.Session
	if sess.Expired(m.now()) {
		_ = m.store.Delete(ctx, id)
		if m.metrics != nil {
			m.metrics.ActiveSessions.WithLabelValues(sess.Principal.Department).Dec()
		}
		return domain.Session{}, dErrors.New(dErrors.CodeNoSession, "please log in to access this page")
	}
	return sess, nil
}

// Authorize permits or denies access to a department dashboard using the
// session's stored group snapshot, never a fresh directory call.
func (m *Manager) Authorize(ctx context.Context, id, department string) (domain.Session, error) {
	sess, err := m.FindSession(ctx, id)
	if err != nil {
		return domain.Session{}, err
	}
	required, err := m.departments.RequiredGroup(department)
	if err != nil {
		return domain.Session{}, err
	}
	if !sess.Principal.InGroup(required) {
		return domain.Session{}, dErrors.Newf(dErrors.CodeWrongDepartment,
			"access denied: you are not authorized for the %s department", department)
	}
	return sess, nil
}

// PurgeExpired sweeps expired records out of stores that support it and
// settles the session gauges for every record removed. With a store that
// expires keys server-side, like Redis, this is a no-op and the gauges are
// an upper bound rather than an exact count.
func (m *Manager) PurgeExpired() int {
	purger, ok := m.store.(Purger)
	if !ok {
		return 0
	}
	purged := purger.PurgeExpired()
	if m.metrics != nil {
		for _, state := range purged {
			switch state.Kind {
			case domain.KindPending:
				m.metrics.PendingTOTP.Dec()
			case domain.KindAuthenticated:
				m.metrics.ActiveSessions.WithLabelValues(state.Session.Principal.Department).Dec()
			}
		}
	}
	return len(purged)
}

// Logout destroys whatever state the cookie ID references and reports the
// session it removed, if any, for the audit trail.
func (m *Manager) Logout(ctx context.Context, id string) (*domain.Session, error) {
	state, err := m.store.Find(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) || errors.Is(err, sentinel.ErrExpired) {
			return nil, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not end session")
	}
	if err := m.store.Delete(ctx, id); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "could not end session")
	}
	switch state.Kind {
	case domain.KindPending:
		if m.metrics != nil {
			m.metrics.PendingTOTP.Dec()
		}
		return nil, nil
	case domain.KindAuthenticated:
		if m.metrics != nil {
			m.metrics.ActiveSessions.WithLabelValues(state.Session.Principal.Department).Dec()
		}
		return state.Session, nil
	default:
		return nil, nil
	}
}
