// Package auth orchestrates the two-step authentication flow: a directory
// bind with a required-group check, then a TOTP second factor. State moves
// Anonymous → AwaitingSecondFactor → Authenticated; every failure routes the
// caller back to a retryable point rather than crashing the handler, and
// every attempt leaves a record in the audit trail.
package auth

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"portal-gateway/internal/audit"
	"portal-gateway/internal/domain"
	"portal-gateway/internal/platform/metrics"
	"portal-gateway/internal/session"
	dErrors "portal-gateway/pkg/domain-errors"
)

// DirectoryAuthenticator is the first factor: bind-as-user plus the
// required-group check.
type DirectoryAuthenticator interface {
	Authenticate(ctx context.Context, username, password, department string) (domain.Principal, error)
}

// SecondFactorVerifier checks a normalized six-digit code.
type SecondFactorVerifier interface {
	Verify(ctx context.Context, username, code string) error
}

// Service is the authentication state machine.
type Service struct {
	directory DirectoryAuthenticator
	verifier  SecondFactorVerifier
	sessions  *session.Manager
	recorder  *audit.Recorder
	lockout   *Lockout
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewService wires the state machine's collaborators.
func NewService(
	directory DirectoryAuthenticator,
	verifier SecondFactorVerifier,
	sessions *session.Manager,
	recorder *audit.Recorder,
	lockout *Lockout,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Service {
	return &Service{
		directory: directory,
		verifier:  verifier,
		sessions:  sessions,
		recorder:  recorder,
		lockout:   lockout,
		metrics:   m,
		logger:    logger,
	}
}

// SubmitCredentials runs the first step. On success the caller holds a
// pending state ID and must supply the second factor; on any failure the
// flow is back at Anonymous.
func (s *Service) SubmitCredentials(ctx context.Context, req CredentialsRequest) (*CredentialsResult, error) {
	if req.Username == "" || req.Password == "" || req.Department == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "please fill in all required fields")
	}

	start := time.Now()
	principal, err := s.directory.Authenticate(ctx, req.Username, req.Password, req.Department)
	elapsed := time.Since(start)

	code := dErrors.CodeInternal
	if err != nil {
		code = dErrors.CodeOf(err)
	}
	bindSucceeded := err == nil ||
		code == dErrors.CodeUnauthorized ||
		code == dErrors.CodeInvalidDepartment ||
		code == dErrors.CodePrincipalNotFound
	s.metrics.ObserveLDAP(bindSucceeded, elapsed)

	if bindSucceeded {
		s.record(ctx, audit.TagLDAPAuthSuccess, req.Username, "", "LDAP bind successful")
	}
	if bindSucceeded && code != dErrors.CodePrincipalNotFound {
		s.record(ctx, audit.TagUserGroups, req.Username, "",
			"Groups: "+strings.Join(principal.Groups, ", "))
	}

	if err != nil {
		s.auditCredentialFailure(ctx, req, principal, code, err)
		s.metrics.LoginAttempts.WithLabelValues("failed", req.Department).Inc()
		return nil, err
	}

	s.record(ctx, audit.TagLDAPValidated, req.Username, req.Department,
		"Department authorization confirmed")

	stateID, pending, err := s.sessions.BeginPending(ctx, principal)
	if err != nil {
		s.record(ctx, audit.TagError, req.Username, req.Department, err.Error())
		return nil, err
	}
	s.metrics.LoginAttempts.WithLabelValues("success", req.Department).Inc()
	s.logger.Debug("credentials accepted, awaiting second factor",
		"username", req.Username, "department", req.Department)
	return &CredentialsResult{StateID: stateID, Pending: pending}, nil
}

func (s *Service) auditCredentialFailure(ctx context.Context, req CredentialsRequest, principal domain.Principal, code dErrors.Code, err error) {
	switch code {
	case dErrors.CodeInvalidCredentials:
		s.metrics.InvalidCredentials.Inc()
		s.record(ctx, audit.TagFailed, req.Username, req.Department, "Invalid credentials")
	case dErrors.CodeUnauthorized:
		s.metrics.UnauthorizedAccess.Inc()
		s.record(ctx, audit.TagDenied, req.Username, req.Department,
			"Unauthorized access attempt | User groups: "+strings.Join(principal.Groups, ", "))
	case dErrors.CodePrincipalNotFound:
		s.record(ctx, audit.TagError, req.Username, "", "User not found in LDAP")
	case dErrors.CodeInvalidDepartment:
		s.record(ctx, audit.TagError, req.Username, "", "Invalid department: "+req.Department)
	default:
		s.record(ctx, audit.TagError, req.Username, req.Department, err.Error())
	}
}

// SubmitSecondFactor runs the second step against the pending state the
// cookie references. Invalid codes leave the flow at AwaitingSecondFactor so
// the user may retry inside the pending TTL; everything else restarts it.
func (s *Service) SubmitSecondFactor(ctx context.Context, stateID, rawCode string) (*SecondFactorResult, error) {
	pending, err := s.sessions.FindPending(ctx, stateID)
	if err != nil {
		s.record(ctx, audit.TagError, "", "", "Second factor submitted without a pending authentication")
		return nil, err
	}
	username := pending.Principal.Username

	if err := s.lockout.Check(username); err != nil {
		s.record(ctx, audit.TagTOTPFailed, username, pending.Principal.Department,
			"Too many failed attempts")
		return nil, err
	}

	code, err := normalizeCode(rawCode)
	if err != nil {
		s.record(ctx, audit.TagTOTPFailed, username, pending.Principal.Department,
			"Malformed TOTP code")
		return nil, err
	}

	start := time.Now()
	verifyErr := s.verifier.Verify(ctx, username, code)
	s.metrics.ObserveTOTP(verifyErr == nil, time.Since(start))

	if verifyErr != nil {
		switch dErrors.CodeOf(verifyErr) {
		case dErrors.CodeNotEnrolled:
			s.record(ctx, audit.TagTOTPFailed, username, pending.Principal.Department,
				"No TOTP secret found for user")
		case dErrors.CodeInvalidCode:
			s.lockout.RecordFailure(username)
			s.record(ctx, audit.TagTOTPFailed, username, pending.Principal.Department,
				"Invalid TOTP code")
		default:
			s.record(ctx, audit.TagError, username, pending.Principal.Department, verifyErr.Error())
		}
		return nil, verifyErr
	}

	s.lockout.Clear(username)
	s.record(ctx, audit.TagTOTPSuccess, username, pending.Principal.Department,
		"TOTP code validated successfully")

	sessionID, sess, err := s.sessions.Promote(ctx, stateID, pending)
	if err != nil {
		s.record(ctx, audit.TagError, username, pending.Principal.Department, err.Error())
		return nil, err
	}
	s.metrics.SuccessfulAuth.WithLabelValues(sess.Principal.Department).Inc()
	return &SecondFactorResult{SessionID: sessionID, Session: sess}, nil
}

// Logout destroys the browser's state and records the event when it ended a
// real session.
func (s *Service) Logout(ctx context.Context, stateID string) error {
	sess, err := s.sessions.Logout(ctx, stateID)
	if err != nil {
		return err
	}
	if sess != nil {
		s.metrics.Logouts.Inc()
		s.record(ctx, audit.TagLogout, sess.Principal.Username,
			sess.Principal.Department, "User logged out")
	}
	return nil
}

func (s *Service) record(ctx context.Context, tag audit.Tag, username, department, detail string) {
	s.recorder.Record(ctx, audit.Event{
		Tag:        tag,
		Username:   username,
		Department: department,
		Detail:     detail,
	})
}

// normalizeCode strips spaces and dashes and requires exactly six digits.
// The raw code is never logged or stored.
func normalizeCode(raw string) (string, error) {
	code := strings.TrimSpace(raw)
	code = strings.ReplaceAll(code, " ", "")
	code = strings.ReplaceAll(code, "-", "")
	if code == "" {
		return "", dErrors.New(dErrors.CodeMalformedCode, "TOTP code is required")
	}
	if len(code) != 6 {
		return "", dErrors.New(dErrors.CodeMalformedCode, "TOTP code must be 6 digits")
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return "", dErrors.New(dErrors.CodeMalformedCode, "TOTP code must be 6 digits")
		}
	}
	return code, nil
}
