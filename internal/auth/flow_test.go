package auth

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/suite"

	"portal-gateway/internal/audit"
	"portal-gateway/internal/domain"
	"portal-gateway/internal/platform/metrics"
	"portal-gateway/internal/session"
	dErrors "portal-gateway/pkg/domain-errors"
)

type fakeDirectory struct {
	principal domain.Principal
	err       error
	calls     int
}

func (f *fakeDirectory) Authenticate(_ context.Context, _, _, _ string) (domain.Principal, error) {
	f.calls++
	return f.principal, f.err
}

type fakeVerifier struct {
	accept   string
	enrolled bool
	calls    int
	lastCode string
}

func (f *fakeVerifier) Verify(_ context.Context, _, code string) error {
	f.calls++
	f.lastCode = code
	if !f.enrolled {
		return dErrors.New(dErrors.CodeNotEnrolled, "TOTP not enrolled for this user")
	}
	if code != f.accept {
		return dErrors.New(dErrors.CodeInvalidCode, "invalid TOTP code")
	}
	return nil
}

type captureSink struct {
	events []audit.Event
}

func (c *captureSink) Append(_ context.Context, event audit.Event) error {
	c.events = append(c.events, event)
	return nil
}

func (c *captureSink) tags() []audit.Tag {
	tags := make([]audit.Tag, 0, len(c.events))
	for _, e := range c.events {
		tags = append(tags, e.Tag)
	}
	return tags
}

func (c *captureSink) byTag(tag audit.Tag) []audit.Event {
	var matched []audit.Event
	for _, e := range c.events {
		if e.Tag == tag {
			matched = append(matched, e)
		}
	}
	return matched
}

type FlowSuite struct {
	suite.Suite
	directory *fakeDirectory
	verifier  *fakeVerifier
	sink      *captureSink
	service   *Service
	now       time.Time
}

func TestFlowSuite(t *testing.T) {
	suite.Run(t, new(FlowSuite))
}

func (s *FlowSuite) SetupTest() {
	s.now = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	s.directory = &fakeDirectory{}
	s.verifier = &fakeVerifier{accept: "123456", enrolled: true}
	s.sink = &captureSink{}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	manager := session.NewManager(session.NewMemoryStore(), domain.DefaultDepartments(),
		5*time.Minute, 8*time.Hour, session.WithClock(func() time.Time { return s.now }))
	s.service = NewService(
		s.directory,
		s.verifier,
		manager,
		audit.NewRecorder(logger, s.sink),
		NewLockout(5, 15*time.Minute),
		metrics.NewWith(prometheus.NewRegistry()),
		logger,
	)
}

func (s *FlowSuite) hrRequest() CredentialsRequest {
	s.directory.principal = domain.Principal{
		Username:   "sarah",
		FullName:   "Sarah Mitchell",
		Email:      "sarah@henry-iam.internal",
		Groups:     []string{"hr", "employees"},
		Department: domain.DepartmentHR,
	}
	return CredentialsRequest{Username: "sarah", Password: "s3cret", Department: domain.DepartmentHR}
}

func (s *FlowSuite) TestFullAuthentication() {
	ctx := context.Background()

	result, err := s.service.SubmitCredentials(ctx, s.hrRequest())
	s.Require().NoError(err)
	s.NotEmpty(result.StateID)
	s.Equal("sarah", result.Pending.Principal.Username)

	s.Run("first step leaves the full success trail", func() {
		s.Equal([]audit.Tag{
			audit.TagLDAPAuthSuccess,
			audit.TagUserGroups,
			audit.TagLDAPValidated,
		}, s.sink.tags())
		s.Contains(s.sink.byTag(audit.TagUserGroups)[0].Detail, "hr, employees")
	})

	promoted, err := s.service.SubmitSecondFactor(ctx, result.StateID, "123456")
	s.Require().NoError(err)

	s.Run("cookie value is rotated across the second factor", func() {
		s.NotEqual(result.StateID, promoted.SessionID)
	})

	s.Run("session carries the directory snapshot", func() {
		s.Equal("sarah", promoted.Session.Principal.Username)
		s.Equal(domain.DepartmentHR, promoted.Session.Principal.Department)
		s.Equal(s.now.Add(8*time.Hour), promoted.Session.ExpiresAt)
	})

	s.Run("second step appends the verification record", func() {
		success := s.sink.byTag(audit.TagTOTPSuccess)
		s.Require().Len(success, 1)
		s.Equal("TOTP code validated successfully", success[0].Detail)
	})

	s.Run("pending state is consumed", func() {
		_, err := s.service.SubmitSecondFactor(ctx, result.StateID, "123456")
		s.True(dErrors.HasCode(err, dErrors.CodeSessionExpired))
	})
}

func (s *FlowSuite) TestEmptyFieldsRejectedBeforeDirectory() {
	_, err := s.service.SubmitCredentials(context.Background(),
		CredentialsRequest{Username: "sarah", Password: "", Department: domain.DepartmentHR})
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	s.Zero(s.directory.calls, "directory must not be dialed for incomplete input")
	s.Empty(s.sink.events)
}

func (s *FlowSuite) TestInvalidCredentials() {
	s.directory.err = dErrors.New(dErrors.CodeInvalidCredentials, "invalid username or password")

	_, err := s.service.SubmitCredentials(context.Background(),
		CredentialsRequest{Username: "sarah", Password: "wrong", Department: domain.DepartmentHR})
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidCredentials))

	s.Run("exactly one FAILED record and nothing else", func() {
		s.Equal([]audit.Tag{audit.TagFailed}, s.sink.tags())
		s.Equal("Invalid credentials", s.sink.byTag(audit.TagFailed)[0].Detail)
	})
}

func (s *FlowSuite) TestUnauthorizedDepartment() {
	// Valid bind, but adam holds it_support while asking for Sales.
	s.directory.principal = domain.Principal{
		Username:   "adam",
		Groups:     []string{"it_support", "employees"},
		Department: domain.DepartmentSales,
	}
	s.directory.err = dErrors.New(dErrors.CodeUnauthorized, "access denied")

	_, err := s.service.SubmitCredentials(context.Background(),
		CredentialsRequest{Username: "adam", Password: "s3cret", Department: domain.DepartmentSales})
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

	s.Run("denial is audited with the actual memberships", func() {
		s.Equal([]audit.Tag{
			audit.TagLDAPAuthSuccess,
			audit.TagUserGroups,
			audit.TagDenied,
		}, s.sink.tags())
		denied := s.sink.byTag(audit.TagDenied)[0]
		s.Contains(denied.Detail, "Unauthorized access attempt")
		s.Contains(denied.Detail, "it_support, employees")
	})
}

func (s *FlowSuite) TestPrincipalNotFound() {
	s.directory.err = dErrors.New(dErrors.CodePrincipalNotFound, "user not found in directory")

	_, err := s.service.SubmitCredentials(context.Background(),
		CredentialsRequest{Username: "ghost", Password: "s3cret", Department: domain.DepartmentHR})
	s.True(dErrors.HasCode(err, dErrors.CodePrincipalNotFound))

	s.Run("bind succeeded but no groups line is written", func() {
		s.Equal([]audit.Tag{audit.TagLDAPAuthSuccess, audit.TagError}, s.sink.tags())
		s.Equal("User not found in LDAP", s.sink.byTag(audit.TagError)[0].Detail)
	})
}

func (s *FlowSuite) TestInvalidDepartment() {
	s.directory.principal = domain.Principal{Username: "sarah", Groups: []string{"hr"}}
	s.directory.err = dErrors.New(dErrors.CodeInvalidDepartment, "invalid department selected")

	_, err := s.service.SubmitCredentials(context.Background(),
		CredentialsRequest{Username: "sarah", Password: "s3cret", Department: "Engineering"})
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidDepartment))
	s.Contains(s.sink.byTag(audit.TagError)[0].Detail, "Invalid department: Engineering")
}

func (s *FlowSuite) TestDirectoryUnavailable() {
	s.directory.err = dErrors.New(dErrors.CodeDirectoryUnavailable, "directory unavailable, please try again later")

	_, err := s.service.SubmitCredentials(context.Background(),
		CredentialsRequest{Username: "sarah", Password: "s3cret", Department: domain.DepartmentHR})
	s.True(dErrors.HasCode(err, dErrors.CodeDirectoryUnavailable))
	s.Equal([]audit.Tag{audit.TagError}, s.sink.tags())
}

func (s *FlowSuite) TestSecondFactorWithoutPending() {
	_, err := s.service.SubmitSecondFactor(context.Background(), "no-such-state", "123456")
	s.True(dErrors.HasCode(err, dErrors.CodeSessionExpired))
	s.Equal([]audit.Tag{audit.TagError}, s.sink.tags())
	s.Zero(s.verifier.calls)
}

func (s *FlowSuite) TestSecondFactorExpiredWindow() {
	ctx := context.Background()
	result, err := s.service.SubmitCredentials(ctx, s.hrRequest())
	s.Require().NoError(err)

	s.now = s.now.Add(6 * time.Minute)

	_, err = s.service.SubmitSecondFactor(ctx, result.StateID, "123456")
	s.True(dErrors.HasCode(err, dErrors.CodeSessionExpired))
	s.Zero(s.verifier.calls)
}

func (s *FlowSuite) TestSecondFactorMalformedCode() {
	ctx := context.Background()
	result, err := s.service.SubmitCredentials(ctx, s.hrRequest())
	s.Require().NoError(err)

	for _, raw := range []string{"", "12345", "1234567", "abc123"} {
		_, err := s.service.SubmitSecondFactor(ctx, result.StateID, raw)
		s.True(dErrors.HasCode(err, dErrors.CodeMalformedCode), "raw %q", raw)
	}

	s.Run("verifier never sees a malformed code", func() {
		s.Zero(s.verifier.calls)
	})

	s.Run("each attempt is audited without the code itself", func() {
		failed := s.sink.byTag(audit.TagTOTPFailed)
		s.Len(failed, 4)
		for _, event := range failed {
			s.Equal("Malformed TOTP code", event.Detail)
		}
	})
}

func (s *FlowSuite) TestSecondFactorCodeNormalization() {
	ctx := context.Background()
	result, err := s.service.SubmitCredentials(ctx, s.hrRequest())
	s.Require().NoError(err)

	_, err = s.service.SubmitSecondFactor(ctx, result.StateID, " 123-456 ")
	s.NoError(err)
	s.Equal("123456", s.verifier.lastCode)
}

func (s *FlowSuite) TestSecondFactorWrongCodeIsRetryable() {
	ctx := context.Background()
	result, err := s.service.SubmitCredentials(ctx, s.hrRequest())
	s.Require().NoError(err)

	_, err = s.service.SubmitSecondFactor(ctx, result.StateID, "000000")
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidCode))
	s.Equal("Invalid TOTP code", s.sink.byTag(audit.TagTOTPFailed)[0].Detail)

	s.Run("flow stays at the second factor for a retry", func() {
		promoted, err := s.service.SubmitSecondFactor(ctx, result.StateID, "123456")
		s.NoError(err)
		s.NotNil(promoted)
	})
}

func (s *FlowSuite) TestSecondFactorNotEnrolled() {
	ctx := context.Background()
	result, err := s.service.SubmitCredentials(ctx, s.hrRequest())
	s.Require().NoError(err)

	s.verifier.enrolled = false

	_, err = s.service.SubmitSecondFactor(ctx, result.StateID, "123456")
	s.True(dErrors.HasCode(err, dErrors.CodeNotEnrolled))
	s.Equal("No TOTP secret found for user", s.sink.byTag(audit.TagTOTPFailed)[0].Detail)
}

func (s *FlowSuite) TestSecondFactorLockout() {
	ctx := context.Background()
	result, err := s.service.SubmitCredentials(ctx, s.hrRequest())
	s.Require().NoError(err)

	for i := 0; i < 5; i++ {
		_, err := s.service.SubmitSecondFactor(ctx, result.StateID, "000000")
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidCode))
	}

	s.Run("locked username is throttled even with the right code", func() {
		_, err := s.service.SubmitSecondFactor(ctx, result.StateID, "123456")
		s.True(dErrors.HasCode(err, dErrors.CodeRateLimited))
		s.Contains(s.sink.byTag(audit.TagTOTPFailed)[5].Detail, "Too many failed attempts")
	})
}

func (s *FlowSuite) TestLogout() {
	ctx := context.Background()

	s.Run("ending a session writes the logout record", func() {
		result, err := s.service.SubmitCredentials(ctx, s.hrRequest())
		s.Require().NoError(err)
		promoted, err := s.service.SubmitSecondFactor(ctx, result.StateID, "123456")
		s.Require().NoError(err)

		s.NoError(s.service.Logout(ctx, promoted.SessionID))

		logout := s.sink.byTag(audit.TagLogout)
		s.Require().Len(logout, 1)
		s.Equal("sarah", logout[0].Username)
		s.Equal("User logged out", logout[0].Detail)
	})

	s.Run("anonymous logout is silent", func() {
		before := len(s.sink.events)
		s.NoError(s.service.Logout(ctx, "no-such-state"))
		s.Len(s.sink.events, before)
	})
}
