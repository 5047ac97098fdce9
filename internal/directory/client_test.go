package directory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-ldap/ldap/v3"
	"github.com/stretchr/testify/suite"

	"portal-gateway/internal/domain"
	dErrors "portal-gateway/pkg/domain-errors"
)

const (
	testUserBase    = "cn=users,cn=accounts,dc=henry-iam,dc=internal"
	testEmailDomain = "henry-iam.internal"
)

// fakeConn scripts a directory server for a single Authenticate call.
type fakeConn struct {
	bindErr   error
	searchErr error
	entries   []*ldap.Entry
	boundDN   string
	boundPass string
	searchReq *ldap.SearchRequest
	closed    bool
}

func (f *fakeConn) Bind(username, password string) error {
	f.boundDN = username
	f.boundPass = password
	return f.bindErr
}

func (f *fakeConn) Search(req *ldap.SearchRequest) (*ldap.SearchResult, error) {
	f.searchReq = req
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return &ldap.SearchResult{Entries: f.entries}, nil
}

func (f *fakeConn) Close() error {
	f.closed = true
	return nil
}

func userEntry(uid, cn, mail string, memberOf ...string) *ldap.Entry {
	attrs := []*ldap.EntryAttribute{
		{Name: "uid", Values: []string{uid}},
	}
	if cn != "" {
		attrs = append(attrs, &ldap.EntryAttribute{Name: "cn", Values: []string{cn}})
	}
	if mail != "" {
		attrs = append(attrs, &ldap.EntryAttribute{Name: "mail", Values: []string{mail}})
	}
	if len(memberOf) > 0 {
		attrs = append(attrs, &ldap.EntryAttribute{Name: "memberOf", Values: memberOf})
	}
	return &ldap.Entry{DN: "uid=" + uid + "," + testUserBase, Attributes: attrs}
}

func groupDN(name string) string {
	return "cn=" + name + ",cn=groups,cn=accounts,dc=henry-iam,dc=internal"
}

type ClientSuite struct {
	suite.Suite
	conn *fakeConn
}

func TestClientSuite(t *testing.T) {
	suite.Run(t, new(ClientSuite))
}

func (s *ClientSuite) SetupTest() {
	s.conn = &fakeConn{}
}

func (s *ClientSuite) newClient() *Client {
	return New("ldap://directory:389", testUserBase, testEmailDomain, 5*time.Second,
		domain.DefaultDepartments(),
		WithDialFunc(func(ctx context.Context) (Conn, error) {
			return s.conn, nil
		}))
}

func (s *ClientSuite) TestAuthenticateSuccess() {
	s.conn.entries = []*ldap.Entry{
		userEntry("sarah", "Sarah Mitchell", "sarah@henry-iam.internal",
			groupDN("hr"), groupDN("employees")),
	}

	principal, err := s.newClient().Authenticate(context.Background(), "sarah", "s3cret", domain.DepartmentHR)
	s.NoError(err)

	s.Equal("sarah", principal.Username)
	s.Equal("Sarah Mitchell", principal.FullName)
	s.Equal("sarah@henry-iam.internal", principal.Email)
	s.Equal([]string{"hr", "employees"}, principal.Groups)
	s.Equal(domain.DepartmentHR, principal.Department)

	s.Run("binds with the user's own DN", func() {
		s.Equal("uid=sarah,"+testUserBase, s.conn.boundDN)
		s.Equal("s3cret", s.conn.boundPass)
	})

	s.Run("searches by uid with the canonical attribute set", func() {
		s.Equal("(uid=sarah)", s.conn.searchReq.Filter)
		s.Equal([]string{"uid", "cn", "mail", "memberOf"}, s.conn.searchReq.Attributes)
		s.Equal(1, s.conn.searchReq.SizeLimit)
	})

	s.True(s.conn.closed, "connection must be released")
}

func (s *ClientSuite) TestAuthenticateBindRejected() {
	s.conn.bindErr = ldap.NewError(ldap.LDAPResultInvalidCredentials, errors.New("invalid credentials"))

	_, err := s.newClient().Authenticate(context.Background(), "sarah", "wrong", domain.DepartmentHR)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidCredentials))
	s.True(s.conn.closed)
}

func (s *ClientSuite) TestAuthenticateDirectoryDown() {
	s.Run("dial failure", func() {
		client := New("ldap://directory:389", testUserBase, testEmailDomain, 5*time.Second,
			domain.DefaultDepartments(),
			WithDialFunc(func(ctx context.Context) (Conn, error) {
				return nil, errors.New("dial tcp: connection refused")
			}))
		_, err := client.Authenticate(context.Background(), "sarah", "s3cret", domain.DepartmentHR)
		s.True(dErrors.HasCode(err, dErrors.CodeDirectoryUnavailable))
	})

	s.Run("bind failure that is not a credential rejection", func() {
		s.conn.bindErr = ldap.NewError(ldap.LDAPResultUnavailable, errors.New("server shutting down"))
		_, err := s.newClient().Authenticate(context.Background(), "sarah", "s3cret", domain.DepartmentHR)
		s.True(dErrors.HasCode(err, dErrors.CodeDirectoryUnavailable))
	})

	s.Run("search failure", func() {
		s.conn.bindErr = nil
		s.conn.searchErr = ldap.NewError(ldap.LDAPResultBusy, errors.New("busy"))
		_, err := s.newClient().Authenticate(context.Background(), "sarah", "s3cret", domain.DepartmentHR)
		s.True(dErrors.HasCode(err, dErrors.CodeDirectoryUnavailable))
	})
}

func (s *ClientSuite) TestAuthenticatePrincipalNotFound() {
	s.conn.entries = nil

	_, err := s.newClient().Authenticate(context.Background(), "ghost", "s3cret", domain.DepartmentHR)
	s.True(dErrors.HasCode(err, dErrors.CodePrincipalNotFound))
}

func (s *ClientSuite) TestAuthenticateWrongGroup() {
	s.conn.entries = []*ldap.Entry{
		userEntry("adam", "Adam Torres", "adam@henry-iam.internal",
			groupDN("it_support"), groupDN("employees")),
	}

	principal, err := s.newClient().Authenticate(context.Background(), "adam", "s3cret", domain.DepartmentSales)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthorized))

	s.Run("principal is still populated so the denial can be audited", func() {
		s.Equal("adam", principal.Username)
		s.Equal([]string{"it_support", "employees"}, principal.Groups)
	})
}

func (s *ClientSuite) TestAuthenticateUnknownDepartment() {
	s.conn.entries = []*ldap.Entry{
		userEntry("sarah", "Sarah Mitchell", "sarah@henry-iam.internal", groupDN("hr")),
	}

	principal, err := s.newClient().Authenticate(context.Background(), "sarah", "s3cret", "Engineering")
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidDepartment))
	s.Equal([]string{"hr"}, principal.Groups)
}

func (s *ClientSuite) TestAuthenticateAttributeFallbacks() {
	s.conn.entries = []*ldap.Entry{
		userEntry("lucas", "", "", groupDN("admins")),
	}

	principal, err := s.newClient().Authenticate(context.Background(), "lucas", "s3cret", domain.DepartmentAdmin)
	s.NoError(err)
	s.Equal("lucas", principal.FullName)
	s.Equal("lucas@"+testEmailDomain, principal.Email)
}

func (s *ClientSuite) TestAuthenticateEscapesFilterInput() {
	s.conn.entries = []*ldap.Entry{
		userEntry("sarah", "Sarah Mitchell", "", groupDN("hr")),
	}

	_, _ = s.newClient().Authenticate(context.Background(), "sarah)(uid=*", "s3cret", domain.DepartmentHR)
	s.NotContains(s.conn.searchReq.Filter, ")(", "filter metacharacters must be escaped")
}

func TestGroupNames(t *testing.T) {
	got := groupNames([]string{
		groupDN("hr"),
		"cn=admins,ou=groups,dc=example,dc=org",
		"not a dn at all \x00",
	})
	if len(got) != 2 || got[0] != "hr" || got[1] != "admins" {
		t.Fatalf("unexpected groups: %v", got)
	}
}
