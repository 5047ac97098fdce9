// Package directory authenticates principals against the corporate LDAP
// directory. The bind uses the principal's own credentials, never a service
// account, so one round trip both authenticates and validates the password.
package directory

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"github.com/go-ldap/ldap/v3"

	"portal-gateway/internal/domain"
	dErrors "portal-gateway/pkg/domain-errors"
)

// Conn is the slice of *ldap.Conn the client needs. Tests substitute a fake.
type Conn interface {
	Bind(username, password string) error
	Search(req *ldap.SearchRequest) (*ldap.SearchResult, error)
	Close() error
}

// DialFunc opens a directory connection. The production implementation wraps
// ldap.DialURL with a bounded dial timeout.
type DialFunc func(ctx context.Context) (Conn, error)

// Client performs bind-as-user authentication plus the required-group check
// for a department. It is stateless; every call dials, binds, searches, and
// releases the connection.
type Client struct {
	userBase    string
	emailDomain string
	timeout     time.Duration
	departments *domain.Departments
	dial        DialFunc
	logger      *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithDialFunc replaces the connection factory, used by tests.
func WithDialFunc(dial DialFunc) Option {
	return func(c *Client) { c.dial = dial }
}

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New constructs a directory client for the given endpoint and user base.
func New(url, userBase, emailDomain string, timeout time.Duration, departments *domain.Departments, opts ...Option) *Client {
	c := &Client{
		userBase:    userBase,
		emailDomain: emailDomain,
		timeout:     timeout,
		departments: departments,
		logger:      slog.Default(),
	}
	c.dial = func(ctx context.Context) (Conn, error) {
		dialer := &net.Dialer{Timeout: timeout}
		if deadline, ok := ctx.Deadline(); ok {
			dialer.Deadline = deadline
		}
		conn, err := ldap.DialURL(url, ldap.DialWithDialer(dialer))
		if err != nil {
			return nil, err
		}
		conn.SetTimeout(timeout)
		return conn, nil
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Authenticate binds as the principal, looks up its canonical record, and
// enforces the required-group check for the chosen department.
//
// On CodeUnauthorized and CodeInvalidDepartment the returned principal is
// populated with the resolved name and groups so the caller can audit the
// denial with the actual memberships.
func (c *Client) Authenticate(ctx context.Context, username, password, department string) (domain.Principal, error) {
	conn, err := c.dial(ctx)
	if err != nil {
		return domain.Principal{}, dErrors.Wrap(err, dErrors.CodeDirectoryUnavailable, "directory unavailable, please try again later")
	}
	defer conn.Close()

	userDN := "uid=" + ldap.EscapeDN(username) + "," + c.userBase
	if err := conn.Bind(userDN, password); err != nil {
		if ldap.IsErrorWithCode(err, ldap.LDAPResultInvalidCredentials) {
			return domain.Principal{}, dErrors.Wrap(err, dErrors.CodeInvalidCredentials, "invalid username or password")
		}
		return domain.Principal{}, dErrors.Wrap(err, dErrors.CodeDirectoryUnavailable, "directory unavailable, please try again later")
	}

	entry, err := c.lookup(conn, username)
	if err != nil {
		return domain.Principal{}, err
	}

	principal := domain.Principal{
		Username:   username,
		FullName:   valueOr(entry.GetAttributeValue("cn"), username),
		Email:      valueOr(entry.GetAttributeValue("mail"), username+"@"+c.emailDomain),
		Groups:     groupNames(entry.GetAttributeValues("memberOf")),
		Department: department,
	}

	c.logger.Debug("directory lookup complete",
		"username", username, "groups", principal.Groups)

	required, err := c.departments.RequiredGroup(department)
	if err != nil {
		return principal, err
	}
	if !principal.InGroup(required) {
		return principal, dErrors.Newf(dErrors.CodeUnauthorized,
			"access denied: you are not authorized for the %s department", department)
	}
	return principal, nil
}

func (c *Client) lookup(conn Conn, username string) (*ldap.Entry, error) {
	req := ldap.NewSearchRequest(
		c.userBase,
		ldap.ScopeWholeSubtree,
		ldap.NeverDerefAliases,
		1,
		int(c.timeout.Seconds()),
		false,
		"(uid="+ldap.EscapeFilter(username)+")",
		[]string{"uid", "cn", "mail", "memberOf"},
		nil,
	)
	res, err := conn.Search(req)
	if err != nil {
		var ldapErr *ldap.Error
		if errors.As(err, &ldapErr) && ldapErr.ResultCode == ldap.LDAPResultNoSuchObject {
			return nil, dErrors.Wrap(err, dErrors.CodePrincipalNotFound, "user not found in directory")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeDirectoryUnavailable, "directory unavailable, please try again later")
	}
	if len(res.Entries) == 0 {
		return nil, dErrors.New(dErrors.CodePrincipalNotFound, "user not found in directory")
	}
	return res.Entries[0], nil
}

// groupNames extracts the first RDN value of each membership DN, e.g.
// "cn=hr,cn=groups,cn=accounts,dc=henry-iam,dc=internal" becomes "hr".
func groupNames(memberOf []string) []string {
	groups := make([]string, 0, len(memberOf))
	for _, raw := range memberOf {
		dn, err := ldap.ParseDN(raw)
		if err != nil || len(dn.RDNs) == 0 || len(dn.RDNs[0].Attributes) == 0 {
			continue
		}
		groups = append(groups, dn.RDNs[0].Attributes[0].Value)
	}
	return groups
}

func valueOr(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
