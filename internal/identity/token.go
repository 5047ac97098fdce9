// Package identity mints the short-lived assertion the gateway attaches to
// requests it proxies to department dashboards. Dashboards sit behind the
// gateway and trust this header instead of running their own login.
package identity

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"portal-gateway/internal/domain"
	dErrors "portal-gateway/pkg/domain-errors"
)

// HeaderName carries the assertion on proxied dashboard requests.
const HeaderName = "X-Portal-Identity"

// Claims is the identity payload a dashboard receives.
type Claims struct {
	Username   string   `json:"username"`
	FullName   string   `json:"full_name"`
	Email      string   `json:"email"`
	Department string   `json:"department"`
	Groups     []string `json:"groups"`
	jwt.RegisteredClaims
}

// Signer mints and validates identity assertions.
type Signer struct {
	signingKey []byte
	issuer     string
	ttl        time.Duration
}

// NewSigner constructs a signer. The TTL only needs to cover one proxied
// request; a minute is generous.
func NewSigner(signingKey, issuer string, ttl time.Duration) *Signer {
	return &Signer{signingKey: []byte(signingKey), issuer: issuer, ttl: ttl}
}

// Mint produces a signed assertion for the session's principal.
func (s *Signer) Mint(sess domain.Session) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Username:   sess.Principal.Username,
		FullName:   sess.Principal.FullName,
		Email:      sess.Principal.Email,
		Department: sess.Principal.Department,
		Groups:     sess.Principal.Groups,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	})
	return token.SignedString(s.signingKey)
}

// Validate parses and verifies an assertion. Dashboards deployed in the same
// trust domain use this to read the principal.
func (s *Signer) Validate(tokenString string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return s.signingKey, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, dErrors.New(dErrors.CodeSessionExpired, "identity assertion has expired")
		}
		return nil, dErrors.New(dErrors.CodeNoSession, "invalid identity assertion")
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, dErrors.New(dErrors.CodeNoSession, "invalid identity assertion")
	}
	return claims, nil
}
