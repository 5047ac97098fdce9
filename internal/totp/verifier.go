// Package totp validates six-digit time-based one-time codes against the
// per-principal secret registry. Codes from the previous, current, and next
// 30-second step are accepted to absorb clock drift between the server and
// the authenticator device.
package totp

import (
	"context"
	"errors"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"

	dErrors "portal-gateway/pkg/domain-errors"
	"portal-gateway/pkg/platform/sentinel"
)

const (
	// Period is the TOTP time step in seconds.
	Period = 30
	// Skew is the number of steps accepted either side of the current one.
	Skew = 1
)

// Verifier checks codes against the secret registry. It never logs or
// persists the supplied code or the stored secret.
type Verifier struct {
	secrets SecretStore
	now     func() time.Time
}

// VerifierOption configures a Verifier.
type VerifierOption func(*Verifier)

// WithClock replaces the time source, used by tests.
func WithClock(now func() time.Time) VerifierOption {
	return func(v *Verifier) { v.now = now }
}

// NewVerifier constructs a verifier over the given secret store.
func NewVerifier(secrets SecretStore, opts ...VerifierOption) *Verifier {
	v := &Verifier{secrets: secrets, now: time.Now}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify checks a normalized six-digit code for the username. The only
// retryable failure is CodeInvalidCode; everything else requires operator
// action (enrollment) or a flow restart.
func (v *Verifier) Verify(ctx context.Context, username, code string) error {
	secret, err := v.secrets.Secret(ctx, username)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Wrap(err, dErrors.CodeNotEnrolled,
				"TOTP not enrolled for this user, please visit the enrollment page")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "second factor check failed")
	}

	valid, err := totp.ValidateCustom(code, secret, v.now().UTC(), totp.ValidateOpts{
		Period:    Period,
		Skew:      Skew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "second factor check failed")
	}
	if !valid {
		return dErrors.New(dErrors.CodeInvalidCode,
			"invalid TOTP code, please check your authenticator app and try again")
	}
	return nil
}
