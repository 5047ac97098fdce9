package totp

import (
	"context"
	"encoding/base32"
	"fmt"
	"strings"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// Provisioning is one enrollment artifact: the otpauth:// URI an authenticator
// app consumes. Rendering it as a QR code is the caller's concern.
type Provisioning struct {
	Username string `json:"username"`
	URI      string `json:"uri"`
}

// Enrollment produces provisioning identifiers from the secret registry.
type Enrollment struct {
	issuer  string
	secrets SecretStore
}

// NewEnrollment constructs the enrollment surface with the given issuer label.
func NewEnrollment(issuer string, secrets SecretStore) *Enrollment {
	return &Enrollment{issuer: issuer, secrets: secrets}
}

// ProvisioningURI builds the otpauth URI for one enrolled username.
func (e *Enrollment) ProvisioningURI(ctx context.Context, username string) (string, error) {
	secret, err := e.secrets.Secret(ctx, username)
	if err != nil {
		return "", err
	}
	raw, err := decodeSecret(secret)
	if err != nil {
		return "", fmt.Errorf("decode totp secret for %q: %w", username, err)
	}
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      e.issuer,
		AccountName: username,
		Secret:      raw,
		Period:      Period,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", fmt.Errorf("build provisioning key for %q: %w", username, err)
	}
	return key.URL(), nil
}

// List returns provisioning artifacts for every enrolled username.
func (e *Enrollment) List(ctx context.Context) ([]Provisioning, error) {
	usernames, err := e.secrets.List(ctx)
	if err != nil {
		return nil, err
	}
	artifacts := make([]Provisioning, 0, len(usernames))
	for _, username := range usernames {
		uri, err := e.ProvisioningURI(ctx, username)
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, Provisioning{Username: username, URI: uri})
	}
	return artifacts, nil
}

// decodeSecret accepts the registry's base32 form, tolerating missing padding
// and lowercase input the way authenticator apps do.
func decodeSecret(secret string) ([]byte, error) {
	normalized := strings.ToUpper(strings.TrimSpace(secret))
	if pad := len(normalized) % 8; pad != 0 {
		normalized += strings.Repeat("=", 8-pad)
	}
	return base32.StdEncoding.DecodeString(normalized)
}
