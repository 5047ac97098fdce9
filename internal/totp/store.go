package totp

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/BurntSushi/toml"

	"portal-gateway/pkg/platform/sentinel"
)

// SecretStore is the keyed registry of per-principal shared secrets. Absence
// of an entry means "not enrolled". Implementations must be safe for
// concurrent readers; the gateway only reads at request time.
type SecretStore interface {
	Secret(ctx context.Context, username string) (string, error)
	Enrolled(ctx context.Context, username string) (bool, error)
	List(ctx context.Context) ([]string, error)
}

// MemoryStore keeps secrets in memory. Suitable for dev and tests; swap the
// Postgres store in for real deployments.
type MemoryStore struct {
	mu      sync.RWMutex
	secrets map[string]string
}

// NewMemoryStore constructs a store pre-populated with the given secrets.
func NewMemoryStore(secrets map[string]string) *MemoryStore {
	s := &MemoryStore{secrets: make(map[string]string, len(secrets))}
	for username, secret := range secrets {
		s.secrets[username] = secret
	}
	return s
}

// Add enrolls or replaces a secret for a username.
func (s *MemoryStore) Add(username, secret string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secrets[username] = secret
}

func (s *MemoryStore) Secret(_ context.Context, username string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	secret, ok := s.secrets[username]
	if !ok {
		return "", fmt.Errorf("totp secret for %q: %w", username, sentinel.ErrNotFound)
	}
	return secret, nil
}

func (s *MemoryStore) Enrolled(_ context.Context, username string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.secrets[username]
	return ok, nil
}

func (s *MemoryStore) List(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	usernames := make([]string, 0, len(s.secrets))
	for username := range s.secrets {
		usernames = append(usernames, username)
	}
	sort.Strings(usernames)
	return usernames, nil
}

// seedFile is the TOML shape of a secret seed file:
//
//	[secrets]
//	sarah = "JBSWY3DPEHPK3PXP"
type seedFile struct {
	Secrets map[string]string `toml:"secrets"`
}

// LoadSeedFile reads a TOML seed file and returns its username→secret table.
func LoadSeedFile(path string) (map[string]string, error) {
	var seed seedFile
	if _, err := toml.DecodeFile(path, &seed); err != nil {
		return nil, fmt.Errorf("load totp seed file %s: %w", path, err)
	}
	return seed.Secrets, nil
}
