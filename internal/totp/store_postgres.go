package totp

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"portal-gateway/pkg/platform/sentinel"
)

// PostgresStore backs the secret registry with a Postgres table so enrollment
// can be managed outside the gateway process.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an open database handle.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureSchema creates the secrets table when it does not exist yet.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS portal_totp_secrets (
			username TEXT PRIMARY KEY,
			secret   TEXT NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("ensure totp schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Secret(ctx context.Context, username string) (string, error) {
	var secret string
	err := s.db.QueryRowContext(ctx,
		`SELECT secret FROM portal_totp_secrets WHERE username = $1`, username).Scan(&secret)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("totp secret for %q: %w", username, sentinel.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("query totp secret: %w", err)
	}
	return secret, nil
}

func (s *PostgresStore) Enrolled(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM portal_totp_secrets WHERE username = $1)`, username).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query totp enrollment: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT username FROM portal_totp_secrets ORDER BY username`)
	if err != nil {
		return nil, fmt.Errorf("list totp enrollments: %w", err)
	}
	defer rows.Close()

	var usernames []string
	for rows.Next() {
		var username string
		if err := rows.Scan(&username); err != nil {
			return nil, fmt.Errorf("scan totp enrollment: %w", err)
		}
		usernames = append(usernames, username)
	}
	return usernames, rows.Err()
}

// Add enrolls or replaces a secret for a username.
func (s *PostgresStore) Add(ctx context.Context, username, secret string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO portal_totp_secrets (username, secret) VALUES ($1, $2)
		ON CONFLICT (username) DO UPDATE SET secret = EXCLUDED.secret`,
		username, secret)
	if err != nil {
		return fmt.Errorf("save totp secret: %w", err)
	}
	return nil
}
