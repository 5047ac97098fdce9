// Package config builds runtime configuration for the gateway. Values are
// env-first so main stays lean; an optional TOML file can override the
// department table and any scalar setting for a deployment.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config captures everything the gateway needs at startup.
type Config struct {
	Addr     string `toml:"addr"`
	LogLevel string `toml:"log_level"`

	LDAP LDAPConfig `toml:"ldap"`

	// PendingTTL bounds the window between credential acceptance and the
	// second factor. It is deliberately independent of SessionTTL.
	PendingTTL time.Duration `toml:"-"`
	SessionTTL time.Duration `toml:"-"`

	AuditLogFile string `toml:"audit_log_file"`

	// Optional backends. Empty means the in-memory implementation is used.
	RedisURL     string   `toml:"redis_url"`
	PostgresDSN  string   `toml:"postgres_dsn"`
	KafkaBrokers []string `toml:"kafka_brokers"`
	KafkaTopic   string   `toml:"kafka_topic"`

	Issuer             string `toml:"issuer"`
	IdentitySigningKey string `toml:"identity_signing_key"`

	CookieName   string `toml:"cookie_name"`
	CookieSecure bool   `toml:"cookie_secure"`

	TOTPSecretsFile string `toml:"totp_secrets_file"`

	// Second-factor lockout, applied per username.
	LockoutThreshold int           `toml:"lockout_threshold"`
	LockoutWindow    time.Duration `toml:"-"`

	Departments map[string]DepartmentConfig `toml:"departments"`

	// Raw duration strings from TOML, parsed into the fields above.
	PendingTTLRaw    string `toml:"pending_ttl"`
	SessionTTLRaw    string `toml:"session_ttl"`
	LockoutWindowRaw string `toml:"lockout_window"`
}

// LDAPConfig addresses the directory service.
type LDAPConfig struct {
	URL         string        `toml:"url"`
	UserBase    string        `toml:"user_base"`
	EmailDomain string        `toml:"email_domain"`
	Timeout     time.Duration `toml:"-"`
	TimeoutRaw  string        `toml:"timeout"`
}

// DepartmentConfig overrides one row of the department table.
type DepartmentConfig struct {
	Group     string `toml:"group"`
	Dashboard string `toml:"dashboard"`
}

// FromEnv builds a Config from environment variables with workable defaults.
func FromEnv() Config {
	cfg := Config{
		Addr:               envOr("PORTAL_ADDR", ":8080"),
		LogLevel:           envOr("PORTAL_LOG_LEVEL", "info"),
		PendingTTL:         envDuration("PORTAL_PENDING_TTL", 5*time.Minute),
		SessionTTL:         envDuration("PORTAL_SESSION_TTL", 8*time.Hour),
		AuditLogFile:       envOr("PORTAL_AUDIT_LOG", "logs/access.log"),
		RedisURL:           os.Getenv("PORTAL_REDIS_URL"),
		PostgresDSN:        os.Getenv("PORTAL_POSTGRES_DSN"),
		KafkaTopic:         envOr("PORTAL_KAFKA_TOPIC", "portal.audit"),
		Issuer:             envOr("PORTAL_ISSUER", "Henry Enterprise Portal"),
		IdentitySigningKey: envOr("PORTAL_IDENTITY_KEY", "dev-secret-key-change-in-production"),
		CookieName:         envOr("PORTAL_COOKIE_NAME", "portal_session"),
		CookieSecure:       os.Getenv("PORTAL_COOKIE_SECURE") == "true",
		TOTPSecretsFile:    os.Getenv("PORTAL_TOTP_SECRETS_FILE"),
		LockoutThreshold:   5,
		LockoutWindow:      envDuration("PORTAL_LOCKOUT_WINDOW", 15*time.Minute),
		LDAP: LDAPConfig{
			URL:         envOr("PORTAL_LDAP_URL", "ldap://localhost:389"),
			UserBase:    envOr("PORTAL_LDAP_USER_BASE", "cn=users,cn=accounts,dc=henry-iam,dc=internal"),
			EmailDomain: envOr("PORTAL_EMAIL_DOMAIN", "henry-iam.internal"),
			Timeout:     envDuration("PORTAL_LDAP_TIMEOUT", 5*time.Second),
		},
	}
	if brokers := os.Getenv("PORTAL_KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}
	return cfg
}

// ApplyFile overlays a TOML file on top of the current config. Duration
// fields are carried as strings in the file and parsed here.
func (c *Config) ApplyFile(path string) error {
	if _, err := toml.DecodeFile(path, c); err != nil {
		return fmt.Errorf("load config file %s: %w", path, err)
	}
	durations := []struct {
		raw string
		dst *time.Duration
	}{
		{c.PendingTTLRaw, &c.PendingTTL},
		{c.SessionTTLRaw, &c.SessionTTL},
		{c.LockoutWindowRaw, &c.LockoutWindow},
		{c.LDAP.TimeoutRaw, &c.LDAP.Timeout},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("parse duration %q in %s: %w", d.raw, path, err)
		}
		*d.dst = parsed
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
