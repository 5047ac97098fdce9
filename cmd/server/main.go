package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"portal-gateway/internal/audit"
	"portal-gateway/internal/auth"
	"portal-gateway/internal/directory"
	"portal-gateway/internal/domain"
	"portal-gateway/internal/identity"
	"portal-gateway/internal/platform/config"
	"portal-gateway/internal/platform/httpserver"
	"portal-gateway/internal/platform/logger"
	"portal-gateway/internal/platform/metrics"
	platformredis "portal-gateway/internal/platform/redis"
	"portal-gateway/internal/session"
	"portal-gateway/internal/totp"
	httptransport "portal-gateway/internal/transport/http"
)

const identityAssertionTTL = time.Minute

// main wires high-level dependencies and keeps the server lifecycle small.
// Business logic lives in the internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New(logger.ParseLevel(cfg.LogLevel))

	if path := os.Getenv("PORTAL_CONFIG_FILE"); path != "" {
		if err := cfg.ApplyFile(path); err != nil {
			log.Error("config file rejected", "error", err)
			os.Exit(1)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New()
	departments := buildDepartments(cfg)

	var db *sql.DB
	if cfg.PostgresDSN != "" {
		var err error
		db, err = sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			log.Error("postgres open failed", "error", err)
			os.Exit(1)
		}
		if err := db.PingContext(ctx); err != nil {
			log.Error("postgres ping failed", "error", err)
			os.Exit(1)
		}
		defer db.Close()
	}

	secrets, err := buildSecretStore(ctx, cfg, db)
	if err != nil {
		log.Error("totp secret store setup failed", "error", err)
		os.Exit(1)
	}

	recorder, auditView, closeAudit, err := buildAuditTrail(ctx, cfg, db, log)
	if err != nil {
		log.Error("audit trail setup failed", "error", err)
		os.Exit(1)
	}
	defer closeAudit()

	stateStore, err := buildStateStore(ctx, cfg, log)
	if err != nil {
		log.Error("state store setup failed", "error", err)
		os.Exit(1)
	}

	sessions := session.NewManager(stateStore, departments, cfg.PendingTTL, cfg.SessionTTL,
		session.WithMetrics(m))
	dirClient := directory.New(cfg.LDAP.URL, cfg.LDAP.UserBase, cfg.LDAP.EmailDomain,
		cfg.LDAP.Timeout, departments, directory.WithLogger(log))
	verifier := totp.NewVerifier(secrets)
	enrollment := totp.NewEnrollment(cfg.Issuer, secrets)
	lockout := auth.NewLockout(cfg.LockoutThreshold, cfg.LockoutWindow)
	flow := auth.NewService(dirClient, verifier, sessions, recorder, lockout, m, log)
	signer := identity.NewSigner(cfg.IdentitySigningKey, cfg.Issuer, identityAssertionTTL)

	handler := httptransport.NewHandler(flow, sessions, departments, enrollment, signer,
		auditView, httptransport.CookieConfig{Name: cfg.CookieName, Secure: cfg.CookieSecure},
		cfg.PendingTTL, cfg.SessionTTL, log)
	srv := httpserver.New(cfg.Addr, httptransport.NewRouter(handler))

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		log.Info("starting portal-gateway", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	group.Go(func() error {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-groupCtx.Done():
				return nil
			case <-ticker.C:
				if purged := sessions.PurgeExpired(); purged > 0 {
					log.Debug("purged expired browser state", "count", purged)
				}
				lockout.Sweep()
			}
		}
	})

	if err := group.Wait(); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}

// buildDepartments applies config overrides on top of the standing table.
func buildDepartments(cfg config.Config) *domain.Departments {
	if len(cfg.Departments) == 0 {
		return domain.DefaultDepartments()
	}
	groups := make(map[string]string, len(cfg.Departments))
	dashboards := make(map[string]string, len(cfg.Departments))
	precedence := make([]string, 0, len(cfg.Departments))
	for name, dept := range cfg.Departments {
		groups[name] = dept.Group
		if dept.Dashboard != "" {
			dashboards[name] = dept.Dashboard
		}
	}
	for _, name := range domain.DefaultDepartments().Names() {
		if _, ok := groups[name]; ok {
			precedence = append(precedence, name)
		}
	}
	return domain.NewDepartments(groups, dashboards, precedence)
}

func buildSecretStore(ctx context.Context, cfg config.Config, db *sql.DB) (totp.SecretStore, error) {
	if db != nil {
		store := totp.NewPostgresStore(db)
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return store, nil
	}
	seed := map[string]string{}
	if cfg.TOTPSecretsFile != "" {
		loaded, err := totp.LoadSeedFile(cfg.TOTPSecretsFile)
		if err != nil {
			return nil, err
		}
		seed = loaded
	}
	return totp.NewMemoryStore(seed), nil
}

// buildAuditTrail assembles the recorder's sinks: the append-only log file,
// a bounded in-memory view for the admin endpoint, and optionally Postgres
// and Kafka.
func buildAuditTrail(ctx context.Context, cfg config.Config, db *sql.DB, log *slog.Logger) (*audit.Recorder, httptransport.AuditLister, func(), error) {
	fileSink, err := audit.NewFileSink(cfg.AuditLogFile)
	if err != nil {
		return nil, nil, nil, err
	}

	memory := audit.NewMemoryStore(1000)
	sinks := []audit.Sink{fileSink, memory}
	closers := []func(){func() { _ = fileSink.Close() }}

	if db != nil {
		pgSink := audit.NewPostgresSink(db)
		if err := pgSink.EnsureSchema(ctx); err != nil {
			return nil, nil, nil, err
		}
		sinks = append(sinks, pgSink)
	}

	if len(cfg.KafkaBrokers) > 0 {
		kafkaSink, err := audit.NewKafkaSink(ctx, cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			return nil, nil, nil, err
		}
		sinks = append(sinks, kafkaSink)
		closers = append(closers, kafkaSink.Close)
	}

	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}
	return audit.NewRecorder(log, sinks...), memory, closeAll, nil
}

func buildStateStore(ctx context.Context, cfg config.Config, log *slog.Logger) (session.StateStore, error) {
	client, err := platformredis.New(ctx, cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	if client != nil {
		log.Info("using redis state store")
		return session.NewRedisStore(client.Client), nil
	}
	return session.NewMemoryStore(), nil
}
