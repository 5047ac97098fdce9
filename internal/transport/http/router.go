// Package httptransport is the thin HTTP layer over the authentication flow.
// Handlers delegate to domain services and keep transport concerns (cookies,
// redirects, error envelopes) out of business logic.
package httptransport

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"portal-gateway/internal/audit"
	"portal-gateway/internal/auth"
	"portal-gateway/internal/domain"
	"portal-gateway/internal/identity"
	"portal-gateway/internal/session"
	"portal-gateway/internal/totp"
	dErrors "portal-gateway/pkg/domain-errors"
)

// AuditLister exposes recent audit records for the admin view.
type AuditLister interface {
	ListRecent(ctx context.Context, n int) ([]audit.Event, error)
}

// CookieConfig controls the browser state cookie.
type CookieConfig struct {
	Name   string
	Secure bool
}

// Handler wires the gateway's public endpoints.
type Handler struct {
	flow        *auth.Service
	sessions    *session.Manager
	departments *domain.Departments
	enrollment  *totp.Enrollment
	signer      *identity.Signer
	auditLog    AuditLister
	cookie      CookieConfig
	pendingTTL  time.Duration
	sessionTTL  time.Duration
	logger      *slog.Logger

	proxies map[string]http.Handler
}

// NewHandler constructs the HTTP handler and builds one reverse proxy per
// configured department dashboard.
func NewHandler(
	flow *auth.Service,
	sessions *session.Manager,
	departments *domain.Departments,
	enrollment *totp.Enrollment,
	signer *identity.Signer,
	auditLog AuditLister,
	cookie CookieConfig,
	pendingTTL, sessionTTL time.Duration,
	logger *slog.Logger,
) *Handler {
	h := &Handler{
		flow:        flow,
		sessions:    sessions,
		departments: departments,
		enrollment:  enrollment,
		signer:      signer,
		auditLog:    auditLog,
		cookie:      cookie,
		pendingTTL:  pendingTTL,
		sessionTTL:  sessionTTL,
		logger:      logger,
	}
	h.buildProxies()
	return h
}

// NewRouter mounts all public endpoints.
func NewRouter(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Get("/", h.handleLanding)
	r.Get("/healthz", h.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Get("/employee/login", h.handleLoginForm)
	r.Post("/employee/login", h.handleLogin)
	r.Post("/employee/totp", h.handleSecondFactor)
	r.Get("/employee/enroll-totp", h.handleEnroll)
	r.Get("/logout", h.handleLogout)

	r.Get("/dashboard/{department}", h.handleDashboard)
	r.Get("/dashboard/{department}/*", h.handleDashboard)
	r.Get("/admin/audit", h.handleAuditLog)

	return r
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"service": "portal-gateway",
		"status":  "ok",
	})
}

// stateCookie reads the browser's opaque state ID, empty when anonymous.
func (h *Handler) stateCookie(r *http.Request) string {
	cookie, err := r.Cookie(h.cookie.Name)
	if err != nil {
		return ""
	}
	return cookie.Value
}

func (h *Handler) setStateCookie(w http.ResponseWriter, id string, ttl time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    id,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) clearStateCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookie.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError centralizes domain error translation to HTTP responses. Only
// the coded user-safe message is rendered; internal detail stays server-side.
func writeError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	writeJSON(w, dErrors.ToHTTPStatus(code), map[string]string{
		"error":   string(code),
		"message": dErrors.MessageOf(err),
	})
}
