package httptransport

import (
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"portal-gateway/internal/domain"
	"portal-gateway/internal/identity"
	dErrors "portal-gateway/pkg/domain-errors"
)

// buildProxies creates one reverse proxy per configured department dashboard.
// Departments with an unparseable upstream are skipped and logged; requests
// for them fail with a 502 at dispatch time.
func (h *Handler) buildProxies() {
	h.proxies = make(map[string]http.Handler)
	for _, name := range h.departments.Names() {
		dest, err := h.departments.Dashboard(name)
		if err != nil {
			continue
		}
		target, err := url.Parse(dest)
		if err != nil {
			h.logger.Warn("invalid dashboard upstream", "department", name, "upstream", dest)
			continue
		}
		h.proxies[name] = httputil.NewSingleHostReverseProxy(target)
	}
}

// handleLanding routes an authenticated browser to its highest-precedence
// dashboard and everyone else to the login step.
func (h *Handler) handleLanding(w http.ResponseWriter, r *http.Request) {
	stateID := h.stateCookie(r)
	if stateID == "" {
		http.Redirect(w, r, "/employee/login", http.StatusSeeOther)
		return
	}
	sess, err := h.sessions.FindSession(r.Context(), stateID)
	if err != nil {
		http.Redirect(w, r, "/employee/login", http.StatusSeeOther)
		return
	}
	if dept, ok := h.departments.PrimaryDepartment(sess.Principal.Groups); ok {
		http.Redirect(w, r, "/dashboard/"+url.PathEscape(dept), http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/dashboard/"+url.PathEscape(sess.Principal.Department), http.StatusSeeOther)
}

// handleDashboard authorizes the session for the requested department and
// proxies the request to that department's dashboard, attaching the signed
// identity assertion. Denials never enumerate other departments.
func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	department, err := url.PathUnescape(chi.URLParam(r, "department"))
	if err != nil {
		writeError(w, dErrors.New(dErrors.CodeInvalidDepartment, "invalid department selected"))
		return
	}

	sess, err := h.sessions.Authorize(r.Context(), h.stateCookie(r), department)
	if err != nil {
		writeError(w, err)
		return
	}

	proxy, ok := h.proxies[department]
	if !ok {
		writeError(w, dErrors.New(dErrors.CodeInternal, "dashboard unavailable"))
		return
	}

	assertion, err := h.signer.Mint(sess)
	if err != nil {
		writeError(w, dErrors.Wrap(err, dErrors.CodeInternal, "dashboard unavailable"))
		return
	}

	r.Header.Set(identity.HeaderName, assertion)
	r.URL.Path = dashboardPath(r.URL.Path, department)
	proxy.ServeHTTP(w, r)
}

// dashboardPath strips the /dashboard/{department} prefix so upstreams see
// their own root. full is the decoded request path, so the prefix is built
// from the decoded department name.
func dashboardPath(full, department string) string {
	prefix := "/dashboard/" + department
	rest := strings.TrimPrefix(full, prefix)
	if rest == "" || !strings.HasPrefix(rest, "/") {
		return "/" + strings.TrimPrefix(rest, "/")
	}
	return rest
}

// handleAuditLog serves the most recent audit records to the Admin dashboard.
func (h *Handler) handleAuditLog(w http.ResponseWriter, r *http.Request) {
	if _, err := h.sessions.Authorize(r.Context(), h.stateCookie(r), domain.DepartmentAdmin); err != nil {
		writeError(w, err)
		return
	}
	events, err := h.auditLog.ListRecent(r.Context(), 50)
	if err != nil {
		writeError(w, dErrors.Wrap(err, dErrors.CodeInternal, "could not load audit log"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": events})
}
