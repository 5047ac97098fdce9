package httptransport

import (
	"net/http"
	"net/url"

	"portal-gateway/internal/auth"
	dErrors "portal-gateway/pkg/domain-errors"
)

// handleLoginForm returns what the login page needs: the department list.
func (h *Handler) handleLoginForm(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"departments": h.departments.Names(),
	})
}

// handleLogin runs the first authentication step. On success the browser is
// redirected to the second-factor step carrying a fresh pending-state cookie.
func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid form submission"))
		return
	}

	// A browser that still holds state starts over; logging in again always
	// abandons any half-finished flow.
	if stateID := h.stateCookie(r); stateID != "" {
		_ = h.flow.Logout(r.Context(), stateID)
	}

	result, err := h.flow.SubmitCredentials(r.Context(), auth.CredentialsRequest{
		Username:   r.PostFormValue("username"),
		Password:   r.PostFormValue("password"),
		Department: r.PostFormValue("department"),
	})
	if err != nil {
		h.clearStateCookie(w)
		writeError(w, err)
		return
	}

	h.setStateCookie(w, result.StateID, h.pendingTTL)
	http.Redirect(w, r, "/employee/totp", http.StatusSeeOther)
}

// handleSecondFactor runs the TOTP step. Success rotates the cookie to the
// session ID and redirects to the department dashboard; an invalid code
// leaves the pending state in place so the user may retry within its TTL.
func (h *Handler) handleSecondFactor(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, dErrors.New(dErrors.CodeInvalidInput, "invalid form submission"))
		return
	}

	stateID := h.stateCookie(r)
	if stateID == "" {
		writeError(w, dErrors.New(dErrors.CodeSessionExpired, "session expired, please log in again"))
		return
	}

	result, err := h.flow.SubmitSecondFactor(r.Context(), stateID, r.PostFormValue("totp_code"))
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeSessionExpired) {
			h.clearStateCookie(w)
		}
		writeError(w, err)
		return
	}

	h.setStateCookie(w, result.SessionID, h.sessionTTL)
	http.Redirect(w, r, "/dashboard/"+url.PathEscape(result.Session.Principal.Department), http.StatusSeeOther)
}

// handleLogout clears the session and returns the browser to the landing page.
func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if stateID := h.stateCookie(r); stateID != "" {
		if err := h.flow.Logout(r.Context(), stateID); err != nil {
			h.logger.Warn("logout failed", "error", err)
		}
	}
	h.clearStateCookie(w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleEnroll lists the provisioning URIs for enrolled users. Rendering the
// scannable artifact is the caller's concern.
func (h *Handler) handleEnroll(w http.ResponseWriter, r *http.Request) {
	artifacts, err := h.enrollment.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"enrollments": artifacts})
}
