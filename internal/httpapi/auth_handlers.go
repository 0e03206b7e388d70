package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"fuelgrid.org/internal/access"
)

type loginRequest struct {
	TenantID string `json:"tenant_id,omitempty"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	Token            string    `json:"token"`
	SessionID        string    `json:"session_id"`
	ExpiresAt        time.Time `json:"expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

type refreshRequest struct {
	SessionID string `json:"session_id"`
}

// handleLogin authenticates credentials, issues a session and returns a
// bearer token bound to it. Wrong email and wrong password are not
// distinguished in the response.
func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	if a.opts.Sessions == nil || a.opts.Tokens == nil || a.opts.Store == nil {
		writeError(w, http.StatusServiceUnavailable, "auth unavailable")
		return
	}
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	tenant := strings.TrimSpace(req.TenantID)
	if tenant == "" {
		tenant = a.opts.DefaultTenant
	}
	email := strings.TrimSpace(strings.ToLower(req.Email))
	if tenant == "" || email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "tenant, email and password are required")
		return
	}

	user, err := a.opts.Store.Users(r.Context()).FindByEmail(r.Context(), tenant, email)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err := access.VerifyPassword(user.PwdHash, user.PwdSalt, req.Password); err != nil {
		writeError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	sess, err := a.opts.Sessions.Issue(r.Context(), user)
	if err != nil {
		if errors.Is(err, access.ErrUnauthorized) {
			writeError(w, http.StatusUnauthorized, "account disabled")
			return
		}
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}
	token, err := a.opts.Tokens.Issue(sess)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "login failed")
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{
		Token:            token,
		SessionID:        sess.ID,
		ExpiresAt:        sess.ExpiresAt,
		RefreshExpiresAt: sess.RefreshExpiresAt,
	})
}

// handleRefresh renews an expired session's access window and returns a
// fresh token. A session past its refresh deadline cannot be renewed; the
// client must log in again.
func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	if a.opts.Sessions == nil || a.opts.Tokens == nil {
		writeError(w, http.StatusServiceUnavailable, "auth unavailable")
		return
	}
	var req refreshRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	sess, err := a.opts.Sessions.Renew(r.Context(), req.SessionID)
	if err != nil {
		switch {
		case errors.Is(err, access.ErrNotFound):
			writeError(w, http.StatusUnauthorized, "session not found, re-authenticate")
		case errors.Is(err, access.ErrInvalidInput):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, "refresh failed")
		}
		return
	}
	token, err := a.opts.Tokens.Issue(sess)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "refresh failed")
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{
		Token:            token,
		SessionID:        sess.ID,
		ExpiresAt:        sess.ExpiresAt,
		RefreshExpiresAt: sess.RefreshExpiresAt,
	})
}

// handleLogout revokes the caller's session. Revoking twice is harmless.
func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	principal, ok := access.PrincipalFromContext(r.Context())
	if !ok || principal.Session == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}
	if err := a.opts.Sessions.Revoke(r.Context(), principal.Session.ID); err != nil {
		writeError(w, http.StatusInternalServerError, "logout failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
