package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"fuelgrid.org/internal/access"
	"fuelgrid.org/internal/obs"
)

type checkRequest struct {
	UserID   string         `json:"user_id,omitempty"`
	Section  string         `json:"section"`
	Resource string         `json:"resource"`
	Action   access.Action  `json:"action"`
	Context  access.Context `json:"context,omitempty"`
}

type checkAnyRequest struct {
	UserID  string         `json:"user_id,omitempty"`
	Checks  []access.Check `json:"checks"`
	Context access.Context `json:"context,omitempty"`
}

type checkResponse struct {
	Allowed bool `json:"allowed"`
}

// resolveSubject picks the user the check runs against: the caller itself,
// or any user by id when the caller holds users:read.
func (a *API) resolveSubject(r *http.Request, userID string) (*access.User, error) {
	principal, ok := access.PrincipalFromContext(r.Context())
	if !ok {
		return nil, access.ErrUnauthorized
	}
	userID = strings.TrimSpace(userID)
	if userID == "" || userID == principal.User.ID {
		return principal.User, nil
	}
	if !principal.User.HasPermission(access.SectionUsers, "users", access.ActionRead, nil) {
		return nil, access.ErrUnauthorized
	}
	return a.opts.Store.Users(r.Context()).Find(r.Context(), userID)
}

// handleAccessCheck evaluates one permission check. A deny is a normal 200
// with allowed=false, not an error.
func (a *API) handleAccessCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var req checkRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Section) == "" || strings.TrimSpace(req.Resource) == "" || req.Action == "" {
		writeError(w, http.StatusBadRequest, "section, resource and action are required")
		return
	}
	user, err := a.resolveSubject(r, req.UserID)
	if err != nil {
		respondSubjectError(w, err)
		return
	}
	allowed := user.HasPermission(req.Section, req.Resource, req.Action, req.Context)
	obs.ObserveAccessCheck(allowed)
	writeJSON(w, http.StatusOK, checkResponse{Allowed: allowed})
}

// handleAccessCheckAny evaluates a batch and reports whether any check
// passes; the UI uses it for menu visibility.
func (a *API) handleAccessCheckAny(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var req checkAnyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.Checks) == 0 {
		writeError(w, http.StatusBadRequest, "checks are required")
		return
	}
	user, err := a.resolveSubject(r, req.UserID)
	if err != nil {
		respondSubjectError(w, err)
		return
	}
	allowed := user.HasAnyPermission(req.Checks, req.Context)
	obs.ObserveAccessCheck(allowed)
	writeJSON(w, http.StatusOK, checkResponse{Allowed: allowed})
}

func respondSubjectError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, access.ErrUnauthorized):
		writeError(w, http.StatusForbidden, "permission denied")
	case errors.Is(err, access.ErrNotFound):
		writeError(w, http.StatusNotFound, "user not found")
	default:
		writeError(w, http.StatusInternalServerError, "check failed")
	}
}
