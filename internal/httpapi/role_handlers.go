package httpapi

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"fuelgrid.org/internal/access"
)

type createRoleRequest struct {
	TenantID    string              `json:"tenant_id,omitempty"`
	Code        string              `json:"code"`
	Name        string              `json:"name"`
	Description string              `json:"description,omitempty"`
	Permissions []access.Permission `json:"permissions"`
	Scope       access.Scope        `json:"scope"`
	ScopeValues []string            `json:"scope_values,omitempty"`
}

type updateRoleRequest struct {
	Code        *string             `json:"code,omitempty"`
	Name        *string             `json:"name,omitempty"`
	Description *string             `json:"description,omitempty"`
	Permissions []access.Permission `json:"permissions,omitempty"`
	Scope       *access.Scope       `json:"scope,omitempty"`
	ScopeValues []string            `json:"scope_values,omitempty"`
	IsActive    *bool               `json:"is_active,omitempty"`
}

type assignRoleRequest struct {
	RoleID     string     `json:"role_id"`
	ScopeValue string     `json:"scope_value,omitempty"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

type createUserRequest struct {
	TenantID string `json:"tenant_id,omitempty"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	Phone    string `json:"phone,omitempty"`
	Password string `json:"password"`
}

type updateUserRequest struct {
	Status *access.Status `json:"status,omitempty"`
}

func (a *API) tenantFor(r *http.Request, requested string) string {
	requested = strings.TrimSpace(requested)
	if requested != "" {
		return requested
	}
	if p, ok := access.PrincipalFromContext(r.Context()); ok {
		return p.User.TenantID
	}
	return a.opts.DefaultTenant
}

// handleRoles serves POST (create) and GET (list) on /v1/roles.
func (a *API) handleRoles(w http.ResponseWriter, r *http.Request) {
	if a.opts.Roles == nil {
		writeError(w, http.StatusServiceUnavailable, "role service unavailable")
		return
	}
	switch r.Method {
	case http.MethodPost:
		if !a.ensurePermission(w, r, access.SectionRoles, "roles", access.ActionWrite) {
			return
		}
		var req createRoleRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		role, err := a.opts.Roles.Create(r.Context(), access.CreateRoleInput{
			TenantID:    a.tenantFor(r, req.TenantID),
			Code:        req.Code,
			Name:        req.Name,
			Description: req.Description,
			Permissions: req.Permissions,
			Scope:       req.Scope,
			ScopeValues: req.ScopeValues,
		})
		if err != nil {
			mapAccessError(w, err)
			return
		}
		w.Header().Set("Location", fmt.Sprintf("/v1/roles/%s", role.ID))
		writeJSON(w, http.StatusCreated, role)
	case http.MethodGet:
		if !a.ensurePermission(w, r, access.SectionRoles, "roles", access.ActionRead) {
			return
		}
		roles, err := a.opts.Roles.ListByTenant(r.Context(), a.tenantFor(r, r.URL.Query().Get("tenant_id")))
		if err != nil {
			mapAccessError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"roles": roles})
	default:
		methodNotAllowed(w, "GET, POST")
	}
}

// handleRoleResource serves GET/PATCH/DELETE on /v1/roles/{id}.
func (a *API) handleRoleResource(w http.ResponseWriter, r *http.Request) {
	if a.opts.Roles == nil {
		writeError(w, http.StatusServiceUnavailable, "role service unavailable")
		return
	}
	parts := splitPath(r, "/v1/roles/")
	if len(parts) != 1 {
		writeError(w, http.StatusNotFound, "resource not found")
		return
	}
	roleID := parts[0]

	switch r.Method {
	case http.MethodGet:
		if !a.ensurePermission(w, r, access.SectionRoles, "roles", access.ActionRead) {
			return
		}
		role, err := a.opts.Roles.Get(r.Context(), roleID)
		if err != nil {
			mapAccessError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, role)
	case http.MethodPatch:
		if !a.ensurePermission(w, r, access.SectionRoles, "roles", access.ActionWrite) {
			return
		}
		var req updateRoleRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		role, err := a.opts.Roles.Update(r.Context(), roleID, access.RoleUpdate{
			Code:        req.Code,
			Name:        req.Name,
			Description: req.Description,
			Permissions: req.Permissions,
			Scope:       req.Scope,
			ScopeValues: req.ScopeValues,
			IsActive:    req.IsActive,
		})
		if err != nil {
			mapAccessError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, role)
	case http.MethodDelete:
		if !a.ensurePermission(w, r, access.SectionRoles, "roles", access.ActionDelete) {
			return
		}
		if err := a.opts.Roles.SoftDelete(r.Context(), roleID); err != nil {
			mapAccessError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	default:
		methodNotAllowed(w, "GET, PATCH, DELETE")
	}
}

// handleUsers serves POST (create) and GET (list) on /v1/users.
func (a *API) handleUsers(w http.ResponseWriter, r *http.Request) {
	if a.opts.Users == nil {
		writeError(w, http.StatusServiceUnavailable, "user service unavailable")
		return
	}
	switch r.Method {
	case http.MethodPost:
		if !a.ensurePermission(w, r, access.SectionUsers, "users", access.ActionWrite) {
			return
		}
		var req createUserRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		user, err := a.opts.Users.Create(r.Context(), access.CreateUserInput{
			TenantID: a.tenantFor(r, req.TenantID),
			Email:    req.Email,
			Name:     req.Name,
			Phone:    req.Phone,
			Password: req.Password,
		})
		if err != nil {
			mapAccessError(w, err)
			return
		}
		w.Header().Set("Location", fmt.Sprintf("/v1/users/%s", user.ID))
		writeJSON(w, http.StatusCreated, user)
	case http.MethodGet:
		if !a.ensurePermission(w, r, access.SectionUsers, "users", access.ActionRead) {
			return
		}
		users, err := a.opts.Users.ListByTenant(r.Context(), a.tenantFor(r, r.URL.Query().Get("tenant_id")))
		if err != nil {
			mapAccessError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"users": users})
	default:
		methodNotAllowed(w, "GET, POST")
	}
}

// handleUserResource serves GET/PATCH/DELETE on /v1/users/{id} and POST
// /v1/users/{id}/assignments.
func (a *API) handleUserResource(w http.ResponseWriter, r *http.Request) {
	if a.opts.Users == nil {
		writeError(w, http.StatusServiceUnavailable, "user service unavailable")
		return
	}
	parts := splitPath(r, "/v1/users/")
	switch {
	case len(parts) == 1:
		switch r.Method {
		case http.MethodGet:
			if !a.ensurePermission(w, r, access.SectionUsers, "users", access.ActionRead) {
				return
			}
			user, err := a.opts.Users.Get(r.Context(), parts[0])
			if err != nil {
				mapAccessError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, user)
		case http.MethodPatch:
			if !a.ensurePermission(w, r, access.SectionUsers, "users", access.ActionWrite) {
				return
			}
			var req updateUserRequest
			if err := decodeJSON(r, &req); err != nil {
				writeError(w, http.StatusBadRequest, err.Error())
				return
			}
			if req.Status == nil {
				writeError(w, http.StatusBadRequest, "status is required")
				return
			}
			user, err := a.opts.Users.UpdateStatus(r.Context(), parts[0], *req.Status)
			if err != nil {
				mapAccessError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, user)
		case http.MethodDelete:
			if !a.ensurePermission(w, r, access.SectionUsers, "users", access.ActionDelete) {
				return
			}
			if err := a.opts.Users.SoftDelete(r.Context(), parts[0]); err != nil {
				mapAccessError(w, err)
				return
			}
			w.WriteHeader(http.StatusNoContent)
		default:
			methodNotAllowed(w, "GET, PATCH, DELETE")
		}
	case len(parts) == 2 && parts[1] == "assignments":
		if r.Method != http.MethodPost {
			methodNotAllowed(w, http.MethodPost)
			return
		}
		if a.opts.Roles == nil {
			writeError(w, http.StatusServiceUnavailable, "role service unavailable")
			return
		}
		if !a.ensurePermission(w, r, access.SectionUsers, "users", access.ActionManage) {
			return
		}
		var req assignRoleRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		var assignedBy string
		if p, ok := access.PrincipalFromContext(r.Context()); ok {
			assignedBy = p.User.ID
		}
		ur, err := a.opts.Roles.Assign(r.Context(), access.AssignInput{
			UserID:     parts[0],
			RoleID:     req.RoleID,
			ScopeValue: req.ScopeValue,
			ExpiresAt:  req.ExpiresAt,
			AssignedBy: assignedBy,
		})
		if err != nil {
			mapAccessError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, ur)
	default:
		writeError(w, http.StatusNotFound, "resource not found")
	}
}
