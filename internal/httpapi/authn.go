package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"fuelgrid.org/internal/access"
)

const (
	authHeader = "Authorization"
	bearer     = "Bearer "
)

var publicPaths = []string{
	"/v1/auth/login",
	"/v1/auth/refresh",
	"/metrics",
	"/healthz",
	"/readyz",
	"/v1/info",
	"/",
}

// withAuth resolves the bearer token into a Principal: token claims, then
// session liveness, then the user aggregate. Requests on public paths pass
// through untouched.
func (a *API) withAuth(next http.Handler) http.Handler {
	if a.opts.Tokens == nil || a.opts.Sessions == nil || a.opts.Store == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions || isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		token, err := extractBearerToken(r.Header.Get(authHeader))
		if err != nil {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}

		claims, err := a.opts.Tokens.ParseAndValidate(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}
		sess, err := a.opts.Sessions.Validate(r.Context(), claims.SessionID)
		if err != nil {
			switch {
			case errors.Is(err, access.ErrSessionExpired):
				writeError(w, http.StatusUnauthorized, "session expired")
			case errors.Is(err, access.ErrNotFound):
				writeError(w, http.StatusUnauthorized, "session not found")
			default:
				writeError(w, http.StatusInternalServerError, "authentication error")
			}
			return
		}
		user, err := a.opts.Store.Users(r.Context()).Find(r.Context(), claims.Subject)
		if err != nil {
			if errors.Is(err, access.ErrNotFound) {
				writeError(w, http.StatusUnauthorized, "unknown user")
				return
			}
			writeError(w, http.StatusInternalServerError, "authentication error")
			return
		}
		if user.Status != access.StatusActive || user.DeletedAt != nil {
			writeError(w, http.StatusUnauthorized, "account disabled")
			return
		}

		ctx := access.ContextWithPrincipal(r.Context(), access.Principal{User: user, Session: sess})
		ctx = access.ContextWithToken(ctx, token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// requirePermission gates a handler on the caller's own permissions, using
// the same evaluator the check endpoints expose.
func requirePermission(ctx context.Context, section, resource string, action access.Action, reqCtx access.Context) error {
	principal, ok := access.PrincipalFromContext(ctx)
	if !ok {
		return access.ErrUnauthorized
	}
	if !principal.User.HasPermission(section, resource, action, reqCtx) {
		return access.ErrUnauthorized
	}
	return nil
}

func (a *API) ensurePermission(w http.ResponseWriter, r *http.Request, section, resource string, action access.Action) bool {
	if err := requirePermission(r.Context(), section, resource, action, nil); err != nil {
		writeError(w, http.StatusForbidden, "permission denied")
		return false
	}
	return true
}

func extractBearerToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", errors.New("missing bearer token")
	}
	if !strings.HasPrefix(strings.ToLower(header), strings.ToLower(bearer)) {
		return "", errors.New("invalid authorization scheme")
	}
	token := strings.TrimSpace(header[len(bearer):])
	if token == "" {
		return "", errors.New("missing bearer token")
	}
	return token, nil
}

func isPublicPath(path string) bool {
	for _, p := range publicPaths {
		if path == p {
			return true
		}
	}
	return false
}
