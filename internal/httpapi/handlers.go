package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"fuelgrid.org/internal/access"
	"fuelgrid.org/internal/obs"
	"fuelgrid.org/internal/stream"
)

// ReadyProbe checks the service's backing dependencies (database ping).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Options carries the collaborators the API needs. Store and managers are
// required for the auth/admin surfaces; Stream is optional.
type Options struct {
	Store    access.Store
	Roles    *access.Roles
	Users    *access.Users
	Sessions *access.Sessions
	Tokens   *access.TokenIssuer
	Stream   *stream.Stream

	// DefaultTenant is assumed when a login request names no tenant.
	DefaultTenant string

	MaxBodyBytes  int64
	RateBurst     int
	RatePerSecond int
}

// API is the HTTP layer over the access-control core.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string
	opts       Options
	limiter    *rateLimiter
}

func New(rp ReadyProbe, version string, opts Options) *API {
	a := &API{
		mux:        http.NewServeMux(),
		readyProbe: rp,
		version:    version,
		opts:       opts,
	}
	if opts.RatePerSecond > 0 {
		a.limiter = newRateLimiter(opts.RateBurst, opts.RatePerSecond)
	}

	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.HandleFunc("/v1/info", a.Info)

	a.mux.Handle("/metrics", obs.Handler())

	a.mux.HandleFunc("/v1/auth/login", a.handleLogin)
	a.mux.HandleFunc("/v1/auth/refresh", a.handleRefresh)
	a.mux.HandleFunc("/v1/auth/logout", a.handleLogout)

	a.mux.HandleFunc("/v1/roles", a.handleRoles)
	a.mux.HandleFunc("/v1/roles/", a.handleRoleResource)
	a.mux.HandleFunc("/v1/users", a.handleUsers)
	a.mux.HandleFunc("/v1/users/", a.handleUserResource)

	a.mux.HandleFunc("/v1/access/check", a.handleAccessCheck)
	a.mux.HandleFunc("/v1/access/check-any", a.handleAccessCheckAny)

	a.mux.HandleFunc("/v1/audit/stream", a.StreamAudit)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the fully wrapped handler for the server.
func (a *API) Handler() http.Handler {
	maxBody := a.opts.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 1 << 20
	}
	h := http.Handler(a.mux)
	h = a.withAuth(h)
	h = MaxBodyBytes(h, maxBody)
	if a.limiter != nil {
		h = a.limiter.wrap(h)
	}
	h = RequestID(h)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = Logging(h)
	return obs.Instrument(h)
}

// Close releases background resources. Safe to call more than once.
func (a *API) Close() {
	if a.limiter != nil {
		a.limiter.stop()
	}
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "fuelgrid-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		obs.SetReady(false)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    "fuelgrid-api",
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"error": msg})
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.New("invalid JSON body")
	}
	return nil
}

func methodNotAllowed(w http.ResponseWriter, allowed string) {
	w.Header().Set("Allow", allowed)
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

// mapAccessError translates core sentinels into HTTP status codes.
func mapAccessError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, access.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, access.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, access.ErrDuplicateAssignment):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, access.ErrImmutableField), errors.Is(err, access.ErrSystemRole):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, access.ErrSessionExpired):
		writeError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, access.ErrUnauthorized):
		writeError(w, http.StatusForbidden, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "operation failed")
	}
}

func splitPath(r *http.Request, prefix string) []string {
	path := strings.TrimPrefix(r.URL.Path, prefix)
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}
