// Package httpapi is the HTTP boundary of the gateway. Handlers decode
// strict JSON at the edge, call into the domain services, and map sentinel
// errors onto status codes. No business rules live here.
package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"porta.dev/internal/app"
	"porta.dev/internal/health"
	"porta.dev/internal/login"
	"porta.dev/internal/obs"
	"porta.dev/internal/profile"
	"porta.dev/internal/roles"
	"porta.dev/internal/token"
)

// ReadyProbe reports readiness (database reachability when one is wired).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// ProfileDirectory is the slice of the profile store the admin surface
// needs: enumeration and role mutation.
type ProfileDirectory interface {
	List(ctx context.Context) ([]profile.Profile, error)
	UpdateRole(ctx context.Context, id string, role profile.Role) error
}

// Deps bundles the collaborators the API serves.
type Deps struct {
	Login    *login.Service
	Codec    *token.Codec
	Apps     app.Store
	Rotator  *app.Rotator
	Roles    roles.Store
	Profiles ProfileDirectory
	Monitor  *health.Monitor

	ReadyProbe ReadyProbe
	Version    string

	RateBurst  int
	RatePerSec int
}

// API is the HTTP layer.
type API struct {
	mux  *http.ServeMux
	deps Deps
}

func New(deps Deps) *API {
	a := &API{
		mux:  http.NewServeMux(),
		deps: deps,
	}

	// liveness, readiness, metrics
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.Handle("/metrics", obs.Handler())

	// aggregated health window
	a.mux.HandleFunc("/health", a.handleHealth)

	// authentication flows
	a.mux.HandleFunc("/auth/login", a.handleLogin)
	a.mux.HandleFunc("/admin/login", a.handleAdminLogin)
	a.mux.HandleFunc("/admin/emergency-login", a.handleEmergencyLogin)

	// admin surface, bearer-gated per request
	a.mux.HandleFunc("/admin/rotate-secret", a.handleRotateSecret)
	a.mux.HandleFunc("/admin/apps", a.handleApps)
	a.mux.HandleFunc("/admin/roles", a.handleRoles)
	a.mux.HandleFunc("/admin/users", a.handleUsers)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler assembles the middleware chain around the mux.
func (a *API) Handler() http.Handler {
	var h http.Handler = a.mux
	h = Logging(h)
	if a.deps.RateBurst > 0 && a.deps.RatePerSec > 0 {
		h = RateLimit(h, a.deps.RateBurst, a.deps.RatePerSec)
	}
	h = MaxBodyBytes(h, 1<<20)
	h = CORS(h)
	h = SecurityHeaders(h)
	h = RequestID(h)
	return obs.Instrument(h)
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "porta-gateway",
		"version": a.deps.Version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	if err := a.deps.ReadyProbe.Check(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}

// handleHealth reports the sliding-window classification. The payload is
// served on every status so dashboards can render degradation detail; the
// status code mirrors the classification for dumb probes.
func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r, http.MethodGet)
		return
	}
	snap := a.deps.Monitor.Snapshot()
	code := http.StatusOK
	if snap.Status == health.StatusEmergency {
		code = http.StatusServiceUnavailable
	}
	obs.SetHealthStatus(snap.Status.Level())
	writeJSON(w, code, snap)
}
