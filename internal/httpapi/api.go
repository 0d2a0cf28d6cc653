// Package httpapi is the HTTP surface of the dispatch service: JSON
// endpoints under /v1, page-shaped gate endpoints under /app, and the
// usual health and metrics plumbing.
package httpapi

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fleetgate/fleetgate/internal/access"
	"github.com/fleetgate/fleetgate/internal/dispatch"
	"github.com/fleetgate/fleetgate/internal/identity"
	"github.com/fleetgate/fleetgate/internal/obs"
)

// ReadyProbe is the readiness check (database ping).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// Options tunes the request pipeline.
type Options struct {
	MaxBodyBytes    int64
	RateLimitPerSec float64
	RateLimitBurst  int
	Version         string
}

func (o *Options) fillDefaults() {
	if o.MaxBodyBytes <= 0 {
		o.MaxBodyBytes = 1 << 20
	}
	if o.RateLimitPerSec <= 0 {
		o.RateLimitPerSec = 50
	}
	if o.RateLimitBurst <= 0 {
		o.RateLimitBurst = 100
	}
	if o.Version == "" {
		o.Version = "dev"
	}
}

// API is the HTTP layer.
type API struct {
	svc        *dispatch.Service
	gate       *access.Gate
	provider   identity.Provider
	readyProbe ReadyProbe
	opts       Options
}

func New(svc *dispatch.Service, gate *access.Gate, provider identity.Provider, rp ReadyProbe, opts Options) *API {
	opts.fillDefaults()
	return &API{
		svc:        svc,
		gate:       gate,
		provider:   provider,
		readyProbe: rp,
		opts:       opts,
	}
}

// Handler assembles the full middleware stack and route table.
func (a *API) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(RequestID)
	r.Use(Logging)
	r.Use(SecurityHeaders)
	r.Use(MaxBodyBytes(a.opts.MaxBodyBytes))
	r.Use(RateLimit(a.opts.RateLimitPerSec, a.opts.RateLimitBurst))
	r.Use(WithCredential)

	r.Get("/healthz", a.handleHealthz)
	r.Get("/readyz", a.handleReady)
	r.Handle("/metrics", obs.Handler())

	r.Route("/v1/auth", func(r chi.Router) {
		r.Post("/sign-in", a.handleSignIn)
		r.Post("/refresh", a.handleRefresh)
		r.Post("/sign-out", a.handleSignOut)
	})

	r.Route("/v1/organizations", func(r chi.Router) {
		r.Get("/", a.handleListOrganizations)
		r.Post("/", a.handleCreateOrganization)
		r.Get("/{id}", a.handleGetOrganization)
		r.Patch("/{id}", a.handleUpdateOrganization)
		r.Delete("/{id}", a.handleDeleteOrganization)
	})

	r.Route("/v1/destinations", func(r chi.Router) {
		r.Get("/", a.handleListDestinations)
		r.Post("/", a.handleCreateDestination)
		r.Patch("/{id}", a.handleUpdateDestination)
		r.Delete("/{id}", a.handleDeleteDestination)
	})

	r.Route("/v1/vehicles", func(r chi.Router) {
		r.Get("/", a.handleListVehicles)
		r.Post("/", a.handleAddVehicle)
		r.Patch("/{id}", a.handleUpdateVehicle)
		r.Delete("/{id}", a.handleRemoveVehicle)
		r.Post("/{id}/toggle", a.handleToggleVehicle)
	})

	r.Route("/v1/rides", func(r chi.Router) {
		r.Get("/", a.handleListRides)
		r.Post("/", a.handleCreateRide)
		r.Post("/{id}/cancel", a.handleCancelRide)
		r.Post("/{id}/assign", a.handleAssignDriver)
		r.Post("/{id}/decision", a.handleDecideRideRequest)
	})

	r.Put("/v1/staff/{identity}/roles", a.handleAssignRoles)

	r.Route("/app", func(r chi.Router) {
		r.Get("/admin", a.pageHandler(pageAdmin))
		r.Get("/dispatch", a.pageHandler(pageDispatch))
		r.Get("/fleet", a.pageHandler(pageFleet))
	})

	return obs.Instrument(r)
}

func (a *API) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "fleetgate-api",
		"version": a.opts.Version,
	})
}

func (a *API) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := a.readyProbe.Check(ctx); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
}
