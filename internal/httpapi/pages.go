package httpapi

import (
	"net/http"

	"github.com/fleetgate/fleetgate/internal/access"
)

// pageSpec pairs a page name with the roles that may open it.
type pageSpec struct {
	name string
	req  access.Requirement
}

var (
	pageAdmin = pageSpec{
		name: "admin",
		req: access.Requirement{
			AnyOf:          []access.Role{access.RoleSuperAdmin, access.RoleAdmin},
			RequireProfile: true,
		},
	}
	pageDispatch = pageSpec{
		name: "dispatch",
		req: access.Requirement{
			AnyOf:          []access.Role{access.RoleAdmin, access.RoleDispatcher, access.RoleCoordinator},
			RequireProfile: true,
		},
	}
	pageFleet = pageSpec{
		name: "fleet",
		req: access.Requirement{
			AnyOf:          []access.Role{access.RoleDriver, access.RoleVolunteer},
			RequireProfile: true,
		},
	}
)

// pageHandler runs the page-shaped gate: an allowed visit renders the page
// payload, any deny is a redirect, and a backend fault is a 503 rather
// than a deny dressed up as one.
func (a *API) pageHandler(page pageSpec) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		decision, err := a.gate.Page(r.Context(), credential(r), page.req)
		if err != nil {
			writeError(w, r, http.StatusServiceUnavailable, "service temporarily unavailable")
			return
		}
		if !decision.Allowed() {
			http.Redirect(w, r, decision.Redirect, http.StatusSeeOther)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"page":     page.name,
			"identity": decision.Actor.Profile.Identity,
			"roles":    decision.Actor.Profile.Roles.Strings(),
		})
	}
}
