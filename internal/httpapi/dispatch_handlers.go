package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fleetgate/fleetgate/internal/dispatch"
)

type createOrganizationRequest struct {
	Name string `json:"name"`
}

type updateOrganizationRequest struct {
	Name   *string `json:"name"`
	Active *bool   `json:"active"`
}

type createDestinationRequest struct {
	Name   string `json:"name"`
	Street string `json:"street"`
	City   string `json:"city"`
}

type updateDestinationRequest struct {
	Name   *string `json:"name"`
	Street *string `json:"street"`
	City   *string `json:"city"`
	Active *bool   `json:"active"`
}

type addVehicleRequest struct {
	Make  string `json:"make"`
	Model string `json:"model"`
	Seats int    `json:"seats"`
}

type updateVehicleRequest struct {
	Make  *string `json:"make"`
	Model *string `json:"model"`
	Seats *int    `json:"seats"`
}

type createRideRequest struct {
	DestinationID int64     `json:"destination_id"`
	RiderName     string    `json:"rider_name"`
	ScheduledAt   time.Time `json:"scheduled_at"`
}

type assignDriverRequest struct {
	DriverID string `json:"driver_id"`
}

type decisionRequest struct {
	Accept bool `json:"accept"`
}

type assignRolesRequest struct {
	Roles []string `json:"roles"`
}

func idParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
}

// --- organizations -------------------------------------------------------

func (a *API) handleListOrganizations(w http.ResponseWriter, r *http.Request) {
	orgs, err := a.svc.ListOrganizations(r.Context(), credential(r))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, orgs)
}

func (a *API) handleCreateOrganization(w http.ResponseWriter, r *http.Request) {
	var req createOrganizationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	org, err := a.svc.CreateOrganization(r.Context(), credential(r), req.Name)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/v1/organizations/%d", org.ID))
	writeJSON(w, http.StatusCreated, org)
}

func (a *API) handleGetOrganization(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid organization id")
		return
	}
	org, err := a.svc.GetOrganization(r.Context(), credential(r), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, org)
}

func (a *API) handleUpdateOrganization(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid organization id")
		return
	}
	var req updateOrganizationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	org, err := a.svc.UpdateOrganization(r.Context(), credential(r), id, dispatch.OrganizationUpdate{
		Name:   req.Name,
		Active: req.Active,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, org)
}

func (a *API) handleDeleteOrganization(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid organization id")
		return
	}
	if err := a.svc.DeleteOrganization(r.Context(), credential(r), id); err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- destinations --------------------------------------------------------

func (a *API) handleListDestinations(w http.ResponseWriter, r *http.Request) {
	dests, err := a.svc.ListDestinations(r.Context(), credential(r))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dests)
}

func (a *API) handleCreateDestination(w http.ResponseWriter, r *http.Request) {
	var req createDestinationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	dest, err := a.svc.CreateDestination(r.Context(), credential(r), dispatch.Destination{
		Name:   req.Name,
		Street: req.Street,
		City:   req.City,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/v1/destinations/%d", dest.ID))
	writeJSON(w, http.StatusCreated, dest)
}

func (a *API) handleUpdateDestination(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid destination id")
		return
	}
	var req updateDestinationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	dest, err := a.svc.UpdateDestination(r.Context(), credential(r), id, dispatch.DestinationUpdate{
		Name:   req.Name,
		Street: req.Street,
		City:   req.City,
		Active: req.Active,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dest)
}

func (a *API) handleDeleteDestination(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid destination id")
		return
	}
	if err := a.svc.DeleteDestination(r.Context(), credential(r), id); err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- vehicles ------------------------------------------------------------

func (a *API) handleListVehicles(w http.ResponseWriter, r *http.Request) {
	vehicles, err := a.svc.ListMyVehicles(r.Context(), credential(r))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, vehicles)
}

func (a *API) handleAddVehicle(w http.ResponseWriter, r *http.Request) {
	var req addVehicleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	v, err := a.svc.AddVehicle(r.Context(), credential(r), dispatch.Vehicle{
		Make:  req.Make,
		Model: req.Model,
		Seats: req.Seats,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/v1/vehicles/%s", v.ID))
	writeJSON(w, http.StatusCreated, v)
}

func (a *API) handleUpdateVehicle(w http.ResponseWriter, r *http.Request) {
	var req updateVehicleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	v, err := a.svc.UpdateVehicle(r.Context(), credential(r), chi.URLParam(r, "id"), dispatch.VehicleUpdate{
		Make:  req.Make,
		Model: req.Model,
		Seats: req.Seats,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (a *API) handleRemoveVehicle(w http.ResponseWriter, r *http.Request) {
	if err := a.svc.RemoveVehicle(r.Context(), credential(r), chi.URLParam(r, "id")); err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleToggleVehicle(w http.ResponseWriter, r *http.Request) {
	v, err := a.svc.ToggleVehicleActive(r.Context(), credential(r), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

// --- rides ---------------------------------------------------------------

func (a *API) handleListRides(w http.ResponseWriter, r *http.Request) {
	rides, err := a.svc.ListRides(r.Context(), credential(r))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rides)
}

func (a *API) handleCreateRide(w http.ResponseWriter, r *http.Request) {
	var req createRideRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	ride, err := a.svc.CreateRide(r.Context(), credential(r), dispatch.Ride{
		DestinationID: req.DestinationID,
		RiderName:     req.RiderName,
		ScheduledAt:   req.ScheduledAt,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/v1/rides/%s", ride.ID))
	writeJSON(w, http.StatusCreated, ride)
}

func (a *API) handleCancelRide(w http.ResponseWriter, r *http.Request) {
	ride, err := a.svc.CancelRide(r.Context(), credential(r), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ride)
}

func (a *API) handleAssignDriver(w http.ResponseWriter, r *http.Request) {
	var req assignDriverRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	assignment, err := a.svc.AssignDriver(r.Context(), credential(r), chi.URLParam(r, "id"), req.DriverID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, assignment)
}

func (a *API) handleDecideRideRequest(w http.ResponseWriter, r *http.Request) {
	var req decisionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	decision, err := a.svc.DecideRideRequest(r.Context(), credential(r), chi.URLParam(r, "id"), req.Accept)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, decision)
}

// --- staff ---------------------------------------------------------------

func (a *API) handleAssignRoles(w http.ResponseWriter, r *http.Request) {
	var req assignRolesRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	profile, err := a.svc.AssignRoles(r.Context(), credential(r), chi.URLParam(r, "identity"), req.Roles)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, profile)
}
