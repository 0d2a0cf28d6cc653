package pg

import (
	"context"

	"github.com/fleetgate/fleetgate/internal/access"
	"github.com/fleetgate/fleetgate/internal/dispatch"
)

// Per-entity views over the shared handle. The store interfaces deliberately
// reuse short method names, so each gets its own adapter type.

type organizations struct{ s *Store }

func (a organizations) Create(ctx context.Context, name string) (dispatch.Organization, error) {
	return a.s.CreateOrganization(ctx, name)
}

func (a organizations) Get(ctx context.Context, id int64) (dispatch.Organization, error) {
	return a.s.GetOrganization(ctx, id)
}

func (a organizations) List(ctx context.Context) ([]dispatch.Organization, error) {
	return a.s.ListOrganizations(ctx)
}

func (a organizations) Update(ctx context.Context, id int64, upd dispatch.OrganizationUpdate) (dispatch.Organization, error) {
	return a.s.UpdateOrganization(ctx, id, upd)
}

func (a organizations) Delete(ctx context.Context, id int64) error {
	return a.s.DeleteOrganization(ctx, id)
}

type destinations struct{ s *Store }

func (a destinations) Create(ctx context.Context, dest dispatch.Destination) (dispatch.Destination, error) {
	return a.s.CreateDestination(ctx, dest)
}

func (a destinations) Get(ctx context.Context, id int64) (dispatch.Destination, error) {
	return a.s.GetDestination(ctx, id)
}

func (a destinations) ListByOrg(ctx context.Context, orgID int64) ([]dispatch.Destination, error) {
	return a.s.ListDestinationsByOrg(ctx, orgID)
}

func (a destinations) Update(ctx context.Context, id, orgID int64, upd dispatch.DestinationUpdate) (dispatch.Destination, error) {
	return a.s.UpdateDestination(ctx, id, orgID, upd)
}

func (a destinations) Delete(ctx context.Context, id, orgID int64) error {
	return a.s.DeleteDestination(ctx, id, orgID)
}

type vehicles struct{ s *Store }

func (a vehicles) Create(ctx context.Context, v dispatch.Vehicle) (dispatch.Vehicle, error) {
	return a.s.CreateVehicle(ctx, v)
}

func (a vehicles) Get(ctx context.Context, id string) (dispatch.Vehicle, error) {
	return a.s.GetVehicle(ctx, id)
}

func (a vehicles) ListByOwner(ctx context.Context, ownerID string) ([]dispatch.Vehicle, error) {
	return a.s.ListVehiclesByOwner(ctx, ownerID)
}

func (a vehicles) Update(ctx context.Context, id, ownerID string, upd dispatch.VehicleUpdate) (dispatch.Vehicle, error) {
	return a.s.UpdateVehicle(ctx, id, ownerID, upd)
}

func (a vehicles) SetActive(ctx context.Context, id, ownerID string, active bool) (dispatch.Vehicle, error) {
	return a.s.SetVehicleActive(ctx, id, ownerID, active)
}

func (a vehicles) Delete(ctx context.Context, id, ownerID string) error {
	return a.s.DeleteVehicle(ctx, id, ownerID)
}

type rides struct{ s *Store }

func (a rides) Create(ctx context.Context, r dispatch.Ride) (dispatch.Ride, error) {
	return a.s.CreateRide(ctx, r)
}

func (a rides) Get(ctx context.Context, id string) (dispatch.Ride, error) {
	return a.s.GetRide(ctx, id)
}

func (a rides) ListByOrg(ctx context.Context, orgID int64) ([]dispatch.Ride, error) {
	return a.s.ListRidesByOrg(ctx, orgID)
}

func (a rides) SetStatus(ctx context.Context, id string, orgID int64, status string) (dispatch.Ride, error) {
	return a.s.SetRideStatus(ctx, id, orgID, status)
}

type rideRequests struct{ s *Store }

func (a rideRequests) Create(ctx context.Context, req dispatch.RideRequest) (dispatch.RideRequest, error) {
	return a.s.CreateRideRequest(ctx, req)
}

func (a rideRequests) Get(ctx context.Context, rideID, driverID string) (dispatch.RideRequest, error) {
	return a.s.GetRideRequest(ctx, rideID, driverID)
}

func (a rideRequests) Decide(ctx context.Context, rideID, driverID, status string) (dispatch.RideRequest, error) {
	return a.s.DecideRideRequest(ctx, rideID, driverID, status)
}

type profiles struct{ s *Store }

func (a profiles) Get(ctx context.Context, identity string) (access.Profile, error) {
	return a.s.GetProfile(ctx, identity)
}

func (a profiles) SetRoles(ctx context.Context, identity string, roles access.RoleSet) (access.Profile, error) {
	return a.s.SetProfileRoles(ctx, identity, roles)
}

func (a profiles) SetRolesInOrg(ctx context.Context, identity string, orgID int64, roles access.RoleSet) (access.Profile, error) {
	return a.s.SetProfileRolesInOrg(ctx, identity, orgID, roles)
}

// Stores bundles the per-entity views for the dispatch service.
func (s *Store) Stores() dispatch.Stores {
	return dispatch.Stores{
		Organizations: organizations{s},
		Destinations:  destinations{s},
		Vehicles:      vehicles{s},
		Rides:         rides{s},
		RideRequests:  rideRequests{s},
		Profiles:      profiles{s},
	}
}
