// Package dispatch implements the privileged operations of the fleet
// dispatch system. Every mutation goes through the authorization gate
// first, re-verifies ownership against a fresh read, and executes with the
// ownership predicate embedded in the store request itself.
package dispatch

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/fleetgate/fleetgate/internal/access"
	"github.com/fleetgate/fleetgate/internal/audit"
	"github.com/fleetgate/fleetgate/internal/identity"
)

// Stores bundles the persistence collaborators. The handle is explicit and
// request-scoped in use; there is no process-wide elevated client.
type Stores struct {
	Organizations OrganizationStore
	Destinations  DestinationStore
	Vehicles      VehicleStore
	Rides         RideStore
	RideRequests  RideRequestStore
	Profiles      ProfileStore
}

func (s Stores) validate() error {
	if s.Organizations == nil || s.Destinations == nil || s.Vehicles == nil ||
		s.Rides == nil || s.RideRequests == nil || s.Profiles == nil {
		return errors.New("dispatch: all stores are required")
	}
	return nil
}

// Service exposes the privileged operations behind the operation gate.
type Service struct {
	gate     *access.Gate
	provider identity.Provider
	stores   Stores
	now      func() time.Time
}

// ServiceOption configures the service.
type ServiceOption func(*Service)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// NewService constructs the dispatch service.
func NewService(gate *access.Gate, provider identity.Provider, stores Stores, opts ...ServiceOption) (*Service, error) {
	if gate == nil {
		return nil, errors.New("dispatch: gate is required")
	}
	if provider == nil {
		return nil, errors.New("dispatch: identity provider is required")
	}
	if err := stores.validate(); err != nil {
		return nil, err
	}
	svc := &Service{
		gate:     gate,
		provider: provider,
		stores:   stores,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Common role requirements. Declared once so call sites stay declarative.
var (
	reqSuperAdmin   = access.Requirement{AnyOf: []access.Role{access.RoleSuperAdmin}}
	reqOrgManager   = access.Requirement{AnyOf: []access.Role{access.RoleSuperAdmin, access.RoleAdmin}}
	reqOrgStaff     = access.Requirement{AnyOf: []access.Role{access.RoleAdmin, access.RoleDispatcher, access.RoleCoordinator}}
	reqRidePlanner  = access.Requirement{AnyOf: []access.Role{access.RoleDispatcher, access.RoleCoordinator}}
	reqVehicleOwner = access.Requirement{AnyOf: []access.Role{access.RoleDriver, access.RoleVolunteer}}
)

// --- Organizations -------------------------------------------------------

// CreateOrganization creates a tenant. Super-admin only.
func (s *Service) CreateOrganization(ctx context.Context, cred access.Credential, name string) (Organization, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Organization{}, opErr(KindInvalidInput, "organization name is required")
	}
	actor, err := s.gate.Operation(ctx, cred, reqSuperAdmin, nil)
	if err != nil {
		return Organization{}, err
	}
	org, err := s.stores.Organizations.Create(ctx, name)
	if err != nil {
		return Organization{}, wrapStoreErr("create organization", err)
	}
	s.audit(ctx, actor, "organization.create", map[string]any{"organization_id": org.ID})
	return org, nil
}

// ListOrganizations lists all tenants. Super-admin only.
func (s *Service) ListOrganizations(ctx context.Context, cred access.Credential) ([]Organization, error) {
	if _, err := s.gate.Operation(ctx, cred, reqSuperAdmin, nil); err != nil {
		return nil, err
	}
	orgs, err := s.stores.Organizations.List(ctx)
	if err != nil {
		return nil, wrapStoreErr("list organizations", err)
	}
	return orgs, nil
}

// GetOrganization returns one tenant: super-admins see any, admins only
// their own.
func (s *Service) GetOrganization(ctx context.Context, cred access.Credential, id int64) (Organization, error) {
	var org Organization
	_, err := s.gate.Operation(ctx, cred, reqOrgManager, func(ctx context.Context, actor access.Actor) error {
		fresh, err := s.stores.Organizations.Get(ctx, id)
		if err != nil {
			return wrapStoreErr("read organization", err)
		}
		if actor.Profile.Roles.Has(access.RoleSuperAdmin) || access.OwnsOrgResource(actor.Profile, &fresh.ID) {
			org = fresh
			return nil
		}
		return access.ErrForbidden
	})
	if err != nil {
		return Organization{}, err
	}
	return org, nil
}

// UpdateOrganization renames or toggles a tenant. Super-admins may touch
// any; admins only their own, verified against the current row.
func (s *Service) UpdateOrganization(ctx context.Context, cred access.Credential, id int64, upd OrganizationUpdate) (Organization, error) {
	if upd.Name != nil {
		trimmed := strings.TrimSpace(*upd.Name)
		if trimmed == "" {
			return Organization{}, opErr(KindInvalidInput, "organization name is required")
		}
		upd.Name = &trimmed
	}
	actor, err := s.gate.Operation(ctx, cred, reqOrgManager, func(ctx context.Context, actor access.Actor) error {
		fresh, err := s.stores.Organizations.Get(ctx, id)
		if err != nil {
			return wrapStoreErr("read organization", err)
		}
		if actor.Profile.Roles.Has(access.RoleSuperAdmin) || access.OwnsOrgResource(actor.Profile, &fresh.ID) {
			return nil
		}
		return access.ErrForbidden
	})
	if err != nil {
		return Organization{}, err
	}
	org, err := s.stores.Organizations.Update(ctx, id, upd)
	if err != nil {
		return Organization{}, wrapStoreErr("update organization", err)
	}
	s.audit(ctx, actor, "organization.update", map[string]any{"organization_id": org.ID})
	return org, nil
}

// DeleteOrganization removes a tenant and is restricted to super-admins;
// an org admin deleting their own tenant is still forbidden.
func (s *Service) DeleteOrganization(ctx context.Context, cred access.Credential, id int64) error {
	actor, err := s.gate.Operation(ctx, cred, reqSuperAdmin, func(ctx context.Context, _ access.Actor) error {
		if _, err := s.stores.Organizations.Get(ctx, id); err != nil {
			return wrapStoreErr("read organization", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if err := s.stores.Organizations.Delete(ctx, id); err != nil {
		return wrapStoreErr("delete organization", err)
	}
	s.audit(ctx, actor, "organization.delete", map[string]any{"organization_id": id})
	return nil
}

// --- Destinations --------------------------------------------------------

// CreateDestination adds a location to the actor's own tenant. The target
// tenant is taken from the profile, never from the request.
func (s *Service) CreateDestination(ctx context.Context, cred access.Credential, dest Destination) (Destination, error) {
	dest.Name = strings.TrimSpace(dest.Name)
	if dest.Name == "" {
		return Destination{}, opErr(KindInvalidInput, "destination name is required")
	}
	actor, err := s.gate.Operation(ctx, cred, reqOrgStaff, func(_ context.Context, actor access.Actor) error {
		if !actor.Profile.HasOrg() {
			return access.ErrForbidden
		}
		return nil
	})
	if err != nil {
		return Destination{}, err
	}
	dest.OrgID = *actor.Profile.OrgID
	dest.Active = true
	created, err := s.stores.Destinations.Create(ctx, dest)
	if err != nil {
		return Destination{}, wrapStoreErr("create destination", err)
	}
	s.audit(ctx, actor, "destination.create", map[string]any{"destination_id": created.ID, "organization_id": created.OrgID})
	return created, nil
}

// ListDestinations lists the actor's tenant's locations.
func (s *Service) ListDestinations(ctx context.Context, cred access.Credential) ([]Destination, error) {
	actor, err := s.gate.Operation(ctx, cred, access.Requirement{AnyOf: []access.Role{
		access.RoleAdmin, access.RoleDispatcher, access.RoleCoordinator, access.RoleDriver, access.RoleVolunteer,
	}}, func(_ context.Context, actor access.Actor) error {
		if !actor.Profile.HasOrg() {
			return access.ErrForbidden
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	dests, err := s.stores.Destinations.ListByOrg(ctx, *actor.Profile.OrgID)
	if err != nil {
		return nil, wrapStoreErr("list destinations", err)
	}
	return dests, nil
}

// UpdateDestination edits an org-owned location after re-reading its
// current owner.
func (s *Service) UpdateDestination(ctx context.Context, cred access.Credential, id int64, upd DestinationUpdate) (Destination, error) {
	actor, err := s.gate.Operation(ctx, cred, reqOrgStaff, s.ownDestination(id))
	if err != nil {
		return Destination{}, err
	}
	dest, err := s.stores.Destinations.Update(ctx, id, *actor.Profile.OrgID, upd)
	if err != nil {
		return Destination{}, wrapStoreErr("update destination", err)
	}
	s.audit(ctx, actor, "destination.update", map[string]any{"destination_id": dest.ID})
	return dest, nil
}

// DeleteDestination removes an org-owned location; the delete statement is
// scoped by both id and owning org.
func (s *Service) DeleteDestination(ctx context.Context, cred access.Credential, id int64) error {
	actor, err := s.gate.Operation(ctx, cred, reqOrgStaff, s.ownDestination(id))
	if err != nil {
		return err
	}
	if err := s.stores.Destinations.Delete(ctx, id, *actor.Profile.OrgID); err != nil {
		return wrapStoreErr("delete destination", err)
	}
	s.audit(ctx, actor, "destination.delete", map[string]any{"destination_id": id})
	return nil
}

func (s *Service) ownDestination(id int64) access.OwnershipCheck {
	return func(ctx context.Context, actor access.Actor) error {
		dest, err := s.stores.Destinations.Get(ctx, id)
		if err != nil {
			return wrapStoreErr("read destination", err)
		}
		if !access.OwnsOrgResource(actor.Profile, &dest.OrgID) {
			return access.ErrForbidden
		}
		return nil
	}
}

// --- Vehicles ------------------------------------------------------------

// AddVehicle registers a vehicle owned by the acting driver.
func (s *Service) AddVehicle(ctx context.Context, cred access.Credential, v Vehicle) (Vehicle, error) {
	v.Make = strings.TrimSpace(v.Make)
	v.Model = strings.TrimSpace(v.Model)
	if v.Make == "" || v.Model == "" {
		return Vehicle{}, opErr(KindInvalidInput, "vehicle make and model are required")
	}
	if v.Seats <= 0 {
		return Vehicle{}, opErr(KindInvalidInput, "vehicle seat count must be positive")
	}
	actor, err := s.gate.Operation(ctx, cred, reqVehicleOwner, nil)
	if err != nil {
		return Vehicle{}, err
	}
	v.OwnerID = actor.Profile.Identity
	v.Active = false
	created, err := s.stores.Vehicles.Create(ctx, v)
	if err != nil {
		return Vehicle{}, wrapStoreErr("create vehicle", err)
	}
	s.audit(ctx, actor, "vehicle.create", map[string]any{"vehicle_id": created.ID})
	return created, nil
}

// ListMyVehicles lists the acting driver's own vehicles.
func (s *Service) ListMyVehicles(ctx context.Context, cred access.Credential) ([]Vehicle, error) {
	actor, err := s.gate.Operation(ctx, cred, reqVehicleOwner, nil)
	if err != nil {
		return nil, err
	}
	vehicles, err := s.stores.Vehicles.ListByOwner(ctx, actor.Profile.Identity)
	if err != nil {
		return nil, wrapStoreErr("list vehicles", err)
	}
	return vehicles, nil
}

// UpdateVehicle edits a vehicle after re-verifying ownership.
func (s *Service) UpdateVehicle(ctx context.Context, cred access.Credential, id string, upd VehicleUpdate) (Vehicle, error) {
	actor, err := s.gate.Operation(ctx, cred, reqVehicleOwner, s.ownVehicle(id, nil))
	if err != nil {
		return Vehicle{}, err
	}
	v, err := s.stores.Vehicles.Update(ctx, id, actor.Profile.Identity, upd)
	if err != nil {
		return Vehicle{}, wrapStoreErr("update vehicle", err)
	}
	s.audit(ctx, actor, "vehicle.update", map[string]any{"vehicle_id": v.ID})
	return v, nil
}

// RemoveVehicle deletes a vehicle; the delete is scoped by (id, owner).
func (s *Service) RemoveVehicle(ctx context.Context, cred access.Credential, id string) error {
	actor, err := s.gate.Operation(ctx, cred, reqVehicleOwner, s.ownVehicle(id, nil))
	if err != nil {
		return err
	}
	if err := s.stores.Vehicles.Delete(ctx, id, actor.Profile.Identity); err != nil {
		return wrapStoreErr("delete vehicle", err)
	}
	s.audit(ctx, actor, "vehicle.delete", map[string]any{"vehicle_id": id})
	return nil
}

// ToggleVehicleActive flips the vehicle's active flag: read current state,
// negate, write conditionally scoped by (id, owner). Concurrent toggles are
// last-writer-wins, an accepted semantic for a single-owner boolean.
// Several vehicles may be active for the same owner at once.
func (s *Service) ToggleVehicleActive(ctx context.Context, cred access.Credential, id string) (Vehicle, error) {
	var current Vehicle
	actor, err := s.gate.Operation(ctx, cred, reqVehicleOwner, s.ownVehicle(id, &current))
	if err != nil {
		return Vehicle{}, err
	}
	toggled, err := s.stores.Vehicles.SetActive(ctx, id, actor.Profile.Identity, !current.Active)
	if err != nil {
		return Vehicle{}, wrapStoreErr("toggle vehicle", err)
	}
	s.audit(ctx, actor, "vehicle.toggle", map[string]any{"vehicle_id": id, "active": toggled.Active})
	return toggled, nil
}

// ownVehicle re-reads the vehicle and verifies the actor owns it. When out
// is non-nil the fresh row is stored there for the executor.
func (s *Service) ownVehicle(id string, out *Vehicle) access.OwnershipCheck {
	return func(ctx context.Context, actor access.Actor) error {
		v, err := s.stores.Vehicles.Get(ctx, id)
		if err != nil {
			return wrapStoreErr("read vehicle", err)
		}
		if !access.OwnsUserResource(actor.Profile, v.OwnerID) {
			return access.ErrForbidden
		}
		if out != nil {
			*out = v
		}
		return nil
	}
}

// --- Rides ---------------------------------------------------------------

// CreateRide schedules a ride in the actor's tenant; the destination must
// belong to the same tenant.
func (s *Service) CreateRide(ctx context.Context, cred access.Credential, ride Ride) (Ride, error) {
	ride.RiderName = strings.TrimSpace(ride.RiderName)
	if ride.RiderName == "" {
		return Ride{}, opErr(KindInvalidInput, "rider name is required")
	}
	if ride.ScheduledAt.IsZero() {
		return Ride{}, opErr(KindInvalidInput, "scheduled time is required")
	}
	actor, err := s.gate.Operation(ctx, cred, reqRidePlanner, func(ctx context.Context, actor access.Actor) error {
		if !actor.Profile.HasOrg() {
			return access.ErrForbidden
		}
		dest, err := s.stores.Destinations.Get(ctx, ride.DestinationID)
		if err != nil {
			return wrapStoreErr("read destination", err)
		}
		if !access.OwnsOrgResource(actor.Profile, &dest.OrgID) {
			return access.ErrForbidden
		}
		return nil
	})
	if err != nil {
		return Ride{}, err
	}
	ride.OrgID = *actor.Profile.OrgID
	ride.Status = RideStatusScheduled
	created, err := s.stores.Rides.Create(ctx, ride)
	if err != nil {
		return Ride{}, wrapStoreErr("create ride", err)
	}
	s.audit(ctx, actor, "ride.create", map[string]any{"ride_id": created.ID})
	return created, nil
}

// ListRides lists the actor's tenant's rides.
func (s *Service) ListRides(ctx context.Context, cred access.Credential) ([]Ride, error) {
	actor, err := s.gate.Operation(ctx, cred, reqOrgStaff, func(_ context.Context, actor access.Actor) error {
		if !actor.Profile.HasOrg() {
			return access.ErrForbidden
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	rides, err := s.stores.Rides.ListByOrg(ctx, *actor.Profile.OrgID)
	if err != nil {
		return nil, wrapStoreErr("list rides", err)
	}
	return rides, nil
}

// CancelRide cancels an org-owned ride after re-reading its owner.
func (s *Service) CancelRide(ctx context.Context, cred access.Credential, id string) (Ride, error) {
	actor, err := s.gate.Operation(ctx, cred, reqRidePlanner, func(ctx context.Context, actor access.Actor) error {
		ride, err := s.stores.Rides.Get(ctx, id)
		if err != nil {
			return wrapStoreErr("read ride", err)
		}
		if !access.OwnsOrgResource(actor.Profile, &ride.OrgID) {
			return access.ErrForbidden
		}
		return nil
	})
	if err != nil {
		return Ride{}, err
	}
	ride, err := s.stores.Rides.SetStatus(ctx, id, *actor.Profile.OrgID, RideStatusCancelled)
	if err != nil {
		return Ride{}, wrapStoreErr("cancel ride", err)
	}
	s.audit(ctx, actor, "ride.cancel", map[string]any{"ride_id": id})
	return ride, nil
}

// AssignDriver asks a driver in the same tenant to take a ride.
func (s *Service) AssignDriver(ctx context.Context, cred access.Credential, rideID, driverID string) (RideRequest, error) {
	driverID = strings.TrimSpace(driverID)
	if driverID == "" {
		return RideRequest{}, opErr(KindInvalidInput, "driver id is required")
	}
	actor, err := s.gate.Operation(ctx, cred, reqRidePlanner, func(ctx context.Context, actor access.Actor) error {
		ride, err := s.stores.Rides.Get(ctx, rideID)
		if err != nil {
			return wrapStoreErr("read ride", err)
		}
		if !access.OwnsOrgResource(actor.Profile, &ride.OrgID) {
			return access.ErrForbidden
		}
		return nil
	})
	if err != nil {
		return RideRequest{}, err
	}
	driver, err := s.stores.Profiles.Get(ctx, driverID)
	if err != nil {
		if errors.Is(err, access.ErrProfileMissing) {
			return RideRequest{}, opErr(KindInvalidInput, "driver has no profile")
		}
		return RideRequest{}, wrapStoreErr("read driver profile", err)
	}
	if !driver.Roles.HasAny(access.RoleDriver, access.RoleVolunteer) {
		return RideRequest{}, opErr(KindInvalidInput, "assignee cannot drive")
	}
	if !access.OwnsOrgResource(actor.Profile, driver.OrgID) {
		return RideRequest{}, opErr(KindInvalidInput, "driver belongs to another organization")
	}
	req, err := s.stores.RideRequests.Create(ctx, RideRequest{
		RideID:   rideID,
		DriverID: driverID,
		Status:   RequestStatusPending,
	})
	if err != nil {
		return RideRequest{}, wrapStoreErr("create ride request", err)
	}
	s.audit(ctx, actor, "ride.assign", map[string]any{"ride_id": rideID, "driver_id": driverID})
	return req, nil
}

// DecideRideRequest records the acting driver's accept/decline for a ride
// addressed to them. The decision update is scoped by both halves of the
// composite key, so a request addressed to another driver is unreachable.
func (s *Service) DecideRideRequest(ctx context.Context, cred access.Credential, rideID string, accept bool) (RideRequest, error) {
	actor, err := s.gate.Operation(ctx, cred, reqVehicleOwner, func(ctx context.Context, actor access.Actor) error {
		req, err := s.stores.RideRequests.Get(ctx, rideID, actor.Profile.Identity)
		if err != nil {
			return wrapStoreErr("read ride request", err)
		}
		if !access.OwnsRideDecision(actor.Profile, req.DriverID) {
			return access.ErrForbidden
		}
		return nil
	})
	if err != nil {
		return RideRequest{}, err
	}
	status := RequestStatusDeclined
	if accept {
		status = RequestStatusAccepted
	}
	req, err := s.stores.RideRequests.Decide(ctx, rideID, actor.Profile.Identity, status)
	if err != nil {
		return RideRequest{}, wrapStoreErr("decide ride request", err)
	}
	s.audit(ctx, actor, "ride.decide", map[string]any{"ride_id": rideID, "status": status})
	return req, nil
}

// --- Staff ---------------------------------------------------------------

// AssignRoles replaces a staff member's role set. Super-admins may touch
// any profile; org admins only profiles bound to their own tenant, and the
// update statement itself carries the tenant predicate.
func (s *Service) AssignRoles(ctx context.Context, cred access.Credential, targetIdentity string, rawRoles []string) (access.Profile, error) {
	targetIdentity = strings.TrimSpace(targetIdentity)
	if targetIdentity == "" {
		return access.Profile{}, opErr(KindInvalidInput, "target identity is required")
	}
	roles, err := access.NormalizeRoles(rawRoles)
	if err != nil {
		return access.Profile{}, opErr(KindInvalidInput, "unknown role tag")
	}
	actor, err := s.gate.Operation(ctx, cred, reqOrgManager, func(ctx context.Context, actor access.Actor) error {
		if actor.Profile.Roles.Has(access.RoleSuperAdmin) {
			return nil
		}
		target, err := s.stores.Profiles.Get(ctx, targetIdentity)
		if err != nil {
			return wrapStoreErr("read target profile", err)
		}
		if !access.OwnsOrgResource(actor.Profile, target.OrgID) {
			return access.ErrForbidden
		}
		return nil
	})
	if err != nil {
		return access.Profile{}, err
	}

	var updated access.Profile
	if actor.Profile.Roles.Has(access.RoleSuperAdmin) {
		updated, err = s.stores.Profiles.SetRoles(ctx, targetIdentity, roles)
	} else {
		updated, err = s.stores.Profiles.SetRolesInOrg(ctx, targetIdentity, *actor.Profile.OrgID, roles)
	}
	if err != nil {
		return access.Profile{}, wrapStoreErr("assign roles", err)
	}
	s.audit(ctx, actor, "staff.assign_roles", map[string]any{
		"target": targetIdentity,
		"roles":  roles.Strings(),
	})
	return updated, nil
}

// --- Sessions ------------------------------------------------------------

// SignOut revokes the presented session. A provider report of "no active
// session" is success: the desired end state already holds, so invoking
// sign-out twice in a row both succeed.
func (s *Service) SignOut(ctx context.Context, refreshToken string) error {
	err := s.provider.SignOut(ctx, refreshToken)
	switch {
	case err == nil, errors.Is(err, identity.ErrNoSession):
		return nil
	case errors.Is(err, identity.ErrUnavailable):
		return opErr(KindUnavailable, "identity provider unavailable")
	default:
		return opErr(KindUnavailable, "sign-out failed")
	}
}

func (s *Service) audit(ctx context.Context, actor access.Actor, event string, fields map[string]any) {
	_ = audit.LogEvent(access.ContextWithActor(ctx, actor), event, fields)
}
