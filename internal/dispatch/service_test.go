package dispatch

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/fleetgate/fleetgate/internal/access"
	"github.com/fleetgate/fleetgate/internal/identity"
)

// --- stubs ---------------------------------------------------------------

type stubOrgStore struct {
	orgs    map[int64]Organization
	deletes int
	updates int
}

func (s *stubOrgStore) Create(_ context.Context, name string) (Organization, error) {
	org := Organization{ID: int64(len(s.orgs) + 1), Name: name, Active: true}
	s.orgs[org.ID] = org
	return org, nil
}

func (s *stubOrgStore) Get(_ context.Context, id int64) (Organization, error) {
	org, ok := s.orgs[id]
	if !ok {
		return Organization{}, ErrNotFound
	}
	return org, nil
}

func (s *stubOrgStore) List(_ context.Context) ([]Organization, error) {
	out := make([]Organization, 0, len(s.orgs))
	for _, org := range s.orgs {
		out = append(out, org)
	}
	return out, nil
}

func (s *stubOrgStore) Update(_ context.Context, id int64, upd OrganizationUpdate) (Organization, error) {
	s.updates++
	org, ok := s.orgs[id]
	if !ok {
		return Organization{}, ErrNotFound
	}
	if upd.Name != nil {
		org.Name = *upd.Name
	}
	if upd.Active != nil {
		org.Active = *upd.Active
	}
	s.orgs[id] = org
	return org, nil
}

func (s *stubOrgStore) Delete(_ context.Context, id int64) error {
	s.deletes++
	if _, ok := s.orgs[id]; !ok {
		return ErrNotFound
	}
	delete(s.orgs, id)
	return nil
}

type stubDestStore struct {
	dests   map[int64]Destination
	updates int
	deletes int
}

func (s *stubDestStore) Create(_ context.Context, dest Destination) (Destination, error) {
	dest.ID = int64(len(s.dests) + 1)
	s.dests[dest.ID] = dest
	return dest, nil
}

func (s *stubDestStore) Get(_ context.Context, id int64) (Destination, error) {
	dest, ok := s.dests[id]
	if !ok {
		return Destination{}, ErrNotFound
	}
	return dest, nil
}

func (s *stubDestStore) ListByOrg(_ context.Context, orgID int64) ([]Destination, error) {
	var out []Destination
	for _, dest := range s.dests {
		if dest.OrgID == orgID {
			out = append(out, dest)
		}
	}
	return out, nil
}

func (s *stubDestStore) Update(_ context.Context, id, orgID int64, upd DestinationUpdate) (Destination, error) {
	s.updates++
	dest, ok := s.dests[id]
	if !ok || dest.OrgID != orgID {
		return Destination{}, ErrNotFound
	}
	if upd.Name != nil {
		dest.Name = *upd.Name
	}
	s.dests[id] = dest
	return dest, nil
}

func (s *stubDestStore) Delete(_ context.Context, id, orgID int64) error {
	s.deletes++
	dest, ok := s.dests[id]
	if !ok || dest.OrgID != orgID {
		return ErrNotFound
	}
	delete(s.dests, id)
	return nil
}

type stubVehicleStore struct {
	vehicles   map[string]Vehicle
	setActives int
}

func (s *stubVehicleStore) Create(_ context.Context, v Vehicle) (Vehicle, error) {
	if v.ID == "" {
		v.ID = "veh-new"
	}
	s.vehicles[v.ID] = v
	return v, nil
}

func (s *stubVehicleStore) Get(_ context.Context, id string) (Vehicle, error) {
	v, ok := s.vehicles[id]
	if !ok {
		return Vehicle{}, ErrNotFound
	}
	return v, nil
}

func (s *stubVehicleStore) ListByOwner(_ context.Context, ownerID string) ([]Vehicle, error) {
	var out []Vehicle
	for _, v := range s.vehicles {
		if v.OwnerID == ownerID {
			out = append(out, v)
		}
	}
	return out, nil
}

func (s *stubVehicleStore) Update(_ context.Context, id, ownerID string, upd VehicleUpdate) (Vehicle, error) {
	v, ok := s.vehicles[id]
	if !ok || v.OwnerID != ownerID {
		return Vehicle{}, ErrNotFound
	}
	if upd.Make != nil {
		v.Make = *upd.Make
	}
	s.vehicles[id] = v
	return v, nil
}

func (s *stubVehicleStore) SetActive(_ context.Context, id, ownerID string, active bool) (Vehicle, error) {
	s.setActives++
	v, ok := s.vehicles[id]
	if !ok || v.OwnerID != ownerID {
		return Vehicle{}, ErrNotFound
	}
	v.Active = active
	s.vehicles[id] = v
	return v, nil
}

func (s *stubVehicleStore) Delete(_ context.Context, id, ownerID string) error {
	v, ok := s.vehicles[id]
	if !ok || v.OwnerID != ownerID {
		return ErrNotFound
	}
	delete(s.vehicles, id)
	return nil
}

type stubRideStore struct {
	rides map[string]Ride
}

func (s *stubRideStore) Create(_ context.Context, r Ride) (Ride, error) {
	if r.ID == "" {
		r.ID = "ride-new"
	}
	s.rides[r.ID] = r
	return r, nil
}

func (s *stubRideStore) Get(_ context.Context, id string) (Ride, error) {
	r, ok := s.rides[id]
	if !ok {
		return Ride{}, ErrNotFound
	}
	return r, nil
}

func (s *stubRideStore) ListByOrg(_ context.Context, orgID int64) ([]Ride, error) {
	var out []Ride
	for _, r := range s.rides {
		if r.OrgID == orgID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *stubRideStore) SetStatus(_ context.Context, id string, orgID int64, status string) (Ride, error) {
	r, ok := s.rides[id]
	if !ok || r.OrgID != orgID {
		return Ride{}, ErrNotFound
	}
	r.Status = status
	s.rides[id] = r
	return r, nil
}

type requestKey struct{ ride, driver string }

type stubRequestStore struct {
	requests map[requestKey]RideRequest
	decides  int
}

func (s *stubRequestStore) Create(_ context.Context, req RideRequest) (RideRequest, error) {
	key := requestKey{req.RideID, req.DriverID}
	if _, ok := s.requests[key]; ok {
		return RideRequest{}, ErrConflict
	}
	s.requests[key] = req
	return req, nil
}

func (s *stubRequestStore) Get(_ context.Context, rideID, driverID string) (RideRequest, error) {
	req, ok := s.requests[requestKey{rideID, driverID}]
	if !ok {
		return RideRequest{}, ErrNotFound
	}
	return req, nil
}

func (s *stubRequestStore) Decide(_ context.Context, rideID, driverID, status string) (RideRequest, error) {
	s.decides++
	key := requestKey{rideID, driverID}
	req, ok := s.requests[key]
	if !ok {
		return RideRequest{}, ErrNotFound
	}
	now := time.Now()
	req.Status = status
	req.DecidedAt = &now
	s.requests[key] = req
	return req, nil
}

type stubProfileStore struct {
	profiles      map[string]access.Profile
	setRoles      int
	setRolesInOrg int
}

func (s *stubProfileStore) Get(_ context.Context, identity string) (access.Profile, error) {
	p, ok := s.profiles[identity]
	if !ok {
		return access.Profile{}, access.ErrProfileMissing
	}
	return p, nil
}

func (s *stubProfileStore) SetRoles(_ context.Context, identity string, roles access.RoleSet) (access.Profile, error) {
	s.setRoles++
	p, ok := s.profiles[identity]
	if !ok {
		return access.Profile{}, access.ErrProfileMissing
	}
	p.Roles = roles
	s.profiles[identity] = p
	return p, nil
}

func (s *stubProfileStore) SetRolesInOrg(_ context.Context, identity string, orgID int64, roles access.RoleSet) (access.Profile, error) {
	s.setRolesInOrg++
	p, ok := s.profiles[identity]
	if !ok || p.OrgID == nil || *p.OrgID != orgID {
		return access.Profile{}, ErrNotFound
	}
	p.Roles = roles
	s.profiles[identity] = p
	return p, nil
}

type stubProvider struct {
	signOutErr   error
	signOutCalls int
}

func (p *stubProvider) Exchange(context.Context, string) (identity.Grant, error) {
	return identity.Grant{}, identity.ErrNoSession
}

func (p *stubProvider) SignIn(context.Context, string, string) (identity.Grant, error) {
	return identity.Grant{}, identity.ErrInvalidCredentials
}

func (p *stubProvider) Refresh(context.Context, string) (identity.Grant, error) {
	return identity.Grant{}, identity.ErrNoSession
}

func (p *stubProvider) SignOut(context.Context, string) error {
	p.signOutCalls++
	return p.signOutErr
}

// --- fixture -------------------------------------------------------------

type fixture struct {
	svc      *Service
	orgs     *stubOrgStore
	dests    *stubDestStore
	vehicles *stubVehicleStore
	rides    *stubRideStore
	requests *stubRequestStore
	profiles *stubProfileStore
	provider *stubProvider
}

// Credentials are "tok:<identity>"; the resolver strips the prefix and the
// binder reads the profile stub, so each test controls access purely
// through profile rows.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		orgs:     &stubOrgStore{orgs: map[int64]Organization{}},
		dests:    &stubDestStore{dests: map[int64]Destination{}},
		vehicles: &stubVehicleStore{vehicles: map[string]Vehicle{}},
		rides:    &stubRideStore{rides: map[string]Ride{}},
		requests: &stubRequestStore{requests: map[requestKey]RideRequest{}},
		profiles: &stubProfileStore{profiles: map[string]access.Profile{}},
		provider: &stubProvider{},
	}
	resolver := access.ResolverFunc(func(_ context.Context, cred access.Credential) (access.Session, error) {
		id, ok := strings.CutPrefix(string(cred), "tok:")
		if !ok {
			return access.Session{}, access.ErrUnauthenticated
		}
		return access.Session{Identity: id, AccessToken: string(cred)}, nil
	})
	binder := access.BinderFunc(func(ctx context.Context, id string) (access.Profile, error) {
		return f.profiles.Get(ctx, id)
	})
	gate, err := access.NewGate(resolver, binder)
	if err != nil {
		t.Fatalf("NewGate: %v", err)
	}
	svc, err := NewService(gate, f.provider, Stores{
		Organizations: f.orgs,
		Destinations:  f.dests,
		Vehicles:      f.vehicles,
		Rides:         f.rides,
		RideRequests:  f.requests,
		Profiles:      f.profiles,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	f.svc = svc
	return f
}

func (f *fixture) addProfile(identity string, orgID *int64, roles ...access.Role) access.Credential {
	f.profiles.profiles[identity] = access.Profile{
		Identity: identity,
		OrgID:    orgID,
		Roles:    access.NewRoleSet(roles...),
	}
	return access.Credential("tok:" + identity)
}

func orgPtr(v int64) *int64 { return &v }

func kindOf(t *testing.T, err error) ErrorKind {
	t.Helper()
	var opErr *OperationError
	if !errors.As(err, &opErr) {
		t.Fatalf("expected OperationError, got %v", err)
	}
	return opErr.Kind
}

// --- tests ---------------------------------------------------------------

func TestToggleVehicleActive(t *testing.T) {
	f := newFixture(t)
	owner := f.addProfile("driver-1", nil, access.RoleDriver)
	f.vehicles.vehicles["veh-1"] = Vehicle{ID: "veh-1", OwnerID: "driver-1", Active: false}

	v, err := f.svc.ToggleVehicleActive(context.Background(), owner, "veh-1")
	if err != nil {
		t.Fatalf("owner toggle: %v", err)
	}
	if !v.Active {
		t.Fatal("expected vehicle active after toggle")
	}

	v, err = f.svc.ToggleVehicleActive(context.Background(), owner, "veh-1")
	if err != nil {
		t.Fatalf("owner toggle back: %v", err)
	}
	if v.Active {
		t.Fatal("expected vehicle inactive after second toggle")
	}
}

func TestToggleVehicleActiveStrangerForbidden(t *testing.T) {
	f := newFixture(t)
	f.addProfile("driver-1", nil, access.RoleDriver)
	stranger := f.addProfile("driver-2", nil, access.RoleDriver)
	f.vehicles.vehicles["veh-1"] = Vehicle{ID: "veh-1", OwnerID: "driver-1", Active: false}

	_, err := f.svc.ToggleVehicleActive(context.Background(), stranger, "veh-1")
	if !errors.Is(err, access.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if f.vehicles.setActives != 0 {
		t.Fatalf("SetActive invoked %d times for denied toggle", f.vehicles.setActives)
	}
	if f.vehicles.vehicles["veh-1"].Active {
		t.Fatal("vehicle state changed despite denial")
	}
}

func TestToggleVehicleActiveMultipleActive(t *testing.T) {
	f := newFixture(t)
	owner := f.addProfile("driver-1", nil, access.RoleDriver)
	f.vehicles.vehicles["veh-1"] = Vehicle{ID: "veh-1", OwnerID: "driver-1", Active: true}
	f.vehicles.vehicles["veh-2"] = Vehicle{ID: "veh-2", OwnerID: "driver-1", Active: false}

	if _, err := f.svc.ToggleVehicleActive(context.Background(), owner, "veh-2"); err != nil {
		t.Fatalf("toggle second vehicle: %v", err)
	}
	if !f.vehicles.vehicles["veh-1"].Active || !f.vehicles.vehicles["veh-2"].Active {
		t.Fatal("activating one vehicle must not deactivate another")
	}
}

func TestDeleteOrganizationRequiresSuperAdmin(t *testing.T) {
	f := newFixture(t)
	f.orgs.orgs[1] = Organization{ID: 1, Name: "north"}
	super := f.addProfile("root", nil, access.RoleSuperAdmin)
	admin := f.addProfile("admin-1", orgPtr(1), access.RoleAdmin)

	if err := f.svc.DeleteOrganization(context.Background(), admin, 1); !errors.Is(err, access.ErrForbidden) {
		t.Fatalf("org admin delete: expected ErrForbidden, got %v", err)
	}
	if f.orgs.deletes != 0 {
		t.Fatal("Delete invoked for denied request")
	}

	if err := f.svc.DeleteOrganization(context.Background(), super, 1); err != nil {
		t.Fatalf("super-admin delete: %v", err)
	}
	if _, ok := f.orgs.orgs[1]; ok {
		t.Fatal("organization still present after delete")
	}
}

func TestUpdateOrganizationScope(t *testing.T) {
	f := newFixture(t)
	f.orgs.orgs[1] = Organization{ID: 1, Name: "north"}
	f.orgs.orgs[2] = Organization{ID: 2, Name: "south"}
	admin := f.addProfile("admin-1", orgPtr(1), access.RoleAdmin)
	name := "renamed"

	if _, err := f.svc.UpdateOrganization(context.Background(), admin, 1, OrganizationUpdate{Name: &name}); err != nil {
		t.Fatalf("own-org update: %v", err)
	}

	if _, err := f.svc.UpdateOrganization(context.Background(), admin, 2, OrganizationUpdate{Name: &name}); !errors.Is(err, access.ErrForbidden) {
		t.Fatalf("foreign-org update: expected ErrForbidden, got %v", err)
	}
	if f.orgs.orgs[2].Name != "south" {
		t.Fatal("foreign organization mutated")
	}
}

func TestCrossTenantDestinationUpdateForbidden(t *testing.T) {
	f := newFixture(t)
	f.dests.dests[7] = Destination{ID: 7, OrgID: 2, Name: "clinic"}
	admin := f.addProfile("admin-1", orgPtr(1), access.RoleAdmin)
	name := "renamed"

	_, err := f.svc.UpdateDestination(context.Background(), admin, 7, DestinationUpdate{Name: &name})
	if !errors.Is(err, access.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if f.dests.updates != 0 {
		t.Fatal("Update invoked for denied request")
	}
}

func TestMissingProfileIsNotForbidden(t *testing.T) {
	f := newFixture(t)
	// Valid session, no profile row.
	cred := access.Credential("tok:ghost")

	_, err := f.svc.ListMyVehicles(context.Background(), cred)
	if !errors.Is(err, access.ErrProfileMissing) {
		t.Fatalf("expected ErrProfileMissing, got %v", err)
	}
	if errors.Is(err, access.ErrForbidden) {
		t.Fatal("missing profile must not read as forbidden")
	}
}

func TestUnauthenticatedCredential(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.ListMyVehicles(context.Background(), access.Credential("garbage"))
	if !errors.Is(err, access.ErrUnauthenticated) {
		t.Fatalf("expected ErrUnauthenticated, got %v", err)
	}
}

func TestCreateDestinationBindsActorOrg(t *testing.T) {
	f := newFixture(t)
	staff := f.addProfile("coord-1", orgPtr(3), access.RoleCoordinator)

	dest, err := f.svc.CreateDestination(context.Background(), staff, Destination{Name: "depot", OrgID: 99})
	if err != nil {
		t.Fatalf("CreateDestination: %v", err)
	}
	if dest.OrgID != 3 {
		t.Fatalf("destination org = %d, want actor's org 3", dest.OrgID)
	}
}

func TestCreateDestinationWithoutOrgForbidden(t *testing.T) {
	f := newFixture(t)
	staff := f.addProfile("coord-1", nil, access.RoleCoordinator)

	_, err := f.svc.CreateDestination(context.Background(), staff, Destination{Name: "depot"})
	if !errors.Is(err, access.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for org-less staff, got %v", err)
	}
}

func TestCreateRideRejectsForeignDestination(t *testing.T) {
	f := newFixture(t)
	f.dests.dests[7] = Destination{ID: 7, OrgID: 2, Name: "clinic"}
	planner := f.addProfile("disp-1", orgPtr(1), access.RoleDispatcher)

	_, err := f.svc.CreateRide(context.Background(), planner, Ride{
		DestinationID: 7,
		RiderName:     "pat",
		ScheduledAt:   time.Now().Add(time.Hour),
	})
	if !errors.Is(err, access.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if len(f.rides.rides) != 0 {
		t.Fatal("ride created despite denial")
	}
}

func TestAssignDriverValidatesTarget(t *testing.T) {
	f := newFixture(t)
	f.rides.rides["ride-1"] = Ride{ID: "ride-1", OrgID: 1, Status: RideStatusScheduled}
	planner := f.addProfile("disp-1", orgPtr(1), access.RoleDispatcher)
	f.addProfile("driver-1", orgPtr(1), access.RoleDriver)
	f.addProfile("driver-far", orgPtr(2), access.RoleDriver)
	f.addProfile("client-1", orgPtr(1), access.RoleClient)

	tests := []struct {
		name     string
		driverID string
		wantKind ErrorKind
	}{
		{name: "same-org driver", driverID: "driver-1"},
		{name: "foreign driver", driverID: "driver-far", wantKind: KindInvalidInput},
		{name: "non-driver", driverID: "client-1", wantKind: KindInvalidInput},
		{name: "no profile", driverID: "nobody", wantKind: KindInvalidInput},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.AssignDriver(context.Background(), planner, "ride-1", tc.driverID)
			if tc.wantKind == "" {
				if err != nil {
					t.Fatalf("AssignDriver: %v", err)
				}
				return
			}
			if got := kindOf(t, err); got != tc.wantKind {
				t.Fatalf("kind = %s, want %s", got, tc.wantKind)
			}
		})
	}
}

func TestDecideRideRequestScopedToDriver(t *testing.T) {
	f := newFixture(t)
	addressee := f.addProfile("driver-1", orgPtr(1), access.RoleDriver)
	other := f.addProfile("driver-2", orgPtr(1), access.RoleDriver)
	f.requests.requests[requestKey{"ride-1", "driver-1"}] = RideRequest{
		RideID: "ride-1", DriverID: "driver-1", Status: RequestStatusPending,
	}

	// Another driver probing the same ride sees nothing, not a denial that
	// would confirm the request exists.
	_, err := f.svc.DecideRideRequest(context.Background(), other, "ride-1", true)
	if got := kindOf(t, err); got != KindNotFound {
		t.Fatalf("foreign decide kind = %s, want %s", got, KindNotFound)
	}
	if f.requests.decides != 0 {
		t.Fatal("Decide invoked for foreign driver")
	}

	req, err := f.svc.DecideRideRequest(context.Background(), addressee, "ride-1", true)
	if err != nil {
		t.Fatalf("addressee decide: %v", err)
	}
	if req.Status != RequestStatusAccepted {
		t.Fatalf("status = %s, want %s", req.Status, RequestStatusAccepted)
	}
	if req.DecidedAt == nil {
		t.Fatal("DecidedAt not set")
	}
}

func TestAssignRoles(t *testing.T) {
	f := newFixture(t)
	super := f.addProfile("root", nil, access.RoleSuperAdmin)
	admin := f.addProfile("admin-1", orgPtr(1), access.RoleAdmin)
	f.addProfile("staff-1", orgPtr(1), access.RoleClient)
	f.addProfile("staff-far", orgPtr(2), access.RoleClient)

	t.Run("unknown tag rejected", func(t *testing.T) {
		_, err := f.svc.AssignRoles(context.Background(), super, "staff-1", []string{"Wizard"})
		if got := kindOf(t, err); got != KindInvalidInput {
			t.Fatalf("kind = %s, want %s", got, KindInvalidInput)
		}
	})

	t.Run("admin scoped to own org", func(t *testing.T) {
		_, err := f.svc.AssignRoles(context.Background(), admin, "staff-far", []string{"Dispatcher"})
		if !errors.Is(err, access.ErrForbidden) {
			t.Fatalf("expected ErrForbidden, got %v", err)
		}
		p, err := f.svc.AssignRoles(context.Background(), admin, "staff-1", []string{"Dispatcher"})
		if err != nil {
			t.Fatalf("same-org assign: %v", err)
		}
		if !p.Roles.Has(access.RoleDispatcher) {
			t.Fatal("roles not updated")
		}
		if f.profiles.setRolesInOrg != 1 || f.profiles.setRoles != 0 {
			t.Fatalf("admin path must use the org-scoped update, got setRoles=%d setRolesInOrg=%d",
				f.profiles.setRoles, f.profiles.setRolesInOrg)
		}
	})

	t.Run("super-admin crosses orgs", func(t *testing.T) {
		p, err := f.svc.AssignRoles(context.Background(), super, "staff-far", []string{"Coordinator"})
		if err != nil {
			t.Fatalf("super-admin assign: %v", err)
		}
		if !p.Roles.Has(access.RoleCoordinator) {
			t.Fatal("roles not updated")
		}
	})
}

func TestSignOutTolerant(t *testing.T) {
	f := newFixture(t)

	if err := f.svc.SignOut(context.Background(), "some-token"); err != nil {
		t.Fatalf("first sign-out: %v", err)
	}

	f.provider.signOutErr = identity.ErrNoSession
	if err := f.svc.SignOut(context.Background(), "some-token"); err != nil {
		t.Fatalf("second sign-out must succeed, got %v", err)
	}

	f.provider.signOutErr = identity.ErrUnavailable
	err := f.svc.SignOut(context.Background(), "some-token")
	if got := kindOf(t, err); got != KindUnavailable {
		t.Fatalf("kind = %s, want %s", got, KindUnavailable)
	}
}

func TestListOrganizationsSuperAdminOnly(t *testing.T) {
	f := newFixture(t)
	f.orgs.orgs[1] = Organization{ID: 1, Name: "north"}
	super := f.addProfile("root", nil, access.RoleSuperAdmin)
	admin := f.addProfile("admin-1", orgPtr(1), access.RoleAdmin)

	if _, err := f.svc.ListOrganizations(context.Background(), admin); !errors.Is(err, access.ErrForbidden) {
		t.Fatalf("admin list: expected ErrForbidden, got %v", err)
	}
	orgs, err := f.svc.ListOrganizations(context.Background(), super)
	if err != nil {
		t.Fatalf("super list: %v", err)
	}
	if len(orgs) != 1 {
		t.Fatalf("len = %d, want 1", len(orgs))
	}
}
