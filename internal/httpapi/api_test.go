package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fleetgate/fleetgate/internal/access"
	"github.com/fleetgate/fleetgate/internal/dispatch"
	"github.com/fleetgate/fleetgate/internal/identity"
)

// --- minimal in-memory stores -------------------------------------------

type orgStore struct{ orgs map[int64]dispatch.Organization }

func (s *orgStore) Create(_ context.Context, name string) (dispatch.Organization, error) {
	org := dispatch.Organization{ID: int64(len(s.orgs) + 1), Name: name, Active: true}
	s.orgs[org.ID] = org
	return org, nil
}

func (s *orgStore) Get(_ context.Context, id int64) (dispatch.Organization, error) {
	org, ok := s.orgs[id]
	if !ok {
		return dispatch.Organization{}, dispatch.ErrNotFound
	}
	return org, nil
}

func (s *orgStore) List(_ context.Context) ([]dispatch.Organization, error) {
	out := make([]dispatch.Organization, 0, len(s.orgs))
	for _, org := range s.orgs {
		out = append(out, org)
	}
	return out, nil
}

func (s *orgStore) Update(_ context.Context, id int64, upd dispatch.OrganizationUpdate) (dispatch.Organization, error) {
	org, ok := s.orgs[id]
	if !ok {
		return dispatch.Organization{}, dispatch.ErrNotFound
	}
	if upd.Name != nil {
		org.Name = *upd.Name
	}
	s.orgs[id] = org
	return org, nil
}

func (s *orgStore) Delete(_ context.Context, id int64) error {
	if _, ok := s.orgs[id]; !ok {
		return dispatch.ErrNotFound
	}
	delete(s.orgs, id)
	return nil
}

type destStore struct{ dests map[int64]dispatch.Destination }

func (s *destStore) Create(_ context.Context, d dispatch.Destination) (dispatch.Destination, error) {
	d.ID = int64(len(s.dests) + 1)
	s.dests[d.ID] = d
	return d, nil
}

func (s *destStore) Get(_ context.Context, id int64) (dispatch.Destination, error) {
	d, ok := s.dests[id]
	if !ok {
		return dispatch.Destination{}, dispatch.ErrNotFound
	}
	return d, nil
}

func (s *destStore) ListByOrg(_ context.Context, orgID int64) ([]dispatch.Destination, error) {
	var out []dispatch.Destination
	for _, d := range s.dests {
		if d.OrgID == orgID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *destStore) Update(_ context.Context, id, orgID int64, upd dispatch.DestinationUpdate) (dispatch.Destination, error) {
	d, ok := s.dests[id]
	if !ok || d.OrgID != orgID {
		return dispatch.Destination{}, dispatch.ErrNotFound
	}
	if upd.Name != nil {
		d.Name = *upd.Name
	}
	s.dests[id] = d
	return d, nil
}

func (s *destStore) Delete(_ context.Context, id, orgID int64) error {
	d, ok := s.dests[id]
	if !ok || d.OrgID != orgID {
		return dispatch.ErrNotFound
	}
	delete(s.dests, id)
	return nil
}

type vehicleStore struct{ vehicles map[string]dispatch.Vehicle }

func (s *vehicleStore) Create(_ context.Context, v dispatch.Vehicle) (dispatch.Vehicle, error) {
	if v.ID == "" {
		v.ID = "veh-new"
	}
	s.vehicles[v.ID] = v
	return v, nil
}

func (s *vehicleStore) Get(_ context.Context, id string) (dispatch.Vehicle, error) {
	v, ok := s.vehicles[id]
	if !ok {
		return dispatch.Vehicle{}, dispatch.ErrNotFound
	}
	return v, nil
}

func (s *vehicleStore) ListByOwner(_ context.Context, ownerID string) ([]dispatch.Vehicle, error) {
	var out []dispatch.Vehicle
	for _, v := range s.vehicles {
		if v.OwnerID == ownerID {
			out = append(out, v)
		}
	}
	return out, nil
}

func (s *vehicleStore) Update(_ context.Context, id, ownerID string, upd dispatch.VehicleUpdate) (dispatch.Vehicle, error) {
	v, ok := s.vehicles[id]
	if !ok || v.OwnerID != ownerID {
		return dispatch.Vehicle{}, dispatch.ErrNotFound
	}
	if upd.Make != nil {
		v.Make = *upd.Make
	}
	s.vehicles[id] = v
	return v, nil
}

func (s *vehicleStore) SetActive(_ context.Context, id, ownerID string, active bool) (dispatch.Vehicle, error) {
	v, ok := s.vehicles[id]
	if !ok || v.OwnerID != ownerID {
		return dispatch.Vehicle{}, dispatch.ErrNotFound
	}
	v.Active = active
	s.vehicles[id] = v
	return v, nil
}

func (s *vehicleStore) Delete(_ context.Context, id, ownerID string) error {
	v, ok := s.vehicles[id]
	if !ok || v.OwnerID != ownerID {
		return dispatch.ErrNotFound
	}
	delete(s.vehicles, id)
	return nil
}

type rideStore struct{ rides map[string]dispatch.Ride }

func (s *rideStore) Create(_ context.Context, r dispatch.Ride) (dispatch.Ride, error) {
	if r.ID == "" {
		r.ID = "ride-new"
	}
	s.rides[r.ID] = r
	return r, nil
}

func (s *rideStore) Get(_ context.Context, id string) (dispatch.Ride, error) {
	r, ok := s.rides[id]
	if !ok {
		return dispatch.Ride{}, dispatch.ErrNotFound
	}
	return r, nil
}

func (s *rideStore) ListByOrg(_ context.Context, orgID int64) ([]dispatch.Ride, error) {
	var out []dispatch.Ride
	for _, r := range s.rides {
		if r.OrgID == orgID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (s *rideStore) SetStatus(_ context.Context, id string, orgID int64, status string) (dispatch.Ride, error) {
	r, ok := s.rides[id]
	if !ok || r.OrgID != orgID {
		return dispatch.Ride{}, dispatch.ErrNotFound
	}
	r.Status = status
	s.rides[id] = r
	return r, nil
}

type requestStore struct{ requests map[string]dispatch.RideRequest }

func reqKey(rideID, driverID string) string { return rideID + "|" + driverID }

func (s *requestStore) Create(_ context.Context, req dispatch.RideRequest) (dispatch.RideRequest, error) {
	s.requests[reqKey(req.RideID, req.DriverID)] = req
	return req, nil
}

func (s *requestStore) Get(_ context.Context, rideID, driverID string) (dispatch.RideRequest, error) {
	req, ok := s.requests[reqKey(rideID, driverID)]
	if !ok {
		return dispatch.RideRequest{}, dispatch.ErrNotFound
	}
	return req, nil
}

func (s *requestStore) Decide(_ context.Context, rideID, driverID, status string) (dispatch.RideRequest, error) {
	key := reqKey(rideID, driverID)
	req, ok := s.requests[key]
	if !ok {
		return dispatch.RideRequest{}, dispatch.ErrNotFound
	}
	now := time.Now()
	req.Status = status
	req.DecidedAt = &now
	s.requests[key] = req
	return req, nil
}

type profileStore struct{ profiles map[string]access.Profile }

func (s *profileStore) Get(_ context.Context, identity string) (access.Profile, error) {
	p, ok := s.profiles[identity]
	if !ok {
		return access.Profile{}, access.ErrProfileMissing
	}
	return p, nil
}

func (s *profileStore) SetRoles(_ context.Context, identity string, roles access.RoleSet) (access.Profile, error) {
	p, ok := s.profiles[identity]
	if !ok {
		return access.Profile{}, access.ErrProfileMissing
	}
	p.Roles = roles
	s.profiles[identity] = p
	return p, nil
}

func (s *profileStore) SetRolesInOrg(_ context.Context, identity string, orgID int64, roles access.RoleSet) (access.Profile, error) {
	p, ok := s.profiles[identity]
	if !ok || p.OrgID == nil || *p.OrgID != orgID {
		return access.Profile{}, dispatch.ErrNotFound
	}
	p.Roles = roles
	s.profiles[identity] = p
	return p, nil
}

type fakeProvider struct {
	signInGrant identity.Grant
	signInErr   error
	signOutErr  error
}

func (p *fakeProvider) Exchange(_ context.Context, credential string) (identity.Grant, error) {
	id, ok := strings.CutPrefix(credential, "tok:")
	if !ok {
		return identity.Grant{}, identity.ErrNoSession
	}
	return identity.Grant{Identity: id, AccessToken: credential}, nil
}

func (p *fakeProvider) SignIn(context.Context, string, string) (identity.Grant, error) {
	return p.signInGrant, p.signInErr
}

func (p *fakeProvider) Refresh(context.Context, string) (identity.Grant, error) {
	return identity.Grant{}, identity.ErrNoSession
}

func (p *fakeProvider) SignOut(context.Context, string) error { return p.signOutErr }

// --- fixture -------------------------------------------------------------

type apiFixture struct {
	handler  http.Handler
	profiles *profileStore
	vehicles *vehicleStore
	orgs     *orgStore
	provider *fakeProvider
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	f := &apiFixture{
		profiles: &profileStore{profiles: map[string]access.Profile{}},
		vehicles: &vehicleStore{vehicles: map[string]dispatch.Vehicle{}},
		orgs:     &orgStore{orgs: map[int64]dispatch.Organization{}},
		provider: &fakeProvider{},
	}
	resolver, err := identity.NewTokenResolver(f.provider)
	if err != nil {
		t.Fatalf("NewTokenResolver: %v", err)
	}
	binder := access.BinderFunc(func(ctx context.Context, id string) (access.Profile, error) {
		return f.profiles.Get(ctx, id)
	})
	gate, err := access.NewGate(resolver, binder)
	if err != nil {
		t.Fatalf("NewGate: %v", err)
	}
	svc, err := dispatch.NewService(gate, f.provider, dispatch.Stores{
		Organizations: f.orgs,
		Destinations:  &destStore{dests: map[int64]dispatch.Destination{}},
		Vehicles:      f.vehicles,
		Rides:         &rideStore{rides: map[string]dispatch.Ride{}},
		RideRequests:  &requestStore{requests: map[string]dispatch.RideRequest{}},
		Profiles:      f.profiles,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	api := New(svc, gate, f.provider, ReadyProbe{}, Options{})
	f.handler = api.Handler()
	return f
}

func (f *apiFixture) addProfile(identity string, orgID *int64, roles ...access.Role) string {
	f.profiles.profiles[identity] = access.Profile{
		Identity: identity,
		OrgID:    orgID,
		Roles:    access.NewRoleSet(roles...),
	}
	return "tok:" + identity
}

func (f *apiFixture) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

// --- tests ---------------------------------------------------------------

func TestAnonymousRequestUnauthorized(t *testing.T) {
	f := newAPIFixture(t)
	rec := f.do(t, http.MethodGet, "/v1/vehicles", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestMissingProfileIsNotFound(t *testing.T) {
	f := newAPIFixture(t)
	// Valid token, no profile row behind it.
	rec := f.do(t, http.MethodGet, "/v1/vehicles", "tok:ghost", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestForbiddenRoleIsGeneric403(t *testing.T) {
	f := newAPIFixture(t)
	token := f.addProfile("client-1", nil, access.RoleClient)
	rec := f.do(t, http.MethodGet, "/v1/organizations", token, "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "role") || strings.Contains(rec.Body.String(), "ownership") {
		t.Fatalf("deny cause leaked in response: %s", rec.Body.String())
	}
}

func TestVehicleToggleRoundTrip(t *testing.T) {
	f := newAPIFixture(t)
	token := f.addProfile("driver-1", nil, access.RoleDriver)
	f.vehicles.vehicles["veh-1"] = dispatch.Vehicle{ID: "veh-1", OwnerID: "driver-1", Active: false}

	rec := f.do(t, http.MethodPost, "/v1/vehicles/veh-1/toggle", token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var v dispatch.Vehicle
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !v.Active {
		t.Fatal("vehicle not active after toggle")
	}
}

func TestVehicleToggleForeignOwnerForbidden(t *testing.T) {
	f := newAPIFixture(t)
	f.addProfile("driver-1", nil, access.RoleDriver)
	token := f.addProfile("driver-2", nil, access.RoleDriver)
	f.vehicles.vehicles["veh-1"] = dispatch.Vehicle{ID: "veh-1", OwnerID: "driver-1", Active: false}

	rec := f.do(t, http.MethodPost, "/v1/vehicles/veh-1/toggle", token, "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestCreateOrganizationSuperAdmin(t *testing.T) {
	f := newAPIFixture(t)
	token := f.addProfile("root", nil, access.RoleSuperAdmin)

	rec := f.do(t, http.MethodPost, "/v1/organizations", token, `{"name":"north"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	if loc := rec.Header().Get("Location"); loc != "/v1/organizations/1" {
		t.Fatalf("Location = %q", loc)
	}
}

func TestSignInInvalidCredentials(t *testing.T) {
	f := newAPIFixture(t)
	f.provider.signInErr = identity.ErrInvalidCredentials

	rec := f.do(t, http.MethodPost, "/v1/auth/sign-in", "", `{"email":"a@b.c","password":"nope"}`)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestSignInSetsSessionCookie(t *testing.T) {
	f := newAPIFixture(t)
	f.provider.signInGrant = identity.Grant{
		Identity:        "driver-1",
		AccessToken:     "tok:driver-1",
		RefreshToken:    "rt.secret",
		AccessExpiresAt: time.Now().Add(15 * time.Minute),
	}

	rec := f.do(t, http.MethodPost, "/v1/auth/sign-in", "", `{"email":"d@x.y","password":"pw"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var found bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookie && c.Value == "tok:driver-1" && c.HttpOnly {
			found = true
		}
	}
	if !found {
		t.Fatal("session cookie not set")
	}
}

func TestSignOutAlwaysSucceeds(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/v1/auth/sign-out", "", `{"refresh_token":"rt.gone"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("first sign-out status = %d", rec.Code)
	}

	f.provider.signOutErr = identity.ErrNoSession
	rec = f.do(t, http.MethodPost, "/v1/auth/sign-out", "", `{"refresh_token":"rt.gone"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("repeat sign-out status = %d, want 200", rec.Code)
	}
}

func TestPageRedirectsAnonymousToLogin(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodGet, "/app/dispatch", "", "")
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/login" {
		t.Fatalf("Location = %q, want /login", loc)
	}
}

func TestPageRedirectsWrongRoleHome(t *testing.T) {
	f := newAPIFixture(t)
	token := f.addProfile("driver-1", nil, access.RoleDriver)

	rec := f.do(t, http.MethodGet, "/app/admin", token, "")
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("status = %d, want 303", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/" {
		t.Fatalf("Location = %q, want /", loc)
	}
}

func TestPageAllowedRendersPayload(t *testing.T) {
	f := newAPIFixture(t)
	token := f.addProfile("disp-1", nil, access.RoleDispatcher)

	rec := f.do(t, http.MethodGet, "/app/dispatch", token, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var payload struct {
		Page     string `json:"page"`
		Identity string `json:"identity"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Page != "dispatch" || payload.Identity != "disp-1" {
		t.Fatalf("payload = %+v", payload)
	}
}

func TestRequestIDHeaderAssigned(t *testing.T) {
	f := newAPIFixture(t)
	rec := f.do(t, http.MethodGet, "/healthz", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get(requestIDHeader) == "" {
		t.Fatal("request id header missing")
	}
}

func TestCookieCredentialAccepted(t *testing.T) {
	f := newAPIFixture(t)
	token := f.addProfile("driver-1", nil, access.RoleDriver)

	req := httptest.NewRequest(http.MethodGet, "/v1/vehicles", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookie, Value: token})
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
}
