package dispatch

import (
	"context"
	"errors"
	"time"

	"github.com/fleetgate/fleetgate/internal/access"
)

// Store-level sentinel errors implementations map onto.
var (
	ErrNotFound     = errors.New("dispatch: not found")
	ErrConflict     = errors.New("dispatch: already exists")
	ErrInvalidRef   = errors.New("dispatch: invalid reference")
	ErrInvalidInput = errors.New("dispatch: invalid input")
)

// Organization is a tenant: the unit of data isolation above the user.
type Organization struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Destination is an org-owned pickup/dropoff location.
type Destination struct {
	ID        int64     `json:"id"`
	OrgID     int64     `json:"organization_id"`
	Name      string    `json:"name"`
	Street    string    `json:"street"`
	City      string    `json:"city"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Vehicle is owned by the driver who registered it. A driver may keep any
// number of vehicles active at once; activation is a toggle, not an
// exclusive selection.
type Vehicle struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"owner_id"`
	Make      string    `json:"make"`
	Model     string    `json:"model"`
	Seats     int       `json:"seats"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Ride statuses.
const (
	RideStatusScheduled = "scheduled"
	RideStatusCancelled = "cancelled"
)

// Ride is an org-owned trip to a destination.
type Ride struct {
	ID            string    `json:"id"`
	OrgID         int64     `json:"organization_id"`
	DestinationID int64     `json:"destination_id"`
	RiderName     string    `json:"rider_name"`
	Status        string    `json:"status"`
	ScheduledAt   time.Time `json:"scheduled_at"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Ride request decision states.
const (
	RequestStatusPending  = "pending"
	RequestStatusAccepted = "accepted"
	RequestStatusDeclined = "declined"
)

// RideRequest asks a specific driver to take a ride; it is keyed by the
// composite (ride, driver) pair.
type RideRequest struct {
	RideID    string     `json:"ride_id"`
	DriverID  string     `json:"driver_id"`
	Status    string     `json:"status"`
	DecidedAt *time.Time `json:"decided_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

// OrganizationUpdate carries the mutable organization fields.
type OrganizationUpdate struct {
	Name   *string
	Active *bool
}

// DestinationUpdate carries the mutable destination fields.
type DestinationUpdate struct {
	Name   *string
	Street *string
	City   *string
	Active *bool
}

// VehicleUpdate carries the mutable vehicle fields.
type VehicleUpdate struct {
	Make  *string
	Model *string
	Seats *int
}

// OrganizationStore persists tenants.
type OrganizationStore interface {
	Create(ctx context.Context, name string) (Organization, error)
	Get(ctx context.Context, id int64) (Organization, error)
	List(ctx context.Context) ([]Organization, error)
	Update(ctx context.Context, id int64, upd OrganizationUpdate) (Organization, error)
	Delete(ctx context.Context, id int64) error
}

// DestinationStore persists org-owned destinations. Every mutation carries
// the owning org id as a predicate in the same store request, so a gate
// bypass alone cannot touch another tenant's rows.
type DestinationStore interface {
	Create(ctx context.Context, dest Destination) (Destination, error)
	Get(ctx context.Context, id int64) (Destination, error)
	ListByOrg(ctx context.Context, orgID int64) ([]Destination, error)
	Update(ctx context.Context, id, orgID int64, upd DestinationUpdate) (Destination, error)
	Delete(ctx context.Context, id, orgID int64) error
}

// VehicleStore persists user-owned vehicles; mutations are scoped by
// (id, owner).
type VehicleStore interface {
	Create(ctx context.Context, v Vehicle) (Vehicle, error)
	Get(ctx context.Context, id string) (Vehicle, error)
	ListByOwner(ctx context.Context, ownerID string) ([]Vehicle, error)
	Update(ctx context.Context, id, ownerID string, upd VehicleUpdate) (Vehicle, error)
	SetActive(ctx context.Context, id, ownerID string, active bool) (Vehicle, error)
	Delete(ctx context.Context, id, ownerID string) error
}

// RideStore persists org-owned rides.
type RideStore interface {
	Create(ctx context.Context, r Ride) (Ride, error)
	Get(ctx context.Context, id string) (Ride, error)
	ListByOrg(ctx context.Context, orgID int64) ([]Ride, error)
	SetStatus(ctx context.Context, id string, orgID int64, status string) (Ride, error)
}

// RideRequestStore persists per-driver ride requests; decisions are scoped
// by both halves of the composite key.
type RideRequestStore interface {
	Create(ctx context.Context, req RideRequest) (RideRequest, error)
	Get(ctx context.Context, rideID, driverID string) (RideRequest, error)
	Decide(ctx context.Context, rideID, driverID, status string) (RideRequest, error)
}

// ProfileStore manages tenant-binding records.
type ProfileStore interface {
	Get(ctx context.Context, identity string) (access.Profile, error)
	SetRoles(ctx context.Context, identity string, roles access.RoleSet) (access.Profile, error)
	SetRolesInOrg(ctx context.Context, identity string, orgID int64, roles access.RoleSet) (access.Profile, error)
}
