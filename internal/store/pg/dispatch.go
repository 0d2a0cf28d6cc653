package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/fleetgate/fleetgate/internal/dispatch"
	"github.com/fleetgate/fleetgate/internal/ids"
)

// --- organizations -------------------------------------------------------

func (s *Store) CreateOrganization(ctx context.Context, name string) (dispatch.Organization, error) {
	var org dispatch.Organization
	row := s.db.QueryRowContext(ctx, `
		insert into organizations (name, active)
		values ($1, true)
		returning id, name, active, created_at, updated_at
	`, name)
	if err := row.Scan(&org.ID, &org.Name, &org.Active, &org.CreatedAt, &org.UpdatedAt); err != nil {
		return dispatch.Organization{}, mapWriteErr(err)
	}
	return org, nil
}

func (s *Store) GetOrganization(ctx context.Context, id int64) (dispatch.Organization, error) {
	var org dispatch.Organization
	err := s.db.QueryRowContext(ctx, `
		select id, name, active, created_at, updated_at
		from organizations
		where id = $1
	`, id).Scan(&org.ID, &org.Name, &org.Active, &org.CreatedAt, &org.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return dispatch.Organization{}, dispatch.ErrNotFound
	}
	if err != nil {
		return dispatch.Organization{}, err
	}
	return org, nil
}

func (s *Store) ListOrganizations(ctx context.Context) ([]dispatch.Organization, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, name, active, created_at, updated_at
		from organizations
		order by name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []dispatch.Organization
	for rows.Next() {
		var org dispatch.Organization
		if err := rows.Scan(&org.ID, &org.Name, &org.Active, &org.CreatedAt, &org.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, org)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) UpdateOrganization(ctx context.Context, id int64, upd dispatch.OrganizationUpdate) (dispatch.Organization, error) {
	var (
		sets []string
		args []any
		idx  = 1
	)
	if upd.Name != nil {
		sets = append(sets, fmt.Sprintf("name = $%d", idx))
		args = append(args, *upd.Name)
		idx++
	}
	if upd.Active != nil {
		sets = append(sets, fmt.Sprintf("active = $%d", idx))
		args = append(args, *upd.Active)
		idx++
	}
	if len(sets) > 0 {
		sets = append(sets, "updated_at = now()")
		query := fmt.Sprintf(`update organizations set %s where id = $%d`, strings.Join(sets, ", "), idx)
		args = append(args, id)
		if err := requireAffected(s.db.ExecContext(ctx, query, args...)); err != nil {
			return dispatch.Organization{}, err
		}
	}
	return s.GetOrganization(ctx, id)
}

func (s *Store) DeleteOrganization(ctx context.Context, id int64) error {
	return requireAffected(s.db.ExecContext(ctx, `delete from organizations where id = $1`, id))
}

// --- destinations --------------------------------------------------------

func (s *Store) CreateDestination(ctx context.Context, dest dispatch.Destination) (dispatch.Destination, error) {
	row := s.db.QueryRowContext(ctx, `
		insert into destinations (organization_id, name, street, city, active)
		values ($1, $2, $3, $4, $5)
		returning id, organization_id, name, street, city, active, created_at, updated_at
	`, dest.OrgID, dest.Name, dest.Street, dest.City, dest.Active)
	var out dispatch.Destination
	if err := row.Scan(&out.ID, &out.OrgID, &out.Name, &out.Street, &out.City, &out.Active, &out.CreatedAt, &out.UpdatedAt); err != nil {
		return dispatch.Destination{}, mapWriteErr(err)
	}
	return out, nil
}

func (s *Store) GetDestination(ctx context.Context, id int64) (dispatch.Destination, error) {
	var dest dispatch.Destination
	err := s.db.QueryRowContext(ctx, `
		select id, organization_id, name, street, city, active, created_at, updated_at
		from destinations
		where id = $1
	`, id).Scan(&dest.ID, &dest.OrgID, &dest.Name, &dest.Street, &dest.City, &dest.Active, &dest.CreatedAt, &dest.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return dispatch.Destination{}, dispatch.ErrNotFound
	}
	if err != nil {
		return dispatch.Destination{}, err
	}
	return dest, nil
}

func (s *Store) ListDestinationsByOrg(ctx context.Context, orgID int64) ([]dispatch.Destination, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, organization_id, name, street, city, active, created_at, updated_at
		from destinations
		where organization_id = $1
		order by name
	`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var dests []dispatch.Destination
	for rows.Next() {
		var dest dispatch.Destination
		if err := rows.Scan(&dest.ID, &dest.OrgID, &dest.Name, &dest.Street, &dest.City, &dest.Active, &dest.CreatedAt, &dest.UpdatedAt); err != nil {
			return nil, err
		}
		dests = append(dests, dest)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return dests, nil
}

// UpdateDestination writes with the owning org in the predicate, so the row
// is untouchable from another tenant even if the caller got here wrongly.
func (s *Store) UpdateDestination(ctx context.Context, id, orgID int64, upd dispatch.DestinationUpdate) (dispatch.Destination, error) {
	var (
		sets []string
		args []any
		idx  = 1
	)
	if upd.Name != nil {
		sets = append(sets, fmt.Sprintf("name = $%d", idx))
		args = append(args, *upd.Name)
		idx++
	}
	if upd.Street != nil {
		sets = append(sets, fmt.Sprintf("street = $%d", idx))
		args = append(args, *upd.Street)
		idx++
	}
	if upd.City != nil {
		sets = append(sets, fmt.Sprintf("city = $%d", idx))
		args = append(args, *upd.City)
		idx++
	}
	if upd.Active != nil {
		sets = append(sets, fmt.Sprintf("active = $%d", idx))
		args = append(args, *upd.Active)
		idx++
	}
	if len(sets) > 0 {
		sets = append(sets, "updated_at = now()")
		query := fmt.Sprintf(`update destinations set %s where id = $%d and organization_id = $%d`,
			strings.Join(sets, ", "), idx, idx+1)
		args = append(args, id, orgID)
		if err := requireAffected(s.db.ExecContext(ctx, query, args...)); err != nil {
			return dispatch.Destination{}, err
		}
	}
	return s.GetDestination(ctx, id)
}

func (s *Store) DeleteDestination(ctx context.Context, id, orgID int64) error {
	return requireAffected(s.db.ExecContext(ctx, `
		delete from destinations where id = $1 and organization_id = $2
	`, id, orgID))
}

// --- vehicles ------------------------------------------------------------

func (s *Store) CreateVehicle(ctx context.Context, v dispatch.Vehicle) (dispatch.Vehicle, error) {
	row := s.db.QueryRowContext(ctx, `
		insert into vehicles (id, owner_id, make, model, seats, active)
		values ($1, $2, $3, $4, $5, $6)
		returning id, owner_id, make, model, seats, active, created_at, updated_at
	`, ids.New(), v.OwnerID, v.Make, v.Model, v.Seats, v.Active)
	var out dispatch.Vehicle
	if err := row.Scan(&out.ID, &out.OwnerID, &out.Make, &out.Model, &out.Seats, &out.Active, &out.CreatedAt, &out.UpdatedAt); err != nil {
		return dispatch.Vehicle{}, mapWriteErr(err)
	}
	return out, nil
}

func (s *Store) GetVehicle(ctx context.Context, id string) (dispatch.Vehicle, error) {
	var v dispatch.Vehicle
	err := s.db.QueryRowContext(ctx, `
		select id, owner_id, make, model, seats, active, created_at, updated_at
		from vehicles
		where id = $1
	`, id).Scan(&v.ID, &v.OwnerID, &v.Make, &v.Model, &v.Seats, &v.Active, &v.CreatedAt, &v.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return dispatch.Vehicle{}, dispatch.ErrNotFound
	}
	if err != nil {
		return dispatch.Vehicle{}, err
	}
	return v, nil
}

func (s *Store) ListVehiclesByOwner(ctx context.Context, ownerID string) ([]dispatch.Vehicle, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, owner_id, make, model, seats, active, created_at, updated_at
		from vehicles
		where owner_id = $1
		order by created_at
	`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var vehicles []dispatch.Vehicle
	for rows.Next() {
		var v dispatch.Vehicle
		if err := rows.Scan(&v.ID, &v.OwnerID, &v.Make, &v.Model, &v.Seats, &v.Active, &v.CreatedAt, &v.UpdatedAt); err != nil {
			return nil, err
		}
		vehicles = append(vehicles, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return vehicles, nil
}

func (s *Store) UpdateVehicle(ctx context.Context, id, ownerID string, upd dispatch.VehicleUpdate) (dispatch.Vehicle, error) {
	var (
		sets []string
		args []any
		idx  = 1
	)
	if upd.Make != nil {
		sets = append(sets, fmt.Sprintf("make = $%d", idx))
		args = append(args, *upd.Make)
		idx++
	}
	if upd.Model != nil {
		sets = append(sets, fmt.Sprintf("model = $%d", idx))
		args = append(args, *upd.Model)
		idx++
	}
	if upd.Seats != nil {
		sets = append(sets, fmt.Sprintf("seats = $%d", idx))
		args = append(args, *upd.Seats)
		idx++
	}
	if len(sets) > 0 {
		sets = append(sets, "updated_at = now()")
		query := fmt.Sprintf(`update vehicles set %s where id = $%d and owner_id = $%d`,
			strings.Join(sets, ", "), idx, idx+1)
		args = append(args, id, ownerID)
		if err := requireAffected(s.db.ExecContext(ctx, query, args...)); err != nil {
			return dispatch.Vehicle{}, err
		}
	}
	return s.GetVehicle(ctx, id)
}

// SetVehicleActive writes the toggled state conditionally on (id, owner).
func (s *Store) SetVehicleActive(ctx context.Context, id, ownerID string, active bool) (dispatch.Vehicle, error) {
	var v dispatch.Vehicle
	err := s.db.QueryRowContext(ctx, `
		update vehicles set active = $3, updated_at = now()
		where id = $1 and owner_id = $2
		returning id, owner_id, make, model, seats, active, created_at, updated_at
	`, id, ownerID, active).Scan(&v.ID, &v.OwnerID, &v.Make, &v.Model, &v.Seats, &v.Active, &v.CreatedAt, &v.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return dispatch.Vehicle{}, dispatch.ErrNotFound
	}
	if err != nil {
		return dispatch.Vehicle{}, err
	}
	return v, nil
}

func (s *Store) DeleteVehicle(ctx context.Context, id, ownerID string) error {
	return requireAffected(s.db.ExecContext(ctx, `
		delete from vehicles where id = $1 and owner_id = $2
	`, id, ownerID))
}

// --- rides ---------------------------------------------------------------

func (s *Store) CreateRide(ctx context.Context, r dispatch.Ride) (dispatch.Ride, error) {
	row := s.db.QueryRowContext(ctx, `
		insert into rides (id, organization_id, destination_id, rider_name, status, scheduled_at)
		values ($1, $2, $3, $4, $5, $6)
		returning id, organization_id, destination_id, rider_name, status, scheduled_at, created_at, updated_at
	`, ids.New(), r.OrgID, r.DestinationID, r.RiderName, r.Status, r.ScheduledAt)
	var out dispatch.Ride
	if err := row.Scan(&out.ID, &out.OrgID, &out.DestinationID, &out.RiderName, &out.Status, &out.ScheduledAt, &out.CreatedAt, &out.UpdatedAt); err != nil {
		return dispatch.Ride{}, mapWriteErr(err)
	}
	return out, nil
}

func (s *Store) GetRide(ctx context.Context, id string) (dispatch.Ride, error) {
	var r dispatch.Ride
	err := s.db.QueryRowContext(ctx, `
		select id, organization_id, destination_id, rider_name, status, scheduled_at, created_at, updated_at
		from rides
		where id = $1
	`, id).Scan(&r.ID, &r.OrgID, &r.DestinationID, &r.RiderName, &r.Status, &r.ScheduledAt, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return dispatch.Ride{}, dispatch.ErrNotFound
	}
	if err != nil {
		return dispatch.Ride{}, err
	}
	return r, nil
}

func (s *Store) ListRidesByOrg(ctx context.Context, orgID int64) ([]dispatch.Ride, error) {
	rows, err := s.db.QueryContext(ctx, `
		select id, organization_id, destination_id, rider_name, status, scheduled_at, created_at, updated_at
		from rides
		where organization_id = $1
		order by scheduled_at
	`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rides []dispatch.Ride
	for rows.Next() {
		var r dispatch.Ride
		if err := rows.Scan(&r.ID, &r.OrgID, &r.DestinationID, &r.RiderName, &r.Status, &r.ScheduledAt, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, err
		}
		rides = append(rides, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return rides, nil
}

func (s *Store) SetRideStatus(ctx context.Context, id string, orgID int64, status string) (dispatch.Ride, error) {
	var r dispatch.Ride
	err := s.db.QueryRowContext(ctx, `
		update rides set status = $3, updated_at = now()
		where id = $1 and organization_id = $2
		returning id, organization_id, destination_id, rider_name, status, scheduled_at, created_at, updated_at
	`, id, orgID, status).Scan(&r.ID, &r.OrgID, &r.DestinationID, &r.RiderName, &r.Status, &r.ScheduledAt, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return dispatch.Ride{}, dispatch.ErrNotFound
	}
	if err != nil {
		return dispatch.Ride{}, err
	}
	return r, nil
}

// --- ride requests -------------------------------------------------------

func (s *Store) CreateRideRequest(ctx context.Context, req dispatch.RideRequest) (dispatch.RideRequest, error) {
	row := s.db.QueryRowContext(ctx, `
		insert into ride_requests (ride_id, driver_id, status)
		values ($1, $2, $3)
		returning ride_id, driver_id, status, decided_at, created_at
	`, req.RideID, req.DriverID, req.Status)
	var out dispatch.RideRequest
	if err := row.Scan(&out.RideID, &out.DriverID, &out.Status, &out.DecidedAt, &out.CreatedAt); err != nil {
		return dispatch.RideRequest{}, mapWriteErr(err)
	}
	return out, nil
}

func (s *Store) GetRideRequest(ctx context.Context, rideID, driverID string) (dispatch.RideRequest, error) {
	var req dispatch.RideRequest
	err := s.db.QueryRowContext(ctx, `
		select ride_id, driver_id, status, decided_at, created_at
		from ride_requests
		where ride_id = $1 and driver_id = $2
	`, rideID, driverID).Scan(&req.RideID, &req.DriverID, &req.Status, &req.DecidedAt, &req.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return dispatch.RideRequest{}, dispatch.ErrNotFound
	}
	if err != nil {
		return dispatch.RideRequest{}, err
	}
	return req, nil
}

// DecideRideRequest updates by both halves of the composite key, so only
// the addressed driver's row is reachable.
func (s *Store) DecideRideRequest(ctx context.Context, rideID, driverID, status string) (dispatch.RideRequest, error) {
	var req dispatch.RideRequest
	err := s.db.QueryRowContext(ctx, `
		update ride_requests set status = $3, decided_at = now()
		where ride_id = $1 and driver_id = $2
		returning ride_id, driver_id, status, decided_at, created_at
	`, rideID, driverID, status).Scan(&req.RideID, &req.DriverID, &req.Status, &req.DecidedAt, &req.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return dispatch.RideRequest{}, dispatch.ErrNotFound
	}
	if err != nil {
		return dispatch.RideRequest{}, err
	}
	return req, nil
}
