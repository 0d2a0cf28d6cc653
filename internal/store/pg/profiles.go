package pg

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/fleetgate/fleetgate/internal/access"
	"github.com/fleetgate/fleetgate/internal/dispatch"
)

var _ access.Binder = (*Store)(nil)

// Bind makes the store the gate's profile binder. A missing row is the
// expected ErrProfileMissing; anything structurally wrong with the stored
// profile fails closed as ErrInvariant; a transport fault surfaces as
// ErrUnavailable so the gate can retry it.
func (s *Store) Bind(ctx context.Context, identity string) (access.Profile, error) {
	return s.GetProfile(ctx, identity)
}

// GetProfile reads the tenant-binding record. Legacy rows stored the role
// tags either as a bare string or as an array; both shapes are reconciled
// into a canonical set right here, so nothing downstream ever sees the raw
// form. The query asks for two rows on purpose: a duplicated identity is a
// data fault, not a profile.
func (s *Store) GetProfile(ctx context.Context, identity string) (access.Profile, error) {
	rows, err := s.db.QueryContext(ctx, `
		select identity, organization_id, roles
		from profiles
		where identity = $1
		limit 2
	`, identity)
	if err != nil {
		return access.Profile{}, fmt.Errorf("%w: load profile: %v", access.ErrUnavailable, err)
	}
	defer rows.Close()

	var (
		profile  access.Profile
		rawRoles []byte
		found    int
	)
	for rows.Next() {
		found++
		if found > 1 {
			return access.Profile{}, fmt.Errorf("%w: duplicate profile for %s", access.ErrInvariant, identity)
		}
		if err := rows.Scan(&profile.Identity, &profile.OrgID, &rawRoles); err != nil {
			return access.Profile{}, fmt.Errorf("%w: load profile: %v", access.ErrUnavailable, err)
		}
	}
	if err := rows.Err(); err != nil {
		return access.Profile{}, fmt.Errorf("%w: load profile: %v", access.ErrUnavailable, err)
	}
	if found == 0 {
		return access.Profile{}, access.ErrProfileMissing
	}

	roles, err := access.NormalizeRoles(json.RawMessage(rawRoles))
	if err != nil {
		return access.Profile{}, fmt.Errorf("%w: profile %s: %v", access.ErrInvariant, identity, err)
	}
	profile.Roles = roles
	return profile, nil
}

// SetProfileRoles replaces the role set unconditionally. Roles are always
// written back as an array, which retires the legacy scalar shape row by
// row as profiles get touched.
func (s *Store) SetProfileRoles(ctx context.Context, identity string, roles access.RoleSet) (access.Profile, error) {
	encoded, err := json.Marshal(roles)
	if err != nil {
		return access.Profile{}, err
	}
	if err := requireAffected(s.db.ExecContext(ctx, `
		update profiles set roles = $2, updated_at = now()
		where identity = $1
	`, identity, encoded)); err != nil {
		if errors.Is(err, dispatch.ErrNotFound) {
			return access.Profile{}, access.ErrProfileMissing
		}
		return access.Profile{}, err
	}
	return s.GetProfile(ctx, identity)
}

// SetProfileRolesInOrg replaces the role set with the tenant in the update
// predicate, so an admin's write cannot land on a foreign tenant's profile
// no matter what the caller checked beforehand.
func (s *Store) SetProfileRolesInOrg(ctx context.Context, identity string, orgID int64, roles access.RoleSet) (access.Profile, error) {
	encoded, err := json.Marshal(roles)
	if err != nil {
		return access.Profile{}, err
	}
	if err := requireAffected(s.db.ExecContext(ctx, `
		update profiles set roles = $3, updated_at = now()
		where identity = $1 and organization_id = $2
	`, identity, orgID, encoded)); err != nil {
		return access.Profile{}, err
	}
	return s.GetProfile(ctx, identity)
}
