package access

import "context"

// Profile is the tenant-binding record for an identity: which organization
// the user acts for, and which role tags they carry. Read-only within a
// request.
type Profile struct {
	Identity string
	OrgID    *int64
	Roles    RoleSet
}

// HasOrg reports whether the profile carries a tenant binding. A profile
// without one is still usable for role checks (for example super-admin
// operations) but fails every tenant-scoped check closed.
func (p Profile) HasOrg() bool {
	return p.OrgID != nil
}

// Binder loads the profile bound to an identity.
//
// Outcomes: a Profile; ErrProfileMissing when the identity has no staff
// binding yet (expected, distinct from a lookup failure); ErrInvariant when
// more than one row matches an at-most-one query; ErrUnavailable when the
// store could not be reached.
type Binder interface {
	Bind(ctx context.Context, identity string) (Profile, error)
}

// BinderFunc adapts a function to the Binder interface.
type BinderFunc func(ctx context.Context, identity string) (Profile, error)

func (f BinderFunc) Bind(ctx context.Context, identity string) (Profile, error) {
	return f(ctx, identity)
}
