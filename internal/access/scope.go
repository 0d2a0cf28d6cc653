package access

// Scope checks are pure comparisons between the acting profile and a
// resource's owner key. They must run against a fresh read of the current
// persisted row, immediately before the mutation, inside the same
// authorization decision. Caller-supplied owner keys are adversarial input
// once the elevated store credential is in play and must never be trusted.

// OwnsUserResource reports whether the profile's identity owns a
// user-keyed resource (vehicles).
func OwnsUserResource(p Profile, ownerID string) bool {
	if p.Identity == "" || ownerID == "" {
		return false
	}
	return p.Identity == ownerID
}

// OwnsOrgResource reports whether the profile's tenant owns an org-keyed
// resource (organizations, destinations, rides). A missing organization id
// on either side denies: a profile without a tenant binding cannot own
// tenant-scoped rows, and an unowned row belongs to nobody.
func OwnsOrgResource(p Profile, orgID *int64) bool {
	if p.OrgID == nil || orgID == nil {
		return false
	}
	return *p.OrgID == *orgID
}

// OwnsRideDecision reports whether the profile may decide a ride request,
// which is keyed by the composite (ride, driver) pair. The ride half of the
// key is enforced by the store predicate; this verifies the driver half.
func OwnsRideDecision(p Profile, requestDriverID string) bool {
	return OwnsUserResource(p, requestDriverID)
}
