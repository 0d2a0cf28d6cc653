package access

import "errors"

var (
	// ErrUnauthenticated means no valid session backs the request. This is
	// an expected outcome, not a failure.
	ErrUnauthenticated = errors.New("access: not authenticated")

	// ErrProfileMissing means the identity is valid but carries no staff
	// binding yet. Distinct from ErrForbidden.
	ErrProfileMissing = errors.New("access: profile not found")

	// ErrForbidden covers both role and ownership failures; the two causes
	// are separated only in the audit log, never in the returned error.
	ErrForbidden = errors.New("access: forbidden")

	// ErrUnavailable marks a collaborator transport failure. It must never
	// collapse into ErrUnauthenticated or ErrForbidden.
	ErrUnavailable = errors.New("access: collaborator unavailable")

	// ErrInvariant marks a data-integrity fault (duplicate profiles,
	// undecodable role payload). Fails closed.
	ErrInvariant = errors.New("access: invariant violation")

	ErrUnknownRole = errors.New("access: unknown role tag")
)
