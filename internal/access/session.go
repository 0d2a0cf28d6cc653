package access

import (
	"context"
	"strings"
)

// Credential is the transport-level token carried by a request, taken from
// either the session cookie or the Authorization header. The empty value
// means no credential was presented.
type Credential string

// IsZero reports whether no credential was presented.
func (c Credential) IsZero() bool {
	return strings.TrimSpace(string(c)) == ""
}

// Session is the request-scoped identity value produced by a Resolver. It is
// constructed once per request, never persisted by the engine, and never
// cached across requests: a process-wide session cache would defeat
// revocation.
type Session struct {
	Identity     string
	AccessToken  string
	RefreshToken string
}

// Resolver exchanges a transport credential for a verified session.
//
// Outcomes: a Session; ErrUnauthenticated when no credential is present or
// the identity provider reports no active session (both are normal, neither
// is logged as a failure); ErrUnavailable when the provider itself could not
// be reached.
type Resolver interface {
	Resolve(ctx context.Context, cred Credential) (Session, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(ctx context.Context, cred Credential) (Session, error)

func (f ResolverFunc) Resolve(ctx context.Context, cred Credential) (Session, error) {
	return f(ctx, cred)
}
