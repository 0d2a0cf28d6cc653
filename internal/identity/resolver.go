package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/fleetgate/fleetgate/internal/access"
)

// TokenResolver adapts a Provider to the engine's session resolver. An
// absent credential and a credential the provider no longer recognizes are
// the same outcome: unauthenticated. Provider transport failures are kept
// distinct so the gate can retry and callers can answer 503, not 401.
type TokenResolver struct {
	provider Provider
}

// NewTokenResolver wraps the provider.
func NewTokenResolver(provider Provider) (*TokenResolver, error) {
	if provider == nil {
		return nil, errors.New("identity: provider is required")
	}
	return &TokenResolver{provider: provider}, nil
}

var _ access.Resolver = (*TokenResolver)(nil)

// Resolve exchanges the transport credential for a verified session.
func (r *TokenResolver) Resolve(ctx context.Context, cred access.Credential) (access.Session, error) {
	if cred.IsZero() {
		return access.Session{}, access.ErrUnauthenticated
	}
	grant, err := r.provider.Exchange(ctx, string(cred))
	switch {
	case err == nil:
	case errors.Is(err, ErrNoSession):
		return access.Session{}, access.ErrUnauthenticated
	default:
		// Anything unexpected is a collaborator failure. Misreporting a
		// broken provider as "not signed in" is forbidden.
		return access.Session{}, fmt.Errorf("%w: %v", access.ErrUnavailable, err)
	}
	return access.Session{
		Identity:     grant.Identity,
		AccessToken:  grant.AccessToken,
		RefreshToken: grant.RefreshToken,
	}, nil
}
