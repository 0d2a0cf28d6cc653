package identity

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNoSession means the credential does not map to an active session.
	// Expected outcome; callers treat it as "unauthenticated", and sign-out
	// treats it as success because the desired end state already holds.
	ErrNoSession = errors.New("identity: no active session")

	// ErrInvalidCredentials covers bad email/password pairs and disabled
	// accounts. Deliberately indistinguishable from the outside.
	ErrInvalidCredentials = errors.New("identity: invalid credentials")

	// ErrUnavailable marks a provider-side transport failure, kept distinct
	// from the two expected outcomes above.
	ErrUnavailable = errors.New("identity: provider unavailable")
)

// Grant is the provider's answer to a successful credential exchange.
type Grant struct {
	Identity         string
	Roles            []string
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// Provider is the identity collaborator: it exchanges credentials for
// verified identities and manages session lifecycle. The engine consumes
// this interface only; it never inspects token internals itself.
type Provider interface {
	// Exchange verifies an access credential and returns the identity it
	// belongs to. No new tokens are minted.
	Exchange(ctx context.Context, credential string) (Grant, error)

	// SignIn authenticates an email/password pair and issues a fresh
	// access/refresh token pair.
	SignIn(ctx context.Context, email, password string) (Grant, error)

	// Refresh rotates a refresh token: the presented token is revoked and a
	// new pair is issued. A revoked or expired token yields ErrNoSession.
	Refresh(ctx context.Context, refreshToken string) (Grant, error)

	// SignOut revokes the session behind the refresh token. Revoking a
	// session that is already gone yields ErrNoSession; callers are
	// expected to treat that as success.
	SignOut(ctx context.Context, refreshToken string) error
}
