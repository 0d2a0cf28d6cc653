package identity

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/fleetgate/fleetgate/internal/ids"
)

const (
	defaultIssuer     = "fleetgate"
	defaultAccessTTL  = 15 * time.Minute
	defaultRefreshTTL = 14 * 24 * time.Hour

	StatusActive   = "active"
	StatusDisabled = "disabled"
)

// ErrNotFound is the store-level "no such record" outcome for the
// credential and refresh-token repositories.
var ErrNotFound = errors.New("identity: not found")

// Credential is a stored login record.
type Credential struct {
	Identity     string
	Email        string
	PasswordHash string
	Status       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// RefreshToken is the persisted half of an opaque refresh token. Only the
// SHA-256 of the secret is stored.
type RefreshToken struct {
	ID        string
	Identity  string
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
	Revoked   bool
}

// CredentialStore looks up login records.
type CredentialStore interface {
	FindByEmail(ctx context.Context, email string) (Credential, error)
}

// RefreshTokenStore manages refresh token lifecycle.
type RefreshTokenStore interface {
	Create(ctx context.Context, tok RefreshToken) error
	Find(ctx context.Context, id string) (RefreshToken, error)
	MarkRevoked(ctx context.Context, id string) error
}

// Claims are the JWT claims the local provider signs and verifies.
type Claims struct {
	jwt.RegisteredClaims
}

// Local is a self-contained Provider implementation: HS256 access tokens
// and opaque rotating refresh tokens backed by the credential store. Role
// tags are deliberately not embedded in the token; the tenant profile is
// the single source of truth for roles, read fresh on every request.
type Local struct {
	creds      CredentialStore
	refresh    RefreshTokenStore
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// LocalOption configures the local provider.
type LocalOption func(*Local)

// WithIssuer overrides the token issuer claim.
func WithIssuer(issuer string) LocalOption {
	return func(l *Local) {
		if strings.TrimSpace(issuer) != "" {
			l.issuer = strings.TrimSpace(issuer)
		}
	}
}

// WithAccessTTL configures access token lifetime.
func WithAccessTTL(ttl time.Duration) LocalOption {
	return func(l *Local) {
		if ttl > 0 {
			l.accessTTL = ttl
		}
	}
}

// WithRefreshTTL configures refresh token lifetime.
func WithRefreshTTL(ttl time.Duration) LocalOption {
	return func(l *Local) {
		if ttl > 0 {
			l.refreshTTL = ttl
		}
	}
}

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) LocalOption {
	return func(l *Local) {
		if fn != nil {
			l.now = fn
		}
	}
}

// NewLocal constructs the provider. The signing secret is required.
func NewLocal(creds CredentialStore, refresh RefreshTokenStore, secret string, opts ...LocalOption) (*Local, error) {
	if creds == nil || refresh == nil {
		return nil, errors.New("identity: credential and refresh stores are required")
	}
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("identity: signing secret is required")
	}
	l := &Local{
		creds:      creds,
		refresh:    refresh,
		secret:     []byte(secret),
		issuer:     defaultIssuer,
		accessTTL:  defaultAccessTTL,
		refreshTTL: defaultRefreshTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Exchange verifies an access token and returns the identity behind it.
func (l *Local) Exchange(_ context.Context, credential string) (Grant, error) {
	credential = strings.TrimSpace(credential)
	if credential == "" {
		return Grant{}, ErrNoSession
	}
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(credential, claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrNoSession
		}
		return l.secret, nil
	},
		jwt.WithIssuer(l.issuer),
		jwt.WithTimeFunc(l.now),
		jwt.WithLeeway(5*time.Second),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !parsed.Valid {
		return Grant{}, ErrNoSession
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return Grant{}, ErrNoSession
	}
	grant := Grant{
		Identity:    claims.Subject,
		AccessToken: credential,
	}
	if claims.ExpiresAt != nil {
		grant.AccessExpiresAt = claims.ExpiresAt.Time
	}
	return grant, nil
}

// SignIn authenticates the email/password pair and mints a token pair.
func (l *Local) SignIn(ctx context.Context, email, password string) (Grant, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || password == "" {
		return Grant{}, ErrInvalidCredentials
	}
	cred, err := l.creds.FindByEmail(ctx, email)
	if errors.Is(err, ErrNotFound) {
		return Grant{}, ErrInvalidCredentials
	}
	if err != nil {
		return Grant{}, wrapStoreErr("find credential", err)
	}
	if cred.Status != StatusActive {
		return Grant{}, ErrInvalidCredentials
	}
	if err := VerifyPassword(cred.PasswordHash, password); err != nil {
		return Grant{}, ErrInvalidCredentials
	}
	return l.mintPair(ctx, cred.Identity)
}

// Refresh rotates the refresh token and issues a new pair. A presented
// secret that does not match the stored hash revokes the record: a replayed
// or forged token must not leave a usable session behind.
func (l *Local) Refresh(ctx context.Context, refreshToken string) (Grant, error) {
	id, secret, err := splitRefreshToken(refreshToken)
	if err != nil {
		return Grant{}, ErrNoSession
	}
	record, err := l.refresh.Find(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return Grant{}, ErrNoSession
	}
	if err != nil {
		return Grant{}, wrapStoreErr("find refresh token", err)
	}
	if record.Revoked || l.now().After(record.ExpiresAt) {
		return Grant{}, ErrNoSession
	}
	if !matchesTokenHash(record.TokenHash, secret) {
		_ = l.refresh.MarkRevoked(ctx, record.ID)
		return Grant{}, ErrNoSession
	}
	if err := l.refresh.MarkRevoked(ctx, record.ID); err != nil && !errors.Is(err, ErrNotFound) {
		return Grant{}, wrapStoreErr("revoke refresh token", err)
	}
	return l.mintPair(ctx, record.Identity)
}

// SignOut revokes the session behind the refresh token.
func (l *Local) SignOut(ctx context.Context, refreshToken string) error {
	id, _, err := splitRefreshToken(refreshToken)
	if err != nil {
		return ErrNoSession
	}
	record, err := l.refresh.Find(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return ErrNoSession
	}
	if err != nil {
		return wrapStoreErr("find refresh token", err)
	}
	if record.Revoked {
		return ErrNoSession
	}
	if err := l.refresh.MarkRevoked(ctx, record.ID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNoSession
		}
		return wrapStoreErr("revoke refresh token", err)
	}
	return nil
}

func (l *Local) mintPair(ctx context.Context, identityID string) (Grant, error) {
	now := l.now().UTC()
	access, accessExp, err := l.signAccessToken(identityID, now)
	if err != nil {
		return Grant{}, err
	}
	refreshString, record, err := l.generateRefreshToken(identityID, now)
	if err != nil {
		return Grant{}, err
	}
	if err := l.refresh.Create(ctx, record); err != nil {
		return Grant{}, wrapStoreErr("store refresh token", err)
	}
	return Grant{
		Identity:         identityID,
		AccessToken:      access,
		RefreshToken:     refreshString,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: record.ExpiresAt,
	}, nil
}

func (l *Local) signAccessToken(identityID string, now time.Time) (string, time.Time, error) {
	exp := now.Add(l.accessTTL)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    l.issuer,
			Subject:   identityID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        ids.New(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(l.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

func (l *Local) generateRefreshToken(identityID string, now time.Time) (string, RefreshToken, error) {
	secretBytes := make([]byte, 32)
	if _, err := rand.Read(secretBytes); err != nil {
		return "", RefreshToken{}, err
	}
	secret := base64.RawURLEncoding.EncodeToString(secretBytes)
	sum := sha256.Sum256([]byte(secret))
	record := RefreshToken{
		ID:        ids.New(),
		Identity:  identityID,
		TokenHash: hex.EncodeToString(sum[:]),
		ExpiresAt: now.Add(l.refreshTTL),
		CreatedAt: now,
	}
	return record.ID + "." + secret, record, nil
}

func splitRefreshToken(raw string) (id, secret string, err error) {
	parts := strings.Split(strings.TrimSpace(raw), ".")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", errors.New("invalid refresh token format")
	}
	return parts[0], parts[1], nil
}

func matchesTokenHash(expectedHash, secret string) bool {
	sum := sha256.Sum256([]byte(secret))
	actual := hex.EncodeToString(sum[:])
	if len(expectedHash) != len(actual) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expectedHash), []byte(actual)) == 1
}

func wrapStoreErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
}
