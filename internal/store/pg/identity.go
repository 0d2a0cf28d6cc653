package pg

import (
	"context"
	"database/sql"
	"errors"

	"github.com/fleetgate/fleetgate/internal/identity"
)

// Credentials returns the login-record view for the identity provider.
func (s *Store) Credentials() identity.CredentialStore { return credentials{s} }

// RefreshTokens returns the refresh-token view for the identity provider.
func (s *Store) RefreshTokens() identity.RefreshTokenStore { return refreshTokens{s} }

type credentials struct{ s *Store }

var _ identity.CredentialStore = credentials{}

func (a credentials) FindByEmail(ctx context.Context, email string) (identity.Credential, error) {
	var cred identity.Credential
	err := a.s.db.QueryRowContext(ctx, `
		select identity, email, password_hash, status, created_at, updated_at
		from credentials
		where email = $1
	`, email).Scan(&cred.Identity, &cred.Email, &cred.PasswordHash, &cred.Status, &cred.CreatedAt, &cred.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return identity.Credential{}, identity.ErrNotFound
	}
	if err != nil {
		return identity.Credential{}, err
	}
	return cred, nil
}

type refreshTokens struct{ s *Store }

var _ identity.RefreshTokenStore = refreshTokens{}

func (a refreshTokens) Create(ctx context.Context, tok identity.RefreshToken) error {
	_, err := a.s.db.ExecContext(ctx, `
		insert into refresh_tokens (id, identity, token_hash, expires_at, revoked)
		values ($1, $2, $3, $4, false)
	`, tok.ID, tok.Identity, tok.TokenHash, tok.ExpiresAt)
	return mapWriteErr(err)
}

func (a refreshTokens) Find(ctx context.Context, id string) (identity.RefreshToken, error) {
	var tok identity.RefreshToken
	err := a.s.db.QueryRowContext(ctx, `
		select id, identity, token_hash, expires_at, created_at, revoked
		from refresh_tokens
		where id = $1
	`, id).Scan(&tok.ID, &tok.Identity, &tok.TokenHash, &tok.ExpiresAt, &tok.CreatedAt, &tok.Revoked)
	if errors.Is(err, sql.ErrNoRows) {
		return identity.RefreshToken{}, identity.ErrNotFound
	}
	if err != nil {
		return identity.RefreshToken{}, err
	}
	return tok, nil
}

func (a refreshTokens) MarkRevoked(ctx context.Context, id string) error {
	res, err := a.s.db.ExecContext(ctx, `
		update refresh_tokens set revoked = true
		where id = $1
	`, id)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return identity.ErrNotFound
	}
	return nil
}
