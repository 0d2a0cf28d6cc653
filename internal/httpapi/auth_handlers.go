package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/fleetgate/fleetgate/internal/audit"
	"github.com/fleetgate/fleetgate/internal/identity"
)

type signInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type signOutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type grantResponse struct {
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

func (a *API) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req signInRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		writeError(w, r, http.StatusBadRequest, "email and password are required")
		return
	}

	grant, err := a.provider.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrInvalidCredentials):
			writeError(w, r, http.StatusUnauthorized, "invalid credentials")
		case errors.Is(err, identity.ErrUnavailable):
			writeError(w, r, http.StatusServiceUnavailable, "service temporarily unavailable")
		default:
			writeError(w, r, http.StatusInternalServerError, "sign-in failed")
		}
		return
	}

	_ = audit.LogEvent(r.Context(), "auth.sign_in", map[string]any{"identity": grant.Identity})
	setSessionCookie(w, grant)
	writeJSON(w, http.StatusOK, toGrantResponse(grant))
}

func (a *API) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if req.RefreshToken == "" {
		writeError(w, r, http.StatusBadRequest, "refresh_token is required")
		return
	}

	grant, err := a.provider.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, identity.ErrNoSession):
			writeError(w, r, http.StatusUnauthorized, "session expired")
		case errors.Is(err, identity.ErrUnavailable):
			writeError(w, r, http.StatusServiceUnavailable, "service temporarily unavailable")
		default:
			writeError(w, r, http.StatusInternalServerError, "refresh failed")
		}
		return
	}

	setSessionCookie(w, grant)
	writeJSON(w, http.StatusOK, toGrantResponse(grant))
}

// Sign-out succeeds even when the session is already gone; the desired end
// state holds either way.
func (a *API) handleSignOut(w http.ResponseWriter, r *http.Request) {
	var req signOutRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	if err := a.svc.SignOut(r.Context(), req.RefreshToken); err != nil {
		handleServiceError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "auth.sign_out", nil)
	clearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]any{"status": "signed_out"})
}

func toGrantResponse(grant identity.Grant) grantResponse {
	return grantResponse{
		AccessToken:      grant.AccessToken,
		RefreshToken:     grant.RefreshToken,
		AccessExpiresAt:  grant.AccessExpiresAt,
		RefreshExpiresAt: grant.RefreshExpiresAt,
	}
}

func setSessionCookie(w http.ResponseWriter, grant identity.Grant) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    grant.AccessToken,
		Path:     "/",
		Expires:  grant.AccessExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}
