package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/fleetgate/fleetgate/internal/access"
	"github.com/fleetgate/fleetgate/internal/audit"
	"github.com/fleetgate/fleetgate/internal/dispatch"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"error": msg,
	}
	if rid := audit.RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return err
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		if err == nil {
			return errors.New("unexpected data after JSON body")
		}
		return err
	}
	return nil
}

// handleServiceError maps gate and executor failures onto status codes.
// Forbidden responses stay generic on purpose: whether the denial was role
// or ownership lives only in the audit log.
func handleServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var opErr *dispatch.OperationError
	switch {
	case errors.Is(err, access.ErrUnauthenticated):
		writeError(w, r, http.StatusUnauthorized, "authentication required")
	case errors.Is(err, access.ErrProfileMissing):
		writeError(w, r, http.StatusNotFound, "profile not found")
	case errors.Is(err, access.ErrForbidden):
		writeError(w, r, http.StatusForbidden, "access denied")
	case errors.As(err, &opErr):
		switch opErr.Kind {
		case dispatch.KindNotFound:
			writeError(w, r, http.StatusNotFound, "resource not found")
		case dispatch.KindConflict:
			writeError(w, r, http.StatusConflict, "resource already exists")
		case dispatch.KindInvalidInput:
			writeError(w, r, http.StatusBadRequest, opErr.Message)
		case dispatch.KindUnavailable:
			writeError(w, r, http.StatusServiceUnavailable, "service temporarily unavailable")
		default:
			writeError(w, r, http.StatusInternalServerError, "internal error")
		}
	case errors.Is(err, access.ErrUnavailable):
		writeError(w, r, http.StatusServiceUnavailable, "service temporarily unavailable")
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}

func credential(r *http.Request) access.Credential {
	return access.CredentialFromContext(r.Context())
}
