// Package audit emits the append-only audit trail for privileged
// operations and gate denials. Entries carry the request id and acting
// identity but never the request payload.
package audit

import (
	"context"
	"errors"
	"strings"

	"github.com/fleetgate/fleetgate/internal/access"
	"github.com/fleetgate/fleetgate/internal/obs"
)

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// WithRequestID attaches the request identifier to the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext extracts the audit request id, if present.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(requestIDKey).(string); ok {
		return v
	}
	return ""
}

// LogEvent writes one audit entry enriched with request and actor context.
func LogEvent(ctx context.Context, event string, fields map[string]any) error {
	event = strings.TrimSpace(event)
	if event == "" {
		return errors.New("event name is required")
	}
	lg := obs.Logger()
	entry := lg.Info().
		Str("type", "audit").
		Str("event", event)
	if rid := RequestIDFromContext(ctx); rid != "" {
		entry = entry.Str("request_id", rid)
	}
	if actor, ok := access.ActorFromContext(ctx); ok {
		entry = entry.Str("actor", actor.Session.Identity)
	}
	entry.Fields(fields).Msg("audit")
	return nil
}
