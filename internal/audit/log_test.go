package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/fleetgate/fleetgate/internal/access"
	"github.com/fleetgate/fleetgate/internal/obs"
)

func TestLogEventRequiresName(t *testing.T) {
	if err := LogEvent(context.Background(), "  ", nil); err == nil {
		t.Fatalf("expected error for empty event name")
	}
}

func TestLogEventCarriesContext(t *testing.T) {
	var buf bytes.Buffer
	obs.InitLogger(obs.LogConfig{Level: "info", Format: "json", Output: &buf})
	defer obs.InitLogger(obs.LogConfig{})

	ctx := WithRequestID(context.Background(), "req-1")
	ctx = access.ContextWithActor(ctx, access.Actor{Session: access.Session{Identity: "user-1"}})
	if err := LogEvent(ctx, "vehicle.toggle", map[string]any{"vehicle_id": "v-1"}); err != nil {
		t.Fatalf("LogEvent: %v", err)
	}

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line: %v (%s)", err, buf.String())
	}
	if entry["type"] != "audit" || entry["event"] != "vehicle.toggle" {
		t.Fatalf("unexpected entry: %v", entry)
	}
	if entry["request_id"] != "req-1" {
		t.Fatalf("request id missing: %v", entry)
	}
	if entry["actor"] != "user-1" {
		t.Fatalf("actor missing: %v", entry)
	}
	if entry["vehicle_id"] != "v-1" {
		t.Fatalf("fields missing: %v", entry)
	}
}

func TestWithRequestIDIgnoresBlank(t *testing.T) {
	ctx := WithRequestID(context.Background(), "  ")
	if rid := RequestIDFromContext(ctx); rid != "" {
		t.Fatalf("expected empty request id, got %q", rid)
	}
}
