package config

import (
	"testing"
	"time"
)

func TestLoadDefaultsWithSecret(t *testing.T) {
	t.Setenv("FLEETGATE_AUTH_SECRET", "test-secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTP.Addr != ":8080" {
		t.Fatalf("addr = %q", cfg.HTTP.Addr)
	}
	if cfg.Auth.AccessTTL != 15*time.Minute {
		t.Fatalf("access ttl = %v", cfg.Auth.AccessTTL)
	}
	if cfg.Auth.Secret != "test-secret" {
		t.Fatalf("secret = %q", cfg.Auth.Secret)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("FLEETGATE_AUTH_SECRET", "test-secret")
	t.Setenv("FLEETGATE_HTTP_ADDR", ":9090")
	t.Setenv("FLEETGATE_AUTH_ACCESS_TTL", "5m")
	t.Setenv("FLEETGATE_LOG_FORMAT", "console")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTP.Addr != ":9090" {
		t.Fatalf("addr = %q", cfg.HTTP.Addr)
	}
	if cfg.Auth.AccessTTL != 5*time.Minute {
		t.Fatalf("access ttl = %v", cfg.Auth.AccessTTL)
	}
	if cfg.Log.Format != "console" {
		t.Fatalf("log format = %q", cfg.Log.Format)
	}
}

func TestLoadRejectsMissingSecret(t *testing.T) {
	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing auth secret")
	}
}

func TestEnvTransform(t *testing.T) {
	tests := []struct{ in, want string }{
		{"FLEETGATE_HTTP_ADDR", "http.addr"},
		{"FLEETGATE_HTTP_MAX_BODY_BYTES", "http.max_body_bytes"},
		{"FLEETGATE_DATABASE_DSN", "database.dsn"},
		{"FLEETGATE_AUTH_REFRESH_TTL", "auth.refresh_ttl"},
	}
	for _, tc := range tests {
		if got := envTransform(tc.in); got != tc.want {
			t.Fatalf("envTransform(%s) = %s, want %s", tc.in, got, tc.want)
		}
	}
}
