package config

import (
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("PORTA_TOKEN_SECRET", "unit-test-secret")
	t.Setenv("PORTA_IDP_URL", "http://idp.local")
	t.Setenv("PORTA_PROFILE_URL", "http://profiles.local")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 8080 {
		t.Fatalf("unexpected port: %d", cfg.Port)
	}
	if cfg.AccessTTL != 30*time.Minute {
		t.Fatalf("unexpected access ttl: %v", cfg.AccessTTL)
	}
	if cfg.AdminTTL != 8*time.Hour {
		t.Fatalf("unexpected admin ttl: %v", cfg.AdminTTL)
	}
	if cfg.RefreshTTL != 7*24*time.Hour {
		t.Fatalf("unexpected refresh ttl: %v", cfg.RefreshTTL)
	}
}

func TestLoadRequiresTokenSecret(t *testing.T) {
	t.Setenv("PORTA_IDP_URL", "http://idp.local")
	t.Setenv("PORTA_PROFILE_URL", "http://profiles.local")

	if _, err := Load(); err == nil {
		t.Fatal("expected error without PORTA_TOKEN_SECRET")
	}
}

func TestLoadRejectsHalfConfiguredFallback(t *testing.T) {
	setRequired(t)
	t.Setenv("PORTA_FALLBACK_APP", "legacy_app")

	if _, err := Load(); err == nil {
		t.Fatal("expected error when fallback secret is missing")
	}
}

func TestLoadParsesEmergencyIssuedAt(t *testing.T) {
	setRequired(t)
	t.Setenv("PORTA_EMERGENCY_TOKEN_ISSUED_AT", "2026-08-01T00:00:00Z")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	if !cfg.EmergencyTokenIssuedAt.Equal(want) {
		t.Fatalf("unexpected issued-at: %v", cfg.EmergencyTokenIssuedAt)
	}
}
