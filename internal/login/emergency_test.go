package login

import (
	"context"
	"errors"
	"testing"
	"time"

	"porta.dev/internal/profile"
	"porta.dev/internal/token"
)

func TestEmergencyLogin(t *testing.T) {
	issued := time.Now().Add(-1 * time.Hour)
	f := newFixture(t, WithEmergencyConfig(EmergencyConfig{
		Email:    "oncall@example.com",
		Token:    "break-glass-token",
		IssuedAt: issued,
	}))

	res, err := f.svc.EmergencyLogin(context.Background(), "OnCall@Example.com", "break-glass-token", EmergencyMeta{
		RemoteAddr: "203.0.113.9",
		UserAgent:  "curl/8.5",
	})
	if err != nil {
		t.Fatalf("EmergencyLogin: %v", err)
	}

	claims, err := f.codec.ParseAndValidate(res.Token, token.IssuerEmergency)
	if err != nil {
		t.Fatalf("ParseAndValidate: %v", err)
	}
	if !claims.EmergencyAccess {
		t.Fatal("emergency marker not set")
	}
	if claims.Subject != "emergency-admin" {
		t.Fatalf("subject = %q", claims.Subject)
	}
	if claims.Role != string(profile.RoleAdmin) {
		t.Fatalf("role = %q", claims.Role)
	}
	if got := res.ExpiresAt.Sub(claims.IssuedAt.Time); got != DefaultEmergencyTTL {
		t.Fatalf("ttl = %v, want %v", got, DefaultEmergencyTTL)
	}

	// Emergency tokens must stay out of the other trust domains.
	for _, issuer := range []string{token.IssuerUser, token.IssuerAdmin} {
		if _, err := f.codec.ParseAndValidate(res.Token, issuer); err == nil {
			t.Fatalf("emergency token accepted under %s", issuer)
		}
	}
}

func TestEmergencyLoginNotConfigured(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.EmergencyLogin(context.Background(), "oncall@example.com", "whatever", EmergencyMeta{})
	if !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("err = %v, want ErrNotConfigured", err)
	}
}

func TestEmergencyLoginRejections(t *testing.T) {
	cfg := EmergencyConfig{
		Email:    "oncall@example.com",
		Token:    "break-glass-token",
		IssuedAt: time.Now().Add(-1 * time.Hour),
	}
	cases := []struct {
		name  string
		email string
		token string
	}{
		{"wrong email", "intruder@example.com", "break-glass-token"},
		{"wrong token", "oncall@example.com", "guess"},
		{"both wrong", "intruder@example.com", "guess"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, WithEmergencyConfig(cfg))
			_, err := f.svc.EmergencyLogin(context.Background(), tc.email, tc.token, EmergencyMeta{})
			if !errors.Is(err, ErrCredentials) {
				t.Fatalf("err = %v, want ErrCredentials", err)
			}
		})
	}
}

func TestEmergencyLoginAgedOutToken(t *testing.T) {
	f := newFixture(t, WithEmergencyConfig(EmergencyConfig{
		Email:    "oncall@example.com",
		Token:    "break-glass-token",
		IssuedAt: time.Now().Add(-25 * time.Hour),
	}))

	_, err := f.svc.EmergencyLogin(context.Background(), "oncall@example.com", "break-glass-token", EmergencyMeta{})
	if !errors.Is(err, ErrCredentials) {
		t.Fatalf("err = %v, want ErrCredentials", err)
	}
}

func TestEmergencyLoginWithoutIssuedAt(t *testing.T) {
	// The issuance timestamp is optional; without it the pre-shared token
	// never ages out.
	f := newFixture(t, WithEmergencyConfig(EmergencyConfig{
		Email: "oncall@example.com",
		Token: "break-glass-token",
	}), WithClock(func() time.Time { return time.Now().Add(400 * 24 * time.Hour) }))

	res, err := f.svc.EmergencyLogin(context.Background(), "oncall@example.com", "break-glass-token", EmergencyMeta{})
	if err != nil {
		t.Fatalf("EmergencyLogin: %v", err)
	}
	if _, err := f.codec.ParseAndValidate(res.Token, token.IssuerEmergency); err != nil {
		t.Fatalf("ParseAndValidate: %v", err)
	}
}

func TestEmergencyLoginValidation(t *testing.T) {
	f := newFixture(t)

	if _, err := f.svc.EmergencyLogin(context.Background(), "", "t", EmergencyMeta{}); !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
	if _, err := f.svc.EmergencyLogin(context.Background(), "a@b.c", "", EmergencyMeta{}); !errors.Is(err, ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}
}

func TestEmergencyLoginWorksWithProviderDown(t *testing.T) {
	f := newFixture(t, WithEmergencyConfig(EmergencyConfig{
		Email:    "oncall@example.com",
		Token:    "break-glass-token",
		IssuedAt: time.Now(),
	}))
	f.provider.err = errors.New("connection refused")
	f.profiles.err = profile.ErrUnavailable

	if _, err := f.svc.EmergencyLogin(context.Background(), "oncall@example.com", "break-glass-token", EmergencyMeta{}); err != nil {
		t.Fatalf("EmergencyLogin: %v", err)
	}
	if f.provider.calls != 0 {
		t.Fatalf("provider called %d times, want 0", f.provider.calls)
	}
}
