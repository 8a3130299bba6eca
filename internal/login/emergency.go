package login

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strings"
	"time"

	"porta.dev/internal/audit"
	"porta.dev/internal/obs"
	"porta.dev/internal/profile"
	"porta.dev/internal/token"
)

// emergencyWindow bounds how long a pre-shared emergency token stays
// presentable after its issuance timestamp.
const emergencyWindow = 24 * time.Hour

// emergencySubject is the fixed subject minted for break-glass sessions.
// No profile store lookup backs it; the flow must work with every external
// dependency down.
const emergencySubject = "emergency-admin"

// EmergencyConfig is the operator-provisioned break-glass credential pair.
// IssuedAt is when the pre-shared token was generated out of band; when left
// zero the token never ages out.
type EmergencyConfig struct {
	Email    string
	Token    string
	IssuedAt time.Time
}

func (c EmergencyConfig) configured() bool {
	return c.Email != "" && c.Token != ""
}

// EmergencyResult is a successful break-glass login.
type EmergencyResult struct {
	Token     string
	ExpiresAt time.Time
	Profile   *profile.Profile
}

// EmergencyMeta carries request provenance recorded on every break-glass
// attempt, successful or not.
type EmergencyMeta struct {
	RemoteAddr string
	UserAgent  string
}

// EmergencyLogin exchanges the pre-shared emergency credentials for a
// short-lived session in the emergency trust domain. It touches no
// database and no external service.
func (s *Service) EmergencyLogin(ctx context.Context, email, presented string, meta EmergencyMeta) (EmergencyResult, error) {
	email = strings.TrimSpace(strings.ToLower(email))
	if email == "" || presented == "" {
		return EmergencyResult{}, fmt.Errorf("%w: email and token are required", ErrValidation)
	}
	if !s.emergency.configured() {
		s.auditEmergency(ctx, email, meta, false, "not configured")
		return EmergencyResult{}, ErrNotConfigured
	}

	emailOK := subtle.ConstantTimeCompare([]byte(email), []byte(strings.ToLower(s.emergency.Email))) == 1
	tokenOK := subtle.ConstantTimeCompare([]byte(presented), []byte(s.emergency.Token)) == 1
	if !emailOK || !tokenOK {
		s.auditEmergency(ctx, email, meta, false, "credentials rejected")
		return EmergencyResult{}, ErrCredentials
	}
	if !s.emergency.IssuedAt.IsZero() && s.now().After(s.emergency.IssuedAt.Add(emergencyWindow)) {
		s.auditEmergency(ctx, email, meta, false, "pre-shared token aged out")
		return EmergencyResult{}, ErrCredentials
	}

	signed, exp, err := s.codec.Mint(claims(emergencySubject, email, string(profile.RoleAdmin), "", true),
		token.IssuerEmergency, s.emergencyTTL)
	if err != nil {
		return EmergencyResult{}, err
	}

	s.auditEmergency(ctx, email, meta, true, "")
	return EmergencyResult{
		Token:     signed,
		ExpiresAt: exp,
		Profile: &profile.Profile{
			ID:    emergencySubject,
			Email: email,
			Role:  profile.RoleAdmin,
		},
	}, nil
}

func (s *Service) auditEmergency(ctx context.Context, email string, meta EmergencyMeta, success bool, reason string) {
	obs.ObserveLogin("emergency", success)
	fields := map[string]any{
		"flow":    "emergency",
		"email":   email,
		"success": success,
	}
	if meta.RemoteAddr != "" {
		fields["remote_addr"] = meta.RemoteAddr
	}
	if meta.UserAgent != "" {
		fields["user_agent"] = meta.UserAgent
	}
	if reason != "" {
		fields["reason"] = reason
	}
	_ = audit.LogEvent(ctx, "auth.emergency.attempt", fields)
}
