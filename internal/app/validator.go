package app

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"porta.dev/internal/audit"
)

// Credential sources, recorded in audit logs and login results.
const (
	SourceDatabase    = "database"
	SourceEnvironment = "environment"
)

var (
	// ErrInvalidCredentials is the single client-visible reason for every
	// credential mismatch; detail goes to the audit log only.
	ErrInvalidCredentials = errors.New("app: invalid app credentials")
	ErrSecretExpired      = errors.New("app: secret expired")
)

// Fallback is the operator-configured static allow-list. It holds exactly
// one legacy application identity; it covers names absent from the registry
// and never overrides a database record.
type Fallback struct {
	Name   string
	Secret string
}

func (f Fallback) configured() bool {
	return f.Name != "" && f.Secret != ""
}

// Validation is the outcome of a successful credential check. App is nil
// when the credentials matched the static fallback.
type Validation struct {
	App    *App
	Source string
}

// Validator checks presented application credentials against the durable
// registry first and the static fallback second.
type Validator struct {
	store    Store
	fallback Fallback
	now      func() time.Time
}

// ValidatorOption configures Validator behavior.
type ValidatorOption func(*Validator)

// WithValidatorClock overrides the time source (useful for tests).
func WithValidatorClock(fn func() time.Time) ValidatorOption {
	return func(v *Validator) {
		if fn != nil {
			v.now = fn
		}
	}
}

func NewValidator(store Store, fallback Fallback, opts ...ValidatorOption) *Validator {
	v := &Validator{
		store:    store,
		fallback: fallback,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate decides whether (name, secret) identifies an authorized
// application. Every attempt is audit-logged with name, source and outcome;
// the secret itself never is.
func (v *Validator) Validate(ctx context.Context, name, secret string) (Validation, error) {
	name = strings.TrimSpace(strings.ToLower(name))
	if err := ValidateName(name); err != nil {
		v.logAttempt(ctx, name, "", false, "malformed app name")
		return Validation{}, ErrInvalidCredentials
	}
	if secret == "" {
		v.logAttempt(ctx, name, "", false, "missing secret")
		return Validation{}, ErrInvalidCredentials
	}

	rec, err := v.store.FindActive(ctx, name)
	switch {
	case err == nil:
		// A database record exists; it alone decides. The fallback may
		// only cover identifiers absent from the registry.
		if subtle.ConstantTimeCompare([]byte(secret), []byte(rec.Secret)) != 1 {
			v.logAttempt(ctx, name, SourceDatabase, false, "secret mismatch")
			return Validation{}, ErrInvalidCredentials
		}
		if rec.SecretExpiresAt != nil && !rec.SecretExpiresAt.After(v.now().UTC()) {
			v.logAttempt(ctx, name, SourceDatabase, false, "secret expired")
			return Validation{}, ErrSecretExpired
		}
		v.logAttempt(ctx, name, SourceDatabase, true, "")
		return Validation{App: rec, Source: SourceDatabase}, nil
	case errors.Is(err, ErrNotFound):
		// fall through to the static allow-list
	default:
		v.logAttempt(ctx, name, SourceDatabase, false, "registry lookup failed")
		return Validation{}, fmt.Errorf("app: registry lookup: %w", err)
	}

	if v.fallback.configured() && name == v.fallback.Name &&
		subtle.ConstantTimeCompare([]byte(secret), []byte(v.fallback.Secret)) == 1 {
		v.logAttempt(ctx, name, SourceEnvironment, true, "")
		return Validation{Source: SourceEnvironment}, nil
	}

	v.logAttempt(ctx, name, "", false, "unknown app")
	return Validation{}, ErrInvalidCredentials
}

func (v *Validator) logAttempt(ctx context.Context, name, source string, ok bool, reason string) {
	fields := map[string]any{
		"app_name": name,
		"success":  ok,
	}
	if source != "" {
		fields["source"] = source
	}
	if reason != "" {
		fields["reason"] = reason
	}
	_ = audit.LogEvent(ctx, "app.credentials.validate", fields)
}
