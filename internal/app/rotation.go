package app

import (
	"context"
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	"porta.dev/internal/audit"
	"porta.dev/internal/obs"
)

const (
	secretLength   = 64
	secretAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

	// Rotation policy: every rotated secret expires 90 days out.
	rotationValidity = 90 * 24 * time.Hour
)

// RotationResult carries the freshly generated secret. This is the only
// place the plaintext secret is returned; it is not retrievable again
// except through the explicit admin reveal action.
type RotationResult struct {
	Secret    string
	ExpiresAt time.Time
}

// Rotator generates and installs new application secrets.
type Rotator struct {
	store Store
	now   func() time.Time
}

// RotatorOption configures Rotator behavior.
type RotatorOption func(*Rotator)

// WithRotatorClock overrides the time source (useful for tests).
func WithRotatorClock(fn func() time.Time) RotatorOption {
	return func(r *Rotator) {
		if fn != nil {
			r.now = fn
		}
	}
}

func NewRotator(store Store, opts ...RotatorOption) *Rotator {
	r := &Rotator{store: store, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Rotate atomically replaces the application's secret with a fresh
// high-entropy value expiring 90 days from now. The old secret is invalid
// the instant the update commits; there is no grace window.
func (r *Rotator) Rotate(ctx context.Context, name string) (RotationResult, error) {
	name = strings.TrimSpace(strings.ToLower(name))
	if err := ValidateName(name); err != nil {
		return RotationResult{}, err
	}

	secret, err := generateSecret()
	if err != nil {
		return RotationResult{}, fmt.Errorf("app: generate secret: %w", err)
	}
	expiresAt := r.now().UTC().Add(rotationValidity)

	if err := r.store.RotateSecret(ctx, name, secret, expiresAt); err != nil {
		return RotationResult{}, err
	}

	obs.IncSecretRotation()
	_ = audit.LogEvent(ctx, "app.secret.rotate", map[string]any{
		"app_name":          name,
		"secret_expires_at": expiresAt.Format(time.RFC3339),
	})
	return RotationResult{Secret: secret, ExpiresAt: expiresAt}, nil
}

// generateSecret draws secretLength characters uniformly from the
// alphanumeric alphabet using crypto/rand, with rejection sampling to avoid
// modulo bias.
func generateSecret() (string, error) {
	out := make([]byte, 0, secretLength)
	buf := make([]byte, secretLength)
	// 62*4=248 is the largest multiple of len(secretAlphabet) below 256.
	const max = byte(248)
	for len(out) < secretLength {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, b := range buf {
			if b >= max {
				continue
			}
			out = append(out, secretAlphabet[int(b)%len(secretAlphabet)])
			if len(out) == secretLength {
				break
			}
		}
	}
	return string(out), nil
}
