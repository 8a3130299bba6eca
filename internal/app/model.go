// Package app manages the registered-application registry: third-party
// clients authorized to broker end-user logins through the gateway,
// authenticated by a shared secret.
package app

import (
	"context"
	"errors"
	"regexp"
	"time"
)

var (
	ErrInvalidInput = errors.New("app: invalid input")
	ErrNotFound     = errors.New("app: not found")
	ErrConflict     = errors.New("app: already exists")
)

const (
	StatusActive   = "active"
	StatusDisabled = "disabled"
	StatusPending  = "pending"
)

var nameRe = regexp.MustCompile(`^[a-z0-9_-]+$`)

// ValidateName checks an application identifier against the registry's
// naming rule: lowercase, [a-z0-9_-]+.
func ValidateName(name string) error {
	if name == "" || !nameRe.MatchString(name) {
		return ErrInvalidInput
	}
	return nil
}

// ValidStatus reports whether s is a recognized lifecycle status.
func ValidStatus(s string) bool {
	switch s {
	case StatusActive, StatusDisabled, StatusPending:
		return true
	}
	return false
}

// App is a registered application record. The secret is never serialized;
// it leaves the registry only through rotation responses and the explicit
// admin reveal action.
type App struct {
	Name            string     `json:"app_name"`
	DisplayName     string     `json:"app_display_name"`
	Secret          string     `json:"-"`
	AllowedOrigins  []string   `json:"allowed_origins"`
	RedirectURLs    []string   `json:"redirect_urls"`
	Status          string     `json:"status"`
	SecretExpiresAt *time.Time `json:"secret_expires_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Update carries partial mutations for an application record. Secret and
// secret expiry are deliberately absent: only the rotation manager touches
// those.
type Update struct {
	DisplayName    *string
	AllowedOrigins []string
	RedirectURLs   []string
	Status         *string
}

// Store persists registered applications. Applications are never hard
// deleted; Disable performs the soft delete.
type Store interface {
	Create(ctx context.Context, a *App) error
	Find(ctx context.Context, name string) (*App, error)
	FindActive(ctx context.Context, name string) (*App, error)
	List(ctx context.Context) ([]*App, error)
	Update(ctx context.Context, name string, upd Update) (*App, error)
	Disable(ctx context.Context, name string) error

	// RotateSecret atomically replaces the secret and its expiry. A reader
	// must never observe the new expiry with the old secret or vice versa.
	RotateSecret(ctx context.Context, name, secret string, expiresAt time.Time) error
}
