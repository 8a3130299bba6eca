// Package profile reads and updates the user-profile store, an external
// REST collaborator. The gateway consumes profiles to authorize role-gated
// flows and build session claims; it does not own the profile lifecycle.
package profile

import (
	"errors"
	"time"
)

var (
	ErrNotFound    = errors.New("profile: not found")
	ErrUnavailable = errors.New("profile: store unavailable")
)

// Role is the gateway-wide role enumeration.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleEditor   Role = "editor"
	RoleReviewer Role = "reviewer"
	RoleViewer   Role = "viewer"
)

// Valid reports whether r is a recognized role.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleEditor, RoleReviewer, RoleViewer:
		return true
	}
	return false
}

// Profile is the profile-store entity, read-only apart from role mutation
// and last-login touch.
type Profile struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	Role        Role      `json:"role"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	CreatedAt   time.Time `json:"created_at"`
	LastLoginAt time.Time `json:"last_login_at"`
}
