// Package roles manages per-application role assignments. At most one
// active assignment exists per (user, app) pair; assigning while one is
// active supersedes it in place.
package roles

import (
	"context"
	"errors"
	"time"
)

var (
	ErrInvalidInput = errors.New("roles: invalid input")
	ErrNotFound     = errors.New("roles: not found")
)

var validRoles = map[string]struct{}{
	"admin":    {},
	"editor":   {},
	"reviewer": {},
	"viewer":   {},
}

// ValidRole reports whether name is a recognized role.
func ValidRole(name string) bool {
	_, ok := validRoles[name]
	return ok
}

// Assignment grants a user a role within one application.
type Assignment struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	AppName   string     `json:"app_name"`
	RoleName  string     `json:"role_name"`
	Active    bool       `json:"is_active"`
	GrantedBy string     `json:"granted_by"`
	GrantedAt time.Time  `json:"granted_at"`
	RevokedBy string     `json:"revoked_by,omitempty"`
	RevokedAt *time.Time `json:"revoked_at,omitempty"`
}

// Store persists role assignments.
type Store interface {
	// Assign grants roleName to (userID, appName), superseding any active
	// assignment for the pair instead of duplicating it.
	Assign(ctx context.Context, userID, appName, roleName, actor string) (Assignment, error)
	Revoke(ctx context.Context, userID, appName, actor string) error
	ListByUser(ctx context.Context, userID string) ([]Assignment, error)
	Active(ctx context.Context, userID, appName string) (*Assignment, error)
}
