package roles

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"porta.dev/internal/ids"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore is an in-process Store used when no database DSN is
// configured, and by tests.
type MemoryStore struct {
	mu          sync.Mutex
	assignments []Assignment
	now         func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

func (s *MemoryStore) Assign(_ context.Context, userID, appName, roleName, actor string) (Assignment, error) {
	userID = strings.TrimSpace(userID)
	appName = strings.TrimSpace(strings.ToLower(appName))
	roleName = strings.TrimSpace(strings.ToLower(roleName))
	if userID == "" || appName == "" {
		return Assignment{}, fmt.Errorf("%w: user_id and app_name are required", ErrInvalidInput)
	}
	if !ValidRole(roleName) {
		return Assignment{}, fmt.Errorf("%w: unsupported role %s", ErrInvalidInput, roleName)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.assignments {
		a := &s.assignments[i]
		if a.Active && a.UserID == userID && a.AppName == appName {
			a.RoleName = roleName
			a.GrantedBy = actor
			a.GrantedAt = s.now().UTC()
			return *a, nil
		}
	}
	a := Assignment{
		ID:        ids.New(),
		UserID:    userID,
		AppName:   appName,
		RoleName:  roleName,
		Active:    true,
		GrantedBy: actor,
		GrantedAt: s.now().UTC(),
	}
	s.assignments = append(s.assignments, a)
	return a, nil
}

func (s *MemoryStore) Revoke(_ context.Context, userID, appName, actor string) error {
	appName = strings.ToLower(appName)
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.assignments {
		a := &s.assignments[i]
		if a.Active && a.UserID == userID && a.AppName == appName {
			now := s.now().UTC()
			a.Active = false
			a.RevokedBy = actor
			a.RevokedAt = &now
			return nil
		}
	}
	return ErrNotFound
}

func (s *MemoryStore) ListByUser(_ context.Context, userID string) ([]Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Assignment
	for _, a := range s.assignments {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *MemoryStore) Active(_ context.Context, userID, appName string) (*Assignment, error) {
	appName = strings.ToLower(appName)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.assignments {
		if a.Active && a.UserID == userID && a.AppName == appName {
			cp := a
			return &cp, nil
		}
	}
	return nil, ErrNotFound
}
