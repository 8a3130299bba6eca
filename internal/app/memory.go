package app

import (
	"context"
	"sync"
	"time"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore is an in-process Store used when no database DSN is
// configured, and by tests.
type MemoryStore struct {
	mu   sync.RWMutex
	apps map[string]*App
	now  func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		apps: make(map[string]*App),
		now:  time.Now,
	}
}

func (s *MemoryStore) Create(_ context.Context, a *App) error {
	if err := ValidateName(a.Name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.apps[a.Name]; ok {
		return ErrConflict
	}
	if a.Status == "" {
		a.Status = StatusPending
	}
	now := s.now().UTC()
	a.CreatedAt = now
	a.UpdatedAt = now
	cp := *a
	s.apps[a.Name] = &cp
	return nil
}

func (s *MemoryStore) Find(_ context.Context, name string) (*App, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.apps[name]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *MemoryStore) FindActive(ctx context.Context, name string) (*App, error) {
	a, err := s.Find(ctx, name)
	if err != nil {
		return nil, err
	}
	if a.Status != StatusActive {
		return nil, ErrNotFound
	}
	return a, nil
}

func (s *MemoryStore) List(_ context.Context) ([]*App, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*App, 0, len(s.apps))
	for _, a := range s.apps {
		cp := *a
		out = append(out, &cp)
	}
	return out, nil
}

func (s *MemoryStore) Update(_ context.Context, name string, upd Update) (*App, error) {
	if upd.Status != nil && !ValidStatus(*upd.Status) {
		return nil, ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.apps[name]
	if !ok {
		return nil, ErrNotFound
	}
	if upd.DisplayName != nil {
		a.DisplayName = *upd.DisplayName
	}
	if upd.AllowedOrigins != nil {
		a.AllowedOrigins = upd.AllowedOrigins
	}
	if upd.RedirectURLs != nil {
		a.RedirectURLs = upd.RedirectURLs
	}
	if upd.Status != nil {
		a.Status = *upd.Status
	}
	a.UpdatedAt = s.now().UTC()
	cp := *a
	return &cp, nil
}

func (s *MemoryStore) Disable(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.apps[name]
	if !ok {
		return ErrNotFound
	}
	a.Status = StatusDisabled
	a.UpdatedAt = s.now().UTC()
	return nil
}

func (s *MemoryStore) RotateSecret(_ context.Context, name, secret string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.apps[name]
	if !ok {
		return ErrNotFound
	}
	a.Secret = secret
	a.SecretExpiresAt = &expiresAt
	a.UpdatedAt = s.now().UTC()
	return nil
}
