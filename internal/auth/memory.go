package auth

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/samirsuroshe18/lth-painting-management-sub001/internal/ids"
)

var _ Store = (*InMemoryStore)(nil)

// InMemoryStore implements Store with in-process concurrency safety.
// Used for local runs without DATABASE_URL and by tests.
type InMemoryStore struct {
	mu        sync.RWMutex
	accounts  map[string]*Account
	byEmail   map[string]string
	locations map[string]LocationScope
	now       func() time.Time
}

// NewInMemoryStore creates an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		accounts:  make(map[string]*Account),
		byEmail:   make(map[string]string),
		locations: make(map[string]LocationScope),
		now:       time.Now,
	}
}

// AddLocation registers a location so ResolveLocations can project it.
func (s *InMemoryStore) AddLocation(loc LocationScope) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locations[loc.ID] = loc
}

func (s *InMemoryStore) FindByEmail(ctx context.Context, email string, includeDeleted bool) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, ErrNotFound
	}
	acc := s.accounts[id]
	if acc.IsDeleted && !includeDeleted {
		return nil, ErrNotFound
	}
	return acc.Clone(), nil
}

func (s *InMemoryStore) FindByID(ctx context.Context, id string) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acc, ok := s.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return acc.Clone(), nil
}

func (s *InMemoryStore) FindByRefreshToken(ctx context.Context, token string) (*Account, error) {
	if token == "" {
		return nil, ErrNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, acc := range s.accounts {
		if acc.RefreshToken == token {
			return acc.Clone(), nil
		}
	}
	return nil, ErrNotFound
}

func (s *InMemoryStore) FindByResetToken(ctx context.Context, token string, now time.Time) (*Account, error) {
	if token == "" {
		return nil, ErrNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, acc := range s.accounts {
		if acc.IsDeleted || acc.ResetToken != token {
			continue
		}
		if !acc.ResetTokenExpiresAt.After(now) {
			return nil, ErrNotFound
		}
		return acc.Clone(), nil
	}
	return nil, ErrNotFound
}

func (s *InMemoryStore) Create(ctx context.Context, acc *Account) error {
	email := strings.ToLower(strings.TrimSpace(acc.Email))
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byEmail[email]; exists {
		return ErrAlreadyExists
	}
	if acc.ID == "" {
		acc.ID = ids.New()
	}
	now := s.now().UTC()
	acc.Email = email
	acc.CreatedAt = now
	acc.UpdatedAt = now
	s.accounts[acc.ID] = acc.Clone()
	s.byEmail[email] = acc.ID
	return nil
}

func (s *InMemoryStore) Update(ctx context.Context, id string, upd AccountUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[id]
	if !ok {
		return ErrNotFound
	}
	upd.apply(acc)
	acc.UpdatedAt = s.now().UTC()
	return nil
}

func (s *InMemoryStore) CountByRole(ctx context.Context, role Role) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, acc := range s.accounts {
		if acc.Role == role && !acc.IsDeleted {
			n++
		}
	}
	return n, nil
}

func (s *InMemoryStore) ResolveLocations(ctx context.Context, locationIDs []string) ([]LocationScope, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]LocationScope, 0, len(locationIDs))
	for _, id := range locationIDs {
		if loc, ok := s.locations[id]; ok {
			out = append(out, loc)
		}
	}
	return out, nil
}

func (s *InMemoryStore) Ping(ctx context.Context) error { return nil }
