package identity

import (
	"context"
	"slices"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store used in tests and local development.
type MemoryStore struct {
	mu     sync.RWMutex
	nextID int64
	byID   map[int64]*Identity
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		nextID: 1,
		byID:   make(map[int64]*Identity),
	}
}

func (s *MemoryStore) Create(ctx context.Context, ident *Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.byID {
		if existing.Email == ident.Email {
			return ErrEmailTaken
		}
		if ident.Subject != nil && existing.Subject != nil && *existing.Subject == *ident.Subject {
			return ErrSubjectTaken
		}
	}

	cp := cloneIdentity(ident)
	cp.ID = s.nextID
	s.nextID++
	if len(cp.Roles) == 0 {
		cp.Roles = []string{DefaultRole}
	}
	s.byID[cp.ID] = cp

	*ident = *cloneIdentity(cp)
	return nil
}

func (s *MemoryStore) GetByID(ctx context.Context, id int64) (*Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ident, ok := s.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneIdentity(ident), nil
}

func (s *MemoryStore) GetByEmail(ctx context.Context, email string) (*Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, ident := range s.byID {
		if ident.Email == email {
			return cloneIdentity(ident), nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) GetBySubject(ctx context.Context, subject string) (*Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, ident := range s.byID {
		if ident.Subject != nil && *ident.Subject == subject {
			return cloneIdentity(ident), nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) Update(ctx context.Context, ident *Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.byID[ident.ID]
	if !ok {
		return ErrNotFound
	}

	if ident.Subject != nil {
		for id, other := range s.byID {
			if id != ident.ID && other.Subject != nil && *other.Subject == *ident.Subject {
				return ErrSubjectTaken
			}
		}
	}

	cp := cloneIdentity(ident)
	cp.Roles = existing.Roles
	cp.UpdatedAt = time.Now()
	s.byID[ident.ID] = cp
	return nil
}

func (s *MemoryStore) UpdatePasswordHash(ctx context.Context, id int64, hash []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ident, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	ident.PasswordHash = slices.Clone(hash)
	ident.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) SetEnabled(ctx context.Context, id int64, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ident, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	ident.Enabled = enabled
	ident.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryStore) TouchLastLogin(ctx context.Context, id int64, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ident, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	ident.LastLoginAt = &at
	return nil
}

func (s *MemoryStore) AssignRole(ctx context.Context, id int64, role string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ident, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	role = NormalizeRole(role)
	if role == "" {
		return nil
	}
	for _, r := range ident.Roles {
		if NormalizeRole(r) == role {
			return nil
		}
	}
	ident.Roles = append(ident.Roles, role)
	return nil
}

func cloneIdentity(ident *Identity) *Identity {
	cp := *ident
	cp.Roles = slices.Clone(ident.Roles)
	cp.PasswordHash = slices.Clone(ident.PasswordHash)
	if ident.Subject != nil {
		sub := *ident.Subject
		cp.Subject = &sub
	}
	if ident.LastLoginAt != nil {
		at := *ident.LastLoginAt
		cp.LastLoginAt = &at
	}
	return &cp
}
