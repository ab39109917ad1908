package token

import (
	"context"
	"sync"
)

// MemoryStore is an in-memory Store used in tests and local development.
type MemoryStore struct {
	mu      sync.Mutex
	byValue map[string]*Token
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{byValue: make(map[string]*Token)}
}

func (s *MemoryStore) Replace(ctx context.Context, tok *Token) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for value, existing := range s.byValue {
		if existing.IdentityID == tok.IdentityID && existing.Type == tok.Type {
			delete(s.byValue, value)
		}
	}

	if _, exists := s.byValue[tok.Value]; exists {
		return ErrDuplicate
	}

	cp := *tok
	s.byValue[tok.Value] = &cp
	return nil
}

func (s *MemoryStore) Find(ctx context.Context, value string) (*Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tok, ok := s.byValue[value]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *tok
	return &cp, nil
}

func (s *MemoryStore) Delete(ctx context.Context, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.byValue, value)
	return nil
}

func (s *MemoryStore) DeleteByIdentityAndType(ctx context.Context, identityID int64, typ Type) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for value, existing := range s.byValue {
		if existing.IdentityID == identityID && existing.Type == typ {
			delete(s.byValue, value)
		}
	}
	return nil
}

// Count reports the number of live tokens. Test helper.
func (s *MemoryStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byValue)
}
