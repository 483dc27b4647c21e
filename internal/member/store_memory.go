package member

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"agendahub/pkg/platform/sentinel"
)

type MemoryStore struct {
	mu      sync.RWMutex
	byID    map[uuid.UUID]*Member
	byEmail map[string]uuid.UUID
}

func NewMemory() *MemoryStore {
	return &MemoryStore{
		byID:    make(map[uuid.UUID]*Member),
		byEmail: make(map[string]uuid.UUID),
	}
}

func (s *MemoryStore) Create(_ context.Context, m *Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	email := normalize(m.Email)
	if _, taken := s.byEmail[email]; taken {
		return sentinel.ErrConflict
	}
	cp := *m
	cp.Email = email
	s.byID[m.ID] = &cp
	s.byEmail[email] = m.ID
	return nil
}

func (s *MemoryStore) FindByID(_ context.Context, id uuid.UUID) (*Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	m, ok := s.byID[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (s *MemoryStore) FindByEmail(_ context.Context, email string) (*Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[normalize(email)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *s.byID[id]
	return &cp, nil
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

var _ Store = (*MemoryStore)(nil)
