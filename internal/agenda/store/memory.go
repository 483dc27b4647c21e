package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"agendahub/internal/agenda"
	"agendahub/pkg/platform/sentinel"
)

// MemoryStore is the in-memory Store used by unit tests and local runs. It
// honors the same conditional semantics as the postgres store under a single
// mutex, so race-sensitive behavior is observable without a database.
type MemoryStore struct {
	mu            sync.RWMutex
	agendas       map[uuid.UUID]*agenda.Agenda
	registrations map[uuid.UUID]*agenda.Registration
	identityIndex map[identityIndexKey]uuid.UUID
}

type identityIndexKey struct {
	agendaID uuid.UUID
	role     agenda.Role
	identity string
}

func NewMemory() *MemoryStore {
	return &MemoryStore{
		agendas:       make(map[uuid.UUID]*agenda.Agenda),
		registrations: make(map[uuid.UUID]*agenda.Registration),
		identityIndex: make(map[identityIndexKey]uuid.UUID),
	}
}

func (s *MemoryStore) CreateAgenda(_ context.Context, a *agenda.Agenda) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.agendas[a.ID]; exists {
		return sentinel.ErrConflict
	}
	cp := *a
	s.agendas[a.ID] = &cp
	return nil
}

func (s *MemoryStore) GetAgenda(_ context.Context, id uuid.UUID) (*agenda.Agenda, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.agendas[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *MemoryStore) ListAgendas(_ context.Context) ([]*agenda.Agenda, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*agenda.Agenda, 0, len(s.agendas))
	for _, a := range s.agendas {
		cp := *a
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) InsertRegistration(_ context.Context, reg *agenda.Registration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.agendas[reg.AgendaID]; !ok {
		return sentinel.ErrNotFound
	}

	key := identityIndexKey{reg.AgendaID, reg.Role, reg.Identity.Key()}
	if _, taken := s.identityIndex[key]; taken {
		return sentinel.ErrConflict
	}

	cp := *reg
	s.registrations[reg.ID] = &cp
	s.identityIndex[key] = reg.ID
	return nil
}

func (s *MemoryStore) GetRegistration(_ context.Context, id uuid.UUID) (*agenda.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	reg, ok := s.registrations[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *reg
	return &cp, nil
}

func (s *MemoryStore) HasRegistration(_ context.Context, agendaID uuid.UUID, role agenda.Role, identityKey string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.identityIndex[identityIndexKey{agendaID, role, identityKey}]
	return ok, nil
}

func (s *MemoryStore) ListRegistrations(_ context.Context, agendaID uuid.UUID, role agenda.Role) ([]*agenda.Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*agenda.Registration
	for _, reg := range s.registrations {
		if reg.AgendaID == agendaID && reg.Role == role {
			cp := *reg
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) CountJob(_ context.Context, agendaID uuid.UUID, job string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, reg := range s.registrations {
		if reg.AgendaID == agendaID && reg.Role == agenda.RoleCommittee && reg.Job == job {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) SavePaymentCharge(_ context.Context, regID uuid.UUID, p agenda.Payment) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reg, ok := s.registrations[regID]
	if !ok || reg.Payment.Status == agenda.StatusSuccess {
		return false, nil
	}
	reg.Payment = p
	return true, nil
}

func (s *MemoryStore) SettlePayment(_ context.Context, regID uuid.UUID, transactionID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reg, ok := s.registrations[regID]
	if !ok || reg.Payment.Status == agenda.StatusSuccess {
		return false, nil
	}
	reg.Payment.Status = agenda.StatusSuccess
	if transactionID != "" {
		reg.Payment.TransactionID = transactionID
	}
	return true, nil
}

func (s *MemoryStore) ClosePayment(_ context.Context, regID uuid.UUID, status agenda.PaymentStatus) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reg, ok := s.registrations[regID]
	if !ok || reg.Payment.Status.Terminal() {
		return false, nil
	}
	reg.Payment.Status = status
	return true, nil
}

func (s *MemoryStore) RemoveGuestParticipant(_ context.Context, regID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reg, ok := s.registrations[regID]
	if !ok || reg.Role != agenda.RoleParticipant || !reg.Identity.IsGuest() {
		return false, nil
	}
	if reg.Payment.Status == agenda.StatusSuccess {
		return false, nil
	}
	delete(s.registrations, regID)
	delete(s.identityIndex, identityIndexKey{reg.AgendaID, reg.Role, reg.Identity.Key()})
	return true, nil
}

func (s *MemoryStore) MarkVisited(_ context.Context, regID uuid.UUID, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	reg, ok := s.registrations[regID]
	if !ok || reg.Visiting {
		return false, nil
	}
	reg.Visiting = true
	reg.VisitAt = &at
	return true, nil
}

func (s *MemoryStore) PatchRegistrations(_ context.Context, agendaID uuid.UUID, ids []uuid.UUID, patch FieldPatch) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	updated := 0
	for _, id := range ids {
		reg, ok := s.registrations[id]
		if !ok || reg.AgendaID != agendaID {
			continue
		}
		if patch.PaymentStatus != nil {
			reg.Payment.Status = *patch.PaymentStatus
		}
		if patch.Visiting != nil {
			reg.Visiting = *patch.Visiting
			if *patch.Visiting {
				now := time.Now()
				reg.VisitAt = &now
			} else {
				reg.VisitAt = nil
			}
		}
		updated++
	}
	return updated, nil
}

var _ Store = (*MemoryStore)(nil)
