// Package service implements the registration core: eligibility-gated,
// race-safe registration, attendance check-in, and the bulk operator paths.
// All coordination is pushed down to the store's conditional operations;
// nothing here holds locks or retries lost races.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"agendahub/internal/agenda"
	"agendahub/internal/agenda/cache"
	"agendahub/internal/agenda/eligibility"
	"agendahub/internal/agenda/metrics"
	"agendahub/internal/agenda/store"
	"agendahub/internal/member"
	"agendahub/internal/platform/events"
	"agendahub/pkg/platform/sentinel"

	dErrors "agendahub/pkg/domain-errors"
)

type Service struct {
	store   store.Store
	members member.Store
	cache   *cache.Cache
	metrics *metrics.Metrics
	events  *events.Publisher
	logger  *slog.Logger
	now     func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithCache(c *cache.Cache) Option {
	return func(s *Service) { s.cache = c }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithEvents(p *events.Publisher) Option {
	return func(s *Service) { s.events = p }
}

// withClock overrides time for tests.
func withClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(st store.Store, members member.Store, opts ...Option) (*Service, error) {
	if st == nil {
		return nil, fmt.Errorf("agenda store is required")
	}
	if members == nil {
		return nil, fmt.Errorf("member store is required")
	}

	svc := &Service{
		store:   st,
		members: members,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// CreateAgenda validates and persists a new agenda.
func (s *Service) CreateAgenda(ctx context.Context, a *agenda.Agenda) error {
	if a.Title == "" {
		return dErrors.New(dErrors.CodeBadRequest, "title is required")
	}
	if !a.EndsAt.After(a.StartsAt) {
		return dErrors.New(dErrors.CodeBadRequest, "agenda must end after it starts")
	}
	for _, job := range a.Jobs {
		if job.Label == "" || job.Slots <= 0 {
			return dErrors.New(dErrors.CodeBadRequest, "job slots must have a label and a positive count")
		}
	}

	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now()
	}
	if a.ParticipantRule == "" {
		a.ParticipantRule = "None"
	}
	if a.CommitteeRule == "" {
		a.CommitteeRule = "None"
	}

	if err := s.store.CreateAgenda(ctx, a); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return dErrors.New(dErrors.CodeConflict, "agenda already exists")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "agenda creation failed")
	}
	s.cache.Invalidate(ctx, a.ID)
	return nil
}

// GetAgenda loads an agenda, read-through the snapshot cache.
func (s *Service) GetAgenda(ctx context.Context, id uuid.UUID) (*agenda.Agenda, error) {
	if cached := s.cache.Get(ctx, id); cached != nil {
		return cached, nil
	}

	a, err := s.store.GetAgenda(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "agenda not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "agenda lookup failed")
	}
	s.cache.Put(ctx, a)
	return a, nil
}

func (s *Service) ListAgendas(ctx context.Context) ([]*agenda.Agenda, error) {
	out, err := s.store.ListAgendas(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "agenda listing failed")
	}
	return out, nil
}

// ListRegistrations is the operator view of one collection.
func (s *Service) ListRegistrations(ctx context.Context, agendaID uuid.UUID, role agenda.Role) ([]*agenda.Registration, error) {
	if _, err := s.GetAgenda(ctx, agendaID); err != nil {
		return nil, err
	}
	out, err := s.store.ListRegistrations(ctx, agendaID, role)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "registration listing failed")
	}
	return out, nil
}

// window derives the eligibility window from the agenda configuration.
// Open-ended bounds fall back to the agenda start as the end of registration.
func registrationWindow(a *agenda.Agenda) *eligibility.Window {
	if a.RegStart == nil && a.RegEnd == nil {
		return nil
	}
	w := &eligibility.Window{End: a.StartsAt}
	if a.RegStart != nil {
		w.Start = *a.RegStart
	}
	if a.RegEnd != nil {
		w.End = *a.RegEnd
	}
	return w
}

func subjectFor(m *member.Member) eligibility.Subject {
	if m == nil {
		return eligibility.Subject{}
	}
	return eligibility.Subject{
		Organizer: m.Organizer,
		Profile:   m.Attributes(),
	}
}
