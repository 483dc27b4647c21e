package service

import (
	"context"
	"errors"

	"github.com/asaskevich/govalidator"
	"github.com/google/uuid"

	"agendahub/internal/agenda"
	"agendahub/internal/agenda/eligibility"
	"agendahub/internal/member"
	"agendahub/internal/platform/events"
	"agendahub/pkg/platform/sentinel"

	dErrors "agendahub/pkg/domain-errors"
)

// RegisterParticipant commits a participant entry for a member or a guest.
// The agenda's existence is confirmed before the conditional insert, so a
// zero-modified insert can only mean a lost identity race.
func (s *Service) RegisterParticipant(ctx context.Context, agendaID uuid.UUID, m *member.Member, guest *agenda.GuestProfile) (*agenda.Registration, error) {
	a, err := s.GetAgenda(ctx, agendaID)
	if err != nil {
		return nil, err
	}

	identity, err := participantIdentity(m, guest)
	if err != nil {
		return nil, err
	}

	if err := s.checkEligibility(ctx, a, a.ParticipantRule, agenda.RoleParticipant, subjectFor(m), identity); err != nil {
		return nil, err
	}

	reg := &agenda.Registration{
		ID:       uuid.New(),
		AgendaID: agendaID,
		Role:     agenda.RoleParticipant,
		Identity: identity,
		Payment: agenda.Payment{
			Method: agenda.MethodCash,
			Status: agenda.StatusPending,
			Amount: a.FeeAmount,
		},
		CreatedAt: s.now(),
	}

	return s.commit(ctx, reg)
}

// RegisterCommittee commits a committee entry for a member with a job title.
// The job-slot capacity check is advisory: it reads the count before the
// conditional insert, so concurrent registrations near the last slot can
// overshoot by a small margin. The identity-uniqueness guarantee is not
// affected.
func (s *Service) RegisterCommittee(ctx context.Context, agendaID uuid.UUID, m *member.Member, job string) (*agenda.Registration, error) {
	if m == nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "committee registration requires a member account")
	}

	a, err := s.GetAgenda(ctx, agendaID)
	if err != nil {
		return nil, err
	}

	slots := a.JobCap(job)
	if slots == 0 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "unknown job position")
	}

	identity := agenda.MemberIdentity(m.ID)
	if err := s.checkEligibility(ctx, a, a.CommitteeRule, agenda.RoleCommittee, subjectFor(m), identity); err != nil {
		return nil, err
	}

	taken, err := s.store.CountJob(ctx, agendaID, job)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "job count failed")
	}
	if taken >= slots {
		if s.metrics != nil {
			s.metrics.JobSlotRejections.Inc()
		}
		return nil, dErrors.New(dErrors.CodeBadRequest, "job slot is full")
	}

	reg := &agenda.Registration{
		ID:       uuid.New(),
		AgendaID: agendaID,
		Role:     agenda.RoleCommittee,
		Identity: identity,
		Job:      job,
		Payment: agenda.Payment{
			Method: agenda.MethodCash,
			Status: agenda.StatusPending,
			Amount: a.FeeAmount,
		},
		CreatedAt: s.now(),
	}

	return s.commit(ctx, reg)
}

func participantIdentity(m *member.Member, guest *agenda.GuestProfile) (agenda.Identity, error) {
	if m != nil {
		return agenda.MemberIdentity(m.ID), nil
	}
	if guest == nil {
		return agenda.Identity{}, dErrors.New(dErrors.CodeBadRequest, "guest profile or member token is required")
	}
	if guest.FullName == "" || !govalidator.IsEmail(guest.Email) {
		return agenda.Identity{}, dErrors.New(dErrors.CodeBadRequest, "guest full name and a valid email are required")
	}
	return agenda.GuestIdentity(*guest), nil
}

func (s *Service) checkEligibility(ctx context.Context, a *agenda.Agenda, ruleStr string, role agenda.Role, sub eligibility.Subject, identity agenda.Identity) error {
	already, err := s.store.HasRegistration(ctx, a.ID, role, identity.Key())
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "registration lookup failed")
	}
	if already {
		return dErrors.New(dErrors.CodeConflict, "already registered")
	}

	rule := eligibility.Parse(ruleStr)
	if !rule.Allows(sub, registrationWindow(a), s.now(), false) {
		if s.metrics != nil {
			s.metrics.EligibilityDenied.Inc()
		}
		return dErrors.New(dErrors.CodeForbidden, "not eligible to register")
	}
	return nil
}

// commit performs the atomic insert and translates the outcome. A conflict
// here is the authoritative duplicate signal; the advisory pre-check above
// only exists to produce friendlier ordering of error messages.
func (s *Service) commit(ctx context.Context, reg *agenda.Registration) (*agenda.Registration, error) {
	if err := s.store.InsertRegistration(ctx, reg); err != nil {
		switch {
		case errors.Is(err, sentinel.ErrConflict):
			if s.metrics != nil {
				s.metrics.RegistrationConflicts.Inc()
			}
			return nil, dErrors.New(dErrors.CodeConflict, "already registered")
		case errors.Is(err, sentinel.ErrNotFound):
			return nil, dErrors.New(dErrors.CodeNotFound, "agenda not found")
		default:
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "registration failed")
		}
	}

	if s.metrics != nil {
		s.metrics.RegistrationsCreated.WithLabelValues(string(reg.Role)).Inc()
	}
	s.events.Emit(ctx, events.Event{
		Type:           events.TypeRegistrationCreated,
		AgendaID:       reg.AgendaID.String(),
		RegistrationID: reg.ID.String(),
		Role:           string(reg.Role),
	})
	s.logger.InfoContext(ctx, "registration committed",
		"agenda_id", reg.AgendaID,
		"registration_id", reg.ID,
		"role", reg.Role,
	)
	return reg, nil
}
