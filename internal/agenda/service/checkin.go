package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"

	"agendahub/internal/agenda"
	"agendahub/internal/platform/events"
	"agendahub/pkg/platform/sentinel"

	dErrors "agendahub/pkg/domain-errors"
)

// CheckInResult reports the attendance state after a scan. A repeated scan
// is not a fault: AlreadyCheckedIn is set and VisitAt carries the original
// timestamp.
type CheckInResult struct {
	RegistrationID   uuid.UUID `json:"registration_id"`
	AlreadyCheckedIn bool      `json:"already_checked_in"`
	VisitAt          time.Time `json:"visit_at"`
}

// CheckIn transitions a registration to visited. When the agenda requires
// payment, an unpaid registration is refused. The transition is a single
// conditional update matched on the registration id, so concurrent scans of
// the same code cannot double-write the visit time.
func (s *Service) CheckIn(ctx context.Context, agendaID, regID uuid.UUID) (*CheckInResult, error) {
	a, err := s.GetAgenda(ctx, agendaID)
	if err != nil {
		return nil, err
	}

	reg, err := s.loadRegistration(ctx, agendaID, regID)
	if err != nil {
		return nil, err
	}

	if a.RequirePayment && reg.Payment.Status != agenda.StatusSuccess {
		return nil, dErrors.New(dErrors.CodePaymentNeeded, "payment must be completed before check-in")
	}

	now := s.now()
	applied, err := s.store.MarkVisited(ctx, regID, now)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "check-in failed")
	}

	if !applied {
		// Lost to an earlier scan; surface the original timestamp.
		current, err := s.loadRegistration(ctx, agendaID, regID)
		if err != nil {
			return nil, err
		}
		if current.VisitAt == nil {
			return nil, dErrors.New(dErrors.CodeInternal, "visited entry has no visit time")
		}
		if s.metrics != nil {
			s.metrics.CheckInRepeats.Inc()
		}
		return &CheckInResult{
			RegistrationID:   regID,
			AlreadyCheckedIn: true,
			VisitAt:          *current.VisitAt,
		}, nil
	}

	if s.metrics != nil {
		s.metrics.CheckIns.Inc()
	}
	s.events.Emit(ctx, events.Event{
		Type:           events.TypeCheckInRecorded,
		AgendaID:       agendaID.String(),
		RegistrationID: regID.String(),
	})
	return &CheckInResult{
		RegistrationID: regID,
		VisitAt:        now,
	}, nil
}

// CheckInMember is the self-service path: the caller's own registration is
// looked up by member identity, participants first, committee second.
func (s *Service) CheckInMember(ctx context.Context, agendaID, memberID uuid.UUID) (*CheckInResult, error) {
	for _, role := range []agenda.Role{agenda.RoleParticipant, agenda.RoleCommittee} {
		regs, err := s.store.ListRegistrations(ctx, agendaID, role)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "registration lookup failed")
		}
		for _, reg := range regs {
			if id, ok := reg.Identity.MemberID(); ok && id == memberID {
				return s.CheckIn(ctx, agendaID, reg.ID)
			}
		}
	}
	return nil, dErrors.New(dErrors.CodeNotFound, "no registration for this member")
}

// scanCode is the operator QR payload: a JSON document carrying the
// registration id and its role.
type scanCode struct {
	ID   string `json:"id"`
	Role string `json:"role"`
}

// Scan decodes an operator-scanned QR code and performs the check-in.
func (s *Service) Scan(ctx context.Context, agendaID uuid.UUID, code string) (*CheckInResult, error) {
	var payload scanCode
	if err := json.Unmarshal([]byte(code), &payload); err != nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "invalid check-in code")
	}
	regID, err := uuid.Parse(payload.ID)
	if err != nil {
		return nil, dErrors.New(dErrors.CodeBadRequest, "invalid check-in code")
	}
	if _, ok := agenda.ParseRole(payload.Role); !ok {
		return nil, dErrors.New(dErrors.CodeBadRequest, "invalid check-in code")
	}
	return s.CheckIn(ctx, agendaID, regID)
}

func (s *Service) loadRegistration(ctx context.Context, agendaID, regID uuid.UUID) (*agenda.Registration, error) {
	reg, err := s.store.GetRegistration(ctx, regID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "registration not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "registration lookup failed")
	}
	if reg.AgendaID != agendaID {
		return nil, dErrors.New(dErrors.CodeNotFound, "registration not found")
	}
	return reg, nil
}
