package store

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
	"golang.org/x/sync/errgroup"

	"agendahub/internal/agenda"
	"agendahub/pkg/platform/sentinel"
)

type MemoryStoreSuite struct {
	suite.Suite
	store  *MemoryStore
	agenda *agenda.Agenda
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) SetupTest() {
	s.store = NewMemory()
	s.agenda = &agenda.Agenda{
		ID:        uuid.New(),
		Title:     "tech summit",
		StartsAt:  time.Now().Add(24 * time.Hour),
		EndsAt:    time.Now().Add(30 * time.Hour),
		CreatedAt: time.Now(),
	}
	s.Require().NoError(s.store.CreateAgenda(context.Background(), s.agenda))
}

func (s *MemoryStoreSuite) newParticipant(identity agenda.Identity) *agenda.Registration {
	return &agenda.Registration{
		ID:        uuid.New(),
		AgendaID:  s.agenda.ID,
		Role:      agenda.RoleParticipant,
		Identity:  identity,
		Payment:   agenda.Payment{Method: agenda.MethodCash, Status: agenda.StatusPending},
		CreatedAt: time.Now(),
	}
}

func (s *MemoryStoreSuite) TestInsertRegistration() {
	ctx := context.Background()

	s.Run("first insert succeeds", func() {
		reg := s.newParticipant(agenda.MemberIdentity(uuid.New()))
		s.NoError(s.store.InsertRegistration(ctx, reg))

		got, err := s.store.GetRegistration(ctx, reg.ID)
		s.NoError(err)
		s.Equal(reg.Identity.Key(), got.Identity.Key())
	})

	s.Run("same identity conflicts even with a fresh id", func() {
		member := agenda.MemberIdentity(uuid.New())
		s.NoError(s.store.InsertRegistration(ctx, s.newParticipant(member)))

		err := s.store.InsertRegistration(ctx, s.newParticipant(member))
		s.ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("guest email matching is normalized", func() {
		first := agenda.GuestIdentity(agenda.GuestProfile{FullName: "A", Email: "Guest@Example.COM"})
		second := agenda.GuestIdentity(agenda.GuestProfile{FullName: "B", Email: "  guest@example.com "})
		s.NoError(s.store.InsertRegistration(ctx, s.newParticipant(first)))
		s.ErrorIs(s.store.InsertRegistration(ctx, s.newParticipant(second)), sentinel.ErrConflict)
	})

	s.Run("same identity in the other collection is allowed", func() {
		member := agenda.MemberIdentity(uuid.New())
		s.NoError(s.store.InsertRegistration(ctx, s.newParticipant(member)))

		committee := s.newParticipant(member)
		committee.Role = agenda.RoleCommittee
		committee.Job = "logistics"
		s.NoError(s.store.InsertRegistration(ctx, committee))
	})

	s.Run("unknown agenda returns not found", func() {
		reg := s.newParticipant(agenda.MemberIdentity(uuid.New()))
		reg.AgendaID = uuid.New()
		s.ErrorIs(s.store.InsertRegistration(ctx, reg), sentinel.ErrNotFound)
	})
}

// TestConcurrentRegistration drives N simultaneous inserts for one identity:
// exactly one must win, the rest must observe the conflict.
func (s *MemoryStoreSuite) TestConcurrentRegistration() {
	ctx := context.Background()
	member := agenda.MemberIdentity(uuid.New())
	const attempts = 32

	var wins, conflicts atomic.Int64
	var g errgroup.Group
	for i := 0; i < attempts; i++ {
		g.Go(func() error {
			err := s.store.InsertRegistration(ctx, s.newParticipant(member))
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, sentinel.ErrConflict):
				conflicts.Add(1)
			default:
				return err
			}
			return nil
		})
	}
	s.Require().NoError(g.Wait())

	s.Equal(int64(1), wins.Load())
	s.Equal(int64(attempts-1), conflicts.Load())

	regs, err := s.store.ListRegistrations(ctx, s.agenda.ID, agenda.RoleParticipant)
	s.NoError(err)
	s.Len(regs, 1)
}

func (s *MemoryStoreSuite) TestPaymentTransitions() {
	ctx := context.Background()
	reg := s.newParticipant(agenda.MemberIdentity(uuid.New()))
	s.Require().NoError(s.store.InsertRegistration(ctx, reg))

	s.Run("settle applies once", func() {
		applied, err := s.store.SettlePayment(ctx, reg.ID, "tx-1")
		s.NoError(err)
		s.True(applied)

		applied, err = s.store.SettlePayment(ctx, reg.ID, "tx-1")
		s.NoError(err)
		s.False(applied, "redelivered settlement must be a no-op")

		got, err := s.store.GetRegistration(ctx, reg.ID)
		s.NoError(err)
		s.Equal(agenda.StatusSuccess, got.Payment.Status)
		s.Equal("tx-1", got.Payment.TransactionID)
	})

	s.Run("close never overrides success", func() {
		applied, err := s.store.ClosePayment(ctx, reg.ID, agenda.StatusCanceled)
		s.NoError(err)
		s.False(applied)

		got, err := s.store.GetRegistration(ctx, reg.ID)
		s.NoError(err)
		s.Equal(agenda.StatusSuccess, got.Payment.Status)
	})

	s.Run("settle on unknown registration is a no-op", func() {
		applied, err := s.store.SettlePayment(ctx, uuid.New(), "tx-2")
		s.NoError(err)
		s.False(applied)
	})
}

func (s *MemoryStoreSuite) TestClosePayment() {
	ctx := context.Background()
	reg := s.newParticipant(agenda.MemberIdentity(uuid.New()))
	s.Require().NoError(s.store.InsertRegistration(ctx, reg))

	applied, err := s.store.ClosePayment(ctx, reg.ID, agenda.StatusExpired)
	s.NoError(err)
	s.True(applied)

	applied, err = s.store.ClosePayment(ctx, reg.ID, agenda.StatusCanceled)
	s.NoError(err)
	s.False(applied, "terminal status is terminal")
}

func (s *MemoryStoreSuite) TestRemoveGuestParticipant() {
	ctx := context.Background()

	s.Run("guest participant is deleted", func() {
		guest := s.newParticipant(agenda.GuestIdentity(agenda.GuestProfile{FullName: "G", Email: "g@x.io"}))
		s.Require().NoError(s.store.InsertRegistration(ctx, guest))

		removed, err := s.store.RemoveGuestParticipant(ctx, guest.ID)
		s.NoError(err)
		s.True(removed)

		_, err = s.store.GetRegistration(ctx, guest.ID)
		s.ErrorIs(err, sentinel.ErrNotFound)

		// The slot is free again for the same email.
		again := s.newParticipant(agenda.GuestIdentity(agenda.GuestProfile{FullName: "G", Email: "g@x.io"}))
		s.NoError(s.store.InsertRegistration(ctx, again))
	})

	s.Run("settled guest is retained", func() {
		guest := s.newParticipant(agenda.GuestIdentity(agenda.GuestProfile{FullName: "H", Email: "h@x.io"}))
		s.Require().NoError(s.store.InsertRegistration(ctx, guest))

		applied, err := s.store.SavePaymentCharge(ctx, guest.ID, agenda.Payment{
			Method: agenda.MethodBankTransfer, Status: agenda.StatusPending,
			OrderID: guest.ID.String() + "-seed0000", Amount: 54000,
		})
		s.Require().NoError(err)
		s.Require().True(applied)
		applied, err = s.store.SettlePayment(ctx, guest.ID, "trx-1")
		s.Require().NoError(err)
		s.Require().True(applied)

		removed, err := s.store.RemoveGuestParticipant(ctx, guest.ID)
		s.NoError(err)
		s.False(removed)

		got, err := s.store.GetRegistration(ctx, guest.ID)
		s.Require().NoError(err)
		s.Equal(agenda.StatusSuccess, got.Payment.Status)
	})

	s.Run("member participant is retained", func() {
		member := s.newParticipant(agenda.MemberIdentity(uuid.New()))
		s.Require().NoError(s.store.InsertRegistration(ctx, member))

		removed, err := s.store.RemoveGuestParticipant(ctx, member.ID)
		s.NoError(err)
		s.False(removed)
	})

	s.Run("already absent is a no-op", func() {
		removed, err := s.store.RemoveGuestParticipant(ctx, uuid.New())
		s.NoError(err)
		s.False(removed)
	})
}

func (s *MemoryStoreSuite) TestMarkVisited() {
	ctx := context.Background()
	reg := s.newParticipant(agenda.MemberIdentity(uuid.New()))
	s.Require().NoError(s.store.InsertRegistration(ctx, reg))

	first := time.Now()
	applied, err := s.store.MarkVisited(ctx, reg.ID, first)
	s.NoError(err)
	s.True(applied)

	applied, err = s.store.MarkVisited(ctx, reg.ID, first.Add(time.Minute))
	s.NoError(err)
	s.False(applied)

	got, err := s.store.GetRegistration(ctx, reg.ID)
	s.NoError(err)
	s.True(got.Visiting)
	s.Require().NotNil(got.VisitAt)
	s.True(got.VisitAt.Equal(first), "second scan must not overwrite visit time")
}

func (s *MemoryStoreSuite) TestCountJob() {
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		reg := s.newParticipant(agenda.MemberIdentity(uuid.New()))
		reg.Role = agenda.RoleCommittee
		reg.Job = "logistics"
		s.Require().NoError(s.store.InsertRegistration(ctx, reg))
	}
	other := s.newParticipant(agenda.MemberIdentity(uuid.New()))
	other.Role = agenda.RoleCommittee
	other.Job = "medic"
	s.Require().NoError(s.store.InsertRegistration(ctx, other))

	count, err := s.store.CountJob(ctx, s.agenda.ID, "logistics")
	s.NoError(err)
	s.Equal(3, count)
}

func (s *MemoryStoreSuite) TestPatchRegistrations() {
	ctx := context.Background()
	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		reg := s.newParticipant(agenda.MemberIdentity(uuid.New()))
		s.Require().NoError(s.store.InsertRegistration(ctx, reg))
		ids = append(ids, reg.ID)
	}

	status := agenda.StatusSuccess
	visiting := true
	updated, err := s.store.PatchRegistrations(ctx, s.agenda.ID, ids[:2], FieldPatch{
		PaymentStatus: &status,
		Visiting:      &visiting,
	})
	s.NoError(err)
	s.Equal(2, updated)

	got, err := s.store.GetRegistration(ctx, ids[0])
	s.NoError(err)
	s.Equal(agenda.StatusSuccess, got.Payment.Status)
	s.True(got.Visiting)

	untouched, err := s.store.GetRegistration(ctx, ids[2])
	s.NoError(err)
	s.Equal(agenda.StatusPending, untouched.Payment.Status)
}
