//go:build integration

package store_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"agendahub/internal/agenda"
	"agendahub/internal/agenda/store"
	"agendahub/pkg/platform/sentinel"
	"agendahub/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
	s.Require().NoError(s.store.EnsureSchema(context.Background()))
}

func (s *PostgresStoreSuite) TearDownSuite() {
	s.postgres.Close(context.Background())
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(context.Background(), "registrations", "agenda_jobs", "agendas"))
}

func (s *PostgresStoreSuite) seedAgenda() *agenda.Agenda {
	now := time.Now().UTC().Truncate(time.Microsecond)
	a := &agenda.Agenda{
		ID:              uuid.New(),
		Title:           "Integration Night",
		StartsAt:        now.Add(24 * time.Hour),
		EndsAt:          now.Add(28 * time.Hour),
		ParticipantRule: "Public",
		CommitteeRule:   "Member",
		FeeAmount:       40000,
		Jobs:            []agenda.JobSlot{{Label: "stagehand", Slots: 3}},
		CreatedAt:       now,
	}
	s.Require().NoError(s.store.CreateAgenda(context.Background(), a))
	return a
}

func (s *PostgresStoreSuite) newRegistration(a *agenda.Agenda, identity agenda.Identity) *agenda.Registration {
	return &agenda.Registration{
		ID:        uuid.New(),
		AgendaID:  a.ID,
		Role:      agenda.RoleParticipant,
		Identity:  identity,
		Payment:   agenda.Payment{Method: agenda.MethodCash, Status: agenda.StatusPending},
		CreatedAt: time.Now().UTC(),
	}
}

func (s *PostgresStoreSuite) TestAgendaRoundTrip() {
	ctx := context.Background()
	a := s.seedAgenda()

	got, err := s.store.GetAgenda(ctx, a.ID)
	s.Require().NoError(err)
	s.Equal(a.Title, got.Title)
	s.Equal(a.Jobs, got.Jobs)
	s.Equal(3, got.JobCap("stagehand"))

	_, err = s.store.GetAgenda(ctx, uuid.New())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

// TestConcurrentRegistration verifies that the unique identity constraint
// admits exactly one winner under concurrent inserts for the same identity.
func (s *PostgresStoreSuite) TestConcurrentRegistration() {
	ctx := context.Background()
	a := s.seedAgenda()
	identity := agenda.GuestIdentity(agenda.GuestProfile{FullName: "Race Guest", Email: "race@example.com"})

	const goroutines = 50
	var wg sync.WaitGroup
	var created, conflicted atomic.Int32

	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.store.InsertRegistration(ctx, s.newRegistration(a, identity))
			switch {
			case err == nil:
				created.Add(1)
			case errors.Is(err, sentinel.ErrConflict):
				conflicted.Add(1)
			default:
				s.T().Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), created.Load())
	s.Equal(int32(goroutines-1), conflicted.Load())
}

func (s *PostgresStoreSuite) TestPaymentLifecycle() {
	ctx := context.Background()
	a := s.seedAgenda()
	reg := s.newRegistration(a, agenda.MemberIdentity(uuid.New()))
	s.Require().NoError(s.store.InsertRegistration(ctx, reg))

	expiry := time.Now().UTC().Add(24 * time.Hour).Truncate(time.Microsecond)
	applied, err := s.store.SavePaymentCharge(ctx, reg.ID, agenda.Payment{
		Method:  agenda.MethodBankTransfer,
		Status:  agenda.StatusPending,
		OrderID: reg.ID.String() + "-itest001",
		Amount:  44000,
		Expiry:  &expiry,
		Bank:    "bca",
	})
	s.Require().NoError(err)
	s.True(applied)

	// First settlement applies, redelivery does not.
	applied, err = s.store.SettlePayment(ctx, reg.ID, "trx-itest")
	s.Require().NoError(err)
	s.True(applied)
	applied, err = s.store.SettlePayment(ctx, reg.ID, "trx-itest")
	s.Require().NoError(err)
	s.False(applied)

	// A late cancel never downgrades success.
	applied, err = s.store.ClosePayment(ctx, reg.ID, agenda.StatusCanceled)
	s.Require().NoError(err)
	s.False(applied)

	got, err := s.store.GetRegistration(ctx, reg.ID)
	s.Require().NoError(err)
	s.Equal(agenda.StatusSuccess, got.Payment.Status)
	s.Equal("trx-itest", got.Payment.TransactionID)
}

func (s *PostgresStoreSuite) TestGuestCleanupAndVisit() {
	ctx := context.Background()
	a := s.seedAgenda()

	guest := s.newRegistration(a, agenda.GuestIdentity(agenda.GuestProfile{FullName: "G", Email: "g@example.com"}))
	memberReg := s.newRegistration(a, agenda.MemberIdentity(uuid.New()))
	s.Require().NoError(s.store.InsertRegistration(ctx, guest))
	s.Require().NoError(s.store.InsertRegistration(ctx, memberReg))

	paidGuest := s.newRegistration(a, agenda.GuestIdentity(agenda.GuestProfile{FullName: "P", Email: "p@example.com"}))
	s.Require().NoError(s.store.InsertRegistration(ctx, paidGuest))
	applied, err := s.store.SavePaymentCharge(ctx, paidGuest.ID, agenda.Payment{
		Method: agenda.MethodBankTransfer, Status: agenda.StatusPending,
		OrderID: paidGuest.ID.String() + "-seed0000", Amount: 54000,
	})
	s.Require().NoError(err)
	s.Require().True(applied)
	applied, err = s.store.SettlePayment(ctx, paidGuest.ID, "trx-1")
	s.Require().NoError(err)
	s.Require().True(applied)

	removed, err := s.store.RemoveGuestParticipant(ctx, guest.ID)
	s.Require().NoError(err)
	s.True(removed)
	removed, err = s.store.RemoveGuestParticipant(ctx, memberReg.ID)
	s.Require().NoError(err)
	s.False(removed)
	removed, err = s.store.RemoveGuestParticipant(ctx, paidGuest.ID)
	s.Require().NoError(err)
	s.False(removed)

	at := time.Now().UTC().Truncate(time.Microsecond)
	applied, err = s.store.MarkVisited(ctx, memberReg.ID, at)
	s.Require().NoError(err)
	s.True(applied)
	applied, err = s.store.MarkVisited(ctx, memberReg.ID, at.Add(time.Hour))
	s.Require().NoError(err)
	s.False(applied)

	got, err := s.store.GetRegistration(ctx, memberReg.ID)
	s.Require().NoError(err)
	s.True(got.Visiting)
	s.Require().NotNil(got.VisitAt)
	s.WithinDuration(at, *got.VisitAt, time.Second)
}

func (s *PostgresStoreSuite) TestPatchRegistrations() {
	ctx := context.Background()
	a := s.seedAgenda()

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		reg := s.newRegistration(a, agenda.MemberIdentity(uuid.New()))
		s.Require().NoError(s.store.InsertRegistration(ctx, reg))
		ids = append(ids, reg.ID)
	}

	paid := agenda.StatusSuccess
	visited := true
	updated, err := s.store.PatchRegistrations(ctx, a.ID, ids[:2], store.FieldPatch{
		PaymentStatus: &paid,
		Visiting:      &visited,
	})
	s.Require().NoError(err)
	s.Equal(2, updated)

	got, err := s.store.GetRegistration(ctx, ids[2])
	s.Require().NoError(err)
	s.Equal(agenda.StatusPending, got.Payment.Status)
	s.False(got.Visiting)
}
