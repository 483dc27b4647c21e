// Package store persists agendas and their registration entries. Every write
// that concurrent actors can race on is a single conditional operation; the
// interface exposes no read-modify-write cycle. Implementations return
// sentinel errors; services translate them into coded domain errors.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"agendahub/internal/agenda"
)

// FieldPatch is the bulk administrative mutation applied by PatchRegistrations.
// Nil fields are left untouched.
type FieldPatch struct {
	PaymentStatus *agenda.PaymentStatus
	Visiting      *bool
}

// Store is the single synchronization primitive of the registration core.
// Boolean returns report whether the conditioned mutation applied; false with
// a nil error means the precondition did not hold (lost race, already done).
type Store interface {
	CreateAgenda(ctx context.Context, a *agenda.Agenda) error
	GetAgenda(ctx context.Context, id uuid.UUID) (*agenda.Agenda, error)
	ListAgendas(ctx context.Context) ([]*agenda.Agenda, error)

	// InsertRegistration appends an entry conditioned on no entry with the
	// same identity key existing in the same collection. Returns
	// sentinel.ErrConflict when the identity is already present.
	InsertRegistration(ctx context.Context, reg *agenda.Registration) error
	GetRegistration(ctx context.Context, id uuid.UUID) (*agenda.Registration, error)
	HasRegistration(ctx context.Context, agendaID uuid.UUID, role agenda.Role, identityKey string) (bool, error)
	ListRegistrations(ctx context.Context, agendaID uuid.UUID, role agenda.Role) ([]*agenda.Registration, error)

	// CountJob counts committee entries holding a job label. Advisory with
	// respect to InsertRegistration; see the capacity note in the service.
	CountJob(ctx context.Context, agendaID uuid.UUID, job string) (int, error)

	// SavePaymentCharge persists gateway charge data, conditioned on the
	// payment not already being successful.
	SavePaymentCharge(ctx context.Context, regID uuid.UUID, p agenda.Payment) (bool, error)
	// SettlePayment marks a payment successful, conditioned on it not being
	// successful already. Redelivery of the same settlement is a no-op.
	SettlePayment(ctx context.Context, regID uuid.UUID, transactionID string) (bool, error)
	// ClosePayment marks a payment canceled/expired/failed, conditioned on the
	// payment not already being terminal. Never overrides success.
	ClosePayment(ctx context.Context, regID uuid.UUID, status agenda.PaymentStatus) (bool, error)
	// RemoveGuestParticipant deletes a participant entry conditioned on it
	// being an unauthenticated guest whose payment never succeeded. Deleting
	// an absent or settled entry is a no-op.
	RemoveGuestParticipant(ctx context.Context, regID uuid.UUID) (bool, error)

	// MarkVisited records attendance, conditioned on the entry not being
	// visited yet. False means the original visit stands.
	MarkVisited(ctx context.Context, regID uuid.UUID, at time.Time) (bool, error)

	// PatchRegistrations is the coarse bulk toggle used by operators; it is
	// not exercised under end-user concurrency pressure.
	PatchRegistrations(ctx context.Context, agendaID uuid.UUID, ids []uuid.UUID, patch FieldPatch) (int, error)
}
