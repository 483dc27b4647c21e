// Package agenda holds the core domain model: the Agenda aggregate and its
// embedded registration entries. All mutation goes through the store as
// narrow conditional operations; nothing here performs I/O.
package agenda

import (
	"time"

	"github.com/google/uuid"
)

// Role distinguishes the two registration collections of an Agenda.
type Role string

const (
	RoleParticipant Role = "participant"
	RoleCommittee   Role = "committee"
)

// ParseRole validates a role path segment.
func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleParticipant, RoleCommittee:
		return Role(s), true
	default:
		return "", false
	}
}

// JobSlot describes a committee position and its staffing cap.
type JobSlot struct {
	Label string `json:"label"`
	Slots int    `json:"slots"`
}

// Agenda is one organizational event. It is the unit of atomic update: every
// registration and payment mutation is scoped to one agenda and one entry.
type Agenda struct {
	ID              uuid.UUID  `json:"id"`
	Title           string     `json:"title"`
	Description     string     `json:"description,omitempty"`
	StartsAt        time.Time  `json:"starts_at"`
	EndsAt          time.Time  `json:"ends_at"`
	RegStart        *time.Time `json:"reg_start,omitempty"`
	RegEnd          *time.Time `json:"reg_end,omitempty"`
	ParticipantRule string     `json:"participant_rule"`
	CommitteeRule   string     `json:"committee_rule"`
	FeeAmount       int64      `json:"fee_amount"`
	Points          int        `json:"points"`
	RequirePayment  bool       `json:"require_payment"`
	Jobs            []JobSlot  `json:"jobs,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// JobCap returns the configured slot count for a job label, or 0 when the
// label is not a configured position.
func (a *Agenda) JobCap(label string) int {
	for _, j := range a.Jobs {
		if j.Label == label {
			return j.Slots
		}
	}
	return 0
}

// PaymentMethod is how a registration fee is collected.
type PaymentMethod string

const (
	MethodCash         PaymentMethod = "cash"
	MethodBankTransfer PaymentMethod = "bank_transfer"
	MethodEWallet      PaymentMethod = "gopay"
	MethodQRIS         PaymentMethod = "qris"
	MethodCreditCard   PaymentMethod = "credit_card"
)

// PaymentStatus is the lifecycle state of a registration's payment.
type PaymentStatus string

const (
	StatusPending  PaymentStatus = "pending"
	StatusSuccess  PaymentStatus = "success"
	StatusCanceled PaymentStatus = "canceled"
	StatusExpired  PaymentStatus = "expired"
	StatusFailed   PaymentStatus = "failed"
)

// Terminal reports whether a status ends the payment lifecycle.
func (s PaymentStatus) Terminal() bool {
	switch s {
	case StatusSuccess, StatusCanceled, StatusExpired, StatusFailed:
		return true
	default:
		return false
	}
}

// Payment is the sub-record tracking one registration's fee collection.
// Display fields (bank, VA number, QR url) depend on the method.
type Payment struct {
	Method        PaymentMethod `json:"method"`
	Status        PaymentStatus `json:"status"`
	OrderID       string        `json:"order_id,omitempty"`
	TransactionID string        `json:"transaction_id,omitempty"`
	Amount        int64         `json:"amount,omitempty"`
	Expiry        *time.Time    `json:"expiry,omitempty"`
	Bank          string        `json:"bank,omitempty"`
	VANumber      string        `json:"va_number,omitempty"`
	QRURL         string        `json:"qr_url,omitempty"`
}

// Reusable reports whether an outstanding charge can be returned to the
// caller instead of creating a duplicate at the gateway.
func (p Payment) Reusable(now time.Time) bool {
	return p.Status == StatusPending &&
		p.OrderID != "" &&
		p.Expiry != nil &&
		p.Expiry.After(now)
}

// Registration is one entry in an Agenda's participant or committee
// collection. Uniqueness within a collection is keyed by Identity, not ID.
type Registration struct {
	ID        uuid.UUID  `json:"id"`
	AgendaID  uuid.UUID  `json:"agenda_id"`
	Role      Role       `json:"role"`
	Identity  Identity   `json:"identity"`
	Job       string     `json:"job,omitempty"`
	Approved  bool       `json:"approved,omitempty"`
	Visiting  bool       `json:"visiting"`
	VisitAt   *time.Time `json:"visit_at,omitempty"`
	Payment   Payment    `json:"payment"`
	CreatedAt time.Time  `json:"created_at"`
}
