package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"agendahub/internal/agenda"
	"agendahub/pkg/platform/sentinel"
)

// PostgresStore persists agendas and registrations in PostgreSQL. Every
// race-sensitive write is a single statement whose WHERE clause carries the
// precondition; RowsAffected tells the caller whether it applied. No method
// reads, decides, and writes in separate statements.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const schema = `
CREATE TABLE IF NOT EXISTS agendas (
	id               UUID PRIMARY KEY,
	title            TEXT NOT NULL,
	description      TEXT NOT NULL DEFAULT '',
	starts_at        TIMESTAMPTZ NOT NULL,
	ends_at          TIMESTAMPTZ NOT NULL,
	reg_start        TIMESTAMPTZ,
	reg_end          TIMESTAMPTZ,
	participant_rule TEXT NOT NULL DEFAULT 'None',
	committee_rule   TEXT NOT NULL DEFAULT 'None',
	fee_amount       BIGINT NOT NULL DEFAULT 0,
	points           INT NOT NULL DEFAULT 0,
	require_payment  BOOLEAN NOT NULL DEFAULT FALSE,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS agenda_jobs (
	agenda_id UUID NOT NULL REFERENCES agendas(id) ON DELETE CASCADE,
	label     TEXT NOT NULL,
	slots     INT NOT NULL,
	PRIMARY KEY (agenda_id, label)
);

CREATE TABLE IF NOT EXISTS registrations (
	id             UUID PRIMARY KEY,
	agenda_id      UUID NOT NULL REFERENCES agendas(id) ON DELETE CASCADE,
	role           TEXT NOT NULL,
	identity_key   TEXT NOT NULL,
	member_id      UUID,
	guest_name     TEXT NOT NULL DEFAULT '',
	guest_email    TEXT NOT NULL DEFAULT '',
	guest_phone    TEXT NOT NULL DEFAULT '',
	job            TEXT NOT NULL DEFAULT '',
	approved       BOOLEAN NOT NULL DEFAULT FALSE,
	visiting       BOOLEAN NOT NULL DEFAULT FALSE,
	visit_at       TIMESTAMPTZ,
	pay_method     TEXT NOT NULL DEFAULT 'cash',
	pay_status     TEXT NOT NULL DEFAULT 'pending',
	order_id       TEXT NOT NULL DEFAULT '',
	transaction_id TEXT NOT NULL DEFAULT '',
	pay_amount     BIGINT NOT NULL DEFAULT 0,
	pay_expiry     TIMESTAMPTZ,
	pay_bank       TEXT NOT NULL DEFAULT '',
	pay_va_number  TEXT NOT NULL DEFAULT '',
	pay_qr_url     TEXT NOT NULL DEFAULT '',
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (agenda_id, role, identity_key)
);

CREATE INDEX IF NOT EXISTS idx_registrations_agenda_role
	ON registrations (agenda_id, role);
CREATE INDEX IF NOT EXISTS idx_registrations_job
	ON registrations (agenda_id, job) WHERE role = 'committee';
`

// EnsureSchema creates tables when they do not exist yet.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) CreateAgenda(ctx context.Context, a *agenda.Agenda) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create agenda: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO agendas (id, title, description, starts_at, ends_at, reg_start, reg_end,
			participant_rule, committee_rule, fee_amount, points, require_payment, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`, a.ID, a.Title, a.Description, a.StartsAt, a.EndsAt, a.RegStart, a.RegEnd,
		a.ParticipantRule, a.CommitteeRule, a.FeeAmount, a.Points, a.RequirePayment, a.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert agenda: %w", err)
	}

	for _, job := range a.Jobs {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO agenda_jobs (agenda_id, label, slots) VALUES ($1, $2, $3)
		`, a.ID, job.Label, job.Slots); err != nil {
			return fmt.Errorf("insert agenda job: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create agenda: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetAgenda(ctx context.Context, id uuid.UUID) (*agenda.Agenda, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, title, description, starts_at, ends_at, reg_start, reg_end,
			participant_rule, committee_rule, fee_amount, points, require_payment, created_at
		FROM agendas WHERE id = $1
	`, id)

	a, err := scanAgenda(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get agenda: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT label, slots FROM agenda_jobs WHERE agenda_id = $1 ORDER BY label
	`, id)
	if err != nil {
		return nil, fmt.Errorf("get agenda jobs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var job agenda.JobSlot
		if err := rows.Scan(&job.Label, &job.Slots); err != nil {
			return nil, fmt.Errorf("scan agenda job: %w", err)
		}
		a.Jobs = append(a.Jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate agenda jobs: %w", err)
	}
	return a, nil
}

func (s *PostgresStore) ListAgendas(ctx context.Context) ([]*agenda.Agenda, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, title, description, starts_at, ends_at, reg_start, reg_end,
			participant_rule, committee_rule, fee_amount, points, require_payment, created_at
		FROM agendas ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("list agendas: %w", err)
	}
	defer rows.Close()

	var out []*agenda.Agenda
	for rows.Next() {
		a, err := scanAgenda(rows)
		if err != nil {
			return nil, fmt.Errorf("scan agenda: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *PostgresStore) InsertRegistration(ctx context.Context, reg *agenda.Registration) error {
	memberID, guest := identityColumns(reg.Identity)

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO registrations (id, agenda_id, role, identity_key, member_id,
			guest_name, guest_email, guest_phone, job, approved, visiting,
			pay_method, pay_status, pay_amount, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, FALSE, $11, $12, $13, $14)
		ON CONFLICT (agenda_id, role, identity_key) DO NOTHING
	`, reg.ID, reg.AgendaID, reg.Role, reg.Identity.Key(), memberID,
		guest.FullName, guest.Email, guest.Phone, reg.Job, reg.Approved,
		reg.Payment.Method, reg.Payment.Status, reg.Payment.Amount, reg.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert registration: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert registration result: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrConflict
	}
	return nil
}

func (s *PostgresStore) GetRegistration(ctx context.Context, id uuid.UUID) (*agenda.Registration, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+registrationColumns+`
		FROM registrations WHERE id = $1
	`, id)

	reg, err := scanRegistration(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("get registration: %w", err)
	}
	return reg, nil
}

func (s *PostgresStore) HasRegistration(ctx context.Context, agendaID uuid.UUID, role agenda.Role, identityKey string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM registrations WHERE agenda_id = $1 AND role = $2 AND identity_key = $3
		)
	`, agendaID, role, identityKey).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("has registration: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) ListRegistrations(ctx context.Context, agendaID uuid.UUID, role agenda.Role) ([]*agenda.Registration, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+registrationColumns+`
		FROM registrations WHERE agenda_id = $1 AND role = $2 ORDER BY created_at
	`, agendaID, role)
	if err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	defer rows.Close()

	var out []*agenda.Registration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, fmt.Errorf("scan registration: %w", err)
		}
		out = append(out, reg)
	}
	return out, rows.Err()
}

func (s *PostgresStore) CountJob(ctx context.Context, agendaID uuid.UUID, job string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT count(*) FROM registrations
		WHERE agenda_id = $1 AND role = 'committee' AND job = $2
	`, agendaID, job).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count job: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) SavePaymentCharge(ctx context.Context, regID uuid.UUID, p agenda.Payment) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE registrations
		SET pay_method = $2, pay_status = $3, order_id = $4, transaction_id = $5,
			pay_amount = $6, pay_expiry = $7, pay_bank = $8, pay_va_number = $9, pay_qr_url = $10
		WHERE id = $1 AND pay_status <> 'success'
	`, regID, p.Method, p.Status, p.OrderID, p.TransactionID,
		p.Amount, p.Expiry, p.Bank, p.VANumber, p.QRURL)
	if err != nil {
		return false, fmt.Errorf("save payment charge: %w", err)
	}
	return oneRowApplied(res)
}

func (s *PostgresStore) SettlePayment(ctx context.Context, regID uuid.UUID, transactionID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE registrations
		SET pay_status = 'success',
			transaction_id = CASE WHEN $2 = '' THEN transaction_id ELSE $2 END
		WHERE id = $1 AND pay_status <> 'success'
	`, regID, transactionID)
	if err != nil {
		return false, fmt.Errorf("settle payment: %w", err)
	}
	return oneRowApplied(res)
}

func (s *PostgresStore) ClosePayment(ctx context.Context, regID uuid.UUID, status agenda.PaymentStatus) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE registrations
		SET pay_status = $2
		WHERE id = $1 AND pay_status NOT IN ('success', 'canceled', 'expired', 'failed')
	`, regID, status)
	if err != nil {
		return false, fmt.Errorf("close payment: %w", err)
	}
	return oneRowApplied(res)
}

func (s *PostgresStore) RemoveGuestParticipant(ctx context.Context, regID uuid.UUID) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM registrations
		WHERE id = $1 AND role = 'participant' AND member_id IS NULL AND pay_status <> 'success'
	`, regID)
	if err != nil {
		return false, fmt.Errorf("remove guest participant: %w", err)
	}
	return oneRowApplied(res)
}

func (s *PostgresStore) MarkVisited(ctx context.Context, regID uuid.UUID, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE registrations
		SET visiting = TRUE, visit_at = $2
		WHERE id = $1 AND visiting = FALSE
	`, regID, at)
	if err != nil {
		return false, fmt.Errorf("mark visited: %w", err)
	}
	return oneRowApplied(res)
}

func (s *PostgresStore) PatchRegistrations(ctx context.Context, agendaID uuid.UUID, ids []uuid.UUID, patch FieldPatch) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	idStrings := make([]string, len(ids))
	for i, id := range ids {
		idStrings[i] = id.String()
	}

	query := `UPDATE registrations SET `
	args := []any{agendaID, pq.Array(idStrings)}
	sets := 0
	if patch.PaymentStatus != nil {
		args = append(args, *patch.PaymentStatus)
		query += fmt.Sprintf("pay_status = $%d", len(args))
		sets++
	}
	if patch.Visiting != nil {
		if sets > 0 {
			query += ", "
		}
		args = append(args, *patch.Visiting)
		query += fmt.Sprintf("visiting = $%d, visit_at = CASE WHEN $%d THEN now() ELSE NULL END", len(args), len(args))
		sets++
	}
	if sets == 0 {
		return 0, nil
	}
	query += ` WHERE agenda_id = $1 AND id = ANY($2::uuid[])`

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("patch registrations: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("patch registrations result: %w", err)
	}
	return int(affected), nil
}

const registrationColumns = `id, agenda_id, role, member_id, guest_name, guest_email, guest_phone,
	job, approved, visiting, visit_at, pay_method, pay_status, order_id, transaction_id,
	pay_amount, pay_expiry, pay_bank, pay_va_number, pay_qr_url, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAgenda(row rowScanner) (*agenda.Agenda, error) {
	var a agenda.Agenda
	var regStart, regEnd sql.NullTime
	err := row.Scan(&a.ID, &a.Title, &a.Description, &a.StartsAt, &a.EndsAt, &regStart, &regEnd,
		&a.ParticipantRule, &a.CommitteeRule, &a.FeeAmount, &a.Points, &a.RequirePayment, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	if regStart.Valid {
		a.RegStart = &regStart.Time
	}
	if regEnd.Valid {
		a.RegEnd = &regEnd.Time
	}
	return &a, nil
}

func scanRegistration(row rowScanner) (*agenda.Registration, error) {
	var reg agenda.Registration
	var memberID sql.NullString
	var guestName, guestEmail, guestPhone string
	var visitAt, payExpiry sql.NullTime

	err := row.Scan(&reg.ID, &reg.AgendaID, &reg.Role, &memberID, &guestName, &guestEmail, &guestPhone,
		&reg.Job, &reg.Approved, &reg.Visiting, &visitAt, &reg.Payment.Method, &reg.Payment.Status,
		&reg.Payment.OrderID, &reg.Payment.TransactionID, &reg.Payment.Amount, &payExpiry,
		&reg.Payment.Bank, &reg.Payment.VANumber, &reg.Payment.QRURL, &reg.CreatedAt)
	if err != nil {
		return nil, err
	}

	if memberID.Valid {
		id, err := uuid.Parse(memberID.String)
		if err != nil {
			return nil, fmt.Errorf("parse member id: %w", err)
		}
		reg.Identity = agenda.MemberIdentity(id)
	} else {
		reg.Identity = agenda.GuestIdentity(agenda.GuestProfile{
			FullName: guestName,
			Email:    guestEmail,
			Phone:    guestPhone,
		})
	}

	if visitAt.Valid {
		reg.VisitAt = &visitAt.Time
	}
	if payExpiry.Valid {
		reg.Payment.Expiry = &payExpiry.Time
	}
	return &reg, nil
}

func identityColumns(id agenda.Identity) (memberID *uuid.UUID, guest agenda.GuestProfile) {
	if mid, ok := id.MemberID(); ok {
		return &mid, agenda.GuestProfile{}
	}
	guest, _ = id.Guest()
	return nil, guest
}

func oneRowApplied(res sql.Result) (bool, error) {
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

var _ Store = (*PostgresStore)(nil)
