package member

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"agendahub/pkg/platform/sentinel"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const schema = `
CREATE TABLE IF NOT EXISTS members (
	id            UUID PRIMARY KEY,
	full_name     TEXT NOT NULL,
	email         TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	role          TEXT NOT NULL DEFAULT 'member',
	organizer     BOOLEAN NOT NULL DEFAULT FALSE,
	semester      INT NOT NULL DEFAULT 0,
	faculty       TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure members schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) Create(ctx context.Context, m *Member) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO members (id, full_name, email, password_hash, role, organizer, semester, faculty, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, m.ID, m.FullName, strings.ToLower(strings.TrimSpace(m.Email)), m.PasswordHash,
		m.Role, m.Organizer, m.Semester, m.Faculty, m.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert member: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id uuid.UUID) (*Member, error) {
	return s.findBy(ctx, "id = $1", id)
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (*Member, error) {
	return s.findBy(ctx, "email = $1", strings.ToLower(strings.TrimSpace(email)))
}

func (s *PostgresStore) findBy(ctx context.Context, where string, arg any) (*Member, error) {
	var m Member
	err := s.db.QueryRowContext(ctx, `
		SELECT id, full_name, email, password_hash, role, organizer, semester, faculty, created_at
		FROM members WHERE `+where,
		arg,
	).Scan(&m.ID, &m.FullName, &m.Email, &m.PasswordHash, &m.Role, &m.Organizer,
		&m.Semester, &m.Faculty, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find member: %w", err)
	}
	return &m, nil
}

var _ Store = (*PostgresStore)(nil)
