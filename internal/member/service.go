package member

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"agendahub/pkg/platform/sentinel"

	dErrors "agendahub/pkg/domain-errors"
)

// Service covers the slice of member management the registration core needs:
// login for member-implicit identity, and lookups for batch import.
type Service struct {
	store  Store
	tokens TokenIssuer
	logger *slog.Logger
}

// TokenIssuer mints access tokens after a successful login.
type TokenIssuer interface {
	GenerateToken(memberID uuid.UUID, role string) (string, error)
}

func NewService(store Store, tokens TokenIssuer, logger *slog.Logger) *Service {
	return &Service{store: store, tokens: tokens, logger: logger}
}

// Login verifies credentials and returns a bearer token. A wrong password and
// an unknown email are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (string, *Member, error) {
	m, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return "", nil, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
		}
		return "", nil, dErrors.Wrap(err, dErrors.CodeInternal, "member lookup failed")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(m.PasswordHash), []byte(password)); err != nil {
		return "", nil, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
	}

	token, err := s.tokens.GenerateToken(m.ID, m.Role)
	if err != nil {
		return "", nil, dErrors.Wrap(err, dErrors.CodeInternal, "token generation failed")
	}

	s.logger.InfoContext(ctx, "member logged in", "member_id", m.ID)
	return token, m, nil
}

// Register creates a member account with a hashed password.
func (s *Service) Register(ctx context.Context, m *Member, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "password hashing failed")
	}
	m.PasswordHash = string(hash)

	if err := s.store.Create(ctx, m); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return dErrors.New(dErrors.CodeConflict, "email already registered")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "member creation failed")
	}
	return nil
}

// Resolve finds a member by id for authenticated request paths.
func (s *Service) Resolve(ctx context.Context, id uuid.UUID) (*Member, error) {
	m, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "member not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "member lookup failed")
	}
	return m, nil
}

// ResolveEmail finds a member by email for batch import items.
func (s *Service) ResolveEmail(ctx context.Context, email string) (*Member, error) {
	m, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "member not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "member lookup failed")
	}
	return m, nil
}
