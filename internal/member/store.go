package member

import (
	"context"

	"github.com/google/uuid"
)

// Store is interface-driven so the registration service and tests can use
// the in-memory implementation without a database.
type Store interface {
	Create(ctx context.Context, m *Member) error
	FindByID(ctx context.Context, id uuid.UUID) (*Member, error)
	FindByEmail(ctx context.Context, email string) (*Member, error)
}
