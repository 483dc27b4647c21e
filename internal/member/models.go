// Package member holds registered member profiles. The registration core
// only needs enough of a member to resolve identity and evaluate eligibility
// rules; full profile management stays out of this service.
package member

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

type Member struct {
	ID           uuid.UUID `json:"id"`
	FullName     string    `json:"full_name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	Organizer    bool      `json:"organizer"`
	Semester     int       `json:"semester"`
	Faculty      string    `json:"faculty,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Attributes flattens the profile for eligibility rule comparison. Rule
// attributes resolve against these keys.
func (m *Member) Attributes() map[string]string {
	return map[string]string{
		"full_name": m.FullName,
		"email":     m.Email,
		"role":      m.Role,
		"semester":  strconv.Itoa(m.Semester),
		"faculty":   m.Faculty,
	}
}
