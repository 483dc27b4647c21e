package agenda

import (
	"encoding/json"
	"strings"

	"github.com/google/uuid"
)

// GuestProfile is the embedded identity of an unauthenticated participant.
type GuestProfile struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Phone    string `json:"phone,omitempty"`
}

// Identity is a closed union: a registered member reference or an embedded
// guest profile. Matching logic lives here and nowhere else; duplicate
// detection, storage keys, and webhook cleanup all go through Key and IsGuest.
type Identity struct {
	memberID uuid.UUID
	guest    *GuestProfile
}

// MemberIdentity references a registered member by stable id.
func MemberIdentity(id uuid.UUID) Identity {
	return Identity{memberID: id}
}

// GuestIdentity embeds a guest profile. The email is normalized once so every
// comparison site agrees on what "same guest" means.
func GuestIdentity(p GuestProfile) Identity {
	p.Email = NormalizeEmail(p.Email)
	return Identity{guest: &p}
}

// NormalizeEmail is the canonical form used for guest identity matching.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IsGuest reports whether the identity is an embedded guest profile.
func (i Identity) IsGuest() bool { return i.guest != nil }

// MemberID returns the member reference, if any.
func (i Identity) MemberID() (uuid.UUID, bool) {
	if i.guest != nil || i.memberID == uuid.Nil {
		return uuid.Nil, false
	}
	return i.memberID, true
}

// Guest returns the embedded guest profile, if any.
func (i Identity) Guest() (GuestProfile, bool) {
	if i.guest == nil {
		return GuestProfile{}, false
	}
	return *i.guest, true
}

// Key is the uniqueness key within one agenda collection. Generated entry ids
// are always unique, so they cannot prevent duplicates; the identity value
// itself must.
func (i Identity) Key() string {
	if i.guest != nil {
		return "guest:" + i.guest.Email
	}
	return "member:" + i.memberID.String()
}

// Zero reports whether the identity is unset.
func (i Identity) Zero() bool {
	return i.guest == nil && i.memberID == uuid.Nil
}

type identityJSON struct {
	MemberID string        `json:"member_id,omitempty"`
	Guest    *GuestProfile `json:"guest,omitempty"`
}

func (i Identity) MarshalJSON() ([]byte, error) {
	out := identityJSON{Guest: i.guest}
	if i.guest == nil && i.memberID != uuid.Nil {
		out.MemberID = i.memberID.String()
	}
	return json.Marshal(out)
}

func (i *Identity) UnmarshalJSON(data []byte) error {
	var in identityJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	if in.Guest != nil {
		*i = GuestIdentity(*in.Guest)
		return nil
	}
	if in.MemberID != "" {
		id, err := uuid.Parse(in.MemberID)
		if err != nil {
			return err
		}
		*i = MemberIdentity(id)
	}
	return nil
}
