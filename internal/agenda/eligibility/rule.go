// Package eligibility evaluates the registration rule grammar. A rule string
// is parsed once into a closed tagged variant and evaluated by one shared
// function, so every request path agrees on the semantics.
//
// The grammar: "None", "Public", "Organizer", "Member", or
// "<attribute><op><value>" where op is one of ':' (string equality),
// '<' and '>' (numeric ordering).
package eligibility

import (
	"strconv"
	"strings"
	"time"
)

// Kind tags the rule variant.
type Kind int

const (
	KindNone Kind = iota
	KindPublic
	KindOrganizer
	KindMember
	KindCompare
)

// Op is the comparison operator of a KindCompare rule.
type Op byte

const (
	OpEq Op = ':'
	OpLt Op = '<'
	OpGt Op = '>'
)

// Rule is the parsed form. The zero value denies everyone (KindNone).
type Rule struct {
	Kind  Kind
	Attr  string
	Op    Op
	Value string
}

// Window bounds when registration is open. Outside it every rule is false.
type Window struct {
	Start time.Time
	End   time.Time
}

// Subject carries everything evaluation needs about the requester. A nil
// Profile means the subject holds no member profile (guest or anonymous).
type Subject struct {
	Organizer bool
	Profile   map[string]string
}

// Parse converts a rule string into its tagged form. Parsing is total:
// anything outside the grammar becomes KindNone, absence of eligibility
// rather than a fault.
func Parse(s string) Rule {
	switch strings.TrimSpace(s) {
	case "None", "":
		return Rule{Kind: KindNone}
	case "Public":
		return Rule{Kind: KindPublic}
	case "Organizer":
		return Rule{Kind: KindOrganizer}
	case "Member":
		return Rule{Kind: KindMember}
	}

	trimmed := strings.TrimSpace(s)
	if i := strings.IndexAny(trimmed, ":<>"); i > 0 {
		return Rule{
			Kind:  KindCompare,
			Attr:  strings.TrimSpace(trimmed[:i]),
			Op:    Op(trimmed[i]),
			Value: strings.TrimSpace(trimmed[i+1:]),
		}
	}
	return Rule{Kind: KindNone}
}

// Allows decides whether a subject may register now. It is deterministic and
// never errors, so concurrent request paths call it without coordination.
// A subject that already holds a registration for this role is always denied.
func (r Rule) Allows(sub Subject, w *Window, now time.Time, alreadyRegistered bool) bool {
	if w != nil && (now.Before(w.Start) || !now.Before(w.End)) {
		return false
	}
	if alreadyRegistered {
		return false
	}

	switch r.Kind {
	case KindPublic:
		return true
	case KindOrganizer:
		return sub.Organizer
	case KindMember:
		return sub.Profile != nil
	case KindCompare:
		return r.compare(sub)
	default:
		return false
	}
}

func (r Rule) compare(sub Subject) bool {
	if sub.Profile == nil {
		return false
	}
	got, ok := sub.Profile[r.Attr]
	if !ok {
		return false
	}

	switch r.Op {
	case OpEq:
		return got == r.Value
	case OpLt, OpGt:
		lhs, err1 := strconv.ParseFloat(got, 64)
		rhs, err2 := strconv.ParseFloat(r.Value, 64)
		if err1 != nil || err2 != nil {
			return false
		}
		if r.Op == OpLt {
			return lhs < rhs
		}
		return lhs > rhs
	default:
		return false
	}
}
