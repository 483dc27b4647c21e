package eligibility

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in   string
		want Rule
	}{
		{"None", Rule{Kind: KindNone}},
		{"Public", Rule{Kind: KindPublic}},
		{"Organizer", Rule{Kind: KindOrganizer}},
		{"Member", Rule{Kind: KindMember}},
		{"semester>3", Rule{Kind: KindCompare, Attr: "semester", Op: OpGt, Value: "3"}},
		{"semester<8", Rule{Kind: KindCompare, Attr: "semester", Op: OpLt, Value: "8"}},
		{"faculty:engineering", Rule{Kind: KindCompare, Attr: "faculty", Op: OpEq, Value: "engineering"}},
		{" semester > 3 ", Rule{Kind: KindCompare, Attr: "semester", Op: OpGt, Value: "3"}},
		{"", Rule{Kind: KindNone}},
		{"garbage", Rule{Kind: KindNone}},
		{":orphan", Rule{Kind: KindNone}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Parse(tt.in), "rule %q", tt.in)
	}
}

func TestAllowsLiterals(t *testing.T) {
	now := time.Now()
	member := Subject{Profile: map[string]string{"semester": "4"}}
	guest := Subject{}
	organizer := Subject{Organizer: true, Profile: map[string]string{}}

	t.Run("None denies everyone", func(t *testing.T) {
		rule := Parse("None")
		assert.False(t, rule.Allows(member, nil, now, false))
		assert.False(t, rule.Allows(organizer, nil, now, false))
		assert.False(t, rule.Allows(guest, nil, now, false))
	})

	t.Run("Public admits anyone", func(t *testing.T) {
		rule := Parse("Public")
		assert.True(t, rule.Allows(member, nil, now, false))
		assert.True(t, rule.Allows(guest, nil, now, false))
	})

	t.Run("Organizer requires the flag", func(t *testing.T) {
		rule := Parse("Organizer")
		assert.True(t, rule.Allows(organizer, nil, now, false))
		assert.False(t, rule.Allows(member, nil, now, false))
	})

	t.Run("Member requires a profile", func(t *testing.T) {
		rule := Parse("Member")
		assert.True(t, rule.Allows(member, nil, now, false))
		assert.False(t, rule.Allows(guest, nil, now, false))
	})
}

func TestAllowsCompare(t *testing.T) {
	now := time.Now()
	rule := Parse("semester>3")

	t.Run("numeric greater-than", func(t *testing.T) {
		assert.True(t, rule.Allows(Subject{Profile: map[string]string{"semester": "4"}}, nil, now, false))
		assert.False(t, rule.Allows(Subject{Profile: map[string]string{"semester": "3"}}, nil, now, false))
	})

	t.Run("missing attribute denies", func(t *testing.T) {
		assert.False(t, rule.Allows(Subject{Profile: map[string]string{}}, nil, now, false))
	})

	t.Run("non-numeric value denies ordering", func(t *testing.T) {
		assert.False(t, rule.Allows(Subject{Profile: map[string]string{"semester": "four"}}, nil, now, false))
	})

	t.Run("nil profile denies", func(t *testing.T) {
		assert.False(t, rule.Allows(Subject{}, nil, now, false))
	})

	t.Run("string equality", func(t *testing.T) {
		eq := Parse("faculty:engineering")
		assert.True(t, eq.Allows(Subject{Profile: map[string]string{"faculty": "engineering"}}, nil, now, false))
		assert.False(t, eq.Allows(Subject{Profile: map[string]string{"faculty": "law"}}, nil, now, false))
	})
}

func TestAllowsWindow(t *testing.T) {
	now := time.Now()
	member := Subject{Profile: map[string]string{"semester": "4"}}
	rule := Parse("semester>3")

	t.Run("inside window admits", func(t *testing.T) {
		w := &Window{Start: now.Add(-time.Hour), End: now.Add(time.Hour)}
		assert.True(t, rule.Allows(member, w, now, false))
	})

	t.Run("before start denies regardless of rule", func(t *testing.T) {
		w := &Window{Start: now.Add(time.Hour), End: now.Add(2 * time.Hour)}
		assert.False(t, rule.Allows(member, w, now, false))
		assert.False(t, Parse("Public").Allows(member, w, now, false))
	})

	t.Run("at or after end denies", func(t *testing.T) {
		w := &Window{Start: now.Add(-2 * time.Hour), End: now}
		assert.False(t, rule.Allows(member, w, now, false))
	})

	t.Run("None denies inside window too", func(t *testing.T) {
		w := &Window{Start: now.Add(-time.Hour), End: now.Add(time.Hour)}
		assert.False(t, Parse("None").Allows(member, w, now, false))
	})
}

func TestAllowsAlreadyRegistered(t *testing.T) {
	now := time.Now()
	member := Subject{Profile: map[string]string{"semester": "4"}}

	assert.False(t, Parse("Public").Allows(member, nil, now, true))
	assert.False(t, Parse("semester>3").Allows(member, nil, now, true))
}
