package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scheduler/internal/interval"
)

func TestParseWeekday_Entity(t *testing.T) {
	tests := []struct {
		input    string
		expected Weekday
		wantErr  bool
	}{
		{"M", Monday, false},
		{"t", Tuesday, false},
		{"W", Wednesday, false},
		{"th", Thursday, false},
		{"Friday", Friday, false},
		{"Sa", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseWeekday(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestWeekday_Strings(t *testing.T) {
	assert.Equal(t, "Th", Thursday.Token())
	assert.Equal(t, "Thursday", Thursday.String())
	assert.Equal(t, "Weekday(9)", Weekday(9).String())
	assert.False(t, Weekday(0).Valid())
}

func TestGroup_Add(t *testing.T) {
	a := NewStudent("Ann", 7, "middle", 60)
	b := NewStudent("Bob", 7, "middle", 60)
	g := NewGroup("Social", "middle", 60)

	require.NoError(t, g.Add(a))
	require.NoError(t, g.Add(b))
	require.NoError(t, g.Add(a), "re-adding is a no-op")

	assert.Len(t, g.Members, 2)
	assert.Same(t, g, a.Group)
	assert.Equal(t, "Group - Social [Ann, Bob]", g.String())

	other := NewGroup("Reading", "middle", 30)
	err := other.Add(a)
	assert.ErrorIs(t, err, ErrAlreadyGrouped)
	assert.Empty(t, other.Members)
}

func TestStudent_AddOption(t *testing.T) {
	s := NewStudent("Ann", 7, "middle", 60)
	s.AddOption(Tuesday, interval.Interval{Begin: 590, End: 660})

	require.Len(t, s.Options, 1)
	assert.Equal(t, Tuesday, s.Options[0].Data)
	assert.Equal(t, KindStudent, s.Kind())
	assert.Equal(t, "Ann", s.Label())
	assert.Equal(t, `<Student("Ann", grade=7, group=none)>`, s.String())
}
