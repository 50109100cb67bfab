package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/post-scheduler/internal/internaltypes"
)

func day(s string) time.Time {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestParseTier(t *testing.T) {
	for in, want := range map[string]Tier{"P1": P1, "p2": P2, " P3 ": P3, "1": P1, "3": P3} {
		got, err := ParseTier(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	for _, in := range []string{"", "P4", "high", "0"} {
		_, err := ParseTier(in)
		assert.ErrorIs(t, err, internaltypes.ErrUnknownPriority, in)
		assert.ErrorIs(t, err, internaltypes.ErrInvalidInput, in)
	}
}

func TestTableSizes(t *testing.T) {
	assert.Len(t, Table(P1), 6)
	assert.Len(t, Table(P2), 12)
	assert.Len(t, Table(P3), 10)
}

func TestHoursAreSorted(t *testing.T) {
	r, err := For(P3)
	require.NoError(t, err)
	assert.Equal(t, []int{0, 1, 21, 22, 23}, r.Hours(time.Sunday))
	assert.Equal(t, []int{21, 22, 23}, r.Hours(time.Saturday))
	assert.Equal(t, []int{0, 1}, r.Hours(time.Monday))
	assert.Empty(t, r.Hours(time.Wednesday))
}

func TestCutoffs(t *testing.T) {
	tests := []struct {
		tier Tier
		wd   time.Weekday
		want int
		ok   bool
	}{
		{P1, time.Saturday, 18, true},
		{P1, time.Sunday, 18, true},
		{P1, time.Monday, 0, false},
		{P2, time.Monday, 18, true},
		{P2, time.Friday, 18, true},
		{P2, time.Saturday, 21, true},
		{P2, time.Sunday, 21, true},
		{P2, time.Wednesday, 0, false},
		{P3, time.Saturday, 23, true},
		{P3, time.Sunday, 23, true},
		{P3, time.Monday, 1, true},
		{P3, time.Tuesday, 0, false},
	}
	for _, tt := range tests {
		r, err := For(tt.tier)
		require.NoError(t, err)
		got, ok := r.Cutoff(tt.wd)
		assert.Equal(t, tt.ok, ok, "%s %s", tt.tier, tt.wd)
		assert.Equal(t, tt.want, got, "%s %s", tt.tier, tt.wd)
	}
}

func TestPredicates(t *testing.T) {
	mon := day("2024-01-01")
	assert.False(t, IsWeekend(mon))
	assert.True(t, IsMondayOrFriday(mon))
	assert.True(t, IsWeekend(day("2024-01-06")))
	assert.True(t, IsWeekend(day("2024-01-07")))
	assert.True(t, IsMondayOrFriday(day("2024-01-05")))
	assert.False(t, IsMondayOrFriday(day("2024-01-03")))

	assert.Equal(t, day("2024-01-06"), NextSaturday(mon.Add(10*time.Hour)))
	assert.Equal(t, day("2024-01-13"), NextSaturday(day("2024-01-06")))
	assert.Equal(t, day("2024-01-05"), NextFriday(mon))
	assert.Equal(t, day("2024-01-08"), NextMonday(day("2024-01-07")))
	assert.Equal(t, day("2024-01-08"), NextMonday(mon))
}

func TestSuccessor(t *testing.T) {
	tests := []struct {
		tier Tier
		from string
		want string
	}{
		{P1, "2024-01-06", "2024-01-07"},
		{P1, "2024-01-07", "2024-01-13"},
		{P1, "2024-01-03", "2024-01-06"},
		{P2, "2024-01-01", "2024-01-05"},
		{P2, "2024-01-05", "2024-01-06"},
		{P2, "2024-01-06", "2024-01-07"},
		{P2, "2024-01-07", "2024-01-08"},
		{P2, "2024-01-02", "2024-01-05"},
		{P3, "2024-01-06", "2024-01-07"},
		{P3, "2024-01-07", "2024-01-08"},
		{P3, "2024-01-08", "2024-01-13"},
		{P3, "2024-01-10", "2024-01-13"},
	}
	for _, tt := range tests {
		r, err := For(tt.tier)
		require.NoError(t, err)
		got, err := r.Successor(day(tt.from).Add(5 * time.Hour))
		require.NoError(t, err)
		assert.Equal(t, day(tt.want), got, "%s from %s", tt.tier, tt.from)
	}
}

func TestSuccessorScanIsBounded(t *testing.T) {
	r := Rules{Tier: P3}
	_, err := r.Successor(day("2024-01-06"))
	assert.ErrorIs(t, err, internaltypes.ErrAllocationExhausted)

	r = Rules{Tier: P1, slots: hours(time.Saturday, 16), successor: weekendSuccessor}
	_, err = r.Successor(day("2024-01-06"))
	assert.ErrorIs(t, err, internaltypes.ErrAllocationExhausted)
}

func TestAllows(t *testing.T) {
	r, err := For(P1)
	require.NoError(t, err)
	assert.True(t, r.Allows(At(day("2024-01-06"), 16)))
	assert.False(t, r.Allows(At(day("2024-01-06"), 19)))
	assert.False(t, r.Allows(At(day("2024-01-06"), 16).Add(time.Minute)))
	assert.False(t, r.Allows(At(day("2024-01-05"), 16)))
}

func TestForUnknownTier(t *testing.T) {
	_, err := For(Tier("P9"))
	assert.ErrorIs(t, err, internaltypes.ErrUnknownPriority)
}
