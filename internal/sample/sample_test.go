package sample

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_SameSeedSameStream(t *testing.T) {
	a, b := New(7), New(7)
	for i := 0; i < 50; i++ {
		assert.Equal(t, a.IntRange(0, 1000), b.IntRange(0, 1000))
	}
	assert.Equal(t, a.StreetName(), b.StreetName())
	assert.Equal(t, a.Address(), b.Address())
}

func TestNew_ZeroSeedIsReplaced(t *testing.T) {
	s := New(0)
	assert.NotZero(t, s.Seed())
}

func TestIntRange_Inclusive(t *testing.T) {
	s := New(1)
	seen := map[int]bool{}
	for i := 0; i < 2000; i++ {
		v := s.IntRange(15, 120)
		require.GreaterOrEqual(t, v, 15)
		require.LessOrEqual(t, v, 120)
		seen[v] = true
	}
	assert.True(t, seen[15], "lower bound should be reachable")
	assert.True(t, seen[120], "upper bound should be reachable")
	assert.Equal(t, 3, s.IntRange(3, 3))
}

func TestFloat64Range(t *testing.T) {
	s := New(2)
	for i := 0; i < 1000; i++ {
		v := s.Float64Range(113.8, 114.4)
		require.GreaterOrEqual(t, v, 113.8)
		require.LessOrEqual(t, v, 114.4)
	}
}

func TestAmount_TwoDecimals(t *testing.T) {
	s := New(3)
	lo, hi := decimal.RequireFromString("5.00"), decimal.RequireFromString("100.00")
	for i := 0; i < 1000; i++ {
		v := s.Amount(lo, hi)
		require.True(t, v.GreaterThanOrEqual(lo), "amount %s below range", v)
		require.True(t, v.LessThanOrEqual(hi), "amount %s above range", v)
		require.True(t, v.Equal(v.Round(2)), "amount %s has more than two decimals", v)
	}
}

func TestClockTime(t *testing.T) {
	s := New(4)
	for i := 0; i < 200; i++ {
		assert.Regexp(t, `^(4|5|6):[0-5][0-9]$`, s.ClockTime(4, 6))
	}
}

func TestSample_Distinct(t *testing.T) {
	s := New(5)
	items := []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}

	got, err := Sample(s, items, 10)
	require.NoError(t, err)
	assert.ElementsMatch(t, items, got)

	got, err = Sample(s, items, 4)
	require.NoError(t, err)
	assert.Len(t, got, 4)
	seen := map[int]bool{}
	for _, v := range got {
		assert.False(t, seen[v], "duplicate %d", v)
		seen[v] = true
	}

	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, items, "input must not be reordered")
}

func TestSample_TooLarge(t *testing.T) {
	_, err := Sample(New(6), []string{"a", "b"}, 3)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSampleTooLarge))
}

func TestPick(t *testing.T) {
	s := New(8)
	items := []string{"Express", "Regular"}
	counts := map[string]int{}
	for i := 0; i < 500; i++ {
		counts[Pick(s, items)]++
	}
	assert.Len(t, counts, 2)
}
