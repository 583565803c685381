// Package sample provides the seeded random values used to synthesize the
// fixture: uniform numbers, fake street names and addresses, and sampling
// from slices with or without replacement.
package sample

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/shopspring/decimal"
)

// ErrSampleTooLarge is returned when more distinct items are requested than exist
var ErrSampleTooLarge = errors.New("sample larger than population")

// Source is a reproducible stream of random values. Not safe for concurrent use.
type Source struct {
	seed uint64
	rng  *rand.Rand
	fake *gofakeit.Faker
}

// New returns a Source for seed. A zero seed is replaced with a random one,
// readable through Seed so the run can be repeated.
func New(seed uint64) *Source {
	for seed == 0 {
		seed = rand.Uint64()
	}
	return &Source{
		seed: seed,
		rng:  rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		fake: gofakeit.New(seed),
	}
}

// Seed returns the effective seed
func (s *Source) Seed() uint64 {
	return s.seed
}

// IntRange returns a uniform integer in [lo, hi]
func (s *Source) IntRange(lo, hi int) int {
	if hi <= lo {
		return lo
	}
	return lo + s.rng.IntN(hi-lo+1)
}

// Float64Range returns a uniform float in [lo, hi]
func (s *Source) Float64Range(lo, hi float64) float64 {
	if hi <= lo {
		return lo
	}
	v := lo + s.rng.Float64()*(hi-lo)
	if v > hi {
		v = hi
	}
	return v
}

// Amount returns a uniform currency amount in [lo, hi] at cent resolution
func (s *Source) Amount(lo, hi decimal.Decimal) decimal.Decimal {
	loCents := lo.Shift(2).Ceil().IntPart()
	hiCents := hi.Shift(2).Floor().IntPart()
	return decimal.New(int64(s.IntRange(int(loCents), int(hiCents))), -2)
}

// ClockTime returns "H:MM" with the hour in [loHour, hiHour] and any minute
func (s *Source) ClockTime(loHour, hiHour int) string {
	return fmt.Sprintf("%d:%02d", s.IntRange(loHour, hiHour), s.IntRange(0, 59))
}

// StreetName returns a fake street name
func (s *Source) StreetName() string {
	return s.fake.StreetName()
}

// Address returns a fake single-line postal address
func (s *Source) Address() string {
	return s.fake.Address().Address
}

// Pick returns a uniformly chosen element. items must not be empty.
func Pick[T any](s *Source, items []T) T {
	return items[s.rng.IntN(len(items))]
}

// Sample returns k distinct elements of items in random order
func Sample[T any](s *Source, items []T, k int) ([]T, error) {
	if k < 0 {
		return nil, fmt.Errorf("negative sample size %d", k)
	}
	if k > len(items) {
		return nil, fmt.Errorf("%w: want %d, have %d", ErrSampleTooLarge, k, len(items))
	}

	// Partial Fisher-Yates over a copy
	pool := make([]T, len(items))
	copy(pool, items)
	for i := 0; i < k; i++ {
		j := i + s.rng.IntN(len(pool)-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
	return pool[:k], nil
}
