// Package priceindex implements the nearest-date price lookup (§4.E): an
// exact-date hit, or a bounded search outward by calendar day.
package priceindex

import (
	"time"

	"abgeltungsteuer-engine/internal/engine/money"
)

// DefaultMaxDelta is the tolerance used by the allocator (§4.D): ±5 days.
const DefaultMaxDelta = 5

func dateKey(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Index is a per-security date->price series. Construction order is not
// preserved; duplicate dates overwrite, matching spec §3.
type Index struct {
	byDate map[time.Time]money.Amount
}

// NewIndex builds an empty index.
func NewIndex() *Index {
	return &Index{byDate: map[time.Time]money.Amount{}}
}

// Set records (or overwrites) the price for a calendar date.
func (idx *Index) Set(date time.Time, price money.Amount) {
	idx.byDate[dateKey(date)] = price
}

// Lookup returns the exact-date price if present, otherwise searches
// target-δ then target+δ for δ = 1..maxDelta, returning the first hit. Ties
// at equal δ prefer the earlier date. Returns ok=false if nothing is found
// within the tolerance.
func (idx *Index) Lookup(target time.Time, maxDelta int) (money.Amount, bool) {
	key := dateKey(target)
	if p, ok := idx.byDate[key]; ok {
		return p, true
	}
	for delta := 1; delta <= maxDelta; delta++ {
		earlier := key.AddDate(0, 0, -delta)
		if p, ok := idx.byDate[earlier]; ok {
			return p, true
		}
		later := key.AddDate(0, 0, delta)
		if p, ok := idx.byDate[later]; ok {
			return p, true
		}
	}
	return money.Zero, false
}

// LookupDefault is Lookup with DefaultMaxDelta.
func (idx *Index) LookupDefault(target time.Time) (money.Amount, bool) {
	return idx.Lookup(target, DefaultMaxDelta)
}
