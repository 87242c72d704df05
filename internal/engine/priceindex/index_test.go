package priceindex_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"abgeltungsteuer-engine/internal/engine/money"
	"abgeltungsteuer-engine/internal/engine/priceindex"
)

func date(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestLookup_ExactDate(t *testing.T) {
	idx := priceindex.NewIndex()
	idx.Set(date("2023-01-01"), money.New(100))
	p, ok := idx.Lookup(date("2023-01-01"), 5)
	require.True(t, ok)
	assert.True(t, p.Equal(money.New(100)))
}

func TestLookup_NearestWithinTolerance(t *testing.T) {
	idx := priceindex.NewIndex()
	idx.Set(date("2023-01-03"), money.New(105))
	p, ok := idx.Lookup(date("2023-01-01"), 5)
	require.True(t, ok)
	assert.True(t, p.Equal(money.New(105)))
}

func TestLookup_PrefersEarlierOnEqualDelta(t *testing.T) {
	idx := priceindex.NewIndex()
	idx.Set(date("2022-12-30"), money.New(90))  // δ=2 earlier
	idx.Set(date("2023-01-03"), money.New(110)) // δ=2 later
	p, ok := idx.Lookup(date("2023-01-01"), 5)
	require.True(t, ok)
	assert.True(t, p.Equal(money.New(90)))
}

func TestLookup_OutsideToleranceIsMissing(t *testing.T) {
	idx := priceindex.NewIndex()
	idx.Set(date("2023-01-10"), money.New(100))
	_, ok := idx.Lookup(date("2023-01-01"), 5)
	assert.False(t, ok)
}

func TestSet_DuplicateDateOverwrites(t *testing.T) {
	idx := priceindex.NewIndex()
	idx.Set(date("2023-01-01"), money.New(100))
	idx.Set(date("2023-01-01"), money.New(200))
	p, ok := idx.Lookup(date("2023-01-01"), 0)
	require.True(t, ok)
	assert.True(t, p.Equal(money.New(200)))
}
