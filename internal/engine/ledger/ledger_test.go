package ledger_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"abgeltungsteuer-engine/internal/engine/ledger"
	"abgeltungsteuer-engine/internal/engine/money"
	"abgeltungsteuer-engine/internal/engine/types"
)

func date(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

func TestTotalUnits_MatchesSumOfLots(t *testing.T) {
	l := ledger.New(uuid.New())
	l.Buy(date("2020-01-01"), money.New(10), money.New(50))
	l.Buy(date("2021-01-01"), money.New(5), money.New(60))
	assert.True(t, l.TotalUnits().Equal(money.New(15)))
}

func TestSell_RoundTrip_SameUnitsSamePrice(t *testing.T) {
	l := ledger.New(uuid.New())
	l.Buy(date("2020-01-01"), money.New(10), money.New(50))
	slices, err := l.Sell(date("2023-01-01"), money.New(10), money.New(50))
	require.NoError(t, err)
	require.Len(t, slices, 1)
	assert.True(t, slices[0].GrossGain.IsZero())
	assert.True(t, l.TotalUnits().IsZero())
}

func TestSell_FIFO_TwoLots(t *testing.T) {
	l := ledger.New(uuid.New())
	l.Buy(date("2019-01-01"), money.New(30), money.New(40))
	l.Buy(date("2022-01-01"), money.New(30), money.New(60))

	slices, err := l.Sell(date("2023-06-01"), money.New(50), money.New(70))
	require.NoError(t, err)
	require.Len(t, slices, 2)

	assert.True(t, slices[0].Units.Equal(money.New(30)))
	assert.True(t, slices[0].GrossGain.Equal(money.New(900))) // 30*(70-40)

	assert.True(t, slices[1].Units.Equal(money.New(20)))
	assert.True(t, slices[1].GrossGain.Equal(money.New(200))) // 20*(70-60)

	assert.True(t, l.TotalUnits().Equal(money.New(10)))
}

func TestSell_CombinedGain_BuySellSplit(t *testing.T) {
	l := ledger.New(uuid.New())
	const u, p1, p2 = 100.0, 40.0, 70.0
	l.Buy(date("2020-01-01"), money.New(u), money.New(p1))

	first, err := l.Sell(date("2023-01-01"), money.New(30), money.New(p2))
	require.NoError(t, err)
	second, err := l.Sell(date("2023-01-02"), money.New(70), money.New(p2))
	require.NoError(t, err)

	total := money.Zero
	for _, s := range append(first, second...) {
		total = total.Add(s.GrossGain)
	}
	assert.True(t, total.Equal(money.New(u * (p2 - p1))))
}

func TestSell_InsufficientUnits(t *testing.T) {
	l := ledger.New(uuid.New())
	l.Buy(date("2020-01-01"), money.New(5), money.New(10))
	_, err := l.Sell(date("2023-01-01"), money.New(10), money.New(10))
	assert.ErrorIs(t, err, types.ErrInsufficientUnits)
}

func TestSell_PartialConsumePreservesAccruedPerUnitRatio(t *testing.T) {
	l := ledger.New(uuid.New())
	l.Buy(date("2018-01-01"), money.New(100), money.New(10))
	require.NoError(t, l.CreditAccruedToLot(0, money.New(50)))

	lotBefore, ok := l.LotAt(0)
	require.True(t, ok)
	ratioBefore := lotBefore.Accrued.Div(lotBefore.UnitsRemaining)

	_, err := l.Sell(date("2023-01-01"), money.New(40), money.New(20))
	require.NoError(t, err)

	lotAfter, ok := l.LotAt(0)
	require.True(t, ok)
	ratioAfter := lotAfter.Accrued.Div(lotAfter.UnitsRemaining)

	assert.True(t, ratioBefore.Round8().Equal(ratioAfter.Round8()))
}

func TestSimulateGain_DoesNotMutateLedger(t *testing.T) {
	l := ledger.New(uuid.New())
	l.Buy(date("2018-01-01"), money.New(100), money.New(10))
	require.NoError(t, l.CreditAccruedToLot(0, money.New(5)))

	before := l.Lots()

	gain, err := l.SimulateGain(money.New(40), money.New(20))
	require.NoError(t, err)
	assert.True(t, gain.IsPositive())

	after := l.Lots()
	require.Equal(t, len(before), len(after))
	for i := range before {
		assert.True(t, before[i].UnitsRemaining.Equal(after[i].UnitsRemaining))
		assert.True(t, before[i].Accrued.Equal(after[i].Accrued))
		assert.True(t, before[i].EntryPrice.Equal(after[i].EntryPrice))
	}
}

func TestCreditAccruedTotal_SpreadsProportionally(t *testing.T) {
	l := ledger.New(uuid.New())
	l.Buy(date("2018-01-01"), money.New(30), money.New(10))
	l.Buy(date("2019-01-01"), money.New(70), money.New(10))

	l.CreditAccruedTotal(money.New(100))

	lot0, _ := l.LotAt(0)
	lot1, _ := l.LotAt(1)
	assert.True(t, lot0.Accrued.Equal(money.New(30)))
	assert.True(t, lot1.Accrued.Equal(money.New(70)))
}
