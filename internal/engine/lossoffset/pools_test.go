package lossoffset_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"abgeltungsteuer-engine/internal/engine/lossoffset"
	"abgeltungsteuer-engine/internal/engine/money"
)

// Scenario 7 (spec §8): general loss 1000, then equity gain 800 -> residual
// 0, carry_general 200 after year end.
func TestPools_Scenario7_EquityGainDrawsGeneralPool(t *testing.T) {
	var pools lossoffset.Pools
	pools.AddLoss(money.New(1000), false)

	residual := pools.AddGain(money.New(800), true)
	assert.True(t, residual.IsZero())

	report := pools.YearEnd()
	assert.True(t, report.CarryGeneral.Equal(money.New(200)))
	assert.True(t, report.ConsumedGeneral.Equal(money.New(800)))
	assert.True(t, report.CarryEquity.IsZero())
}

func TestPools_EquityGainDrawsEquityPoolFirst(t *testing.T) {
	var pools lossoffset.Pools
	pools.AddLoss(money.New(100), true)
	pools.AddLoss(money.New(500), false)

	residual := pools.AddGain(money.New(300), true)
	assert.True(t, residual.IsZero())

	report := pools.YearEnd()
	assert.True(t, report.CarryEquity.IsZero())
	assert.True(t, report.ConsumedEquity.Equal(money.New(100)))
	assert.True(t, report.ConsumedGeneral.Equal(money.New(200)))
	assert.True(t, report.CarryGeneral.Equal(money.New(300)))
}

func TestPools_NonEquityGainNeverDrawsEquityPool(t *testing.T) {
	var pools lossoffset.Pools
	pools.AddLoss(money.New(1000), true)

	residual := pools.AddGain(money.New(500), false)
	assert.True(t, residual.Equal(money.New(500)))

	report := pools.YearEnd()
	assert.True(t, report.CarryEquity.Equal(money.New(1000)))
	assert.True(t, report.ConsumedGeneral.IsZero())
}

func TestPools_GainExceedingPoolsLeavesResidual(t *testing.T) {
	var pools lossoffset.Pools
	pools.AddLoss(money.New(100), false)

	residual := pools.AddGain(money.New(900), false)
	assert.True(t, residual.Equal(money.New(800)))

	report := pools.YearEnd()
	assert.True(t, report.CarryGeneral.IsZero())
	assert.True(t, report.ConsumedGeneral.Equal(money.New(100)))
}

func TestPools_NegativeLossAmountTakenAsAbsolute(t *testing.T) {
	var pools lossoffset.Pools
	pools.AddLoss(money.New(-250), false)

	report := pools.YearEnd()
	assert.True(t, report.CarryGeneral.Equal(money.New(250)))
}

func TestPools_NonPositiveGainIsNoop(t *testing.T) {
	var pools lossoffset.Pools
	pools.AddLoss(money.New(100), false)

	residual := pools.AddGain(money.Zero, false)
	assert.True(t, residual.IsZero())

	report := pools.YearEnd()
	assert.True(t, report.ConsumedGeneral.IsZero())
	assert.True(t, report.CarryGeneral.Equal(money.New(100)))
}
