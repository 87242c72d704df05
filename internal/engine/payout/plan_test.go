package payout_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"abgeltungsteuer-engine/internal/engine/ledger"
	"abgeltungsteuer-engine/internal/engine/money"
	"abgeltungsteuer-engine/internal/engine/payout"
	"abgeltungsteuer-engine/internal/engine/taxparams"
	"abgeltungsteuer-engine/internal/engine/types"
)

const payoutParams = `{
  "abgeltungssteuer_satz": {"2023": 0.25},
  "solidaritaetszuschlag_satz": {"2023": 0.055},
  "sparerpauschbetrag": {"2023": {"single": 1000, "joint": 2000}},
  "teilfreistellung": {"2023": {"equity-fund": 0.3}}
}`

func mustPayoutTable(t *testing.T) *taxparams.Table {
	t.Helper()
	table, err := taxparams.Load([]byte(payoutParams))
	require.NoError(t, err)
	return table
}

func date(s string) time.Time {
	d, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return d
}

// Scenario 5 (spec §8): direct equity bought 2007-05-10, 100u @ 30, current
// 100, target net 5,000 -> single proposal, 50u, tax 0, net 5,000, legacy
// exempt true.
func TestPlan_Scenario5_LegacyExemptDirectEquity(t *testing.T) {
	table := mustPayoutTable(t)
	secUUID := uuid.New()
	sec := types.Security{UUID: secUUID, Name: "Legacy Direct Equity", FundType: types.FundTypeOther, IsFund: false}

	led := ledger.New(secUUID)
	led.Buy(date("2007-05-10"), money.New(100), money.New(30))

	plan, err := payout.Plan(table, payout.Request{
		TargetNet:     money.New(5000),
		Year:          2023,
		FilingStatus:  "single",
		Ledgers:       map[uuid.UUID]*ledger.Ledger{secUUID: led},
		CurrentPrices: map[uuid.UUID]money.Amount{secUUID: money.New(100)},
		Securities:    map[uuid.UUID]types.Security{secUUID: sec},
	})
	require.NoError(t, err)
	require.Len(t, plan.Proposals, 1)

	p := plan.Proposals[0]
	assert.True(t, p.Units.Equal(money.New(50)))
	assert.True(t, p.Tax.IsZero())
	assert.True(t, p.NetProceeds.Equal(money.New(5000)))
	assert.True(t, p.LegacyExempt)
	assert.True(t, plan.AchievedNet.Equal(money.New(5000)))
	assert.True(t, plan.TaxTotal.IsZero())
}

func TestPlan_UsesAllowanceBeforeTaxedBand(t *testing.T) {
	table := mustPayoutTable(t)
	secUUID := uuid.New()
	sec := types.Security{UUID: secUUID, Name: "Equity Fund", FundType: types.FundTypeEquityFund, IsFund: true}

	led := ledger.New(secUUID)
	led.Buy(date("2020-01-01"), money.New(1000), money.New(50))

	plan, err := payout.Plan(table, payout.Request{
		TargetNet:     money.New(1000),
		Year:          2023,
		FilingStatus:  "single",
		Ledgers:       map[uuid.UUID]*ledger.Ledger{secUUID: led},
		CurrentPrices: map[uuid.UUID]money.Amount{secUUID: money.New(100)},
		Securities:    map[uuid.UUID]types.Security{secUUID: sec},
	})
	require.NoError(t, err)
	require.Len(t, plan.Proposals, 1)

	p := plan.Proposals[0]
	// Allowance of 1000, per-unit taxable gain = (100-50)*(1-0.3)=35,
	// so 1000/35 units (~28.57) are tax-free before any taxed band begins;
	// the target net of 1000 at price 100 needs only 10 of them, so the
	// whole sale stays in the allowance band and no taxed band is used.
	assert.True(t, plan.AchievedNet.GreaterThanOrEqual(money.New(999)))
	assert.True(t, p.Units.IsPositive())
}

func TestPlan_NothingSoldWhenNoLedgers(t *testing.T) {
	table := mustPayoutTable(t)

	plan, err := payout.Plan(table, payout.Request{
		TargetNet:     money.New(500),
		Year:          2023,
		FilingStatus:  "single",
		Ledgers:       map[uuid.UUID]*ledger.Ledger{},
		CurrentPrices: map[uuid.UUID]money.Amount{},
		Securities:    map[uuid.UUID]types.Security{},
	})
	require.NoError(t, err)
	assert.Empty(t, plan.Proposals)
	assert.True(t, plan.AchievedNet.IsZero())
}

func TestPlan_MultipleSecuritiesOrderedByUUID(t *testing.T) {
	table := mustPayoutTable(t)

	secA := uuid.New()
	secB := uuid.New()
	sec := map[uuid.UUID]types.Security{
		secA: {UUID: secA, Name: "A", FundType: types.FundTypeEquityFund, IsFund: true},
		secB: {UUID: secB, Name: "B", FundType: types.FundTypeEquityFund, IsFund: true},
	}

	ledA := ledger.New(secA)
	ledA.Buy(date("2020-01-01"), money.New(100), money.New(50))
	ledB := ledger.New(secB)
	ledB.Buy(date("2020-01-01"), money.New(100), money.New(50))

	plan, err := payout.Plan(table, payout.Request{
		TargetNet:    money.New(10),
		Year:         2023,
		FilingStatus: "single",
		Ledgers:      map[uuid.UUID]*ledger.Ledger{secA: ledA, secB: ledB},
		CurrentPrices: map[uuid.UUID]money.Amount{
			secA: money.New(100),
			secB: money.New(100),
		},
		Securities: sec,
	})
	require.NoError(t, err)
	require.Len(t, plan.Proposals, 1)

	first := secA
	if secB.String() < secA.String() {
		first = secB
	}
	assert.Equal(t, first, plan.Proposals[0].SecurityUUID)
}
