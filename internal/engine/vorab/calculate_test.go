package vorab_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"abgeltungsteuer-engine/internal/engine/money"
	"abgeltungsteuer-engine/internal/engine/taxparams"
	"abgeltungsteuer-engine/internal/engine/types"
	"abgeltungsteuer-engine/internal/engine/vorab"
)

const params = `{
  "abgeltungssteuer_satz": {"2020": 0.25},
  "solidaritaetszuschlag_satz": {"2020": 0.055},
  "basiszins_vorabpauschale": {"2020": 0.0255, "2021": -0.005},
  "vorabpauschale_faktor": {"2020": 0.7},
  "teilfreistellung": {"2020": {"equity-fund": 0.3}}
}`

func mustTable(t *testing.T) *taxparams.Table {
	t.Helper()
	table, err := taxparams.Load([]byte(params))
	require.NoError(t, err)
	return table
}

func equityFundSecurity() types.Security {
	return types.Security{UUID: uuid.New(), Name: "Test Equity Fund", FundType: types.FundTypeEquityFund, IsFund: true}
}

// Scenario 1 (spec §8): 10000 -> 12000, no distributions, no in-year buy.
func TestCalculate_Scenario1(t *testing.T) {
	table := mustTable(t)
	sec := equityFundSecurity()

	result, err := vorab.Calculate(table, sec, vorab.Inputs{
		Year:       2023, // falls back to 2020 step
		ValueStart: money.New(10000),
		ValueEnd:   money.New(12000),
	})
	require.NoError(t, err)

	assert.True(t, result.Basisertrag.Equal(money.New(178.50)))
	assert.True(t, result.Gross.Equal(money.New(178.50)))
	assert.True(t, result.Taxable.Equal(money.New(124.95)))
	assert.True(t, result.Tax.Equal(money.New(32.96)))
}

// Scenario 2: distributions of 100 reduce gross to 78.50.
func TestCalculate_Scenario2(t *testing.T) {
	table := mustTable(t)
	sec := equityFundSecurity()

	result, err := vorab.Calculate(table, sec, vorab.Inputs{
		Year:          2023,
		ValueStart:    money.New(10000),
		ValueEnd:      money.New(12000),
		Distributions: money.New(100),
	})
	require.NoError(t, err)
	assert.True(t, result.Gross.Equal(money.New(78.50)))
}

// Scenario 3: in-year purchase March 15 scales gross by 10/12.
func TestCalculate_Scenario3(t *testing.T) {
	table := mustTable(t)
	sec := equityFundSecurity()
	purchase := time.Date(2023, time.March, 15, 0, 0, 0, 0, time.UTC)

	result, err := vorab.Calculate(table, sec, vorab.Inputs{
		Year:         2023,
		ValueStart:   money.New(10000),
		ValueEnd:     money.New(12000),
		PurchaseDate: &purchase,
	})
	require.NoError(t, err)
	assert.True(t, result.Gross.Equal(money.New(148.75)))
}

func TestCalculate_NegativeBasiszinsIsZero(t *testing.T) {
	table := mustTable(t)
	sec := equityFundSecurity()

	result, err := vorab.Calculate(table, sec, vorab.Inputs{
		Year:       2021,
		ValueStart: money.New(10000),
		ValueEnd:   money.New(20000),
	})
	require.NoError(t, err)
	assert.True(t, result.Tax.IsZero())
	assert.True(t, result.Gross.IsZero())
	// informational fields still populated
	assert.True(t, result.ValueStart.Equal(money.New(10000)))
	assert.True(t, result.Basiszins.IsNegative())
}

func TestCalculate_ValueEndNotGreaterIsZero(t *testing.T) {
	table := mustTable(t)
	sec := equityFundSecurity()

	result, err := vorab.Calculate(table, sec, vorab.Inputs{
		Year:       2023,
		ValueStart: money.New(10000),
		ValueEnd:   money.New(9000),
	})
	require.NoError(t, err)
	assert.True(t, result.Tax.IsZero())
}

func TestCalculate_DistributionsExceedingBasisertragNullifies(t *testing.T) {
	table := mustTable(t)
	sec := equityFundSecurity()

	result, err := vorab.Calculate(table, sec, vorab.Inputs{
		Year:          2023,
		ValueStart:    money.New(10000),
		ValueEnd:      money.New(12000),
		Distributions: money.New(500),
	})
	require.NoError(t, err)
	assert.True(t, result.Gross.IsZero())
	assert.True(t, result.Tax.IsZero())
}
