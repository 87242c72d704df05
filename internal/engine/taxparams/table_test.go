package taxparams_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"abgeltungsteuer-engine/internal/engine/money"
	"abgeltungsteuer-engine/internal/engine/taxparams"
	"abgeltungsteuer-engine/internal/engine/types"
)

const testDoc = `{
  "_comment": "test fixture",
  "abgeltungssteuer_satz": {"_comment": "base rate", "2020": 0.25},
  "solidaritaetszuschlag_satz": {"2020": 0.055},
  "basiszins_vorabpauschale": {"2020": 0.0007, "2021": -0.0015, "2023": 0.0255},
  "vorabpauschale_faktor": {"2020": 0.7},
  "kirchensteuer_saetze": {"2020": {"default": 0.09, "by": 0.08}},
  "sparerpauschbetrag": {"2022": {"single": 801}, "2023": {"single": 1000, "joint": 2000}},
  "teilfreistellung": {"2020": {"equity-fund": 0.3, "mixed-fund": 0.15}}
}`

func mustLoad(t *testing.T) *taxparams.Table {
	t.Helper()
	table, err := taxparams.Load([]byte(testDoc))
	require.NoError(t, err)
	return table
}

func TestGetScalar_UnknownParameter(t *testing.T) {
	table := mustLoad(t)
	_, err := table.GetScalar("not_a_real_param", 2023)
	assert.ErrorIs(t, err, types.ErrUnknownParameter)
}

func TestGetScalar_NoValidEntry(t *testing.T) {
	table := mustLoad(t)
	_, err := table.GetScalar(taxparams.ParamAbgeltungssteuerSatz, 2019)
	assert.ErrorIs(t, err, types.ErrNoValidEntry)
}

func TestGetScalar_StepFunction(t *testing.T) {
	table := mustLoad(t)

	v2021, err := table.GetScalar(taxparams.ParamBasiszinsVorabpauschale, 2021)
	require.NoError(t, err)
	assert.True(t, v2021.IsNegative())

	// 2022 has no explicit entry; falls back to the greatest year <= 2022, i.e. 2021.
	v2022, err := table.GetScalar(taxparams.ParamBasiszinsVorabpauschale, 2022)
	require.NoError(t, err)
	assert.True(t, v2022.Equal(v2021))

	v2023, err := table.GetScalar(taxparams.ParamBasiszinsVorabpauschale, 2023)
	require.NoError(t, err)
	assert.False(t, v2023.Equal(v2021))
}

func TestGetScalar_Monotone(t *testing.T) {
	table := mustLoad(t)
	years := table.Years(taxparams.ParamBasiszinsVorabpauschale)
	require.Len(t, years, 3)
	assert.Equal(t, []int{2020, 2021, 2023}, years)
}

func TestCombinedTaxRate_NoChurch(t *testing.T) {
	table := mustLoad(t)
	rate, err := table.CombinedTaxRate(2020, false, "default")
	require.NoError(t, err)
	// 0.25 + 0.25*0.055 = 0.26375
	expected, err := money.NewFromString("0.26375")
	require.NoError(t, err)
	assert.True(t, rate.Round8().Equal(expected))
}

func TestCombinedTaxRate_WithChurch(t *testing.T) {
	table := mustLoad(t)
	withChurch, err := table.CombinedTaxRate(2020, true, "by")
	require.NoError(t, err)
	withoutChurch, err := table.CombinedTaxRate(2020, false, "by")
	require.NoError(t, err)
	assert.True(t, withChurch.GreaterThan(withoutChurch))
}

func TestChurchRate_FallsBackToDefault(t *testing.T) {
	table := mustLoad(t)
	rate, err := table.ChurchRate(2020, "unknown-region")
	require.NoError(t, err)
	expected, err := money.NewFromString("0.09")
	require.NoError(t, err)
	assert.True(t, rate.Equal(expected))
}

func TestAllowance_ByFilingStatus(t *testing.T) {
	table := mustLoad(t)
	single, err := table.Allowance(2023, "single")
	require.NoError(t, err)
	joint, err := table.Allowance(2023, "joint")
	require.NoError(t, err)
	assert.True(t, joint.GreaterThan(single))
}

func TestAllowance_StepsAcrossYears(t *testing.T) {
	table := mustLoad(t)
	// No "joint" entry until 2023; querying 2022 for "joint" has a step
	// entry but no such filing status -> NoValidEntry.
	_, err := table.Allowance(2022, "joint")
	assert.True(t, errors.Is(err, types.ErrNoValidEntry))
}

func TestPartialExemption_UnlistedFundTypeIsZero(t *testing.T) {
	table := mustLoad(t)
	rate, err := table.PartialExemption(2020, types.FundTypeOther)
	require.NoError(t, err)
	assert.True(t, rate.IsZero())
}

