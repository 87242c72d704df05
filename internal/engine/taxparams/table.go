// Package taxparams implements the year-indexed step-function lookup for
// the engine's tax parameters (§4.A). Load parses the JSON document into an
// immutable Table; the package keeps no process-wide cache, so every Load
// call (config.Load in the CLI) parses the document afresh and returns a
// new Table.
package taxparams

import (
	"fmt"
	"sort"

	"abgeltungsteuer-engine/internal/engine/money"
	"abgeltungsteuer-engine/internal/engine/types"
)

// ChurchRates maps a federal-state region to its Kirchensteuer rate; the
// "default" key is used when the caller's region is unknown (§4.A, §9.4).
type ChurchRates map[string]money.Amount

// AllowanceByFiling maps filing status ("single", "joint") to the annual
// Sparerpauschbetrag.
type AllowanceByFiling map[string]money.Amount

// PartialExemptionByFundType maps a fund-type tag to its Teilfreistellung
// ratio in [0, 1].
type PartialExemptionByFundType map[types.FundType]money.Amount

// Table is the immutable, year-stepped parameter store. Each parameter has
// its own step series: scalars for simple parameters, and the maps above for
// the structured ones.
type Table struct {
	scalarSteps map[string]map[int]money.Amount
	churchSteps map[int]ChurchRates
	allowanceSteps map[int]AllowanceByFiling
	exemptionSteps map[int]PartialExemptionByFundType
}

// Recognised parameter names (§4.A).
const (
	ParamAbgeltungssteuerSatz      = "abgeltungssteuer_satz"
	ParamSolidaritaetszuschlagSatz = "solidaritaetszuschlag_satz"
	ParamKirchensteuerSaetze       = "kirchensteuer_saetze"
	ParamSparerpauschbetrag        = "sparerpauschbetrag"
	ParamBasiszinsVorabpauschale   = "basiszins_vorabpauschale"
	ParamVorabpauschaleFaktor      = "vorabpauschale_faktor"
	ParamTeilfreistellung          = "teilfreistellung"
)

// scalarParams is the set of parameter names stored as a plain year-stepped
// scalar rather than one of the structured shapes.
var scalarParams = map[string]bool{
	ParamAbgeltungssteuerSatz:      true,
	ParamSolidaritaetszuschlagSatz: true,
	ParamBasiszinsVorabpauschale:   true,
	ParamVorabpauschaleFaktor:      true,
}

func newTable() *Table {
	return &Table{
		scalarSteps:    map[string]map[int]money.Amount{},
		churchSteps:    map[int]ChurchRates{},
		allowanceSteps: map[int]AllowanceByFiling{},
		exemptionSteps: map[int]PartialExemptionByFundType{},
	}
}

// stepLookupInt returns the value stored at the greatest key <= year, or ok=false
// if no such key exists. Shared by every parameter shape's Get path.
func stepLookupInt[V any](steps map[int]V, year int) (V, bool) {
	var zero V
	bestYear := -1 << 62
	found := false
	for y := range steps {
		if y <= year && y > bestYear {
			bestYear = y
			found = true
		}
	}
	if !found {
		return zero, false
	}
	return steps[bestYear], true
}

// GetScalar looks up a scalar-shaped parameter (§4.A get_param). It fails
// with ErrUnknownParameter when name isn't a registered scalar parameter at
// all, and ErrNoValidEntry when no entry exists for any year <= year.
func (t *Table) GetScalar(name string, year int) (money.Amount, error) {
	if !scalarParams[name] {
		return money.Zero, fmt.Errorf("%w: %s", types.ErrUnknownParameter, name)
	}
	steps, ok := t.scalarSteps[name]
	if !ok {
		return money.Zero, fmt.Errorf("%w: %s", types.ErrUnknownParameter, name)
	}
	v, ok := stepLookupInt(steps, year)
	if !ok {
		return money.Zero, fmt.Errorf("%w: %s has no entry at or before year %d", types.ErrNoValidEntry, name, year)
	}
	return v, nil
}

// ChurchRatesFor returns the church-tax rate table in force for the given year.
func (t *Table) ChurchRatesFor(year int) (ChurchRates, error) {
	v, ok := stepLookupInt(t.churchSteps, year)
	if !ok {
		return nil, fmt.Errorf("%w: %s has no entry at or before year %d", types.ErrNoValidEntry, ParamKirchensteuerSaetze, year)
	}
	return v, nil
}

// AllowanceFor returns the Sparerpauschbetrag table in force for the given year.
func (t *Table) AllowanceFor(year int) (AllowanceByFiling, error) {
	v, ok := stepLookupInt(t.allowanceSteps, year)
	if !ok {
		return nil, fmt.Errorf("%w: %s has no entry at or before year %d", types.ErrNoValidEntry, ParamSparerpauschbetrag, year)
	}
	return v, nil
}

// ExemptionFor returns the Teilfreistellung table in force for the given year.
func (t *Table) ExemptionFor(year int) (PartialExemptionByFundType, error) {
	v, ok := stepLookupInt(t.exemptionSteps, year)
	if !ok {
		return nil, fmt.Errorf("%w: %s has no entry at or before year %d", types.ErrNoValidEntry, ParamTeilfreistellung, year)
	}
	return v, nil
}

// PartialExemption returns the Teilfreistellung ratio for one fund type in
// the given year. A fund type absent from the year's table (e.g. FundTypeOther,
// which is never listed) is treated as 0% exemption.
func (t *Table) PartialExemption(year int, ft types.FundType) (money.Amount, error) {
	table, err := t.ExemptionFor(year)
	if err != nil {
		return money.Zero, err
	}
	if v, ok := table[ft]; ok {
		return v, nil
	}
	return money.Zero, nil
}

// Allowance returns the Sparerpauschbetrag for one filing status in the
// given year.
func (t *Table) Allowance(year int, filingStatus string) (money.Amount, error) {
	table, err := t.AllowanceFor(year)
	if err != nil {
		return money.Zero, err
	}
	if v, ok := table[filingStatus]; ok {
		return v, nil
	}
	return money.Zero, fmt.Errorf("%w: %s has no %q entry at or before year %d", types.ErrNoValidEntry, ParamSparerpauschbetrag, filingStatus, year)
}

// ChurchRate resolves a region's Kirchensteuer rate for the given year,
// falling back to "default" (§9.4).
func (t *Table) ChurchRate(year int, region string) (money.Amount, error) {
	table, err := t.ChurchRatesFor(year)
	if err != nil {
		return money.Zero, err
	}
	if v, ok := table[region]; ok {
		return v, nil
	}
	if v, ok := table["default"]; ok {
		return v, nil
	}
	return money.Zero, fmt.Errorf("%w: %s has no default entry at or before year %d", types.ErrNoValidEntry, ParamKirchensteuerSaetze, year)
}

// CombinedTaxRate computes the effective combined capital-gains rate for a
// year (§4.A): base rate + solidarity surcharge, and — if church is true —
// the §32d Abs. 1 Satz 3 EStG church-tax-adjusted effective rate.
func (t *Table) CombinedTaxRate(year int, church bool, region string) (money.Amount, error) {
	e, err := t.GetScalar(ParamAbgeltungssteuerSatz, year)
	if err != nil {
		return money.Zero, err
	}
	s, err := t.GetScalar(ParamSolidaritaetszuschlagSatz, year)
	if err != nil {
		return money.Zero, err
	}
	if !church {
		return e.Add(e.Mul(s)), nil
	}
	k, err := t.ChurchRate(year, region)
	if err != nil {
		return money.Zero, err
	}
	one := money.New(1)
	denom := one.Add(k.Mul(e))
	eEff := e.Div(denom)
	return eEff.Add(eEff.Mul(s)).Add(eEff.Mul(k)), nil
}

// Years returns the sorted list of years at which a scalar parameter has an
// explicit entry — used by tests asserting monotone step-function behaviour.
func (t *Table) Years(name string) []int {
	steps, ok := t.scalarSteps[name]
	if !ok {
		return nil
	}
	years := make([]int, 0, len(steps))
	for y := range steps {
		years = append(years, y)
	}
	sort.Ints(years)
	return years
}
