// Package vorab implements the Vorabpauschale (advance lump sum) calculator
// (§4.C) and its cross-year, per-lot allocator (§4.D).
package vorab

import (
	"time"

	"github.com/google/uuid"

	"abgeltungsteuer-engine/internal/engine/money"
	"abgeltungsteuer-engine/internal/engine/taxparams"
	"abgeltungsteuer-engine/internal/engine/types"
)

// Inputs bundles the per-(security, year) inputs to Calculate.
type Inputs struct {
	SecurityUUID  uuid.UUID
	Year          int
	ValueStart    money.Amount
	ValueEnd      money.Amount
	Distributions money.Amount // default money.Zero
	PurchaseDate  *time.Time   // nil if the lot predates this year
}

// Calculate runs the eight-rule §18 InvStG formula as a pure function. Zero
// results still carry the informational fields (value start/end, basiszins,
// partial-exemption rate, distributions) for reporting.
func Calculate(table *taxparams.Table, sec types.Security, in Inputs) (types.AdvanceLumpSumResult, error) {
	result := types.AdvanceLumpSumResult{
		SecurityUUID:  in.SecurityUUID,
		Year:          in.Year,
		ValueStart:    in.ValueStart,
		ValueEnd:      in.ValueEnd,
		Distributions: in.Distributions,
	}

	basiszins, err := table.GetScalar(taxparams.ParamBasiszinsVorabpauschale, in.Year)
	if err != nil {
		return result, err
	}
	result.Basiszins = basiszins

	exemption, err := table.PartialExemption(in.Year, sec.FundType)
	if err != nil {
		return result, err
	}
	result.PartialExemption = exemption

	// Rule 1: negative basiszins -> zero result.
	if basiszins.IsNegative() {
		return result, nil
	}

	faktor, err := table.GetScalar(taxparams.ParamVorabpauschaleFaktor, in.Year)
	if err != nil {
		return result, err
	}

	// Rule 2: basisertrag = value_start * basiszins * faktor, rounded to 2dp.
	basisertrag := in.ValueStart.Mul(basiszins).Mul(faktor).Round2()
	result.Basisertrag = basisertrag

	// Rule 3: delta = value_end - value_start; delta <= 0 -> zero result.
	delta := in.ValueEnd.Sub(in.ValueStart)
	result.Delta = delta
	if delta.LessThanOrEqual(money.Zero) {
		return result, nil
	}

	// Rule 4: gross = min(basisertrag, delta).
	gross := money.Min(basisertrag, delta)

	// Rule 5: gross = max(0, gross - distributions).
	gross = money.Max(money.Zero, gross.Sub(in.Distributions))

	// Rule 6: in-year purchase scales gross by (12-m)/12, m = purchase_month-1.
	if in.PurchaseDate != nil && in.PurchaseDate.Year() == in.Year {
		m := int(in.PurchaseDate.Month()) - 1
		factor := money.New(float64(12-m)).Div(money.New(12))
		gross = gross.Mul(factor).Round2()
	}
	result.Gross = gross

	// Rule 7: taxable = gross * (1 - partial_exemption), rounded to 2dp.
	taxable := gross.Mul(money.New(1).Sub(exemption)).Round2()
	result.Taxable = taxable

	// Rule 8: tax = taxable * combined_tax_rate(year, church=false, region="default").
	rate, err := table.CombinedTaxRate(in.Year, false, "default")
	if err != nil {
		return result, err
	}
	result.Tax = taxable.Mul(rate).Round2()

	return result, nil
}
