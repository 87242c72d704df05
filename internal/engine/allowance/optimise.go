// Package allowance implements the allowance optimiser (§4.F): it ranks
// candidate lots by per-unit taxable gain and fills the remaining
// Sparerpauschbetrag for the year.
//
// Open Question 1 (spec §9): the source ships two divergent implementations,
// a lot-level variant (Optimise, the faithful one specified in §4.F) and a
// security-level variant (OptimiseBySecurity). Both are kept; callers should
// prefer Optimise and treat OptimiseBySecurity as a documented, less-precise
// fallback.
package allowance

import (
	"sort"

	"github.com/google/uuid"

	"abgeltungsteuer-engine/internal/engine/ledger"
	"abgeltungsteuer-engine/internal/engine/money"
	"abgeltungsteuer-engine/internal/engine/taxparams"
	"abgeltungsteuer-engine/internal/engine/types"
)

// Request bundles the inputs to Optimise.
type Request struct {
	Year           int
	FilingStatus   string
	AlreadyUsed    money.Amount
	Ledgers        map[uuid.UUID]*ledger.Ledger
	CurrentPrices  map[uuid.UUID]money.Amount
	Securities     map[uuid.UUID]types.Security
}

type candidate struct {
	securityUUID    uuid.UUID
	lotIndex        int
	lot             ledger.Lot
	perUnitTaxable  money.Amount
	perUnitGross    money.Amount
	exemptionRate   money.Amount
	currentPrice    money.Amount
}

// Optimise fills the remaining allowance for the year, lot by lot, ranked by
// per-unit taxable gain descending (§4.F). Legacy-exempt lots and lots with
// non-positive per-unit taxable gain are never candidates.
func Optimise(table *taxparams.Table, req Request) (types.AllowanceOptimisationResult, error) {
	totalAllowance, err := table.Allowance(req.Year, req.FilingStatus)
	if err != nil {
		return types.AllowanceOptimisationResult{}, err
	}

	remaining := money.Max(money.Zero, totalAllowance.Sub(req.AlreadyUsed))
	result := types.AllowanceOptimisationResult{
		Year:           req.Year,
		TotalAllowance: totalAllowance,
		AlreadyUsed:    req.AlreadyUsed,
		Remaining:      remaining,
	}
	if remaining.IsZero() {
		return result, nil
	}

	candidates, err := buildCandidates(table, req)
	if err != nil {
		return result, err
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if !a.perUnitTaxable.Equal(b.perUnitTaxable) {
			return a.perUnitTaxable.GreaterThan(b.perUnitTaxable)
		}
		if a.securityUUID.String() != b.securityUUID.String() {
			return a.securityUUID.String() < b.securityUUID.String()
		}
		return a.lotIndex < b.lotIndex
	})

	for _, c := range candidates {
		if remaining.LessThanOrEqual(money.Zero) {
			break
		}
		unitsNeeded := remaining.Div(c.perUnitTaxable).Round8()
		units := money.Min(unitsNeeded, c.lot.UnitsRemaining)
		if !units.IsPositive() {
			continue
		}

		grossProceeds := units.Mul(c.currentPrice)
		grossGain := units.Mul(c.perUnitGross)
		taxableGain := units.Mul(c.perUnitTaxable)

		sec := req.Securities[c.securityUUID]
		result.Proposals = append(result.Proposals, types.SaleProposal{
			SecurityUUID:     c.securityUUID,
			SecurityName:     sec.Name,
			ISIN:             sec.ISIN,
			Units:            units.Round8(),
			BuyDate:          c.lot.BuyDate,
			EntryPrice:       c.lot.EntryPrice,
			CurrentPrice:     c.currentPrice,
			GrossProceeds:    grossProceeds.Round2(),
			GrossGain:        grossGain.Round2(),
			PartialExemption: c.exemptionRate,
			TaxableGain:      taxableGain.Round2(),
			Tax:              money.Zero,
			NetProceeds:      grossProceeds.Round2(),
			LegacyExempt:     false,
		})

		remaining = remaining.Sub(taxableGain)
	}

	result.Remaining = money.Max(money.Zero, remaining)
	return result, nil
}

func buildCandidates(table *taxparams.Table, req Request) ([]candidate, error) {
	var out []candidate

	securityUUIDs := make([]uuid.UUID, 0, len(req.Ledgers))
	for id := range req.Ledgers {
		securityUUIDs = append(securityUUIDs, id)
	}
	sort.Slice(securityUUIDs, func(i, j int) bool { return securityUUIDs[i].String() < securityUUIDs[j].String() })

	for _, secUUID := range securityUUIDs {
		led := req.Ledgers[secUUID]
		sec, ok := req.Securities[secUUID]
		if !ok {
			continue
		}
		currentPrice, ok := req.CurrentPrices[secUUID]
		if !ok {
			continue
		}

		exemptionRate, err := table.PartialExemption(req.Year, sec.FundType)
		if err != nil {
			return nil, err
		}

		for idx, lot := range led.Lots() {
			if types.LegacyExempt(lot.BuyDate, sec.IsFund) {
				continue
			}
			if !lot.UnitsRemaining.IsPositive() {
				continue
			}

			perUnitGross := currentPrice.Sub(lot.EntryPrice)
			perUnitCredited := lot.Accrued.Div(lot.UnitsRemaining)
			perUnitTaxRelevant := perUnitGross.Sub(perUnitCredited)
			perUnitTaxable := perUnitTaxRelevant.Mul(money.New(1).Sub(exemptionRate))

			if !perUnitTaxable.IsPositive() {
				continue
			}

			out = append(out, candidate{
				securityUUID:   secUUID,
				lotIndex:       idx,
				lot:            lot,
				perUnitTaxable: perUnitTaxable,
				perUnitGross:   perUnitGross,
				exemptionRate:  exemptionRate,
				currentPrice:   currentPrice,
			})
		}
	}
	return out, nil
}
