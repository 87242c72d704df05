package allowance

import (
	"sort"

	"github.com/google/uuid"

	"abgeltungsteuer-engine/internal/engine/money"
	"abgeltungsteuer-engine/internal/engine/taxparams"
	"abgeltungsteuer-engine/internal/engine/types"
)

// OptimiseBySecurity is the divergent, security-level allowance-optimiser
// variant named in Open Question 1 (§9): instead of ranking individual
// lots, it treats each security's entire position as one weighted-average
// candidate. This is less faithful to FIFO (a security holding lots at
// widely different entry prices is collapsed to one blended per-unit gain)
// and is not the default; Optimise (lot-level) is.
func OptimiseBySecurity(table *taxparams.Table, req Request) (types.AllowanceOptimisationResult, error) {
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

	type securityCandidate struct {
		secUUID        uuid.UUID
		units          money.Amount
		avgEntryPrice  money.Amount
		avgAccrued     money.Amount
		currentPrice   money.Amount
		exemptionRate  money.Amount
		perUnitTaxable money.Amount
	}

	var candidates []securityCandidate

	secUUIDs := make([]uuid.UUID, 0, len(req.Ledgers))
	for id := range req.Ledgers {
		secUUIDs = append(secUUIDs, id)
	}
	sort.Slice(secUUIDs, func(i, j int) bool { return secUUIDs[i].String() < secUUIDs[j].String() })

	for _, secUUID := range secUUIDs {
		led := req.Ledgers[secUUID]
		sec, ok := req.Securities[secUUID]
		if !ok {
			continue
		}
		currentPrice, ok := req.CurrentPrices[secUUID]
		if !ok {
			continue
		}

		units := money.Zero
		costBasis := money.Zero
		accrued := money.Zero
		allLegacy := true
		for _, lot := range led.Lots() {
			if !lot.UnitsRemaining.IsPositive() {
				continue
			}
			if !types.LegacyExempt(lot.BuyDate, sec.IsFund) {
				allLegacy = false
			}
			units = units.Add(lot.UnitsRemaining)
			costBasis = costBasis.Add(lot.UnitsRemaining.Mul(lot.EntryPrice))
			accrued = accrued.Add(lot.Accrued)
		}
		if !units.IsPositive() || allLegacy {
			continue
		}

		avgEntryPrice := costBasis.Div(units)
		avgAccruedPerUnit := accrued.Div(units)

		exemptionRate, err := table.PartialExemption(req.Year, sec.FundType)
		if err != nil {
			return result, err
		}

		perUnitGross := currentPrice.Sub(avgEntryPrice)
		perUnitTaxRelevant := perUnitGross.Sub(avgAccruedPerUnit)
		perUnitTaxable := perUnitTaxRelevant.Mul(money.New(1).Sub(exemptionRate))
		if !perUnitTaxable.IsPositive() {
			continue
		}

		candidates = append(candidates, securityCandidate{
			secUUID:        secUUID,
			units:          units,
			avgEntryPrice:  avgEntryPrice,
			avgAccrued:     avgAccruedPerUnit,
			currentPrice:   currentPrice,
			exemptionRate:  exemptionRate,
			perUnitTaxable: perUnitTaxable,
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if !candidates[i].perUnitTaxable.Equal(candidates[j].perUnitTaxable) {
			return candidates[i].perUnitTaxable.GreaterThan(candidates[j].perUnitTaxable)
		}
		return candidates[i].secUUID.String() < candidates[j].secUUID.String()
	})

	for _, c := range candidates {
		if remaining.LessThanOrEqual(money.Zero) {
			break
		}
		unitsNeeded := remaining.Div(c.perUnitTaxable).Round8()
		units := money.Min(unitsNeeded, c.units)
		if !units.IsPositive() {
			continue
		}

		sec := req.Securities[c.secUUID]
		grossProceeds := units.Mul(c.currentPrice).Round2()
		grossGain := units.Mul(c.currentPrice.Sub(c.avgEntryPrice)).Round2()
		taxableGain := units.Mul(c.perUnitTaxable).Round2()

		result.Proposals = append(result.Proposals, types.SaleProposal{
			SecurityUUID:     c.secUUID,
			SecurityName:     sec.Name,
			ISIN:             sec.ISIN,
			Units:            units.Round8(),
			EntryPrice:       c.avgEntryPrice,
			CurrentPrice:     c.currentPrice,
			GrossProceeds:    grossProceeds,
			GrossGain:        grossGain,
			PartialExemption: c.exemptionRate,
			TaxableGain:      taxableGain,
			Tax:              money.Zero,
			NetProceeds:      grossProceeds,
		})

		remaining = remaining.Sub(taxableGain)
	}

	result.Remaining = money.Max(money.Zero, remaining)
	return result, nil
}
