// Package payout implements the net-payout planner (§4.G): a deterministic,
// per-lot greedy plan that sells just enough units, lot by lot, to realise a
// requested net amount after allowance, partial exemption, and legacy
// exemption.
package payout

import (
	"sort"

	"github.com/google/uuid"

	"abgeltungsteuer-engine/internal/engine/ledger"
	"abgeltungsteuer-engine/internal/engine/money"
	"abgeltungsteuer-engine/internal/engine/taxparams"
	"abgeltungsteuer-engine/internal/engine/types"
)

// Request bundles the inputs to Plan.
type Request struct {
	TargetNet     money.Amount
	Year          int
	FilingStatus  string
	AlreadyUsed   money.Amount
	Ledgers       map[uuid.UUID]*ledger.Ledger
	CurrentPrices map[uuid.UUID]money.Amount
	Securities    map[uuid.UUID]types.Security
	Church        bool
	Region        string
}

// Plan walks ledgers in ascending security-UUID order (Open Question 2,
// §9: a determinism choice, not a tax-law requirement) and, within each,
// lots oldest first, splitting each lot into an allowance band and a taxed
// band until the requested net amount is reached.
func Plan(table *taxparams.Table, req Request) (types.NetPayoutPlan, error) {
	rate, err := table.CombinedTaxRate(req.Year, req.Church, req.Region)
	if err != nil {
		return types.NetPayoutPlan{}, err
	}

	totalAllowance, err := table.Allowance(req.Year, req.FilingStatus)
	if err != nil {
		return types.NetPayoutPlan{}, err
	}
	remainingAllowance := money.Max(money.Zero, totalAllowance.Sub(req.AlreadyUsed))

	plan := types.NetPayoutPlan{TargetNet: req.TargetNet}
	need := req.TargetNet

	secUUIDs := make([]uuid.UUID, 0, len(req.Ledgers))
	for id := range req.Ledgers {
		secUUIDs = append(secUUIDs, id)
	}
	sort.Slice(secUUIDs, func(i, j int) bool { return secUUIDs[i].String() < secUUIDs[j].String() })

	grossTotal := money.Zero
	taxTotal := money.Zero
	allowanceConsumed := money.Zero

	for _, secUUID := range secUUIDs {
		if need.LessThanOrEqual(money.Zero) {
			break
		}
		led := req.Ledgers[secUUID]
		if !led.TotalUnits().IsPositive() {
			continue
		}
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
			return types.NetPayoutPlan{}, err
		}

		for _, lot := range led.Lots() {
			if need.LessThanOrEqual(money.Zero) {
				break
			}
			if !lot.UnitsRemaining.IsPositive() {
				continue
			}

			proposal, consumedAllowance, consumedNet, consumedTax, consumedGross := planLot(
				sec, lot, currentPrice, exemptionRate, rate, &remainingAllowance, &need,
			)
			if proposal.Units.IsZero() {
				continue
			}

			plan.Proposals = append(plan.Proposals, proposal)
			allowanceConsumed = allowanceConsumed.Add(consumedAllowance)
			grossTotal = grossTotal.Add(consumedGross)
			taxTotal = taxTotal.Add(consumedTax)
			need = need.Sub(consumedNet)
		}
	}

	plan.GrossTotal = grossTotal.Round2()
	plan.TaxTotal = taxTotal.Round2()
	plan.AllowanceConsumed = allowanceConsumed.Round2()
	plan.AchievedNet = grossTotal.Sub(taxTotal).Round2()
	return plan, nil
}

// planLot splits one lot into an allowance band and a taxed band per §4.G,
// consuming from *need and *remainingAllowance, and returns the aggregated
// proposal for this lot plus the amounts it consumed (so the caller can
// accumulate plan totals without re-deriving them from the proposal, since
// a legacy-exempt lot reports TaxableGain == 0 despite having sold units).
func planLot(
	sec types.Security,
	lot ledger.Lot,
	currentPrice, exemptionRate, rate money.Amount,
	remainingAllowance, need *money.Amount,
) (proposal types.SaleProposal, consumedAllowance, consumedNet, consumedTax, consumedGross money.Amount) {

	if types.LegacyExempt(lot.BuyDate, sec.IsFund) {
		unitsToSell := money.Min(lot.UnitsRemaining, (*need).Div(currentPrice).CeilTo8())
		if !unitsToSell.IsPositive() {
			return types.SaleProposal{}, money.Zero, money.Zero, money.Zero, money.Zero
		}
		gross := unitsToSell.Mul(currentPrice)
		proposal = types.SaleProposal{
			SecurityUUID:  sec.UUID,
			SecurityName:  sec.Name,
			ISIN:          sec.ISIN,
			Units:         unitsToSell.Round8(),
			BuyDate:       lot.BuyDate,
			EntryPrice:    lot.EntryPrice,
			CurrentPrice:  currentPrice,
			GrossProceeds: gross.Round2(),
			GrossGain:     unitsToSell.Mul(currentPrice.Sub(lot.EntryPrice)).Round2(),
			Tax:           money.Zero,
			NetProceeds:   gross.Round2(),
			LegacyExempt:  true,
		}
		return proposal, money.Zero, gross, money.Zero, gross
	}

	perUnitGross := currentPrice.Sub(lot.EntryPrice)
	perUnitCredited := money.Zero
	if lot.UnitsRemaining.IsPositive() {
		perUnitCredited = lot.Accrued.Div(lot.UnitsRemaining)
	}
	perUnitTaxRelevant := perUnitGross.Sub(perUnitCredited)
	perUnitTaxable := perUnitTaxRelevant.Mul(money.New(1).Sub(exemptionRate))

	taxPerUnit := money.Zero
	if perUnitTaxable.IsPositive() {
		taxPerUnit = perUnitTaxable.Mul(rate).Round2()
	}

	unitsFree := money.Zero
	if perUnitTaxable.IsPositive() && remainingAllowance.IsPositive() {
		unitsFree = money.Min(lot.UnitsRemaining, (*remainingAllowance).Div(perUnitTaxable))
	}

	nFree := money.Zero
	if unitsFree.IsPositive() {
		wanted := (*need).Div(currentPrice).CeilTo8()
		nFree = money.Min(unitsFree, wanted)
		nFree = money.Min(nFree, lot.UnitsRemaining)
	}

	netDenominator := currentPrice.Sub(taxPerUnit)
	remainingBand := lot.UnitsRemaining.Sub(nFree)

	nTaxed := money.Zero
	if remainingBand.IsPositive() {
		if netDenominator.IsPositive() {
			needAfterFree := (*need).Sub(nFree.Mul(currentPrice))
			wanted := needAfterFree.Div(netDenominator).CeilTo8()
			nTaxed = money.Min(remainingBand, wanted)
			if nTaxed.IsNegative() {
				nTaxed = money.Zero
			}
		} else {
			nTaxed = remainingBand
		}
	}

	totalUnits := nFree.Add(nTaxed)
	if !totalUnits.IsPositive() {
		return types.SaleProposal{}, money.Zero, money.Zero, money.Zero, money.Zero
	}

	grossFree := nFree.Mul(currentPrice)
	grossTaxed := nTaxed.Mul(currentPrice)
	gross := grossFree.Add(grossTaxed)
	taxForLot := nTaxed.Mul(taxPerUnit)
	netForLot := gross.Sub(taxForLot)

	allowanceUsed := nFree.Mul(perUnitTaxable)
	taxableGain := totalUnits.Mul(perUnitTaxable)
	grossGain := totalUnits.Mul(perUnitGross)

	proposal = types.SaleProposal{
		SecurityUUID:     sec.UUID,
		SecurityName:     sec.Name,
		ISIN:             sec.ISIN,
		Units:            totalUnits.Round8(),
		BuyDate:          lot.BuyDate,
		EntryPrice:       lot.EntryPrice,
		CurrentPrice:     currentPrice,
		GrossProceeds:    gross.Round2(),
		GrossGain:        grossGain.Round2(),
		PartialExemption: exemptionRate,
		TaxableGain:      taxableGain.Round2(),
		Tax:              taxForLot.Round2(),
		NetProceeds:      netForLot.Round2(),
		LegacyExempt:     false,
	}

	*remainingAllowance = (*remainingAllowance).Sub(allowanceUsed)

	return proposal, allowanceUsed, netForLot, taxForLot, gross
}
