// Package lossoffset implements the two Verlustverrechnung pools required
// by §20 Abs. 6 EStG (§4.I): a general pool that offsets against any capital
// gain, and an equity-only pool (Aktien-Verlustverrechnungstopf) that offsets
// only against gains from the sale of shares (Aktien i.S.d. §20 Abs. 2
// Satz 1 Nr. 1 EStG).
package lossoffset

import (
	"abgeltungsteuer-engine/internal/engine/money"
	"abgeltungsteuer-engine/internal/engine/types"
)

// Pools tracks the running balance of both loss pools across a tax year.
// The zero value is ready to use.
type Pools struct {
	generalLoss money.Amount
	equityLoss  money.Amount

	consumedGeneral money.Amount
	consumedEquity  money.Amount
}

// AddLoss deposits a realised loss into the appropriate pool. Equity losses
// (isEquity true) go to the narrower equity pool; everything else goes to
// the general pool. amount is taken as an absolute value — callers pass the
// magnitude of the loss, never a signed gain.
func (p *Pools) AddLoss(amount money.Amount, isEquity bool) {
	loss := amount
	if loss.IsNegative() {
		loss = loss.Neg()
	}
	if isEquity {
		p.equityLoss = p.equityLoss.Add(loss)
	} else {
		p.generalLoss = p.generalLoss.Add(loss)
	}
}

// AddGain offsets a realised gain against the pools and returns the residual
// gain left after offsetting (§4.I): an equity gain first draws down the
// equity pool, then the general pool; a non-equity gain draws only the
// general pool, since the equity pool can never offset a non-equity gain.
func (p *Pools) AddGain(amount money.Amount, isEquity bool) money.Amount {
	gain := amount
	if !gain.IsPositive() {
		return money.Zero
	}

	if isEquity {
		used := money.Min(gain, p.equityLoss)
		p.equityLoss = p.equityLoss.Sub(used)
		p.consumedEquity = p.consumedEquity.Add(used)
		gain = gain.Sub(used)
	}

	if gain.IsPositive() {
		used := money.Min(gain, p.generalLoss)
		p.generalLoss = p.generalLoss.Sub(used)
		p.consumedGeneral = p.consumedGeneral.Add(used)
		gain = gain.Sub(used)
	}

	return gain
}

// YearEnd reports the pools' state at the close of the tax year: what was
// deposited, what was consumed, and what carries forward to the next year
// (§4.I; both pools carry forward indefinitely under German law, there is
// no expiry).
func (p *Pools) YearEnd() types.LossOffsetReport {
	return types.LossOffsetReport{
		GeneralLosses:   p.generalLoss.Add(p.consumedGeneral),
		EquityLosses:    p.equityLoss.Add(p.consumedEquity),
		ConsumedGeneral: p.consumedGeneral,
		ConsumedEquity:  p.consumedEquity,
		CarryGeneral:    p.generalLoss,
		CarryEquity:     p.equityLoss,
	}
}
