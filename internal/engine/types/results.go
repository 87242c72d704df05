package types

import (
	"time"

	"github.com/google/uuid"

	"abgeltungsteuer-engine/internal/engine/money"
)

// AdvanceLumpSumResult is the per-(security, year) Vorabpauschale report
// (§4.C, §6.3). Zero-result returns still populate the informational fields
// so a renderer can show "why" a year produced no tax.
type AdvanceLumpSumResult struct {
	SecurityUUID     uuid.UUID
	Year             int
	ValueStart       money.Amount
	ValueEnd         money.Amount
	Basiszins        money.Amount
	Basisertrag      money.Amount
	Delta            money.Amount
	Distributions    money.Amount
	Gross            money.Amount
	PartialExemption money.Amount
	Taxable          money.Amount
	Tax              money.Amount
}

// SoldSlice is one realised consumption of a lot produced by Ledger.Sell or
// Ledger.SimulateGain (§4.B).
type SoldSlice struct {
	BuyDate                time.Time
	SellDate               time.Time
	Units                  money.Amount
	EntryPrice             money.Amount
	SellPrice              money.Amount
	GrossGain              money.Amount
	CreditedAdvanceLumpSum money.Amount
}

// SaleProposal is one recommended lot sale, emitted by both the allowance
// optimiser (§4.F) and the net-payout planner (§4.G).
type SaleProposal struct {
	SecurityUUID     uuid.UUID
	SecurityName     string
	ISIN             string
	Units            money.Amount
	BuyDate          time.Time
	EntryPrice       money.Amount
	CurrentPrice     money.Amount
	GrossProceeds    money.Amount
	GrossGain        money.Amount
	PartialExemption money.Amount
	TaxableGain      money.Amount
	Tax              money.Amount
	NetProceeds      money.Amount
	LegacyExempt     bool
}

// AllowanceOptimisationResult is the §4.F output.
type AllowanceOptimisationResult struct {
	Year           int
	TotalAllowance money.Amount
	AlreadyUsed    money.Amount
	Remaining      money.Amount
	Proposals      []SaleProposal
}

// NetPayoutPlan is the §4.G output.
type NetPayoutPlan struct {
	TargetNet          money.Amount
	AchievedNet        money.Amount
	GrossTotal         money.Amount
	TaxTotal           money.Amount
	AllowanceConsumed  money.Amount
	Proposals          []SaleProposal
}

// LossOffsetReport is emitted by Pools.YearEnd (§4.I).
type LossOffsetReport struct {
	GeneralLosses    money.Amount
	EquityLosses     money.Amount
	ConsumedGeneral  money.Amount
	ConsumedEquity   money.Amount
	CarryGeneral     money.Amount
	CarryEquity      money.Amount
}
