// Package engine is the top-level facade (§4.J): it owns one FIFO ledger per
// security, a shared tax-parameter table, the loss-offsetting pools, and
// wires together ledger replay, Vorabpauschale allocation, and the two sale
// planners behind a single coherent entry point, the way a caller (CLI or
// GUI) is meant to use this repository.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"abgeltungsteuer-engine/internal/engine/allowance"
	"abgeltungsteuer-engine/internal/engine/ledger"
	"abgeltungsteuer-engine/internal/engine/lossoffset"
	"abgeltungsteuer-engine/internal/engine/money"
	"abgeltungsteuer-engine/internal/engine/payout"
	"abgeltungsteuer-engine/internal/engine/priceindex"
	"abgeltungsteuer-engine/internal/engine/taxparams"
	"abgeltungsteuer-engine/internal/engine/types"
	"abgeltungsteuer-engine/internal/engine/vorab"
)

// ErrNotAllocated is returned by PlanAllowance/PlanNetPayout when the caller
// has opted into allocation enforcement (RequireAllocation(true)) and a
// queried security's ledger has never been through AllocateVorabpauschale
// for the requested year.
var ErrNotAllocated = errors.New("engine: security has no recorded vorabpauschale allocation for this year")

type ledgerState struct {
	ledger     *ledger.Ledger
	security   types.Security
	allocation map[int]bool
}

// Engine is the single entry point a caller constructs once per portfolio
// evaluation. It is not safe for concurrent use; callers own serialising
// their own calls (§5).
type Engine struct {
	table   *taxparams.Table
	logger  *zap.Logger
	tracer  trace.Tracer
	ledgers map[uuid.UUID]*ledgerState
	pools   *lossoffset.Pools

	requireAllocation bool
}

// NewEngine constructs an Engine over a loaded parameter table. A nil logger
// defaults to a no-op logger (teacher idiom: never require callers to thread
// a logger through every helper). A span is opened around every top-level
// operation (BuildLedgers, AllocateVorabpauschale, PlanAllowance,
// PlanNetPayout) on the "abgeltungsteuer-engine" tracer, the same
// otel.Tracer(name) pattern the teacher's agent executor uses.
func NewEngine(table *taxparams.Table, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		table:   table,
		logger:  logger,
		tracer:  otel.Tracer("abgeltungsteuer-engine"),
		ledgers: map[uuid.UUID]*ledgerState{},
		pools:   &lossoffset.Pools{},
	}
}

// RequireAllocation toggles the allocation-enforcement check described in
// §5: when enabled, PlanAllowance/PlanNetPayout reject a security whose
// ledger has never been through AllocateVorabpauschale for the requested
// year. Default is permissive, matching spec silence — some callers legally
// query allowance for securities with no Vorabpauschale history (e.g. a
// fund that never existed before the query year).
func (e *Engine) RequireAllocation(on bool) {
	e.requireAllocation = on
}

// RegisterSecurity ensures a ledger exists for sec, creating an empty one if
// this is the first time the engine has seen it.
func (e *Engine) RegisterSecurity(sec types.Security) {
	if _, ok := e.ledgers[sec.UUID]; ok {
		return
	}
	e.ledgers[sec.UUID] = &ledgerState{
		ledger:     ledger.New(sec.UUID),
		security:   sec,
		allocation: map[int]bool{},
	}
}

// Ledger returns the live ledger for a security, if one has been registered
// or built via BuildLedgers.
func (e *Engine) Ledger(securityUUID uuid.UUID) (*ledger.Ledger, bool) {
	st, ok := e.ledgers[securityUUID]
	if !ok {
		return nil, false
	}
	return st.ledger, true
}

// BuildLedgers sorts txs stably by date and replays BUY/SELL/DELIVERY_IN/
// DELIVERY_OUT per security (§4.J). DIVIDEND transactions are not replayed
// into the ledger itself; callers aggregate them separately and pass the
// per-year sums to AllocateVorabpauschale.
//
// ErrInsufficientUnits during this historical replay is swallowed and logged
// at Warn (§7): a malformed or partial transaction history must not abort
// the whole build. An error surfaced through this path during a caller-
// originated sell (outside of BuildLedgers) is never swallowed — see
// Engine.Sell.
func (e *Engine) BuildLedgers(ctx context.Context, securities map[uuid.UUID]types.Security, txs []types.Transaction) error {
	_, span := e.tracer.Start(ctx, "engine.BuildLedgers", trace.WithAttributes(
		attribute.Int("securities", len(securities)),
		attribute.Int("transactions", len(txs)),
	))
	defer span.End()

	for _, sec := range securities {
		e.RegisterSecurity(sec)
	}

	sorted := make([]types.Transaction, len(txs))
	copy(sorted, txs)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	for _, tx := range sorted {
		st, ok := e.ledgers[tx.SecurityUUID]
		if !ok {
			if sec, known := securities[tx.SecurityUUID]; known {
				e.RegisterSecurity(sec)
				st = e.ledgers[tx.SecurityUUID]
			} else {
				e.logger.Warn("engine: skipping transaction for unknown security",
					zap.String("security", tx.SecurityUUID.String()))
				continue
			}
		}

		unitPrice := tx.DerivedUnitPrice()

		switch tx.Kind {
		case types.TransactionBuy:
			st.ledger.Buy(tx.Date, tx.Units, unitPrice)
		case types.TransactionDeliveryIn:
			st.ledger.DeliverIn(tx.Date, tx.Units, unitPrice)
		case types.TransactionSell:
			if _, err := st.ledger.Sell(tx.Date, tx.Units, unitPrice); err != nil {
				if errors.Is(err, types.ErrInsufficientUnits) {
					e.logger.Warn("engine: insufficient units during historical replay",
						zap.String("security", tx.SecurityUUID.String()),
						zap.Error(err))
					continue
				}
				return err
			}
		case types.TransactionDeliveryOut:
			if _, err := st.ledger.DeliverOut(tx.Date, tx.Units, unitPrice); err != nil {
				if errors.Is(err, types.ErrInsufficientUnits) {
					e.logger.Warn("engine: insufficient units during historical replay",
						zap.String("security", tx.SecurityUUID.String()),
						zap.Error(err))
					continue
				}
				return err
			}
		case types.TransactionDividend:
			// Not replayed into lot state; aggregated by callers for
			// AllocateVorabpauschale.
		}
	}
	return nil
}

// Sell is the caller-originated counterpart to the historical replay inside
// BuildLedgers: ErrInsufficientUnits always propagates here, since a caller
// asking to sell more than is held is a real error, not a replay artefact.
func (e *Engine) Sell(ctx context.Context, securityUUID uuid.UUID, tx types.Transaction) ([]types.SoldSlice, error) {
	_, span := e.tracer.Start(ctx, "engine.Sell", trace.WithAttributes(
		attribute.String("security", securityUUID.String()),
	))
	defer span.End()

	st, ok := e.ledgers[securityUUID]
	if !ok {
		return nil, fmt.Errorf("engine: unknown security %s", securityUUID)
	}
	return st.ledger.Sell(tx.Date, tx.Units, tx.DerivedUnitPrice())
}

// AllocateVorabpauschale runs §4.D for every registered ledger up to and
// including taxYear-1, and marks each ledger as allocated for taxYear so
// RequireAllocation(true) callers can rely on it.
func (e *Engine) AllocateVorabpauschale(
	ctx context.Context,
	taxYear int,
	prices map[uuid.UUID]*priceindex.Index,
	dividends map[uuid.UUID]map[int]money.Amount,
) error {
	_, span := e.tracer.Start(ctx, "engine.AllocateVorabpauschale", trace.WithAttributes(
		attribute.Int("tax_year", taxYear),
	))
	defer span.End()

	secUUIDs := make([]uuid.UUID, 0, len(e.ledgers))
	for id := range e.ledgers {
		secUUIDs = append(secUUIDs, id)
	}
	sort.Slice(secUUIDs, func(i, j int) bool { return secUUIDs[i].String() < secUUIDs[j].String() })

	for _, secUUID := range secUUIDs {
		st := e.ledgers[secUUID]
		idx, ok := prices[secUUID]
		if !ok {
			idx = priceindex.NewIndex()
		}
		err := vorab.Allocate(e.logger, e.table, st.ledger, st.security, taxYear, idx, dividends[secUUID])
		if err != nil {
			return err
		}
		st.allocation[taxYear] = true
	}
	return nil
}

func (e *Engine) checkAllocated(year int) error {
	if !e.requireAllocation {
		return nil
	}
	for _, st := range e.ledgers {
		if !st.ledger.TotalUnits().IsPositive() {
			continue
		}
		if !st.allocation[year] {
			return fmt.Errorf("%w: %s", ErrNotAllocated, st.security.Name)
		}
	}
	return nil
}

// PlanAllowance runs the allowance optimiser (§4.F) over every registered
// ledger, then — per Open Question 5 — runs each proposal's taxable gain
// through the loss-offsetting pools before the caller sees a final result.
// This is a documented behavior change relative to the reviewed original,
// where the pools existed but were never wired to a query path (DESIGN.md).
func (e *Engine) PlanAllowance(ctx context.Context, year int, filingStatus string, alreadyUsed money.Amount, currentPrices map[uuid.UUID]money.Amount) (types.AllowanceOptimisationResult, error) {
	_, span := e.tracer.Start(ctx, "engine.PlanAllowance", trace.WithAttributes(
		attribute.Int("year", year),
		attribute.String("filing_status", filingStatus),
	))
	defer span.End()

	if err := e.checkAllocated(year); err != nil {
		return types.AllowanceOptimisationResult{}, err
	}

	req := allowance.Request{
		Year:          year,
		FilingStatus:  filingStatus,
		AlreadyUsed:   alreadyUsed,
		Ledgers:       e.ledgerMap(),
		CurrentPrices: currentPrices,
		Securities:    e.securityMap(),
	}
	result, err := allowance.Optimise(e.table, req)
	if err != nil {
		return result, err
	}
	e.offsetProposals(result.Proposals)
	return result, nil
}

// PlanNetPayout runs the net-payout planner (§4.G), likewise running the
// resulting proposals' taxable gains through the loss-offsetting pools
// (Open Question 5).
func (e *Engine) PlanNetPayout(ctx context.Context, req payout.Request) (types.NetPayoutPlan, error) {
	_, span := e.tracer.Start(ctx, "engine.PlanNetPayout", trace.WithAttributes(
		attribute.Int("year", req.Year),
		attribute.String("target_net", req.TargetNet.String()),
	))
	defer span.End()

	if err := e.checkAllocated(req.Year); err != nil {
		return types.NetPayoutPlan{}, err
	}
	if req.Ledgers == nil {
		req.Ledgers = e.ledgerMap()
	}
	if req.Securities == nil {
		req.Securities = e.securityMap()
	}

	plan, err := payout.Plan(e.table, req)
	if err != nil {
		return plan, err
	}

	rate, err := e.table.CombinedTaxRate(req.Year, req.Church, req.Region)
	if err != nil {
		return plan, err
	}
	taxReduction := e.offsetPayoutProposals(plan.Proposals, rate, plan.AllowanceConsumed)
	plan.TaxTotal = plan.TaxTotal.Sub(taxReduction).Round2()
	plan.AchievedNet = plan.AchievedNet.Add(taxReduction).Round2()
	return plan, nil
}

// offsetProposals runs each proposal's taxable gain through the pools,
// classifying FundTypeOther direct holdings as equity for the purpose of
// the narrower equity pool (§4.I; only direct shares draw the equity pool).
// Used by PlanAllowance: allowance-band sales are tax-free by construction
// (§4.F, allowance.Optimise always sets Tax to zero), so offsetting the
// taxable gain there never needs to touch Tax/NetProceeds.
func (e *Engine) offsetProposals(proposals []types.SaleProposal) {
	for i, p := range proposals {
		sec := e.securityByUUID(p.SecurityUUID)
		isEquity := sec.FundType == types.FundTypeOther && !sec.IsFund
		residual := e.pools.AddGain(p.TaxableGain, isEquity)
		proposals[i].TaxableGain = residual
	}
}

// offsetPayoutProposals is PlanNetPayout's counterpart to offsetProposals.
// A net-payout proposal's Tax covers only its taxed band (§4.G); the
// allowance-band share of its TaxableGain is tax-free. That share is
// recovered by replaying allowanceConsumed over the proposals in plan order,
// and only the remaining taxed-band gain is run through the pools. Where the
// pools reduce that gain, Tax and NetProceeds are re-derived from what is
// left and the tax reduction is reported, which the caller folds into the
// plan's TaxTotal/AchievedNet; a proposal whose taxed-band gain the pools do
// not reduce keeps the Tax payout.Plan computed. Legacy-exempt proposals
// already carry a zero taxable gain and a zero tax and are left untouched.
func (e *Engine) offsetPayoutProposals(proposals []types.SaleProposal, rate, allowanceConsumed money.Amount) money.Amount {
	taxReduction := money.Zero
	allowanceLeft := allowanceConsumed
	for i, p := range proposals {
		if p.LegacyExempt {
			continue
		}
		free := money.Zero
		if p.TaxableGain.IsPositive() {
			free = money.Min(p.TaxableGain, allowanceLeft)
			allowanceLeft = allowanceLeft.Sub(free)
		}
		taxed := p.TaxableGain.Sub(free)
		if !taxed.IsPositive() {
			continue
		}
		sec := e.securityByUUID(p.SecurityUUID)
		isEquity := sec.FundType == types.FundTypeOther && !sec.IsFund
		residual := e.pools.AddGain(taxed, isEquity)
		if residual.Equal(taxed) {
			continue
		}

		newTax := money.Zero
		if residual.IsPositive() {
			newTax = residual.Mul(rate).Round2()
		}
		taxReduction = taxReduction.Add(p.Tax.Sub(newTax))

		proposals[i].TaxableGain = free.Add(residual)
		proposals[i].Tax = newTax
		proposals[i].NetProceeds = p.GrossProceeds.Sub(newTax).Round2()
	}
	return taxReduction
}

// LossOffsetReport exposes the current pool state (§4.I).
func (e *Engine) LossOffsetReport() types.LossOffsetReport {
	return e.pools.YearEnd()
}

// RecordLoss deposits a realised loss directly into the pools, bypassing
// the planners — used when replaying a historical SELL that realised a loss
// rather than a gain.
func (e *Engine) RecordLoss(amount money.Amount, isEquity bool) {
	e.pools.AddLoss(amount, isEquity)
}

func (e *Engine) ledgerMap() map[uuid.UUID]*ledger.Ledger {
	out := make(map[uuid.UUID]*ledger.Ledger, len(e.ledgers))
	for id, st := range e.ledgers {
		out[id] = st.ledger
	}
	return out
}

func (e *Engine) securityMap() map[uuid.UUID]types.Security {
	out := make(map[uuid.UUID]types.Security, len(e.ledgers))
	for id, st := range e.ledgers {
		out[id] = st.security
	}
	return out
}

func (e *Engine) securityByUUID(id uuid.UUID) types.Security {
	if st, ok := e.ledgers[id]; ok {
		return st.security
	}
	return types.Security{}
}
