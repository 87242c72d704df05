package vorab

import (
	"time"

	"go.uber.org/zap"

	"abgeltungsteuer-engine/internal/engine/ledger"
	"abgeltungsteuer-engine/internal/engine/money"
	"abgeltungsteuer-engine/internal/engine/priceindex"
	"abgeltungsteuer-engine/internal/engine/taxparams"
	"abgeltungsteuer-engine/internal/engine/types"
)

// Allocate walks every lot in led across every completed prior tax year
// [buyYear(lot), taxYear-1] and accrues that year's Vorabpauschale onto the
// lot (§4.D). A year is silently skipped — the only place in the engine a
// failed lookup is swallowed rather than propagated (§7) — when the year's
// base interest can't be looked up, is negative, or either boundary price is
// missing within tolerance.
//
// dividendsByYear sums DIVIDEND transaction gross amounts for this security
// per calendar year; they are split across lots in proportion to each lot's
// *current* unit count, not the unit count that existed at the dividend's
// ex-date — a deliberate simplification (§9.3).
func Allocate(
	logger *zap.Logger,
	table *taxparams.Table,
	led *ledger.Ledger,
	sec types.Security,
	taxYear int,
	prices *priceindex.Index,
	dividendsByYear map[int]money.Amount,
) error {
	if logger == nil {
		logger = zap.NewNop()
	}

	totalUnits := led.TotalUnits()
	lots := led.Lots()

	for idx, lot := range lots {
		buyYear := lot.BuyDate.Year()
		for year := buyYear; year < taxYear; year++ {
			result, skip := allocateOneYear(logger, table, sec, lot, buyYear, year, prices, dividendsByYear, totalUnits)
			if skip {
				continue
			}
			if result.Gross.IsZero() {
				continue
			}
			if err := led.CreditAccruedToLot(idx, result.Gross); err != nil {
				return err
			}
		}
	}
	return nil
}

func allocateOneYear(
	logger *zap.Logger,
	table *taxparams.Table,
	sec types.Security,
	lot ledger.Lot,
	buyYear, year int,
	prices *priceindex.Index,
	dividendsByYear map[int]money.Amount,
	totalUnits money.Amount,
) (types.AdvanceLumpSumResult, bool) {
	basiszins, err := table.GetScalar(taxparams.ParamBasiszinsVorabpauschale, year)
	if err != nil {
		logger.Debug("vorab: skipping year, no base-interest entry",
			zap.Int("year", year), zap.Error(err))
		return types.AdvanceLumpSumResult{}, true
	}
	if basiszins.IsNegative() {
		return types.AdvanceLumpSumResult{}, true
	}

	jan1 := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
	dec31 := time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC)

	priceStart, ok := prices.LookupDefault(jan1)
	if !ok {
		logger.Debug("vorab: skipping year, no Jan-1 price within tolerance", zap.Int("year", year))
		return types.AdvanceLumpSumResult{}, true
	}
	priceEnd, ok := prices.LookupDefault(dec31)
	if !ok {
		logger.Debug("vorab: skipping year, no Dec-31 price within tolerance", zap.Int("year", year))
		return types.AdvanceLumpSumResult{}, true
	}

	valueStart := priceStart.Mul(lot.UnitsRemaining)
	valueEnd := priceEnd.Mul(lot.UnitsRemaining)

	distributions := money.Zero
	if yearDividends, ok := dividendsByYear[year]; ok && totalUnits.IsPositive() {
		share := lot.UnitsRemaining.Div(totalUnits)
		distributions = yearDividends.Mul(share)
	}

	var purchaseDate *time.Time
	if buyYear == year {
		bd := lot.BuyDate
		purchaseDate = &bd
	}

	result, err := Calculate(table, sec, Inputs{
		SecurityUUID:  sec.UUID,
		Year:          year,
		ValueStart:    valueStart,
		ValueEnd:      valueEnd,
		Distributions: distributions,
		PurchaseDate:  purchaseDate,
	})
	if err != nil {
		logger.Debug("vorab: skipping year, calculation error", zap.Int("year", year), zap.Error(err))
		return types.AdvanceLumpSumResult{}, true
	}
	return result, false
}
