// Package ledger implements the per-security FIFO lot ledger (§4.B): an
// ordered sequence of lots, oldest first, with in-place head-consumption on
// sell and a value-level deep copy for gain simulation.
package ledger

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"abgeltungsteuer-engine/internal/engine/money"
	"abgeltungsteuer-engine/internal/engine/types"
)

// Lot is one buy lot owned by exactly one Ledger.
type Lot struct {
	BuyDate        time.Time
	UnitsRemaining money.Amount
	EntryPrice     money.Amount
	Accrued        money.Amount // accrued Vorabpauschale credit, §4.D
}

// Ledger owns one security's ordered lot sequence. Lots are consumed from
// the head on sell; insertion order is the tie-break for equal buy dates.
type Ledger struct {
	SecurityUUID uuid.UUID
	lots         []*Lot
}

// New creates an empty ledger for a security.
func New(securityUUID uuid.UUID) *Ledger {
	return &Ledger{SecurityUUID: securityUUID}
}

// Buy appends a fresh lot with zero accrued Vorabpauschale.
func (l *Ledger) Buy(date time.Time, units, unitPrice money.Amount) {
	l.lots = append(l.lots, &Lot{
		BuyDate:        date,
		UnitsRemaining: units,
		EntryPrice:     unitPrice,
		Accrued:        money.Zero,
	})
}

// TotalUnits sums UnitsRemaining across all live lots.
func (l *Ledger) TotalUnits() money.Amount {
	total := money.Zero
	for _, lot := range l.lots {
		total = total.Add(lot.UnitsRemaining)
	}
	return total
}

// Lots returns an immutable view of the live lots (pointers are not
// exposed; callers get value copies so they cannot mutate ledger state
// behind its back).
func (l *Ledger) Lots() []Lot {
	out := make([]Lot, 0, len(l.lots))
	for _, lot := range l.lots {
		if lot.UnitsRemaining.IsZero() {
			continue
		}
		out = append(out, *lot)
	}
	return out
}

// sellInto consumes units from the head of lots, appending a realised slice
// per consumed lot and shrinking each partially-consumed lot's Accrued
// proportionally to the surviving unit fraction (§3 invariant). It mutates
// lots in place and returns the realised slices plus the possibly-shortened
// lot slice.
func sellInto(lots []*Lot, date time.Time, units, unitPrice money.Amount) ([]*Lot, []types.SoldSlice, error) {
	total := money.Zero
	for _, lot := range lots {
		total = total.Add(lot.UnitsRemaining)
	}
	if units.GreaterThan(total) {
		return lots, nil, fmt.Errorf("%w: requested %s, have %s", types.ErrInsufficientUnits, units, total)
	}

	remaining := units
	var slices []types.SoldSlice
	i := 0
	for i < len(lots) && remaining.IsPositive() {
		lot := lots[i]
		take := money.Min(lot.UnitsRemaining, remaining)

		fraction := money.Zero
		if lot.UnitsRemaining.IsPositive() {
			fraction = take.Div(lot.UnitsRemaining)
		}
		creditedAccrued := lot.Accrued.Mul(fraction)

		slices = append(slices, types.SoldSlice{
			BuyDate:                lot.BuyDate,
			SellDate:               date,
			Units:                  take,
			EntryPrice:             lot.EntryPrice,
			SellPrice:              unitPrice,
			GrossGain:              take.Mul(unitPrice.Sub(lot.EntryPrice)),
			CreditedAdvanceLumpSum: creditedAccrued,
		})

		survivingFraction := money.New(1).Sub(fraction)
		lot.Accrued = lot.Accrued.Mul(survivingFraction)
		lot.UnitsRemaining = lot.UnitsRemaining.Sub(take)
		remaining = remaining.Sub(take)

		if lot.UnitsRemaining.IsZero() {
			i++
		}
	}

	// Drop fully-consumed lots from the head.
	return lots[i:], slices, nil
}

// Sell consumes units from the head of the ledger at unitPrice, mutating
// ledger state, and returns the realised slices (§4.B).
func (l *Ledger) Sell(date time.Time, units, unitPrice money.Amount) ([]types.SoldSlice, error) {
	remaining, slices, err := sellInto(l.lots, date, units, unitPrice)
	if err != nil {
		return nil, err
	}
	l.lots = remaining
	return slices, nil
}

// SimulateGain computes the gross gain minus credited accrued Vorabpauschale
// that would result from selling units at unitPrice, without mutating the
// ledger (§4.B). Implemented as a value-level deep clone of the lot list,
// never a shared-view alias, so concurrent read-only simulation is safe as
// long as the caller itself isn't concurrently mutating this ledger.
func (l *Ledger) SimulateGain(units, unitPrice money.Amount) (money.Amount, error) {
	clone := make([]*Lot, len(l.lots))
	for i, lot := range l.lots {
		copied := *lot
		clone[i] = &copied
	}
	_, slices, err := sellInto(clone, time.Now(), units, unitPrice)
	if err != nil {
		return money.Zero, err
	}
	net := money.Zero
	for _, s := range slices {
		net = net.Add(s.GrossGain).Sub(s.CreditedAdvanceLumpSum)
	}
	return net, nil
}

// DeliverIn is an alias for Buy: a DELIVERY_IN transaction behaves like a
// buy for lot-tracking purposes (§4.B operations list).
func (l *Ledger) DeliverIn(date time.Time, units, unitPrice money.Amount) {
	l.Buy(date, units, unitPrice)
}

// DeliverOut is an alias for Sell: a DELIVERY_OUT transaction consumes from
// the head exactly like a sell.
func (l *Ledger) DeliverOut(date time.Time, units, unitPrice money.Amount) ([]types.SoldSlice, error) {
	return l.Sell(date, units, unitPrice)
}

// CreditAccruedTotal spreads amount proportionally across all live lots by
// UnitsRemaining (§4.B: used by the per-year global accrual path, if used).
func (l *Ledger) CreditAccruedTotal(amount money.Amount) {
	total := l.TotalUnits()
	if !total.IsPositive() {
		return
	}
	for _, lot := range l.lots {
		if !lot.UnitsRemaining.IsPositive() {
			continue
		}
		share := lot.UnitsRemaining.Div(total).Mul(amount)
		lot.Accrued = lot.Accrued.Add(share)
	}
}

// CreditAccruedToLot adds amount to exactly one lot by its index in Lots()
// order (§4.B: used by the per-lot allocator, §4.D).
func (l *Ledger) CreditAccruedToLot(index int, amount money.Amount) error {
	live := 0
	for _, lot := range l.lots {
		if lot.UnitsRemaining.IsZero() {
			continue
		}
		if live == index {
			lot.Accrued = lot.Accrued.Add(amount)
			return nil
		}
		live++
	}
	return fmt.Errorf("ledger: lot index %d out of range (%d live lots)", index, live)
}

// LotAt returns a pointer to the live lot at the given index in Lots()
// order, for allocator code that needs to mutate a specific lot beyond a
// simple accrual credit.
func (l *Ledger) LotAt(index int) (*Lot, bool) {
	live := 0
	for _, lot := range l.lots {
		if lot.UnitsRemaining.IsZero() {
			continue
		}
		if live == index {
			return lot, true
		}
		live++
	}
	return nil, false
}
