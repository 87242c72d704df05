// Package money provides the fixed-point decimal scalar used throughout the
// tax engine. It wraps github.com/shopspring/decimal rather than float64:
// tax results must never accumulate binary-floating-point error.
package money

import "github.com/shopspring/decimal"

// Amount is a fixed-point decimal value. Internally it carries full
// decimal.Decimal precision; rounding only happens at the documented output
// boundaries via Round2 (money totals) and Round8 (units / per-unit ratios).
type Amount struct {
	d decimal.Decimal
}

// Zero is the additive identity.
var Zero = Amount{d: decimal.Zero}

// New builds an Amount from a float64. Only meant for literal test fixtures
// and for converting values that already arrived as float64 from upstream
// collaborators (e.g. a parser); never construct tax results this way.
func New(f float64) Amount {
	return Amount{d: decimal.NewFromFloat(f)}
}

// NewFromString parses a decimal string, e.g. from a JSON tax-parameter document.
func NewFromString(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, err
	}
	return Amount{d: d}, nil
}

// FromDecimal wraps an existing decimal.Decimal.
func FromDecimal(d decimal.Decimal) Amount { return Amount{d: d} }

// Decimal unwraps to the underlying decimal.Decimal, for callers that need
// to hand a value to another decimal-aware library (e.g. a renderer).
func (a Amount) Decimal() decimal.Decimal { return a.d }

func (a Amount) Add(b Amount) Amount { return Amount{d: a.d.Add(b.d)} }
func (a Amount) Sub(b Amount) Amount { return Amount{d: a.d.Sub(b.d)} }
func (a Amount) Mul(b Amount) Amount { return Amount{d: a.d.Mul(b.d)} }

// Div divides a by b. Division by zero returns Zero rather than panicking;
// callers in this engine never divide by a quantity that can legitimately be
// zero without having already special-cased it (e.g. per-unit gain is only
// computed for lots with units > 0).
func (a Amount) Div(b Amount) Amount {
	if b.d.IsZero() {
		return Zero
	}
	return Amount{d: a.d.Div(b.d)}
}

func (a Amount) Neg() Amount { return Amount{d: a.d.Neg()} }

func (a Amount) IsZero() bool     { return a.d.IsZero() }
func (a Amount) IsNegative() bool { return a.d.IsNegative() }
func (a Amount) IsPositive() bool { return a.d.IsPositive() }

func (a Amount) GreaterThan(b Amount) bool      { return a.d.GreaterThan(b.d) }
func (a Amount) GreaterThanOrEqual(b Amount) bool { return a.d.GreaterThanOrEqual(b.d) }
func (a Amount) LessThan(b Amount) bool         { return a.d.LessThan(b.d) }
func (a Amount) LessThanOrEqual(b Amount) bool  { return a.d.LessThanOrEqual(b.d) }
func (a Amount) Equal(b Amount) bool            { return a.d.Equal(b.d) }

// Cmp returns -1, 0, or 1.
func (a Amount) Cmp(b Amount) int { return a.d.Cmp(b.d) }

// Min and Max are used throughout the allocator/optimiser/planner, which
// repeatedly clamp a computed quantity against a remaining budget.
func Min(a, b Amount) Amount {
	if a.d.LessThanOrEqual(b.d) {
		return a
	}
	return b
}

func Max(a, b Amount) Amount {
	if a.d.GreaterThanOrEqual(b.d) {
		return a
	}
	return b
}

// Round2 rounds to two fractional digits, half-away-from-zero — the scale
// every emitted monetary total uses (§4 of the spec). decimal.Decimal.Round
// already implements half-away-from-zero (the named RoundHalfAwayFromZero
// helper isn't available at the shopspring/decimal version this module
// pins), so Round is used directly.
func (a Amount) Round2() Amount { return Amount{d: a.d.Round(2)} }

// Round8 rounds to eight fractional digits, half-away-from-zero — the scale
// units and per-unit ratios retain internally.
func (a Amount) Round8() Amount { return Amount{d: a.d.Round(8)} }

// CeilTo8 rounds to eight fractional digits and then, if the true value was
// not already exact at that scale, nudges the result one unit in the eighth
// place away from zero (up for positive values, down for negative ones). The net-payout planner (§4.G) uses this intentional over-rounding
// when converting a remaining net amount into a unit count, so that selling
// the computed number of units never falls short of the requested net.
func (a Amount) CeilTo8() Amount {
	rounded := a.d.Round(8)
	if rounded.Equal(a.d) {
		return Amount{d: rounded}
	}
	step := decimal.New(1, -8)
	if a.d.IsNegative() {
		return Amount{d: rounded.Sub(step)}
	}
	return Amount{d: rounded.Add(step)}
}

func (a Amount) String() string { return a.d.String() }

// Float64 exposes a float64 view for interop with non-monetary libraries
// such as chart rendering, where losing sub-cent precision is immaterial.
func (a Amount) Float64() float64 {
	f, _ := a.d.Float64()
	return f
}
