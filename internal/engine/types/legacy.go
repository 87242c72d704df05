package types

import "time"

// bestandsschutzCutoff is the date named in §4.H: direct-equity lots bought
// strictly before this date are grandfathered tax-free (Bestandsschutz).
// 2009-01-01 itself is NOT exempt — the comparison is strict.
var bestandsschutzCutoff = time.Date(2009, time.January, 1, 0, 0, 0, 0, time.UTC)

// LegacyExempt reports whether a lot bought on buyDate for a security with
// the given IsFund flag is grandfathered tax-free under Bestandsschutz.
// Kept as its own predicate (not inlined into the sale path) because the
// original implementation (src/pptax/engine/bestandsschutz.py) treats it as
// an independent, reusable rule shared by both the allowance optimiser and
// the net-payout planner.
func LegacyExempt(buyDate time.Time, isFund bool) bool {
	if isFund {
		return false
	}
	return buyDate.Before(bestandsschutzCutoff)
}
