package types

import "errors"

// Sentinel errors surfaced by the engine core (spec §7). Callers should use
// errors.Is against these; internal code wraps them with fmt.Errorf("...: %w", ...)
// to attach the offending parameter name, year, or security UUID.
var (
	// ErrUnknownParameter is returned when a caller requests a tax-parameter
	// name that is not registered in the table at all.
	ErrUnknownParameter = errors.New("tax engine: unknown parameter")

	// ErrNoValidEntry is returned when a parameter exists but has no entry
	// for any year less than or equal to the requested year.
	ErrNoValidEntry = errors.New("tax engine: no valid tax-parameter entry for year")

	// ErrInsufficientUnits is returned when a sell is requested against a
	// ledger that does not hold enough units to satisfy it.
	ErrInsufficientUnits = errors.New("tax engine: insufficient units in ledger")

	// ErrUnparseableDate is propagated from the parser boundary.
	ErrUnparseableDate = errors.New("tax engine: unparseable date")

	// ErrMalformedAmount is propagated from the parser boundary.
	ErrMalformedAmount = errors.New("tax engine: malformed amount")
)
