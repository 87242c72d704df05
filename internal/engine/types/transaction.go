package types

import (
	"time"

	"github.com/google/uuid"

	"abgeltungsteuer-engine/internal/engine/money"
)

// TransactionKind is a closed sum type over the transaction kinds the engine
// understands. Using an enum instead of raw strings keeps the ledger-replay
// switch in Engine.BuildLedgers (internal/engine) typed rather than
// string-matched.
type TransactionKind int

const (
	TransactionBuy TransactionKind = iota
	TransactionSell
	TransactionDeliveryIn
	TransactionDeliveryOut
	TransactionDividend
)

func (k TransactionKind) String() string {
	switch k {
	case TransactionBuy:
		return "BUY"
	case TransactionSell:
		return "SELL"
	case TransactionDeliveryIn:
		return "DELIVERY_IN"
	case TransactionDeliveryOut:
		return "DELIVERY_OUT"
	case TransactionDividend:
		return "DIVIDEND"
	default:
		return "UNKNOWN"
	}
}

// Transaction is an immutable tuple describing one portfolio event, as
// produced by the (out-of-scope) portfolio-file parser.
type Transaction struct {
	Date          time.Time
	Kind          TransactionKind
	SecurityUUID  uuid.UUID
	Units         money.Amount // at least 8 fractional digits
	UnitPrice     money.Amount
	Gross         money.Amount // 2 fractional digits
	Fees          money.Amount
	Taxes         money.Amount
	PortfolioUUID *uuid.UUID // nil: belongs to "all portfolios"
}

// DerivedUnitPrice returns UnitPrice when it was supplied, otherwise derives
// it as Gross/Units (spec §3: "per-unit price may be derived as gross/units
// when units>0").
func (t Transaction) DerivedUnitPrice() money.Amount {
	if !t.UnitPrice.IsZero() {
		return t.UnitPrice
	}
	if t.Units.IsZero() {
		return money.Zero
	}
	return t.Gross.Div(t.Units)
}
