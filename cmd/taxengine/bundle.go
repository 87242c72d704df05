package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"abgeltungsteuer-engine/internal/engine/money"
	"abgeltungsteuer-engine/internal/engine/types"
)

// bundle is the shape the out-of-scope portfolio-file parser is expected to
// emit (§6.4, §6.6): securities, transactions, and current prices for a
// single evaluation run. This CLI never parses a Portfolio Performance file
// itself; it only consumes the parser's output.
type bundle struct {
	Securities   []bundleSecurity   `json:"securities"`
	Transactions []bundleTransaction `json:"transactions"`
	Prices       map[string]string  `json:"current_prices"` // security UUID -> decimal string
}

type bundleSecurity struct {
	UUID     string `json:"uuid"`
	Name     string `json:"name"`
	ISIN     string `json:"isin"`
	WKN      string `json:"wkn"`
	FundType string `json:"fund_type"`
	IsFund   bool   `json:"is_fund"`
}

type bundleTransaction struct {
	Date         string `json:"date"`
	Kind         string `json:"kind"`
	SecurityUUID string `json:"security_uuid"`
	Units        string `json:"units"`
	UnitPrice    string `json:"unit_price"`
	Gross        string `json:"gross"`
	Fees         string `json:"fees"`
	Taxes        string `json:"taxes"`
}

func loadBundle(path string) (*bundle, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading bundle: %w", err)
	}
	var b bundle
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, fmt.Errorf("parsing bundle: %w", err)
	}
	return &b, nil
}

func parseTransactionKind(s string) (types.TransactionKind, error) {
	switch s {
	case "BUY":
		return types.TransactionBuy, nil
	case "SELL":
		return types.TransactionSell, nil
	case "DELIVERY_IN":
		return types.TransactionDeliveryIn, nil
	case "DELIVERY_OUT":
		return types.TransactionDeliveryOut, nil
	case "DIVIDEND":
		return types.TransactionDividend, nil
	default:
		return 0, fmt.Errorf("bundle: unrecognised transaction kind %q", s)
	}
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02", "2006-01-02T15:04", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", types.ErrUnparseableDate, s)
}

func parseAmount(s string) (money.Amount, error) {
	if s == "" {
		return money.Zero, nil
	}
	amt, err := money.NewFromString(s)
	if err != nil {
		return money.Zero, fmt.Errorf("%w: %q", types.ErrMalformedAmount, s)
	}
	return amt, nil
}

// toEngineInputs converts the bundle into the value objects the engine
// consumes (§2 data-flow: parser -> securities/transactions/prices ->
// engine).
func (b *bundle) toEngineInputs() (map[uuid.UUID]types.Security, []types.Transaction, map[uuid.UUID]money.Amount, error) {
	securities := make(map[uuid.UUID]types.Security, len(b.Securities))
	for _, s := range b.Securities {
		id, err := uuid.Parse(s.UUID)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("bundle: invalid security uuid %q: %w", s.UUID, err)
		}
		securities[id] = types.Security{
			UUID:     id,
			Name:     s.Name,
			ISIN:     s.ISIN,
			WKN:      s.WKN,
			FundType: types.ParseFundType(s.FundType),
			IsFund:   s.IsFund,
		}
	}

	txs := make([]types.Transaction, 0, len(b.Transactions))
	for _, t := range b.Transactions {
		id, err := uuid.Parse(t.SecurityUUID)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("bundle: invalid transaction security uuid %q: %w", t.SecurityUUID, err)
		}
		date, err := parseDate(t.Date)
		if err != nil {
			return nil, nil, nil, err
		}
		kind, err := parseTransactionKind(t.Kind)
		if err != nil {
			return nil, nil, nil, err
		}
		units, err := parseAmount(t.Units)
		if err != nil {
			return nil, nil, nil, err
		}
		unitPrice, err := parseAmount(t.UnitPrice)
		if err != nil {
			return nil, nil, nil, err
		}
		gross, err := parseAmount(t.Gross)
		if err != nil {
			return nil, nil, nil, err
		}
		fees, err := parseAmount(t.Fees)
		if err != nil {
			return nil, nil, nil, err
		}
		taxes, err := parseAmount(t.Taxes)
		if err != nil {
			return nil, nil, nil, err
		}

		txs = append(txs, types.Transaction{
			Date:         date,
			Kind:         kind,
			SecurityUUID: id,
			Units:        units,
			UnitPrice:    unitPrice,
			Gross:        gross,
			Fees:         fees,
			Taxes:        taxes,
		})
	}

	prices := make(map[uuid.UUID]money.Amount, len(b.Prices))
	for idStr, priceStr := range b.Prices {
		id, err := uuid.Parse(idStr)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("bundle: invalid price security uuid %q: %w", idStr, err)
		}
		amt, err := parseAmount(priceStr)
		if err != nil {
			return nil, nil, nil, err
		}
		prices[id] = amt
	}

	return securities, txs, prices, nil
}
