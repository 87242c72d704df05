package taxparams

import (
	"encoding/json"
	"fmt"
	"strconv"

	"abgeltungsteuer-engine/internal/engine/money"
	"abgeltungsteuer-engine/internal/engine/types"
)

// rawDocument mirrors the JSON tax-parameter document (§6.2): top-level keys
// are parameter names, each value an object keyed by stringified year (or a
// "_comment" key, ignored). Each top-level value is kept as json.RawMessage
// so an unrecognised key may hold any JSON value, and each parameter parses
// into its own value shape.
type rawDocument map[string]json.RawMessage

// Load parses the bundled tax-parameter document and builds an immutable
// Table. Keys that don't parse as a positive integer (e.g. "_comment") are
// ignored per §6.2, never an error.
func Load(raw []byte) (*Table, error) {
	var doc rawDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("taxparams: parsing document: %w", err)
	}

	t := newTable()

	for name, rawParam := range doc {
		var yearly map[string]json.RawMessage
		if err := json.Unmarshal(rawParam, &yearly); err != nil {
			if scalarParams[name] || name == ParamKirchensteuerSaetze || name == ParamSparerpauschbetrag || name == ParamTeilfreistellung {
				return nil, fmt.Errorf("taxparams: %s: %w", name, err)
			}
			// A non-object value under an unrecognised top-level key (e.g. a
			// document-level "_comment") is ignored like any other unknown key.
			continue
		}
		switch name {
		case ParamKirchensteuerSaetze:
			if err := loadChurch(t, yearly); err != nil {
				return nil, err
			}
		case ParamSparerpauschbetrag:
			if err := loadAllowance(t, yearly); err != nil {
				return nil, err
			}
		case ParamTeilfreistellung:
			if err := loadExemption(t, yearly); err != nil {
				return nil, err
			}
		default:
			if !scalarParams[name] {
				// Unrecognised top-level key: ignore, matching the parser's
				// tolerance for forward-compatible documents (§6.2 only
				// names recognised parameters; it does not forbid others).
				continue
			}
			if err := loadScalar(t, name, yearly); err != nil {
				return nil, err
			}
		}
	}
	return t, nil
}

func yearKey(s string) (int, bool) {
	y, err := strconv.Atoi(s)
	if err != nil || y <= 0 {
		return 0, false
	}
	return y, true
}

func loadScalar(t *Table, name string, yearly map[string]json.RawMessage) error {
	steps := map[int]money.Amount{}
	for ys, raw := range yearly {
		y, ok := yearKey(ys)
		if !ok {
			continue
		}
		var f float64
		if err := json.Unmarshal(raw, &f); err != nil {
			return fmt.Errorf("taxparams: %s[%s]: %w", name, ys, err)
		}
		steps[y] = money.New(f)
	}
	t.scalarSteps[name] = steps
	return nil
}

func loadChurch(t *Table, yearly map[string]json.RawMessage) error {
	for ys, raw := range yearly {
		y, ok := yearKey(ys)
		if !ok {
			continue
		}
		var m map[string]float64
		if err := json.Unmarshal(raw, &m); err != nil {
			return fmt.Errorf("taxparams: %s[%s]: %w", ParamKirchensteuerSaetze, ys, err)
		}
		rates := ChurchRates{}
		for region, f := range m {
			rates[region] = money.New(f)
		}
		t.churchSteps[y] = rates
	}
	return nil
}

func loadAllowance(t *Table, yearly map[string]json.RawMessage) error {
	for ys, raw := range yearly {
		y, ok := yearKey(ys)
		if !ok {
			continue
		}
		var m map[string]float64
		if err := json.Unmarshal(raw, &m); err != nil {
			return fmt.Errorf("taxparams: %s[%s]: %w", ParamSparerpauschbetrag, ys, err)
		}
		byFiling := AllowanceByFiling{}
		for status, f := range m {
			byFiling[status] = money.New(f)
		}
		t.allowanceSteps[y] = byFiling
	}
	return nil
}

func loadExemption(t *Table, yearly map[string]json.RawMessage) error {
	for ys, raw := range yearly {
		y, ok := yearKey(ys)
		if !ok {
			continue
		}
		var m map[string]float64
		if err := json.Unmarshal(raw, &m); err != nil {
			return fmt.Errorf("taxparams: %s[%s]: %w", ParamTeilfreistellung, ys, err)
		}
		byFund := PartialExemptionByFundType{}
		for tag, f := range m {
			byFund[types.ParseFundType(tag)] = money.New(f)
		}
		t.exemptionSteps[y] = byFund
	}
	return nil
}
