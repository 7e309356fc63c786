/*
Package factory provides JSON to Go contract conversion.

PURPOSE:
  Converts JSON contract definitions into pricing.Contract objects. The
  contract-management system stores contracts as JSON; this factory is
  the single place where that shape is interpreted, so the engine itself
  never branches on representation.

JSON SCHEMA:
  {
    "id": "ctr-2026-001",
    "customer_id": "cust-ACME",
    "start_date": "2026-01-01",
    "end_date": "2026-12-31",
    "status": "active",
    "special_terms": "net 30",
    "rates": {
      "mat-copper": {"type": "fixed", "contract_rate": "9250.00"},
      "mat-crude":  {"type": "discount_percent", "percent": "20"},
      "mat-zinc":   {"type": "minimum_guarantee", "cap_rate": "9.000",
                     "start_date": "2026-03-01", "end_date": "2026-06-30",
                     "status": "active"},
      "mat-scrap":  412.5
    }
  }

LEGACY NORMALIZATION:
  A bare numeric rate (mat-scrap above) is the pre-variant schema. It
  normalizes to a fixed rate inheriting the contract-level validity, so
  downstream code sees exactly one representation.

VALIDATION:
  - Dates must parse as YYYY-MM-DD and end must not precede start
  - Status must be a known contract status
  - Rate type must be a known variant
  - Variant payload must be present (e.g. fixed requires contract_rate)

SEE ALSO:
  - pricing/contract.go: The normalized representation
  - store/sqlite: Stores the JSON and parses through this factory on read
*/
package factory

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/pricing-engine/pricing"
)

const dateLayout = "2006-01-02"

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// ContractJSON is the stored representation of a contract.
type ContractJSON struct {
	ID           string                     `json:"id"`
	CustomerID   string                     `json:"customer_id"`
	StartDate    string                     `json:"start_date"`
	EndDate      string                     `json:"end_date"`
	Status       string                     `json:"status"`
	SpecialTerms string                     `json:"special_terms,omitempty"`
	Rates        map[string]json.RawMessage `json:"rates"`
}

// RateSpecJSON is the structured form of one per-material rate. Bare
// numbers are accepted in its place (legacy schema).
type RateSpecJSON struct {
	Type         string           `json:"type"`
	ContractRate *decimal.Decimal `json:"contract_rate,omitempty"`
	Percent      *decimal.Decimal `json:"percent,omitempty"`
	CapRate      *decimal.Decimal `json:"cap_rate,omitempty"`

	// Optional per-rate validity overriding the contract's.
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
	Status    string `json:"status,omitempty"`
}

// =============================================================================
// CONTRACT FACTORY
// =============================================================================

// ContractFactory converts JSON contracts to pricing.Contract.
type ContractFactory struct{}

func NewContractFactory() *ContractFactory {
	return &ContractFactory{}
}

// ParseContract parses a JSON string into a normalized Contract.
func (f *ContractFactory) ParseContract(jsonStr string) (*pricing.Contract, error) {
	var cj ContractJSON
	if err := json.Unmarshal([]byte(jsonStr), &cj); err != nil {
		return nil, fmt.Errorf("failed to parse contract JSON: %w", err)
	}
	return f.FromJSON(cj)
}

// FromJSON converts ContractJSON to a pricing.Contract, normalizing
// legacy bare-number rates to fixed rates.
func (f *ContractFactory) FromJSON(cj ContractJSON) (*pricing.Contract, error) {
	if cj.ID == "" {
		return nil, fmt.Errorf("contract id is required")
	}
	if cj.CustomerID == "" {
		return nil, fmt.Errorf("contract %s: customer_id is required", cj.ID)
	}

	start, end, err := parseWindow(cj.StartDate, cj.EndDate)
	if err != nil {
		return nil, fmt.Errorf("contract %s: %w", cj.ID, err)
	}

	status := pricing.ContractStatus(cj.Status)
	if !pricing.ValidStatus(status) {
		return nil, fmt.Errorf("contract %s: unknown status %q", cj.ID, cj.Status)
	}

	contract := &pricing.Contract{
		ID:           pricing.ContractID(cj.ID),
		CustomerID:   pricing.CustomerID(cj.CustomerID),
		StartDate:    start,
		EndDate:      end,
		Status:       status,
		SpecialTerms: cj.SpecialTerms,
		Rates:        make(map[pricing.MaterialID]pricing.RateSpec, len(cj.Rates)),
	}

	for materialID, raw := range cj.Rates {
		spec, err := parseRateSpec(raw)
		if err != nil {
			return nil, fmt.Errorf("contract %s: rate for %s: %w", cj.ID, materialID, err)
		}
		contract.Rates[pricing.MaterialID(materialID)] = spec
	}

	return contract, nil
}

// =============================================================================
// RATE SPEC PARSING
// =============================================================================

func parseRateSpec(raw json.RawMessage) (pricing.RateSpec, error) {
	// Legacy bare number: normalize to a fixed rate inheriting the
	// contract-level validity (Validity stays nil).
	var legacy decimal.Decimal
	if err := json.Unmarshal(raw, &legacy); err == nil {
		return pricing.RateSpec{Kind: pricing.RateFixed, ContractRate: legacy}, nil
	}

	var rj RateSpecJSON
	if err := json.Unmarshal(raw, &rj); err != nil {
		return pricing.RateSpec{}, fmt.Errorf("neither a number nor a rate object: %w", err)
	}

	var spec pricing.RateSpec
	switch rj.Type {
	case string(pricing.RateFixed):
		if rj.ContractRate == nil {
			return pricing.RateSpec{}, fmt.Errorf("fixed rate requires contract_rate")
		}
		spec = pricing.RateSpec{Kind: pricing.RateFixed, ContractRate: *rj.ContractRate}

	case string(pricing.RateDiscountPercent):
		if rj.Percent == nil {
			return pricing.RateSpec{}, fmt.Errorf("discount rate requires percent")
		}
		spec = pricing.RateSpec{Kind: pricing.RateDiscountPercent, Percent: *rj.Percent}

	case string(pricing.RateMinimumGuarantee):
		if rj.CapRate == nil {
			return pricing.RateSpec{}, fmt.Errorf("minimum guarantee requires cap_rate")
		}
		spec = pricing.RateSpec{Kind: pricing.RateMinimumGuarantee, CapRate: *rj.CapRate}

	default:
		return pricing.RateSpec{}, fmt.Errorf("unknown rate type %q", rj.Type)
	}

	validity, err := parseValidity(rj)
	if err != nil {
		return pricing.RateSpec{}, err
	}
	spec.Validity = validity
	return spec, nil
}

// parseValidity builds the optional per-rate validity override. All three
// fields travel together: a window without a status defaults to active.
func parseValidity(rj RateSpecJSON) (*pricing.Validity, error) {
	if rj.StartDate == "" && rj.EndDate == "" && rj.Status == "" {
		return nil, nil
	}
	if rj.StartDate == "" || rj.EndDate == "" {
		return nil, fmt.Errorf("rate validity requires both start_date and end_date")
	}

	start, end, err := parseWindow(rj.StartDate, rj.EndDate)
	if err != nil {
		return nil, err
	}

	status := pricing.ContractActive
	if rj.Status != "" {
		status = pricing.ContractStatus(rj.Status)
		if !pricing.ValidStatus(status) {
			return nil, fmt.Errorf("unknown rate status %q", rj.Status)
		}
	}

	return &pricing.Validity{StartDate: start, EndDate: end, Status: status}, nil
}

func parseWindow(startStr, endStr string) (time.Time, time.Time, error) {
	start, err := time.Parse(dateLayout, startStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid start_date %q (use YYYY-MM-DD)", startStr)
	}
	end, err := time.Parse(dateLayout, endStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid end_date %q (use YYYY-MM-DD)", endStr)
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("end_date %s before start_date %s", endStr, startStr)
	}
	return start, end, nil
}
