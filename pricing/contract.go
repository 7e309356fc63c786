/*
contract.go - Customer contracts and rate specifications

PURPOSE:
  Defines the contract data model this engine reads: a customer contract
  carries a validity window, a status, and a per-material map of RateSpec
  variants. Contracts are owned and mutated exclusively by an external
  contract-management system - this engine never writes them.

RATE SPEC VARIANTS:
  RateFixed:            The contracted rate applies verbatim, independent
                        of market movement.
  RateDiscountPercent:  A percentage off the current market rate.
  RateMinimumGuarantee: The customer pays min(market, cap) - they benefit
                        when the market drops but never pay above the cap.

PER-RATE VALIDITY:
  Each RateSpec may carry its own validity window and status, overriding
  the contract-level ones. When absent, the contract's dates and status
  apply. Activity evaluation lives here (ValidityFor / ActiveAt) so date
  comparison logic is not duplicated at call sites.

LEGACY RATES:
  Upstream data contains bare numeric rates from an earlier schema. Those
  are normalized to RateFixed at ingestion (see factory package); nothing
  below the factory ever branches on shape.

SEE ALSO:
  - resolver.go: Uses ActiveAt to decide contract vs market pricing
  - factory/contract.go: JSON ingestion and legacy normalization
*/
package pricing

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// CONTRACT STATUS
// =============================================================================

type ContractStatus string

const (
	ContractActive    ContractStatus = "active"
	ContractExpired   ContractStatus = "expired"
	ContractSuspended ContractStatus = "suspended"
	ContractCancelled ContractStatus = "cancelled"
)

// ValidStatus reports whether s is one of the known contract statuses.
func ValidStatus(s ContractStatus) bool {
	switch s {
	case ContractActive, ContractExpired, ContractSuspended, ContractCancelled:
		return true
	}
	return false
}

// =============================================================================
// RATE SPEC - Tagged variant for per-material pricing rules
// =============================================================================

type RateKind string

const (
	RateFixed            RateKind = "fixed"
	RateDiscountPercent  RateKind = "discount_percent"
	RateMinimumGuarantee RateKind = "minimum_guarantee"
)

// Validity is an optional window + status carried by a single RateSpec,
// overriding the contract-level dates and status when present.
type Validity struct {
	StartDate time.Time
	EndDate   time.Time
	Status    ContractStatus
}

// Contains reports whether at falls within the validity window (inclusive
// on both ends, day granularity is the caller's concern).
func (v Validity) Contains(at time.Time) bool {
	return !at.Before(v.StartDate) && !at.After(v.EndDate)
}

// RateSpec is the single tagged-variant representation for a per-material
// pricing rule. Exactly one of the variant fields is meaningful, selected
// by Kind:
//
//	RateFixed            -> ContractRate
//	RateDiscountPercent  -> Percent
//	RateMinimumGuarantee -> CapRate
type RateSpec struct {
	Kind         RateKind
	ContractRate decimal.Decimal
	Percent      decimal.Decimal
	CapRate      decimal.Decimal

	// Validity overrides the contract-level window/status when non-nil.
	Validity *Validity
}

// =============================================================================
// CONTRACT
// =============================================================================

// Contract is a customer's pricing agreement. Read-only for this engine.
type Contract struct {
	ID           ContractID
	CustomerID   CustomerID
	StartDate    time.Time
	EndDate      time.Time
	Status       ContractStatus
	SpecialTerms string

	Rates map[MaterialID]RateSpec
}

// ValidityFor returns the validity that governs spec: the spec's own when
// present, otherwise the contract's dates and status.
func (c *Contract) ValidityFor(spec RateSpec) Validity {
	if spec.Validity != nil {
		return *spec.Validity
	}
	return Validity{StartDate: c.StartDate, EndDate: c.EndDate, Status: c.Status}
}

// ActiveAt reports whether spec is active at the given time: its governing
// status is active AND at falls within the governing window. An inactive
// spec must never supply the effective price (the resolver falls back to
// the market rate).
func (c *Contract) ActiveAt(spec RateSpec, at time.Time) bool {
	v := c.ValidityFor(spec)
	return v.Status == ContractActive && v.Contains(at)
}

// RateFor returns the RateSpec for a material, if the contract has one.
func (c *Contract) RateFor(id MaterialID) (RateSpec, bool) {
	if c == nil || c.Rates == nil {
		return RateSpec{}, false
	}
	spec, ok := c.Rates[id]
	return spec, ok
}
