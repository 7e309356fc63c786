/*
Package pricing provides the core order-pricing engine.

PURPOSE:
  This package contains the pure computation layer for pricing order lines:
  resolving a material's effective unit price against a customer contract,
  gating manual rate overrides behind an approval step, and rolling line
  amounts into order totals. It performs no I/O - contracts, materials and
  stock data are supplied by callers (see store/sqlite and inventory).

KEY CONCEPTS IN THIS FILE (types.go):
  - Material: A tradable commodity with a market (standard) price
  - MaterialID/CustomerID/ContractID: Type-safe identifiers
  - RateEpsilon: The tolerance below which a manual rate edit is not
    considered an override of a contracted rate

DESIGN PRINCIPLES:
  1. Precision: Uses decimal.Decimal for every rate, quantity and amount.
     float64 appears only at JSON boundaries (api package).
  2. Purity: Resolution and aggregation are pure functions; repeated
     invocation with unchanged inputs yields identical output.
  3. Type Safety: Strong typing for IDs prevents mixing material and
     customer identifiers.
  4. Auditability: Every approved override produces an immutable record.

SEE ALSO:
  - contract.go: Contract and RateSpec variants
  - resolver.go: Effective rate resolution
  - override.go: Approval-gated rate overrides
  - order.go: Order lines and totals aggregation
*/
package pricing

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type MaterialID string
type CustomerID string
type ContractID string

// =============================================================================
// MATERIAL - A tradable commodity
// =============================================================================

// Material describes a commodity the customer can order. StandardPrice is
// the current market rate, maintained by an external catalog system; this
// engine only reads it.
type Material struct {
	ID            MaterialID
	Name          string
	Unit          string // e.g. "MT", "bbl", "kg"
	StandardPrice decimal.Decimal
	Category      string
	ReorderLevel  decimal.Decimal
}

// =============================================================================
// SHARED CONSTANTS
// =============================================================================

// RateEpsilon is the tolerance used when comparing a manually entered rate
// against the resolved contract rate. Edits within epsilon are treated as
// the same rate and do not require override approval.
var RateEpsilon = decimal.NewFromFloat(0.001)

// WithinEpsilon reports whether a and b differ by no more than RateEpsilon.
func WithinEpsilon(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(RateEpsilon)
}

// Hundred is shared by percentage math in resolver and aggregator.
var hundred = decimal.NewFromInt(100)
