/*
errors.go - Centralized error types for the pricing engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Other packages (inventory, preview, api) wrap these with context.

ERROR CATEGORIES:
  1. Lookup errors    - Unknown material/customer/contract (per-line, never
                        abort a whole preview)
  2. Stock errors     - Insufficient stock (per-line, surfaced in preview)
  3. Override errors  - Credential and state-machine failures
  4. Upstream errors  - Stock ledger or authorizer unreachable. These are
                        fatal to the operation and must stay distinguishable
                        from "zero stock" / "no contract".

NOTE ON EXPIRED CONTRACTS:
  An expired or suspended rate is NOT an error. The resolver degrades to
  the market rate and reports the fallback on the RateResolution; only the
  signal is surfaced, never a failure.

USAGE:
  if errors.Is(err, pricing.ErrUpstreamUnavailable) {
      // retry / 503, never treat as zero stock
  }

SEE ALSO:
  - inventory/fifo.go: Wraps ledger failures in UnavailableError
  - api/handlers.go: Maps these onto HTTP status codes
*/
package pricing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrMaterialNotFound is returned for an unknown material. The affected
	// line is marked invalid with rate 0; other lines proceed.
	ErrMaterialNotFound = errors.New("material not found")

	// ErrCustomerNotFound is returned for an unknown customer.
	ErrCustomerNotFound = errors.New("customer not found")

	// ErrContractNotFound is returned when a referenced contract doesn't exist.
	// Absence of a contract for a customer is NOT an error (nil contract).
	ErrContractNotFound = errors.New("contract not found")

	// ErrInsufficientStock is returned when FIFO allocation cannot fully
	// satisfy a requested quantity. Per-line; surfaced in the preview.
	ErrInsufficientStock = errors.New("insufficient stock")

	// ErrInvalidCredential is returned when an override credential fails
	// verification. Local and non-fatal; the user may retry without side
	// effects (the gate stays in PendingApproval).
	ErrInvalidCredential = errors.New("invalid override credential")

	// ErrUpstreamUnavailable is returned when the stock ledger or the
	// authorization collaborator is unreachable. Fatal to the specific
	// operation; never silently treated as zero stock.
	ErrUpstreamUnavailable = errors.New("upstream collaborator unavailable")

	// ErrOverrideNotPending is returned when Approve/Cancel is called on a
	// gate that is not in PendingApproval.
	ErrOverrideNotPending = errors.New("override is not pending approval")

	// ErrReasonRequired is returned when an override approval is attempted
	// without a reason. Every audit record carries one.
	ErrReasonRequired = errors.New("override reason required")

	// ErrInvalidQuantity is returned for malformed request-level input
	// (non-positive quantity, empty item list). Rejected before any
	// computation starts.
	ErrInvalidQuantity = errors.New("quantity must be positive")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InsufficientStockError provides details about a stock shortage.
type InsufficientStockError struct {
	MaterialID MaterialID
	Requested  decimal.Decimal
	Available  decimal.Decimal
	Shortfall  decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s: requested %s, available %s, shortfall %s",
		e.MaterialID, e.Requested, e.Available, e.Shortfall)
}

func (e *InsufficientStockError) Unwrap() error {
	return ErrInsufficientStock
}

// UnavailableError wraps a transport/storage failure from an external
// collaborator, keeping it distinguishable from domain conditions.
type UnavailableError struct {
	Op  string // e.g. "stock-ledger", "authorizer"
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("%s unavailable: %v", e.Op, e.Err)
}

// Unwrap exposes both the category sentinel and the underlying cause, so
// errors.Is matches ErrUpstreamUnavailable as well as the wrapped error.
func (e *UnavailableError) Unwrap() []error {
	return []error{ErrUpstreamUnavailable, e.Err}
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing material,
// customer or contract.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrMaterialNotFound) ||
		errors.Is(err, ErrCustomerNotFound) ||
		errors.Is(err, ErrContractNotFound)
}

// IsClientError returns true if the error is due to invalid client input
// or a recoverable per-line condition.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidQuantity) ||
		errors.Is(err, ErrInsufficientStock) ||
		errors.Is(err, ErrInvalidCredential) ||
		errors.Is(err, ErrReasonRequired) ||
		errors.Is(err, ErrOverrideNotPending)
}

// IsUnavailable returns true if the error came from an unreachable
// collaborator and the operation may succeed on retry.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUpstreamUnavailable)
}
