/*
order.go - Order lines and totals aggregation

PURPOSE:
  OrderLine models one line of an in-progress order during a composition
  session; the Aggregator rolls line amounts into subtotal/discount/net
  totals. Both exist only for the duration of one session and are
  discarded if the order is not committed.

FREEZE SEMANTICS:
  Once an override is approved for a line, its unit price stays frozen at
  the override rate: later resolutions (market moves, contract refreshes)
  do NOT touch it. Changing the line's material clears the override and
  unfreezes the price - the audit record refers to a rate for a specific
  material and cannot carry over.

IDEMPOTENCE:
  Totals() is a pure function of (lines, discountPercent). Recomputing on
  every line or discount change is the intended usage; unchanged inputs
  always produce identical totals - there is no accumulated state to
  drift.

TAX:
  Tax computation is owned by an external collaborator. When a
  TaxCalculator is present its result is added to the net amount; when
  absent tax is zero. Full tax rules are out of scope here.

SEE ALSO:
  - override.go: Produces the records applied here
  - preview/preview.go: Uses LineAmount as line revenue
*/
package pricing

import (
	"github.com/shopspring/decimal"
)

// =============================================================================
// ORDER LINE
// =============================================================================

// OrderLine is one material line in an order-composition session.
type OrderLine struct {
	MaterialID MaterialID
	Quantity   decimal.Decimal
	UnitPrice  decimal.Decimal

	// IsOverridden marks the price as frozen by an approved override.
	IsOverridden bool
	Override     *OverrideRecord

	// Invalid marks a line whose material could not be resolved. The line
	// carries rate 0 and blocks submission, but never aborts the order.
	Invalid bool
}

// LineAmount returns quantity x unit price.
func (l *OrderLine) LineAmount() decimal.Decimal {
	return l.Quantity.Mul(l.UnitPrice)
}

// ApplyResolution sets the line's unit price from a rate resolution,
// unless an approved override froze it.
func (l *OrderLine) ApplyResolution(res RateResolution) {
	if l.IsOverridden {
		return
	}
	l.UnitPrice = res.EffectiveRate
	l.Invalid = false
}

// ApplyOverride freezes the line at the approved override rate.
func (l *OrderLine) ApplyOverride(rec *OverrideRecord) {
	if rec == nil || rec.MaterialID != l.MaterialID {
		return
	}
	l.UnitPrice = rec.OverrideRate
	l.IsOverridden = true
	l.Override = rec
}

// MarkInvalid flags a line whose material is unknown: rate 0, blocked
// from submission.
func (l *OrderLine) MarkInvalid() {
	l.UnitPrice = decimal.Zero
	l.IsOverridden = false
	l.Override = nil
	l.Invalid = true
}

// ChangeMaterial switches the line to a different material. Any override
// is cleared - the freeze holds only until the material selection changes.
func (l *OrderLine) ChangeMaterial(id MaterialID) {
	l.MaterialID = id
	l.IsOverridden = false
	l.Override = nil
	l.Invalid = false
	l.UnitPrice = decimal.Zero
}

// =============================================================================
// TOTALS AGGREGATOR
// =============================================================================

// OrderTotals is the rolled-up money view of an order.
type OrderTotals struct {
	TotalAmount    decimal.Decimal
	DiscountAmount decimal.Decimal
	TaxAmount      decimal.Decimal
	NetAmount      decimal.Decimal
}

// TaxCalculator is the external tax collaborator. Given the taxable
// amount (total minus discount) it returns the tax to add.
type TaxCalculator interface {
	Tax(taxable decimal.Decimal) decimal.Decimal
}

// Aggregator computes order totals. The zero value (no tax collaborator)
// is usable.
type Aggregator struct {
	Tax TaxCalculator
}

// Totals computes:
//
//	totalAmount    = sum of line amounts
//	discountAmount = totalAmount * discountPercent / 100
//	netAmount      = totalAmount - discountAmount + tax
//
// Pure and idempotent: call it on every change, unchanged inputs yield
// identical totals.
func (a Aggregator) Totals(lines []OrderLine, discountPercent decimal.Decimal) OrderTotals {
	total := decimal.Zero
	for i := range lines {
		total = total.Add(lines[i].LineAmount())
	}

	discount := total.Mul(discountPercent).Div(hundred)
	net := total.Sub(discount)

	tax := decimal.Zero
	if a.Tax != nil {
		tax = a.Tax.Tax(net)
		net = net.Add(tax)
	}

	return OrderTotals{
		TotalAmount:    total,
		DiscountAmount: discount,
		TaxAmount:      tax,
		NetAmount:      net,
	}
}
