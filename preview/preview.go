/*
Package preview assembles the pre-commit order preview.

PURPOSE:
  On order confirmation, every line is priced (rate resolver) and
  simulated against inventory (FIFO simulation). The assembler combines
  both into a per-line view plus an order-level summary, and computes the
  gate for confirmation: CanFulfillAll. A preview is advisory - nothing
  is persisted, and the session's allocations are discarded afterwards.

PER-LINE DEGRADATION:
  Line-level problems never abort the preview:
  - Unknown material     -> line marked invalid, rate 0, Error set
  - Insufficient stock   -> CanFulfill=false, listed in InsufficientItems
  Only malformed request-level input (no lines, non-positive quantity) is
  rejected before any computation, and an unreachable stock ledger aborts
  the whole operation - a partial preview is never shown.

CONCURRENCY:
  Lines are grouped by material. Distinct materials are evaluated in
  parallel; lines for the SAME material run sequentially in input order
  inside one goroutine, so cumulative FIFO consumption stays correct.
  If the context is cancelled mid-computation all partial results are
  discarded.

SEE ALSO:
  - pricing/resolver.go: Rate resolution per line
  - inventory/fifo.go: The cumulative simulation session
*/
package preview

import (
	"context"
	"errors"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/warp/pricing-engine/inventory"
	"github.com/warp/pricing-engine/pricing"
)

// ErrNoLines rejects an empty preview request before any computation.
var ErrNoLines = errors.New("preview requires at least one line")

// =============================================================================
// COLLABORATOR INTERFACES
// =============================================================================

// MaterialSource supplies material master data.
type MaterialSource interface {
	Material(ctx context.Context, id pricing.MaterialID) (pricing.Material, error)
}

// ContractSource supplies the customer's contract, nil when none exists.
type ContractSource interface {
	ContractFor(ctx context.Context, customerID pricing.CustomerID) (*pricing.Contract, error)
}

// =============================================================================
// INPUT / OUTPUT TYPES
// =============================================================================

// LineInput is one order line as the composition session currently holds
// it. UnitPrice is the session's price - resolved, or override-frozen.
type LineInput struct {
	MaterialID pricing.MaterialID
	Quantity   decimal.Decimal
	UnitPrice  decimal.Decimal
}

// Item is the per-line preview.
type Item struct {
	MaterialID   pricing.MaterialID
	MaterialName string

	RequestedQuantity decimal.Decimal
	UnitPrice         decimal.Decimal
	Revenue           decimal.Decimal

	CanFulfill  bool
	Allocations []inventory.Slice
	COGS        decimal.Decimal
	GrossMargin decimal.Decimal

	Shortfall      decimal.Decimal
	TotalAvailable decimal.Decimal

	// Rate carries the resolver output for display (contract vs market,
	// fallback signal).
	Rate pricing.RateResolution

	// Error is set for line-level failures (unknown material). The line
	// is invalid for submission but does not abort the preview.
	Error error
}

// InsufficientItem summarizes one unfulfillable line for the blocking
// banner shown before confirmation.
type InsufficientItem struct {
	MaterialID   pricing.MaterialID
	MaterialName string
	Requested    decimal.Decimal
	Available    decimal.Decimal
	Shortfall    decimal.Decimal
}

// Summary is the order-level money roll-up.
type Summary struct {
	TotalRevenue       decimal.Decimal
	TotalCOGS          decimal.Decimal
	GrossMargin        decimal.Decimal
	GrossMarginPercent decimal.Decimal
}

// Preview is the full result. Order confirmation must be gated on
// CanFulfillAll.
type Preview struct {
	Items             []Item
	Summary           Summary
	InsufficientItems []InsufficientItem
	CanFulfillAll     bool
}

// =============================================================================
// ASSEMBLER
// =============================================================================

// Assembler wires the collaborators for preview computation.
type Assembler struct {
	Materials MaterialSource
	Contracts ContractSource
	Stock     inventory.StockLedger
	Resolver  *pricing.Resolver
}

// Preview prices and simulates all lines for one order. The returned
// preview is complete or the error is non-nil - never partial.
func (a *Assembler) Preview(ctx context.Context, customerID pricing.CustomerID, lines []LineInput) (*Preview, error) {
	// Request-level validation happens before any computation.
	if len(lines) == 0 {
		return nil, ErrNoLines
	}
	for _, l := range lines {
		if !l.Quantity.IsPositive() {
			return nil, pricing.ErrInvalidQuantity
		}
	}

	contract, err := a.Contracts.ContractFor(ctx, customerID)
	if err != nil {
		return nil, err
	}

	sim := inventory.NewSimulation(a.Stock)
	items := make([]Item, len(lines))

	// Group line indexes by material, preserving input order within each
	// group. One goroutine per material: distinct materials in parallel,
	// same-material lines sequential (cumulative consumption).
	groups := make(map[pricing.MaterialID][]int)
	var order []pricing.MaterialID
	for i, l := range lines {
		if _, seen := groups[l.MaterialID]; !seen {
			order = append(order, l.MaterialID)
		}
		groups[l.MaterialID] = append(groups[l.MaterialID], i)
	}

	var (
		wg       sync.WaitGroup
		fatalMu  sync.Mutex
		fatalErr error
	)
	setFatal := func(err error) {
		fatalMu.Lock()
		defer fatalMu.Unlock()
		if fatalErr == nil {
			fatalErr = err
		}
	}

	for _, id := range order {
		wg.Add(1)
		go func(materialID pricing.MaterialID, idxs []int) {
			defer wg.Done()

			material, err := a.Materials.Material(ctx, materialID)
			if err != nil {
				if pricing.IsNotFound(err) {
					// Line-level: invalid for submission, rate 0.
					for _, i := range idxs {
						items[i] = invalidItem(lines[i], err)
					}
					return
				}
				setFatal(err)
				return
			}

			resolution := a.Resolver.ResolveRate(material, contract)

			for _, i := range idxs {
				if ctx.Err() != nil {
					return
				}
				alloc, err := sim.Allocate(ctx, materialID, lines[i].Quantity)
				if err != nil {
					// Ledger failure is fatal to the whole preview:
					// unknown availability must not render as shortage.
					setFatal(err)
					return
				}
				items[i] = a.assembleItem(lines[i], material, resolution, alloc)
			}
		}(id, groups[id])
	}
	wg.Wait()

	// A cancelled preview is discarded wholesale.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if fatalErr != nil {
		return nil, fatalErr
	}

	return assemble(items), nil
}

func (a *Assembler) assembleItem(line LineInput, material pricing.Material, resolution pricing.RateResolution, alloc inventory.AllocationResult) Item {
	revenue := line.Quantity.Mul(line.UnitPrice)
	return Item{
		MaterialID:        material.ID,
		MaterialName:      material.Name,
		RequestedQuantity: line.Quantity,
		UnitPrice:         line.UnitPrice,
		Revenue:           revenue,
		CanFulfill:        alloc.CanFulfill,
		Allocations:       alloc.Slices,
		COGS:              alloc.COGS,
		GrossMargin:       revenue.Sub(alloc.COGS),
		Shortfall:         alloc.Shortfall,
		TotalAvailable:    alloc.TotalAvailable,
		Rate:              resolution,
	}
}

func invalidItem(line LineInput, err error) Item {
	return Item{
		MaterialID:        line.MaterialID,
		RequestedQuantity: line.Quantity,
		UnitPrice:         decimal.Zero,
		Revenue:           decimal.Zero,
		CanFulfill:        false,
		COGS:              decimal.Zero,
		GrossMargin:       decimal.Zero,
		Error:             err,
	}
}

func assemble(items []Item) *Preview {
	p := &Preview{Items: items, CanFulfillAll: true}

	for i := range items {
		it := &items[i]
		p.Summary.TotalRevenue = p.Summary.TotalRevenue.Add(it.Revenue)
		p.Summary.TotalCOGS = p.Summary.TotalCOGS.Add(it.COGS)

		if !it.CanFulfill {
			p.CanFulfillAll = false
		}
		// Shortages go in the banner list; invalid lines carry their own
		// error and are reported on the item itself.
		if !it.CanFulfill && it.Error == nil {
			p.InsufficientItems = append(p.InsufficientItems, InsufficientItem{
				MaterialID:   it.MaterialID,
				MaterialName: it.MaterialName,
				Requested:    it.RequestedQuantity,
				Available:    it.TotalAvailable,
				Shortfall:    it.Shortfall,
			})
		}
	}

	p.Summary.GrossMargin = p.Summary.TotalRevenue.Sub(p.Summary.TotalCOGS)
	if p.Summary.TotalRevenue.IsPositive() {
		p.Summary.GrossMarginPercent = p.Summary.GrossMargin.
			Div(p.Summary.TotalRevenue).Mul(decimal.NewFromInt(100)).Round(2)
	}
	return p
}
