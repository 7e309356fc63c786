/*
Package inventory provides the FIFO allocation simulator and the stock
ledger interface it consumes.

PURPOSE:
  Before an order is committed, the engine simulates which inventory lots
  (batches) would be consumed to fulfill it, oldest purchase first. The
  simulation computes cost-of-goods-sold per line and flags lines that
  cannot be fully supplied. Nothing here mutates inventory - persisting
  the final allocation at commit time belongs to a separate subsystem.

KEY CONCEPTS IN THIS FILE (types.go):
  - Batch: A lot of material acquired together at a known date and cost.
    The ascending-purchase-date ordering IS the FIFO invariant.
  - StockLevel: Live aggregate stock for low-stock indicators, independent
    of any simulation.
  - StockLedger: The external read-only collaborator supplying both.

UPSTREAM FAILURES:
  A ledger error means "unknown", never "zero". Callers wrap failures in
  pricing.UnavailableError so an unreachable ledger is distinguishable
  from genuinely empty stock.

SEE ALSO:
  - fifo.go: The allocation simulation
  - store/memory.go: In-memory ledger for tests and development
  - store/sqlite: Production-shaped read model
*/
package inventory

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/pricing-engine/pricing"
)

// =============================================================================
// BATCH - One inventory lot
// =============================================================================

// Batch is a quantity of material acquired together. Owned and mutated by
// procurement; this engine only reads it.
type Batch struct {
	MaterialID        pricing.MaterialID
	BatchNumber       string
	PurchaseDate      time.Time
	QuantityAvailable decimal.Decimal
	UnitCost          decimal.Decimal
}

// =============================================================================
// STOCK LEVEL - Live aggregate indicator
// =============================================================================

// StockLevel is the live stock position used for low-stock/out-of-stock
// indicators while editing, independent of the FIFO simulation.
type StockLevel struct {
	CurrentStock decimal.Decimal
	Unit         string
	ReorderLevel decimal.Decimal
}

// Low reports whether current stock is at or below the reorder level.
func (s StockLevel) Low() bool {
	return s.CurrentStock.LessThanOrEqual(s.ReorderLevel)
}

// =============================================================================
// STOCK LEDGER - External read-only collaborator
// =============================================================================

// StockLedger supplies ordered batches and aggregate stock per material.
type StockLedger interface {
	// Batches returns all available batches for a material, ordered by
	// purchase date ascending (oldest first). The ordering is the FIFO
	// invariant and implementations must never violate it.
	Batches(ctx context.Context, materialID pricing.MaterialID) ([]Batch, error)

	// CurrentStock returns the live aggregate position for a material.
	CurrentStock(ctx context.Context, materialID pricing.MaterialID) (StockLevel, error)
}
