// Package store provides StockLedger implementations.
package store

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/warp/pricing-engine/inventory"
	"github.com/warp/pricing-engine/pricing"
)

// =============================================================================
// MEMORY LEDGER - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu      sync.RWMutex
	batches map[pricing.MaterialID][]inventory.Batch
	units   map[pricing.MaterialID]string
	reorder map[pricing.MaterialID]decimal.Decimal

	// Fail, when set, makes every call return this error. Lets tests
	// exercise the "unreachable ledger is not zero stock" behavior.
	Fail error
}

func NewMemory() *Memory {
	return &Memory{
		batches: make(map[pricing.MaterialID][]inventory.Batch),
		units:   make(map[pricing.MaterialID]string),
		reorder: make(map[pricing.MaterialID]decimal.Decimal),
	}
}

// AddBatch registers a batch. Insertion order does not matter; reads
// always come back ascending by purchase date.
func (m *Memory) AddBatch(b inventory.Batch) {
	m.mu.Lock()
	defer m.mu.Unlock()

	list := append(m.batches[b.MaterialID], b)
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].PurchaseDate.Before(list[j].PurchaseDate)
	})
	m.batches[b.MaterialID] = list
}

// SetStockMeta sets unit and reorder level for CurrentStock responses.
func (m *Memory) SetStockMeta(id pricing.MaterialID, unit string, reorderLevel decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.units[id] = unit
	m.reorder[id] = reorderLevel
}

func (m *Memory) Batches(_ context.Context, materialID pricing.MaterialID) ([]inventory.Batch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Fail != nil {
		return nil, m.Fail
	}

	src := m.batches[materialID]
	out := make([]inventory.Batch, len(src))
	copy(out, src)
	return out, nil
}

func (m *Memory) CurrentStock(_ context.Context, materialID pricing.MaterialID) (inventory.StockLevel, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.Fail != nil {
		return inventory.StockLevel{}, m.Fail
	}

	total := decimal.Zero
	for _, b := range m.batches[materialID] {
		total = total.Add(b.QuantityAvailable)
	}
	return inventory.StockLevel{
		CurrentStock: total,
		Unit:         m.units[materialID],
		ReorderLevel: m.reorder[materialID],
	}, nil
}
