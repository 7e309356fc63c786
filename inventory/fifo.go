/*
fifo.go - Oldest-first allocation simulation

PURPOSE:
  Simulates strict FIFO consumption of inventory batches to satisfy a
  requested quantity: walk batches oldest to newest, take
  min(remainingNeeded, batch.QuantityAvailable) from each, record a cost
  slice, stop at zero or batch exhaustion. COGS for the line is the sum
  of slice cost contributions.

CUMULATIVE SESSIONS:
  A Simulation is scoped to ONE preview computation. When two order lines
  reference the same material, the second allocation sees availability
  reduced by the first - allocations are cumulative and sequential, not
  independent snapshots. Batches are fetched from the ledger once per
  material and the remaining quantities live in the session.

CONCURRENCY:
  Distinct materials may be allocated from different goroutines; state is
  per-material and each material's state carries its own lock, so
  same-material allocations serialize while distinct materials proceed in
  parallel.

INVARIANTS:
  - Batches are consumed strictly in ascending purchase date order.
  - A batch is partially consumed only when its quantity exceeds what
    remains needed; never consumed beyond its available quantity.
  - Sum of consumed quantities = min(requested, total available).

SEE ALSO:
  - types.go: Batch and StockLedger
  - preview/preview.go: Drives one Simulation per preview request
*/
package inventory

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/warp/pricing-engine/pricing"
)

// =============================================================================
// ALLOCATION RESULT
// =============================================================================

// Slice records consumption from a single batch.
type Slice struct {
	Batch            Batch
	QuantityConsumed decimal.Decimal
	CostContribution decimal.Decimal // QuantityConsumed * Batch.UnitCost
}

// AllocationResult is the outcome of simulating one line.
type AllocationResult struct {
	MaterialID pricing.MaterialID
	Requested  decimal.Decimal

	// Slices are ordered oldest batch first.
	Slices   []Slice
	Consumed decimal.Decimal
	COGS     decimal.Decimal

	CanFulfill bool
	Shortfall  decimal.Decimal

	// TotalAvailable is what the session could still supply for this
	// material at the moment the allocation started (cumulative view).
	TotalAvailable decimal.Decimal
}

// =============================================================================
// SIMULATION - One preview's worth of cumulative allocations
// =============================================================================

// Simulation consumes batches from a StockLedger without mutating it.
// Create one per preview computation and discard it afterwards.
type Simulation struct {
	ledger StockLedger

	mu        sync.Mutex
	materials map[pricing.MaterialID]*materialState
}

type materialState struct {
	mu        sync.Mutex
	loaded    bool
	remaining []Batch // working copy; QuantityAvailable decremented in place
}

// NewSimulation creates an empty session over the given ledger.
func NewSimulation(ledger StockLedger) *Simulation {
	return &Simulation{
		ledger:    ledger,
		materials: make(map[pricing.MaterialID]*materialState),
	}
}

// Allocate simulates FIFO consumption of requested quantity for one line.
// An unfulfillable line is NOT an error: the result carries
// CanFulfill=false and the shortfall. Errors are reserved for invalid
// input and an unreachable ledger.
func (s *Simulation) Allocate(ctx context.Context, materialID pricing.MaterialID, requested decimal.Decimal) (AllocationResult, error) {
	if !requested.IsPositive() {
		return AllocationResult{}, pricing.ErrInvalidQuantity
	}

	st := s.stateFor(materialID)

	// Per-material lock: serializes same-material lines, lets distinct
	// materials allocate in parallel.
	st.mu.Lock()
	defer st.mu.Unlock()

	if !st.loaded {
		batches, err := s.ledger.Batches(ctx, materialID)
		if err != nil {
			return AllocationResult{}, &pricing.UnavailableError{Op: "stock-ledger", Err: err}
		}
		st.remaining = make([]Batch, len(batches))
		copy(st.remaining, batches)
		// The ledger contract is ascending purchase date; keep the
		// invariant even against a misbehaving implementation.
		sort.SliceStable(st.remaining, func(i, j int) bool {
			return st.remaining[i].PurchaseDate.Before(st.remaining[j].PurchaseDate)
		})
		st.loaded = true
	}

	result := AllocationResult{
		MaterialID: materialID,
		Requested:  requested,
		Consumed:   decimal.Zero,
		COGS:       decimal.Zero,
	}
	for i := range st.remaining {
		result.TotalAvailable = result.TotalAvailable.Add(st.remaining[i].QuantityAvailable)
	}

	remaining := requested
	for i := range st.remaining {
		if remaining.IsZero() {
			break
		}
		b := &st.remaining[i]
		if !b.QuantityAvailable.IsPositive() {
			continue
		}

		take := remaining
		if b.QuantityAvailable.LessThan(take) {
			take = b.QuantityAvailable
		}

		cost := take.Mul(b.UnitCost)
		result.Slices = append(result.Slices, Slice{
			Batch:            *b,
			QuantityConsumed: take,
			CostContribution: cost,
		})
		result.Consumed = result.Consumed.Add(take)
		result.COGS = result.COGS.Add(cost)

		b.QuantityAvailable = b.QuantityAvailable.Sub(take)
		remaining = remaining.Sub(take)
	}

	result.CanFulfill = remaining.IsZero()
	result.Shortfall = remaining
	return result, nil
}

// Stock passes through the live aggregate indicator, untouched by the
// session's simulated consumption.
func (s *Simulation) Stock(ctx context.Context, materialID pricing.MaterialID) (StockLevel, error) {
	level, err := s.ledger.CurrentStock(ctx, materialID)
	if err != nil {
		return StockLevel{}, &pricing.UnavailableError{Op: "stock-ledger", Err: err}
	}
	return level, nil
}

func (s *Simulation) stateFor(materialID pricing.MaterialID) *materialState {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.materials[materialID]
	if !ok {
		st = &materialState{}
		s.materials[materialID] = st
	}
	return st
}
