package inventory_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/pricing-engine/inventory"
	"github.com/warp/pricing-engine/inventory/store"
	"github.com/warp/pricing-engine/pricing"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func batch(materialID, number string, day int, qty, cost string) inventory.Batch {
	return inventory.Batch{
		MaterialID:        pricing.MaterialID(materialID),
		BatchNumber:       number,
		PurchaseDate:      time.Date(2026, time.January, day, 0, 0, 0, 0, time.UTC),
		QuantityAvailable: dec(qty),
		UnitCost:          dec(cost),
	}
}

// scrapLedger: two batches, 100 units at cost 1.0 (older) and 100 units
// at cost 1.2 (newer).
func scrapLedger() *store.Memory {
	m := store.NewMemory()
	m.AddBatch(batch("mat-scrap", "SC-A", 10, "100", "1.0"))
	m.AddBatch(batch("mat-scrap", "SC-B", 20, "100", "1.2"))
	return m
}

// =============================================================================
// FIFO WALK TESTS
// =============================================================================

func TestAllocate_SpansBatchesOldestFirst(t *testing.T) {
	// GIVEN: Batches [100 @ 1.0 (older), 100 @ 1.2 (newer)]
	// WHEN: Allocating 150
	// THEN: 100 from the old batch, 50 from the new; COGS = 100 + 60 = 160

	sim := inventory.NewSimulation(scrapLedger())

	result, err := sim.Allocate(context.Background(), "mat-scrap", dec("150"))

	require.NoError(t, err)
	assert.True(t, result.CanFulfill)
	require.Len(t, result.Slices, 2)
	assert.Equal(t, "SC-A", result.Slices[0].Batch.BatchNumber)
	assert.True(t, result.Slices[0].QuantityConsumed.Equal(dec("100")))
	assert.True(t, result.Slices[0].CostContribution.Equal(dec("100")))
	assert.Equal(t, "SC-B", result.Slices[1].Batch.BatchNumber)
	assert.True(t, result.Slices[1].QuantityConsumed.Equal(dec("50")))
	assert.True(t, result.Slices[1].CostContribution.Equal(dec("60")))
	assert.True(t, result.COGS.Equal(dec("160")))
	assert.True(t, result.Consumed.Equal(dec("150")))
	assert.True(t, result.Shortfall.IsZero())
}

func TestAllocate_ExactBatchBoundary(t *testing.T) {
	sim := inventory.NewSimulation(scrapLedger())

	result, err := sim.Allocate(context.Background(), "mat-scrap", dec("100"))

	require.NoError(t, err)
	assert.True(t, result.CanFulfill)
	require.Len(t, result.Slices, 1, "second batch untouched")
	assert.True(t, result.COGS.Equal(dec("100")))
}

func TestAllocate_Shortfall_ConsumesEverythingAvailable(t *testing.T) {
	// GIVEN: 200 total available
	// WHEN: Allocating 250
	// THEN: CanFulfill=false, consumed 200, shortfall 50 - not an error

	sim := inventory.NewSimulation(scrapLedger())

	result, err := sim.Allocate(context.Background(), "mat-scrap", dec("250"))

	require.NoError(t, err)
	assert.False(t, result.CanFulfill)
	assert.True(t, result.Consumed.Equal(dec("200")))
	assert.True(t, result.Shortfall.Equal(dec("50")))
	assert.True(t, result.TotalAvailable.Equal(dec("200")))
	assert.True(t, result.COGS.Equal(dec("220")), "COGS covers what was consumed")
}

func TestAllocate_ConsumedEqualsMinOfRequestedAndAvailable(t *testing.T) {
	for _, requested := range []string{"1", "99.5", "100", "150", "200", "200.0001", "999"} {
		sim := inventory.NewSimulation(scrapLedger())
		result, err := sim.Allocate(context.Background(), "mat-scrap", dec(requested))
		require.NoError(t, err)

		want := dec(requested)
		if want.GreaterThan(dec("200")) {
			want = dec("200")
		}
		assert.True(t, result.Consumed.Equal(want), "requested %s: consumed %s", requested, result.Consumed)

		// Slice totals always reconcile with the headline numbers.
		sum := decimal.Zero
		for _, s := range result.Slices {
			sum = sum.Add(s.QuantityConsumed)
			assert.False(t, s.QuantityConsumed.GreaterThan(dec("100")), "never consume past a batch")
		}
		assert.True(t, sum.Equal(result.Consumed))
	}
}

func TestAllocate_NoBatches_FullShortfall(t *testing.T) {
	sim := inventory.NewSimulation(store.NewMemory())

	result, err := sim.Allocate(context.Background(), "mat-ghost", dec("10"))

	require.NoError(t, err)
	assert.False(t, result.CanFulfill)
	assert.True(t, result.Consumed.IsZero())
	assert.True(t, result.Shortfall.Equal(dec("10")))
	assert.Empty(t, result.Slices)
}

// =============================================================================
// CUMULATIVE SESSION TESTS
// =============================================================================

func TestAllocate_SecondLineSeesReducedAvailability(t *testing.T) {
	// GIVEN: One session, 200 available
	// WHEN: Line 1 takes 150, line 2 asks for 100
	// THEN: Line 2 sees only 50 left and reports a 50 shortfall

	sim := inventory.NewSimulation(scrapLedger())
	ctx := context.Background()

	first, err := sim.Allocate(ctx, "mat-scrap", dec("150"))
	require.NoError(t, err)
	require.True(t, first.CanFulfill)

	second, err := sim.Allocate(ctx, "mat-scrap", dec("100"))
	require.NoError(t, err)

	assert.False(t, second.CanFulfill)
	assert.True(t, second.TotalAvailable.Equal(dec("50")))
	assert.True(t, second.Consumed.Equal(dec("50")))
	assert.True(t, second.Shortfall.Equal(dec("50")))
	// The 50 left were all in the newer batch.
	require.Len(t, second.Slices, 1)
	assert.Equal(t, "SC-B", second.Slices[0].Batch.BatchNumber)
	assert.True(t, second.COGS.Equal(dec("60")))
}

func TestAllocate_SessionsAreIndependent(t *testing.T) {
	// A fresh simulation starts from the ledger's full availability; one
	// session's consumption never leaks into another.
	ledger := scrapLedger()
	ctx := context.Background()

	sim1 := inventory.NewSimulation(ledger)
	_, err := sim1.Allocate(ctx, "mat-scrap", dec("200"))
	require.NoError(t, err)

	sim2 := inventory.NewSimulation(ledger)
	result, err := sim2.Allocate(ctx, "mat-scrap", dec("200"))
	require.NoError(t, err)
	assert.True(t, result.CanFulfill)
}

func TestAllocate_LedgerUnsorted_StillConsumesOldestFirst(t *testing.T) {
	// The simulation re-sorts defensively even if a ledger implementation
	// returns batches out of order.
	sim := inventory.NewSimulation(unsortedLedger{})

	result, err := sim.Allocate(context.Background(), "mat-scrap", dec("120"))

	require.NoError(t, err)
	require.Len(t, result.Slices, 2)
	assert.Equal(t, "OLD", result.Slices[0].Batch.BatchNumber)
	assert.Equal(t, "NEW", result.Slices[1].Batch.BatchNumber)
}

// =============================================================================
// ERROR HANDLING TESTS
// =============================================================================

func TestAllocate_NonPositiveQuantity_Rejected(t *testing.T) {
	sim := inventory.NewSimulation(scrapLedger())
	ctx := context.Background()

	_, err := sim.Allocate(ctx, "mat-scrap", decimal.Zero)
	assert.ErrorIs(t, err, pricing.ErrInvalidQuantity)

	_, err = sim.Allocate(ctx, "mat-scrap", dec("-5"))
	assert.ErrorIs(t, err, pricing.ErrInvalidQuantity)
}

func TestAllocate_LedgerUnreachable_ErrorNotShortage(t *testing.T) {
	// GIVEN: The stock ledger is down
	// WHEN: Allocating
	// THEN: An unavailable error - never rendered as zero stock

	ledger := store.NewMemory()
	ledger.Fail = errors.New("dial tcp: connection refused")
	sim := inventory.NewSimulation(ledger)

	_, err := sim.Allocate(context.Background(), "mat-scrap", dec("10"))

	require.Error(t, err)
	assert.True(t, pricing.IsUnavailable(err), "expected unavailable, got %v", err)
	assert.NotErrorIs(t, err, pricing.ErrInsufficientStock)
}

func TestStock_PassesThroughLiveIndicator(t *testing.T) {
	ledger := scrapLedger()
	ledger.SetStockMeta("mat-scrap", "ton", dec("300"))
	sim := inventory.NewSimulation(ledger)

	level, err := sim.Stock(context.Background(), "mat-scrap")

	require.NoError(t, err)
	assert.True(t, level.CurrentStock.Equal(dec("200")))
	assert.Equal(t, "ton", level.Unit)
	assert.True(t, level.Low(), "200 on hand with reorder level 300")
}

// =============================================================================
// CONCURRENCY TESTS
// =============================================================================

func TestAllocate_ConcurrentSameMaterial_NeverOverconsumes(t *testing.T) {
	// GIVEN: 200 units available, 40 goroutines each asking for 10
	// WHEN: All allocate concurrently against one session
	// THEN: Total consumed is exactly 200; no double-spend

	sim := inventory.NewSimulation(scrapLedger())
	ctx := context.Background()

	const workers = 40
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		consumed = decimal.Zero
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := sim.Allocate(ctx, "mat-scrap", dec("10"))
			if err != nil {
				t.Error(err)
				return
			}
			mu.Lock()
			consumed = consumed.Add(result.Consumed)
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.True(t, consumed.Equal(dec("200")), "consumed %s", consumed)
}

func TestAllocate_DistinctMaterials_Independent(t *testing.T) {
	ledger := store.NewMemory()
	ledger.AddBatch(batch("mat-a", "A-1", 5, "50", "2"))
	ledger.AddBatch(batch("mat-b", "B-1", 6, "70", "3"))
	sim := inventory.NewSimulation(ledger)
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([]inventory.AllocationResult, 2)
	for i, id := range []pricing.MaterialID{"mat-a", "mat-b"} {
		wg.Add(1)
		go func(slot int, materialID pricing.MaterialID) {
			defer wg.Done()
			r, err := sim.Allocate(ctx, materialID, dec("50"))
			if err != nil {
				t.Error(err)
				return
			}
			results[slot] = r
		}(i, id)
	}
	wg.Wait()

	assert.True(t, results[0].CanFulfill)
	assert.True(t, results[1].CanFulfill)
	assert.True(t, results[0].COGS.Equal(dec("100")))
	assert.True(t, results[1].COGS.Equal(dec("150")))
}

// =============================================================================
// FAKES
// =============================================================================

// unsortedLedger returns batches newest first, violating the ledger
// contract on purpose.
type unsortedLedger struct{}

func (unsortedLedger) Batches(context.Context, pricing.MaterialID) ([]inventory.Batch, error) {
	return []inventory.Batch{
		batch("mat-scrap", "NEW", 20, "100", "1.2"),
		batch("mat-scrap", "OLD", 10, "100", "1.0"),
	}, nil
}

func (unsortedLedger) CurrentStock(context.Context, pricing.MaterialID) (inventory.StockLevel, error) {
	return inventory.StockLevel{CurrentStock: dec("200")}, nil
}
