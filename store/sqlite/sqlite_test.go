package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/pricing-engine/inventory"
	"github.com/warp/pricing-engine/pricing"
	"github.com/warp/pricing-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func seedMaterial(t *testing.T, store *sqlite.Store, id, name, price string) {
	t.Helper()
	err := store.SaveMaterial(context.Background(), pricing.Material{
		ID:            pricing.MaterialID(id),
		Name:          name,
		Unit:          "ton",
		StandardPrice: dec(price),
		Category:      "metals",
		ReorderLevel:  dec("50"),
	})
	require.NoError(t, err)
}

func seedBatch(t *testing.T, store *sqlite.Store, materialID, number string, day int, qty, cost string) {
	t.Helper()
	err := store.SaveBatch(context.Background(), inventory.Batch{
		MaterialID:        pricing.MaterialID(materialID),
		BatchNumber:       number,
		PurchaseDate:      time.Date(2026, time.January, day, 0, 0, 0, 0, time.UTC),
		QuantityAvailable: dec(qty),
		UnitCost:          dec(cost),
	})
	require.NoError(t, err)
}

// =============================================================================
// MATERIAL TESTS
// =============================================================================

func TestStore_Material_Roundtrip(t *testing.T) {
	store := newTestStore(t)
	seedMaterial(t, store, "mat-copper", "Copper Cathode", "9400.50")

	m, err := store.Material(context.Background(), "mat-copper")

	require.NoError(t, err)
	assert.Equal(t, "Copper Cathode", m.Name)
	assert.Equal(t, "ton", m.Unit)
	assert.True(t, m.StandardPrice.Equal(dec("9400.50")), "decimal survives TEXT storage exactly")
	assert.True(t, m.ReorderLevel.Equal(dec("50")))
}

func TestStore_Material_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Material(context.Background(), "mat-ghost")

	assert.ErrorIs(t, err, pricing.ErrMaterialNotFound)
	assert.True(t, pricing.IsNotFound(err))
}

func TestStore_SaveMaterial_Upserts(t *testing.T) {
	store := newTestStore(t)
	seedMaterial(t, store, "mat-copper", "Copper", "9400")
	seedMaterial(t, store, "mat-copper", "Copper Cathode", "9500")

	m, err := store.Material(context.Background(), "mat-copper")
	require.NoError(t, err)
	assert.Equal(t, "Copper Cathode", m.Name)
	assert.True(t, m.StandardPrice.Equal(dec("9500")))

	all, err := store.ListMaterials(context.Background())
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestStore_ListMaterials_OrderedByName(t *testing.T) {
	store := newTestStore(t)
	seedMaterial(t, store, "mat-zinc", "Zinc Ingot", "2600")
	seedMaterial(t, store, "mat-copper", "Copper Cathode", "9400")

	all, err := store.ListMaterials(context.Background())

	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Copper Cathode", all[0].Name)
	assert.Equal(t, "Zinc Ingot", all[1].Name)
}

// =============================================================================
// CONTRACT TESTS
// =============================================================================

func TestStore_Contract_SaveAndLookup(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	saved, err := store.SaveContract(ctx, `{
		"id": "ctr-1", "customer_id": "cust-acme",
		"start_date": "2026-01-01", "end_date": "2026-12-31", "status": "active",
		"rates": {"mat-copper": {"type": "fixed", "contract_rate": "9250"}}
	}`)
	require.NoError(t, err)
	assert.Equal(t, pricing.ContractID("ctr-1"), saved.ID)

	contract, err := store.ContractFor(ctx, "cust-acme")
	require.NoError(t, err)
	require.NotNil(t, contract)
	spec, ok := contract.RateFor("mat-copper")
	require.True(t, ok)
	assert.True(t, spec.ContractRate.Equal(dec("9250")))
}

func TestStore_ContractFor_NoContract_NilNotError(t *testing.T) {
	// Customers without a contract price at market; absence is not an error.
	store := newTestStore(t)

	contract, err := store.ContractFor(context.Background(), "cust-walkin")

	require.NoError(t, err)
	assert.Nil(t, contract)
}

func TestStore_SaveContract_InvalidJSON_Rejected(t *testing.T) {
	store := newTestStore(t)

	_, err := store.SaveContract(context.Background(), `{
		"id": "ctr-bad", "customer_id": "cust-x",
		"start_date": "2026-01-01", "end_date": "2026-12-31", "status": "active",
		"rates": {"mat-x": {"type": "fixed"}}
	}`)

	require.Error(t, err, "factory validation runs before the row is written")

	contract, err := store.ContractFor(context.Background(), "cust-x")
	require.NoError(t, err)
	assert.Nil(t, contract)
}

func TestStore_ContractFor_ExpiredContractStillReturned(t *testing.T) {
	// Activity is the resolver's call; the store returns expired contracts
	// so the "expired, using market rate" signal can be produced.
	store := newTestStore(t)

	_, err := store.SaveContract(context.Background(), `{
		"id": "ctr-old", "customer_id": "cust-acme",
		"start_date": "2020-01-01", "end_date": "2020-12-31", "status": "active",
		"rates": {}
	}`)
	require.NoError(t, err)

	contract, err := store.ContractFor(context.Background(), "cust-acme")
	require.NoError(t, err)
	require.NotNil(t, contract)
}

// =============================================================================
// BATCH / STOCK LEDGER TESTS
// =============================================================================

func TestStore_Batches_OrderedOldestFirst(t *testing.T) {
	store := newTestStore(t)
	seedMaterial(t, store, "mat-scrap", "Steel Scrap", "420")
	// Inserted newest first; must come back oldest first.
	seedBatch(t, store, "mat-scrap", "SC-B", 20, "100", "1.2")
	seedBatch(t, store, "mat-scrap", "SC-A", 10, "100", "1.0")

	batches, err := store.Batches(context.Background(), "mat-scrap")

	require.NoError(t, err)
	require.Len(t, batches, 2)
	assert.Equal(t, "SC-A", batches[0].BatchNumber)
	assert.Equal(t, "SC-B", batches[1].BatchNumber)
	assert.True(t, batches[0].QuantityAvailable.Equal(dec("100")))
	assert.True(t, batches[1].UnitCost.Equal(dec("1.2")))
}

func TestStore_Batches_ZeroQuantityFiltered(t *testing.T) {
	store := newTestStore(t)
	seedMaterial(t, store, "mat-scrap", "Steel Scrap", "420")
	seedBatch(t, store, "mat-scrap", "SC-EMPTY", 5, "0", "1.0")
	seedBatch(t, store, "mat-scrap", "SC-A", 10, "100", "1.0")

	batches, err := store.Batches(context.Background(), "mat-scrap")

	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.Equal(t, "SC-A", batches[0].BatchNumber)
}

func TestStore_CurrentStock_SumsBatches(t *testing.T) {
	store := newTestStore(t)
	seedMaterial(t, store, "mat-scrap", "Steel Scrap", "420")
	seedBatch(t, store, "mat-scrap", "SC-A", 10, "100", "1.0")
	seedBatch(t, store, "mat-scrap", "SC-B", 20, "75.5", "1.2")

	level, err := store.CurrentStock(context.Background(), "mat-scrap")

	require.NoError(t, err)
	assert.True(t, level.CurrentStock.Equal(dec("175.5")), "got %s", level.CurrentStock)
	assert.Equal(t, "ton", level.Unit)
	assert.True(t, level.ReorderLevel.Equal(dec("50")))
	assert.False(t, level.Low())
}

func TestStore_CurrentStock_NoBatches_Zero(t *testing.T) {
	store := newTestStore(t)
	seedMaterial(t, store, "mat-copper", "Copper", "9400")

	level, err := store.CurrentStock(context.Background(), "mat-copper")

	require.NoError(t, err)
	assert.True(t, level.CurrentStock.IsZero())
	assert.True(t, level.Low())
}

func TestStore_CurrentStock_UnknownMaterial(t *testing.T) {
	store := newTestStore(t)

	_, err := store.CurrentStock(context.Background(), "mat-ghost")

	assert.True(t, pricing.IsNotFound(err))
}

func TestStore_FeedsAllocationSimulation(t *testing.T) {
	// The SQLite ledger plugs into the simulator exactly like the memory
	// ledger: 150 over [100@1.0, 100@1.2] costs 160.
	store := newTestStore(t)
	seedMaterial(t, store, "mat-scrap", "Steel Scrap", "420")
	seedBatch(t, store, "mat-scrap", "SC-A", 10, "100", "1.0")
	seedBatch(t, store, "mat-scrap", "SC-B", 20, "100", "1.2")

	sim := inventory.NewSimulation(store)
	result, err := sim.Allocate(context.Background(), "mat-scrap", dec("150"))

	require.NoError(t, err)
	assert.True(t, result.CanFulfill)
	assert.True(t, result.COGS.Equal(dec("160")))
}

// =============================================================================
// OVERRIDE AUDIT TESTS
// =============================================================================

func TestStore_OverrideAudit_AppendAndList(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	older := pricing.OverrideRecord{
		ID: "ovr-1", MaterialID: "mat-copper",
		OriginalRate: dec("9250"), OverrideRate: dec("9000"),
		Reason: "competitor quote", ApprovedBy: "sup-jordan",
		ApprovedAt: time.Date(2026, time.June, 1, 10, 0, 0, 0, time.UTC),
	}
	newer := pricing.OverrideRecord{
		ID: "ovr-2", MaterialID: "mat-zinc",
		OriginalRate: dec("2500"), OverrideRate: dec("2400"),
		Reason: "volume deal", ApprovedBy: "sup-casey",
		ApprovedAt: time.Date(2026, time.June, 2, 10, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.RecordOverride(ctx, older, "ord-100"))
	require.NoError(t, store.RecordOverride(ctx, newer, ""))

	all, err := store.ListOverrides(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "ovr-2", all[0].Record.ID, "newest approval first")
	assert.Equal(t, "ovr-1", all[1].Record.ID)
	assert.Equal(t, "ord-100", all[1].OrderRef)
	assert.True(t, all[1].Record.OverrideRate.Equal(dec("9000")))
	assert.Equal(t, older.ApprovedAt, all[1].Record.ApprovedAt.UTC())

	copperOnly, err := store.ListOverrides(ctx, "mat-copper")
	require.NoError(t, err)
	require.Len(t, copperOnly, 1)
	assert.Equal(t, "ovr-1", copperOnly[0].Record.ID)
}

// =============================================================================
// RESET TESTS
// =============================================================================

func TestStore_Reset_ClearsEverything(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seedMaterial(t, store, "mat-copper", "Copper", "9400")
	seedBatch(t, store, "mat-copper", "CU-1", 10, "10", "9000")
	_, err := store.SaveContract(ctx, `{
		"id": "ctr-1", "customer_id": "cust-acme",
		"start_date": "2026-01-01", "end_date": "2026-12-31", "status": "active", "rates": {}
	}`)
	require.NoError(t, err)

	require.NoError(t, store.Reset(ctx))

	materials, err := store.ListMaterials(ctx)
	require.NoError(t, err)
	assert.Empty(t, materials)

	contract, err := store.ContractFor(ctx, "cust-acme")
	require.NoError(t, err)
	assert.Nil(t, contract)
}
