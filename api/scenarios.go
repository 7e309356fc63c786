/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the database with realistic
	data for testing and demos. Each scenario creates materials, inventory
	batches, and a customer contract demonstrating specific pricing
	features.

AVAILABLE SCENARIOS:

	metals-desk:       Mixed rate variants (fixed, discount, cap, legacy)
	expired-contract:  Contract past its window, everything at market
	tight-stock:       Small batches so previews hit shortfalls quickly

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Create materials with market (standard) prices
 3. Add FIFO batches with staggered purchase dates and costs
 4. Save a contract JSON via the factory

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "metals-desk"}

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: Shared writeJSON/writeError helpers
  - factory/contract.go: Contract JSON definitions
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/pricing-engine/inventory"
	"github.com/warp/pricing-engine/pricing"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "metals-desk",
		Name:        "Metals Trading Desk",
		Description: "Copper, zinc and scrap with all contract rate variants",
		Category:    "pricing",
	},
	{
		ID:          "expired-contract",
		Name:        "Expired Contract",
		Description: "Contract window has passed; every line prices at market",
		Category:    "pricing",
	},
	{
		ID:          "tight-stock",
		Name:        "Tight Stock",
		Description: "Thin batches so order previews run into shortfalls",
		Category:    "inventory",
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	if h.currentScenario == "" {
		writeJSON(w, http.StatusOK, nil)
		return
	}

	for _, s := range scenarios {
		if s.ID == h.currentScenario {
			writeJSON(w, http.StatusOK, s)
			return
		}
	}

	// Scenario ID exists but not in list (shouldn't happen)
	writeJSON(w, http.StatusOK, ScenarioDTO{
		ID:          h.currentScenario,
		Name:        h.currentScenario,
		Description: "Currently loaded scenario",
	})
}

// LoadScenario loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ScenarioID string `json:"scenario_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ctx := r.Context()

	// Reset first
	if err := h.Store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.previews.Invalidate()
	h.currentScenario = ""

	var err error
	switch req.ScenarioID {
	case "metals-desk":
		err = h.loadMetalsDeskScenario(ctx)
	case "expired-contract":
		err = h.loadExpiredContractScenario(ctx)
	case "tight-stock":
		err = h.loadTightStockScenario(ctx)
	default:
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}

	h.currentScenario = req.ScenarioID
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": req.ScenarioID})
}

// ResetDatabase clears all data without loading a scenario.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}
	h.previews.Invalidate()
	h.currentScenario = ""
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func (h *Handler) loadMetalsDeskScenario(ctx context.Context) error {
	materials := []pricing.Material{
		{ID: "mat-copper", Name: "Copper Cathode", Unit: "ton", StandardPrice: dec("9400"), Category: "metals", ReorderLevel: dec("50")},
		{ID: "mat-zinc", Name: "Zinc Ingot", Unit: "ton", StandardPrice: dec("2600"), Category: "metals", ReorderLevel: dec("30")},
		{ID: "mat-crude", Name: "Crude Oil", Unit: "bbl", StandardPrice: dec("10.000"), Category: "energy", ReorderLevel: dec("500")},
		{ID: "mat-scrap", Name: "Steel Scrap", Unit: "ton", StandardPrice: dec("420"), Category: "metals", ReorderLevel: dec("100")},
	}
	for _, m := range materials {
		if err := h.Store.SaveMaterial(ctx, m); err != nil {
			return err
		}
	}

	year := time.Now().Year()
	batches := []inventory.Batch{
		{MaterialID: "mat-copper", BatchNumber: "CU-0315", PurchaseDate: date(year, 3, 15), QuantityAvailable: dec("100"), UnitCost: dec("8900")},
		{MaterialID: "mat-copper", BatchNumber: "CU-0502", PurchaseDate: date(year, 5, 2), QuantityAvailable: dec("100"), UnitCost: dec("9100")},
		{MaterialID: "mat-zinc", BatchNumber: "ZN-0410", PurchaseDate: date(year, 4, 10), QuantityAvailable: dec("60"), UnitCost: dec("2450")},
		{MaterialID: "mat-crude", BatchNumber: "CR-0601", PurchaseDate: date(year, 6, 1), QuantityAvailable: dec("1000"), UnitCost: dec("7.200")},
		{MaterialID: "mat-scrap", BatchNumber: "SC-0220", PurchaseDate: date(year, 2, 20), QuantityAvailable: dec("250"), UnitCost: dec("310")},
	}
	for _, b := range batches {
		if err := h.Store.SaveBatch(ctx, b); err != nil {
			return err
		}
	}

	// One contract covering every variant, plus a legacy bare-number
	// rate, plus one rate with its own validity window.
	contractJSON := fmt.Sprintf(`{
		"id": "ctr-%d-acme",
		"customer_id": "cust-acme",
		"start_date": "%d-01-01",
		"end_date": "%d-12-31",
		"status": "active",
		"special_terms": "net 30",
		"rates": {
			"mat-copper": {"type": "fixed", "contract_rate": "9250.00"},
			"mat-crude":  {"type": "discount_percent", "percent": "20"},
			"mat-zinc":   {"type": "minimum_guarantee", "cap_rate": "2500",
			               "start_date": "%d-03-01", "end_date": "%d-09-30"},
			"mat-scrap":  412.5
		}
	}`, year, year, year, year, year)

	_, err := h.Store.SaveContract(ctx, contractJSON)
	return err
}

func (h *Handler) loadExpiredContractScenario(ctx context.Context) error {
	materials := []pricing.Material{
		{ID: "mat-copper", Name: "Copper Cathode", Unit: "ton", StandardPrice: dec("9400"), Category: "metals", ReorderLevel: dec("50")},
		{ID: "mat-zinc", Name: "Zinc Ingot", Unit: "ton", StandardPrice: dec("2600"), Category: "metals", ReorderLevel: dec("30")},
	}
	for _, m := range materials {
		if err := h.Store.SaveMaterial(ctx, m); err != nil {
			return err
		}
	}

	year := time.Now().Year()
	batches := []inventory.Batch{
		{MaterialID: "mat-copper", BatchNumber: "CU-OLD", PurchaseDate: date(year-1, 11, 5), QuantityAvailable: dec("80"), UnitCost: dec("8700")},
		{MaterialID: "mat-zinc", BatchNumber: "ZN-OLD", PurchaseDate: date(year-1, 12, 1), QuantityAvailable: dec("40"), UnitCost: dec("2400")},
	}
	for _, b := range batches {
		if err := h.Store.SaveBatch(ctx, b); err != nil {
			return err
		}
	}

	// Last year's contract with generous rates. Window has passed, so
	// resolution falls back to market for every line.
	contractJSON := fmt.Sprintf(`{
		"id": "ctr-%d-acme",
		"customer_id": "cust-acme",
		"start_date": "%d-01-01",
		"end_date": "%d-12-31",
		"status": "active",
		"rates": {
			"mat-copper": {"type": "fixed", "contract_rate": "8800"},
			"mat-zinc":   {"type": "discount_percent", "percent": "15"}
		}
	}`, year-1, year-1, year-1)

	_, err := h.Store.SaveContract(ctx, contractJSON)
	return err
}

func (h *Handler) loadTightStockScenario(ctx context.Context) error {
	materials := []pricing.Material{
		{ID: "mat-scrap", Name: "Steel Scrap", Unit: "ton", StandardPrice: dec("420"), Category: "metals", ReorderLevel: dec("100")},
		{ID: "mat-zinc", Name: "Zinc Ingot", Unit: "ton", StandardPrice: dec("2600"), Category: "metals", ReorderLevel: dec("30")},
	}
	for _, m := range materials {
		if err := h.Store.SaveMaterial(ctx, m); err != nil {
			return err
		}
	}

	year := time.Now().Year()
	// 200 tons of scrap split across two batches; anything above that
	// shows up as a shortfall in the preview.
	batches := []inventory.Batch{
		{MaterialID: "mat-scrap", BatchNumber: "SC-A", PurchaseDate: date(year, 1, 10), QuantityAvailable: dec("100"), UnitCost: dec("1.0")},
		{MaterialID: "mat-scrap", BatchNumber: "SC-B", PurchaseDate: date(year, 2, 10), QuantityAvailable: dec("100"), UnitCost: dec("1.2")},
		{MaterialID: "mat-zinc", BatchNumber: "ZN-A", PurchaseDate: date(year, 1, 20), QuantityAvailable: dec("5"), UnitCost: dec("2450")},
	}
	for _, b := range batches {
		if err := h.Store.SaveBatch(ctx, b); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// HELPERS
// =============================================================================

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
