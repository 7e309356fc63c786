/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model (decimal.Decimal everywhere) from the external
  API contract. Conversion to/from decimal happens here and only here;
  the engine itself never sees a float64.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

SEE ALSO:
  - handlers.go: Uses these types
  - preview/preview.go: Domain types these project
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/pricing-engine/inventory"
	"github.com/warp/pricing-engine/preview"
	"github.com/warp/pricing-engine/pricing"
)

// =============================================================================
// SHARED
// =============================================================================

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// MATERIALS / STOCK
// =============================================================================

type MaterialDTO struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Unit          string  `json:"unit"`
	StandardPrice float64 `json:"standard_price"`
	Category      string  `json:"category,omitempty"`
	ReorderLevel  float64 `json:"reorder_level"`
}

func toMaterialDTO(m pricing.Material) MaterialDTO {
	return MaterialDTO{
		ID:            string(m.ID),
		Name:          m.Name,
		Unit:          m.Unit,
		StandardPrice: m.StandardPrice.InexactFloat64(),
		Category:      m.Category,
		ReorderLevel:  m.ReorderLevel.InexactFloat64(),
	}
}

type StockDTO struct {
	MaterialID   string  `json:"material_id"`
	CurrentStock float64 `json:"current_stock"`
	Unit         string  `json:"unit"`
	ReorderLevel float64 `json:"reorder_level"`
	Low          bool    `json:"low"`
	OutOfStock   bool    `json:"out_of_stock"`
}

func toStockDTO(id pricing.MaterialID, level inventory.StockLevel) StockDTO {
	return StockDTO{
		MaterialID:   string(id),
		CurrentStock: level.CurrentStock.InexactFloat64(),
		Unit:         level.Unit,
		ReorderLevel: level.ReorderLevel.InexactFloat64(),
		Low:          level.Low(),
		OutOfStock:   level.CurrentStock.LessThanOrEqual(decimal.Zero),
	}
}

// =============================================================================
// RATE RESOLUTION
// =============================================================================

type ResolveRateRequest struct {
	MaterialID string `json:"material_id"`
	CustomerID string `json:"customer_id"`
}

type RateResolutionDTO struct {
	MaterialID     string  `json:"material_id"`
	EffectiveRate  float64 `json:"effective_rate"`
	MarketRate     float64 `json:"market_rate"`
	IsContractRate bool    `json:"is_contract_rate"`
	Source         string  `json:"source"`
	Fallback       string  `json:"fallback,omitempty"`
	RateKind       string  `json:"rate_kind,omitempty"`
}

func toRateResolutionDTO(res pricing.RateResolution) RateResolutionDTO {
	dto := RateResolutionDTO{
		MaterialID:     string(res.MaterialID),
		EffectiveRate:  res.EffectiveRate.InexactFloat64(),
		MarketRate:     res.MarketRate.InexactFloat64(),
		IsContractRate: res.IsContractRate,
		Source:         string(res.Source),
		Fallback:       string(res.Fallback),
	}
	if res.RateSpec != nil {
		dto.RateKind = string(res.RateSpec.Kind)
	}
	return dto
}

// =============================================================================
// OVERRIDES
// =============================================================================

type OverrideRequest struct {
	MaterialID    string  `json:"material_id"`
	CustomerID    string  `json:"customer_id"`
	RequestedRate float64 `json:"requested_rate"`
	Reason        string  `json:"reason"`
	Credential    string  `json:"credential"`
	RequestedBy   string  `json:"requested_by"`
	OrderRef      string  `json:"order_ref,omitempty"`
}

type OverrideRecordDTO struct {
	ID           string  `json:"id"`
	MaterialID   string  `json:"material_id"`
	OriginalRate float64 `json:"original_rate"`
	OverrideRate float64 `json:"override_rate"`
	Reason       string  `json:"reason"`
	ApprovedBy   string  `json:"approved_by"`
	ApprovedAt   string  `json:"approved_at"`
	OrderRef     string  `json:"order_ref,omitempty"`
}

func toOverrideRecordDTO(rec pricing.OverrideRecord, orderRef string) OverrideRecordDTO {
	return OverrideRecordDTO{
		ID:           rec.ID,
		MaterialID:   string(rec.MaterialID),
		OriginalRate: rec.OriginalRate.InexactFloat64(),
		OverrideRate: rec.OverrideRate.InexactFloat64(),
		Reason:       rec.Reason,
		ApprovedBy:   rec.ApprovedBy,
		ApprovedAt:   rec.ApprovedAt.UTC().Format(time.RFC3339),
		OrderRef:     orderRef,
	}
}

// OverrideResponse reports the gate's outcome. Gated=false means the edit
// did not conflict with an active contract rate and applies directly.
type OverrideResponse struct {
	Gated    bool               `json:"gated"`
	State    string             `json:"state"`
	Override *OverrideRecordDTO `json:"override,omitempty"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category,omitempty"`
}

// =============================================================================
// PREVIEW
// =============================================================================

type PreviewLineRequest struct {
	MaterialID string  `json:"material_id"`
	Quantity   float64 `json:"quantity"`
	UnitPrice  float64 `json:"unit_price"`
}

type PreviewRequest struct {
	// RequestID keys idempotent replay: the same id returns the cached
	// preview without re-simulating allocation.
	RequestID       string               `json:"request_id,omitempty"`
	CustomerID      string               `json:"customer_id"`
	BranchID        string               `json:"branch_id,omitempty"`
	DiscountPercent float64              `json:"discount_percent,omitempty"`
	Items           []PreviewLineRequest `json:"items"`
}

type AllocationSliceDTO struct {
	BatchNumber      string  `json:"batch_number"`
	PurchaseDate     string  `json:"purchase_date"`
	UnitCost         float64 `json:"unit_cost"`
	QuantityConsumed float64 `json:"quantity_consumed"`
	CostContribution float64 `json:"cost_contribution"`
}

type PreviewItemDTO struct {
	MaterialID        string               `json:"material_id"`
	MaterialName      string               `json:"material_name"`
	RequestedQuantity float64              `json:"requested_quantity"`
	UnitPrice         float64              `json:"unit_price"`
	Revenue           float64              `json:"revenue"`
	CanFulfill        bool                 `json:"can_fulfill"`
	Allocations       []AllocationSliceDTO `json:"allocations"`
	COGS              float64              `json:"cogs"`
	GrossMargin       float64              `json:"gross_margin"`
	Shortfall         float64              `json:"shortfall,omitempty"`
	TotalAvailable    float64              `json:"total_available"`
	RateSource        string               `json:"rate_source,omitempty"`
	RateFallback      string               `json:"rate_fallback,omitempty"`
	Error             string               `json:"error,omitempty"`
}

type InsufficientItemDTO struct {
	MaterialID   string  `json:"material_id"`
	MaterialName string  `json:"material_name"`
	Requested    float64 `json:"requested"`
	Available    float64 `json:"available"`
	Shortfall    float64 `json:"shortfall"`
}

type PreviewSummaryDTO struct {
	TotalRevenue       float64 `json:"total_revenue"`
	TotalCOGS          float64 `json:"total_cogs"`
	GrossMargin        float64 `json:"gross_margin"`
	GrossMarginPercent float64 `json:"gross_margin_percent"`
}

type OrderTotalsDTO struct {
	TotalAmount    float64 `json:"total_amount"`
	DiscountAmount float64 `json:"discount_amount"`
	TaxAmount      float64 `json:"tax_amount"`
	NetAmount      float64 `json:"net_amount"`
}

type PreviewResponse struct {
	RequestID         string                `json:"request_id"`
	Items             []PreviewItemDTO      `json:"items"`
	Summary           PreviewSummaryDTO     `json:"summary"`
	Totals            OrderTotalsDTO        `json:"totals"`
	InsufficientItems []InsufficientItemDTO `json:"insufficient_items"`
	CanFulfillAll     bool                  `json:"can_fulfill_all"`
}

func toPreviewResponse(requestID string, p *preview.Preview, totals pricing.OrderTotals) PreviewResponse {
	resp := PreviewResponse{
		RequestID:         requestID,
		Items:             make([]PreviewItemDTO, 0, len(p.Items)),
		InsufficientItems: make([]InsufficientItemDTO, 0, len(p.InsufficientItems)),
		CanFulfillAll:     p.CanFulfillAll,
		Summary: PreviewSummaryDTO{
			TotalRevenue:       p.Summary.TotalRevenue.InexactFloat64(),
			TotalCOGS:          p.Summary.TotalCOGS.InexactFloat64(),
			GrossMargin:        p.Summary.GrossMargin.InexactFloat64(),
			GrossMarginPercent: p.Summary.GrossMarginPercent.InexactFloat64(),
		},
		Totals: OrderTotalsDTO{
			TotalAmount:    totals.TotalAmount.InexactFloat64(),
			DiscountAmount: totals.DiscountAmount.InexactFloat64(),
			TaxAmount:      totals.TaxAmount.InexactFloat64(),
			NetAmount:      totals.NetAmount.InexactFloat64(),
		},
	}

	for _, it := range p.Items {
		dto := PreviewItemDTO{
			MaterialID:        string(it.MaterialID),
			MaterialName:      it.MaterialName,
			RequestedQuantity: it.RequestedQuantity.InexactFloat64(),
			UnitPrice:         it.UnitPrice.InexactFloat64(),
			Revenue:           it.Revenue.InexactFloat64(),
			CanFulfill:        it.CanFulfill,
			Allocations:       make([]AllocationSliceDTO, 0, len(it.Allocations)),
			COGS:              it.COGS.InexactFloat64(),
			GrossMargin:       it.GrossMargin.InexactFloat64(),
			Shortfall:         it.Shortfall.InexactFloat64(),
			TotalAvailable:    it.TotalAvailable.InexactFloat64(),
			RateSource:        string(it.Rate.Source),
			RateFallback:      string(it.Rate.Fallback),
		}
		if it.Error != nil {
			dto.Error = it.Error.Error()
		}
		for _, slice := range it.Allocations {
			dto.Allocations = append(dto.Allocations, AllocationSliceDTO{
				BatchNumber:      slice.Batch.BatchNumber,
				PurchaseDate:     slice.Batch.PurchaseDate.Format("2006-01-02"),
				UnitCost:         slice.Batch.UnitCost.InexactFloat64(),
				QuantityConsumed: slice.QuantityConsumed.InexactFloat64(),
				CostContribution: slice.CostContribution.InexactFloat64(),
			})
		}
		resp.Items = append(resp.Items, dto)
	}

	for _, ins := range p.InsufficientItems {
		resp.InsufficientItems = append(resp.InsufficientItems, InsufficientItemDTO{
			MaterialID:   string(ins.MaterialID),
			MaterialName: ins.MaterialName,
			Requested:    ins.Requested.InexactFloat64(),
			Available:    ins.Available.InexactFloat64(),
			Shortfall:    ins.Shortfall.InexactFloat64(),
		})
	}

	return resp
}
