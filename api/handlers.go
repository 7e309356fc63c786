/*
handlers.go - HTTP API handlers for the pricing engine

PURPOSE:
  Exposes the pricing engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Materials:
    GET    /api/materials               List materials
    GET    /api/materials/{id}          Material details
    GET    /api/materials/{id}/stock    Live stock indicator

  Rates:
    POST   /api/rates/resolve           Resolve effective rate for a line

  Overrides:
    POST   /api/overrides               Request a gated rate override
    GET    /api/overrides               Override audit log

  Orders:
    POST   /api/orders/preview          Price + FIFO-simulate an order

  Scenarios:
    GET    /api/scenarios               List demo scenarios
    POST   /api/scenarios/load          Load a demo scenario
    POST   /api/scenarios/reset         Clear the database

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Malformed input (rejected before any computation)
  - 404: Unknown material/customer
  - 403: Invalid override credential
  - 409: Override not in an approvable state
  - 503: Stock ledger or authorizer unreachable (NOT zero stock)
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/warp/pricing-engine/preview"
	"github.com/warp/pricing-engine/pricing"
	"github.com/warp/pricing-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store    *sqlite.Store
	Resolver *pricing.Resolver
	Verifier pricing.CredentialVerifier
	Log      *logrus.Logger
	Metrics  *Metrics

	assembler *preview.Assembler
	previews  *previewCache

	// Track currently loaded scenario (dev/demo).
	currentScenario string
}

// NewHandler creates a handler wired to the given store and verifier.
func NewHandler(store *sqlite.Store, verifier pricing.CredentialVerifier, log *logrus.Logger) *Handler {
	if log == nil {
		log = logrus.New()
	}
	resolver := &pricing.Resolver{}
	return &Handler{
		Store:    store,
		Resolver: resolver,
		Verifier: verifier,
		Log:      log,
		assembler: &preview.Assembler{
			Materials: store,
			Contracts: store,
			Stock:     store,
			Resolver:  resolver,
		},
		previews: newPreviewCache(),
	}
}

// =============================================================================
// MATERIAL HANDLERS
// =============================================================================

// ListMaterials returns all materials.
func (h *Handler) ListMaterials(w http.ResponseWriter, r *http.Request) {
	materials, err := h.Store.ListMaterials(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list materials", err)
		return
	}

	dtos := make([]MaterialDTO, 0, len(materials))
	for _, m := range materials {
		dtos = append(dtos, toMaterialDTO(m))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetMaterial returns a single material.
func (h *Handler) GetMaterial(w http.ResponseWriter, r *http.Request) {
	id := pricing.MaterialID(chi.URLParam(r, "id"))

	m, err := h.Store.Material(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get material", err)
		return
	}
	writeJSON(w, http.StatusOK, toMaterialDTO(m))
}

// GetStock returns the live stock indicator for a material. This is the
// per-material aggregate view - advisory while editing, independent of
// the cumulative FIFO preview that gates confirmation.
func (h *Handler) GetStock(w http.ResponseWriter, r *http.Request) {
	id := pricing.MaterialID(chi.URLParam(r, "id"))

	level, err := h.Store.CurrentStock(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get stock", err)
		return
	}
	writeJSON(w, http.StatusOK, toStockDTO(id, level))
}

// =============================================================================
// RATE RESOLUTION
// =============================================================================

// ResolveRate resolves the effective unit price for one material under
// the customer's contract (if any).
// POST /api/rates/resolve
func (h *Handler) ResolveRate(w http.ResponseWriter, r *http.Request) {
	var req ResolveRateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.MaterialID == "" {
		writeError(w, http.StatusBadRequest, "material_id is required", nil)
		return
	}

	ctx := r.Context()
	material, err := h.Store.Material(ctx, pricing.MaterialID(req.MaterialID))
	if err != nil {
		writeDomainError(w, "Failed to resolve rate", err)
		return
	}

	var contract *pricing.Contract
	if req.CustomerID != "" {
		contract, err = h.Store.ContractFor(ctx, pricing.CustomerID(req.CustomerID))
		if err != nil {
			writeDomainError(w, "Failed to load contract", err)
			return
		}
	}

	res := h.Resolver.ResolveRate(material, contract)
	h.Metrics.resolution(string(res.Source))
	writeJSON(w, http.StatusOK, toRateResolutionDTO(res))
}

// =============================================================================
// OVERRIDE HANDLERS
// =============================================================================

// RequestOverride runs the full gate for a manual rate edit: resolve the
// current contracted rate, and either admit the edit directly (no active
// contract rate / within epsilon) or demand reason + credential and
// produce an audit record.
// POST /api/overrides
func (h *Handler) RequestOverride(w http.ResponseWriter, r *http.Request) {
	var req OverrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.MaterialID == "" {
		writeError(w, http.StatusBadRequest, "material_id is required", nil)
		return
	}

	ctx := r.Context()
	material, err := h.Store.Material(ctx, pricing.MaterialID(req.MaterialID))
	if err != nil {
		writeDomainError(w, "Failed to process override", err)
		return
	}

	var contract *pricing.Contract
	if req.CustomerID != "" {
		contract, err = h.Store.ContractFor(ctx, pricing.CustomerID(req.CustomerID))
		if err != nil {
			writeDomainError(w, "Failed to load contract", err)
			return
		}
	}

	resolution := h.Resolver.ResolveRate(material, contract)
	requested := decimal.NewFromFloat(req.RequestedRate)

	gate := pricing.NewOverrideGate(h.Verifier)
	if gate.Propose(resolution, requested) == pricing.OverrideIdle {
		// No active contract rate in the way: direct edit permitted.
		h.Metrics.override("direct")
		writeJSON(w, http.StatusOK, OverrideResponse{
			Gated: false,
			State: string(pricing.OverrideIdle),
		})
		return
	}

	rec, err := gate.Approve(ctx, req.RequestedBy, req.Reason, req.Credential)
	if err != nil {
		switch {
		case errors.Is(err, pricing.ErrInvalidCredential):
			h.Metrics.override("rejected")
			writeError(w, http.StatusForbidden, "Override rejected: invalid credential", nil)
		case errors.Is(err, pricing.ErrReasonRequired):
			h.Metrics.override("rejected")
			writeError(w, http.StatusBadRequest, "Override rejected: reason is required", nil)
		case pricing.IsUnavailable(err):
			h.Metrics.override("error")
			writeError(w, http.StatusServiceUnavailable, "Authorization service unavailable", err)
		default:
			h.Metrics.override("error")
			writeError(w, http.StatusInternalServerError, "Failed to process override", err)
		}
		return
	}

	if err := h.Store.RecordOverride(ctx, *rec, req.OrderRef); err != nil {
		h.Metrics.override("error")
		writeError(w, http.StatusInternalServerError, "Failed to persist override audit record", err)
		return
	}

	h.Log.WithFields(logrus.Fields{
		"material_id":   rec.MaterialID,
		"original_rate": rec.OriginalRate,
		"override_rate": rec.OverrideRate,
		"approved_by":   rec.ApprovedBy,
	}).Info("rate override approved")

	h.Metrics.override("approved")
	dto := toOverrideRecordDTO(*rec, req.OrderRef)
	writeJSON(w, http.StatusCreated, OverrideResponse{
		Gated:    true,
		State:    string(pricing.OverrideApproved),
		Override: &dto,
	})
}

// ListOverrides returns the override audit log.
// GET /api/overrides?material_id=...
func (h *Handler) ListOverrides(w http.ResponseWriter, r *http.Request) {
	materialID := pricing.MaterialID(r.URL.Query().Get("material_id"))

	entries, err := h.Store.ListOverrides(r.Context(), materialID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list overrides", err)
		return
	}

	dtos := make([]OverrideRecordDTO, 0, len(entries))
	for _, e := range entries {
		dtos = append(dtos, toOverrideRecordDTO(e.Record, e.OrderRef))
	}
	writeJSON(w, http.StatusOK, map[string]any{"overrides": dtos})
}

// =============================================================================
// ORDER PREVIEW
// =============================================================================

// PreviewOrder prices all lines and simulates FIFO allocation against
// current inventory. Confirmation in the client is gated on the returned
// can_fulfill_all.
// POST /api/orders/preview
func (h *Handler) PreviewOrder(w http.ResponseWriter, r *http.Request) {
	var req PreviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	// Idempotent replay: same request identity, same preview, no second
	// simulation.
	if cached, ok := h.previews.Get(req.RequestID); ok {
		h.Metrics.preview("replayed", -1)
		writeJSON(w, http.StatusOK, cached)
		return
	}

	requestID := req.RequestID
	if requestID == "" {
		requestID = uuid.NewString()
	}

	lines := make([]preview.LineInput, 0, len(req.Items))
	for _, it := range req.Items {
		lines = append(lines, preview.LineInput{
			MaterialID: pricing.MaterialID(it.MaterialID),
			Quantity:   decimal.NewFromFloat(it.Quantity),
			UnitPrice:  decimal.NewFromFloat(it.UnitPrice),
		})
	}

	started := time.Now()
	result, err := h.assembler.Preview(r.Context(), pricing.CustomerID(req.CustomerID), lines)
	elapsed := time.Since(started).Seconds()
	if err != nil {
		h.Metrics.preview("error", elapsed)
		switch {
		case errors.Is(err, preview.ErrNoLines), errors.Is(err, pricing.ErrInvalidQuantity):
			writeError(w, http.StatusBadRequest, "Invalid preview request", err)
		case pricing.IsNotFound(err):
			writeError(w, http.StatusNotFound, "Unknown customer", err)
		case pricing.IsUnavailable(err):
			writeError(w, http.StatusServiceUnavailable, "Stock ledger unavailable", err)
		default:
			writeError(w, http.StatusInternalServerError, "Failed to compute preview", err)
		}
		return
	}

	// Roll the same lines into order totals; tax stays zero without an
	// external tax collaborator.
	orderLines := make([]pricing.OrderLine, 0, len(lines))
	for _, l := range lines {
		orderLines = append(orderLines, pricing.OrderLine{
			MaterialID: l.MaterialID,
			Quantity:   l.Quantity,
			UnitPrice:  l.UnitPrice,
		})
	}
	totals := pricing.Aggregator{}.Totals(orderLines, decimal.NewFromFloat(req.DiscountPercent))

	resp := toPreviewResponse(requestID, result, totals)
	h.previews.Put(requestID, resp)

	if result.CanFulfillAll {
		h.Metrics.preview("ok", elapsed)
	} else {
		h.Metrics.preview("shortage", elapsed)
	}
	writeJSON(w, http.StatusOK, resp)
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps engine error kinds onto HTTP statuses.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case pricing.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case pricing.IsUnavailable(err):
		writeError(w, http.StatusServiceUnavailable, message, err)
	case pricing.IsClientError(err):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
