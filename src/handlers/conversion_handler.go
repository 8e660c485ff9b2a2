package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/dansever/fleet-ai-sub002/src/cache"
	"github.com/dansever/fleet-ai-sub002/src/logger"
	"github.com/dansever/fleet-ai-sub002/src/models"
	"github.com/dansever/fleet-ai-sub002/src/services"
	"github.com/dansever/fleet-ai-sub002/src/units"
	"github.com/dansever/fleet-ai-sub002/src/utils"
)

// BidConversionRequest is the batch conversion request body.
type BidConversionRequest struct {
	Bids   []models.PricedRecord    `json:"bids"`
	Tender *models.ConversionTarget `json:"tender"`
}

// BidConversionResponse is the batch conversion response body.
type BidConversionResponse struct {
	Success       bool                      `json:"success"`
	ConvertedBids []models.ConvertedBid     `json:"convertedBids"`
	Progress      models.ConversionProgress `json:"progress"`
}

type ConversionHandler struct {
	bidService *services.BidConversionService
	converter  *services.ConversionService
	cache      *cache.Cache
}

func NewConversionHandler(bidService *services.BidConversionService, converter *services.ConversionService, resultCache *cache.Cache) *ConversionHandler {
	return &ConversionHandler{bidService: bidService, converter: converter, cache: resultCache}
}

// HandleConvertBids is the batch entry point: POST /api/conversions/bids.
// A structurally invalid request (missing bids or tender) is the only
// fatal failure; per-field conversion errors come back inside the
// result set.
func (h *ConversionHandler) HandleConvertBids(w http.ResponseWriter, r *http.Request) {
	ctxLogger := logger.FromContext(r.Context())

	var req BidConversionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Bids) == 0 {
		utils.SendJSONError(w, "bids are required", http.StatusBadRequest)
		return
	}
	if req.Tender == nil || req.Tender.Currency == "" || req.Tender.UOM == "" {
		utils.SendJSONError(w, "tender base currency and base unit are required", http.StatusBadRequest)
		return
	}

	ctxLogger.Info("Handling bid conversion request",
		"bids", len(req.Bids), "baseCurrency", req.Tender.Currency, "baseUom", req.Tender.UOM)

	result, err := h.bidService.ConvertBids(r.Context(), req.Bids, *req.Tender)
	if err != nil {
		ctxLogger.Error("Bid conversion run failed", "error", err)
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(BidConversionResponse{
		Success:       true,
		ConvertedBids: result.ConvertedBids,
		Progress:      result.Progress,
	})
}

// HandleConvert performs a single scalar or rate conversion:
// POST /api/conversions. A failed conversion is still a 200; the result
// carries the error code and suggestion.
func (h *ConversionHandler) HandleConvert(w http.ResponseWriter, r *http.Request) {
	var req models.ConversionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	var result *models.ConversionResult
	if req.IsRate {
		result = h.converter.ConvertRate(r.Context(), req.Value, req.FromRateUnit, req.ToRateUnit)
	} else {
		if req.FromUnit == "" || req.ToUnit == "" {
			result = models.NewFailureResult(models.ErrCodeInvalidInput,
				"from_unit and to_unit are required", "Provide both unit strings")
		} else {
			result = h.converter.ConvertScalar(req.Value, req.FromUnit, req.ToUnit)
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

// HandleListUnits returns the canonical unit symbols per category:
// GET /api/units.
func (h *ConversionHandler) HandleListUnits(w http.ResponseWriter, r *http.Request) {
	listing := make(map[string][]string)
	for _, cat := range units.Categories() {
		listing[string(cat)] = units.CanonicalUnits(cat)
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(listing)
}

// HandleClearCache drops every cached conversion result:
// POST /api/cache/clear.
func (h *ConversionHandler) HandleClearCache(w http.ResponseWriter, r *http.Request) {
	h.cache.Clear()
	logger.FromContext(r.Context()).Info("Conversion cache cleared")
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"success": true})
}

// HandleHealth is a liveness probe: GET /api/health.
func (h *ConversionHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
