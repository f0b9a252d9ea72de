// README: Pricing handlers for quotes, quote audit lookups, config and smoothing state.
package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"valet/internal/modules/pricing"
)

type PricingHandler struct {
	pricing *pricing.Service
}

func NewPricingHandler(svc *pricing.Service) *PricingHandler {
	return &PricingHandler{pricing: svc}
}

type quoteReq struct {
	EstimatedHours     float64    `json:"estimated_hours"`
	VehicleClass       string     `json:"vehicle_class"`
	DaysInAdvance      int        `json:"days_in_advance"`
	LoyaltyTier        string     `json:"loyalty_tier"`
	OccupancyRatio     float64    `json:"occupancy_ratio"`
	RequestTime        *time.Time `json:"request_time"`
	SeasonalMultiplier *float64   `json:"seasonal_multiplier"`
}

// Quote handles POST /api/scopes/:scope/quotes.
func (h *PricingHandler) Quote(c *gin.Context) {
	scope, ok := scopeParam(c)
	if !ok {
		return
	}
	var req quoteReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	qr := pricing.QuoteRequest{
		Scope:              scope,
		EstimatedHours:     req.EstimatedHours,
		VehicleClass:       pricing.VehicleClass(req.VehicleClass),
		DaysInAdvance:      req.DaysInAdvance,
		LoyaltyTier:        pricing.LoyaltyTier(req.LoyaltyTier),
		OccupancyRatio:     req.OccupancyRatio,
		SeasonalMultiplier: req.SeasonalMultiplier,
	}
	if req.RequestTime != nil {
		qr.RequestTime = *req.RequestTime
	}
	q, err := h.pricing.GetPriceQuote(c.Request.Context(), qr)
	if err != nil {
		writePricingError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, q)
}

// ListQuotes handles GET /api/scopes/:scope/quotes?since=RFC3339&limit=n.
func (h *PricingHandler) ListQuotes(c *gin.Context) {
	scope, ok := scopeParam(c)
	if !ok {
		return
	}
	var since time.Time
	if v := c.Query("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(c, http.StatusBadRequest, "invalid since")
			return
		}
		since = t
	}
	limit := 0
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(c, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	quotes, err := h.pricing.ListQuotes(c.Request.Context(), scope, since, limit)
	if err != nil {
		writePricingError(c, err)
		return
	}
	if quotes == nil {
		quotes = []pricing.PriceQuote{}
	}
	writeJSON(c, http.StatusOK, map[string]any{"quotes": quotes})
}

// GetQuote handles GET /api/quotes/:id.
func (h *PricingHandler) GetQuote(c *gin.Context) {
	id := c.Param("id")
	if id == "" {
		writeError(c, http.StatusBadRequest, "missing quote id")
		return
	}
	q, err := h.pricing.GetQuote(c.Request.Context(), id)
	if err != nil {
		writePricingError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, q)
}

// PutConfig handles PUT /api/scopes/:scope/pricing-config.
func (h *PricingHandler) PutConfig(c *gin.Context) {
	scope, ok := scopeParam(c)
	if !ok {
		return
	}
	var cfg pricing.PricingConfig
	if err := c.ShouldBindJSON(&cfg); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	stored, err := h.pricing.UpdatePricingConfig(c.Request.Context(), scope, cfg)
	if err != nil {
		writePricingError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, stored)
}

// GetConfig handles GET /api/scopes/:scope/pricing-config.
func (h *PricingHandler) GetConfig(c *gin.Context) {
	scope, ok := scopeParam(c)
	if !ok {
		return
	}
	cfg, err := h.pricing.GetPricingConfig(c.Request.Context(), scope)
	if errors.Is(err, pricing.ErrConfigNotFound) {
		writeError(c, http.StatusNotFound, "no pricing config for scope")
		return
	}
	if err != nil {
		writePricingError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, cfg)
}

// GetSmoothing handles GET /api/scopes/:scope/smoothing.
func (h *PricingHandler) GetSmoothing(c *gin.Context) {
	scope, ok := scopeParam(c)
	if !ok {
		return
	}
	st, err := h.pricing.GetSmoothingState(c.Request.Context(), scope)
	if err != nil {
		writePricingError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, st)
}

func scopeParam(c *gin.Context) (string, bool) {
	scope := c.Param("scope")
	if !isValidScope(scope) {
		writeError(c, http.StatusBadRequest, "invalid scope")
		return "", false
	}
	return scope, true
}
