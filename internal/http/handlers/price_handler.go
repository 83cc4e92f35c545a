// Price HTTP handlers.
//
// This file exposes the display flow for daily gold quotes:
//   - GET  /prices/latest        (latest quote with derived figures)
//   - GET  /prices               (history, weak ETag support)
//   - GET  /prices/{date}        (one day)
//   - PUT  /admin/prices/{date}  (admin upsert)
//
// Public reads never fail with 5xx: a store error is logged and an empty
// payload is returned so the page can render its empty state.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/goldrate-backend/internal/services"
	"github.com/tbourn/goldrate-backend/internal/utils"
)

//
// DTOs
//

// LatestPriceResponse wraps the latest quote. Quote is null when none exists.
type LatestPriceResponse struct {
	Quote *services.PriceView `json:"quote"`
}

// PriceHistoryResponse wraps a most-recent-first price history.
type PriceHistoryResponse struct {
	Prices []services.PriceView `json:"prices"`
}

// UpsertPriceRequest is the JSON payload for storing a day's quote.
type UpsertPriceRequest struct {
	// Rupees per gram of 22-karat gold.
	Price22K float64 `json:"price_22k" example:"10632"`
	// Rupees per gram of 24-karat gold.
	Price24K float64 `json:"price_24k" example:"11598"`
}

//
// Handlers
//

// LatestPrice godoc
// @ID          latestPrice
// @Summary     Latest gold rate
// @Description Returns the most recent quote with per-sovereign prices and the change against the previous day. `quote` is null when nothing is stored yet.
// @Tags        Prices
// @Produce     json
// @Success     200  {object}  handlers.LatestPriceResponse
// @Router      /api/v1/prices/latest [get]
func (h *Handlers) LatestPrice(c *gin.Context) {
	ctx := c.Request.Context()
	q, err := h.priceSvc.Latest(ctx)
	if err != nil {
		if !errors.Is(err, services.ErrQuoteNotFound) {
			readFailed(c, err, LatestPriceResponse{})
			return
		}
		ok(c, http.StatusOK, LatestPriceResponse{})
		return
	}
	v := h.priceSvc.View(ctx, *q)
	ok(c, http.StatusOK, LatestPriceResponse{Quote: &v})
}

// ListPrices godoc
// @ID          listPrices
// @Summary     Price history
// @Description Returns up to `limit` quotes, most recent first. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Prices
// @Produce     json
// @Param       limit          query   int     false "Number of days"              minimum(1) maximum(365) default(30)
// @Param       If-None-Match  header  string  false "Return 304 if ETag matches"  example(W/\"prices:30:1736899200\")
// @Success     200  {object}  handlers.PriceHistoryResponse
// @Header      200  {string}  ETag  "Weak ETag for current result"
// @Success     304  {string}  string "Not Modified"
// @Router      /api/v1/prices [get]
func (h *Handlers) ListPrices(c *gin.Context) {
	ctx := c.Request.Context()
	limit := utils.AtoiDefault(c.Query("limit"), 30)

	// ETag pre-check (best effort).
	if count, maxTS, err := h.priceSvc.Stats(ctx); err == nil {
		if notModified(c, "prices", count, maxTS) {
			return
		}
	}

	qs, err := h.priceSvc.LastN(ctx, limit)
	if err != nil {
		readFailed(c, err, PriceHistoryResponse{Prices: []services.PriceView{}})
		return
	}
	ok(c, http.StatusOK, PriceHistoryResponse{Prices: h.priceSvc.Views(ctx, qs)})
}

// GetPrice godoc
// @ID          getPrice
// @Summary     Gold rate for one day
// @Tags        Prices
// @Produce     json
// @Param       date  path  string  true  "Calendar date"  example(2025-01-15)
// @Success     200  {object}  services.PriceView
// @Failure     400  {object}  handlers.ErrorResponse  "Malformed date"
// @Failure     404  {object}  handlers.ErrorResponse  "No quote for that date"
// @Router      /api/v1/prices/{date} [get]
func (h *Handlers) GetPrice(c *gin.Context) {
	ctx := c.Request.Context()
	q, err := h.priceSvc.Get(ctx, c.Param("date"))
	switch {
	case err == nil:
	case errors.Is(err, services.ErrInvalidDate), isNotFound(err):
		serviceError(c, err)
		return
	default:
		readFailed(c, err, gin.H{})
		return
	}
	ok(c, http.StatusOK, h.priceSvc.View(ctx, *q))
}

// UpsertPrice godoc
// @ID          upsertPrice
// @Summary     Store a day's quote (admin)
// @Description Creates or overwrites the quote for the date. Both prices must be positive.
// @Tags        Admin
// @Accept      json
// @Produce     json
// @Security    AdminToken
// @Param       date  path  string                       true  "Calendar date"  example(2025-01-15)
// @Param       body  body  handlers.UpsertPriceRequest  true  "Prices per gram"
// @Success     200  {object}  domain.PriceQuote
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid date or price"
// @Failure     401  {object}  handlers.ErrorResponse  "Missing credential"
// @Failure     403  {object}  handlers.ErrorResponse  "Wrong credential"
// @Router      /admin/prices/{date} [put]
func (h *Handlers) UpsertPrice(c *gin.Context) {
	var req UpsertPriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	q, err := h.priceSvc.Upsert(c.Request.Context(), c.Param("date"), req.Price22K, req.Price24K)
	if serviceError(c, err) {
		return
	}
	ok(c, http.StatusOK, q)
}
