// Publication HTTP handlers (admin).
//
//   - POST /admin/publish        (one city, optional date)
//   - POST /admin/publish/daily  (every configured city, latest quote)
//
// Idempotency:
// When the client supplies an Idempotency-Key and a previous successful
// publish with the same key exists, the stored post is returned without
// calling the generator again and `Idempotency-Replayed: true` is set.
package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/goldrate-backend/internal/http/middleware"
	"github.com/tbourn/goldrate-backend/internal/services"
)

//
// DTOs
//

// PublishRequest is the JSON payload for a single-city publish.
type PublishRequest struct {
	// District from the catalogue.
	City string `json:"city" binding:"required" example:"Chennai"`
	// Quote date; the latest quote is used when empty.
	Date string `json:"date,omitempty" example:"2025-01-15"`
}

// PublishResponse describes a publish outcome. Replayed responses carry the
// stored slug and URL only.
type PublishResponse struct {
	Slug     string                  `json:"slug"`
	URL      string                  `json:"url"`
	Replayed bool                    `json:"replayed,omitempty"`
	Result   *services.PublishResult `json:"result,omitempty"`
}

// PublishDailyRequest optionally overrides the configured city list.
type PublishDailyRequest struct {
	Cities []string `json:"cities,omitempty" example:"Chennai,Madurai"`
}

// PublishDailyResponse carries the per-city report and any joined error.
type PublishDailyResponse struct {
	services.DailyReport
	Error string `json:"error,omitempty"`
}

//
// Handlers
//

// Publish godoc
// @ID          publish
// @Summary     Publish a blog post for a city (admin)
// @Description Generates, stores and queues for indexing the daily post for a district. Supports idempotency via the Idempotency-Key header.
// @Tags        Admin
// @Accept      json
// @Produce     json
// @Security    AdminToken
// @Param       Idempotency-Key  header  string                   false "Idempotency key for safe retries (UUID recommended)"
// @Param       body             body    handlers.PublishRequest  true  "City and optional date"
// @Success     201  {object}  handlers.PublishResponse
// @Success     200  {object}  handlers.PublishResponse  "Replayed"
// @Header      200  {string}  Idempotency-Replayed  "true when served from a previous request"
// @Failure     400  {object}  handlers.ErrorResponse  "Unknown city or bad date"
// @Failure     404  {object}  handlers.ErrorResponse  "No quote"
// @Failure     502  {object}  handlers.ErrorResponse  "Generator failed"
// @Router      /admin/publish [post]
func (h *Handlers) Publish(c *gin.Context) {
	ctx := c.Request.Context()
	var req PublishRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.City) == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "city required")
		return
	}

	// Idempotency (replay path).
	key, scope, hasKey := middleware.GetIdempotencyKey(c)
	if hasKey && h.idem != nil {
		if rec, err := h.idem.Get(ctx, scope, key, time.Now().UTC()); err == nil && rec != nil {
			c.Header(middleware.HeaderIdempotencyReplayed, "true")
			ok(c, http.StatusOK, PublishResponse{
				Slug:     rec.ResourceID,
				URL:      services.PostURL(h.opts.SiteURL, rec.ResourceID),
				Replayed: true,
			})
			return
		}
	}

	res, err := h.publishSvc.PublishForDate(ctx, req.City, req.Date)
	if serviceError(c, err) {
		return
	}

	// Idempotency (store path) – best effort.
	if hasKey && h.idem != nil {
		if err := h.idem.Save(ctx, scope, key, res.Post.Slug, http.StatusCreated, h.opts.IdempotencyTTL); err != nil {
			middleware.LoggerFrom(c).Warn().Err(err).Str("slug", res.Post.Slug).Msg("idempotency: store failed")
		}
	}
	ok(c, http.StatusCreated, PublishResponse{Slug: res.Post.Slug, URL: res.URL, Result: res})
}

// PublishDaily godoc
// @ID          publishDaily
// @Summary     Run the daily publication (admin)
// @Description Publishes every configured city using the latest quote. A failing city does not stop the others; the response lists each city's outcome.
// @Tags        Admin
// @Accept      json
// @Produce     json
// @Security    AdminToken
// @Param       body  body  handlers.PublishDailyRequest  false  "Optional city override"
// @Success     200  {object}  handlers.PublishDailyResponse  "Every city published"
// @Success     207  {object}  handlers.PublishDailyResponse  "Some cities failed"
// @Failure     404  {object}  handlers.ErrorResponse  "No quote"
// @Router      /admin/publish/daily [post]
func (h *Handlers) PublishDaily(c *gin.Context) {
	var req PublishDailyRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
			return
		}
	}
	names := req.Cities
	if len(names) == 0 {
		names = h.opts.DailyCities
	}
	if len(names) == 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "no cities to publish")
		return
	}

	rep, err := h.publishSvc.PublishDaily(c.Request.Context(), names)
	if err != nil && rep.Date == "" {
		// Nothing ran: the quote lookup itself failed.
		serviceError(c, err)
		return
	}
	resp := PublishDailyResponse{DailyReport: rep}
	status := http.StatusOK
	if err != nil {
		resp.Error = err.Error()
		status = http.StatusMultiStatus
		if published(rep) == 0 {
			status = http.StatusBadGateway
		}
	}
	ok(c, status, resp)
}

func published(rep services.DailyReport) int {
	n := 0
	for _, r := range rep.Results {
		if r.Error == "" {
			n++
		}
	}
	return n
}
