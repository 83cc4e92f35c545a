// Indexing queue HTTP handlers (admin).
//
//   - POST /admin/indexing              (enqueue a URL)
//   - GET  /admin/indexing              (list, optional status filter)
//   - GET  /admin/indexing/{id}         (one entry)
//   - POST /admin/indexing/{id}/process (notify for one entry)
//   - POST /admin/indexing/process      (drain pending entries)
//
// Upstream failures are part of the Outcome body, not HTTP errors: the
// request itself succeeded and the entry now records the failure.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/goldrate-backend/internal/domain"
	"github.com/tbourn/goldrate-backend/internal/http/middleware"
)

// EnqueueRequest is the JSON payload for queueing a URL.
type EnqueueRequest struct {
	URL string `json:"url" binding:"required" example:"https://chennaigoldprice.com/blog/chennai-gold-rate-2025-01-15"`
}

// ListQueueResponse wraps a page of queue entries.
type ListQueueResponse struct {
	Entries    []domain.IndexingQueueEntry `json:"entries"`
	Pagination Pagination                  `json:"pagination"`
}

// Enqueue godoc
// @ID          enqueueIndexing
// @Summary     Queue a URL for indexing (admin)
// @Description Returns the existing entry when the URL is already pending.
// @Tags        Admin
// @Accept      json
// @Produce     json
// @Security    AdminToken
// @Param       body  body  handlers.EnqueueRequest  true  "URL"
// @Success     202  {object}  domain.IndexingQueueEntry
// @Failure     400  {object}  handlers.ErrorResponse  "Invalid URL"
// @Router      /admin/indexing [post]
func (h *Handlers) Enqueue(c *gin.Context) {
	var req EnqueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "url required")
		return
	}
	e, err := h.indexSvc.Enqueue(c.Request.Context(), req.URL)
	if serviceError(c, err) {
		return
	}
	ok(c, http.StatusAccepted, e)
}

// ListQueue godoc
// @ID          listIndexing
// @Summary     List indexing queue entries (admin)
// @Tags        Admin
// @Produce     json
// @Security    AdminToken
// @Param       status     query  string  false "Status filter"   Enums(pending, completed, failed)
// @Param       page       query  int     false "Page number"     minimum(1) default(1)
// @Param       page_size  query  int     false "Items per page"  minimum(1) maximum(100) default(20)
// @Success     200  {object}  handlers.ListQueueResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Unknown status"
// @Router      /admin/indexing [get]
func (h *Handlers) ListQueue(c *gin.Context) {
	status := c.Query("status")
	switch status {
	case "", domain.IndexPending, domain.IndexCompleted, domain.IndexFailed:
	default:
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "status must be pending, completed or failed")
		return
	}
	page, pageSize := pageParams(c)
	items, total, err := h.indexSvc.List(c.Request.Context(), status, page, pageSize)
	if serviceError(c, err) {
		return
	}
	ok(c, http.StatusOK, ListQueueResponse{Entries: items, Pagination: newPagination(page, pageSize, total)})
}

// GetQueueEntry godoc
// @ID          getIndexing
// @Summary     Get an indexing queue entry (admin)
// @Tags        Admin
// @Produce     json
// @Security    AdminToken
// @Param       id  path  string  true  "Entry ID"  format(uuid)
// @Success     200  {object}  domain.IndexingQueueEntry
// @Failure     404  {object}  handlers.ErrorResponse  "Entry not found"
// @Router      /admin/indexing/{id} [get]
func (h *Handlers) GetQueueEntry(c *gin.Context) {
	e, err := h.indexSvc.Get(c.Request.Context(), c.Param("id"))
	if serviceError(c, err) {
		return
	}
	ok(c, http.StatusOK, e)
}

// ProcessEntry godoc
// @ID          processIndexing
// @Summary     Notify the indexing API for one entry (admin)
// @Description Works on pending and failed entries; completed entries are left untouched.
// @Tags        Admin
// @Produce     json
// @Security    AdminToken
// @Param       id  path  string  true  "Entry ID"  format(uuid)
// @Success     200  {object}  services.Outcome
// @Failure     404  {object}  handlers.ErrorResponse  "Entry not found"
// @Router      /admin/indexing/{id}/process [post]
func (h *Handlers) ProcessEntry(c *gin.Context) {
	out, err := h.indexSvc.Process(c.Request.Context(), c.Param("id"))
	if serviceError(c, err) {
		return
	}
	ok(c, http.StatusOK, out)
}

// ProcessQueue godoc
// @ID          processIndexingAll
// @Summary     Drain pending indexing entries (admin)
// @Tags        Admin
// @Produce     json
// @Security    AdminToken
// @Success     200  {object}  services.Summary
// @Failure     500  {object}  handlers.ErrorResponse  "Store failure"
// @Router      /admin/indexing/process [post]
func (h *Handlers) ProcessQueue(c *gin.Context) {
	sum, err := h.indexSvc.ProcessAll(c.Request.Context())
	if err != nil {
		middleware.LoggerFrom(c).Error().Err(err).Int("attempted", sum.Attempted).Msg("indexing: drain aborted")
		fail(c, http.StatusInternalServerError, ErrCodeIndexingFailed, "indexing run aborted")
		return
	}
	ok(c, http.StatusOK, sum)
}
