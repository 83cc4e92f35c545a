// Site file and ad HTTP handlers.
//
//   - GET  /sitemap.xml, /robots.txt, /rss.xml, /llms.txt  (stored artifacts)
//   - POST /admin/site-files/regenerate                   (rebuild all)
//   - POST /ads/{id}/impression, /ads/{id}/click          (counters)
//   - GET  /admin/ads/{id}                                (counter read)
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/goldrate-backend/internal/services"
)

// RegenerateResponse lists the rebuilt artifacts.
type RegenerateResponse struct {
	Files []string `json:"files"`
}

// SiteFile returns a handler that serves the stored artifact name verbatim
// with its content type. A file that was never generated is a 404.
func (h *Handlers) SiteFile(name string) gin.HandlerFunc {
	return func(c *gin.Context) {
		f, err := h.filesSvc.Get(c.Request.Context(), name)
		if err != nil {
			if isNotFound(err) {
				fail(c, http.StatusNotFound, ErrCodeNotFound, name+" has not been generated")
				return
			}
			fail(c, http.StatusInternalServerError, ErrCodeInternal, "internal error")
			return
		}
		if !f.UpdatedAt.IsZero() {
			c.Header("Last-Modified", f.UpdatedAt.UTC().Format(http.TimeFormat))
		}
		c.Header("Cache-Control", "public, max-age=300")
		c.Data(http.StatusOK, f.ContentType, []byte(f.Content))
	}
}

// RegenerateSiteFiles godoc
// @ID          regenerateSiteFiles
// @Summary     Rebuild sitemap, robots, RSS and llms.txt (admin)
// @Tags        Admin
// @Produce     json
// @Security    AdminToken
// @Success     200  {object}  handlers.RegenerateResponse
// @Failure     500  {object}  handlers.ErrorResponse  "Regeneration failed"
// @Router      /admin/site-files/regenerate [post]
func (h *Handlers) RegenerateSiteFiles(c *gin.Context) {
	if err := h.filesSvc.RegenerateAll(c.Request.Context()); err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeRegenerateFailed, err.Error())
		return
	}
	ok(c, http.StatusOK, RegenerateResponse{Files: services.SiteFileNames()})
}

// AdImpression godoc
// @ID          adImpression
// @Summary     Count an ad impression
// @Tags        Ads
// @Param       id  path  string  true  "Slot ID"  example(header-banner)
// @Success     204  {string}  string "No Content"
// @Failure     404  {object}  handlers.ErrorResponse  "Unknown slot"
// @Router      /api/v1/ads/{id}/impression [post]
func (h *Handlers) AdImpression(c *gin.Context) {
	if serviceError(c, h.adSvc.RecordImpression(c.Request.Context(), c.Param("id"))) {
		return
	}
	noContent(c)
}

// AdClick godoc
// @ID          adClick
// @Summary     Count an ad click
// @Tags        Ads
// @Param       id  path  string  true  "Slot ID"  example(header-banner)
// @Success     204  {string}  string "No Content"
// @Failure     404  {object}  handlers.ErrorResponse  "Unknown slot"
// @Router      /api/v1/ads/{id}/click [post]
func (h *Handlers) AdClick(c *gin.Context) {
	if serviceError(c, h.adSvc.RecordClick(c.Request.Context(), c.Param("id"))) {
		return
	}
	noContent(c)
}

// GetAdSlot godoc
// @ID          getAdSlot
// @Summary     Read ad slot counters (admin)
// @Tags        Admin
// @Produce     json
// @Security    AdminToken
// @Param       id  path  string  true  "Slot ID"
// @Success     200  {object}  domain.AdSlot
// @Failure     404  {object}  handlers.ErrorResponse  "Unknown slot"
// @Router      /admin/ads/{id} [get]
func (h *Handlers) GetAdSlot(c *gin.Context) {
	s, err := h.adSvc.Slot(c.Request.Context(), c.Param("id"))
	if serviceError(c, err) {
		return
	}
	ok(c, http.StatusOK, s)
}
