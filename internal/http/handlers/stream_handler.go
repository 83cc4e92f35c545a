// Change stream handler.
//
// GET /stream/{table} holds a server-sent-events connection open and emits a
// `refresh` event for every committed change on the table. Clients re-fetch
// the affected view; events carry no row data beyond the natural key.
package handlers

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/goldrate-backend/internal/changefeed"
	"github.com/tbourn/goldrate-backend/internal/http/middleware"
)

// Buffered changes per client; overflow is dropped.
const streamBuffer = 16

// Stream godoc
// @ID          stream
// @Summary     Follow table changes (SSE)
// @Description Emits `ready` once, then a `refresh` event per change and a `ping` keep-alive.
// @Tags        Stream
// @Produce     text/event-stream
// @Param       table  path  string  true  "Table"  Enums(gold_prices, automated_blog_posts, articles, indexing_queue, site_files)
// @Success     200  {string}  string "event stream"
// @Failure     404  {object}  handlers.ErrorResponse  "Unknown table"
// @Router      /api/v1/stream/{table} [get]
func (h *Handlers) Stream(c *gin.Context) {
	table := c.Param("table")
	if !changefeed.KnownTable(table) {
		fail(c, http.StatusNotFound, ErrCodeUnknownStream, "unknown stream")
		return
	}
	if h.feed == nil {
		fail(c, http.StatusServiceUnavailable, ErrCodeInternal, "streams are disabled")
		return
	}

	events := make(chan changefeed.Change, streamBuffer)
	unsubscribe := h.feed.Subscribe(table, nil, func(ch changefeed.Change) {
		select {
		case events <- ch:
		default:
		}
	})
	defer unsubscribe()

	gauge := middleware.StreamClients.WithLabelValues(table)
	gauge.Inc()
	defer gauge.Dec()

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")
	// The server write timeout would otherwise cut the stream; writers that
	// cannot lift it make clients reconnect instead.
	_ = http.NewResponseController(c.Writer).SetWriteDeadline(time.Time{})
	c.SSEvent("ready", gin.H{"table": table})
	c.Writer.Flush()

	ping := time.NewTicker(h.opts.Heartbeat)
	defer ping.Stop()
	ctx := c.Request.Context()

	c.Stream(func(io.Writer) bool {
		select {
		case <-ctx.Done():
			return false
		case ch := <-events:
			c.SSEvent("refresh", ch)
			return true
		case t := <-ping.C:
			c.SSEvent("ping", t.Unix())
			return true
		}
	})
}
