package middleware

import (
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_CountsByRouteTemplate(t *testing.T) {
	r := gin.New()
	r.Use(Metrics())
	r.GET("/posts/:slug", func(c *gin.Context) { c.String(http.StatusOK, "post") })

	basePost := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/posts/:slug", "200"))
	baseMiss := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "unmatched", "404"))

	do(r, http.MethodGet, "/posts/chennai-gold-rate-2025-01-15", nil)
	do(r, http.MethodGet, "/posts/madurai-gold-rate-2025-01-15", nil)
	do(r, http.MethodGet, "/wp-login.php", nil)

	if got := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/posts/:slug", "200")); got != basePost+2 {
		t.Fatalf("route counter = %v; want %v", got, basePost+2)
	}
	if got := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "unmatched", "404")); got != baseMiss+1 {
		t.Fatalf("unmatched counter = %v; want %v", got, baseMiss+1)
	}
	if got := testutil.ToFloat64(httpInflight); got != 0 {
		t.Fatalf("inflight = %v", got)
	}
}
