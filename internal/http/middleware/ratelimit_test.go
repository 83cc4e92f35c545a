package middleware

import (
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestKeyByIP(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.RemoteAddr = net.JoinHostPort("203.0.113.9", "1234")

	if got := KeyByIP()(c); got != "ip:203.0.113.9" {
		t.Fatalf("anonymous key = %q", got)
	}
	c.Set(ctxKeyAdmin, true)
	if got := KeyByIP()(c); got != "admin:203.0.113.9" {
		t.Fatalf("admin key = %q", got)
	}
}

func TestRateLimiter_LimiterReuseAndSweep(t *testing.T) {
	rl := NewRateLimiter(1, 0, nil)
	if rl.burst != 1 {
		t.Fatalf("burst not coerced: %d", rl.burst)
	}
	now := time.Now()
	a := rl.limiterFor("k", now)
	if rl.limiterFor("k", now) != a {
		t.Fatalf("expected same bucket")
	}

	rl.ttl = time.Minute
	rl.sweepAt = 1
	later := now.Add(2 * time.Minute)
	if rl.limiterFor("k", later) == a {
		t.Fatalf("idle bucket should have been evicted")
	}
}

func TestRateLimiter_HandlerLimitsAndBypasses(t *testing.T) {
	rl := NewRateLimiter(0.5, 1, KeyByIP()).Skip(func(c *gin.Context) bool {
		return c.FullPath() == "/stream/:table"
	})
	r := gin.New()
	r.Use(RequestID())
	r.Use(func(c *gin.Context) {
		if c.GetHeader("X-Replay") == "1" {
			c.Set(ctxKeyRateBypass, true)
		}
		c.Next()
	})
	r.Use(rl.Handler())
	r.POST("/ads/:id/click", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/stream/:table", func(c *gin.Context) { c.Status(http.StatusOK) })

	if w := do(r, http.MethodPost, "/ads/header/click", nil); w.Code != http.StatusNoContent {
		t.Fatalf("first request: %d", w.Code)
	}
	w := do(r, http.MethodPost, "/ads/header/click", nil)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: %d", w.Code)
	}
	if w.Header().Get("Retry-After") != "2" || envelope(t, w)["code"] != "too_many_requests" {
		t.Fatalf("429 shape: %v %s", w.Header(), w.Body.String())
	}
	if w := do(r, http.MethodPost, "/ads/header/click", map[string]string{"X-Replay": "1"}); w.Code != http.StatusNoContent {
		t.Fatalf("replay should bypass: %d", w.Code)
	}
	for i := 0; i < 3; i++ {
		if w := do(r, http.MethodGet, "/stream/gold_prices", nil); w.Code != http.StatusOK {
			t.Fatalf("skipped route limited: %d", w.Code)
		}
	}
}
