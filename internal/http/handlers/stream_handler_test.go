package handlers

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/goldrate-backend/internal/changefeed"
)

func TestStream_UnknownTable(t *testing.T) {
	h := New(Deps{Feed: changefeed.New()}, Options{})
	r := gin.New()
	r.GET("/stream/:table", h.Stream)
	expectError(t, do(t, r, http.MethodGet, "/stream/users", ""), http.StatusNotFound, ErrCodeUnknownStream)
}

func TestStream_EmitsRefreshPerChange(t *testing.T) {
	feed := changefeed.New()
	h := New(Deps{Feed: feed}, Options{Heartbeat: time.Hour})
	r := gin.New()
	r.GET("/stream/:table", h.Stream)
	srv := httptest.NewServer(r)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/stream/"+changefeed.TablePrices, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/event-stream") {
		t.Fatalf("content-type=%q", ct)
	}

	lines := bufio.NewScanner(resp.Body)
	next := func(prefix string) string {
		t.Helper()
		for lines.Scan() {
			if l := lines.Text(); strings.HasPrefix(l, prefix) {
				return l
			}
		}
		t.Fatalf("stream ended before %q: %v", prefix, lines.Err())
		return ""
	}

	if l := next("event:"); l != "event:ready" {
		t.Fatalf("first event %q", l)
	}
	// the subscription is live once ready was sent
	feed.Publish(changefeed.Change{Table: changefeed.TablePosts, Op: changefeed.OpUpsert, Key: "ignored"})
	feed.Publish(changefeed.Change{Table: changefeed.TablePrices, Op: changefeed.OpUpsert, Key: "2025-01-15"})

	if l := next("event:"); l != "event:refresh" {
		t.Fatalf("event %q; want refresh", l)
	}
	data := next("data:")
	if !strings.Contains(data, `"table":"gold_prices"`) || !strings.Contains(data, `"key":"2025-01-15"`) {
		t.Fatalf("refresh data %q", data)
	}

	cancel()
	deadline := time.Now().Add(2 * time.Second)
	for feed.Subscribers(changefeed.TablePrices) != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("subscription not released after disconnect")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
