// Package indexing notifies a search engine's indexing API that a URL was
// added or updated. Without a credential the client runs in queue-only mode:
// nothing is sent and the caller is told so.
package indexing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tbourn/goldrate-backend/internal/config"
)

// ErrUpstream wraps every transport or non-2xx failure.
var ErrUpstream = errors.New("indexing upstream error")

// QueueOnlyMessage is recorded on entries processed without credentials.
const QueueOnlyMessage = "Credentials not configured - URL added to queue only"

// Result is the outcome of one notification.
type Result struct {
	Success   bool
	QueueOnly bool
	Message   string
}

// Notifier submits a URL for (re)indexing.
type Notifier interface {
	Notify(ctx context.Context, url string) (Result, error)
}

// Client is the HTTP Notifier.
type Client struct {
	endpoint string
	token    string
	http     *http.Client
}

// NewClient builds a Client from cfg.
func NewClient(cfg config.IndexingConfig) *Client {
	return &Client{
		endpoint: cfg.Endpoint,
		token:    strings.TrimSpace(cfg.Token),
		http:     &http.Client{Timeout: 30 * time.Second},
	}
}

// Configured reports whether a credential is present.
func (c *Client) Configured() bool { return c.token != "" }

type notification struct {
	URL  string `json:"url"`
	Type string `json:"type"`
}

// Notify posts {"url", "type":"URL_UPDATED"} with the bearer credential.
func (c *Client) Notify(ctx context.Context, url string) (Result, error) {
	if !c.Configured() {
		return Result{Success: true, QueueOnly: true, Message: QueueOnlyMessage}, nil
	}

	body, _ := json.Marshal(notification{URL: url, Type: "URL_UPDATED"})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return Result{}, fmt.Errorf("%w: status %d: %s", ErrUpstream, resp.StatusCode, strings.TrimSpace(string(b)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return Result{Success: true, Message: fmt.Sprintf("submitted (%d)", resp.StatusCode)}, nil
}
