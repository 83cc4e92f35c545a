package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/goldrate-backend/internal/ai"
	"github.com/tbourn/goldrate-backend/internal/changefeed"
	"github.com/tbourn/goldrate-backend/internal/config"
	"github.com/tbourn/goldrate-backend/internal/domain"
	"github.com/tbourn/goldrate-backend/internal/indexing"
	"github.com/tbourn/goldrate-backend/internal/repo"
)

// ---------- test helpers ----------

func newSvcDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func fixedNow() time.Time { return time.Date(2025, 1, 15, 1, 0, 0, 0, time.UTC) }

func seedQuote(t *testing.T, db *gorm.DB, date string, p22, p24 float64) {
	t.Helper()
	if _, err := repo.UpsertQuote(context.Background(), db, date, p22, p24); err != nil {
		t.Fatalf("seed quote: %v", err)
	}
}

// fakeGenerator returns a canned post, or err when set.
type fakeGenerator struct {
	mu    sync.Mutex
	err   error
	calls []ai.PostRequest
	// failCity makes only that city fail.
	failCity string
}

func (f *fakeGenerator) GeneratePost(_ context.Context, r ai.PostRequest) (ai.GeneratedPost, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, r)
	if f.err != nil && (f.failCity == "" || f.failCity == r.City) {
		return ai.GeneratedPost{}, f.err
	}
	return ai.GeneratedPost{
		Title:          r.City + " Gold Rate Today " + r.Date,
		SEOTitle:       r.City + " gold rate " + r.Date,
		SEODescription: "22K and 24K gold prices in " + r.City,
		SEOKeywords:    r.City + " gold rate, 22k gold, 24k gold",
		Excerpt:        "Gold prices in " + r.City + " today.",
		Content:        "<h2>Today</h2><p>22 carat gold in " + r.City + " is quoted per gram.</p>",
	}, nil
}

// fakeNotifier answers from a per-URL error table.
type fakeNotifier struct {
	mu        sync.Mutex
	queueOnly bool
	failURLs  map[string]error
	panicURL  string
	sent      []string
}

func (f *fakeNotifier) Notify(_ context.Context, url string) (indexing.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.queueOnly {
		return indexing.Result{Success: true, QueueOnly: true, Message: indexing.QueueOnlyMessage}, nil
	}
	if url == f.panicURL {
		panic("notifier exploded")
	}
	f.sent = append(f.sent, url)
	if err := f.failURLs[url]; err != nil {
		return indexing.Result{}, err
	}
	return indexing.Result{Success: true, Message: "submitted (200)"}, nil
}

// fakeEnqueuer records URLs or fails.
type fakeEnqueuer struct {
	urls []string
	err  error
}

func (f *fakeEnqueuer) Enqueue(_ context.Context, url string) (*domain.IndexingQueueEntry, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.urls = append(f.urls, url)
	return &domain.IndexingQueueEntry{ID: uuid.NewString(), URL: url, Status: domain.IndexPending}, nil
}

type fakeRegenerator struct {
	calls int
	err   error
}

func (f *fakeRegenerator) RegenerateAll(context.Context) error {
	f.calls++
	return f.err
}

func collect(feed *changefeed.Broker, table string) *[]changefeed.Change {
	var got []changefeed.Change
	feed.Subscribe(table, nil, func(c changefeed.Change) { got = append(got, c) })
	return &got
}

func indexingConfigNoToken() config.IndexingConfig {
	return config.IndexingConfig{Endpoint: "http://127.0.0.1:1/publish"}
}
