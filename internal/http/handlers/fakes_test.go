package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/goldrate-backend/internal/domain"
	"github.com/tbourn/goldrate-backend/internal/search"
	"github.com/tbourn/goldrate-backend/internal/services"
)

func init() { gin.SetMode(gin.TestMode) }

// ---- prices ----

type fakePrices struct {
	quotes   map[string]domain.PriceQuote
	latest   *domain.PriceQuote
	err      error // returned by every read
	statsErr error
	upserts  int
}

func (f *fakePrices) Upsert(_ context.Context, date string, p22, p24 float64) (*domain.PriceQuote, error) {
	if p22 <= 0 || p24 <= 0 {
		return nil, services.ErrInvalidPrice
	}
	if _, err := time.Parse(domain.DateLayout, date); err != nil {
		return nil, services.ErrInvalidDate
	}
	f.upserts++
	q := domain.PriceQuote{Date: date, Price22K: p22, Price24K: p24}
	if f.quotes == nil {
		f.quotes = map[string]domain.PriceQuote{}
	}
	f.quotes[date] = q
	return &q, nil
}

func (f *fakePrices) Latest(context.Context) (*domain.PriceQuote, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.latest == nil {
		return nil, services.ErrQuoteNotFound
	}
	return f.latest, nil
}

func (f *fakePrices) Get(_ context.Context, date string) (*domain.PriceQuote, error) {
	if _, err := time.Parse(domain.DateLayout, date); err != nil {
		return nil, services.ErrInvalidDate
	}
	if f.err != nil {
		return nil, f.err
	}
	q, ok := f.quotes[date]
	if !ok {
		return nil, services.ErrQuoteNotFound
	}
	return &q, nil
}

func (f *fakePrices) LastN(_ context.Context, n int) ([]domain.PriceQuote, error) {
	if f.err != nil {
		return nil, f.err
	}
	out := []domain.PriceQuote{}
	for _, q := range f.quotes {
		out = append(out, q)
	}
	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (f *fakePrices) View(_ context.Context, q domain.PriceQuote) services.PriceView {
	return services.PriceView{PriceQuote: q, Sovereign22K: q.Price22K * 8, Sovereign24K: q.Price24K * 8}
}

func (f *fakePrices) Views(ctx context.Context, qs []domain.PriceQuote) []services.PriceView {
	out := make([]services.PriceView, 0, len(qs))
	for _, q := range qs {
		out = append(out, f.View(ctx, q))
	}
	return out
}

func (f *fakePrices) Stats(context.Context) (int64, *time.Time, error) {
	if f.statsErr != nil {
		return 0, nil, f.statsErr
	}
	ts := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	return int64(len(f.quotes)), &ts, nil
}

// ---- content ----

type fakeContent struct {
	posts    []domain.BlogPost
	articles map[string]*domain.Article // by id
	err      error
	lastK    int
	lastCity string
}

func (f *fakeContent) CreateArticle(_ context.Context, in services.ArticleInput) (*domain.Article, error) {
	if strings.TrimSpace(in.Title) == "" || strings.TrimSpace(in.Content) == "" {
		return nil, services.ErrInvalidContent
	}
	slug := in.Slug
	if slug == "" {
		slug = services.Slugify(in.Title)
	}
	for _, a := range f.articles {
		if a.Slug == slug {
			return nil, services.ErrDuplicateSlug
		}
	}
	a := &domain.Article{ID: "a-" + slug, Title: in.Title, Slug: slug, Content: in.Content}
	if f.articles == nil {
		f.articles = map[string]*domain.Article{}
	}
	f.articles[a.ID] = a
	return a, nil
}

func (f *fakeContent) UpdateArticle(_ context.Context, id string, in services.ArticleInput) (*domain.Article, error) {
	a, ok := f.articles[id]
	if !ok {
		return nil, services.ErrContentNotFound
	}
	a.Title, a.Content = in.Title, in.Content
	return a, nil
}

func (f *fakeContent) DeleteArticle(_ context.Context, id string) error {
	if _, ok := f.articles[id]; !ok {
		return services.ErrContentNotFound
	}
	delete(f.articles, id)
	return nil
}

func (f *fakeContent) SetPublished(_ context.Context, id string, published bool) (*domain.Article, error) {
	a, ok := f.articles[id]
	if !ok {
		return nil, services.ErrContentNotFound
	}
	a.Published = published
	return a, nil
}

func (f *fakeContent) Article(_ context.Context, slug string) (*domain.Article, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, a := range f.articles {
		if a.Slug == slug && a.Published {
			return a, nil
		}
	}
	return nil, services.ErrContentNotFound
}

func (f *fakeContent) ArticleByID(_ context.Context, id string) (*domain.Article, error) {
	a, ok := f.articles[id]
	if !ok {
		return nil, services.ErrContentNotFound
	}
	return a, nil
}

func (f *fakeContent) ListArticles(context.Context, int, int) ([]domain.Article, int64, error) {
	if f.err != nil {
		return nil, 0, f.err
	}
	out := []domain.Article{}
	for _, a := range f.articles {
		if a.Published {
			out = append(out, *a)
		}
	}
	return out, int64(len(out)), nil
}

func (f *fakeContent) Post(_ context.Context, slug string) (*domain.BlogPost, error) {
	if f.err != nil {
		return nil, f.err
	}
	for i := range f.posts {
		if f.posts[i].Slug == slug {
			return &f.posts[i], nil
		}
	}
	return nil, services.ErrContentNotFound
}

func (f *fakeContent) ListPosts(_ context.Context, city string, page, pageSize int) ([]domain.BlogPost, int64, error) {
	f.lastCity = city
	if f.err != nil {
		return nil, 0, f.err
	}
	out := []domain.BlogPost{}
	for _, p := range f.posts {
		if city == "" || strings.EqualFold(p.City, city) {
			out = append(out, p)
		}
	}
	total := int64(len(out))
	start := (page - 1) * pageSize
	if start >= len(out) {
		return []domain.BlogPost{}, total, nil
	}
	end := start + pageSize
	if end > len(out) {
		end = len(out)
	}
	return out[start:end], total, nil
}

func (f *fakeContent) DeletePost(_ context.Context, slug string) error {
	for i := range f.posts {
		if f.posts[i].Slug == slug {
			f.posts = append(f.posts[:i], f.posts[i+1:]...)
			return nil
		}
	}
	return services.ErrContentNotFound
}

func (f *fakeContent) PostStats(context.Context) (int64, *time.Time, error) {
	ts := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	return int64(len(f.posts)), &ts, nil
}

func (f *fakeContent) RelatedPosts(ctx context.Context, slug string, k int) ([]domain.BlogPost, error) {
	f.lastK = k
	if _, err := f.Post(ctx, slug); err != nil {
		return nil, err
	}
	out := []domain.BlogPost{}
	for _, p := range f.posts {
		if p.Slug != slug && len(out) < k {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeContent) RelatedArticles(ctx context.Context, slug string, k int) ([]domain.Article, error) {
	f.lastK = k
	if _, err := f.Article(ctx, slug); err != nil {
		return nil, err
	}
	return []domain.Article{}, nil
}

func (f *fakeContent) Search(_ context.Context, q string, k int) ([]search.Result, error) {
	f.lastK = k
	if f.err != nil {
		return nil, f.err
	}
	if q == "" {
		return []search.Result{}, nil
	}
	out := []search.Result{}
	for _, p := range f.posts {
		if strings.Contains(strings.ToLower(p.Title), strings.ToLower(q)) {
			out = append(out, search.Result{ID: p.ID, Kind: "post", Slug: p.Slug, Title: p.Title, Score: 1})
		}
	}
	return out, nil
}

// ---- indexing ----

type fakeIndexing struct {
	entries  map[string]*domain.IndexingQueueEntry
	drained  int
	drainErr error
}

func (f *fakeIndexing) Enqueue(_ context.Context, u string) (*domain.IndexingQueueEntry, error) {
	if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		return nil, services.ErrInvalidURL
	}
	e := &domain.IndexingQueueEntry{ID: "e-" + u[strings.LastIndex(u, "/")+1:], URL: u, Status: domain.IndexPending}
	if f.entries == nil {
		f.entries = map[string]*domain.IndexingQueueEntry{}
	}
	f.entries[e.ID] = e
	return e, nil
}

func (f *fakeIndexing) Process(_ context.Context, id string) (services.Outcome, error) {
	e, ok := f.entries[id]
	if !ok {
		return services.Outcome{}, services.ErrEntryNotFound
	}
	e.Status = domain.IndexFailed
	return services.Outcome{EntryID: id, URL: e.URL, Status: e.Status, Message: "upstream returned 503"}, nil
}

func (f *fakeIndexing) ProcessAll(context.Context) (services.Summary, error) {
	f.drained++
	if f.drainErr != nil {
		return services.Summary{}, f.drainErr
	}
	return services.Summary{Attempted: len(f.entries), Completed: len(f.entries), Outcomes: []services.Outcome{}}, nil
}

func (f *fakeIndexing) List(_ context.Context, status string, _, _ int) ([]domain.IndexingQueueEntry, int64, error) {
	out := []domain.IndexingQueueEntry{}
	for _, e := range f.entries {
		if status == "" || e.Status == status {
			out = append(out, *e)
		}
	}
	return out, int64(len(out)), nil
}

func (f *fakeIndexing) Get(_ context.Context, id string) (*domain.IndexingQueueEntry, error) {
	e, ok := f.entries[id]
	if !ok {
		return nil, services.ErrEntryNotFound
	}
	return e, nil
}

// ---- publish ----

type fakePublish struct {
	calls     int
	err       error
	dailyRep  services.DailyReport
	dailyErr  error
	lastDaily []string
}

func (f *fakePublish) PublishForDate(_ context.Context, city, date string) (*services.PublishResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if date == "" {
		date = "2025-01-15"
	}
	slug := services.PostSlug(city, date)
	return &services.PublishResult{
		Post: &domain.BlogPost{ID: "p-" + slug, Slug: slug, City: city, Published: true},
		URL:  services.PostURL(testSite, slug),
	}, nil
}

func (f *fakePublish) PublishDaily(_ context.Context, names []string) (services.DailyReport, error) {
	f.lastDaily = names
	return f.dailyRep, f.dailyErr
}

// ---- site files + ads ----

type fakeFiles struct {
	files map[string]domain.SiteFile
	err   error
	regen int
}

func (f *fakeFiles) Get(_ context.Context, name string) (*domain.SiteFile, error) {
	sf, ok := f.files[name]
	if !ok {
		return nil, services.ErrUnknownSiteFile
	}
	return &sf, nil
}

func (f *fakeFiles) RegenerateAll(context.Context) error {
	f.regen++
	return f.err
}

type fakeAds struct {
	slots map[string]*domain.AdSlot
}

func (f *fakeAds) RecordImpression(_ context.Context, id string) error {
	s, ok := f.slots[id]
	if !ok {
		return services.ErrAdNotFound
	}
	s.Impressions++
	return nil
}

func (f *fakeAds) RecordClick(_ context.Context, id string) error {
	s, ok := f.slots[id]
	if !ok {
		return services.ErrAdNotFound
	}
	s.Clicks++
	return nil
}

func (f *fakeAds) Slot(_ context.Context, id string) (*domain.AdSlot, error) {
	s, ok := f.slots[id]
	if !ok {
		return nil, services.ErrAdNotFound
	}
	return s, nil
}

// ---- idempotency ----

type memIdem struct {
	mu   sync.Mutex
	recs map[string]domain.Idempotency
}

func (m *memIdem) Get(_ context.Context, scope, key string, now time.Time) (*domain.Idempotency, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recs[scope+"|"+key]
	if !ok || !rec.ExpiresAt.After(now) {
		return nil, services.ErrContentNotFound
	}
	return &rec, nil
}

func (m *memIdem) Save(_ context.Context, scope, key, resourceID string, status int, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.recs == nil {
		m.recs = map[string]domain.Idempotency{}
	}
	m.recs[scope+"|"+key] = domain.Idempotency{Scope: scope, Key: key, ResourceID: resourceID, Status: status, ExpiresAt: time.Now().Add(ttl)}
	return nil
}

// ---- helpers ----

const testSite = "https://chennaigoldprice.com"

func do(t *testing.T, r http.Handler, method, path, body string, hdr ...string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(hdr); i += 2 {
		req.Header.Set(hdr[i], hdr[i+1])
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %T: %v (body=%s)", v, err, w.Body.String())
	}
	return v
}

func expectError(t *testing.T, w *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	if w.Code != status {
		t.Fatalf("status=%d; want %d (body=%s)", w.Code, status, w.Body.String())
	}
	if er := decode[ErrorResponse](t, w); er.Code != code {
		t.Fatalf("code=%q; want %q", er.Code, code)
	}
}
