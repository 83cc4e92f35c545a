package services

import (
	"context"
	"encoding/xml"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/tbourn/goldrate-backend/internal/changefeed"
	"github.com/tbourn/goldrate-backend/internal/cities"
	"github.com/tbourn/goldrate-backend/internal/domain"
	"github.com/tbourn/goldrate-backend/internal/repo"
)

func newSiteFiles(t *testing.T) (*SiteFilesService, context.Context) {
	t.Helper()
	cat, err := cities.Parse([]byte(`
static_pages:
  - {path: /, priority: 1.0, changefreq: daily}
  - {path: /about, priority: 0.5, changefreq: monthly}
districts: [Chennai, Madurai]
`))
	if err != nil {
		t.Fatalf("catalogue: %v", err)
	}
	s := NewSiteFilesService(newSvcDB(t), cat, changefeed.New(), site, "Chennai Gold Price", 2)
	s.Now = fixedNow
	return s, context.Background()
}

func seedContent(t *testing.T, s *SiteFilesService) {
	t.Helper()
	ctx := context.Background()
	seedQuote(t, s.DB, "2025-01-15", 10632, 11598)
	for i, slug := range []string{"chennai-gold-rate-2025-01-15", "chennai-gold-rate-2025-01-14", "chennai-gold-rate-2025-01-13"} {
		at := fixedNow().Add(-time.Duration(i) * 24 * time.Hour)
		if _, err := repo.UpsertBlogPost(ctx, s.DB, &domain.BlogPost{
			Title: "Post " + slug, Slug: slug, City: "Chennai",
			Content:        "<h2>Rates</h2><p>Gold <b>rose</b> and steadied in Chennai.</p>",
			SEODescription: "Rates for " + slug,
			Published:      true, PublishedAt: &at,
		}); err != nil {
			t.Fatalf("seed post: %v", err)
		}
	}
	if err := repo.CreateArticle(ctx, s.DB, &domain.Article{Title: "Guide", Slug: "guide", Content: "<p>g</p>", Published: true, PublishedAt: ptrTime(fixedNow())}); err != nil {
		t.Fatalf("seed article: %v", err)
	}
	if err := repo.CreateArticle(ctx, s.DB, &domain.Article{Title: "Draft", Slug: "draft", Content: "<p>d</p>"}); err != nil {
		t.Fatalf("seed draft: %v", err)
	}
}

func ptrTime(t time.Time) *time.Time { return &t }

func TestSiteFiles_RegenerateAllStoresEveryFile(t *testing.T) {
	s, ctx := newSiteFiles(t)
	seen := collect(s.Feed, changefeed.TableSiteFile)

	if _, err := s.Get(ctx, FileSitemap); !errors.Is(err, ErrUnknownSiteFile) {
		t.Fatalf("expected ErrUnknownSiteFile before generation, got %v", err)
	}
	seedContent(t, s)
	if err := s.RegenerateAll(ctx); err != nil {
		t.Fatalf("RegenerateAll: %v", err)
	}
	for _, name := range SiteFileNames() {
		f, err := s.Get(ctx, name)
		if err != nil || f.Content == "" || f.ContentType == "" {
			t.Fatalf("%s not stored: %+v, %v", name, f, err)
		}
	}
	if len(*seen) != 4 {
		t.Fatalf("expected 4 change notifications, got %d", len(*seen))
	}
	if _, err := s.Get(ctx, "secrets.txt"); !errors.Is(err, ErrUnknownSiteFile) {
		t.Fatalf("unknown names must be rejected, got %v", err)
	}

	// regeneration replaces rows rather than adding new ones
	if err := s.RegenerateAll(ctx); err != nil {
		t.Fatalf("second RegenerateAll: %v", err)
	}
	var n int64
	s.DB.Model(&domain.SiteFile{}).Count(&n)
	if n != 4 {
		t.Fatalf("expected 4 rows, got %d", n)
	}
}

func TestSiteFiles_Sitemap(t *testing.T) {
	s, ctx := newSiteFiles(t)
	seedContent(t, s)
	out, err := s.BuildSitemap(ctx)
	if err != nil {
		t.Fatalf("BuildSitemap: %v", err)
	}
	var set urlSet
	if err := xml.Unmarshal([]byte(out), &set); err != nil {
		t.Fatalf("sitemap is not valid XML: %v", err)
	}
	byLoc := map[string]sitemapURL{}
	for _, u := range set.URLs {
		byLoc[u.Loc] = u
	}
	// 2 static + 2 districts + 3 posts + 1 published article
	if len(set.URLs) != 8 {
		t.Fatalf("expected 8 urls, got %d", len(set.URLs))
	}
	home := byLoc[site+"/"]
	if home.Priority != "1.0" || home.ChangeFreq != "daily" || home.LastMod != "2025-01-15" {
		t.Fatalf("home = %+v", home)
	}
	if d := byLoc[site+"/gold-rate/madurai"]; d.Priority != "0.8" || d.ChangeFreq != "daily" {
		t.Fatalf("district = %+v", d)
	}
	if p := byLoc[site+"/blog/chennai-gold-rate-2025-01-14"]; p.Priority != "0.6" || p.ChangeFreq != "weekly" || p.LastMod == "" {
		t.Fatalf("post = %+v", p)
	}
	if _, ok := byLoc[site+"/articles/guide"]; !ok {
		t.Fatalf("published article missing")
	}
	if _, ok := byLoc[site+"/articles/draft"]; ok {
		t.Fatalf("draft article must not be listed")
	}
}

func TestSiteFiles_Robots(t *testing.T) {
	s, _ := newSiteFiles(t)
	want := "User-agent: *\nAllow: /\nDisallow: /admin/\nDisallow: /api/\n\nSitemap: https://chennaigoldprice.com/sitemap.xml\n"
	if got := s.BuildRobots(); got != want {
		t.Fatalf("robots =\n%s", got)
	}
}

func TestSiteFiles_RSSParses(t *testing.T) {
	s, ctx := newSiteFiles(t)
	seedContent(t, s)
	out, err := s.BuildRSS(ctx)
	if err != nil {
		t.Fatalf("BuildRSS: %v", err)
	}
	feed, err := gofeed.NewParser().ParseString(out)
	if err != nil {
		t.Fatalf("rss does not parse: %v", err)
	}
	if feed.FeedType != "rss" || feed.FeedVersion != "2.0" || feed.Title != "Chennai Gold Price" {
		t.Fatalf("feed header = %s %s %q", feed.FeedType, feed.FeedVersion, feed.Title)
	}
	if len(feed.Items) != 2 { // RSSLimit
		t.Fatalf("expected 2 items, got %d", len(feed.Items))
	}
	it := feed.Items[0]
	if it.Link != site+"/blog/chennai-gold-rate-2025-01-15" || it.GUID != it.Link || it.PublishedParsed == nil {
		t.Fatalf("item = %+v", it)
	}
	if it.Description != "Rates for chennai-gold-rate-2025-01-15" {
		t.Fatalf("description = %q", it.Description)
	}
}

func TestSiteFiles_LLMs(t *testing.T) {
	s, ctx := newSiteFiles(t)
	empty, err := s.BuildLLMs(ctx)
	if err != nil || !strings.Contains(empty, "No rates published yet.") || !strings.Contains(empty, "No posts yet.") {
		t.Fatalf("empty llms.txt = %q, %v", empty, err)
	}

	seedContent(t, s)
	out, err := s.BuildLLMs(ctx)
	if err != nil {
		t.Fatalf("BuildLLMs: %v", err)
	}
	for _, want := range []string{
		"# Chennai Gold Price",
		"- 22K: ₹10632.00 per gram (₹85056.00 per 8 grams)",
		"- [Madurai gold rate](https://chennaigoldprice.com/gold-rate/madurai)",
		"](https://chennaigoldprice.com/blog/chennai-gold-rate-2025-01-15): Gold **rose** and steadied in Chennai. (7 words)",
		"- Sitemap: https://chennaigoldprice.com/sitemap.xml",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("llms.txt missing %q:\n%s", want, out)
		}
	}
}
