// Package services – SiteFilesService
//
// SiteFilesService regenerates the four crawler-facing artifacts and stores
// each as one row in site_files. They are rebuilt wholesale from the store
// and served verbatim, never computed per request.
package services

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/goldrate-backend/internal/changefeed"
	"github.com/tbourn/goldrate-backend/internal/cities"
	"github.com/tbourn/goldrate-backend/internal/domain"
	"github.com/tbourn/goldrate-backend/internal/observability"
	"github.com/tbourn/goldrate-backend/internal/repo"
)

// Stored artifact names.
const (
	FileSitemap = "sitemap.xml"
	FileRobots  = "robots.txt"
	FileRSS     = "rss.xml"
	FileLLMs    = "llms.txt"
)

var siteFileTypes = map[string]string{
	FileSitemap: "application/xml; charset=utf-8",
	FileRobots:  "text/plain; charset=utf-8",
	FileRSS:     "application/rss+xml; charset=utf-8",
	FileLLMs:    "text/plain; charset=utf-8",
}

// SiteFileNames lists the artifacts in generation order.
func SiteFileNames() []string {
	return []string{FileSitemap, FileRobots, FileRSS, FileLLMs}
}

// SiteFilesService builds and stores the site artifacts.
type SiteFilesService struct {
	DB       *gorm.DB
	Cities   *cities.Catalogue
	Feed     *changefeed.Broker
	SiteURL  string
	SiteName string
	RSSLimit int

	Now func() time.Time

	md *md.Converter
}

// NewSiteFilesService constructs a SiteFilesService.
func NewSiteFilesService(db *gorm.DB, cat *cities.Catalogue, feed *changefeed.Broker, siteURL, siteName string, rssLimit int) *SiteFilesService {
	if cat == nil {
		cat = cities.Default()
	}
	if rssLimit <= 0 {
		rssLimit = 20
	}
	return &SiteFilesService{
		DB:       db,
		Cities:   cat,
		Feed:     feed,
		SiteURL:  strings.TrimRight(siteURL, "/"),
		SiteName: siteName,
		RSSLimit: rssLimit,
		Now:      time.Now,
		md:       md.NewConverter("", true, nil),
	}
}

// Get returns a stored artifact.
func (s *SiteFilesService) Get(ctx context.Context, name string) (*domain.SiteFile, error) {
	if _, ok := siteFileTypes[name]; !ok {
		return nil, ErrUnknownSiteFile
	}
	f, err := repo.GetSiteFile(ctx, s.DB, name)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrUnknownSiteFile
	}
	return f, err
}

// RegenerateAll rebuilds and stores every artifact. Files already written
// before a failure are kept.
func (s *SiteFilesService) RegenerateAll(ctx context.Context) error {
	ctx, span := observability.StartSpan(ctx, "services/SiteFilesService", "RegenerateAll")
	var err error
	defer func() { observability.EndSpan(span, err) }()

	builders := map[string]func(context.Context) (string, error){
		FileSitemap: s.BuildSitemap,
		FileRobots:  func(context.Context) (string, error) { return s.BuildRobots(), nil },
		FileRSS:     s.BuildRSS,
		FileLLMs:    s.BuildLLMs,
	}
	for _, name := range SiteFileNames() {
		body, berr := builders[name](ctx)
		if berr != nil {
			err = fmt.Errorf("build %s: %w", name, berr)
			observability.ObserveSiteFiles(observability.ResultFailure)
			return err
		}
		if err = repo.PutSiteFile(ctx, s.DB, name, siteFileTypes[name], body); err != nil {
			observability.ObserveSiteFiles(observability.ResultFailure)
			return err
		}
		s.Feed.Publish(changefeed.Change{Table: changefeed.TableSiteFile, Op: changefeed.OpUpsert, Key: name})
	}
	observability.ObserveSiteFiles(observability.ResultSuccess)
	log.Info().Msg("sitefiles: regenerated")
	return nil
}

// ---- sitemap.xml ----

type urlSet struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc        string `xml:"loc"`
	LastMod    string `xml:"lastmod,omitempty"`
	ChangeFreq string `xml:"changefreq"`
	Priority   string `xml:"priority"`
}

// BuildSitemap lists static pages, district pages, and every published post
// and article.
func (s *SiteFilesService) BuildSitemap(ctx context.Context) (string, error) {
	today := s.now().UTC().Format(domain.DateLayout)
	rateDay := today
	if q, err := repo.LatestQuote(ctx, s.DB); err == nil {
		rateDay = q.Date
	} else if !errors.Is(err, repo.ErrNotFound) {
		return "", err
	}

	set := urlSet{XMLNS: "http://www.sitemaps.org/schemas/sitemap/0.9"}
	for _, p := range s.Cities.StaticPages() {
		lastmod := ""
		if p.ChangeFreq == "daily" {
			lastmod = rateDay
		}
		set.URLs = append(set.URLs, sitemapURL{
			Loc:        s.abs(p.Path),
			LastMod:    lastmod,
			ChangeFreq: p.ChangeFreq,
			Priority:   fmt.Sprintf("%.1f", p.Priority),
		})
	}
	for _, d := range s.Cities.Districts() {
		set.URLs = append(set.URLs, sitemapURL{
			Loc:        s.abs("/gold-rate/" + d.Slug),
			LastMod:    rateDay,
			ChangeFreq: "daily",
			Priority:   "0.8",
		})
	}

	posts, err := repo.ListPublishedPosts(ctx, s.DB, "", 0, 0)
	if err != nil {
		return "", err
	}
	for _, p := range posts {
		set.URLs = append(set.URLs, sitemapURL{
			Loc:        PostURL(s.SiteURL, p.Slug),
			LastMod:    p.UpdatedAt.UTC().Format(domain.DateLayout),
			ChangeFreq: "weekly",
			Priority:   "0.6",
		})
	}
	arts, err := repo.ListPublishedArticles(ctx, s.DB, 0, 0)
	if err != nil {
		return "", err
	}
	for _, a := range arts {
		set.URLs = append(set.URLs, sitemapURL{
			Loc:        s.abs("/articles/" + a.Slug),
			LastMod:    a.UpdatedAt.UTC().Format(domain.DateLayout),
			ChangeFreq: "weekly",
			Priority:   "0.6",
		})
	}
	return marshalXML(set)
}

// ---- robots.txt ----

// BuildRobots returns the static robots policy.
func (s *SiteFilesService) BuildRobots() string {
	var b strings.Builder
	b.WriteString("User-agent: *\n")
	b.WriteString("Allow: /\n")
	b.WriteString("Disallow: /admin/\n")
	b.WriteString("Disallow: /api/\n")
	b.WriteString("\n")
	b.WriteString("Sitemap: " + s.SiteURL + "/sitemap.xml\n")
	return b.String()
}

// ---- rss.xml ----

type rssDoc struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Atom    string     `xml:"xmlns:atom,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title         string    `xml:"title"`
	Link          string    `xml:"link"`
	Description   string    `xml:"description"`
	Language      string    `xml:"language"`
	LastBuildDate string    `xml:"lastBuildDate"`
	AtomLink      atomLink  `xml:"atom:link"`
	Items         []rssItem `xml:"item"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
	Type string `xml:"type,attr"`
}

type rssItem struct {
	Title       string  `xml:"title"`
	Link        string  `xml:"link"`
	GUID        rssGUID `xml:"guid"`
	Description string  `xml:"description"`
	Category    string  `xml:"category,omitempty"`
	PubDate     string  `xml:"pubDate"`
}

type rssGUID struct {
	Value       string `xml:",chardata"`
	IsPermaLink bool   `xml:"isPermaLink,attr"`
}

// BuildRSS returns an RSS 2.0 channel of the most recent posts.
func (s *SiteFilesService) BuildRSS(ctx context.Context) (string, error) {
	posts, err := repo.ListPublishedPosts(ctx, s.DB, "", 0, s.RSSLimit)
	if err != nil {
		return "", err
	}
	doc := rssDoc{
		Version: "2.0",
		Atom:    "http://www.w3.org/2005/Atom",
		Channel: rssChannel{
			Title:         s.SiteName,
			Link:          s.SiteURL + "/",
			Description:   "Daily 22K and 24K gold rates for Chennai and Tamil Nadu districts.",
			Language:      "en-in",
			LastBuildDate: s.now().UTC().Format(time.RFC1123Z),
			AtomLink:      atomLink{Href: s.SiteURL + "/rss.xml", Rel: "self", Type: "application/rss+xml"},
		},
	}
	for _, p := range posts {
		link := PostURL(s.SiteURL, p.Slug)
		pub := p.CreatedAt
		if p.PublishedAt != nil {
			pub = *p.PublishedAt
		}
		desc := p.SEODescription
		if desc == "" {
			desc = p.Excerpt
		}
		doc.Channel.Items = append(doc.Channel.Items, rssItem{
			Title:       p.Title,
			Link:        link,
			GUID:        rssGUID{Value: link, IsPermaLink: true},
			Description: desc,
			Category:    p.City,
			PubDate:     pub.UTC().Format(time.RFC1123Z),
		})
	}
	return marshalXML(doc)
}

// ---- llms.txt ----

// BuildLLMs returns a markdown summary of the site for language models.
func (s *SiteFilesService) BuildLLMs(ctx context.Context) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", s.SiteName)
	fmt.Fprintf(&b, "> Daily gold rates (22 carat and 24 carat, per gram and per 8 gram sovereign) for Chennai and every Tamil Nadu district, with daily market updates.\n\n")

	b.WriteString("## Latest rates\n\n")
	q, err := repo.LatestQuote(ctx, s.DB)
	switch {
	case err == nil:
		fmt.Fprintf(&b, "- Date: %s\n", q.Date)
		fmt.Fprintf(&b, "- 22K: ₹%.2f per gram (₹%.2f per 8 grams)\n", q.Price22K, q.Price22K*GramsPerSovereign)
		fmt.Fprintf(&b, "- 24K: ₹%.2f per gram (₹%.2f per 8 grams)\n\n", q.Price24K, q.Price24K*GramsPerSovereign)
	case errors.Is(err, repo.ErrNotFound):
		b.WriteString("No rates published yet.\n\n")
	default:
		return "", err
	}

	b.WriteString("## Districts\n\n")
	for _, d := range s.Cities.Districts() {
		fmt.Fprintf(&b, "- [%s gold rate](%s)\n", d.Name, s.abs("/gold-rate/"+d.Slug))
	}
	b.WriteString("\n")

	posts, err := repo.ListPublishedPosts(ctx, s.DB, "", 0, s.RSSLimit)
	if err != nil {
		return "", err
	}
	b.WriteString("## Recent posts\n\n")
	if len(posts) == 0 {
		b.WriteString("No posts yet.\n")
	}
	for _, p := range posts {
		fmt.Fprintf(&b, "- [%s](%s): %s (%d words)\n", p.Title, PostURL(s.SiteURL, p.Slug), s.markdownLead(p), WordCount(p.Content))
	}

	b.WriteString("\n## Feeds\n\n")
	fmt.Fprintf(&b, "- Sitemap: %s/sitemap.xml\n", s.SiteURL)
	fmt.Fprintf(&b, "- RSS: %s/rss.xml\n", s.SiteURL)
	return b.String(), nil
}

// markdownLead converts the post body to markdown and returns its first
// prose block, falling back to the stored excerpt.
func (s *SiteFilesService) markdownLead(p domain.BlogPost) string {
	conv := s.md
	if conv == nil {
		conv = md.NewConverter("", true, nil)
	}
	out, err := conv.ConvertString(p.Content)
	if err == nil {
		for _, block := range strings.Split(out, "\n\n") {
			block = strings.TrimSpace(block)
			if block == "" || strings.HasPrefix(block, "#") || strings.HasPrefix(block, "|") {
				continue
			}
			return clipWords(strings.Join(strings.Fields(block), " "), 280)
		}
	}
	return p.Excerpt
}

func (s *SiteFilesService) abs(path string) string {
	if path == "/" {
		return s.SiteURL + "/"
	}
	return s.SiteURL + path
}

func (s *SiteFilesService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func marshalXML(v any) (string, error) {
	out, err := xml.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return xml.Header + string(out) + "\n", nil
}
