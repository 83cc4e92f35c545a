// Package services – ContentService
//
// ContentService manages manually written articles and exposes the read side
// of pipeline-generated blog posts: listing, lookup by slug, related items
// and site search. Publishing an article enqueues its canonical URL for
// search-engine indexing; an enqueue failure is logged and does not undo the
// publish.
package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/tbourn/goldrate-backend/internal/changefeed"
	"github.com/tbourn/goldrate-backend/internal/domain"
	"github.com/tbourn/goldrate-backend/internal/observability"
	"github.com/tbourn/goldrate-backend/internal/repo"
	"github.com/tbourn/goldrate-backend/internal/search"
	"github.com/tbourn/goldrate-backend/internal/utils"
)

// Enqueuer adds a URL to the indexing queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, url string) (*domain.IndexingQueueEntry, error)
}

// ArticleInput carries the editable article fields.
type ArticleInput struct {
	Title    string `json:"title"`
	Slug     string `json:"slug,omitempty"`
	Content  string `json:"content"`
	Excerpt  string `json:"excerpt,omitempty"`
	Author   string `json:"author,omitempty"`
	City     string `json:"city,omitempty"`
	Keywords string `json:"keywords,omitempty"`
}

// ContentService implements the article and post use-cases.
type ContentService struct {
	DB       *gorm.DB
	Feed     *changefeed.Broker
	Indexer  Enqueuer
	SiteURL  string
	TitleMax int // rune cap for titles
	// ExcerptMax caps derived excerpts (runes).
	ExcerptMax int

	Now func() time.Time
}

// NewContentService constructs a ContentService with default limits.
func NewContentService(db *gorm.DB, feed *changefeed.Broker, idx Enqueuer, siteURL string) *ContentService {
	return &ContentService{
		DB:         db,
		Feed:       feed,
		Indexer:    idx,
		SiteURL:    strings.TrimRight(siteURL, "/"),
		TitleMax:   200,
		ExcerptMax: 240,
		Now:        time.Now,
	}
}

// ---- articles ----

// CreateArticle validates and stores a new, unpublished article.
func (s *ContentService) CreateArticle(ctx context.Context, in ArticleInput) (*domain.Article, error) {
	ctx, span := observability.StartSpan(ctx, "services/ContentService", "CreateArticle")
	var err error
	defer func() { observability.EndSpan(span, err) }()

	a, err := s.buildArticle(in)
	if err != nil {
		return nil, err
	}
	if err = repo.CreateArticle(ctx, s.DB, a); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			err = ErrDuplicateSlug
		}
		return nil, err
	}
	s.Feed.Publish(changefeed.Change{Table: changefeed.TableArticles, Op: changefeed.OpUpsert, Key: a.Slug})
	return a, nil
}

// UpdateArticle replaces the editable fields of article id. The published
// state is kept.
func (s *ContentService) UpdateArticle(ctx context.Context, id string, in ArticleInput) (*domain.Article, error) {
	ctx, span := observability.StartSpan(ctx, "services/ContentService", "UpdateArticle", attribute.String("article.id", id))
	var err error
	defer func() { observability.EndSpan(span, err) }()

	cur, err := repo.GetArticle(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			err = ErrContentNotFound
		}
		return nil, err
	}
	a, err := s.buildArticle(in)
	if err != nil {
		return nil, err
	}
	a.ID = cur.ID
	a.CreatedAt = cur.CreatedAt
	a.Published, a.PublishedAt = cur.Published, cur.PublishedAt

	if err = repo.UpdateArticle(ctx, s.DB, a); err != nil {
		switch {
		case errors.Is(err, repo.ErrDuplicate):
			err = ErrDuplicateSlug
		case errors.Is(err, repo.ErrNotFound):
			err = ErrContentNotFound
		}
		return nil, err
	}
	s.Feed.Publish(changefeed.Change{Table: changefeed.TableArticles, Op: changefeed.OpUpsert, Key: a.Slug})
	return a, nil
}

// DeleteArticle removes an article.
func (s *ContentService) DeleteArticle(ctx context.Context, id string) error {
	a, err := repo.GetArticle(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrContentNotFound
		}
		return err
	}
	if err := repo.DeleteArticle(ctx, s.DB, id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrContentNotFound
		}
		return err
	}
	s.Feed.Publish(changefeed.Change{Table: changefeed.TableArticles, Op: changefeed.OpDelete, Key: a.Slug})
	return nil
}

// SetPublished toggles an article's published flag. Publishing stamps the
// publish time and enqueues {SiteURL}/articles/{slug}; unpublishing clears
// the stamp.
func (s *ContentService) SetPublished(ctx context.Context, id string, published bool) (*domain.Article, error) {
	ctx, span := observability.StartSpan(ctx, "services/ContentService", "SetPublished",
		attribute.String("article.id", id), attribute.Bool("published", published))
	var err error
	defer func() { observability.EndSpan(span, err) }()

	a, err := repo.GetArticle(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			err = ErrContentNotFound
		}
		return nil, err
	}

	var at *time.Time
	if published {
		t := s.now().UTC()
		if a.Published && a.PublishedAt != nil {
			t = *a.PublishedAt
		}
		at = &t
	}
	if err = repo.SetArticlePublished(ctx, s.DB, id, published, at); err != nil {
		return nil, err
	}
	a.Published, a.PublishedAt = published, at
	s.Feed.Publish(changefeed.Change{Table: changefeed.TableArticles, Op: changefeed.OpUpsert, Key: a.Slug})

	if published && s.Indexer != nil {
		u := s.SiteURL + "/articles/" + a.Slug
		if _, qerr := s.Indexer.Enqueue(ctx, u); qerr != nil {
			log.Warn().Err(qerr).Str("slug", a.Slug).Str("url", u).Msg("content: enqueue after publish failed")
		}
	}
	return a, nil
}

// Article returns a published article by slug.
func (s *ContentService) Article(ctx context.Context, slug string) (*domain.Article, error) {
	a, err := repo.GetArticleBySlug(ctx, s.DB, slug)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrContentNotFound
		}
		return nil, err
	}
	if !a.Published {
		return nil, ErrContentNotFound
	}
	return a, nil
}

// ArticleByID returns an article regardless of published state (admin view).
func (s *ContentService) ArticleByID(ctx context.Context, id string) (*domain.Article, error) {
	a, err := repo.GetArticle(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrContentNotFound
	}
	return a, err
}

// ListArticles returns a page of published articles, newest first.
func (s *ContentService) ListArticles(ctx context.Context, page, pageSize int) ([]domain.Article, int64, error) {
	page, pageSize = utils.NormalizePage(page, pageSize)
	total, err := repo.CountPublishedArticles(ctx, s.DB)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Article{}, 0, nil
	}
	items, err := repo.ListPublishedArticles(ctx, s.DB, utils.Offset(page, pageSize), pageSize)
	return items, total, err
}

// ---- blog posts ----

// Post returns a published blog post by slug.
func (s *ContentService) Post(ctx context.Context, slug string) (*domain.BlogPost, error) {
	p, err := repo.GetBlogPostBySlug(ctx, s.DB, slug)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrContentNotFound
		}
		return nil, err
	}
	if !p.Published {
		return nil, ErrContentNotFound
	}
	return p, nil
}

// ListPosts returns a page of published posts, newest first, optionally for
// one city.
func (s *ContentService) ListPosts(ctx context.Context, city string, page, pageSize int) ([]domain.BlogPost, int64, error) {
	page, pageSize = utils.NormalizePage(page, pageSize)
	city = strings.TrimSpace(city)
	total, err := repo.CountPublishedPosts(ctx, s.DB, city)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.BlogPost{}, 0, nil
	}
	items, err := repo.ListPublishedPosts(ctx, s.DB, city, utils.Offset(page, pageSize), pageSize)
	return items, total, err
}

// DeletePost removes a generated post by slug.
func (s *ContentService) DeletePost(ctx context.Context, slug string) error {
	p, err := repo.GetBlogPostBySlug(ctx, s.DB, slug)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrContentNotFound
		}
		return err
	}
	if err := repo.DeleteBlogPost(ctx, s.DB, p.ID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrContentNotFound
		}
		return err
	}
	s.Feed.Publish(changefeed.Change{Table: changefeed.TablePosts, Op: changefeed.OpDelete, Key: slug})
	return nil
}

// PostStats returns the published-post count and newest update time, for ETags.
func (s *ContentService) PostStats(ctx context.Context) (int64, *time.Time, error) {
	return repo.PostsStats(ctx, s.DB)
}

// ---- related + search ----

// RelatedPosts returns up to k published posts related to the post slug.
func (s *ContentService) RelatedPosts(ctx context.Context, slug string, k int) ([]domain.BlogPost, error) {
	target, err := s.Post(ctx, slug)
	if err != nil {
		return nil, err
	}
	pool, err := repo.ListPublishedPosts(ctx, s.DB, "", 0, 0)
	if err != nil {
		return nil, err
	}
	return search.Related(*target, pool, k), nil
}

// RelatedArticles returns up to k published articles related to the
// article slug.
func (s *ContentService) RelatedArticles(ctx context.Context, slug string, k int) ([]domain.Article, error) {
	target, err := s.Article(ctx, slug)
	if err != nil {
		return nil, err
	}
	pool, err := repo.ListPublishedArticles(ctx, s.DB, 0, 0)
	if err != nil {
		return nil, err
	}
	return search.Related(*target, pool, k), nil
}

// Search ranks published posts and articles against q. The index is built
// from the store on every call.
func (s *ContentService) Search(ctx context.Context, q string, k int) ([]search.Result, error) {
	ctx, span := observability.StartSpan(ctx, "services/ContentService", "Search", attribute.String("query", q))
	var err error
	defer func() { observability.EndSpan(span, err) }()

	if strings.TrimSpace(q) == "" {
		return []search.Result{}, nil
	}
	posts, err := repo.ListPublishedPosts(ctx, s.DB, "", 0, 0)
	if err != nil {
		return nil, err
	}
	arts, err := repo.ListPublishedArticles(ctx, s.DB, 0, 0)
	if err != nil {
		return nil, err
	}

	docs := make([]search.Doc, 0, len(posts)+len(arts))
	for _, p := range posts {
		docs = append(docs, search.Doc{ID: p.ID, Kind: "post", Slug: p.Slug, Title: p.Title,
			Text: p.Keywords + " " + p.City + " " + PlainText(p.Content)})
	}
	for _, a := range arts {
		docs = append(docs, search.Doc{ID: a.ID, Kind: "article", Slug: a.Slug, Title: a.Title,
			Text: a.Keywords + " " + a.City + " " + PlainText(a.Content)})
	}
	res := search.NewIndex(docs, search.WithTitleBoost(2)).TopK(q, k)
	if res == nil {
		res = []search.Result{}
	}
	return res, nil
}

// ---- helpers ----

func (s *ContentService) buildArticle(in ArticleInput) (*domain.Article, error) {
	title := normalizeSpace(in.Title)
	body := strings.TrimSpace(in.Content)
	if title == "" || body == "" {
		return nil, ErrInvalidContent
	}
	if s.TitleMax > 0 && utf8.RuneCountInString(title) > s.TitleMax {
		title = string([]rune(title)[:s.TitleMax])
	}
	slug := Slugify(in.Slug)
	if slug == "" {
		slug = Slugify(title)
	}
	if slug == "" {
		return nil, ErrInvalidContent
	}
	excerpt := normalizeSpace(in.Excerpt)
	if excerpt == "" {
		excerpt = Excerpt(body, s.ExcerptMax)
	}
	return &domain.Article{
		Title:    title,
		Slug:     slug,
		Content:  body,
		Excerpt:  excerpt,
		Author:   normalizeSpace(in.Author),
		City:     normalizeSpace(in.City),
		Keywords: normalizeKeywords(in.Keywords),
	}, nil
}

func (s *ContentService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

var (
	whitespaceRE = regexp.MustCompile(`\s+`)
	nonSlugRE    = regexp.MustCompile(`[^a-z0-9]+`)
)

// Slugify lower-cases s and joins its alphanumeric runs with "-".
func Slugify(s string) string {
	s = nonSlugRE.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), "-")
	return strings.Trim(s, "-")
}

func normalizeSpace(s string) string {
	return whitespaceRE.ReplaceAllString(strings.TrimSpace(s), " ")
}

// normalizeKeywords rewrites a keyword tag as "a, b, c" without empties.
func normalizeKeywords(tag string) string {
	return strings.Join(search.KeywordTerms(tag), ", ")
}
