package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/goldrate-backend/internal/changefeed"
	"github.com/tbourn/goldrate-backend/internal/cities"
	"github.com/tbourn/goldrate-backend/internal/domain"
	"github.com/tbourn/goldrate-backend/internal/search"
	"github.com/tbourn/goldrate-backend/internal/services"
)

//
// Service contracts (context-aware)
//

// PriceService defines the quote operations consumed by HTTP handlers.
type PriceService interface {
	Upsert(ctx context.Context, date string, p22, p24 float64) (*domain.PriceQuote, error)
	Latest(ctx context.Context) (*domain.PriceQuote, error)
	Get(ctx context.Context, date string) (*domain.PriceQuote, error)
	LastN(ctx context.Context, n int) ([]domain.PriceQuote, error)
	View(ctx context.Context, q domain.PriceQuote) services.PriceView
	Views(ctx context.Context, qs []domain.PriceQuote) []services.PriceView
	// Stats returns the row count and newest update time, used for ETags.
	Stats(ctx context.Context) (int64, *time.Time, error)
}

// ContentService defines article, post, related-content and search operations.
type ContentService interface {
	CreateArticle(ctx context.Context, in services.ArticleInput) (*domain.Article, error)
	UpdateArticle(ctx context.Context, id string, in services.ArticleInput) (*domain.Article, error)
	DeleteArticle(ctx context.Context, id string) error
	SetPublished(ctx context.Context, id string, published bool) (*domain.Article, error)
	Article(ctx context.Context, slug string) (*domain.Article, error)
	ArticleByID(ctx context.Context, id string) (*domain.Article, error)
	ListArticles(ctx context.Context, page, pageSize int) ([]domain.Article, int64, error)

	Post(ctx context.Context, slug string) (*domain.BlogPost, error)
	ListPosts(ctx context.Context, city string, page, pageSize int) ([]domain.BlogPost, int64, error)
	DeletePost(ctx context.Context, slug string) error
	PostStats(ctx context.Context) (int64, *time.Time, error)

	RelatedPosts(ctx context.Context, slug string, k int) ([]domain.BlogPost, error)
	RelatedArticles(ctx context.Context, slug string, k int) ([]domain.Article, error)
	Search(ctx context.Context, q string, k int) ([]search.Result, error)
}

// IndexingService defines the indexing queue operations.
type IndexingService interface {
	Enqueue(ctx context.Context, url string) (*domain.IndexingQueueEntry, error)
	Process(ctx context.Context, id string) (services.Outcome, error)
	ProcessAll(ctx context.Context) (services.Summary, error)
	List(ctx context.Context, status string, page, pageSize int) ([]domain.IndexingQueueEntry, int64, error)
	Get(ctx context.Context, id string) (*domain.IndexingQueueEntry, error)
}

// PublishService runs the blog publication pipeline.
type PublishService interface {
	PublishForDate(ctx context.Context, city, date string) (*services.PublishResult, error)
	PublishDaily(ctx context.Context, cities []string) (services.DailyReport, error)
}

// SiteFilesService serves and rebuilds the generated site files.
type SiteFilesService interface {
	Get(ctx context.Context, name string) (*domain.SiteFile, error)
	RegenerateAll(ctx context.Context) error
}

// AdService records ad slot counters.
type AdService interface {
	RecordImpression(ctx context.Context, slotID string) error
	RecordClick(ctx context.Context, slotID string) error
	Slot(ctx context.Context, slotID string) (*domain.AdSlot, error)
}

// ChangeFeed lets the stream endpoint follow table changes.
type ChangeFeed interface {
	Subscribe(table string, filter changefeed.Filter, fn changefeed.Handler) (unsubscribe func())
}

// IdempotencyStore persists the outcome of keyed admin requests.
type IdempotencyStore interface {
	Get(ctx context.Context, scope, key string, now time.Time) (*domain.Idempotency, error)
	Save(ctx context.Context, scope, key, resourceID string, status int, ttl time.Duration) error
}

//
// Handler wiring
//

// Deps are the services the handlers depend on. Any may be nil in tests
// that do not exercise the matching routes.
type Deps struct {
	Prices      PriceService
	Content     ContentService
	Indexing    IndexingService
	Publish     PublishService
	SiteFiles   SiteFilesService
	Ads         AdService
	Feed        ChangeFeed
	Idempotency IdempotencyStore
	Cities      *cities.Catalogue
}

// Options tune handler behavior.
type Options struct {
	SiteURL        string        // canonical origin for replayed post URLs
	RelatedLimit   int           // related items per detail page
	IdempotencyTTL time.Duration // lifetime of stored admin outcomes
	DailyCities    []string      // cities for POST /admin/publish/daily when the body names none
	Heartbeat      time.Duration // SSE keep-alive interval
}

// Handlers groups the HTTP endpoints of the site API. It depends on
// abstract service interfaces to keep transport concerns separate from
// business logic.
type Handlers struct {
	priceSvc   PriceService
	contentSvc ContentService
	indexSvc   IndexingService
	publishSvc PublishService
	filesSvc   SiteFilesService
	adSvc      AdService
	feed       ChangeFeed
	idem       IdempotencyStore
	cat        *cities.Catalogue
	opts       Options
}

// New constructs a Handlers instance bound to the given services.
func New(d Deps, opts Options) *Handlers {
	if opts.RelatedLimit <= 0 {
		opts.RelatedLimit = 3
	}
	if opts.IdempotencyTTL <= 0 {
		opts.IdempotencyTTL = 24 * time.Hour
	}
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = 25 * time.Second
	}
	return &Handlers{
		priceSvc:   d.Prices,
		contentSvc: d.Content,
		indexSvc:   d.Indexing,
		publishSvc: d.Publish,
		filesSvc:   d.SiteFiles,
		adSvc:      d.Ads,
		feed:       d.Feed,
		idem:       d.Idempotency,
		cat:        d.Cities,
		opts:       opts,
	}
}

// serviceError maps a service error onto the envelope. It returns false when
// err is nil.
func serviceError(c *gin.Context, err error) bool {
	switch {
	case err == nil:
		return false
	case errors.Is(err, services.ErrInvalidPrice):
		fail(c, http.StatusBadRequest, ErrCodeInvalidPrice, err.Error())
	case errors.Is(err, services.ErrInvalidDate):
		fail(c, http.StatusBadRequest, ErrCodeInvalidDate, err.Error())
	case errors.Is(err, services.ErrInvalidContent):
		fail(c, http.StatusBadRequest, ErrCodeInvalidContent, err.Error())
	case errors.Is(err, services.ErrInvalidURL):
		fail(c, http.StatusBadRequest, ErrCodeInvalidURL, err.Error())
	case errors.Is(err, services.ErrUnknownCity):
		fail(c, http.StatusBadRequest, ErrCodeUnknownCity, err.Error())
	case errors.Is(err, services.ErrDuplicateSlug):
		fail(c, http.StatusConflict, ErrCodeDuplicateSlug, err.Error())
	case errors.Is(err, services.ErrQuoteNotFound),
		errors.Is(err, services.ErrContentNotFound),
		errors.Is(err, services.ErrEntryNotFound),
		errors.Is(err, services.ErrUnknownSiteFile),
		errors.Is(err, services.ErrAdNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, err.Error())
	case errors.Is(err, services.ErrMalformedUpstream):
		fail(c, http.StatusBadGateway, ErrCodeGenerationMalformed, err.Error())
	case errors.Is(err, services.ErrGeneration):
		fail(c, http.StatusBadGateway, ErrCodeGenerationFailed, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		fail(c, http.StatusServiceUnavailable, ErrCodeInternal, "request cancelled")
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "internal error")
	}
	return true
}

// isNotFound reports whether err is one of the service not-found sentinels.
func isNotFound(err error) bool {
	return errors.Is(err, services.ErrQuoteNotFound) ||
		errors.Is(err, services.ErrContentNotFound) ||
		errors.Is(err, services.ErrEntryNotFound) ||
		errors.Is(err, services.ErrUnknownSiteFile) ||
		errors.Is(err, services.ErrAdNotFound)
}
