// Package httpapi wires the HTTP transport (Gin) to application services,
// middleware, and route handlers. It centralizes cross-cutting concerns such
// as tracing, correlation IDs, logging/redaction, panic recovery, metrics,
// compression, CORS, security headers, idempotency, rate limiting and the
// admin credential gate.
//
// Route layout:
//   - /health, /metrics, /swagger/*           operational
//   - /sitemap.xml, /robots.txt, /rss.xml,    crawler-facing site files
//     /llms.txt
//   - {APIBasePath}/...                       public read API, ads, streams
//   - /admin/...                              admin API (token required)
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/goldrate-backend/internal/changefeed"
	"github.com/tbourn/goldrate-backend/internal/cities"
	"github.com/tbourn/goldrate-backend/internal/config"
	"github.com/tbourn/goldrate-backend/internal/domain"
	"github.com/tbourn/goldrate-backend/internal/http/handlers"
	"github.com/tbourn/goldrate-backend/internal/http/middleware"
	"github.com/tbourn/goldrate-backend/internal/repo"
	"github.com/tbourn/goldrate-backend/internal/services"
)

// App carries the constructed services the router exposes.
type App struct {
	DB        *gorm.DB
	Prices    *services.PriceService
	Content   *services.ContentService
	Indexing  *services.IndexingService
	Publish   *services.PublishService
	SiteFiles *services.SiteFilesService
	Ads       *services.AdService
	Feed      *changefeed.Broker
	Cities    *cities.Catalogue
}

// idempotencyShim adapts the repository free functions to the
// handlers.IdempotencyStore interface.
type idempotencyShim struct{ db *gorm.DB }

// Get proxies repo.GetIdempotency.
func (s idempotencyShim) Get(ctx context.Context, scope, key string, now time.Time) (*domain.Idempotency, error) {
	return repo.GetIdempotency(ctx, s.db, scope, key, now)
}

// Save proxies repo.CreateIdempotency. A concurrent duplicate is not an error:
// the first writer's record wins.
func (s idempotencyShim) Save(ctx context.Context, scope, key, resourceID string, status int, ttl time.Duration) error {
	_, err := repo.CreateIdempotency(ctx, s.db, scope, key, resourceID, status, ttl)
	if errors.Is(err, repo.ErrDuplicate) {
		return nil
	}
	return err
}

// RegisterRoutes attaches all middleware and HTTP endpoints to the given Gin
// engine.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. RedactingLogger: structured logs with PII and credential scrubbing
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. Idempotency validator (before rate limiter to allow bypass on replay)
//  8. Rate limiter (per IP, admin traffic bucketed separately)
//  9. CORS and Security headers
//  10. Gzip
func RegisterRoutes(r *gin.Engine, app App, cfg config.Config) {
	r.HandleMethodNotAllowed = true

	// 1) Trace all HTTP requests
	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))

	// 2) Correlate requests and logs
	r.Use(middleware.RequestID())

	// 3) Structured logging with redaction
	r.Use(middleware.RedactingLogger(middleware.RedactOptions{
		MaskHeaders: []string{"X-API-Key"},
	}))

	// 4) Panic recovery to JSON 500 (with request id)
	r.Use(middleware.Recovery())

	// 5) Global body size limit (1 MiB)
	r.Use(limitBody(1 << 20))

	// 6) Prometheus metrics and /metrics endpoint
	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 7) Idempotency validation (before rate limiting)
	idem := idempotencyShim{db: app.DB}
	r.Use(middleware.IdempotencyValidator(
		middleware.IdempotencyOptions{MaxLen: 200},
		func(ctx context.Context, scope, key string, now time.Time) (bool, error) {
			if app.DB == nil {
				return false, nil
			}
			rec, err := idem.Get(ctx, scope, key, now)
			if err != nil || rec == nil {
				return false, nil
			}
			return true, nil
		},
	))

	// 8) Token-bucket rate limiter per IP; probes skip it and admin traffic
	// is limited inside its group once the credential is known
	rl := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByIP()).
		Skip(func(c *gin.Context) bool {
			p := c.Request.URL.Path
			return p == "/health" || p == "/metrics" || strings.HasPrefix(p, "/admin/")
		})
	r.Use(rl.Handler())
	adminRL := middleware.NewRateLimiter(cfg.RateRPS, cfg.RateBurst, middleware.KeyByIP())

	// 9) CORS posture (safe defaults: allow all if none configured)
	allowHeaders := []string{"Origin", "Content-Type", "Accept", "Authorization", "If-None-Match",
		middleware.HeaderAdminToken, middleware.HeaderIdempotencyKey}
	exposeHeaders := []string{"X-Request-ID", "Content-Length", "ETag", middleware.HeaderIdempotencyReplayed}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// Force ACAO: * even for requests without an Origin header.
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowAllOrigins:  true,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    exposeHeaders,
			AllowCredentials: false, // must remain false with AllowAllOrigins
			MaxAge:           12 * time.Hour,
		}))
	} else {
		// Echo ACAO with the request Origin when it is in the allowlist.
		allowed := make(map[string]struct{}, len(cfg.CORS.AllowedOrigins))
		for _, o := range cfg.CORS.AllowedOrigins {
			allowed[o] = struct{}{}
		}
		r.Use(func(c *gin.Context) {
			if origin := c.GetHeader("Origin"); origin != "" {
				if _, ok := allowed[origin]; ok {
					h := c.Writer.Header()
					h.Set("Access-Control-Allow-Origin", origin)
					h.Add("Vary", "Origin")
				}
			}
			c.Next()
		})
		r.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.CORS.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowHeaders:     allowHeaders,
			ExposeHeaders:    exposeHeaders,
			AllowCredentials: false,
			MaxAge:           12 * time.Hour,
		}))
	}

	// Security headers (HSTS only when enabled and request is HTTPS)
	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		NoStore:      false,
		EnablePolicy: true,
	}))

	// 10) Compression for sitemaps, feeds and JSON; streams stay uncompressed
	// so events flush immediately
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPathsRegexs([]string{`/stream/`})))

	// Fallbacks
	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	// Liveness/health
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	if cfg.SwaggerEnabled {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	h := handlers.New(deps(app, idem), handlers.Options{
		SiteURL:        cfg.SiteURL,
		RelatedLimit:   cfg.RelatedLimit,
		IdempotencyTTL: cfg.IdempotencyTTL,
		DailyCities:    cfg.Scheduler.Cities,
	})

	// Crawler-facing site files
	for _, name := range services.SiteFileNames() {
		r.GET("/"+name, h.SiteFile(name))
	}

	// Public API
	api := groupWithPrefix(r, cfg.APIBasePath) // e.g. "/api/v1"
	{
		api.GET("/prices/latest", h.LatestPrice)
		api.GET("/prices", h.ListPrices)
		api.GET("/prices/:date", h.GetPrice)

		api.GET("/posts", h.ListPosts)
		api.GET("/posts/:slug", h.GetPost)
		api.GET("/posts/:slug/related", h.RelatedPosts)
		api.GET("/articles", h.ListArticles)
		api.GET("/articles/:slug", h.GetArticle)
		api.GET("/articles/:slug/related", h.RelatedArticles)
		api.GET("/search", h.Search)
		api.GET("/cities", h.ListCities)

		api.POST("/ads/:id/impression", h.AdImpression)
		api.POST("/ads/:id/click", h.AdClick)

		api.GET("/stream/:table", h.Stream)
	}

	// Admin API: credential gate first, responses never cached
	admin := r.Group("/admin",
		middleware.RequireAdmin(cfg.AdminToken),
		adminRL.Handler(),
		middleware.SecurityHeaders(middleware.SecurityOptions{NoStore: true}),
	)
	{
		admin.PUT("/prices/:date", h.UpsertPrice)

		admin.POST("/articles", h.CreateArticle)
		admin.GET("/articles/:id", h.GetArticleAdmin)
		admin.PUT("/articles/:id", h.UpdateArticle)
		admin.DELETE("/articles/:id", h.DeleteArticle)
		admin.POST("/articles/:id/publish", h.PublishArticle)
		admin.DELETE("/posts/:slug", h.DeletePost)

		admin.POST("/publish", h.Publish)
		admin.POST("/publish/daily", h.PublishDaily)

		admin.POST("/indexing", h.Enqueue)
		admin.GET("/indexing", h.ListQueue)
		admin.POST("/indexing/process", h.ProcessQueue)
		admin.GET("/indexing/:id", h.GetQueueEntry)
		admin.POST("/indexing/:id/process", h.ProcessEntry)

		admin.POST("/site-files/regenerate", h.RegenerateSiteFiles)
		admin.GET("/ads/:id", h.GetAdSlot)
	}
}

// deps converts App into handler dependencies, leaving interfaces nil (not
// typed-nil) for services the caller did not construct.
func deps(app App, idem idempotencyShim) handlers.Deps {
	d := handlers.Deps{Cities: app.Cities}
	if app.Prices != nil {
		d.Prices = app.Prices
	}
	if app.Content != nil {
		d.Content = app.Content
	}
	if app.Indexing != nil {
		d.Indexing = app.Indexing
	}
	if app.Publish != nil {
		d.Publish = app.Publish
	}
	if app.SiteFiles != nil {
		d.SiteFiles = app.SiteFiles
	}
	if app.Ads != nil {
		d.Ads = app.Ads
	}
	if app.Feed != nil {
		d.Feed = app.Feed
	}
	if app.DB != nil {
		d.Idempotency = idem
	}
	return d
}

// limitBody returns a Gin middleware that caps the request body size for all
// endpoints to maxBytes using http.MaxBytesReader. Requests exceeding the cap
// will cause downstream body reads to error.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
