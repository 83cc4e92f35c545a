// Content HTTP handlers.
//
// Public endpoints:
//   - GET /posts                    (published posts, paginated, optional city, ETag)
//   - GET /posts/{slug}             (one post)
//   - GET /posts/{slug}/related     (related posts)
//   - GET /articles                 (published articles, paginated)
//   - GET /articles/{slug}          (one article)
//   - GET /articles/{slug}/related  (related articles)
//   - GET /search?q=                (site search)
//   - GET /cities                   (district catalogue)
//
// Admin endpoints manage articles and generated posts.
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/goldrate-backend/internal/cities"
	"github.com/tbourn/goldrate-backend/internal/domain"
	"github.com/tbourn/goldrate-backend/internal/search"
	"github.com/tbourn/goldrate-backend/internal/services"
	"github.com/tbourn/goldrate-backend/internal/utils"
)

const maxSearchResults = 20

//
// DTOs
//

// ListPostsResponse wraps a page of posts and pagination information.
type ListPostsResponse struct {
	Posts      []domain.BlogPost `json:"posts"`
	Pagination Pagination        `json:"pagination"`
}

// ListArticlesResponse wraps a page of articles and pagination information.
type ListArticlesResponse struct {
	Articles   []domain.Article `json:"articles"`
	Pagination Pagination       `json:"pagination"`
}

// RelatedPostsResponse lists posts related to a post.
type RelatedPostsResponse struct {
	Posts []domain.BlogPost `json:"posts"`
}

// RelatedArticlesResponse lists articles related to an article.
type RelatedArticlesResponse struct {
	Articles []domain.Article `json:"articles"`
}

// SearchResponse lists ranked search hits.
type SearchResponse struct {
	Query   string          `json:"query"`
	Results []search.Result `json:"results"`
}

// CitiesResponse lists the districts with rate pages.
type CitiesResponse struct {
	Cities []cities.District `json:"cities"`
}

// PublishArticleRequest toggles an article's published flag.
type PublishArticleRequest struct {
	Published bool `json:"published" example:"true"`
}

//
// Public handlers
//

// ListPosts godoc
// @ID          listPosts
// @Summary     List published blog posts
// @Description Newest first. Supports weak ETag via If-None-Match and may return 304.
// @Tags        Content
// @Produce     json
// @Param       city       query  string  false "District name filter"  example(Chennai)
// @Param       page       query  int     false "Page number"     minimum(1) default(1)
// @Param       page_size  query  int     false "Items per page"  minimum(1) maximum(100) default(20)
// @Success     200  {object}  handlers.ListPostsResponse
// @Success     304  {string}  string "Not Modified"
// @Router      /api/v1/posts [get]
func (h *Handlers) ListPosts(c *gin.Context) {
	ctx := c.Request.Context()
	page, pageSize := pageParams(c)
	city := strings.TrimSpace(c.Query("city"))

	if count, maxTS, err := h.contentSvc.PostStats(ctx); err == nil {
		scope := "posts:" + cities.Slug(city) + ":" + c.Query("page") + ":" + c.Query("page_size")
		if notModified(c, scope, count, maxTS) {
			return
		}
	}

	items, total, err := h.contentSvc.ListPosts(ctx, city, page, pageSize)
	if err != nil {
		readFailed(c, err, ListPostsResponse{Posts: []domain.BlogPost{}, Pagination: newPagination(page, pageSize, 0)})
		return
	}
	ok(c, http.StatusOK, ListPostsResponse{Posts: items, Pagination: newPagination(page, pageSize, total)})
}

// GetPost godoc
// @ID          getPost
// @Summary     Get a published blog post
// @Tags        Content
// @Produce     json
// @Param       slug  path  string  true  "Post slug"  example(chennai-gold-rate-2025-01-15)
// @Success     200  {object}  domain.BlogPost
// @Failure     404  {object}  handlers.ErrorResponse  "Post not found"
// @Router      /api/v1/posts/{slug} [get]
func (h *Handlers) GetPost(c *gin.Context) {
	p, err := h.contentSvc.Post(c.Request.Context(), c.Param("slug"))
	if err != nil {
		if isNotFound(err) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "post not found")
			return
		}
		readFailed(c, err, gin.H{})
		return
	}
	ok(c, http.StatusOK, p)
}

// RelatedPosts godoc
// @ID          relatedPosts
// @Summary     Posts related to a post
// @Tags        Content
// @Produce     json
// @Param       slug  path   string  true   "Post slug"
// @Param       k     query  int     false  "Maximum results"  minimum(1) maximum(20)
// @Success     200  {object}  handlers.RelatedPostsResponse
// @Failure     404  {object}  handlers.ErrorResponse  "Post not found"
// @Router      /api/v1/posts/{slug}/related [get]
func (h *Handlers) RelatedPosts(c *gin.Context) {
	items, err := h.contentSvc.RelatedPosts(c.Request.Context(), c.Param("slug"), h.relatedK(c))
	if err != nil {
		if isNotFound(err) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "post not found")
			return
		}
		readFailed(c, err, RelatedPostsResponse{Posts: []domain.BlogPost{}})
		return
	}
	ok(c, http.StatusOK, RelatedPostsResponse{Posts: items})
}

// ListArticles godoc
// @ID          listArticles
// @Summary     List published articles
// @Tags        Content
// @Produce     json
// @Param       page       query  int  false "Page number"     minimum(1) default(1)
// @Param       page_size  query  int  false "Items per page"  minimum(1) maximum(100) default(20)
// @Success     200  {object}  handlers.ListArticlesResponse
// @Router      /api/v1/articles [get]
func (h *Handlers) ListArticles(c *gin.Context) {
	page, pageSize := pageParams(c)
	items, total, err := h.contentSvc.ListArticles(c.Request.Context(), page, pageSize)
	if err != nil {
		readFailed(c, err, ListArticlesResponse{Articles: []domain.Article{}, Pagination: newPagination(page, pageSize, 0)})
		return
	}
	ok(c, http.StatusOK, ListArticlesResponse{Articles: items, Pagination: newPagination(page, pageSize, total)})
}

// GetArticle godoc
// @ID          getArticle
// @Summary     Get a published article
// @Tags        Content
// @Produce     json
// @Param       slug  path  string  true  "Article slug"
// @Success     200  {object}  domain.Article
// @Failure     404  {object}  handlers.ErrorResponse  "Article not found"
// @Router      /api/v1/articles/{slug} [get]
func (h *Handlers) GetArticle(c *gin.Context) {
	a, err := h.contentSvc.Article(c.Request.Context(), c.Param("slug"))
	if err != nil {
		if isNotFound(err) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "article not found")
			return
		}
		readFailed(c, err, gin.H{})
		return
	}
	ok(c, http.StatusOK, a)
}

// RelatedArticles godoc
// @ID          relatedArticles
// @Summary     Articles related to an article
// @Tags        Content
// @Produce     json
// @Param       slug  path   string  true   "Article slug"
// @Param       k     query  int     false  "Maximum results"  minimum(1) maximum(20)
// @Success     200  {object}  handlers.RelatedArticlesResponse
// @Failure     404  {object}  handlers.ErrorResponse  "Article not found"
// @Router      /api/v1/articles/{slug}/related [get]
func (h *Handlers) RelatedArticles(c *gin.Context) {
	items, err := h.contentSvc.RelatedArticles(c.Request.Context(), c.Param("slug"), h.relatedK(c))
	if err != nil {
		if isNotFound(err) {
			fail(c, http.StatusNotFound, ErrCodeNotFound, "article not found")
			return
		}
		readFailed(c, err, RelatedArticlesResponse{Articles: []domain.Article{}})
		return
	}
	ok(c, http.StatusOK, RelatedArticlesResponse{Articles: items})
}

// Search godoc
// @ID          search
// @Summary     Search posts and articles
// @Description Ranks published posts and articles by token overlap with the query.
// @Tags        Content
// @Produce     json
// @Param       q  query  string  true   "Query"  example(22k chennai)
// @Param       k  query  int     false  "Maximum results"  minimum(1) maximum(20) default(10)
// @Success     200  {object}  handlers.SearchResponse
// @Router      /api/v1/search [get]
func (h *Handlers) Search(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	k := utils.Clamp(utils.AtoiDefault(c.Query("k"), 10), 1, maxSearchResults)
	res, err := h.contentSvc.Search(c.Request.Context(), q, k)
	if err != nil {
		readFailed(c, err, SearchResponse{Query: q, Results: []search.Result{}})
		return
	}
	ok(c, http.StatusOK, SearchResponse{Query: q, Results: res})
}

// ListCities godoc
// @ID          listCities
// @Summary     Districts with rate pages
// @Tags        Content
// @Produce     json
// @Success     200  {object}  handlers.CitiesResponse
// @Router      /api/v1/cities [get]
func (h *Handlers) ListCities(c *gin.Context) {
	cat := h.cat
	if cat == nil {
		cat = cities.Default()
	}
	ok(c, http.StatusOK, CitiesResponse{Cities: cat.Districts()})
}

//
// Admin handlers
//

// CreateArticle godoc
// @ID          createArticle
// @Summary     Create an article (admin)
// @Description Stores an unpublished article. The slug is derived from the title when omitted.
// @Tags        Admin
// @Accept      json
// @Produce     json
// @Security    AdminToken
// @Param       body  body  services.ArticleInput  true  "Article"
// @Success     201  {object}  domain.Article
// @Failure     400  {object}  handlers.ErrorResponse  "Missing title or content"
// @Failure     409  {object}  handlers.ErrorResponse  "Slug already in use"
// @Router      /admin/articles [post]
func (h *Handlers) CreateArticle(c *gin.Context) {
	var in services.ArticleInput
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	a, err := h.contentSvc.CreateArticle(c.Request.Context(), in)
	if serviceError(c, err) {
		return
	}
	ok(c, http.StatusCreated, a)
}

// GetArticleAdmin godoc
// @ID          getArticleAdmin
// @Summary     Get any article by id (admin)
// @Tags        Admin
// @Produce     json
// @Security    AdminToken
// @Param       id  path  string  true  "Article ID"  format(uuid)
// @Success     200  {object}  domain.Article
// @Failure     404  {object}  handlers.ErrorResponse  "Article not found"
// @Router      /admin/articles/{id} [get]
func (h *Handlers) GetArticleAdmin(c *gin.Context) {
	a, err := h.contentSvc.ArticleByID(c.Request.Context(), c.Param("id"))
	if serviceError(c, err) {
		return
	}
	ok(c, http.StatusOK, a)
}

// UpdateArticle godoc
// @ID          updateArticle
// @Summary     Update an article (admin)
// @Tags        Admin
// @Accept      json
// @Produce     json
// @Security    AdminToken
// @Param       id    path  string                 true  "Article ID"  format(uuid)
// @Param       body  body  services.ArticleInput  true  "Article"
// @Success     200  {object}  domain.Article
// @Failure     400  {object}  handlers.ErrorResponse  "Missing title or content"
// @Failure     404  {object}  handlers.ErrorResponse  "Article not found"
// @Failure     409  {object}  handlers.ErrorResponse  "Slug already in use"
// @Router      /admin/articles/{id} [put]
func (h *Handlers) UpdateArticle(c *gin.Context) {
	var in services.ArticleInput
	if err := c.ShouldBindJSON(&in); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	a, err := h.contentSvc.UpdateArticle(c.Request.Context(), c.Param("id"), in)
	if serviceError(c, err) {
		return
	}
	ok(c, http.StatusOK, a)
}

// PublishArticle godoc
// @ID          publishArticle
// @Summary     Publish or unpublish an article (admin)
// @Description Publishing stamps the publish time and queues the article URL for indexing.
// @Tags        Admin
// @Accept      json
// @Produce     json
// @Security    AdminToken
// @Param       id    path  string                          true  "Article ID"  format(uuid)
// @Param       body  body  handlers.PublishArticleRequest  true  "Published flag"
// @Success     200  {object}  domain.Article
// @Failure     404  {object}  handlers.ErrorResponse  "Article not found"
// @Router      /admin/articles/{id}/publish [post]
func (h *Handlers) PublishArticle(c *gin.Context) {
	var req PublishArticleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	a, err := h.contentSvc.SetPublished(c.Request.Context(), c.Param("id"), req.Published)
	if serviceError(c, err) {
		return
	}
	ok(c, http.StatusOK, a)
}

// DeleteArticle godoc
// @ID          deleteArticle
// @Summary     Delete an article (admin)
// @Tags        Admin
// @Security    AdminToken
// @Param       id  path  string  true  "Article ID"  format(uuid)
// @Success     204  {string}  string "No Content"
// @Failure     404  {object}  handlers.ErrorResponse  "Article not found"
// @Router      /admin/articles/{id} [delete]
func (h *Handlers) DeleteArticle(c *gin.Context) {
	if serviceError(c, h.contentSvc.DeleteArticle(c.Request.Context(), c.Param("id"))) {
		return
	}
	noContent(c)
}

// DeletePost godoc
// @ID          deletePost
// @Summary     Delete a generated post (admin)
// @Tags        Admin
// @Security    AdminToken
// @Param       slug  path  string  true  "Post slug"
// @Success     204  {string}  string "No Content"
// @Failure     404  {object}  handlers.ErrorResponse  "Post not found"
// @Router      /admin/posts/{slug} [delete]
func (h *Handlers) DeletePost(c *gin.Context) {
	if serviceError(c, h.contentSvc.DeletePost(c.Request.Context(), c.Param("slug"))) {
		return
	}
	noContent(c)
}

//
// Helpers
//

func (h *Handlers) relatedK(c *gin.Context) int {
	return utils.Clamp(utils.AtoiDefault(c.Query("k"), h.opts.RelatedLimit), 1, maxSearchResults)
}

