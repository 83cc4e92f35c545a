// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for content items:
// manually written articles (table articles) and pipeline-generated blog
// posts (table automated_blog_posts).
//
// Error semantics:
//   - Missing rows surface as ErrNotFound.
//   - Slug collisions on insert/update surface as ErrDuplicate, except for
//     UpsertBlogPost, which resolves them by overwriting the existing row.
//
// Listing functions return published items only, most recently published
// first, which is the order the related-content scorer relies on.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/goldrate-backend/internal/domain"
)

const publishedOrder = "published_at desc, created_at desc, id asc"

// ---- articles ----

// CreateArticle inserts a new article. ID and timestamps are assigned here.
func CreateArticle(ctx context.Context, db *gorm.DB, a *domain.Article) error {
	now := time.Now().UTC()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.CreatedAt, a.UpdatedAt = now, now
	if err := db.WithContext(ctx).Create(a).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// UpdateArticle overwrites the editable columns of an existing article.
func UpdateArticle(ctx context.Context, db *gorm.DB, a *domain.Article) error {
	a.UpdatedAt = time.Now().UTC()
	res := db.WithContext(ctx).
		Model(&domain.Article{}).
		Where("id = ?", a.ID).
		Select("title", "slug", "content", "excerpt", "author", "city", "keywords", "published", "published_at", "updated_at").
		Updates(a)
	if res.Error != nil {
		if isUniqueViolation(res.Error) {
			return ErrDuplicate
		}
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetArticle fetches an article by ID.
func GetArticle(ctx context.Context, db *gorm.DB, id string) (*domain.Article, error) {
	var a domain.Article
	if err := db.WithContext(ctx).Where("id = ?", id).First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

// GetArticleBySlug fetches an article by slug regardless of published state.
func GetArticleBySlug(ctx context.Context, db *gorm.DB, slug string) (*domain.Article, error) {
	var a domain.Article
	if err := db.WithContext(ctx).Where("slug = ?", slug).First(&a).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

// DeleteArticle removes an article permanently.
func DeleteArticle(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).Where("id = ?", id).Delete(&domain.Article{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// SetArticlePublished flips the published flag and publish timestamp.
func SetArticlePublished(ctx context.Context, db *gorm.DB, id string, published bool, at *time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.Article{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"published":    published,
			"published_at": at,
			"updated_at":   time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CountPublishedArticles returns the number of published articles.
func CountPublishedArticles(ctx context.Context, db *gorm.DB) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Article{}).
		Where("published = ?", true).
		Count(&total).Error
	return total, err
}

// ListPublishedArticles returns a page of published articles, most recently
// published first. limit <= 0 returns every published article.
func ListPublishedArticles(ctx context.Context, db *gorm.DB, offset, limit int) ([]domain.Article, error) {
	var out []domain.Article
	q := db.WithContext(ctx).
		Where("published = ?", true).
		Order(publishedOrder)
	if limit > 0 {
		q = q.Offset(offset).Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// ---- generated blog posts ----

// UpsertBlogPost inserts p, or overwrites the existing post with the same
// slug. The stored row is re-read and returned so callers see the surviving
// ID and creation time.
func UpsertBlogPost(ctx context.Context, db *gorm.DB, p *domain.BlogPost) (*domain.BlogPost, error) {
	now := time.Now().UTC()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	p.CreatedAt, p.UpdatedAt = now, now
	err := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "slug"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"title", "content", "excerpt", "seo_title", "seo_description", "keywords",
				"city", "price_date", "price_22k", "price_24k", "published", "published_at", "updated_at",
			}),
		}).
		Create(p).Error
	if err != nil {
		return nil, err
	}
	return GetBlogPostBySlug(ctx, db, p.Slug)
}

// GetBlogPostBySlug fetches a blog post by slug regardless of published state.
func GetBlogPostBySlug(ctx context.Context, db *gorm.DB, slug string) (*domain.BlogPost, error) {
	var p domain.BlogPost
	if err := db.WithContext(ctx).Where("slug = ?", slug).First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// DeleteBlogPost removes a blog post permanently.
func DeleteBlogPost(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).Where("id = ?", id).Delete(&domain.BlogPost{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// CountPublishedPosts returns the number of published posts, optionally
// restricted to one city tag.
func CountPublishedPosts(ctx context.Context, db *gorm.DB, city string) (int64, error) {
	var total int64
	q := db.WithContext(ctx).Model(&domain.BlogPost{}).Where("published = ?", true)
	if city != "" {
		q = q.Where("city = ?", city)
	}
	err := q.Count(&total).Error
	return total, err
}

// ListPublishedPosts returns a page of published posts, most recently
// published first, optionally restricted to one city tag. limit <= 0 returns
// every matching post.
func ListPublishedPosts(ctx context.Context, db *gorm.DB, city string, offset, limit int) ([]domain.BlogPost, error) {
	var out []domain.BlogPost
	q := db.WithContext(ctx).Where("published = ?", true)
	if city != "" {
		q = q.Where("city = ?", city)
	}
	q = q.Order(publishedOrder)
	if limit > 0 {
		q = q.Offset(offset).Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}
