// Package domain defines the persistence models for gold price quotes,
// articles, generated blog posts, the indexing queue, generated site files,
// and ad slots. These types are mapped with GORM and form the core data layer
// of the site backend.
package domain

import (
	"time"
)

// DateLayout is the canonical calendar-date format used for quote keys and slugs.
const DateLayout = "2006-01-02"

// PriceQuote is one day's gold price record for Tamil Nadu.
//
// Fields:
//   - Date: calendar date (YYYY-MM-DD); primary key, so at most one quote per date.
//   - Price22K / Price24K: rupees per gram, always positive (DB check constraint).
//   - UpdatedAt: last upsert time.
type PriceQuote struct {
	Date      string    `json:"date"               gorm:"type:char(10);primaryKey"`
	Price22K  float64   `json:"price_22k_per_gram" gorm:"column:price_22k;not null;check:price_22k > 0"`
	Price24K  float64   `json:"price_24k_per_gram" gorm:"column:price_24k;not null;check:price_24k > 0"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for PriceQuote.
func (PriceQuote) TableName() string { return "gold_prices" }

// Day parses Date in UTC. The zero time is returned for malformed values.
func (q PriceQuote) Day() time.Time {
	t, _ := time.Parse(DateLayout, q.Date)
	return t
}

// Article is a manually written content item.
//
// Keywords is a comma-separated tag list used by the related-content scorer;
// City optionally ties the article to a district page.
type Article struct {
	ID          string     `json:"id"                     gorm:"type:char(36);primaryKey"`
	Title       string     `json:"title"                  gorm:"type:varchar(255);not null"`
	Slug        string     `json:"slug"                   gorm:"type:varchar(255);not null;uniqueIndex:ux_articles_slug"`
	Content     string     `json:"content"                gorm:"type:text;not null"`
	Excerpt     string     `json:"excerpt"                gorm:"type:text"`
	Author      string     `json:"author,omitempty"       gorm:"type:varchar(128)"`
	City        string     `json:"city,omitempty"         gorm:"type:varchar(64);index"`
	Keywords    string     `json:"keywords,omitempty"     gorm:"type:text"`
	Published   bool       `json:"published"              gorm:"not null;default:false;index:idx_articles_pub,priority:1"`
	PublishedAt *time.Time `json:"published_at,omitempty" gorm:"index:idx_articles_pub,priority:2"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// TableName returns the database table name for Article.
func (Article) TableName() string { return "articles" }

// RelatedID identifies the article for related-content exclusion.
func (a Article) RelatedID() string { return a.ID }

// RelatedKeywords exposes the keyword tag to the related-content scorer.
func (a Article) RelatedKeywords() string { return a.Keywords }

// BlogPost is a content item produced by the publication pipeline. It keeps
// the SEO metadata returned by the generator and the price snapshot it was
// written from.
type BlogPost struct {
	ID             string     `json:"id"                     gorm:"type:char(36);primaryKey"`
	Title          string     `json:"title"                  gorm:"type:varchar(255);not null"`
	Slug           string     `json:"slug"                   gorm:"type:varchar(255);not null;uniqueIndex:ux_blog_posts_slug"`
	Content        string     `json:"content"                gorm:"type:text;not null"`
	Excerpt        string     `json:"excerpt"                gorm:"type:text"`
	SEOTitle       string     `json:"seo_title"              gorm:"type:varchar(255)"`
	SEODescription string     `json:"seo_description"        gorm:"type:text"`
	Keywords       string     `json:"keywords,omitempty"     gorm:"type:text"`
	City           string     `json:"city,omitempty"         gorm:"type:varchar(64);index"`
	PriceDate      string     `json:"price_date,omitempty"   gorm:"type:char(10)"`
	Price22K       float64    `json:"price_22k,omitempty"    gorm:"column:price_22k"`
	Price24K       float64    `json:"price_24k,omitempty"    gorm:"column:price_24k"`
	Published      bool       `json:"published"              gorm:"not null;default:false;index:idx_blog_posts_pub,priority:1"`
	PublishedAt    *time.Time `json:"published_at,omitempty" gorm:"index:idx_blog_posts_pub,priority:2"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// TableName returns the database table name for BlogPost.
func (BlogPost) TableName() string { return "automated_blog_posts" }

// RelatedID identifies the post for related-content exclusion.
func (p BlogPost) RelatedID() string { return p.ID }

// RelatedKeywords exposes the keyword tag to the related-content scorer.
func (p BlogPost) RelatedKeywords() string { return p.Keywords }

// Indexing queue statuses. Pending is the only initial state; completed and
// failed are terminal for automatic processing.
const (
	IndexPending   = "pending"
	IndexCompleted = "completed"
	IndexFailed    = "failed"
)

// IndexingQueueEntry is a request to notify a search engine about a URL.
type IndexingQueueEntry struct {
	ID           string     `json:"id"                      gorm:"type:char(36);primaryKey"`
	URL          string     `json:"url"                     gorm:"type:text;not null;index"`
	Status       string     `json:"status"                  gorm:"type:varchar(16);not null;default:'pending';index;check:status IN ('pending','completed','failed')"`
	Attempts     int        `json:"attempts"                gorm:"not null;default:0"`
	ErrorMessage string     `json:"error_message,omitempty" gorm:"type:text"`
	RequestedAt  time.Time  `json:"requested_at"            gorm:"not null;index"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// TableName returns the database table name for IndexingQueueEntry.
func (IndexingQueueEntry) TableName() string { return "indexing_queue" }

// SiteFile is a generated artifact (sitemap.xml, robots.txt, rss.xml,
// llms.txt) stored wholesale and served verbatim.
type SiteFile struct {
	Name        string    `json:"name"         gorm:"type:varchar(64);primaryKey"`
	ContentType string    `json:"content_type" gorm:"type:varchar(64);not null"`
	Content     string    `json:"content"      gorm:"type:text;not null"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName returns the database table name for SiteFile.
func (SiteFile) TableName() string { return "site_files" }

// AdSlot tracks impression and click counters for a placement.
type AdSlot struct {
	ID          string    `json:"id"          gorm:"type:varchar(64);primaryKey"`
	Name        string    `json:"name"        gorm:"type:varchar(128);not null"`
	Impressions int64     `json:"impressions" gorm:"not null;default:0"`
	Clicks      int64     `json:"clicks"      gorm:"not null;default:0"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TableName returns the database table name for AdSlot.
func (AdSlot) TableName() string { return "ad_slots" }
