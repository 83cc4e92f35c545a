// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate/statistics queries used
// primarily for conditional responses (ETag generation) in the HTTP layer.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/goldrate-backend/internal/domain"
)

// TableStats returns the row count and greatest updated_at of model's table,
// optionally narrowed by a where clause.
//
// When the (filtered) table is empty, the returned count is 0 and
// maxUpdatedAt is nil.
func TableStats(ctx context.Context, db *gorm.DB, model any, where string, args ...any) (count int64, maxUpdatedAt *time.Time, err error) {
	base := func() *gorm.DB {
		q := db.WithContext(ctx).Model(model)
		if where != "" {
			q = q.Where(where, args...)
		}
		return q
	}

	if err = base().Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest updated_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		UpdatedAt time.Time
	}
	if err = base().Select("updated_at").Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.UpdatedAt, nil
}

// PricesStats returns aggregate metadata for the gold_prices table.
func PricesStats(ctx context.Context, db *gorm.DB) (int64, *time.Time, error) {
	return TableStats(ctx, db, &domain.PriceQuote{}, "")
}

// PostsStats returns aggregate metadata for published blog posts.
func PostsStats(ctx context.Context, db *gorm.DB) (int64, *time.Time, error) {
	return TableStats(ctx, db, &domain.BlogPost{}, "published = ?", true)
}
