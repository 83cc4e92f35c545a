// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for daily gold
// price quotes (table gold_prices).
//
// Quotes are keyed by calendar date: UpsertQuote inserts a new row or
// overwrites the prices of an existing one, so at most one quote exists per
// date. Quotes are never deleted.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/goldrate-backend/internal/domain"
)

// UpsertQuote inserts or overwrites the quote for q.Date and returns the
// persisted row.
func UpsertQuote(ctx context.Context, db *gorm.DB, date string, p22, p24 float64) (*domain.PriceQuote, error) {
	now := time.Now().UTC()
	q := &domain.PriceQuote{
		Date:      date,
		Price22K:  p22,
		Price24K:  p24,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "date"}},
			DoUpdates: clause.AssignmentColumns([]string{"price_22k", "price_24k", "updated_at"}),
		}).
		Create(q).Error
	if err != nil {
		return nil, err
	}
	return GetQuote(ctx, db, date)
}

// GetQuote fetches the quote for a calendar date, or ErrNotFound.
func GetQuote(ctx context.Context, db *gorm.DB, date string) (*domain.PriceQuote, error) {
	var q domain.PriceQuote
	if err := db.WithContext(ctx).Where("date = ?", date).First(&q).Error; err != nil {
		return nil, err
	}
	return &q, nil
}

// LatestQuote returns the most recent quote by date, or ErrNotFound when the
// table is empty.
func LatestQuote(ctx context.Context, db *gorm.DB) (*domain.PriceQuote, error) {
	var q domain.PriceQuote
	if err := db.WithContext(ctx).Order("date desc").First(&q).Error; err != nil {
		return nil, err
	}
	return &q, nil
}

// ListQuotes returns the last n quotes, most recent first.
func ListQuotes(ctx context.Context, db *gorm.DB, n int) ([]domain.PriceQuote, error) {
	var out []domain.PriceQuote
	q := db.WithContext(ctx).Order("date desc")
	if n > 0 {
		q = q.Limit(n)
	}
	err := q.Find(&out).Error
	return out, err
}

// QuoteBefore returns the latest quote strictly before date, or ErrNotFound.
func QuoteBefore(ctx context.Context, db *gorm.DB, date string) (*domain.PriceQuote, error) {
	var q domain.PriceQuote
	err := db.WithContext(ctx).
		Where("date < ?", date).
		Order("date desc").
		First(&q).Error
	if err != nil {
		return nil, err
	}
	return &q, nil
}
