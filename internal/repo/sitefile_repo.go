// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for generated site
// files (table site_files) and ad slot counters (table ad_slots).
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/goldrate-backend/internal/domain"
)

// PutSiteFile stores a generated artifact, replacing any previous version.
func PutSiteFile(ctx context.Context, db *gorm.DB, name, contentType, content string) error {
	f := &domain.SiteFile{
		Name:        name,
		ContentType: contentType,
		Content:     content,
		UpdatedAt:   time.Now().UTC(),
	}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoUpdates: clause.AssignmentColumns([]string{"content_type", "content", "updated_at"}),
		}).
		Create(f).Error
}

// GetSiteFile fetches a stored artifact by name.
func GetSiteFile(ctx context.Context, db *gorm.DB, name string) (*domain.SiteFile, error) {
	var f domain.SiteFile
	if err := db.WithContext(ctx).Where("name = ?", name).First(&f).Error; err != nil {
		return nil, err
	}
	return &f, nil
}

// EnsureAdSlot creates the slot when missing; existing counters are untouched.
func EnsureAdSlot(ctx context.Context, db *gorm.DB, id, name string) error {
	s := &domain.AdSlot{ID: id, Name: name, UpdatedAt: time.Now().UTC()}
	return db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(s).Error
}

// IncrementAdCounter atomically adds one to column ("impressions" or
// "clicks") of slot id.
func IncrementAdCounter(ctx context.Context, db *gorm.DB, id, column string) error {
	res := db.WithContext(ctx).
		Model(&domain.AdSlot{}).
		Where("id = ?", id).
		Updates(map[string]any{
			column:       gorm.Expr(column + " + 1"),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// GetAdSlot fetches a slot with its counters.
func GetAdSlot(ctx context.Context, db *gorm.DB, id string) (*domain.AdSlot, error) {
	var s domain.AdSlot
	if err := db.WithContext(ctx).Where("id = ?", id).First(&s).Error; err != nil {
		return nil, err
	}
	return &s, nil
}
