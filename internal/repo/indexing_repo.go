// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the indexing
// queue (table indexing_queue).
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/goldrate-backend/internal/domain"
)

// CreateQueueEntry inserts a pending entry for url.
func CreateQueueEntry(ctx context.Context, db *gorm.DB, url string) (*domain.IndexingQueueEntry, error) {
	now := time.Now().UTC()
	e := &domain.IndexingQueueEntry{
		ID:          uuid.NewString(),
		URL:         url,
		Status:      domain.IndexPending,
		RequestedAt: now,
		UpdatedAt:   now,
	}
	if err := db.WithContext(ctx).Create(e).Error; err != nil {
		return nil, err
	}
	return e, nil
}

// GetQueueEntry fetches an entry by ID.
func GetQueueEntry(ctx context.Context, db *gorm.DB, id string) (*domain.IndexingQueueEntry, error) {
	var e domain.IndexingQueueEntry
	if err := db.WithContext(ctx).Where("id = ?", id).First(&e).Error; err != nil {
		return nil, err
	}
	return &e, nil
}

// FindPendingByURL returns the oldest pending entry for url, or ErrNotFound.
func FindPendingByURL(ctx context.Context, db *gorm.DB, url string) (*domain.IndexingQueueEntry, error) {
	var e domain.IndexingQueueEntry
	err := db.WithContext(ctx).
		Where("url = ? AND status = ?", url, domain.IndexPending).
		Order("requested_at asc").
		First(&e).Error
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// ListQueueEntries returns entries oldest first, optionally filtered by
// status. limit <= 0 returns every matching entry.
func ListQueueEntries(ctx context.Context, db *gorm.DB, status string, offset, limit int) ([]domain.IndexingQueueEntry, error) {
	var out []domain.IndexingQueueEntry
	q := db.WithContext(ctx)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	q = q.Order("requested_at asc, id asc")
	if limit > 0 {
		q = q.Offset(offset).Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}

// CountQueueEntries counts entries, optionally filtered by status.
func CountQueueEntries(ctx context.Context, db *gorm.DB, status string) (int64, error) {
	var total int64
	q := db.WithContext(ctx).Model(&domain.IndexingQueueEntry{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	err := q.Count(&total).Error
	return total, err
}

// MarkQueueEntry records the outcome of one processing attempt: the new
// status, the error message (empty clears it), and completedAt for terminal
// success. The attempts counter is incremented atomically.
func MarkQueueEntry(ctx context.Context, db *gorm.DB, id, status, errMsg string, completedAt *time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.IndexingQueueEntry{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":        status,
			"error_message": errMsg,
			"completed_at":  completedAt,
			"attempts":      gorm.Expr("attempts + 1"),
			"updated_at":    time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
