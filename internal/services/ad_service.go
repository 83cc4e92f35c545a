package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/tbourn/goldrate-backend/internal/domain"
	"github.com/tbourn/goldrate-backend/internal/repo"
)

// DefaultAdSlots are created at startup when missing.
var DefaultAdSlots = map[string]string{
	"header":  "Header banner",
	"sidebar": "Sidebar",
	"inline":  "In-article",
	"footer":  "Footer banner",
}

// AdService records ad impressions and clicks.
type AdService struct {
	DB *gorm.DB
}

// EnsureSlots creates each slot that does not exist yet.
func (s *AdService) EnsureSlots(ctx context.Context, slots map[string]string) error {
	for id, name := range slots {
		if err := repo.EnsureAdSlot(ctx, s.DB, id, name); err != nil {
			return err
		}
	}
	return nil
}

// RecordImpression increments the slot's impression counter.
func (s *AdService) RecordImpression(ctx context.Context, slotID string) error {
	return s.bump(ctx, slotID, "impressions")
}

// RecordClick increments the slot's click counter.
func (s *AdService) RecordClick(ctx context.Context, slotID string) error {
	return s.bump(ctx, slotID, "clicks")
}

// Slot returns the slot with its counters.
func (s *AdService) Slot(ctx context.Context, slotID string) (*domain.AdSlot, error) {
	a, err := repo.GetAdSlot(ctx, s.DB, strings.TrimSpace(slotID))
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrAdNotFound
	}
	return a, err
}

func (s *AdService) bump(ctx context.Context, slotID, column string) error {
	slotID = strings.TrimSpace(slotID)
	if slotID == "" {
		return ErrAdNotFound
	}
	err := repo.IncrementAdCounter(ctx, s.DB, slotID, column)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrAdNotFound
	}
	return err
}
