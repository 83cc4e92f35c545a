// Package services – PriceService
//
// PriceService validates and stores daily quotes and serves the display
// flow. Quotes are keyed by date; writing the same date twice overwrites the
// prices. Every successful write is published on the change feed so open
// displays refresh.
package services

import (
	"context"
	"errors"
	"math"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/tbourn/goldrate-backend/internal/changefeed"
	"github.com/tbourn/goldrate-backend/internal/domain"
	"github.com/tbourn/goldrate-backend/internal/observability"
	"github.com/tbourn/goldrate-backend/internal/repo"
)

// GramsPerSovereign is the traditional Tamil Nadu unit (one pavan).
const GramsPerSovereign = 8

const maxHistory = 365

// PriceService implements the quote use-cases.
type PriceService struct {
	DB   *gorm.DB
	Feed *changefeed.Broker

	// Now returns the current time; defaults to time.Now.
	Now func() time.Time
}

// NewPriceService constructs a PriceService.
func NewPriceService(db *gorm.DB, feed *changefeed.Broker) *PriceService {
	return &PriceService{DB: db, Feed: feed, Now: time.Now}
}

// PriceView is a quote plus the figures the site shows next to it.
type PriceView struct {
	domain.PriceQuote
	Sovereign22K float64  `json:"price_22k_per_8g"`
	Sovereign24K float64  `json:"price_24k_per_8g"`
	Change22K    *float64 `json:"change_22k,omitempty"`
	Change24K    *float64 `json:"change_24k,omitempty"`
	PreviousDate string   `json:"previous_date,omitempty"`
}

// Upsert validates and stores the quote for date.
func (s *PriceService) Upsert(ctx context.Context, date string, p22, p24 float64) (*domain.PriceQuote, error) {
	ctx, span := observability.StartSpan(ctx, "services/PriceService", "Upsert", attribute.String("date", date))
	var err error
	defer func() { observability.EndSpan(span, err) }()

	date, err = normalizeDate(date)
	if err != nil {
		return nil, err
	}
	if !validPrice(p22) || !validPrice(p24) {
		err = ErrInvalidPrice
		return nil, err
	}

	q, err := repo.UpsertQuote(ctx, s.DB, date, round2(p22), round2(p24))
	if err != nil {
		return nil, err
	}
	s.Feed.Publish(changefeed.Change{Table: changefeed.TablePrices, Op: changefeed.OpUpsert, Key: date})
	return q, nil
}

// Latest returns the most recent quote.
func (s *PriceService) Latest(ctx context.Context) (*domain.PriceQuote, error) {
	q, err := repo.LatestQuote(ctx, s.DB)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrQuoteNotFound
	}
	return q, err
}

// Get returns the quote for one date.
func (s *PriceService) Get(ctx context.Context, date string) (*domain.PriceQuote, error) {
	date, err := normalizeDate(date)
	if err != nil {
		return nil, err
	}
	q, err := repo.GetQuote(ctx, s.DB, date)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrQuoteNotFound
	}
	return q, err
}

// LastN returns up to n quotes, most recent first. n is clamped to [1, 365].
func (s *PriceService) LastN(ctx context.Context, n int) ([]domain.PriceQuote, error) {
	if n < 1 {
		n = 1
	}
	if n > maxHistory {
		n = maxHistory
	}
	return repo.ListQuotes(ctx, s.DB, n)
}

// View decorates q with per-sovereign prices and the change against the
// closest earlier quote. A failed lookup of the earlier quote leaves the
// change fields empty.
func (s *PriceService) View(ctx context.Context, q domain.PriceQuote) PriceView {
	v := PriceView{
		PriceQuote:   q,
		Sovereign22K: round2(q.Price22K * GramsPerSovereign),
		Sovereign24K: round2(q.Price24K * GramsPerSovereign),
	}
	prev, err := repo.QuoteBefore(ctx, s.DB, q.Date)
	if err != nil {
		return v
	}
	applyChange(&v, *prev)
	return v
}

// Views decorates a most-recent-first history. Each quote is compared with
// the next (older) one in the list; the oldest is looked up in the store.
func (s *PriceService) Views(ctx context.Context, qs []domain.PriceQuote) []PriceView {
	out := make([]PriceView, len(qs))
	for i, q := range qs {
		if i+1 < len(qs) {
			out[i] = PriceView{
				PriceQuote:   q,
				Sovereign22K: round2(q.Price22K * GramsPerSovereign),
				Sovereign24K: round2(q.Price24K * GramsPerSovereign),
			}
			applyChange(&out[i], qs[i+1])
			continue
		}
		out[i] = s.View(ctx, q)
	}
	return out
}

// Stats returns the row count and newest update time, for ETags.
func (s *PriceService) Stats(ctx context.Context) (int64, *time.Time, error) {
	return repo.PricesStats(ctx, s.DB)
}

// Today returns the current calendar date in Asia/Kolkata.
func (s *PriceService) Today() string {
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	return now().In(ist).Format(domain.DateLayout)
}

func applyChange(v *PriceView, prev domain.PriceQuote) {
	c22 := round2(v.Price22K - prev.Price22K)
	c24 := round2(v.Price24K - prev.Price24K)
	v.Change22K, v.Change24K = &c22, &c24
	v.PreviousDate = prev.Date
}

func normalizeDate(date string) (string, error) {
	date = strings.TrimSpace(date)
	t, err := time.Parse(domain.DateLayout, date)
	if err != nil {
		return "", ErrInvalidDate
	}
	return t.Format(domain.DateLayout), nil
}

func validPrice(p float64) bool {
	return p > 0 && !math.IsInf(p, 0) && !math.IsNaN(p)
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

var ist = loadIST()

func loadIST() *time.Location {
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		return time.FixedZone("IST", 5*3600+1800)
	}
	return loc
}
