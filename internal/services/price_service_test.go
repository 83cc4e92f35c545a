package services

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/tbourn/goldrate-backend/internal/changefeed"
)

func TestPriceService_Upsert_Validation(t *testing.T) {
	db := newSvcDB(t)
	s := NewPriceService(db, changefeed.New())
	ctx := context.Background()

	cases := []struct {
		name     string
		date     string
		p22, p24 float64
		want     error
	}{
		{"bad date", "15-01-2025", 1, 1, ErrInvalidDate},
		{"impossible date", "2025-02-30", 1, 1, ErrInvalidDate},
		{"zero 22k", "2025-01-15", 0, 1, ErrInvalidPrice},
		{"negative 24k", "2025-01-15", 1, -1, ErrInvalidPrice},
		{"NaN", "2025-01-15", math.NaN(), 1, ErrInvalidPrice},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := s.Upsert(ctx, tc.date, tc.p22, tc.p24); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
	if n, _, _ := s.Stats(ctx); n != 0 {
		t.Fatalf("validation failures must not write, got %d rows", n)
	}
}

func TestPriceService_Upsert_OverwritesAndPublishes(t *testing.T) {
	db := newSvcDB(t)
	feed := changefeed.New()
	got := collect(feed, changefeed.TablePrices)
	s := NewPriceService(db, feed)
	ctx := context.Background()

	if _, err := s.Upsert(ctx, " 2025-01-15 ", 10632, 11598); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	q, err := s.Upsert(ctx, "2025-01-15", 10650.555, 11600)
	if err != nil {
		t.Fatalf("Upsert overwrite: %v", err)
	}
	if q.Price22K != 10650.56 {
		t.Fatalf("price not rounded/overwritten: %v", q.Price22K)
	}
	if n, _, _ := s.Stats(ctx); n != 1 {
		t.Fatalf("expected one row per date, got %d", n)
	}
	if len(*got) != 2 || (*got)[0].Key != "2025-01-15" {
		t.Fatalf("change notifications = %+v", *got)
	}
}

func TestPriceService_ReadsAndViews(t *testing.T) {
	db := newSvcDB(t)
	s := NewPriceService(db, changefeed.New())
	ctx := context.Background()

	if _, err := s.Latest(ctx); !errors.Is(err, ErrQuoteNotFound) {
		t.Fatalf("expected ErrQuoteNotFound on empty table, got %v", err)
	}

	seedQuote(t, db, "2025-01-13", 10600, 11560)
	seedQuote(t, db, "2025-01-14", 10610, 11575)
	seedQuote(t, db, "2025-01-15", 10632, 11598)

	latest, err := s.Latest(ctx)
	if err != nil || latest.Date != "2025-01-15" {
		t.Fatalf("Latest = %+v, %v", latest, err)
	}
	if _, err := s.Get(ctx, "2025-01-01"); !errors.Is(err, ErrQuoteNotFound) {
		t.Fatalf("Get missing = %v", err)
	}

	v := s.View(ctx, *latest)
	if v.Sovereign22K != 85056 || v.Change22K == nil || *v.Change22K != 22 || v.PreviousDate != "2025-01-14" {
		t.Fatalf("View = %+v", v)
	}

	list, err := s.LastN(ctx, 0) // clamped to 1
	if err != nil || len(list) != 1 {
		t.Fatalf("LastN(0) = %d, %v", len(list), err)
	}
	list, _ = s.LastN(ctx, 1000)
	if len(list) != 3 || list[0].Date != "2025-01-15" {
		t.Fatalf("LastN(1000) = %+v", list)
	}
	views := s.Views(ctx, list)
	if views[0].Change24K == nil || *views[0].Change24K != 23 {
		t.Fatalf("views[0] change = %+v", views[0])
	}
	if views[2].Change22K != nil {
		t.Fatalf("oldest quote has no predecessor, got %+v", views[2])
	}
}

func TestPriceService_TodayUsesIST(t *testing.T) {
	s := &PriceService{Now: func() time.Time { return time.Date(2025, 1, 14, 20, 0, 0, 0, time.UTC) }}
	if got := s.Today(); got != "2025-01-15" {
		t.Fatalf("Today = %q; want 2025-01-15 (IST is UTC+5:30)", got)
	}
}
