package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tbourn/goldrate-backend/internal/config"
	"github.com/tbourn/goldrate-backend/internal/services"
)

type fakePublisher struct {
	mu     sync.Mutex
	runs   [][]string
	err    error
	panics bool
}

func (f *fakePublisher) PublishDaily(_ context.Context, cities []string) (services.DailyReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, cities)
	if f.panics {
		panic("boom")
	}
	return services.DailyReport{Date: "2025-01-15"}, f.err
}

func (f *fakePublisher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.runs)
}

type fakeDrainer struct{ calls atomic.Int32 }

func (f *fakeDrainer) ProcessAll(context.Context) (services.Summary, error) {
	f.calls.Add(1)
	return services.Summary{Attempted: 1, Completed: 1}, nil
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

func newTestScheduler(t *testing.T, pub Publisher, q QueueDrainer, c *clock) *Scheduler {
	t.Helper()
	s, err := New(config.SchedulerConfig{
		PublishAt:     "06:30",
		Timezone:      "Asia/Kolkata",
		Cities:        []string{"Chennai", "Madurai"},
		IndexInterval: 30 * time.Minute,
	}, pub, q)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.Now = c.Now
	return s
}

func TestNew_RejectsBadConfig(t *testing.T) {
	if _, err := New(config.SchedulerConfig{PublishAt: "6.30", Timezone: "UTC"}, nil, nil); err == nil {
		t.Fatalf("expected error for bad publish time")
	}
	if _, err := New(config.SchedulerConfig{PublishAt: "06:30", Timezone: "Mars/Olympus"}, nil, nil); err == nil {
		t.Fatalf("expected error for bad timezone")
	}
}

func TestNextOccurrence_IST(t *testing.T) {
	s := newTestScheduler(t, nil, nil, &clock{})
	ist := s.Location

	// 06:00 IST -> same day 06:30
	got := s.nextOccurrence(time.Date(2025, 1, 15, 0, 30, 0, 0, time.UTC))
	if want := time.Date(2025, 1, 15, 6, 30, 0, 0, ist); !got.Equal(want) {
		t.Fatalf("before publish time: got %v want %v", got, want)
	}
	// exactly 06:30 IST -> next day
	got = s.nextOccurrence(time.Date(2025, 1, 15, 1, 0, 0, 0, time.UTC))
	if want := time.Date(2025, 1, 16, 6, 30, 0, 0, ist); !got.Equal(want) {
		t.Fatalf("at publish time: got %v want %v", got, want)
	}
	// 23:00 UTC is already tomorrow in IST
	got = s.nextOccurrence(time.Date(2025, 1, 15, 23, 0, 0, 0, time.UTC))
	if want := time.Date(2025, 1, 16, 6, 30, 0, 0, ist); !got.Equal(want) {
		t.Fatalf("after midnight IST: got %v want %v", got, want)
	}
}

func TestRunDue_OncePerDayAndInterval(t *testing.T) {
	pub := &fakePublisher{}
	q := &fakeDrainer{}
	c := &clock{t: time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)} // 05:30 IST
	s := newTestScheduler(t, pub, q, c)
	ctx := context.Background()

	s.RunDue(ctx) // primes only
	if pub.count() != 0 || q.calls.Load() != 0 {
		t.Fatalf("nothing should run on the first tick")
	}

	c.Set(time.Date(2025, 1, 15, 0, 45, 0, 0, time.UTC)) // 06:15 IST
	s.RunDue(ctx)
	if pub.count() != 0 || q.calls.Load() != 1 {
		t.Fatalf("drain only: publish=%d drain=%d", pub.count(), q.calls.Load())
	}

	c.Set(time.Date(2025, 1, 15, 1, 0, 0, 0, time.UTC)) // 06:30 IST
	s.RunDue(ctx)
	s.RunDue(ctx)
	if pub.count() != 1 {
		t.Fatalf("publish should run once, got %d", pub.count())
	}
	if got := pub.runs[0]; len(got) != 2 || got[0] != "Chennai" {
		t.Fatalf("cities = %v", got)
	}
	if q.calls.Load() != 1 {
		t.Fatalf("drain interval not honored: %d", q.calls.Load())
	}

	c.Set(time.Date(2025, 1, 16, 1, 5, 0, 0, time.UTC))
	s.RunDue(ctx)
	if pub.count() != 2 || q.calls.Load() != 2 {
		t.Fatalf("next day: publish=%d drain=%d", pub.count(), q.calls.Load())
	}
	if want := time.Date(2025, 1, 17, 1, 0, 0, 0, time.UTC); !s.NextPublish().Equal(want) {
		t.Fatalf("NextPublish = %v", s.NextPublish())
	}
}

func TestRunDue_FailuresDoNotStopTheLoop(t *testing.T) {
	pub := &fakePublisher{err: errors.New("madurai failed"), panics: true}
	q := &fakeDrainer{}
	c := &clock{t: time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)}
	s := newTestScheduler(t, pub, q, c)
	ctx := context.Background()
	s.RunDue(ctx)

	c.Set(time.Date(2025, 1, 15, 2, 0, 0, 0, time.UTC))
	s.RunDue(ctx)
	if pub.count() != 1 || q.calls.Load() != 1 {
		t.Fatalf("drain must still run after a panicking publish: publish=%d drain=%d", pub.count(), q.calls.Load())
	}
}

func TestStartStop_DrainsOnTicker(t *testing.T) {
	q := &fakeDrainer{}
	s := &Scheduler{
		Queue:         q,
		PublishAt:     6 * time.Hour,
		IndexInterval: time.Millisecond,
		Tick:          5 * time.Millisecond,
	}
	s.Start(context.Background())

	deadline := time.Now().Add(2 * time.Second)
	for q.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	s.Stop()
	if q.calls.Load() == 0 {
		t.Fatalf("expected at least one drain")
	}
	after := q.calls.Load()
	time.Sleep(20 * time.Millisecond)
	if q.calls.Load() != after {
		t.Fatalf("drain ran after Stop")
	}
}
