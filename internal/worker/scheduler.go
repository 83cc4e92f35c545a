// Package worker runs the background jobs of the site: the daily blog
// publication run and the periodic indexing-queue drain.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tbourn/goldrate-backend/internal/config"
	"github.com/tbourn/goldrate-backend/internal/services"
)

// Publisher runs the daily publication for a list of cities.
type Publisher interface {
	PublishDaily(ctx context.Context, cities []string) (services.DailyReport, error)
}

// QueueDrainer processes every pending indexing entry.
type QueueDrainer interface {
	ProcessAll(ctx context.Context) (services.Summary, error)
}

// DefaultTick is how often the loop checks whether a job is due.
const DefaultTick = 30 * time.Second

// Scheduler triggers PublishDaily once per day at PublishAt (wall clock in
// Location) and ProcessAll every IndexInterval. Jobs run on the loop
// goroutine one at a time, so a slow publish delays the next drain instead
// of overlapping it.
type Scheduler struct {
	Publisher     Publisher
	Queue         QueueDrainer
	Cities        []string
	PublishAt     time.Duration // offset from local midnight
	Location      *time.Location
	IndexInterval time.Duration
	Tick          time.Duration

	Now func() time.Time

	mu          sync.Mutex
	nextPublish time.Time
	nextDrain   time.Time

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// New builds a Scheduler from configuration. Either job may be nil to
// disable it.
func New(cfg config.SchedulerConfig, pub Publisher, q QueueDrainer) (*Scheduler, error) {
	at, err := config.ParseClock(cfg.PublishAt)
	if err != nil {
		return nil, fmt.Errorf("scheduler: publish time %q: %w", cfg.PublishAt, err)
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("scheduler: timezone %q: %w", cfg.Timezone, err)
	}
	return &Scheduler{
		Publisher:     pub,
		Queue:         q,
		Cities:        cfg.Cities,
		PublishAt:     at,
		Location:      loc,
		IndexInterval: cfg.IndexInterval,
		Tick:          DefaultTick,
		Now:           time.Now,
	}, nil
}

// Start launches the loop. A publish time already passed today is not
// caught up; the first run is the next occurrence.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	s.prime(s.now())

	tick := s.Tick
	if tick <= 0 {
		tick = DefaultTick
	}
	log.Info().
		Time("next_publish", s.nextPublish).
		Dur("index_interval", s.IndexInterval).
		Strs("cities", s.Cities).
		Msg("scheduler: started")

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(tick)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.RunDue(ctx)
			}
		}
	}()
}

// Stop cancels the loop and waits for an in-flight job to return.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	log.Info().Msg("scheduler: stopped")
}

// RunDue runs every job whose time has come, publish first.
func (s *Scheduler) RunDue(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if s.nextPublish.IsZero() && s.nextDrain.IsZero() {
		s.primeLocked(now)
	}

	if s.Publisher != nil && !now.Before(s.nextPublish) {
		s.runPublish(ctx)
		s.nextPublish = s.nextOccurrence(now)
	}
	if ctx.Err() != nil {
		return
	}
	if s.Queue != nil && s.IndexInterval > 0 && !now.Before(s.nextDrain) {
		s.runDrain(ctx)
		s.nextDrain = s.now().Add(s.IndexInterval)
	}
}

// NextPublish reports when the publish job runs next.
func (s *Scheduler) NextPublish() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextPublish
}

func (s *Scheduler) runPublish(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("scheduler: publish run panicked")
		}
	}()
	rep, err := s.Publisher.PublishDaily(ctx, s.Cities)
	ev := log.Info()
	if err != nil {
		ev = log.Error().Err(err)
	}
	ev.Str("date", rep.Date).Int("cities", len(rep.Results)).Msg("scheduler: daily publish finished")
}

func (s *Scheduler) runDrain(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("scheduler: queue drain panicked")
		}
	}()
	sum, err := s.Queue.ProcessAll(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("scheduler: queue drain interrupted")
	}
	if sum.Attempted > 0 {
		log.Info().
			Int("attempted", sum.Attempted).
			Int("completed", sum.Completed).
			Int("failed", sum.Failed).
			Int("queue_only", sum.QueueOnly).
			Msg("scheduler: queue drained")
	}
}

func (s *Scheduler) prime(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.primeLocked(now)
}

func (s *Scheduler) primeLocked(now time.Time) {
	s.nextPublish = s.nextOccurrence(now)
	s.nextDrain = now.Add(s.IndexInterval)
}

// nextOccurrence returns the first PublishAt strictly after now.
func (s *Scheduler) nextOccurrence(now time.Time) time.Time {
	loc := s.Location
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	y, m, d := local.Date()
	at := time.Date(y, m, d, 0, 0, 0, 0, loc).Add(s.PublishAt)
	if !at.After(local) {
		at = time.Date(y, m, d+1, 0, 0, 0, 0, loc).Add(s.PublishAt)
	}
	return at
}

func (s *Scheduler) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
