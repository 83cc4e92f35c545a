// Package services – IndexingService
//
// IndexingService owns the indexing queue state machine:
//
//	pending ──notify ok──▶ completed
//	pending ──notify err─▶ failed (error recorded)
//
// Completed and failed are terminal for automatic processing; ProcessAll only
// touches pending entries. A failed entry can be re-attempted with an explicit
// Process call. Without an indexing credential every notification is
// queue-only: the entry stays pending and the queue-only message is recorded.
package services

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/tbourn/goldrate-backend/internal/changefeed"
	"github.com/tbourn/goldrate-backend/internal/domain"
	"github.com/tbourn/goldrate-backend/internal/indexing"
	"github.com/tbourn/goldrate-backend/internal/observability"
	"github.com/tbourn/goldrate-backend/internal/repo"
	"github.com/tbourn/goldrate-backend/internal/utils"
)

// IndexingService implements the queue use-cases.
type IndexingService struct {
	DB       *gorm.DB
	Notifier indexing.Notifier
	Feed     *changefeed.Broker

	// Delay separates consecutive upstream requests in ProcessAll.
	Delay time.Duration

	// Now returns the current time; defaults to time.Now.
	Now func() time.Time
}

// NewIndexingService constructs an IndexingService.
func NewIndexingService(db *gorm.DB, n indexing.Notifier, feed *changefeed.Broker, delay time.Duration) *IndexingService {
	return &IndexingService{DB: db, Notifier: n, Feed: feed, Delay: delay, Now: time.Now}
}

// Outcome is the result of processing one entry.
type Outcome struct {
	EntryID   string `json:"entry_id"`
	URL       string `json:"url"`
	Success   bool   `json:"success"`
	QueueOnly bool   `json:"queue_only,omitempty"`
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
}

// Summary aggregates a ProcessAll run.
type Summary struct {
	Attempted int       `json:"attempted"`
	Completed int       `json:"completed"`
	Failed    int       `json:"failed"`
	QueueOnly int       `json:"queue_only"`
	Outcomes  []Outcome `json:"outcomes"`
}

// Enqueue adds a pending entry for rawURL. When the URL already has a
// pending entry that entry is returned instead of a duplicate.
func (s *IndexingService) Enqueue(ctx context.Context, rawURL string) (*domain.IndexingQueueEntry, error) {
	ctx, span := observability.StartSpan(ctx, "services/IndexingService", "Enqueue", attribute.String("url", rawURL))
	var err error
	defer func() { observability.EndSpan(span, err) }()

	rawURL = strings.TrimSpace(rawURL)
	if !validURL(rawURL) {
		err = ErrInvalidURL
		return nil, err
	}
	if e, ferr := repo.FindPendingByURL(ctx, s.DB, rawURL); ferr == nil {
		return e, nil
	} else if !errors.Is(ferr, repo.ErrNotFound) {
		err = ferr
		return nil, err
	}

	e, err := repo.CreateQueueEntry(ctx, s.DB, rawURL)
	if err != nil {
		return nil, err
	}
	log.Info().Str("entry_id", e.ID).Str("url", e.URL).Msg("indexing: enqueued")
	s.Feed.Publish(changefeed.Change{Table: changefeed.TableQueue, Op: changefeed.OpUpsert, Key: e.ID})
	return e, nil
}

// Process notifies the indexing API about one entry and records the result.
// Upstream failures are reported in the Outcome, not as an error; the error
// return is reserved for lookup and store failures. Completed entries are
// left untouched.
func (s *IndexingService) Process(ctx context.Context, id string) (Outcome, error) {
	ctx, span := observability.StartSpan(ctx, "services/IndexingService", "Process", attribute.String("entry.id", id))
	var err error
	defer func() { observability.EndSpan(span, err) }()

	e, err := repo.GetQueueEntry(ctx, s.DB, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			err = ErrEntryNotFound
		}
		return Outcome{}, err
	}
	if e.Status == domain.IndexCompleted {
		observability.ObserveIndexing(observability.ResultSkipped)
		return Outcome{EntryID: e.ID, URL: e.URL, Success: true, Status: e.Status, Message: "already completed"}, nil
	}
	return s.process(ctx, e)
}

func (s *IndexingService) process(ctx context.Context, e *domain.IndexingQueueEntry) (Outcome, error) {
	out := Outcome{EntryID: e.ID, URL: e.URL}
	lg := log.With().Str("entry_id", e.ID).Str("url", e.URL).Logger()

	res, nerr := s.notify(ctx, e.URL)
	var (
		status    string
		msg       string
		completed *time.Time
	)
	switch {
	case nerr != nil:
		status, msg = domain.IndexFailed, nerr.Error()
		out.Success = false
		observability.ObserveIndexing(observability.ResultFailure)
		lg.Warn().Err(nerr).Msg("indexing: request failed")
	case res.QueueOnly:
		// a failed entry never goes back to pending
		status, msg = domain.IndexPending, res.Message
		if e.Status == domain.IndexFailed {
			status = domain.IndexFailed
		}
		out.Success, out.QueueOnly = true, true
		observability.ObserveIndexing(observability.ResultQueueOnly)
		lg.Info().Str("status", status).Msg("indexing: queue-only mode, status unchanged")
	default:
		now := s.now().UTC()
		status, completed = domain.IndexCompleted, &now
		msg = ""
		out.Success = true
		observability.ObserveIndexing(observability.ResultSuccess)
		lg.Info().Msg("indexing: completed")
	}
	out.Status = status
	out.Message = msg
	if res.Message != "" && out.Message == "" {
		out.Message = res.Message
	}

	if err := repo.MarkQueueEntry(ctx, s.DB, e.ID, status, msg, completed); err != nil {
		return out, err
	}
	s.Feed.Publish(changefeed.Change{Table: changefeed.TableQueue, Op: changefeed.OpUpsert, Key: e.ID})
	return out, nil
}

// notify converts a nil Notifier and notifier panics into ordinary errors so
// one entry can never abort a batch.
func (s *IndexingService) notify(ctx context.Context, u string) (res indexing.Result, err error) {
	if s.Notifier == nil {
		return indexing.Result{Success: true, QueueOnly: true, Message: indexing.QueueOnlyMessage}, nil
	}
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: notifier panic: %v", indexing.ErrUpstream, r)
		}
	}()
	return s.Notifier.Notify(ctx, u)
}

// ProcessAll processes every currently-pending entry, oldest first. Each
// entry's failure is recorded and the run continues; Delay is waited between
// upstream requests. Cancelling ctx stops the run between entries.
func (s *IndexingService) ProcessAll(ctx context.Context) (Summary, error) {
	ctx, span := observability.StartSpan(ctx, "services/IndexingService", "ProcessAll")
	var err error
	defer func() { observability.EndSpan(span, err) }()

	pending, err := repo.ListQueueEntries(ctx, s.DB, domain.IndexPending, 0, 0)
	if err != nil {
		return Summary{}, err
	}

	sum := Summary{Outcomes: make([]Outcome, 0, len(pending))}
	sentPrev := false
	for i := range pending {
		if sentPrev && s.Delay > 0 {
			if err = sleepCtx(ctx, s.Delay); err != nil {
				break
			}
		}
		if err = ctx.Err(); err != nil {
			break
		}

		out, perr := s.process(ctx, &pending[i])
		sum.Attempted++
		if perr != nil {
			// store failure for this entry; record and move on
			out.Success = false
			if out.Message == "" {
				out.Message = perr.Error()
			}
			log.Error().Err(perr).Str("entry_id", pending[i].ID).Msg("indexing: could not record outcome")
		}
		switch {
		case out.QueueOnly:
			sum.QueueOnly++
		case out.Success:
			sum.Completed++
		default:
			sum.Failed++
		}
		sum.Outcomes = append(sum.Outcomes, out)
		sentPrev = !out.QueueOnly
	}

	log.Info().
		Int("attempted", sum.Attempted).
		Int("completed", sum.Completed).
		Int("failed", sum.Failed).
		Int("queue_only", sum.QueueOnly).
		Msg("indexing: run finished")
	return sum, err
}

// List returns a page of entries, optionally filtered by status.
func (s *IndexingService) List(ctx context.Context, status string, page, pageSize int) ([]domain.IndexingQueueEntry, int64, error) {
	switch status {
	case "", domain.IndexPending, domain.IndexCompleted, domain.IndexFailed:
	default:
		return nil, 0, fmt.Errorf("unknown status %q", status)
	}
	page, pageSize = utils.NormalizePage(page, pageSize)

	total, err := repo.CountQueueEntries(ctx, s.DB, status)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []domain.IndexingQueueEntry{}, 0, nil
	}
	items, err := repo.ListQueueEntries(ctx, s.DB, status, utils.Offset(page, pageSize), pageSize)
	return items, total, err
}

// Get returns one entry.
func (s *IndexingService) Get(ctx context.Context, id string) (*domain.IndexingQueueEntry, error) {
	e, err := repo.GetQueueEntry(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrEntryNotFound
	}
	return e, err
}

func (s *IndexingService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func validURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

