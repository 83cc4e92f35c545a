// Package services – PublishService
//
// PublishService runs the blog publication pipeline for one city and one
// quote:
//
//  1. generate a post from the quote (external AI provider)
//  2. decode and validate the structured response
//  3. derive the slug {city}-gold-rate-{YYYY-MM-DD}
//  4. upsert the post on slug as published
//  5. enqueue {SiteURL}/blog/{slug} for indexing
//
// Steps 1–2 fail atomically: nothing is stored. Once the post is stored an
// enqueue failure is reported in the result but does not roll the post back.
// Re-running for the same city and date overwrites the existing post.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"

	"github.com/tbourn/goldrate-backend/internal/ai"
	"github.com/tbourn/goldrate-backend/internal/changefeed"
	"github.com/tbourn/goldrate-backend/internal/cities"
	"github.com/tbourn/goldrate-backend/internal/domain"
	"github.com/tbourn/goldrate-backend/internal/observability"
	"github.com/tbourn/goldrate-backend/internal/repo"
)

// Regenerator rebuilds the stored site files.
type Regenerator interface {
	RegenerateAll(ctx context.Context) error
}

// PublishService implements the publication pipeline.
type PublishService struct {
	DB        *gorm.DB
	Generator ai.Generator
	Cities    *cities.Catalogue
	Indexer   Enqueuer
	SiteFiles Regenerator
	Feed      *changefeed.Broker
	SiteURL   string

	Now func() time.Time
}

// NewPublishService constructs a PublishService.
func NewPublishService(db *gorm.DB, gen ai.Generator, cat *cities.Catalogue, idx Enqueuer, sf Regenerator, feed *changefeed.Broker, siteURL string) *PublishService {
	return &PublishService{
		DB:        db,
		Generator: gen,
		Cities:    cat,
		Indexer:   idx,
		SiteFiles: sf,
		Feed:      feed,
		SiteURL:   strings.TrimRight(siteURL, "/"),
		Now:       time.Now,
	}
}

// PublishResult describes one successful run.
type PublishResult struct {
	Post         *domain.BlogPost `json:"post"`
	URL          string           `json:"url"`
	QueueEntryID string           `json:"queue_entry_id,omitempty"`
	EnqueueError string           `json:"enqueue_error,omitempty"`
}

// CityResult is one city's line in a daily report.
type CityResult struct {
	City  string `json:"city"`
	Slug  string `json:"slug,omitempty"`
	Error string `json:"error,omitempty"`
}

// DailyReport summarizes PublishDaily.
type DailyReport struct {
	Date    string       `json:"date"`
	Results []CityResult `json:"results"`
}

// PostSlug returns the deterministic slug for city and date.
func PostSlug(city, date string) string {
	return cities.Slug(city) + "-gold-rate-" + date
}

// PostURL returns the canonical URL of a blog post.
func PostURL(siteURL, slug string) string {
	return strings.TrimRight(siteURL, "/") + "/blog/" + slug
}

// Publish runs the pipeline for city with quote q and regenerates the site
// files afterwards.
func (s *PublishService) Publish(ctx context.Context, city string, q domain.PriceQuote) (*PublishResult, error) {
	res, err := s.publish(ctx, city, q)
	if err != nil {
		return nil, err
	}
	s.regenerate(ctx)
	return res, nil
}

// PublishForDate publishes city using the stored quote for date, or the
// latest quote when date is empty.
func (s *PublishService) PublishForDate(ctx context.Context, city, date string) (*PublishResult, error) {
	q, err := s.quote(ctx, date)
	if err != nil {
		return nil, err
	}
	return s.Publish(ctx, city, *q)
}

// PublishDaily publishes every city in order using the latest quote. A
// failing city is recorded and the next one still runs; the returned error
// joins every city failure.
func (s *PublishService) PublishDaily(ctx context.Context, cityNames []string) (DailyReport, error) {
	ctx, span := observability.StartSpan(ctx, "services/PublishService", "PublishDaily", attribute.Int("cities", len(cityNames)))
	var err error
	defer func() { observability.EndSpan(span, err) }()

	q, err := s.quote(ctx, "")
	if err != nil {
		return DailyReport{}, err
	}

	rep := DailyReport{Date: q.Date, Results: make([]CityResult, 0, len(cityNames))}
	var errs []error
	published := 0
	for _, city := range cityNames {
		if cerr := ctx.Err(); cerr != nil {
			errs = append(errs, cerr)
			break
		}
		r, perr := s.publish(ctx, city, *q)
		if perr != nil {
			rep.Results = append(rep.Results, CityResult{City: city, Error: perr.Error()})
			errs = append(errs, fmt.Errorf("%s: %w", city, perr))
			continue
		}
		published++
		rep.Results = append(rep.Results, CityResult{City: r.Post.City, Slug: r.Post.Slug})
	}
	if published > 0 {
		s.regenerate(ctx)
	}
	err = errors.Join(errs...)
	return rep, err
}

func (s *PublishService) publish(ctx context.Context, city string, q domain.PriceQuote) (*PublishResult, error) {
	ctx, span := observability.StartSpan(ctx, "services/PublishService", "Publish",
		attribute.String("city", city), attribute.String("date", q.Date))
	var err error
	defer func() { observability.EndSpan(span, err) }()

	lg := log.With().Str("city", city).Str("date", q.Date).Logger()

	district, ok := s.lookup(city)
	if !ok {
		err = ErrUnknownCity
		return nil, err
	}
	if _, derr := normalizeDate(q.Date); derr != nil {
		err = derr
		return nil, err
	}
	if !validPrice(q.Price22K) || !validPrice(q.Price24K) {
		err = ErrInvalidPrice
		return nil, err
	}

	req := ai.PostRequest{City: district.Name, Date: q.Date, Price22K: q.Price22K, Price24K: q.Price24K}
	if prev, perr := repo.QuoteBefore(ctx, s.DB, q.Date); perr == nil {
		req.Change22K = round2(q.Price22K - prev.Price22K)
		req.Change24K = round2(q.Price24K - prev.Price24K)
	}

	if s.Generator == nil {
		err = fmt.Errorf("%w: %w", ErrGeneration, ai.ErrNotConfigured)
		observability.ObservePublish(observability.ResultFailure)
		return nil, err
	}
	gen, gerr := s.Generator.GeneratePost(ctx, req)
	if gerr != nil {
		if errors.Is(gerr, ai.ErrMalformedResponse) {
			err = fmt.Errorf("%w: %w: %w", ErrGeneration, ErrMalformedUpstream, gerr)
			observability.ObservePublish(observability.ResultMalformed)
		} else {
			err = fmt.Errorf("%w: %w", ErrGeneration, gerr)
			observability.ObservePublish(observability.ResultFailure)
		}
		lg.Error().Err(gerr).Msg("publish: generation failed, nothing stored")
		return nil, err
	}

	now := s.now().UTC()
	slug := PostSlug(district.Slug, q.Date)
	post := &domain.BlogPost{
		Title:          gen.Title,
		Slug:           slug,
		Content:        gen.Content,
		Excerpt:        gen.Excerpt,
		SEOTitle:       gen.SEOTitle,
		SEODescription: gen.SEODescription,
		Keywords:       normalizeKeywords(gen.SEOKeywords),
		City:           district.Name,
		PriceDate:      q.Date,
		Price22K:       q.Price22K,
		Price24K:       q.Price24K,
		Published:      true,
		PublishedAt:    &now,
	}
	stored, err := repo.UpsertBlogPost(ctx, s.DB, post)
	if err != nil {
		observability.ObservePublish(observability.ResultFailure)
		return nil, err
	}
	observability.ObservePublish(observability.ResultSuccess)
	s.Feed.Publish(changefeed.Change{Table: changefeed.TablePosts, Op: changefeed.OpUpsert, Key: slug})
	lg.Info().Str("slug", slug).Msg("publish: post stored")

	res := &PublishResult{Post: stored, URL: PostURL(s.SiteURL, slug)}
	if s.Indexer != nil {
		e, qerr := s.Indexer.Enqueue(ctx, res.URL)
		if qerr != nil {
			res.EnqueueError = qerr.Error()
			lg.Warn().Err(qerr).Str("url", res.URL).Msg("publish: enqueue failed, post kept")
		} else {
			res.QueueEntryID = e.ID
		}
	}
	return res, nil
}

func (s *PublishService) quote(ctx context.Context, date string) (*domain.PriceQuote, error) {
	var (
		q   *domain.PriceQuote
		err error
	)
	if strings.TrimSpace(date) == "" {
		q, err = repo.LatestQuote(ctx, s.DB)
	} else {
		if date, err = normalizeDate(date); err != nil {
			return nil, err
		}
		q, err = repo.GetQuote(ctx, s.DB, date)
	}
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrQuoteNotFound
	}
	return q, err
}

func (s *PublishService) lookup(city string) (cities.District, bool) {
	if s.Cities == nil {
		return cities.Default().Lookup(city)
	}
	return s.Cities.Lookup(city)
}

func (s *PublishService) regenerate(ctx context.Context) {
	if s.SiteFiles == nil {
		return
	}
	if err := s.SiteFiles.RegenerateAll(ctx); err != nil {
		log.Warn().Err(err).Msg("publish: site file regeneration failed")
	}
}

func (s *PublishService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
