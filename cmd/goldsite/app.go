package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/goldrate-backend/internal/ai"
	"github.com/tbourn/goldrate-backend/internal/changefeed"
	"github.com/tbourn/goldrate-backend/internal/cities"
	"github.com/tbourn/goldrate-backend/internal/config"
	httpapi "github.com/tbourn/goldrate-backend/internal/http"
	"github.com/tbourn/goldrate-backend/internal/indexing"
	"github.com/tbourn/goldrate-backend/internal/observability"
	"github.com/tbourn/goldrate-backend/internal/repo"
	"github.com/tbourn/goldrate-backend/internal/services"
	"github.com/tbourn/goldrate-backend/internal/sysutil"
)

// app is the wired object graph shared by every command.
type app struct {
	cfg config.Config
	db  *gorm.DB
	svc httpapi.App

	shutdownOTel func(context.Context) error
}

// bootstrap loads configuration, opens and migrates the database, and
// constructs every service.
func bootstrap(ctx context.Context) (*app, error) {
	if err := godotenv.Load(flagEnvFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading %s: %w", flagEnvFile, err)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg.DBPath = sysutil.FirstNonEmpty(flagDB, cfg.DBPath)

	sysutil.SetupLogger(cfg.LogLevel, cfg.LogPretty, nil)

	shutdown, err := observability.SetupOTel(ctx, cfg.OTEL, version, cfg.SiteURL)
	if err != nil {
		return nil, fmt.Errorf("otel: %w", err)
	}

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open db %s: %w", cfg.DBPath, err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	cat, err := cities.Load(cfg.CitiesFile)
	if err != nil {
		return nil, err
	}

	var gen ai.Generator
	switch g, err := ai.New(cfg.AI); {
	case errors.Is(err, ai.ErrNotConfigured):
		log.Warn().Msg("AI_API_KEY not set; publishing will fail until it is configured")
	case err != nil:
		return nil, fmt.Errorf("ai: %w", err)
	default:
		gen = g
	}

	notifier := indexing.NewClient(cfg.Indexing)
	if !notifier.Configured() {
		log.Warn().Msg("INDEXING_TOKEN not set; indexing queue runs in queue-only mode")
	}

	feed := changefeed.New()
	idx := services.NewIndexingService(db, notifier, feed, cfg.Indexing.Delay)
	files := services.NewSiteFilesService(db, cat, feed, cfg.SiteURL, cfg.SiteName, cfg.RSSLimit)
	ads := &services.AdService{DB: db}
	if err := ads.EnsureSlots(ctx, services.DefaultAdSlots); err != nil {
		return nil, fmt.Errorf("ad slots: %w", err)
	}

	return &app{
		cfg: cfg,
		db:  db,
		svc: httpapi.App{
			DB:        db,
			Prices:    services.NewPriceService(db, feed),
			Content:   services.NewContentService(db, feed, idx, cfg.SiteURL),
			Indexing:  idx,
			Publish:   services.NewPublishService(db, gen, cat, idx, files, feed, cfg.SiteURL),
			SiteFiles: files,
			Ads:       ads,
			Feed:      feed,
			Cities:    cat,
		},
		shutdownOTel: shutdown,
	}, nil
}

// Close flushes traces and closes the database.
func (a *app) Close(ctx context.Context) {
	if a.shutdownOTel != nil {
		if err := a.shutdownOTel(ctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}
	if sqlDB, err := a.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
