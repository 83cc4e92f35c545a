package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tbourn/goldrate-backend/docs"
	httpapi "github.com/tbourn/goldrate-backend/internal/http"
	"github.com/tbourn/goldrate-backend/internal/worker"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and, when enabled, the publishing scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := bootstrap(ctx)
		if err != nil {
			return err
		}
		defer func() {
			cctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			a.Close(cctx)
		}()

		// Rebuild crawler files so a fresh database serves them immediately.
		if err := a.svc.SiteFiles.RegenerateAll(ctx); err != nil {
			log.Warn().Err(err).Msg("initial site file generation failed")
		}

		if a.cfg.Scheduler.Enabled {
			s, err := worker.New(a.cfg.Scheduler, a.svc.Publish, a.svc.Indexing)
			if err != nil {
				return err
			}
			s.Start(ctx)
			defer s.Stop()
			log.Info().Time("next_publish", s.NextPublish()).Strs("cities", a.cfg.Scheduler.Cities).Msg("scheduler started")
		}

		gin.SetMode(a.cfg.GinMode)
		r := gin.New()
		docs.SwaggerInfo.Version = version
		httpapi.RegisterRoutes(r, a.svc, a.cfg)

		srv := &http.Server{
			Addr:              ":" + a.cfg.Port,
			Handler:           r,
			ReadTimeout:       a.cfg.ReadTimeout,
			ReadHeaderTimeout: a.cfg.ReadHeaderTimeout,
			WriteTimeout:      a.cfg.WriteTimeout,
			IdleTimeout:       a.cfg.IdleTimeout,
			MaxHeaderBytes:    a.cfg.MaxHeaderBytes,
		}

		errCh := make(chan error, 1)
		go func() {
			log.Info().Str("addr", srv.Addr).Str("api", a.cfg.APIBasePath).Msg("server listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
			close(errCh)
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		log.Info().Msg("shutting down server")
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(sctx); err != nil {
			return err
		}
		log.Info().Msg("server exited")
		return nil
	},
}
