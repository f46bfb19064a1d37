package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/vadssync/vadssync/internal/config"
	"github.com/vadssync/vadssync/internal/domain/vocab"
	"github.com/vadssync/vadssync/internal/platform/middleware"
)

const (
	documentReadTimeout = 30 * time.Second
	shutdownTimeout     = 10 * time.Second
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve indexed documents and run operations over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd)
		},
	}
	config.RegisterServeFlags(cmd.Flags())
	return cmd
}

func runServer(cmd *cobra.Command) error {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := newLogger(cfg, os.Stdout)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	e := a.echo()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})
	if cfg.SyncInterval > 0 {
		g.Go(func() error {
			runSchedule(gctx, a.dispatcher, cfg.SyncInterval, cfg.Force, logger)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("server stopped with error")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}

// echo builds the HTTP server for the app.
func (a *app) echo() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(a.logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(a.logger))

	e.GET("/health", a.handler.Health)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})))

	apiV1 := e.Group("/api/v1")
	a.handler.RegisterRoutes(apiV1, middleware.RequestTimeout(documentReadTimeout))
	return e
}

// runSchedule runs sync_all every interval until ctx is done. A tick that
// finds another run in progress is skipped.
func runSchedule(ctx context.Context, d *vocab.Dispatcher, interval time.Duration, force bool, logger zerolog.Logger) {
	op := vocab.Operation{Name: vocab.OpSyncAll}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Info().Dur("interval", interval).Msg("scheduled sync enabled")
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, err := d.Run(ctx, op, force)
			switch {
			case err == nil:
			case errors.Is(err, vocab.ErrRunInProgress):
				logger.Warn().Msg("scheduled sync skipped, a run is already in progress")
			case ctx.Err() != nil:
				return
			default:
				logger.Error().Err(err).Msg("scheduled sync failed")
			}
		}
	}
}
