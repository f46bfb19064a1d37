package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vadssync/vadssync/internal/config"
	"github.com/vadssync/vadssync/internal/domain/vocab"
	"github.com/vadssync/vadssync/internal/platform/index"
	"github.com/vadssync/vadssync/internal/platform/telemetry"
	"github.com/vadssync/vadssync/internal/platform/vads"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "vads-sync",
		Short:        "Copy PHIN VADS vocabulary into a search index or CSV files",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cmd)
		},
	}
	cmd.SetUsageTemplate(cmd.UsageTemplate() + "\n" + vocab.OperationUsage)
	config.RegisterFlags(cmd.PersistentFlags())
	cmd.AddCommand(serveCmd())
	return cmd
}

func runOnce(cmd *cobra.Command) error {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger := newLogger(cfg, os.Stdout)

	op, err := vocab.ParseOperation(cfg.Operation)
	if errors.Is(err, vocab.ErrUnknownOperation) {
		fmt.Fprintln(cmd.ErrOrStderr(), err)
		_ = cmd.Usage()
		return nil
	}
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.dispatcher.Run(ctx, op, cfg.Force)
	if err != nil {
		logger.Error().Err(err).Str("operation", op.String()).Msg("operation failed")
		return err
	}
	logger.Info().Str("operation", op.String()).Interface("report", report).Msg("operation complete")
	return nil
}

func newLogger(cfg *config.Config, out io.Writer) zerolog.Logger {
	var logger zerolog.Logger
	if cfg.IsDev() {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339})
	} else {
		logger = zerolog.New(out)
	}
	return logger.Level(cfg.Level()).With().Timestamp().Logger()
}

// app holds the components shared by the one-shot and serve commands.
type app struct {
	store      index.Store
	dispatcher *vocab.Dispatcher
	handler    *vocab.Handler
	registry   *prometheus.Registry
	logger     zerolog.Logger
}

func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*app, error) {
	store, err := index.Open(ctx, cfg.IndexURL, index.Options{
		MaxConns: cfg.DBMaxConns,
		MinConns: cfg.DBMinConns,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("open index: %w", err)
	}

	client := vads.NewClient(cfg.VadsURL,
		vads.WithTimeout(cfg.HTTPTimeout),
		vads.WithLogger(logger),
	)

	opts := vocab.Options{
		Force:               cfg.Force,
		UseLatest:           cfg.UseLatest,
		PageSize:            cfg.PageSize,
		MaxValueSetConcepts: cfg.MaxVSConcepts,
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := telemetry.NewSyncMetrics(registry)

	service := vocab.NewService(client, store, opts, logger)
	service.SetMetrics(metrics)
	exporter := vocab.NewExporter(client, cfg.CSVDir, opts, logger)

	dispatcher := vocab.NewDispatcher(service, exporter, logger)
	dispatcher.SetMetrics(metrics)

	logger.Info().
		Str("index", redactURL(cfg.IndexURL)).
		Str("vads", cfg.VadsURL).
		Int("page_size", cfg.PageSize).
		Bool("use_latest", cfg.UseLatest).
		Msg("vads-sync configured")

	return &app{
		store:      store,
		dispatcher: dispatcher,
		handler:    vocab.NewHandler(store, dispatcher),
		registry:   registry,
		logger:     logger,
	}, nil
}

func (a *app) Close() {
	a.store.Close()
}

// redactURL hides a password in a database index URL.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return u.Redacted()
}
