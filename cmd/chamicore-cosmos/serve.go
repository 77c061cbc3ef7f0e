package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"git.cscs.ch/openchami/chamicore-cosmos/internal/config"
	"git.cscs.ch/openchami/chamicore-cosmos/internal/cosmos"
	"git.cscs.ch/openchami/chamicore-cosmos/internal/policy"
	"git.cscs.ch/openchami/chamicore-cosmos/internal/server"
	"git.cscs.ch/openchami/chamicore-cosmos/internal/telemetry"
	"git.cscs.ch/openchami/chamicore-cosmos/internal/tools"
)

func runServe(parent context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMs
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Str("service", "cosmos").Str("version", version).Logger()

	logger := log.With().Str("component", "main").Logger()
	logger.Info().Str("transport", cfg.Transport).Msg("starting chamicore-cosmos")

	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	shutdownTracing, err := telemetry.InitTracing(ctx, telemetry.TracingConfig{
		Enabled:        cfg.TracesEnabled,
		ServiceName:    "chamicore-cosmos",
		ServiceVersion: version,
		Endpoint:       cfg.OTLPEndpoint,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if shutdownErr := shutdownTracing(shutdownCtx); shutdownErr != nil {
			logger.Error().Err(shutdownErr).Msg("failed to shut down tracing")
		}
	}()

	var metrics *telemetry.Metrics
	if cfg.MetricsEnabled {
		metrics = telemetry.NewMetrics()
	}

	modeGuard, err := policy.NewGuard(cfg.Mode)
	if err != nil {
		return fmt.Errorf("invalid mode configuration: %w", err)
	}
	logger.Info().Str("mode", modeGuard.Mode()).Msg("execution policy initialized")

	registry, contract, err := server.CatalogRegistry()
	if err != nil {
		return fmt.Errorf("failed to build tool contract: %w", err)
	}

	// The store and query front ends stay nil interfaces when they cannot be
	// built, so the HTTP routes report an unconfigured store. Ad-hoc queries
	// name their container per request and need only a database.
	var (
		store      tools.Store
		queryStore server.QueryStore
	)
	cosmosCfg := cosmos.Config{
		ConnectionString:  cfg.Cosmos.ConnectionString,
		Endpoint:          cfg.Cosmos.Endpoint,
		Key:               cfg.Cosmos.Key,
		Database:          cfg.Cosmos.Database,
		Container:         cfg.Cosmos.Container,
		PartitionKeyPaths: cosmos.ParsePartitionKeyPaths(cfg.Cosmos.PartitionKeyPath),
		MaxRetries:        cfg.Cosmos.MaxRetries,
	}
	connector, err := cosmos.New(cosmosCfg)
	if err == nil {
		store = connector
		queryStore = connector.DatabaseHandle()
		logger.Info().
			Str("database", connector.Database()).
			Str("container", connector.Container()).
			Msg("cosmos store configured")
	} else {
		logger.Warn().Err(err).Msg("cosmos store is not configured; tool calls will fail")
		if db, dbErr := cosmos.NewDatabase(cosmosCfg); dbErr == nil {
			queryStore = db
			logger.Info().Str("database", db.Name()).Msg("cosmos database configured for ad-hoc queries")
		} else {
			logger.Warn().Err(dbErr).Msg("cosmos database is not configured; ad-hoc queries will fail")
		}
	}

	runnerOpts := []tools.Option{}
	if metrics != nil {
		runnerOpts = append(runnerOpts, tools.WithObserver(metrics))
	}
	runner := tools.NewRunner(store, runnerOpts...)

	switch cfg.Transport {
	case config.TransportStdio:
		stdioCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		if runErr := server.RunStdio(stdioCtx, os.Stdin, os.Stdout, registry, modeGuard, runner, version, logger); runErr != nil {
			return fmt.Errorf("stdio runtime stopped with error: %w", runErr)
		}
		logger.Info().Msg("stdio runtime stopped")
		return nil

	case config.TransportHTTP:
		httpServer := server.NewHTTPServer(cfg, version, commit, buildDate, contract, registry, modeGuard, runner, queryStore, metrics, logger)
		srv := &http.Server{
			Addr:              cfg.ListenAddr,
			Handler:           httpServer.Router(),
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      0, // allow SSE streaming without forcing writer timeout.
			IdleTimeout:       120 * time.Second,
		}

		errCh := make(chan error, 1)
		go func() {
			logger.Info().Str("addr", cfg.ListenAddr).Msg("HTTP server listening")
			if serveErr := srv.ListenAndServe(); serveErr != nil && serveErr != http.ErrServerClosed {
				errCh <- serveErr
			}
		}()

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigCh)

		var serveErr error
		select {
		case sig := <-sigCh:
			logger.Info().Str("signal", sig.String()).Msg("received shutdown signal")
		case serveErr = <-errCh:
			logger.Error().Err(serveErr).Msg("HTTP server error")
		case <-ctx.Done():
		}
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer shutdownCancel()
		if shutdownErr := srv.Shutdown(shutdownCtx); shutdownErr != nil {
			return fmt.Errorf("HTTP server shutdown error: %w", shutdownErr)
		}
		if serveErr != nil {
			return serveErr
		}
		logger.Info().Msg("server stopped gracefully")
		return nil

	default:
		return fmt.Errorf("unsupported transport %q", cfg.Transport)
	}
}
