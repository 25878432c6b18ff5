// Triangulum - Radio Geolocation and Observation Ingest Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/triangulum

package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/tomtom215/triangulum/internal/config"
	"github.com/tomtom215/triangulum/internal/logging"
	"github.com/tomtom215/triangulum/internal/supervisor"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(logging.Config{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Caller:    cfg.Logging.Caller,
		Timestamp: true,
		Output:    os.Stderr,
	})

	if err := run(cfg, logger); err != nil {
		logger.Fatal().Err(err).Msg("Triangulum stopped with an error")
	}
}

//nolint:gocritic // logger passed by value is acceptable for zerolog
func run(cfg *config.Config, logger zerolog.Logger) error {
	logger.Info().
		Str("addr", cfg.Server.Addr()).
		Str("database", cfg.Database.URL).
		Str("kvstore", cfg.KVStore.URL).
		Str("events_mode", cfg.Events.Mode).
		Bool("geoip", cfg.GeoIP.Path != "").
		Msg("Starting Triangulum")
	warnUnsupported(cfg, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := newApp(ctx, cfg, logger, prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
	if err != nil {
		return err
	}
	defer a.close()

	// Queue workers need the whole drain window before suture gives up.
	shutdown := cfg.Server.ShutdownTimeout
	if drain := cfg.Ingest.DrainTimeout + 5*time.Second; drain > shutdown {
		shutdown = drain
	}
	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(logging.WithComponent(logger, "supervisor")), supervisor.TreeConfig{
		ShutdownTimeout: shutdown,
	})
	if err != nil {
		return fmt.Errorf("create supervisor tree: %w", err)
	}
	a.register(tree)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	defer signal.Stop(sigCh)
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case sig := <-sigCh:
				if sig == syscall.SIGHUP {
					logger.Info().Msg("Received SIGHUP, reloading GeoIP database")
					a.reloadGeoIP()
					continue
				}
				logger.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
				cancel()
				return
			}
		}
	}()

	logger.Info().Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	var treeErr error
	select {
	case <-ctx.Done():
		logger.Info().Msg("Waiting for supervisor tree to stop")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			treeErr = err
			logger.Error().Err(err).Msg("Supervisor tree error")
		}
		cancel()
	}
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	if unstopped, _ := tree.UnstoppedServiceReport(); len(unstopped) > 0 {
		for _, svc := range unstopped {
			logger.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
		}
	}

	logger.Info().Msg("Triangulum stopped")
	return treeErr
}

//nolint:gocritic // logger passed by value is acceptable for zerolog
func warnUnsupported(cfg *config.Config, logger zerolog.Logger) {
	if cfg.Metrics.StatsdHost != "" {
		logger.Warn().Str("statsd_host", cfg.Metrics.StatsdHost).Msg("StatsD is not supported, metrics are exposed for Prometheus only")
	}
	if cfg.Metrics.SentryDSN != "" {
		logger.Warn().Msg("Sentry is not supported, errors are reported through the log")
	}
	if cfg.AssetBucket != "" {
		logger.Info().Str("asset_bucket", cfg.AssetBucket).Msg("Asset export is not part of this service, asset_bucket is ignored")
	}
}
