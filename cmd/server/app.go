// Triangulum - Radio Geolocation and Observation Ingest Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/triangulum

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/tomtom215/triangulum/internal/api"
	"github.com/tomtom215/triangulum/internal/config"
	"github.com/tomtom215/triangulum/internal/database"
	"github.com/tomtom215/triangulum/internal/events"
	"github.com/tomtom215/triangulum/internal/geoip"
	"github.com/tomtom215/triangulum/internal/ingest"
	"github.com/tomtom215/triangulum/internal/kvstore"
	"github.com/tomtom215/triangulum/internal/locate"
	"github.com/tomtom215/triangulum/internal/metrics"
	"github.com/tomtom215/triangulum/internal/regions"
	"github.com/tomtom215/triangulum/internal/supervisor"
	"github.com/tomtom215/triangulum/internal/supervisor/services"
)

// checkpointInterval is how often the DuckDB WAL is folded into the file.
const checkpointInterval = time.Hour

// app holds every long-lived component of one server process.
type app struct {
	cfg     *config.Config
	logger  zerolog.Logger
	metrics *metrics.Metrics

	db        *database.DB
	store     *kvstore.Store
	regions   *regions.Geocoder
	geo       *geoip.DB
	publisher *events.Publisher
	pipeline  *ingest.Pipeline
	keys      *api.KeyCache
	handler   http.Handler
}

// newApp opens the stores and wires the locate and ingest paths behind the
// HTTP router. Everything opened before a failure is closed again.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func newApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger, reg prometheus.Registerer, gatherer prometheus.Gatherer) (*app, error) {
	a := &app{cfg: cfg, logger: logger, metrics: metrics.New(reg)}
	ready := false
	defer func() {
		if !ready {
			a.close()
		}
	}()

	var err error
	a.db, err = database.New(&cfg.Database, logger, a.metrics)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	a.store, err = kvstore.Open(kvstore.OptionsFromConfig(&cfg.KVStore), logger, a.metrics)
	if err != nil {
		return nil, fmt.Errorf("open kvstore: %w", err)
	}

	if cfg.Regions.Path != "" {
		a.regions, err = regions.Load(cfg.Regions.Path)
	} else {
		a.regions, err = regions.Default()
	}
	if err != nil {
		return nil, fmt.Errorf("load regions: %w", err)
	}

	a.geo, err = geoip.Open(cfg.GeoIP.Path, a.regions, logger)
	if err != nil {
		return nil, fmt.Errorf("open geoip: %w", err)
	}

	a.publisher, err = events.New(ctx, &cfg.Events, logger, a.metrics)
	if err != nil {
		return nil, fmt.Errorf("start station events: %w", err)
	}

	a.pipeline = ingest.NewPipeline(&cfg.Ingest, a.db, a.store, a.regions, a.publisher, a.metrics, logger)

	deps := locate.Deps{
		Stations:     a.db,
		Regions:      a.regions,
		GeoIP:        a.geo,
		Fallback:     locate.NewFallbackProvider(&http.Client{}, a.store, cfg.Locate.RateLimitFailOpen, locate.FallbackConfigFrom(&cfg.Locate), a.metrics, logger),
		Counter:      a.store,
		Sink:         a.pipeline.Queues.Incoming,
		SampleLocate: cfg.Locate.StoreSampleLocateEnabled,
		Metrics:      a.metrics,
		Logger:       logger,
	}

	a.keys = api.NewKeyCache(a.db, cfg.Locate.APIKeyCacheTTL, logger)
	h := api.NewHandler(api.Deps{
		Keys:      a.keys,
		Position:  locate.NewPositionSearcher(deps),
		Region:    locate.NewRegionSearcher(deps),
		Submitter: a.pipeline,
		Checks:    a.healthChecks(),
		Metrics:   a.metrics,
		Logger:    logger,
	})
	cm := api.NewChiMiddleware(api.ChiMiddlewareConfigFromServer(&cfg.Server), a.metrics, logger)
	a.handler = api.NewRouter(h, cm, &cfg.Server, a.metrics, gatherer).
		WithMetricsConfig(cfg.Metrics).
		SetupChi()

	ready = true
	return a, nil
}

func (a *app) healthChecks() []api.HealthCheck {
	checks := []api.HealthCheck{
		{Name: "database", Check: a.db.Ping},
		{Name: "kvstore", Check: a.store.Ping},
	}
	if a.cfg.GeoIP.Path != "" {
		checks = append(checks, api.HealthCheck{Name: "geoip", Check: func(context.Context) error {
			if !a.geo.Ready() {
				return errors.New("geoip database not loaded")
			}
			return nil
		}})
	}
	return checks
}

// register adds the HTTP server, the ingest workers and store maintenance
// to tree.
func (a *app) register(tree *supervisor.SupervisorTree) {
	tree.AddStorageService(services.NewMaintenanceService(a.logger,
		services.GCTask("kvstore-gc", a.cfg.KVStore.GCInterval, a.store),
		services.CheckpointTask("database-checkpoint", checkpointInterval, a.db),
		services.MaintenanceTask{Name: "apikey-cache", Interval: a.cfg.Locate.APIKeyCacheTTL, Run: a.keys.Sweep},
	))

	if a.cfg.Ingest.Enabled {
		for _, w := range a.pipeline.Workers {
			tree.AddIngestService(w)
		}
		tree.AddIngestService(a.pipeline.Cleaner)
		a.logger.Info().Int("workers", len(a.pipeline.Workers)).Msg("Ingest workers added to supervisor tree")
	} else {
		a.logger.Warn().Msg("Ingest workers disabled; submitted reports stay queued until their TTL")
	}

	server := &http.Server{
		Addr:              a.cfg.Server.Addr(),
		Handler:           a.handler,
		ReadTimeout:       a.cfg.Server.ReadTimeout,
		ReadHeaderTimeout: a.cfg.Server.ReadTimeout,
		WriteTimeout:      a.cfg.Server.WriteTimeout,
	}
	tree.AddAPIService(services.NewHTTPServerService(server, server.Addr, a.cfg.Server.ShutdownTimeout, a.logger))
}

// reloadGeoIP swaps in the GeoIP file from the configured path.
func (a *app) reloadGeoIP() {
	if a.cfg.GeoIP.Path == "" {
		return
	}
	if err := a.geo.Reload(a.cfg.GeoIP.Path); err != nil {
		a.logger.Error().Err(err).Msg("GeoIP reload failed, keeping previous database")
	}
}

// close releases everything newApp opened, in reverse order.
func (a *app) close() {
	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.logger.Error().Err(err).Msg("Error closing station events publisher")
		}
	}
	if a.geo != nil {
		if err := a.geo.Close(); err != nil {
			a.logger.Error().Err(err).Msg("Error closing GeoIP database")
		}
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Error().Err(err).Msg("Error closing kvstore")
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Error().Err(err).Msg("Error closing database")
		}
	}
}
