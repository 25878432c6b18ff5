// Triangulum - Radio Geolocation and Observation Ingest Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/triangulum

package ingest

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/tomtom215/triangulum/internal/config"
	"github.com/tomtom215/triangulum/internal/database"
	"github.com/tomtom215/triangulum/internal/kvstore"
	"github.com/tomtom215/triangulum/internal/metrics"
	"github.com/tomtom215/triangulum/internal/models"
)

// Pipeline wires the queues, updaters and workers of the ingest side.
type Pipeline struct {
	Queues       *Queues
	Orchestrator *Orchestrator
	Stations     *StationUpdater
	Areas        *AreaUpdater
	DataMap      *DataMapUpdater
	Cleaner      *DataMapCleaner
	Workers      []*Worker
}

// NewPipeline builds one worker per queue. publisher and regions may be nil.
func NewPipeline(cfg *config.IngestConfig, db *database.DB, store *kvstore.Store, regions RegionResolver, publisher EventPublisher, m *metrics.Metrics, logger zerolog.Logger) *Pipeline {
	queues := NewQueues(store, cfg)
	p := &Pipeline{
		Queues:       queues,
		Orchestrator: NewOrchestrator(db, queues, m, logger),
		Stations:     NewStationUpdater(db, regions, publisher, queues.CellArea, m, logger),
		Areas:        NewAreaUpdater(db, regions, m, logger),
		DataMap:      NewDataMapUpdater(db, m, logger),
		Cleaner:      NewDataMapCleaner(db, cfg.DatamapRetention, cfg.DatamapCleanupInterval, m, logger),
	}

	wcfg := WorkerConfig{
		IdleInterval: cfg.IdleInterval,
		PollRate:     cfg.PollRate,
		DrainTimeout: cfg.DrainTimeout,
	}
	add := func(q *kvstore.Queue, h Handler) {
		p.Workers = append(p.Workers, NewWorker(q, h, wcfg, m, logger))
	}

	add(queues.Incoming, p.Orchestrator.Process)
	for _, shard := range models.StationShards() {
		add(queues.Stations[shard], func(ctx context.Context, items [][]byte) error {
			return p.Stations.Process(ctx, shard, items)
		})
	}
	for _, shard := range models.DataMapShards {
		add(queues.DataMap[shard], func(ctx context.Context, items [][]byte) error {
			return p.DataMap.Process(ctx, shard, items)
		})
	}
	add(queues.CellArea, p.Areas.Process)
	return p
}

// Submit places a report batch on the incoming queue.
func (p *Pipeline) Submit(ctx context.Context, batch []byte) error {
	return p.Queues.Incoming.Enqueue(ctx, [][]byte{batch})
}
