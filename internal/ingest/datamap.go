// Triangulum - Radio Geolocation and Observation Ingest Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/triangulum

package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/triangulum/internal/database"
	"github.com/tomtom215/triangulum/internal/logging"
	"github.com/tomtom215/triangulum/internal/metrics"
	"github.com/tomtom215/triangulum/internal/models"
)

// DataMapUpdater records datamap grid pings for one shard at a time.
type DataMapUpdater struct {
	db      *database.DB
	metrics *metrics.Metrics
	logger  zerolog.Logger
	now     func() time.Time
}

// NewDataMapUpdater creates a datamap updater.
func NewDataMapUpdater(db *database.DB, m *metrics.Metrics, logger zerolog.Logger) *DataMapUpdater {
	return &DataMapUpdater{
		db:      db,
		metrics: m,
		logger:  logging.WithComponent(logger, "datamap-updater"),
		now:     time.Now,
	}
}

// Process upserts the encoded grids in items into shard.
func (u *DataMapUpdater) Process(ctx context.Context, shard string, items [][]byte) error {
	grids := make([]models.DataMapGrid, 0, len(items))
	seen := make(map[models.DataMapGrid]struct{}, len(items))
	for _, item := range items {
		g, err := models.DecodeGrid(item)
		if err != nil || g.Shard() != shard {
			u.logger.Debug().Err(err).Str("shard", shard).Msg("Dropping malformed grid")
			continue
		}
		if _, ok := seen[g]; ok {
			continue
		}
		seen[g] = struct{}{}
		grids = append(grids, g)
	}
	if len(grids) == 0 {
		return nil
	}

	created, err := u.db.UpsertDataMap(ctx, shard, grids, u.now())
	if err != nil {
		return fmt.Errorf("update datamap %s: %w", shard, err)
	}
	u.metrics.DatamapGrids.WithLabelValues(shard, "new").Add(float64(created))
	u.metrics.DatamapGrids.WithLabelValues(shard, "updated").Add(float64(len(grids) - created))
	return nil
}

// DataMapCleaner periodically removes grids that have not been seen within
// the retention period. It implements suture.Service.
type DataMapCleaner struct {
	db        *database.DB
	retention time.Duration
	interval  time.Duration
	metrics   *metrics.Metrics
	logger    zerolog.Logger
	now       func() time.Time
}

// NewDataMapCleaner creates a cleaner. Non-positive durations fall back to
// a year of retention and a daily run.
func NewDataMapCleaner(db *database.DB, retention, interval time.Duration, m *metrics.Metrics, logger zerolog.Logger) *DataMapCleaner {
	if retention <= 0 {
		retention = 365 * 24 * time.Hour
	}
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	return &DataMapCleaner{
		db:        db,
		retention: retention,
		interval:  interval,
		metrics:   m,
		logger:    logging.WithComponent(logger, "datamap-cleaner"),
		now:       time.Now,
	}
}

// Serve implements suture.Service.
func (c *DataMapCleaner) Serve(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := c.Clean(ctx); err != nil {
				c.logger.Warn().Err(err).Msg("Datamap cleanup failed")
			}
		}
	}
}

// Clean deletes stale grids from every shard and returns the number removed.
// A failing shard does not stop the others.
func (c *DataMapCleaner) Clean(ctx context.Context) (int64, error) {
	before := c.now().Add(-c.retention)
	var (
		total    int64
		firstErr error
	)
	for _, shard := range models.DataMapShards {
		n, err := c.db.DeleteStaleDataMap(ctx, shard, before)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		total += n
		c.metrics.DatamapGrids.WithLabelValues(shard, "deleted").Add(float64(n))
	}
	if total > 0 {
		c.logger.Info().Int64("grids", total).Time("before", before).Msg("Removed stale datamap grids")
	}
	return total, firstErr
}

// String implements fmt.Stringer for suture logging.
func (c *DataMapCleaner) String() string {
	return "datamap-cleaner"
}
