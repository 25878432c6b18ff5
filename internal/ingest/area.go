// Triangulum - Radio Geolocation and Observation Ingest Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/triangulum

package ingest

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/triangulum/internal/database"
	"github.com/tomtom215/triangulum/internal/geocalc"
	"github.com/tomtom215/triangulum/internal/logging"
	"github.com/tomtom215/triangulum/internal/metrics"
	"github.com/tomtom215/triangulum/internal/models"
)

// AreaUpdater recomputes cell areas from their member cells.
type AreaUpdater struct {
	db      *database.DB
	regions RegionResolver
	metrics *metrics.Metrics
	logger  zerolog.Logger
	now     func() time.Time
}

// NewAreaUpdater creates an area updater. regions may be nil.
func NewAreaUpdater(db *database.DB, regions RegionResolver, m *metrics.Metrics, logger zerolog.Logger) *AreaUpdater {
	return &AreaUpdater{
		db:      db,
		regions: regions,
		metrics: m,
		logger:  logging.WithComponent(logger, "area-updater"),
		now:     time.Now,
	}
}

// Process recomputes every area named in items. Each area is written in its
// own transaction; a failing area is logged and the rest continue.
func (u *AreaUpdater) Process(ctx context.Context, items [][]byte) error {
	seen := make(map[models.CellAreaKey]struct{}, len(items))
	var keys []models.CellAreaKey
	for _, item := range items {
		key, err := models.ParseCellAreaKey(string(item))
		if err != nil {
			u.logger.Debug().Err(err).Msg("Dropping malformed area id")
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}

	var failed int
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		action, err := u.update(ctx, key)
		if err != nil {
			failed++
			u.logger.Error().Err(err).Str("area", key.String()).Msg("Area update failed")
			continue
		}
		u.metrics.AreaChanges.WithLabelValues(action).Inc()
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d area updates failed", failed, len(keys))
	}
	return nil
}

// update recomputes one area and returns the action taken: new, updated,
// deleted or none.
func (u *AreaUpdater) update(ctx context.Context, key models.CellAreaKey) (string, error) {
	now := u.now().UTC()
	var action string
	err := u.db.WithTx(ctx, func(tx *database.Tx) error {
		action = "none"
		cells, err := tx.AreaCells(ctx, key)
		if err != nil {
			return err
		}
		existing, err := tx.Area(ctx, key)
		exists := err == nil
		if err != nil && !errors.Is(err, database.ErrNotFound) {
			return err
		}

		if len(cells) == 0 {
			if !exists {
				return nil
			}
			action = "deleted"
			return tx.DeleteArea(ctx, key)
		}

		a := aggregateArea(key, cells)
		a.Region = u.majorityRegion(cells, a)
		a.ModifiedAt = now
		a.CreatedAt = now
		if exists {
			a.CreatedAt = existing.CreatedAt
			action = "updated"
		} else {
			action = "new"
		}
		return tx.SaveArea(ctx, a, exists)
	})
	return action, err
}

// aggregateArea derives the area position from positioned member cells.
func aggregateArea(key models.CellAreaKey, cells []models.Station) *models.Area {
	points := make([]geocalc.Point, len(cells))
	var (
		radiusSum float64
		lastSeen  time.Time
	)
	for i := range cells {
		points[i] = geocalc.Point{Lat: cells[i].Lat, Lon: cells[i].Lon}
		radiusSum += float64(cells[i].Radius)
		if cells[i].LastSeen.After(lastSeen) {
			lastSeen = cells[i].LastSeen
		}
	}
	ctr, _ := geocalc.Centroid(points)
	box, _ := geocalc.AggregateBox(points)

	return &models.Area{
		CellAreaKey:   key,
		Lat:           ctr.Lat,
		Lon:           ctr.Lon,
		Radius:        geocalc.CircleRadius(ctr, box),
		AvgCellRadius: int(math.Round(radiusSum / float64(len(cells)))),
		NumCells:      len(cells),
		MinLat:        box.MinLat,
		MaxLat:        box.MaxLat,
		MinLon:        box.MinLon,
		MaxLon:        box.MaxLon,
		LastSeen:      lastSeen,
	}
}

// majorityRegion picks the most common member cell region, ties going to
// the lower code. Without any member region the area center is resolved.
func (u *AreaUpdater) majorityRegion(cells []models.Station, a *models.Area) string {
	counts := make(map[string]int)
	for i := range cells {
		if cells[i].Region != "" {
			counts[cells[i].Region]++
		}
	}
	best, bestN := "", 0
	for code, n := range counts {
		if n > bestN || (n == bestN && code < best) {
			best, bestN = code, n
		}
	}
	if best != "" || u.regions == nil {
		return best
	}
	if code, ok := u.regions.ForCell(a.Lat, a.Lon, a.MCC); ok {
		return code
	}
	return ""
}
