// Triangulum - Radio Geolocation and Observation Ingest Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/triangulum

package ingest

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/triangulum/internal/database"
	"github.com/tomtom215/triangulum/internal/events"
	"github.com/tomtom215/triangulum/internal/geocalc"
	"github.com/tomtom215/triangulum/internal/logging"
	"github.com/tomtom215/triangulum/internal/metrics"
	"github.com/tomtom215/triangulum/internal/models"
)

// EventPublisher receives station move events. *events.Publisher
// implements it.
type EventPublisher interface {
	PublishMoved(ctx context.Context, ev *events.StationMoved) error
}

// RegionResolver resolves the region of a station position.
// *regions.Geocoder implements it.
type RegionResolver interface {
	Region(lat, lon float64) (string, bool)
	ForCell(lat, lon float64, mcc int) (string, bool)
}

// Enqueuer appends items to a queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, items [][]byte) error
}

// StationUpdater merges queued observations into one station shard.
type StationUpdater struct {
	db        *database.DB
	regions   RegionResolver
	publisher EventPublisher
	areas     Enqueuer
	metrics   *metrics.Metrics
	logger    zerolog.Logger
	now       func() time.Time
}

// NewStationUpdater creates a station updater. publisher, regions and areas
// may be nil.
func NewStationUpdater(db *database.DB, regions RegionResolver, publisher EventPublisher, areas Enqueuer, m *metrics.Metrics, logger zerolog.Logger) *StationUpdater {
	return &StationUpdater{
		db:        db,
		regions:   regions,
		publisher: publisher,
		areas:     areas,
		metrics:   m,
		logger:    logging.WithComponent(logger, "station-updater"),
		now:       time.Now,
	}
}

// stationBatch is the outcome of one shard transaction.
type stationBatch struct {
	inserted int
	created  int
	updated  int
	blocked  int
	moved    []*events.StationMoved
	areas    map[models.CellAreaKey]struct{}
	scores   map[string]int64
}

// Process applies a batch of encoded observations to shard.
func (u *StationUpdater) Process(ctx context.Context, shard string, items [][]byte) error {
	stationType, ok := models.ShardType(shard)
	if !ok {
		return fmt.Errorf("unknown station shard %q", shard)
	}
	typ := string(stationType)

	groups, order, malformed := decodeObservations(items, shard)
	u.metrics.RecordObservationDrop(typ, "malformed", malformed)
	if len(order) == 0 {
		return nil
	}

	now := u.now().UTC()
	var res stationBatch
	err := u.db.WithTx(ctx, func(tx *database.Tx) error {
		res = stationBatch{areas: make(map[models.CellAreaKey]struct{})}
		return u.apply(ctx, tx, shard, stationType, groups, order, now, &res)
	})
	if err != nil {
		return fmt.Errorf("update %s: %w", shard, err)
	}

	u.metrics.ObservationsInserted.WithLabelValues(typ).Add(float64(res.inserted))
	u.metrics.RecordObservationDrop(typ, "blocked", res.blocked)
	u.metrics.RecordStationChange(typ, "new", res.created)
	u.metrics.RecordStationChange(typ, "updated", res.updated)
	u.metrics.RecordStationChange(typ, "blocked", len(res.moved))

	u.publishMoves(ctx, res.moved)
	u.enqueueAreas(ctx, res.areas)

	u.logger.Debug().
		Str("shard", shard).
		Int("stations", len(order)).
		Int("new", res.created).
		Int("updated", res.updated).
		Int("moved", len(res.moved)).
		Msg("Shard batch applied")
	return nil
}

func (u *StationUpdater) apply(ctx context.Context, tx *database.Tx, shard string, stationType models.StationType, groups map[string][]models.Observation, order []string, now time.Time, res *stationBatch) error {
	blocks, err := tx.Blocks(ctx, shard, order)
	if err != nil {
		return err
	}
	stations, err := tx.Stations(ctx, shard, order)
	if err != nil {
		return err
	}

	newByUser := make(map[string]int64)
	for _, key := range order {
		obs := groups[key]
		block, hasBlock := blocks[key]
		if hasBlock && block.Blocked(now) {
			res.blocked += len(obs)
			continue
		}

		st, exists := stations[key]
		if !exists {
			st = newStation(&obs[0])
			if hasBlock {
				st.CreatedAt = block.FirstAt
			}
		}
		moved, spread := mergeStation(st, obs, now)
		if st.Type == models.StationCell {
			res.areas[st.CellKey.Area()] = struct{}{}
		}
		if moved {
			if err := tx.DeleteStation(ctx, shard, key); err != nil {
				return err
			}
			if !hasBlock {
				block = &models.BlockEntry{Key: key, FirstAt: now}
			}
			block.Count++
			block.LastAt = now
			if err := tx.SaveBlock(ctx, shard, block, hasBlock); err != nil {
				return err
			}
			res.moved = append(res.moved, events.NewStationMoved(shard, st, block, spread, now))
			continue
		}

		st.Region = u.resolveRegion(st)
		if exists {
			err = tx.UpdateStation(ctx, shard, st)
			res.updated++
		} else {
			err = tx.InsertStation(ctx, shard, st)
			res.created++
			for _, o := range obs {
				if o.Nickname != "" {
					newByUser[o.Nickname]++
					break
				}
			}
		}
		if err != nil {
			return err
		}
		res.inserted += len(obs)
	}

	if len(newByUser) == 0 {
		return nil
	}
	scoreKey := models.ScoreKeyFor(stationType)
	for nickname, n := range newByUser {
		uid, err := tx.UserID(ctx, nickname, now)
		if err != nil {
			return err
		}
		if err := tx.AddScores(ctx, uid, now, map[models.ScoreKey]int64{scoreKey: n}); err != nil {
			return err
		}
	}
	return nil
}

func (u *StationUpdater) resolveRegion(st *models.Station) string {
	if u.regions == nil {
		return st.Region
	}
	var (
		code string
		ok   bool
	)
	if st.Type == models.StationCell {
		code, ok = u.regions.ForCell(st.Lat, st.Lon, st.MCC)
	} else {
		code, ok = u.regions.Region(st.Lat, st.Lon)
	}
	if !ok {
		return ""
	}
	return code
}

func (u *StationUpdater) publishMoves(ctx context.Context, moved []*events.StationMoved) {
	if u.publisher == nil {
		return
	}
	for _, ev := range moved {
		if err := u.publisher.PublishMoved(ctx, ev); err != nil {
			u.logger.Warn().Err(err).Str("key", ev.Key).Msg("Failed to publish station move")
		}
	}
}

func (u *StationUpdater) enqueueAreas(ctx context.Context, areas map[models.CellAreaKey]struct{}) {
	if u.areas == nil || len(areas) == 0 {
		return
	}
	items := make([][]byte, 0, len(areas))
	for key := range areas {
		items = append(items, []byte(key.String()))
	}
	if err := u.areas.Enqueue(ctx, items); err != nil {
		u.logger.Error().Err(err).Int("areas", len(items)).Msg("Failed to enqueue area updates")
	}
}

// decodeObservations groups the decoded observations by station key,
// keeping first-seen order. Items that fail to decode or belong to another
// shard are counted as malformed.
func decodeObservations(items [][]byte, shard string) (map[string][]models.Observation, []string, int) {
	groups := make(map[string][]models.Observation)
	var (
		order     []string
		malformed int
	)
	for _, item := range items {
		var o models.Observation
		if err := json.Unmarshal(item, &o); err != nil || o.Shard() != shard {
			malformed++
			continue
		}
		key := o.Key()
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], o)
	}
	return groups, order, malformed
}

func newStation(o *models.Observation) *models.Station {
	return &models.Station{
		Type:    o.Type,
		CellKey: o.CellKey,
		MAC:     o.MAC,
	}
}

// mergeStation folds obs into st. It reports whether the combined bounding
// box spans more than the move threshold of the station type, in which case
// st is left unchanged and spread is the box diagonal in meters.
func mergeStation(st *models.Station, obs []models.Observation, now time.Time) (moved bool, spread float64) {
	points := make([]geocalc.Point, len(obs))
	for i := range obs {
		points[i] = geocalc.Point{Lat: obs[i].Lat, Lon: obs[i].Lon}
	}
	obsBox, err := geocalc.AggregateBox(points)
	if err != nil {
		return false, 0
	}
	n := float64(len(points))
	mean, _ := geocalc.Centroid(points)

	var (
		ctr     geocalc.Point
		box     geocalc.Box
		samples int64
	)
	if !st.HasPosition() {
		ctr, box, samples = mean, obsBox, int64(len(points))
		if st.CreatedAt.IsZero() {
			st.CreatedAt = now
		}
	} else {
		box = geocalc.Box{MinLat: st.MinLat, MaxLat: st.MaxLat, MinLon: st.MinLon, MaxLon: st.MaxLon}.Union(obsBox)
		spread = box.Diagonal()
		if spread > st.Type.MaxMoveMeters() {
			return true, spread
		}
		oldWeight := math.Min(float64(st.Samples), models.MaxOldSamples)
		ctr = geocalc.Point{
			Lat: (st.Lat*oldWeight + mean.Lat*n) / (oldWeight + n),
			Lon: (st.Lon*oldWeight + mean.Lon*n) / (oldWeight + n),
		}
		samples = st.Samples + int64(len(points))
	}

	st.Lat, st.Lon = ctr.Lat, ctr.Lon
	st.MinLat, st.MaxLat, st.MinLon, st.MaxLon = box.MinLat, box.MaxLat, box.MinLon, box.MaxLon
	st.Radius = geocalc.CircleRadius(ctr, box)
	st.Samples = samples
	st.ModifiedAt = now
	st.LastSeen = models.DateOf(now)
	if st.Type == models.StationCell {
		for i := len(obs) - 1; i >= 0; i-- {
			if obs[i].PSC != nil {
				st.PSC = obs[i].PSC
				break
			}
		}
	}
	return false, 0
}
