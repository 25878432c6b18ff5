// Triangulum - Radio Geolocation and Observation Ingest Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/triangulum

package ingest

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/triangulum/internal/database"
	"github.com/tomtom215/triangulum/internal/logging"
	"github.com/tomtom215/triangulum/internal/metrics"
	"github.com/tomtom215/triangulum/internal/models"
)

// Orchestrator drains the incoming queue: it validates reports, splits them
// into observations and routes those to the station and datamap queues.
type Orchestrator struct {
	db      *database.DB
	queues  *Queues
	metrics *metrics.Metrics
	logger  zerolog.Logger
	now     func() time.Time
	draw    func() float64
}

// NewOrchestrator creates an orchestrator writing to queues.
func NewOrchestrator(db *database.DB, queues *Queues, m *metrics.Metrics, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		db:      db,
		queues:  queues,
		metrics: m,
		logger:  logging.WithComponent(logger, "ingest-orchestrator"),
		now:     time.Now,
		draw:    func() float64 { return rand.Float64() * 100 },
	}
}

// routed collects the queue items produced by one Process call.
type routed struct {
	stations map[string][][]byte
	grids    map[string]map[models.DataMapGrid]struct{}
	scores   map[string]int64 // location scores per nickname
}

// Process handles a batch of encoded report batches from the incoming queue.
func (o *Orchestrator) Process(ctx context.Context, items [][]byte) error {
	now := o.now().UTC()
	out := routed{
		stations: make(map[string][][]byte),
		grids:    make(map[string]map[models.DataMapGrid]struct{}),
		scores:   make(map[string]int64),
	}
	keys := make(map[string]*models.APIKey)

	for _, item := range items {
		var batch models.ReportBatch
		if err := json.Unmarshal(item, &batch); err != nil {
			o.metrics.ReportsDropped.WithLabelValues("malformed").Inc()
			continue
		}
		sample := o.submitSample(ctx, keys, batch.APIKey)
		if !models.ValidNickname(batch.Nickname) {
			batch.Nickname = ""
		}

		label := batch.APIKey
		if label == "" {
			label = "none"
		}
		for i := range batch.Reports {
			r := &batch.Reports[i]
			if !o.acceptReport(r) {
				continue
			}
			o.metrics.ReportsUploaded.WithLabelValues(label).Inc()
			if batch.Nickname != "" {
				out.scores[batch.Nickname]++
			}
			if sample < 100 && o.draw() >= float64(sample) {
				o.metrics.ReportsDropped.WithLabelValues("sampled").Inc()
				continue
			}
			o.route(r, batch.Nickname, now, &out)
		}
	}

	return o.flush(ctx, now, &out)
}

// acceptReport validates the report position and requires at least one
// station.
func (o *Orchestrator) acceptReport(r *models.Report) bool {
	if err := r.Position.Validate(); err != nil {
		o.metrics.ReportsDropped.WithLabelValues("invalid_position").Inc()
		return false
	}
	if !r.HasStations() {
		o.metrics.ReportsDropped.WithLabelValues("no_stations").Inc()
		return false
	}
	return true
}

// submitSample returns the percentage of reports kept for key. Unknown keys
// and keys without a sample rate keep everything.
func (o *Orchestrator) submitSample(ctx context.Context, cache map[string]*models.APIKey, key string) int {
	if key == "" || o.db == nil {
		return 100
	}
	k, ok := cache[key]
	if !ok {
		var err error
		k, err = o.db.APIKey(ctx, key)
		if err != nil {
			if !errors.Is(err, database.ErrNotFound) {
				o.logger.Warn().Err(err).Msg("API key lookup failed, keeping all reports")
			}
			k = nil
		}
		cache[key] = k
	}
	if k == nil || k.StoreSampleSubmit <= 0 || k.StoreSampleSubmit >= 100 {
		return 100
	}
	return k.StoreSampleSubmit
}

// route splits one report into observations and a datamap ping.
func (o *Orchestrator) route(r *models.Report, nickname string, now time.Time, out *routed) {
	ts := models.NormalizeTimestamp(r.Timestamp, now).UnixMilli()
	for _, obs := range reportObservations(r, ts, o.metrics) {
		obs.Nickname = nickname
		data, err := json.Marshal(&obs)
		if err != nil {
			o.metrics.RecordObservationDrop(string(obs.Type), "malformed", 1)
			continue
		}
		shard := obs.Shard()
		out.stations[shard] = append(out.stations[shard], data)
		o.metrics.ObservationsUploaded.WithLabelValues(string(obs.Type)).Inc()
	}

	g := models.ScaleGrid(r.Position.Lat, r.Position.Lon)
	shard := g.Shard()
	if out.grids[shard] == nil {
		out.grids[shard] = make(map[models.DataMapGrid]struct{})
	}
	out.grids[shard][g] = struct{}{}
}

// reportObservations sanitizes the stations of r and returns one
// observation per station identity, the best measurement winning.
func reportObservations(r *models.Report, ts int64, m *metrics.Metrics) []models.Observation {
	var (
		out   []models.Observation
		index = make(map[string]int)
	)
	add := func(obs models.Observation) {
		key := string(obs.Type) + ":" + obs.Key()
		if i, ok := index[key]; ok {
			if obs.Better(&out[i]) {
				out[i] = obs
			}
			return
		}
		index[key] = len(out)
		out = append(out, obs)
	}

	for i := range r.Cells {
		c := r.Cells[i]
		c.Sanitize()
		if !c.CellKey.Valid() {
			m.RecordObservationDrop(string(models.StationCell), "invalid", 1)
			continue
		}
		add(models.CellObservation(r, &c, ts))
	}
	for i := range r.Wifis {
		w := r.Wifis[i]
		w.Sanitize()
		if !models.ValidMAC(w.MAC) {
			m.RecordObservationDrop(string(models.StationWifi), "invalid", 1)
			continue
		}
		add(models.WifiObservation(r, &w, ts))
	}
	for i := range r.Blues {
		b := r.Blues[i]
		b.Sanitize()
		if !models.ValidMAC(b.MAC) {
			m.RecordObservationDrop(string(models.StationBlue), "invalid", 1)
			continue
		}
		add(models.BlueObservation(r, &b, ts))
	}
	return out
}

// flush enqueues the routed items and records the location scores. Every
// destination is attempted and the failures are joined.
func (o *Orchestrator) flush(ctx context.Context, now time.Time, out *routed) error {
	var errs []error
	for shard, items := range out.stations {
		q, ok := o.queues.Stations[shard]
		if !ok {
			errs = append(errs, fmt.Errorf("no queue for station shard %q", shard))
			continue
		}
		if err := q.Enqueue(ctx, items); err != nil {
			errs = append(errs, fmt.Errorf("enqueue %s: %w", q.Name(), err))
		}
	}
	for shard, grids := range out.grids {
		q := o.queues.DataMap[shard]
		items := make([][]byte, 0, len(grids))
		for g := range grids {
			items = append(items, g.Encode())
		}
		if err := q.Enqueue(ctx, items); err != nil {
			errs = append(errs, fmt.Errorf("enqueue %s: %w", q.Name(), err))
		}
	}
	if len(out.scores) > 0 && o.db != nil {
		err := o.db.WithTx(ctx, func(tx *database.Tx) error {
			for nickname, n := range out.scores {
				uid, err := tx.UserID(ctx, nickname, now)
				if err != nil {
					return err
				}
				if err := tx.AddScores(ctx, uid, now, map[models.ScoreKey]int64{models.ScoreLocation: n}); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("record scores: %w", err))
		}
	}
	return errors.Join(errs...)
}
