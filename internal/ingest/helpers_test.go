// Triangulum - Radio Geolocation and Observation Ingest Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/triangulum

package ingest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/triangulum/internal/config"
	"github.com/tomtom215/triangulum/internal/database"
	"github.com/tomtom215/triangulum/internal/events"
	"github.com/tomtom215/triangulum/internal/kvstore"
	"github.com/tomtom215/triangulum/internal/logging"
	"github.com/tomtom215/triangulum/internal/metrics"
	"github.com/tomtom215/triangulum/internal/models"
	"github.com/tomtom215/triangulum/internal/regions"
)

// testDBSemaphore serializes DuckDB instances across parallel tests.
var testDBSemaphore = make(chan struct{}, 1)

var testNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func setupTestDB(t *testing.T, m *metrics.Metrics) *database.DB {
	t.Helper()

	testDBSemaphore <- struct{}{}
	t.Cleanup(func() { <-testDBSemaphore })

	db, err := database.New(&config.DatabaseConfig{URL: ":memory:", MaxMemory: "512MB", Threads: 2},
		logging.Nop(), m)
	if err != nil {
		t.Fatalf("database.New() error = %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Errorf("Close() error = %v", err)
		}
	})
	return db
}

func setupTestStore(t *testing.T, m *metrics.Metrics) *kvstore.Store {
	t.Helper()
	s, err := kvstore.OpenInMemory(logging.Nop(), m)
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testGeocoder(t *testing.T) *regions.Geocoder {
	t.Helper()
	g, err := regions.Default()
	if err != nil {
		t.Fatalf("regions.Default() error = %v", err)
	}
	return g
}

func testIngestConfig() *config.IngestConfig {
	return &config.IngestConfig{
		IncomingBatch:          100,
		CellBatch:              100,
		WifiBatch:              500,
		BlueBatch:              500,
		DatamapBatch:           500,
		AreaBatch:              100,
		IdleInterval:           10 * time.Millisecond,
		PollRate:               100,
		DrainTimeout:           time.Second,
		DatamapRetention:       365 * 24 * time.Hour,
		DatamapCleanupInterval: time.Hour,
	}
}

// fakePublisher records published move events.
type fakePublisher struct {
	mu     sync.Mutex
	events []*events.StationMoved
}

func (p *fakePublisher) PublishMoved(_ context.Context, ev *events.StationMoved) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *fakePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

// fakeQueue records enqueued items.
type fakeQueue struct {
	mu    sync.Mutex
	items [][]byte
}

func (q *fakeQueue) Enqueue(_ context.Context, items [][]byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, items...)
	return nil
}

func (q *fakeQueue) strings() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]string, len(q.items))
	for i, it := range q.items {
		out[i] = string(it)
	}
	return out
}

func gsmKey(cid int64) models.CellKey {
	return models.CellKey{Radio: models.RadioGSM, MCC: 234, MNC: 10, LAC: 3, CID: cid}
}

func cellObs(key models.CellKey, lat, lon float64) models.Observation {
	return models.Observation{Type: models.StationCell, CellKey: key, Lat: lat, Lon: lon}
}

func wifiObs(mac string, lat, lon float64) models.Observation {
	return models.Observation{Type: models.StationWifi, MAC: mac, Lat: lat, Lon: lon}
}

func encodeAll(t *testing.T, obs ...models.Observation) [][]byte {
	t.Helper()
	out := make([][]byte, len(obs))
	for i := range obs {
		data, err := json.Marshal(&obs[i])
		if err != nil {
			t.Fatalf("marshal observation: %v", err)
		}
		out[i] = data
	}
	return out
}
