// Triangulum - Radio Geolocation and Observation Ingest Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/triangulum

package ingest

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/triangulum/internal/geocalc"
	"github.com/tomtom215/triangulum/internal/logging"
	"github.com/tomtom215/triangulum/internal/metrics"
	"github.com/tomtom215/triangulum/internal/models"
)

func TestMergeStationNew(t *testing.T) {
	t.Parallel()

	st := newStation(&models.Observation{Type: models.StationWifi, MAC: "a1b2c3d4e5f6"})
	obs := []models.Observation{
		wifiObs("a1b2c3d4e5f6", 1.0, 1.0),
		wifiObs("a1b2c3d4e5f6", 1.002, 1.002),
	}

	moved, _ := mergeStation(st, obs, testNow)
	if moved {
		t.Fatal("expected a new station not to move")
	}
	if math.Abs(st.Lat-1.001) > 1e-9 || math.Abs(st.Lon-1.001) > 1e-9 {
		t.Errorf("expected mean position (1.001, 1.001), got (%f, %f)", st.Lat, st.Lon)
	}
	if st.Samples != 2 {
		t.Errorf("expected 2 samples, got %d", st.Samples)
	}
	if st.MinLat != 1.0 || st.MaxLat != 1.002 || st.MinLon != 1.0 || st.MaxLon != 1.002 {
		t.Errorf("unexpected box %+v", st)
	}
	box := geocalc.Box{MinLat: 1.0, MaxLat: 1.002, MinLon: 1.0, MaxLon: 1.002}
	if want := geocalc.CircleRadius(geocalc.Point{Lat: st.Lat, Lon: st.Lon}, box); st.Radius != want {
		t.Errorf("expected radius %d, got %d", want, st.Radius)
	}
	if !st.CreatedAt.Equal(testNow) || !st.ModifiedAt.Equal(testNow) {
		t.Errorf("expected created and modified at %v, got %v / %v", testNow, st.CreatedAt, st.ModifiedAt)
	}
	if !st.LastSeen.Equal(models.DateOf(testNow)) {
		t.Errorf("expected last seen %v, got %v", models.DateOf(testNow), st.LastSeen)
	}
}

func TestMergeStationCapsOldWeight(t *testing.T) {
	t.Parallel()

	st := &models.Station{
		Type: models.StationWifi, MAC: "a1b2c3d4e5f6",
		Lat: 10, Lon: 10, Samples: 3000, Radius: 100,
		MinLat: 9.999, MaxLat: 10.001, MinLon: 9.999, MaxLon: 10.001,
		CreatedAt: testNow.Add(-90 * 24 * time.Hour),
	}
	created := st.CreatedAt

	moved, _ := mergeStation(st, []models.Observation{wifiObs("a1b2c3d4e5f6", 10.0011, 10)}, testNow)
	if moved {
		t.Fatal("expected no move")
	}
	wantLat := (10*1000 + 10.0011) / 1001
	if math.Abs(st.Lat-wantLat) > 1e-12 {
		t.Errorf("expected lat %.12f, got %.12f", wantLat, st.Lat)
	}
	if st.Lon != 10 {
		t.Errorf("expected lon 10, got %f", st.Lon)
	}
	if st.Samples != 3001 {
		t.Errorf("expected 3001 samples, got %d", st.Samples)
	}
	if st.MaxLat != 10.0011 {
		t.Errorf("expected box to grow to 10.0011, got %f", st.MaxLat)
	}
	if !st.CreatedAt.Equal(created) {
		t.Errorf("expected created_at to be kept, got %v", st.CreatedAt)
	}
}

func TestMergeStationMoveThresholds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		typ       models.StationType
		obsLat    float64
		wantMoved bool
	}{
		{"wifi within 5km", models.StationWifi, 1.03, false},
		{"wifi beyond 5km", models.StationWifi, 1.05, true},
		{"blue within 500m", models.StationBlue, 1.003, false},
		{"blue beyond 500m", models.StationBlue, 1.005, true},
		{"cell within 150km", models.StationCell, 2.0, false},
		{"cell beyond 150km", models.StationCell, 2.5, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			st := &models.Station{
				Type: tt.typ, Lat: 1, Lon: 1, Samples: 5,
				MinLat: 1, MaxLat: 1, MinLon: 1, MaxLon: 1,
			}
			obs := []models.Observation{{Type: tt.typ, Lat: tt.obsLat, Lon: 1}}

			moved, spread := mergeStation(st, obs, testNow)
			if moved != tt.wantMoved {
				t.Errorf("expected moved=%v, got %v (spread %.0f m)", tt.wantMoved, moved, spread)
			}
			if moved && (st.Lat != 1 || st.Samples != 5) {
				t.Errorf("expected moved station to stay unchanged, got lat %f samples %d", st.Lat, st.Samples)
			}
			if moved && spread <= tt.typ.MaxMoveMeters() {
				t.Errorf("expected spread above %.0f, got %.0f", tt.typ.MaxMoveMeters(), spread)
			}
		})
	}
}

func TestMergeStationKeepsLatestPSC(t *testing.T) {
	t.Parallel()

	psc1, psc2 := 10, 20
	key := gsmKey(1)
	first, second, third := cellObs(key, 51.5, -0.1), cellObs(key, 51.5, -0.1), cellObs(key, 51.5, -0.1)
	first.PSC, second.PSC = &psc1, &psc2

	st := newStation(&first)
	mergeStation(st, []models.Observation{first, second, third}, testNow)
	if st.PSC == nil || *st.PSC != 20 {
		t.Errorf("expected psc 20, got %v", st.PSC)
	}
}

func TestDecodeObservationsGroupsAndFilters(t *testing.T) {
	t.Parallel()

	items := encodeAll(t,
		wifiObs("a1b2c3d4e5f6", 1, 1),
		wifiObs("a0b2c3d4e5f6", 1, 1),
		wifiObs("a1b2c3d4e5f6", 1.001, 1),
		wifiObs("b1b2c3d4e5f6", 1, 1), // other shard
	)
	items = append(items, []byte("{not json"))

	groups, order, malformed := decodeObservations(items, "wifi_a")
	if malformed != 2 {
		t.Errorf("expected 2 malformed items, got %d", malformed)
	}
	if len(order) != 2 || order[0] != "a1b2c3d4e5f6" || order[1] != "a0b2c3d4e5f6" {
		t.Errorf("expected first-seen key order, got %v", order)
	}
	if len(groups["a1b2c3d4e5f6"]) != 2 {
		t.Errorf("expected 2 observations for a1b2c3d4e5f6, got %d", len(groups["a1b2c3d4e5f6"]))
	}
}

func newTestStationUpdater(t *testing.T) (*StationUpdater, *fakePublisher, *fakeQueue, *metrics.Metrics) {
	t.Helper()
	m := metrics.NewForTesting()
	db := setupTestDB(t, m)
	pub := &fakePublisher{}
	areas := &fakeQueue{}
	u := NewStationUpdater(db, testGeocoder(t), pub, areas, m, logging.Nop())
	u.now = func() time.Time { return testNow }
	return u, pub, areas, m
}

func TestStationUpdaterCreatesAndUpdates(t *testing.T) {
	t.Parallel()
	u, _, areas, m := newTestStationUpdater(t)
	ctx := context.Background()
	key := gsmKey(1234)

	if err := u.Process(ctx, "cell_gsm", encodeAll(t, cellObs(key, 51.5, -0.1), cellObs(key, 51.502, -0.1))); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if err := u.Process(ctx, "cell_gsm", encodeAll(t, cellObs(key, 51.501, -0.1))); err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	stations, err := u.db.Stations(ctx, "cell_gsm", []string{key.String()})
	if err != nil {
		t.Fatalf("Stations() error = %v", err)
	}
	st, ok := stations[key.String()]
	if !ok {
		t.Fatal("expected station to exist")
	}
	if st.Samples != 3 {
		t.Errorf("expected 3 samples, got %d", st.Samples)
	}
	if math.Abs(st.Lat-51.501) > 1e-9 {
		t.Errorf("expected lat 51.501, got %f", st.Lat)
	}
	if st.Region != "GB" {
		t.Errorf("expected region GB, got %q", st.Region)
	}

	if got := testutil.ToFloat64(m.StationChanges.WithLabelValues("cell", "new")); got != 1 {
		t.Errorf("expected 1 new station, got %v", got)
	}
	if got := testutil.ToFloat64(m.StationChanges.WithLabelValues("cell", "updated")); got != 1 {
		t.Errorf("expected 1 updated station, got %v", got)
	}
	if got := testutil.ToFloat64(m.ObservationsInserted.WithLabelValues("cell")); got != 3 {
		t.Errorf("expected 3 inserted observations, got %v", got)
	}

	queued := areas.strings()
	if len(queued) != 2 || queued[0] != "gsm:234:10:3" {
		t.Errorf("expected area id enqueued once per batch, got %v", queued)
	}
}

func TestStationUpdaterMoveAndBlock(t *testing.T) {
	t.Parallel()
	u, pub, _, m := newTestStationUpdater(t)
	ctx := context.Background()

	key := models.CellKey{Radio: models.RadioGSM, MCC: 310, MNC: 410, LAC: 5, CID: 1234}
	home := func() [][]byte {
		return encodeAll(t,
			cellObs(key, 40.0, -74.0), cellObs(key, 40.0, -74.0),
			cellObs(key, 40.0, -74.0), cellObs(key, 40.0, -74.0))
	}
	away := func() [][]byte { return encodeAll(t, cellObs(key, 37.0, -122.0)) }

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	month := func(i int) time.Time { return start.Add(time.Duration(i) * 30 * 24 * time.Hour) }

	process := func(at time.Time, items [][]byte) {
		t.Helper()
		u.now = func() time.Time { return at }
		if err := u.Process(ctx, "cell_gsm", items); err != nil {
			t.Fatalf("Process() error = %v", err)
		}
	}
	stationExists := func() (bool, time.Time) {
		t.Helper()
		stations, err := u.db.Stations(ctx, "cell_gsm", []string{key.String()})
		if err != nil {
			t.Fatalf("Stations() error = %v", err)
		}
		st, ok := stations[key.String()]
		if !ok {
			return false, time.Time{}
		}
		return true, st.CreatedAt
	}
	block := func() *models.BlockEntry {
		t.Helper()
		blocks, err := u.db.Blocks(ctx, "cell_gsm", []string{key.String()})
		if err != nil {
			t.Fatalf("Blocks() error = %v", err)
		}
		return blocks[key.String()]
	}

	process(month(0), home())
	if ok, _ := stationExists(); !ok {
		t.Fatal("expected first batch to create the station")
	}

	process(month(1), away())
	if ok, _ := stationExists(); ok {
		t.Fatal("expected moved station to be deleted")
	}
	b := block()
	if b == nil || b.Count != 1 {
		t.Fatalf("expected block count 1, got %+v", b)
	}
	if !b.FirstAt.Equal(month(1)) {
		t.Errorf("expected block first_at %v, got %v", month(1), b.FirstAt)
	}

	for i := 2; i <= 6; i++ {
		process(month(i), home())
		ok, created := stationExists()
		if !ok {
			t.Fatalf("month %d: expected expired block to allow recreation", i)
		}
		if !created.Equal(month(1)) {
			t.Errorf("month %d: expected created_at to keep block first_at %v, got %v", i, month(1), created)
		}
		process(month(i), away())
		if got := block().Count; got != i {
			t.Errorf("month %d: expected block count %d, got %d", i, i, got)
		}
	}

	if b := block(); !b.Permanent() {
		t.Fatalf("expected permanent block after 6 moves, got count %d", b.Count)
	}

	process(month(12), home())
	if ok, _ := stationExists(); ok {
		t.Error("expected permanent block to keep the station from being recreated")
	}
	if got := testutil.ToFloat64(m.ObservationsDropped.WithLabelValues("cell", "blocked")); got != 4 {
		t.Errorf("expected 4 blocked observations, got %v", got)
	}
	if got := pub.count(); got != 6 {
		t.Errorf("expected 6 move events, got %d", got)
	}
	if got := testutil.ToFloat64(m.StationChanges.WithLabelValues("cell", "blocked")); got != 6 {
		t.Errorf("expected 6 blocked station changes, got %v", got)
	}
}

func TestStationUpdaterTemporaryBlockDrops(t *testing.T) {
	t.Parallel()
	u, _, _, m := newTestStationUpdater(t)
	ctx := context.Background()
	mac := "a1b2c3d4e5f6"

	if err := u.Process(ctx, "wifi_a", encodeAll(t, wifiObs(mac, 1, 1))); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if err := u.Process(ctx, "wifi_a", encodeAll(t, wifiObs(mac, 2, 2))); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	// Still inside the temporary block window.
	u.now = func() time.Time { return testNow.Add(24 * time.Hour) }
	if err := u.Process(ctx, "wifi_a", encodeAll(t, wifiObs(mac, 1, 1))); err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	stations, err := u.db.Stations(ctx, "wifi_a", []string{mac})
	if err != nil {
		t.Fatalf("Stations() error = %v", err)
	}
	if len(stations) != 0 {
		t.Errorf("expected no station while blocked, got %d", len(stations))
	}
	if got := testutil.ToFloat64(m.ObservationsDropped.WithLabelValues("wifi", "blocked")); got != 1 {
		t.Errorf("expected 1 blocked observation, got %v", got)
	}
}

func TestStationUpdaterCreditsNewStations(t *testing.T) {
	t.Parallel()
	u, _, _, _ := newTestStationUpdater(t)
	ctx := context.Background()

	a := wifiObs("a1b2c3d4e5f6", 1, 1)
	a.Nickname = "alice"
	b := wifiObs("a2b2c3d4e5f6", 1, 1)
	b.Nickname = "alice"
	again := wifiObs("a1b2c3d4e5f6", 1, 1)
	again.Nickname = "alice"

	if err := u.Process(ctx, "wifi_a", encodeAll(t, a, b, again)); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if err := u.Process(ctx, "wifi_a", encodeAll(t, again)); err != nil {
		t.Fatalf("Process() error = %v", err)
	}

	scores, err := u.db.Scores(ctx, "alice")
	if err != nil {
		t.Fatalf("Scores() error = %v", err)
	}
	if scores[models.ScoreNewWifi] != 2 {
		t.Errorf("expected 2 new wifi credits, got %d", scores[models.ScoreNewWifi])
	}
}

func TestStationUpdaterUnknownShard(t *testing.T) {
	t.Parallel()
	u, _, _, _ := newTestStationUpdater(t)

	if err := u.Process(context.Background(), "bogus", encodeAll(t, wifiObs("a1b2c3d4e5f6", 1, 1))); err == nil {
		t.Error("expected error for unknown shard")
	}
}
