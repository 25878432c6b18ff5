// Triangulum - Radio Geolocation and Observation Ingest Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/triangulum

package locate

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/triangulum/internal/logging"
	"github.com/tomtom215/triangulum/internal/metrics"
	"github.com/tomtom215/triangulum/internal/models"
)

// stubProvider returns a fixed outcome and counts calls.
type stubProvider struct {
	name   string
	out    Outcome
	calls  int
	cancel context.CancelFunc
}

func (s *stubProvider) Name() string                          { return s.name }
func (s *stubProvider) ShouldSearch(_ *Query, _ Outcome) bool { return true }
func (s *stubProvider) Search(_ context.Context, _ *Query) Outcome {
	s.calls++
	if s.cancel != nil {
		s.cancel()
	}
	return s.out
}

type fakeCounter struct {
	mu  sync.Mutex
	n   map[string]int64
	err error
}

func (c *fakeCounter) IncrDaily(_ context.Context, key string, _ time.Time) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return 0, c.err
	}
	if c.n == nil {
		c.n = make(map[string]int64)
	}
	c.n[key]++
	return c.n[key], nil
}

type fakeSink struct {
	mu    sync.Mutex
	items [][]byte
}

func (s *fakeSink) Enqueue(_ context.Context, items [][]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = append(s.items, items...)
	return nil
}

func position(p Precedence, acc float64, hit bool) Outcome {
	return Outcome{
		Result:     models.Result{Kind: models.ResultPosition, Lat: float64(p), Accuracy: acc, Source: models.DataSourceInternal},
		Precedence: p,
		Hit:        hit,
	}
}

func scenarioStations() *fakeStations {
	src := newFakeStations()
	src.addCell(gsmCell(1234), 51.5, -0.1, 1000)
	src.addArea(models.CellAreaKey{Radio: models.RadioGSM, MCC: 234, MNC: 10, LAC: 30}, 51.5, -0.1, 22000)
	src.addMAC(models.StationWifi, macAA, 1.000, 1.000)
	src.addMAC(models.StationWifi, macBB, 1.001, 1.002)
	src.addMAC(models.StationWifi, macCC, 1.002, 1.004)
	src.addMAC(models.StationWifi, macDD, 2.000, 2.000)
	return src
}

func newScenarioSearcher(t *testing.T) *Searcher {
	t.Helper()
	return NewPositionSearcher(Deps{
		Stations: scenarioStations(),
		Regions:  testRegions(t),
		GeoIP:    londonGeoIP(),
		Metrics:  metrics.NewForTesting(),
		Logger:   logging.Nop(),
	})
}

func TestPositionSearcherScenarios(t *testing.T) {
	t.Parallel()

	cellID := func(v int64) *int64 { return &v }

	tests := []struct {
		name     string
		req      GeolocateRequest
		ip       string
		found    bool
		lat, lon float64
		accuracy float64
		fallback string
	}{
		{
			name: "cell exact match",
			req: GeolocateRequest{CellTowers: []CellTower{{
				RadioType: "gsm", MobileCountryCode: 234, MobileNetworkCode: 10, LocationAreaCode: 3, CellID: cellID(1234),
			}}},
			found: true, lat: 51.5, lon: -0.1, accuracy: 5000,
		},
		{
			name: "wifi cluster with outlier",
			req: GeolocateRequest{WifiAccessPoints: []WifiAccessPoint{
				{MACAddress: macAA}, {MACAddress: macBB}, {MACAddress: macCC}, {MACAddress: macDD},
			}},
			found: true, lat: 1.001, lon: 1.002, accuracy: 249,
		},
		{
			name:  "wifi too few candidates",
			req:   GeolocateRequest{WifiAccessPoints: []WifiAccessPoint{{MACAddress: macAA}, {MACAddress: "50a4b4c4d4e4"}}},
			found: false,
		},
		{
			name: "cell area fallback",
			req: GeolocateRequest{CellTowers: []CellTower{{
				RadioType: "gsm", MobileCountryCode: 234, MobileNetworkCode: 10, LocationAreaCode: 30, CellID: cellID(99),
			}}},
			found: true, lat: 51.5, lon: -0.1, accuracy: 22000, fallback: "lacf",
		},
		{
			name: "cell area fallback disabled",
			req: GeolocateRequest{
				CellTowers: []CellTower{{
					RadioType: "gsm", MobileCountryCode: 234, MobileNetworkCode: 10, LocationAreaCode: 30, CellID: cellID(99),
				}},
				Fallbacks: &FallbackOptions{LACF: boolPtr(false)},
			},
			found: false,
		},
		{
			name:  "geoip only",
			req:   GeolocateRequest{WifiAccessPoints: []WifiAccessPoint{{MACAddress: "50a4b4c4d4e4"}}},
			ip:    "81.2.69.160",
			found: true, lat: 51.5142, lon: -0.0931, accuracy: 50000, fallback: "ipf",
		},
		{
			name:  "geoip disabled",
			req:   GeolocateRequest{WifiAccessPoints: []WifiAccessPoint{{MACAddress: "50a4b4c4d4e4"}}, Fallbacks: &FallbackOptions{IPF: boolPtr(false)}},
			ip:    "81.2.69.160",
			found: false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			q := tt.req.Query()
			if tt.ip != "" {
				q.IP = net.ParseIP(tt.ip)
			}
			res, err := newScenarioSearcher(t).Search(context.Background(), q)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.Found() != tt.found {
				t.Fatalf("expected found=%v, got %+v", tt.found, res)
			}
			if !tt.found {
				return
			}
			if diff := res.Lat - tt.lat; diff > 1e-6 || diff < -1e-6 {
				t.Errorf("expected lat %f, got %f", tt.lat, res.Lat)
			}
			if diff := res.Lon - tt.lon; diff > 1e-6 || diff < -1e-6 {
				t.Errorf("expected lon %f, got %f", tt.lon, res.Lon)
			}
			if diff := res.Accuracy - tt.accuracy; diff > 1 || diff < -1 {
				t.Errorf("expected accuracy %f, got %f", tt.accuracy, res.Accuracy)
			}
			if res.Fallback != tt.fallback {
				t.Errorf("expected fallback %q, got %q", tt.fallback, res.Fallback)
			}
		})
	}
}

func TestSearcherHitEndsChain(t *testing.T) {
	t.Parallel()

	first := &stubProvider{name: "first", out: position(PrecedenceCell, 5000, true)}
	second := &stubProvider{name: "second", out: position(PrecedenceGeoIP, 10, true)}
	s := NewSearcher(APITypeLocate, []Provider{first, second}, Deps{Metrics: metrics.NewForTesting(), Logger: logging.Nop()})

	res, err := s.Search(context.Background(), &Query{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Accuracy != 5000 {
		t.Errorf("expected the first hit, got %+v", res)
	}
	if second.calls != 0 {
		t.Errorf("expected the chain to stop after a hit, got %d calls", second.calls)
	}
}

func TestSearcherPrecedence(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		outcomes []Outcome
		wantPrec float64
	}{
		{
			name:     "higher precedence beats smaller radius",
			outcomes: []Outcome{position(PrecedenceGeoIP, 10, false), position(PrecedenceCell, 80000, false)},
			wantPrec: float64(PrecedenceCell),
		},
		{
			name:     "lower precedence never replaces",
			outcomes: []Outcome{position(PrecedenceCell, 80000, false), position(PrecedenceGeoIP, 10, false)},
			wantPrec: float64(PrecedenceCell),
		},
		{
			name:     "same precedence keeps the smaller radius",
			outcomes: []Outcome{position(PrecedenceFallback, 90000, false), position(PrecedenceFallback, 60000, false)},
			wantPrec: float64(PrecedenceFallback),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var providers []Provider
			for i, o := range tt.outcomes {
				providers = append(providers, &stubProvider{name: string(rune('a' + i)), out: o})
			}
			m := metrics.NewForTesting()
			s := NewSearcher(APITypeLocate, providers, Deps{Metrics: m, Logger: logging.Nop()})
			res, _ := s.Search(context.Background(), &Query{Cells: []CellQuery{{CellKey: gsmCell(1)}}})
			if res.Lat != tt.wantPrec {
				t.Errorf("expected answer from precedence %v, got %v", tt.wantPrec, res.Lat)
			}
			if tt.name == "same precedence keeps the smaller radius" && res.Accuracy != 60000 {
				t.Errorf("expected 60000, got %f", res.Accuracy)
			}
			if got := testutil.ToFloat64(m.LocateResults.WithLabelValues(APITypeLocate, "internal", "partial", metrics.AccuracyBucket(res.Accuracy))); got != 1 {
				t.Errorf("expected 1 partial locate result, got %f", got)
			}
		})
	}
}

func TestSearcherStopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first := &stubProvider{name: "first", out: position(PrecedenceCell, 80000, false), cancel: cancel}
	second := &stubProvider{name: "second", out: position(PrecedenceMAC, 100, true)}
	s := NewSearcher(APITypeLocate, []Provider{first, second}, Deps{Metrics: metrics.NewForTesting(), Logger: logging.Nop()})

	res, err := s.Search(ctx, &Query{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Accuracy != 80000 {
		t.Errorf("expected the best answer before cancellation, got %+v", res)
	}
	if second.calls != 0 {
		t.Errorf("expected no search after cancellation, got %d", second.calls)
	}
}

func TestSearcherDailyLimit(t *testing.T) {
	t.Parallel()

	m := metrics.NewForTesting()
	counter := &fakeCounter{}
	stub := &stubProvider{name: "stub", out: position(PrecedenceCell, 5000, true)}
	s := NewSearcher(APITypeLocate, []Provider{stub}, Deps{Counter: counter, Metrics: m, Logger: logging.Nop()})
	key := &models.APIKey{Key: "limited", MaxReq: 2}

	for i := 0; i < 2; i++ {
		if _, err := s.Search(context.Background(), &Query{APIKey: key}); err != nil {
			t.Fatalf("request %d: unexpected error: %v", i+1, err)
		}
	}
	if _, err := s.Search(context.Background(), &Query{APIKey: key}); !errors.Is(err, ErrDailyLimitExceeded) {
		t.Errorf("expected ErrDailyLimitExceeded, got %v", err)
	}
	if stub.calls != 2 {
		t.Errorf("expected the chain not to run over the limit, got %d calls", stub.calls)
	}
	if got := testutil.ToFloat64(m.APIDailyLimitRejected.WithLabelValues("limited")); got != 1 {
		t.Errorf("expected 1 rejection, got %f", got)
	}

	unlimited := &models.APIKey{Key: "unlimited"}
	for i := 0; i < 5; i++ {
		if _, err := s.Search(context.Background(), &Query{APIKey: unlimited}); err != nil {
			t.Fatalf("unexpected error without a limit: %v", err)
		}
	}
}

func TestSearcherDailyLimitFailsOpen(t *testing.T) {
	t.Parallel()

	counter := &fakeCounter{err: errors.New("store down")}
	s := NewSearcher(APITypeLocate, nil, Deps{Counter: counter, Metrics: metrics.NewForTesting(), Logger: logging.Nop()})
	if _, err := s.Search(context.Background(), &Query{APIKey: &models.APIKey{Key: "k", MaxReq: 1}}); err != nil {
		t.Errorf("expected counter failures to allow the request, got %v", err)
	}
}

func TestSearcherSamplesLocateQueries(t *testing.T) {
	t.Parallel()

	wifi := position(PrecedenceMAC, 120, true)
	geo := position(PrecedenceGeoIP, 50000, true)
	geo.Result.Source = models.DataSourceGeoIP

	tests := []struct {
		name    string
		out     Outcome
		enabled bool
		pct     int
		want    int
	}{
		{"internal answer sampled", wifi, true, 100, 1},
		{"geoip answer skipped", geo, true, 100, 0},
		{"feature disabled", wifi, false, 100, 0},
		{"key opted out", wifi, true, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			sink := &fakeSink{}
			stub := &stubProvider{name: "stub", out: tt.out}
			s := NewSearcher(APITypeLocate, []Provider{stub}, Deps{
				Sink: sink, SampleLocate: tt.enabled, Metrics: metrics.NewForTesting(), Logger: logging.Nop(),
			})
			q := wifiQuery(macAA, macBB)
			q.APIKey = &models.APIKey{Key: "sampler", StoreSampleLocate: tt.pct}

			if _, err := s.Search(context.Background(), q); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(sink.items) != tt.want {
				t.Fatalf("expected %d sampled batches, got %d", tt.want, len(sink.items))
			}
			if tt.want == 0 {
				return
			}
			var batch models.ReportBatch
			if err := json.Unmarshal(sink.items[0], &batch); err != nil {
				t.Fatalf("failed to decode sampled batch: %v", err)
			}
			if batch.APIKey != "sampler" || len(batch.Reports) != 1 {
				t.Fatalf("unexpected batch %+v", batch)
			}
			r := batch.Reports[0]
			if r.Position.Source != models.SourceQuery || len(r.Wifis) != 2 {
				t.Errorf("expected a query sourced report with 2 wifis, got %+v", r)
			}
		})
	}
}

func TestRegionSearcher(t *testing.T) {
	t.Parallel()

	s := NewRegionSearcher(Deps{
		Stations: newFakeStations(),
		Regions:  testRegions(t),
		GeoIP:    londonGeoIP(),
		Metrics:  metrics.NewForTesting(),
		Logger:   logging.Nop(),
	})

	res, err := s.Search(context.Background(), &Query{IP: net.ParseIP("81.2.69.160"), Fallbacks: DefaultFallbacks()})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Kind != models.ResultRegion || res.RegionCode != "GB" {
		t.Errorf("expected GB from geoip, got %+v", res)
	}

	cellID := int64(5)
	req := GeolocateRequest{CellTowers: []CellTower{{RadioType: "lte", MobileCountryCode: 240, MobileNetworkCode: 1, LocationAreaCode: 1, CellID: &cellID}}}
	q := req.Query()
	q.IP = net.ParseIP("81.2.69.160")
	res, _ = s.Search(context.Background(), q)
	if res.RegionCode != "SE" || res.Source != models.DataSourceInternal {
		t.Errorf("expected SE from the cell mcc ahead of geoip, got %+v", res)
	}

	noIPF := &Query{IP: net.ParseIP("81.2.69.160"), Fallbacks: Fallbacks{LACF: true}}
	if res, _ := s.Search(context.Background(), noIPF); res.Found() {
		t.Errorf("expected no region with ipf disabled, got %+v", res)
	}

	if res, _ := s.Search(context.Background(), &Query{}); res.Found() {
		t.Errorf("expected no region for an empty query, got %+v", res)
	}
}
