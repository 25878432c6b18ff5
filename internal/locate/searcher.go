// Triangulum - Radio Geolocation and Observation Ingest Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/triangulum

package locate

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/tomtom215/triangulum/internal/logging"
	"github.com/tomtom215/triangulum/internal/metrics"
	"github.com/tomtom215/triangulum/internal/models"
)

// ErrDailyLimitExceeded is returned when the API key used up its daily
// request allowance.
var ErrDailyLimitExceeded = errors.New("daily limit exceeded")

// DailyCounter counts requests per API key and day.
type DailyCounter interface {
	IncrDaily(ctx context.Context, apiKey string, day time.Time) (int64, error)
}

// ReportSink accepts encoded report batches for ingestion.
type ReportSink interface {
	Enqueue(ctx context.Context, items [][]byte) error
}

// Deps are the collaborators shared by the searchers. Only Stations,
// Regions and Metrics are required.
type Deps struct {
	Stations     StationSource
	Regions      RegionSource
	GeoIP        GeoIPSource
	Fallback     *FallbackProvider
	Counter      DailyCounter
	Sink         ReportSink
	SampleLocate bool
	Metrics      *metrics.Metrics
	Logger       zerolog.Logger
}

// Searcher runs a fixed, ordered provider chain.
type Searcher struct {
	apiType      string
	providers    []Provider
	counter      DailyCounter
	sink         ReportSink
	sampleLocate bool
	metrics      *metrics.Metrics
	logger       zerolog.Logger
	draw         func() float64 // uniform in [0,100)
}

// NewPositionSearcher builds the position chain: Bluetooth, Wi-Fi, cell,
// cell area, external fallback, GeoIP.
func NewPositionSearcher(d Deps) *Searcher {
	logger := logging.WithComponent(d.Logger, "locate")
	providers := []Provider{
		NewBlueProvider(d.Stations, logger),
		NewWifiProvider(d.Stations, logger),
		NewCellProvider(d.Stations, logger),
		NewCellAreaProvider(d.Stations, logger),
	}
	if d.Fallback != nil {
		providers = append(providers, d.Fallback)
	}
	if d.GeoIP != nil {
		providers = append(providers, NewGeoIPProvider(d.GeoIP))
	}
	return NewSearcher(APITypeLocate, providers, d)
}

// NewRegionSearcher builds the region chain: cell region, GeoIP.
func NewRegionSearcher(d Deps) *Searcher {
	logger := logging.WithComponent(d.Logger, "region")
	providers := []Provider{NewCellRegionProvider(d.Stations, d.Regions, d.GeoIP, logger)}
	if d.GeoIP != nil {
		providers = append(providers, NewGeoIPRegionProvider(d.GeoIP, d.Regions))
	}
	return NewSearcher(APITypeRegion, providers, d)
}

// NewSearcher runs the given providers in order.
func NewSearcher(apiType string, providers []Provider, d Deps) *Searcher {
	return &Searcher{
		apiType:      apiType,
		providers:    providers,
		counter:      d.Counter,
		sink:         d.Sink,
		sampleLocate: d.SampleLocate,
		metrics:      d.Metrics,
		logger:       logging.WithComponent(d.Logger, "searcher").With().Str("api_type", apiType).Logger(),
		draw:         func() float64 { return rand.Float64() * 100 },
	}
}

// APIType is "locate" or "region".
func (s *Searcher) APIType() string { return s.apiType }

// Search normalizes q, enforces the daily limit and runs the chain. A
// result that is not Found means nothing located the query. A cancelled
// context stops the chain and returns the best answer so far.
func (s *Searcher) Search(ctx context.Context, q *Query) (models.Result, error) {
	q.APIType = s.apiType
	q.Normalize()

	if err := s.checkDailyLimit(ctx, q); err != nil {
		return models.Result{}, err
	}
	s.metrics.RecordQueryStations(s.apiType, string(models.StationCell), len(q.Cells))
	s.metrics.RecordQueryStations(s.apiType, string(models.StationWifi), len(q.Wifis))
	s.metrics.RecordQueryStations(s.apiType, string(models.StationBlue), len(q.Blues))

	logger := logging.WithRequest(ctx, s.logger)
	var best Outcome
	for _, p := range s.providers {
		if ctx.Err() != nil {
			logger.Debug().Err(ctx.Err()).Msg("Search abandoned")
			break
		}
		if !p.ShouldSearch(q, best) {
			continue
		}
		out := p.Search(ctx, q)
		status := outcomeStatus(out)
		s.metrics.RecordProviderResult(p.Name(), status, metrics.AccuracyBucket(out.Result.Accuracy))
		logger.Debug().
			Str("provider", p.Name()).
			Str("status", status).
			Float64("accuracy", out.Result.Accuracy).
			Msg("Provider searched")

		if out.Better(best) {
			best = out
		}
		if best.Hit {
			break
		}
	}

	status, source := "miss", "none"
	if best.Found() {
		status, source = outcomeStatus(best), string(best.Result.Source)
	}
	s.metrics.RecordLocateResult(s.apiType, source, status, metrics.AccuracyBucket(best.Result.Accuracy))

	s.sample(ctx, q, best)
	return best.Result, nil
}

func outcomeStatus(o Outcome) string {
	switch {
	case o.Hit:
		return "hit"
	case o.Found():
		return "partial"
	}
	return "miss"
}

// checkDailyLimit counts the request. Counter failures let the request
// through.
func (s *Searcher) checkDailyLimit(ctx context.Context, q *Query) error {
	if q.APIKey == nil {
		return nil
	}
	s.metrics.APIKeyRequests.WithLabelValues(q.APIKey.Key, s.apiType).Inc()
	if s.counter == nil {
		return nil
	}
	n, err := s.counter.IncrDaily(ctx, q.APIKey.Key, q.Now)
	if err != nil {
		s.logger.Warn().Err(err).Str("api_key", q.APIKey.Key).Msg("Daily limit check failed, allowing request")
		return nil
	}
	if q.APIKey.MaxReq > 0 && n > int64(q.APIKey.MaxReq) {
		s.metrics.APIDailyLimitRejected.WithLabelValues(q.APIKey.Key).Inc()
		return ErrDailyLimitExceeded
	}
	return nil
}

// sample feeds a share of located radio queries back into ingestion with
// the answer as the report position.
func (s *Searcher) sample(ctx context.Context, q *Query, best Outcome) {
	if !s.sampleLocate || s.sink == nil || q.APIKey == nil || q.APIKey.StoreSampleLocate <= 0 {
		return
	}
	res := best.Result
	if res.Kind != models.ResultPosition || res.Source == models.DataSourceGeoIP || !q.HasRadioData() {
		return
	}
	if q.APIKey.StoreSampleLocate < 100 && s.draw() >= float64(q.APIKey.StoreSampleLocate) {
		return
	}

	raw, err := json.Marshal(models.ReportBatch{
		APIKey:  q.APIKey.Key,
		Reports: []models.Report{queryReport(q, res)},
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to encode sampled query")
		return
	}
	if err := s.sink.Enqueue(ctx, [][]byte{raw}); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to enqueue sampled query")
	}
}

func queryReport(q *Query, res models.Result) models.Report {
	acc := res.Accuracy
	r := models.Report{
		Timestamp: q.Now.UnixMilli(),
		Position: models.Position{
			Lat:      res.Lat,
			Lon:      res.Lon,
			Accuracy: &acc,
			Source:   models.SourceQuery,
		},
	}
	for _, c := range q.Cells {
		r.Cells = append(r.Cells, models.CellReport{
			CellKey: c.CellKey, PSC: c.PSC, Signal: c.Signal, TA: c.TA, ASU: c.ASU, Age: c.Age,
		})
	}
	for _, w := range q.Wifis {
		r.Wifis = append(r.Wifis, models.WifiReport{
			MAC: w.MAC, Channel: w.Channel, Frequency: w.Frequency, Signal: w.Signal, SNR: w.SNR, Age: w.Age,
		})
	}
	for _, b := range q.Blues {
		r.Blues = append(r.Blues, models.BlueReport{MAC: b.MAC, Signal: b.Signal, Age: b.Age})
	}
	return r
}
