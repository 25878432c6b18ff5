// Triangulum - Radio Geolocation and Observation Ingest Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/triangulum

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every collector used by the service.
type Metrics struct {
	// Relational and key-value store metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryErrors   *prometheus.CounterVec
	KVErrors        *prometheus.CounterVec

	// API endpoint metrics
	APIRequestsTotal      *prometheus.CounterVec
	APIRequestDuration    *prometheus.HistogramVec
	APIActiveRequests     prometheus.Gauge
	APIRateLimitHits      *prometheus.CounterVec
	APIDailyLimitRejected *prometheus.CounterVec
	APIKeyRequests        *prometheus.CounterVec

	// Locate metrics
	LocateProviderResults *prometheus.CounterVec
	LocateResults         *prometheus.CounterVec
	LocateQueryStations   *prometheus.CounterVec

	// External fallback metrics
	FallbackRequests            *prometheus.CounterVec
	FallbackCache               *prometheus.CounterVec
	FallbackRateLimited         *prometheus.CounterVec
	FallbackDuration            prometheus.Histogram
	CircuitBreakerState         *prometheus.GaugeVec
	CircuitBreakerTransitions   *prometheus.CounterVec
	CircuitBreakerRequests      *prometheus.CounterVec
	CircuitBreakerConsecFailure *prometheus.GaugeVec

	// Queue metrics
	QueueSize  *prometheus.GaugeVec
	QueueItems *prometheus.CounterVec

	// Ingest metrics
	ReportsUploaded      *prometheus.CounterVec
	ReportsDropped       *prometheus.CounterVec
	ObservationsUploaded *prometheus.CounterVec
	ObservationsDropped  *prometheus.CounterVec
	ObservationsInserted *prometheus.CounterVec
	StationChanges       *prometheus.CounterVec
	AreaChanges          *prometheus.CounterVec
	DatamapGrids         *prometheus.CounterVec
	BatchDuration        *prometheus.HistogramVec

	// Event metrics
	EventsPublished *prometheus.CounterVec
}

// New registers all collectors against reg and returns them.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		DBQueryDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "store_db_query_duration_seconds",
				Help:    "Duration of relational store queries in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation", "table"},
		),
		DBQueryErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "store_db_query_errors_total",
				Help: "Total number of relational store query errors",
			},
			[]string{"operation", "table"},
		),
		KVErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "store_kv_errors_total",
				Help: "Total number of key-value store errors",
			},
			[]string{"operation"},
		),

		APIRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "api_requests_total",
				Help: "Total number of API requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),
		APIRequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "api_request_duration_seconds",
				Help:    "API request duration in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"method", "endpoint"},
		),
		APIActiveRequests: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "api_active_requests",
				Help: "Current number of active API requests",
			},
		),
		APIRateLimitHits: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "api_rate_limit_hits_total",
				Help: "Total number of per-IP rate limit rejections",
			},
			[]string{"endpoint"},
		),
		APIDailyLimitRejected: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "api_daily_limit_rejected_total",
				Help: "Requests rejected because the API key exceeded its daily limit",
			},
			[]string{"api_key"},
		),
		APIKeyRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "api_key_requests_total",
				Help: "Requests per API key and API type",
			},
			[]string{"api_key", "api_type"},
		),

		LocateProviderResults: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "locate_provider_results_total",
				Help: "Outcome of each provider search",
			},
			[]string{"provider", "status", "accuracy"},
		),
		LocateResults: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "locate_results_total",
				Help: "Final searcher results by API type, source and status",
			},
			[]string{"api_type", "source", "status", "accuracy"},
		),
		LocateQueryStations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "locate_query_total",
				Help: "Locate queries by station type and count bucket (none, one, many)",
			},
			[]string{"api_type", "station_type", "count"},
		),

		FallbackRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fallback_requests_total",
				Help: "External fallback requests by outcome",
			},
			[]string{"fallback_name", "status"},
		),
		FallbackCache: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fallback_cache_total",
				Help: "External fallback cache lookups by outcome (hit, miss, bypassed, failure)",
			},
			[]string{"fallback_name", "status"},
		),
		FallbackRateLimited: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fallback_rate_limited_total",
				Help: "External fallback requests suppressed by the per-key rate limit",
			},
			[]string{"fallback_name"},
		),
		FallbackDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "fallback_request_duration_seconds",
				Help:    "External fallback request duration in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
		),
		CircuitBreakerState: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
			},
			[]string{"name"},
		),
		CircuitBreakerTransitions: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "circuit_breaker_transitions_total",
				Help: "Circuit breaker state transitions",
			},
			[]string{"name", "from", "to"},
		),
		CircuitBreakerRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "circuit_breaker_requests_total",
				Help: "Requests through the circuit breaker by result (success, failure, rejected)",
			},
			[]string{"name", "result"},
		),
		CircuitBreakerConsecFailure: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_consecutive_failures",
				Help: "Current consecutive failure count",
			},
			[]string{"name"},
		),

		QueueSize: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "queue_size",
				Help: "Number of items waiting in each queue",
			},
			[]string{"queue"},
		),
		QueueItems: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "queue_items_total",
				Help: "Items enqueued and dequeued per queue",
			},
			[]string{"queue", "op"},
		),

		ReportsUploaded: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_reports_total",
				Help: "Reports taken from the incoming queue",
			},
			[]string{"api_key"},
		),
		ReportsDropped: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_reports_dropped_total",
				Help: "Reports dropped during ingest by reason",
			},
			[]string{"reason"},
		),
		ObservationsUploaded: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_observations_total",
				Help: "Observations extracted from reports by station type",
			},
			[]string{"type"},
		),
		ObservationsDropped: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_observations_dropped_total",
				Help: "Observations dropped by station type and reason",
			},
			[]string{"type", "reason"},
		),
		ObservationsInserted: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_observations_inserted_total",
				Help: "Observations merged into station estimates",
			},
			[]string{"type"},
		),
		StationChanges: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_station_changes_total",
				Help: "Station rows created, updated or blocklisted",
			},
			[]string{"type", "action"},
		),
		AreaChanges: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_area_changes_total",
				Help: "Cell area rows upserted or deleted",
			},
			[]string{"action"},
		),
		DatamapGrids: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ingest_datamap_grids_total",
				Help: "Datamap grid rows inserted or refreshed per shard",
			},
			[]string{"shard", "action"},
		),
		BatchDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ingest_batch_duration_seconds",
				Help:    "Time spent processing one queue batch",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"queue"},
		),

		EventsPublished: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "events_published_total",
				Help: "Station events published by topic and status",
			},
			[]string{"topic", "status"},
		),
	}
}

// NewForTesting returns a Metrics registered against a fresh registry.
func NewForTesting() *Metrics {
	return New(prometheus.NewRegistry())
}

// RecordDBQuery records a relational store query.
func (m *Metrics) RecordDBQuery(operation, table string, duration time.Duration, err error) {
	m.DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		m.DBQueryErrors.WithLabelValues(operation, table).Inc()
	}
}

// RecordAPIRequest records an API request.
func (m *Metrics) RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	m.APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	m.APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests.
func (m *Metrics) TrackActiveRequest(inc bool) {
	if inc {
		m.APIActiveRequests.Inc()
	} else {
		m.APIActiveRequests.Dec()
	}
}

// RecordProviderResult records the outcome of one provider search.
func (m *Metrics) RecordProviderResult(provider, status, accuracy string) {
	m.LocateProviderResults.WithLabelValues(provider, status, accuracy).Inc()
}

// RecordLocateResult records the final outcome of a searcher run.
func (m *Metrics) RecordLocateResult(apiType, source, status, accuracy string) {
	m.LocateResults.WithLabelValues(apiType, source, status, accuracy).Inc()
}

// RecordQueryStations records how many stations of a type a query carried.
func (m *Metrics) RecordQueryStations(apiType, stationType string, count int) {
	m.LocateQueryStations.WithLabelValues(apiType, stationType, countBucket(count)).Inc()
}

// RecordQueueOp records items moving through a queue and its new size.
func (m *Metrics) RecordQueueOp(queue, op string, items int) {
	if items > 0 {
		m.QueueItems.WithLabelValues(queue, op).Add(float64(items))
	}
}

// SetQueueSize updates the depth gauge of a queue.
func (m *Metrics) SetQueueSize(queue string, size int) {
	m.QueueSize.WithLabelValues(queue).Set(float64(size))
}

// RecordObservationDrop records dropped observations.
func (m *Metrics) RecordObservationDrop(stationType, reason string, count int) {
	if count > 0 {
		m.ObservationsDropped.WithLabelValues(stationType, reason).Add(float64(count))
	}
}

// RecordStationChange records station row changes.
func (m *Metrics) RecordStationChange(stationType, action string, count int) {
	if count > 0 {
		m.StationChanges.WithLabelValues(stationType, action).Add(float64(count))
	}
}

// RecordCircuitBreakerTransition updates state gauges on a breaker transition.
// States follow gobreaker ordering: 0=closed, 1=half-open, 2=open.
func (m *Metrics) RecordCircuitBreakerTransition(name, from, to string, toState int) {
	m.CircuitBreakerState.WithLabelValues(name).Set(float64(toState))
	m.CircuitBreakerTransitions.WithLabelValues(name, from, to).Inc()
}

func countBucket(n int) string {
	switch {
	case n <= 0:
		return "none"
	case n == 1:
		return "one"
	default:
		return "many"
	}
}

// AccuracyBucket maps an accuracy radius to the coarse label used on
// locate metrics.
func AccuracyBucket(accuracy float64) string {
	switch {
	case accuracy <= 0:
		return "none"
	case accuracy <= 500:
		return "high"
	case accuracy <= 50000:
		return "medium"
	default:
		return "low"
	}
}
