// Triangulum - Radio Geolocation and Observation Ingest Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/triangulum

package config

import (
	"fmt"
	"time"
)

// Config holds all application configuration.
//
// Example:
//
//	cfg, err := config.Load()
//	if err != nil {
//	    return err
//	}
//	db, err := database.New(&cfg.Database, logger, m)
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	KVStore  KVStoreConfig  `koanf:"kvstore"`
	GeoIP    GeoIPConfig    `koanf:"geoip"`
	Regions  RegionsConfig  `koanf:"regions"`
	Locate   LocateConfig   `koanf:"locate"`
	Ingest   IngestConfig   `koanf:"ingest"`
	Events   EventsConfig   `koanf:"events"`
	Logging  LoggingConfig  `koanf:"logging"`
	Metrics  MetricsConfig  `koanf:"metrics"`

	// AssetBucket is the object-storage bucket for exports. Export is not
	// part of this service; the value is accepted so shared deployment
	// files keep loading.
	AssetBucket string `koanf:"asset_bucket"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `koanf:"port"`
	Host            string        `koanf:"host"`
	ReadTimeout     time.Duration `koanf:"read_timeout"`
	WriteTimeout    time.Duration `koanf:"write_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
	MaxBodyBytes    int64         `koanf:"max_body_bytes"`

	// Per-IP request throttling in front of the public API.
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	CORSOrigins       []string      `koanf:"cors_origins"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseConfig holds relational store (DuckDB) settings.
type DatabaseConfig struct {
	// URL is a DuckDB file path, optionally prefixed with duckdb://.
	// ":memory:" opens an in-memory database.
	URL          string        `koanf:"url"`
	MaxMemory    string        `koanf:"max_memory"`
	Threads      int           `koanf:"threads"`
	MaxOpenConns int           `koanf:"max_open_conns"`
	QueryTimeout time.Duration `koanf:"query_timeout"`
}

// KVStoreConfig holds key-value store (Badger) settings.
type KVStoreConfig struct {
	// URL is the Badger directory, optionally prefixed with badger://.
	// "memory" opens an in-memory store.
	URL          string        `koanf:"url"`
	SyncWrites   bool          `koanf:"sync_writes"`
	QueueTTL     time.Duration `koanf:"queue_ttl"`
	GCInterval   time.Duration `koanf:"gc_interval"`
	MemTableSize int64         `koanf:"mem_table_size"`
}

// GeoIPConfig holds GeoIP database settings.
type GeoIPConfig struct {
	// Path is the MaxMind city database. Empty disables GeoIP.
	Path string `koanf:"path"`
}

// RegionsConfig holds region polygon settings.
type RegionsConfig struct {
	// Path is an optional GeoJSON FeatureCollection replacing the embedded
	// region outlines. Features carry "alpha2", "name" and optionally
	// "radius" (meters) properties.
	Path string `koanf:"path"`
}

// LocateConfig holds locate path settings.
type LocateConfig struct {
	FallbackTimeout          time.Duration `koanf:"fallback_timeout"`
	RateLimitFailOpen        bool          `koanf:"rate_limit_fail_open"`
	BreakerMaxRequests       uint32        `koanf:"breaker_max_requests"`
	BreakerInterval          time.Duration `koanf:"breaker_interval"`
	BreakerTimeout           time.Duration `koanf:"breaker_timeout"`
	BreakerFailureThreshold  uint32        `koanf:"breaker_failure_threshold"`
	APIKeyCacheTTL           time.Duration `koanf:"api_key_cache_ttl"`
	StoreSampleLocateEnabled bool          `koanf:"store_sample_locate_enabled"`
}

// IngestConfig holds queue worker settings.
type IngestConfig struct {
	IncomingBatch int           `koanf:"incoming_batch"`
	CellBatch     int           `koanf:"cell_batch"`
	WifiBatch     int           `koanf:"wifi_batch"`
	BlueBatch     int           `koanf:"blue_batch"`
	DatamapBatch  int           `koanf:"datamap_batch"`
	AreaBatch     int           `koanf:"area_batch"`
	IdleInterval  time.Duration `koanf:"idle_interval"`
	PollRate      float64       `koanf:"poll_rate"`
	DrainTimeout  time.Duration `koanf:"drain_timeout"`
	Enabled       bool          `koanf:"enabled"`

	// DatamapRetention is how long a datamap grid cell survives without a
	// new ping; DatamapCleanupInterval is how often stale cells are removed.
	DatamapRetention       time.Duration `koanf:"datamap_retention"`
	DatamapCleanupInterval time.Duration `koanf:"datamap_cleanup_interval"`
}

// EventsConfig holds station event bus settings.
type EventsConfig struct {
	// Mode is one of "memory" (in-process Watermill GoChannel), "nats"
	// (JetStream) or "disabled".
	Mode          string        `koanf:"mode"`
	URL           string        `koanf:"url"`
	Embedded      bool          `koanf:"embedded"`
	StoreDir      string        `koanf:"store_dir"`
	Stream        string        `koanf:"stream"`
	MaxReconnects int           `koanf:"max_reconnects"`
	ReconnectWait time.Duration `koanf:"reconnect_wait"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// MetricsConfig holds telemetry settings.
type MetricsConfig struct {
	Enabled bool   `koanf:"enabled"`
	Path    string `koanf:"path"`

	// StatsdHost and SentryDSN name sinks of older deployments. Prometheus
	// replaces both; a non-empty value is logged at startup and ignored.
	StatsdHost string `koanf:"statsd_host"`
	SentryDSN  string `koanf:"sentry_dsn"`
}
