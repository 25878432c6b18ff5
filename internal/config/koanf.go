// Triangulum - Radio Geolocation and Observation Ingest Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/triangulum

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/triangulum/config.yaml",
	"/etc/triangulum/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8000,
			Host:            "0.0.0.0",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    75 * time.Second, // fallback calls may take up to 60s
			ShutdownTimeout: 10 * time.Second,
			MaxBodyBytes:    1 << 20,
			RateLimitReqs:   600,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{"*"},
		},
		Database: DatabaseConfig{
			URL:          "/data/triangulum.duckdb",
			MaxMemory:    "2GB",
			Threads:      0,
			MaxOpenConns: 8,
			QueryTimeout: 10 * time.Second,
		},
		KVStore: KVStoreConfig{
			URL:          "/data/kv",
			SyncWrites:   false,
			QueueTTL:     48 * time.Hour,
			GCInterval:   10 * time.Minute,
			MemTableSize: 64 << 20,
		},
		Locate: LocateConfig{
			FallbackTimeout:          60 * time.Second,
			RateLimitFailOpen:        true,
			BreakerMaxRequests:       1,
			BreakerInterval:          time.Minute,
			BreakerTimeout:           30 * time.Second,
			BreakerFailureThreshold:  5,
			APIKeyCacheTTL:           5 * time.Minute,
			StoreSampleLocateEnabled: true,
		},
		Ingest: IngestConfig{
			IncomingBatch: 100,
			CellBatch:     100,
			WifiBatch:     500,
			BlueBatch:     500,
			DatamapBatch:  500,
			AreaBatch:     100,
			IdleInterval:  2 * time.Second,
			PollRate:      20,
			DrainTimeout:  30 * time.Second,
			Enabled:       true,

			DatamapRetention:       365 * 24 * time.Hour,
			DatamapCleanupInterval: 24 * time.Hour,
		},
		Events: EventsConfig{
			Mode:          "memory",
			URL:           "nats://127.0.0.1:4222",
			Embedded:      false,
			StoreDir:      "/data/nats",
			Stream:        "STATIONS",
			MaxReconnects: -1,
			ReconnectWait: 2 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

// Load reads configuration from defaults, the optional YAML file and the
// environment, then validates it.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// normalize strips URL schemes that only exist for DSN compatibility.
func (c *Config) normalize() {
	c.Database.URL = strings.TrimPrefix(c.Database.URL, "duckdb://")
	for _, prefix := range []string{"badger://", "redis://"} {
		c.KVStore.URL = strings.TrimPrefix(c.KVStore.URL, prefix)
	}
	c.Events.Mode = strings.ToLower(strings.TrimSpace(c.Events.Mode))
}

var sliceConfigPaths = []string{
	"server.cors_origins",
}

// processSliceFields turns comma-separated env values into string slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

var envMappings = map[string]string{
	"http_port":             "server.port",
	"http_host":             "server.host",
	"http_read_timeout":     "server.read_timeout",
	"http_write_timeout":    "server.write_timeout",
	"http_shutdown_timeout": "server.shutdown_timeout",
	"http_max_body_bytes":   "server.max_body_bytes",
	"rate_limit_requests":   "server.rate_limit_reqs",
	"rate_limit_window":     "server.rate_limit_window",
	"disable_rate_limit":    "server.rate_limit_disabled",
	"cors_origins":          "server.cors_origins",

	"database_url":            "database.url",
	"database_max_memory":     "database.max_memory",
	"database_threads":        "database.threads",
	"database_max_open_conns": "database.max_open_conns",
	"database_query_timeout":  "database.query_timeout",

	"redis_url":           "kvstore.url",
	"kvstore_url":         "kvstore.url",
	"kvstore_sync":        "kvstore.sync_writes",
	"queue_ttl":           "kvstore.queue_ttl",
	"kvstore_gc_interval": "kvstore.gc_interval",

	"geoip_path":   "geoip.path",
	"regions_path": "regions.path",

	"fallback_timeout":            "locate.fallback_timeout",
	"rate_limit_fail_open":        "locate.rate_limit_fail_open",
	"breaker_failure_threshold":   "locate.breaker_failure_threshold",
	"breaker_timeout":             "locate.breaker_timeout",
	"api_key_cache_ttl":           "locate.api_key_cache_ttl",
	"store_sample_locate_enabled": "locate.store_sample_locate_enabled",

	"ingest_enabled":        "ingest.enabled",
	"ingest_incoming_batch": "ingest.incoming_batch",
	"ingest_cell_batch":     "ingest.cell_batch",
	"ingest_wifi_batch":     "ingest.wifi_batch",
	"ingest_blue_batch":     "ingest.blue_batch",
	"ingest_datamap_batch":  "ingest.datamap_batch",
	"ingest_area_batch":     "ingest.area_batch",
	"ingest_idle_interval":  "ingest.idle_interval",
	"ingest_poll_rate":      "ingest.poll_rate",
	"ingest_drain_timeout":  "ingest.drain_timeout",

	"events_mode":    "events.mode",
	"nats_url":       "events.url",
	"nats_embedded":  "events.embedded",
	"nats_store_dir": "events.store_dir",
	"nats_stream":    "events.stream",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",

	"metrics_enabled": "metrics.enabled",
	"metrics_path":    "metrics.path",
	"statsd_host":     "metrics.statsd_host",
	"sentry_dsn":      "metrics.sentry_dsn",

	"asset_bucket": "asset_bucket",
}

// envTransformFunc maps environment variable names to koanf keys.
// Unmapped variables return "" and are skipped.
func envTransformFunc(key string) string {
	if mapped, ok := envMappings[strings.ToLower(key)]; ok {
		return mapped
	}
	return ""
}
