// Triangulum - Radio Geolocation and Observation Ingest Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/triangulum

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// isolateEnv points CONFIG_PATH at a missing file and moves into an empty
// directory so no stray config.yaml is picked up.
func isolateEnv(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Setenv(ConfigPathEnvVar, filepath.Join(dir, "missing.yaml"))
	t.Chdir(dir)
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Server.Port != 8000 {
		t.Errorf("Server.Port = %d, want 8000", cfg.Server.Port)
	}
	if cfg.KVStore.QueueTTL != 48*time.Hour {
		t.Errorf("KVStore.QueueTTL = %v, want 48h", cfg.KVStore.QueueTTL)
	}
	if cfg.Locate.FallbackTimeout != 60*time.Second {
		t.Errorf("Locate.FallbackTimeout = %v, want 60s", cfg.Locate.FallbackTimeout)
	}
	if cfg.Ingest.CellBatch != 100 || cfg.Ingest.WifiBatch != 500 || cfg.Ingest.BlueBatch != 500 {
		t.Errorf("unexpected batch defaults: %+v", cfg.Ingest)
	}
	if cfg.Events.Mode != "memory" {
		t.Errorf("Events.Mode = %q, want memory", cfg.Events.Mode)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		env  string
		want string
	}{
		{"DATABASE_URL", "database.url"},
		{"REDIS_URL", "kvstore.url"},
		{"GEOIP_PATH", "geoip.path"},
		{"HTTP_PORT", "server.port"},
		{"LOG_LEVEL", "logging.level"},
		{"STATSD_HOST", "metrics.statsd_host"},
		{"SENTRY_DSN", "metrics.sentry_dsn"},
		{"ASSET_BUCKET", "asset_bucket"},
		{"PATH", ""},
		{"HOME", ""},
	}
	for _, tt := range tests {
		t.Run(tt.env, func(t *testing.T) {
			if got := envTransformFunc(tt.env); got != tt.want {
				t.Errorf("envTransformFunc(%q) = %q, want %q", tt.env, got, tt.want)
			}
		})
	}
}

func TestLoadEnvVars(t *testing.T) {
	isolateEnv(t)
	t.Setenv("DATABASE_URL", "duckdb:///tmp/test.duckdb")
	t.Setenv("REDIS_URL", "badger:///tmp/kv")
	t.Setenv("GEOIP_PATH", "/tmp/GeoLite2-City.mmdb")
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("INGEST_WIFI_BATCH", "250")
	t.Setenv("CORS_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("FALLBACK_TIMEOUT", "30s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.URL != "/tmp/test.duckdb" {
		t.Errorf("Database.URL = %q, want /tmp/test.duckdb", cfg.Database.URL)
	}
	if cfg.KVStore.URL != "/tmp/kv" {
		t.Errorf("KVStore.URL = %q, want /tmp/kv", cfg.KVStore.URL)
	}
	if cfg.GeoIP.Path != "/tmp/GeoLite2-City.mmdb" {
		t.Errorf("GeoIP.Path = %q", cfg.GeoIP.Path)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Ingest.WifiBatch != 250 {
		t.Errorf("Ingest.WifiBatch = %d, want 250", cfg.Ingest.WifiBatch)
	}
	if len(cfg.Server.CORSOrigins) != 2 || cfg.Server.CORSOrigins[1] != "https://b.example" {
		t.Errorf("Server.CORSOrigins = %v", cfg.Server.CORSOrigins)
	}
	if cfg.Locate.FallbackTimeout != 30*time.Second {
		t.Errorf("Locate.FallbackTimeout = %v, want 30s", cfg.Locate.FallbackTimeout)
	}
	if cfg.Ingest.CellBatch != 100 {
		t.Errorf("Ingest.CellBatch = %d, want default 100", cfg.Ingest.CellBatch)
	}
}

func TestLoadConfigFile(t *testing.T) {
	isolateEnv(t)

	content := `
server:
  port: 8888
  host: "127.0.0.1"
database:
  url: ":memory:"
kvstore:
  url: "memory"
events:
  mode: "disabled"
logging:
  level: "warn"
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 8888 || cfg.Server.Host != "127.0.0.1" {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Database.URL != ":memory:" || cfg.KVStore.URL != "memory" {
		t.Errorf("stores = %q %q", cfg.Database.URL, cfg.KVStore.URL)
	}
	if cfg.Events.Mode != "disabled" {
		t.Errorf("Events.Mode = %q", cfg.Events.Mode)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q", cfg.Logging.Level)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	isolateEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 7000\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("HTTP_PORT", "7001")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 7001 {
		t.Errorf("Server.Port = %d, want env value 7001", cfg.Server.Port)
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bad port", map[string]string{"HTTP_PORT": "70000"}},
		{"empty database", map[string]string{"DATABASE_URL": " "}},
		{"fallback timeout above cap", map[string]string{"FALLBACK_TIMEOUT": "90s"}},
		{"zero batch", map[string]string{"INGEST_CELL_BATCH": "0"}},
		{"unknown events mode", map[string]string{"EVENTS_MODE": "kafka"}},
		{"bad log format", map[string]string{"LOG_FORMAT": "xml"}},
		{"write timeout below fallback", map[string]string{"HTTP_WRITE_TIMEOUT": "5s"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			isolateEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Errorf("expected validation error for %s", tt.name)
			}
		})
	}
}

func TestServerAddr(t *testing.T) {
	s := ServerConfig{Host: "127.0.0.1", Port: 8000}
	if got := s.Addr(); got != "127.0.0.1:8000" {
		t.Errorf("Addr() = %q", got)
	}
}
