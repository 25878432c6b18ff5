// Triangulum - Radio Geolocation and Observation Ingest Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/triangulum

package config

import (
	"fmt"
	"strings"
	"time"
)

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}
	if err := c.validateStores(); err != nil {
		return err
	}
	if err := c.validateLocate(); err != nil {
		return err
	}
	if err := c.validateIngest(); err != nil {
		return err
	}
	if err := c.validateEvents(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535")
	}
	if c.Server.MaxBodyBytes <= 0 {
		return fmt.Errorf("HTTP_MAX_BODY_BYTES must be positive")
	}
	if !c.Server.RateLimitDisabled && (c.Server.RateLimitReqs <= 0 || c.Server.RateLimitWindow <= 0) {
		return fmt.Errorf("RATE_LIMIT_REQUESTS and RATE_LIMIT_WINDOW must be positive unless DISABLE_RATE_LIMIT is set")
	}
	// A handler must be able to outlive the longest fallback call.
	if c.Server.WriteTimeout > 0 && c.Server.WriteTimeout < c.Locate.FallbackTimeout {
		return fmt.Errorf("HTTP_WRITE_TIMEOUT (%s) must not be shorter than FALLBACK_TIMEOUT (%s)",
			c.Server.WriteTimeout, c.Locate.FallbackTimeout)
	}
	return nil
}

func (c *Config) validateStores() error {
	if strings.TrimSpace(c.Database.URL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.Database.MaxOpenConns < 1 {
		return fmt.Errorf("DATABASE_MAX_OPEN_CONNS must be at least 1")
	}
	if strings.TrimSpace(c.KVStore.URL) == "" {
		return fmt.Errorf("REDIS_URL is required")
	}
	if c.KVStore.QueueTTL <= 0 {
		return fmt.Errorf("QUEUE_TTL must be positive")
	}
	return nil
}

func (c *Config) validateLocate() error {
	if c.Locate.FallbackTimeout <= 0 || c.Locate.FallbackTimeout > 60*time.Second {
		return fmt.Errorf("FALLBACK_TIMEOUT must be in (0, 60s], got %s", c.Locate.FallbackTimeout)
	}
	if c.Locate.BreakerFailureThreshold == 0 {
		return fmt.Errorf("BREAKER_FAILURE_THRESHOLD must be at least 1")
	}
	return nil
}

func (c *Config) validateIngest() error {
	batches := map[string]int{
		"INGEST_INCOMING_BATCH": c.Ingest.IncomingBatch,
		"INGEST_CELL_BATCH":     c.Ingest.CellBatch,
		"INGEST_WIFI_BATCH":     c.Ingest.WifiBatch,
		"INGEST_BLUE_BATCH":     c.Ingest.BlueBatch,
		"INGEST_DATAMAP_BATCH":  c.Ingest.DatamapBatch,
		"INGEST_AREA_BATCH":     c.Ingest.AreaBatch,
	}
	for name, v := range batches {
		if v < 1 {
			return fmt.Errorf("%s must be at least 1, got %d", name, v)
		}
	}
	if c.Ingest.IdleInterval <= 0 {
		return fmt.Errorf("INGEST_IDLE_INTERVAL must be positive")
	}
	if c.Ingest.PollRate <= 0 {
		return fmt.Errorf("INGEST_POLL_RATE must be positive")
	}
	if c.Ingest.DatamapRetention < 24*time.Hour {
		return fmt.Errorf("INGEST_DATAMAP_RETENTION must be at least one day")
	}
	return nil
}

func (c *Config) validateEvents() error {
	switch c.Events.Mode {
	case "memory", "disabled":
		return nil
	case "nats":
		if !c.Events.Embedded && c.Events.URL == "" {
			return fmt.Errorf("NATS_URL is required when EVENTS_MODE=nats without NATS_EMBEDDED")
		}
		if c.Events.Stream == "" {
			return fmt.Errorf("NATS_STREAM is required when EVENTS_MODE=nats")
		}
		return nil
	default:
		return fmt.Errorf("EVENTS_MODE must be one of memory, nats, disabled; got %q", c.Events.Mode)
	}
}

func (c *Config) validateLogging() error {
	switch strings.ToLower(c.Logging.Level) {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal", "panic", "disabled":
	default:
		return fmt.Errorf("LOG_LEVEL %q is not a valid level", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Logging.Format)
	}
	return nil
}
