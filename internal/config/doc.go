// Triangulum - Radio Geolocation and Observation Ingest Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/triangulum

// Package config loads Triangulum configuration with koanf.
//
// Sources are layered, highest priority last:
//
//  1. Built-in defaults (defaultConfig)
//  2. YAML file: $CONFIG_PATH, ./config.yaml, /etc/triangulum/config.yaml
//  3. Environment variables (see envMappings)
//
// The environment names keep the historical deployment names where they
// exist: DATABASE_URL points at the relational store, REDIS_URL at the
// key-value store directory and GEOIP_PATH at the MaxMind city database.
//
// Per-API-key fallback settings (fallback_url, fallback_ratelimit and so on)
// are columns of the api_key table, not configuration.
package config
