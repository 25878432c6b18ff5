// Triangulum - Radio Geolocation and Observation Ingest Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/triangulum

// Package metrics defines the Prometheus instrumentation for Triangulum.
//
// All collectors hang off a Metrics value created with New against a
// prometheus.Registerer. Components receive the *Metrics in their
// constructors; nothing registers against the default registry, so tests
// can build an isolated set with NewForTesting.
//
// # Metric families
//
//   - api_*: request counts, latency, rate limit and daily limit rejections
//   - locate_*: per-provider outcomes and final searcher results
//   - fallback_*: external provider calls, cache outcomes, circuit breaker
//   - queue_*: queue depth and item throughput on the key-value store
//   - ingest_*: reports, observations, station and area changes, datamap grids
//   - store_*: relational and key-value store latency and errors
//   - events_*: station event publication
package metrics
