// Triangulum - Radio Geolocation and Observation Ingest Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/triangulum

/*
Package middleware provides the HTTP middleware shared by every route.

Key Components:

  - RequestID: UUID-based request tracking, stored for the logging package
  - PrometheusMetrics: request counters, durations and in-flight gauge
  - Decompress: gzip request bodies and the decoded body size cap

All middleware use the chi signature func(http.Handler) http.Handler and are
installed on the router in this order:

	r.Use(middleware.RequestID)
	r.Use(middleware.PrometheusMetrics(m))
	r.Use(middleware.Decompress(middleware.DefaultMaxBodyBytes))

Metrics are labeled with the chi route pattern rather than the raw path.
*/
package middleware
