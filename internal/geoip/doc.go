// Triangulum - Radio Geolocation and Observation Ingest Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/triangulum

/*
Package geoip resolves client IP addresses to positions using a MaxMind
City database.

The database file is read fully into memory and parsed with
maxminddb-golang. The active reader sits behind an atomic pointer so Reload
can swap in a new file while lookups continue; the old reader is left to
the garbage collector since no mmap is involved.

Accuracy rules:

  - A record with a city is reported with the smaller of 50 km and the
    radius of its region.
  - A country-only record is reported with the region radius, or 5000 km
    when the region is unknown.

A DB opened with an empty path is valid but never finds anything, which is
how GeoIP is disabled.
*/
package geoip
