// Triangulum - Radio Geolocation and Observation Ingest Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/triangulum

/*
Command server runs the Triangulum geolocation service.

Triangulum answers position and region queries from observed cell towers,
Wi-Fi access points and Bluetooth beacons, and learns station positions
from submitted reports.

# Startup

 1. Configuration: koanf v2 (defaults, optional YAML file, environment)
 2. Logging: zerolog, JSON or console
 3. Stores: DuckDB for stations and keys, Badger for queues and counters
 4. Regions and GeoIP: region outlines, MaxMind city database
 5. Station events: Watermill in-process channel or NATS JetStream
 6. Locate and ingest: provider chains, report pipeline, queue workers
 7. HTTP: chi router with CORS, per-IP throttling and gzip bodies
 8. Supervision: suture v4 tree

The tree:

	RootSupervisor ("triangulum")
	├── storage-layer: maintenance (badger GC, DuckDB checkpoint, key cache)
	├── ingest-layer: one worker per queue, datamap cleaner
	└── api-layer: http-server

# Configuration

Highest priority wins: environment, config file, defaults. Common
variables:

	HTTP_PORT=8000
	DATABASE_URL=/data/triangulum.duckdb
	REDIS_URL=/data/kv             # badger directory, or "memory"
	GEOIP_PATH=/data/GeoLite2-City.mmdb
	EVENTS_MODE=memory             # memory, nats or disabled
	LOG_LEVEL=info
	LOG_FORMAT=json

# Signals

SIGINT and SIGTERM stop the tree. The HTTP server drains in-flight
requests, queue workers drain their queues within the drain timeout, then
the stores are closed. SIGHUP reloads the GeoIP database from GEOIP_PATH.
*/
package main
