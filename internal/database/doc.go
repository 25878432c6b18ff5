// Triangulum - Radio Geolocation and Observation Ingest Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/triangulum

// Package database is the relational store for Triangulum, backed by DuckDB.
//
// # Overview
//
// The package owns the schema and every read and write against it. Callers
// work with the plain records of the models package; there is no ORM.
//
// Core files:
//   - database.go: connection lifecycle, pool configuration and checkpoints
//   - schema.go: idempotent table and index creation
//   - tx.go: transactions with conflict retry
//   - stations.go: station and blocklist persistence for all 36 shards
//   - areas.go: cell area persistence
//   - datamap.go: datamap grid upserts and expiry
//   - apikeys.go: API key lookup and administration
//   - scores.go: users and daily score accounting
//
// # Tables
//
// One table per station shard (cell_gsm, cell_wcdma, cell_lte, cell_cdma,
// wifi_0 to wifi_f and blue_0 to blue_f) and one blocklist table per shard
// named <shard>_block. Cell tables are keyed by cellid (radio:mcc:mnc:lac:cid),
// Wi-Fi and Bluetooth tables by mac.
//
// Further tables: cell_area, datamap_ne, datamap_nw, datamap_se, datamap_sw,
// api_key, users and score.
//
// # Locking
//
// DuckDB uses optimistic concurrency. Writers on disjoint shard tables never
// conflict; writers on the same table retry the whole transaction when
// DuckDB reports a conflict (see WithTx). Ingest routes every station
// identity to exactly one queue worker, so same-row conflicts only occur on
// shared tables such as cell_area and score.
//
// # Testing
//
// Tests open ":memory:" databases. Every test gets its own instance.
package database
