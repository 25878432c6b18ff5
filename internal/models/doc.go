// Triangulum - Radio Geolocation and Observation Ingest Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/triangulum

/*
Package models defines the data structures shared by the locate and ingest
paths of Triangulum.

Key Components:

  - Radio, StationType: cell radio generations and emitter technologies
  - CellKey, CellAreaKey: cell and location area identities with range checks
  - MAC helpers: NormalizeMAC, ValidMAC, UsableMAC, SimilarMACs
  - Report, Position, CellReport, WifiReport, BlueReport: submitted data
  - Observation: one report entry combined with the report position
  - Station, Area, BlockEntry: persisted estimates and the move blocklist
  - APIKey: per-key locate, fallback and sampling policy
  - DataMapGrid: thousandth-degree coverage cells
  - Result: a locate answer with provenance

Identity Rules:

Cells are identified by (radio, mcc, mnc, lac, cid). The bounds depend on
the radio: CDMA allows a wider mnc and lac range, LTE cell ids are 28 bits,
GSM and CDMA cell ids 16 bits. Wi-Fi access points and Bluetooth beacons are
identified by 12 lowercase hex characters.

MAC handling is split in two:

  - ValidMAC gates storage and accepts locally administered addresses
  - UsableMAC gates locate queries and rejects them

Sharding:

Stations live in 36 shards: cell_<radio> for the four radios and
wifi_<hex> / blue_<hex> keyed by the first hex digit of the MAC. The shard
name doubles as the station table name and the suffix of the update queue.

Thread Safety:

All types are plain values without internal synchronization. Observations
are never mutated once queued.
*/
package models
