// Triangulum - Radio Geolocation and Observation Ingest Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/triangulum

/*
Package ingest turns submitted reports into station, area and datamap rows.

# Pipeline

Submissions land on the "incoming" queue as encoded report batches. The
orchestrator validates each report, normalizes its timestamp, splits it into
per-station observations and routes them:

	incoming -> update_<station shard>   (36 queues: 4 cell, 16 wifi, 16 blue)
	         -> update_datamap_<ne|nw|se|sw>
	update_cell_* -> update_cellarea

Every queue has exactly one Worker, so a station identity is only ever
updated by one goroutine. Workers are suture services paced by a rate
limiter; they process full batches as soon as they are ready and partial
batches every idle interval. On shutdown a worker keeps draining its queue
until it is empty or the drain timeout expires.

# Station updates

The station updater merges observations into the running estimate, detects
moved stations, deletes them and upserts their blocklist entry. Station
move events are published and area ids enqueued only after the transaction
commits, since DuckDB write conflicts make the transaction body rerun.

# Failure handling

A database error drops the affected batch and is logged; other shards carry
on. Malformed queue items are counted and discarded.
*/
package ingest
