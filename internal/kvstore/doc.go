// Triangulum - Radio Geolocation and Observation Ingest Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/triangulum

/*
Package kvstore provides the key-value primitives shared by the locate and
ingest paths, backed by BadgerDB.

Key Components:

  - Store: an opened Badger database with logging, metrics and GC
  - Queue: a named FIFO of opaque byte items with batch triggers
  - RateLimiter: fixed-window counters with a configurable failure default
  - Cache: fingerprint keyed result cache with per-entry TTL

Key Layout:

	queue:<name>:<20 digit sequence>   queue items, TTL per item
	seq:queue:<name>                   Badger sequence backing the item ids
	ratelimit:fallback:<api key>       fallback rate limit window counter
	apilimit:<api key>:<yyyymmdd>      daily API usage counter, 2 day TTL
	cache:fallback:<fingerprint>       cached fallback answer

Concurrency:

Every multi-key operation runs in one read-write transaction. Badger
detects conflicting transactions on commit; conflicting dequeues and
counter increments are retried, so two workers never receive the same
queue item and no increment is lost. Items popped by a worker that then
crashes are gone; the queue has no redelivery.
*/
package kvstore
