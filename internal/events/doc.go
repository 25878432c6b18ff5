// Triangulum - Radio Geolocation and Observation Ingest Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/triangulum

/*
Package events publishes station lifecycle events over Watermill.

The station updater emits a StationMoved event whenever it deletes a
station for moving beyond its radio's threshold. Events on which the block
became permanent go to a separate topic so consumers can tell a one-off
move from a retired emitter.

# Transports

Three modes are selected by EventsConfig.Mode:

  - memory: an in-process Watermill GoChannel. Subscribe works in this
    mode only.
  - nats: NATS JetStream through watermill-nats. The stream is created or
    updated on startup. With Embedded set, a JetStream enabled nats-server
    runs inside the process and stores its data under StoreDir.
  - disabled: Publish is a no-op.

# Resilience

Publishing goes through a gobreaker circuit breaker so a broker outage
fails fast instead of stalling the ingest workers. Events are published
after the station transaction commits; a failed publish is counted and
logged but never rolls back the station change.

# Topics

	station.moved     a temporary block was recorded
	station.blocked   the block reached the permanent threshold
*/
package events
