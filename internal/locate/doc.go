// Triangulum - Radio Geolocation and Observation Ingest Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/triangulum

/*
Package locate answers position and region queries from the internal radio
database, an optional external fallback service and GeoIP.

# Providers

A Searcher holds a fixed, ordered slice of providers. Position searches use

	blue -> wifi -> cell -> cellarea -> fallback -> geoip

and region searches use

	cell region -> geoip

Each provider first gets a cheap ShouldSearch gate that sees the best
answer so far, then Search returns an Outcome: nothing, a partial answer
or a hit. A hit ends the chain. Partial answers are kept while later
providers run and only give way to an answer of higher precedence, or
equal precedence and a smaller accuracy radius.

Precedence follows the provider order: Bluetooth and Wi-Fi answers beat
cell answers, which beat cell area answers, which beat the external
fallback, which beats GeoIP, regardless of radius.

# Hits

An answer is a hit when its accuracy class meets what the query data can
deliver: 1 km for queries with two or more Wi-Fi or Bluetooth stations,
50 km for queries with cells, anything otherwise.

# Failure handling

Providers never return errors. Store and upstream failures are logged at
warn level and produce an empty outcome, so the chain continues with the
next provider.

# Daily limits and sampling

Before running the chain the searcher counts the request against the API
key's daily limit in the key-value store; store failures allow the request.
When the key asks for locate sampling, position answers for queries with
radio data are turned into reports and queued for ingest.
*/
package locate
