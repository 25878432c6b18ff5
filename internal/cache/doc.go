// Triangulum - Radio Geolocation and Observation Ingest Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/triangulum

// Package cache provides a bounded in-process LRU cache with TTL expiry.
//
// The HTTP layer uses it to keep API key policies close to the request path
// so that every locate and submit call does not hit the relational store.
// Negative lookups are cached as well; a key created out of band becomes
// visible once the TTL of its negative entry runs out.
//
// Usage:
//
//	keys := cache.NewLRU[*models.APIKey](10000, 5*time.Minute)
//	if k, ok := keys.Get("test"); ok {
//		...
//	}
//	keys.Add("test", k)
//
// All methods are safe for concurrent use.
package cache
