// Triangulum - Radio Geolocation and Observation Ingest Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/triangulum

// Package testinfra provides test doubles and containers for tests that
// cross process boundaries.
//
// # Fallback server
//
// MockFallbackServer is an httptest server speaking the geolocate wire
// format. Point an API key's fallback_url at it:
//
//	fb := testinfra.NewMockFallbackServer(t)
//	fb.Respond(52.52, 13.405, 1500)
//	key := &models.APIKey{Key: "k", AllowFallback: true, FallbackName: "mock",
//	    FallbackURL: fb.URL(), FallbackRateLimit: 10, FallbackRateLimitExpire: 60}
//
// # NATS container
//
// Built with -tags integration. NewNATSContainer starts a JetStream enabled
// server through testcontainers-go:
//
//	func TestPublisher(t *testing.T) {
//	    testinfra.SkipIfNoDocker(t)
//	    nc, err := testinfra.NewNATSContainer(ctx)
//	    if err != nil {
//	        t.Fatal(err)
//	    }
//	    defer testinfra.CleanupContainer(t, ctx, nc.Container)
//	    ...
//	}
//
// Run with:
//
//	go test -tags integration ./internal/events/...
package testinfra
