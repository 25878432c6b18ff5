// Triangulum - Radio Geolocation and Observation Ingest Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/triangulum

// Package logging builds the zerolog loggers used throughout Triangulum.
//
// There is no package-level logger. The server constructs one logger from
// configuration in main and hands it to every component constructor, which
// derives a child with a "component" field:
//
//	logger := logging.New(logging.Config{Level: "info", Format: "json"})
//	searcher := locate.NewSearcher(providers, logging.WithComponent(logger, "locate"), m)
//
// Request-scoped fields (request_id, correlation_id) travel in the
// context. HTTP middleware stores a request logger with ContextWithLogger and
// handlers retrieve it with Ctx:
//
//	logging.Ctx(r.Context()).Info().Msg("report batch accepted")
//
// # slog bridge
//
// suture reports supervisor events through sutureslog, which expects a
// *slog.Logger. NewSlogLogger wraps a zerolog.Logger in a slog.Handler so
// those events land in the same output stream.
package logging
