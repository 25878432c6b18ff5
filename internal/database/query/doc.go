// Triangulum - Radio Geolocation and Observation Ingest Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/triangulum

// Package query builds parameterized SQL fragments for the database package.
//
// Example:
//
//	wb := query.NewWhereBuilder()
//	query.AddIn(wb, "mac", []string{"aabbccddeeff", "112233445566"})
//	wb.AddClause("samples > ?", 0)
//	where, args := wb.Build()
//	// WHERE mac IN (?, ?) AND samples > ?
//
// Only placeholders are generated from values. Column and table names are
// always compile-time constants or come from the fixed shard list; the
// builder never interpolates caller input into SQL text.
package query
