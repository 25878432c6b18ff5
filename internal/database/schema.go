// Triangulum - Radio Geolocation and Observation Ingest Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/triangulum

package database

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/triangulum/internal/models"
)

// stationColumns is the record shape shared by every station shard.
const stationColumns = `
	lat DOUBLE NOT NULL,
	lon DOUBLE NOT NULL,
	radius INTEGER NOT NULL DEFAULT 0,
	samples BIGINT NOT NULL DEFAULT 0,
	min_lat DOUBLE NOT NULL,
	max_lat DOUBLE NOT NULL,
	min_lon DOUBLE NOT NULL,
	max_lon DOUBLE NOT NULL,
	region VARCHAR,
	created TIMESTAMP NOT NULL,
	modified TIMESTAMP NOT NULL,
	last_seen DATE`

// schemaContext returns a context with timeout for schema operations.
func schemaContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 60*time.Second)
}

func (db *DB) createTables() error {
	ctx, cancel := schemaContext()
	defer cancel()

	for _, query := range tableCreationQueries() {
		if _, err := db.conn.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("failed to execute query: %s: %w", query, err)
		}
	}
	return nil
}

func tableCreationQueries() []string {
	var queries []string

	for _, shard := range models.StationShards() {
		t, _ := models.ShardType(shard)
		if t == models.StationCell {
			queries = append(queries, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
				cellid VARCHAR PRIMARY KEY,
				radio VARCHAR NOT NULL,
				mcc INTEGER NOT NULL,
				mnc INTEGER NOT NULL,
				lac INTEGER NOT NULL,
				cid BIGINT NOT NULL,
				psc INTEGER,%s
			)`, shard, stationColumns))
		} else {
			queries = append(queries, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
				mac VARCHAR PRIMARY KEY,%s
			)`, shard, stationColumns))
		}

		queries = append(queries, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s_block (
			station_key VARCHAR PRIMARY KEY,
			first_at TIMESTAMP NOT NULL,
			last_at TIMESTAMP NOT NULL,
			block_count INTEGER NOT NULL DEFAULT 0
		)`, shard))
	}

	queries = append(queries, `CREATE TABLE IF NOT EXISTS cell_area (
		areaid VARCHAR PRIMARY KEY,
		radio VARCHAR NOT NULL,
		mcc INTEGER NOT NULL,
		mnc INTEGER NOT NULL,
		lac INTEGER NOT NULL,
		lat DOUBLE NOT NULL,
		lon DOUBLE NOT NULL,
		radius INTEGER NOT NULL DEFAULT 0,
		avg_cell_radius INTEGER NOT NULL DEFAULT 0,
		num_cells INTEGER NOT NULL DEFAULT 0,
		min_lat DOUBLE NOT NULL,
		max_lat DOUBLE NOT NULL,
		min_lon DOUBLE NOT NULL,
		max_lon DOUBLE NOT NULL,
		region VARCHAR,
		created TIMESTAMP NOT NULL,
		modified TIMESTAMP NOT NULL,
		last_seen DATE
	)`)

	for _, shard := range models.DataMapShards {
		queries = append(queries, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS datamap_%s (
			grid_lat INTEGER NOT NULL,
			grid_lon INTEGER NOT NULL,
			created DATE NOT NULL,
			modified DATE NOT NULL,
			PRIMARY KEY (grid_lat, grid_lon)
		)`, shard))
	}

	queries = append(queries,
		`CREATE TABLE IF NOT EXISTS api_key (
			valid_key VARCHAR PRIMARY KEY,
			maxreq INTEGER NOT NULL DEFAULT 0,
			allow_fallback BOOLEAN NOT NULL DEFAULT FALSE,
			allow_locate BOOLEAN NOT NULL DEFAULT TRUE,
			allow_region BOOLEAN NOT NULL DEFAULT TRUE,
			fallback_name VARCHAR,
			fallback_url VARCHAR,
			fallback_ratelimit INTEGER NOT NULL DEFAULT 0,
			fallback_ratelimit_interval INTEGER NOT NULL DEFAULT 0,
			fallback_cache_expire INTEGER NOT NULL DEFAULT 0,
			store_sample_locate INTEGER NOT NULL DEFAULT 100,
			store_sample_submit INTEGER NOT NULL DEFAULT 100
		)`,
		`CREATE SEQUENCE IF NOT EXISTS users_id_seq START 1`,
		`CREATE TABLE IF NOT EXISTS users (
			id BIGINT PRIMARY KEY DEFAULT nextval('users_id_seq'),
			nickname VARCHAR NOT NULL UNIQUE,
			created TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS score (
			userid BIGINT NOT NULL,
			score_key INTEGER NOT NULL,
			day DATE NOT NULL,
			amount BIGINT NOT NULL DEFAULT 0,
			PRIMARY KEY (userid, score_key, day)
		)`,
	)

	return queries
}

// validShard guards table names built from shard strings.
func validShard(shard string) bool {
	for _, s := range models.StationShards() {
		if s == shard {
			return true
		}
	}
	return false
}

func validDataMapShard(shard string) bool {
	for _, s := range models.DataMapShards {
		if s == shard {
			return true
		}
	}
	return false
}
