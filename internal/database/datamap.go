// Triangulum - Radio Geolocation and Observation Ingest Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/triangulum

package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/tomtom215/triangulum/internal/models"
)

// UpsertDataMap records that the grids were seen on day. New grids are
// created with created = modified = day; existing grids get modified = day.
// Returns the number of grids that did not exist before.
func (db *DB) UpsertDataMap(ctx context.Context, shard string, grids []models.DataMapGrid, day time.Time) (created int, err error) {
	if !validDataMapShard(shard) {
		return 0, fmt.Errorf("%w: datamap %q", ErrUnknownShard, shard)
	}
	if len(grids) == 0 {
		return 0, nil
	}
	table := "datamap_" + shard
	day = models.DateOf(day)

	// Duplicate keys in one INSERT fail in DuckDB even with ON CONFLICT.
	seen := make(map[models.DataMapGrid]struct{}, len(grids))
	unique := make([]models.DataMapGrid, 0, len(grids))
	for _, g := range grids {
		if _, ok := seen[g]; ok {
			continue
		}
		seen[g] = struct{}{}
		unique = append(unique, g)
	}

	start := time.Now()
	defer func() { db.observe("upsert", table, start, err) }()

	err = db.WithTx(ctx, func(tx *Tx) error {
		var before int64
		if err := tx.tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&before); err != nil {
			return fmt.Errorf("failed to count %s: %w", table, err)
		}

		values := make([]string, len(unique))
		args := make([]interface{}, 0, len(unique)*4)
		for i, g := range unique {
			values[i] = "(?, ?, ?, ?)"
			args = append(args, g.Lat, g.Lon, day, day)
		}
		q := fmt.Sprintf(`INSERT INTO %s (grid_lat, grid_lon, created, modified) VALUES %s
			ON CONFLICT (grid_lat, grid_lon) DO UPDATE SET modified = EXCLUDED.modified`,
			table, strings.Join(values, ", "))
		if _, err := tx.tx.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("failed to upsert %s: %w", table, err)
		}

		var after int64
		if err := tx.tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&after); err != nil {
			return fmt.Errorf("failed to count %s: %w", table, err)
		}
		created = int(after - before)
		return nil
	})
	return created, err
}

// DeleteStaleDataMap removes grids not modified since before and returns
// the number removed.
func (db *DB) DeleteStaleDataMap(ctx context.Context, shard string, before time.Time) (n int64, err error) {
	if !validDataMapShard(shard) {
		return 0, fmt.Errorf("%w: datamap %q", ErrUnknownShard, shard)
	}
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	table := "datamap_" + shard
	start := time.Now()
	defer func() { db.observe("delete", table, start, err) }()

	res, err := db.conn.ExecContext(ctx, "DELETE FROM "+table+" WHERE modified < ?", models.DateOf(before))
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale %s rows: %w", table, err)
	}
	n, err = res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return n, nil
}

// DataMapGrid is one stored grid with its dates.
type DataMapGrid struct {
	models.DataMapGrid
	Created  time.Time
	Modified time.Time
}

// DataMap lists every grid of a shard.
func (db *DB) DataMap(ctx context.Context, shard string) ([]DataMapGrid, error) {
	if !validDataMapShard(shard) {
		return nil, fmt.Errorf("%w: datamap %q", ErrUnknownShard, shard)
	}
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx,
		"SELECT grid_lat, grid_lon, created, modified FROM datamap_"+shard+" ORDER BY grid_lat, grid_lon")
	if err != nil {
		return nil, fmt.Errorf("failed to query datamap_%s: %w", shard, err)
	}
	defer closeQuietly(rows)

	var out []DataMapGrid
	for rows.Next() {
		var g DataMapGrid
		if err := rows.Scan(&g.Lat, &g.Lon, &g.Created, &g.Modified); err != nil {
			return nil, fmt.Errorf("failed to scan datamap_%s row: %w", shard, err)
		}
		g.Created = g.Created.UTC()
		g.Modified = g.Modified.UTC()
		out = append(out, g)
	}
	return out, rows.Err()
}
