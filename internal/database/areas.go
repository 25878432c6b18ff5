// Triangulum - Radio Geolocation and Observation Ingest Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/triangulum

package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/tomtom215/triangulum/internal/database/query"
	"github.com/tomtom215/triangulum/internal/models"
)

var areaColumns = []string{
	"areaid", "radio", "mcc", "mnc", "lac",
	"lat", "lon", "radius", "avg_cell_radius", "num_cells",
	"min_lat", "max_lat", "min_lon", "max_lon",
	"region", "created", "modified", "last_seen",
}

func areaSelectList() string {
	cols := make([]string, len(areaColumns))
	for i, c := range areaColumns {
		if c == "region" {
			c = "COALESCE(region, '')"
		}
		cols[i] = c
	}
	return strings.Join(cols, ", ")
}

func scanArea(rows *sql.Rows) (*models.Area, error) {
	a := &models.Area{}
	var (
		areaid   string
		radio    string
		lastSeen sql.NullTime
	)
	if err := rows.Scan(
		&areaid, &radio, &a.MCC, &a.MNC, &a.LAC,
		&a.Lat, &a.Lon, &a.Radius, &a.AvgCellRadius, &a.NumCells,
		&a.MinLat, &a.MaxLat, &a.MinLon, &a.MaxLon,
		&a.Region, &a.CreatedAt, &a.ModifiedAt, &lastSeen,
	); err != nil {
		return nil, err
	}
	a.Radio = models.Radio(radio)
	a.CreatedAt = a.CreatedAt.UTC()
	a.ModifiedAt = a.ModifiedAt.UTC()
	if lastSeen.Valid {
		a.LastSeen = lastSeen.Time.UTC()
	}
	return a, nil
}

// Areas loads the cell areas matching keys.
func (db *DB) Areas(ctx context.Context, keys []models.CellAreaKey) (out []models.Area, err error) {
	if len(keys) == 0 {
		return nil, nil
	}
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	defer func() { db.observe("lookup", "cell_area", start, err) }()

	ids := make([]string, len(keys))
	for i, k := range keys {
		ids[i] = k.String()
	}
	wb := query.NewWhereBuilder()
	query.AddIn(wb, "areaid", ids)
	where, args := wb.Build()

	rows, err := db.conn.QueryContext(ctx,
		fmt.Sprintf("SELECT %s FROM cell_area %s", areaSelectList(), where), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query cell_area: %w", err)
	}
	defer closeQuietly(rows)

	for rows.Next() {
		a, err := scanArea(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cell_area row: %w", err)
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate cell_area rows: %w", err)
	}
	return out, nil
}

// Area loads one cell area, returning ErrNotFound when it does not exist.
func (t *Tx) Area(ctx context.Context, key models.CellAreaKey) (a *models.Area, err error) {
	start := time.Now()
	defer func() { t.db.observe("select", "cell_area", start, err) }()

	rows, err := t.tx.QueryContext(ctx,
		fmt.Sprintf("SELECT %s FROM cell_area WHERE areaid = ?", areaSelectList()), key.String())
	if err != nil {
		return nil, fmt.Errorf("failed to query cell_area: %w", err)
	}
	defer closeQuietly(rows)

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to query cell_area: %w", err)
		}
		return nil, ErrNotFound
	}
	a, err = scanArea(rows)
	if err != nil {
		return nil, fmt.Errorf("failed to scan cell_area row: %w", err)
	}
	return a, nil
}

// SaveArea inserts or updates an area. exists tells whether Area found it.
func (t *Tx) SaveArea(ctx context.Context, a *models.Area, exists bool) (err error) {
	start := time.Now()
	defer func() { t.db.observe("upsert", "cell_area", start, err) }()

	args := []interface{}{
		a.Lat, a.Lon, a.Radius, a.AvgCellRadius, a.NumCells,
		a.MinLat, a.MaxLat, a.MinLon, a.MaxLon,
		nullString(a.Region), a.CreatedAt, a.ModifiedAt, nullTime(a.LastSeen),
	}
	if exists {
		sets := make([]string, 0, len(areaColumns)-5)
		for _, c := range areaColumns[5:] {
			sets = append(sets, c+" = ?")
		}
		args = append(args, a.CellAreaKey.String())
		_, err = t.tx.ExecContext(ctx,
			fmt.Sprintf("UPDATE cell_area SET %s WHERE areaid = ?", strings.Join(sets, ", ")), args...)
	} else {
		args = append([]interface{}{a.CellAreaKey.String(), string(a.Radio), a.MCC, a.MNC, a.LAC}, args...)
		_, err = t.tx.ExecContext(ctx,
			fmt.Sprintf("INSERT INTO cell_area (%s) VALUES (%s)",
				strings.Join(areaColumns, ", "), query.Placeholders(len(areaColumns))), args...)
	}
	if err != nil {
		return fmt.Errorf("failed to save cell_area %s: %w", a.CellAreaKey, err)
	}
	return nil
}

// DeleteArea removes an area.
func (t *Tx) DeleteArea(ctx context.Context, key models.CellAreaKey) (err error) {
	start := time.Now()
	defer func() { t.db.observe("delete", "cell_area", start, err) }()

	if _, err = t.tx.ExecContext(ctx, "DELETE FROM cell_area WHERE areaid = ?", key.String()); err != nil {
		return fmt.Errorf("failed to delete cell_area %s: %w", key, err)
	}
	return nil
}
