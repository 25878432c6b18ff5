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

var (
	cellKeyColumns  = []string{"cellid", "radio", "mcc", "mnc", "lac", "cid", "psc"}
	macKeyColumns   = []string{"mac"}
	positionColumns = []string{
		"lat", "lon", "radius", "samples", "min_lat", "max_lat", "min_lon", "max_lon",
		"region", "created", "modified", "last_seen",
	}
)

// shardMeta describes the table layout of one station shard.
type shardMeta struct {
	table     string
	kind      models.StationType
	keyColumn string
}

func shardFor(shard string) (shardMeta, error) {
	if !validShard(shard) {
		return shardMeta{}, fmt.Errorf("%w: %q", ErrUnknownShard, shard)
	}
	t, _ := models.ShardType(shard)
	meta := shardMeta{table: shard, kind: t, keyColumn: "mac"}
	if t == models.StationCell {
		meta.keyColumn = "cellid"
	}
	return meta, nil
}

func (m shardMeta) columns(prefix string) []string {
	keys := macKeyColumns
	if m.kind == models.StationCell {
		keys = cellKeyColumns
	}
	cols := make([]string, 0, len(keys)+len(positionColumns))
	for _, c := range append(append([]string{}, keys...), positionColumns...) {
		if c == "region" {
			cols = append(cols, "COALESCE("+prefix+"region, '')")
			continue
		}
		cols = append(cols, prefix+c)
	}
	return cols
}

func (m shardMeta) selectList(prefix string) string {
	return strings.Join(m.columns(prefix), ", ")
}

// scanStation reads one row selected with selectList. Extra destinations
// are appended after the station columns.
func (m shardMeta) scanStation(rows *sql.Rows, extra ...interface{}) (*models.Station, error) {
	st := &models.Station{Type: m.kind}
	var (
		lastSeen sql.NullTime
		psc      sql.NullInt64
		radio    string
		dest     []interface{}
	)
	if m.kind == models.StationCell {
		var cellid string
		dest = append(dest, &cellid, &radio, &st.MCC, &st.MNC, &st.LAC, &st.CID, &psc)
	} else {
		dest = append(dest, &st.MAC)
	}
	dest = append(dest,
		&st.Lat, &st.Lon, &st.Radius, &st.Samples,
		&st.MinLat, &st.MaxLat, &st.MinLon, &st.MaxLon,
		&st.Region, &st.CreatedAt, &st.ModifiedAt, &lastSeen,
	)
	dest = append(dest, extra...)

	if err := rows.Scan(dest...); err != nil {
		return nil, err
	}
	if m.kind == models.StationCell {
		st.Radio = models.Radio(radio)
		if psc.Valid {
			v := int(psc.Int64)
			st.PSC = &v
		}
	}
	if lastSeen.Valid {
		st.LastSeen = lastSeen.Time.UTC()
	}
	st.CreatedAt = st.CreatedAt.UTC()
	st.ModifiedAt = st.ModifiedAt.UTC()
	return st, nil
}

// CellStations loads the usable cells matching keys. Cells with an active
// block entry are excluded.
func (db *DB) CellStations(ctx context.Context, keys []models.CellKey, now time.Time) ([]models.Station, error) {
	byShard := make(map[string][]string)
	for _, k := range keys {
		shard := models.CellShard(k.Radio)
		byShard[shard] = append(byShard[shard], k.String())
	}
	return db.lookupStations(ctx, byShard, now)
}

// MACStations loads the usable Wi-Fi or Bluetooth stations matching macs.
// Stations with an active block entry are excluded.
func (db *DB) MACStations(ctx context.Context, t models.StationType, macs []string, now time.Time) ([]models.Station, error) {
	byShard := make(map[string][]string)
	for _, mac := range macs {
		shard := models.MACStationShard(t, mac)
		byShard[shard] = append(byShard[shard], mac)
	}
	return db.lookupStations(ctx, byShard, now)
}

func (db *DB) lookupStations(ctx context.Context, byShard map[string][]string, now time.Time) ([]models.Station, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var out []models.Station
	for _, shard := range models.StationShards() {
		keys := byShard[shard]
		if len(keys) == 0 {
			continue
		}
		found, err := db.lookupShard(ctx, shard, keys, now)
		if err != nil {
			return nil, err
		}
		out = append(out, found...)
	}
	return out, nil
}

func (db *DB) lookupShard(ctx context.Context, shard string, keys []string, now time.Time) (out []models.Station, err error) {
	meta, err := shardFor(shard)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	defer func() { db.observe("lookup", shard, start, err) }()

	wb := query.NewWhereBuilder()
	query.AddIn(wb, "s."+meta.keyColumn, keys)
	wb.AddClause("(b.station_key IS NULL OR (b.block_count < ? AND b.last_at < ?))",
		models.PermanentBlockThreshold, now.Add(-models.TemporaryBlockDuration))
	where, args := wb.Build()

	q := fmt.Sprintf(`SELECT %s, b.last_at FROM %s s
		LEFT JOIN %s_block b ON b.station_key = s.%s
		%s`, meta.selectList("s."), meta.table, meta.table, meta.keyColumn, where)

	rows, err := db.conn.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", shard, err)
	}
	defer closeQuietly(rows)

	for rows.Next() {
		var blockLast sql.NullTime
		st, err := meta.scanStation(rows, &blockLast)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", shard, err)
		}
		if blockLast.Valid {
			st.BlockLast = blockLast.Time.UTC()
		}
		out = append(out, *st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s rows: %w", shard, err)
	}
	return out, nil
}

// Stations loads the rows for keys in one shard, keyed by station identity.
// Block state is not consulted.
func (t *Tx) Stations(ctx context.Context, shard string, keys []string) (map[string]*models.Station, error) {
	return stationsByKey(ctx, t.db, t.tx, shard, keys)
}

// Stations is the non-transactional form of Tx.Stations.
func (db *DB) Stations(ctx context.Context, shard string, keys []string) (map[string]*models.Station, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	return stationsByKey(ctx, db, db.conn, shard, keys)
}

func stationsByKey(ctx context.Context, db *DB, q querier, shard string, keys []string) (out map[string]*models.Station, err error) {
	meta, err := shardFor(shard)
	if err != nil {
		return nil, err
	}
	out = make(map[string]*models.Station, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	start := time.Now()
	defer func() { db.observe("select", shard, start, err) }()

	wb := query.NewWhereBuilder()
	query.AddIn(wb, meta.keyColumn, keys)
	where, args := wb.Build()

	rows, err := q.QueryContext(ctx,
		fmt.Sprintf("SELECT %s FROM %s %s", meta.selectList(""), meta.table, where), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", shard, err)
	}
	defer closeQuietly(rows)

	for rows.Next() {
		st, err := meta.scanStation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", shard, err)
		}
		out[st.Key()] = st
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s rows: %w", shard, err)
	}
	return out, nil
}

// InsertStation writes a new station row.
func (t *Tx) InsertStation(ctx context.Context, shard string, st *models.Station) (err error) {
	meta, err := shardFor(shard)
	if err != nil {
		return err
	}
	start := time.Now()
	defer func() { t.db.observe("insert", shard, start, err) }()

	var (
		cols []string
		args []interface{}
	)
	if meta.kind == models.StationCell {
		cols = append(cols, cellKeyColumns...)
		args = append(args, st.CellKey.String(), string(st.Radio), st.MCC, st.MNC, st.LAC, st.CID, nullInt(st.PSC))
	} else {
		cols = append(cols, macKeyColumns...)
		args = append(args, st.MAC)
	}
	cols = append(cols, positionColumns...)
	args = append(args, positionArgs(st)...)

	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		meta.table, strings.Join(cols, ", "), query.Placeholders(len(cols)))
	if _, err = t.tx.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("failed to insert into %s: %w", shard, err)
	}
	return nil
}

// UpdateStation rewrites the position columns of an existing station. For
// cells the psc is updated as well.
func (t *Tx) UpdateStation(ctx context.Context, shard string, st *models.Station) (err error) {
	meta, err := shardFor(shard)
	if err != nil {
		return err
	}
	start := time.Now()
	defer func() { t.db.observe("update", shard, start, err) }()

	sets := make([]string, 0, len(positionColumns)+1)
	for _, c := range positionColumns {
		sets = append(sets, c+" = ?")
	}
	args := positionArgs(st)
	if meta.kind == models.StationCell {
		sets = append(sets, "psc = ?")
		args = append(args, nullInt(st.PSC))
	}
	args = append(args, st.Key())

	q := fmt.Sprintf("UPDATE %s SET %s WHERE %s = ?",
		meta.table, strings.Join(sets, ", "), meta.keyColumn)
	if _, err = t.tx.ExecContext(ctx, q, args...); err != nil {
		return fmt.Errorf("failed to update %s: %w", shard, err)
	}
	return nil
}

// DeleteStation removes a station row.
func (t *Tx) DeleteStation(ctx context.Context, shard, key string) (err error) {
	meta, err := shardFor(shard)
	if err != nil {
		return err
	}
	start := time.Now()
	defer func() { t.db.observe("delete", shard, start, err) }()

	q := fmt.Sprintf("DELETE FROM %s WHERE %s = ?", meta.table, meta.keyColumn)
	if _, err = t.tx.ExecContext(ctx, q, key); err != nil {
		return fmt.Errorf("failed to delete from %s: %w", shard, err)
	}
	return nil
}

// Blocks loads the block entries for keys in one shard.
func (t *Tx) Blocks(ctx context.Context, shard string, keys []string) (map[string]*models.BlockEntry, error) {
	return blocksByKey(ctx, t.db, t.tx, shard, keys)
}

// Blocks is the non-transactional form of Tx.Blocks.
func (db *DB) Blocks(ctx context.Context, shard string, keys []string) (map[string]*models.BlockEntry, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	return blocksByKey(ctx, db, db.conn, shard, keys)
}

func blocksByKey(ctx context.Context, db *DB, q querier, shard string, keys []string) (out map[string]*models.BlockEntry, err error) {
	if !validShard(shard) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownShard, shard)
	}
	out = make(map[string]*models.BlockEntry, len(keys))
	if len(keys) == 0 {
		return out, nil
	}
	start := time.Now()
	defer func() { db.observe("select", shard+"_block", start, err) }()

	wb := query.NewWhereBuilder()
	query.AddIn(wb, "station_key", keys)
	where, args := wb.Build()

	rows, err := q.QueryContext(ctx, fmt.Sprintf(
		"SELECT station_key, first_at, last_at, block_count FROM %s_block %s", shard, where), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s_block: %w", shard, err)
	}
	defer closeQuietly(rows)

	for rows.Next() {
		b := &models.BlockEntry{}
		if err := rows.Scan(&b.Key, &b.FirstAt, &b.LastAt, &b.Count); err != nil {
			return nil, fmt.Errorf("failed to scan %s_block row: %w", shard, err)
		}
		b.FirstAt = b.FirstAt.UTC()
		b.LastAt = b.LastAt.UTC()
		out[b.Key] = b
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s_block rows: %w", shard, err)
	}
	return out, nil
}

// SaveBlock inserts or updates a block entry. exists tells whether the row
// was loaded by Blocks in the same transaction.
func (t *Tx) SaveBlock(ctx context.Context, shard string, b *models.BlockEntry, exists bool) (err error) {
	if !validShard(shard) {
		return fmt.Errorf("%w: %q", ErrUnknownShard, shard)
	}
	start := time.Now()
	defer func() { t.db.observe("upsert", shard+"_block", start, err) }()

	if exists {
		_, err = t.tx.ExecContext(ctx, fmt.Sprintf(
			"UPDATE %s_block SET first_at = ?, last_at = ?, block_count = ? WHERE station_key = ?", shard),
			b.FirstAt, b.LastAt, b.Count, b.Key)
	} else {
		_, err = t.tx.ExecContext(ctx, fmt.Sprintf(
			"INSERT INTO %s_block (station_key, first_at, last_at, block_count) VALUES (?, ?, ?, ?)", shard),
			b.Key, b.FirstAt, b.LastAt, b.Count)
	}
	if err != nil {
		return fmt.Errorf("failed to save %s_block entry: %w", shard, err)
	}
	return nil
}

// AreaCells loads every positioned cell of a location area.
func (t *Tx) AreaCells(ctx context.Context, area models.CellAreaKey) (out []models.Station, err error) {
	shard := models.CellShard(area.Radio)
	meta, err := shardFor(shard)
	if err != nil {
		return nil, err
	}
	start := time.Now()
	defer func() { t.db.observe("area_cells", shard, start, err) }()

	rows, err := t.tx.QueryContext(ctx, fmt.Sprintf(
		"SELECT %s FROM %s WHERE mcc = ? AND mnc = ? AND lac = ? AND samples > 0",
		meta.selectList(""), meta.table), area.MCC, area.MNC, area.LAC)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s area cells: %w", shard, err)
	}
	defer closeQuietly(rows)

	for rows.Next() {
		st, err := meta.scanStation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", shard, err)
		}
		out = append(out, *st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s rows: %w", shard, err)
	}
	return out, nil
}

// CountStations returns the number of rows in a shard.
func (db *DB) CountStations(ctx context.Context, shard string) (int64, error) {
	if !validShard(shard) {
		return 0, fmt.Errorf("%w: %q", ErrUnknownShard, shard)
	}
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var n int64
	if err := db.conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+shard).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", shard, err)
	}
	return n, nil
}

func positionArgs(st *models.Station) []interface{} {
	return []interface{}{
		st.Lat, st.Lon, st.Radius, st.Samples,
		st.MinLat, st.MaxLat, st.MinLon, st.MaxLon,
		nullString(st.Region), st.CreatedAt, st.ModifiedAt, nullTime(st.LastSeen),
	}
}

func nullInt(v *int) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t
}
