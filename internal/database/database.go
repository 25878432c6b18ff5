// Triangulum - Radio Geolocation and Observation Ingest Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/triangulum

package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/rs/zerolog"

	"github.com/tomtom215/triangulum/internal/config"
	"github.com/tomtom215/triangulum/internal/metrics"
)

const (
	// MemoryPath opens an in-memory database.
	MemoryPath = ":memory:"

	defaultQueryTimeout = 30 * time.Second
)

// DB wraps the DuckDB connection pool.
type DB struct {
	conn         *sql.DB
	path         string
	logger       zerolog.Logger
	metrics      *metrics.Metrics
	queryTimeout time.Duration
}

// New opens the database described by cfg and creates the schema.
func New(cfg *config.DatabaseConfig, logger zerolog.Logger, m *metrics.Metrics) (*DB, error) {
	path := Path(cfg.URL)

	if path != MemoryPath {
		// 0750 (owner rwx, group rx) per gosec G301
		if dir := filepath.Dir(path); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
			}
		}
	}

	threads := cfg.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	params := []string{fmt.Sprintf("threads=%d", threads)}
	if cfg.MaxMemory != "" {
		params = append(params, "max_memory="+cfg.MaxMemory)
	}
	// Extensions are never needed; keep DuckDB off the network.
	params = append(params, "autoinstall_known_extensions=false", "autoload_known_extensions=false")
	dsn := path + "?" + strings.Join(params, "&")

	conn, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	timeout := cfg.QueryTimeout
	if timeout <= 0 {
		timeout = defaultQueryTimeout
	}

	db := &DB{
		conn:         conn,
		path:         path,
		logger:       logger.With().Str("component", "database").Logger(),
		metrics:      m,
		queryTimeout: timeout,
	}
	db.configureConnectionPool(cfg.MaxOpenConns)

	if err := db.initialize(); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	db.logger.Info().
		Str("path", path).
		Int("threads", threads).
		Str("max_memory", cfg.MaxMemory).
		Msg("Database opened")

	return db, nil
}

// Path extracts the DuckDB file path from a database URL. Empty URLs and
// "memory" select an in-memory database.
func Path(url string) string {
	path := strings.TrimPrefix(url, "duckdb://")
	switch path {
	case "", "memory", MemoryPath:
		return MemoryPath
	}
	return path
}

// Conn returns the underlying connection pool.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// Close checkpoints the WAL into the database file and closes the pool.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}
	if db.path != MemoryPath {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		if err := db.Checkpoint(ctx); err != nil {
			db.logger.Warn().Err(err).Msg("Failed to checkpoint database before close")
		}
		cancel()
	}
	return db.conn.Close()
}

// Ping checks if the database connection is alive.
func (db *DB) Ping(ctx context.Context) error {
	if db.conn == nil {
		return fmt.Errorf("database connection is nil")
	}
	return db.conn.PingContext(ctx)
}

// Checkpoint forces a WAL checkpoint.
func (db *DB) Checkpoint(ctx context.Context) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	if _, err := db.conn.ExecContext(ctx, "CHECKPOINT"); err != nil {
		return fmt.Errorf("checkpoint failed: %w", err)
	}
	return nil
}

// initialize creates the schema. Lookups are by primary key or by the
// (mcc, mnc, lac) prefix of a cell shard; DuckDB's min-max zone maps serve
// the latter, so no secondary indexes are created.
func (db *DB) initialize() error {
	return db.createTables()
}

func (db *DB) configureConnectionPool(maxOpen int) {
	if maxOpen <= 0 {
		maxOpen = runtime.NumCPU()
	}
	db.conn.SetMaxOpenConns(maxOpen)
	db.conn.SetMaxIdleConns(2)
	db.conn.SetConnMaxLifetime(time.Hour)
	db.conn.SetConnMaxIdleTime(5 * time.Minute)
}

// ensureContext applies the query timeout when ctx carries no deadline.
func (db *DB) ensureContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, db.queryTimeout)
}

// observe records query duration and errors.
func (db *DB) observe(operation, table string, start time.Time, err error) {
	if db.metrics != nil {
		db.metrics.RecordDBQuery(operation, table, time.Since(start), err)
	}
}
