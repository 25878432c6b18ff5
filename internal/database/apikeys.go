// Triangulum - Radio Geolocation and Observation Ingest Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/triangulum

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/triangulum/internal/models"
)

const apiKeyColumns = `valid_key, maxreq, allow_fallback, allow_locate, allow_region,
	COALESCE(fallback_name, ''), COALESCE(fallback_url, ''),
	fallback_ratelimit, fallback_ratelimit_interval, fallback_cache_expire,
	store_sample_locate, store_sample_submit`

// APIKey loads one API key, returning ErrNotFound for unknown keys.
func (db *DB) APIKey(ctx context.Context, key string) (k *models.APIKey, err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	defer func() {
		if errors.Is(err, ErrNotFound) {
			db.observe("select", "api_key", start, nil)
			return
		}
		db.observe("select", "api_key", start, err)
	}()

	k = &models.APIKey{}
	err = db.conn.QueryRowContext(ctx,
		"SELECT "+apiKeyColumns+" FROM api_key WHERE valid_key = ?", key,
	).Scan(
		&k.Key, &k.MaxReq, &k.AllowFallback, &k.AllowLocate, &k.AllowRegion,
		&k.FallbackName, &k.FallbackURL,
		&k.FallbackRateLimit, &k.FallbackRateLimitExpire, &k.FallbackCacheExpire,
		&k.StoreSampleLocate, &k.StoreSampleSubmit,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query api_key: %w", err)
	}
	return k, nil
}

// SaveAPIKey inserts or replaces an API key.
func (db *DB) SaveAPIKey(ctx context.Context, k *models.APIKey) (err error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	start := time.Now()
	defer func() { db.observe("upsert", "api_key", start, err) }()

	_, err = db.conn.ExecContext(ctx, `INSERT INTO api_key (
			valid_key, maxreq, allow_fallback, allow_locate, allow_region,
			fallback_name, fallback_url, fallback_ratelimit, fallback_ratelimit_interval,
			fallback_cache_expire, store_sample_locate, store_sample_submit
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (valid_key) DO UPDATE SET
			maxreq = EXCLUDED.maxreq,
			allow_fallback = EXCLUDED.allow_fallback,
			allow_locate = EXCLUDED.allow_locate,
			allow_region = EXCLUDED.allow_region,
			fallback_name = EXCLUDED.fallback_name,
			fallback_url = EXCLUDED.fallback_url,
			fallback_ratelimit = EXCLUDED.fallback_ratelimit,
			fallback_ratelimit_interval = EXCLUDED.fallback_ratelimit_interval,
			fallback_cache_expire = EXCLUDED.fallback_cache_expire,
			store_sample_locate = EXCLUDED.store_sample_locate,
			store_sample_submit = EXCLUDED.store_sample_submit`,
		k.Key, k.MaxReq, k.AllowFallback, k.AllowLocate, k.AllowRegion,
		nullString(k.FallbackName), nullString(k.FallbackURL),
		k.FallbackRateLimit, k.FallbackRateLimitExpire, k.FallbackCacheExpire,
		k.StoreSampleLocate, k.StoreSampleSubmit,
	)
	if err != nil {
		return fmt.Errorf("failed to save api_key %s: %w", k.Key, err)
	}
	return nil
}
