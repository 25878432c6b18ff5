// Triangulum - Radio Geolocation and Observation Ingest Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/triangulum

package kvstore

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// Cache stores opaque values under a key prefix. Read and write failures
// are logged and treated as misses; a broken cache never fails a request.
type Cache struct {
	store  *Store
	prefix string
	logger zerolog.Logger
}

// NewCache returns a cache whose keys are namespaced by prefix.
func NewCache(store *Store, prefix string) *Cache {
	return &Cache{
		store:  store,
		prefix: "cache:" + prefix + ":",
		logger: store.logger.With().Str("cache", prefix).Logger(),
	}
}

// Get returns the cached value and whether it was present.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	val, err := c.store.Get(ctx, c.prefix+key)
	if errors.Is(err, ErrNotFound) {
		return nil, false
	}
	if err != nil {
		c.logger.Warn().Err(err).Msg("Cache read failed")
		return nil, false
	}
	return val, true
}

// Put stores value for ttl. A ttl of zero or less disables caching.
func (c *Cache) Put(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	if err := c.store.Set(ctx, c.prefix+key, value, ttl); err != nil {
		c.logger.Warn().Err(err).Msg("Cache write failed")
	}
}
