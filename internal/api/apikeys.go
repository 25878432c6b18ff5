// Triangulum - Radio Geolocation and Observation Ingest Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/triangulum

package api

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/triangulum/internal/cache"
	"github.com/tomtom215/triangulum/internal/database"
	"github.com/tomtom215/triangulum/internal/logging"
	"github.com/tomtom215/triangulum/internal/models"
)

// KeySource loads API key policies. *database.DB implements it.
type KeySource interface {
	APIKey(ctx context.Context, key string) (*models.APIKey, error)
}

// apiKeyCacheSize bounds the number of cached key policies.
const apiKeyCacheSize = 10000

// KeyCache fronts a KeySource with an in-process cache. Unknown keys are
// cached as nil so a flood of bogus keys does not reach the store.
type KeyCache struct {
	source KeySource
	cache  *cache.LRU[*models.APIKey]
	logger zerolog.Logger
}

// NewKeyCache caches lookups against source for ttl.
func NewKeyCache(source KeySource, ttl time.Duration, logger zerolog.Logger) *KeyCache {
	return &KeyCache{
		source: source,
		cache:  cache.NewLRU[*models.APIKey](apiKeyCacheSize, ttl),
		logger: logging.WithComponent(logger, "apikeys"),
	}
}

// Lookup returns the policy for raw, or nil when raw is malformed or
// unknown. Store failures are logged and answered as unknown without
// being cached.
func (c *KeyCache) Lookup(ctx context.Context, raw string) *models.APIKey {
	if !models.ValidAPIKeyString(raw) {
		return nil
	}
	if k, ok := c.cache.Get(raw); ok {
		return k
	}

	k, err := c.source.APIKey(ctx, raw)
	switch {
	case errors.Is(err, database.ErrNotFound):
		c.cache.Add(raw, nil)
		return nil
	case err != nil:
		l := logging.WithRequest(ctx, c.logger)
		l.Warn().Err(err).Str("api_key", raw).Msg("API key lookup failed")
		return nil
	}
	c.cache.Add(raw, k)
	return k
}

// Sweep drops expired cache entries.
func (c *KeyCache) Sweep(context.Context) error {
	if n := c.cache.CleanupExpired(); n > 0 {
		c.logger.Debug().Int("removed", n).Msg("Expired API key cache entries")
	}
	return nil
}
