// Triangulum - Radio Geolocation and Observation Ingest Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/triangulum

package kvstore

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// DailyCounterTTL keeps a daily usage counter around long enough to be
// read on the following day.
const DailyCounterTTL = 48 * time.Hour

// Incr atomically adds one to the counter at key and returns the new
// value. The TTL is applied when the counter is created; later increments
// keep the original expiry so the window does not slide.
func (s *Store) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	if err := s.check(ctx); err != nil {
		return 0, err
	}
	k := []byte(key)
	var value int64
	err := s.update(ctx, func(txn *badger.Txn) error {
		var (
			current   int64
			expiresAt uint64
		)
		item, err := txn.Get(k)
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
		case err != nil:
			return err
		default:
			expiresAt = item.ExpiresAt()
			if err := item.Value(func(val []byte) error {
				if len(val) == 8 {
					current = int64(binary.BigEndian.Uint64(val))
				}
				return nil
			}); err != nil {
				return err
			}
		}

		value = current + 1
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, uint64(value))

		e := badger.NewEntry(k, buf)
		switch {
		case expiresAt > 0:
			e.ExpiresAt = expiresAt
		case ttl > 0:
			e = e.WithTTL(ttl)
		}
		return txn.SetEntry(e)
	})
	if err != nil {
		s.recordError("incr")
		return 0, fmt.Errorf("incr %s: %w", key, err)
	}
	return value, nil
}

// Counter reads the counter at key. Missing counters read as zero.
func (s *Store) Counter(ctx context.Context, key string) (int64, error) {
	val, err := s.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if len(val) != 8 {
		return 0, fmt.Errorf("counter %s: unexpected value length %d", key, len(val))
	}
	return int64(binary.BigEndian.Uint64(val)), nil
}

// RateLimiter enforces fixed-window request limits.
type RateLimiter struct {
	store    *Store
	failOpen bool
}

// NewRateLimiter creates a limiter. When failOpen is set, store errors
// allow the request instead of rejecting it.
func NewRateLimiter(store *Store, failOpen bool) *RateLimiter {
	return &RateLimiter{store: store, failOpen: failOpen}
}

// Allow counts one request against key and reports whether the count is
// still within limit for the current window. A limit of zero or less disables
// the limit.
func (r *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) bool {
	if limit <= 0 {
		return true
	}
	n, err := r.store.Incr(ctx, key, window)
	if err != nil {
		r.store.logger.Warn().Err(err).
			Str("key", key).
			Bool("fail_open", r.failOpen).
			Msg("Rate limit check failed")
		return r.failOpen
	}
	return n <= int64(limit)
}

// DailyKey returns the daily usage counter key for an API key.
func DailyKey(apiKey string, day time.Time) string {
	return "apilimit:" + apiKey + ":" + day.UTC().Format("20060102")
}

// IncrDaily counts one request for apiKey on the given day.
func (s *Store) IncrDaily(ctx context.Context, apiKey string, day time.Time) (int64, error) {
	return s.Incr(ctx, DailyKey(apiKey, day), DailyCounterTTL)
}
