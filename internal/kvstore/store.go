// Triangulum - Radio Geolocation and Observation Ingest Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/triangulum

package kvstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"

	"github.com/tomtom215/triangulum/internal/config"
	"github.com/tomtom215/triangulum/internal/metrics"
)

const (
	// DefaultQueueTTL is the lifetime of a queued item.
	DefaultQueueTTL = 48 * time.Hour

	maxConflictRetries = 64
	sequenceBandwidth  = 1000
)

var (
	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("kvstore: closed")

	// ErrNotFound is returned when a key does not exist or has expired.
	ErrNotFound = errors.New("kvstore: not found")
)

// Options configures Open.
type Options struct {
	// Path is the Badger directory. Ignored when InMemory is set.
	Path         string
	InMemory     bool
	SyncWrites   bool
	MemTableSize int64
	QueueTTL     time.Duration
}

// OptionsFromConfig maps the kvstore section onto Options. The URL may carry
// a badger:// prefix; "memory" or an empty URL selects an in-memory store.
func OptionsFromConfig(cfg *config.KVStoreConfig) Options {
	opts := Options{
		SyncWrites:   cfg.SyncWrites,
		MemTableSize: cfg.MemTableSize,
		QueueTTL:     cfg.QueueTTL,
	}
	switch path := strings.TrimPrefix(cfg.URL, "badger://"); path {
	case "", "memory", ":memory:":
		opts.InMemory = true
	default:
		opts.Path = path
	}
	return opts
}

// Store wraps a Badger database.
type Store struct {
	db       *badger.DB
	logger   zerolog.Logger
	metrics  *metrics.Metrics
	queueTTL time.Duration

	mu     sync.Mutex
	seqs   map[string]*badger.Sequence
	closed bool
}

// Open opens (or creates) the store.
func Open(opts Options, logger zerolog.Logger, m *metrics.Metrics) (*Store, error) {
	if !opts.InMemory && opts.Path == "" {
		return nil, errors.New("kvstore: path is required")
	}

	bopts := badger.DefaultOptions(opts.Path)
	if opts.InMemory {
		bopts = badger.DefaultOptions("").WithInMemory(true)
	}
	bopts.SyncWrites = opts.SyncWrites
	if opts.MemTableSize > 0 {
		bopts.MemTableSize = opts.MemTableSize
	}
	bopts.Logger = badgerLogger{logger: logger.With().Str("component", "badger").Logger()}

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}

	ttl := opts.QueueTTL
	if ttl <= 0 {
		ttl = DefaultQueueTTL
	}

	logger.Info().
		Str("path", opts.Path).
		Bool("in_memory", opts.InMemory).
		Bool("sync_writes", opts.SyncWrites).
		Dur("queue_ttl", ttl).
		Msg("Key-value store opened")

	return &Store{
		db:       db,
		logger:   logger,
		metrics:  m,
		queueTTL: ttl,
		seqs:     make(map[string]*badger.Sequence),
	}, nil
}

// OpenInMemory opens a throwaway in-memory store.
func OpenInMemory(logger zerolog.Logger, m *metrics.Metrics) (*Store, error) {
	return Open(Options{InMemory: true}, logger, m)
}

// Close releases sequences and closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	for name, seq := range s.seqs {
		if err := seq.Release(); err != nil {
			errs = append(errs, fmt.Errorf("release sequence %s: %w", name, err))
		}
	}
	if err := s.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close badger: %w", err))
	}
	return errors.Join(errs...)
}

// Ping verifies the store can serve a read transaction.
func (s *Store) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.isClosed() {
		return ErrClosed
	}
	return s.db.View(func(txn *badger.Txn) error { return nil })
}

// RunGC reclaims value log space until Badger reports nothing to rewrite.
func (s *Store) RunGC() error {
	if s.isClosed() {
		return ErrClosed
	}
	for {
		err := s.db.RunValueLogGC(0.5)
		if errors.Is(err, badger.ErrNoRewrite) || errors.Is(err, badger.ErrGCInMemoryMode) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("run value log gc: %w", err)
		}
	}
}

// Get returns the value stored under key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	var out []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		return err
	})
	if err != nil && !errors.Is(err, ErrNotFound) {
		s.recordError("get")
	}
	return out, err
}

// Set stores value under key. A positive ttl expires the entry.
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry([]byte(key), value)
		if ttl > 0 {
			e = e.WithTTL(ttl)
		}
		return txn.SetEntry(e)
	})
	if err != nil {
		s.recordError("set")
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Missing keys are not an error.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		s.recordError("delete")
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// update runs fn in a read-write transaction, retrying on commit conflicts.
func (s *Store) update(ctx context.Context, fn func(txn *badger.Txn) error) error {
	var err error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		err = s.db.Update(fn)
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}
	}
	return err
}

func (s *Store) sequence(name string) (*badger.Sequence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	if seq, ok := s.seqs[name]; ok {
		return seq, nil
	}
	seq, err := s.db.GetSequence([]byte("seq:"+name), sequenceBandwidth)
	if err != nil {
		return nil, fmt.Errorf("get sequence %s: %w", name, err)
	}
	s.seqs[name] = seq
	return seq, nil
}

func (s *Store) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.isClosed() {
		return ErrClosed
	}
	return nil
}

func (s *Store) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Store) recordError(op string) {
	if s.metrics != nil {
		s.metrics.KVErrors.WithLabelValues(op).Inc()
	}
}

// badgerLogger routes Badger's internal logging through zerolog. Badger is
// chatty at info level, so info and debug lines are logged at debug.
type badgerLogger struct {
	logger zerolog.Logger
}

func (l badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error().Msgf(trimNewline(format), args...)
}

func (l badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn().Msgf(trimNewline(format), args...)
}

func (l badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Debug().Msgf(trimNewline(format), args...)
}

func (l badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug().Msgf(trimNewline(format), args...)
}

func trimNewline(s string) string {
	if n := len(s); n > 0 && s[n-1] == '\n' {
		return s[:n-1]
	}
	return s
}
