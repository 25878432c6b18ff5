// Triangulum - Radio Geolocation and Observation Ingest Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/triangulum

package kvstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

// Queue is a named FIFO of byte items stored in Badger.
type Queue struct {
	store *Store
	name  string
	batch int
}

// Queue returns a handle for the named queue. batch is the size at which
// Ready reports true; values below 1 are treated as 1.
func (s *Store) Queue(name string, batch int) *Queue {
	if batch < 1 {
		batch = 1
	}
	return &Queue{store: s, name: name, batch: batch}
}

// Name returns the queue name.
func (q *Queue) Name() string { return q.name }

// Batch returns the configured batch size.
func (q *Queue) Batch() int { return q.batch }

func (q *Queue) prefix() []byte {
	return []byte("queue:" + q.name + ":")
}

func (q *Queue) itemKey(id uint64) []byte {
	return fmt.Appendf(q.prefix(), "%020d", id)
}

// Enqueue appends items in order. All items are written in one transaction.
func (q *Queue) Enqueue(ctx context.Context, items [][]byte) error {
	if len(items) == 0 {
		return nil
	}
	if err := q.store.check(ctx); err != nil {
		return err
	}

	seq, err := q.store.sequence("queue:" + q.name)
	if err != nil {
		return err
	}
	ids := make([]uint64, len(items))
	for i := range items {
		if ids[i], err = seq.Next(); err != nil {
			return fmt.Errorf("next sequence for %s: %w", q.name, err)
		}
	}

	wb := q.store.db.NewWriteBatch()
	defer wb.Cancel()
	for i, item := range items {
		e := badger.NewEntry(q.itemKey(ids[i]), item).WithTTL(q.store.queueTTL)
		if err := wb.SetEntry(e); err != nil {
			q.store.recordError("enqueue")
			return fmt.Errorf("enqueue %s: %w", q.name, err)
		}
	}
	if err := wb.Flush(); err != nil {
		q.store.recordError("enqueue")
		return fmt.Errorf("enqueue %s: %w", q.name, err)
	}

	if q.store.metrics != nil {
		q.store.metrics.RecordQueueOp(q.name, "enqueue", len(items))
	}
	return nil
}

// Dequeue removes and returns up to limit items from the head of the queue.
// Concurrent callers never receive the same item.
func (q *Queue) Dequeue(ctx context.Context, limit int) ([][]byte, error) {
	if limit < 1 {
		return nil, nil
	}
	if err := q.store.check(ctx); err != nil {
		return nil, err
	}

	prefix := q.prefix()
	var out [][]byte
	err := q.store.update(ctx, func(txn *badger.Txn) error {
		out = out[:0]
		var keys [][]byte

		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		for it.Seek(prefix); it.ValidForPrefix(prefix) && len(out) < limit; it.Next() {
			item := it.Item()
			val, err := item.ValueCopy(nil)
			if err != nil {
				it.Close()
				return err
			}
			keys = append(keys, item.KeyCopy(nil))
			out = append(out, val)
		}
		it.Close()

		for _, k := range keys {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			q.store.recordError("dequeue")
		}
		return nil, fmt.Errorf("dequeue %s: %w", q.name, err)
	}

	if q.store.metrics != nil && len(out) > 0 {
		q.store.metrics.RecordQueueOp(q.name, "dequeue", len(out))
	}
	return out, nil
}

// Size counts the items currently in the queue.
func (q *Queue) Size(ctx context.Context) (int, error) {
	if err := q.store.check(ctx); err != nil {
		return 0, err
	}
	prefix := q.prefix()
	n := 0
	err := q.store.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			n++
		}
		return nil
	})
	if err != nil {
		q.store.recordError("size")
		return 0, fmt.Errorf("size %s: %w", q.name, err)
	}
	if q.store.metrics != nil {
		q.store.metrics.SetQueueSize(q.name, n)
	}
	return n, nil
}

// Ready reports whether at least one full batch is waiting.
func (q *Queue) Ready(ctx context.Context) (bool, error) {
	n, err := q.Size(ctx)
	if err != nil {
		return false, err
	}
	return n >= q.batch, nil
}

// Sizes reports the size of each named queue.
func (s *Store) Sizes(ctx context.Context, names ...string) (map[string]int, error) {
	out := make(map[string]int, len(names))
	for _, name := range names {
		n, err := s.Queue(name, 1).Size(ctx)
		if err != nil {
			return nil, err
		}
		out[name] = n
	}
	return out, nil
}
