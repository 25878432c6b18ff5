// Triangulum - Radio Geolocation and Observation Ingest Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/triangulum

package ingest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/triangulum/internal/logging"
	"github.com/tomtom215/triangulum/internal/metrics"
)

// recorder is a Handler that collects batches.
type recorder struct {
	mu      sync.Mutex
	batches [][][]byte
	err     error
}

func (r *recorder) handle(_ context.Context, items [][]byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.batches = append(r.batches, items)
	return r.err
}

func (r *recorder) total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int
	for _, b := range r.batches {
		n += len(b)
	}
	return n
}

func fill(t *testing.T, n int) [][]byte {
	t.Helper()
	out := make([][]byte, n)
	for i := range out {
		out[i] = []byte{byte(i)}
	}
	return out
}

func TestWorkerRunOnceRespectsBatch(t *testing.T) {
	t.Parallel()
	m := metrics.NewForTesting()
	q := setupTestStore(t, m).Queue("update_wifi_0", 3)
	ctx := context.Background()
	if err := q.Enqueue(ctx, fill(t, 5)); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	rec := &recorder{}
	w := NewWorker(q, rec.handle, WorkerConfig{}, m, logging.Nop())

	for _, want := range []int{3, 2, 0} {
		n, err := w.RunOnce(ctx)
		if err != nil {
			t.Fatalf("RunOnce() error = %v", err)
		}
		if n != want {
			t.Errorf("expected %d items, got %d", want, n)
		}
	}
	if got := testutil.CollectAndCount(m.BatchDuration); got != 1 {
		t.Errorf("expected one batch duration series, got %d", got)
	}
}

func TestWorkerDropsFailedBatch(t *testing.T) {
	t.Parallel()
	m := metrics.NewForTesting()
	q := setupTestStore(t, m).Queue("incoming", 10)
	ctx := context.Background()
	if err := q.Enqueue(ctx, fill(t, 2)); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	rec := &recorder{err: errors.New("database down")}
	w := NewWorker(q, rec.handle, WorkerConfig{}, m, logging.Nop())
	if _, err := w.RunOnce(ctx); err != nil {
		t.Fatalf("RunOnce() error = %v", err)
	}
	if n, _ := q.Size(ctx); n != 0 {
		t.Errorf("expected failed batch to be dropped, %d items left", n)
	}
}

func TestWorkerServeProcessesAndDrains(t *testing.T) {
	t.Parallel()
	m := metrics.NewForTesting()
	q := setupTestStore(t, m).Queue("update_cellarea", 2)
	if err := q.Enqueue(context.Background(), fill(t, 7)); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	rec := &recorder{}
	w := NewWorker(q, rec.handle, WorkerConfig{IdleInterval: 5 * time.Millisecond, PollRate: 1000, DrainTimeout: time.Second}, m, logging.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Serve(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for rec.total() < 7 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := rec.total(); got != 7 {
		t.Fatalf("expected 7 items processed, got %d", got)
	}

	// Items queued right before shutdown are drained.
	if err := q.Enqueue(context.Background(), fill(t, 3)); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
	if got := rec.total(); got != 10 {
		t.Errorf("expected 10 items after drain, got %d", got)
	}
	if w.String() != "ingest-worker-update_cellarea" {
		t.Errorf("unexpected service name %q", w.String())
	}
}

func TestWorkerFinishesInFlightBatchOnCancel(t *testing.T) {
	t.Parallel()
	m := metrics.NewForTesting()
	q := setupTestStore(t, m).Queue("update_wifi_a", 10)
	if err := q.Enqueue(context.Background(), fill(t, 3)); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	started := make(chan struct{})
	var once sync.Once
	var mu sync.Mutex
	var processed int
	var handlerErr error
	handle := func(ctx context.Context, items [][]byte) error {
		once.Do(func() { close(started) })
		time.Sleep(100 * time.Millisecond)
		mu.Lock()
		defer mu.Unlock()
		if handlerErr = ctx.Err(); handlerErr != nil {
			return handlerErr
		}
		processed += len(items)
		return nil
	}
	w := NewWorker(q, handle, WorkerConfig{IdleInterval: time.Hour, PollRate: 1000, DrainTimeout: time.Second}, m, logging.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Serve(ctx) }()

	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("handler never started")
	}
	cancel()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}

	mu.Lock()
	defer mu.Unlock()
	if handlerErr != nil {
		t.Errorf("expected the in-flight batch to keep a live context, got %v", handlerErr)
	}
	if processed != 3 {
		t.Errorf("expected 3 items processed, got %d", processed)
	}
	if n, _ := q.Size(context.Background()); n != 0 {
		t.Errorf("expected an empty queue, got %d", n)
	}
}
