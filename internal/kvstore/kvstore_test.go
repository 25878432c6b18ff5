// Triangulum - Radio Geolocation and Observation Ingest Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/triangulum

package kvstore

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/triangulum/internal/config"
	"github.com/tomtom215/triangulum/internal/logging"
	"github.com/tomtom215/triangulum/internal/metrics"
)

func newTestStore(t *testing.T) (*Store, *metrics.Metrics) {
	t.Helper()
	m := metrics.NewForTesting()
	s, err := OpenInMemory(logging.Nop(), m)
	if err != nil {
		t.Fatalf("OpenInMemory() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s, m
}

func items(n int) [][]byte {
	out := make([][]byte, n)
	for i := range out {
		out[i] = []byte(fmt.Sprintf("item-%03d", i))
	}
	return out
}

func TestOptionsFromConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		url      string
		wantMem  bool
		wantPath string
	}{
		{url: "", wantMem: true},
		{url: "memory", wantMem: true},
		{url: "badger://memory", wantMem: true},
		{url: "badger:///var/lib/triangulum/kv", wantPath: "/var/lib/triangulum/kv"},
		{url: "./data/kv", wantPath: "./data/kv"},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			t.Parallel()

			opts := OptionsFromConfig(&config.KVStoreConfig{URL: tt.url, SyncWrites: true, QueueTTL: time.Hour})
			if opts.InMemory != tt.wantMem || opts.Path != tt.wantPath {
				t.Errorf("expected in_memory=%v path=%q, got %v %q", tt.wantMem, tt.wantPath, opts.InMemory, opts.Path)
			}
			if !opts.SyncWrites || opts.QueueTTL != time.Hour {
				t.Errorf("expected sync writes and queue ttl to carry over, got %+v", opts)
			}
		})
	}
}

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()
	if _, err := Open(Options{}, logging.Nop(), nil); err == nil {
		t.Fatal("expected error for missing path")
	}
}

func TestOpenOnDisk(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	s, err := Open(Options{Path: dir, MemTableSize: 16 << 20}, logging.Nop(), metrics.NewForTesting())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	ctx := context.Background()
	if err := s.Queue("q", 1).Enqueue(ctx, items(3)); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if err := s.RunGC(); err != nil {
		t.Fatalf("RunGC() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	s, err = Open(Options{Path: dir, MemTableSize: 16 << 20}, logging.Nop(), metrics.NewForTesting())
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer s.Close()
	n, err := s.Queue("q", 1).Size(ctx)
	if err != nil {
		t.Fatalf("Size() error = %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 items after reopen, got %d", n)
	}
}

func TestQueueFIFO(t *testing.T) {
	t.Parallel()
	s, m := newTestStore(t)
	ctx := context.Background()
	q := s.Queue("update_incoming", 10)

	if err := q.Enqueue(ctx, items(15)); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}

	got, err := q.Dequeue(ctx, 10)
	if err != nil {
		t.Fatalf("Dequeue() error = %v", err)
	}
	if len(got) != 10 {
		t.Fatalf("expected 10 items, got %d", len(got))
	}
	for i, item := range got {
		if want := fmt.Sprintf("item-%03d", i); string(item) != want {
			t.Errorf("item %d: expected %s, got %s", i, want, item)
		}
	}

	rest, err := q.Dequeue(ctx, 10)
	if err != nil {
		t.Fatalf("Dequeue() error = %v", err)
	}
	if len(rest) != 5 || string(rest[0]) != "item-010" {
		t.Errorf("expected remaining 5 items starting at item-010, got %d", len(rest))
	}

	empty, err := q.Dequeue(ctx, 10)
	if err != nil {
		t.Fatalf("Dequeue() error = %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("expected empty queue, got %d items", len(empty))
	}

	if got := testutil.ToFloat64(m.QueueItems.WithLabelValues("update_incoming", "enqueue")); got != 15 {
		t.Errorf("expected 15 enqueued, got %v", got)
	}
	if got := testutil.ToFloat64(m.QueueItems.WithLabelValues("update_incoming", "dequeue")); got != 15 {
		t.Errorf("expected 15 dequeued, got %v", got)
	}
}

func TestQueuesAreIsolated(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t)
	ctx := context.Background()

	// "cell" is a prefix of "cell_gsm"; the separator keeps them apart.
	if err := s.Queue("cell", 1).Enqueue(ctx, items(2)); err != nil {
		t.Fatal(err)
	}
	if err := s.Queue("cell_gsm", 1).Enqueue(ctx, items(3)); err != nil {
		t.Fatal(err)
	}

	sizes, err := s.Sizes(ctx, "cell", "cell_gsm", "wifi_0")
	if err != nil {
		t.Fatalf("Sizes() error = %v", err)
	}
	want := map[string]int{"cell": 2, "cell_gsm": 3, "wifi_0": 0}
	for name, n := range want {
		if sizes[name] != n {
			t.Errorf("queue %s: expected %d, got %d", name, n, sizes[name])
		}
	}
}

func TestQueueReady(t *testing.T) {
	t.Parallel()
	s, m := newTestStore(t)
	ctx := context.Background()
	q := s.Queue("update_wifi_a", 5)

	if q.Batch() != 5 || q.Name() != "update_wifi_a" {
		t.Fatalf("unexpected queue handle %s/%d", q.Name(), q.Batch())
	}

	if err := q.Enqueue(ctx, items(4)); err != nil {
		t.Fatal(err)
	}
	ready, err := q.Ready(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if ready {
		t.Error("expected queue below batch size to not be ready")
	}

	if err := q.Enqueue(ctx, items(1)); err != nil {
		t.Fatal(err)
	}
	if ready, _ = q.Ready(ctx); !ready {
		t.Error("expected queue at batch size to be ready")
	}
	if got := testutil.ToFloat64(m.QueueSize.WithLabelValues("update_wifi_a")); got != 5 {
		t.Errorf("expected size gauge 5, got %v", got)
	}
}

func TestQueueBatchFloor(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t)
	if got := s.Queue("q", 0).Batch(); got != 1 {
		t.Errorf("expected batch floor of 1, got %d", got)
	}
}

func TestConcurrentDequeueDeliversOnce(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t)
	ctx := context.Background()
	q := s.Queue("concurrent", 1)

	const total = 200
	if err := q.Enqueue(ctx, items(total)); err != nil {
		t.Fatal(err)
	}

	var (
		mu   sync.Mutex
		seen = make(map[string]int)
		wg   sync.WaitGroup
	)
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				got, err := q.Dequeue(ctx, 7)
				if err != nil {
					t.Errorf("Dequeue() error = %v", err)
					return
				}
				if len(got) == 0 {
					return
				}
				mu.Lock()
				for _, item := range got {
					seen[string(item)]++
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != total {
		t.Errorf("expected %d distinct items, got %d", total, len(seen))
	}
	for item, n := range seen {
		if n != 1 {
			t.Errorf("item %s delivered %d times", item, n)
		}
	}
}

func TestClosedStore(t *testing.T) {
	t.Parallel()
	s, err := OpenInMemory(logging.Nop(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}

	ctx := context.Background()
	if err := s.Ping(ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed from Ping, got %v", err)
	}
	if err := s.Queue("q", 1).Enqueue(ctx, items(1)); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed from Enqueue, got %v", err)
	}
}

func TestCanceledContext(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := s.Queue("q", 1).Dequeue(ctx, 1); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestIncr(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t)
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		n, err := s.Incr(ctx, "counter", time.Hour)
		if err != nil {
			t.Fatalf("Incr() error = %v", err)
		}
		if n != i {
			t.Errorf("expected %d, got %d", i, n)
		}
	}
	n, err := s.Counter(ctx, "counter")
	if err != nil || n != 3 {
		t.Errorf("expected counter 3, got %d (err %v)", n, err)
	}
	if n, err := s.Counter(ctx, "missing"); err != nil || n != 0 {
		t.Errorf("expected missing counter 0, got %d (err %v)", n, err)
	}
}

func TestIncrConcurrent(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Incr(ctx, "hits", time.Hour); err != nil {
				t.Errorf("Incr() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if n, _ := s.Counter(ctx, "hits"); n != 50 {
		t.Errorf("expected 50, got %d", n)
	}
}

func TestIncrKeepsWindow(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Incr(ctx, "window", 2*time.Second); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)
	// A longer TTL on a later increment must not extend the window.
	if _, err := s.Incr(ctx, "window", time.Hour); err != nil {
		t.Fatal(err)
	}
	time.Sleep(2500 * time.Millisecond)
	if n, _ := s.Counter(ctx, "window"); n != 0 {
		t.Errorf("expected counter to expire with its first window, got %d", n)
	}
}

func TestRateLimiter(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t)
	ctx := context.Background()
	rl := NewRateLimiter(s, false)

	for i := 0; i < 3; i++ {
		if !rl.Allow(ctx, "ratelimit:fallback:test", 3, time.Minute) {
			t.Fatalf("request %d: expected allow", i+1)
		}
	}
	if rl.Allow(ctx, "ratelimit:fallback:test", 3, time.Minute) {
		t.Error("expected fourth request to be limited")
	}
	if !rl.Allow(ctx, "ratelimit:fallback:other", 3, time.Minute) {
		t.Error("expected independent key to be allowed")
	}
	if !rl.Allow(ctx, "unlimited", 0, time.Minute) {
		t.Error("expected zero limit to allow")
	}
}

func TestRateLimiterFailureDefault(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		failOpen bool
	}{
		{"fail closed", false},
		{"fail open", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s, err := OpenInMemory(logging.Nop(), nil)
			if err != nil {
				t.Fatal(err)
			}
			_ = s.Close()
			rl := NewRateLimiter(s, tt.failOpen)
			if got := rl.Allow(context.Background(), "k", 1, time.Minute); got != tt.failOpen {
				t.Errorf("expected %v on store failure, got %v", tt.failOpen, got)
			}
		})
	}
}

func TestDailyKey(t *testing.T) {
	t.Parallel()
	day := time.Date(2026, 3, 9, 23, 30, 0, 0, time.FixedZone("X", -2*3600))
	if got := DailyKey("test", day); got != "apilimit:test:20260310" {
		t.Errorf("expected UTC day in key, got %s", got)
	}

	s, _ := newTestStore(t)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := s.IncrDaily(ctx, "test", day); err != nil {
			t.Fatal(err)
		}
	}
	if n, _ := s.Counter(ctx, DailyKey("test", day)); n != 2 {
		t.Errorf("expected 2 daily requests, got %d", n)
	}
}

func TestCache(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t)
	ctx := context.Background()
	c := NewCache(s, "fallback")

	if _, ok := c.Get(ctx, "fp"); ok {
		t.Fatal("expected miss on empty cache")
	}
	c.Put(ctx, "fp", []byte(`{"lat":1}`), time.Minute)
	val, ok := c.Get(ctx, "fp")
	if !ok || string(val) != `{"lat":1}` {
		t.Errorf("expected cached value, got %q (hit %v)", val, ok)
	}

	c.Put(ctx, "disabled", []byte("x"), 0)
	if _, ok := c.Get(ctx, "disabled"); ok {
		t.Error("expected zero TTL to skip caching")
	}

	raw, err := s.Get(ctx, "cache:fallback:fp")
	if err != nil || string(raw) != `{"lat":1}` {
		t.Errorf("expected namespaced key, got %q (err %v)", raw, err)
	}
}

func TestSetGetDelete(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t)
	ctx := context.Background()

	if _, err := s.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := s.Set(ctx, "k", []byte("v"), 0); err != nil {
		t.Fatal(err)
	}
	if v, err := s.Get(ctx, "k"); err != nil || string(v) != "v" {
		t.Errorf("expected v, got %q (err %v)", v, err)
	}
	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Get(ctx, "k"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := s.Ping(ctx); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
}
