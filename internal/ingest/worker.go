// Triangulum - Radio Geolocation and Observation Ingest Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/triangulum

package ingest

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/tomtom215/triangulum/internal/kvstore"
	"github.com/tomtom215/triangulum/internal/logging"
	"github.com/tomtom215/triangulum/internal/metrics"
)

// Handler processes one dequeued batch.
type Handler func(ctx context.Context, items [][]byte) error

// WorkerConfig tunes a queue worker.
type WorkerConfig struct {
	// IdleInterval is how often a partial batch is processed.
	IdleInterval time.Duration
	// PollRate caps back-to-back batches per second while the queue is
	// ready.
	PollRate float64
	// DrainTimeout bounds the drain on shutdown and each in-flight batch.
	DrainTimeout time.Duration
}

// Worker is the single consumer of one queue. It implements suture.Service.
type Worker struct {
	queue   *kvstore.Queue
	handle  Handler
	cfg     WorkerConfig
	limiter *rate.Limiter
	metrics *metrics.Metrics
	logger  zerolog.Logger
}

// NewWorker creates a worker for queue.
func NewWorker(queue *kvstore.Queue, handle Handler, cfg WorkerConfig, m *metrics.Metrics, logger zerolog.Logger) *Worker {
	if cfg.IdleInterval <= 0 {
		cfg.IdleInterval = time.Second
	}
	if cfg.PollRate <= 0 {
		cfg.PollRate = 10
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = 10 * time.Second
	}
	return &Worker{
		queue:   queue,
		handle:  handle,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.PollRate), 1),
		metrics: m,
		logger:  logger.With().Str("component", "ingest-worker").Str("queue", queue.Name()).Logger(),
	}
}

// Serve implements suture.Service. It processes full batches back to back,
// paced by the limiter, and partial batches every idle interval. On
// cancellation it drains the queue before returning.
func (w *Worker) Serve(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.IdleInterval)
	defer ticker.Stop()

	for {
		if _, err := w.RunOnce(ctx); err != nil && ctx.Err() == nil {
			w.logger.Warn().Err(err).Msg("Queue read failed")
		}

		ready, err := w.queue.Ready(ctx)
		if err == nil && ready {
			if err := w.limiter.Wait(ctx); err == nil {
				continue
			}
		}

		select {
		case <-ctx.Done():
			w.drain()
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce dequeues and processes at most one batch and returns the number
// of items taken. Handler errors are logged and the batch is dropped.
// Once dequeued, a batch runs to completion even if ctx is canceled; only
// the drain timeout bounds it.
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	items, err := w.queue.Dequeue(ctx, w.queue.Batch())
	if err != nil {
		return 0, err
	}
	if len(items) == 0 {
		return 0, nil
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), w.cfg.DrainTimeout)
	defer cancel()
	ctx = logging.ContextWithNewCorrelationID(ctx)
	start := time.Now()
	if err := w.handle(ctx, items); err != nil {
		log := logging.WithRequest(ctx, w.logger)
		log.Error().Err(err).Int("items", len(items)).Msg("Batch failed, dropping")
	}
	w.metrics.BatchDuration.WithLabelValues(w.queue.Name()).Observe(time.Since(start).Seconds())

	if _, err := w.queue.Size(ctx); err != nil {
		w.logger.Debug().Err(err).Msg("Queue size refresh failed")
	}
	return len(items), nil
}

// drain empties the queue with a fresh context bounded by the drain timeout.
func (w *Worker) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), w.cfg.DrainTimeout)
	defer cancel()

	var total int
	for ctx.Err() == nil {
		n, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Warn().Err(err).Int("drained", total).Msg("Drain aborted")
			return
		}
		if n == 0 {
			break
		}
		total += n
	}
	if total > 0 {
		w.logger.Info().Int("drained", total).Msg("Queue drained on shutdown")
	}
}

// String implements fmt.Stringer for suture logging.
func (w *Worker) String() string {
	return "ingest-worker-" + w.queue.Name()
}
