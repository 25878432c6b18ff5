// Triangulum - Radio Geolocation and Observation Ingest Service
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/triangulum

package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// MaintenanceTask is one periodic housekeeping job.
type MaintenanceTask struct {
	// Name identifies the task in logs.
	Name string

	// Interval between runs. Tasks with a non-positive interval are skipped.
	Interval time.Duration

	// Timeout bounds a single run. Zero means the interval.
	Timeout time.Duration

	// Run does the work. Errors are logged; the next tick retries.
	Run func(ctx context.Context) error
}

// GCTask wraps a value log garbage collector such as *kvstore.Store.
func GCTask(name string, interval time.Duration, gc interface{ RunGC() error }) MaintenanceTask {
	return MaintenanceTask{
		Name:     name,
		Interval: interval,
		Run:      func(context.Context) error { return gc.RunGC() },
	}
}

// CheckpointTask wraps a database checkpoint such as *database.DB.
func CheckpointTask(name string, interval time.Duration, db interface {
	Checkpoint(ctx context.Context) error
}) MaintenanceTask {
	return MaintenanceTask{Name: name, Interval: interval, Run: db.Checkpoint}
}

// MaintenanceService runs store housekeeping on fixed intervals under
// supervision. Each task keeps its own ticker so a slow checkpoint does not
// delay value log GC.
type MaintenanceService struct {
	tasks  []MaintenanceTask
	logger zerolog.Logger
	name   string
}

// NewMaintenanceService creates the service.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewMaintenanceService(logger zerolog.Logger, tasks ...MaintenanceTask) *MaintenanceService {
	active := make([]MaintenanceTask, 0, len(tasks))
	for _, t := range tasks {
		if t.Interval > 0 && t.Run != nil {
			active = append(active, t)
		}
	}
	return &MaintenanceService{
		tasks:  active,
		logger: logger.With().Str("service", "maintenance").Logger(),
		name:   "maintenance",
	}
}

// Serve implements suture.Service.
func (s *MaintenanceService) Serve(ctx context.Context) error {
	if len(s.tasks) == 0 {
		s.logger.Info().Msg("No maintenance tasks configured")
		<-ctx.Done()
		return ctx.Err()
	}

	done := make(chan struct{}, len(s.tasks))
	for i := range s.tasks {
		go func(t MaintenanceTask) {
			defer func() { done <- struct{}{} }()
			s.loop(ctx, t)
		}(s.tasks[i])
	}

	s.logger.Info().Int("tasks", len(s.tasks)).Msg("Maintenance service running")
	for range s.tasks {
		<-done
	}
	s.logger.Info().Msg("Maintenance service shutting down")
	return ctx.Err()
}

func (s *MaintenanceService) loop(ctx context.Context, t MaintenanceTask) {
	ticker := time.NewTicker(t.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.runOnce(ctx, t); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Warn().Err(err).Str("task", t.Name).Msg("Maintenance task failed")
			}
		}
	}
}

func (s *MaintenanceService) runOnce(ctx context.Context, t MaintenanceTask) (err error) {
	timeout := t.Timeout
	if timeout <= 0 {
		timeout = t.Interval
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task %s panicked: %v", t.Name, r)
		}
	}()

	start := time.Now()
	if err := t.Run(runCtx); err != nil {
		return err
	}
	s.logger.Debug().Str("task", t.Name).Dur("duration", time.Since(start)).Msg("Maintenance task complete")
	return nil
}

// String returns the service name for logging.
func (s *MaintenanceService) String() string {
	return s.name
}
