// Copyright 2026 Teradata
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package scheduler runs the gateway's periodic jobs: database backups and
// model catalog syncs, each on its own cron expression. An empty expression
// disables a job.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/Common-Nat/OpenRouter-LLM-Console/pkg/observability"
)

// Config contains scheduler configuration. Schedules use the standard
// 5-field cron format (descriptors like "@every 6h" also work).
type Config struct {
	BackupSchedule    string
	ModelSyncSchedule string

	// Backup snapshots the database and returns the snapshot path.
	Backup func(ctx context.Context) (string, error)
	// Syncer refreshes the model catalog.
	Syncer *ModelSyncer

	Logger *zap.Logger
	Tracer observability.Tracer
}

// Scheduler manages cron-based background jobs.
type Scheduler struct {
	cronEngine *cron.Cron
	config     Config
	logger     *zap.Logger
	tracer     observability.Tracer

	mu      sync.Mutex
	running map[string]bool
	stopped bool
}

// New validates the configured schedules and builds a scheduler.
func New(config Config) (*Scheduler, error) {
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.Tracer == nil {
		config.Tracer = observability.NewNoOpTracer()
	}

	if config.BackupSchedule != "" {
		if config.Backup == nil {
			return nil, fmt.Errorf("backup schedule set but no backup function configured")
		}
		if _, err := cron.ParseStandard(config.BackupSchedule); err != nil {
			return nil, fmt.Errorf("invalid backup schedule %q: %w", config.BackupSchedule, err)
		}
	}
	if config.ModelSyncSchedule != "" {
		if config.Syncer == nil {
			return nil, fmt.Errorf("model sync schedule set but no syncer configured")
		}
		if _, err := cron.ParseStandard(config.ModelSyncSchedule); err != nil {
			return nil, fmt.Errorf("invalid model sync schedule %q: %w", config.ModelSyncSchedule, err)
		}
	}

	return &Scheduler{
		cronEngine: cron.New(),
		config:     config,
		logger:     config.Logger,
		tracer:     config.Tracer,
		running:    make(map[string]bool),
	}, nil
}

// Start registers the enabled jobs and starts the cron engine.
func (s *Scheduler) Start() error {
	jobs := 0

	if s.config.BackupSchedule != "" {
		if _, err := s.cronEngine.AddFunc(s.config.BackupSchedule, func() {
			s.runJob("backup", s.runBackup)
		}); err != nil {
			return fmt.Errorf("failed to add backup job: %w", err)
		}
		s.logger.Info("Scheduled database backups",
			zap.String("schedule", s.config.BackupSchedule))
		jobs++
	}

	if s.config.ModelSyncSchedule != "" {
		if _, err := s.cronEngine.AddFunc(s.config.ModelSyncSchedule, func() {
			s.runJob("model_sync", s.runModelSync)
		}); err != nil {
			return fmt.Errorf("failed to add model sync job: %w", err)
		}
		s.logger.Info("Scheduled model catalog syncs",
			zap.String("schedule", s.config.ModelSyncSchedule))
		jobs++
	}

	if jobs == 0 {
		s.logger.Info("No scheduled jobs configured")
		return nil
	}

	s.cronEngine.Start()
	s.logger.Info("Scheduler started", zap.Int("jobs", jobs))
	return nil
}

// Stop gracefully shuts down the scheduler, waiting for in-flight jobs until
// ctx expires.
func (s *Scheduler) Stop(ctx context.Context) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.mu.Unlock()

	cronCtx := s.cronEngine.Stop()

	select {
	case <-cronCtx.Done():
		s.logger.Info("All scheduled jobs completed")
	case <-ctx.Done():
		s.logger.Warn("Scheduler shutdown timeout, some jobs may still be running")
	}
}

// runJob executes one job, skipping the run when the previous one is still
// in flight.
func (s *Scheduler) runJob(name string, fn func(ctx context.Context) error) {
	s.mu.Lock()
	if s.running[name] {
		s.mu.Unlock()
		s.logger.Info("Skipping job, previous run still in flight",
			zap.String("job", name))
		s.tracer.RecordMetric("scheduler.job", 1.0, map[string]string{
			"job":    name,
			"status": "skipped",
		})
		return
	}
	s.running[name] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.running, name)
		s.mu.Unlock()
	}()

	startTime := time.Now()
	s.logger.Info("Running scheduled job", zap.String("job", name))

	// Jobs run on a background context so an HTTP shutdown does not abort a
	// half-written backup; Stop waits for them instead.
	err := fn(context.Background())
	duration := time.Since(startTime)

	if err != nil {
		s.logger.Error("Scheduled job failed",
			zap.String("job", name),
			zap.Duration("duration", duration),
			zap.Error(err))
		s.tracer.RecordMetric("scheduler.job", 1.0, map[string]string{
			"job":    name,
			"status": "failed",
		})
		return
	}

	s.logger.Info("Scheduled job completed",
		zap.String("job", name),
		zap.Duration("duration", duration))
	s.tracer.RecordMetric("scheduler.job", 1.0, map[string]string{
		"job":    name,
		"status": "success",
	})
}

func (s *Scheduler) runBackup(ctx context.Context) error {
	path, err := s.config.Backup(ctx)
	if err != nil {
		return err
	}
	s.logger.Info("Database backup written", zap.String("path", path))
	return nil
}

func (s *Scheduler) runModelSync(ctx context.Context) error {
	count, err := s.config.Syncer.Sync(ctx)
	if err != nil {
		return err
	}
	s.logger.Info("Model catalog synced", zap.Int("models", count))
	return nil
}
