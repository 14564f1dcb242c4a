package cron

import (
	"context"
	"fmt"
	"strings"
	"time"

	cron "github.com/robfig/cron/v3"

	"github.com/zenbase-ai/tech-for-iran-sub001/config"
	"github.com/zenbase-ai/tech-for-iran-sub001/internal/logger"
	"github.com/zenbase-ai/tech-for-iran-sub001/internal/usecase"
)

// Scheduler manages cron jobs for the application
type Scheduler struct {
	cron     *cron.Cron
	config   *config.Config
	executor *usecase.Executor
	stats    *usecase.StatsService
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewScheduler creates a new cron scheduler
func NewScheduler(
	cfg *config.Config,
	executor *usecase.Executor,
	stats *usecase.StatsService,
) *Scheduler {
	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())

	// Create cron with seconds support
	c := cron.New(cron.WithSeconds())

	return &Scheduler{
		cron:     c,
		config:   cfg,
		executor: executor,
		stats:    stats,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start starts the cron scheduler
func (s *Scheduler) Start() error {
	// Dispatch job: picks up due engagement steps
	dispatchSchedule := normalizeSchedule(s.config.DispatchSchedule)
	dispatchJobID, err := s.cron.AddFunc(dispatchSchedule, s.dispatchJob)
	if err != nil {
		return fmt.Errorf("failed to schedule dispatch job: %w", err)
	}
	logger.Info().Printf("Scheduled dispatch job with ID: %d, schedule: %s", dispatchJobID, dispatchSchedule)

	// Recovery job: releases steps orphaned by crashed workers
	recoverySchedule := normalizeSchedule(s.config.RecoverySchedule)
	recoveryJobID, err := s.cron.AddFunc(recoverySchedule, s.recoveryJob)
	if err != nil {
		return fmt.Errorf("failed to schedule recovery job: %w", err)
	}
	logger.Info().Printf("Scheduled recovery job with ID: %d, schedule: %s", recoveryJobID, recoverySchedule)

	// Stats job: snapshots engagement counters for active posts
	statsSchedule := normalizeSchedule(s.config.StatsSchedule)
	statsJobID, err := s.cron.AddFunc(statsSchedule, s.statsJob)
	if err != nil {
		return fmt.Errorf("failed to schedule stats job: %w", err)
	}
	logger.Info().Printf("Scheduled stats job with ID: %d, schedule: %s", statsJobID, statsSchedule)

	// Start cron
	s.cron.Start()
	logger.Info().Println("Cron scheduler started")

	// Recover work stranded by the previous process before the first dispatch
	go s.recoveryJob()

	return nil
}

// Stop stops the cron scheduler gracefully
func (s *Scheduler) Stop() {
	logger.Info().Println("Stopping cron scheduler...")
	s.cancel()
	s.cron.Stop()
	logger.Info().Println("Cron scheduler stopped")
}

// dispatchJob claims and executes all due engagement steps
func (s *Scheduler) dispatchJob() {
	ctx, cancel := context.WithTimeout(s.ctx, 2*time.Minute)
	defer cancel()

	if err := s.executor.RunDue(ctx); err != nil {
		logger.Error().Printf("Dispatch job failed: %v", err)
	}
}

// recoveryJob releases steps stuck in executing after a worker died
func (s *Scheduler) recoveryJob() {
	if err := s.executor.RecoverStale(); err != nil {
		logger.Error().Printf("Recovery job failed: %v", err)
	}
}

// statsJob snapshots counters for every active post
func (s *Scheduler) statsJob() {
	logger.Info().Println("Starting stats snapshot job...")
	startTime := time.Now()

	ctx, cancel := context.WithTimeout(s.ctx, 5*time.Minute)
	defer cancel()

	if err := s.stats.CollectActive(ctx); err != nil {
		logger.Error().Printf("Stats snapshot job failed: %v", err)
		return
	}

	logger.Info().Printf("Stats snapshot job completed in %v", time.Since(startTime))
}

// normalizeSchedule ensures cron expressions are compatible with cron.WithSeconds
func normalizeSchedule(expr string) string {
	fields := strings.Fields(expr)
	if len(fields) == 5 {
		return "0 " + expr
	}
	return expr
}
