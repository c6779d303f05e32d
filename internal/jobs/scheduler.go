package jobs

import (
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

// auditCleanupCron runs retention once a day, off-peak.
const auditCleanupCron = "30 3 * * *"

// Scheduler registers periodic tasks and runs the cron loop.
type Scheduler interface {
	RegisterTasks(syncCron string, auditRetention time.Duration) error
	Run()
	Shutdown()
}

type scheduler struct {
	asynqScheduler *asynq.Scheduler
	log            *slog.Logger
}

// NewScheduler builds a Scheduler backed by asynq.
func NewScheduler(redisOpt asynq.RedisConnOpt, log *slog.Logger) Scheduler {
	if log == nil {
		log = slog.Default()
	}

	return &scheduler{
		asynqScheduler: asynq.NewScheduler(redisOpt, nil),
		log:            log,
	}
}

// RegisterTasks wires the periodic admin sync and audit retention runs.
// An empty syncCron disables the periodic sync; a non-positive retention
// disables cleanup.
func (s *scheduler) RegisterTasks(syncCron string, auditRetention time.Duration) error {
	if syncCron != "" {
		if _, err := s.asynqScheduler.Register(syncCron, NewAdminSyncTask()); err != nil {
			return err
		}
		s.log.Info("scheduler: registered admin sync", slog.String("cron", syncCron))
	}

	if auditRetention > 0 {
		task, err := NewAuditCleanupTask(auditRetention)
		if err != nil {
			return err
		}
		if _, err := s.asynqScheduler.Register(auditCleanupCron, task); err != nil {
			return err
		}
		s.log.Info("scheduler: registered audit cleanup", slog.Duration("retention", auditRetention))
	}

	return nil
}

// Run starts the cron loop in the background.
func (s *scheduler) Run() {
	s.log.Info("scheduler: starting")

	go func() {
		if err := s.asynqScheduler.Run(); err != nil {
			s.log.Error("scheduler: run failed", slog.Any("error", err))
		}
	}()
}

// Shutdown stops the cron loop.
func (s *scheduler) Shutdown() {
	s.log.Info("scheduler: shutting down")
	s.asynqScheduler.Shutdown()
}
