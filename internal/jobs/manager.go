// Package jobs runs background processing: scheduled roster syncs and
// audit log retention.
package jobs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"
)

// Manager describes the minimal queue operations needed by the application.
type Manager interface {
	Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
	// EnqueueAdminSync queues one roster reconciliation run; the bot's
	// /sync command goes through this.
	EnqueueAdminSync(ctx context.Context) error
	Close() error
}

type manager struct {
	client *asynq.Client
	log    *slog.Logger
}

// NewManager builds a Manager backed by an asynq client.
func NewManager(redisOpt asynq.RedisConnOpt, log *slog.Logger) Manager {
	if log == nil {
		log = slog.Default()
	}

	return &manager{
		client: asynq.NewClient(redisOpt),
		log:    log,
	}
}

func (m *manager) Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	return m.client.EnqueueContext(ctx, task, opts...)
}

func (m *manager) EnqueueAdminSync(ctx context.Context) error {
	info, err := m.Enqueue(ctx, NewAdminSyncTask())
	if err != nil {
		return fmt.Errorf("enqueue admin sync: %w", err)
	}

	m.log.Info("admin sync queued", slog.String("task_id", info.ID))
	return nil
}

func (m *manager) Close() error {
	return m.client.Close()
}
