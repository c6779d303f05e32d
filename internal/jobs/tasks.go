package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

// Task types processed by the background worker.
const (
	TaskTypeAdminSync    = "admin:sync"
	TaskTypeAuditCleanup = "audit:cleanup"
)

// Queues by priority.
const (
	QueueDefault = "default"
	QueueLow     = "low"
)

// AuditCleanupPayload bounds the retention window of one cleanup run.
type AuditCleanupPayload struct {
	Retention time.Duration `json:"retention"`
}

// NewAdminSyncTask builds a roster reconciliation task.
func NewAdminSyncTask() *asynq.Task {
	return asynq.NewTask(TaskTypeAdminSync, nil, asynq.Queue(QueueDefault))
}

// NewAuditCleanupTask builds an audit retention task.
func NewAuditCleanupTask(retention time.Duration) (*asynq.Task, error) {
	payload, err := json.Marshal(AuditCleanupPayload{Retention: retention})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(TaskTypeAuditCleanup, payload, asynq.Queue(QueueLow)), nil
}
