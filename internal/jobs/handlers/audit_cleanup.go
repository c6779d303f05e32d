package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/hesabgar/hesabgar-bot/internal/jobs"
	"github.com/hesabgar/hesabgar-bot/internal/repository"
)

// AuditCleanupHandler prunes audit rows past the retention window.
type AuditCleanupHandler struct {
	audit repository.AuditRepository
	log   *slog.Logger
}

// NewAuditCleanupHandler constructs the handler.
func NewAuditCleanupHandler(audit repository.AuditRepository, log *slog.Logger) *AuditCleanupHandler {
	if log == nil {
		log = slog.Default()
	}

	return &AuditCleanupHandler{
		audit: audit,
		log:   log,
	}
}

// ProcessTask satisfies asynq.Handler.
func (h *AuditCleanupHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload jobs.AuditCleanupPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		h.log.ErrorContext(ctx, "audit cleanup: failed to decode payload", slog.String("task_type", t.Type()), slog.Any("error", err))
		return err
	}

	if payload.Retention <= 0 {
		return nil
	}

	cutoff := time.Now().UTC().Add(-payload.Retention)

	deleted, err := h.audit.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		h.log.ErrorContext(ctx, "audit cleanup task failed", slog.Any("error", err))
		return err
	}

	h.log.InfoContext(ctx, "audit cleanup task finished",
		slog.Time("cutoff", cutoff),
		slog.Int64("deleted", deleted),
	)

	return nil
}
