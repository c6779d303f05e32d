// Package handlers implements the background task handlers.
package handlers

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/hesabgar/hesabgar-bot/internal/adminsync"
)

// AdminSyncHandler runs one roster reconciliation per task.
type AdminSyncHandler struct {
	engine *adminsync.Engine
	log    *slog.Logger
}

// NewAdminSyncHandler constructs the handler.
func NewAdminSyncHandler(engine *adminsync.Engine, log *slog.Logger) *AdminSyncHandler {
	if log == nil {
		log = slog.Default()
	}

	return &AdminSyncHandler{
		engine: engine,
		log:    log,
	}
}

// ProcessTask satisfies asynq.Handler.
func (h *AdminSyncHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	result, err := h.engine.Sync(ctx)
	if err != nil {
		h.log.ErrorContext(ctx, "admin sync task failed", slog.String("task_type", t.Type()), slog.Any("error", err))
		return err
	}

	h.log.InfoContext(ctx, "admin sync task finished",
		slog.String("task_type", t.Type()),
		slog.Int("created", result.Created),
		slog.Int("updated", result.Updated),
		slog.Int("skipped", result.Skipped),
		slog.Int("errors", result.Errors),
	)

	return nil
}
