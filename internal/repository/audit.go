package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/hesabgar/hesabgar-bot/internal/domain"
)

// AuditRepository defines operations on the append-only audit log.
type AuditRepository interface {
	Append(ctx context.Context, entry *domain.AuditEntry) error
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type auditRepository struct {
	db  *sql.DB
	log *slog.Logger
}

// NewAuditRepository creates a new SQL-backed audit repository.
func NewAuditRepository(db *sql.DB, log *slog.Logger) AuditRepository {
	return &auditRepository{
		db:  db,
		log: log,
	}
}

// Append inserts a new audit row; rows are never mutated afterwards.
func (r *auditRepository) Append(ctx context.Context, entry *domain.AuditEntry) error {
	const query = `
		INSERT INTO audit_log (type, username, admin_id, actor_id, payload, created_at)
		VALUES ($1, NULLIF($2, ''), NULLIF($3, ''), NULLIF($4, ''), $5, $6)
	`

	var payload any
	if len(entry.Payload) > 0 {
		payload = []byte(entry.Payload)
	}

	if _, err := r.db.ExecContext(
		ctx,
		query,
		entry.Type,
		entry.Username,
		entry.AdminID,
		entry.ActorID,
		payload,
		time.Now().UTC(),
	); err != nil {
		if r.log != nil {
			r.log.Error("failed to append audit entry", slog.String("type", entry.Type), slog.Any("error", err))
		}
		return fmt.Errorf("insert audit entry: %w", err)
	}

	return nil
}

// DeleteOlderThan prunes audit rows created before the cutoff and returns
// the number of rows removed. Used only by the retention job.
func (r *auditRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `DELETE FROM audit_log WHERE created_at < $1`

	result, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		if r.log != nil {
			r.log.Error("failed to prune audit log", slog.Time("cutoff", cutoff), slog.Any("error", err))
		}
		return 0, fmt.Errorf("delete audit entries: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("audit prune rows affected: %w", err)
	}

	return affected, nil
}
