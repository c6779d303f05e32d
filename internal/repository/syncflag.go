package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// SyncFlagRepository defines persistence for process-wide key/value flags.
type SyncFlagRepository interface {
	// Get returns the stored value, or an empty string when the flag is unset.
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}

type syncFlagRepository struct {
	db  *sql.DB
	log *slog.Logger
}

// NewSyncFlagRepository creates a new SQL-backed sync flag repository.
func NewSyncFlagRepository(db *sql.DB, log *slog.Logger) SyncFlagRepository {
	return &syncFlagRepository{
		db:  db,
		log: log,
	}
}

func (r *syncFlagRepository) Get(ctx context.Context, key string) (string, error) {
	const query = `SELECT COALESCE(value, '') FROM sync_flags WHERE key = $1`

	var value string
	if err := r.db.QueryRowContext(ctx, query, key).Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}

		if r.log != nil {
			r.log.Error("failed to fetch sync flag", slog.String("key", key), slog.Any("error", err))
		}
		return "", fmt.Errorf("select sync flag: %w", err)
	}

	return value, nil
}

func (r *syncFlagRepository) Set(ctx context.Context, key, value string) error {
	const query = `
		INSERT INTO sync_flags (key, value, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE
		SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at
	`

	if _, err := r.db.ExecContext(ctx, query, key, value, time.Now().UTC()); err != nil {
		if r.log != nil {
			r.log.Error("failed to set sync flag", slog.String("key", key), slog.Any("error", err))
		}
		return fmt.Errorf("upsert sync flag: %w", err)
	}

	return nil
}
