package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hesabgar/hesabgar-bot/internal/domain"
)

// SnapshotRepository defines persistence operations for user snapshots.
type SnapshotRepository interface {
	Get(ctx context.Context, username string) (*domain.Snapshot, error)
	Save(ctx context.Context, snapshot *domain.Snapshot) error
}

type snapshotRepository struct {
	db  *sql.DB
	log *slog.Logger
}

// NewSnapshotRepository creates a new SQL-backed snapshot repository.
func NewSnapshotRepository(db *sql.DB, log *slog.Logger) SnapshotRepository {
	return &snapshotRepository{
		db:  db,
		log: log,
	}
}

// Get retrieves the last known state for a username, or ErrNotFound.
func (r *snapshotRepository) Get(ctx context.Context, username string) (*domain.Snapshot, error) {
	const query = `
		SELECT username, status, COALESCE(expire, ''), updated_at
		FROM user_snapshots
		WHERE username = $1
	`

	row := r.db.QueryRowContext(ctx, query, username)

	var snapshot domain.Snapshot
	if err := row.Scan(
		&snapshot.Username,
		&snapshot.Status,
		&snapshot.Expire,
		&snapshot.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}

		if r.log != nil {
			r.log.Error("failed to fetch user snapshot", slog.String("username", username), slog.Any("error", err))
		}
		return nil, fmt.Errorf("select user snapshot: %w", err)
	}

	return &snapshot, nil
}

// Save overwrites the snapshot for a username (last write wins).
func (r *snapshotRepository) Save(ctx context.Context, snapshot *domain.Snapshot) error {
	const query = `
		INSERT INTO user_snapshots (username, status, expire, updated_at)
		VALUES ($1, $2, NULLIF($3, ''), $4)
		ON CONFLICT (username) DO UPDATE
		SET status = EXCLUDED.status, expire = EXCLUDED.expire, updated_at = EXCLUDED.updated_at
	`

	if _, err := r.db.ExecContext(
		ctx,
		query,
		snapshot.Username,
		snapshot.Status,
		snapshot.Expire,
		time.Now().UTC(),
	); err != nil {
		if r.log != nil {
			r.log.Error("failed to save user snapshot", slog.String("username", snapshot.Username), slog.Any("error", err))
		}
		return fmt.Errorf("upsert user snapshot: %w", err)
	}

	return nil
}
