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

// AdminRepository defines persistence operations for admin destinations.
type AdminRepository interface {
	Get(ctx context.Context, adminID string) (*domain.AdminDestination, error)
	Save(ctx context.Context, dest *domain.AdminDestination) error
	UpdateUsername(ctx context.Context, adminID, adminUsername string) error
	Delete(ctx context.Context, adminID string) error
	List(ctx context.Context) ([]domain.AdminDestination, error)
}

type adminRepository struct {
	db  *sql.DB
	log *slog.Logger
}

// NewAdminRepository creates a new SQL-backed admin destination repository.
func NewAdminRepository(db *sql.DB, log *slog.Logger) AdminRepository {
	return &adminRepository{
		db:  db,
		log: log,
	}
}

// Get retrieves the destination mapping for an admin, or ErrNotFound.
func (r *adminRepository) Get(ctx context.Context, adminID string) (*domain.AdminDestination, error) {
	const query = `
		SELECT admin_id, COALESCE(admin_username, ''), chat_id, COALESCE(topic_id, ''), created_at
		FROM admin_destinations
		WHERE admin_id = $1
	`

	row := r.db.QueryRowContext(ctx, query, adminID)

	var dest domain.AdminDestination
	if err := row.Scan(
		&dest.AdminID,
		&dest.AdminUsername,
		&dest.ChatID,
		&dest.TopicID,
		&dest.CreatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}

		if r.log != nil {
			r.log.Error("failed to fetch admin destination", slog.String("admin_id", adminID), slog.Any("error", err))
		}
		return nil, fmt.Errorf("select admin destination: %w", err)
	}

	return &dest, nil
}

// Save upserts the destination mapping keyed by admin identifier.
func (r *adminRepository) Save(ctx context.Context, dest *domain.AdminDestination) error {
	const query = `
		INSERT INTO admin_destinations (admin_id, admin_username, chat_id, topic_id, created_at)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5)
		ON CONFLICT (admin_id) DO UPDATE
		SET admin_username = EXCLUDED.admin_username,
		    chat_id = EXCLUDED.chat_id,
		    topic_id = EXCLUDED.topic_id
	`

	if _, err := r.db.ExecContext(
		ctx,
		query,
		dest.AdminID,
		dest.AdminUsername,
		dest.ChatID,
		dest.TopicID,
		time.Now().UTC(),
	); err != nil {
		if r.log != nil {
			r.log.Error("failed to save admin destination", slog.String("admin_id", dest.AdminID), slog.Any("error", err))
		}
		return fmt.Errorf("upsert admin destination: %w", err)
	}

	return nil
}

// UpdateUsername refreshes only the display name, leaving routing untouched.
func (r *adminRepository) UpdateUsername(ctx context.Context, adminID, adminUsername string) error {
	const query = `
		UPDATE admin_destinations
		SET admin_username = $2
		WHERE admin_id = $1
	`

	if _, err := r.db.ExecContext(ctx, query, adminID, adminUsername); err != nil {
		if r.log != nil {
			r.log.Error("failed to update admin username", slog.String("admin_id", adminID), slog.Any("error", err))
		}
		return fmt.Errorf("update admin username: %w", err)
	}

	return nil
}

// Delete removes the mapping; used only by explicit administrative clears.
func (r *adminRepository) Delete(ctx context.Context, adminID string) error {
	const query = `DELETE FROM admin_destinations WHERE admin_id = $1`

	if _, err := r.db.ExecContext(ctx, query, adminID); err != nil {
		if r.log != nil {
			r.log.Error("failed to delete admin destination", slog.String("admin_id", adminID), slog.Any("error", err))
		}
		return fmt.Errorf("delete admin destination: %w", err)
	}

	return nil
}

// List returns every registered admin destination.
func (r *adminRepository) List(ctx context.Context) ([]domain.AdminDestination, error) {
	const query = `
		SELECT admin_id, COALESCE(admin_username, ''), chat_id, COALESCE(topic_id, ''), created_at
		FROM admin_destinations
		ORDER BY created_at
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		if r.log != nil {
			r.log.Error("failed to list admin destinations", slog.Any("error", err))
		}
		return nil, fmt.Errorf("select admin destinations: %w", err)
	}
	defer rows.Close()

	var dests []domain.AdminDestination
	for rows.Next() {
		var dest domain.AdminDestination
		if err := rows.Scan(
			&dest.AdminID,
			&dest.AdminUsername,
			&dest.ChatID,
			&dest.TopicID,
			&dest.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan admin destination: %w", err)
		}
		dests = append(dests, dest)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate admin destinations: %w", err)
	}

	return dests, nil
}
