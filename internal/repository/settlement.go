package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/hesabgar/hesabgar-bot/internal/domain"
)

const pgUniqueViolation = "23505"

// SettlementRepository defines persistence operations for settlement entries.
type SettlementRepository interface {
	// Add inserts a new active entry or, when one already exists for the
	// (username, admin) pair, refreshes its price, actor, and timestamp.
	// It reports whether a new entry was created.
	Add(ctx context.Context, username, adminID, price, addedBy string) (bool, error)
	ListActive(ctx context.Context, adminID string) ([]domain.SettlementEntry, error)
	// Checkout flips every active entry of the admin to checked out and
	// returns the number of entries affected.
	Checkout(ctx context.Context, adminID, actorID string) (int64, error)
}

type settlementRepository struct {
	db  *sql.DB
	log *slog.Logger
}

// NewSettlementRepository creates a new SQL-backed settlement repository.
func NewSettlementRepository(db *sql.DB, log *slog.Logger) SettlementRepository {
	return &settlementRepository{
		db:  db,
		log: log,
	}
}

// Add relies on the partial unique index over active entries to make the
// check-then-act atomic: the insert either succeeds or collides with the one
// active row, which is then updated in place.
func (r *settlementRepository) Add(ctx context.Context, username, adminID, price, addedBy string) (bool, error) {
	const insert = `
		INSERT INTO settlement_entries (username, admin_id, price, added_by, added_at)
		VALUES ($1, $2, NULLIF($3, '')::numeric, $4, $5)
	`

	now := time.Now().UTC()

	_, err := r.db.ExecContext(ctx, insert, username, adminID, price, addedBy, now)
	if err == nil {
		return true, nil
	}

	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || string(pqErr.Code) != pgUniqueViolation {
		if r.log != nil {
			r.log.Error("failed to insert settlement entry",
				slog.String("username", username),
				slog.String("admin_id", adminID),
				slog.Any("error", err),
			)
		}
		return false, fmt.Errorf("insert settlement entry: %w", err)
	}

	const update = `
		UPDATE settlement_entries
		SET price = NULLIF($3, '')::numeric, added_by = $4, added_at = $5
		WHERE username = $1 AND admin_id = $2 AND NOT checked_out
	`

	if _, err := r.db.ExecContext(ctx, update, username, adminID, price, addedBy, now); err != nil {
		if r.log != nil {
			r.log.Error("failed to refresh settlement entry",
				slog.String("username", username),
				slog.String("admin_id", adminID),
				slog.Any("error", err),
			)
		}
		return false, fmt.Errorf("update settlement entry: %w", err)
	}

	return false, nil
}

// ListActive returns every not-yet-checked-out entry for the admin.
func (r *settlementRepository) ListActive(ctx context.Context, adminID string) ([]domain.SettlementEntry, error) {
	const query = `
		SELECT id, username, admin_id, COALESCE(price::text, ''), added_by, added_at,
		       checked_out, checked_out_at, COALESCE(checked_out_by, '')
		FROM settlement_entries
		WHERE admin_id = $1 AND NOT checked_out
		ORDER BY added_at
	`

	rows, err := r.db.QueryContext(ctx, query, adminID)
	if err != nil {
		if r.log != nil {
			r.log.Error("failed to list settlement entries", slog.String("admin_id", adminID), slog.Any("error", err))
		}
		return nil, fmt.Errorf("select settlement entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.SettlementEntry
	for rows.Next() {
		var entry domain.SettlementEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.Username,
			&entry.AdminID,
			&entry.Price,
			&entry.AddedBy,
			&entry.AddedAt,
			&entry.CheckedOut,
			&entry.CheckedOutAt,
			&entry.CheckedOutBy,
		); err != nil {
			return nil, fmt.Errorf("scan settlement entry: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate settlement entries: %w", err)
	}

	return entries, nil
}

// Checkout stamps all active entries of the admin atomically.
func (r *settlementRepository) Checkout(ctx context.Context, adminID, actorID string) (int64, error) {
	const query = `
		UPDATE settlement_entries
		SET checked_out = TRUE, checked_out_at = $2, checked_out_by = $3
		WHERE admin_id = $1 AND NOT checked_out
	`

	result, err := r.db.ExecContext(ctx, query, adminID, time.Now().UTC(), actorID)
	if err != nil {
		if r.log != nil {
			r.log.Error("failed to checkout settlement entries", slog.String("admin_id", adminID), slog.Any("error", err))
		}
		return 0, fmt.Errorf("checkout settlement entries: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("settlement checkout rows affected: %w", err)
	}

	return affected, nil
}
