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

// PaymentRepository defines persistence operations for payment records.
type PaymentRepository interface {
	Get(ctx context.Context, username string) (*domain.Payment, error)
	Set(ctx context.Context, username string, status domain.PaymentStatus, setBy string) error
}

type paymentRepository struct {
	db  *sql.DB
	log *slog.Logger
}

// NewPaymentRepository creates a new SQL-backed payment repository.
func NewPaymentRepository(db *sql.DB, log *slog.Logger) PaymentRepository {
	return &paymentRepository{
		db:  db,
		log: log,
	}
}

// Get retrieves the payment record for a username, or ErrNotFound when
// the username has never been marked.
func (r *paymentRepository) Get(ctx context.Context, username string) (*domain.Payment, error) {
	const query = `
		SELECT username, status, COALESCE(set_by, ''), set_at
		FROM payments
		WHERE username = $1
	`

	row := r.db.QueryRowContext(ctx, query, username)

	var payment domain.Payment
	if err := row.Scan(
		&payment.Username,
		&payment.Status,
		&payment.SetBy,
		&payment.SetAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}

		if r.log != nil {
			r.log.Error("failed to fetch payment record", slog.String("username", username), slog.Any("error", err))
		}
		return nil, fmt.Errorf("select payment record: %w", err)
	}

	return &payment, nil
}

// Set overwrites the payment status for a username, stamping actor and time.
func (r *paymentRepository) Set(ctx context.Context, username string, status domain.PaymentStatus, setBy string) error {
	const query = `
		INSERT INTO payments (username, status, set_by, set_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (username) DO UPDATE
		SET status = EXCLUDED.status, set_by = EXCLUDED.set_by, set_at = EXCLUDED.set_at
	`

	if _, err := r.db.ExecContext(ctx, query, username, status, setBy, time.Now().UTC()); err != nil {
		if r.log != nil {
			r.log.Error("failed to set payment status", slog.String("username", username), slog.Any("error", err))
		}
		return fmt.Errorf("upsert payment record: %w", err)
	}

	return nil
}
