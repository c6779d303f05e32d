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

// PriceRepository defines persistence operations for per-user prices.
type PriceRepository interface {
	Get(ctx context.Context, username string) (*domain.UserPrice, error)
	Set(ctx context.Context, username, price, setBy string) error
}

type priceRepository struct {
	db  *sql.DB
	log *slog.Logger
}

// NewPriceRepository creates a new SQL-backed price repository.
func NewPriceRepository(db *sql.DB, log *slog.Logger) PriceRepository {
	return &priceRepository{
		db:  db,
		log: log,
	}
}

// Get retrieves the configured price for a username, or ErrNotFound.
func (r *priceRepository) Get(ctx context.Context, username string) (*domain.UserPrice, error) {
	const query = `
		SELECT username, price::text, COALESCE(set_by, ''), set_at
		FROM user_prices
		WHERE username = $1
	`

	row := r.db.QueryRowContext(ctx, query, username)

	var price domain.UserPrice
	if err := row.Scan(
		&price.Username,
		&price.Price,
		&price.SetBy,
		&price.SetAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}

		if r.log != nil {
			r.log.Error("failed to fetch user price", slog.String("username", username), slog.Any("error", err))
		}
		return nil, fmt.Errorf("select user price: %w", err)
	}

	return &price, nil
}

// Set stores the price for a username, stamping actor and time.
func (r *priceRepository) Set(ctx context.Context, username, price, setBy string) error {
	const query = `
		INSERT INTO user_prices (username, price, set_by, set_at)
		VALUES ($1, $2::numeric, $3, $4)
		ON CONFLICT (username) DO UPDATE
		SET price = EXCLUDED.price, set_by = EXCLUDED.set_by, set_at = EXCLUDED.set_at
	`

	if _, err := r.db.ExecContext(ctx, query, username, price, setBy, time.Now().UTC()); err != nil {
		if r.log != nil {
			r.log.Error("failed to set user price", slog.String("username", username), slog.Any("error", err))
		}
		return fmt.Errorf("upsert user price: %w", err)
	}

	return nil
}
