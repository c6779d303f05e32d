// Package ledger implements the bookkeeping state machine layered on top of
// notifications: payment marks, per-admin settlement lists, and totals.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/hesabgar/hesabgar-bot/internal/domain"
	"github.com/hesabgar/hesabgar-bot/internal/repository"
)

// Engine coordinates payment and settlement persistence.
type Engine struct {
	payments    repository.PaymentRepository
	prices      repository.PriceRepository
	settlements repository.SettlementRepository
	log         *slog.Logger
}

// NewEngine constructs a ledger engine over the given repositories.
func NewEngine(
	payments repository.PaymentRepository,
	prices repository.PriceRepository,
	settlements repository.SettlementRepository,
	log *slog.Logger,
) *Engine {
	if log == nil {
		log = slog.Default()
	}

	return &Engine{
		payments:    payments,
		prices:      prices,
		settlements: settlements,
		log:         log,
	}
}

// PaymentStatus returns the current payment state of a username.
// Usernames never marked report PaymentUnknown.
func (e *Engine) PaymentStatus(ctx context.Context, username string) (domain.PaymentStatus, error) {
	payment, err := e.payments.Get(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.PaymentUnknown, nil
		}
		return domain.PaymentUnknown, err
	}

	return payment.Status, nil
}

// SetPaymentStatus transitions a username to the given state, stamping the
// actor. Re-applying the current state is a no-op and reports changed=false.
func (e *Engine) SetPaymentStatus(ctx context.Context, username string, status domain.PaymentStatus, actor string) (bool, error) {
	current, err := e.PaymentStatus(ctx, username)
	if err != nil {
		return false, err
	}

	if current == status {
		e.log.Info("payment status unchanged",
			slog.String("username", username),
			slog.String("status", string(status)),
		)
		return false, nil
	}

	if err := e.payments.Set(ctx, username, status, actor); err != nil {
		return false, err
	}

	e.log.Info("payment status set",
		slog.String("username", username),
		slog.String("status", string(status)),
		slog.String("actor", actor),
	)

	return true, nil
}

// MarkPaid transitions the username to Paid.
func (e *Engine) MarkPaid(ctx context.Context, username, actor string) (bool, error) {
	return e.SetPaymentStatus(ctx, username, domain.PaymentPaid, actor)
}

// MarkUnpaid transitions the username to Unpaid.
func (e *Engine) MarkUnpaid(ctx context.Context, username, actor string) (bool, error) {
	return e.SetPaymentStatus(ctx, username, domain.PaymentUnpaid, actor)
}

// Dismiss transitions the username to Dismissed, dropping it from the
// follow-up flow without settling it.
func (e *Engine) Dismiss(ctx context.Context, username, actor string) (bool, error) {
	return e.SetPaymentStatus(ctx, username, domain.PaymentDismissed, actor)
}

// SetPrice stores the per-user price used as a settlement fallback.
// The value must be a positive decimal.
func (e *Engine) SetPrice(ctx context.Context, username, price, actor string) error {
	if _, ok := parseAmount(price); !ok {
		return fmt.Errorf("invalid price %q for %s", price, username)
	}

	return e.prices.Set(ctx, username, price, actor)
}

// AddToSettlement puts the username on the admin's active settlement list.
// The entry is priced from the configured per-user price when one exists.
// Re-adding an already listed username refreshes the entry in place; the
// return value reports whether a new entry was created.
func (e *Engine) AddToSettlement(ctx context.Context, username, adminID, actor string) (bool, error) {
	price := ""
	if p, err := e.prices.Get(ctx, username); err == nil {
		price = p.Price
	} else if !errors.Is(err, repository.ErrNotFound) {
		return false, err
	}

	created, err := e.settlements.Add(ctx, username, adminID, price, actor)
	if err != nil {
		return false, err
	}

	e.log.Info("settlement entry recorded",
		slog.String("username", username),
		slog.String("admin_id", adminID),
		slog.Bool("created", created),
	)

	return created, nil
}

// ActiveEntries lists the not-yet-settled entries of an admin.
func (e *Engine) ActiveEntries(ctx context.Context, adminID string) ([]domain.SettlementEntry, error) {
	return e.settlements.ListActive(ctx, adminID)
}

// Checkout settles every active entry of the admin and returns how many
// entries were flipped. A second checkout with no active entries reports 0.
func (e *Engine) Checkout(ctx context.Context, adminID, actor string) (int64, error) {
	settled, err := e.settlements.Checkout(ctx, adminID, actor)
	if err != nil {
		return 0, err
	}

	e.log.Info("settlement checkout",
		slog.String("admin_id", adminID),
		slog.String("actor", actor),
		slog.Int64("settled", settled),
	)

	return settled, nil
}

// ComputeTotal sums the active settlement list of an admin. Entries without
// a usable price fall back to the configured per-user price; entries that
// still have no positive decimal amount are counted separately instead of
// contributing zero silently.
func (e *Engine) ComputeTotal(ctx context.Context, adminID string) (*domain.SettlementTotal, error) {
	entries, err := e.settlements.ListActive(ctx, adminID)
	if err != nil {
		return nil, err
	}

	total := new(big.Rat)
	withoutPrice := 0

	for _, entry := range entries {
		amount, ok := e.entryAmount(ctx, entry)
		if !ok {
			withoutPrice++
			continue
		}
		total.Add(total, amount)
	}

	return &domain.SettlementTotal{
		Total:             total.FloatString(2),
		Items:             len(entries),
		ItemsWithoutPrice: withoutPrice,
	}, nil
}

func (e *Engine) entryAmount(ctx context.Context, entry domain.SettlementEntry) (*big.Rat, bool) {
	if amount, ok := parseAmount(entry.Price); ok {
		return amount, true
	}

	price, err := e.prices.Get(ctx, entry.Username)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			e.log.Error("failed to resolve fallback price",
				slog.String("username", entry.Username),
				slog.Any("error", err),
			)
		}
		return nil, false
	}

	return parseAmount(price.Price)
}

// parseAmount accepts positive decimal strings only.
func parseAmount(value string) (*big.Rat, bool) {
	if value == "" {
		return nil, false
	}

	amount, ok := new(big.Rat).SetString(value)
	if !ok || amount.Sign() <= 0 {
		return nil, false
	}

	return amount, true
}
