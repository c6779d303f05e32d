package bot

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/hesabgar/hesabgar-bot/internal/apperr"
	"github.com/hesabgar/hesabgar-bot/internal/idempotency"
)

// RecoveryMiddleware catches panics, reports them via the centralized
// handler, and keeps the update loop alive.
func RecoveryMiddleware(log *slog.Logger, errHandler *apperr.Handler) telebot.MiddlewareFunc {
	if log == nil {
		log = slog.Default()
	}

	return func(next telebot.HandlerFunc) telebot.HandlerFunc {
		return func(c telebot.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					log.Error("panic recovered in handler", slog.Any("panic", r), slog.String("stack", string(debug.Stack())))

					if errHandler != nil {
						appErr := apperr.NewTransportError(fmt.Errorf("panic recovered: %v", r))
						if msg, _ := errHandler.Handle(context.Background(), appErr); msg != "" && c != nil {
							_ = c.Send(msg)
						}
					}

					err = nil
				}
			}()

			return next(c)
		}
	}
}

// ErrorHandlingMiddleware centralizes error reporting and user messaging
// for handler failures.
func ErrorHandlingMiddleware(errHandler *apperr.Handler, fallbackMsg string) telebot.MiddlewareFunc {
	return func(next telebot.HandlerFunc) telebot.HandlerFunc {
		return func(c telebot.Context) error {
			err := next(c)
			if err == nil {
				return nil
			}

			userMsg := fallbackMsg
			if errHandler != nil {
				if msg, _ := errHandler.Handle(context.Background(), err); msg != "" {
					userMsg = msg
				}
			}

			if c != nil && userMsg != "" {
				_ = c.Send(userMsg)
			}

			return nil
		}
	}
}

// IdempotencyMiddleware drops Telegram update redeliveries across restarts
// and instances.
func IdempotencyMiddleware(store idempotency.Store, log *slog.Logger) telebot.MiddlewareFunc {
	if log == nil {
		log = slog.Default()
	}

	return func(next telebot.HandlerFunc) telebot.HandlerFunc {
		return func(c telebot.Context) error {
			if store == nil || c == nil {
				return next(c)
			}

			update := c.Update()
			if update.ID == 0 {
				return next(c)
			}

			key := idempotency.GenerateKey("update", update.ID)

			first, err := store.MarkProcessed(context.Background(), key, idempotency.DefaultTTL)
			if err != nil {
				// Fail open: a Redis hiccup must not drop updates.
				log.Warn("idempotency check failed, processing anyway", slog.Int("update_id", update.ID), slog.Any("error", err))
				return next(c)
			}

			if !first {
				log.Info("skipping duplicate update", slog.Int("update_id", update.ID))
				return nil
			}

			return next(c)
		}
	}
}

// LoggingMiddleware logs basic telemetry about incoming updates.
func LoggingMiddleware(log *slog.Logger) telebot.MiddlewareFunc {
	if log == nil {
		log = slog.Default()
	}

	return func(next telebot.HandlerFunc) telebot.HandlerFunc {
		return func(c telebot.Context) error {
			start := time.Now()

			var userID int64
			if c != nil && c.Sender() != nil {
				userID = c.Sender().ID
			}

			action := ""
			if c != nil {
				if cb := c.Callback(); cb != nil {
					action = cb.Data
				} else {
					action = c.Text()
				}
			}

			err := next(c)
			log.Info("handled update",
				slog.Int64("user_id", userID),
				slog.String("action", action),
				slog.Duration("duration", time.Since(start)),
				slog.Any("error", err),
			)

			return err
		}
	}
}
