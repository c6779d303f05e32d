// Package bot hosts the Telegram surface: operator commands, the inline
// button dispatcher, and outbound delivery.
package bot

import (
	"fmt"
	"log/slog"

	telebot "gopkg.in/telebot.v3"

	"github.com/hesabgar/hesabgar-bot/internal/apperr"
	"github.com/hesabgar/hesabgar-bot/internal/i18n"
	"github.com/hesabgar/hesabgar-bot/internal/idempotency"
	"github.com/hesabgar/hesabgar-bot/pkg/config"
)

// Bot wraps telebot.Bot with the application handlers.
type Bot struct {
	telebot    *telebot.Bot
	log        *slog.Logger
	commands   *Commands
	dispatcher *Dispatcher
}

// New builds a telegram bot instance configured according to the
// application settings.
func New(
	cfg *config.Config,
	log *slog.Logger,
	commands *Commands,
	dispatcher *Dispatcher,
	dedupe idempotency.Store,
	errHandler *apperr.Handler,
	tr i18n.Translator,
) (*Bot, error) {
	tb, err := telebot.NewBot(buildSettings(cfg))
	if err != nil {
		return nil, fmt.Errorf("initialize telebot: %w", err)
	}

	b := &Bot{
		telebot:    tb,
		log:        log,
		commands:   commands,
		dispatcher: dispatcher,
	}

	tb.Use(RecoveryMiddleware(log, errHandler))
	tb.Use(IdempotencyMiddleware(dedupe, log))
	tb.Use(ErrorHandlingMiddleware(errHandler, tr.T("cmd.internal_error")))
	tb.Use(LoggingMiddleware(log))

	b.registerHandlers()

	return b, nil
}

// buildSettings maps application configuration to telebot settings.
// Anything other than an explicit webhook mode falls back to polling.
func buildSettings(cfg *config.Config) telebot.Settings {
	settings := telebot.Settings{
		Token: cfg.Bot.Token,
	}

	if cfg.Bot.Mode == "webhook" {
		settings.Poller = &telebot.Webhook{
			Listen: cfg.Server.Port,
		}
	} else {
		settings.Poller = &telebot.LongPoller{
			Timeout: cfg.Bot.Timeout,
		}
	}

	return settings
}

// Start runs the telegram bot event loop.
func (b *Bot) Start() {
	if b.telebot != nil {
		b.telebot.Start()
	}
}

// Stop gracefully stops the telegram bot.
func (b *Bot) Stop() {
	if b.telebot == nil {
		return
	}

	b.log.Info("stopping telegram bot...")
	b.telebot.Stop()
}

// Telebot exposes the underlying telebot.Bot instance for integrations
// such as outbound transport and health checks.
func (b *Bot) Telebot() *telebot.Bot {
	return b.telebot
}

func (b *Bot) registerHandlers() {
	b.telebot.Handle(CommandStart, b.commands.Start)
	b.telebot.Handle(CommandHelp, b.commands.Help)
	b.telebot.Handle(CommandSync, b.commands.Sync)
	b.telebot.Handle(CommandSetAdminTopic, b.commands.SetAdminTopic)
	b.telebot.Handle(CommandListAdmins, b.commands.ListAdmins)
	b.telebot.Handle(CommandStats, b.commands.Stats)
	b.telebot.Handle(CommandSettlement, b.commands.Settlement)
	b.telebot.Handle(CommandCheckout, b.commands.Checkout)
	b.telebot.Handle(CommandSetPrice, b.commands.SetPrice)
	b.telebot.Handle(CommandCancel, b.commands.Cancel)

	b.telebot.Handle(telebot.OnText, b.commands.Text)
	b.telebot.Handle(telebot.OnCallback, b.dispatcher.Dispatch)
}
