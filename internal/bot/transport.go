package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	telebot "gopkg.in/telebot.v3"

	"github.com/hesabgar/hesabgar-bot/internal/notify"
)

// Transport adapts telebot to the notification router's sending contract.
type Transport struct {
	telebot *telebot.Bot
	log     *slog.Logger
}

var _ notify.Transport = (*Transport)(nil)

// NewTransport wraps a telebot instance for outbound delivery.
func NewTransport(tb *telebot.Bot, log *slog.Logger) *Transport {
	if log == nil {
		log = slog.Default()
	}

	return &Transport{
		telebot: tb,
		log:     log,
	}
}

// Send delivers an HTML message to the chat, inside the topic when one is
// given, with the inline keyboard attached.
func (t *Transport) Send(_ context.Context, chatID, topicID, html string, keyboard [][]notify.Button) error {
	chat, err := parseChatID(chatID)
	if err != nil {
		return err
	}

	opts := &telebot.SendOptions{
		ParseMode:   telebot.ModeHTML,
		ReplyMarkup: buildMarkup(keyboard),
	}

	if topicID != "" {
		threadID, err := strconv.Atoi(topicID)
		if err != nil {
			return fmt.Errorf("parse topic id %q: %w", topicID, err)
		}
		opts.ThreadID = threadID
	}

	if _, err := t.telebot.Send(chat, html, opts); err != nil {
		return fmt.Errorf("send telegram message: %w", err)
	}

	return nil
}

// CreateTopic opens a forum topic in the chat and returns its thread ID.
func (t *Transport) CreateTopic(_ context.Context, chatID, name string) (string, error) {
	chat, err := parseChatID(chatID)
	if err != nil {
		return "", err
	}

	topic, err := t.telebot.CreateTopic(chat, &telebot.Topic{Name: name})
	if err != nil {
		return "", fmt.Errorf("create forum topic %q: %w", name, err)
	}

	return strconv.Itoa(topic.ThreadID), nil
}

func parseChatID(chatID string) (*telebot.Chat, error) {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse chat id %q: %w", chatID, err)
	}

	return &telebot.Chat{ID: id}, nil
}

func buildMarkup(keyboard [][]notify.Button) *telebot.ReplyMarkup {
	if len(keyboard) == 0 {
		return nil
	}

	rows := make([][]telebot.InlineButton, 0, len(keyboard))
	for _, row := range keyboard {
		buttons := make([]telebot.InlineButton, 0, len(row))
		for _, btn := range row {
			buttons = append(buttons, telebot.InlineButton{
				Text: btn.Text,
				Data: btn.Data,
			})
		}
		rows = append(rows, buttons)
	}

	return &telebot.ReplyMarkup{InlineKeyboard: rows}
}
