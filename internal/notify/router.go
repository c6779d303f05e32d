// Package notify routes rendered event messages to the right admin chat or
// forum topic and attaches the interactive bookkeeping keyboard.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hesabgar/hesabgar-bot/internal/callback"
	"github.com/hesabgar/hesabgar-bot/internal/domain"
	"github.com/hesabgar/hesabgar-bot/internal/i18n"
	"github.com/hesabgar/hesabgar-bot/internal/repository"
	"github.com/hesabgar/hesabgar-bot/pkg/metrics"
)

// messageLimit caps outbound message length; longer texts are cut with an
// ellipsis rather than rejected by the transport.
const messageLimit = 4000

// ErrNoDestination indicates neither a stored mapping nor a fallback chat
// could receive the notification.
var ErrNoDestination = errors.New("no destination chat for admin")

// Button is one inline keyboard button.
type Button struct {
	Text string
	Data string
}

// Transport sends messages into chats. Implemented by the Telegram bot.
type Transport interface {
	Send(ctx context.Context, chatID, topicID, html string, keyboard [][]Button) error
	// CreateTopic opens a forum topic in the chat and returns its identifier.
	CreateTopic(ctx context.Context, chatID, name string) (string, error)
}

// Notification is one routed message request.
type Notification struct {
	AdminID       string
	AdminUsername string
	Username      string
	Message       string
	EventKey      string
}

// Router resolves admin destinations and delivers notifications.
type Router struct {
	admins          repository.AdminRepository
	transport       Transport
	tr              i18n.Translator
	fallbackChatID  string
	fallbackTopicID string
	log             *slog.Logger
}

// NewRouter constructs a router. The fallback chat receives notifications
// for admins without a stored mapping; its topic is used only when topic
// provisioning fails.
func NewRouter(
	admins repository.AdminRepository,
	transport Transport,
	tr i18n.Translator,
	fallbackChatID, fallbackTopicID string,
	log *slog.Logger,
) *Router {
	if log == nil {
		log = slog.Default()
	}

	return &Router{
		admins:          admins,
		transport:       transport,
		tr:              tr,
		fallbackChatID:  fallbackChatID,
		fallbackTopicID: fallbackTopicID,
		log:             log,
	}
}

// Route resolves the admin's destination, provisioning one when missing,
// and sends the message with the bookkeeping keyboard attached. Delivery is
// best-effort at-most-once: a failed or unroutable send is logged and
// dropped, never surfaced to the caller. Only store failures propagate.
func (r *Router) Route(ctx context.Context, n *Notification) error {
	dest, err := r.EnsureDestination(ctx, n.AdminID, n.AdminUsername)
	if err != nil {
		metrics.RecordNotification("failed")
		return err
	}

	if dest.ChatID == "" {
		metrics.RecordNotification("failed")
		r.log.Warn("dropping notification, admin has no destination chat",
			slog.String("admin_id", n.AdminID),
			slog.Any("error", ErrNoDestination),
		)
		return nil
	}

	message := Truncate(n.Message, messageLimit)

	if err := r.transport.Send(ctx, dest.ChatID, dest.TopicID, message, r.keyboard(n)); err != nil {
		metrics.RecordNotification("failed")
		r.log.Error("failed to send notification",
			slog.String("admin_id", n.AdminID),
			slog.String("chat_id", dest.ChatID),
			slog.Any("error", err),
		)
		return nil
	}

	metrics.RecordNotification("sent")
	r.log.Info("notification delivered",
		slog.String("admin_id", n.AdminID),
		slog.String("username", n.Username),
		slog.String("chat_id", dest.ChatID),
		slog.String("topic_id", dest.TopicID),
	)

	return nil
}

// EnsureDestination returns the stored mapping for the admin, refreshing a
// stale display name, or provisions a new topic in the fallback chat when no
// mapping exists. The provisioned mapping is persisted even when topic
// creation fails, so later sends go straight to the parent chat.
func (r *Router) EnsureDestination(ctx context.Context, adminID, adminUsername string) (*domain.AdminDestination, error) {
	dest, err := r.admins.Get(ctx, adminID)
	if err == nil {
		if adminUsername != "" && dest.AdminUsername != adminUsername {
			if err := r.admins.UpdateUsername(ctx, adminID, adminUsername); err != nil {
				r.log.Warn("failed to refresh admin username", slog.String("admin_id", adminID), slog.Any("error", err))
			} else {
				dest.AdminUsername = adminUsername
			}
		}
		return dest, nil
	}

	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("resolve admin destination: %w", err)
	}

	// No fallback chat to provision under: record the admin anyway so the
	// mapping exists and an operator can fill the chat in later.
	if r.fallbackChatID == "" {
		dest = &domain.AdminDestination{
			AdminID:       adminID,
			AdminUsername: adminUsername,
		}
		if err := r.admins.Save(ctx, dest); err != nil {
			return nil, fmt.Errorf("persist admin destination: %w", err)
		}
		r.log.Warn("registered admin without a destination chat", slog.String("admin_id", adminID))
		return dest, nil
	}

	dest = &domain.AdminDestination{
		AdminID:       adminID,
		AdminUsername: adminUsername,
		ChatID:        r.fallbackChatID,
		TopicID:       r.fallbackTopicID,
	}

	topicName := adminUsername
	if topicName == "" {
		topicName = "admin " + adminID
	}

	topicID, err := r.transport.CreateTopic(ctx, r.fallbackChatID, topicName)
	if err != nil {
		r.log.Warn("failed to create topic, routing to parent chat",
			slog.String("admin_id", adminID),
			slog.Any("error", err),
		)
	} else {
		dest.TopicID = topicID
	}

	if err := r.admins.Save(ctx, dest); err != nil {
		return nil, fmt.Errorf("persist admin destination: %w", err)
	}

	r.log.Info("provisioned admin destination",
		slog.String("admin_id", adminID),
		slog.String("chat_id", dest.ChatID),
		slog.String("topic_id", dest.TopicID),
	)

	return dest, nil
}

func (r *Router) keyboard(n *Notification) [][]Button {
	build := func(action callback.ActionType) Button {
		return Button{
			Text: r.tr.T("button." + string(action)),
			Data: callback.Encode(action, n.Username, n.AdminID, n.EventKey),
		}
	}

	return [][]Button{
		{build(callback.ActionPaid), build(callback.ActionUnpaid)},
		{build(callback.ActionAddSettlement)},
		{build(callback.ActionDismiss)},
	}
}

// Truncate cuts text to at most limit characters, marking the cut with an
// ellipsis.
func Truncate(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}

	return string(runes[:limit-3]) + "..."
}
