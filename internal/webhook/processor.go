package webhook

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/hesabgar/hesabgar-bot/internal/domain"
	"github.com/hesabgar/hesabgar-bot/internal/notify"
	"github.com/hesabgar/hesabgar-bot/internal/triage"
	"github.com/hesabgar/hesabgar-bot/pkg/metrics"
)

// Triager decides whether an event produces a notification.
type Triager interface {
	Process(ctx context.Context, ev *domain.Event) (triage.Decision, error)
}

// Notifier delivers a routed notification.
type Notifier interface {
	Route(ctx context.Context, n *notify.Notification) error
}

// Processor chains triage and delivery for one inbound event.
type Processor struct {
	triage   Triager
	notifier Notifier
	log      *slog.Logger
}

// NewProcessor constructs an event processor.
func NewProcessor(triager Triager, notifier Notifier, log *slog.Logger) *Processor {
	if log == nil {
		log = slog.Default()
	}

	return &Processor{
		triage:   triager,
		notifier: notifier,
		log:      log,
	}
}

// Process triages one event and, when a trigger fired, routes the rendered
// message to the responsible admin. The returned error marks the event as
// not processed; the surrounding batch continues regardless.
func (p *Processor) Process(ctx context.Context, ev *domain.Event) error {
	start := time.Now()

	action := "unknown"
	if ev != nil && ev.Action != "" {
		action = ev.Action
	}

	dec, err := p.triage.Process(ctx, ev)
	if err != nil {
		outcome := "error"
		if errors.Is(err, triage.ErrInvalidEvent) {
			outcome = "rejected"
		}
		metrics.RecordWebhookEvent(action, outcome, time.Since(start))
		return err
	}

	metrics.RecordTriageDecision(action, dec.Reason)

	if !dec.Send {
		metrics.RecordWebhookEvent(action, "skipped", time.Since(start))
		return nil
	}

	n := &notify.Notification{
		AdminID:       eventAdminID(ev),
		AdminUsername: eventAdminUsername(ev),
		Username:      ev.Username,
		Message:       dec.Message,
		EventKey:      dec.EventKey,
	}

	if err := p.notifier.Route(ctx, n); err != nil {
		metrics.RecordWebhookEvent(action, "error", time.Since(start))
		return err
	}

	metrics.RecordWebhookEvent(action, "sent", time.Since(start))
	return nil
}

// eventAdminID prefers the actor's Telegram identity; events without one
// are routed under a shared bucket so the fallback chat still sees them.
func eventAdminID(ev *domain.Event) string {
	if ev.By != nil && ev.By.TelegramID != nil {
		return strconv.FormatInt(*ev.By.TelegramID, 10)
	}
	return "unknown"
}

func eventAdminUsername(ev *domain.Event) string {
	if ev.By != nil {
		return ev.By.Username
	}
	return ""
}
