package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/hesabgar/hesabgar-bot/internal/callback"
	"github.com/hesabgar/hesabgar-bot/internal/domain"
	"github.com/hesabgar/hesabgar-bot/internal/i18n"
	"github.com/hesabgar/hesabgar-bot/internal/ledger"
	"github.com/hesabgar/hesabgar-bot/internal/notify"
	"github.com/hesabgar/hesabgar-bot/internal/repository"
	"github.com/hesabgar/hesabgar-bot/pkg/metrics"
)

// Dispatcher handles inline button presses: decoding the token, applying
// the bookkeeping action, and annotating the original message.
type Dispatcher struct {
	ledger *ledger.Engine
	audit  repository.AuditRepository
	tr     i18n.Translator
	log    *slog.Logger
}

// NewDispatcher constructs a callback dispatcher.
func NewDispatcher(ledger *ledger.Engine, audit repository.AuditRepository, tr i18n.Translator, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}

	return &Dispatcher{
		ledger: ledger,
		audit:  audit,
		tr:     tr,
		log:    log,
	}
}

// Dispatch routes one decoded button press. Malformed tokens are
// acknowledged with an error toast and never reach the ledger.
func (d *Dispatcher) Dispatch(c telebot.Context) error {
	cb := c.Callback()
	if cb == nil {
		return nil
	}

	data := strings.TrimPrefix(cb.Data, "\f")

	token, err := callback.Decode(data)
	if err != nil {
		d.log.Warn("rejecting malformed callback token", slog.String("data", data), slog.Any("error", err))
		metrics.RecordCallbackAction("unknown", "malformed")
		return c.Respond(&telebot.CallbackResponse{Text: d.tr.T("callback.error")})
	}

	ctx := context.Background()
	actor := actorName(c)

	var dispatchErr error
	switch token.Action {
	case callback.ActionPaid:
		dispatchErr = d.applyPayment(ctx, c, token, domain.PaymentPaid, actor)
	case callback.ActionUnpaid:
		dispatchErr = d.applyPayment(ctx, c, token, domain.PaymentUnpaid, actor)
	case callback.ActionDismiss:
		dispatchErr = d.applyPayment(ctx, c, token, domain.PaymentDismissed, actor)
	case callback.ActionAddSettlement:
		dispatchErr = d.addSettlement(ctx, c, token, actor)
	}

	if dispatchErr != nil {
		d.log.Error("callback action failed",
			slog.String("action", string(token.Action)),
			slog.String("username", token.Username),
			slog.Any("error", dispatchErr),
		)
		metrics.RecordCallbackAction(string(token.Action), "failed")
		return c.Respond(&telebot.CallbackResponse{Text: d.tr.T("callback.error")})
	}

	d.auditAction(ctx, token, actor)
	return nil
}

func (d *Dispatcher) applyPayment(ctx context.Context, c telebot.Context, token callback.Token, status domain.PaymentStatus, actor string) error {
	changed, err := d.ledger.SetPaymentStatus(ctx, token.Username, status, actor)
	if err != nil {
		return err
	}

	if !changed {
		metrics.RecordCallbackAction(string(token.Action), "noop")
		return c.Respond(&telebot.CallbackResponse{
			Text: d.tr.Tf("callback.already_marked", string(status)),
		})
	}

	metrics.RecordCallbackAction(string(token.Action), "applied")

	ack := d.tr.Tf("callback.marked", string(status))
	if err := d.annotate(c, token, d.annotationFor(token.Action, actor), true); err != nil {
		d.log.Warn("payment applied but message edit failed", slog.String("username", token.Username), slog.Any("error", err))
		ack = d.tr.T("callback.marked_edit_failed")
	}

	return c.Respond(&telebot.CallbackResponse{Text: ack})
}

func (d *Dispatcher) addSettlement(ctx context.Context, c telebot.Context, token callback.Token, actor string) error {
	created, err := d.ledger.AddToSettlement(ctx, token.Username, token.AdminID, actor)
	if err != nil {
		return err
	}

	if !created {
		metrics.RecordCallbackAction(string(token.Action), "noop")
		return c.Respond(&telebot.CallbackResponse{
			Text: d.tr.T("callback.already_settlement"),
		})
	}

	metrics.RecordCallbackAction(string(token.Action), "applied")

	ack := d.tr.T("callback.added_settlement")
	if err := d.annotate(c, token, d.annotationFor(token.Action, actor), false); err != nil {
		d.log.Warn("settlement added but message edit failed", slog.String("username", token.Username), slog.Any("error", err))
		ack = d.tr.T("callback.added_edit_failed")
	}

	return c.Respond(&telebot.CallbackResponse{Text: ack})
}

// annotate rewrites the notification message with the action line appended.
// Payment annotations replace each other; the settlement annotation is
// independent and stacks. The keyboard is rebuilt so the message stays
// interactive.
func (d *Dispatcher) annotate(c telebot.Context, token callback.Token, line string, replacePayment bool) error {
	msg := c.Message()
	if msg == nil {
		return fmt.Errorf("callback without source message")
	}

	text := msg.Text
	if replacePayment {
		text = d.stripPaymentAnnotations(text)
	}

	return c.Edit(text+"\n\n"+line, &telebot.SendOptions{
		ParseMode:   telebot.ModeHTML,
		ReplyMarkup: buildMarkup(d.keyboard(token)),
	})
}

// stripPaymentAnnotations drops previously appended paid/unpaid/dismiss
// lines, matching on the constant prefix of each annotation template.
func (d *Dispatcher) stripPaymentAnnotations(text string) string {
	prefixes := []string{
		templatePrefix(d.tr.T("annotation.paid")),
		templatePrefix(d.tr.T("annotation.unpaid")),
		templatePrefix(d.tr.T("annotation.dismiss")),
	}

	var kept []string
	for _, line := range strings.Split(text, "\n") {
		if annotationLine(line, prefixes) {
			continue
		}
		kept = append(kept, line)
	}

	return strings.TrimRight(strings.Join(kept, "\n"), "\n")
}

func (d *Dispatcher) annotationFor(action callback.ActionType, actor string) string {
	now := time.Now().In(displayZone).Format(displayTimeLayout)

	switch action {
	case callback.ActionPaid:
		return d.tr.Tf("annotation.paid", actor, now)
	case callback.ActionUnpaid:
		return d.tr.Tf("annotation.unpaid", actor, now)
	case callback.ActionDismiss:
		return d.tr.Tf("annotation.dismiss", actor, now)
	default:
		return d.tr.Tf("annotation.settlement", actor, now)
	}
}

func (d *Dispatcher) keyboard(token callback.Token) [][]notify.Button {
	build := func(action callback.ActionType) notify.Button {
		return notify.Button{
			Text: d.tr.T("button." + string(action)),
			Data: callback.Encode(action, token.Username, token.AdminID, token.EventKey),
		}
	}

	return [][]notify.Button{
		{build(callback.ActionPaid), build(callback.ActionUnpaid)},
		{build(callback.ActionAddSettlement)},
		{build(callback.ActionDismiss)},
	}
}

func (d *Dispatcher) auditAction(ctx context.Context, token callback.Token, actor string) {
	payload, _ := json.Marshal(map[string]string{
		"action":    string(token.Action),
		"event_key": token.EventKey,
	})

	entry := &domain.AuditEntry{
		Type:     "callback_" + string(token.Action),
		Username: token.Username,
		AdminID:  token.AdminID,
		ActorID:  actor,
		Payload:  payload,
	}

	if err := d.audit.Append(ctx, entry); err != nil {
		d.log.Error("failed to audit callback action", slog.String("action", string(token.Action)), slog.Any("error", err))
	}
}

// templatePrefix returns the constant part of a format template before the
// first verb, used to recognize rendered annotation lines.
func templatePrefix(tmpl string) string {
	if i := strings.Index(tmpl, "%s"); i >= 0 {
		return tmpl[:i]
	}
	return tmpl
}

func annotationLine(line string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if prefix != "" && strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}

func actorName(c telebot.Context) string {
	sender := c.Sender()
	if sender == nil {
		return "unknown"
	}
	if sender.Username != "" {
		return "@" + sender.Username
	}
	return strings.TrimSpace(sender.FirstName + " " + sender.LastName)
}
