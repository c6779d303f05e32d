package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	telebot "gopkg.in/telebot.v3"

	"github.com/hesabgar/hesabgar-bot/internal/domain"
	"github.com/hesabgar/hesabgar-bot/internal/i18n"
	"github.com/hesabgar/hesabgar-bot/internal/ledger"
	"github.com/hesabgar/hesabgar-bot/internal/repository"
	"github.com/hesabgar/hesabgar-bot/internal/session"
)

// Bot commands.
const (
	CommandStart         = "/start"
	CommandHelp          = "/help"
	CommandSync          = "/sync"
	CommandSetAdminTopic = "/set_admin_topic"
	CommandListAdmins    = "/list_admins"
	CommandStats         = "/stats"
	CommandSettlement    = "/settlement"
	CommandCheckout      = "/checkout"
	CommandSetPrice      = "/set_price"
	CommandCancel        = "/cancel"
)

// Session data keys for the conversation flows.
const (
	sessionKeyAdminID  = "admin_id"
	sessionKeyUsername = "username"
)

// Timestamps shown to operators use the panel's local time.
var displayZone = time.FixedZone("Asia/Tehran", int((3*time.Hour + 30*time.Minute).Seconds()))

const displayTimeLayout = "2006/01/02 - 15:04"

// SyncScheduler queues an admin roster sync run.
type SyncScheduler interface {
	EnqueueAdminSync(ctx context.Context) error
}

// Commands implements the operator command surface.
type Commands struct {
	admins    repository.AdminRepository
	flags     repository.SyncFlagRepository
	sessions  session.Store
	ledger    *ledger.Engine
	scheduler SyncScheduler
	tr        i18n.Translator
	panelOn   bool
	log       *slog.Logger
}

// NewCommands constructs the command handlers. A nil scheduler or
// panelOn=false puts /sync into degraded mode.
func NewCommands(
	admins repository.AdminRepository,
	flags repository.SyncFlagRepository,
	sessions session.Store,
	ledgerEngine *ledger.Engine,
	scheduler SyncScheduler,
	tr i18n.Translator,
	panelOn bool,
	log *slog.Logger,
) *Commands {
	if log == nil {
		log = slog.Default()
	}

	return &Commands{
		admins:    admins,
		flags:     flags,
		sessions:  sessions,
		ledger:    ledgerEngine,
		scheduler: scheduler,
		tr:        tr,
		panelOn:   panelOn,
		log:       log,
	}
}

// Start replies with the command overview.
func (h *Commands) Start(c telebot.Context) error {
	return c.Send(h.tr.T("cmd.start"), telebot.ModeHTML)
}

// Help replies with the usage guide, including the send conditions.
func (h *Commands) Help(c telebot.Context) error {
	return c.Send(h.tr.T("cmd.help"), telebot.ModeHTML)
}

// Sync queues an admin roster sync run.
func (h *Commands) Sync(c telebot.Context) error {
	if !h.panelOn || h.scheduler == nil {
		return c.Send(h.tr.T("cmd.sync_disabled"))
	}

	if err := h.scheduler.EnqueueAdminSync(context.Background()); err != nil {
		h.log.Error("failed to enqueue admin sync", slog.Any("error", err))
		return c.Send(h.tr.Tf("cmd.sync_error", err.Error()))
	}

	return c.Send(h.tr.T("cmd.sync_started"))
}

// ListAdmins replies with every configured admin destination.
func (h *Commands) ListAdmins(c telebot.Context) error {
	dests, err := h.admins.List(context.Background())
	if err != nil {
		h.log.Error("failed to list admin destinations", slog.Any("error", err))
		return c.Send(h.tr.T("cmd.internal_error"))
	}

	if len(dests) == 0 {
		return c.Send(h.tr.T("cmd.no_admins"))
	}

	var sb strings.Builder
	sb.WriteString(h.tr.T("cmd.admins_header"))
	sb.WriteString("\n")

	for _, dest := range dests {
		name := dest.AdminUsername
		if name == "" {
			name = dest.AdminID
		}

		topic := dest.TopicID
		if topic == "" {
			topic = h.tr.T("cmd.topic_general")
		}

		fmt.Fprintf(&sb, "\n• <b>%s</b> (<code>%s</code>)\n  💬 <code>%s</code> | 🗂 %s\n", name, dest.AdminID, dest.ChatID, topic)
	}

	return c.Send(sb.String(), telebot.ModeHTML)
}

// Stats replies with the sync state and admin count.
func (h *Commands) Stats(c telebot.Context) error {
	ctx := context.Background()

	syncState := h.tr.T("cmd.sync_incomplete")
	if v, err := h.flags.Get(ctx, domain.FlagInitialSyncComplete); err == nil && v == "true" {
		syncState = h.tr.T("cmd.sync_complete")
	}

	lastSync := h.tr.T("cmd.never")
	if v, err := h.flags.Get(ctx, domain.FlagLastSync); err == nil && v != "" {
		if t, parseErr := time.Parse(time.RFC3339, v); parseErr == nil {
			lastSync = t.In(displayZone).Format(displayTimeLayout)
		}
	}

	adminCount := 0
	if dests, err := h.admins.List(ctx); err == nil {
		adminCount = len(dests)
	}

	return c.Send(h.tr.Tf("cmd.stats", syncState, lastSync, adminCount), telebot.ModeHTML)
}

// Settlement replies with the caller's active settlement list and its
// total. Each admin sees only their own list.
func (h *Commands) Settlement(c telebot.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	ctx := context.Background()
	adminID := strconv.FormatInt(sender.ID, 10)

	entries, err := h.ledger.ActiveEntries(ctx, adminID)
	if err != nil {
		h.log.Error("failed to list settlement entries", slog.String("admin_id", adminID), slog.Any("error", err))
		return c.Send(h.tr.T("cmd.internal_error"))
	}

	if len(entries) == 0 {
		return c.Send(h.tr.T("cmd.settlement_empty"))
	}

	total, err := h.ledger.ComputeTotal(ctx, adminID)
	if err != nil {
		h.log.Error("failed to compute settlement total", slog.String("admin_id", adminID), slog.Any("error", err))
		return c.Send(h.tr.T("cmd.internal_error"))
	}

	return c.Send(formatSettlement(h.tr, entries, total), telebot.ModeHTML)
}

// Checkout settles the caller's active list and reports how many entries
// were closed.
func (h *Commands) Checkout(c telebot.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	ctx := context.Background()
	adminID := strconv.FormatInt(sender.ID, 10)

	count, err := h.ledger.Checkout(ctx, adminID, actorName(c))
	if err != nil {
		h.log.Error("failed to checkout settlement list", slog.String("admin_id", adminID), slog.Any("error", err))
		return c.Send(h.tr.T("cmd.internal_error"))
	}

	if count == 0 {
		return c.Send(h.tr.T("cmd.settlement_empty"))
	}

	return c.Send(h.tr.Tf("cmd.checkout_done", count))
}

// SetPrice starts the two-step per-user price conversation.
func (h *Commands) SetPrice(c telebot.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	s := &session.Session{UserID: sender.ID, Step: session.StepAwaitingPriceUsername}
	if err := h.sessions.Set(context.Background(), s); err != nil {
		return c.Send(h.tr.T("cmd.internal_error"))
	}

	return c.Send(h.tr.T("cmd.ask_price_username"), telebot.ModeHTML)
}

// SetAdminTopic starts the two-step destination setup conversation.
func (h *Commands) SetAdminTopic(c telebot.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	s := &session.Session{UserID: sender.ID, Step: session.StepAwaitingAdminID}
	if err := h.sessions.Set(context.Background(), s); err != nil {
		return c.Send(h.tr.T("cmd.internal_error"))
	}

	return c.Send(h.tr.T("cmd.ask_admin_id"), telebot.ModeHTML)
}

// Cancel aborts an in-flight conversation.
func (h *Commands) Cancel(c telebot.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	if err := h.sessions.Clear(context.Background(), sender.ID); err != nil {
		return c.Send(h.tr.T("cmd.internal_error"))
	}

	return c.Send(h.tr.T("cmd.flow_cancelled"))
}

// Text continues a conversation in flight; plain messages outside any flow
// are ignored.
func (h *Commands) Text(c telebot.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	ctx := context.Background()

	s, err := h.sessions.Get(ctx, sender.ID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil
		}
		return c.Send(h.tr.T("cmd.internal_error"))
	}

	switch s.Step {
	case session.StepAwaitingAdminID:
		return h.collectAdminID(ctx, c, s)
	case session.StepAwaitingDestination:
		return h.collectDestination(ctx, c, s)
	case session.StepAwaitingPriceUsername:
		return h.collectPriceUsername(ctx, c, s)
	case session.StepAwaitingPriceAmount:
		return h.collectPriceAmount(ctx, c, s)
	default:
		_ = h.sessions.Clear(ctx, sender.ID)
		return nil
	}
}

func (h *Commands) collectAdminID(ctx context.Context, c telebot.Context, s *session.Session) error {
	adminID := strings.TrimSpace(c.Text())
	if _, err := strconv.ParseInt(adminID, 10, 64); err != nil {
		return c.Send(h.tr.T("cmd.invalid_admin_id"))
	}

	s.Put(sessionKeyAdminID, adminID)
	s.Step = session.StepAwaitingDestination
	if err := h.sessions.Set(ctx, s); err != nil {
		return c.Send(h.tr.T("cmd.internal_error"))
	}

	return c.Send(h.tr.Tf("cmd.ask_destination", adminID), telebot.ModeHTML)
}

func (h *Commands) collectDestination(ctx context.Context, c telebot.Context, s *session.Session) error {
	fields := strings.Fields(c.Text())
	if len(fields) == 0 {
		return c.Send(h.tr.T("cmd.invalid_chat_id"))
	}

	chatID := fields[0]
	if _, err := strconv.ParseInt(chatID, 10, 64); err != nil {
		return c.Send(h.tr.T("cmd.invalid_chat_id"))
	}

	topicID := ""
	if len(fields) > 1 {
		topicID = fields[1]
		if _, err := strconv.Atoi(topicID); err != nil {
			return c.Send(h.tr.T("cmd.invalid_topic_id"))
		}
	}

	adminID := s.Value(sessionKeyAdminID)

	dest := &domain.AdminDestination{
		AdminID: adminID,
		ChatID:  chatID,
		TopicID: topicID,
	}
	if existing, err := h.admins.Get(ctx, adminID); err == nil {
		dest.AdminUsername = existing.AdminUsername
	}

	if err := h.admins.Save(ctx, dest); err != nil {
		h.log.Error("failed to save admin destination", slog.String("admin_id", adminID), slog.Any("error", err))
		return c.Send(h.tr.T("cmd.internal_error"))
	}

	if err := h.sessions.Clear(ctx, s.UserID); err != nil {
		h.log.Warn("failed to clear session", slog.Int64("user_id", s.UserID), slog.Any("error", err))
	}

	topicLabel := topicID
	if topicLabel == "" {
		topicLabel = h.tr.T("cmd.topic_general")
	}

	return c.Send(h.tr.Tf("cmd.destination_saved", adminID, chatID, topicLabel), telebot.ModeHTML)
}

func (h *Commands) collectPriceUsername(ctx context.Context, c telebot.Context, s *session.Session) error {
	username := strings.TrimSpace(c.Text())
	if username == "" || strings.ContainsAny(username, " \t") {
		return c.Send(h.tr.T("cmd.invalid_username"))
	}

	s.Put(sessionKeyUsername, username)
	s.Step = session.StepAwaitingPriceAmount
	if err := h.sessions.Set(ctx, s); err != nil {
		return c.Send(h.tr.T("cmd.internal_error"))
	}

	return c.Send(h.tr.Tf("cmd.ask_price_amount", username), telebot.ModeHTML)
}

func (h *Commands) collectPriceAmount(ctx context.Context, c telebot.Context, s *session.Session) error {
	username := s.Value(sessionKeyUsername)
	amount := strings.TrimSpace(c.Text())

	if err := h.ledger.SetPrice(ctx, username, amount, actorName(c)); err != nil {
		h.log.Warn("rejecting price", slog.String("username", username), slog.Any("error", err))
		return c.Send(h.tr.T("cmd.invalid_price"))
	}

	if err := h.sessions.Clear(ctx, s.UserID); err != nil {
		h.log.Warn("failed to clear session", slog.Int64("user_id", s.UserID), slog.Any("error", err))
	}

	return c.Send(h.tr.Tf("cmd.price_saved", username, amount), telebot.ModeHTML)
}

// formatSettlement renders the active settlement list with its total.
// Unpriced entries are labeled instead of silently folded into the sum.
func formatSettlement(tr i18n.Translator, entries []domain.SettlementEntry, total *domain.SettlementTotal) string {
	var sb strings.Builder
	sb.WriteString(tr.T("cmd.settlement_header"))
	sb.WriteString("\n")

	for _, entry := range entries {
		price := entry.Price
		if price == "" {
			price = tr.T("cmd.no_price")
		}
		fmt.Fprintf(&sb, "\n• <code>%s</code> | %s", entry.Username, price)
	}

	sb.WriteString("\n\n")
	sb.WriteString(tr.Tf("cmd.settlement_total", total.Total, total.Items, total.ItemsWithoutPrice))

	return sb.String()
}
