// Package triage decides, for each inbound panel event, whether a
// notification must be emitted, to whom, and with what state transition.
package triage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hesabgar/hesabgar-bot/internal/domain"
	"github.com/hesabgar/hesabgar-bot/internal/eventkey"
	"github.com/hesabgar/hesabgar-bot/internal/i18n"
	"github.com/hesabgar/hesabgar-bot/internal/repository"
)

// ErrInvalidEvent indicates an event missing action, username, or user body.
// The event is audited and rejected; the surrounding batch continues.
var ErrInvalidEvent = errors.New("invalid event: missing required fields")

// Triage reasons that do not produce a notification.
const (
	ReasonCreated        = "user_created"
	ReasonBaseline       = "baseline_established"
	ReasonNoTrigger      = "no_trigger"
	ReasonSyncIncomplete = "sync_incomplete"
	ReasonIgnoredAction  = "ignored_action"
	ReasonHold           = "status_to_on_hold"
)

// expireExtensionDays is the minimum extension that fires a notification.
const expireExtensionDays = 7

// Decision is the outcome of triaging one event.
type Decision struct {
	Send     bool
	Reason   string
	Message  string
	EventKey string
}

// Engine consumes normalized lifecycle events, diffs them against the last
// known snapshot, and produces send/skip decisions.
type Engine struct {
	snapshots repository.SnapshotRepository
	flags     repository.SyncFlagRepository
	audit     repository.AuditRepository
	tr        i18n.Translator
	log       *slog.Logger
}

// NewEngine constructs a triage engine over the given persistence.
func NewEngine(
	snapshots repository.SnapshotRepository,
	flags repository.SyncFlagRepository,
	audit repository.AuditRepository,
	tr i18n.Translator,
	log *slog.Logger,
) *Engine {
	if log == nil {
		log = slog.Default()
	}

	return &Engine{
		snapshots: snapshots,
		flags:     flags,
		audit:     audit,
		tr:        tr,
		log:       log,
	}
}

// Process triages one event. Every event, valid or not, is first recorded
// in the audit log; only then is the decision computed.
func (e *Engine) Process(ctx context.Context, ev *domain.Event) (Decision, error) {
	if err := e.auditEvent(ctx, ev); err != nil {
		return Decision{}, err
	}

	if !ev.Valid() {
		e.log.Warn("rejecting event with missing required fields")
		return Decision{}, ErrInvalidEvent
	}

	switch ev.Action {
	case domain.ActionUserCreated:
		return e.processCreated(ctx, ev)
	case domain.ActionUserUpdated:
		synced, err := e.flags.Get(ctx, domain.FlagInitialSyncComplete)
		if err != nil {
			return Decision{}, fmt.Errorf("read sync flag: %w", err)
		}
		if synced != "true" {
			e.log.Info("skipping user_updated, initial sync not complete", slog.String("username", ev.Username))
			return Decision{Reason: ReasonSyncIncomplete}, nil
		}
		return e.processUpdated(ctx, ev)
	default:
		e.log.Info("ignoring unsupported action", slog.String("action", ev.Action))
		return Decision{Reason: ReasonIgnoredAction}, nil
	}
}

// processCreated always notifies and overwrites the snapshot.
func (e *Engine) processCreated(ctx context.Context, ev *domain.Event) (Decision, error) {
	if err := e.saveSnapshot(ctx, ev); err != nil {
		return Decision{}, err
	}

	return Decision{
		Send:     true,
		Reason:   ReasonCreated,
		Message:  e.renderCreated(ev),
		EventKey: eventkey.New(eventkey.KindCreated, ev.Username, ev.SendAt),
	}, nil
}

// processUpdated notifies only when a trigger condition fires against the
// previous snapshot. The snapshot is overwritten either way.
func (e *Engine) processUpdated(ctx context.Context, ev *domain.Event) (Decision, error) {
	old, err := e.snapshots.Get(ctx, ev.Username)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			return Decision{}, fmt.Errorf("read snapshot: %w", err)
		}

		// First sighting establishes the baseline without notifying.
		if err := e.saveSnapshot(ctx, ev); err != nil {
			return Decision{}, err
		}
		e.log.Info("no snapshot found, baseline saved", slog.String("username", ev.Username))
		return Decision{Reason: ReasonBaseline}, nil
	}

	send := false
	reason := ReasonNoTrigger

	// The extension trigger is evaluated first; its reason wins when both
	// conditions hold for the same event.
	if days, ok := expireExtension(old.Expire, ev.User.Expire); ok && days >= expireExtensionDays {
		send = true
		reason = fmt.Sprintf("expire_extended_%d_days", days)
	} else if old.Status != domain.StatusOnHold && ev.User.Status == domain.StatusOnHold {
		send = true
		reason = ReasonHold
	}

	if err := e.saveSnapshot(ctx, ev); err != nil {
		return Decision{}, err
	}

	if !send {
		e.log.Info("skipped user_updated, no trigger conditions met", slog.String("username", ev.Username))
		return Decision{Reason: reason}, nil
	}

	return Decision{
		Send:     true,
		Reason:   reason,
		Message:  e.renderUpdated(ev, old, reason),
		EventKey: eventkey.New(eventkey.KindUpdated, ev.Username, ev.SendAt),
	}, nil
}

func (e *Engine) saveSnapshot(ctx context.Context, ev *domain.Event) error {
	snapshot := &domain.Snapshot{
		Username: ev.Username,
		Status:   ev.User.Status,
		Expire:   ev.User.Expire,
	}

	if err := e.snapshots.Save(ctx, snapshot); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}

	return nil
}

func (e *Engine) auditEvent(ctx context.Context, ev *domain.Event) error {
	entry := &domain.AuditEntry{Type: "webhook_received"}

	if ev != nil {
		entry.Username = ev.Username
		if ev.By != nil && ev.By.TelegramID != nil {
			entry.AdminID = fmt.Sprintf("%d", *ev.By.TelegramID)
		}
		if payload, err := json.Marshal(ev); err == nil {
			entry.Payload = payload
		}
	}

	if err := e.audit.Append(ctx, entry); err != nil {
		return fmt.Errorf("audit event: %w", err)
	}

	return nil
}

// expireExtension reports the whole-day extension between two expire
// timestamps. It returns ok=false when either side is missing or
// unparseable.
func expireExtension(oldExpire, newExpire string) (int, bool) {
	oldT, ok := parseExpire(oldExpire)
	if !ok {
		return 0, false
	}

	newT, ok := parseExpire(newExpire)
	if !ok {
		return 0, false
	}

	diff := newT.Sub(oldT)
	if diff < 0 {
		return 0, false
	}

	return int(diff / (24 * time.Hour)), true
}

var expireLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func parseExpire(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}

	for _, layout := range expireLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, true
		}
	}

	return time.Time{}, false
}
