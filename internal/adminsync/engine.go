// Package adminsync reconciles the panel admin roster with the stored
// destination mappings.
package adminsync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/hesabgar/hesabgar-bot/internal/domain"
	"github.com/hesabgar/hesabgar-bot/internal/repository"
	"github.com/hesabgar/hesabgar-bot/pkg/metrics"
)

// Roster fetches the panel admin list.
type Roster interface {
	GetAllAdmins(ctx context.Context) ([]domain.PanelAdmin, error)
}

// Provisioner creates or refreshes the destination for one admin.
// Implemented by the notification router.
type Provisioner interface {
	EnsureDestination(ctx context.Context, adminID, adminUsername string) (*domain.AdminDestination, error)
}

// Result summarizes one reconciliation run.
type Result struct {
	Created int
	Updated int
	Skipped int
	Errors  int
}

type outcome int

const (
	outcomeCreated outcome = iota
	outcomeUpdated
	outcomeUnchanged
)

// Engine performs roster reconciliation runs.
type Engine struct {
	roster      Roster
	admins      repository.AdminRepository
	flags       repository.SyncFlagRepository
	provisioner Provisioner
	log         *slog.Logger
}

// NewEngine constructs a sync engine.
func NewEngine(
	roster Roster,
	admins repository.AdminRepository,
	flags repository.SyncFlagRepository,
	provisioner Provisioner,
	log *slog.Logger,
) *Engine {
	if log == nil {
		log = slog.Default()
	}

	return &Engine{
		roster:      roster,
		admins:      admins,
		flags:       flags,
		provisioner: provisioner,
		log:         log,
	}
}

// Sync pulls the roster and reconciles each admin: unseen admins get a
// destination provisioned, stale display names are refreshed, and admins
// without a Telegram identity are skipped. A successful run marks the
// initial sync complete, which unlocks user_updated triage.
func (e *Engine) Sync(ctx context.Context) (*Result, error) {
	roster, err := e.roster.GetAllAdmins(ctx)
	if err != nil {
		metrics.RecordAdminSync("failed")
		return nil, fmt.Errorf("fetch admin roster: %w", err)
	}

	result := &Result{}

	for _, admin := range roster {
		if admin.TelegramID == nil {
			e.log.Info("skipping admin without telegram id", slog.String("username", admin.Username))
			result.Skipped++
			continue
		}

		adminID := strconv.FormatInt(*admin.TelegramID, 10)

		out, err := e.reconcile(ctx, adminID, admin.Username)
		if err != nil {
			e.log.Error("failed to reconcile admin",
				slog.String("admin_id", adminID),
				slog.String("username", admin.Username),
				slog.Any("error", err),
			)
			result.Errors++
			continue
		}

		switch out {
		case outcomeCreated:
			result.Created++
		case outcomeUpdated:
			result.Updated++
		default:
			result.Skipped++
		}
	}

	if err := e.flags.Set(ctx, domain.FlagInitialSyncComplete, "true"); err != nil {
		metrics.RecordAdminSync("failed")
		return result, fmt.Errorf("mark initial sync complete: %w", err)
	}
	if err := e.flags.Set(ctx, domain.FlagLastSync, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return result, fmt.Errorf("record last sync time: %w", err)
	}

	if all, err := e.admins.List(ctx); err == nil {
		metrics.SetRegisteredAdmins(len(all))
	}
	metrics.RecordAdminSync("success")

	e.log.Info("admin sync finished",
		slog.Int("created", result.Created),
		slog.Int("updated", result.Updated),
		slog.Int("skipped", result.Skipped),
		slog.Int("errors", result.Errors),
	)

	return result, nil
}

func (e *Engine) reconcile(ctx context.Context, adminID, username string) (outcome, error) {
	existing, err := e.admins.Get(ctx, adminID)
	if err == nil {
		if username == "" || existing.AdminUsername == username {
			return outcomeUnchanged, nil
		}
		if err := e.admins.UpdateUsername(ctx, adminID, username); err != nil {
			return outcomeUnchanged, err
		}
		return outcomeUpdated, nil
	}

	if !errors.Is(err, repository.ErrNotFound) {
		return outcomeUnchanged, err
	}

	if _, err := e.provisioner.EnsureDestination(ctx, adminID, username); err != nil {
		return outcomeUnchanged, err
	}

	return outcomeCreated, nil
}
