package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/hibiken/asynq"
	_ "github.com/lib/pq"

	"github.com/hesabgar/hesabgar-bot/internal/adminsync"
	"github.com/hesabgar/hesabgar-bot/internal/apperr"
	"github.com/hesabgar/hesabgar-bot/internal/bot"
	"github.com/hesabgar/hesabgar-bot/internal/database"
	"github.com/hesabgar/hesabgar-bot/internal/health"
	"github.com/hesabgar/hesabgar-bot/internal/i18n"
	"github.com/hesabgar/hesabgar-bot/internal/idempotency"
	"github.com/hesabgar/hesabgar-bot/internal/jobs"
	jobhandlers "github.com/hesabgar/hesabgar-bot/internal/jobs/handlers"
	"github.com/hesabgar/hesabgar-bot/internal/ledger"
	"github.com/hesabgar/hesabgar-bot/internal/notify"
	"github.com/hesabgar/hesabgar-bot/internal/panel"
	"github.com/hesabgar/hesabgar-bot/internal/ratelimit"
	"github.com/hesabgar/hesabgar-bot/internal/repository"
	"github.com/hesabgar/hesabgar-bot/internal/session"
	"github.com/hesabgar/hesabgar-bot/internal/triage"
	"github.com/hesabgar/hesabgar-bot/internal/webhook"
	"github.com/hesabgar/hesabgar-bot/pkg/config"
	"github.com/hesabgar/hesabgar-bot/pkg/graceful"
	"github.com/hesabgar/hesabgar-bot/pkg/logger"
	"github.com/hesabgar/hesabgar-bot/pkg/redisclient"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if cfg.Sentry.Enabled {
		if err := sentry.Init(sentry.ClientOptions{
			Dsn:         cfg.Sentry.DSN,
			Environment: cfg.Sentry.Environment,
		}); err != nil {
			return fmt.Errorf("initialize sentry: %w", err)
		}
		defer sentry.Flush(2 * time.Second)
	}

	log := logger.New(logger.Options{
		Level:         cfg.Logger.Level,
		Format:        cfg.Logger.Format,
		File:          cfg.Logger.File,
		SentryEnabled: cfg.Sentry.Enabled,
	})

	log.Info("starting accounting bot",
		slog.String("env", cfg.AppEnv),
		slog.String("http_port", cfg.Server.Port),
		slog.String("bot_mode", cfg.Bot.Mode),
	)

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping database: %w", err)
	}

	if err := database.NewMigrator(db, log).ApplyDir(ctx, "migrations"); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	redisClient, err := redisclient.New(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer redisClient.Close()

	i18nManager, err := i18n.Load(cfg.Bot.Language)
	if err != nil {
		return fmt.Errorf("load translations: %w", err)
	}
	tr := i18nManager.Translator(cfg.Bot.Language)

	snapshotRepo := repository.NewSnapshotRepository(db, log)
	paymentRepo := repository.NewPaymentRepository(db, log)
	priceRepo := repository.NewPriceRepository(db, log)
	adminRepo := repository.NewAdminRepository(db, log)
	auditRepo := repository.NewAuditRepository(db, log)
	flagRepo := repository.NewSyncFlagRepository(db, log)
	settlementRepo := repository.NewSettlementRepository(db, log)

	errHandler := apperr.NewHandler(log, cfg.Sentry.Enabled)
	triageEngine := triage.NewEngine(snapshotRepo, flagRepo, auditRepo, tr, log)
	ledgerEngine := ledger.NewEngine(paymentRepo, priceRepo, settlementRepo, log)

	dedupe := idempotency.NewRedisStore(redisClient, log)
	sessions := session.NewRedisStore(redisClient, log)

	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}

	jobManager := jobs.NewManager(redisOpt, log)
	defer jobManager.Close()

	commands := bot.NewCommands(adminRepo, flagRepo, sessions, ledgerEngine, jobManager, tr, cfg.Panel.Configured(), log)
	dispatcher := bot.NewDispatcher(ledgerEngine, auditRepo, tr, log)

	tgBot, err := bot.New(cfg, log, commands, dispatcher, dedupe, errHandler, tr)
	if err != nil {
		return fmt.Errorf("initialize bot: %w", err)
	}

	transport := bot.NewTransport(tgBot.Telebot(), log)
	router := notify.NewRouter(adminRepo, transport, tr, cfg.Bot.FallbackChatID, cfg.Bot.FallbackTopicID, log)

	checker := health.NewChecker(log)
	checker.AddCheck("database", health.NewDBChecker(db))
	checker.AddCheck("redis", health.NewRedisChecker(redisClient))
	checker.AddCheck("telegram", health.NewTelegramChecker(tgBot.Telebot()))

	var panelClient *panel.Client
	if cfg.Panel.Configured() {
		panelClient = panel.NewClient(cfg.Panel, log)
		checker.AddCheck("panel", health.NewPanelChecker(panelClient))
	}

	if cfg.Jobs.Enabled {
		worker := jobs.NewWorker(redisOpt, log)
		worker.RegisterHandler(jobs.TaskTypeAuditCleanup, jobhandlers.NewAuditCleanupHandler(auditRepo, log))

		if panelClient != nil {
			syncEngine := adminsync.NewEngine(panelClient, adminRepo, flagRepo, router, log)
			worker.RegisterHandler(jobs.TaskTypeAdminSync, jobhandlers.NewAdminSyncHandler(syncEngine, log))
		}

		go func() {
			if err := worker.Run(); err != nil {
				log.Error("jobs worker stopped", slog.Any("error", err))
			}
		}()
		defer worker.Shutdown()

		scheduler := jobs.NewScheduler(redisOpt, log)

		syncCron := cfg.Jobs.SyncCron
		if panelClient == nil {
			syncCron = ""
		}
		if err := scheduler.RegisterTasks(syncCron, cfg.Jobs.AuditRetention); err != nil {
			return fmt.Errorf("register scheduled tasks: %w", err)
		}
		scheduler.Run()
		defer scheduler.Shutdown()
	}

	var limiter ratelimit.Limiter
	if cfg.Webhook.RateLimit > 0 {
		limiter = ratelimit.NewRedisLimiter(redisClient, cfg.Webhook.RateLimit, cfg.Webhook.RateWindow, log)
	}

	processor := webhook.NewProcessor(triageEngine, router, log)
	webhookServer := webhook.NewServer(processor, flagRepo, adminRepo, checker, limiter, cfg.Webhook.Secret, log)

	httpServer := &http.Server{
		Addr:    cfg.Server.Port,
		Handler: logger.Middleware(webhookServer.Handler()),
	}

	go tgBot.Start()
	defer tgBot.Stop()

	if err := graceful.NewServer(log, httpServer, cfg.Server.ShutdownTimeout).ListenAndServe(ctx); err != nil {
		return fmt.Errorf("http server: %w", err)
	}

	log.Info("accounting bot shut down")
	return nil
}
