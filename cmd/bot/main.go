package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"telegram_post_scheduler/internal/app"
	"telegram_post_scheduler/internal/infra/config"
	idb "telegram_post_scheduler/internal/infra/database"
	"telegram_post_scheduler/internal/infra/logger"
	"telegram_post_scheduler/internal/infra/scheduler"
	"telegram_post_scheduler/internal/infra/telegram"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

func main() {
	fmt.Println("Telegram Post Scheduler starting...")

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Could not load application configuration: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg)
	mainLogger := logger.Component("main")
	mainLogger.WithFields(logrus.Fields{
		"environment": cfg.Environment,
		"admin_id":    cfg.AdminTelegramID,
	}).Info("Configuration loaded")

	// Initialize Database Connection
	db, err := idb.NewPostgresConnection(cfg.DatabaseURL)
	if err != nil {
		mainLogger.WithError(err).Fatal("Could not connect to database")
	}
	defer db.Close()
	mainLogger.Info("Database connection established successfully.")

	if cfg.MigrateOnStart {
		if err := idb.ApplyMigrations(db, logger.Component("migrations")); err != nil {
			mainLogger.WithError(err).Fatal("Could not apply database migrations")
		}
	}

	// Initialize Repositories
	targetRepo := idb.NewPostgresTargetRepository(db)
	queueRepo := idb.NewPostgresQueueRepository(db)
	cycleRepo := idb.NewPostgresCycleRepository(db)

	// Initialize Services
	registry := app.NewTargetRegistry(targetRepo, logger.Component("target_registry"))
	queue := app.NewDispatchQueue(queueRepo, logger.Component("dispatch_queue"))
	tracker := app.NewCycleTracker(cycleRepo, logger.Component("cycle_tracker"))

	// Initialize Telegram Bot
	pref := telebot.Settings{
		Token:  cfg.TelegramToken,
		Poller: &telebot.LongPoller{Timeout: 10 * time.Second},
		OnError: func(err error, c telebot.Context) {
			logCtx := logger.Component("telebot").WithError(err)
			if c != nil && c.Sender() != nil && c.Chat() != nil {
				logCtx = logCtx.WithField("sender_id", c.Sender().ID).WithField("chat_id", c.Chat().ID)
			}
			logCtx.Error("Telebot error")
		},
	}
	bot, err := telebot.NewBot(pref)
	if err != nil {
		mainLogger.WithError(err).Fatal("Could not create Telegram bot")
	}

	client := telegram.NewTelebotAdapter(bot, cfg.SendRatePerSecond, cfg.SendBurst, cfg.AdminTelegramID)

	dispatcher := app.NewDispatcher(
		queue,
		tracker,
		registry,
		client,
		logger.Component("dispatcher"),
		app.WithBatchPolicy(app.BatchPolicy{Min: cfg.BatchMin, Max: cfg.BatchMax}),
		app.WithSendTimeout(cfg.SendTimeout),
	)
	feeder := app.NewRotationFeeder(
		queue,
		tracker,
		registry,
		app.BatchPolicy{Min: cfg.RotationBatchMin, Max: cfg.RotationBatchMax},
		logger.Component("rotation_feeder"),
	)

	dispatchScheduler, err := scheduler.NewDispatchScheduler(dispatcher, feeder, client, logger.Component("dispatch_scheduler"), scheduler.Options{
		QueueScanSpec:   cfg.CronSpecQueueScan,
		RotationEnabled: cfg.RotationEnabled,
		RotationWaitMin: cfg.RotationWaitMin,
		RotationWaitMax: cfg.RotationWaitMax,
	})
	if err != nil {
		mainLogger.WithError(err).Fatal("Could not create dispatch scheduler")
	}
	if cfg.AutostartDispatcher {
		if err := dispatchScheduler.Start(); err != nil {
			mainLogger.WithError(err).Fatal("Could not start dispatch scheduler")
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Register Handlers
	handlerLogger := logger.Component("telegram")
	telegram.RegisterBotCommands(bot, cfg.AdminTelegramID, handlerLogger)
	telegram.RegisterOperatorHandlers(ctx, bot, &telegram.Operator{
		Registry:   registry,
		Queue:      queue,
		Tracker:    tracker,
		Dispatcher: dispatchScheduler,
		AdminID:    cfg.AdminTelegramID,
		Location:   time.Local,
	}, handlerLogger)
	mainLogger.Info("Command handlers registered.")

	mainLogger.Info("Application setup complete. Bot and Scheduler are starting...")

	// Start bot in a goroutine so it doesn't block graceful shutdown handling
	go bot.Start()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	mainLogger.Info("Shutting down application...")
	if err := dispatchScheduler.Stop(); err != nil && !errors.Is(err, scheduler.ErrNotRunning) {
		mainLogger.WithError(err).Error("Error stopping dispatch scheduler")
	}
	bot.Stop()
	cancel()
	mainLogger.Info("Application shut down gracefully.")
}
