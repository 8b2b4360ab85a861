// Package main contains the entrypoint for the survey bot.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/edgard/surveybot/internal/bot"
	"github.com/edgard/surveybot/internal/bot/handlers"
	"github.com/edgard/surveybot/internal/bot/tasks"
	"github.com/edgard/surveybot/internal/chatlog"
	"github.com/edgard/surveybot/internal/config"
	"github.com/edgard/surveybot/internal/database"
	"github.com/edgard/surveybot/internal/digest"
	"github.com/edgard/surveybot/internal/dispatch"
	"github.com/edgard/surveybot/internal/fanout"
	"github.com/edgard/surveybot/internal/httpserver"
	"github.com/edgard/surveybot/internal/i18n"
	"github.com/edgard/surveybot/internal/lifecycle"
	"github.com/edgard/surveybot/internal/logger"
	"github.com/edgard/surveybot/internal/registration"
	"github.com/edgard/surveybot/internal/reminder"
	"github.com/edgard/surveybot/internal/render"
	"github.com/edgard/surveybot/internal/telegram"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop()
	os.Exit(exitCode)
}

// run initializes and starts all application components and returns an exit
// code (0 for success, 1 for failure).
func run(ctx context.Context) int {
	configPath := flag.String("config", "./config.yaml", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		return 1
	}

	log := logger.NewLogger(cfg.Log.Level, cfg.Log.JSON)
	log.Info("Logger initialized", "level", cfg.Log.Level, "json", cfg.Log.JSON)

	var store database.Store
	switch cfg.Database.Driver {
	case "memory":
		log.Warn("Using in-memory store; all state is lost on restart")
		store = database.NewMemoryStore()
	default:
		db, err := database.NewDB(cfg.Database.Path)
		if err != nil {
			log.Error("Failed to connect to database", "path", cfg.Database.Path, "error", err)
			return 1
		}
		defer database.CloseDB(db)
		store = database.NewStore(db, log)
	}

	tr, err := i18n.NewTranslator(cfg.Locale)
	if err != nil {
		log.Error("Failed to load message catalogue", "locale", cfg.Locale, "error", err)
		return 1
	}

	client, err := telegram.NewClient(cfg.Telegram, log)
	if err != nil {
		log.Error("Failed to create Telegram client", "error", err)
		return 1
	}

	scope := cfg.Telegram.Scope()
	loc := cfg.Location()
	renderer := render.NewRenderer(tr, cfg.Buttons, loc)
	chatLog := chatlog.NewWriter(store, scope, loc, log)
	fan := fanout.New(client, store, renderer, chatLog, fanout.Options{
		TokenScope:  scope,
		Concurrency: cfg.Fanout.Concurrency,
	}, log)
	digests := digest.NewReconciler(client, store, renderer, chatLog, scope, log)

	hDeps := handlers.HandlerDeps{
		Logger:       log,
		Config:       cfg,
		Store:        store,
		Transport:    client,
		Renderer:     renderer,
		ChatLog:      chatLog,
		Registration: registration.NewService(client, store, fan, renderer, log),
		Digests:      digests,
	}
	dispatcher := dispatch.New(client, handlers.RegisterAll(hDeps), dispatch.Options{
		Prefixes:    dispatch.Prefixes{Join: cfg.Buttons.JoinPrefix, Leave: cfg.Buttons.LeavePrefix},
		PollTimeout: cfg.Telegram.PollTimeout,
		Middlewares: []dispatch.Middleware{logger.Middleware(log)},
	}, log)

	if err := client.SetCommands(ctx, handlers.Commands(hDeps)); err != nil {
		// The menu is cosmetic; commands work without it.
		log.Warn("Failed to set bot commands", "error", err)
	}

	tDeps := tasks.TaskDeps{
		Logger:    log,
		Store:     store,
		Poller:    dispatcher,
		Lifecycle: lifecycle.NewSweeper(store, digests, loc, log),
		Reminder:  reminder.NewScheduler(store, fan, loc, cfg.Reminder.DaysBefore, log),
		Digests:   digests,
		Replicas:  fan,
	}

	sched, err := bot.NewScheduler(log, &cfg.Scheduler, tasks.RegisterAllTasks(tDeps), loc)
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		return 1
	}

	var server *http.Server
	if cfg.HTTP.Enabled {
		server = httpserver.New(cfg.HTTP.Listen, store)
	}
	app := bot.NewBot(log, sched, server)

	log.Info("Starting bot...", "timezone", loc.String(), "locale", cfg.Locale, "token_scope", scope)
	runErr := app.Run(ctx)
	log.Info("Bot run loop finished. Initiating shutdown...")

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		log.Error("Bot stopped due to error", "error", runErr)
		time.Sleep(time.Second)
		return 1
	}

	log.Info("Bot stopped gracefully.")
	return 0
}
