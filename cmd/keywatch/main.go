// Package main contains the entrypoint for keywatch, a Telegram bot that
// forwards keyword and question matches from watched chats to recipients.
package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/joho/godotenv"

	"github.com/edgard/keywatch/internal/alert"
	"github.com/edgard/keywatch/internal/bot"
	"github.com/edgard/keywatch/internal/bot/handlers"
	"github.com/edgard/keywatch/internal/bot/tasks"
	"github.com/edgard/keywatch/internal/config"
	"github.com/edgard/keywatch/internal/database"
	"github.com/edgard/keywatch/internal/dispatch"
	"github.com/edgard/keywatch/internal/embedding"
	"github.com/edgard/keywatch/internal/logger"
	"github.com/edgard/keywatch/internal/offer"
	"github.com/edgard/keywatch/internal/rules"
	"github.com/edgard/keywatch/internal/status"
	"github.com/edgard/keywatch/internal/suppression"
	"github.com/edgard/keywatch/internal/telegram"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	exitCode := run(ctx)
	stop()
	os.Exit(exitCode)
}

// run builds every component, runs the bot until ctx is cancelled and
// returns the process exit code.
func run(ctx context.Context) int {
	configPath := flag.String("config", "./config.yaml", "Path to configuration file")
	envPath := flag.String("env", ".env", "Path to an optional .env file")
	flag.Parse()

	if err := godotenv.Load(*envPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Error("Failed to load env file", "path", *envPath, "error", err)
		return 1
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *configPath, "error", err)
		return 1
	}

	log := logger.NewLogger(cfg.Logger.Level, cfg.Logger.JSON)
	log.Info("Logger initialized", "level", cfg.Logger.Level, "json", cfg.Logger.JSON)

	loc, err := cfg.Location()
	if err != nil {
		log.Error("Invalid scheduler timezone", "error", err)
		return 1
	}
	clock := func() time.Time { return time.Now().In(loc) }

	var store database.Store
	if cfg.Database.Enabled {
		db, err := database.NewDB(cfg.Database.Path, log)
		if err != nil {
			log.Error("Failed to open journal database", "path", cfg.Database.Path, "error", err)
			return 1
		}
		defer database.CloseDB(db, log)
		store = database.NewStore(db, log)
	}

	var embedder suppression.Embedder
	if cfg.Suppression.SemanticFilter {
		gem, err := embedding.NewGeminiEmbedder(ctx, cfg.Gemini, log)
		if err != nil {
			log.Error("Failed to initialize Gemini embedder", "error", err)
			return 1
		}
		embedder = gem
	}

	// The default handler needs the engine, which needs the transport built
	// on the bot itself; bind it once everything exists.
	var onMessage tgbot.HandlerFunc
	botOpts := []tgbot.Option{
		tgbot.WithMiddlewares(logger.Recover(log), logger.Middleware(log)),
		tgbot.WithDefaultHandler(func(ctx context.Context, b *tgbot.Bot, update *models.Update) {
			onMessage(ctx, b, update)
		}),
	}
	tg, err := telegram.NewTelegramBot(cfg.Telegram.Token, log, botOpts...)
	if err != nil {
		log.Error("Failed to create Telegram bot", "error", err)
		return 1
	}

	cfg.Telegram.BotInfo, err = tg.GetMe(ctx)
	if err != nil {
		log.Error("Failed to get bot info", "error", err)
		return 1
	}
	log.Info("Retrieved bot info", "bot_id", cfg.Telegram.BotInfo.ID, "bot_username", cfg.Telegram.BotInfo.Username)

	transport := telegram.NewTransport(tg, cfg.Telegram.RatePerSec)
	dispatcher := dispatch.New(cfg.Dispatch, transport, log, dispatch.WithClock(clock))
	cache := suppression.New(cfg.Suppression, embedder, log)

	groups := rules.NewGroups(cfg.Groups)
	recipients := rules.Recipients(groups)
	isRecipient := func(id int64) bool {
		_, ok := recipients[id]
		return ok
	}

	engine := alert.NewEngine(alert.Deps{
		Groups:     groups,
		Cache:      cache,
		Dispatcher: dispatcher,
		Journal:    store,
		Location:   loc,
		Clock:      clock,
		Logger:     log,
	})

	hDeps := handlers.HandlerDeps{
		Logger:     log,
		Config:     cfg,
		Engine:     engine,
		Offer:      offer.NewHandler(cfg.Offer, isRecipient, dispatcher, log),
		Cache:      cache,
		Dispatcher: dispatcher,
	}
	onMessage = handlers.NewMessageHandler(hDeps)

	if err := telegram.RegisterHandlers(tg, log, handlers.RegisterAllCommands(hDeps)); err != nil {
		log.Error("Failed to register Telegram handlers", "error", err)
		return 1
	}

	tDeps := tasks.TaskDeps{
		Logger:    log,
		Config:    cfg,
		Resetters: []tasks.Resetter{cache, dispatcher},
		Store:     store,
		Clock:     clock,
	}
	sched, err := bot.NewScheduler(log, &cfg.Scheduler, loc, tasks.RegisterAllTasks(tDeps))
	if err != nil {
		log.Error("Failed to create scheduler", "error", err)
		return 1
	}

	components := bot.Components{
		Listener:  tg,
		Scheduler: sched,
		Notices:   dispatcher,
		Clock:     clock,
	}
	if cfg.Status.Listen != "" {
		components.Status = status.NewServer(cfg.Status.Listen, status.Deps{
			Cache:      cache,
			Dispatcher: dispatcher,
			Store:      store,
			Clock:      clock,
			Logger:     log,
		})
	}

	app := bot.NewBot(log, cfg, components)

	log.Info("Starting bot...")
	if err := app.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("Bot stopped due to error", "error", err)
		return 1
	}

	log.Info("Bot stopped gracefully.")
	return 0
}
