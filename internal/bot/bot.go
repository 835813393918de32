// Package bot wires the keywatch components together and manages their
// lifecycle: the Telegram listener, the scheduler and the status server.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/edgard/keywatch/internal/config"
)

const (
	noticeTimeFormat = "02-01-2006 15:04:05"
	noticeTimeout    = 10 * time.Second
)

// Listener receives updates until ctx is cancelled. *bot.Bot satisfies it.
type Listener interface {
	Start(ctx context.Context)
}

// Runner is a component that blocks until ctx is cancelled.
type Runner interface {
	Run(ctx context.Context) error
}

// TextSender delivers plain-text lifecycle notices.
type TextSender interface {
	SendText(ctx context.Context, chatID int64, text string, html bool) error
}

// Bot represents the running application and owns its components' lifecycle.
type Bot struct {
	logger    *slog.Logger
	cfg       *config.Config
	listener  Listener
	scheduler *Scheduler
	status    Runner
	notices   TextSender
	clock     func() time.Time
}

// Components are the parts Bot runs. Status and Notices may be nil.
type Components struct {
	Listener  Listener
	Scheduler *Scheduler
	Status    Runner
	Notices   TextSender
	Clock     func() time.Time
}

// NewBot creates a Bot from its components.
func NewBot(logger *slog.Logger, cfg *config.Config, c Components) *Bot {
	clock := c.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Bot{
		logger:    logger.With("component", "bot_orchestrator"),
		cfg:       cfg,
		listener:  c.Listener,
		scheduler: c.Scheduler,
		status:    c.Status,
		notices:   c.Notices,
		clock:     clock,
	}
}

// Run starts every component and blocks until ctx is cancelled or one of
// them fails.
func (b *Bot) Run(ctx context.Context) error {
	b.logger.Info("Starting bot orchestrator...")

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		b.logger.Info("Starting Telegram bot listener...")
		b.listener.Start(gCtx)
		b.logger.Info("Telegram bot listener stopped.")

		if gCtx.Err() == nil {
			return errors.New("telegram listener stopped unexpectedly")
		}
		return nil
	})

	if b.scheduler != nil {
		g.Go(func() error {
			if err := b.scheduler.Start(); err != nil {
				return fmt.Errorf("failed to start scheduler: %w", err)
			}

			<-gCtx.Done()
			b.logger.Info("Shutdown signal received, stopping scheduler...")
			if err := b.scheduler.Stop(); err != nil {
				b.logger.Error("Error stopping scheduler", "error", err)
			}
			return nil
		})
	}

	if b.status != nil {
		g.Go(func() error {
			return b.status.Run(gCtx)
		})
	}

	b.notify(gCtx, "🚀 Бот запущен в ")

	err := g.Wait()

	// The run context is done by now; the stop notice needs its own.
	stopCtx, cancel := context.WithTimeout(context.Background(), noticeTimeout)
	defer cancel()
	b.notify(stopCtx, "🛑 Бот остановлен в ")

	if err != nil && !errors.Is(err, context.Canceled) {
		b.logger.Error("Bot orchestrator stopped due to error", "error", err)
		return err
	}

	b.logger.Info("Bot orchestrator stopped gracefully.")
	return nil
}

func (b *Bot) notify(ctx context.Context, prefix string) {
	if b.notices == nil || !b.cfg.Telegram.LifecycleNotices || len(b.cfg.Groups) == 0 {
		return
	}

	recipient := b.cfg.Groups[0].Recipient
	text := prefix + b.clock().Format(noticeTimeFormat)
	if err := b.notices.SendText(ctx, recipient, text, false); err != nil {
		b.logger.WarnContext(ctx, "Failed to send lifecycle notice", "error", err, "recipient", recipient)
	}
}
