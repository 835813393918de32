package handlers

import (
	"context"
	"fmt"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewStatsHandler returns a handler for the /stats command.
func NewStatsHandler(deps HandlerDeps) bot.HandlerFunc {
	return statsHandler{deps}.Handle
}

type statsHandler struct {
	deps HandlerDeps
}

func (h statsHandler) Handle(ctx context.Context, _ *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "stats")
	if update.Message == nil {
		return
	}
	chatID := update.Message.Chat.ID

	cache := h.deps.Cache.Stats()
	disp := h.deps.Dispatcher.Stats()

	msg := fmt.Sprintf("Senders: %d\nHistory entries: %d\nRecipients notified since reset: %d",
		cache.Senders, cache.Entries, disp.Recipients)
	if !disp.PausedUntil.IsZero() {
		msg += fmt.Sprintf("\nPaused until: %s", disp.PausedUntil.Format(time.TimeOnly))
	}

	if err := h.deps.Dispatcher.SendText(ctx, chatID, msg, false); err != nil {
		log.ErrorContext(ctx, "Failed to send stats", "error", err, "chat_id", chatID)
	}
}
