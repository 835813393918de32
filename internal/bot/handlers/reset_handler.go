package handlers

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewResetHandler returns a handler for the /reset command, which runs the
// daily eviction immediately.
func NewResetHandler(deps HandlerDeps) bot.HandlerFunc {
	return resetHandler{deps}.Handle
}

type resetHandler struct {
	deps HandlerDeps
}

func (h resetHandler) Handle(ctx context.Context, _ *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "reset")
	if update.Message == nil || update.Message.From == nil {
		log.ErrorContext(ctx, "Reset handler called without message or sender", "update_id", update.ID)
		return
	}
	chatID := update.Message.Chat.ID

	h.deps.Cache.Reset()
	h.deps.Dispatcher.Reset()
	log.InfoContext(ctx, "Suppression and rate-limit state cleared on request", "chat_id", chatID, "user_id", update.Message.From.ID)

	done := h.deps.Config.Commands.Messages.ResetDone
	if _, err := h.deps.Dispatcher.Reply(ctx, chatID, update.Message.ID, done); err != nil {
		log.ErrorContext(ctx, "Failed to send reset confirmation", "error", err, "chat_id", chatID)
	}
}
