package handlers

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewChatIDHandler returns a handler for the /chatid command. It replies with
// the identifiers operators need to fill in a group's chat list.
func NewChatIDHandler(deps HandlerDeps) bot.HandlerFunc {
	return chatIDHandler{deps}.Handle
}

type chatIDHandler struct {
	deps HandlerDeps
}

func (h chatIDHandler) Handle(ctx context.Context, _ *bot.Bot, update *models.Update) {
	log := h.deps.Logger.With("handler", "chatid")

	m := incoming(update)
	if m == nil {
		log.WarnContext(ctx, "Chat id handler received update without message", "update_id", update.ID)
		return
	}

	log.InfoContext(ctx, "Handling /chatid command", "chat_id", m.Chat.ID)

	if err := h.deps.Dispatcher.SendText(ctx, m.Chat.ID, FormatChatInfo(m.Chat), false); err != nil {
		log.ErrorContext(ctx, "Failed to send chat info", "error", err, "chat_id", m.Chat.ID)
	}
}

// FormatChatInfo renders the title, id, type and username of chat.
func FormatChatInfo(chat models.Chat) string {
	var sb strings.Builder
	title := chat.Title
	if title == "" {
		title = strings.TrimSpace(chat.FirstName + " " + chat.LastName)
	}
	fmt.Fprintf(&sb, "Title: %s\nID: %d\nType: %s", title, chat.ID, chat.Type)
	if chat.Username != "" {
		fmt.Fprintf(&sb, "\nUsername: @%s", chat.Username)
	}
	return sb.String()
}
