// Package handlers contains Telegram bot command and message handlers,
// along with their registration logic and middleware.
package handlers

import (
	"context"

	tgbot "github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// RecipientOnly drops updates whose sender is not a configured recipient.
func RecipientOnly(deps HandlerDeps) tgbot.Middleware {
	return func(next tgbot.HandlerFunc) tgbot.HandlerFunc {
		return func(ctx context.Context, bot *tgbot.Bot, update *models.Update) {
			if update.Message == nil || update.Message.From == nil {
				return
			}

			userID := update.Message.From.ID
			if !deps.Config.IsRecipient(userID) {
				deps.Logger.With("middleware", "RecipientOnly").WarnContext(ctx, "Unauthorized command attempt",
					"user_id", userID, "chat_id", update.Message.Chat.ID)
				return
			}

			next(ctx, bot, update)
		}
	}
}
