package handlers

import (
	"context"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
)

// NewMessageHandler returns the default handler. Offer commands from
// recipients go to the offer flow; everything else is checked for alerts.
func NewMessageHandler(deps HandlerDeps) bot.HandlerFunc {
	return messageHandler{deps}.Handle
}

type messageHandler struct {
	deps HandlerDeps
}

func (h messageHandler) Handle(ctx context.Context, _ *bot.Bot, update *models.Update) {
	m := incoming(update)
	if m == nil {
		return
	}

	if h.deps.Offer != nil && m.From != nil && h.deps.Offer.Match(m.From.ID, messageText(m)) {
		h.handleOffer(ctx, m)
		return
	}

	msg, ok := ToAlertMessage(m)
	if !ok {
		h.deps.Logger.DebugContext(ctx, "Ignoring message without user sender", "chat_id", m.Chat.ID, "message_id", m.ID)
		return
	}
	h.deps.Engine.Process(ctx, msg)
}

func (h messageHandler) handleOffer(ctx context.Context, m *models.Message) {
	log := h.deps.Logger.With("handler", "offer")

	res := h.deps.Offer.Handle(ctx, ToOfferCommand(m))
	log.InfoContext(ctx, "Handled offer command", "chat_id", m.Chat.ID, "user_id", m.From.ID, "status", res.Status)

	if res.Ack == "" {
		return
	}
	if _, err := h.deps.Dispatcher.Reply(ctx, m.Chat.ID, m.ID, res.Ack); err != nil {
		log.ErrorContext(ctx, "Failed to send offer acknowledgment", "error", err, "chat_id", m.Chat.ID)
	}
}
