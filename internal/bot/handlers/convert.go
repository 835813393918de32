package handlers

import (
	"strings"

	"github.com/go-telegram/bot/models"

	"github.com/edgard/keywatch/internal/alert"
	"github.com/edgard/keywatch/internal/offer"
)

// incoming returns the message carried by update: a group message or a channel post.
func incoming(update *models.Update) *models.Message {
	if update == nil {
		return nil
	}
	if update.Message != nil {
		return update.Message
	}
	return update.ChannelPost
}

// messageText returns the text of m, or its caption for media messages.
func messageText(m *models.Message) string {
	if m.Text != "" {
		return m.Text
	}
	return m.Caption
}

// ToAlertMessage converts a Bot API message for the alert engine. It reports
// false for messages without a user sender, such as channel posts and
// messages sent on behalf of a chat: they have no profile to link to.
func ToAlertMessage(m *models.Message) (alert.Message, bool) {
	if m.From == nil {
		return alert.Message{}, false
	}

	return alert.Message{
		SenderID:     m.From.ID,
		SenderName:   strings.TrimSpace(m.From.FirstName + " " + m.From.LastName),
		SenderIsBot:  m.From.IsBot,
		ChatID:       m.Chat.ID,
		ChatTitle:    m.Chat.Title,
		ChatUsername: m.Chat.Username,
		MessageID:    m.ID,
		Text:         messageText(m),
	}, true
}

// ToOfferCommand converts a Bot API message for the offer handler.
func ToOfferCommand(m *models.Message) offer.Command {
	cmd := offer.Command{
		ChatID: m.Chat.ID,
		Text:   messageText(m),
	}
	if m.From != nil {
		cmd.SenderID = m.From.ID
	}

	if r := m.ReplyToMessage; r != nil {
		reply := &offer.Reply{Text: messageText(r)}
		entities := r.Entities
		if len(entities) == 0 {
			entities = r.CaptionEntities
		}
		for _, e := range entities {
			ent := offer.Entity{Type: string(e.Type), URL: e.URL}
			if e.User != nil {
				ent.UserID = e.User.ID
			}
			reply.Entities = append(reply.Entities, ent)
		}
		cmd.Reply = reply
	}

	return cmd
}
