package dispatch

import (
	"fmt"
	"html"
	"strings"

	"github.com/edgard/keywatch/internal/text"
)

// DefaultSenderName is shown when the author has no display name.
const DefaultSenderName = "пользователь"

// Notification is the data rendered into an alert.
type Notification struct {
	ChatTitle    string
	ChatUsername string
	SenderID     int64
	SenderName   string
	MessageID    int
	Text         string
}

// AuthorURL returns the profile deep link of a user.
func AuthorURL(userID int64) string {
	return fmt.Sprintf("tg://user?id=%d", userID)
}

// MessageURL returns the public link to a message, or "" for private chats.
func MessageURL(chatUsername string, messageID int) string {
	if chatUsername == "" || messageID == 0 {
		return ""
	}
	return fmt.Sprintf("https://t.me/%s/%d", chatUsername, messageID)
}

// Bot API limits, in UTF-16 code units.
const (
	MaxMessageLength = 4096
	MaxCaptionLength = 1024
)

// FormatNotification renders n as Telegram HTML. The author link carries the
// sender id so the offer command can recover it from a reply. A long body is
// cut with an ellipsis so the whole notification stays within
// MaxMessageLength.
func FormatNotification(n Notification) string {
	name := strings.TrimSpace(n.SenderName)
	if name == "" {
		name = DefaultSenderName
	}

	head := fmt.Sprintf("Важное сообщение в чате \"%s\" от <a href=\"%s\">%s</a>:\n\n",
		html.EscapeString(n.ChatTitle), AuthorURL(n.SenderID), html.EscapeString(name))

	var foot string
	if link := MessageURL(n.ChatUsername, n.MessageID); link != "" {
		foot = fmt.Sprintf("\n🔗 <a href=\"%s\">Открыть сообщение</a>", html.EscapeString(link))
	}

	budget := MaxMessageLength - text.UTF16Len(head) - text.UTF16Len(foot)
	return head + escapedBody(text.Clean(n.Text), budget) + foot
}

// escapedBody HTML-escapes body, truncating it first until the escaped form
// fits in budget.
func escapedBody(body string, budget int) string {
	limit := budget
	for limit > 0 {
		out := html.EscapeString(text.TruncateUTF16(body, limit))
		over := text.UTF16Len(out) - budget
		if over <= 0 {
			return out
		}
		limit -= over
	}
	return ""
}
