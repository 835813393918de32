// Package logger provides structured logging for keywatch on top of log/slog,
// plus go-telegram/bot middleware that logs and isolates each update.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"runtime/debug"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/keywatch/internal/text"
)

// NewLogger creates a slog Logger writing to stdout and installs it as the default.
func NewLogger(levelStr string, jsonOutput bool) *slog.Logger {
	logger := New(os.Stdout, levelStr, jsonOutput)
	slog.SetDefault(logger)
	return logger
}

// New creates a slog Logger writing to w. Unknown levels mean info.
func New(w io.Writer, levelStr string, jsonOutput bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(levelStr)}

	var handler slog.Handler
	if jsonOutput {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// ParseLevel maps a config level name to a slog level.
func ParseLevel(levelStr string) slog.Level {
	switch levelStr {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Middleware logs every update with its chat, sender, a text preview and the
// handling duration.
func Middleware(log *slog.Logger) bot.Middleware {
	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *models.Update) {
			start := time.Now()
			entry := log.With(updateAttrs(update)...)

			entry.DebugContext(ctx, "Processing update")
			next(ctx, b, update)
			entry.DebugContext(ctx, "Finished processing update", "duration", time.Since(start))
		}
	}
}

// Recover stops a panicking handler from taking down the update loop.
func Recover(log *slog.Logger) bot.Middleware {
	return func(next bot.HandlerFunc) bot.HandlerFunc {
		return func(ctx context.Context, b *bot.Bot, update *models.Update) {
			defer func() {
				if r := recover(); r != nil {
					log.ErrorContext(ctx, "Recovered from panic in update handler",
						append(updateAttrs(update), "panic", r, "stack", string(debug.Stack()))...)
				}
			}()
			next(ctx, b, update)
		}
	}
}

func updateAttrs(update *models.Update) []any {
	attrs := []any{"update_id", update.ID}

	msg, kind := update.Message, "message"
	if msg == nil {
		msg, kind = update.ChannelPost, "channel_post"
	}
	if msg == nil {
		return append(attrs, "update_type", "other")
	}

	attrs = append(attrs,
		"update_type", kind,
		"message_id", msg.ID,
		"chat_id", msg.Chat.ID,
	)
	if msg.From != nil {
		attrs = append(attrs, "user_id", msg.From.ID)
	}
	body := msg.Text
	if body == "" {
		body = msg.Caption
	}
	return append(attrs, "text_preview", text.Preview(body, 50))
}
