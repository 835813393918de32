package telegram

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"golang.org/x/time/rate"
)

// API is the subset of *bot.Bot the transport calls.
type API interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
	SendDocument(ctx context.Context, params *bot.SendDocumentParams) (*models.Message, error)
}

// Transport sends messages through the Bot API under a global token bucket.
type Transport struct {
	api     API
	limiter *rate.Limiter
}

// NewTransport allows ratePerSec requests per second with an equal burst.
func NewTransport(api API, ratePerSec int) *Transport {
	if ratePerSec <= 0 {
		ratePerSec = 1
	}
	return &Transport{
		api:     api,
		limiter: rate.NewLimiter(rate.Limit(ratePerSec), ratePerSec),
	}
}

// SendText sends text to chatID, as HTML when html is set. Link previews are
// disabled so notifications stay compact.
func (t *Transport) SendText(ctx context.Context, chatID int64, text string, html bool) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return err
	}

	params := &bot.SendMessageParams{
		ChatID:             chatID,
		Text:               text,
		LinkPreviewOptions: &models.LinkPreviewOptions{IsDisabled: bot.True()},
	}
	if html {
		params.ParseMode = models.ParseModeHTML
	}

	if _, err := t.api.SendMessage(ctx, params); err != nil {
		return fmt.Errorf("send message to %d: %w", chatID, err)
	}
	return nil
}

// SendReply sends plain text to chatID as a reply to message replyTo.
func (t *Transport) SendReply(ctx context.Context, chatID int64, replyTo int, text string) error {
	if err := t.limiter.Wait(ctx); err != nil {
		return err
	}

	_, err := t.api.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:             chatID,
		Text:               text,
		ReplyParameters:    &models.ReplyParameters{MessageID: replyTo},
		LinkPreviewOptions: &models.LinkPreviewOptions{IsDisabled: bot.True()},
	})
	if err != nil {
		return fmt.Errorf("reply in %d: %w", chatID, err)
	}
	return nil
}

// SendFile uploads the file at path to chatID with a plain-text caption.
func (t *Transport) SendFile(ctx context.Context, chatID int64, path, caption string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	if err := t.limiter.Wait(ctx); err != nil {
		return err
	}

	_, err = t.api.SendDocument(ctx, &bot.SendDocumentParams{
		ChatID:   chatID,
		Document: &models.InputFileUpload{Filename: filepath.Base(path), Data: f},
		Caption:  caption,
	})
	if err != nil {
		return fmt.Errorf("send document to %d: %w", chatID, err)
	}
	return nil
}

// IsFloodControl reports whether err is a 429 Too Many Requests response.
func (t *Transport) IsFloodControl(err error) bool {
	var tooMany *bot.TooManyRequestsError
	return errors.As(err, &tooMany)
}
