package telegram_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/edgard/keywatch/internal/telegram"
)

type fakeAPI struct {
	messages  []*bot.SendMessageParams
	documents []*bot.SendDocumentParams
	uploaded  string
	err       error
}

func (f *fakeAPI) SendMessage(_ context.Context, p *bot.SendMessageParams) (*models.Message, error) {
	f.messages = append(f.messages, p)
	return &models.Message{}, f.err
}

func (f *fakeAPI) SendDocument(_ context.Context, p *bot.SendDocumentParams) (*models.Message, error) {
	f.documents = append(f.documents, p)
	if up, ok := p.Document.(*models.InputFileUpload); ok {
		data, _ := io.ReadAll(up.Data)
		f.uploaded = string(data)
	}
	return &models.Message{}, f.err
}

func TestSendText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		html      bool
		parseMode models.ParseMode
	}{
		{name: "HTML", html: true, parseMode: models.ParseModeHTML},
		{name: "Plain", html: false, parseMode: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			api := &fakeAPI{}
			tr := telegram.NewTransport(api, 30)
			if err := tr.SendText(context.Background(), 42, "<b>hi</b>", tt.html); err != nil {
				t.Fatalf("SendText() error = %v", err)
			}
			if len(api.messages) != 1 {
				t.Fatalf("SendMessage calls = %d, want 1", len(api.messages))
			}
			p := api.messages[0]
			if p.ChatID != int64(42) || p.Text != "<b>hi</b>" || p.ParseMode != tt.parseMode {
				t.Errorf("params = %+v, want chat 42, text and parse mode %q", p, tt.parseMode)
			}
		})
	}
}

func TestSendText_Error(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{err: &bot.TooManyRequestsError{Message: "Too Many Requests", RetryAfter: 5}}
	tr := telegram.NewTransport(api, 30)

	err := tr.SendText(context.Background(), 1, "x", false)
	if err == nil {
		t.Fatal("SendText() error = nil, want error")
	}
	if !tr.IsFloodControl(err) {
		t.Errorf("IsFloodControl(%v) = false, want true", err)
	}
}

func TestSendReply(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{}
	tr := telegram.NewTransport(api, 30)
	if err := tr.SendReply(context.Background(), 42, 7, "<ok>"); err != nil {
		t.Fatalf("SendReply() error = %v", err)
	}
	if len(api.messages) != 1 {
		t.Fatalf("SendMessage calls = %d, want 1", len(api.messages))
	}
	p := api.messages[0]
	if p.ChatID != int64(42) || p.Text != "<ok>" || p.ParseMode != "" {
		t.Errorf("params = %+v, want plain text to chat 42", p)
	}
	if p.ReplyParameters == nil || p.ReplyParameters.MessageID != 7 {
		t.Errorf("ReplyParameters = %+v, want message 7", p.ReplyParameters)
	}
}

func TestSendFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "offer.pdf")
	if err := os.WriteFile(path, []byte("PDF"), 0o600); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	api := &fakeAPI{}
	tr := telegram.NewTransport(api, 30)
	if err := tr.SendFile(context.Background(), 7, path, "Здравствуйте"); err != nil {
		t.Fatalf("SendFile() error = %v", err)
	}

	if len(api.documents) != 1 {
		t.Fatalf("SendDocument calls = %d, want 1", len(api.documents))
	}
	if p := api.documents[0]; p.ChatID != int64(7) || p.Caption != "Здравствуйте" {
		t.Errorf("params = %+v, want chat 7 and caption", p)
	}
	if api.uploaded != "PDF" {
		t.Errorf("uploaded = %q, want PDF", api.uploaded)
	}
}

func TestSendFile_MissingFile(t *testing.T) {
	t.Parallel()

	api := &fakeAPI{}
	tr := telegram.NewTransport(api, 30)
	if err := tr.SendFile(context.Background(), 7, filepath.Join(t.TempDir(), "absent.pdf"), ""); err == nil {
		t.Error("SendFile() error = nil, want error")
	}
	if len(api.documents) != 0 {
		t.Errorf("SendDocument calls = %d, want 0", len(api.documents))
	}
}

func TestIsFloodControl(t *testing.T) {
	t.Parallel()

	tr := telegram.NewTransport(&fakeAPI{}, 1)

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "Nil", err: nil, want: false},
		{name: "Plain", err: errors.New("bad request"), want: false},
		{name: "Too many requests", err: &bot.TooManyRequestsError{RetryAfter: 3}, want: true},
		{name: "Wrapped", err: fmt.Errorf("send: %w", &bot.TooManyRequestsError{RetryAfter: 3}), want: true},
	}

	for _, tt := range tests {
		if got := tr.IsFloodControl(tt.err); got != tt.want {
			t.Errorf("%s: IsFloodControl() = %v, want %v", tt.name, got, tt.want)
		}
	}
}
