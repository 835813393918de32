// Package offer implements the reply-triggered command that sends a canned
// offer file to the author of an earlier notification.
package offer

import (
	"context"
	"log/slog"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/edgard/keywatch/internal/config"
	"github.com/edgard/keywatch/internal/dispatch"
	"github.com/edgard/keywatch/internal/text"
)

// Entity types that can carry the author of a notification.
const (
	EntityTextLink    = "text_link"
	EntityTextMention = "text_mention"
)

var authorURL = regexp.MustCompile(`tg://user\?id=(\d+)`)

// Entity is a formatting entity of the replied-to message.
type Entity struct {
	Type   string
	URL    string
	UserID int64
}

// Reply is the message a command replies to.
type Reply struct {
	Text     string
	Entities []Entity
}

// Command is an incoming message that starts with an offer phrase.
type Command struct {
	SenderID int64
	ChatID   int64
	Text     string
	Reply    *Reply
}

// Status is the outcome of a command.
type Status string

// Command outcomes.
const (
	StatusNotReply Status = "not_reply"
	StatusNoAuthor Status = "no_author"
	StatusEmpty    Status = "empty_description"
	StatusFailed   Status = "send_failed"
	StatusSent     Status = "sent"
)

// Result tells the caller what to acknowledge to the commanding user.
type Result struct {
	Status   Status
	Ack      string
	AuthorID int64
}

// FileSender delivers the offer file.
type FileSender interface {
	SendFile(ctx context.Context, chatID int64, path, caption string) (dispatch.Result, error)
}

// Handler matches and executes offer commands.
type Handler struct {
	phrases     []config.OfferPhrase
	messages    config.OfferMessages
	isRecipient func(int64) bool
	files       FileSender
	log         *slog.Logger
}

// NewHandler creates a Handler. Only users for which isRecipient returns true
// may issue commands.
func NewHandler(cfg config.OfferConfig, isRecipient func(int64) bool, files FileSender, log *slog.Logger) *Handler {
	phrases := make([]config.OfferPhrase, len(cfg.Phrases))
	copy(phrases, cfg.Phrases)
	// Longest first so a phrase never shadows a longer one it prefixes.
	sort.SliceStable(phrases, func(i, j int) bool {
		return utf8.RuneCountInString(phrases[i].Phrase) > utf8.RuneCountInString(phrases[j].Phrase)
	})

	return &Handler{
		phrases:     phrases,
		messages:    cfg.Messages,
		isRecipient: isRecipient,
		files:       files,
		log:         log.With("component", "offer"),
	}
}

// Match reports whether a message from senderID is an offer command.
func (h *Handler) Match(senderID int64, text string) bool {
	if len(h.phrases) == 0 || !h.isRecipient(senderID) {
		return false
	}
	_, _, ok := h.phrase(text)
	return ok
}

// Handle executes cmd. Errors are reported through the returned Result.
func (h *Handler) Handle(ctx context.Context, cmd Command) Result {
	p, rest, ok := h.phrase(cmd.Text)
	if !ok {
		return Result{}
	}

	if cmd.Reply == nil {
		return Result{Status: StatusNotReply, Ack: h.messages.NotReply}
	}

	author, ok := AuthorID(*cmd.Reply)
	if !ok {
		return Result{Status: StatusNoAuthor, Ack: h.messages.NoAuthor}
	}

	description := strings.TrimSpace(rest)
	if description == "" {
		return Result{Status: StatusEmpty, Ack: h.messages.EmptyDescription, AuthorID: author}
	}

	caption := text.TruncateUTF16(strings.ReplaceAll(p.Template, "{offer}", description), dispatch.MaxCaptionLength)
	if res, err := h.files.SendFile(ctx, author, p.File, caption); err != nil || res != dispatch.Sent {
		h.log.WarnContext(ctx, "Failed to send offer", "author_id", author, "phrase", p.Phrase, "result", res, "error", err)
		return Result{Status: StatusFailed, Ack: h.messages.SendFailed, AuthorID: author}
	}

	h.log.InfoContext(ctx, "Offer sent", "author_id", author, "phrase", p.Phrase, "by", cmd.SenderID)
	return Result{Status: StatusSent, Ack: h.messages.Sent, AuthorID: author}
}

// AuthorID finds the author of a notification: a text link to a user
// profile, then a text mention, then a profile link inside the text.
func AuthorID(r Reply) (int64, bool) {
	for _, e := range r.Entities {
		if e.Type != EntityTextLink {
			continue
		}
		if id, ok := parseAuthorURL(e.URL); ok {
			return id, true
		}
	}
	for _, e := range r.Entities {
		if e.Type == EntityTextMention && e.UserID != 0 {
			return e.UserID, true
		}
	}
	return parseAuthorURL(r.Text)
}

func parseAuthorURL(s string) (int64, bool) {
	m := authorURL.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

func (h *Handler) phrase(text string) (config.OfferPhrase, string, bool) {
	text = strings.TrimLeft(text, " \t\n")
	for _, p := range h.phrases {
		if rest, ok := cutPrefixFold(text, p.Phrase); ok {
			return p, rest, true
		}
	}
	return config.OfferPhrase{}, "", false
}

// cutPrefixFold is strings.CutPrefix with Unicode case folding.
func cutPrefixFold(s, prefix string) (string, bool) {
	i := 0
	for _, pr := range prefix {
		if i >= len(s) {
			return "", false
		}
		sr, size := utf8.DecodeRuneInString(s[i:])
		if !strings.EqualFold(string(sr), string(pr)) {
			return "", false
		}
		i += size
	}
	return s[i:], true
}
