// Package alert runs incoming chat messages through keyword matching,
// duplicate suppression and throttled dispatch.
package alert

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/edgard/keywatch/internal/database"
	"github.com/edgard/keywatch/internal/dispatch"
	"github.com/edgard/keywatch/internal/rules"
	"github.com/edgard/keywatch/internal/suppression"
	"github.com/edgard/keywatch/internal/text"
)

// Message is an incoming chat message.
type Message struct {
	SenderID     int64
	SenderName   string
	SenderIsBot  bool
	ChatID       int64
	ChatTitle    string
	ChatUsername string
	MessageID    int
	Text         string
}

// Notifier delivers rendered notifications.
type Notifier interface {
	Send(ctx context.Context, recipient int64, text string, now time.Time) (dispatch.Result, error)
}

// Journal records dispatch outcomes.
type Journal interface {
	SaveAlert(ctx context.Context, alert *database.Alert) error
}

// Outcome is the dispatch result for one matched group.
type Outcome struct {
	Group     string
	Recipient int64
	Result    dispatch.Result
	Err       error
}

// Report describes what Process did with a message.
type Report struct {
	Normalized string
	Matched    []string
	Decision   suppression.Decision
	Outcomes   []Outcome
}

// Deps holds the Engine collaborators. Journal and Clock are optional.
type Deps struct {
	Groups     []*rules.Group
	Cache      *suppression.Cache
	Dispatcher Notifier
	Journal    Journal
	Location   *time.Location
	Clock      func() time.Time
	Logger     *slog.Logger
}

// Engine is safe for concurrent use; messages from one sender are processed
// one at a time.
type Engine struct {
	groups     []*rules.Group
	cache      *suppression.Cache
	dispatcher Notifier
	journal    Journal
	loc        *time.Location
	clock      func() time.Time
	log        *slog.Logger
}

// NewEngine creates an Engine.
func NewEngine(deps Deps) *Engine {
	e := &Engine{
		groups:     deps.Groups,
		cache:      deps.Cache,
		dispatcher: deps.Dispatcher,
		journal:    deps.Journal,
		loc:        deps.Location,
		clock:      deps.Clock,
		log:        deps.Logger.With("component", "alert"),
	}
	if e.loc == nil {
		e.loc = time.UTC
	}
	if e.clock == nil {
		e.clock = time.Now
	}
	return e
}

// Process evaluates msg and notifies the recipient of every matched group.
//
// Suppression is decided once per message for its sender. An admitted
// message enters the sender's history whatever the dispatch results were.
// Groups sharing a recipient produce a single notification.
func (e *Engine) Process(ctx context.Context, msg Message) Report {
	if msg.SenderIsBot || strings.TrimSpace(msg.Text) == "" {
		return Report{}
	}

	normalized := text.Normalize(msg.Text)
	matched := rules.Classify(rules.Message{SenderID: msg.SenderID, ChatID: msg.ChatID, Text: msg.Text}, normalized, e.groups)

	report := Report{Normalized: normalized}
	if len(matched) == 0 {
		return report
	}
	for _, g := range matched {
		report.Matched = append(report.Matched, g.Name)
	}

	unlock := e.cache.Lock(msg.SenderID)
	defer unlock()

	now := e.clock().In(e.loc)
	report.Decision = e.cache.Admit(ctx, msg.SenderID, normalized, now)
	if !report.Decision.Admitted {
		e.log.InfoContext(ctx, "Message suppressed",
			"sender_id", msg.SenderID, "chat_id", msg.ChatID, "reason", report.Decision.Reason,
			"text", text.Preview(msg.Text, 80))
		return report
	}

	e.log.InfoContext(ctx, "Message matched",
		"sender_id", msg.SenderID, "chat_id", msg.ChatID, "chat", msg.ChatTitle,
		"groups", report.Matched, "text", text.Preview(msg.Text, 80))

	body := dispatch.FormatNotification(dispatch.Notification{
		ChatTitle:    msg.ChatTitle,
		ChatUsername: msg.ChatUsername,
		SenderID:     msg.SenderID,
		SenderName:   msg.SenderName,
		MessageID:    msg.MessageID,
		Text:         msg.Text,
	})

	notified := make(map[int64]struct{}, len(matched))
	for _, g := range matched {
		if _, done := notified[g.Recipient]; done {
			continue
		}
		notified[g.Recipient] = struct{}{}

		res, err := e.dispatcher.Send(ctx, g.Recipient, body, now)
		report.Outcomes = append(report.Outcomes, Outcome{Group: g.Name, Recipient: g.Recipient, Result: res, Err: err})
	}

	e.cache.Record(msg.SenderID, normalized, now, report.Decision.Embedding)

	e.writeJournal(ctx, msg, normalized, now, report.Outcomes)
	return report
}

func (e *Engine) writeJournal(ctx context.Context, msg Message, normalized string, now time.Time, outcomes []Outcome) {
	if e.journal == nil {
		return
	}
	for _, o := range outcomes {
		a := &database.Alert{
			ID:        uuid.NewString(),
			GroupName: o.Group,
			Recipient: o.Recipient,
			SenderID:  msg.SenderID,
			ChatID:    msg.ChatID,
			MessageID: msg.MessageID,
			Text:      normalized,
			Outcome:   o.Result.String(),
			CreatedAt: now,
		}
		if o.Err != nil {
			a.Error = o.Err.Error()
		}
		if err := e.journal.SaveAlert(ctx, a); err != nil {
			e.log.WarnContext(ctx, "Failed to journal alert", "group", o.Group, "error", err)
		}
	}
}
