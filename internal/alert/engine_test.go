package alert_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/goleak"

	"github.com/edgard/keywatch/internal/alert"
	"github.com/edgard/keywatch/internal/config"
	"github.com/edgard/keywatch/internal/database"
	"github.com/edgard/keywatch/internal/dispatch"
	"github.com/edgard/keywatch/internal/rules"
	"github.com/edgard/keywatch/internal/suppression"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

var discardLog = slog.New(slog.NewTextHandler(io.Discard, nil))

type delivery struct {
	chatID int64
	text   string
}

type fakeSender struct {
	mu        sync.Mutex
	delivered []delivery
}

func (f *fakeSender) SendText(_ context.Context, chatID int64, text string, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delivered = append(f.delivered, delivery{chatID: chatID, text: text})
	return nil
}

func (f *fakeSender) SendFile(context.Context, int64, string, string) error { return nil }

func (f *fakeSender) SendReply(context.Context, int64, int, string) error { return nil }

func (f *fakeSender) IsFloodControl(error) bool { return false }

type fakeJournal struct {
	mu     sync.Mutex
	alerts []*database.Alert
	err    error
}

func (j *fakeJournal) SaveAlert(_ context.Context, a *database.Alert) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.alerts = append(j.alerts, a)
	return j.err
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	engine  *alert.Engine
	sender  *fakeSender
	journal *fakeJournal
	cache   *suppression.Cache
	clock   *clock
}

func newFixture(t *testing.T, groups []config.GroupConfig) *fixture {
	t.Helper()

	f := &fixture{
		sender:  &fakeSender{},
		journal: &fakeJournal{},
		clock:   &clock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)},
	}
	f.cache = suppression.New(config.SuppressionConfig{CooldownMinutes: 5, SimilarityThreshold: 0.9}, nil, discardLog)
	d := dispatch.New(config.DispatchConfig{
		MinInterval:  time.Minute,
		FloodBackoff: 30 * time.Second,
		SendTimeout:  time.Second,
	}, f.sender, discardLog)

	f.engine = alert.NewEngine(alert.Deps{
		Groups:     rules.NewGroups(groups),
		Cache:      f.cache,
		Dispatcher: d,
		Journal:    f.journal,
		Clock:      f.clock.Now,
		Logger:     discardLog,
	})
	return f
}

var groupA = config.GroupConfig{
	Name:      "A",
	Chats:     []int64{-100123},
	Keywords:  []string{"ищу"},
	Recipient: 500,
}

func msg(sender int64, body string) alert.Message {
	return alert.Message{
		SenderID:     sender,
		SenderName:   "User",
		ChatID:       -100123,
		ChatTitle:    "Пхукет",
		ChatUsername: "phuket",
		MessageID:    int(sender),
		Text:         body,
	}
}

func TestProcess_Scenario(t *testing.T) {
	t.Parallel()

	f := newFixture(t, []config.GroupConfig{groupA})
	ctx := context.Background()

	r := f.engine.Process(ctx, msg(42, "Ищу водителя на завтра"))
	if !r.Decision.Admitted {
		t.Fatalf("first message not admitted: %+v", r.Decision)
	}
	if diff := cmp.Diff([]alert.Outcome{{Group: "A", Recipient: 500, Result: dispatch.Sent}}, r.Outcomes); diff != "" {
		t.Errorf("Outcomes mismatch (-want +got):\n%s", diff)
	}
	if len(f.sender.delivered) != 1 || f.sender.delivered[0].chatID != 500 {
		t.Fatalf("delivered = %+v, want one send to 500", f.sender.delivered)
	}
	want := dispatch.FormatNotification(dispatch.Notification{
		ChatTitle: "Пхукет", ChatUsername: "phuket", SenderID: 42, SenderName: "User", MessageID: 42,
		Text: "Ищу водителя на завтра",
	})
	if f.sender.delivered[0].text != want {
		t.Errorf("notification = %q, want %q", f.sender.delivered[0].text, want)
	}

	f.clock.Advance(time.Minute)
	r = f.engine.Process(ctx, msg(42, "Ищу водителя на завтра"))
	if r.Decision.Admitted || r.Decision.Reason != suppression.ReasonExact {
		t.Errorf("repeat from 42: Decision = %+v, want %q", r.Decision, suppression.ReasonExact)
	}

	f.clock.Advance(time.Second)
	r = f.engine.Process(ctx, msg(99, "Ищу водителя на завтра"))
	if !r.Decision.Admitted {
		t.Errorf("message from 99: Decision = %+v, want admitted", r.Decision)
	}

	if n := f.cache.Stats().Senders; n != 2 {
		t.Errorf("cache senders = %d, want 2", n)
	}
}

func TestProcess_ThrottledStillRecorded(t *testing.T) {
	t.Parallel()

	f := newFixture(t, []config.GroupConfig{groupA})
	ctx := context.Background()

	f.engine.Process(ctx, msg(1, "ищу байк"))
	f.clock.Advance(10 * time.Second)
	r := f.engine.Process(ctx, msg(2, "ищу квартиру"))

	if len(r.Outcomes) != 1 || r.Outcomes[0].Result != dispatch.Throttled {
		t.Fatalf("Outcomes = %+v, want one throttled", r.Outcomes)
	}
	if n := f.cache.Stats().Entries; n != 2 {
		t.Errorf("cache entries = %d, want 2", n)
	}

	got := make([]string, 0, len(f.journal.alerts))
	for _, a := range f.journal.alerts {
		got = append(got, a.Outcome)
	}
	if diff := cmp.Diff([]string{"sent", "throttled"}, got); diff != "" {
		t.Errorf("journal outcomes mismatch (-want +got):\n%s", diff)
	}
	if a := f.journal.alerts[1]; a.ID == "" || a.Text != "ищу квартиру" || a.GroupName != "A" {
		t.Errorf("journal record = %+v, want id, normalized text and group", a)
	}
}

func TestProcess_SharedRecipientNotifiedOnce(t *testing.T) {
	t.Parallel()

	groupB := groupA
	groupB.Name = "B"
	groupB.Keywords = []string{"водител"}

	f := newFixture(t, []config.GroupConfig{groupA, groupB})
	r := f.engine.Process(context.Background(), msg(42, "Ищу водителя"))

	if diff := cmp.Diff([]string{"A", "B"}, r.Matched); diff != "" {
		t.Errorf("Matched mismatch (-want +got):\n%s", diff)
	}
	if len(r.Outcomes) != 1 || len(f.sender.delivered) != 1 {
		t.Errorf("outcomes = %d, delivered = %d; want 1 and 1", len(r.Outcomes), len(f.sender.delivered))
	}
}

func TestProcess_Ignored(t *testing.T) {
	t.Parallel()

	f := newFixture(t, []config.GroupConfig{groupA})
	ctx := context.Background()

	bot := msg(7, "ищу водителя")
	bot.SenderIsBot = true

	for name, m := range map[string]alert.Message{
		"Bot sender": bot,
		"Empty text": msg(7, "   "),
		"No keyword": msg(7, "продам скутер"),
		"Other chat": {SenderID: 7, ChatID: -1, Text: "ищу водителя"},
	} {
		r := f.engine.Process(ctx, m)
		if len(r.Outcomes) != 0 {
			t.Errorf("%s: Outcomes = %+v, want none", name, r.Outcomes)
		}
	}

	if s := f.cache.Stats(); s.Entries != 0 {
		t.Errorf("cache entries = %d, want 0", s.Entries)
	}
	if len(f.sender.delivered) != 0 {
		t.Errorf("delivered = %d, want 0", len(f.sender.delivered))
	}
}

func TestProcess_JournalFailureIgnored(t *testing.T) {
	t.Parallel()

	f := newFixture(t, []config.GroupConfig{groupA})
	f.journal.err = errors.New("disk full")

	r := f.engine.Process(context.Background(), msg(42, "ищу водителя"))
	if len(r.Outcomes) != 1 || r.Outcomes[0].Result != dispatch.Sent {
		t.Errorf("Outcomes = %+v, want one sent", r.Outcomes)
	}
}

func TestProcess_ConcurrentSameSender(t *testing.T) {
	t.Parallel()

	f := newFixture(t, []config.GroupConfig{groupA})

	var wg sync.WaitGroup
	var mu sync.Mutex
	admitted := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			r := f.engine.Process(context.Background(), msg(42, "ищу "+strings.Repeat("а", i+1)))
			if r.Decision.Admitted {
				mu.Lock()
				admitted++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	if admitted != 1 {
		t.Errorf("admitted = %d, want 1 within the cooldown", admitted)
	}
}
