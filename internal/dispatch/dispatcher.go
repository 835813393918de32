// Package dispatch delivers notifications to recipients while enforcing a
// per-recipient minimum interval and a global pause on flood control.
package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/edgard/keywatch/internal/config"
	"github.com/edgard/keywatch/internal/keylock"
)

// Sender is the outbound side of the chat transport.
type Sender interface {
	SendText(ctx context.Context, chatID int64, text string, html bool) error
	SendFile(ctx context.Context, chatID int64, path, caption string) error
	// SendReply sends plain text to chatID as a reply to message replyTo.
	SendReply(ctx context.Context, chatID int64, replyTo int, text string) error
	// IsFloodControl reports whether err means the platform wants us to slow down.
	IsFloodControl(err error) bool
}

// ErrBackoff is returned by SendText when the message was dropped because of
// flood control.
var ErrBackoff = errors.New("message dropped during flood control backoff")

// Result is the outcome of one send attempt.
type Result int

// Send outcomes.
const (
	Sent Result = iota
	Throttled
	Backoff
	Failed
)

func (r Result) String() string {
	switch r {
	case Sent:
		return "sent"
	case Throttled:
		return "throttled"
	case Backoff:
		return "backoff"
	case Failed:
		return "failed"
	}
	return "unknown"
}

// Stats summarizes dispatcher state.
type Stats struct {
	Recipients  int       `json:"recipients"`
	PausedUntil time.Time `json:"paused_until,omitzero"`
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithClock replaces time.Now for the flood gate.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.clock = now }
}

// WithSleep replaces the context-aware sleep used while paused.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(d *Dispatcher) { d.sleep = sleep }
}

// Dispatcher is safe for concurrent use. Sends to one recipient are
// serialized; sends to different recipients run in parallel unless the flood
// gate is closed.
type Dispatcher struct {
	sender      Sender
	log         *slog.Logger
	minInterval time.Duration
	backoff     time.Duration
	sendTimeout time.Duration

	locks *keylock.Map[int64]

	mu       sync.Mutex
	lastSent map[int64]time.Time

	gateMu      sync.Mutex
	pausedUntil time.Time

	clock func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// New creates a Dispatcher on top of sender.
func New(cfg config.DispatchConfig, sender Sender, log *slog.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		sender:      sender,
		log:         log.With("component", "dispatcher"),
		minInterval: cfg.MinInterval,
		backoff:     cfg.FloodBackoff,
		sendTimeout: cfg.SendTimeout,
		locks:       keylock.New[int64](),
		lastSent:    make(map[int64]time.Time),
		clock:       time.Now,
		sleep:       sleepContext,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Send delivers an HTML notification to recipient.
//
// It returns Throttled without contacting the platform when the last
// successful send to recipient was less than the minimum interval before
// now. On flood control the message is dropped, every sender is paused for
// the backoff duration, and Send itself blocks until the pause ends before
// returning Backoff. Only Sent updates the recipient's last-send time.
func (d *Dispatcher) Send(ctx context.Context, recipient int64, text string, now time.Time) (Result, error) {
	unlock := d.locks.Lock(recipient)
	defer unlock()

	if d.throttled(recipient, now) {
		d.log.DebugContext(ctx, "Notification throttled", "recipient", recipient)
		return Throttled, nil
	}

	if err := d.waitGate(ctx); err != nil {
		return Failed, err
	}

	err := d.withTimeout(ctx, func(ctx context.Context) error {
		return d.sender.SendText(ctx, recipient, text, true)
	})
	if err == nil {
		d.mu.Lock()
		d.lastSent[recipient] = now
		d.mu.Unlock()
		return Sent, nil
	}

	return d.failure(ctx, recipient, err)
}

// SendFile delivers a file with caption to chatID. It honors the flood gate
// but not the per-recipient interval.
func (d *Dispatcher) SendFile(ctx context.Context, chatID int64, path, caption string) (Result, error) {
	return d.gated(ctx, chatID, func(ctx context.Context) error {
		return d.sender.SendFile(ctx, chatID, path, caption)
	})
}

// Reply sends plain text to chatID as a reply to message replyTo. Like
// SendFile it honors the flood gate only.
func (d *Dispatcher) Reply(ctx context.Context, chatID int64, replyTo int, text string) (Result, error) {
	return d.gated(ctx, chatID, func(ctx context.Context) error {
		return d.sender.SendReply(ctx, chatID, replyTo, text)
	})
}

// SendText sends a service message, such as a lifecycle notice, through the
// flood gate. A message dropped by flood control yields ErrBackoff.
func (d *Dispatcher) SendText(ctx context.Context, chatID int64, text string, html bool) error {
	res, err := d.gated(ctx, chatID, func(ctx context.Context) error {
		return d.sender.SendText(ctx, chatID, text, html)
	})
	if err == nil && res == Backoff {
		return ErrBackoff
	}
	return err
}

// gated waits for the flood gate, then runs send under the send timeout.
func (d *Dispatcher) gated(ctx context.Context, chatID int64, send func(context.Context) error) (Result, error) {
	if err := d.waitGate(ctx); err != nil {
		return Failed, err
	}

	err := d.withTimeout(ctx, send)
	if err == nil {
		return Sent, nil
	}

	return d.failure(ctx, chatID, err)
}

// Reset forgets every recipient's last-send time.
func (d *Dispatcher) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastSent = make(map[int64]time.Time)
}

// Stats returns the number of tracked recipients and the current pause deadline.
func (d *Dispatcher) Stats() Stats {
	d.mu.Lock()
	n := len(d.lastSent)
	d.mu.Unlock()

	d.gateMu.Lock()
	defer d.gateMu.Unlock()

	s := Stats{Recipients: n}
	if d.pausedUntil.After(d.clock()) {
		s.PausedUntil = d.pausedUntil
	}
	return s
}

func (d *Dispatcher) throttled(recipient int64, now time.Time) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	last, ok := d.lastSent[recipient]
	return ok && now.Sub(last) < d.minInterval
}

func (d *Dispatcher) failure(ctx context.Context, chatID int64, err error) (Result, error) {
	if !d.sender.IsFloodControl(err) {
		d.log.ErrorContext(ctx, "Failed to send message", "chat_id", chatID, "error", err)
		return Failed, err
	}

	d.log.WarnContext(ctx, "Flood control, pausing all sends", "chat_id", chatID, "backoff", d.backoff, "error", err)
	d.pause()
	if err := d.sleep(ctx, d.backoff); err != nil {
		return Backoff, err
	}
	return Backoff, nil
}

// pause closes the gate for the backoff duration, extending a shorter pause.
func (d *Dispatcher) pause() {
	d.gateMu.Lock()
	defer d.gateMu.Unlock()
	if until := d.clock().Add(d.backoff); until.After(d.pausedUntil) {
		d.pausedUntil = until
	}
}

// waitGate blocks while a flood pause is in effect.
func (d *Dispatcher) waitGate(ctx context.Context) error {
	for {
		d.gateMu.Lock()
		remaining := d.pausedUntil.Sub(d.clock())
		d.gateMu.Unlock()

		if remaining <= 0 {
			return nil
		}
		if err := d.sleep(ctx, remaining); err != nil {
			return err
		}
	}
}

func (d *Dispatcher) withTimeout(ctx context.Context, fn func(context.Context) error) error {
	if d.sendTimeout <= 0 {
		return fn(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, d.sendTimeout)
	defer cancel()
	return fn(ctx)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
