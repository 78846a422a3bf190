// Package monitor runs the takeover escalation loop: it scans for pending
// buffers whose staff-silence countdown expired and replays them through
// the relay as consolidated system messages, re-engaging the bot.
package monitor

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/zulandar/switchboard/internal/models"
	"github.com/zulandar/switchboard/internal/notify"
	"github.com/zulandar/switchboard/internal/relay"
	"github.com/zulandar/switchboard/internal/store"
	"gorm.io/gorm"
)

const (
	defaultTimeout      = 60 * time.Minute
	defaultPollInterval = 60 * time.Second
)

// Monitor periodically flushes overdue pending buffers through the relay.
// One Monitor runs per process; scans never overlap.
type Monitor struct {
	db           *gorm.DB
	router       *relay.Router
	timeout      time.Duration
	pollInterval time.Duration
	preface      string
	digestCron   string
	notifier     notify.Notifier
	out          io.Writer
	now          func() time.Time
}

// Opts holds parameters for creating a Monitor.
type Opts struct {
	DB           *gorm.DB
	Router       *relay.Router
	Timeout      time.Duration // staff silence before escalation; default 60m
	PollInterval time.Duration // scan period; default 60s
	Preface      string        // prepended to consolidated messages
	DigestCron   string        // 5-field cron for the daily digest; empty disables
	Notifier     notify.Notifier // optional; staff alerts on escalation and digest
	Out          io.Writer       // defaults to os.Stdout
	Now          func() time.Time // defaults to time.Now; injectable for tests
}

// New creates a Monitor.
func New(opts Opts) (*Monitor, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("monitor: db is required")
	}
	if opts.Router == nil {
		return nil, fmt.Errorf("monitor: router is required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = defaultPollInterval
	}
	if opts.Preface == "" {
		opts.Preface = "The customer sent the following messages while waiting for a human reply:"
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Monitor{
		db:           opts.DB,
		router:       opts.Router,
		timeout:      opts.Timeout,
		pollInterval: opts.PollInterval,
		preface:      opts.Preface,
		digestCron:   opts.DigestCron,
		notifier:     opts.Notifier,
		out:          out,
		now:          now,
	}, nil
}

// Run executes the escalation loop until the context is cancelled. Failures
// inside a single sweep are logged and never stop the loop.
func (m *Monitor) Run(ctx context.Context) error {
	fmt.Fprintf(m.out, "Monitor starting (poll every %s, timeout %s)...\n", m.pollInterval, m.timeout)

	for {
		select {
		case <-ctx.Done():
			fmt.Fprintf(m.out, "Monitor stopped.\n")
			return nil
		default:
		}

		if _, err := m.Sweep(ctx); err != nil {
			log.Printf("monitor: sweep: %v", err)
		}

		sleepWithContext(ctx, m.pollInterval)
	}
}

// Sweep performs one escalation scan: every buffer whose countdown expired
// at or before now−timeout is flushed. A buffer that fails to flush stays
// in place for the next sweep; the scan continues across the rest.
func (m *Monitor) Sweep(ctx context.Context) (int, error) {
	cutoff := m.now().Add(-m.timeout)

	overdue, err := store.ListOverdueBuffers(m.db, cutoff)
	if err != nil {
		return 0, fmt.Errorf("monitor: %w", err)
	}

	flushed := 0
	for _, buf := range overdue {
		if err := m.flush(ctx, buf); err != nil {
			log.Printf("monitor: flush %s: %v", buf.DialogID, err)
			continue
		}
		flushed++
	}
	return flushed, nil
}

// flush escalates a single overdue buffer: the accumulated messages are
// consolidated under the preface and replayed through the relay as a
// system event, then the conversation is reactivated and the buffer
// deleted. The delete is guarded on the text that was escalated — a
// customer message appended during the AI call keeps the row alive for
// the next sweep instead of being silently dropped. Any failure leaves
// the buffer untouched; a crash between the AI call and cleanup at worst
// repeats the escalation, never loses it.
func (m *Monitor) flush(ctx context.Context, buf models.PendingBuffer) error {
	consolidated := m.preface + "\n\n" + buf.AccumulatedText

	if _, err := m.router.Handle(ctx, relay.Event{
		DialogID:  buf.DialogID,
		Actor:     relay.ActorSystem,
		UserID:    buf.OriginUserID,
		Text:      consolidated,
		Timestamp: m.now(),
	}); err != nil {
		return err
	}

	if err := store.SetStatus(m.db, buf.DialogID, models.StatusActive); err != nil {
		return err
	}
	deleted, err := store.DeleteBufferIfUnchanged(m.db, buf.ID, buf.AccumulatedText)
	if err != nil {
		return err
	}
	if !deleted {
		fmt.Fprintf(m.out, "Buffer for %s grew during escalation, keeping it for the next sweep\n", buf.DialogID)
	}

	waited := m.now().Sub(buf.LastTouchedAt).Round(time.Minute)
	fmt.Fprintf(m.out, "Escalated %s after %s of staff silence\n", buf.DialogID, waited)

	if m.notifier != nil {
		m.notifier.Post(ctx, notify.Event{
			Title:    fmt.Sprintf("Buffered messages escalated for %s", buf.DialogID),
			Body:     fmt.Sprintf("Staff did not reply for %s; the AI has taken the conversation back.", waited),
			Severity: notify.SeverityWarning,
		})
	}
	return nil
}

// sleepWithContext sleeps for duration d, returning early if ctx is cancelled.
func sleepWithContext(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
