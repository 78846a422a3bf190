package relay

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/zulandar/switchboard/internal/models"
	"github.com/zulandar/switchboard/internal/notify"
	"github.com/zulandar/switchboard/internal/store"
	"gorm.io/gorm"
)

// Router classifies inbound events and decides whether to answer via the
// AI pipeline, buffer the message for a silenced conversation, or restart
// the escalation countdown on staff activity. The router never mutates a
// conversation's status; only control commands and the takeover monitor do.
type Router struct {
	db       *gorm.DB
	pipeline *Pipeline
	notifier notify.Notifier // optional
	out      io.Writer
	now      func() time.Time
}

// RouterOpts holds parameters for creating a Router.
type RouterOpts struct {
	DB       *gorm.DB
	Pipeline *Pipeline
	Notifier notify.Notifier // optional; staff alerts on takeover start
	Out      io.Writer       // defaults to os.Stdout
	Now      func() time.Time // defaults to time.Now; injectable for tests
}

// NewRouter creates a Router.
func NewRouter(opts RouterOpts) (*Router, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("relay: router: db is required")
	}
	if opts.Pipeline == nil {
		return nil, fmt.Errorf("relay: router: pipeline is required")
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Router{
		db:       opts.DB,
		pipeline: opts.Pipeline,
		notifier: opts.Notifier,
		out:      out,
		now:      now,
	}, nil
}

// Handle routes a single inbound event. Routing paths:
//  1. Control command → interpreter, terminal
//  2. Empty/whitespace text → ignore
//  3. Staff with a pending buffer → restart countdown; without → ignore
//  4. Customer, conversation stopped → append to buffer
//  5. Customer, conversation active → AI pipeline
//  6. System (escalation replay) → AI pipeline, status bypassed
func (r *Router) Handle(ctx context.Context, ev Event) (Outcome, error) {
	if ev.DialogID == "" {
		return OutcomeIgnored, fmt.Errorf("relay: router: event without dialog ID")
	}

	if ev.IsCommand {
		return r.handleCommand(ctx, ev)
	}

	text := strings.TrimSpace(ev.Text)
	if text == "" {
		fmt.Fprintf(r.out, "relay: router: %s: empty message dropped\n", ev.DialogID)
		return OutcomeIgnored, nil
	}

	switch ev.Actor {
	case ActorStaff:
		touched, err := store.TouchBuffer(r.db, ev.DialogID, r.now())
		if err != nil {
			return OutcomeIgnored, fmt.Errorf("relay: router: %w", err)
		}
		if !touched {
			// No buffer means no countdown to restart.
			return OutcomeIgnored, nil
		}
		fmt.Fprintf(r.out, "relay: router: %s: staff replied, countdown restarted\n", ev.DialogID)
		return OutcomeTouched, nil

	case ActorCustomer:
		conv, err := store.GetOrCreateConversation(r.db, ev.DialogID)
		if err != nil {
			return OutcomeIgnored, fmt.Errorf("relay: router: %w", err)
		}
		if conv.Status == models.StatusStopped {
			if err := store.AppendBuffer(r.db, ev.DialogID, text, ev.UserID, r.now()); err != nil {
				return OutcomeIgnored, fmt.Errorf("relay: router: %w", err)
			}
			fmt.Fprintf(r.out, "relay: router: %s: buffered (human takeover)\n", ev.DialogID)
			return OutcomeBuffered, nil
		}
		if _, err := r.pipeline.Invoke(ctx, ev.DialogID, text); err != nil {
			return OutcomeIgnored, err
		}
		return OutcomeReplied, nil

	case ActorSystem:
		// Escalation replays must reach the AI even while stopped;
		// they are the mechanism that re-engages the bot.
		if _, err := r.pipeline.Invoke(ctx, ev.DialogID, text); err != nil {
			return OutcomeIgnored, err
		}
		return OutcomeReplied, nil

	default:
		return OutcomeIgnored, fmt.Errorf("relay: router: unknown actor %q", ev.Actor)
	}
}

// handleCommand runs the control interpreter and posts a staff alert when
// a takeover begins.
func (r *Router) handleCommand(ctx context.Context, ev Event) (Outcome, error) {
	handled, err := HandleControl(r.db, ev)
	if err != nil {
		return OutcomeIgnored, err
	}
	if !handled {
		fmt.Fprintf(r.out, "relay: router: %s: unknown command %q ignored\n", ev.DialogID, ev.Text)
		return OutcomeIgnored, nil
	}

	fmt.Fprintf(r.out, "relay: router: %s: control %q applied\n", ev.DialogID, normalizeCommand(ev.Text))

	if r.notifier != nil && controlCommands[normalizeCommand(ev.Text)] == models.StatusStopped {
		r.notifier.Post(ctx, notify.Event{
			Title:    fmt.Sprintf("Human takeover started for %s", ev.DialogID),
			Body:     "Automatic replies are paused. Customer messages will be buffered until staff respond or the escalation timeout fires.",
			Severity: notify.SeverityInfo,
		})
	}
	return OutcomeCommand, nil
}
