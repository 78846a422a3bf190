package relay

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/zulandar/switchboard/internal/store"
	"gorm.io/gorm"
)

// Responder produces AI replies. sessionRef is the responder's own
// conversation reference; pass empty for a new session. The returned ref
// is cached on the conversation for subsequent calls.
type Responder interface {
	Ask(ctx context.Context, sessionRef, text string) (reply, newRef string, err error)
}

// Sink delivers a reply into the customer-facing chat.
type Sink interface {
	SendMessage(ctx context.Context, dialogID, text string) error
}

// Pipeline wires a single message through the AI responder and back out to
// the chat. It performs no retries; upstream failures surface to the caller
// with no state mutated, so a later retry or escalation pass still works.
type Pipeline struct {
	db        *gorm.DB
	responder Responder
	sink      Sink
	out       io.Writer
}

// PipelineOpts holds parameters for creating a Pipeline.
type PipelineOpts struct {
	DB        *gorm.DB
	Responder Responder
	Sink      Sink
	Out       io.Writer // defaults to os.Stdout
}

// NewPipeline creates a Pipeline.
func NewPipeline(opts PipelineOpts) (*Pipeline, error) {
	if opts.DB == nil {
		return nil, fmt.Errorf("relay: pipeline: db is required")
	}
	if opts.Responder == nil {
		return nil, fmt.Errorf("relay: pipeline: responder is required")
	}
	if opts.Sink == nil {
		return nil, fmt.Errorf("relay: pipeline: sink is required")
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	return &Pipeline{
		db:        opts.DB,
		responder: opts.Responder,
		sink:      opts.Sink,
		out:       out,
	}, nil
}

// Invoke sends text to the AI responder for a dialog and forwards any
// non-empty reply to the chat sink. The responder's session reference is
// resolved from the conversation record and lazily created on first use.
func (p *Pipeline) Invoke(ctx context.Context, dialogID, text string) (string, error) {
	conv, err := store.GetOrCreateConversation(p.db, dialogID)
	if err != nil {
		return "", fmt.Errorf("relay: pipeline %s: %w", dialogID, err)
	}

	reply, ref, err := p.responder.Ask(ctx, conv.SessionRef, text)
	if err != nil {
		return "", fmt.Errorf("relay: pipeline %s: responder: %w", dialogID, err)
	}

	if ref != "" && ref != conv.SessionRef {
		// The session ref is a cache; a failed write costs one extra
		// session on the next message, not a lost reply.
		if err := store.SetSessionRef(p.db, dialogID, ref); err != nil {
			log.Printf("relay: pipeline %s: cache session ref: %v", dialogID, err)
		}
	}

	if reply == "" {
		fmt.Fprintf(p.out, "relay: pipeline %s: empty reply, nothing to send\n", dialogID)
		return "", nil
	}

	if err := p.sink.SendMessage(ctx, dialogID, reply); err != nil {
		return "", fmt.Errorf("relay: pipeline %s: sink: %w", dialogID, err)
	}
	return reply, nil
}
