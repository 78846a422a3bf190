// Package relay implements the conversation engine: the per-dialog
// active/stopped state machine, the pending-message buffer, and the AI
// reply pipeline that connects them to the CRM chat.
package relay

import "time"

// Actor identifies who sent an inbound event.
type Actor string

const (
	// ActorCustomer is the person chatting with the bot.
	ActorCustomer Actor = "customer"
	// ActorStaff is a support operator replying inside the CRM.
	ActorStaff Actor = "staff"
	// ActorSystem marks internally generated events, such as escalated
	// buffers replayed by the takeover monitor.
	ActorSystem Actor = "system"
)

// Event is a normalized inbound chat event, produced by the webhook layer
// after vendor-specific parsing.
type Event struct {
	DialogID  string
	Actor     Actor
	UserID    string
	IsCommand bool // out-of-band staff instruction, not shown to the customer
	Text      string
	Timestamp time.Time
}

// Outcome describes how the router disposed of an event.
type Outcome string

const (
	// OutcomeCommand means a control command was recognized and applied.
	OutcomeCommand Outcome = "command"
	// OutcomeIgnored means the event carried no work (empty text, unknown
	// command, staff reply with no buffer).
	OutcomeIgnored Outcome = "ignored"
	// OutcomeTouched means a staff reply restarted the escalation countdown.
	OutcomeTouched Outcome = "touched"
	// OutcomeBuffered means a customer message was appended to the
	// pending buffer instead of being answered.
	OutcomeBuffered Outcome = "buffered"
	// OutcomeReplied means the AI pipeline handled the message.
	OutcomeReplied Outcome = "replied"
)
