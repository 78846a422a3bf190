package webhook

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/switchboard/internal/models"
	"github.com/zulandar/switchboard/internal/relay"
	"github.com/zulandar/switchboard/internal/store"
)

// botEvent is the Bitrix24 imbot webhook payload. Only the fields the
// relay needs are decoded; ids arrive as strings or numbers depending on
// the portal version.
type botEvent struct {
	Event string       `json:"event"`
	Data  botEventData `json:"data"`
}

type botEventData struct {
	Params botEventParams `json:"PARAMS"`
	User   botEventUser   `json:"USER"`
}

type botEventParams struct {
	DialogID   jsonString `json:"DIALOG_ID"`
	Message    string     `json:"MESSAGE"`
	FromUserID jsonString `json:"FROM_USER_ID"`
}

type botEventUser struct {
	ID          jsonString `json:"ID"`
	IsConnector string     `json:"IS_CONNECTOR"` // "Y" for open-channel customers
	IsExtranet  string     `json:"IS_EXTRANET"`
}

// handleBitrixEvent translates one Bitrix bot event into a relay event.
// Malformed or irrelevant payloads are acknowledged with status "ignored";
// Bitrix retries on non-2xx, and a payload we cannot parse today will not
// parse on retry either.
func (h *handler) handleBitrixEvent(c *gin.Context) {
	var payload botEvent
	if err := c.ShouldBindJSON(&payload); err != nil {
		fmt.Fprintf(h.out, "webhook: malformed event payload dropped: %v\n", err)
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	switch payload.Event {
	case "ONIMBOTMESSAGEADD":
		h.handleMessageAdd(c, payload)
	case "ONIMBOTJOINCHAT", "ONAPPINSTALL":
		// Registration traffic, nothing to route.
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	default:
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
	}
}

func (h *handler) handleMessageAdd(c *gin.Context, payload botEvent) {
	dialogID := string(payload.Data.Params.DialogID)
	if dialogID == "" || payload.Data.Params.Message == "" {
		c.JSON(http.StatusOK, gin.H{"status": "ignored"})
		return
	}

	ev := relay.Event{
		DialogID:  dialogID,
		Actor:     eventActor(payload.Data.User),
		UserID:    string(payload.Data.User.ID),
		Text:      payload.Data.Params.Message,
		Timestamp: time.Now(),
	}
	if ev.UserID == "" {
		ev.UserID = string(payload.Data.Params.FromUserID)
	}
	if ev.Actor == relay.ActorStaff && relay.IsControlCommand(ev.Text) {
		ev.IsCommand = true
	}

	if ev.Actor == relay.ActorCustomer {
		h.enrichIdentity(c, ev)
	}

	outcome, err := h.router.Handle(c.Request.Context(), ev)
	if err != nil {
		fmt.Fprintf(h.out, "webhook: %s: %v\n", dialogID, err)
		c.JSON(http.StatusBadGateway, gin.H{"status": "error"})
		return
	}

	if ev.IsCommand {
		h.updateLeadFlag(c, ev)
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok", "outcome": string(outcome)})
}

// eventActor classifies the sender: open-channel connector and extranet
// users are customers, everyone else inside the portal is staff.
func eventActor(user botEventUser) relay.Actor {
	if user.IsConnector == "Y" || user.IsExtranet == "Y" {
		return relay.ActorCustomer
	}
	return relay.ActorStaff
}

// enrichIdentity fills in CRM contact details for conversations that do
// not have them yet. Best effort: lookup failures are logged and never
// block message routing.
func (h *handler) enrichIdentity(c *gin.Context, ev relay.Event) {
	if h.crm == nil || ev.UserID == "" {
		return
	}

	conv, err := store.GetOrCreateConversation(h.db, ev.DialogID)
	if err != nil {
		fmt.Fprintf(h.out, "webhook: %s: identity check: %v\n", ev.DialogID, err)
		return
	}
	if conv.ContactName != "" || conv.LeadID != "" {
		return
	}

	contact, err := h.crm.GetContact(c.Request.Context(), ev.UserID)
	if err != nil {
		fmt.Fprintf(h.out, "webhook: %s: contact lookup: %v\n", ev.DialogID, err)
		return
	}

	if err := store.SetIdentity(h.db, ev.DialogID, store.Identity{
		LeadID: contact.LeadID,
		Name:   contact.Name,
		Phone:  contact.Phone,
		Email:  contact.Email,
	}); err != nil {
		fmt.Fprintf(h.out, "webhook: %s: save identity: %v\n", ev.DialogID, err)
	}
}

// updateLeadFlag mirrors the takeover state onto the lead's handoff flag:
// 1 while a human holds the conversation, 0 once the bot is back. Best
// effort, the flag is advisory.
func (h *handler) updateLeadFlag(c *gin.Context, ev relay.Event) {
	if h.crm == nil || h.leadFlagField == "" {
		return
	}

	conv, err := store.GetConversation(h.db, ev.DialogID)
	if err != nil || conv == nil || conv.LeadID == "" {
		return
	}

	value := 0
	if conv.Status == models.StatusStopped {
		value = 1
	}
	if err := h.crm.SetLeadField(c.Request.Context(), conv.LeadID, h.leadFlagField, value); err != nil {
		fmt.Fprintf(h.out, "webhook: %s: lead flag update: %v\n", ev.DialogID, err)
	}
}
