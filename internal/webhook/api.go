package webhook

import (
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/switchboard/internal/store"
)

// conversationRow is the JSON shape of one conversation in the status API.
type conversationRow struct {
	DialogID    string    `json:"dialog_id"`
	Status      string    `json:"status"`
	ContactName string    `json:"contact_name,omitempty"`
	LeadID      string    `json:"lead_id,omitempty"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// bufferRow is the JSON shape of one pending buffer in the status API.
type bufferRow struct {
	DialogID      string    `json:"dialog_id"`
	Preview       string    `json:"preview"`
	OriginUserID  string    `json:"origin_user_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	LastTouchedAt time.Time `json:"last_touched_at"`
}

// previewLen caps the accumulated text shown in buffer listings.
const previewLen = 120

// preview caps text at previewLen bytes without splitting a UTF-8 sequence.
func preview(s string) string {
	if len(s) <= previewLen {
		return s
	}
	cut := previewLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

// handleConversations lists conversations, optionally filtered by
// ?status=active|stopped.
func (h *handler) handleConversations(c *gin.Context) {
	convs, err := store.ListConversations(h.db, c.Query("status"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	rows := make([]conversationRow, len(convs))
	for i, conv := range convs {
		rows[i] = conversationRow{
			DialogID:    conv.DialogID,
			Status:      conv.Status,
			ContactName: conv.ContactName,
			LeadID:      conv.LeadID,
			UpdatedAt:   conv.UpdatedAt,
		}
	}
	c.JSON(http.StatusOK, gin.H{"conversations": rows})
}

// handleBuffers lists pending buffers with a text preview.
func (h *handler) handleBuffers(c *gin.Context) {
	bufs, err := store.ListBuffers(h.db)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	rows := make([]bufferRow, len(bufs))
	for i, buf := range bufs {
		rows[i] = bufferRow{
			DialogID:      buf.DialogID,
			Preview:       preview(buf.AccumulatedText),
			OriginUserID:  buf.OriginUserID,
			CreatedAt:     buf.CreatedAt,
			LastTouchedAt: buf.LastTouchedAt,
		}
	}
	c.JSON(http.StatusOK, gin.H{"buffers": rows})
}
