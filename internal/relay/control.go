package relay

import (
	"fmt"
	"strings"

	"github.com/zulandar/switchboard/internal/models"
	"github.com/zulandar/switchboard/internal/store"
	"gorm.io/gorm"
)

// controlCommands maps staff control vocabulary to the target conversation
// status. Matching is case-insensitive with collapsed whitespace.
var controlCommands = map[string]string{
	"stop auto":  models.StatusStopped,
	"start auto": models.StatusActive,
}

// normalizeCommand lowercases text and collapses whitespace runs so
// "  Stop   AUTO " matches "stop auto".
func normalizeCommand(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(text)), " ")
}

// IsControlCommand reports whether text matches the control vocabulary.
// The webhook layer uses it to mark staff events as out-of-band commands.
func IsControlCommand(text string) bool {
	_, ok := controlCommands[normalizeCommand(text)]
	return ok
}

// HandleControl interprets a control-message event. On a recognized command
// it upserts the conversation's status (creating the record if absent) and
// returns true; the event is fully handled and must not be routed further.
// Unrecognized commands return false with no state change. Control handling
// never touches the pending buffer.
func HandleControl(db *gorm.DB, ev Event) (bool, error) {
	status, ok := controlCommands[normalizeCommand(ev.Text)]
	if !ok {
		return false, nil
	}

	if err := store.SetStatus(db, ev.DialogID, status); err != nil {
		return false, fmt.Errorf("relay: control %q: %w", normalizeCommand(ev.Text), err)
	}
	return true, nil
}
