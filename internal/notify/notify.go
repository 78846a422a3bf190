// Package notify delivers staff alerts to chat platforms (Slack, Discord).
package notify

import (
	"context"
	"log"
)

// Severity levels for staff alerts.
const (
	SeverityInfo    = "info"
	SeverityWarning = "warning"
)

// Sidebar color hints matching severity levels.
const (
	ColorInfo    = "#439fe0"
	ColorWarning = "#daa038"
)

// Event is a staff alert formatted for display in a chat channel.
type Event struct {
	Title    string
	Body     string
	Severity string // "info" or "warning"
}

// Notifier delivers staff alerts to a single platform.
type Notifier interface {
	Post(ctx context.Context, ev Event) error
}

// Multi fans an alert out to several platforms. Delivery is best-effort:
// one platform failing never blocks the others, and Post always succeeds.
type Multi struct {
	Notifiers []Notifier
}

// Post sends the event to every configured notifier, logging failures.
func (m *Multi) Post(ctx context.Context, ev Event) error {
	for _, n := range m.Notifiers {
		if err := n.Post(ctx, ev); err != nil {
			log.Printf("notify: post %q: %v", ev.Title, err)
		}
	}
	return nil
}

// Color returns the sidebar color hint for a severity.
func Color(severity string) string {
	if severity == SeverityWarning {
		return ColorWarning
	}
	return ColorInfo
}
