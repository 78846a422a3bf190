package models

import "time"

// Conversation status values.
const (
	StatusActive  = "active"  // bot replies automatically
	StatusStopped = "stopped" // a human has taken over
)

// Conversation tracks the bot's handling state for a single chat dialog.
// There is exactly one row per dialog ID for the lifetime of the thread.
type Conversation struct {
	DialogID   string `gorm:"primaryKey;size:64"`
	Status     string `gorm:"size:16;not null;default:active;index"`
	SessionRef string `gorm:"size:128"` // Chatling conversation ID, created lazily
	LeadID     string `gorm:"size:32"`

	// Best-known contact metadata, advisory only.
	ContactName  string `gorm:"size:128"`
	ContactPhone string `gorm:"size:32"`
	ContactEmail string `gorm:"size:128"`

	CreatedAt time.Time
	UpdatedAt time.Time
}
