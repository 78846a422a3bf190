package models

import "time"

// PendingBuffer accumulates customer messages that arrive while a
// conversation is in human-takeover mode. At most one buffer exists per
// dialog at a time; flushing deletes the row outright, so any row in this
// table is by definition unflushed.
type PendingBuffer struct {
	ID              uint   `gorm:"primaryKey;autoIncrement"`
	DialogID        string `gorm:"size:64;not null;uniqueIndex"`
	AccumulatedText string `gorm:"type:text;not null"`
	OriginUserID    string `gorm:"size:64"` // sender of the first buffered message
	CreatedAt       time.Time
	LastTouchedAt   time.Time `gorm:"index"` // refreshed on staff activity; escalation countdown base
}
