// Package store provides persistence primitives for conversations and
// pending buffers. All operations are single-record and atomic; callers
// rely on these guarantees instead of their own locking.
package store

import (
	"errors"
	"fmt"

	"github.com/zulandar/switchboard/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Identity holds advisory contact metadata for a conversation.
type Identity struct {
	LeadID string
	Name   string
	Phone  string
	Email  string
}

// GetConversation returns the conversation for a dialog, or nil if none exists.
func GetConversation(db *gorm.DB, dialogID string) (*models.Conversation, error) {
	if dialogID == "" {
		return nil, fmt.Errorf("store: dialogID is required")
	}

	var conv models.Conversation
	err := db.Where("dialog_id = ?", dialogID).First(&conv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get conversation %s: %w", dialogID, err)
	}
	return &conv, nil
}

// GetOrCreateConversation returns the conversation for a dialog, creating it
// with active status if absent. Creation is race-safe: concurrent callers
// for the same dialog all observe the single surviving row.
func GetOrCreateConversation(db *gorm.DB, dialogID string) (*models.Conversation, error) {
	if dialogID == "" {
		return nil, fmt.Errorf("store: dialogID is required")
	}

	conv := models.Conversation{DialogID: dialogID, Status: models.StatusActive}
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "dialog_id"}},
		DoNothing: true,
	}).Create(&conv).Error; err != nil {
		return nil, fmt.Errorf("store: create conversation %s: %w", dialogID, err)
	}

	// Re-read so a lost insert race still returns the winner's row.
	var out models.Conversation
	if err := db.Where("dialog_id = ?", dialogID).First(&out).Error; err != nil {
		return nil, fmt.Errorf("store: get conversation %s: %w", dialogID, err)
	}
	return &out, nil
}

// SetStatus upserts the conversation's status, creating the record if it
// doesn't exist yet. Repeating the same status is a no-op.
func SetStatus(db *gorm.DB, dialogID, status string) error {
	if dialogID == "" {
		return fmt.Errorf("store: dialogID is required")
	}
	if status != models.StatusActive && status != models.StatusStopped {
		return fmt.Errorf("store: invalid status %q", status)
	}

	conv := models.Conversation{DialogID: dialogID, Status: status}
	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "dialog_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "updated_at"}),
	}).Create(&conv)
	if result.Error != nil {
		return fmt.Errorf("store: set status %s=%s: %w", dialogID, status, result.Error)
	}
	return nil
}

// SetSessionRef caches the AI responder's conversation reference.
func SetSessionRef(db *gorm.DB, dialogID, ref string) error {
	result := db.Model(&models.Conversation{}).Where("dialog_id = ?", dialogID).
		Update("session_ref", ref)
	if result.Error != nil {
		return fmt.Errorf("store: set session ref %s: %w", dialogID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("store: conversation not found: %s", dialogID)
	}
	return nil
}

// SetIdentity records best-known contact metadata. Advisory only; empty
// fields are skipped so partial lookups never erase earlier data.
func SetIdentity(db *gorm.DB, dialogID string, id Identity) error {
	updates := map[string]interface{}{}
	if id.LeadID != "" {
		updates["lead_id"] = id.LeadID
	}
	if id.Name != "" {
		updates["contact_name"] = id.Name
	}
	if id.Phone != "" {
		updates["contact_phone"] = id.Phone
	}
	if id.Email != "" {
		updates["contact_email"] = id.Email
	}
	if len(updates) == 0 {
		return nil
	}

	result := db.Model(&models.Conversation{}).Where("dialog_id = ?", dialogID).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("store: set identity %s: %w", dialogID, result.Error)
	}
	return nil
}

// ListConversations returns conversations filtered by status, or all
// conversations when status is empty, ordered by last update.
func ListConversations(db *gorm.DB, status string) ([]models.Conversation, error) {
	q := db.Order("updated_at DESC")
	if status != "" {
		q = q.Where("status = ?", status)
	}

	var convs []models.Conversation
	if err := q.Find(&convs).Error; err != nil {
		return nil, fmt.Errorf("store: list conversations: %w", err)
	}
	return convs, nil
}
