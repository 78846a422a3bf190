package store

import (
	"errors"
	"fmt"
	"time"

	"github.com/zulandar/switchboard/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// maxAppendRetries bounds the compare-and-swap loop in AppendBuffer.
// Contention on a single dialog is rare; three attempts is generous.
const maxAppendRetries = 3

// GetBuffer returns the pending buffer for a dialog, or nil if none exists.
func GetBuffer(db *gorm.DB, dialogID string) (*models.PendingBuffer, error) {
	if dialogID == "" {
		return nil, fmt.Errorf("store: dialogID is required")
	}

	var buf models.PendingBuffer
	err := db.Where("dialog_id = ?", dialogID).First(&buf).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get buffer %s: %w", dialogID, err)
	}
	return &buf, nil
}

// AppendBuffer appends a message to the dialog's pending buffer, creating
// the buffer if absent with origin as the first sender. Appends use a
// compare-and-swap on the accumulated text so concurrent customer messages
// are serialized rather than overwriting each other.
func AppendBuffer(db *gorm.DB, dialogID, text, origin string, now time.Time) error {
	if dialogID == "" {
		return fmt.Errorf("store: dialogID is required")
	}
	if text == "" {
		return fmt.Errorf("store: text is required")
	}

	for attempt := 0; attempt < maxAppendRetries; attempt++ {
		var buf models.PendingBuffer
		err := db.Where("dialog_id = ?", dialogID).First(&buf).Error

		if errors.Is(err, gorm.ErrRecordNotFound) {
			buf = models.PendingBuffer{
				DialogID:        dialogID,
				AccumulatedText: text,
				OriginUserID:    origin,
				CreatedAt:       now,
				LastTouchedAt:   now,
			}
			result := db.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "dialog_id"}},
				DoNothing: true,
			}).Create(&buf)
			if result.Error != nil {
				return fmt.Errorf("store: create buffer %s: %w", dialogID, result.Error)
			}
			if result.RowsAffected > 0 {
				return nil
			}
			// Another writer created the buffer first; retry as an append.
			continue
		}
		if err != nil {
			return fmt.Errorf("store: get buffer %s: %w", dialogID, err)
		}

		result := db.Model(&models.PendingBuffer{}).
			Where("id = ? AND accumulated_text = ?", buf.ID, buf.AccumulatedText).
			Updates(map[string]interface{}{
				"accumulated_text": buf.AccumulatedText + "\n" + text,
				"last_touched_at":  now,
			})
		if result.Error != nil {
			return fmt.Errorf("store: append buffer %s: %w", dialogID, result.Error)
		}
		if result.RowsAffected > 0 {
			return nil
		}
		// Concurrent append won the swap; re-read and retry.
	}

	return fmt.Errorf("store: append buffer %s: gave up after %d contended attempts", dialogID, maxAppendRetries)
}

// TouchBuffer refreshes last_touched_at, restarting the escalation
// countdown. Returns false if the dialog has no pending buffer.
func TouchBuffer(db *gorm.DB, dialogID string, now time.Time) (bool, error) {
	if dialogID == "" {
		return false, fmt.Errorf("store: dialogID is required")
	}

	result := db.Model(&models.PendingBuffer{}).Where("dialog_id = ?", dialogID).
		Update("last_touched_at", now)
	if result.Error != nil {
		return false, fmt.Errorf("store: touch buffer %s: %w", dialogID, result.Error)
	}
	return result.RowsAffected > 0, nil
}

// DeleteBufferIfUnchanged removes a pending buffer only if its accumulated
// text still matches what the caller read. Returns false when the row was
// appended to (or already removed) in the meantime; the caller must leave
// it for the next scan so the new messages are never dropped.
func DeleteBufferIfUnchanged(db *gorm.DB, id uint, accumulatedText string) (bool, error) {
	result := db.Where("id = ? AND accumulated_text = ?", id, accumulatedText).
		Delete(&models.PendingBuffer{})
	if result.Error != nil {
		return false, fmt.Errorf("store: delete buffer %d: %w", id, result.Error)
	}
	return result.RowsAffected > 0, nil
}

// DeleteBuffer removes the dialog's pending buffer unconditionally.
// Deleting an absent buffer is a no-op.
func DeleteBuffer(db *gorm.DB, dialogID string) error {
	if dialogID == "" {
		return fmt.Errorf("store: dialogID is required")
	}

	if err := db.Where("dialog_id = ?", dialogID).
		Delete(&models.PendingBuffer{}).Error; err != nil {
		return fmt.Errorf("store: delete buffer %s: %w", dialogID, err)
	}
	return nil
}

// ListOverdueBuffers returns buffers whose countdown expired at or before
// cutoff, oldest first.
func ListOverdueBuffers(db *gorm.DB, cutoff time.Time) ([]models.PendingBuffer, error) {
	var bufs []models.PendingBuffer
	if err := db.Where("last_touched_at <= ?", cutoff).
		Order("last_touched_at ASC").Find(&bufs).Error; err != nil {
		return nil, fmt.Errorf("store: list overdue buffers: %w", err)
	}
	return bufs, nil
}

// ListBuffers returns all pending buffers, oldest first.
func ListBuffers(db *gorm.DB) ([]models.PendingBuffer, error) {
	var bufs []models.PendingBuffer
	if err := db.Order("created_at ASC").Find(&bufs).Error; err != nil {
		return nil, fmt.Errorf("store: list buffers: %w", err)
	}
	return bufs, nil
}
