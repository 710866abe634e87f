package outbox

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-checkout/pkg/db/models"
)

const (
	maxDLQErrorLen    = 1024
	defaultDLQListing = 50
)

// DLQRepository stores outbox rows the relay gave up on.
type DLQRepository struct {
	db *gorm.DB
}

func NewDLQRepository(db *gorm.DB) *DLQRepository {
	return &DLQRepository{db: db}
}

// InsertTx writes entry in the relay's batch transaction.
func (r *DLQRepository) InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error {
	if tx == nil {
		return ErrTxRequired
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if msg := entry.ErrorMessage; msg != nil && len(*msg) > maxDLQErrorLen {
		capped := (*msg)[:maxDLQErrorLen]
		entry.ErrorMessage = &capped
	}
	return tx.Create(&entry).Error
}

// FindByEventID returns (nil, nil) when the event was never dead-lettered.
func (r *DLQRepository) FindByEventID(ctx context.Context, eventID string) (*models.OutboxDLQ, error) {
	var entry models.OutboxDLQ
	err := r.db.WithContext(ctx).Where("event_id = ?", eventID).Take(&entry).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, nil
	case err != nil:
		return nil, err
	}
	return &entry, nil
}

// List returns the newest entries first.
func (r *DLQRepository) List(ctx context.Context, limit int) ([]models.OutboxDLQ, error) {
	if limit <= 0 {
		limit = defaultDLQListing
	}
	var entries []models.OutboxDLQ
	err := r.db.WithContext(ctx).Order("failed_at DESC").Order("id DESC").Limit(limit).Find(&entries).Error
	return entries, err
}

// Requeue makes a dead-lettered event eligible for the relay again by
// resetting its attempts and removing the dead letter. It reports false when
// no dead letter exists for eventID.
func (r *DLQRepository) Requeue(ctx context.Context, eventID string) (bool, error) {
	found := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("event_id = ?", eventID).Delete(&models.OutboxDLQ{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		found = true
		return tx.Model(&models.OutboxEvent{}).
			Where("id = ? AND published_at IS NULL", eventID).
			Updates(map[string]any{"attempt_count": 0, "last_error": nil}).Error
	})
	return found, err
}
