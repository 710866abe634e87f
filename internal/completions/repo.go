// Package completions keeps the audit log of order completion attempts.
package completions

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-checkout/pkg/db/models"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// Repository persists completion attempts.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, entry *models.CheckoutCompletion) error
	ListByCart(ctx context.Context, cartID string, limit int) ([]models.CheckoutCompletion, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a gorm-backed repository.
func NewRepository(db *gorm.DB) Repository {
	if db == nil {
		return nil
	}
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, entry *models.CheckoutCompletion) error {
	if entry == nil {
		return errors.New("completion entry is required")
	}
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	return r.db.WithContext(ctx).Create(entry).Error
}

// ListByCart returns the newest attempts first.
func (r *repository) ListByCart(ctx context.Context, cartID string, limit int) ([]models.CheckoutCompletion, error) {
	cartID = strings.TrimSpace(cartID)
	if cartID == "" {
		return nil, errors.New("cart id is required")
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	var rows []models.CheckoutCompletion
	err := r.db.WithContext(ctx).
		Where("cart_id = ?", cartID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// DeleteBefore removes attempts recorded before cutoff.
func (r *repository) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if cutoff.IsZero() {
		return 0, errors.New("cutoff is required")
	}
	res := r.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&models.CheckoutCompletion{})
	return res.RowsAffected, res.Error
}
