package models

import (
	"time"

	"github.com/angelmondragon/storefront-checkout/pkg/enums"
)

// CheckoutCompletion is one order completion attempt. Financing holds the JSON
// breakdown submitted with wallet charges.
type CheckoutCompletion struct {
	ID              string               `gorm:"column:id;primaryKey"`
	CartID          string               `gorm:"column:cart_id;not null;index:idx_checkout_completions_cart_created,priority:1"`
	CheckoutSession string               `gorm:"column:checkout_session;not null"`
	ProviderID      string               `gorm:"column:provider_id;not null"`
	Path            enums.CompletionPath `gorm:"column:path;not null"`
	PaymentID       *string              `gorm:"column:payment_id"`
	IdempotencyKey  *string              `gorm:"column:idempotency_key"`
	Success         bool                 `gorm:"column:success;not null;default:false"`
	RedirectURL     *string              `gorm:"column:redirect_url"`
	ErrorMessage    *string              `gorm:"column:error_message"`
	Financing       *string              `gorm:"column:financing"`
	CreatedAt       time.Time            `gorm:"column:created_at;autoCreateTime;index:idx_checkout_completions_cart_created,priority:2"`
}

func (CheckoutCompletion) TableName() string {
	return "checkout_completions"
}
