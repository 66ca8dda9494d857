package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PaymentOrder mirrors a provider-side transaction record. ProviderOrderID is
// the opaque ID the provider assigns; Status follows the provider's order
// lifecycle, normalized to lower case.
type PaymentOrder struct {
	ID              uuid.UUID      `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	UserID          uuid.UUID      `gorm:"type:uuid;not null;index" json:"user_id"`
	ProviderOrderID string         `gorm:"type:varchar(128);not null;uniqueIndex" json:"provider_order_id"`
	AmountCents     int64          `gorm:"not null" json:"amount_cents"`
	Currency        string         `gorm:"type:varchar(8);not null" json:"currency"`
	Description     string         `gorm:"type:varchar(512);not null;default:''" json:"description"`
	Status          string         `gorm:"type:varchar(32);not null;default:'created'" json:"status"`
	FailureReason   string         `gorm:"type:varchar(512);not null;default:''" json:"failure_reason,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
}

func (PaymentOrder) TableName() string { return "payment_orders" }
