package models

import (
	"time"

	"gorm.io/gorm"
)

// Wallet is a per-user account holding a balance in minor units of a
// single currency.
type Wallet struct {
	ID                 uint      `gorm:"primarykey" json:"id"`
	UserID             uint      `gorm:"uniqueIndex;not null" json:"user_id"`
	Balance            int64     `gorm:"not null;default:0;check:balance >= 0" json:"balance"`
	Currency           string    `gorm:"size:3;not null;default:'USD'" json:"currency"`
	GatewayCustomerRef string    `gorm:"not null" json:"-"`
	// Version increases with every balance change.
	Version            int64     `gorm:"not null;default:0" json:"-"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

func (w *Wallet) BeforeCreate(tx *gorm.DB) error {
	// Ensure balance starts at 0
	w.Balance = 0
	w.Version = 0
	return nil
}
