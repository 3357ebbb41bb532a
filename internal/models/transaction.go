package models

import (
	"time"
)

// Transaction kinds
const (
	TransactionKindDeposit  = "deposit"
	TransactionKindWithdraw = "withdraw"
	TransactionKindTransfer = "transfer"
)

// Transaction statuses
const (
	TransactionStatusPending   = "pending"
	TransactionStatusSucceeded = "succeeded"
	TransactionStatusFailed    = "failed"
)

// Transaction is the immutable record of a balance-affecting event. Only the
// pending status may change, and only once.
type Transaction struct {
	ID               string     `gorm:"primarykey;size:36" json:"id"`
	Kind             string     `gorm:"size:16;not null" json:"kind"`
	Amount           int64      `gorm:"not null" json:"amount"`
	Currency         string     `gorm:"size:3;not null" json:"currency"`
	AccountID        *uint      `gorm:"index" json:"account_id,omitempty"`
	FromAccountID    *uint      `gorm:"index" json:"from_account_id,omitempty"`
	ToAccountID      *uint      `gorm:"index" json:"to_account_id,omitempty"`
	Status           string     `gorm:"size:16;not null;default:'pending';index" json:"status"`
	ExternalRef      string     `json:"external_ref,omitempty"`
	PaymentMethodRef string     `json:"-"`
	DestinationRef   string     `json:"-"`
	FailureReason    string     `json:"failure_reason,omitempty"`
	CreatedAt        time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt        time.Time  `gorm:"index" json:"updated_at"`
	SettledAt        *time.Time `json:"settled_at,omitempty"`
}

// IsTerminal reports whether the transaction reached succeeded or failed.
func (t *Transaction) IsTerminal() bool {
	return t.Status == TransactionStatusSucceeded || t.Status == TransactionStatusFailed
}

// Involves reports whether the wallet is a party to the transaction.
func (t *Transaction) Involves(walletID uint) bool {
	for _, id := range []*uint{t.AccountID, t.FromAccountID, t.ToAccountID} {
		if id != nil && *id == walletID {
			return true
		}
	}
	return false
}
