package wallet

import (
	"context"
	"time"

	"walletledger/internal/models"
)

// Service defines the main wallet service interface
type Service interface {
	// Wallet management
	CreateWallet(ctx context.Context, userID uint, currency string) (*models.Wallet, error)
	GetWallet(ctx context.Context, userID uint) (*models.Wallet, error)

	// Money movement
	Deposit(ctx context.Context, userID uint, amount int64, paymentMethodRef string) (int64, *models.Transaction, error)
	Withdraw(ctx context.Context, userID uint, amount int64, destinationRef string) (int64, *models.Transaction, error)
	Transfer(ctx context.Context, fromUserID, toUserID uint, amount int64) (int64, int64, *models.Transaction, error)

	// Read operations
	GetBalance(ctx context.Context, userID uint) (int64, error)
	GetTransactionHistory(ctx context.Context, userID uint, opts HistoryOptions) ([]models.Transaction, error)

	// ReconcilePending resolves deposits and withdrawals left pending for
	// longer than olderThan.
	ReconcilePending(ctx context.Context, olderThan time.Duration, limit int) (ReconcileReport, error)
}
