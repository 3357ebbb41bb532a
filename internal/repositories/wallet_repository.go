package repositories

import (
	"context"
	"errors"
	"time"

	"walletledger/internal/models"
)

var (
	ErrWalletNotFound      = errors.New("wallet not found")
	ErrDuplicateWallet     = errors.New("wallet already exists")
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrTransactionSettled  = errors.New("transaction already settled")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrConflict            = errors.New("storage conflict")
)

// Settlement describes the terminal state a pending transaction moves to.
type Settlement struct {
	Status        string
	ExternalRef   string
	FailureReason string
}

// WalletRepository defines the ledger storage operations. Balance changes
// are only valid inside ExecuteInTransaction, paired with a transaction write.
type WalletRepository interface {
	// Wallet operations
	Create(ctx context.Context, wallet *models.Wallet) error
	GetByID(ctx context.Context, id uint) (*models.Wallet, error)
	GetByUserID(ctx context.Context, userID uint) (*models.Wallet, error)

	// LockByUserIDs locks the wallets of the given users in ascending wallet
	// ID order and returns them in that order. Missing wallets are omitted.
	LockByUserIDs(ctx context.Context, userIDs ...uint) ([]models.Wallet, error)

	// AdjustBalance adds delta to the wallet balance, bumps its version and
	// returns the new balance. A debit that would go below zero fails with
	// ErrInsufficientBalance and changes nothing.
	AdjustBalance(ctx context.Context, walletID uint, delta int64) (int64, error)

	// Transaction operations
	CreateTransaction(ctx context.Context, txn *models.Transaction) error
	GetTransactionByID(ctx context.Context, id string) (*models.Transaction, error)

	// SettleTransaction moves a pending transaction to a terminal state. It
	// fails with ErrTransactionSettled if the transaction is no longer pending.
	SettleTransaction(ctx context.Context, id string, s Settlement) (*models.Transaction, error)
	RecordExternalRef(ctx context.Context, id, ref string) error
	GetTransactionHistory(ctx context.Context, walletID uint, limit, offset int) ([]models.Transaction, error)

	// ListPendingTransactions returns pending deposits and withdrawals created
	// before createdBefore, least recently visited first.
	ListPendingTransactions(ctx context.Context, createdBefore time.Time, limit int) ([]models.Transaction, error)
	// TouchTransaction marks a pending transaction as visited, moving it to
	// the back of the pending queue.
	TouchTransaction(ctx context.Context, id string) error

	// ExecuteInTransaction runs fn against a repository bound to a single
	// database transaction. Either every write in fn commits or none does.
	ExecuteInTransaction(ctx context.Context, fn func(WalletRepository) error) error
}
