package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"walletledger/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type walletRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewWalletRepository(db *gorm.DB, logger *zap.Logger) WalletRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &walletRepository{
		db:     db,
		logger: logger,
	}
}

func (r *walletRepository) Create(ctx context.Context, wallet *models.Wallet) error {
	if err := r.db.WithContext(ctx).Create(wallet).Error; err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicateWallet
		}
		return fmt.Errorf("failed to create wallet: %w", classifyError(err))
	}
	return nil
}

func (r *walletRepository) GetByID(ctx context.Context, id uint) (*models.Wallet, error) {
	var wallet models.Wallet
	if err := r.db.WithContext(ctx).First(&wallet, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, fmt.Errorf("failed to get wallet: %w", classifyError(err))
	}
	return &wallet, nil
}

func (r *walletRepository) GetByUserID(ctx context.Context, userID uint) (*models.Wallet, error) {
	var wallet models.Wallet
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&wallet).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, fmt.Errorf("failed to get wallet: %w", classifyError(err))
	}
	return &wallet, nil
}

func (r *walletRepository) LockByUserIDs(ctx context.Context, userIDs ...uint) ([]models.Wallet, error) {
	var wallets []models.Wallet
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id IN ?", userIDs).
		Order("id ASC").
		Find(&wallets).Error
	if err != nil {
		return nil, fmt.Errorf("failed to lock wallets: %w", classifyError(err))
	}
	return wallets, nil
}

func (r *walletRepository) AdjustBalance(ctx context.Context, walletID uint, delta int64) (int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Wallet{}).Where("id = ?", walletID)
	if delta < 0 {
		query = query.Where("balance >= ?", -delta)
	}
	result := query.Updates(map[string]interface{}{
		"balance":    gorm.Expr("balance + ?", delta),
		"version":    gorm.Expr("version + 1"),
		"updated_at": time.Now().UTC(),
	})
	if result.Error != nil {
		if isCheckViolation(result.Error) {
			return 0, ErrInsufficientBalance
		}
		return 0, fmt.Errorf("failed to adjust balance: %w", classifyError(result.Error))
	}

	if result.RowsAffected == 0 {
		// Either the wallet is gone or the debit guard rejected the update.
		var count int64
		if err := r.db.WithContext(ctx).Model(&models.Wallet{}).Where("id = ?", walletID).Count(&count).Error; err != nil {
			return 0, fmt.Errorf("failed to adjust balance: %w", classifyError(err))
		}
		if count == 0 {
			return 0, ErrWalletNotFound
		}
		return 0, ErrInsufficientBalance
	}

	var wallet models.Wallet
	if err := r.db.WithContext(ctx).Select("id", "balance").First(&wallet, walletID).Error; err != nil {
		return 0, fmt.Errorf("failed to read balance: %w", classifyError(err))
	}
	return wallet.Balance, nil
}

func (r *walletRepository) CreateTransaction(ctx context.Context, txn *models.Transaction) error {
	if err := r.db.WithContext(ctx).Create(txn).Error; err != nil {
		return fmt.Errorf("failed to create transaction: %w", classifyError(err))
	}
	return nil
}

func (r *walletRepository) GetTransactionByID(ctx context.Context, id string) (*models.Transaction, error) {
	var txn models.Transaction
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&txn).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, fmt.Errorf("failed to get transaction: %w", classifyError(err))
	}
	return &txn, nil
}

func (r *walletRepository) SettleTransaction(ctx context.Context, id string, s Settlement) (*models.Transaction, error) {
	if s.Status != models.TransactionStatusSucceeded && s.Status != models.TransactionStatusFailed {
		return nil, fmt.Errorf("invalid settlement status %q", s.Status)
	}

	now := time.Now().UTC()
	updates := map[string]interface{}{
		"status":     s.Status,
		"settled_at": now,
		"updated_at": now,
	}
	if s.ExternalRef != "" {
		updates["external_ref"] = s.ExternalRef
	}
	if s.FailureReason != "" {
		updates["failure_reason"] = s.FailureReason
	}

	result := r.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("id = ? AND status = ?", id, models.TransactionStatusPending).
		Updates(updates)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to settle transaction: %w", classifyError(result.Error))
	}

	txn, err := r.GetTransactionByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if result.RowsAffected == 0 {
		return txn, ErrTransactionSettled
	}
	return txn, nil
}

func (r *walletRepository) RecordExternalRef(ctx context.Context, id, ref string) error {
	result := r.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("id = ? AND status = ?", id, models.TransactionStatusPending).
		Updates(map[string]interface{}{
			"external_ref": ref,
			"updated_at":   time.Now().UTC(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to record external reference: %w", classifyError(result.Error))
	}
	if result.RowsAffected == 0 {
		return ErrTransactionSettled
	}
	return nil
}

func (r *walletRepository) GetTransactionHistory(ctx context.Context, walletID uint, limit, offset int) ([]models.Transaction, error) {
	query := r.db.WithContext(ctx).
		Where("account_id = ? OR from_account_id = ? OR to_account_id = ?", walletID, walletID, walletID).
		Order("created_at DESC").
		Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var txns []models.Transaction
	if err := query.Find(&txns).Error; err != nil {
		return nil, fmt.Errorf("failed to get transaction history: %w", classifyError(err))
	}
	return txns, nil
}

func (r *walletRepository) ListPendingTransactions(ctx context.Context, createdBefore time.Time, limit int) ([]models.Transaction, error) {
	query := r.db.WithContext(ctx).
		Where("status = ?", models.TransactionStatusPending).
		Where("kind IN ?", []string{models.TransactionKindDeposit, models.TransactionKindWithdraw}).
		Where("created_at < ?", createdBefore.UTC()).
		Order("updated_at ASC").
		Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var txns []models.Transaction
	if err := query.Find(&txns).Error; err != nil {
		return nil, fmt.Errorf("failed to list pending transactions: %w", classifyError(err))
	}
	return txns, nil
}

func (r *walletRepository) TouchTransaction(ctx context.Context, id string) error {
	result := r.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("id = ? AND status = ?", id, models.TransactionStatusPending).
		Update("updated_at", time.Now().UTC())
	if result.Error != nil {
		return fmt.Errorf("failed to touch transaction: %w", classifyError(result.Error))
	}
	if result.RowsAffected == 0 {
		return ErrTransactionSettled
	}
	return nil
}

func (r *walletRepository) ExecuteInTransaction(ctx context.Context, fn func(WalletRepository) error) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txRepo := &walletRepository{db: tx, logger: r.logger}
		return fn(txRepo)
	})
	if err != nil && errors.Is(classifyError(err), ErrConflict) && !errors.Is(err, ErrConflict) {
		r.logger.Debug("transaction aborted by storage conflict", zap.Error(err))
		return fmt.Errorf("%w: %w", ErrConflict, err)
	}
	return err
}
