package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"walletledger/internal/models"
	"walletledger/internal/repositories"
	"walletledger/internal/services/payment"

	"go.uber.org/zap"
)

// Deposit records a pending deposit, charges the processor and credits the
// wallet only once the processor confirms the charge.
func (s *service) Deposit(ctx context.Context, userID uint, amount int64, paymentMethodRef string) (balance int64, txn *models.Transaction, err error) {
	defer s.observe(opDeposit, time.Now(), &err)

	if amount <= 0 {
		return 0, nil, ErrInvalidAmount
	}

	wallet, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		return 0, nil, mapStoreError(err)
	}

	txn = newTransaction(models.TransactionKindDeposit, amount, wallet.Currency)
	txn.AccountID = &wallet.ID
	txn.PaymentMethodRef = paymentMethodRef

	if err := s.atomically(ctx, opDeposit, func(tx repositories.WalletRepository) error {
		return tx.CreateTransaction(ctx, txn)
	}); err != nil {
		return 0, nil, mapStoreError(err)
	}

	gwCtx, cancel := context.WithTimeout(ctx, s.config.GatewayTimeout)
	res, gwErr := s.gateway.Charge(gwCtx, payment.ChargeRequest{
		IdempotencyKey:   txn.ID,
		CustomerRef:      wallet.GatewayCustomerRef,
		Amount:           amount,
		Currency:         wallet.Currency,
		PaymentMethodRef: paymentMethodRef,
	})
	cancel()

	return s.settleDeposit(context.WithoutCancel(ctx), wallet, txn, res, gwErr)
}

// settleDeposit applies a charge outcome to a pending deposit.
func (s *service) settleDeposit(ctx context.Context, wallet *models.Wallet, txn *models.Transaction, res *payment.Result, gwErr error) (int64, *models.Transaction, error) {
	log := s.logger.With(
		zap.String("transaction_id", txn.ID),
		zap.Uint("wallet_id", wallet.ID),
		zap.Int64("amount", txn.Amount),
	)

	switch outcome(res, gwErr) {
	case payment.StatusSucceeded:
		var (
			balance int64
			settled *models.Transaction
		)
		err := s.atomically(ctx, opDeposit, func(tx repositories.WalletRepository) error {
			var err error
			settled, err = tx.SettleTransaction(ctx, txn.ID, repositories.Settlement{
				Status:      models.TransactionStatusSucceeded,
				ExternalRef: res.ExternalRef,
			})
			if err != nil {
				return err
			}
			balance, err = tx.AdjustBalance(ctx, wallet.ID, txn.Amount)
			return err
		})
		if errors.Is(err, repositories.ErrTransactionSettled) {
			log.Info("deposit already settled")
			return s.currentState(ctx, wallet, txn.ID)
		}
		if err != nil {
			log.Error("charge succeeded but credit failed, left pending for reconciliation",
				zap.String("external_ref", res.ExternalRef),
				zap.Error(err),
			)
			s.recordExternalRef(ctx, txn, res.ExternalRef)
			return 0, txn, mapStoreError(err)
		}
		log.Info("deposit succeeded", zap.String("external_ref", res.ExternalRef))
		s.afterMutation(ctx, settled, wallet.UserID)
		return balance, settled, nil

	case payment.StatusFailed:
		reason := failureReason(res, gwErr)
		settled, err := s.failPending(ctx, txn, externalRef(res), reason)
		if errors.Is(err, repositories.ErrTransactionSettled) {
			return s.currentState(ctx, wallet, txn.ID)
		}
		if err != nil {
			return 0, txn, mapStoreError(err)
		}
		log.Info("deposit declined", zap.String("reason", reason))
		s.afterMutation(ctx, settled)
		if gwErr == nil {
			gwErr = payment.Declined(reason, "charge failed")
		}
		return 0, settled, mapGatewayError(gwErr)

	case payment.StatusPending:
		s.recordExternalRef(ctx, txn, res.ExternalRef)
		log.Info("deposit pending at processor", zap.String("external_ref", res.ExternalRef))
		return wallet.Balance, txn, nil

	default:
		s.recordExternalRef(ctx, txn, externalRef(res))
		log.Warn("deposit outcome unknown, left pending", zap.Error(gwErr))
		return 0, txn, mapGatewayError(gwErr)
	}
}

// Withdraw reserves funds and records a pending withdrawal in one atomic
// update, then asks the processor to pay out. A declined payout is
// compensated by crediting the funds back.
func (s *service) Withdraw(ctx context.Context, userID uint, amount int64, destinationRef string) (balance int64, txn *models.Transaction, err error) {
	defer s.observe(opWithdraw, time.Now(), &err)

	if amount <= 0 {
		return 0, nil, ErrInvalidAmount
	}

	wallet, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		return 0, nil, mapStoreError(err)
	}

	txn = newTransaction(models.TransactionKindWithdraw, amount, wallet.Currency)
	txn.AccountID = &wallet.ID
	txn.DestinationRef = destinationRef

	err = s.atomically(ctx, opWithdraw, func(tx repositories.WalletRepository) error {
		var err error
		balance, err = tx.AdjustBalance(ctx, wallet.ID, -amount)
		if err != nil {
			return err
		}
		return tx.CreateTransaction(ctx, txn)
	})
	if err != nil {
		return 0, nil, mapStoreError(err)
	}
	s.afterMutation(ctx, txn, wallet.UserID)

	gwCtx, cancel := context.WithTimeout(ctx, s.config.GatewayTimeout)
	res, gwErr := s.gateway.Payout(gwCtx, payment.PayoutRequest{
		IdempotencyKey: txn.ID,
		Amount:         amount,
		Currency:       wallet.Currency,
		DestinationRef: destinationRef,
	})
	cancel()

	newBalance, settled, err := s.settleWithdrawal(context.WithoutCancel(ctx), wallet, txn, res, gwErr)
	if err == nil && settled.Status != models.TransactionStatusFailed {
		newBalance = balance
	}
	return newBalance, settled, err
}

// settleWithdrawal applies a payout outcome to a pending withdrawal whose
// funds are already reserved.
func (s *service) settleWithdrawal(ctx context.Context, wallet *models.Wallet, txn *models.Transaction, res *payment.Result, gwErr error) (int64, *models.Transaction, error) {
	log := s.logger.With(
		zap.String("transaction_id", txn.ID),
		zap.Uint("wallet_id", wallet.ID),
		zap.Int64("amount", txn.Amount),
	)

	switch outcome(res, gwErr) {
	case payment.StatusSucceeded:
		settled, err := s.atomicSettle(ctx, txn.ID, repositories.Settlement{
			Status:      models.TransactionStatusSucceeded,
			ExternalRef: res.ExternalRef,
		})
		if errors.Is(err, repositories.ErrTransactionSettled) {
			return s.currentState(ctx, wallet, txn.ID)
		}
		if err != nil {
			s.recordExternalRef(ctx, txn, res.ExternalRef)
			log.Error("payout succeeded but settlement failed, left pending", zap.Error(err))
			return 0, txn, mapStoreError(err)
		}
		log.Info("withdrawal succeeded", zap.String("external_ref", res.ExternalRef))
		s.afterMutation(ctx, settled)
		return 0, settled, nil

	case payment.StatusFailed:
		reason := failureReason(res, gwErr)
		if gwErr == nil {
			gwErr = payment.Declined(reason, "payout failed")
		}
		return s.compensateWithdrawal(ctx, wallet, txn, externalRef(res), reason, gwErr)

	case payment.StatusPending:
		s.recordExternalRef(ctx, txn, res.ExternalRef)
		log.Info("withdrawal pending at processor", zap.String("external_ref", res.ExternalRef))
		return 0, txn, nil

	default:
		s.recordExternalRef(ctx, txn, externalRef(res))
		log.Warn("withdrawal outcome unknown, funds stay reserved", zap.Error(gwErr))
		return 0, txn, mapGatewayError(gwErr)
	}
}

// compensateWithdrawal credits the reserved funds back and marks the
// withdrawal failed, retrying up to CompensationAttempts times.
func (s *service) compensateWithdrawal(ctx context.Context, wallet *models.Wallet, txn *models.Transaction, ref, reason string, gwErr error) (int64, *models.Transaction, error) {
	log := s.logger.With(
		zap.String("transaction_id", txn.ID),
		zap.Uint("wallet_id", wallet.ID),
		zap.Int64("amount", txn.Amount),
	)

	var (
		balance int64
		settled *models.Transaction
		err     error
	)
	for attempt := 1; attempt <= s.config.CompensationAttempts; attempt++ {
		err = s.atomically(ctx, opCompensate, func(tx repositories.WalletRepository) error {
			var err error
			settled, err = tx.SettleTransaction(ctx, txn.ID, repositories.Settlement{
				Status:        models.TransactionStatusFailed,
				ExternalRef:   ref,
				FailureReason: reason,
			})
			if err != nil {
				return err
			}
			balance, err = tx.AdjustBalance(ctx, wallet.ID, txn.Amount)
			return err
		})
		if err == nil || errors.Is(err, repositories.ErrTransactionSettled) {
			break
		}
		log.Warn("compensation attempt failed", zap.Int("attempt", attempt), zap.Error(err))
	}

	if errors.Is(err, repositories.ErrTransactionSettled) {
		return s.currentState(ctx, wallet, txn.ID)
	}
	if err != nil {
		log.Error("withdrawal declined and compensation failed, funds remain reserved",
			zap.String("reason", reason),
			zap.Error(err),
		)
		s.metrics.RecordError(opCompensate, ErrCompensationFailed.Code)
		return 0, txn, fmt.Errorf("%w: %w", ErrCompensationFailed, err)
	}

	log.Info("withdrawal declined, funds returned", zap.String("reason", reason))
	s.afterMutation(ctx, settled, wallet.UserID)
	return balance, settled, mapGatewayError(gwErr)
}

// Transfer moves funds between two wallets in a single atomic update. Both
// wallets are locked in ascending wallet ID order.
func (s *service) Transfer(ctx context.Context, fromUserID, toUserID uint, amount int64) (fromBalance, toBalance int64, txn *models.Transaction, err error) {
	defer s.observe(opTransfer, time.Now(), &err)

	if amount <= 0 {
		return 0, 0, nil, ErrInvalidAmount
	}
	if fromUserID == toUserID {
		return 0, 0, nil, ErrSameAccount
	}

	var src, dst models.Wallet
	err = s.atomically(ctx, opTransfer, func(tx repositories.WalletRepository) error {
		wallets, err := tx.LockByUserIDs(ctx, fromUserID, toUserID)
		if err != nil {
			return err
		}

		var foundSrc, foundDst bool
		for _, w := range wallets {
			switch w.UserID {
			case fromUserID:
				src, foundSrc = w, true
			case toUserID:
				dst, foundDst = w, true
			}
		}
		if !foundSrc || !foundDst {
			return repositories.ErrWalletNotFound
		}
		if src.Currency != dst.Currency {
			return ErrCurrencyMismatch
		}
		if src.Balance < amount {
			return repositories.ErrInsufficientBalance
		}

		if fromBalance, err = tx.AdjustBalance(ctx, src.ID, -amount); err != nil {
			return err
		}
		if toBalance, err = tx.AdjustBalance(ctx, dst.ID, amount); err != nil {
			return err
		}

		now := time.Now().UTC()
		txn = newTransaction(models.TransactionKindTransfer, amount, src.Currency)
		txn.FromAccountID = &src.ID
		txn.ToAccountID = &dst.ID
		txn.Status = models.TransactionStatusSucceeded
		txn.SettledAt = &now
		return tx.CreateTransaction(ctx, txn)
	})
	if err != nil {
		return 0, 0, nil, mapStoreError(err)
	}

	s.logger.Info("transfer succeeded",
		zap.String("transaction_id", txn.ID),
		zap.Uint("from_wallet_id", src.ID),
		zap.Uint("to_wallet_id", dst.ID),
		zap.Int64("amount", amount),
	)
	s.afterMutation(ctx, txn, fromUserID, toUserID)
	return fromBalance, toBalance, txn, nil
}

func (s *service) atomicSettle(ctx context.Context, id string, settlement repositories.Settlement) (*models.Transaction, error) {
	var settled *models.Transaction
	err := s.atomically(ctx, "settle", func(tx repositories.WalletRepository) error {
		var err error
		settled, err = tx.SettleTransaction(ctx, id, settlement)
		return err
	})
	return settled, err
}

func (s *service) failPending(ctx context.Context, txn *models.Transaction, ref, reason string) (*models.Transaction, error) {
	return s.atomicSettle(ctx, txn.ID, repositories.Settlement{
		Status:        models.TransactionStatusFailed,
		ExternalRef:   ref,
		FailureReason: reason,
	})
}

// recordExternalRef stores the processor reference on a pending transaction
// so reconciliation can query it later.
func (s *service) recordExternalRef(ctx context.Context, txn *models.Transaction, ref string) {
	if ref == "" || txn.ExternalRef == ref {
		return
	}
	err := s.atomically(ctx, "record_ref", func(tx repositories.WalletRepository) error {
		return tx.RecordExternalRef(ctx, txn.ID, ref)
	})
	if err != nil {
		s.logger.Warn("failed to record external reference",
			zap.String("transaction_id", txn.ID),
			zap.String("external_ref", ref),
			zap.Error(err),
		)
		return
	}
	txn.ExternalRef = ref
}

// currentState re-reads a transaction settled by someone else and the
// wallet balance it left behind.
func (s *service) currentState(ctx context.Context, wallet *models.Wallet, txnID string) (int64, *models.Transaction, error) {
	txn, err := s.repo.GetTransactionByID(ctx, txnID)
	if err != nil {
		return 0, nil, mapStoreError(err)
	}
	current, err := s.repo.GetByID(ctx, wallet.ID)
	if err != nil {
		return 0, txn, mapStoreError(err)
	}
	if txn.Status == models.TransactionStatusFailed {
		reason := txn.FailureReason
		if reason == "" {
			reason = "failed"
		}
		return current.Balance, txn, mapGatewayError(payment.Declined(reason, "settled as failed"))
	}
	return current.Balance, txn, nil
}

// outcome folds a processor response into a single status. An empty status
// means the outcome is unknown.
func outcome(res *payment.Result, gwErr error) payment.Status {
	switch {
	case gwErr != nil && payment.IsDeclined(gwErr):
		return payment.StatusFailed
	case gwErr != nil:
		return ""
	case res == nil:
		return ""
	default:
		return res.Status
	}
}

func failureReason(res *payment.Result, gwErr error) string {
	var gatewayErr *payment.GatewayError
	if errors.As(gwErr, &gatewayErr) && gatewayErr.Code != "" {
		return gatewayErr.Code
	}
	if res != nil && res.FailureCode != "" {
		return res.FailureCode
	}
	return "declined"
}

func externalRef(res *payment.Result) string {
	if res == nil {
		return ""
	}
	return res.ExternalRef
}
