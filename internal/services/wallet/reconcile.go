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

// ReconcilePending drives pending deposits and withdrawals to a terminal
// state. Transactions with a processor reference are looked up; the others
// are replayed with their original idempotency key, which the processor
// deduplicates. Outcomes that are still unknown stay pending and move behind
// the rest of the backlog, so a batch never stalls on the same transactions.
func (s *service) ReconcilePending(ctx context.Context, olderThan time.Duration, limit int) (report ReconcileReport, err error) {
	defer s.observe(opReconcile, time.Now(), &err)

	pending, err := s.repo.ListPendingTransactions(ctx, time.Now().UTC().Add(-olderThan), limit)
	if err != nil {
		return report, mapStoreError(err)
	}

	for i := range pending {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		txn := &pending[i]
		report.Scanned++

		status, err := s.reconcileOne(ctx, txn)
		log := s.logger.With(
			zap.String("transaction_id", txn.ID),
			zap.String("kind", txn.Kind),
		)
		switch {
		case errors.Is(err, ErrCompensationFailed):
			report.Errors++
			log.Error("reconciliation could not compensate withdrawal", zap.Error(err))
		case errors.Is(err, ErrUpstreamTimeout):
			report.StillPending++
			log.Debug("processor outcome still unknown", zap.Error(err))
		case status == models.TransactionStatusSucceeded:
			report.Settled++
		case status == models.TransactionStatusFailed:
			report.Failed++
		case err != nil:
			report.Errors++
			log.Warn("reconciliation failed", zap.Error(err))
		default:
			report.StillPending++
		}

		if status != models.TransactionStatusSucceeded && status != models.TransactionStatusFailed {
			// Requeue behind the rest of the backlog.
			if err := s.repo.TouchTransaction(ctx, txn.ID); err != nil && !errors.Is(err, repositories.ErrTransactionSettled) {
				log.Warn("failed to requeue pending transaction", zap.Error(err))
			}
		}
	}

	s.logger.Info("reconciliation pass finished",
		zap.Int("scanned", report.Scanned),
		zap.Int("settled", report.Settled),
		zap.Int("failed", report.Failed),
		zap.Int("still_pending", report.StillPending),
		zap.Int("errors", report.Errors),
	)
	return report, nil
}

// reconcileOne resolves a single pending transaction and returns the status
// it ended in.
func (s *service) reconcileOne(ctx context.Context, txn *models.Transaction) (string, error) {
	if txn.AccountID == nil {
		return "", fmt.Errorf("transaction %s has no account", txn.ID)
	}
	wallet, err := s.repo.GetByID(ctx, *txn.AccountID)
	if err != nil {
		return "", mapStoreError(err)
	}

	gwCtx, cancel := context.WithTimeout(ctx, s.config.GatewayTimeout)
	defer cancel()

	var (
		res     *payment.Result
		gwErr   error
		settled *models.Transaction
	)
	switch txn.Kind {
	case models.TransactionKindDeposit:
		if txn.ExternalRef != "" {
			res, gwErr = s.gateway.ChargeStatus(gwCtx, txn.ExternalRef)
		} else {
			res, gwErr = s.gateway.Charge(gwCtx, payment.ChargeRequest{
				IdempotencyKey:   txn.ID,
				CustomerRef:      wallet.GatewayCustomerRef,
				Amount:           txn.Amount,
				Currency:         txn.Currency,
				PaymentMethodRef: txn.PaymentMethodRef,
			})
		}
		if txn.ExternalRef != "" && gwErr != nil {
			// A failed lookup says nothing about the charge itself.
			return "", fmt.Errorf("%w: %w", ErrUpstreamTimeout, gwErr)
		}
		_, settled, err = s.settleDeposit(ctx, wallet, txn, res, gwErr)

	case models.TransactionKindWithdraw:
		if txn.ExternalRef != "" {
			res, gwErr = s.gateway.PayoutStatus(gwCtx, txn.ExternalRef)
		} else {
			res, gwErr = s.gateway.Payout(gwCtx, payment.PayoutRequest{
				IdempotencyKey: txn.ID,
				Amount:         txn.Amount,
				Currency:       txn.Currency,
				DestinationRef: txn.DestinationRef,
			})
		}
		if txn.ExternalRef != "" && gwErr != nil {
			return "", fmt.Errorf("%w: %w", ErrUpstreamTimeout, gwErr)
		}
		_, settled, err = s.settleWithdrawal(ctx, wallet, txn, res, gwErr)

	default:
		return "", fmt.Errorf("transaction %s of kind %q cannot be reconciled", txn.ID, txn.Kind)
	}

	if settled == nil {
		return "", err
	}
	if errors.Is(err, ErrUpstream) && settled.Status == models.TransactionStatusFailed {
		return settled.Status, nil
	}
	return settled.Status, err
}
