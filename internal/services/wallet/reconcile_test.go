package wallet

import (
	"context"
	"errors"
	"testing"
	"time"

	"walletledger/internal/models"
	"walletledger/internal/services/payment"
	"walletledger/internal/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func (e *testEnv) seedPending(t *testing.T, wallet *models.Wallet, kind string, amount int64, ref string, age time.Duration) *models.Transaction {
	t.Helper()
	txn := &models.Transaction{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Kind:      kind,
		Amount:    amount,
		Currency:  wallet.Currency,
		AccountID: &wallet.ID,
		Status:    models.TransactionStatusPending,
		CreatedAt: time.Now().UTC().Add(-age),
	}
	txn.UpdatedAt = txn.CreatedAt
	txn.ExternalRef = ref
	if kind == models.TransactionKindDeposit {
		txn.PaymentMethodRef = "pm_card_visa"
	} else {
		txn.DestinationRef = "ba_1"
	}
	require.NoError(t, e.db.Create(txn).Error)
	return txn
}

func (e *testEnv) statusOf(t *testing.T, id string) string {
	t.Helper()
	var txn models.Transaction
	require.NoError(t, e.db.First(&txn, "id = ?", id).Error)
	return txn.Status
}

func TestService_ReconcilePending(t *testing.T) {
	t.Run("settles a deposit confirmed by the processor", func(t *testing.T) {
		env := newTestEnv(t)
		w := testutil.SeedWallet(t, env.db, 1, "USD", 10)
		txn := env.seedPending(t, w, models.TransactionKindDeposit, 50, "pi_1", time.Hour)
		env.gateway.On("ChargeStatus", mock.Anything, "pi_1").Return(succeeded("pi_1"), nil).Once()

		report, err := env.svc.ReconcilePending(context.Background(), time.Minute, 10)
		require.NoError(t, err)
		assert.Equal(t, ReconcileReport{Scanned: 1, Settled: 1}, report)
		assert.Equal(t, models.TransactionStatusSucceeded, env.statusOf(t, txn.ID))
		assert.Equal(t, int64(60), env.balanceOf(t, 1))
	})

	t.Run("replays a deposit without reference using its idempotency key", func(t *testing.T) {
		env := newTestEnv(t)
		w := testutil.SeedWallet(t, env.db, 1, "USD", 0)
		txn := env.seedPending(t, w, models.TransactionKindDeposit, 50, "", time.Hour)
		env.gateway.On("Charge", mock.Anything, mock.MatchedBy(func(r payment.ChargeRequest) bool {
			return r.IdempotencyKey == txn.ID && r.Amount == 50 && r.PaymentMethodRef == "pm_card_visa"
		})).Return(nil, payment.Declined("card_declined", "declined")).Once()

		report, err := env.svc.ReconcilePending(context.Background(), time.Minute, 10)
		require.NoError(t, err)
		assert.Equal(t, ReconcileReport{Scanned: 1, Failed: 1}, report)
		assert.Equal(t, models.TransactionStatusFailed, env.statusOf(t, txn.ID))
		assert.Equal(t, int64(0), env.balanceOf(t, 1))
	})

	t.Run("compensates a withdrawal the processor failed", func(t *testing.T) {
		env := newTestEnv(t)
		// Funds of the pending withdrawal are already reserved.
		w := testutil.SeedWallet(t, env.db, 1, "USD", 60)
		txn := env.seedPending(t, w, models.TransactionKindWithdraw, 40, "po_1", time.Hour)
		env.gateway.On("PayoutStatus", mock.Anything, "po_1").
			Return(&payment.Result{ExternalRef: "po_1", Status: payment.StatusFailed, FailureCode: "account_closed"}, nil).Once()

		report, err := env.svc.ReconcilePending(context.Background(), time.Minute, 10)
		require.NoError(t, err)
		assert.Equal(t, ReconcileReport{Scanned: 1, Failed: 1}, report)
		assert.Equal(t, models.TransactionStatusFailed, env.statusOf(t, txn.ID))
		assert.Equal(t, int64(100), env.balanceOf(t, 1))
	})

	t.Run("settles a paid out withdrawal without moving funds", func(t *testing.T) {
		env := newTestEnv(t)
		w := testutil.SeedWallet(t, env.db, 1, "USD", 60)
		txn := env.seedPending(t, w, models.TransactionKindWithdraw, 40, "", time.Hour)
		env.gateway.On("Payout", mock.Anything, mock.MatchedBy(func(r payment.PayoutRequest) bool {
			return r.IdempotencyKey == txn.ID && r.DestinationRef == "ba_1"
		})).Return(succeeded("po_2"), nil).Once()

		report, err := env.svc.ReconcilePending(context.Background(), time.Minute, 10)
		require.NoError(t, err)
		assert.Equal(t, ReconcileReport{Scanned: 1, Settled: 1}, report)
		assert.Equal(t, models.TransactionStatusSucceeded, env.statusOf(t, txn.ID))
		assert.Equal(t, int64(60), env.balanceOf(t, 1))
	})

	t.Run("keeps transactions pending when the outcome is still unknown", func(t *testing.T) {
		env := newTestEnv(t)
		w := testutil.SeedWallet(t, env.db, 1, "USD", 0)
		lookup := env.seedPending(t, w, models.TransactionKindDeposit, 50, "pi_1", time.Hour)
		processing := env.seedPending(t, w, models.TransactionKindDeposit, 20, "pi_2", time.Hour)
		env.gateway.On("ChargeStatus", mock.Anything, "pi_1").Return(nil, errors.New("connection refused")).Once()
		env.gateway.On("ChargeStatus", mock.Anything, "pi_2").
			Return(&payment.Result{ExternalRef: "pi_2", Status: payment.StatusPending}, nil).Once()

		report, err := env.svc.ReconcilePending(context.Background(), time.Minute, 10)
		require.NoError(t, err)
		assert.Equal(t, ReconcileReport{Scanned: 2, StillPending: 2}, report)
		assert.Equal(t, models.TransactionStatusPending, env.statusOf(t, lookup.ID))
		assert.Equal(t, models.TransactionStatusPending, env.statusOf(t, processing.ID))
		assert.Equal(t, int64(0), env.balanceOf(t, 1))
	})

	t.Run("payouts in transit do not starve the rest of the backlog", func(t *testing.T) {
		env := newTestEnv(t)
		w := testutil.SeedWallet(t, env.db, 1, "USD", 0)
		inTransit := env.seedPending(t, w, models.TransactionKindWithdraw, 30, "po_1", 2*time.Hour)
		deposit := env.seedPending(t, w, models.TransactionKindDeposit, 50, "pi_1", time.Hour)
		env.gateway.On("PayoutStatus", mock.Anything, "po_1").
			Return(&payment.Result{ExternalRef: "po_1", Status: payment.StatusPending}, nil).Once()
		env.gateway.On("ChargeStatus", mock.Anything, "pi_1").Return(succeeded("pi_1"), nil).Once()

		report, err := env.svc.ReconcilePending(context.Background(), time.Minute, 1)
		require.NoError(t, err)
		assert.Equal(t, ReconcileReport{Scanned: 1, StillPending: 1}, report)

		report, err = env.svc.ReconcilePending(context.Background(), time.Minute, 1)
		require.NoError(t, err)
		assert.Equal(t, ReconcileReport{Scanned: 1, Settled: 1}, report)
		assert.Equal(t, models.TransactionStatusSucceeded, env.statusOf(t, deposit.ID))
		assert.Equal(t, models.TransactionStatusPending, env.statusOf(t, inTransit.ID))
		assert.Equal(t, int64(50), env.balanceOf(t, 1))
	})

	t.Run("skips recent and settled transactions", func(t *testing.T) {
		env := newTestEnv(t)
		w := testutil.SeedWallet(t, env.db, 1, "USD", 0)
		env.seedPending(t, w, models.TransactionKindDeposit, 50, "pi_new", time.Second)
		old := env.seedPending(t, w, models.TransactionKindDeposit, 50, "pi_old", time.Hour)
		require.NoError(t, env.db.Model(&models.Transaction{}).Where("id = ?", old.ID).
			Update("status", models.TransactionStatusSucceeded).Error)

		report, err := env.svc.ReconcilePending(context.Background(), time.Minute, 10)
		require.NoError(t, err)
		assert.Equal(t, ReconcileReport{}, report)
	})

	t.Run("is safe to run twice", func(t *testing.T) {
		env := newTestEnv(t)
		w := testutil.SeedWallet(t, env.db, 1, "USD", 0)
		env.seedPending(t, w, models.TransactionKindDeposit, 50, "pi_1", time.Hour)
		env.gateway.On("ChargeStatus", mock.Anything, "pi_1").Return(succeeded("pi_1"), nil).Once()

		_, err := env.svc.ReconcilePending(context.Background(), time.Minute, 10)
		require.NoError(t, err)
		report, err := env.svc.ReconcilePending(context.Background(), time.Minute, 10)
		require.NoError(t, err)
		assert.Zero(t, report.Scanned)
		assert.Equal(t, int64(50), env.balanceOf(t, 1))
	})
}
