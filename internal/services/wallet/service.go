package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"walletledger/internal/events"
	"walletledger/internal/models"
	"walletledger/internal/repositories"
	"walletledger/internal/services/payment"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type service struct {
	repo      repositories.WalletRepository
	users     repositories.UserRepository
	gateway   payment.Gateway
	config    WalletConfig
	cache     BalanceCache
	metrics   MetricsCollector
	publisher events.Publisher
	logger    *zap.Logger
}

// NewService creates a new wallet service
func NewService(
	repo repositories.WalletRepository,
	users repositories.UserRepository,
	gateway payment.Gateway,
	config WalletConfig,
	opts ...Option,
) Service {
	if repo == nil {
		panic("repo is required")
	}
	if users == nil {
		panic("user repository is required")
	}
	if gateway == nil {
		panic("payment gateway is required")
	}

	config.applyDefaults()

	s := &service{
		repo:      repo,
		users:     users,
		gateway:   gateway,
		config:    config,
		cache:     noopCache{},
		metrics:   &NoopMetricsCollector{},
		publisher: events.NopPublisher{},
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("wallet")
	return s
}

func (s *service) CreateWallet(ctx context.Context, userID uint, currency string) (wallet *models.Wallet, err error) {
	defer s.observe(opCreateWallet, time.Now(), &err)

	currency = models.NormalizeCurrency(currency)
	if currency == "" {
		currency = s.config.DefaultCurrency
	}
	if !models.IsSupportedCurrency(currency) {
		return nil, ErrInvalidCurrency
	}

	if _, err := s.repo.GetByUserID(ctx, userID); err == nil {
		return nil, ErrAlreadyExists
	} else if !errors.Is(err, repositories.ErrWalletNotFound) {
		return nil, mapStoreError(err)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, fmt.Errorf("%w: user %d does not exist", ErrNotFound, userID)
		}
		return nil, mapStoreError(err)
	}

	gwCtx, cancel := context.WithTimeout(ctx, s.config.GatewayTimeout)
	customerRef, err := s.gateway.CreateCustomer(gwCtx, user.Email)
	cancel()
	if err != nil {
		return nil, mapGatewayError(err)
	}

	wallet = &models.Wallet{
		UserID:             userID,
		Currency:           currency,
		GatewayCustomerRef: customerRef,
	}
	// The customer exists now, so persist even if the caller went away.
	persistCtx := context.WithoutCancel(ctx)
	err = s.atomically(persistCtx, opCreateWallet, func(tx repositories.WalletRepository) error {
		wallet.ID = 0
		return tx.Create(persistCtx, wallet)
	})
	if err != nil {
		if errors.Is(err, repositories.ErrDuplicateWallet) {
			s.logger.Warn("wallet created concurrently, gateway customer orphaned",
				zap.Uint("user_id", userID),
				zap.String("customer_ref", customerRef),
			)
		}
		return nil, mapStoreError(err)
	}

	s.logger.Info("wallet created",
		zap.Uint("user_id", userID),
		zap.Uint("wallet_id", wallet.ID),
		zap.String("currency", currency),
	)
	return wallet, nil
}

func (s *service) GetWallet(ctx context.Context, userID uint) (*models.Wallet, error) {
	wallet, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return wallet, nil
}

func (s *service) GetBalance(ctx context.Context, userID uint) (balance int64, err error) {
	defer s.observe(opGetBalance, time.Now(), &err)

	if cached, ok, cacheErr := s.cache.GetBalance(ctx, userID); cacheErr != nil {
		s.logger.Debug("balance cache read failed", zap.Uint("user_id", userID), zap.Error(cacheErr))
	} else if ok {
		s.metrics.RecordCacheHit(opGetBalance)
		return cached, nil
	}
	s.metrics.RecordCacheMiss(opGetBalance)

	wallet, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		return 0, mapStoreError(err)
	}

	if err := s.cache.SetBalance(ctx, userID, wallet.Balance, wallet.Version); err != nil {
		s.logger.Debug("balance cache write failed", zap.Uint("user_id", userID), zap.Error(err))
	}
	return wallet.Balance, nil
}

func (s *service) GetTransactionHistory(ctx context.Context, userID uint, opts HistoryOptions) (txns []models.Transaction, err error) {
	defer s.observe(opHistory, time.Now(), &err)

	if opts.Limit < 0 {
		opts.Limit = 0
	}
	if opts.Offset < 0 {
		opts.Offset = 0
	}

	wallet, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, mapStoreError(err)
	}

	txns, err = s.repo.GetTransactionHistory(ctx, wallet.ID, opts.Limit, opts.Offset)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return txns, nil
}

// newTransaction builds a transaction with a time-ordered ID. The ID doubles
// as the processor idempotency key.
func newTransaction(kind string, amount int64, currency string) *models.Transaction {
	return &models.Transaction{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Kind:      kind,
		Amount:    amount,
		Currency:  currency,
		Status:    models.TransactionStatusPending,
		CreatedAt: time.Now().UTC(),
	}
}

// afterMutation writes the committed balances through to the cache and
// publishes the transaction. Failures are logged; the ledger is already
// committed.
func (s *service) afterMutation(ctx context.Context, txn *models.Transaction, userIDs ...uint) {
	ctx = context.WithoutCancel(ctx)
	for _, userID := range userIDs {
		s.refreshCachedBalance(ctx, userID)
	}

	if txn == nil {
		return
	}
	s.metrics.RecordTransaction(txn.Kind, txn.Status, txn.Amount)

	pubCtx, cancel := context.WithTimeout(ctx, s.config.PublishTimeout)
	defer cancel()
	if err := s.publisher.PublishTransaction(pubCtx, txn); err != nil {
		s.logger.Warn("transaction event not published",
			zap.String("transaction_id", txn.ID),
			zap.String("status", txn.Status),
			zap.Error(err),
		)
	}
}

// refreshCachedBalance stores the latest committed balance. If that fails
// the entry is dropped and the next read refills it.
func (s *service) refreshCachedBalance(ctx context.Context, userID uint) {
	wallet, err := s.repo.GetByUserID(ctx, userID)
	if err == nil {
		err = s.cache.SetBalance(ctx, userID, wallet.Balance, wallet.Version)
	}
	if err == nil {
		return
	}

	s.logger.Warn("balance cache refresh failed", zap.Uint("user_id", userID), zap.Error(err))
	if err := s.cache.InvalidateWallet(ctx, userID); err != nil {
		s.logger.Warn("balance cache invalidation failed", zap.Uint("user_id", userID), zap.Error(err))
	}
}

func (s *service) observe(operation string, start time.Time, errp *error) {
	s.metrics.RecordOperationDuration(operation, time.Since(start))
	if errp == nil || *errp == nil {
		s.metrics.RecordOperationResult(operation, "success")
		return
	}
	s.metrics.RecordOperationResult(operation, "error")
	s.metrics.RecordError(operation, errorType(*errp))
}
