package wallet

import (
	"context"
	"time"

	"walletledger/internal/events"

	"go.uber.org/zap"
)

// WalletConfig holds configuration for wallet operations
type WalletConfig struct {
	DefaultCurrency string
	// GatewayTimeout bounds every payment processor call.
	GatewayTimeout time.Duration
	// StorageRetryAttempts is the total number of tries for an atomic
	// update that hits a storage conflict.
	StorageRetryAttempts  int
	StorageRetryBaseDelay time.Duration
	// CompensationAttempts is the total number of tries to revert a
	// withdrawal the processor declined.
	CompensationAttempts int
	PublishTimeout       time.Duration
}

func (c *WalletConfig) applyDefaults() {
	if c.DefaultCurrency == "" {
		c.DefaultCurrency = DefaultCurrency
	}
	if c.GatewayTimeout <= 0 {
		c.GatewayTimeout = DefaultGatewayTimeout
	}
	if c.StorageRetryAttempts <= 0 {
		c.StorageRetryAttempts = DefaultStorageRetryAttempts
	}
	if c.StorageRetryBaseDelay <= 0 {
		c.StorageRetryBaseDelay = DefaultStorageRetryBaseDelay
	}
	if c.CompensationAttempts <= 0 {
		c.CompensationAttempts = DefaultCompensationAttempts
	}
	if c.PublishTimeout <= 0 {
		c.PublishTimeout = DefaultPublishTimeout
	}
}

// HistoryOptions pages a transaction history query. A zero Limit returns
// every transaction.
type HistoryOptions struct {
	Limit  int
	Offset int
}

// ReconcileReport summarises one reconciliation pass.
type ReconcileReport struct {
	Scanned      int `json:"scanned"`
	Settled      int `json:"settled"`
	Failed       int `json:"failed"`
	StillPending int `json:"still_pending"`
	Errors       int `json:"errors"`
}

// BalanceCache is the read-through cache consulted by GetBalance.
// SetBalance stores balance only when version is newer than the cached
// entry, so a slow reader cannot overwrite a fresher committed balance.
type BalanceCache interface {
	GetBalance(ctx context.Context, userID uint) (int64, bool, error)
	SetBalance(ctx context.Context, userID uint, balance, version int64) error
	InvalidateWallet(ctx context.Context, userIDs ...uint) error
}

// MetricsCollector defines the interface for collecting wallet metrics
type MetricsCollector interface {
	// Operation metrics
	RecordOperationDuration(operation string, duration time.Duration)
	RecordOperationResult(operation, result string)

	// Cache metrics
	RecordCacheHit(key string)
	RecordCacheMiss(key string)

	// Error metrics
	RecordError(operation, errType string)

	// Transaction metrics
	RecordTransaction(kind, status string, amount int64)
}

// Option configures optional service collaborators.
type Option func(*service)

func WithCache(c BalanceCache) Option {
	return func(s *service) {
		if c != nil {
			s.cache = c
		}
	}
}

func WithMetrics(m MetricsCollector) Option {
	return func(s *service) {
		if m != nil {
			s.metrics = m
		}
	}
}

func WithPublisher(p events.Publisher) Option {
	return func(s *service) {
		if p != nil {
			s.publisher = p
		}
	}
}

func WithLogger(l *zap.Logger) Option {
	return func(s *service) {
		if l != nil {
			s.logger = l
		}
	}
}
