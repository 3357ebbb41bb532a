package wallet

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"walletledger/internal/models"
	"walletledger/internal/repositories"
	"walletledger/internal/services/payment"

	"github.com/stretchr/testify/mock"
)

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) CreateCustomer(ctx context.Context, email string) (string, error) {
	args := m.Called(ctx, email)
	return args.String(0), args.Error(1)
}

func (m *MockGateway) Charge(ctx context.Context, req payment.ChargeRequest) (*payment.Result, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*payment.Result)
	return res, args.Error(1)
}

func (m *MockGateway) Payout(ctx context.Context, req payment.PayoutRequest) (*payment.Result, error) {
	args := m.Called(ctx, req)
	res, _ := args.Get(0).(*payment.Result)
	return res, args.Error(1)
}

func (m *MockGateway) ChargeStatus(ctx context.Context, externalRef string) (*payment.Result, error) {
	args := m.Called(ctx, externalRef)
	res, _ := args.Get(0).(*payment.Result)
	return res, args.Error(1)
}

func (m *MockGateway) PayoutStatus(ctx context.Context, externalRef string) (*payment.Result, error) {
	args := m.Called(ctx, externalRef)
	res, _ := args.Get(0).(*payment.Result)
	return res, args.Error(1)
}

type MockMetrics struct {
	mock.Mock
}

func (m *MockMetrics) RecordOperationDuration(operation string, duration time.Duration) {
	m.Called(operation, duration)
}

func (m *MockMetrics) RecordOperationResult(operation, result string) {
	m.Called(operation, result)
}

func (m *MockMetrics) RecordCacheHit(key string)  { m.Called(key) }
func (m *MockMetrics) RecordCacheMiss(key string) { m.Called(key) }

func (m *MockMetrics) RecordError(operation, errType string) {
	m.Called(operation, errType)
}

func (m *MockMetrics) RecordTransaction(kind, status string, amount int64) {
	m.Called(kind, status, amount)
}

type cachedBalance struct {
	balance int64
	version int64
}

// memoryCache is an in-process BalanceCache with the same versioned writes
// as the redis cache. beforeSet, when set, runs ahead of every write.
type memoryCache struct {
	mu        sync.Mutex
	balances  map[uint]cachedBalance
	beforeSet func(userID uint, version int64)
}

func newMemoryCache() *memoryCache {
	return &memoryCache{balances: map[uint]cachedBalance{}}
}

func (c *memoryCache) GetBalance(_ context.Context, userID uint) (int64, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.balances[userID]
	return entry.balance, ok, nil
}

func (c *memoryCache) SetBalance(_ context.Context, userID uint, balance, version int64) error {
	if c.beforeSet != nil {
		c.beforeSet(userID, version)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if current, ok := c.balances[userID]; ok && current.version >= version {
		return nil
	}
	c.balances[userID] = cachedBalance{balance: balance, version: version}
	return nil
}

func (c *memoryCache) InvalidateWallet(_ context.Context, userIDs ...uint) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, id := range userIDs {
		delete(c.balances, id)
	}
	return nil
}

func (c *memoryCache) cached(userID uint) (int64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.balances[userID]
	return entry.balance, ok
}

// recordingPublisher keeps every published event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []models.Transaction
	err    error
}

func (p *recordingPublisher) PublishTransaction(_ context.Context, txn *models.Transaction) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, *txn)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) statuses(txnID string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, e := range p.events {
		if e.ID == txnID {
			out = append(out, e.Status)
		}
	}
	return out
}

// flakyRepo injects storage failures into a real repository.
type flakyRepo struct {
	repositories.WalletRepository
	conflicts  atomic.Int32
	failCredit atomic.Bool
}

func (r *flakyRepo) ExecuteInTransaction(ctx context.Context, fn func(repositories.WalletRepository) error) error {
	if r.conflicts.Load() > 0 {
		r.conflicts.Add(-1)
		return repositories.ErrConflict
	}
	return r.WalletRepository.ExecuteInTransaction(ctx, func(tx repositories.WalletRepository) error {
		return fn(&flakyTx{WalletRepository: tx, parent: r})
	})
}

type flakyTx struct {
	repositories.WalletRepository
	parent *flakyRepo
}

func (t *flakyTx) AdjustBalance(ctx context.Context, walletID uint, delta int64) (int64, error) {
	if delta > 0 && t.parent.failCredit.Load() {
		return 0, errors.New("disk I/O error")
	}
	return t.WalletRepository.AdjustBalance(ctx, walletID, delta)
}
