package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"walletledger/internal/models"
	"walletledger/internal/services/wallet"
	"walletledger/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type MockWalletService struct {
	mock.Mock
}

func (m *MockWalletService) CreateWallet(ctx context.Context, userID uint, currency string) (*models.Wallet, error) {
	args := m.Called(ctx, userID, currency)
	w, _ := args.Get(0).(*models.Wallet)
	return w, args.Error(1)
}

func (m *MockWalletService) GetWallet(ctx context.Context, userID uint) (*models.Wallet, error) {
	args := m.Called(ctx, userID)
	w, _ := args.Get(0).(*models.Wallet)
	return w, args.Error(1)
}

func (m *MockWalletService) Deposit(ctx context.Context, userID uint, amount int64, paymentMethodRef string) (int64, *models.Transaction, error) {
	args := m.Called(ctx, userID, amount, paymentMethodRef)
	txn, _ := args.Get(1).(*models.Transaction)
	return args.Get(0).(int64), txn, args.Error(2)
}

func (m *MockWalletService) Withdraw(ctx context.Context, userID uint, amount int64, destinationRef string) (int64, *models.Transaction, error) {
	args := m.Called(ctx, userID, amount, destinationRef)
	txn, _ := args.Get(1).(*models.Transaction)
	return args.Get(0).(int64), txn, args.Error(2)
}

func (m *MockWalletService) Transfer(ctx context.Context, fromUserID, toUserID uint, amount int64) (int64, int64, *models.Transaction, error) {
	args := m.Called(ctx, fromUserID, toUserID, amount)
	txn, _ := args.Get(2).(*models.Transaction)
	return args.Get(0).(int64), args.Get(1).(int64), txn, args.Error(3)
}

func (m *MockWalletService) GetBalance(ctx context.Context, userID uint) (int64, error) {
	args := m.Called(ctx, userID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockWalletService) GetTransactionHistory(ctx context.Context, userID uint, opts wallet.HistoryOptions) ([]models.Transaction, error) {
	args := m.Called(ctx, userID, opts)
	txns, _ := args.Get(0).([]models.Transaction)
	return txns, args.Error(1)
}

func (m *MockWalletService) ReconcilePending(ctx context.Context, olderThan time.Duration, limit int) (wallet.ReconcileReport, error) {
	args := m.Called(ctx, olderThan, limit)
	return args.Get(0).(wallet.ReconcileReport), args.Error(1)
}

// newTestApp mounts the handler behind a stub that injects claims for user 1.
func newTestApp(t *testing.T, svc wallet.Service) *fiber.App {
	app := fiber.New()
	h := NewWalletHandler(svc, zaptest.NewLogger(t))
	api := app.Group("/wallet", func(c *fiber.Ctx) error {
		c.Locals("claims", &models.UserClaims{UserID: 1, Role: "user"})
		return c.Next()
	})
	api.Post("/", h.CreateWallet)
	api.Get("/", h.GetWallet)
	api.Get("/balance", h.GetBalance)
	api.Post("/deposit", h.Deposit)
	api.Post("/withdraw", h.Withdraw)
	api.Post("/transfer", h.Transfer)
	api.Get("/transactions", h.GetTransactionHistory)
	return app
}

func doRequest(t *testing.T, app *fiber.App, method, path, body string) (int, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]interface{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func txnWithStatus(kind, status string, amount int64) *models.Transaction {
	return &models.Transaction{ID: "txn-1", Kind: kind, Amount: amount, Currency: "USD", Status: status}
}

func TestWalletHandler_CreateWallet(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		setup      func(*MockWalletService)
		wantStatus int
		wantCode   string
	}{
		{
			name: "created",
			body: `{"currency":"eur"}`,
			setup: func(m *MockWalletService) {
				m.On("CreateWallet", mock.Anything, uint(1), "eur").
					Return(&models.Wallet{ID: 3, UserID: 1, Currency: "EUR"}, nil).Once()
			},
			wantStatus: fiber.StatusCreated,
		},
		{
			name: "empty body uses default currency",
			setup: func(m *MockWalletService) {
				m.On("CreateWallet", mock.Anything, uint(1), "").
					Return(&models.Wallet{ID: 3, UserID: 1, Currency: "USD"}, nil).Once()
			},
			wantStatus: fiber.StatusCreated,
		},
		{
			name:       "malformed currency",
			body:       `{"currency":"EURO"}`,
			wantStatus: fiber.StatusBadRequest,
		},
		{
			name: "already exists",
			body: `{"currency":"USD"}`,
			setup: func(m *MockWalletService) {
				m.On("CreateWallet", mock.Anything, uint(1), "USD").Return(nil, wallet.ErrAlreadyExists).Once()
			},
			wantStatus: fiber.StatusConflict,
			wantCode:   "WALLET_EXISTS",
		},
		{
			name: "unsupported currency",
			body: `{"currency":"ZZZ"}`,
			setup: func(m *MockWalletService) {
				m.On("CreateWallet", mock.Anything, uint(1), "ZZZ").Return(nil, wallet.ErrInvalidCurrency).Once()
			},
			wantStatus: fiber.StatusBadRequest,
			wantCode:   "INVALID_CURRENCY",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockWalletService)
			if tt.setup != nil {
				tt.setup(svc)
			}
			app := newTestApp(t, svc)

			status, body := doRequest(t, app, "POST", "/wallet", tt.body)
			assert.Equal(t, tt.wantStatus, status)
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, body["code"])
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestWalletHandler_GetBalance(t *testing.T) {
	svc := new(MockWalletService)
	svc.On("GetWallet", mock.Anything, uint(1)).Return(&models.Wallet{ID: 3, UserID: 1, Currency: "USD", Balance: 1}, nil)
	svc.On("GetBalance", mock.Anything, uint(1)).Return(int64(1050), nil)
	app := newTestApp(t, svc)

	status, body := doRequest(t, app, "GET", "/wallet/balance", "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.EqualValues(t, 1050, body["balance"])
	assert.Equal(t, "10.50", body["balance_display"])
	assert.Equal(t, "USD", body["currency"])
}

func TestWalletHandler_GetWalletNotFound(t *testing.T) {
	svc := new(MockWalletService)
	svc.On("GetWallet", mock.Anything, uint(1)).Return(nil, wallet.ErrNotFound)
	app := newTestApp(t, svc)

	status, body := doRequest(t, app, "GET", "/wallet", "")
	assert.Equal(t, fiber.StatusNotFound, status)
	assert.Equal(t, "WALLET_NOT_FOUND", body["code"])
}

func TestWalletHandler_Deposit(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		setup      func(*MockWalletService)
		wantStatus int
		wantCode   string
	}{
		{
			name: "succeeded",
			body: `{"amount":500,"payment_method":"pm_card_visa"}`,
			setup: func(m *MockWalletService) {
				m.On("Deposit", mock.Anything, uint(1), int64(500), "pm_card_visa").
					Return(int64(500), txnWithStatus("deposit", "succeeded", 500), nil).Once()
			},
			wantStatus: fiber.StatusOK,
		},
		{
			name: "processor still processing",
			body: `{"amount":500,"payment_method":"pm_card_visa"}`,
			setup: func(m *MockWalletService) {
				m.On("Deposit", mock.Anything, uint(1), int64(500), "pm_card_visa").
					Return(int64(0), txnWithStatus("deposit", "pending", 500), nil).Once()
			},
			wantStatus: fiber.StatusAccepted,
		},
		{
			name: "declined",
			body: `{"amount":500,"payment_method":"pm_bad"}`,
			setup: func(m *MockWalletService) {
				m.On("Deposit", mock.Anything, uint(1), int64(500), "pm_bad").
					Return(int64(0), txnWithStatus("deposit", "failed", 500), fmt.Errorf("%w: card_declined", wallet.ErrUpstream)).Once()
			},
			wantStatus: fiber.StatusBadGateway,
			wantCode:   "UPSTREAM_ERROR",
		},
		{
			name: "outcome unknown",
			body: `{"amount":500,"payment_method":"pm_card_visa"}`,
			setup: func(m *MockWalletService) {
				m.On("Deposit", mock.Anything, uint(1), int64(500), "pm_card_visa").
					Return(int64(0), txnWithStatus("deposit", "pending", 500), wallet.ErrUpstreamTimeout).Once()
			},
			wantStatus: fiber.StatusGatewayTimeout,
			wantCode:   "UPSTREAM_TIMEOUT",
		},
		{
			name:       "negative amount",
			body:       `{"amount":-5,"payment_method":"pm"}`,
			wantStatus: fiber.StatusBadRequest,
		},
		{
			name:       "missing payment method",
			body:       `{"amount":5}`,
			wantStatus: fiber.StatusBadRequest,
		},
		{
			name:       "malformed json",
			body:       `{"amount":`,
			wantStatus: fiber.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockWalletService)
			if tt.setup != nil {
				tt.setup(svc)
			}
			app := newTestApp(t, svc)

			status, body := doRequest(t, app, "POST", "/wallet/deposit", tt.body)
			assert.Equal(t, tt.wantStatus, status)
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, body["code"])
				assert.Equal(t, "txn-1", body["transaction_id"])
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestWalletHandler_Withdraw(t *testing.T) {
	t.Run("succeeded", func(t *testing.T) {
		svc := new(MockWalletService)
		svc.On("Withdraw", mock.Anything, uint(1), int64(30), "ba_1").
			Return(int64(70), txnWithStatus("withdraw", "succeeded", 30), nil).Once()
		app := newTestApp(t, svc)

		status, body := doRequest(t, app, "POST", "/wallet/withdraw", `{"amount":30,"destination":"ba_1"}`)
		assert.Equal(t, fiber.StatusOK, status)
		assert.EqualValues(t, 70, body["balance"])
		assert.Equal(t, "0.70", body["balance_display"])
		txn, ok := body["transaction"].(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "0.30", txn["amount_display"])
		assert.Equal(t, "withdraw", txn["kind"])
	})

	t.Run("insufficient funds", func(t *testing.T) {
		svc := new(MockWalletService)
		svc.On("Withdraw", mock.Anything, uint(1), int64(150), "ba_1").
			Return(int64(0), nil, wallet.ErrInsufficientFunds).Once()
		app := newTestApp(t, svc)

		status, body := doRequest(t, app, "POST", "/wallet/withdraw", `{"amount":150,"destination":"ba_1"}`)
		assert.Equal(t, fiber.StatusUnprocessableEntity, status)
		assert.Equal(t, "INSUFFICIENT_FUNDS", body["code"])
		assert.NotContains(t, body, "transaction_id")
	})
}

func TestWalletHandler_Transfer(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		setup      func(*MockWalletService)
		wantStatus int
	}{
		{
			name: "succeeded",
			body: `{"to_user_id":2,"amount":40}`,
			setup: func(m *MockWalletService) {
				m.On("Transfer", mock.Anything, uint(1), uint(2), int64(40)).
					Return(int64(60), int64(45), txnWithStatus("transfer", "succeeded", 40), nil).Once()
			},
			wantStatus: fiber.StatusOK,
		},
		{
			name: "same account",
			body: `{"to_user_id":1,"amount":40}`,
			setup: func(m *MockWalletService) {
				m.On("Transfer", mock.Anything, uint(1), uint(1), int64(40)).
					Return(int64(0), int64(0), nil, wallet.ErrSameAccount).Once()
			},
			wantStatus: fiber.StatusBadRequest,
		},
		{
			name: "storage conflict",
			body: `{"to_user_id":2,"amount":40}`,
			setup: func(m *MockWalletService) {
				m.On("Transfer", mock.Anything, uint(1), uint(2), int64(40)).
					Return(int64(0), int64(0), nil, fmt.Errorf("%w: deadlock", wallet.ErrStorageConflict)).Once()
			},
			wantStatus: fiber.StatusServiceUnavailable,
		},
		{
			name: "unexpected error",
			body: `{"to_user_id":2,"amount":40}`,
			setup: func(m *MockWalletService) {
				m.On("Transfer", mock.Anything, uint(1), uint(2), int64(40)).
					Return(int64(0), int64(0), nil, fmt.Errorf("disk full")).Once()
			},
			wantStatus: fiber.StatusInternalServerError,
		},
		{
			name:       "missing recipient",
			body:       `{"amount":40}`,
			wantStatus: fiber.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := new(MockWalletService)
			if tt.setup != nil {
				tt.setup(svc)
			}
			app := newTestApp(t, svc)

			status, body := doRequest(t, app, "POST", "/wallet/transfer", tt.body)
			assert.Equal(t, tt.wantStatus, status)
			if tt.wantStatus == fiber.StatusOK {
				assert.EqualValues(t, 60, body["balance"])
			}
			svc.AssertExpectations(t)
		})
	}
}

func TestWalletHandler_GetTransactionHistory(t *testing.T) {
	svc := new(MockWalletService)
	svc.On("GetTransactionHistory", mock.Anything, uint(1), wallet.HistoryOptions{Limit: 2, Offset: 4}).
		Return([]models.Transaction{
			*txnWithStatus("withdraw", "succeeded", 20),
			*txnWithStatus("deposit", "succeeded", 50),
		}, nil).Once()
	app := newTestApp(t, svc)

	status, body := doRequest(t, app, "GET", "/wallet/transactions?limit=2&offset=4", "")
	require.Equal(t, fiber.StatusOK, status)

	data, ok := body["data"].([]interface{})
	require.True(t, ok)
	require.Len(t, data, 2)
	first := data[0].(map[string]interface{})
	assert.EqualValues(t, 20, first["amount"])
	assert.Equal(t, "0.20", first["amount_display"])

	page := body["pagination"].(map[string]interface{})
	assert.EqualValues(t, 2, page["limit"])
	assert.EqualValues(t, 4, page["offset"])
	svc.AssertExpectations(t)
}

func TestWalletHandler_RequiresClaims(t *testing.T) {
	app := fiber.New()
	h := NewWalletHandler(new(MockWalletService), nil)
	app.Get("/wallet", h.GetWallet)

	status, _ := doRequest(t, app, "GET", "/wallet", "")
	assert.Equal(t, fiber.StatusUnauthorized, status)
}

func TestHealthHandler(t *testing.T) {
	db := testutil.NewTestDB(t)
	app := fiber.New()
	h := NewHealthHandler(db, nil)
	app.Get("/health", h.HealthCheck)
	app.Get("/cache-stats", h.CacheStats)

	status, body := doRequest(t, app, "GET", "/health", "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
	services := body["services"].(map[string]interface{})
	assert.Equal(t, "connected", services["database"])
	assert.Equal(t, "disabled", services["redis"])

	status, _ = doRequest(t, app, "GET", "/cache-stats", "")
	assert.Equal(t, fiber.StatusNotFound, status)
}
