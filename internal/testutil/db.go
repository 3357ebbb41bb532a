// Package testutil provides shared helpers for package tests.
package testutil

import (
	"fmt"
	"testing"

	"walletledger/internal/models"
	"walletledger/internal/repositories"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewTestDB opens a private in-memory SQLite database with the ledger schema.
// A single connection serialises transactions the way row locks would.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Discard,
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, repositories.Migrate(db))
	return db
}

// SeedUser inserts an identity-service user.
func SeedUser(t *testing.T, db *gorm.DB, id uint, email string) *models.User {
	t.Helper()
	user := &models.User{ID: id, Email: email}
	require.NoError(t, db.Create(user).Error)
	return user
}

// SeedWallet inserts a wallet with the given balance, bypassing the service.
func SeedWallet(t *testing.T, db *gorm.DB, userID uint, currency string, balance int64) *models.Wallet {
	t.Helper()
	wallet := &models.Wallet{
		UserID:             userID,
		Currency:           currency,
		GatewayCustomerRef: fmt.Sprintf("cus_%d", userID),
	}
	require.NoError(t, db.Create(wallet).Error)
	if balance != 0 {
		require.NoError(t, db.Model(wallet).Update("balance", balance).Error)
		wallet.Balance = balance
	}
	return wallet
}
