package wallet

import "time"

// Default configuration values
const (
	DefaultCurrency              = "USD"
	DefaultGatewayTimeout        = 15 * time.Second
	DefaultStorageRetryAttempts  = 3
	DefaultStorageRetryBaseDelay = 20 * time.Millisecond
	DefaultCompensationAttempts  = 2
	DefaultPublishTimeout        = 5 * time.Second
)

// Operation names used in logs and metrics.
const (
	opCreateWallet = "create_wallet"
	opDeposit      = "deposit"
	opWithdraw     = "withdraw"
	opTransfer     = "transfer"
	opGetBalance   = "get_balance"
	opHistory      = "transaction_history"
	opCompensate   = "compensate"
	opReconcile    = "reconcile"
)
