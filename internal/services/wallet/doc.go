/*
Package wallet implements the wallet ledger engine.

The service keeps one balance per user, in minor units of a single
currency, and records every balance-affecting event as a Transaction:
- Deposits are charged through the payment gateway and credited only after
  the gateway confirms the charge
- Withdrawals reserve funds first, then request a payout; a declined payout
  is compensated by crediting the funds back
- Transfers move funds between two wallets in one atomic update

Usage:

	svc := wallet.NewService(repo, users, gateway, wallet.WalletConfig{},
	    wallet.WithCache(cacheService),
	    wallet.WithLogger(logger),
	)

	w, err := svc.CreateWallet(ctx, userID, "USD")
	balance, txn, err := svc.Deposit(ctx, userID, 5000, "pm_card_visa")
	from, to, txn, err := svc.Transfer(ctx, userID, otherUserID, 1500)
	history, err := svc.GetTransactionHistory(ctx, userID, wallet.HistoryOptions{Limit: 20})

Consistency:

Balances only change inside WalletRepository.ExecuteInTransaction, always
paired with a transaction write. Gateway calls never run inside a store
transaction. Each transaction ID is the gateway idempotency key, so a
pending deposit or withdrawal can be replayed safely by ReconcilePending.

Error Handling:

Every error returned by the service wraps one of the DomainError sentinels
in errors.go:
- ErrInvalidAmount, ErrInvalidCurrency, ErrSameAccount: rejected input
- ErrInsufficientFunds: a debit would make the balance negative
- ErrUpstream: the gateway definitely refused the request
- ErrUpstreamTimeout: the gateway outcome is unknown, the transaction is pending
- ErrStorageConflict: storage conflicts persisted after the configured retries
- ErrCompensationFailed: a declined withdrawal could not be reverted
*/
package wallet
