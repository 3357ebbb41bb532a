package errors

var (
	ErrInvalidAmount = &DomainError{
		Code:    "INVALID_AMOUNT",
		Message: "amount must be a positive integer in minor units",
	}
	ErrInvalidCurrency = &DomainError{
		Code:    "INVALID_CURRENCY",
		Message: "unsupported currency",
	}
	ErrWalletNotFound = &DomainError{
		Code:    "WALLET_NOT_FOUND",
		Message: "wallet not found",
	}
	ErrWalletExists = &DomainError{
		Code:    "WALLET_EXISTS",
		Message: "wallet already exists",
	}
	ErrSameAccount = &DomainError{
		Code:    "SAME_ACCOUNT",
		Message: "cannot transfer to the same wallet",
	}
	ErrCurrencyMismatch = &DomainError{
		Code:    "CURRENCY_MISMATCH",
		Message: "wallet currencies differ",
	}
	ErrInsufficientFunds = &DomainError{
		Code:    "INSUFFICIENT_FUNDS",
		Message: "insufficient wallet balance",
	}
	ErrUpstream = &DomainError{
		Code:    "UPSTREAM_ERROR",
		Message: "payment provider rejected the request",
	}
	ErrUpstreamTimeout = &DomainError{
		Code:    "UPSTREAM_TIMEOUT",
		Message: "payment provider outcome unknown, transaction pending",
	}
	ErrStorageConflict = &DomainError{
		Code:    "STORAGE_CONFLICT",
		Message: "storage conflict, retry later",
	}
	ErrCompensationFailed = &DomainError{
		Code:    "COMPENSATION_FAILED",
		Message: "withdrawal could not be reverted",
	}
)
