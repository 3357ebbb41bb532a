package wallet

import (
	"errors"
	"fmt"

	apperrors "walletledger/internal/errors"
	"walletledger/internal/repositories"
	"walletledger/internal/services/payment"
)

// Service errors. Each is a *DomainError so callers can map the code.
var (
	ErrInvalidAmount      = apperrors.ErrInvalidAmount
	ErrInvalidCurrency    = apperrors.ErrInvalidCurrency
	ErrNotFound           = apperrors.ErrWalletNotFound
	ErrAlreadyExists      = apperrors.ErrWalletExists
	ErrSameAccount        = apperrors.ErrSameAccount
	ErrCurrencyMismatch   = apperrors.ErrCurrencyMismatch
	ErrInsufficientFunds  = apperrors.ErrInsufficientFunds
	ErrUpstream           = apperrors.ErrUpstream
	ErrUpstreamTimeout    = apperrors.ErrUpstreamTimeout
	ErrStorageConflict    = apperrors.ErrStorageConflict
	ErrCompensationFailed = apperrors.ErrCompensationFailed
)

// mapStoreError converts repository sentinels into service errors.
func mapStoreError(err error) error {
	var domainErr *apperrors.DomainError
	switch {
	case err == nil:
		return nil
	case errors.As(err, &domainErr):
		return err
	case errors.Is(err, repositories.ErrWalletNotFound):
		return ErrNotFound
	case errors.Is(err, repositories.ErrInsufficientBalance):
		return ErrInsufficientFunds
	case errors.Is(err, repositories.ErrDuplicateWallet):
		return ErrAlreadyExists
	case errors.Is(err, repositories.ErrConflict):
		return fmt.Errorf("%w: %w", ErrStorageConflict, err)
	default:
		return err
	}
}

// mapGatewayError converts a processor failure into a service error.
func mapGatewayError(err error) error {
	if payment.IsDeclined(err) {
		return fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	return fmt.Errorf("%w: %w", ErrUpstreamTimeout, err)
}

// errorType labels an error for metrics.
func errorType(err error) string {
	var domainErr *apperrors.DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return "INTERNAL"
}
