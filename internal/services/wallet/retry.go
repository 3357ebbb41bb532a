package wallet

import (
	"context"
	"errors"

	"walletledger/internal/repositories"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// atomically runs fn in a single store transaction, retrying with
// exponential backoff while the store reports a conflict. Any other error
// stops the retries and is returned mapped to a service error.
func (s *service) atomically(ctx context.Context, operation string, fn func(repositories.WalletRepository) error) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = s.config.StorageRetryBaseDelay
	policy.MaxInterval = 20 * s.config.StorageRetryBaseDelay
	policy.MaxElapsedTime = 0

	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		err := s.repo.ExecuteInTransaction(ctx, fn)
		if err == nil {
			return nil
		}
		if errors.Is(err, repositories.ErrConflict) {
			s.logger.Debug("storage conflict, retrying",
				zap.String("operation", operation),
				zap.Int("attempt", attempt),
				zap.Error(err),
			)
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(backoff.WithMaxRetries(policy, uint64(s.config.StorageRetryAttempts-1)), ctx))

	if err != nil && errors.Is(err, repositories.ErrConflict) {
		s.logger.Warn("storage conflict retries exhausted",
			zap.String("operation", operation),
			zap.Int("attempts", attempt),
		)
	}
	return err
}
