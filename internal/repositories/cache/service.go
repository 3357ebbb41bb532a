// Package cache provides the redis-backed read cache for wallet balances.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type CacheService struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCacheService(client *redis.Client, defaultTTL time.Duration) *CacheService {
	return &CacheService{
		client: client,
		ttl:    defaultTTL,
	}
}

// Base operations
func (s *CacheService) Delete(ctx context.Context, keys ...string) error {
	return s.client.Del(ctx, keys...).Err()
}

// Key generation
func (s *CacheService) GenerateKey(entityType, keyType string, value interface{}) string {
	return fmt.Sprintf("%s:%s:%v", entityType, keyType, value)
}

// setBalanceScript writes a balance hash only when the incoming version is
// newer than the stored one. Returns 1 when written.
var setBalanceScript = redis.NewScript(`
local current = tonumber(redis.call('HGET', KEYS[1], 'version'))
local version = tonumber(ARGV[2])
if current and current >= version then
  return 0
end
redis.call('HSET', KEYS[1], 'balance', ARGV[1], 'version', version)
local ttl = tonumber(ARGV[3])
if ttl > 0 then
  redis.call('PEXPIRE', KEYS[1], ttl)
end
return 1
`)

func (s *CacheService) balanceKey(userID uint) string {
	return s.GenerateKey("wallet", "balance", userID)
}

// GetBalance returns the cached balance for a user, if present.
func (s *CacheService) GetBalance(ctx context.Context, userID uint) (int64, bool, error) {
	balance, err := s.client.HGet(ctx, s.balanceKey(userID), "balance").Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to get cached balance: %w", err)
	}
	return balance, true, nil
}

// SetBalance caches balance at version unless a newer version is cached.
func (s *CacheService) SetBalance(ctx context.Context, userID uint, balance, version int64) error {
	err := setBalanceScript.Run(ctx, s.client, []string{s.balanceKey(userID)},
		balance, version, s.ttl.Milliseconds()).Err()
	if err != nil {
		return fmt.Errorf("failed to cache balance: %w", err)
	}
	return nil
}

// InvalidateWallet drops every cached entry for the given users.
func (s *CacheService) InvalidateWallet(ctx context.Context, userIDs ...uint) error {
	if len(userIDs) == 0 {
		return nil
	}
	keys := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		keys = append(keys, s.balanceKey(id))
	}
	return s.Delete(ctx, keys...)
}

// Close closes the Redis client connection
func (s *CacheService) Close() error {
	return s.client.Close()
}
