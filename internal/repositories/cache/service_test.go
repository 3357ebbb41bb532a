package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateKey(t *testing.T) {
	s := NewCacheService(nil, time.Minute)
	assert.Equal(t, "wallet:balance:42", s.GenerateKey("wallet", "balance", uint(42)))
}

// TestBalanceRoundTrip needs a live server, e.g. REDIS_ADDR=localhost:6379.
func TestBalanceRoundTrip(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}

	s := NewCacheService(NewRedisClient(&RedisConfig{Addr: addr, DB: 15}), time.Minute)
	t.Cleanup(func() { _ = s.Close() })
	ctx := context.Background()
	require.NoError(t, s.HealthCheck(ctx))

	const userID = 987654
	require.NoError(t, s.InvalidateWallet(ctx, userID))

	_, ok, err := s.GetBalance(ctx, userID)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetBalance(ctx, userID, 1234, 2))
	balance, ok, err := s.GetBalance(ctx, userID)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(1234), balance)

	// An older version never replaces a newer one.
	require.NoError(t, s.SetBalance(ctx, userID, 1000, 1))
	balance, _, err = s.GetBalance(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(1234), balance)

	require.NoError(t, s.SetBalance(ctx, userID, 1500, 3))
	balance, _, err = s.GetBalance(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, int64(1500), balance)

	require.NoError(t, s.InvalidateWallet(ctx, userID, userID+1))
	_, ok, err = s.GetBalance(ctx, userID)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.NotNil(t, s.GetStats())
}
