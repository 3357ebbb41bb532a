package wallet

import "context"

// noopCache is used when no balance cache is configured. Every read misses.
type noopCache struct{}

func (noopCache) GetBalance(context.Context, uint) (int64, bool, error) { return 0, false, nil }
func (noopCache) SetBalance(context.Context, uint, int64, int64) error  { return nil }
func (noopCache) InvalidateWallet(context.Context, ...uint) error       { return nil }
