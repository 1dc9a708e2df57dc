package cache

import (
	"context"
	"time"
)

// LayeredStore checks the memory tier first and falls back to the
// shared tier, backfilling memory on a lower-tier hit. Writes go to
// both tiers; a memory write never fails the operation.
type LayeredStore struct {
	local  *MemoryStore
	shared Store
}

func NewLayered(shared Store) *LayeredStore {
	return &LayeredStore{local: NewMemory(), shared: shared}
}

func (l *LayeredStore) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	_ = l.local.Set(ctx, key, value, ttl)
	return l.shared.Set(ctx, key, value, ttl)
}

func (l *LayeredStore) Get(ctx context.Context, key string, dest interface{}) error {
	if err := l.local.Get(ctx, key, dest); err == nil {
		return nil
	}
	if err := l.shared.Get(ctx, key, dest); err != nil {
		return err
	}
	// backfill without a TTL: the shared tier stays authoritative for
	// expiry and the local copy is purged with everything else
	_ = l.local.Set(ctx, key, dest, purgeInterval)
	return nil
}

func (l *LayeredStore) Delete(ctx context.Context, key string) error {
	_ = l.local.Delete(ctx, key)
	return l.shared.Delete(ctx, key)
}

func (l *LayeredStore) Close() error {
	_ = l.local.Close()
	return l.shared.Close()
}

var _ Store = (*LayeredStore)(nil)
