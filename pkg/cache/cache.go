// Package cache backs the HTTP indicator fetcher: polled responses are
// kept for their configured TTL so sources are not re-hit inside the
// freshness window. Single-node runs use the in-memory store; when a
// shared Redis tier is configured the layered store puts Redis behind
// the memory tier.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned when a key is absent or expired.
var ErrMiss = errors.New("cache: miss")

// Store holds JSON-encoded values with a per-entry TTL.
type Store interface {
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Key builds a namespaced cache key.
func Key(prefix, id string) string {
	return prefix + ":" + id
}
