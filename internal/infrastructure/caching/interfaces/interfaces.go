// Package interfaces defines the cache backend contract shared by the route
// cache, the invalidation snapshots and the tag registry.
package interfaces

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss is returned by Backend.Get for absent or expired keys.
var ErrCacheMiss = errors.New("cache miss")

// Backend is a byte-oriented key/value store with per-key expiry.
// A ttl <= 0 stores the value without expiry.
type Backend interface {
	Name() string
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	DeleteByPrefix(ctx context.Context, prefix string) (int, error)
	Close() error
}

// Sweeper is implemented by backends that keep expired entries until an
// explicit purge.
type Sweeper interface {
	PurgeExpired() int
}

// Sizer is implemented by backends that can report their entry count cheaply.
type Sizer interface {
	Len() int
}

// IndexedDeleter is implemented by backends that can remove the keys written
// directly under a prefix without walking the keyspace.
type IndexedDeleter interface {
	DeleteIndexed(ctx context.Context, prefix string) (int, error)
}
