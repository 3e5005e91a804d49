// Package cache provides a tagged read cache used for catalog responses.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned when a key is absent or its entry has expired.
var ErrMiss = errors.New("cache: miss")

// DefaultTTL applies when a caller passes a non-positive TTL.
const DefaultTTL = 60 * time.Second

// Store persists opaque byte values under keys, each key carrying a set of
// tags that allow group invalidation.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, tags []string, ttl time.Duration) error
	InvalidateKey(ctx context.Context, key string) error
	InvalidateTag(ctx context.Context, tag string) error
}
