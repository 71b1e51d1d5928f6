package cache

import (
	"context"
	"crypto/sha256"
	"fmt"
	"time"
)

// Store is a byte-valued TTL cache. Implementations must never return an
// entry past its expiry; they are not required to deduplicate concurrent
// recomputation of the same key.
type Store interface {
	// Get returns the value for key, or nil with no error on a miss.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value under key for ttl.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete removes key if present.
	Delete(ctx context.Context, key string) error
	// DeleteByPrefix removes every key with the given prefix.
	DeleteByPrefix(ctx context.Context, prefix string) error
	Close() error
}

// HashKey derives a fixed-width cache key segment from arbitrary input.
func HashKey(s string) string {
	h := sha256.Sum256([]byte(s))
	return fmt.Sprintf("%x", h[:8])
}
