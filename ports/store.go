package ports

import (
	"context"
	"time"
)

// Store is a persisted key-value store. Get returns core.ErrNotFound for
// missing or expired keys. A zero ttl means no expiry.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
}
