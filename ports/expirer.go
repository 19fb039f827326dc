package ports

import (
	"context"
	"time"
)

// ExpiredHandler is called once per target whose expiry has passed.
type ExpiredHandler func(ctx context.Context, target string)

// Expirer tracks deadlines for topics.
type Expirer interface {
	Set(ctx context.Context, target string, expiry time.Time) error
	Delete(ctx context.Context, target string) error
	Has(ctx context.Context, target string) (bool, error)
	OnExpired(handler ExpiredHandler)
}
