package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/layer-3/authrelay/ports"
)

// Collection is a typed view over a Store: values are JSON encoded under
// "<name>/<key>".
type Collection[V any] struct {
	store ports.Store
	name  string
	ttl   time.Duration
}

// NewCollection creates a typed collection. A zero ttl keeps entries forever.
func NewCollection[V any](store ports.Store, name string, ttl time.Duration) *Collection[V] {
	return &Collection[V]{store: store, name: name, ttl: ttl}
}

func (c *Collection[V]) key(k string) string {
	return c.name + "/" + k
}

// Get decodes the value under k. Missing keys return core.ErrNotFound.
func (c *Collection[V]) Get(ctx context.Context, k string) (V, error) {
	var v V
	raw, err := c.store.Get(ctx, c.key(k))
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("failed to decode %s/%s: %w", c.name, k, err)
	}
	return v, nil
}

// Has reports whether k holds a value.
func (c *Collection[V]) Has(ctx context.Context, k string) (bool, error) {
	_, err := c.store.Get(ctx, c.key(k))
	if isNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (c *Collection[V]) Set(ctx context.Context, k string, v V) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s/%s: %w", c.name, k, err)
	}
	return c.store.Set(ctx, c.key(k), raw, c.ttl)
}

// Update applies fn to the current value and stores the result.
func (c *Collection[V]) Update(ctx context.Context, k string, fn func(v *V)) error {
	v, err := c.Get(ctx, k)
	if err != nil {
		return err
	}
	fn(&v)
	return c.Set(ctx, k, v)
}

func (c *Collection[V]) Delete(ctx context.Context, k string) error {
	return c.store.Delete(ctx, c.key(k))
}

// Keys returns the collection keys without the name prefix.
func (c *Collection[V]) Keys(ctx context.Context) ([]string, error) {
	raw, err := c.store.Keys(ctx, c.name+"/")
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(raw))
	for _, k := range raw {
		keys = append(keys, strings.TrimPrefix(k, c.name+"/"))
	}
	return keys, nil
}

// GetAll returns every value, keyed without the name prefix. Entries that
// vanish between listing and reading are skipped.
func (c *Collection[V]) GetAll(ctx context.Context) (map[string]V, error) {
	keys, err := c.Keys(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]V, len(keys))
	for _, k := range keys {
		v, err := c.Get(ctx, k)
		if err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}
