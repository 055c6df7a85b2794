package store

import (
	"context"
	"errors"
)

var ErrKeyNotFound = errors.New("key not found")

// Store is a flat key-value store for JSON documents. Implementations
// must return ErrKeyNotFound from Get for absent keys and treat Delete
// of an absent key as a no-op.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
}
