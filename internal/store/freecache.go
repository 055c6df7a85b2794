package store

import (
	"context"
	"errors"
	"strings"

	"github.com/coocood/freecache"
)

var _ Store = (*FreecacheStore)(nil)

// FreecacheStore is an in-process byte store with a fixed memory budget
// and a physical TTL on every entry. Used as the slot space of the
// read-through cache, where entries older than the stale window are
// worthless anyway.
type FreecacheStore struct {
	cache         *freecache.Cache
	expireSeconds int
}

func NewFreecacheStore(sizeBytes, expireSeconds int) *FreecacheStore {
	return &FreecacheStore{
		cache:         freecache.NewCache(sizeBytes),
		expireSeconds: expireSeconds,
	}
}

func (fs *FreecacheStore) Get(_ context.Context, key string) ([]byte, error) {
	value, err := fs.cache.Get([]byte(key))
	if err != nil {
		if errors.Is(err, freecache.ErrNotFound) {
			return nil, ErrKeyNotFound
		}
		return nil, err
	}
	return value, nil
}

func (fs *FreecacheStore) Set(_ context.Context, key string, value []byte) error {
	return fs.cache.Set([]byte(key), value, fs.expireSeconds)
}

func (fs *FreecacheStore) Delete(_ context.Context, key string) error {
	fs.cache.Del([]byte(key))
	return nil
}

func (fs *FreecacheStore) Keys(_ context.Context, prefix string) ([]string, error) {
	var keys []string
	iter := fs.cache.NewIterator()
	for entry := iter.Next(); entry != nil; entry = iter.Next() {
		key := string(entry.Key)
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}
