package store

import (
	"context"
	"strings"
	"sync"
)

var _ Store = (*MemStore)(nil)

// MemStore keeps documents in process memory. Used in tests and as a
// fallback when no external store is configured.
type MemStore struct {
	mutex sync.RWMutex
	data  map[string][]byte
}

func NewMemStore() *MemStore {
	return &MemStore{
		data: make(map[string][]byte),
	}
}

func (ms *MemStore) Get(_ context.Context, key string) ([]byte, error) {
	ms.mutex.RLock()
	defer ms.mutex.RUnlock()

	value, ok := ms.data[key]
	if !ok {
		return nil, ErrKeyNotFound
	}

	valueCopy := make([]byte, len(value))
	copy(valueCopy, value)
	return valueCopy, nil
}

func (ms *MemStore) Set(_ context.Context, key string, value []byte) error {
	ms.mutex.Lock()
	defer ms.mutex.Unlock()

	valueCopy := make([]byte, len(value))
	copy(valueCopy, value)
	ms.data[key] = valueCopy
	return nil
}

func (ms *MemStore) Delete(_ context.Context, key string) error {
	ms.mutex.Lock()
	defer ms.mutex.Unlock()
	delete(ms.data, key)
	return nil
}

func (ms *MemStore) Keys(_ context.Context, prefix string) ([]string, error) {
	ms.mutex.RLock()
	defer ms.mutex.RUnlock()

	var keys []string
	for key := range ms.data {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}
