package cache

import (
	"context"
	"encoding/json"
	"fmt"

	log "github.com/sirupsen/logrus"
)

// Write-through helpers. After a successful mutation on the backend the
// caller patches the relevant slot directly instead of waiting for the
// next read's background refresh, so reads right after a write see the
// new state. All helpers are best-effort: when the slot is absent or
// unreadable nothing happens and the next load refetches.

// Put overwrites the slot with value.
func (c *Cache) Put(ctx context.Context, ownerID, key string, value any, version string) {
	raw, err := json.Marshal(value)
	if err != nil {
		c.metrics.CounterStorageErrors.Inc()
		log.Errorf("put cache slot %s for %s: marshal: %s", key, ownerID, err)
		return
	}
	c.storeRecord(ctx, slotKey(ownerID, key), raw, version)
}

// AppendToList appends item to the cached JSON array in the slot.
func (c *Cache) AppendToList(ctx context.Context, ownerID, key string, item any) {
	c.patchList(ctx, ownerID, key, func(list []json.RawMessage) ([]json.RawMessage, error) {
		raw, err := json.Marshal(item)
		if err != nil {
			return nil, fmt.Errorf("marshal item: %w", err)
		}
		return append(list, json.RawMessage(raw)), nil
	})
}

// UpdateListItem replaces the first element matching match with item.
func (c *Cache) UpdateListItem(ctx context.Context, ownerID, key string, match func(json.RawMessage) bool, item any) {
	c.patchList(ctx, ownerID, key, func(list []json.RawMessage) ([]json.RawMessage, error) {
		raw, err := json.Marshal(item)
		if err != nil {
			return nil, fmt.Errorf("marshal item: %w", err)
		}
		for i := range list {
			if match(list[i]) {
				list[i] = raw
				break
			}
		}
		return list, nil
	})
}

// RemoveFromList drops every element matching match.
func (c *Cache) RemoveFromList(ctx context.Context, ownerID, key string, match func(json.RawMessage) bool) {
	c.patchList(ctx, ownerID, key, func(list []json.RawMessage) ([]json.RawMessage, error) {
		kept := list[:0]
		for _, item := range list {
			if match(item) {
				continue
			}
			kept = append(kept, item)
		}
		return kept, nil
	})
}

func (c *Cache) patchList(ctx context.Context, ownerID, key string, patch func([]json.RawMessage) ([]json.RawMessage, error)) {
	slot := slotKey(ownerID, key)

	raw, err := c.slots.Get(ctx, slot)
	if err != nil {
		// nothing cached, the next load fetches the updated list
		return
	}

	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		log.Errorf("patch cache slot %s: corrupt record, dropping: %s", slot, err)
		_ = c.slots.Delete(ctx, slot)
		return
	}

	var list []json.RawMessage
	if err := json.Unmarshal(rec.Data, &list); err != nil {
		log.Errorf("patch cache slot %s: not a list, dropping: %s", slot, err)
		_ = c.slots.Delete(ctx, slot)
		return
	}

	patched, err := patch(list)
	if err != nil {
		c.metrics.CounterStorageErrors.Inc()
		log.Errorf("patch cache slot %s: %s", slot, err)
		return
	}

	data, err := json.Marshal(patched)
	if err != nil {
		c.metrics.CounterStorageErrors.Inc()
		log.Errorf("patch cache slot %s: marshal: %s", slot, err)
		return
	}

	c.storeRecord(ctx, slot, data, rec.Version)
}

// LoadAs loads through c and unmarshals the result into T.
func LoadAs[T any](ctx context.Context, c *Cache, ownerID, key string, fetch func(ctx context.Context) (T, error), opts LoadOptions) (out T, fromCache bool, err error) {
	result, err := c.Load(ctx, ownerID, key, func(ctx context.Context) (any, error) {
		return fetch(ctx)
	}, opts)
	if err != nil {
		return out, false, err
	}
	if err := json.Unmarshal(result.Data, &out); err != nil {
		return out, result.FromCache, fmt.Errorf("unmarshal cached %s for %s: %w", key, ownerID, err)
	}
	return out, result.FromCache, nil
}
