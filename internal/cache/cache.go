package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/avelins/traintrack/internal/store"
	"github.com/avelins/traintrack/internal/telemetry/metrics"
	"github.com/avelins/traintrack/internal/telemetry/tracing"

	log "github.com/sirupsen/logrus"
)

const (
	// DefaultMaxAge is the freshness window of a cached value.
	DefaultMaxAge = 5 * time.Minute
	// StaleMaxAge is how old a record may be and still serve as a
	// fallback when the backing fetch fails.
	StaleMaxAge = 24 * time.Hour
)

// FetchFunc loads the authoritative value from the backend.
type FetchFunc func(ctx context.Context) (any, error)

// record is the persisted shape of one cache slot.
type record struct {
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
	Version   string          `json:"version"`
}

// Result is a cache read outcome. Data is the canonical JSON of the
// cached or freshly fetched value.
type Result struct {
	Data      json.RawMessage
	FromCache bool
	Timestamp time.Time
}

// Notification announces that a background refresh found a changed
// value. Delivery is fire-and-forget and may race with whatever the
// subscriber rendered from the previously returned data.
type Notification struct {
	OwnerID string
	Key     string
	Data    json.RawMessage
}

type LoadOptions struct {
	// ForceRefresh skips the fresh-hit path and always fetches.
	ForceRefresh bool
	// BackgroundUpdate refetches after a fresh hit and notifies
	// subscribers when the value changed.
	BackgroundUpdate bool
	// MaxAge overrides DefaultMaxAge when positive.
	MaxAge time.Duration
	// Version tags the expected schema; a cached record with a
	// different version is dropped and refetched.
	Version string
}

func DefaultLoadOptions() LoadOptions {
	return LoadOptions{
		BackgroundUpdate: true,
		MaxAge:           DefaultMaxAge,
	}
}

// Cache is a read-through cache over an arbitrary fetch function, with
// per-owner namespacing, freshness windows, version invalidation and a
// stale fallback when the backend is unreachable. Slot storage errors
// never fail a load; they degrade to a cache miss.
type Cache struct {
	slots   store.Store
	metrics *metrics.Manager
	nowFunc func() time.Time

	subsMutex sync.Mutex
	subs      map[string]map[int]func(Notification)
	nextSubID int

	refreshWG sync.WaitGroup
}

func New(slots store.Store, metricsManager *metrics.Manager) *Cache {
	return &Cache{
		slots:   slots,
		metrics: metricsManager,
		nowFunc: time.Now,
		subs:    make(map[string]map[int]func(Notification)),
	}
}

// Load returns the value for (ownerID, key): from cache when a fresh
// record with a matching version exists, otherwise through fetch. On
// fetch failure a stale record within StaleMaxAge is served instead;
// only when no fallback exists does the fetch error propagate.
func (c *Cache) Load(ctx context.Context, ownerID, key string, fetch FetchFunc, opts LoadOptions) (_ *Result, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "cache.load")
	defer func() {
		tracing.EndSpanWithErrCheck(span, err)
	}()

	maxAge := opts.MaxAge
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	slot := slotKey(ownerID, key)

	if !opts.ForceRefresh {
		if rec, ok := c.lookup(ctx, slot, maxAge, opts.Version); ok {
			c.metrics.CounterCacheHits.Inc()
			if opts.BackgroundUpdate {
				c.refreshWG.Add(1)
				go c.refreshInBackground(ownerID, key, rec, fetch, opts.Version)
			}
			return &Result{
				Data:      rec.Data,
				FromCache: true,
				Timestamp: time.UnixMilli(rec.Timestamp),
			}, nil
		}
	}

	c.metrics.CounterCacheMisses.Inc()

	value, fetchErr := fetch(ctx)
	if fetchErr != nil {
		if rec, ok := c.lookup(ctx, slot, StaleMaxAge, opts.Version); ok {
			c.metrics.CounterCacheStaleServed.Inc()
			log.Warnf("fetch %s for %s failed, serving stale cache: %s", key, ownerID, fetchErr)
			return &Result{
				Data:      rec.Data,
				FromCache: true,
				Timestamp: time.UnixMilli(rec.Timestamp),
			}, nil
		}
		return nil, fmt.Errorf("fetch %s for %s: %w", key, ownerID, fetchErr)
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("marshal fetched %s for %s: %w", key, ownerID, err)
	}

	c.storeRecord(ctx, slot, raw, opts.Version)

	return &Result{
		Data:      raw,
		FromCache: false,
		Timestamp: c.nowFunc(),
	}, nil
}

// Wait blocks until all in-flight background refreshes are done.
// Used on shutdown so notifications are not lost mid-flight.
func (c *Cache) Wait() {
	c.refreshWG.Wait()
}

// Remove drops a single cache slot.
func (c *Cache) Remove(ctx context.Context, ownerID, key string) {
	if err := c.slots.Delete(ctx, slotKey(ownerID, key)); err != nil {
		c.metrics.CounterStorageErrors.Inc()
		log.Errorf("remove cache slot %s for %s: %s", key, ownerID, err)
	}
}

// ClearOwner drops every cache slot of one owner.
func (c *Cache) ClearOwner(ctx context.Context, ownerID string) {
	c.clearPrefix(ctx, ownerID+"_")
}

// ClearAll drops every cache slot.
func (c *Cache) ClearAll(ctx context.Context) {
	c.clearPrefix(ctx, "")
}

// Subscribe registers a callback for changed-value notifications on
// (ownerID, key). Callbacks run on the background refresh goroutine.
// The returned function unsubscribes.
func (c *Cache) Subscribe(ownerID, key string, fn func(Notification)) (unsubscribe func()) {
	c.subsMutex.Lock()
	defer c.subsMutex.Unlock()

	slot := slotKey(ownerID, key)
	if c.subs[slot] == nil {
		c.subs[slot] = make(map[int]func(Notification))
	}
	id := c.nextSubID
	c.nextSubID++
	c.subs[slot][id] = fn

	return func() {
		c.subsMutex.Lock()
		defer c.subsMutex.Unlock()
		delete(c.subs[slot], id)
	}
}

func (c *Cache) refreshInBackground(ownerID, key string, cached record, fetch FetchFunc, version string) {
	defer c.refreshWG.Done()

	// detached from the caller: the triggering load already returned
	ctx := context.Background()

	value, err := fetch(ctx)
	if err != nil {
		c.metrics.CounterCacheBgRefreshes.WithLabelValues("error").Inc()
		log.Debugf("background refresh %s for %s: %s", key, ownerID, err)
		return
	}

	raw, err := json.Marshal(value)
	if err != nil {
		c.metrics.CounterCacheBgRefreshes.WithLabelValues("error").Inc()
		log.Errorf("background refresh %s for %s: marshal: %s", key, ownerID, err)
		return
	}

	if jsonEqual(cached.Data, raw) {
		c.metrics.CounterCacheBgRefreshes.WithLabelValues("unchanged").Inc()
		return
	}

	c.storeRecord(ctx, slotKey(ownerID, key), raw, version)
	c.metrics.CounterCacheBgRefreshes.WithLabelValues("changed").Inc()

	c.notify(Notification{
		OwnerID: ownerID,
		Key:     key,
		Data:    raw,
	})
}

func (c *Cache) notify(notification Notification) {
	c.subsMutex.Lock()
	callbacks := make([]func(Notification), 0, len(c.subs[slotKey(notification.OwnerID, notification.Key)]))
	for _, fn := range c.subs[slotKey(notification.OwnerID, notification.Key)] {
		callbacks = append(callbacks, fn)
	}
	c.subsMutex.Unlock()

	for _, fn := range callbacks {
		fn(notification)
	}
}

// lookup reads the slot and validates it against maxAge and version.
// A version mismatch removes the record. An expired record is left in
// place while it can still serve the stale fallback; past StaleMaxAge
// it is removed on read.
func (c *Cache) lookup(ctx context.Context, slot string, maxAge time.Duration, version string) (record, bool) {
	raw, err := c.slots.Get(ctx, slot)
	if err != nil {
		if !errors.Is(err, store.ErrKeyNotFound) {
			c.metrics.CounterStorageErrors.Inc()
			log.Errorf("read cache slot %s: %s", slot, err)
		}
		return record{}, false
	}

	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		log.Errorf("cache slot %s corrupt, dropping: %s", slot, err)
		_ = c.slots.Delete(ctx, slot)
		return record{}, false
	}

	if rec.Version != version {
		_ = c.slots.Delete(ctx, slot)
		return record{}, false
	}

	age := c.nowFunc().Sub(time.UnixMilli(rec.Timestamp))
	if age > maxAge {
		if age > StaleMaxAge {
			_ = c.slots.Delete(ctx, slot)
		}
		return record{}, false
	}

	return rec, true
}

func (c *Cache) storeRecord(ctx context.Context, slot string, data json.RawMessage, version string) {
	rec := record{
		Data:      data,
		Timestamp: c.nowFunc().UnixMilli(),
		Version:   version,
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		c.metrics.CounterStorageErrors.Inc()
		log.Errorf("marshal cache slot %s: %s", slot, err)
		return
	}
	if err := c.slots.Set(ctx, slot, raw); err != nil {
		c.metrics.CounterStorageErrors.Inc()
		log.Errorf("write cache slot %s: %s", slot, err)
	}
}

func (c *Cache) clearPrefix(ctx context.Context, prefix string) {
	keys, err := c.slots.Keys(ctx, prefix)
	if err != nil {
		c.metrics.CounterStorageErrors.Inc()
		log.Errorf("list cache slots %q: %s", prefix, err)
		return
	}
	for _, key := range keys {
		if err := c.slots.Delete(ctx, key); err != nil {
			c.metrics.CounterStorageErrors.Inc()
			log.Errorf("clear cache slot %s: %s", key, err)
		}
	}
}

func slotKey(ownerID, key string) string {
	return ownerID + "_" + key
}

// jsonEqual compares two JSON documents by value: both are decoded and
// re-encoded so that map key order does not matter. Undecodable input
// falls back to a byte comparison.
func jsonEqual(a, b json.RawMessage) bool {
	var aVal, bVal any
	if json.Unmarshal(a, &aVal) != nil || json.Unmarshal(b, &bVal) != nil {
		return bytes.Equal(a, b)
	}
	aCanonical, aErr := json.Marshal(aVal)
	bCanonical, bErr := json.Marshal(bVal)
	if aErr != nil || bErr != nil {
		return bytes.Equal(a, b)
	}
	return bytes.Equal(aCanonical, bCanonical)
}
