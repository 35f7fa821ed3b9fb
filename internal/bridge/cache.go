package bridge

import (
	"encoding/json"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jhomra21/opencanvas/internal/gateway"
	"github.com/jhomra21/opencanvas/internal/logging"
)

// evictedCacheSize bounds how many unwatched query results are retained.
const evictedCacheSize = 128

// Watch is one observer of a live query's results.
type Watch struct {
	id  int
	key string
	sub gateway.Subscription
	ch  chan json.RawMessage
}

// C delivers each new result for the watched query. Slow consumers drop
// intermediate results rather than blocking the read loop; the latest
// value is always available via the cache.
func (w *Watch) C() <-chan json.RawMessage {
	return w.ch
}

// Key returns the cache key of the watched query.
func (w *Watch) Key() string {
	return w.key
}

// Subscription returns the query and args this watch observes.
func (w *Watch) Subscription() gateway.Subscription {
	return w.sub
}

type cacheEntry struct {
	data     json.RawMessage
	hasData  bool
	watchers map[int]chan json.RawMessage
}

// QueryCache holds the latest result of each live query keyed by
// (query, args). Watched entries notify their watchers on every update;
// entries whose last watcher leaves are demoted to a bounded LRU so
// recently viewed data survives a resubscribe without a refetch.
type QueryCache struct {
	mu      sync.Mutex
	log     *logging.Logger
	entries map[string]*cacheEntry
	evicted *lru.Cache[string, json.RawMessage]
	nextID  int
}

// NewQueryCache creates an empty cache.
func NewQueryCache(log *logging.Logger) *QueryCache {
	evicted, _ := lru.New[string, json.RawMessage](evictedCacheSize)
	return &QueryCache{
		log:     log,
		entries: make(map[string]*cacheEntry),
		evicted: evicted,
	}
}

// Watch registers an observer for a query. Any value demoted to the LRU
// by a previous unwatch is promoted back.
func (c *QueryCache) Watch(sub gateway.Subscription) *Watch {
	key := sub.Key()

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		entry = &cacheEntry{watchers: make(map[int]chan json.RawMessage)}
		if data, found := c.evicted.Get(key); found {
			entry.data = data
			entry.hasData = true
			c.evicted.Remove(key)
		}
		c.entries[key] = entry
	}

	c.nextID++
	w := &Watch{
		id:  c.nextID,
		key: key,
		sub: sub,
		ch:  make(chan json.RawMessage, 16),
	}
	entry.watchers[w.id] = w.ch
	return w
}

// Unwatch removes an observer. When the last watcher leaves, the entry's
// value moves to the LRU and the entry is dropped.
func (c *QueryCache) Unwatch(w *Watch) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[w.key]
	if !ok {
		return
	}
	delete(entry.watchers, w.id)
	if len(entry.watchers) == 0 {
		if entry.hasData {
			c.evicted.Add(w.key, entry.data)
		}
		delete(c.entries, w.key)
	}
}

// Update stores a new result for a query and notifies its watchers.
func (c *QueryCache) Update(key string, data json.RawMessage) {
	c.mu.Lock()
	entry, ok := c.entries[key]
	if !ok {
		c.evicted.Add(key, data)
		c.mu.Unlock()
		return
	}
	entry.data = data
	entry.hasData = true
	watchers := make([]chan json.RawMessage, 0, len(entry.watchers))
	for _, ch := range entry.watchers {
		watchers = append(watchers, ch)
	}
	c.mu.Unlock()

	for _, ch := range watchers {
		select {
		case ch <- data:
		default:
			// Drop for slow consumers; Get always has the latest.
		}
	}
}

// Get returns the cached result for a key, watched or not.
func (c *QueryCache) Get(key string) (json.RawMessage, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.entries[key]; ok && entry.hasData {
		return entry.data, true
	}
	return c.evicted.Get(key)
}

// Snapshot captures the current value for a key before an optimistic
// mutation, for exact restoration on failure.
func (c *QueryCache) Snapshot(key string) (json.RawMessage, bool) {
	return c.Get(key)
}

// Patch applies an optimistic local value, notifying watchers as if the
// server had pushed it.
func (c *QueryCache) Patch(key string, data json.RawMessage) {
	c.Update(key, data)
}

// Restore reverts a key to a previously captured snapshot.
func (c *QueryCache) Restore(key string, snapshot json.RawMessage) {
	c.Update(key, snapshot)
}

// Invalidate drops the cached value for a key so the next consumer must
// refetch the authoritative state.
func (c *QueryCache) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.entries[key]; ok {
		entry.data = nil
		entry.hasData = false
	}
	c.evicted.Remove(key)
}

// WatchedLen returns the number of watched entries.
func (c *QueryCache) WatchedLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// EvictedLen returns the number of retained unwatched results.
func (c *QueryCache) EvictedLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evicted.Len()
}
