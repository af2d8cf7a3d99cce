package cache

import (
	"sync"

	"github.com/go-kit/kit/log/level"
	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"

	"github.com/tensorstore/tensorstore/internal/logging"
)

// unboundedEntries caps the wrapped golang-lru cache's own entry count far
// above anything this cache will ever hold; eviction here is driven by the
// byte budget tracked alongside it, not by entry count.
const unboundedEntries = 1 << 30

type entry struct {
	typeName string
	value    Cacheable
	dirty    bool
	size     int
}

// LRU is a byte-budgeted, dirty-tracking cache in front of a durable
// Store, grounded on hashicorp/golang-lru's eviction-callback hook: a
// handle that falls out of the hot tier is flushed to the backing store
// first if it carries unwritten changes, matching the "suspension point"
// rule that no dirty entry may be silently dropped.
type LRU struct {
	mu     sync.Mutex
	inner  *lru.Cache
	store  Store
	budget int
	used   int
}

// NewLRU returns a cache over store with the given byte budget.
func NewLRU(store Store, budgetBytes int) (*LRU, error) {
	c := &LRU{store: store, budget: budgetBytes}
	inner, err := lru.NewWithEvict(unboundedEntries, c.onEvict)
	if err != nil {
		return nil, errors.Wrap(err, "cache: constructing lru")
	}
	c.inner = inner
	return c, nil
}

// onEvict runs under c.mu (golang-lru invokes it synchronously from
// within Add/Remove), flushing a dirty entry before it is dropped.
func (c *LRU) onEvict(key, value interface{}) {
	e := value.(*entry)
	c.used -= e.size
	if !e.dirty {
		return
	}
	buf, err := e.value.Bytes()
	if err != nil {
		level.Error(logging.Logger).Log("msg", "cache: failed to serialize evicted entry", "path", key, "err", err)
		return
	}
	if err := c.store.Set(key.(string), buf); err != nil {
		level.Error(logging.Logger).Log("msg", "cache: failed to flush evicted entry", "path", key, "err", err)
	}
}

// GetCacheable returns the entry at path, pulling it from the backing
// store on a cache miss and decoding it via FromBuffer(typeName, ...).
// The returned handle must be re-resolved (another GetCacheable call)
// after any call that may have triggered eviction - Set, or a
// GetCacheable that missed - since the object backing it may have moved
// to the store.
func (c *LRU) GetCacheable(path, typeName string) (Cacheable, error) {
	c.mu.Lock()
	if v, ok := c.inner.Get(path); ok {
		e := v.(*entry)
		c.mu.Unlock()
		return e.value, nil
	}
	c.mu.Unlock()

	buf, err := c.store.Get(path)
	if err != nil {
		return nil, err
	}
	val, err := FromBuffer(typeName, buf)
	if err != nil {
		return nil, errors.Wrapf(err, "cache: decoding %q as %q", path, typeName)
	}

	c.mu.Lock()
	c.insertLocked(path, typeName, val, len(buf), false)
	c.mu.Unlock()
	return val, nil
}

// Set inserts or replaces path's entry, marking it dirty so it is
// written back to the store on eviction or the next MaybeFlush.
func (c *LRU) Set(path, typeName string, val Cacheable) error {
	buf, err := val.Bytes()
	if err != nil {
		return errors.Wrap(err, "cache: sizing new entry")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.insertLocked(path, typeName, val, len(buf), true)
	return nil
}

func (c *LRU) insertLocked(path, typeName string, val Cacheable, size int, dirty bool) {
	if old, ok := c.inner.Peek(path); ok {
		c.used -= old.(*entry).size
	}
	e := &entry{typeName: typeName, value: val, dirty: dirty, size: size}
	c.used += size
	c.inner.Add(path, e)
	c.evictToBudget()
}

// evictToBudget drops least-recently-used entries (flushing dirty ones
// via onEvict) until the cache is back under budget.
func (c *LRU) evictToBudget() {
	for c.used > c.budget && c.inner.Len() > 0 {
		c.inner.RemoveOldest()
	}
}

// MaybeFlush writes back every dirty entry currently resident, without
// evicting any of them, and clears their dirty bit. Call this at a
// checkpoint where durability is required but the hot tier should stay
// warm.
func (c *LRU) MaybeFlush() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, key := range c.inner.Keys() {
		v, ok := c.inner.Peek(key)
		if !ok {
			continue
		}
		e := v.(*entry)
		if !e.dirty {
			continue
		}
		buf, err := e.value.Bytes()
		if err != nil {
			return errors.Wrapf(err, "cache: serializing %v for flush", key)
		}
		if err := c.store.Set(key.(string), buf); err != nil {
			return errors.Wrapf(err, "cache: flushing %v", key)
		}
		e.dirty = false
	}
	return nil
}

// Delete removes path from both the hot tier and the backing store.
func (c *LRU) Delete(path string) error {
	c.mu.Lock()
	c.inner.Remove(path)
	c.mu.Unlock()
	return c.store.Delete(path)
}

// UsedBytes reports the current resident byte total.
func (c *LRU) UsedBytes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.used
}
