// Package cache is a bounded, time-limited result cache. Entries are evicted
// least-recently-used first when the cache is full, and treated as absent
// once their TTL elapses regardless of recency.
package cache

import (
	"container/list"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrInvalidSize is returned by New for a non-positive size or TTL.
var ErrInvalidSize = errors.New("cache: max size and ttl must be positive")

// Cache is safe for concurrent use.
type Cache[V any] struct {
	mu      sync.Mutex
	items   map[string]*list.Element
	order   *list.List // front is most recently used
	maxSize int
	ttl     time.Duration
	now     func() time.Time
	log     *zap.Logger
}

type entry[V any] struct {
	key     string
	value   V
	expires time.Time
}

// Option configures a Cache.
type Option func(*options)

type options struct {
	now func() time.Time
	log *zap.Logger
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithLogger logs evictions at debug level.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.log = l }
}

// New creates a cache holding at most maxSize entries for ttl each.
func New[V any](maxSize int, ttl time.Duration, opts ...Option) (*Cache[V], error) {
	if maxSize <= 0 || ttl <= 0 {
		return nil, ErrInvalidSize
	}
	o := options{now: time.Now, log: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Cache[V]{
		items:   make(map[string]*list.Element, maxSize),
		order:   list.New(),
		maxSize: maxSize,
		ttl:     ttl,
		now:     o.now,
		log:     o.log,
	}, nil
}

// Get returns the value for key and promotes it to most recently used.
// Expired entries are removed and reported as a miss.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	elem, ok := c.items[key]
	if !ok {
		return zero, false
	}
	e := elem.Value.(*entry[V])
	if c.expired(e) {
		c.remove(elem)
		return zero, false
	}
	c.order.MoveToFront(elem)
	return e.value, true
}

// Has reports whether key is present and fresh. It does not change recency.
func (c *Cache[V]) Has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		return false
	}
	if c.expired(elem.Value.(*entry[V])) {
		c.remove(elem)
		return false
	}
	return true
}

// Set stores value under key with a fresh TTL, evicting the least recently
// used entry when the cache is full.
func (c *Cache[V]) Set(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	expires := c.now().Add(c.ttl)
	if elem, ok := c.items[key]; ok {
		e := elem.Value.(*entry[V])
		e.value = value
		e.expires = expires
		c.order.MoveToFront(elem)
		return
	}

	c.items[key] = c.order.PushFront(&entry[V]{key: key, value: value, expires: expires})

	for c.order.Len() > c.maxSize {
		oldest := c.order.Back()
		c.remove(oldest)
		c.log.Debug("cache eviction", zap.String("key", oldest.Value.(*entry[V]).key))
	}
}

// Delete removes key and reports whether it was present.
func (c *Cache[V]) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if ok {
		c.remove(elem)
	}
	return ok
}

// Clear removes every entry.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element, c.maxSize)
	c.order.Init()
}

// Prune removes expired entries and returns how many were removed.
func (c *Cache[V]) Prune() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for elem := c.order.Back(); elem != nil; {
		prev := elem.Prev()
		if c.expired(elem.Value.(*entry[V])) {
			c.remove(elem)
			removed++
		}
		elem = prev
	}
	if removed > 0 {
		c.log.Debug("cache prune", zap.Int("removed", removed))
	}
	return removed
}

// Len returns the number of stored entries, including expired ones not yet
// pruned.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

func (c *Cache[V]) expired(e *entry[V]) bool {
	return !c.now().Before(e.expires)
}

func (c *Cache[V]) remove(elem *list.Element) {
	c.order.Remove(elem)
	delete(c.items, elem.Value.(*entry[V]).key)
}
