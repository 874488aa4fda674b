package cache

import (
	"container/list"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Config controls cache capacity, expiry and maintenance behavior.
//
// All fields are required; defaults belong to the caller (see internal/config).
//   - MaxSize == 0 is a valid "disabled" cache: every Set is dropped
//   - DefaultTTL applies when Set is called without WithTTL
//   - CleanupInterval == 0 disables the background sweep (lazy expiry still works)
//   - EnableStats toggles the hit/miss/eviction/expiration counters behind Stats
type Config struct {
	MaxSize         int `validate:"gte=0"`
	DefaultTTL      time.Duration
	CleanupInterval time.Duration `validate:"gte=0"`
	EnableStats     bool
}

var ErrInvalidConfig = errors.New("invalid cache config")

var validate = validator.New()

// Cache is a concurrency-safe, bounded key–value cache with per-entry TTL,
// LRU eviction and tag-based invalidation.
//
// A map gives O(1) key lookup and a doubly-linked list keeps recency order,
// so the least recently used entry is always lru.Back(). A second index maps
// each tag to the keys carrying it.
//
// Values are stored and returned as given. The cache never copies them, so a
// caller that mutates a returned pointer, map or slice mutates the cached
// value as well.
//
// Ownership model:
// Cache owns its sweep goroutine. Call Close to stop it.
type Cache[V any] struct {
	mu sync.RWMutex

	id          string
	maxSize     int
	defaultTTL  time.Duration
	enableStats bool

	items    map[string]*list.Element
	lru      *list.List // Front = most recently used (MRU), Back = least recently used (LRU)
	tagIndex map[string]map[string]struct{}

	stats  counters
	memory int64

	logger          *zap.Logger
	recorder        Recorder
	warmConcurrency int

	// Goroutine ownership.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	cleanupEvery time.Duration
	closed       bool
}

// entry is the value stored in the LRU list elements.
// The key is kept here because eviction starts from list nodes.
type entry[V any] struct {
	key            string
	value          V
	expiresAt      time.Time
	lastAccessedAt time.Time
	tags           map[string]struct{}
	size           int64
}

func (e *entry[V]) expired(now time.Time) bool {
	return !now.Before(e.expiresAt)
}

// New validates cfg, constructs a cache and starts the background sweep
// when cfg.CleanupInterval > 0.
func New[V any](cfg Config, opts ...Option) (*Cache[V], error) {
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}
	if o.recorder == nil {
		o.recorder = NopRecorder{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.NewString()

	c := &Cache[V]{
		id:              id,
		maxSize:         cfg.MaxSize,
		defaultTTL:      cfg.DefaultTTL,
		enableStats:     cfg.EnableStats,
		items:           make(map[string]*list.Element),
		lru:             list.New(),
		tagIndex:        make(map[string]map[string]struct{}),
		logger:          o.logger.With(zap.String("cache_id", id)),
		recorder:        o.recorder,
		warmConcurrency: o.warmConcurrency,
		ctx:             ctx,
		cancel:          cancel,
		cleanupEvery:    cfg.CleanupInterval,
	}

	if c.cleanupEvery > 0 {
		c.wg.Add(1)
		go c.expiryLoop()
	}

	return c, nil
}

// ID returns the instance identifier used in logs and metric labels.
func (c *Cache[V]) ID() string {
	return c.id
}

// Close stops the background sweep.
//
// Close is safe to call multiple times. The cache stays usable afterwards;
// only proactive expiry stops. In-flight Warm fetchers are not canceled.
func (c *Cache[V]) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	cancel := c.cancel
	c.mu.Unlock()

	// Cancel outside the lock so a sweep waiting on mu can finish.
	cancel()
	c.wg.Wait()
	return nil
}

// Get reads a key.
//
// Expired entries are removed on access and counted as an expiration and a miss.
// A hit moves the entry to MRU.
func (c *Cache[V]) Get(key string) (V, bool) {
	start := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	el, ok := c.items[key]
	if !ok {
		c.missLocked(start)
		return zero, false
	}

	e := el.Value.(*entry[V])
	if e.expired(start) {
		c.deleteLocked(el)
		c.expiredLocked(1)
		c.missLocked(start)
		c.recorder.Entries(len(c.items))
		return zero, false
	}

	e.lastAccessedAt = start
	c.lru.MoveToFront(el)
	c.hitLocked(start)
	return e.value, true
}

// Set writes or overwrites a key.
//
// ttl semantics:
//   - without WithTTL the configured DefaultTTL applies
//   - expiresAt = now + ttl verbatim, so ttl <= 0 stores an entry that
//     the next Get or Has reports as absent
//
// Overwriting never evicts. Inserting a new key at capacity evicts the LRU
// entry first.
func (c *Cache[V]) Set(key string, value V, opts ...SetOption) {
	so := setOptions{ttl: c.defaultTTL}
	for _, opt := range opts {
		opt(&so)
	}
	tags := tagSet(so.tags)
	size := estimateSize(key, value, tags)

	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry[V])
		c.untagLocked(e)
		e.value = value
		e.expiresAt = now.Add(so.ttl)
		e.lastAccessedAt = now
		e.tags = tags
		c.tagLocked(e)
		c.memory += size - e.size
		e.size = size

		// Updating counts as use; move to MRU.
		c.lru.MoveToFront(el)
		return
	}

	if len(c.items) >= c.maxSize {
		c.evictLocked()
	}
	if c.maxSize == 0 {
		return
	}

	e := &entry[V]{
		key:            key,
		value:          value,
		expiresAt:      now.Add(so.ttl),
		lastAccessedAt: now,
		tags:           tags,
		size:           size,
	}
	c.items[key] = c.lru.PushFront(e)
	c.tagLocked(e)
	c.memory += size
	c.recorder.Entries(len(c.items))
}

// Delete removes a key and reports whether it was present.
func (c *Cache[V]) Delete(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return false
	}
	c.deleteLocked(el)
	c.recorder.Entries(len(c.items))
	return true
}

// Has reports whether key holds an unexpired entry.
//
// Unlike Get it does not touch recency or hit/miss counters. An expired entry
// is still removed and counted as an expiration.
func (c *Cache[V]) Has(key string) bool {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return false
	}
	if el.Value.(*entry[V]).expired(now) {
		c.deleteLocked(el)
		c.expiredLocked(1)
		c.recorder.Entries(len(c.items))
		return false
	}
	return true
}

// Clear removes every entry. Statistics are kept.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element)
	c.lru.Init()
	c.tagIndex = make(map[string]map[string]struct{})
	c.memory = 0
	c.recorder.Entries(0)
}

// Len returns the number of stored entries.
//
// Note: Len includes entries that have expired but haven't been swept yet.
// Get and Has are the only calls that filter by expiry.
func (c *Cache[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Keys returns a snapshot of keys in MRU -> LRU order, expired entries included.
func (c *Cache[V]) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]string, 0, c.lru.Len())
	for el := c.lru.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.(*entry[V]).key)
	}
	return out
}

// InvalidateByTags removes every entry carrying at least one of tags and
// returns how many entries were removed. No tags means nothing is removed.
func (c *Cache[V]) InvalidateByTags(tags ...string) int {
	if len(tags) == 0 {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	victims := make(map[string]struct{})
	for _, tag := range tags {
		for key := range c.tagIndex[tag] {
			victims[key] = struct{}{}
		}
	}
	for key := range victims {
		c.deleteLocked(c.items[key])
	}

	if len(victims) > 0 {
		c.recorder.Entries(len(c.items))
		c.logger.Debug("Invalidated cache entries by tag",
			zap.Strings("tags", tags),
			zap.Int("count", len(victims)),
		)
	}
	return len(victims)
}

// evictLocked drops the LRU entry, if any.
func (c *Cache[V]) evictLocked() {
	el := c.lru.Back()
	if el == nil {
		return
	}
	e := el.Value.(*entry[V])
	c.deleteLocked(el)
	c.evictedLocked()
	c.logger.Debug("Evicted least recently used entry",
		zap.String("key", e.key),
		zap.Time("last_accessed_at", e.lastAccessedAt),
	)
}

func (c *Cache[V]) deleteLocked(el *list.Element) {
	e := el.Value.(*entry[V])
	c.untagLocked(e)
	delete(c.items, e.key)
	c.lru.Remove(el)
	c.memory -= e.size
}

func (c *Cache[V]) tagLocked(e *entry[V]) {
	for tag := range e.tags {
		keys, ok := c.tagIndex[tag]
		if !ok {
			keys = make(map[string]struct{})
			c.tagIndex[tag] = keys
		}
		keys[e.key] = struct{}{}
	}
}

func (c *Cache[V]) untagLocked(e *entry[V]) {
	for tag := range e.tags {
		keys := c.tagIndex[tag]
		delete(keys, e.key)
		if len(keys) == 0 {
			delete(c.tagIndex, tag)
		}
	}
}

func tagSet(tags []string) map[string]struct{} {
	if len(tags) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		set[t] = struct{}{}
	}
	return set
}
