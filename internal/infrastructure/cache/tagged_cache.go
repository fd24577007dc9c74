package cache

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Default capacity settings. The overflow margin keeps a cleanup pass
// from thrashing right at the boundary: eviction drains the cache down to
// MaxSize - OverflowMargin, not just to MaxSize.
const (
	DefaultMaxSize        = 5000
	DefaultOverflowMargin = 100
)

// Config holds cache capacity settings.
type Config struct {
	MaxSize        int
	OverflowMargin int
}

// DefaultConfig returns the default cache configuration.
func DefaultConfig() Config {
	return Config{
		MaxSize:        DefaultMaxSize,
		OverflowMargin: DefaultOverflowMargin,
	}
}

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Hits          int64   `json:"hits"`
	Misses        int64   `json:"misses"`
	Evictions     int64   `json:"evictions"`
	Expirations   int64   `json:"expirations"`
	Invalidations int64   `json:"invalidations"`
	Size          int     `json:"size"`
	HitRate       float64 `json:"hit_rate"`
}

// entry wraps a cached value with its expiry and access bookkeeping. The
// cache owns its entries exclusively: values leave only by copy through
// Get, never by handle, so eviction is always safe.
type entry struct {
	value        any
	expiresAt    time.Time
	createdAt    time.Time
	accessCount  int64
	lastAccessed time.Time
	tags         []string
}

func (e *entry) expired(now time.Time) bool {
	return now.After(e.expiresAt)
}

func (e *entry) hasAnyTag(tags []string) bool {
	for _, t := range tags {
		for _, have := range e.tags {
			if t == have {
				return true
			}
		}
	}
	return false
}

// TaggedCache is a process-wide key/value cache with TTL expiry,
// tag-based bulk invalidation, and least-recently-used eviction above a
// size bound. Keys are tenant-qualified by construction (see keys.go), so
// one shared instance serves all tenants.
type TaggedCache struct {
	mu      sync.Mutex
	entries map[string]*entry
	config  Config
	logger  *zap.Logger
	flight  singleflight.Group

	hits          int64
	misses        int64
	evictions     int64
	expirations   int64
	invalidations int64
}

// Option is a functional option for configuring the cache
type Option func(*TaggedCache)

// WithConfig sets the capacity configuration
func WithConfig(cfg Config) Option {
	return func(c *TaggedCache) {
		if cfg.MaxSize > 0 {
			c.config.MaxSize = cfg.MaxSize
		}
		if cfg.OverflowMargin > 0 {
			c.config.OverflowMargin = cfg.OverflowMargin
		}
	}
}

// WithLogger sets the logger for the cache
func WithLogger(logger *zap.Logger) Option {
	return func(c *TaggedCache) {
		c.logger = logger
	}
}

// New creates a new tagged TTL cache.
func New(opts ...Option) *TaggedCache {
	c := &TaggedCache{
		entries: make(map[string]*entry),
		config:  DefaultConfig(),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Set stores a value under key with the given TTL and invalidation tags.
// A set that pushes the map over capacity triggers a cleanup pass before
// returning.
func (c *TaggedCache) Set(key string, value any, ttl time.Duration, tags ...string) {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = &entry{
		value:        value,
		expiresAt:    now.Add(ttl),
		createdAt:    now,
		lastAccessed: now,
		tags:         tags,
	}

	if len(c.entries) > c.config.MaxSize {
		c.cleanupLocked(now)
	}
}

// Get retrieves a value. Expiry is checked lazily: a stale entry is
// deleted and reported as a miss even if it was never invalidated.
func (c *TaggedCache) Get(key string) (any, bool) {
	now := time.Now()

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, false
	}
	if e.expired(now) {
		delete(c.entries, key)
		c.expirations++
		c.misses++
		return nil, false
	}

	e.accessCount++
	e.lastAccessed = now
	c.hits++
	return e.value, true
}

// GetOrCompute returns the cached value for key, or coalesces concurrent
// misses into a single computation and caches its result. The second
// return reports whether the value came from cache. A started computation
// is not cancellable: compute receives a context detached from the
// caller's cancellation (values are preserved), so callers may time out
// waiting on ctx while the computation runs to completion and still
// populates the cache for subsequent readers.
func (c *TaggedCache) GetOrCompute(ctx context.Context, key string, ttl time.Duration, tags []string, compute func(ctx context.Context) (any, error)) (any, bool, error) {
	if v, ok := c.Get(key); ok {
		return v, true, nil
	}

	detached := context.WithoutCancel(ctx)
	resCh := c.flight.DoChan(key, func() (any, error) {
		// A concurrent flight may have populated the key between our miss
		// and this execution.
		if v, ok := c.Get(key); ok {
			return v, nil
		}
		v, err := compute(detached)
		if err != nil {
			return nil, err
		}
		c.Set(key, v, ttl, tags...)
		return v, nil
	})

	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case res := <-resCh:
		if res.Err != nil {
			return nil, false, res.Err
		}
		return res.Val, false, nil
	}
}

// Invalidate removes every entry whose key contains the pattern and
// returns the number removed.
func (c *TaggedCache) Invalidate(pattern string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for k := range c.entries {
		if strings.Contains(k, pattern) {
			delete(c.entries, k)
			removed++
		}
	}
	c.invalidations += int64(removed)
	if removed > 0 {
		c.logger.Debug("Invalidated cache entries by pattern",
			zap.String("pattern", pattern),
			zap.Int("removed", removed))
	}
	return removed
}

// InvalidateByTags removes every entry carrying at least one of the tags
// and returns the number removed. Entries without any of the tags are
// untouched.
func (c *TaggedCache) InvalidateByTags(tags []string) int {
	if len(tags) == 0 {
		return 0
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for k, e := range c.entries {
		if e.hasAnyTag(tags) {
			delete(c.entries, k)
			removed++
		}
	}
	c.invalidations += int64(removed)
	if removed > 0 {
		c.logger.Debug("Invalidated cache entries by tags",
			zap.Strings("tags", tags),
			zap.Int("removed", removed))
	}
	return removed
}

// Clear removes all entries.
func (c *TaggedCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.invalidations += int64(len(c.entries))
	c.entries = make(map[string]*entry)
	c.logger.Debug("Cleared cache")
}

// Size returns the current entry count.
func (c *TaggedCache) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns a snapshot of cache counters.
func (c *TaggedCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.hits + c.misses
	rate := 0.0
	if total > 0 {
		rate = float64(c.hits) / float64(total)
	}
	return Stats{
		Hits:          c.hits,
		Misses:        c.misses,
		Evictions:     c.evictions,
		Expirations:   c.expirations,
		Invalidations: c.invalidations,
		Size:          len(c.entries),
		HitRate:       rate,
	}
}

// cleanupLocked purges expired entries, then, if the cache is still over
// capacity, evicts by lastAccessed ascending until the size drops to
// MaxSize - OverflowMargin. Callers must hold c.mu.
func (c *TaggedCache) cleanupLocked(now time.Time) {
	for k, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, k)
			c.expirations++
		}
	}

	if len(c.entries) <= c.config.MaxSize {
		return
	}

	type keyed struct {
		key          string
		lastAccessed time.Time
	}
	victims := make([]keyed, 0, len(c.entries))
	for k, e := range c.entries {
		victims = append(victims, keyed{key: k, lastAccessed: e.lastAccessed})
	}
	sort.Slice(victims, func(i, j int) bool {
		return victims[i].lastAccessed.Before(victims[j].lastAccessed)
	})

	target := c.config.MaxSize - c.config.OverflowMargin
	if target < 0 {
		target = 0
	}
	for _, v := range victims {
		if len(c.entries) <= target {
			break
		}
		delete(c.entries, v.key)
		c.evictions++
	}

	c.logger.Debug("Cache cleanup pass completed",
		zap.Int("size", len(c.entries)),
		zap.Int("target", target))
}
