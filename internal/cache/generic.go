// Package cache implements the generic bounded key-value cache and the
// domain-specific typed market/execution cache built on top of it.
package cache

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	gocache "github.com/patrickmn/go-cache"
)

// GenericConfig configures a Generic cache instance.
type GenericConfig struct {
	// MaxSize is the hard capacity before eviction.
	MaxSize int
	// TTLSeconds, if non-zero, expires entries on read after this many
	// seconds of age.
	TTLSeconds uint64
	// EnableStatistics toggles counter maintenance.
	EnableStatistics bool

	// Name identifies this cache instance in exported metrics, via a
	// const label, so several Generic caches can share one Registerer.
	// Defaults to "default" when Registerer is set and Name is empty.
	Name string
	// Registerer, if non-nil, publishes hit/miss/insert/eviction
	// counters to it. Left nil, no prometheus collectors are created.
	Registerer prometheus.Registerer
}

// DefaultGenericConfig returns sane defaults: 10k entries, no TTL,
// statistics enabled.
func DefaultGenericConfig() GenericConfig {
	return GenericConfig{
		MaxSize:          10_000,
		TTLSeconds:       0,
		EnableStatistics: true,
	}
}

// Statistics are monotonic counters describing cache activity.
type Statistics struct {
	Hits      uint64
	Misses    uint64
	Inserts   uint64
	Evictions uint64
}

// HitRate returns hits / (hits + misses), or 0 when no lookups occurred.
func (s Statistics) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// genericMetrics mirrors Statistics as prometheus counters, labeled by
// cache instance name so multiple Generic caches can register against
// the same Registerer without name collisions.
type genericMetrics struct {
	hits      prometheus.Counter
	misses    prometheus.Counter
	inserts   prometheus.Counter
	evictions prometheus.Counter
}

func newGenericMetrics(registerer prometheus.Registerer, name string) *genericMetrics {
	if registerer == nil {
		return nil
	}
	if name == "" {
		name = "default"
	}
	labels := prometheus.Labels{"cache": name}
	m := &genericMetrics{
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "cache_hits_total",
			Help:        "Number of cache lookups that found a live entry.",
			ConstLabels: labels,
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "cache_misses_total",
			Help:        "Number of cache lookups that found no live entry.",
			ConstLabels: labels,
		}),
		inserts: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "cache_inserts_total",
			Help:        "Number of new keys written to the cache.",
			ConstLabels: labels,
		}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "cache_evictions_total",
			Help:        "Number of entries evicted to stay within MaxSize.",
			ConstLabels: labels,
		}),
	}
	registerer.MustRegister(m.hits, m.misses, m.inserts, m.evictions)
	return m
}

// Generic is a bounded, optionally-TTL'd, concurrency-safe key-value
// cache. The backing store is patrickmn/go-cache, which natively handles
// per-entry TTL expiry; Generic layers FIFO-on-overflow eviction and
// hit/miss/insert/eviction counters on top, since go-cache exposes
// neither.
type Generic[T any] struct {
	cfg     GenericConfig
	store   *gocache.Cache
	metrics *genericMetrics

	mu        sync.Mutex
	insertion []string // FIFO order of currently-live keys, oldest first
	statsMu   sync.Mutex
	stats     Statistics
}

// NewGeneric creates a Generic cache with the given configuration.
func NewGeneric[T any](cfg GenericConfig) *Generic[T] {
	ttl := gocache.NoExpiration
	if cfg.TTLSeconds > 0 {
		ttl = time.Duration(cfg.TTLSeconds) * time.Second
	}
	return &Generic[T]{
		cfg:       cfg,
		store:     gocache.New(ttl, time.Minute),
		metrics:   newGenericMetrics(cfg.Registerer, cfg.Name),
		insertion: make([]string, 0, cfg.MaxSize),
	}
}

// Get returns the value for key, removing it and counting a miss if it is
// TTL-expired.
func (c *Generic[T]) Get(key string) (T, bool) {
	var zero T
	raw, found := c.store.Get(key)
	if !found {
		c.store.Delete(key)
		c.recordMiss()
		return zero, false
	}
	val, ok := raw.(T)
	if !ok {
		c.recordMiss()
		return zero, false
	}
	c.recordHit()
	return val, true
}

// Put inserts key/value, evicting the oldest entry first if the cache is
// at MaxSize capacity.
func (c *Generic[T]) Put(key string, value T) {
	c.mu.Lock()
	_, existed := c.store.Get(key)
	if !existed && c.cfg.MaxSize > 0 && len(c.insertion) >= c.cfg.MaxSize {
		oldest := c.insertion[0]
		c.insertion = c.insertion[1:]
		c.store.Delete(oldest)
		c.recordEviction()
	}
	if !existed {
		c.insertion = append(c.insertion, key)
	}
	c.mu.Unlock()

	ttl := gocache.DefaultExpiration
	if c.cfg.TTLSeconds == 0 {
		ttl = gocache.NoExpiration
	}
	c.store.Set(key, value, ttl)

	if !existed {
		c.recordInsert()
	}
}

// Contains reports whether key is present and not expired.
func (c *Generic[T]) Contains(key string) bool {
	_, found := c.store.Get(key)
	return found
}

// Remove deletes key, reporting whether it was present.
func (c *Generic[T]) Remove(key string) bool {
	_, found := c.store.Get(key)
	if !found {
		return false
	}
	c.store.Delete(key)
	c.mu.Lock()
	for i, k := range c.insertion {
		if k == key {
			c.insertion = append(c.insertion[:i], c.insertion[i+1:]...)
			break
		}
	}
	c.mu.Unlock()
	return true
}

// Clear removes every entry and resets statistics.
func (c *Generic[T]) Clear() {
	c.store.Flush()
	c.mu.Lock()
	c.insertion = c.insertion[:0]
	c.mu.Unlock()
	c.statsMu.Lock()
	c.stats = Statistics{}
	c.statsMu.Unlock()
}

// Size returns the number of entries held by the backing store. This can
// include TTL-expired entries that neither a Get nor the store's
// once-a-minute cleanup has removed yet.
func (c *Generic[T]) Size() int {
	return c.store.ItemCount()
}

// Keys returns all currently live keys in unspecified order.
func (c *Generic[T]) Keys() []string {
	items := c.store.Items()
	keys := make([]string, 0, len(items))
	for k := range items {
		keys = append(keys, k)
	}
	return keys
}

// Statistics returns a snapshot of the monotonic counters.
func (c *Generic[T]) Statistics() Statistics {
	if !c.cfg.EnableStatistics {
		return Statistics{}
	}
	c.statsMu.Lock()
	defer c.statsMu.Unlock()
	return c.stats
}

func (c *Generic[T]) recordHit() {
	if c.metrics != nil {
		c.metrics.hits.Inc()
	}
	if !c.cfg.EnableStatistics {
		return
	}
	c.statsMu.Lock()
	c.stats.Hits++
	c.statsMu.Unlock()
}

func (c *Generic[T]) recordMiss() {
	if c.metrics != nil {
		c.metrics.misses.Inc()
	}
	if !c.cfg.EnableStatistics {
		return
	}
	c.statsMu.Lock()
	c.stats.Misses++
	c.statsMu.Unlock()
}

func (c *Generic[T]) recordInsert() {
	if c.metrics != nil {
		c.metrics.inserts.Inc()
	}
	if !c.cfg.EnableStatistics {
		return
	}
	c.statsMu.Lock()
	c.stats.Inserts++
	c.statsMu.Unlock()
}

func (c *Generic[T]) recordEviction() {
	if c.metrics != nil {
		c.metrics.evictions.Inc()
	}
	if !c.cfg.EnableStatistics {
		return
	}
	c.statsMu.Lock()
	c.stats.Evictions++
	c.statsMu.Unlock()
}
