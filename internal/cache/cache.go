package cache

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"

	"kestrel/internal/domain"
)

// Lookup kinds double as key namespaces so TTL defaults can differ per kind
// while all entries share one table.
const (
	KindReputation     = "reputation"
	KindDNS            = "dns"
	KindWhois          = "whois"
	KindHashReputation = "vt"
)

var defaultTTLs = map[string]time.Duration{
	KindReputation:     24 * time.Hour,
	KindDNS:            12 * time.Hour,
	KindWhois:          7 * 24 * time.Hour,
	KindHashReputation: 6 * time.Hour,
}

const (
	defaultMaxEntries = 10_000
	evictDivisor      = 5 // bottom 20% on capacity sweep
	fallbackTTL       = time.Hour
)

// Store is the optional persistence backend behind the in-memory cache.
// All writes are best-effort mirrors; the memory map stays authoritative.
type Store interface {
	LoadAll(ctx context.Context) ([]domain.CacheEntry, error)
	Upsert(ctx context.Context, entry domain.CacheEntry) error
	Delete(ctx context.Context, keys []string) error
	Clear(ctx context.Context) error
}

// Metrics is a point-in-time counter snapshot for the caller.
type Metrics struct {
	Hits      uint64
	Misses    uint64
	Evictions uint64
	Entries   int
}

// Options configures a cache instance.
type Options struct {
	TTLOverrides map[string]time.Duration
	MaxEntries   int
	Store        Store
}

// Cache is the TTL result cache. One mutex serializes reads, writes and
// eviction sweeps so a concurrent get can never observe an entry mid-evict.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*domain.CacheEntry

	ttls       map[string]time.Duration
	maxEntries int
	store      Store
	group      singleflight.Group
	now        func() time.Time

	hits      uint64
	misses    uint64
	evictions uint64
}

// New builds a cache from the default TTL table plus the given options.
func New(opts Options) *Cache {
	ttls := make(map[string]time.Duration, len(defaultTTLs)+len(opts.TTLOverrides))
	for kind, ttl := range defaultTTLs {
		ttls[kind] = ttl
	}
	for kind, ttl := range opts.TTLOverrides {
		if ttl > 0 {
			ttls[kind] = ttl
		}
	}

	maxEntries := opts.MaxEntries
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}

	return &Cache{
		entries:    make(map[string]*domain.CacheEntry),
		ttls:       ttls,
		maxEntries: maxEntries,
		store:      opts.Store,
		now:        time.Now,
	}
}

// Key builds the namespaced cache key for a lookup kind and target value.
func Key(kind, targetValue string) string {
	return kind + ":" + strings.ToLower(strings.TrimSpace(targetValue))
}

// Get returns the payload for a key. A hit bumps HitCount and LastAccessed
// but never extends the expiry; an expired entry is a miss and stays
// untouched until the next sweep.
func (c *Cache) Get(key string) ([]byte, bool) {
	now := c.now()

	c.mu.Lock()

	entry, found := c.entries[key]
	if !found || entry.Expired(now) {
		c.misses++
		c.mu.Unlock()
		return nil, false
	}

	entry.HitCount++
	entry.LastAccessed = now
	c.hits++
	payload := append([]byte(nil), entry.Payload...)
	snapshot := *entry
	c.mu.Unlock()

	c.persistTouch(snapshot)
	return payload, true
}

// Put stores a payload under the key. A zero ttl picks the default for the
// key's kind prefix. ExpiresAt is always now+ttl at write time.
func (c *Cache) Put(key string, payload []byte, ttl time.Duration) {
	c.PutWithConfidence(key, payload, ttl, 1)
}

// PutWithConfidence stores a payload with an explicit confidence weight.
func (c *Cache) PutWithConfidence(key string, payload []byte, ttl time.Duration, confidence float64) {
	now := c.now()
	if ttl <= 0 {
		ttl = c.ttlFor(key)
	}

	kind, targetValue := splitKey(key)
	entry := &domain.CacheEntry{
		Key:          key,
		Kind:         kind,
		TargetValue:  targetValue,
		Payload:      append([]byte(nil), payload...),
		Confidence:   confidence,
		ExpiresAt:    now.Add(ttl),
		HitCount:     0,
		LastAccessed: now,
	}

	c.mu.Lock()
	c.entries[key] = entry
	evicted := c.evictOverCapacityLocked()
	snapshot := *entry
	c.mu.Unlock()

	c.persistUpsert(snapshot)
	c.persistDelete(evicted)
}

// GetOrFetch returns the cached payload or runs fill once for all concurrent
// callers of the same key, caching a successful result.
func (c *Cache) GetOrFetch(ctx context.Context, key string, ttl time.Duration, fill func(ctx context.Context) ([]byte, error)) ([]byte, error) {
	if payload, found := c.Get(key); found {
		return payload, nil
	}

	result, err, _ := c.group.Do(key, func() (any, error) {
		if payload, found := c.Get(key); found {
			return payload, nil
		}
		payload, err := fill(ctx)
		if err != nil {
			return nil, err
		}
		c.Put(key, payload, ttl)
		return payload, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}

// InvalidateExpired removes every entry past its expiry and reports how many
// were dropped.
func (c *Cache) InvalidateExpired() int {
	now := c.now()

	c.mu.Lock()
	var removed []string
	for key, entry := range c.entries {
		if entry.Expired(now) {
			delete(c.entries, key)
			removed = append(removed, key)
		}
	}
	c.mu.Unlock()

	c.persistDelete(removed)
	return len(removed)
}

// Remove deletes a single entry by key.
func (c *Cache) Remove(key string) {
	c.mu.Lock()
	_, found := c.entries[key]
	delete(c.entries, key)
	c.mu.Unlock()

	if found {
		c.persistDelete([]string{key})
	}
}

// Clear drops every entry.
func (c *Cache) Clear() {
	c.mu.Lock()
	c.entries = make(map[string]*domain.CacheEntry)
	c.mu.Unlock()

	if c.store == nil {
		return
	}
	if err := c.store.Clear(context.Background()); err != nil {
		log.Warn("Cache store clear failed", "error", err)
	}
}

// Hydrate loads persisted entries into memory, skipping anything already
// expired. Intended for startup, before the cache takes traffic.
func (c *Cache) Hydrate(ctx context.Context) error {
	if c.store == nil {
		return nil
	}

	persisted, err := c.store.LoadAll(ctx)
	if err != nil {
		return err
	}

	now := c.now()
	loaded := 0

	c.mu.Lock()
	for _, entry := range persisted {
		if entry.Expired(now) {
			continue
		}
		stored := entry
		c.entries[entry.Key] = &stored
		loaded++
	}
	c.mu.Unlock()

	log.Debug("Cache hydrated", "loaded", loaded, "persisted", len(persisted))
	return nil
}

// Len reports the current entry count, expired entries included.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Snapshot returns the current metrics counters.
func (c *Cache) Snapshot() Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Metrics{
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
		Entries:   len(c.entries),
	}
}

// SetClock overrides the time source. Intended for tests.
func (c *Cache) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

func (c *Cache) ttlFor(key string) time.Duration {
	kind, _ := splitKey(key)
	if ttl, found := c.ttls[kind]; found {
		return ttl
	}
	return fallbackTTL
}

// evictOverCapacityLocked removes the least-used-and-oldest 20% once the
// entry count exceeds the capacity threshold. Caller holds c.mu.
func (c *Cache) evictOverCapacityLocked() []string {
	if len(c.entries) <= c.maxEntries {
		return nil
	}

	ranked := make([]*domain.CacheEntry, 0, len(c.entries))
	for _, entry := range c.entries {
		ranked = append(ranked, entry)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].HitCount != ranked[j].HitCount {
			return ranked[i].HitCount < ranked[j].HitCount
		}
		return ranked[i].LastAccessed.Before(ranked[j].LastAccessed)
	})

	evictCount := c.maxEntries / evictDivisor
	if evictCount > len(ranked) {
		evictCount = len(ranked)
	}

	removed := make([]string, 0, evictCount)
	for _, entry := range ranked[:evictCount] {
		delete(c.entries, entry.Key)
		removed = append(removed, entry.Key)
	}
	c.evictions += uint64(len(removed))
	return removed
}

func (c *Cache) persistUpsert(entry domain.CacheEntry) {
	if c.store == nil {
		return
	}
	if err := c.store.Upsert(context.Background(), entry); err != nil {
		log.Warn("Cache store upsert failed", "key", entry.Key, "error", err)
	}
}

func (c *Cache) persistTouch(entry domain.CacheEntry) {
	if c.store == nil {
		return
	}
	if err := c.store.Upsert(context.Background(), entry); err != nil {
		log.Debug("Cache store touch failed", "key", entry.Key, "error", err)
	}
}

func (c *Cache) persistDelete(keys []string) {
	if c.store == nil || len(keys) == 0 {
		return
	}
	if err := c.store.Delete(context.Background(), keys); err != nil {
		log.Warn("Cache store delete failed", "keys", len(keys), "error", err)
	}
}

func splitKey(key string) (kind, targetValue string) {
	idx := strings.Index(key, ":")
	if idx < 0 {
		return "", key
	}
	return key[:idx], key[idx+1:]
}
