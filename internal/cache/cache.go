// -- internal/cache/cache.go --
package cache

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mvoss9k/tabpilot/api/schemas"
	"github.com/mvoss9k/tabpilot/internal/config"
)

// entry is one cached observation with its own expiry horizon.
type entry struct {
	obs      *schemas.Observation
	storedAt time.Time
	ttl      time.Duration
}

func (e *entry) expired(now time.Time, maxAge time.Duration) bool {
	limit := e.ttl
	if maxAge > 0 {
		limit = maxAge
	}
	return now.Sub(e.storedAt) > limit
}

// Cache holds extracted observations keyed by tab and URL so repeat
// decisions against an unchanged page skip re-extraction. Entries expire
// after their TTL; a janitor sweeps leftovers that were never read again.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*entry

	defaultTTL time.Duration
	logger     *zap.Logger
	now        func() time.Time

	done      chan struct{}
	closeOnce sync.Once
}

// New builds a Cache and starts its sweep janitor. Callers own the
// lifecycle and must Close when done.
func New(cfg config.CacheConfig, logger *zap.Logger) *Cache {
	c := &Cache{
		entries:    make(map[string]*entry),
		defaultTTL: cfg.TTL,
		logger:     logger.Named("cache"),
		now:        time.Now,
		done:       make(chan struct{}),
	}
	if c.defaultTTL <= 0 {
		c.defaultTTL = 30 * time.Second
	}
	sweep := cfg.SweepInterval
	if sweep <= 0 {
		sweep = 10 * time.Second
	}
	go c.janitor(sweep)
	return c
}

// WithNow overrides the clock. Test hook.
func (c *Cache) WithNow(now func() time.Time) {
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}

// Close stops the janitor. Safe to call more than once.
func (c *Cache) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// Key builds the canonical map key for a tab/URL pair.
func Key(tabID, url string) string {
	return fmt.Sprintf("%s:%s", tabID, url)
}

// Set stores obs under the tab/URL pair. A non-positive ttl selects the
// configured default. Overwrites are last-write-wins.
func (c *Cache) Set(obs *schemas.Observation, tabID string, ttl time.Duration) {
	if obs == nil {
		return
	}
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	key := Key(tabID, obs.URL)
	c.mu.Lock()
	c.entries[key] = &entry{obs: obs, storedAt: c.now(), ttl: ttl}
	c.mu.Unlock()
	c.logger.Debug("observation cached", zap.String("key", key), zap.Duration("ttl", ttl))
}

// Get returns the cached observation for the tab/URL pair, or nil when
// absent or older than maxAge (non-positive maxAge falls back to the TTL
// the entry was stored with). Expired entries are evicted on the way out,
// so repeat calls stay nil without further work.
func (c *Cache) Get(url, tabID string, maxAge time.Duration) *schemas.Observation {
	key := Key(tabID, url)

	c.mu.RLock()
	e, ok := c.entries[key]
	now := c.now()
	c.mu.RUnlock()
	if !ok {
		return nil
	}

	if e.expired(now, maxAge) {
		c.mu.Lock()
		// Re-check under the write lock; a fresher Set may have replaced it.
		if cur, ok := c.entries[key]; ok && cur.expired(c.now(), maxAge) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		c.logger.Debug("cache entry expired", zap.String("key", key))
		return nil
	}
	return e.obs
}

// Changed reports whether freshHash differs from the hash cached for the
// tab/URL pair. No cached entry counts as changed.
func (c *Cache) Changed(url, tabID, freshHash string) bool {
	c.mu.RLock()
	e, ok := c.entries[Key(tabID, url)]
	c.mu.RUnlock()
	if !ok || e.obs == nil {
		return true
	}
	return e.obs.ContentHash != freshHash
}

// ClearTab evicts every entry belonging to the tab.
func (c *Cache) ClearTab(tabID string) {
	prefix := tabID + ":"
	c.mu.Lock()
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
	c.mu.Unlock()
	c.logger.Debug("tab cache cleared", zap.String("tab_id", tabID))
}

// ClearAll drops every entry.
func (c *Cache) ClearAll() {
	c.mu.Lock()
	c.entries = make(map[string]*entry)
	c.mu.Unlock()
	c.logger.Debug("cache cleared")
}

// Len reports the live entry count, expired or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// janitor periodically evicts entries that expired without being read.
func (c *Cache) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.sweep()
		}
	}
}

func (c *Cache) sweep() {
	c.mu.Lock()
	now := c.now()
	removed := 0
	for key, e := range c.entries {
		if e.expired(now, 0) {
			delete(c.entries, key)
			removed++
		}
	}
	c.mu.Unlock()
	if removed > 0 {
		c.logger.Debug("janitor sweep", zap.Int("evicted", removed))
	}
}
