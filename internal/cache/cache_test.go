// -- internal/cache/cache_test.go --
package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/mvoss9k/tabpilot/api/schemas"
	"github.com/mvoss9k/tabpilot/internal/config"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	c := New(config.CacheConfig{TTL: 30 * time.Second, SweepInterval: time.Hour}, zap.NewNop())
	t.Cleanup(c.Close)
	return c
}

func obsFor(url, hash string) *schemas.Observation {
	return &schemas.Observation{URL: url, Title: "t", ContentHash: hash}
}

func TestSetGet(t *testing.T) {
	c := newTestCache(t)

	obs := obsFor("https://a.test/page", "h1")
	c.Set(obs, "tab-1", 0)

	got := c.Get("https://a.test/page", "tab-1", 0)
	require.NotNil(t, got)
	assert.Same(t, obs, got)

	assert.Nil(t, c.Get("https://a.test/other", "tab-1", 0), "different URL misses")
	assert.Nil(t, c.Get("https://a.test/page", "tab-2", 0), "different tab misses")
}

func TestGetExpiry(t *testing.T) {
	c := newTestCache(t)

	base := time.Now()
	clock := base
	c.WithNow(func() time.Time { return clock })

	c.Set(obsFor("https://a.test/", "h1"), "tab-1", 1000*time.Millisecond)

	clock = base.Add(1500 * time.Millisecond)
	assert.Nil(t, c.Get("https://a.test/", "tab-1", 0), "age 1500ms exceeds the 1000ms ttl")
	assert.Equal(t, 0, c.Len(), "expired entry is evicted on read")
	assert.Nil(t, c.Get("https://a.test/", "tab-1", 0), "repeat get stays nil")
}

func TestGetMaxAgeOverride(t *testing.T) {
	c := newTestCache(t)

	base := time.Now()
	clock := base
	c.WithNow(func() time.Time { return clock })

	c.Set(obsFor("https://a.test/", "h1"), "tab-1", time.Minute)

	clock = base.Add(10 * time.Second)
	assert.Nil(t, c.Get("https://a.test/", "tab-1", 5*time.Second), "tighter maxAge wins over stored ttl")

	// Eviction already happened under the tighter bound.
	assert.Equal(t, 0, c.Len())
}

func TestSetOverwrites(t *testing.T) {
	c := newTestCache(t)

	c.Set(obsFor("https://a.test/", "old"), "tab-1", 0)
	fresh := obsFor("https://a.test/", "new")
	c.Set(fresh, "tab-1", 0)

	got := c.Get("https://a.test/", "tab-1", 0)
	require.NotNil(t, got)
	assert.Equal(t, "new", got.ContentHash)
	assert.Equal(t, 1, c.Len())
}

func TestChanged(t *testing.T) {
	c := newTestCache(t)

	assert.True(t, c.Changed("https://a.test/", "tab-1", "h1"), "empty cache counts as changed")

	c.Set(obsFor("https://a.test/", "h1"), "tab-1", 0)
	assert.False(t, c.Changed("https://a.test/", "tab-1", "h1"))
	assert.True(t, c.Changed("https://a.test/", "tab-1", "h2"))
}

func TestClearTab(t *testing.T) {
	c := newTestCache(t)

	c.Set(obsFor("https://a.test/1", "h"), "tab-1", 0)
	c.Set(obsFor("https://a.test/2", "h"), "tab-1", 0)
	c.Set(obsFor("https://a.test/1", "h"), "tab-2", 0)

	c.ClearTab("tab-1")

	assert.Nil(t, c.Get("https://a.test/1", "tab-1", 0))
	assert.Nil(t, c.Get("https://a.test/2", "tab-1", 0))
	assert.NotNil(t, c.Get("https://a.test/1", "tab-2", 0), "other tabs untouched")
}

func TestClearAll(t *testing.T) {
	c := newTestCache(t)

	c.Set(obsFor("https://a.test/1", "h"), "tab-1", 0)
	c.Set(obsFor("https://a.test/2", "h"), "tab-2", 0)
	c.ClearAll()
	assert.Equal(t, 0, c.Len())
}

func TestJanitorSweepsExpired(t *testing.T) {
	c := New(config.CacheConfig{TTL: 30 * time.Second, SweepInterval: 10 * time.Millisecond}, zap.NewNop())
	defer c.Close()

	c.Set(obsFor("https://a.test/", "h"), "tab-1", time.Millisecond)

	assert.Eventually(t, func() bool { return c.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestCloseStopsJanitor(t *testing.T) {
	defer goleak.VerifyNone(t)

	c := New(config.CacheConfig{TTL: time.Second, SweepInterval: time.Millisecond}, zap.NewNop())
	c.Set(obsFor("https://a.test/", "h"), "tab-1", 0)
	c.Close()
	c.Close() // idempotent
}
