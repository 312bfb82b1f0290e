package scoreapi

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock advances one second per call.
func fakeClock(c *PayloadCache) *time.Time {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time {
		now = now.Add(time.Second)
		return now
	}
	return &now
}

func provinceKey(keyword string) RequestKey {
	return RequestKey{Kind: KindProvinces, Keyword: keyword}
}

func TestPayloadCache_LookupStore(t *testing.T) {
	cache := NewPayloadCache(8, time.Hour)

	_, ok := cache.Lookup(provinceKey("kahve"))
	assert.False(t, ok)

	data := []byte(`{"type":"FeatureCollection","features":[]}`)
	cache.Store(provinceKey("kahve"), data)

	got, ok := cache.Lookup(provinceKey("kahve"))
	require.True(t, ok)
	assert.Equal(t, data, got)

	// Same keyword, different request.
	_, ok = cache.Lookup(RequestKey{Kind: KindDistricts, Keyword: "kahve"})
	assert.False(t, ok)
	_, ok = cache.Lookup(RequestKey{Kind: KindDistricts, Keyword: "kahve", ProvinceCode: "34"})
	assert.False(t, ok)
}

func TestPayloadCache_Expiry(t *testing.T) {
	cache := NewPayloadCache(8, time.Minute)
	now := fakeClock(cache)

	cache.Store(provinceKey("kahve"), []byte("v"))
	_, ok := cache.Lookup(provinceKey("kahve"))
	assert.True(t, ok)

	*now = now.Add(2 * time.Minute)
	_, ok = cache.Lookup(provinceKey("kahve"))
	assert.False(t, ok)

	stats := cache.Stats()
	assert.Zero(t, stats.Entries)
	assert.Equal(t, int64(1), stats.Evicted)
}

func TestPayloadCache_EvictsLeastRecentlyRead(t *testing.T) {
	cache := NewPayloadCache(3, time.Hour)
	fakeClock(cache)

	cache.Store(provinceKey("a"), []byte("1"))
	cache.Store(provinceKey("b"), []byte("2"))
	cache.Store(provinceKey("c"), []byte("3"))

	// Reading "a" leaves "b" as the stalest.
	cache.Lookup(provinceKey("a"))
	cache.Store(provinceKey("d"), []byte("4"))

	for key, want := range map[string]bool{"a": true, "b": false, "c": true, "d": true} {
		_, ok := cache.Lookup(provinceKey(key))
		assert.Equal(t, want, ok, key)
	}
	assert.Equal(t, int64(1), cache.Stats().Evicted)
}

func TestPayloadCache_FullSweepsExpiredFirst(t *testing.T) {
	cache := NewPayloadCache(2, time.Minute)
	now := fakeClock(cache)

	cache.Store(provinceKey("old"), []byte("1"))
	*now = now.Add(2 * time.Minute)
	cache.Store(provinceKey("fresh"), []byte("2"))
	cache.Lookup(provinceKey("fresh"))

	cache.Store(provinceKey("new"), []byte("3"))

	_, ok := cache.Lookup(provinceKey("fresh"))
	assert.True(t, ok)
	_, ok = cache.Lookup(provinceKey("new"))
	assert.True(t, ok)
	assert.Equal(t, 2, cache.Stats().Entries)
}

func TestPayloadCache_StoreReplaces(t *testing.T) {
	cache := NewPayloadCache(2, time.Hour)
	cache.Store(provinceKey("a"), []byte("1"))
	cache.Store(provinceKey("a"), []byte("2"))

	got, ok := cache.Lookup(provinceKey("a"))
	require.True(t, ok)
	assert.Equal(t, []byte("2"), got)
	assert.Equal(t, 1, cache.Stats().Entries)
}

func TestPayloadCache_Drop(t *testing.T) {
	cache := NewPayloadCache(8, time.Hour)
	cache.Store(provinceKey("kahve"), []byte("1"))
	cache.Store(RequestKey{Kind: KindDistricts, Keyword: "kahve", ProvinceCode: "34"}, []byte("2"))
	cache.Store(provinceKey("çay"), []byte("3"))

	n := cache.Drop(func(k RequestKey) bool { return k.Keyword == "kahve" })
	assert.Equal(t, 2, n)

	_, ok := cache.Lookup(provinceKey("kahve"))
	assert.False(t, ok)
	_, ok = cache.Lookup(provinceKey("çay"))
	assert.True(t, ok)
	assert.Equal(t, int64(2), cache.Stats().Dropped)
}

func TestPayloadCache_Stats(t *testing.T) {
	cache := NewPayloadCache(10, time.Hour)
	cache.Store(provinceKey("a"), []byte("1"))
	cache.Lookup(provinceKey("a"))
	cache.Lookup(provinceKey("missing"))

	stats := cache.Stats()
	assert.Equal(t, 1, stats.Entries)
	assert.Equal(t, 10, stats.MaxEntries)
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.InDelta(t, 0.5, stats.HitRate, 1e-9)
}

func TestPayloadCache_ConcurrentAccess(t *testing.T) {
	cache := NewPayloadCache(50, time.Hour)
	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 100 {
				key := provinceKey(fmt.Sprintf("k%d", (i+j)%80))
				cache.Store(key, []byte(key.Keyword))
				cache.Lookup(key)
			}
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, cache.Stats().Entries, 50)
}
