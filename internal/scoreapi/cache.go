package scoreapi

import (
	"sync"
	"time"
)

// Request kinds used in RequestKey.
const (
	KindProvinces  = "provinces"
	KindDistricts  = "districts"
	KindComparison = "comparison"
)

// RequestKey identifies one backend request. Keyword is empty for
// comparisons; ComparisonID is empty otherwise.
type RequestKey struct {
	Kind         string
	Keyword      string
	ProvinceCode string
	ComparisonID string
}

// PayloadCache keeps raw score payloads for a TTL so that repeated map
// selections of the same keyword skip the backend. When full, expired
// payloads are swept first and then the least recently read one is dropped.
type PayloadCache struct {
	mu       sync.Mutex
	payloads map[RequestKey]*cachedPayload
	capacity int
	ttl      time.Duration
	now      func() time.Time

	hits, misses, evicted, dropped int64
}

type cachedPayload struct {
	data     []byte
	storedAt time.Time
	readAt   time.Time
}

// CacheStats reports payload cache usage.
type CacheStats struct {
	Entries    int     `json:"entries"`
	MaxEntries int     `json:"max_entries"`
	Hits       int64   `json:"hits"`
	Misses     int64   `json:"misses"`
	Evicted    int64   `json:"evicted"`
	Dropped    int64   `json:"dropped"`
	HitRate    float64 `json:"hit_rate"`
}

// NewPayloadCache creates a cache holding at most capacity payloads for ttl.
func NewPayloadCache(capacity int, ttl time.Duration) *PayloadCache {
	if capacity < 1 {
		capacity = 1
	}
	return &PayloadCache{
		payloads: make(map[RequestKey]*cachedPayload, capacity),
		capacity: capacity,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Lookup returns the payload stored for key while it is fresh.
func (c *PayloadCache) Lookup(key RequestKey) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	p, ok := c.payloads[key]
	if ok && c.expired(p, now) {
		delete(c.payloads, key)
		c.evicted++
		ok = false
	}
	if !ok {
		c.misses++
		return nil, false
	}
	p.readAt = now
	c.hits++
	return p.data, true
}

// Store records data for key.
func (c *PayloadCache) Store(key RequestKey, data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if _, ok := c.payloads[key]; !ok && len(c.payloads) >= c.capacity {
		c.makeRoom(now)
	}
	c.payloads[key] = &cachedPayload{data: data, storedAt: now, readAt: now}
}

// Drop removes every payload whose key satisfies match and returns how many
// were removed.
func (c *PayloadCache) Drop(match func(RequestKey) bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for key := range c.payloads {
		if match(key) {
			delete(c.payloads, key)
			n++
		}
	}
	c.dropped += int64(n)
	return n
}

// Stats returns a snapshot of the cache counters.
func (c *PayloadCache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := CacheStats{
		Entries:    len(c.payloads),
		MaxEntries: c.capacity,
		Hits:       c.hits,
		Misses:     c.misses,
		Evicted:    c.evicted,
		Dropped:    c.dropped,
	}
	if total := c.hits + c.misses; total > 0 {
		s.HitRate = float64(c.hits) / float64(total)
	}
	return s
}

func (c *PayloadCache) expired(p *cachedPayload, now time.Time) bool {
	return now.Sub(p.storedAt) > c.ttl
}

// makeRoom must be called with mu held.
func (c *PayloadCache) makeRoom(now time.Time) {
	for key, p := range c.payloads {
		if c.expired(p, now) {
			delete(c.payloads, key)
			c.evicted++
		}
	}
	if len(c.payloads) < c.capacity {
		return
	}

	var (
		victim RequestKey
		oldest time.Time
		found  bool
	)
	for key, p := range c.payloads {
		if !found || p.readAt.Before(oldest) {
			victim, oldest, found = key, p.readAt, true
		}
	}
	if found {
		delete(c.payloads, victim)
		c.evicted++
	}
}
