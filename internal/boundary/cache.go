package boundary

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Source loads the boundary set of one level.
type Source interface {
	Load(ctx context.Context, level Level) (*BoundarySet, error)
}

// Cache memoizes boundary sets per level for the lifetime of the process.
// Concurrent first callers share a single in-flight load. Failed loads are
// not remembered, so the next call retries.
type Cache struct {
	src         Source
	loadTimeout time.Duration

	group singleflight.Group

	mu   sync.RWMutex
	sets map[Level]*BoundarySet

	loads  atomic.Int64
	hits   atomic.Int64
	errors atomic.Int64
}

// CacheStats reports cache activity.
type CacheStats struct {
	Levels map[Level]int `json:"levels"`
	Loads  int64         `json:"loads"`
	Hits   int64         `json:"hits"`
	Errors int64         `json:"errors"`
}

// NewCache creates a Cache over src. A zero loadTimeout means no timeout.
func NewCache(src Source, loadTimeout time.Duration) *Cache {
	return &Cache{
		src:         src,
		loadTimeout: loadTimeout,
		sets:        make(map[Level]*BoundarySet),
	}
}

// Get returns the boundary set for level, loading it on first use.
func (c *Cache) Get(ctx context.Context, level Level) (*BoundarySet, error) {
	if set, ok := c.cached(level); ok {
		c.hits.Add(1)
		return set, nil
	}

	ch := c.group.DoChan(string(level), func() (any, error) {
		if set, ok := c.cached(level); ok {
			return set, nil
		}
		// The load outlives the caller that triggered it; others may be waiting.
		loadCtx := context.WithoutCancel(ctx)
		if c.loadTimeout > 0 {
			var cancel context.CancelFunc
			loadCtx, cancel = context.WithTimeout(loadCtx, c.loadTimeout)
			defer cancel()
		}

		start := time.Now()
		set, err := c.src.Load(loadCtx, level)
		c.loads.Add(1)
		if err != nil {
			c.errors.Add(1)
			return nil, eris.Wrapf(err, "boundary: load %s", level)
		}

		c.mu.Lock()
		c.sets[level] = set
		c.mu.Unlock()

		zap.L().Info("boundary: loaded boundary set",
			zap.String("level", string(level)),
			zap.String("source", set.Source),
			zap.Int("features", set.Len()),
			zap.Duration("elapsed", time.Since(start)),
		)
		return set, nil
	})

	select {
	case <-ctx.Done():
		return nil, eris.Wrapf(ctx.Err(), "boundary: waiting for %s load", level)
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*BoundarySet), nil
	}
}

// Warm loads every level concurrently.
func (c *Cache) Warm(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, level := range Levels() {
		g.Go(func() error {
			_, err := c.Get(gctx, level)
			return err
		})
	}
	return g.Wait()
}

// Reset drops every cached set; the next Get reloads from the source.
func (c *Cache) Reset() {
	c.mu.Lock()
	c.sets = make(map[Level]*BoundarySet)
	c.mu.Unlock()
	for _, level := range Levels() {
		c.group.Forget(string(level))
	}
}

// Stats returns a snapshot of cache activity.
func (c *Cache) Stats() CacheStats {
	c.mu.RLock()
	levels := make(map[Level]int, len(c.sets))
	for l, s := range c.sets {
		levels[l] = s.Len()
	}
	c.mu.RUnlock()
	return CacheStats{
		Levels: levels,
		Loads:  c.loads.Load(),
		Hits:   c.hits.Load(),
		Errors: c.errors.Load(),
	}
}

func (c *Cache) cached(level Level) (*BoundarySet, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	set, ok := c.sets[level]
	return set, ok
}
