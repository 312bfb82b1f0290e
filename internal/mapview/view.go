// Package mapview tracks the layer currently shown on each map and discards
// merge results that finish after a newer selection was made.
package mapview

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb/geojson"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geoint-cli/internal/boundary"
)

// Kinds of selection a map can show.
const (
	KindProvince   = "province"
	KindDistrict   = "district"
	KindComparison = "comparison"
)

// Selection is what the user asked the map to show.
type Selection struct {
	Kind         string `json:"kind" validate:"required,oneof=province district comparison"`
	Keyword      string `json:"keyword" validate:"max=200"`
	ProvinceCode string `json:"province_code,omitempty" validate:"max=3"`
	ComparisonID string `json:"comparison_id,omitempty" validate:"max=64"`
	Refresh      bool   `json:"refresh,omitempty"`
}

// Ticket identifies one selection. Only the ticket with the highest
// generation may commit.
type Ticket struct {
	ID         uuid.UUID `json:"id"`
	Generation uint64    `json:"generation"`
	Selection  Selection `json:"selection"`
	IssuedAt   time.Time `json:"issued_at"`
}

// Layer is a committed merge result.
type Layer struct {
	Ticket      Ticket                     `json:"ticket"`
	Features    *geojson.FeatureCollection `json:"features"`
	Stats       boundary.MergeStats        `json:"stats"`
	Error       string                     `json:"error,omitempty"`
	CommittedAt time.Time                  `json:"committed_at"`
}

// Loader produces the merged layer for a selection.
type Loader func(ctx context.Context, sel Selection) (*geojson.FeatureCollection, boundary.MergeStats, error)

// View is one map's last-write-wins layer slot.
type View struct {
	id string

	mu      sync.RWMutex
	gen     uint64
	pending Ticket
	layer   *Layer

	loads    sync.WaitGroup
	running  atomic.Int32
	lastUsed atomic.Int64

	committed atomic.Int64
	discarded atomic.Int64
}

// NewView creates an empty view.
func NewView(id string) *View {
	v := &View{id: id}
	v.touch()
	return v
}

func (v *View) touch() {
	v.lastUsed.Store(time.Now().UnixNano())
}

// Begin issues a ticket for sel, superseding every earlier ticket.
func (v *View) Begin(sel Selection) Ticket {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.gen++
	v.pending = Ticket{
		ID:         uuid.New(),
		Generation: v.gen,
		Selection:  sel,
		IssuedAt:   time.Now(),
	}
	return v.pending
}

// Commit stores layer if t is still the latest ticket. A stale result is
// dropped and false is returned.
func (v *View) Commit(t Ticket, layer Layer) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if t.Generation != v.gen || t.ID != v.pending.ID {
		v.discarded.Add(1)
		zap.L().Debug("mapview: discarding stale result",
			zap.String("view", v.id),
			zap.Uint64("generation", t.Generation),
			zap.Uint64("latest", v.gen),
		)
		return false
	}
	layer.Ticket = t
	layer.CommittedAt = time.Now()
	v.layer = &layer
	v.committed.Add(1)
	return true
}

// Current returns the committed layer, if any.
func (v *View) Current() (*Layer, bool) {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.layer, v.layer != nil
}

// Pending returns the latest issued ticket.
func (v *View) Pending() Ticket {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.pending
}

// Select issues a ticket and runs load in the background. The load is not
// cancelled when superseded; its result is discarded on commit.
func (v *View) Select(ctx context.Context, sel Selection, load Loader) Ticket {
	t := v.Begin(sel)
	v.running.Add(1)
	v.loads.Add(1)
	go func() {
		defer v.loads.Done()
		defer v.running.Add(-1)
		fc, stats, err := load(ctx, sel)
		layer := Layer{Features: fc, Stats: stats}
		if err != nil {
			layer.Error = err.Error()
			zap.L().Warn("mapview: selection failed",
				zap.String("view", v.id),
				zap.String("kind", sel.Kind),
				zap.Error(err),
			)
		}
		v.Commit(t, layer)
	}()
	return t
}

// Wait blocks until every started load has committed or been discarded.
func (v *View) Wait() {
	v.loads.Wait()
}

func (v *View) idle() bool {
	return v.running.Load() == 0
}

// ViewStats counts commits and discarded stale results.
type ViewStats struct {
	Generation uint64 `json:"generation"`
	Committed  int64  `json:"committed"`
	Discarded  int64  `json:"discarded"`
}

// Stats returns the view's counters.
func (v *View) Stats() ViewStats {
	v.mu.RLock()
	gen := v.gen
	v.mu.RUnlock()
	return ViewStats{Generation: gen, Committed: v.committed.Load(), Discarded: v.discarded.Load()}
}

// ErrTooManyViews is returned when the registry is full and every view has a
// load in flight.
var ErrTooManyViews = eris.New("mapview: too many active views")

// DefaultMaxViews bounds a registry created with a non-positive limit.
const DefaultMaxViews = 256

// Registry holds the views of a process, created on first use. Once it holds
// maxViews views, creating another one evicts the least recently used idle
// view.
type Registry struct {
	mu       sync.Mutex
	views    map[string]*View
	maxViews int
}

// NewRegistry creates an empty registry holding at most maxViews views.
func NewRegistry(maxViews int) *Registry {
	if maxViews <= 0 {
		maxViews = DefaultMaxViews
	}
	return &Registry{views: make(map[string]*View), maxViews: maxViews}
}

// View returns the view for id, creating it if needed.
func (r *Registry) View(id string) (*View, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if v, ok := r.views[id]; ok {
		v.touch()
		return v, nil
	}
	if len(r.views) >= r.maxViews && !r.evictIdle() {
		return nil, ErrTooManyViews
	}
	v := NewView(id)
	r.views[id] = v
	return v, nil
}

// evictIdle must be called with mu held.
func (r *Registry) evictIdle() bool {
	var (
		victim string
		oldest int64
		found  bool
	)
	for id, v := range r.views {
		if !v.idle() {
			continue
		}
		if used := v.lastUsed.Load(); !found || used < oldest {
			victim, oldest, found = id, used, true
		}
	}
	if !found {
		return false
	}
	delete(r.views, victim)
	zap.L().Debug("mapview: evicted idle view", zap.String("view", victim))
	return true
}

// Lookup returns the view for id without creating it.
func (r *Registry) Lookup(id string) (*View, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.views[id]
	if ok {
		v.touch()
	}
	return v, ok
}

// Wait blocks until the loads of every view have finished or ctx is done.
func (r *Registry) Wait(ctx context.Context) error {
	r.mu.Lock()
	views := make([]*View, 0, len(r.views))
	for _, v := range r.views {
		views = append(views, v)
	}
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		for _, v := range views {
			v.Wait()
		}
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return eris.Wrap(ctx.Err(), "mapview: waiting for loads")
	}
}

// Stats returns per-view counters.
func (r *Registry) Stats() map[string]ViewStats {
	r.mu.Lock()
	views := make(map[string]*View, len(r.views))
	for id, v := range r.views {
		views[id] = v
	}
	r.mu.Unlock()

	out := make(map[string]ViewStats, len(views))
	for id, v := range views {
		out[id] = v.Stats()
	}
	return out
}
