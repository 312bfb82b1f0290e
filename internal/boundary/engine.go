package boundary

import (
	"context"

	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"
)

// Engine joins score payloads to cached boundaries. It never fails a merge:
// when boundaries cannot be loaded it passes the payload through unchanged.
type Engine struct {
	cache *Cache
	log   *zap.Logger
}

// NewEngine creates an Engine reading boundaries through cache.
func NewEngine(cache *Cache) *Engine {
	return &Engine{cache: cache, log: zap.L().With(zap.String("component", "boundary.engine"))}
}

// Cache returns the boundary cache backing the engine.
func (e *Engine) Cache() *Cache {
	return e.cache
}

// Provinces merges a province score payload onto the static province layer.
func (e *Engine) Provinces(ctx context.Context, scores *ScoreCollection) (*geojson.FeatureCollection, MergeStats) {
	provinces, err := e.cache.Get(ctx, LevelProvince)
	if err != nil {
		return e.degrade(LevelProvince, scores, err)
	}
	fc, stats := MergeProvinces(provinces, scores)
	e.logStats(stats)
	return fc, stats
}

// Districts merges a district score payload for provinceCode (may be empty).
func (e *Engine) Districts(ctx context.Context, scores *ScoreCollection, provinceCode string) (*geojson.FeatureCollection, MergeStats) {
	provinces, err := e.cache.Get(ctx, LevelProvince)
	if err != nil {
		return e.degrade(LevelDistrict, scores, err)
	}
	districts, err := e.cache.Get(ctx, LevelDistrict)
	if err != nil {
		return e.degrade(LevelDistrict, scores, err)
	}
	fc, stats := MergeDistricts(provinces, districts, scores, provinceCode)
	e.logStats(stats)
	return fc, stats
}

// Comparison merges competitor comparison regions onto the province layer.
// Comparison rows carry no geometry, so a failed load yields an empty layer.
func (e *Engine) Comparison(ctx context.Context, regions []ComparisonRegion) (*geojson.FeatureCollection, MergeStats) {
	provinces, err := e.cache.Get(ctx, LevelProvince)
	if err != nil {
		e.log.Error("boundaries unavailable, comparison layer left empty", zap.Error(err))
		return geojson.NewFeatureCollection(), MergeStats{Level: LevelProvince, Scores: len(regions), Degraded: true}
	}
	fc, stats := MergeComparison(provinces, regions)
	e.logStats(stats)
	return fc, stats
}

func (e *Engine) degrade(level Level, scores *ScoreCollection, err error) (*geojson.FeatureCollection, MergeStats) {
	e.log.Error("boundaries unavailable, serving score payload unmerged",
		zap.String("level", string(level)),
		zap.Error(err),
	)
	stats := MergeStats{Level: level, Degraded: true}
	if scores == nil || scores.Raw == nil {
		return geojson.NewFeatureCollection(), stats
	}
	stats.Scores = len(scores.Features)
	return scores.Raw, stats
}

func (e *Engine) logStats(s MergeStats) {
	e.log.Debug("merge complete",
		zap.String("level", string(s.Level)),
		zap.Int("boundaries", s.Boundaries),
		zap.Int("scores", s.Scores),
		zap.Int("matched", s.Matched()),
		zap.Int("defaulted", s.Defaulted),
		zap.Int("fallback", s.Fallback),
		zap.Strings("unmatched", s.Unmatched),
		zap.Bool("spatial", s.Spatial),
	)
}
