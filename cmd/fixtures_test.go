package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sells-group/geoint-cli/internal/boundary"
)

const provincesGeoJSON = `{"type":"FeatureCollection","features":[
{"type":"Feature","properties":{"shapeISO":"TR-06","shapeName":"Ankara"},
 "geometry":{"type":"Polygon","coordinates":[[[0,0],[10,0],[10,10],[0,10],[0,0]]]}},
{"type":"Feature","properties":{"shapeISO":"TR-34","shapeName":"İstanbul"},
 "geometry":{"type":"Polygon","coordinates":[[[10,0],[20,0],[20,10],[10,10],[10,0]]]}}
]}`

const districtsGeoJSON = `{"type":"FeatureCollection","features":[
{"type":"Feature","properties":{"shapeName":"Çankaya"},
 "geometry":{"type":"Polygon","coordinates":[[[1,1],[3,1],[3,3],[1,3],[1,1]]]}},
{"type":"Feature","properties":{"shapeName":"Kadıköy"},
 "geometry":{"type":"Polygon","coordinates":[[[11,1],[13,1],[13,3],[11,3],[11,1]]]}}
]}`

const provinceScores = `{"type":"FeatureCollection","features":[
{"type":"Feature","properties":{"code":"6","name":"Ankara","geoint_score":72.5,"has_data":true},"geometry":null}
]}`

const districtScores = `{"type":"FeatureCollection","metadata":{"province_code":"34"},"features":[
{"type":"Feature","properties":{"name":"Kadikoy","geoint_score":55},"geometry":null}
]}`

const comparisonPayload = `{"regions":[
{"region_id":"34","region_name":"İstanbul","your_position":4,"best_competitor_position":1}
]}`

func testSets(t *testing.T) boundary.StaticSource {
	t.Helper()
	provinces, err := boundary.ParseBoundarySet(boundary.LevelProvince, []byte(provincesGeoJSON))
	require.NoError(t, err)
	districts, err := boundary.ParseBoundarySet(boundary.LevelDistrict, []byte(districtsGeoJSON))
	require.NoError(t, err)
	return boundary.StaticSource{
		boundary.LevelProvince: provinces,
		boundary.LevelDistrict: districts,
	}
}

func testEngine(t *testing.T) *boundary.Engine {
	t.Helper()
	return boundary.NewEngine(boundary.NewCache(testSets(t), 0))
}

// fakeScores serves canned payloads.
type fakeScores struct {
	provinces *boundary.ScoreCollection
	districts *boundary.ScoreCollection
	regions   []boundary.ComparisonRegion
	err       error
}

func (f *fakeScores) Provinces(_ context.Context, _ string) (*boundary.ScoreCollection, error) {
	return f.provinces, f.err
}

func (f *fakeScores) Districts(_ context.Context, _, _ string) (*boundary.ScoreCollection, error) {
	return f.districts, f.err
}

func (f *fakeScores) Comparison(_ context.Context, _ string) ([]boundary.ComparisonRegion, error) {
	return f.regions, f.err
}

// blockingScores holds province loads until release is closed.
type blockingScores struct {
	*fakeScores
	release chan struct{}
}

func (b *blockingScores) Provinces(ctx context.Context, keyword string) (*boundary.ScoreCollection, error) {
	<-b.release
	return b.fakeScores.Provinces(ctx, keyword)
}

func newFakeScores(t *testing.T) *fakeScores {
	t.Helper()
	p, err := boundary.ParseScores([]byte(provinceScores))
	require.NoError(t, err)
	d, err := boundary.ParseScores([]byte(districtScores))
	require.NoError(t, err)
	r, err := boundary.ParseComparison([]byte(comparisonPayload))
	require.NoError(t, err)
	return &fakeScores{provinces: p, districts: d, regions: r}
}
