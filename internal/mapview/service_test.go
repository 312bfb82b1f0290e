package mapview

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/geoint-cli/internal/boundary"
)

type fakeScores struct {
	provinces   *boundary.ScoreCollection
	districts   *boundary.ScoreCollection
	regions     []boundary.ComparisonRegion
	err         error
	gotProvince string
}

func (f *fakeScores) Provinces(_ context.Context, _ string) (*boundary.ScoreCollection, error) {
	return f.provinces, f.err
}

func (f *fakeScores) Districts(_ context.Context, _ string, provinceCode string) (*boundary.ScoreCollection, error) {
	f.gotProvince = provinceCode
	return f.districts, f.err
}

func (f *fakeScores) Comparison(_ context.Context, _ string) ([]boundary.ComparisonRegion, error) {
	return f.regions, f.err
}

func square(x, y float64) orb.Polygon {
	return orb.Polygon{orb.Ring{{x, y}, {x + 1, y}, {x + 1, y + 1}, {x, y + 1}, {x, y}}}
}

func testEngine() *boundary.Engine {
	provinces := &boundary.BoundarySet{Level: boundary.LevelProvince}
	for i := 1; i <= 81; i++ {
		provinces.Boundaries = append(provinces.Boundaries, boundary.Boundary{
			ISO:   fmt.Sprintf("TR-%02d", i),
			Name:  fmt.Sprintf("İl %d", i),
			Shape: boundary.Polygon{Polygon: square(float64(i)*2, 0)},
		})
	}
	districts := &boundary.BoundarySet{Level: boundary.LevelDistrict, Boundaries: []boundary.Boundary{
		{Name: "Kadıköy", Shape: boundary.Polygon{Polygon: orb.Polygon{orb.Ring{{68.2, 0.2}, {68.4, 0.2}, {68.4, 0.4}, {68.2, 0.4}, {68.2, 0.2}}}}},
	}}
	src := boundary.StaticSource{boundary.LevelProvince: provinces, boundary.LevelDistrict: districts}
	return boundary.NewEngine(boundary.NewCache(src, time.Second))
}

func scores(t *testing.T, payload string) *boundary.ScoreCollection {
	t.Helper()
	sc, err := boundary.ParseScores([]byte(payload))
	require.NoError(t, err)
	return sc
}

func TestService_Province(t *testing.T) {
	svc := &Service{Engine: testEngine(), Scores: &fakeScores{
		provinces: scores(t, `{"type":"FeatureCollection","features":[{"type":"Feature","geometry":null,"properties":{"code":"34","name":"İstanbul","geoint_score":88}}]}`),
	}}
	fc, stats, err := svc.Load(context.Background(), Selection{Kind: KindProvince, Keyword: "kahve"})
	require.NoError(t, err)
	assert.Len(t, fc.Features, 81)
	assert.Equal(t, 1, stats.MatchedCode)
}

func TestService_District(t *testing.T) {
	fake := &fakeScores{
		districts: scores(t, `{"type":"FeatureCollection","features":[{"type":"Feature","geometry":null,"properties":{"name":"Kadikoy"}}]}`),
	}
	svc := &Service{Engine: testEngine(), Scores: fake}
	fc, stats, err := svc.Load(context.Background(), Selection{Kind: KindDistrict, ProvinceCode: "34"})
	require.NoError(t, err)
	require.Len(t, fc.Features, 1)
	assert.True(t, stats.Spatial)
	assert.Equal(t, "34", fake.gotProvince)
	assert.Equal(t, boundary.GeometryFromBoundary, fc.Features[0].Properties["geometry_source"])
}

func TestService_Comparison(t *testing.T) {
	you, best := 3, 1
	svc := &Service{Engine: testEngine(), Scores: &fakeScores{
		regions: []boundary.ComparisonRegion{{RegionID: "6", YourPosition: &you, BestCompetitorPosition: &best}},
	}}
	fc, stats, err := svc.Load(context.Background(), Selection{Kind: KindComparison, ComparisonID: "c1"})
	require.NoError(t, err)
	assert.Len(t, fc.Features, 81)
	assert.Equal(t, 1, stats.MatchedCode)

	_, _, err = svc.Load(context.Background(), Selection{Kind: KindComparison})
	assert.Error(t, err)
}

func TestService_Errors(t *testing.T) {
	svc := &Service{Engine: testEngine(), Scores: &fakeScores{err: errors.New("down")}}
	for _, kind := range []string{KindProvince, KindDistrict, KindComparison} {
		_, _, err := svc.Load(context.Background(), Selection{Kind: kind, ComparisonID: "c"})
		assert.EqualError(t, err, "down", kind)
	}
	_, _, err := svc.Load(context.Background(), Selection{Kind: "mahalle"})
	assert.Error(t, err)
}

// forgettingScores records which cached payloads a refresh asked to drop.
type forgettingScores struct {
	fakeScores
	keywords    []string
	comparisons []string
}

func (f *forgettingScores) ForgetKeyword(keyword string) int {
	f.keywords = append(f.keywords, keyword)
	return 1
}

func (f *forgettingScores) ForgetComparison(id string) int {
	f.comparisons = append(f.comparisons, id)
	return 1
}

func TestService_RefreshDropsCachedPayloads(t *testing.T) {
	fake := &forgettingScores{fakeScores: fakeScores{
		provinces: scores(t, `{"type":"FeatureCollection","features":[]}`),
	}}
	svc := &Service{Engine: testEngine(), Scores: fake}
	ctx := context.Background()

	_, _, err := svc.Load(ctx, Selection{Kind: KindProvince, Keyword: "kahve"})
	require.NoError(t, err)
	assert.Empty(t, fake.keywords)

	_, _, err = svc.Load(ctx, Selection{Kind: KindProvince, Keyword: "kahve", Refresh: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"kahve"}, fake.keywords)

	_, _, err = svc.Load(ctx, Selection{Kind: KindComparison, ComparisonID: "c1", Refresh: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, fake.comparisons)
}

func TestService_RefreshWithoutCacheIsNoop(t *testing.T) {
	svc := &Service{Engine: testEngine(), Scores: &fakeScores{
		provinces: scores(t, `{"type":"FeatureCollection","features":[]}`),
	}}
	_, _, err := svc.Load(context.Background(), Selection{Kind: KindProvince, Keyword: "kahve", Refresh: true})
	assert.NoError(t, err)
}
