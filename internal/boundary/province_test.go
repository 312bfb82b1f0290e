package boundary

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeProvinces_NoScores(t *testing.T) {
	for _, sc := range []*ScoreCollection{nil, mustScores(t, ""), mustScores(t, "null")} {
		fc, stats := MergeProvinces(testProvinces(), sc)
		require.Len(t, fc.Features, 81)
		assert.Equal(t, 81, stats.Defaulted)
		assert.Zero(t, stats.Matched())

		for _, f := range fc.Features {
			assert.Equal(t, false, f.Properties["has_data"])
			assert.Equal(t, 0.0, f.Properties["geoint_score"])
			assert.Equal(t, TrendStable, f.Properties["trend_direction"])
			assert.Equal(t, GeometryFromBoundary, f.Properties["geometry_source"])
		}
	}
}

func TestMergeProvinces_AnkaraEndToEnd(t *testing.T) {
	sc := mustScores(t, `{
		"type": "FeatureCollection",
		"features": [{
			"type": "Feature",
			"geometry": {"type": "Point", "coordinates": [32.85, 39.93]},
			"properties": {"code": 6, "name": "Ankara", "geoint_score": 72.5,
				"search_index": 1200, "trend_direction": "up", "population": 5700000,
				"region": "İç Anadolu", "top_keyword": "kebap"}
		}]
	}`)

	fc, stats := MergeProvinces(testProvinces(), sc)
	require.Len(t, fc.Features, 81)
	assert.Equal(t, 1, stats.MatchedCode)
	assert.Equal(t, 80, stats.Defaulted)
	assert.Empty(t, stats.Unmatched)

	ankara := findFeature(fc, "06")
	require.NotNil(t, ankara)
	assert.Equal(t, true, ankara.Properties["has_data"])
	assert.Equal(t, 72.5, ankara.Properties["geoint_score"])
	assert.Equal(t, int64(5700000), ankara.Properties["population"])
	assert.Equal(t, TrendUp, ankara.Properties["trend_direction"])
	assert.Equal(t, "kebap", ankara.Properties["top_keyword"])
	// Static polygon, not the API point.
	assert.Equal(t, "Polygon", ankara.Geometry.GeoJSONType())

	withData := 0
	for _, f := range fc.Features {
		if f.Properties["has_data"] == true {
			withData++
		}
	}
	assert.Equal(t, 1, withData)
}

func TestMergeProvinces_NameFallback(t *testing.T) {
	sc := mustScores(t, `{"type": "FeatureCollection", "features": [
		{"type": "Feature", "geometry": null, "properties": {"name": "ISTANBUL", "geoint_score": 90}},
		{"type": "Feature", "geometry": null, "properties": {"code": "not-a-code", "name": "izmir", "geoint_score": 55}}
	]}`)

	fc, stats := MergeProvinces(testProvinces(), sc)
	require.Len(t, fc.Features, 81)
	assert.Equal(t, 2, stats.MatchedName)

	ist := findFeature(fc, "34")
	require.NotNil(t, ist)
	assert.Equal(t, 90.0, ist.Properties["geoint_score"])
	assert.Equal(t, "ISTANBUL", ist.Properties["name"])

	izmir := findByName(fc, "izmir")
	require.NotNil(t, izmir)
	assert.Equal(t, true, izmir.Properties["has_data"])
}

func TestMergeProvinces_UnmatchedReported(t *testing.T) {
	sc := mustScores(t, `{"type": "FeatureCollection", "features": [
		{"type": "Feature", "geometry": null, "properties": {"name": "Atlantis", "geoint_score": 10}}
	]}`)

	fc, stats := MergeProvinces(testProvinces(), sc)
	assert.Len(t, fc.Features, 81)
	assert.Equal(t, []string{"Atlantis"}, stats.Unmatched)
	assert.Equal(t, 81, stats.Defaulted)
}

func TestMergeProvinces_LastDuplicateWins(t *testing.T) {
	sc := mustScores(t, `{"type": "FeatureCollection", "features": [
		{"type": "Feature", "geometry": null, "properties": {"code": "06", "name": "Ankara", "geoint_score": 10}},
		{"type": "Feature", "geometry": null, "properties": {"code": "6", "name": "Ankara", "geoint_score": 20}}
	]}`)

	fc, _ := MergeProvinces(testProvinces(), sc)
	ankara := findFeature(fc, "06")
	require.NotNil(t, ankara)
	assert.Equal(t, 20.0, ankara.Properties["geoint_score"])
}

func TestMergeProvinces_NilBoundaries(t *testing.T) {
	fc, stats := MergeProvinces(nil, nil)
	assert.Empty(t, fc.Features)
	assert.Zero(t, stats.Boundaries)
}
