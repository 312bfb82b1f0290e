package boundary

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/geoint-cli/internal/fetcher"
	"github.com/sells-group/geoint-cli/internal/resilience"
)

func writeSet(t *testing.T, path string, set *BoundarySet) {
	t.Helper()
	data, err := set.FeatureCollection().MarshalJSON()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func TestFileSource_Load(t *testing.T) {
	dir := t.TempDir()
	writeSet(t, filepath.Join(dir, DefaultProvinceFile), testProvinces())
	writeSet(t, filepath.Join(dir, "ilce.geojson"), testDistricts())

	src := &FileSource{Dir: dir, Names: FileNames{District: "ilce.geojson"}}

	provinces, err := src.Load(context.Background(), LevelProvince)
	require.NoError(t, err)
	require.Equal(t, 81, provinces.Len())
	assert.Equal(t, "TR-06", provinces.Boundaries[5].ISO)
	assert.Equal(t, "Ankara", provinces.Boundaries[5].Name)
	assert.Contains(t, provinces.Source, DefaultProvinceFile)

	districts, err := src.Load(context.Background(), LevelDistrict)
	require.NoError(t, err)
	assert.Equal(t, 9, districts.Len())
	assert.Empty(t, districts.Boundaries[0].ISO)
}

func TestFileSource_Errors(t *testing.T) {
	dir := t.TempDir()
	src := &FileSource{Dir: dir}

	_, err := src.Load(context.Background(), LevelProvince)
	assert.Error(t, err)

	_, err = src.Load(context.Background(), Level("mahalle"))
	assert.ErrorIs(t, err, ErrUnknownLevel)

	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultProvinceFile), []byte("{not json"), 0o644))
	_, err = src.Load(context.Background(), LevelProvince)
	assert.Error(t, err)
}

func TestParseBoundarySet_SkipsUnsupported(t *testing.T) {
	fc := geojson.NewFeatureCollection()
	good := geojson.NewFeature(square(0, 0, 1))
	good.Properties["shapeISO"] = "TR-01"
	good.Properties["shapeName"] = "Adana"
	bad := geojson.NewFeature(orb.Point{1, 1})
	bad.Properties["shapeName"] = "Nokta"
	numeric := geojson.NewFeature(orb.MultiPolygon{square(5, 5, 1)})
	numeric.Properties["shapeISO"] = "TR-02"
	numeric.Properties["shapeName"] = 42.0
	fc.Append(good)
	fc.Append(bad)
	fc.Append(numeric)

	data, err := fc.MarshalJSON()
	require.NoError(t, err)

	set, err := ParseBoundarySet(LevelProvince, data)
	require.NoError(t, err)
	require.Equal(t, 2, set.Len())
	assert.Equal(t, "Adana", set.Boundaries[0].Name)
	assert.Equal(t, "42", set.Boundaries[1].Name)
	assert.IsType(t, MultiPolygon{}, set.Boundaries[1].Shape)
}

func TestHTTPSource_Load(t *testing.T) {
	data, err := testProvinces().FeatureCollection().MarshalJSON()
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/static/provinces.geojson" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/geo+json")
		w.Write(data) //nolint:errcheck
	}))
	defer srv.Close()

	src := &HTTPSource{
		BaseURL: srv.URL + "/static/",
		Fetcher: fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
			Timeout: 5 * time.Second,
			Retry:   resilience.RetryConfig{MaxAttempts: 1},
		}),
	}

	set, err := src.Load(context.Background(), LevelProvince)
	require.NoError(t, err)
	assert.Equal(t, 81, set.Len())
	assert.Equal(t, srv.URL+"/static/provinces.geojson", set.Source)

	_, err = src.Load(context.Background(), LevelDistrict)
	assert.Error(t, err)

	_, err = (&HTTPSource{BaseURL: srv.URL}).Load(context.Background(), LevelProvince)
	assert.Error(t, err)
}

func TestStaticSource(t *testing.T) {
	src := StaticSource{LevelProvince: testProvinces()}
	set, err := src.Load(context.Background(), LevelProvince)
	require.NoError(t, err)
	assert.Equal(t, 81, set.Len())

	_, err = src.Load(context.Background(), LevelDistrict)
	assert.Error(t, err)
}

func TestParseLevel(t *testing.T) {
	for _, in := range []string{"province", "Provinces", "il", "ADM1"} {
		l, err := ParseLevel(in)
		require.NoError(t, err)
		assert.Equal(t, LevelProvince, l)
	}
	for _, in := range []string{"district", "ilçe", "ilce", "adm2"} {
		l, err := ParseLevel(in)
		require.NoError(t, err)
		assert.Equal(t, LevelDistrict, l)
	}
	_, err := ParseLevel("mahalle")
	assert.ErrorIs(t, err, ErrUnknownLevel)
}
