package boundary

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/geoint-cli/internal/fetcher"
)

// Default boundary file names, one per level.
const (
	DefaultProvinceFile = "provinces.geojson"
	DefaultDistrictFile = "districts.geojson"
)

// FileNames maps each level to its GeoJSON file name.
type FileNames struct {
	Province string
	District string
}

func (n FileNames) forLevel(level Level) (string, error) {
	switch level {
	case LevelProvince:
		if n.Province == "" {
			return DefaultProvinceFile, nil
		}
		return n.Province, nil
	case LevelDistrict:
		if n.District == "" {
			return DefaultDistrictFile, nil
		}
		return n.District, nil
	}
	return "", eris.Wrapf(ErrUnknownLevel, "%q", level)
}

// FileSource reads boundary GeoJSON from a local directory.
type FileSource struct {
	Dir   string
	Names FileNames
}

// Load implements Source.
func (s *FileSource) Load(ctx context.Context, level Level) (*BoundarySet, error) {
	name, err := s.Names.forLevel(level)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := filepath.Join(s.Dir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "boundary: read %s", path)
	}
	set, err := ParseBoundarySet(level, data)
	if err != nil {
		return nil, err
	}
	set.Source = "file:" + path
	return set, nil
}

// HTTPSource fetches boundary GeoJSON from a static asset host.
type HTTPSource struct {
	BaseURL string
	Names   FileNames
	Fetcher fetcher.Fetcher
}

// Load implements Source.
func (s *HTTPSource) Load(ctx context.Context, level Level) (*BoundarySet, error) {
	if s.Fetcher == nil {
		return nil, eris.New("boundary: http source has no fetcher")
	}
	name, err := s.Names.forLevel(level)
	if err != nil {
		return nil, err
	}
	url := strings.TrimRight(s.BaseURL, "/") + "/" + name

	header := http.Header{}
	header.Set("Accept", "application/geo+json, application/json")
	data, err := s.Fetcher.Fetch(ctx, url, header)
	if err != nil {
		return nil, eris.Wrapf(err, "boundary: fetch %s", url)
	}
	set, err := ParseBoundarySet(level, data)
	if err != nil {
		return nil, err
	}
	set.Source = url
	return set, nil
}

// StaticSource serves boundary sets already held in memory.
type StaticSource map[Level]*BoundarySet

// Load implements Source.
func (s StaticSource) Load(_ context.Context, level Level) (*BoundarySet, error) {
	set, ok := s[level]
	if !ok {
		return nil, eris.Errorf("boundary: no static %s set", level)
	}
	return set, nil
}
