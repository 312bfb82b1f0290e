// Package geoboundaries converts geoBoundaries releases (zipped shapefiles)
// for Turkey into the boundary GeoJSON files the map server loads.
package geoboundaries

import (
	"archive/zip"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geoint-cli/internal/boundary"
	"github.com/sells-group/geoint-cli/internal/fetcher"
)

const releaseBase = "https://github.com/wmgeolab/geoBoundaries/raw/main/releaseData/gbOpen/TUR/"

// ReleaseURL returns the gbOpen zip URL for level (ADM1 provinces, ADM2 districts).
func ReleaseURL(level boundary.Level) string {
	adm := admFor(level)
	return releaseBase + adm + "/geoBoundaries-TUR-" + adm + "-all.zip"
}

func admFor(level boundary.Level) string {
	if level == boundary.LevelDistrict {
		return "ADM2"
	}
	return "ADM1"
}

// Importer turns a geoBoundaries release into a BoundarySet.
type Importer struct {
	Fetcher fetcher.Fetcher
	TempDir string
}

// Import reads src for level. src may be an http(s) URL of a zip, a local
// zip, a local .shp or a local GeoJSON file. An empty src means the gbOpen
// release for level.
func (im *Importer) Import(ctx context.Context, level boundary.Level, src string) (*boundary.BoundarySet, error) {
	log := zap.L().With(zap.String("component", "geoboundaries.importer"), zap.String("level", string(level)))
	if src == "" {
		src = ReleaseURL(level)
	}

	workDir, err := os.MkdirTemp(im.TempDir, "geoboundaries-*")
	if err != nil {
		return nil, eris.Wrap(err, "geoboundaries: create work dir")
	}
	defer os.RemoveAll(workDir) //nolint:errcheck

	path := src
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		if im.Fetcher == nil {
			return nil, eris.New("geoboundaries: remote source needs a fetcher")
		}
		path = filepath.Join(workDir, "release.zip")
		log.Info("downloading release", zap.String("url", src))
		n, err := im.Fetcher.DownloadToFile(ctx, src, path)
		if err != nil {
			return nil, eris.Wrapf(err, "geoboundaries: download %s", src)
		}
		log.Info("downloaded release", zap.Int64("bytes", n))
	}

	var set *boundary.BoundarySet
	switch strings.ToLower(filepath.Ext(path)) {
	case ".zip":
		extractDir := filepath.Join(workDir, "extract")
		if err := os.MkdirAll(extractDir, 0o755); err != nil {
			return nil, eris.Wrap(err, "geoboundaries: create extract dir")
		}
		if err := extractZIP(path, extractDir); err != nil {
			return nil, eris.Wrap(err, "geoboundaries: extract release")
		}
		shpPath, err := findFileByExt(extractDir, ".shp")
		if err != nil {
			return nil, eris.Wrap(err, "geoboundaries: find .shp file")
		}
		set, err = ReadShapefile(shpPath, level)
		if err != nil {
			return nil, err
		}
	case ".shp":
		set, err = ReadShapefile(path, level)
		if err != nil {
			return nil, err
		}
	case ".geojson", ".json":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, eris.Wrapf(err, "geoboundaries: read %s", path)
		}
		set, err = boundary.ParseBoundarySet(level, data)
		if err != nil {
			return nil, err
		}
	default:
		return nil, eris.Errorf("geoboundaries: unsupported source %q", src)
	}

	set.Source = src
	log.Info("release imported", zap.Int("boundaries", set.Len()))
	return set, nil
}

// WriteGeoJSON writes set as a geoBoundaries-style FeatureCollection.
func WriteGeoJSON(path string, set *boundary.BoundarySet) error {
	data, err := set.FeatureCollection().MarshalJSON()
	if err != nil {
		return eris.Wrap(err, "geoboundaries: encode geojson")
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return eris.Wrapf(err, "geoboundaries: create %s", dir)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "geoboundaries: write %s", path)
	}
	return nil
}

// extractZIP extracts a ZIP archive flat into destDir.
func extractZIP(zipPath, destDir string) error {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return eris.Wrap(err, "open zip")
	}
	defer r.Close() //nolint:errcheck

	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		destPath := filepath.Join(destDir, filepath.Base(f.Name))

		rc, err := f.Open()
		if err != nil {
			return eris.Wrapf(err, "open zip entry %s", f.Name)
		}
		outFile, err := os.Create(destPath)
		if err != nil {
			_ = rc.Close()
			return eris.Wrapf(err, "create %s", destPath)
		}
		if _, err := io.Copy(outFile, rc); err != nil {
			_ = outFile.Close()
			_ = rc.Close()
			return eris.Wrapf(err, "extract %s", f.Name)
		}
		_ = outFile.Close()
		_ = rc.Close()
	}
	return nil
}

// findFileByExt finds the first file with the given extension in a directory.
func findFileByExt(dir, ext string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", eris.Wrap(err, "read directory")
	}
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(strings.ToLower(e.Name()), ext) {
			return filepath.Join(dir, e.Name()), nil
		}
	}
	return "", eris.Errorf("no %s file found in %s", ext, dir)
}
