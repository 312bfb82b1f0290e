package geoboundaries

import (
	"strings"
	"time"

	"github.com/jonas-p/go-shp"
	"github.com/paulmach/orb"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geoint-cli/internal/boundary"
)

// Attribute names of geoBoundaries shapefiles.
const (
	fieldShapeISO  = "shapeISO"
	fieldShapeName = "shapeName"
)

// ReadShapefile reads polygon records into a BoundarySet. shapeName is
// required; shapeISO is read when present (ADM1 only).
func ReadShapefile(path string, level boundary.Level) (*boundary.BoundarySet, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "geoboundaries: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	nameIdx := fieldIndex(reader, fieldShapeName)
	if nameIdx < 0 {
		return nil, eris.Errorf("geoboundaries: %s has no %s field", path, fieldShapeName)
	}
	isoIdx := fieldIndex(reader, fieldShapeISO)

	set := &boundary.BoundarySet{Level: level, Source: path, LoadedAt: time.Now()}
	for reader.Next() {
		n, shape := reader.Shape()
		name := strings.TrimSpace(reader.Attribute(nameIdx))

		poly, ok := shape.(*shp.Polygon)
		if !ok || poly == nil {
			zap.L().Warn("geoboundaries: skipping non-polygon record",
				zap.Int("record", n), zap.String("name", name))
			continue
		}
		s, ok := polygonShape(poly)
		if !ok {
			zap.L().Warn("geoboundaries: skipping empty polygon",
				zap.Int("record", n), zap.String("name", name))
			continue
		}

		b := boundary.Boundary{Name: name, Shape: s}
		if isoIdx >= 0 {
			b.ISO = strings.TrimSpace(reader.Attribute(isoIdx))
		}
		set.Boundaries = append(set.Boundaries, b)
	}
	if err := reader.Err(); err != nil {
		return nil, eris.Wrapf(err, "geoboundaries: read %s after %d records", path, len(set.Boundaries))
	}
	return set, nil
}

// fieldIndex returns the index of a named field in the shapefile, or -1 if not found.
func fieldIndex(reader *shp.Reader, name string) int {
	for i, f := range reader.Fields() {
		if strings.EqualFold(strings.TrimRight(f.String(), "\x00"), name) {
			return i
		}
	}
	return -1
}

// polygonShape groups shapefile rings into polygons. Shapefile outer rings
// run clockwise and holes counter-clockwise; a hole belongs to the outer ring
// before it. Output rings follow GeoJSON orientation (outer counter-clockwise).
func polygonShape(p *shp.Polygon) (boundary.Shape, bool) {
	var mp orb.MultiPolygon
	for _, ring := range rings(p) {
		if len(ring) < 4 {
			continue
		}
		if ring.Orientation() == orb.CW || len(mp) == 0 {
			if ring.Orientation() == orb.CW {
				ring.Reverse()
			}
			mp = append(mp, orb.Polygon{ring})
			continue
		}
		ring.Reverse()
		last := len(mp) - 1
		mp[last] = append(mp[last], ring)
	}

	switch len(mp) {
	case 0:
		return nil, false
	case 1:
		return boundary.Polygon{Polygon: mp[0]}, true
	}
	return boundary.MultiPolygon{MultiPolygon: mp}, true
}

func rings(p *shp.Polygon) []orb.Ring {
	if p.NumParts == 0 || len(p.Points) == 0 {
		return nil
	}
	out := make([]orb.Ring, 0, p.NumParts)
	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		end := int32(len(p.Points))
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		}
		if start < 0 || end > int32(len(p.Points)) || start >= end {
			continue
		}
		ring := make(orb.Ring, 0, end-start)
		for j := start; j < end; j++ {
			ring = append(ring, orb.Point{p.Points[j].X, p.Points[j].Y})
		}
		out = append(out, ring)
	}
	return out
}
