package boundary

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
	"github.com/rotisserie/eris"
)

// ErrUnsupportedGeometry is returned when a boundary feature carries anything
// other than a Polygon or MultiPolygon.
var ErrUnsupportedGeometry = eris.New("boundary: unsupported geometry type")

// Shape is the areal geometry of a boundary. It is sealed: the only
// implementations are Polygon and MultiPolygon.
type Shape interface {
	// Geometry returns the shape as an orb geometry for GeoJSON output.
	Geometry() orb.Geometry

	// OuterRings returns the exterior ring of every part. Holes are not included.
	OuterRings() []orb.Ring

	// seedRing is the ring averaged by ApproximateCentroid.
	seedRing() orb.Ring
}

// Polygon is a single-part boundary.
type Polygon struct {
	orb.Polygon
}

// MultiPolygon is a boundary made of several parts (islands, exclaves).
type MultiPolygon struct {
	orb.MultiPolygon
}

// Geometry implements Shape.
func (p Polygon) Geometry() orb.Geometry { return p.Polygon }

// OuterRings implements Shape.
func (p Polygon) OuterRings() []orb.Ring {
	if len(p.Polygon) == 0 {
		return nil
	}
	return []orb.Ring{p.Polygon[0]}
}

func (p Polygon) seedRing() orb.Ring {
	if len(p.Polygon) == 0 {
		return nil
	}
	return p.Polygon[0]
}

// Geometry implements Shape.
func (m MultiPolygon) Geometry() orb.Geometry { return m.MultiPolygon }

// OuterRings implements Shape.
func (m MultiPolygon) OuterRings() []orb.Ring {
	rings := make([]orb.Ring, 0, len(m.MultiPolygon))
	for _, part := range m.MultiPolygon {
		if len(part) > 0 {
			rings = append(rings, part[0])
		}
	}
	return rings
}

// seedRing uses the first part only. For multipolygons whose parts are far
// apart the average can land outside every part.
func (m MultiPolygon) seedRing() orb.Ring {
	if len(m.MultiPolygon) == 0 || len(m.MultiPolygon[0]) == 0 {
		return nil
	}
	return m.MultiPolygon[0][0]
}

// ShapeOf converts a decoded GeoJSON geometry into a Shape.
func ShapeOf(g orb.Geometry) (Shape, error) {
	switch v := g.(type) {
	case orb.Polygon:
		return Polygon{v}, nil
	case orb.MultiPolygon:
		return MultiPolygon{v}, nil
	case nil:
		return nil, eris.Wrap(ErrUnsupportedGeometry, "missing geometry")
	default:
		return nil, eris.Wrapf(ErrUnsupportedGeometry, "got %s", g.GeoJSONType())
	}
}

// ApproximateCentroid averages the vertices of the shape's seed ring. This is
// not an area centroid; it only seeds the province containment test. Returns
// ok=false for an empty shape.
func ApproximateCentroid(s Shape) (orb.Point, bool) {
	if s == nil {
		return orb.Point{}, false
	}
	ring := s.seedRing()
	if len(ring) == 0 {
		return orb.Point{}, false
	}
	var sumLng, sumLat float64
	for _, p := range ring {
		sumLng += p[0]
		sumLat += p[1]
	}
	n := float64(len(ring))
	return orb.Point{sumLng / n, sumLat / n}, true
}

// PointInShape reports whether the point lies inside any outer ring of the
// shape using ray casting. Inner rings are ignored.
func PointInShape(pt orb.Point, s Shape) bool {
	if s == nil {
		return false
	}
	for _, ring := range s.OuterRings() {
		if len(ring) < 3 {
			continue
		}
		if planar.RingContains(ring, pt) {
			return true
		}
	}
	return false
}
