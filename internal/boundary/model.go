package boundary

import (
	"strings"
	"time"

	"github.com/paulmach/orb/geojson"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Level is a boundary granularity.
type Level string

const (
	// LevelProvince is the il level (81 provinces, features carry shapeISO).
	LevelProvince Level = "province"
	// LevelDistrict is the ilçe level (features carry shapeName only).
	LevelDistrict Level = "district"
)

// ErrUnknownLevel is returned for a level string other than province or district.
var ErrUnknownLevel = eris.New("boundary: unknown level")

// Levels lists every supported level in load order.
func Levels() []Level {
	return []Level{LevelProvince, LevelDistrict}
}

// ParseLevel maps user input ("province", "il", "adm1", ...) to a Level.
func ParseLevel(s string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "province", "provinces", "il", "adm1":
		return LevelProvince, nil
	case "district", "districts", "ilce", "ilçe", "adm2":
		return LevelDistrict, nil
	}
	return "", eris.Wrapf(ErrUnknownLevel, "%q", s)
}

// Property keys of the geoBoundaries files.
const (
	propShapeISO  = "shapeISO"
	propShapeName = "shapeName"
)

// Boundary is one static administrative polygon.
type Boundary struct {
	ISO   string
	Name  string
	Shape Shape
}

// Code returns the bare province code parsed from ISO.
func (b Boundary) Code() (string, bool) {
	return ExtractProvinceCode(b.ISO)
}

// BoundarySet is the immutable set of boundaries for one level.
type BoundarySet struct {
	Level      Level
	Boundaries []Boundary
	Source     string
	LoadedAt   time.Time
}

// Len returns the number of boundaries, tolerating a nil set.
func (s *BoundarySet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Boundaries)
}

// ParseBoundarySet decodes a GeoJSON FeatureCollection of boundaries.
// Features with unsupported geometry are skipped and logged rather than
// failing the whole file.
func ParseBoundarySet(level Level, data []byte) (*BoundarySet, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, eris.Wrapf(err, "boundary: parse %s geojson", level)
	}
	return BoundarySetFromCollection(level, fc), nil
}

// BoundarySetFromCollection builds a BoundarySet from decoded features.
func BoundarySetFromCollection(level Level, fc *geojson.FeatureCollection) *BoundarySet {
	set := &BoundarySet{Level: level, LoadedAt: time.Now()}
	if fc == nil {
		return set
	}
	set.Boundaries = make([]Boundary, 0, len(fc.Features))
	for i, f := range fc.Features {
		if f == nil {
			continue
		}
		shape, err := ShapeOf(f.Geometry)
		if err != nil {
			zap.L().Warn("boundary: skipping feature",
				zap.String("level", string(level)),
				zap.Int("index", i),
				zap.String("name", stringProp(f.Properties, propShapeName)),
				zap.Error(err),
			)
			continue
		}
		set.Boundaries = append(set.Boundaries, Boundary{
			ISO:   stringProp(f.Properties, propShapeISO),
			Name:  stringProp(f.Properties, propShapeName),
			Shape: shape,
		})
	}
	return set
}

// FeatureCollection renders the set back into geoBoundaries-style GeoJSON.
func (s *BoundarySet) FeatureCollection() *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	if s == nil {
		return fc
	}
	for _, b := range s.Boundaries {
		f := geojson.NewFeature(b.Shape.Geometry())
		if b.ISO != "" {
			f.Properties[propShapeISO] = b.ISO
		}
		f.Properties[propShapeName] = b.Name
		fc.Append(f)
	}
	return fc
}

// stringProp reads a string property, accepting numbers as well since some
// exports write codes as JSON numbers.
func stringProp(props geojson.Properties, key string) string {
	v, ok := props[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return trimFloat(t)
	}
	return ""
}
