package boundary

import (
	"bytes"
	"strconv"

	"github.com/mitchellh/mapstructure"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/rotisserie/eris"
)

// Trend directions reported by the scoring backend.
const (
	TrendUp     = "up"
	TrendDown   = "down"
	TrendStable = "stable"
)

// Geometry sources recorded on merged features.
const (
	GeometryFromBoundary = "boundary"
	GeometryFromAPI      = "api"
)

// ScoreProperties is the typed property bag of one scored region.
// Keys the backend adds beyond these land in Extra and are passed through.
type ScoreProperties struct {
	Code           string         `mapstructure:"code"`
	Name           string         `mapstructure:"name"`
	GeointScore    float64        `mapstructure:"geoint_score"`
	SearchIndex    float64        `mapstructure:"search_index"`
	TrendScore     float64        `mapstructure:"trend_score"`
	TrendDirection string         `mapstructure:"trend_direction"`
	Population     int64          `mapstructure:"population"`
	Region         string         `mapstructure:"region"`
	HasData        bool           `mapstructure:"has_data"`
	Extra          map[string]any `mapstructure:",remain"`
}

// ScoreFeature is one region of a score payload. Geometry is the backend's
// own (often bounding-box) shape and may be nil.
type ScoreFeature struct {
	Props    ScoreProperties
	Geometry orb.Geometry
}

// ScoreMetadata is the optional payload metadata used to locate the parent
// province of a district response.
type ScoreMetadata struct {
	ProvinceCode string `mapstructure:"province_code"`
	ProvinceID   string `mapstructure:"province_id"`
	ProvinceName string `mapstructure:"province_name"`
	Keyword      string `mapstructure:"keyword"`
}

// ScoreCollection is a decoded score payload. Raw keeps the payload exactly
// as received so it can be served unmodified when boundaries are unavailable.
type ScoreCollection struct {
	Features []ScoreFeature
	Meta     ScoreMetadata
	Raw      *geojson.FeatureCollection
}

// Empty reports whether the payload carries no regions.
func (c *ScoreCollection) Empty() bool {
	return c == nil || len(c.Features) == 0
}

// ParseScores decodes a score payload. An empty body or JSON null is an
// empty collection, not an error.
func ParseScores(data []byte) (*ScoreCollection, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return &ScoreCollection{Raw: geojson.NewFeatureCollection()}, nil
	}
	fc, err := geojson.UnmarshalFeatureCollection(trimmed)
	if err != nil {
		return nil, eris.Wrap(err, "boundary: parse score payload")
	}
	return ScoresFromCollection(fc)
}

// ScoresFromCollection decodes typed properties from an already parsed payload.
func ScoresFromCollection(fc *geojson.FeatureCollection) (*ScoreCollection, error) {
	sc := &ScoreCollection{Raw: fc}
	if fc == nil {
		sc.Raw = geojson.NewFeatureCollection()
		return sc, nil
	}
	if meta, ok := fc.ExtraMembers["metadata"].(map[string]any); ok {
		if err := decodeWeak(meta, &sc.Meta); err != nil {
			return nil, eris.Wrap(err, "boundary: decode score metadata")
		}
	}
	sc.Features = make([]ScoreFeature, 0, len(fc.Features))
	for i, f := range fc.Features {
		if f == nil {
			continue
		}
		var props ScoreProperties
		if err := decodeWeak(map[string]any(f.Properties), &props); err != nil {
			return nil, eris.Wrapf(err, "boundary: decode score feature %d", i)
		}
		sc.Features = append(sc.Features, ScoreFeature{Props: props, Geometry: f.Geometry})
	}
	return sc, nil
}

// defaultScoreProperties is the "no data" bag emitted for regions the payload
// does not cover.
func defaultScoreProperties(name, code string) ScoreProperties {
	return ScoreProperties{
		Code:           code,
		Name:           name,
		TrendDirection: TrendStable,
	}
}

// properties renders the bag with every guaranteed key present, so map
// renderers never read a missing field. Extra keys never shadow them.
func (p ScoreProperties) properties(hasData bool, geometrySource string) geojson.Properties {
	props := make(geojson.Properties, len(p.Extra)+10)
	for k, v := range p.Extra {
		props[k] = v
	}
	trend := p.TrendDirection
	if trend == "" {
		trend = TrendStable
	}
	props["name"] = p.Name
	props["code"] = p.Code
	props["geoint_score"] = p.GeointScore
	props["search_index"] = p.SearchIndex
	props["trend_score"] = p.TrendScore
	props["trend_direction"] = trend
	props["population"] = p.Population
	props["region"] = p.Region
	props["has_data"] = hasData
	props["geometry_source"] = geometrySource
	return props
}

func decodeWeak(in map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(in)
}

func trimFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
