package boundary

import (
	"encoding/json"

	"github.com/paulmach/orb/geojson"
	"github.com/rotisserie/eris"
)

// ComparisonRegion is one region of a competitor ranking comparison.
// Positions are search ranks per domain; nil means "not ranked".
// PositionGap is negative when the user's domain is behind the best competitor.
type ComparisonRegion struct {
	RegionID               string          `mapstructure:"region_id"`
	RegionName             string          `mapstructure:"region_name"`
	Positions              map[string]*int `mapstructure:"positions"`
	YourPosition           *int            `mapstructure:"your_position"`
	BestCompetitorPosition *int            `mapstructure:"best_competitor_position"`
	PositionGap            *int            `mapstructure:"position_gap"`
}

// Gap returns PositionGap, deriving it as best competitor rank minus the
// user's rank when the backend left it null and both ranks are known.
func (r ComparisonRegion) Gap() *int {
	if r.PositionGap != nil {
		return r.PositionGap
	}
	if r.YourPosition == nil || r.BestCompetitorPosition == nil {
		return nil
	}
	g := *r.BestCompetitorPosition - *r.YourPosition
	return &g
}

// ParseComparison decodes the comparison regions payload. It accepts either a
// bare JSON array or an object with a "regions" array.
func ParseComparison(data []byte) ([]ComparisonRegion, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, eris.Wrap(err, "boundary: parse comparison payload")
	}
	var items []any
	switch v := raw.(type) {
	case nil:
		return nil, nil
	case []any:
		items = v
	case map[string]any:
		if r, ok := v["regions"].([]any); ok {
			items = r
		}
	default:
		return nil, eris.New("boundary: comparison payload must be an array or object")
	}

	regions := make([]ComparisonRegion, 0, len(items))
	for i, it := range items {
		m, ok := it.(map[string]any)
		if !ok {
			continue
		}
		var r ComparisonRegion
		if err := decodeWeak(m, &r); err != nil {
			return nil, eris.Wrapf(err, "boundary: decode comparison region %d", i)
		}
		regions = append(regions, r)
	}
	return regions, nil
}

// MergeComparison joins comparison regions onto the province boundaries by
// zero-padded province code, falling back to the normalized region name.
// Like MergeProvinces, every static province is emitted exactly once.
func MergeComparison(provinces *BoundarySet, regions []ComparisonRegion) (*geojson.FeatureCollection, MergeStats) {
	stats := MergeStats{
		Level:      LevelProvince,
		Boundaries: provinces.Len(),
		Scores:     len(regions),
	}
	fc := geojson.NewFeatureCollection()
	if provinces == nil {
		return fc, stats
	}

	byCode := make(map[string]*ComparisonRegion, len(regions))
	byName := make(map[string]*ComparisonRegion, len(regions))
	for i := range regions {
		r := &regions[i]
		if code := PadProvinceCode(r.RegionID); code != "" {
			byCode[code] = r
		}
		if name := NormalizeName(r.RegionName); name != "" {
			byName[name] = r
		}
	}

	used := make(map[*ComparisonRegion]bool)
	for _, b := range provinces.Boundaries {
		code, _ := b.Code()
		code = PadProvinceCode(code)

		r, ok := byCode[code]
		if ok && code != "" {
			stats.MatchedCode++
		} else if r, ok = byName[NormalizeName(b.Name)]; ok {
			stats.MatchedName++
		}

		f := geojson.NewFeature(b.Shape.Geometry())
		f.Properties = comparisonProperties(b, code, r)
		if r != nil {
			used[r] = true
		} else {
			stats.Defaulted++
		}
		fc.Append(f)
	}

	for i := range regions {
		if !used[&regions[i]] {
			stats.Unmatched = append(stats.Unmatched, regions[i].RegionName)
		}
	}
	return fc, stats
}

func comparisonProperties(b Boundary, code string, r *ComparisonRegion) geojson.Properties {
	props := geojson.Properties{
		"name":                     b.Name,
		"code":                     code,
		"region_id":                code,
		"positions":                map[string]any{},
		"your_position":            nil,
		"best_competitor_position": nil,
		"position_gap":             nil,
		"has_data":                 false,
	}
	if r == nil {
		return props
	}
	positions := make(map[string]any, len(r.Positions))
	for domain, rank := range r.Positions {
		positions[domain] = intOrNil(rank)
	}
	if r.RegionName != "" {
		props["name"] = r.RegionName
	}
	props["positions"] = positions
	props["your_position"] = intOrNil(r.YourPosition)
	props["best_competitor_position"] = intOrNil(r.BestCompetitorPosition)
	props["position_gap"] = intOrNil(r.Gap())
	props["has_data"] = true
	return props
}

func intOrNil(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}
