package boundary

import (
	"github.com/paulmach/orb/geojson"
	"go.uber.org/zap"
)

// ResolveProvince finds the province boundary a district payload belongs to.
// The explicit code wins, then the payload metadata (province_code,
// province_id, province_name). Returns ok=false when nothing resolves.
func ResolveProvince(provinces *BoundarySet, provinceCode string, meta ScoreMetadata) (Boundary, bool) {
	if provinces == nil {
		return Boundary{}, false
	}
	for _, candidate := range []string{provinceCode, meta.ProvinceCode, meta.ProvinceID} {
		code := PadProvinceCode(candidate)
		if code == "" {
			continue
		}
		for _, b := range provinces.Boundaries {
			if c, ok := b.Code(); ok && PadProvinceCode(c) == code {
				return b, true
			}
		}
	}
	if name := NormalizeName(meta.ProvinceName); name != "" {
		for _, b := range provinces.Boundaries {
			if NormalizeName(b.Name) == name {
				return b, true
			}
		}
	}
	return Boundary{}, false
}

// DistrictsWithin returns the districts whose approximate centroid lies inside
// the province. Districts without a usable centroid are dropped.
func DistrictsWithin(province Boundary, districts *BoundarySet) []Boundary {
	if districts == nil {
		return nil
	}
	var out []Boundary
	for _, d := range districts.Boundaries {
		c, ok := ApproximateCentroid(d.Shape)
		if !ok {
			continue
		}
		if PointInShape(c, province.Shape) {
			out = append(out, d)
		}
	}
	return out
}

// MergeDistricts joins district scores onto static district boundaries in
// three passes:
//
//  1. restrict the static districts to those whose centroid falls inside the
//     target province, so same-named districts of other provinces drop out
//     (all districts are kept when the province cannot be resolved);
//  2. match the remaining districts to score regions by normalized name;
//  3. emit every score region left unmatched with its own API geometry.
//
// Every score region appears exactly once in the output. Static districts
// absent from the payload are omitted.
func MergeDistricts(provinces, districts *BoundarySet, scores *ScoreCollection, provinceCode string) (*geojson.FeatureCollection, MergeStats) {
	stats := MergeStats{
		Level:      LevelDistrict,
		Boundaries: districts.Len(),
	}
	fc := geojson.NewFeatureCollection()
	if scores.Empty() {
		return fc, stats
	}
	stats.Scores = len(scores.Features)

	// Pass 1.
	var candidates []Boundary
	if province, ok := ResolveProvince(provinces, provinceCode, scores.Meta); ok {
		candidates = DistrictsWithin(province, districts)
		stats.Spatial = true
	} else {
		zap.L().Debug("boundary: province unresolved, matching districts by name only",
			zap.String("province_code", provinceCode),
			zap.String("province_name", scores.Meta.ProvinceName),
		)
		if districts != nil {
			candidates = districts.Boundaries
		}
	}

	// Pass 2.
	idx := newScoreIndex(scores)
	matched := make(map[string]bool)
	for _, d := range candidates {
		name := NormalizeName(d.Name)
		if name == "" || matched[name] {
			continue
		}
		sf, ok := idx.byName[name]
		if !ok {
			continue
		}
		matched[name] = true
		stats.MatchedName++

		props := sf.Props
		if props.Name == "" {
			props.Name = d.Name
		}
		f := geojson.NewFeature(d.Shape.Geometry())
		f.Properties = props.properties(true, GeometryFromBoundary)
		fc.Append(f)
	}

	// Pass 3.
	for i := range scores.Features {
		sf := &scores.Features[i]
		if name := NormalizeName(sf.Props.Name); name != "" && matched[name] {
			continue
		}
		stats.Fallback++
		stats.Unmatched = append(stats.Unmatched, sf.Props.Name)

		f := geojson.NewFeature(sf.Geometry)
		f.Properties = sf.Props.properties(true, GeometryFromAPI)
		fc.Append(f)
	}

	return fc, stats
}
