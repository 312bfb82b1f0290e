package boundary

import (
	"github.com/paulmach/orb/geojson"
)

// MergeStats summarises how a merge resolved its inputs.
type MergeStats struct {
	Level       Level    `json:"level"`
	Boundaries  int      `json:"boundaries"`
	Scores      int      `json:"scores"`
	MatchedCode int      `json:"matched_code"`
	MatchedName int      `json:"matched_name"`
	Defaulted   int      `json:"defaulted"`
	Fallback    int      `json:"fallback"`
	Unmatched   []string `json:"unmatched,omitempty"`
	Spatial     bool     `json:"spatial"`
	Degraded    bool     `json:"degraded"`
}

// Matched is the number of output features that joined a score region.
func (s MergeStats) Matched() int {
	return s.MatchedCode + s.MatchedName
}

// scoreIndex looks score regions up by padded province code and normalized
// name. Later regions overwrite earlier ones with the same key.
type scoreIndex struct {
	byCode map[string]*ScoreFeature
	byName map[string]*ScoreFeature
}

func newScoreIndex(sc *ScoreCollection) scoreIndex {
	idx := scoreIndex{
		byCode: make(map[string]*ScoreFeature),
		byName: make(map[string]*ScoreFeature),
	}
	if sc == nil {
		return idx
	}
	for i := range sc.Features {
		f := &sc.Features[i]
		if code := PadProvinceCode(f.Props.Code); code != "" {
			idx.byCode[code] = f
		}
		if name := NormalizeName(f.Props.Name); name != "" {
			idx.byName[name] = f
		}
	}
	return idx
}

// MergeProvinces joins province scores onto the static province boundaries.
// The output always has exactly one feature per static province: provinces
// without a score region get the zero-value "no data" properties. Score
// regions that match no province are reported in MergeStats.Unmatched.
func MergeProvinces(provinces *BoundarySet, scores *ScoreCollection) (*geojson.FeatureCollection, MergeStats) {
	stats := MergeStats{
		Level:      LevelProvince,
		Boundaries: provinces.Len(),
	}
	if scores != nil {
		stats.Scores = len(scores.Features)
	}
	fc := geojson.NewFeatureCollection()
	if provinces == nil {
		return fc, stats
	}

	idx := newScoreIndex(scores)
	used := make(map[*ScoreFeature]bool)

	for _, b := range provinces.Boundaries {
		code, _ := b.Code()
		code = PadProvinceCode(code)

		var match *ScoreFeature
		if code != "" {
			if sf, ok := idx.byCode[code]; ok {
				match = sf
				stats.MatchedCode++
			}
		}
		if match == nil {
			if sf, ok := idx.byName[NormalizeName(b.Name)]; ok {
				match = sf
				stats.MatchedName++
			}
		}

		f := geojson.NewFeature(b.Shape.Geometry())
		if match != nil {
			used[match] = true
			props := match.Props
			if props.Code == "" {
				props.Code = code
			} else {
				props.Code = PadProvinceCode(props.Code)
			}
			if props.Name == "" {
				props.Name = b.Name
			}
			f.Properties = props.properties(true, GeometryFromBoundary)
		} else {
			stats.Defaulted++
			f.Properties = defaultScoreProperties(b.Name, code).properties(false, GeometryFromBoundary)
		}
		fc.Append(f)
	}

	if scores != nil {
		for i := range scores.Features {
			if !used[&scores.Features[i]] {
				stats.Unmatched = append(stats.Unmatched, scores.Features[i].Props.Name)
			}
		}
	}
	return fc, stats
}
