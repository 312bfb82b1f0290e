package mapview

import (
	"context"

	"github.com/paulmach/orb/geojson"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/geoint-cli/internal/boundary"
)

// ScoreSource fetches score payloads. *scoreapi.Client implements it.
type ScoreSource interface {
	Provinces(ctx context.Context, keyword string) (*boundary.ScoreCollection, error)
	Districts(ctx context.Context, keyword, provinceCode string) (*boundary.ScoreCollection, error)
	Comparison(ctx context.Context, id string) ([]boundary.ComparisonRegion, error)
}

// payloadForgetter drops cached payloads so a refreshed selection reaches
// the backend. *scoreapi.Client implements it.
type payloadForgetter interface {
	ForgetKeyword(keyword string) int
	ForgetComparison(id string) int
}

// Service fetches scores and merges them onto boundaries.
type Service struct {
	Engine *boundary.Engine
	Scores ScoreSource
}

// Load implements Loader.
func (s *Service) Load(ctx context.Context, sel Selection) (*geojson.FeatureCollection, boundary.MergeStats, error) {
	if sel.Refresh {
		s.forget(sel)
	}
	switch sel.Kind {
	case KindProvince:
		sc, err := s.Scores.Provinces(ctx, sel.Keyword)
		if err != nil {
			return nil, boundary.MergeStats{}, err
		}
		fc, stats := s.Engine.Provinces(ctx, sc)
		return fc, stats, nil
	case KindDistrict:
		sc, err := s.Scores.Districts(ctx, sel.Keyword, sel.ProvinceCode)
		if err != nil {
			return nil, boundary.MergeStats{}, err
		}
		fc, stats := s.Engine.Districts(ctx, sc, sel.ProvinceCode)
		return fc, stats, nil
	case KindComparison:
		if sel.ComparisonID == "" {
			return nil, boundary.MergeStats{}, eris.New("mapview: comparison selection needs comparison_id")
		}
		regions, err := s.Scores.Comparison(ctx, sel.ComparisonID)
		if err != nil {
			return nil, boundary.MergeStats{}, err
		}
		fc, stats := s.Engine.Comparison(ctx, regions)
		return fc, stats, nil
	}
	return nil, boundary.MergeStats{}, eris.Errorf("mapview: unknown selection kind %q", sel.Kind)
}

func (s *Service) forget(sel Selection) {
	f, ok := s.Scores.(payloadForgetter)
	if !ok {
		return
	}
	var n int
	if sel.Kind == KindComparison {
		n = f.ForgetComparison(sel.ComparisonID)
	} else {
		n = f.ForgetKeyword(sel.Keyword)
	}
	zap.L().Debug("mapview: dropped cached payloads",
		zap.String("kind", sel.Kind),
		zap.Int("dropped", n),
	)
}
