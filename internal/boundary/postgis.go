package boundary

import (
	"context"
	"time"

	"github.com/paulmach/orb"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"
	"go.uber.org/zap"

	"github.com/sells-group/geoint-cli/internal/db"
)

// BoundaryTable holds one row per boundary, partitioned by level.
const BoundaryTable = "geo.tr_boundaries"

const srid = 4326

var boundaryColumns = []string{"level", "ord", "shape_iso", "shape_name", "geom"}

const createBoundaryTableSQL = `CREATE SCHEMA IF NOT EXISTS geo;
CREATE TABLE IF NOT EXISTS geo.tr_boundaries (
	level      text    NOT NULL,
	ord        integer NOT NULL,
	shape_iso  text    NOT NULL DEFAULT '',
	shape_name text    NOT NULL,
	geom       geometry(Geometry, 4326) NOT NULL,
	PRIMARY KEY (level, ord)
);
CREATE INDEX IF NOT EXISTS tr_boundaries_geom_idx ON geo.tr_boundaries USING gist (geom);`

const selectBoundariesSQL = `SELECT shape_iso, shape_name, ST_AsEWKB(geom) FROM geo.tr_boundaries WHERE level = $1 ORDER BY ord`

const countBoundariesSQL = `SELECT level, count(*) FROM geo.tr_boundaries GROUP BY level`

// PostGISSource loads boundary sets from the geo.tr_boundaries table.
type PostGISSource struct {
	Pool db.Pool
}

// Load implements Source.
func (s *PostGISSource) Load(ctx context.Context, level Level) (*BoundarySet, error) {
	rows, err := s.Pool.Query(ctx, selectBoundariesSQL, string(level))
	if err != nil {
		return nil, eris.Wrapf(err, "boundary: query %s boundaries", level)
	}
	defer rows.Close()

	set := &BoundarySet{Level: level, Source: "postgis:" + BoundaryTable, LoadedAt: time.Now()}
	for rows.Next() {
		var (
			iso, name string
			wkb       []byte
		)
		if err := rows.Scan(&iso, &name, &wkb); err != nil {
			return nil, eris.Wrapf(err, "boundary: scan %s boundary", level)
		}
		shape, err := DecodeEWKB(wkb)
		if err != nil {
			zap.L().Warn("boundary: skipping stored boundary",
				zap.String("level", string(level)),
				zap.String("name", name),
				zap.Error(err),
			)
			continue
		}
		set.Boundaries = append(set.Boundaries, Boundary{ISO: iso, Name: name, Shape: shape})
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrapf(err, "boundary: iterate %s boundaries", level)
	}
	return set, nil
}

// Store writes boundary sets into PostGIS.
type Store struct {
	pool db.Pool
}

// NewStore creates a Store over pool.
func NewStore(pool db.Pool) *Store {
	return &Store{pool: pool}
}

// EnsureSchema creates the boundary table if it does not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, createBoundaryTableSQL); err != nil {
		return eris.Wrap(err, "boundary: create boundary table")
	}
	return nil
}

// ReplaceBoundaries swaps the stored rows of set.Level for set's boundaries.
func (s *Store) ReplaceBoundaries(ctx context.Context, set *BoundarySet) (int64, error) {
	if set == nil {
		return 0, eris.New("boundary: nil boundary set")
	}
	rows := make([][]any, 0, set.Len())
	for i, b := range set.Boundaries {
		wkb, err := EncodeEWKB(b.Shape)
		if err != nil {
			return 0, eris.Wrapf(err, "boundary: encode %q", b.Name)
		}
		rows = append(rows, []any{string(set.Level), int32(i), b.ISO, b.Name, wkb})
	}
	n, err := db.ReplacePartition(ctx, s.pool, db.ReplaceConfig{
		Table:   BoundaryTable,
		Columns: boundaryColumns,
		KeyCol:  "level",
		KeyVal:  string(set.Level),
	}, rows)
	if err != nil {
		return 0, err
	}
	zap.L().Info("boundary: stored boundary set",
		zap.String("level", string(set.Level)),
		zap.Int64("rows", n),
	)
	return n, nil
}

// Counts returns the stored row count per level.
func (s *Store) Counts(ctx context.Context) (map[Level]int, error) {
	rows, err := s.pool.Query(ctx, countBoundariesSQL)
	if err != nil {
		return nil, eris.Wrap(err, "boundary: count boundaries")
	}
	defer rows.Close()

	out := make(map[Level]int)
	for rows.Next() {
		var (
			level string
			n     int64
		)
		if err := rows.Scan(&level, &n); err != nil {
			return nil, eris.Wrap(err, "boundary: scan count")
		}
		out[Level(level)] = int(n)
	}
	return out, eris.Wrap(rows.Err(), "boundary: iterate counts")
}

// EncodeEWKB converts a shape to little-endian EWKB with SRID 4326.
func EncodeEWKB(s Shape) ([]byte, error) {
	var g geom.T
	switch t := s.(type) {
	case Polygon:
		p, err := geom.NewPolygon(geom.XY).SetCoords(polygonCoords(t.Polygon))
		if err != nil {
			return nil, eris.Wrap(err, "boundary: build polygon")
		}
		g = p.SetSRID(srid)
	case MultiPolygon:
		coords := make([][][]geom.Coord, 0, len(t.MultiPolygon))
		for _, part := range t.MultiPolygon {
			coords = append(coords, polygonCoords(part))
		}
		mp, err := geom.NewMultiPolygon(geom.XY).SetCoords(coords)
		if err != nil {
			return nil, eris.Wrap(err, "boundary: build multipolygon")
		}
		g = mp.SetSRID(srid)
	default:
		return nil, ErrUnsupportedGeometry
	}

	data, err := ewkb.Marshal(g, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "boundary: encode EWKB")
	}
	return data, nil
}

// DecodeEWKB parses EWKB (or plain WKB) into a Shape.
func DecodeEWKB(data []byte) (Shape, error) {
	g, err := ewkb.Unmarshal(data)
	if err != nil {
		return nil, eris.Wrap(err, "boundary: decode EWKB")
	}
	switch t := g.(type) {
	case *geom.Polygon:
		return Polygon{orbPolygon(t.Coords())}, nil
	case *geom.MultiPolygon:
		parts := t.Coords()
		mp := make(orb.MultiPolygon, 0, len(parts))
		for _, part := range parts {
			mp = append(mp, orbPolygon(part))
		}
		return MultiPolygon{mp}, nil
	}
	return nil, eris.Wrapf(ErrUnsupportedGeometry, "%T", g)
}

func polygonCoords(p orb.Polygon) [][]geom.Coord {
	out := make([][]geom.Coord, 0, len(p))
	for _, ring := range p {
		coords := make([]geom.Coord, 0, len(ring))
		for _, pt := range ring {
			coords = append(coords, geom.Coord{pt[0], pt[1]})
		}
		out = append(out, coords)
	}
	return out
}

func orbPolygon(rings [][]geom.Coord) orb.Polygon {
	out := make(orb.Polygon, 0, len(rings))
	for _, coords := range rings {
		ring := make(orb.Ring, 0, len(coords))
		for _, c := range coords {
			ring = append(ring, orb.Point{c.X(), c.Y()})
		}
		out = append(out, ring)
	}
	return out
}
