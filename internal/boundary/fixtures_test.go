package boundary

import (
	"fmt"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/require"
)

// provinceNames lists the 81 provinces in plate-code order.
var provinceNames = []string{
	"Adana", "Adıyaman", "Afyonkarahisar", "Ağrı", "Amasya", "Ankara", "Antalya", "Artvin", "Aydın",
	"Balıkesir", "Bilecik", "Bingöl", "Bitlis", "Bolu", "Burdur", "Bursa", "Çanakkale", "Çankırı",
	"Çorum", "Denizli", "Diyarbakır", "Edirne", "Elazığ", "Erzincan", "Erzurum", "Eskişehir", "Gaziantep",
	"Giresun", "Gümüşhane", "Hakkâri", "Hatay", "Isparta", "Mersin", "İstanbul", "İzmir", "Kars",
	"Kastamonu", "Kayseri", "Kırklareli", "Kırşehir", "Kocaeli", "Konya", "Kütahya", "Malatya", "Manisa",
	"Kahramanmaraş", "Mardin", "Muğla", "Muş", "Nevşehir", "Niğde", "Ordu", "Rize", "Sakarya",
	"Samsun", "Siirt", "Sinop", "Sivas", "Tekirdağ", "Tokat", "Trabzon", "Tunceli", "Şanlıurfa",
	"Uşak", "Van", "Yozgat", "Zonguldak", "Aksaray", "Bayburt", "Karaman", "Kırıkkale", "Batman",
	"Şırnak", "Bartın", "Ardahan", "Iğdır", "Yalova", "Karabük", "Kilis", "Osmaniye", "Düzce",
}

// square returns a closed counter-clockwise square polygon.
func square(x, y, size float64) orb.Polygon {
	return orb.Polygon{orb.Ring{
		{x, y}, {x + size, y}, {x + size, y + size}, {x, y + size}, {x, y},
	}}
}

// provinceOrigin lays the provinces out on a 9-wide grid of 10x10 cells.
func provinceOrigin(plate int) (float64, float64) {
	i := plate - 1
	return float64(i%9) * 10, float64(i/9) * 10
}

func testProvinces() *BoundarySet {
	set := &BoundarySet{Level: LevelProvince, Source: "test"}
	for i, name := range provinceNames {
		plate := i + 1
		x, y := provinceOrigin(plate)
		set.Boundaries = append(set.Boundaries, Boundary{
			ISO:   fmt.Sprintf("TR-%02d", plate),
			Name:  name,
			Shape: Polygon{square(x, y, 10)},
		})
	}
	return set
}

// district places a 2x2 district at offset (dx, dy) inside a province cell.
func district(plate int, name string, dx, dy float64) Boundary {
	x, y := provinceOrigin(plate)
	return Boundary{Name: name, Shape: Polygon{square(x+dx, y+dy, 2)}}
}

func testDistricts() *BoundarySet {
	return &BoundarySet{Level: LevelDistrict, Source: "test", Boundaries: []Boundary{
		district(5, "Merkez", 1, 1),
		district(5, "Merzifon", 5, 5),
		district(6, "Çankaya", 1, 1),
		district(6, "Keçiören", 5, 1),
		district(6, "Yenimahalle", 1, 5),
		district(19, "Merkez", 1, 1),
		district(19, "Sungurlu", 5, 5),
		district(34, "Kadıköy", 1, 1),
		district(34, "Beşiktaş", 5, 1),
	}}
}

func mustScores(t *testing.T, payload string) *ScoreCollection {
	t.Helper()
	sc, err := ParseScores([]byte(payload))
	require.NoError(t, err)
	return sc
}

func findFeature(fc *geojson.FeatureCollection, code string) *geojson.Feature {
	for _, f := range fc.Features {
		if f.Properties.MustString("code", "") == code {
			return f
		}
	}
	return nil
}

func findByName(fc *geojson.FeatureCollection, name string) *geojson.Feature {
	for _, f := range fc.Features {
		if f.Properties.MustString("name", "") == name {
			return f
		}
	}
	return nil
}
