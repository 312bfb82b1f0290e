// Package choropleth maps merged feature properties to fill colors: a linear
// ramp for GEOINT scores and a step ramp for competitor position gaps. Each
// style renders both as a Go lookup and as a Mapbox-GL style expression.
package choropleth

import (
	"math"
	"sort"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/paulmach/orb/geojson"
	"github.com/rotisserie/eris"
)

// ErrUnknownStyle is returned for a style name other than geoint or gap.
var ErrUnknownStyle = eris.New("choropleth: unknown style")

// Stop pairs a data value with a hex color.
type Stop struct {
	Value float64 `yaml:"value" json:"value"`
	Color string  `yaml:"color" json:"color"`
}

// Style colors a feature from its properties.
type Style interface {
	// FeatureColor returns the fill color for a merged feature's properties.
	FeatureColor(props geojson.Properties) string

	// Expression returns the Mapbox-GL fill-color expression.
	Expression() []any
}

// Interpolated is a linear color ramp over a numeric property. Features with
// has_data=false get NoData.
type Interpolated struct {
	Property string `yaml:"property"`
	NoData   string `yaml:"no_data"`
	Stops    []Stop `yaml:"stops"`
}

// Color returns the ramp color at v, blending neighbouring stops in RGB so it
// agrees with the renderer's linear interpolation. Values outside the ramp
// clamp to the end stops.
func (r Interpolated) Color(v float64) string {
	if len(r.Stops) == 0 {
		return r.NoData
	}
	if math.IsNaN(v) || v <= r.Stops[0].Value {
		return r.Stops[0].Color
	}
	last := r.Stops[len(r.Stops)-1]
	if v >= last.Value {
		return last.Color
	}
	i := sort.Search(len(r.Stops), func(i int) bool { return r.Stops[i].Value >= v })
	lo, hi := r.Stops[i-1], r.Stops[i]
	if hi.Value == v || hi.Value == lo.Value {
		return hi.Color
	}
	a, errA := colorful.Hex(lo.Color)
	b, errB := colorful.Hex(hi.Color)
	if errA != nil || errB != nil {
		return lo.Color
	}
	t := (v - lo.Value) / (hi.Value - lo.Value)
	return a.BlendRgb(b, t).Clamped().Hex()
}

// FeatureColor implements Style.
func (r Interpolated) FeatureColor(props geojson.Properties) string {
	if hasData, ok := props["has_data"].(bool); ok && !hasData {
		return r.NoData
	}
	v, ok := number(props[r.Property])
	if !ok {
		return r.NoData
	}
	return r.Color(v)
}

// Expression implements Style.
func (r Interpolated) Expression() []any {
	ramp := []any{"interpolate", []any{"linear"}, []any{"to-number", []any{"get", r.Property}, 0}}
	for _, s := range r.Stops {
		ramp = append(ramp, s.Value, s.Color)
	}
	return []any{"case", []any{"==", []any{"get", "has_data"}, false}, r.NoData, ramp}
}

// Validate checks the ramp has ascending stops with parseable colors.
func (r Interpolated) Validate() error {
	if r.Property == "" {
		return eris.New("choropleth: interpolated style needs a property")
	}
	if len(r.Stops) < 2 {
		return eris.New("choropleth: interpolated style needs at least two stops")
	}
	if err := validateStops(r.Stops); err != nil {
		return err
	}
	return validateColor(r.NoData)
}

// Stepped is a step color ramp: values below the first step get Base, and
// each step's color applies from its value upward. A missing value gets Null.
type Stepped struct {
	Property string `yaml:"property"`
	Null     string `yaml:"null_color"`
	Base     string `yaml:"base"`
	Steps    []Stop `yaml:"steps"`
}

// Color returns the step color for v; nil means no value.
func (s Stepped) Color(v *float64) string {
	if v == nil || math.IsNaN(*v) {
		return s.Null
	}
	color := s.Base
	for _, step := range s.Steps {
		if *v < step.Value {
			break
		}
		color = step.Color
	}
	return color
}

// FeatureColor implements Style.
func (s Stepped) FeatureColor(props geojson.Properties) string {
	v, ok := number(props[s.Property])
	if !ok {
		return s.Null
	}
	return s.Color(&v)
}

// Expression implements Style.
func (s Stepped) Expression() []any {
	step := []any{"step", []any{"get", s.Property}, s.Base}
	for _, st := range s.Steps {
		step = append(step, st.Value, st.Color)
	}
	return []any{"case", []any{"==", []any{"get", s.Property}, nil}, s.Null, step}
}

// Validate checks the steps ascend and every color parses.
func (s Stepped) Validate() error {
	if s.Property == "" {
		return eris.New("choropleth: stepped style needs a property")
	}
	if err := validateStops(s.Steps); err != nil {
		return err
	}
	if err := validateColor(s.Base); err != nil {
		return err
	}
	return validateColor(s.Null)
}

// Colorize sets a fill_color property on every feature of fc.
func Colorize(fc *geojson.FeatureCollection, style Style) {
	if fc == nil {
		return
	}
	for _, f := range fc.Features {
		if f.Properties == nil {
			f.Properties = geojson.Properties{}
		}
		f.Properties["fill_color"] = style.FeatureColor(f.Properties)
	}
}

func validateStops(stops []Stop) error {
	for i, s := range stops {
		if err := validateColor(s.Color); err != nil {
			return err
		}
		if i > 0 && s.Value <= stops[i-1].Value {
			return eris.Errorf("choropleth: stop %d (%v) is not above %v", i, s.Value, stops[i-1].Value)
		}
	}
	return nil
}

func validateColor(hex string) error {
	if _, err := colorful.Hex(hex); err != nil {
		return eris.Wrapf(err, "choropleth: bad color %q", hex)
	}
	return nil
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
