package choropleth

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Neutral is the gap color for "level with the best competitor" and no data.
const Neutral = "#ffeb3b"

// Palette holds both map styles.
type Palette struct {
	Geoint Interpolated `yaml:"geoint"`
	Gap    Stepped      `yaml:"gap"`
}

// DefaultGeoint is the 12-stop diverging red-yellow-green GEOINT ramp.
func DefaultGeoint() Interpolated {
	return Interpolated{
		Property: "geoint_score",
		NoData:   "#d9d9d9",
		Stops: []Stop{
			{0, "#a50026"},
			{9, "#d73027"},
			{18, "#f46d43"},
			{27, "#fdae61"},
			{36, "#fee08b"},
			{45, "#ffffbf"},
			{55, "#d9ef8b"},
			{64, "#a6d96a"},
			{73, "#66bd63"},
			{82, "#1a9850"},
			{91, "#006837"},
			{100, "#004529"},
		},
	}
}

// DefaultGap is the position gap step ramp. Negative gaps (behind the best
// competitor) are red, positive green, within ±5 and null neutral yellow.
func DefaultGap() Stepped {
	return Stepped{
		Property: "position_gap",
		Null:     Neutral,
		Base:     "#b30000",
		Steps: []Stop{
			{-20, "#e34a33"},
			{-10, "#fc8d59"},
			{-5, Neutral},
			{5, "#a6d96a"},
			{10, "#66bd63"},
			{20, "#1a9850"},
		},
	}
}

// DefaultPalette returns the built-in styles.
func DefaultPalette() *Palette {
	return &Palette{Geoint: DefaultGeoint(), Gap: DefaultGap()}
}

// LoadPalette reads a YAML palette. Sections left out of the file keep the
// built-in style.
func LoadPalette(path string) (*Palette, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "choropleth: read palette %s", path)
	}

	p := DefaultPalette()
	if err := yaml.Unmarshal(data, p); err != nil {
		return nil, eris.Wrapf(err, "choropleth: parse palette %s", path)
	}
	if err := p.Geoint.Validate(); err != nil {
		return nil, eris.Wrap(err, "choropleth: geoint style")
	}
	if err := p.Gap.Validate(); err != nil {
		return nil, eris.Wrap(err, "choropleth: gap style")
	}
	return p, nil
}

// Style returns the named style ("geoint" or "gap").
func (p *Palette) Style(name string) (Style, error) {
	switch name {
	case "geoint", "score":
		return p.Geoint, nil
	case "gap", "comparison":
		return p.Gap, nil
	}
	return nil, eris.Wrapf(ErrUnknownStyle, "%q", name)
}
