package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"image/color"
	"io"
	"math"
	"os"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/image/colornames"
)

// DefaultPaletteMarker selects the relative palette when it appears in an overlay URL.
const DefaultPaletteMarker = "Relative"

// ColorStop is one point of a piecewise-linear color ramp. Its JSON form is
// a two-element array: [50, "#000004"].
type ColorStop struct {
	Threshold float64
	Color     string
}

func (s ColorStop) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{s.Threshold, s.Color})
}

func (s *ColorStop) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("color stop: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("color stop: want [threshold, color], got %d elements", len(pair))
	}
	if err := json.Unmarshal(pair[0], &s.Threshold); err != nil {
		return fmt.Errorf("color stop threshold: %w", err)
	}
	if err := json.Unmarshal(pair[1], &s.Color); err != nil {
		return fmt.Errorf("color stop color: %w", err)
	}
	return nil
}

// Palette is an ordered color ramp.
type Palette struct {
	Name  string      `json:"name"`
	Stops []ColorStop `json:"stops"`
}

// TempFColors ramps surface temperature in °F (magma-like).
var TempFColors = Palette{
	Name: "tempf_colors",
	Stops: []ColorStop{
		{50, "#000004"},
		{60, "#210c4a"},
		{70, "#57106e"},
		{80, "#8a226a"},
		{90, "#bc3754"},
		{100, "#e45a31"},
		{110, "#f98e09"},
		{120, "#f9cb35"},
		{130, "#fcffa4"},
	},
}

// RelativeColors ramps the deviation from the area mean (diverging).
var RelativeColors = Palette{
	Name: "relative_colors",
	Stops: []ColorStop{
		{-5, "#0571b0"},
		{-2.5, "#92c5de"},
		{0, "#f7f7f7"},
		{5, "#f4a582"},
		{10, "#ca0020"},
	},
}

// Validate checks that the palette has at least two stops, strictly
// increasing thresholds, and parseable colors.
func (p Palette) Validate() error {
	if len(p.Stops) < 2 {
		return fmt.Errorf("palette %q: need at least 2 stops, got %d", p.Name, len(p.Stops))
	}
	for i, s := range p.Stops {
		if math.IsNaN(s.Threshold) || math.IsInf(s.Threshold, 0) {
			return fmt.Errorf("palette %q: stop %d threshold is not finite", p.Name, i)
		}
		if i > 0 && s.Threshold <= p.Stops[i-1].Threshold {
			return fmt.Errorf("palette %q: thresholds not strictly increasing at stop %d (%g after %g)",
				p.Name, i, s.Threshold, p.Stops[i-1].Threshold)
		}
		if _, err := ParseColor(s.Color); err != nil {
			return fmt.Errorf("palette %q: stop %d: %w", p.Name, i, err)
		}
	}
	return nil
}

// StyleExpression is the raster style handed to the map widget.
type StyleExpression []any

// StyleExpression rescales band 1 to its 8-bit value (band × 255 ÷ 1) and
// interpolates linearly across the palette stops.
func (p Palette) StyleExpression() StyleExpression {
	expr := StyleExpression{
		"interpolate",
		[]any{"linear"},
		[]any{"/", []any{"*", []any{"band", 1}, 255}, 1},
	}
	for _, s := range p.Stops {
		expr = append(expr, s.Threshold, s.Color)
	}
	return expr
}

// ColorAt interpolates the ramp at v. Values outside the ramp clamp to the
// end colors. A stop whose color does not parse contributes transparent
// black; Validate reports such stops, and palettes loaded from files are
// always validated.
func (p Palette) ColorAt(v float64) color.RGBA {
	if len(p.Stops) == 0 {
		return color.RGBA{}
	}
	first, last := p.Stops[0], p.Stops[len(p.Stops)-1]
	if v <= first.Threshold {
		return mustColor(first.Color)
	}
	if v >= last.Threshold {
		return mustColor(last.Color)
	}

	for i := 1; i < len(p.Stops); i++ {
		hi := p.Stops[i]
		if v > hi.Threshold {
			continue
		}
		lo := p.Stops[i-1]
		t := (v - lo.Threshold) / (hi.Threshold - lo.Threshold)
		return lerp(mustColor(lo.Color), mustColor(hi.Color), t)
	}
	return mustColor(last.Color)
}

func lerp(a, b color.RGBA, t float64) color.RGBA {
	mix := func(x, y uint8) uint8 {
		return uint8(math.Round(float64(x) + t*(float64(y)-float64(x))))
	}
	return color.RGBA{R: mix(a.R, b.R), G: mix(a.G, b.G), B: mix(a.B, b.B), A: mix(a.A, b.A)}
}

// mustColor parses s, falling back to transparent black.
func mustColor(s string) color.RGBA {
	c, err := ParseColor(s)
	if err != nil {
		return color.RGBA{}
	}
	return c
}

// ParseColor accepts #rgb, #rrggbb, #rrggbbaa and CSS color names.
func ParseColor(s string) (color.RGBA, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "#") {
		if c, ok := colornames.Map[strings.ToLower(s)]; ok {
			return c, nil
		}
		return color.RGBA{}, fmt.Errorf("unknown color %q", s)
	}

	hex := s[1:]
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) == 6 {
		hex += "ff"
	}
	if len(hex) != 8 {
		return color.RGBA{}, fmt.Errorf("invalid hex color %q", s)
	}
	n, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid hex color %q", s)
	}
	return color.RGBA{R: uint8(n >> 24), G: uint8(n >> 16), B: uint8(n >> 8), A: uint8(n)}, nil
}

// HexColor formats c as #rrggbb.
func HexColor(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// PaletteSet picks a palette per overlay: Marked when the overlay URL or
// layer filename contains Marker, Default otherwise.
type PaletteSet struct {
	Marker  string  `json:"marker"`
	Default Palette `json:"default"`
	Marked  Palette `json:"marked"`
}

// DefaultPaletteSet returns the built-in temperature and relative palettes.
func DefaultPaletteSet() PaletteSet {
	return PaletteSet{
		Marker:  DefaultPaletteMarker,
		Default: TempFColors.clone(),
		Marked:  RelativeColors.clone(),
	}
}

func (p Palette) clone() Palette {
	return Palette{Name: p.Name, Stops: slices.Clone(p.Stops)}
}

// Select returns the palette for an overlay identified by its URL and,
// when known, its catalog filename. The marker match is case-sensitive.
func (s PaletteSet) Select(identifiers ...string) Palette {
	if s.Marker == "" {
		return s.Default
	}
	for _, id := range identifiers {
		if strings.Contains(id, s.Marker) {
			return s.Marked
		}
	}
	return s.Default
}

// Lookup returns the palette with the given name.
func (s PaletteSet) Lookup(name string) (Palette, bool) {
	switch name {
	case s.Default.Name:
		return s.Default, true
	case s.Marked.Name:
		return s.Marked, true
	}
	return Palette{}, false
}

// Validate checks both palettes.
func (s PaletteSet) Validate() error {
	return errors.Join(s.Default.Validate(), s.Marked.Validate())
}

// LoadPaletteSet decodes a JSON palette set. Palettes or marker left out of
// the document keep their built-in values.
func LoadPaletteSet(r io.Reader) (PaletteSet, error) {
	set := DefaultPaletteSet()
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&set); err != nil {
		return PaletteSet{}, fmt.Errorf("decode palette set: %w", err)
	}
	if err := set.Validate(); err != nil {
		return PaletteSet{}, err
	}
	return set, nil
}

// LoadPaletteSetFile reads a palette set from path.
func LoadPaletteSetFile(path string) (PaletteSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return PaletteSet{}, fmt.Errorf("open palette file: %w", err)
	}
	defer f.Close()
	return LoadPaletteSet(f)
}
