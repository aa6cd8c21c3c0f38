// Command mkarchive writes a synthetic surface-temperature PMTiles archive
// for running the viewer without the production catalog.
//
// Usage:
//
//	go run ./cmd/mkarchive \
//	  -out data/LST_sample.pmtiles \
//	  -min-zoom 9 -max-zoom 12 -radius 1
//
// Pass -relative to encode deviations from the mean instead of °F; name
// the output with the palette marker (e.g. LST_Relative_sample.pmtiles) so
// the viewer colors it with the relative palette.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log"
	"math"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	"github.com/paulmach/orb/project"

	"github.com/couchcryptid/urban-heat-viewer/internal/adapter/pmtiles"
)

const tileSize = 512

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output path for the archive")
	lon := flag.Float64("center-lon", -73.84200928305255, "center longitude")
	lat := flag.Float64("center-lat", 40.76043006443475, "center latitude")
	minZoom := flag.Int("min-zoom", 9, "lowest zoom level to write")
	maxZoom := flag.Int("max-zoom", 12, "highest zoom level to write")
	radius := flag.Int("radius", 1, "tiles written on each side of the center tile")
	relative := flag.Bool("relative", false, "encode deviation from the mean instead of °F")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}
	if *minZoom < 0 || *maxZoom > 22 || *minZoom > *maxZoom {
		return fmt.Errorf("invalid zoom range %d-%d", *minZoom, *maxZoom)
	}

	center := orb.Point{*lon, *lat}
	field := heatField{center: center, relative: *relative}

	w := pmtiles.NewWriter(pmtiles.TileTypePNG)
	w.MaxRootEntries = 512
	w.Metadata = map[string]any{
		"name":        "synthetic land surface temperature",
		"description": "generated by mkarchive",
		"relative":    *relative,
	}

	var bound orb.Bound
	tiles := 0
	for z := *minZoom; z <= *maxZoom; z++ {
		c := maptile.At(center, maptile.Zoom(z))
		n := int64(1) << z
		for dy := -*radius; dy <= *radius; dy++ {
			for dx := -*radius; dx <= *radius; dx++ {
				x, y := int64(c.X)+int64(dx), int64(c.Y)+int64(dy)
				if x < 0 || y < 0 || x >= n || y >= n {
					continue
				}
				t := maptile.New(uint32(x), uint32(y), maptile.Zoom(z))
				data, err := renderTile(t, field)
				if err != nil {
					return fmt.Errorf("render %d/%d/%d: %w", z, x, y, err)
				}
				if err := w.AddTile(uint8(z), t.X, t.Y, data); err != nil {
					return err
				}
				if tiles == 0 {
					bound = t.Bound()
				} else {
					bound = bound.Union(t.Bound())
				}
				tiles++
			}
		}
		log.Printf("zoom %d: center tile %d/%d", z, c.X, c.Y)
	}
	w.Bounds = bound

	f, err := os.Create(*out)
	if err != nil {
		return fmt.Errorf("create %s: %w", *out, err)
	}
	n, err := w.WriteTo(f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}

	log.Printf("wrote %s: %d tiles, %d bytes", *out, tiles, n)
	return nil
}

// heatField is a warm urban core fading into cooler surroundings.
type heatField struct {
	center   orb.Point
	relative bool
}

// value returns the 8-bit band value at p.
func (f heatField) value(p orb.Point) uint8 {
	c := project.WGS84.ToMercator(f.center)
	m := project.WGS84.ToMercator(p)
	d := math.Hypot(m[0]-c[0], m[1]-c[1]) / 8000 // ~8 km falloff
	core := math.Exp(-d * d)

	if f.relative {
		return uint8(math.Round(10 * core))
	}
	return uint8(math.Round(65 + 50*core))
}

func renderTile(t maptile.Tile, f heatField) ([]byte, error) {
	b := t.Bound()
	minM := project.WGS84.ToMercator(b.Min)
	maxM := project.WGS84.ToMercator(b.Max)

	img := image.NewNRGBA(image.Rect(0, 0, tileSize, tileSize))
	for py := 0; py < tileSize; py++ {
		my := maxM[1] - (float64(py)+0.5)/tileSize*(maxM[1]-minM[1])
		for px := 0; px < tileSize; px++ {
			mx := minM[0] + (float64(px)+0.5)/tileSize*(maxM[0]-minM[0])
			v := f.value(project.Mercator.ToWGS84(orb.Point{mx, my}))
			img.SetNRGBA(px, py, color.NRGBA{R: v, G: v, B: v, A: 255})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
