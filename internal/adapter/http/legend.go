package http

import (
	"bytes"
	"image"
	"image/png"

	"github.com/couchcryptid/urban-heat-viewer/internal/domain"
)

const (
	legendWidth  = 256
	legendHeight = 16
)

// renderLegend draws the palette ramp left to right, from the first stop's
// threshold to the last one's.
func renderLegend(p domain.Palette, width, height int) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	if len(p.Stops) > 0 {
		lo := p.Stops[0].Threshold
		hi := p.Stops[len(p.Stops)-1].Threshold
		for x := 0; x < width; x++ {
			v := lo
			if width > 1 {
				v = lo + (hi-lo)*float64(x)/float64(width-1)
			}
			c := p.ColorAt(v)
			for y := 0; y < height; y++ {
				img.SetRGBA(x, y, c)
			}
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
