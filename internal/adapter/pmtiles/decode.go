package pmtiles

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"

	"golang.org/x/image/webp"
)

func decodeTile(b []byte, t TileType) (image.Image, error) {
	var (
		img image.Image
		err error
	)
	switch t {
	case TileTypePNG:
		img, err = png.Decode(bytes.NewReader(b))
	case TileTypeJPEG:
		img, err = jpeg.Decode(bytes.NewReader(b))
	case TileTypeWebP:
		img, err = webp.Decode(bytes.NewReader(b))
	default:
		return nil, fmt.Errorf("%w: tile type %d", ErrUnsupported, t)
	}
	if err != nil {
		return nil, fmt.Errorf("decode tile: %w", err)
	}
	return img, nil
}

// sampleBands returns the 8-bit channel values at fractional tile position
// (fx, fy). ok is false for fully transparent pixels, which carry no data.
func sampleBands(img image.Image, fx, fy float64) ([]float64, bool) {
	b := img.Bounds()
	if b.Empty() {
		return nil, false
	}
	x := b.Min.X + min(int(fx*float64(b.Dx())), b.Dx()-1)
	y := b.Min.Y + min(int(fy*float64(b.Dy())), b.Dy()-1)

	c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
	if c.A == 0 {
		return nil, false
	}
	return []float64{float64(c.R), float64(c.G), float64(c.B), float64(c.A)}, true
}
