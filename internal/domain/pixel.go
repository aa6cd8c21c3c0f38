package domain

import (
	"context"
	"math"
	"strconv"
	"time"

	"github.com/paulmach/orb"
)

// RasterSource reads pixel data from a tiled raster dataset.
type RasterSource interface {
	// Sample returns the band values of the pixel covering coord at the
	// tile zoom a map view at viewZoom displays. ok is false when no tile
	// covers the point.
	Sample(ctx context.Context, coord orb.Point, viewZoom float64) (bands []float64, ok bool, err error)
}

// PixelValue is the last value read under a click.
type PixelValue struct {
	Value      float64   `json:"value"`
	Display    string    `json:"display"`
	Bands      []float64 `json:"bands"`
	Color      string    `json:"color"`
	Coordinate orb.Point `json:"coordinate"`
	OverlayID  string    `json:"overlay_id"`
	ReadAt     time.Time `json:"read_at"`
}

// RoundValue rounds v to three decimal places.
func RoundValue(v float64) float64 {
	return math.Round(v*1000) / 1000
}

// FormatValue renders v with exactly three decimals, e.g. 12 -> "12.000".
func FormatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}
