package domain

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	"github.com/paulmach/orb/project"
)

// baseTileSize is the pixel size zoom levels are defined against (OSM grid).
const baseTileSize = 256

// halfWorld is half the Web Mercator world width in meters.
var halfWorld = project.WGS84.ToMercator(orb.Point{180, 0})[0]

// Resolution returns meters per pixel at zoom on the 256-px grid.
func Resolution(zoom float64) float64 {
	return 2 * halfWorld / (baseTileSize * math.Exp2(zoom))
}

// View is the visible map window: center, fractional zoom, and size in CSS pixels.
type View struct {
	Center orb.Point `json:"center"`
	Zoom   float64   `json:"zoom"`
	Width  int       `json:"width"`
	Height int       `json:"height"`
}

// CoordinateAt converts a pixel offset from the view's top-left corner to
// a WGS84 coordinate.
func (v View) CoordinateAt(px, py float64) orb.Point {
	c := project.WGS84.ToMercator(v.Center)
	res := Resolution(v.Zoom)
	m := orb.Point{
		c[0] + (px-float64(v.Width)/2)*res,
		c[1] - (py-float64(v.Height)/2)*res,
	}
	return project.Mercator.ToWGS84(m)
}

// PixelAt is the inverse of CoordinateAt.
func (v View) PixelAt(coord orb.Point) (px, py float64) {
	c := project.WGS84.ToMercator(v.Center)
	m := project.WGS84.ToMercator(coord)
	res := Resolution(v.Zoom)
	return (m[0]-c[0])/res + float64(v.Width)/2, (c[1]-m[1])/res + float64(v.Height)/2
}

// TileZoom maps a view zoom to the zoom of a tile grid with tileSize-px
// tiles, clamped to [minZoom, maxZoom].
func TileZoom(viewZoom float64, tileSize, minZoom, maxZoom int) int {
	z := int(math.Round(viewZoom - math.Log2(float64(tileSize)/baseTileSize)))
	return max(minZoom, min(z, maxZoom))
}

// TilePosition locates coord on the tile grid at zoom z. fx and fy are the
// fractional offsets inside the tile, in [0, 1). ok is false when coord
// falls outside the Web Mercator square.
func TilePosition(coord orb.Point, z maptile.Zoom) (tile maptile.Tile, fx, fy float64, ok bool) {
	m := project.WGS84.ToMercator(coord)
	n := math.Exp2(float64(z))
	wx := (m[0] + halfWorld) / (2 * halfWorld) * n
	wy := (halfWorld - m[1]) / (2 * halfWorld) * n
	if math.IsNaN(wx) || math.IsNaN(wy) || wx < 0 || wy < 0 || wx >= n || wy >= n {
		return maptile.Tile{}, 0, 0, false
	}
	tx, ty := math.Floor(wx), math.Floor(wy)
	return maptile.New(uint32(tx), uint32(ty), z), wx - tx, wy - ty, true
}
