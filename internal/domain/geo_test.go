package domain

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var queensView = View{
	Center: orb.Point{-73.84200928305255, 40.76043006443475},
	Zoom:   12,
	Width:  1200,
	Height: 800,
}

func TestView_CenterPixelIsCenter(t *testing.T) {
	c := queensView.CoordinateAt(600, 400)
	assert.InDelta(t, queensView.Center.Lon(), c.Lon(), 1e-9)
	assert.InDelta(t, queensView.Center.Lat(), c.Lat(), 1e-9)
}

func TestView_PixelRoundTrip(t *testing.T) {
	for _, px := range [][2]float64{{0, 0}, {1199, 799}, {17.5, 640.25}} {
		c := queensView.CoordinateAt(px[0], px[1])
		x, y := queensView.PixelAt(c)
		assert.InDelta(t, px[0], x, 1e-6)
		assert.InDelta(t, px[1], y, 1e-6)
	}
}

func TestView_Orientation(t *testing.T) {
	topLeft := queensView.CoordinateAt(0, 0)
	assert.Less(t, topLeft.Lon(), queensView.Center.Lon(), "left of center is west")
	assert.Greater(t, topLeft.Lat(), queensView.Center.Lat(), "above center is north")
}

func TestResolution(t *testing.T) {
	assert.InDelta(t, 156543.03392804097, Resolution(0), 1e-6)
	assert.InDelta(t, Resolution(0)/4096, Resolution(12), 1e-9)
}

func TestTileZoom(t *testing.T) {
	assert.Equal(t, 11, TileZoom(12, 512, 0, 14))
	assert.Equal(t, 12, TileZoom(12, 256, 0, 14))
	assert.Equal(t, 12, TileZoom(12.6, 512, 0, 14))
	assert.Equal(t, 8, TileZoom(3, 512, 8, 14))
	assert.Equal(t, 14, TileZoom(19, 512, 8, 14))
}

func TestTilePosition(t *testing.T) {
	tile, fx, fy, ok := TilePosition(orb.Point{-179.9999, 85}, 0)
	require.True(t, ok)
	assert.Equal(t, maptile.New(0, 0, 0), tile)
	assert.InDelta(t, 0, fx, 1e-5)
	assert.InDelta(t, 0, fy, 1e-2)

	tile, fx, fy, ok = TilePosition(orb.Point{90, -45}, 1)
	require.True(t, ok)
	assert.Equal(t, maptile.New(1, 1, 1), tile)
	assert.InDelta(t, 0.5, fx, 1e-9)
	assert.Greater(t, fy, 0.0)
	assert.Less(t, fy, 1.0)
}

func TestTilePosition_MatchesMaptile(t *testing.T) {
	p := orb.Point{-73.842, 40.7604}
	for z := maptile.Zoom(0); z <= 16; z++ {
		tile, _, _, ok := TilePosition(p, z)
		require.True(t, ok)
		assert.Equal(t, maptile.At(p, z), tile, "zoom %d", z)
	}
}

func TestTilePosition_OutsideMercator(t *testing.T) {
	_, _, _, ok := TilePosition(orb.Point{181, 0}, 4)
	assert.False(t, ok)
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "12.000", FormatValue(12))
	assert.Equal(t, "0.125", FormatValue(0.125))
	assert.Equal(t, "-2.500", FormatValue(-2.5))
	assert.Equal(t, 3.142, RoundValue(3.14159))
}
