package main

import (
	"bytes"
	"image/png"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var queens = orb.Point{-73.84200928305255, 40.76043006443475}

func TestHeatField_PeaksAtCenter(t *testing.T) {
	f := heatField{center: queens}
	assert.Equal(t, uint8(115), f.value(queens))
	assert.Equal(t, uint8(65), f.value(orb.Point{-70, 40}))

	rel := heatField{center: queens, relative: true}
	assert.Equal(t, uint8(10), rel.value(queens))
	assert.Equal(t, uint8(0), rel.value(orb.Point{-70, 40}))
}

func TestRenderTile(t *testing.T) {
	tile := maptile.At(queens, 12)
	data, err := renderTile(tile, heatField{center: queens})
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, tileSize, img.Bounds().Dx())
	assert.Equal(t, tileSize, img.Bounds().Dy())

	_, _, _, a := img.At(0, 0).RGBA()
	assert.Equal(t, uint32(0xffff), a)
}
