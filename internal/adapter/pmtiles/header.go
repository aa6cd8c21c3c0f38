// Package pmtiles reads raster tiles from PMTiles v3 archives over HTTP
// range requests and writes small archives for fixtures and local data.
package pmtiles

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	gopmtiles "github.com/protomaps/go-pmtiles/pmtiles"
)

// HeaderLength is the fixed size of a v3 header.
const HeaderLength int = gopmtiles.HeaderV3LenBytes

type (
	// Header is the decoded v3 header. Offsets are absolute archive positions.
	Header = gopmtiles.HeaderV3
	// Entry is one directory record. RunLength 0 marks a leaf directory pointer.
	Entry = gopmtiles.EntryV3
	// Compression identifies how directories or tiles are compressed.
	Compression = gopmtiles.Compression
	// TileType identifies the tile payload format.
	TileType = gopmtiles.TileType
)

const (
	CompressionUnknown = gopmtiles.UnknownCompression
	CompressionNone    = gopmtiles.NoCompression
	CompressionGzip    = gopmtiles.Gzip
	CompressionBrotli  = gopmtiles.Brotli
	CompressionZstd    = gopmtiles.Zstd
)

const (
	TileTypeUnknown = gopmtiles.UnknownTileType
	TileTypeMVT     = gopmtiles.Mvt
	TileTypePNG     = gopmtiles.Png
	TileTypeJPEG    = gopmtiles.Jpeg
	TileTypeWebP    = gopmtiles.Webp
	TileTypeAVIF    = gopmtiles.Avif
)

var (
	// ErrNotPMTiles is returned when the archive does not start with a v3 header.
	ErrNotPMTiles = errors.New("not a PMTiles v3 archive")
	// ErrUnsupported is returned for compressions or tile types the reader cannot decode.
	ErrUnsupported = errors.New("unsupported pmtiles feature")
)

// DecodeHeader parses the first HeaderLength bytes of an archive.
func DecodeHeader(b []byte) (Header, error) {
	if len(b) < HeaderLength {
		return Header{}, fmt.Errorf("%w: header is %d bytes", ErrNotPMTiles, len(b))
	}
	h, err := gopmtiles.DeserializeHeader(b[:HeaderLength])
	if err != nil {
		return Header{}, fmt.Errorf("%w: %v", ErrNotPMTiles, err)
	}
	if h.SpecVersion != 3 {
		return Header{}, fmt.Errorf("%w: version %d", ErrNotPMTiles, h.SpecVersion)
	}
	return h, nil
}

// EncodeHeader serializes h to its fixed 127-byte form.
func EncodeHeader(h Header) []byte {
	h.SpecVersion = 3
	return gopmtiles.SerializeHeader(h)
}

// HeaderBound returns the archive's geographic extent.
func HeaderBound(h Header) orb.Bound {
	return orb.Bound{
		Min: orb.Point{float64(h.MinLonE7) / 1e7, float64(h.MinLatE7) / 1e7},
		Max: orb.Point{float64(h.MaxLonE7) / 1e7, float64(h.MaxLatE7) / 1e7},
	}
}
