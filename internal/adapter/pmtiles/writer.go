package pmtiles

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"slices"

	"github.com/paulmach/orb"
)

// Writer assembles a PMTiles v3 archive in memory.
type Writer struct {
	TileType            TileType
	TileCompression     Compression
	InternalCompression Compression
	// MaxRootEntries moves entries into leaf directories of this size once
	// exceeded. Zero keeps every entry in the root directory.
	MaxRootEntries int
	Bounds         orb.Bound
	Metadata       map[string]any

	tiles map[uint64]tileData
}

type tileData struct {
	z    uint8
	data []byte
}

// NewWriter creates a writer for tiles of type t with gzip directories and
// uncompressed tile payloads.
func NewWriter(t TileType) *Writer {
	return &Writer{
		TileType:            t,
		TileCompression:     CompressionNone,
		InternalCompression: CompressionGzip,
		Bounds:              orb.Bound{Min: orb.Point{-180, -85.0511287}, Max: orb.Point{180, 85.0511287}},
		tiles:               make(map[uint64]tileData),
	}
}

// AddTile stores the payload for z/x/y, replacing any earlier one.
func (w *Writer) AddTile(z uint8, x, y uint32, data []byte) error {
	if z > 31 {
		return fmt.Errorf("zoom %d out of range", z)
	}
	if n := uint32(1) << z; x >= n || y >= n {
		return fmt.Errorf("tile %d/%d/%d out of range", z, x, y)
	}
	if len(data) == 0 {
		return errors.New("empty tile payload")
	}
	w.tiles[ZxyToID(z, x, y)] = tileData{z: z, data: slices.Clone(data)}
	return nil
}

// WriteTo serializes the archive.
func (w *Writer) WriteTo(out io.Writer) (int64, error) {
	if len(w.tiles) == 0 {
		return 0, errors.New("archive has no tiles")
	}

	ids := make([]uint64, 0, len(w.tiles))
	for id := range w.tiles {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	var (
		tileBlob bytes.Buffer
		entries  []Entry
		offsets  = make(map[string]uint64)
		minZoom  = uint8(math.MaxUint8)
		maxZoom  uint8
	)
	for _, id := range ids {
		t := w.tiles[id]
		minZoom = min(minZoom, t.z)
		maxZoom = max(maxZoom, t.z)

		payload, err := compress(t.data, w.TileCompression)
		if err != nil {
			return 0, err
		}

		if n := len(entries); n > 0 {
			prev := &entries[n-1]
			if prev.TileID+uint64(prev.RunLength) == id && bytes.Equal(w.tiles[prev.TileID].data, t.data) {
				prev.RunLength++
				continue
			}
		}

		off, seen := offsets[string(payload)]
		if !seen {
			off = uint64(tileBlob.Len())
			offsets[string(payload)] = off
			tileBlob.Write(payload)
		}
		entries = append(entries, Entry{TileID: id, Offset: off, Length: uint32(len(payload)), RunLength: 1})
	}

	rootEntries := entries
	var leafBlob bytes.Buffer
	if w.MaxRootEntries > 0 && len(entries) > w.MaxRootEntries {
		rootEntries = nil
		for chunk := range slices.Chunk(entries, w.MaxRootEntries) {
			b, err := encodeDirectory(chunk, w.InternalCompression)
			if err != nil {
				return 0, err
			}
			rootEntries = append(rootEntries, Entry{
				TileID: chunk[0].TileID,
				Offset: uint64(leafBlob.Len()),
				Length: uint32(len(b)),
			})
			leafBlob.Write(b)
		}
	}

	root, err := encodeDirectory(rootEntries, w.InternalCompression)
	if err != nil {
		return 0, err
	}
	if HeaderLength+len(root) > initialFetch {
		return 0, fmt.Errorf("root directory is %d bytes; set MaxRootEntries", len(root))
	}

	meta := w.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return 0, fmt.Errorf("encode metadata: %w", err)
	}
	metaBytes, err := compress(metaJSON, w.InternalCompression)
	if err != nil {
		return 0, err
	}

	center := w.Bounds.Center()
	h := Header{
		SpecVersion:         3,
		RootOffset:          uint64(HeaderLength),
		RootLength:          uint64(len(root)),
		MetadataOffset:      uint64(HeaderLength + len(root)),
		MetadataLength:      uint64(len(metaBytes)),
		LeafDirectoryLength: uint64(leafBlob.Len()),
		TileDataLength:      uint64(tileBlob.Len()),
		AddressedTilesCount: uint64(len(ids)),
		TileEntriesCount:    uint64(len(entries)),
		TileContentsCount:   uint64(len(offsets)),
		Clustered:           true,
		InternalCompression: w.InternalCompression,
		TileCompression:     w.TileCompression,
		TileType:            w.TileType,
		MinZoom:             minZoom,
		MaxZoom:             maxZoom,
		MinLonE7:            e7(w.Bounds.Min.Lon()),
		MinLatE7:            e7(w.Bounds.Min.Lat()),
		MaxLonE7:            e7(w.Bounds.Max.Lon()),
		MaxLatE7:            e7(w.Bounds.Max.Lat()),
		CenterZoom:          minZoom,
		CenterLonE7:         e7(center.Lon()),
		CenterLatE7:         e7(center.Lat()),
	}
	h.LeafDirectoryOffset = h.MetadataOffset + h.MetadataLength
	h.TileDataOffset = h.LeafDirectoryOffset + h.LeafDirectoryLength

	var written int64
	for _, part := range [][]byte{EncodeHeader(h), root, metaBytes, leafBlob.Bytes(), tileBlob.Bytes()} {
		n, err := out.Write(part)
		written += int64(n)
		if err != nil {
			return written, fmt.Errorf("write archive: %w", err)
		}
	}
	return written, nil
}

// Bytes serializes the archive into a byte slice.
func (w *Writer) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := w.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func e7(deg float64) int32 {
	return int32(math.Round(deg * 1e7))
}
