package pmtiles

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	gopmtiles "github.com/protomaps/go-pmtiles/pmtiles"

	"github.com/couchcryptid/urban-heat-viewer/internal/domain"
	"github.com/couchcryptid/urban-heat-viewer/internal/observability"
)

// initialFetch covers the header and, for well-formed archives, the root directory.
const initialFetch = 16384

// maxDirectoryDepth bounds root -> leaf -> leaf lookups.
const maxDirectoryDepth = 4

// Source implements domain.RasterSource for one PMTiles archive. The header
// and root directory are read on first use; decoded tiles and leaf
// directories are kept in per-source LRU caches.
type Source struct {
	fetcher  RangeFetcher
	tileSize int
	logger   *slog.Logger
	metrics  *observability.Metrics

	mu     sync.Mutex
	header *Header
	root   []Entry

	tiles  *lruCache[uint64, image.Image]
	leaves *lruCache[uint64, []Entry]
}

// NewSource creates a lazily opened archive reader. tileSize is the grid
// size the map widget requests tiles at; it selects the zoom level read.
func NewSource(fetcher RangeFetcher, tileSize, cacheSize int, logger *slog.Logger, metrics *observability.Metrics) *Source {
	return &Source{
		fetcher:  fetcher,
		tileSize: tileSize,
		logger:   logger,
		metrics:  metrics,
		tiles:    newLRUCache[uint64, image.Image](cacheSize),
		leaves:   newLRUCache[uint64, []Entry](cacheSize),
	}
}

// Header returns the archive header, reading it on first call. Failed
// reads are not remembered, so a later call retries.
func (s *Source) Header(ctx context.Context) (Header, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.header != nil {
		return *s.header, nil
	}

	b, err := s.fetcher.FetchRange(ctx, 0, initialFetch)
	if err != nil {
		return Header{}, fmt.Errorf("read header: %w", err)
	}
	h, err := DecodeHeader(b)
	if err != nil {
		return Header{}, err
	}

	var rootBytes []byte
	if end := h.RootOffset + h.RootLength; end <= uint64(len(b)) {
		rootBytes = b[h.RootOffset:end]
	} else {
		rootBytes, err = s.fetcher.FetchRange(ctx, h.RootOffset, h.RootLength)
		if err != nil {
			return Header{}, fmt.Errorf("read root directory: %w", err)
		}
	}
	root, err := s.readDirectory(rootBytes, h.InternalCompression)
	if err != nil {
		return Header{}, fmt.Errorf("root directory: %w", err)
	}

	s.logger.Debug("pmtiles archive opened",
		"min_zoom", h.MinZoom,
		"max_zoom", h.MaxZoom,
		"tile_type", h.TileType,
		"root_entries", len(root),
	)

	s.header = &h
	s.root = root
	return h, nil
}

// Tile returns the raw (decompressed) payload of tile z/x/y. ok is false
// when the archive has no such tile.
func (s *Source) Tile(ctx context.Context, z uint8, x, y uint32) ([]byte, bool, error) {
	h, err := s.Header(ctx)
	if err != nil {
		return nil, false, err
	}

	s.mu.Lock()
	entries := s.root
	s.mu.Unlock()

	id := ZxyToID(z, x, y)
	for depth := 0; depth < maxDirectoryDepth; depth++ {
		e, ok := gopmtiles.FindTile(entries, id)
		if !ok {
			return nil, false, nil
		}
		if e.RunLength > 0 {
			b, err := s.fetcher.FetchRange(ctx, h.TileDataOffset+e.Offset, uint64(e.Length))
			if err != nil {
				return nil, false, fmt.Errorf("read tile %d/%d/%d: %w", z, x, y, err)
			}
			b, err = decompress(b, h.TileCompression)
			if err != nil {
				return nil, false, fmt.Errorf("tile %d/%d/%d: %w", z, x, y, err)
			}
			return b, true, nil
		}

		entries, err = s.leaf(ctx, h, e)
		if err != nil {
			return nil, false, err
		}
	}
	return nil, false, fmt.Errorf("tile %d/%d/%d: directory nesting deeper than %d", z, x, y, maxDirectoryDepth)
}

// Sample implements domain.RasterSource.
func (s *Source) Sample(ctx context.Context, coord orb.Point, viewZoom float64) ([]float64, bool, error) {
	h, err := s.Header(ctx)
	if err != nil {
		return nil, false, err
	}
	if b := HeaderBound(h); !b.IsZero() && !b.Contains(coord) {
		return nil, false, nil
	}

	z := domain.TileZoom(viewZoom, s.tileSize, int(h.MinZoom), int(h.MaxZoom))
	tile, fx, fy, ok := domain.TilePosition(coord, maptile.Zoom(z))
	if !ok {
		return nil, false, nil
	}

	img, ok, err := s.image(ctx, h, tile)
	if err != nil || !ok {
		return nil, false, err
	}
	bands, ok := sampleBands(img, fx, fy)
	return bands, ok, nil
}

func (s *Source) image(ctx context.Context, h Header, t maptile.Tile) (image.Image, bool, error) {
	id := ZxyToID(uint8(t.Z), t.X, t.Y)
	if img, ok := s.tiles.get(id); ok {
		s.metrics.TileCache.WithLabelValues("hit").Inc()
		return img, true, nil
	}
	s.metrics.TileCache.WithLabelValues("miss").Inc()

	b, ok, err := s.Tile(ctx, uint8(t.Z), t.X, t.Y)
	if err != nil || !ok {
		return nil, false, err
	}
	img, err := decodeTile(b, h.TileType)
	if err != nil {
		return nil, false, fmt.Errorf("tile %d/%d/%d: %w", t.Z, t.X, t.Y, err)
	}
	s.tiles.put(id, img)
	return img, true, nil
}

func (s *Source) leaf(ctx context.Context, h Header, e Entry) ([]Entry, error) {
	if entries, ok := s.leaves.get(e.Offset); ok {
		return entries, nil
	}
	b, err := s.fetcher.FetchRange(ctx, h.LeafDirectoryOffset+e.Offset, uint64(e.Length))
	if err != nil {
		return nil, fmt.Errorf("read leaf directory: %w", err)
	}
	entries, err := s.readDirectory(b, h.InternalCompression)
	if err != nil {
		return nil, fmt.Errorf("leaf directory at %d: %w", e.Offset, err)
	}
	s.leaves.put(e.Offset, entries)
	return entries, nil
}

func (s *Source) readDirectory(b []byte, c Compression) ([]Entry, error) {
	raw, err := decompress(b, c)
	if err != nil {
		return nil, err
	}
	return decodeDirectory(raw)
}
