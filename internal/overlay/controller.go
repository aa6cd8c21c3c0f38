// Package overlay swaps the user-selected raster layer onto the map surface.
package overlay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/urban-heat-viewer/internal/domain"
	"github.com/couchcryptid/urban-heat-viewer/internal/mapsurface"
	"github.com/couchcryptid/urban-heat-viewer/internal/observability"
)

var (
	// ErrStaleSelection is returned when a newer selection was applied
	// before this one got the surface.
	ErrStaleSelection = errors.New("overlay selection superseded by a newer one")

	// ErrNoOverlay is returned when no overlay has been applied yet.
	ErrNoOverlay = errors.New("no active overlay")
)

// Overlay is one styled raster layer bound to an archive URL.
type Overlay struct {
	ID          string                 `json:"id"`
	URL         string                 `json:"url"`
	Generation  uint64                 `json:"generation"`
	Palette     domain.Palette         `json:"palette"`
	Style       domain.StyleExpression `json:"style"`
	TileSize    int                    `json:"tile_size"`
	Attribution string                 `json:"attribution"`
	CreatedAt   time.Time              `json:"created_at"`

	Source domain.RasterSource `json:"-"`
}

// LayerID implements mapsurface.Layer.
func (o *Overlay) LayerID() string { return o.ID }

// Surface is the part of the map surface the controller drives.
type Surface interface {
	AddLayer(l mapsurface.Layer) error
	RemoveLayer(l mapsurface.Layer) bool
}

// SourceFactory opens the raster source behind an overlay URL.
type SourceFactory func(url string) domain.RasterSource

// Options configures the overlays the controller builds.
type Options struct {
	TileSize    int
	Attribution string
}

// Controller owns the active overlay. Select may be called concurrently;
// the last selection received wins.
type Controller struct {
	surface   Surface
	palettes  domain.PaletteSet
	newSource SourceFactory
	opts      Options
	sink      domain.EventSink
	logger    *slog.Logger
	metrics   *observability.Metrics

	received atomic.Uint64

	mu      sync.Mutex // serializes swaps
	applied uint64

	active atomic.Pointer[Overlay]
}

// NewController creates a controller with no active overlay.
func NewController(surface Surface, palettes domain.PaletteSet, newSource SourceFactory, opts Options, sink domain.EventSink, logger *slog.Logger, metrics *observability.Metrics) *Controller {
	if sink == nil {
		sink = domain.NopSink{}
	}
	return &Controller{
		surface:   surface,
		palettes:  palettes,
		newSource: newSource,
		opts:      opts,
		sink:      sink,
		logger:    logger,
		metrics:   metrics,
	}
}

// Select builds an overlay for url and swaps it in place of the previous one.
func (c *Controller) Select(ctx context.Context, url string) (*Overlay, error) {
	return c.SelectLayer(ctx, domain.LayerDescriptor{S3URL: url})
}

// SelectLayer is Select for a catalog entry; the palette marker is matched
// against both its URL and its filename.
func (c *Controller) SelectLayer(ctx context.Context, layer domain.LayerDescriptor) (*Overlay, error) {
	gen := c.received.Add(1)
	url := layer.S3URL

	palette := c.palettes.Select(url, layer.Filename)
	o := &Overlay{
		ID:          fmt.Sprintf("overlay-%d", gen),
		URL:         url,
		Generation:  gen,
		Palette:     palette,
		Style:       palette.StyleExpression(),
		TileSize:    c.opts.TileSize,
		Attribution: c.opts.Attribution,
		CreatedAt:   domain.Now(),
		Source:      c.newSource(url),
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if gen < c.applied {
		c.metrics.OverlayDiscarded.Inc()
		c.logger.Debug("overlay selection discarded", "url", url, "generation", gen, "applied", c.applied)
		return nil, ErrStaleSelection
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prev := c.active.Load()
	if prev != nil {
		c.surface.RemoveLayer(prev)
	}
	if err := c.surface.AddLayer(o); err != nil {
		c.restore(prev)
		return nil, fmt.Errorf("add overlay %s: %w", o.ID, err)
	}

	c.applied = gen
	c.active.Store(o)
	c.metrics.OverlayActive.Set(1)
	c.metrics.OverlaySwaps.Inc()
	c.logger.Info("overlay applied", "id", o.ID, "url", url, "palette", palette.Name)

	c.sink.Emit(domain.ViewerEvent{
		Type:       domain.EventOverlaySelected,
		OverlayID:  o.ID,
		URL:        url,
		Palette:    palette.Name,
		OccurredAt: o.CreatedAt,
	})
	return o, nil
}

// restore puts prev back after a failed add so the surface keeps its
// overlay. Must be called with c.mu held.
func (c *Controller) restore(prev *Overlay) {
	if prev == nil {
		return
	}
	if err := c.surface.AddLayer(prev); err != nil {
		c.logger.Warn("previous overlay could not be restored", "id", prev.ID, "error", err)
		c.active.Store(nil)
		c.metrics.OverlayActive.Set(0)
	}
}

// Active returns the overlay on the surface, or nil. It is read at call
// time, so callers holding the controller always see the latest swap.
func (c *Controller) Active() *Overlay {
	return c.active.Load()
}

// Current is Active with ErrNoOverlay for the empty case.
func (c *Controller) Current() (*Overlay, error) {
	if o := c.active.Load(); o != nil {
		return o, nil
	}
	return nil, ErrNoOverlay
}

// Palettes returns the palette set overlays are styled from.
func (c *Controller) Palettes() domain.PaletteSet {
	return c.palettes
}
