// Package mapsurface holds the map viewport, the permanent base layer and
// the overlay layers stacked above it.
package mapsurface

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/paulmach/orb"

	"github.com/couchcryptid/urban-heat-viewer/internal/domain"
)

// ErrClosed is returned by operations on a detached surface.
var ErrClosed = errors.New("map surface closed")

// Layer is anything the surface can stack.
type Layer interface {
	LayerID() string
}

// BaseLayer is the permanent raster basemap.
type BaseLayer struct {
	URL         string `json:"url"`
	Attribution string `json:"attribution"`
}

func (BaseLayer) LayerID() string { return "base" }

// ClickEvent describes a click on the map.
type ClickEvent struct {
	Pixel      [2]float64
	Coordinate orb.Point
	View       domain.View
}

// ClickHandler receives click events in subscription order.
type ClickHandler func(ctx context.Context, ev ClickEvent)

type subscription struct {
	id int
	fn ClickHandler
}

// Surface is safe for concurrent use.
type Surface struct {
	mu       sync.RWMutex
	view     domain.View
	base     Layer
	overlays []Layer
	handlers []subscription
	nextID   int
	closed   bool
}

// New creates a surface showing base at the given view.
func New(view domain.View, base Layer) *Surface {
	return &Surface{view: view, base: base}
}

// AddLayer stacks l above the existing layers.
func (s *Surface) AddLayer(l Layer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}
	if l.LayerID() == s.base.LayerID() || slices.ContainsFunc(s.overlays, sameLayer(l)) {
		return fmt.Errorf("layer %q already on the map", l.LayerID())
	}
	s.overlays = append(s.overlays, l)
	return nil
}

// RemoveLayer takes l off the surface. It reports whether l was present.
// The base layer cannot be removed.
func (s *Surface) RemoveLayer(l Layer) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := slices.IndexFunc(s.overlays, sameLayer(l))
	if i < 0 {
		return false
	}
	s.overlays = slices.Delete(s.overlays, i, i+1)
	return true
}

// Layers returns the base layer followed by the overlays, bottom to top.
func (s *Surface) Layers() []Layer {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Layer, 0, len(s.overlays)+1)
	out = append(out, s.base)
	return append(out, s.overlays...)
}

// OverlayCount returns the number of layers above the base layer.
func (s *Surface) OverlayCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.overlays)
}

// OnClick subscribes fn to click events and returns its unsubscribe func.
func (s *Surface) OnClick(fn ClickHandler) func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return func() {}
	}
	s.nextID++
	id := s.nextID
	s.handlers = append(s.handlers, subscription{id: id, fn: fn})

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.handlers = slices.DeleteFunc(s.handlers, func(sub subscription) bool { return sub.id == id })
	}
}

// Click dispatches a click at pixel (x, y) of the current view.
func (s *Surface) Click(ctx context.Context, x, y float64) (ClickEvent, error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return ClickEvent{}, ErrClosed
	}
	view := s.view
	handlers := slices.Clone(s.handlers)
	s.mu.RUnlock()

	ev := ClickEvent{
		Pixel:      [2]float64{x, y},
		Coordinate: view.CoordinateAt(x, y),
		View:       view,
	}
	for _, h := range handlers {
		h.fn(ctx, ev)
	}
	return ev, nil
}

// SetView moves the viewport. A zero width or height keeps the current size.
func (s *Surface) SetView(v domain.View) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if v.Width <= 0 || v.Height <= 0 {
		v.Width, v.Height = s.view.Width, s.view.Height
	}
	s.view = v
}

// View returns the current viewport.
func (s *Surface) View() domain.View {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.view
}

// Close detaches the surface: subscribers are dropped and later calls fail
// or do nothing.
func (s *Surface) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.handlers = nil
}

func sameLayer(l Layer) func(Layer) bool {
	return func(o Layer) bool { return o.LayerID() == l.LayerID() }
}
