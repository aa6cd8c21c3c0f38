// Package inspector reads the active overlay's value under map clicks.
package inspector

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/couchcryptid/urban-heat-viewer/internal/domain"
	"github.com/couchcryptid/urban-heat-viewer/internal/mapsurface"
	"github.com/couchcryptid/urban-heat-viewer/internal/observability"
	"github.com/couchcryptid/urban-heat-viewer/internal/overlay"
)

// ActiveOverlay is consulted on every click.
type ActiveOverlay interface {
	Active() *overlay.Overlay
}

// ClickSource delivers map clicks.
type ClickSource interface {
	OnClick(fn mapsurface.ClickHandler) (unsubscribe func())
}

// Inspector holds the last value read under a click.
type Inspector struct {
	overlays ActiveOverlay
	sink     domain.EventSink
	logger   *slog.Logger
	metrics  *observability.Metrics

	clicks atomic.Uint64

	mu    sync.RWMutex
	shown uint64 // sequence of the click behind value
	value *domain.PixelValue
}

// New creates an inspector with no value set.
func New(overlays ActiveOverlay, sink domain.EventSink, logger *slog.Logger, metrics *observability.Metrics) *Inspector {
	if sink == nil {
		sink = domain.NopSink{}
	}
	return &Inspector{overlays: overlays, sink: sink, logger: logger, metrics: metrics}
}

// Attach subscribes the inspector to clicks on s.
func (i *Inspector) Attach(s ClickSource) (detach func()) {
	return s.OnClick(i.HandleClick)
}

// HandleClick reads the pixel under ev from whichever overlay is active at
// the time of the click. With no overlay it does nothing. A pixel without
// data clears the value; a failed read keeps the previous one. A read that
// finishes after a later click's read is dropped.
func (i *Inspector) HandleClick(ctx context.Context, ev mapsurface.ClickEvent) {
	seq := i.clicks.Add(1)
	o := i.overlays.Active()
	if o == nil {
		i.metrics.PixelReads.WithLabelValues("no_overlay").Inc()
		return
	}

	bands, ok, err := o.Source.Sample(ctx, ev.Coordinate, ev.View.Zoom)
	if err != nil {
		i.metrics.PixelReads.WithLabelValues("error").Inc()
		i.logger.Warn("pixel read failed",
			"error", err,
			"overlay", o.ID,
			"lon", ev.Coordinate.Lon(),
			"lat", ev.Coordinate.Lat(),
		)
		return
	}
	if !ok || len(bands) == 0 {
		if !i.set(seq, nil) {
			i.metrics.PixelReads.WithLabelValues("stale").Inc()
			return
		}
		i.metrics.PixelReads.WithLabelValues("no_data").Inc()
		return
	}

	raw := bands[0]
	pv := domain.PixelValue{
		Value:      domain.RoundValue(raw),
		Display:    domain.FormatValue(raw),
		Bands:      slices.Clone(bands),
		Color:      domain.HexColor(o.Palette.ColorAt(raw)),
		Coordinate: ev.Coordinate,
		OverlayID:  o.ID,
		ReadAt:     domain.Now(),
	}
	if !i.set(seq, &pv) {
		i.metrics.PixelReads.WithLabelValues("stale").Inc()
		i.logger.Debug("pixel read superseded by a later click", "overlay", o.ID, "click", seq)
		return
	}
	i.metrics.PixelReads.WithLabelValues("value").Inc()

	v := pv.Value
	i.sink.Emit(domain.ViewerEvent{
		Type:       domain.EventPixelInspected,
		OverlayID:  o.ID,
		URL:        o.URL,
		Palette:    o.Palette.Name,
		Value:      &v,
		OccurredAt: pv.ReadAt,
	})
}

// Value returns the last value read. ok is false while unset.
func (i *Inspector) Value() (domain.PixelValue, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if i.value == nil {
		return domain.PixelValue{}, false
	}
	return *i.value, true
}

// set stores v for click seq unless a later click already stored its result.
func (i *Inspector) set(seq uint64, v *domain.PixelValue) bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	if seq < i.shown {
		return false
	}
	i.shown = seq
	i.value = v
	return true
}
