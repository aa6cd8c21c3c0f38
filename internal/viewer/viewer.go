// Package viewer runs one viewer session: it loads the catalog, fills the
// selection and applies the default overlay.
package viewer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/couchcryptid/urban-heat-viewer/internal/domain"
	"github.com/couchcryptid/urban-heat-viewer/internal/observability"
	"github.com/couchcryptid/urban-heat-viewer/internal/overlay"
)

// OverlaySelector applies a selected archive URL to the map.
type OverlaySelector interface {
	SelectLayer(ctx context.Context, layer domain.LayerDescriptor) (*overlay.Overlay, error)
}

// Closer detaches the map surface at shutdown.
type Closer interface {
	Close()
}

// CatalogState is what the page shows about the catalog.
type CatalogState struct {
	Layers   []Option `json:"layers"`
	Selected string   `json:"selected"`
	Error    string   `json:"error,omitempty"`
}

// Viewer ties the catalog, the selection and the overlay controller together.
type Viewer struct {
	catalog   domain.CatalogSource
	overlays  OverlaySelector
	surface   Closer
	selection *Selection
	logger    *slog.Logger
	metrics   *observability.Metrics

	loaded atomic.Bool

	mu         sync.RWMutex
	catalogErr error
}

// New creates a Viewer. Nothing is fetched until Load or Run.
func New(catalog domain.CatalogSource, overlays OverlaySelector, surface Closer, logger *slog.Logger, metrics *observability.Metrics) *Viewer {
	return &Viewer{
		catalog:   catalog,
		overlays:  overlays,
		surface:   surface,
		selection: &Selection{},
		logger:    logger,
		metrics:   metrics,
	}
}

// Selection returns the dropdown state.
func (v *Viewer) Selection() *Selection {
	return v.selection
}

// CheckReadiness returns nil once the catalog has been loaded.
func (v *Viewer) CheckReadiness(_ context.Context) error {
	if v.loaded.Load() {
		return nil
	}
	if err := v.CatalogError(); err != nil {
		return fmt.Errorf("catalog unavailable: %w", err)
	}
	return errors.New("catalog has not been loaded yet")
}

// CatalogError returns the error of the last failed catalog fetch.
func (v *Viewer) CatalogError() error {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.catalogErr
}

// Catalog snapshots the catalog state for rendering.
func (v *Viewer) Catalog() CatalogState {
	st := CatalogState{
		Layers:   v.selection.Options(),
		Selected: v.selection.Selected(),
	}
	if err := v.CatalogError(); err != nil {
		st.Error = err.Error()
	}
	return st
}

// Load fetches the catalog once, populates the selection and selects the
// last entry. A failed fetch leaves the selection empty and is kept for
// display; it is not retried.
func (v *Viewer) Load(ctx context.Context) error {
	layers, err := v.catalog.Fetch(ctx)

	v.mu.Lock()
	v.catalogErr = err
	v.mu.Unlock()

	if err != nil {
		v.logger.Error("catalog fetch failed", "error", err)
		return fmt.Errorf("load catalog: %w", err)
	}

	v.selection.Populate(layers)
	v.metrics.CatalogLayers.Set(float64(len(layers)))
	v.loaded.Store(true)
	v.logger.Info("catalog loaded", "layers", len(layers))

	last, ok := v.selection.Last()
	if !ok {
		return nil
	}
	if _, err := v.Choose(ctx, last); err != nil {
		return fmt.Errorf("select default layer: %w", err)
	}
	return nil
}

// Choose applies url, which must be one of the options.
func (v *Viewer) Choose(ctx context.Context, url string) (*overlay.Overlay, error) {
	opt, ok := v.selection.Lookup(url)
	if !ok {
		return nil, ErrUnknownOption
	}
	o, err := v.overlays.SelectLayer(ctx, domain.LayerDescriptor{Filename: opt.Label, S3URL: opt.Value})
	if err != nil {
		return nil, err
	}
	v.selection.record(o.URL, o.Generation)
	return o, nil
}

// Run loads the catalog and keeps the session alive until ctx is cancelled.
// The map surface is closed on return.
func (v *Viewer) Run(ctx context.Context) error {
	v.logger.Info("viewer started")
	v.metrics.ViewerRunning.Set(1)
	defer v.metrics.ViewerRunning.Set(0)
	defer v.surface.Close()

	if err := v.Load(ctx); err != nil && ctx.Err() == nil {
		v.logger.Warn("viewer running without a catalog selection", "error", err)
	}

	<-ctx.Done()
	v.logger.Info("viewer stopping", "reason", ctx.Err())
	return nil
}
