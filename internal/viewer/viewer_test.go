package viewer_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/urban-heat-viewer/internal/domain"
	"github.com/couchcryptid/urban-heat-viewer/internal/mapsurface"
	"github.com/couchcryptid/urban-heat-viewer/internal/observability"
	"github.com/couchcryptid/urban-heat-viewer/internal/overlay"
	"github.com/couchcryptid/urban-heat-viewer/internal/viewer"
)

// --- fakes ---

type fakeCatalog struct {
	layers []domain.LayerDescriptor
	err    error
	calls  int
}

func (c *fakeCatalog) Fetch(context.Context) ([]domain.LayerDescriptor, error) {
	c.calls++
	return c.layers, c.err
}

type nopSource struct{}

func (nopSource) Sample(context.Context, orb.Point, float64) ([]float64, bool, error) {
	return nil, false, nil
}

type fixture struct {
	viewer     *viewer.Viewer
	surface    *mapsurface.Surface
	controller *overlay.Controller
	metrics    *observability.Metrics
}

func newFixture(catalog domain.CatalogSource) *fixture {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := observability.NewMetricsForTesting()
	surface := mapsurface.New(domain.View{Zoom: 12, Width: 800, Height: 600}, mapsurface.BaseLayer{})
	controller := overlay.NewController(surface, domain.DefaultPaletteSet(),
		func(string) domain.RasterSource { return nopSource{} },
		overlay.Options{TileSize: 512, Attribution: "USGS LandStat"}, nil, logger, metrics)
	return &fixture{
		viewer:     viewer.New(catalog, controller, surface, logger, metrics),
		surface:    surface,
		controller: controller,
		metrics:    metrics,
	}
}

var twoLayers = []domain.LayerDescriptor{
	{Filename: "a.pmtiles", S3URL: "https://x/a"},
	{Filename: "b_Relative.pmtiles", S3URL: "https://x/b"},
}

// --- tests ---

func TestViewer_Load_DefaultsToLastEntry(t *testing.T) {
	f := newFixture(&fakeCatalog{layers: twoLayers})

	require.NoError(t, f.viewer.Load(context.Background()))

	assert.Equal(t, []viewer.Option{
		{Label: "a.pmtiles", Value: "https://x/a"},
		{Label: "b_Relative.pmtiles", Value: "https://x/b"},
	}, f.viewer.Selection().Options())
	assert.Equal(t, "https://x/b", f.viewer.Selection().Selected())

	active := f.controller.Active()
	require.NotNil(t, active)
	assert.Equal(t, "https://x/b", active.URL)
	assert.Equal(t, 1, f.surface.OverlayCount())
	assert.InDelta(t, 2, testutil.ToFloat64(f.metrics.CatalogLayers), 0)
	require.NoError(t, f.viewer.CheckReadiness(context.Background()))
}

func TestViewer_Load_DefaultUsesRelativePalette(t *testing.T) {
	f := newFixture(&fakeCatalog{layers: twoLayers})
	require.NoError(t, f.viewer.Load(context.Background()))

	active := f.controller.Active()
	require.NotNil(t, active)
	assert.Equal(t, "https://x/b", active.URL)
	assert.Equal(t, "relative_colors", active.Palette.Name)

	o, err := f.viewer.Choose(context.Background(), "https://x/a")
	require.NoError(t, err)
	assert.Equal(t, "tempf_colors", o.Palette.Name)
}

func TestViewer_Choose_SwapsOverlay(t *testing.T) {
	f := newFixture(&fakeCatalog{layers: twoLayers})
	require.NoError(t, f.viewer.Load(context.Background()))
	first := f.controller.Active()

	o, err := f.viewer.Choose(context.Background(), "https://x/a")
	require.NoError(t, err)

	assert.Equal(t, "https://x/a", o.URL)
	assert.Equal(t, "https://x/a", f.viewer.Selection().Selected())
	assert.Equal(t, 1, f.surface.OverlayCount())
	for _, l := range f.surface.Layers() {
		assert.NotEqual(t, first.LayerID(), l.LayerID())
	}
}

func TestViewer_Choose_UnknownOption(t *testing.T) {
	f := newFixture(&fakeCatalog{layers: twoLayers})
	require.NoError(t, f.viewer.Load(context.Background()))

	_, err := f.viewer.Choose(context.Background(), "https://x/other")
	require.ErrorIs(t, err, viewer.ErrUnknownOption)
	assert.Equal(t, "https://x/b", f.viewer.Selection().Selected())
}

func TestViewer_Load_EmptyCatalog(t *testing.T) {
	f := newFixture(&fakeCatalog{layers: []domain.LayerDescriptor{}})

	require.NoError(t, f.viewer.Load(context.Background()))

	assert.Empty(t, f.viewer.Selection().Options())
	assert.Nil(t, f.controller.Active())
	assert.Equal(t, 0, f.surface.OverlayCount())
	require.NoError(t, f.viewer.CheckReadiness(context.Background()))
}

func TestViewer_Load_CatalogFailure(t *testing.T) {
	catalog := &fakeCatalog{err: errors.New("catalog API error: status 502: bad gateway")}
	f := newFixture(catalog)

	err := f.viewer.Load(context.Background())
	require.Error(t, err)

	st := f.viewer.Catalog()
	assert.Empty(t, st.Layers)
	assert.Empty(t, st.Selected)
	assert.Contains(t, st.Error, "status 502")
	assert.Nil(t, f.controller.Active())
	assert.ErrorContains(t, f.viewer.CheckReadiness(context.Background()), "catalog unavailable")
	assert.Equal(t, 1, catalog.calls, "no retry")
}

func TestViewer_CheckReadiness_BeforeLoad(t *testing.T) {
	f := newFixture(&fakeCatalog{layers: twoLayers})
	assert.ErrorContains(t, f.viewer.CheckReadiness(context.Background()), "not been loaded")
}

func TestViewer_Run_ClosesSurface(t *testing.T) {
	f := newFixture(&fakeCatalog{layers: twoLayers})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.viewer.Run(ctx) }()

	require.Eventually(t, func() bool {
		return f.viewer.CheckReadiness(context.Background()) == nil
	}, time.Second, 5*time.Millisecond)
	assert.InDelta(t, 1, testutil.ToFloat64(f.metrics.ViewerRunning), 0)

	cancel()
	require.NoError(t, <-done)

	_, err := f.surface.Click(context.Background(), 1, 1)
	require.ErrorIs(t, err, mapsurface.ErrClosed)
	assert.InDelta(t, 0, testutil.ToFloat64(f.metrics.ViewerRunning), 0)
}

func TestViewer_Run_CatalogFailureKeepsRunning(t *testing.T) {
	f := newFixture(&fakeCatalog{err: errors.New("dial tcp: connection refused")})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	require.NoError(t, f.viewer.Run(ctx))
	assert.NotEmpty(t, f.viewer.Catalog().Error)
}

func TestSelection_Choose(t *testing.T) {
	var s viewer.Selection
	s.Populate(twoLayers)

	require.NoError(t, s.Choose("https://x/a"))
	assert.Equal(t, "https://x/a", s.Selected())
	require.ErrorIs(t, s.Choose("https://x/zzz"), viewer.ErrUnknownOption)
	assert.Equal(t, "https://x/a", s.Selected())

	last, ok := s.Last()
	require.True(t, ok)
	assert.Equal(t, "https://x/b", last)

	s.Populate(nil)
	assert.Empty(t, s.Selected())
	_, ok = s.Last()
	assert.False(t, ok)
}
