package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "heat_viewer"

// Metrics holds the Prometheus counters, histograms, and gauges for the viewer.
type Metrics struct {
	ViewerRunning prometheus.Gauge

	// Catalog metrics.
	CatalogFetches *prometheus.CounterVec // labels: outcome={success,error}
	CatalogCache   *prometheus.CounterVec // labels: result={hit,miss,error}
	CatalogLayers  prometheus.Gauge

	// Overlay metrics.
	OverlaySwaps     prometheus.Counter
	OverlayDiscarded prometheus.Counter
	OverlayActive    prometheus.Gauge

	// Raster read metrics.
	PixelReads        *prometheus.CounterVec // labels: outcome={value,no_data,no_overlay,error,stale}
	TileFetchDuration prometheus.Histogram
	TileCache         *prometheus.CounterVec // labels: result={hit,miss}

	// Activity event metrics.
	EventsPublished prometheus.Counter
	EventsFailed    prometheus.Counter
	EventsDropped   prometheus.Counter
	EventBatchSize  prometheus.Histogram
}

// NewMetrics creates and registers all viewer metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics(true)

	prometheus.MustRegister(
		m.ViewerRunning,
		m.CatalogFetches,
		m.CatalogCache,
		m.CatalogLayers,
		m.OverlaySwaps,
		m.OverlayDiscarded,
		m.OverlayActive,
		m.PixelReads,
		m.TileFetchDuration,
		m.TileCache,
		m.EventsPublished,
		m.EventsFailed,
		m.EventsDropped,
		m.EventBatchSize,
	)

	return m
}

// NewMetricsForTesting creates Metrics without registering them to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics(false)
}

func newMetrics(withHelp bool) *Metrics {
	help := func(s string) string {
		if withHelp {
			return s
		}
		return ""
	}

	return &Metrics{
		ViewerRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "viewer_running",
			Help:      help("1 while the viewer session is active, 0 after shutdown."),
		}),
		CatalogFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_fetches_total",
			Help:      help("Catalog fetches by outcome."),
		}, []string{"outcome"}),
		CatalogCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_cache_total",
			Help:      help("Catalog snapshot cache lookups by result."),
		}, []string{"result"}),
		CatalogLayers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "catalog_layers",
			Help:      help("Number of selectable layers in the loaded catalog."),
		}),
		OverlaySwaps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "overlay_swaps_total",
			Help:      help("Overlay selections applied to the map surface."),
		}),
		OverlayDiscarded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "overlay_swaps_discarded_total",
			Help:      help("Overlay selections discarded because a newer selection was already applied."),
		}),
		OverlayActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "overlay_active",
			Help:      help("1 when an overlay layer is on the map surface."),
		}),
		PixelReads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pixel_reads_total",
			Help:      help("Pixel inspections by outcome."),
		}, []string{"outcome"}),
		TileFetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tile_fetch_duration_seconds",
			Help:      help("Range request duration against raster archives."),
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		TileCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tile_cache_total",
			Help:      help("Decoded tile cache lookups by result."),
		}, []string{"result"}),
		EventsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      help("Activity events written to the event stream."),
		}),
		EventsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_publish_failures_total",
			Help:      help("Failed activity event batch writes."),
		}),
		EventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      help("Activity events dropped because the buffer was full."),
		}),
		EventBatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "event_batch_size",
			Help:      help("Number of activity events per published batch."),
			Buckets:   []float64{1, 5, 10, 20, 30, 40, 50, 75, 100},
		}),
	}
}
