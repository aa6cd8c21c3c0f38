package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/paulmach/orb"

	"github.com/couchcryptid/urban-heat-viewer/internal/adapter/catalog"
	httpadapter "github.com/couchcryptid/urban-heat-viewer/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/urban-heat-viewer/internal/adapter/kafka"
	"github.com/couchcryptid/urban-heat-viewer/internal/adapter/pmtiles"
	redisadapter "github.com/couchcryptid/urban-heat-viewer/internal/adapter/redis"
	"github.com/couchcryptid/urban-heat-viewer/internal/config"
	"github.com/couchcryptid/urban-heat-viewer/internal/domain"
	"github.com/couchcryptid/urban-heat-viewer/internal/events"
	"github.com/couchcryptid/urban-heat-viewer/internal/inspector"
	"github.com/couchcryptid/urban-heat-viewer/internal/mapsurface"
	"github.com/couchcryptid/urban-heat-viewer/internal/observability"
	"github.com/couchcryptid/urban-heat-viewer/internal/overlay"
	"github.com/couchcryptid/urban-heat-viewer/internal/viewer"
)

func main() {
	// A missing .env is fine; the process environment still applies.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	palettes, err := loadPalettes(cfg)
	if err != nil {
		logger.Error("failed to load palettes", "error", err, "file", cfg.PaletteFile)
		os.Exit(1)
	}

	// Catalog source, optionally behind a shared Redis snapshot.
	var source domain.CatalogSource = catalog.NewClient(cfg.CatalogURL, cfg.CatalogTimeout, metrics, logger)
	if cfg.RedisAddr != "" {
		rdb := redisadapter.NewClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		defer rdb.Close()
		source = redisadapter.NewCatalogCache(source, rdb, cfg.CatalogCacheKey, cfg.CatalogCacheTTL, metrics, logger)
		logger.Info("catalog cache enabled", "addr", cfg.RedisAddr, "ttl", cfg.CatalogCacheTTL)
	}

	// Activity events (feature-flagged via EVENTS_ENABLED).
	var (
		sink    domain.EventSink = domain.NopSink{}
		emitter *events.Emitter
		writer  *kafkaadapter.Writer
	)
	if cfg.EventsEnabled {
		writer = kafkaadapter.NewWriter(cfg, logger)
		emitter = events.NewEmitter(writer, cfg.BatchSize, cfg.BatchFlushInterval, logger, metrics)
		sink = emitter
		logger.Info("activity events enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaEventsTopic)
	} else {
		logger.Info("activity events disabled")
	}

	base := mapsurface.BaseLayer{URL: cfg.BaseTileURL, Attribution: cfg.BaseAttribution}
	surface := mapsurface.New(domain.View{
		Center: orb.Point{cfg.MapCenterLon, cfg.MapCenterLat},
		Zoom:   cfg.MapZoom,
		Width:  1024,
		Height: 768,
	}, base)

	tileClient := &http.Client{Timeout: cfg.TileTimeout}
	newSource := func(url string) domain.RasterSource {
		return pmtiles.NewSource(pmtiles.NewHTTPFetcher(url, tileClient, metrics), cfg.OverlayTileSize, cfg.TileCacheSize, logger, metrics)
	}
	controller := overlay.NewController(surface, palettes, newSource, overlay.Options{
		TileSize:    cfg.OverlayTileSize,
		Attribution: cfg.OverlayAttribution,
	}, sink, logger, metrics)

	insp := inspector.New(controller, sink, logger, metrics)
	insp.Attach(surface)

	v := viewer.New(source, controller, surface, logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, httpadapter.App{
		Session:  v,
		Overlays: controller,
		Map:      surface,
		Pixels:   insp,
		Base:     base,
		Title:    "Urban Heat",
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start event emitter.
	emitterDone := make(chan struct{})
	go func() {
		defer close(emitterDone)
		if emitter == nil {
			return
		}
		if err := emitter.Run(ctx); err != nil {
			logger.Error("event emitter error", "error", err)
		}
	}()

	// Start viewer session.
	viewerDone := make(chan struct{})
	go func() {
		defer close(viewerDone)
		if err := v.Run(ctx); err != nil {
			logger.Error("viewer error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	<-viewerDone
	<-emitterDone
	if writer != nil {
		if err := writer.Close(); err != nil {
			logger.Error("kafka writer close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}

// loadPalettes returns the built-in palettes, or the ones in PALETTE_FILE,
// with the marker from PALETTE_MARKER.
func loadPalettes(cfg *config.Config) (domain.PaletteSet, error) {
	set := domain.DefaultPaletteSet()
	if cfg.PaletteFile != "" {
		var err error
		set, err = domain.LoadPaletteSetFile(cfg.PaletteFile)
		if err != nil {
			return domain.PaletteSet{}, err
		}
	}
	set.Marker = cfg.PaletteMarker
	return set, nil
}
