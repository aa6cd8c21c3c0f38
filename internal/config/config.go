package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Catalog endpoint and palettes.
	CatalogURL     string
	CatalogTimeout time.Duration
	PaletteFile    string
	PaletteMarker  string

	// Initial map view and base layer.
	MapCenterLon    float64
	MapCenterLat    float64
	MapZoom         float64
	BaseTileURL     string
	BaseAttribution string

	// Overlay raster source.
	OverlayTileSize    int
	OverlayAttribution string
	TileTimeout        time.Duration
	TileCacheSize      int

	// Optional Redis catalog snapshot cache.
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	CatalogCacheTTL time.Duration
	CatalogCacheKey string

	// Optional Kafka activity events.
	EventsEnabled      bool
	KafkaBrokers       []string
	KafkaEventsTopic   string
	BatchSize          int
	BatchFlushInterval time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	catalogTimeout, err := parsePositiveDuration("CATALOG_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	tileTimeout, err := parsePositiveDuration("TILE_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	cacheTTL, err := parsePositiveDuration("CATALOG_CACHE_TTL", "5m")
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	centerLon, err := parseFloat("MAP_CENTER_LON", "-73.84200928305255")
	if err != nil {
		return nil, err
	}
	centerLat, err := parseFloat("MAP_CENTER_LAT", "40.76043006443475")
	if err != nil {
		return nil, err
	}
	zoom, err := parseFloat("MAP_ZOOM", "12")
	if err != nil {
		return nil, err
	}

	tileSize, err := parsePositiveInt("OVERLAY_TILE_SIZE", 512)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		CatalogURL:     sharedcfg.EnvOrDefault("CATALOG_URL", "https://www.urban-heat.duckdns.org/api/pmtiles"),
		CatalogTimeout: catalogTimeout,
		PaletteFile:    os.Getenv("PALETTE_FILE"),
		PaletteMarker:  sharedcfg.EnvOrDefault("PALETTE_MARKER", "Relative"),

		MapCenterLon:    centerLon,
		MapCenterLat:    centerLat,
		MapZoom:         zoom,
		BaseTileURL:     sharedcfg.EnvOrDefault("BASE_TILE_URL", "https://tile.openstreetmap.org/{z}/{x}/{y}.png"),
		BaseAttribution: sharedcfg.EnvOrDefault("BASE_ATTRIBUTION", "© OpenStreetMap contributors"),

		OverlayTileSize:    tileSize,
		OverlayAttribution: sharedcfg.EnvOrDefault("OVERLAY_ATTRIBUTION", "USGS LandStat"),
		TileTimeout:        tileTimeout,
		TileCacheSize:      parseCacheSize("TILE_CACHE_SIZE", 256),

		RedisAddr:       os.Getenv("REDIS_ADDR"),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		RedisDB:         parseRedisDB(),
		CatalogCacheTTL: cacheTTL,
		CatalogCacheKey: sharedcfg.EnvOrDefault("CATALOG_CACHE_KEY", "urban-heat:catalog"),

		EventsEnabled:      os.Getenv("EVENTS_ENABLED") == "true",
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaEventsTopic:   sharedcfg.EnvOrDefault("KAFKA_EVENTS_TOPIC", "viewer-activity"),
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,
	}

	if cfg.CatalogURL == "" {
		return nil, errors.New("CATALOG_URL is required")
	}
	if cfg.MapCenterLat < -85.0511 || cfg.MapCenterLat > 85.0511 {
		return nil, errors.New("MAP_CENTER_LAT must be within Web Mercator bounds")
	}
	if cfg.MapZoom < 0 || cfg.MapZoom > 28 {
		return nil, errors.New("MAP_ZOOM must be between 0 and 28")
	}
	if cfg.EventsEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("EVENTS_ENABLED is true but KAFKA_BROKERS is empty")
	}
	if cfg.EventsEnabled && cfg.KafkaEventsTopic == "" {
		return nil, errors.New("KAFKA_EVENTS_TOPIC is required when EVENTS_ENABLED is true")
	}

	return cfg, nil
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, errors.New("invalid " + key)
	}
	return d, nil
}

func parseFloat(key, def string) (float64, error) {
	f, err := strconv.ParseFloat(sharedcfg.EnvOrDefault(key, def), 64)
	if err != nil {
		return 0, errors.New("invalid " + key)
	}
	return f, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, errors.New("invalid " + key)
	}
	return n, nil
}

func parseCacheSize(key string, def int) int {
	if s := os.Getenv(key); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func parseRedisDB() int {
	if s := os.Getenv("REDIS_DB"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n >= 0 {
			return n
		}
	}
	return 0
}
