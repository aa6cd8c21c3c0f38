// Command checkcatalog fetches the layer catalog and opens every archive it
// lists, reporting zoom range, tile type, extent and the palette each layer
// would be drawn with.
//
// Usage:
//
//	go run ./cmd/checkcatalog \
//	  -catalog-url https://www.urban-heat.duckdns.org/api/pmtiles \
//	  -palette-file palettes.json
//
// The exit status is 1 when the catalog or any archive cannot be read.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"

	"github.com/couchcryptid/urban-heat-viewer/internal/adapter/catalog"
	"github.com/couchcryptid/urban-heat-viewer/internal/adapter/pmtiles"
	"github.com/couchcryptid/urban-heat-viewer/internal/domain"
	"github.com/couchcryptid/urban-heat-viewer/internal/observability"
)

// phase tracks pass/fail for a check phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	catalogURL := flag.String("catalog-url", sharedcfg.EnvOrDefault("CATALOG_URL", ""), "layer catalog endpoint")
	paletteFile := flag.String("palette-file", os.Getenv("PALETTE_FILE"), "optional palette set JSON")
	timeout := flag.Duration("timeout", 30*time.Second, "per-request timeout")
	flag.Parse()

	if *catalogURL == "" {
		flag.Usage()
		os.Exit(1)
	}

	palettes := domain.DefaultPaletteSet()
	if *paletteFile != "" {
		var err error
		if palettes, err = domain.LoadPaletteSetFile(*paletteFile); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if code := run(ctx, os.Stdout, *catalogURL, palettes, *timeout); code != 0 {
		os.Exit(code)
	}
}

func run(ctx context.Context, out io.Writer, catalogURL string, palettes domain.PaletteSet, timeout time.Duration) int {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := observability.NewMetricsForTesting()

	fetch := &phase{name: "catalog"}
	layers, err := catalog.NewClient(catalogURL, timeout, metrics, logger).Fetch(ctx)
	if err != nil {
		fetch.errorf("%v", err)
	} else if len(layers) == 0 {
		fetch.errorf("catalog is empty")
	}
	report(out, fetch)
	if !fetch.passed() {
		return 1
	}

	archives := &phase{name: "archives"}
	client := &http.Client{Timeout: timeout}
	for i, l := range layers {
		if l.S3URL == "" {
			archives.errorf("%s: missing s3_url", l.Filename)
			continue
		}
		src := pmtiles.NewSource(pmtiles.NewHTTPFetcher(l.S3URL, client, metrics), 512, 1, logger, metrics)
		h, err := src.Header(ctx)
		if err != nil {
			archives.errorf("%s: %v", l.Filename, err)
			continue
		}
		b := pmtiles.HeaderBound(h)
		fmt.Fprintf(out, "%3d  %-40s  z%d-%d  type=%d  bounds=[%.4f %.4f %.4f %.4f]  palette=%s\n",
			i, l.Filename, h.MinZoom, h.MaxZoom, h.TileType,
			b.Min.Lon(), b.Min.Lat(), b.Max.Lon(), b.Max.Lat(),
			palettes.Select(l.S3URL, l.Filename).Name)
		if h.TileType != pmtiles.TileTypePNG && h.TileType != pmtiles.TileTypeJPEG && h.TileType != pmtiles.TileTypeWebP {
			archives.errorf("%s: tile type %d cannot be inspected", l.Filename, h.TileType)
		}
	}
	report(out, archives)

	fmt.Fprintf(out, "layers: %d\n", len(layers))
	if !archives.passed() {
		return 1
	}
	return 0
}

func report(out io.Writer, p *phase) {
	if p.passed() {
		fmt.Fprintf(out, "PASS  %s\n", p.name)
		return
	}
	fmt.Fprintf(out, "FAIL  %s\n", p.name)
	for _, e := range p.errors {
		fmt.Fprintf(out, "      - %s\n", e)
	}
}
