package http

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/paulmach/orb"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/urban-heat-viewer/internal/domain"
	"github.com/couchcryptid/urban-heat-viewer/internal/mapsurface"
	"github.com/couchcryptid/urban-heat-viewer/internal/overlay"
	"github.com/couchcryptid/urban-heat-viewer/internal/viewer"
)

//go:embed templates/index.html.tmpl
var templateFS embed.FS

var pageTemplate = template.Must(template.ParseFS(templateFS, "templates/index.html.tmpl"))

const maxBodyBytes = 1 << 16

// Session is the viewer state behind the page.
type Session interface {
	CheckReadiness(ctx context.Context) error
	Catalog() viewer.CatalogState
	Choose(ctx context.Context, url string) (*overlay.Overlay, error)
}

// Overlays exposes the active overlay and its palettes.
type Overlays interface {
	Current() (*overlay.Overlay, error)
	Palettes() domain.PaletteSet
}

// Map is the map surface the API clicks on.
type Map interface {
	Click(ctx context.Context, x, y float64) (mapsurface.ClickEvent, error)
	SetView(v domain.View)
	View() domain.View
}

// Pixels holds the last inspected value.
type Pixels interface {
	Value() (domain.PixelValue, bool)
}

// App bundles what the server renders and drives.
type App struct {
	Session  Session
	Overlays Overlays
	Map      Map
	Pixels   Pixels
	Base     mapsurface.BaseLayer
	Title    string
}

// Server exposes the viewer page, its JSON API, and the health, readiness,
// and metrics endpoints.
type Server struct {
	httpServer *http.Server
	app        App
	logger     *slog.Logger
}

// NewServer creates an HTTP server with the viewer routes plus /healthz,
// /readyz, and /metrics.
func NewServer(addr string, app App, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		app:    app,
		logger: logger,
	}

	mux.HandleFunc("GET /{$}", s.handlePage)
	mux.HandleFunc("GET /api/catalog", s.handleCatalog)
	mux.HandleFunc("PUT /api/selection", s.handleSelection)
	mux.HandleFunc("GET /api/overlay", s.handleOverlay)
	mux.HandleFunc("POST /api/click", s.handleClick)
	mux.HandleFunc("GET /api/pixel", s.handlePixel)
	mux.HandleFunc("GET /api/legend.png", s.handleLegend)

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(app.Session))
	mux.Handle("GET /metrics", promhttp.Handler())

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

// mapConfig is handed to the map widget on the page.
type mapConfig struct {
	Center  orb.Point            `json:"center"`
	Zoom    float64              `json:"zoom"`
	Base    mapsurface.BaseLayer `json:"base"`
	Overlay *overlay.Overlay     `json:"overlay"`
}

type pageData struct {
	Title   string
	Catalog viewer.CatalogState
	Value   *domain.PixelValue
	Overlay *overlay.Overlay
	Map     mapConfig
}

func (s *Server) handlePage(w http.ResponseWriter, _ *http.Request) {
	view := s.app.Map.View()
	active, _ := s.app.Overlays.Current()

	data := pageData{
		Title:   s.app.Title,
		Catalog: s.app.Session.Catalog(),
		Overlay: active,
		Map: mapConfig{
			Center:  view.Center,
			Zoom:    view.Zoom,
			Base:    s.app.Base,
			Overlay: active,
		},
	}
	if pv, ok := s.app.Pixels.Value(); ok {
		data.Value = &pv
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTemplate.Execute(w, data); err != nil {
		s.logger.Error("render page failed", "error", err)
	}
}

func (s *Server) handleCatalog(w http.ResponseWriter, _ *http.Request) {
	st := s.app.Session.Catalog()
	if st.Layers == nil {
		st.Layers = []viewer.Option{}
	}
	writeJSON(w, http.StatusOK, st)
}

type selectionRequest struct {
	URL string `json:"url"`
}

func (s *Server) handleSelection(w http.ResponseWriter, r *http.Request) {
	var req selectionRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	o, err := s.app.Session.Choose(r.Context(), req.URL)
	switch {
	case errors.Is(err, viewer.ErrUnknownOption):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, overlay.ErrStaleSelection):
		writeError(w, http.StatusConflict, err)
	case err != nil:
		s.logger.Error("apply selection failed", "error", err, "url", req.URL)
		writeError(w, http.StatusInternalServerError, err)
	default:
		writeJSON(w, http.StatusOK, o)
	}
}

func (s *Server) handleOverlay(w http.ResponseWriter, _ *http.Request) {
	o, err := s.app.Overlays.Current()
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

type clickRequest struct {
	Pixel []float64    `json:"pixel"`
	View  *domain.View `json:"view,omitempty"`
}

type pixelState struct {
	Set   bool               `json:"set"`
	Value *domain.PixelValue `json:"value,omitempty"`
}

func (s *Server) handleClick(w http.ResponseWriter, r *http.Request) {
	var req clickRequest
	if err := decodeBody(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if len(req.Pixel) != 2 {
		writeError(w, http.StatusBadRequest, fmt.Errorf("pixel: want [x, y], got %d values", len(req.Pixel)))
		return
	}
	if req.View != nil {
		s.app.Map.SetView(*req.View)
	}

	if _, err := s.app.Map.Click(r.Context(), req.Pixel[0], req.Pixel[1]); err != nil {
		writeError(w, http.StatusServiceUnavailable, err)
		return
	}
	writeJSON(w, http.StatusOK, s.pixelState())
}

func (s *Server) handlePixel(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.pixelState())
}

func (s *Server) pixelState() pixelState {
	pv, ok := s.app.Pixels.Value()
	if !ok {
		return pixelState{}
	}
	return pixelState{Set: true, Value: &pv}
}

func (s *Server) handleLegend(w http.ResponseWriter, r *http.Request) {
	var palette domain.Palette
	if name := r.URL.Query().Get("palette"); name != "" {
		p, ok := s.app.Overlays.Palettes().Lookup(name)
		if !ok {
			writeError(w, http.StatusNotFound, fmt.Errorf("unknown palette %q", name))
			return
		}
		palette = p
	} else {
		o, err := s.app.Overlays.Current()
		if err != nil {
			writeError(w, http.StatusNotFound, err)
			return
		}
		palette = o.Palette
	}

	b, err := renderLegend(palette, legendWidth, legendHeight)
	if err != nil {
		s.logger.Error("render legend failed", "error", err, "palette", palette.Name)
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "max-age=300")
	w.Write(b) //nolint:errcheck // client went away
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("decode request: %w", err)
	}
	return nil
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
