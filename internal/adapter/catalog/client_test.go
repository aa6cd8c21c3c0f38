package catalog

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/urban-heat-viewer/internal/domain"
	"github.com/couchcryptid/urban-heat-viewer/internal/observability"
)

const (
	contentTypeJSON   = "application/json"
	headerContentType = "Content-Type"
)

func testClient(url string) (*Client, *observability.Metrics) {
	metrics := observability.NewMetricsForTesting()
	return &Client{
		url:        url,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		metrics:    metrics,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}, metrics
}

func TestClient_Fetch_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/pmtiles", r.URL.Path)
		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = w.Write([]byte(`[
			{"filename": "a.pmtiles", "s3_url": "https://x/a", "size": 1024, "created": "2024-07-01"},
			{"filename": "b_Relative.pmtiles", "s3_url": "https://x/b"}
		]`))
	}))
	defer srv.Close()

	c, metrics := testClient(srv.URL + "/api/pmtiles")
	layers, err := c.Fetch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []domain.LayerDescriptor{
		{Filename: "a.pmtiles", S3URL: "https://x/a"},
		{Filename: "b_Relative.pmtiles", S3URL: "https://x/b"},
	}, layers)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.CatalogFetches.WithLabelValues("success")))
}

func TestClient_Fetch_Empty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	c, _ := testClient(srv.URL)
	layers, err := c.Fetch(context.Background())
	require.NoError(t, err)
	assert.Empty(t, layers)
}

func TestClient_Fetch_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`upstream down`))
	}))
	defer srv.Close()

	c, metrics := testClient(srv.URL)
	_, err := c.Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
	assert.Contains(t, err.Error(), "upstream down")
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.CatalogFetches.WithLabelValues("error")))
}

func TestClient_Fetch_Malformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = w.Write([]byte(`{"layers": "nope"}`))
	}))
	defer srv.Close()

	c, _ := testClient(srv.URL)
	_, err := c.Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode catalog")
}

func TestClient_Fetch_NoRetry(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c, _ := testClient(srv.URL)
	_, err := c.Fetch(context.Background())
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestClient_Fetch_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, _ := testClient(srv.URL)
	c.httpClient = &http.Client{Timeout: 50 * time.Millisecond}

	_, err := c.Fetch(context.Background())
	require.Error(t, err)
}
