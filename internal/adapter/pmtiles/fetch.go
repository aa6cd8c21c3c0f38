package pmtiles

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/couchcryptid/urban-heat-viewer/internal/observability"
)

// RangeFetcher reads length bytes at offset from an archive.
type RangeFetcher interface {
	FetchRange(ctx context.Context, offset, length uint64) ([]byte, error)
}

// HTTPFetcher reads archive ranges with HTTP range requests.
type HTTPFetcher struct {
	url        string
	httpClient *http.Client
	metrics    *observability.Metrics
}

// NewHTTPFetcher creates a range reader for the archive at url.
func NewHTTPFetcher(url string, httpClient *http.Client, metrics *observability.Metrics) *HTTPFetcher {
	return &HTTPFetcher{url: url, httpClient: httpClient, metrics: metrics}
}

func (f *HTTPFetcher) FetchRange(ctx context.Context, offset, length uint64) ([]byte, error) {
	if length == 0 {
		return nil, nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", offset, offset+length-1))

	start := time.Now()
	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("range request: %w", err)
	}
	defer resp.Body.Close()
	f.metrics.TileFetchDuration.Observe(time.Since(start).Seconds())

	switch resp.StatusCode {
	case http.StatusPartialContent:
		b, err := io.ReadAll(io.LimitReader(resp.Body, int64(length)))
		if err != nil {
			return nil, fmt.Errorf("read range body: %w", err)
		}
		return b, nil
	case http.StatusOK:
		// Server ignored the Range header; skip to the requested window.
		if _, err := io.CopyN(io.Discard, resp.Body, int64(offset)); err != nil {
			return nil, fmt.Errorf("skip to range start: %w", err)
		}
		b, err := io.ReadAll(io.LimitReader(resp.Body, int64(length)))
		if err != nil {
			return nil, fmt.Errorf("read range body: %w", err)
		}
		return b, nil
	case http.StatusRequestedRangeNotSatisfiable:
		return nil, nil
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("archive request error: status %d: %s", resp.StatusCode, body)
	}
}
